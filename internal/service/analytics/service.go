// Package analytics computes delivery activity summaries over the active
// set and the archive together, matching what either source alone would
// undercount.
package analytics

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/lalabot/delivery-api/internal/model"
	"github.com/lalabot/delivery-api/internal/repository"
	"github.com/lalabot/delivery-api/internal/service/compartment"
)

type Service struct {
	deliveries   repository.DeliveryRepository
	history      repository.HistoryRepository
	users        repository.UserRepository
	compartments *compartment.Service

	now func() time.Time
}

func NewService(
	deliveries repository.DeliveryRepository,
	history repository.HistoryRepository,
	users repository.UserRepository,
	compartments *compartment.Service,
) *Service {
	return &Service{
		deliveries:   deliveries,
		history:      history,
		users:        users,
		compartments: compartments,
		now:          time.Now,
	}
}

// Overview builds the operator dashboard snapshot.
func (s *Service) Overview(ctx context.Context) (*model.AdminAnalytics, error) {
	all, err := s.allDeliveries(ctx)
	if err != nil {
		return nil, err
	}

	users, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	board, err := s.compartments.Board(ctx)
	if err != nil {
		return nil, err
	}

	out := &model.AdminAnalytics{
		TotalUsers:        len(users),
		TotalDeliveries:   len(all),
		CompartmentsInUse: board.Occupied(),
	}

	now := s.now().UTC()
	today := now.Truncate(24 * time.Hour)
	weekAgo := now.AddDate(0, 0, -7)
	monthAgo := now.AddDate(0, -1, 0)

	destinations := map[int]int{}
	for _, d := range all {
		switch {
		case d.Active():
			out.ActiveDeliveries++
		case d.Status == model.DeliveryStatusCompleted:
			out.CompletedDeliveries++
		case d.Status == model.DeliveryStatusCancelled:
			out.CancelledDeliveries++
		}

		created := d.CreatedAt.UTC()
		if !created.Before(today) {
			out.DeliveriesToday++
		}
		if !created.Before(weekAgo) {
			out.DeliveriesThisWeek++
		}
		if !created.Before(monthAgo) {
			out.DeliveriesThisMonth++
		}

		destinations[d.DestinationLocation]++
	}

	out.SuccessRate = successRate(out.CompletedDeliveries, len(all))
	out.TopDestination, out.TopDestinationCount = topOf(destinations)
	return out, nil
}

// ForUser summarizes one account's sent and received deliveries.
func (s *Service) ForUser(ctx context.Context, userID string) (*model.UserAnalytics, error) {
	all, err := s.allDeliveries(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	weekAgo := now.AddDate(0, 0, -7)

	out := &model.UserAnalytics{}
	destinations := map[int]int{}
	for _, d := range all {
		sent := d.SenderID == userID
		received := d.ReceiverID == userID
		if !sent && !received {
			continue
		}

		if sent {
			out.TotalSent++
			destinations[d.DestinationLocation]++
			if !d.CreatedAt.UTC().Before(weekAgo) {
				out.ThisWeekSent++
			}
		}
		if received {
			out.TotalReceived++
			if !d.CreatedAt.UTC().Before(weekAgo) {
				out.ThisWeekReceived++
			}
		}

		switch d.Status {
		case model.DeliveryStatusCompleted:
			out.Completed++
		case model.DeliveryStatusCancelled:
			out.Cancelled++
		}
	}

	out.SuccessRate = successRate(out.Completed, out.TotalSent+out.TotalReceived)
	out.TopDestination, _ = topOf(destinations)
	return out, nil
}

// allDeliveries joins the active set with the archive. A delivery appears
// in exactly one of the two, so no dedup is needed.
func (s *Service) allDeliveries(ctx context.Context) ([]*model.Delivery, error) {
	active, err := s.deliveries.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list deliveries: %w", err)
	}
	archived, err := s.history.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	return append(active, archived...), nil
}

// successRate is completed over total as a percentage, one decimal place.
func successRate(completed, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(completed)/float64(total)*1000) / 10
}

func topOf(counts map[int]int) (room, count int) {
	for r, c := range counts {
		if c > count || (c == count && r < room) {
			room, count = r, c
		}
	}
	return room, count
}
