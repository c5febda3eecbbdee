// Package delivery implements the delivery lifecycle: creation with
// compartment assignment, the sender/robot/receiver transitions, and
// archival of terminal deliveries.
package delivery

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	"github.com/lalabot/delivery-api/internal/model"
	"github.com/lalabot/delivery-api/internal/repository"
	"github.com/lalabot/delivery-api/internal/service/compartment"
	apperrors "github.com/lalabot/delivery-api/pkg/errors"
	"github.com/lalabot/delivery-api/pkg/metrics"
)

const (
	// RoomCount is the number of rooms the robot can serve.
	RoomCount = 4

	// Verification lockout policy: after maxVerifyAttempts consecutive
	// mismatches the delivery's verification is locked for lockoutDuration.
	maxVerifyAttempts = 5
	lockoutDuration   = 5 * time.Minute
)

type Service struct {
	deliveries    repository.DeliveryRepository
	history       repository.HistoryRepository
	notifications repository.NotificationRepository
	users         repository.UserRepository
	compartments  *compartment.Service
	attempts      *cache.Cache
	metrics       *metrics.Metrics
	logger        zerolog.Logger

	// now is the service clock; delivery ids derive from it.
	now func() time.Time
}

func NewService(
	deliveries repository.DeliveryRepository,
	history repository.HistoryRepository,
	notifications repository.NotificationRepository,
	users repository.UserRepository,
	compartments *compartment.Service,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *Service {
	return &Service{
		deliveries:    deliveries,
		history:       history,
		notifications: notifications,
		users:         users,
		compartments:  compartments,
		attempts:      cache.New(lockoutDuration, 2*lockoutDuration),
		metrics:       m,
		logger:        logger,
		now:           time.Now,
	}
}

// DestinationRoom resolves the chosen destination index against the pickup
// room. The destination picker never shows the pickup room, so indexes at or
// past it shift up by one; the result can never equal the pickup room.
func DestinationRoom(pickupIndex, destinationIndex int) int {
	pickup := pickupIndex + 1
	destination := destinationIndex + 1
	if destination >= pickup {
		destination++
	}
	return destination
}

func (s *Service) Create(ctx context.Context, senderID string, req *model.CreateDeliveryRequest) (*model.Delivery, error) {
	if err := validateCreate(senderID, req); err != nil {
		return nil, err
	}

	sender, err := s.users.Get(ctx, senderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load sender: %w", err)
	}
	receiver, err := s.users.Get(ctx, req.ReceiverID)
	if err != nil {
		return nil, fmt.Errorf("failed to load receiver: %w", err)
	}

	now := s.now().UTC()
	delivery := &model.Delivery{
		ID:                  fmt.Sprintf("del_%d", now.Unix()),
		SenderID:            sender.ID,
		SenderName:          sender.Username,
		ReceiverID:          receiver.ID,
		ReceiverName:        receiver.Username,
		PickupLocation:      req.PickupIndex + 1,
		DestinationLocation: DestinationRoom(req.PickupIndex, req.DestinationIndex),
		Category:            req.Category,
		Message:             req.Message,
		VerificationCode:    generateVerificationCode(),
		Status:              model.DeliveryStatusPending,
		ProgressStage:       model.StageProcessing,
		CreatedAt:           now,
	}

	slot, err := s.compartments.TryAcquire(ctx, delivery.ID)
	if err != nil {
		if apperrors.IsCode(err, apperrors.ErrNoCompartmentAvailable) && s.metrics != nil {
			s.metrics.AcquireRejected.Inc()
		}
		return nil, err
	}
	delivery.Compartment = slot

	if err := s.deliveries.Create(ctx, delivery); err != nil {
		// The slot is already held; release it so a failed write does not
		// leak a compartment.
		if relErr := s.compartments.Release(ctx, delivery.ID); relErr != nil {
			return nil, apperrors.InconsistentState(
				fmt.Sprintf("compartment %d held by unwritten delivery %s", slot, delivery.ID), relErr)
		}
		return nil, fmt.Errorf("failed to create delivery: %w", err)
	}

	if err := s.notifyReceiver(ctx, delivery); err != nil {
		// The delivery exists and the receiver will still see it in the
		// incoming list; a lost notification is not worth unwinding.
		s.logger.Error().Err(err).Str("delivery_id", delivery.ID).Msg("failed to notify receiver")
	}

	if s.metrics != nil {
		s.metrics.DeliveriesCreated.Inc()
	}
	return delivery, nil
}

func (s *Service) Get(ctx context.Context, id string) (*model.Delivery, error) {
	return s.deliveries.Get(ctx, id)
}

// Feed splits the active deliveries into outgoing and incoming for userID.
func (s *Service) Feed(ctx context.Context, userID string) (*model.DeliveryFeed, error) {
	deliveries, err := s.deliveries.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list deliveries: %w", err)
	}

	feed := &model.DeliveryFeed{
		Outgoing: []*model.Delivery{},
		Incoming: []*model.Delivery{},
	}
	for _, d := range deliveries {
		if !d.Active() {
			continue
		}
		switch userID {
		case d.SenderID:
			feed.Outgoing = append(feed.Outgoing, d)
		case d.ReceiverID:
			feed.Incoming = append(feed.Incoming, d)
		}
	}
	return feed, nil
}

// ConfirmFilesPlaced records that the sender packed the compartment.
func (s *Service) ConfirmFilesPlaced(ctx context.Context, id, senderID string) (*model.Delivery, error) {
	delivery, err := s.deliveries.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if senderID != "" && delivery.SenderID != senderID {
		return nil, apperrors.Unauthorized("only the sender can confirm files")
	}
	if err := delivery.ConfirmFiles(); err != nil {
		return nil, err
	}
	if err := s.deliveries.Update(ctx, delivery); err != nil {
		return nil, fmt.Errorf("failed to update delivery: %w", err)
	}
	return delivery, nil
}

// AdvanceProgress applies a robot progress signal.
func (s *Service) AdvanceProgress(ctx context.Context, id string, req *model.AdvanceProgressRequest) (*model.Delivery, error) {
	delivery, err := s.deliveries.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := delivery.AdvanceStage(req.Stage, s.now().UTC()); err != nil {
		return nil, err
	}
	if req.CurrentLocation != nil {
		delivery.CurrentLocation = *req.CurrentLocation
	}
	if err := s.deliveries.Update(ctx, delivery); err != nil {
		return nil, fmt.Errorf("failed to update delivery: %w", err)
	}
	return delivery, nil
}

// VerifyReceipt checks the receiver's pickup code. After five consecutive
// mismatches the delivery's verification locks for five minutes.
func (s *Service) VerifyReceipt(ctx context.Context, id, code string) (*model.Delivery, error) {
	delivery, err := s.deliveries.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	lockKey := "lock:" + id
	if _, locked := s.attempts.Get(lockKey); locked {
		return nil, apperrors.CodeLocked()
	}

	if err := delivery.Verify(code); err != nil {
		if s.metrics != nil {
			s.metrics.VerificationFailed.Inc()
		}
		attemptKey := "attempts:" + id
		failures := 1
		if v, ok := s.attempts.Get(attemptKey); ok {
			failures = v.(int) + 1
		}
		if failures >= maxVerifyAttempts {
			s.attempts.Set(lockKey, true, lockoutDuration)
			s.attempts.Delete(attemptKey)
			return nil, apperrors.CodeLocked()
		}
		s.attempts.Set(attemptKey, failures, lockoutDuration)
		return nil, err
	}

	s.attempts.Delete("attempts:" + id)
	if err := s.deliveries.Update(ctx, delivery); err != nil {
		return nil, fmt.Errorf("failed to update delivery: %w", err)
	}
	return delivery, nil
}

// ConfirmReceipt completes the delivery: archive, remove from the active
// set, free the compartment.
func (s *Service) ConfirmReceipt(ctx context.Context, id, receiverID string) (*model.Delivery, error) {
	delivery, err := s.deliveries.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if receiverID != "" && delivery.ReceiverID != receiverID {
		return nil, apperrors.Unauthorized("only the receiver can confirm receipt")
	}
	if err := delivery.Complete(s.now().UTC()); err != nil {
		return nil, err
	}

	if err := s.archive(ctx, delivery); err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.DeliveriesCompleted.Inc()
	}
	return delivery, nil
}

// Cancel aborts a delivery that the robot has not picked up yet and tells
// the receiver.
func (s *Service) Cancel(ctx context.Context, id, senderID string) (*model.Delivery, error) {
	delivery, err := s.deliveries.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if senderID != "" && delivery.SenderID != senderID {
		return nil, apperrors.Unauthorized("only the sender can cancel")
	}
	if err := delivery.Cancel(s.now().UTC()); err != nil {
		return nil, err
	}

	if err := s.archive(ctx, delivery); err != nil {
		return nil, err
	}

	cancelNote := &model.Notification{
		Key:         delivery.ID + "_cancelled",
		DeliveryID:  delivery.ID,
		From:        delivery.SenderName,
		Message:     fmt.Sprintf("Delivery from %s was cancelled", delivery.SenderName),
		Destination: delivery.DestinationLocation,
		Timestamp:   time.Now().UTC(),
	}
	if err := s.notifications.Create(ctx, delivery.ReceiverID, cancelNote); err != nil {
		s.logger.Error().Err(err).Str("delivery_id", delivery.ID).Msg("failed to send cancellation notification")
	}

	if s.metrics != nil {
		s.metrics.DeliveriesCancelled.Inc()
	}
	return delivery, nil
}

// History lists the user's archived deliveries, newest first.
func (s *Service) History(ctx context.Context, userID string) ([]*model.Delivery, error) {
	return s.history.ListForUser(ctx, userID)
}

// archive copies the terminal delivery to history, removes it from the
// active set and frees its compartment, in that order. The archive write is
// idempotent, so a retry after a partial failure converges.
func (s *Service) archive(ctx context.Context, delivery *model.Delivery) error {
	if err := s.history.Archive(ctx, delivery); err != nil {
		return fmt.Errorf("failed to archive delivery: %w", err)
	}
	if err := s.deliveries.Delete(ctx, delivery.ID); err != nil {
		return apperrors.InconsistentState(
			fmt.Sprintf("delivery %s archived but still active", delivery.ID), err)
	}
	if err := s.compartments.Release(ctx, delivery.ID); err != nil {
		return apperrors.InconsistentState(
			fmt.Sprintf("compartment still held by archived delivery %s", delivery.ID), err)
	}
	return nil
}

func (s *Service) notifyReceiver(ctx context.Context, delivery *model.Delivery) error {
	notification := &model.Notification{
		Key:              delivery.ID,
		DeliveryID:       delivery.ID,
		From:             delivery.SenderName,
		Message:          fmt.Sprintf("New delivery from %s", delivery.SenderName),
		VerificationCode: delivery.VerificationCode,
		Destination:      delivery.DestinationLocation,
		Timestamp:        time.Now().UTC(),
	}
	return s.notifications.Create(ctx, delivery.ReceiverID, notification)
}

func validateCreate(senderID string, req *model.CreateDeliveryRequest) error {
	switch {
	case senderID == "":
		return apperrors.Validation("sender is required")
	case req.ReceiverID == "":
		return apperrors.Validation("receiver is required")
	case req.ReceiverID == senderID:
		return apperrors.Validation("receiver must differ from sender")
	case req.Category == "":
		return apperrors.Validation("category is required")
	case req.PickupIndex < 0 || req.PickupIndex >= RoomCount:
		return apperrors.Validation("pickup location is required")
	case req.DestinationIndex < 0 || req.DestinationIndex >= RoomCount-1:
		return apperrors.Validation("destination is required")
	}
	return nil
}

// generateVerificationCode draws a uniform 4-digit code. Collisions with
// other active deliveries are acceptable: the code is only ever compared
// against its own delivery.
func generateVerificationCode() string {
	return fmt.Sprintf("%04d", 1000+rand.Intn(9000))
}
