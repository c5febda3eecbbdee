// Package compartment owns exclusive assignment of the robot's three
// physical compartments. Every board mutation is a compare-and-swap on the
// whole board document, so two concurrent creators can never be handed the
// same slot.
package compartment

import (
	"context"
	"errors"
	"fmt"

	"github.com/lalabot/delivery-api/internal/model"
	"github.com/lalabot/delivery-api/internal/repository"
	"github.com/lalabot/delivery-api/internal/store"
	apperrors "github.com/lalabot/delivery-api/pkg/errors"
	"github.com/lalabot/delivery-api/pkg/metrics"
)

// casRetries bounds how often a lost CAS race is retried before giving up.
const casRetries = 5

type Service struct {
	boards  repository.BoardRepository
	metrics *metrics.Metrics
}

func NewService(boards repository.BoardRepository, m *metrics.Metrics) *Service {
	return &Service{boards: boards, metrics: m}
}

// TryAcquire assigns the first free slot to deliveryID. Returns
// NoCompartmentAvailable when the board is full.
func (s *Service) TryAcquire(ctx context.Context, deliveryID string) (int, error) {
	if deliveryID == "" {
		return 0, apperrors.Validation("delivery id is required")
	}

	for attempt := 0; attempt < casRetries; attempt++ {
		board, snapshot, err := s.boards.Get(ctx)
		if err != nil {
			return 0, fmt.Errorf("failed to read compartment board: %w", err)
		}

		if slot := board.SlotOf(deliveryID); slot != 0 {
			// Re-acquire by the same delivery is idempotent.
			return slot, nil
		}

		slot := board.FirstFree()
		if slot == 0 {
			return 0, apperrors.NoCompartmentAvailable()
		}

		board.SetSlot(slot, deliveryID)
		err = s.boards.Swap(ctx, snapshot, board)
		if errors.Is(err, store.ErrCASMismatch) {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("failed to write compartment board: %w", err)
		}

		s.observeOccupancy(board.Occupied())
		return slot, nil
	}

	return 0, apperrors.Conflict("compartment board under contention, retry")
}

// Release clears whichever slot holds deliveryID. Releasing an unknown or
// already-free delivery is a no-op; a missing board is initialized empty.
func (s *Service) Release(ctx context.Context, deliveryID string) error {
	for attempt := 0; attempt < casRetries; attempt++ {
		board, snapshot, err := s.boards.Get(ctx)
		if err != nil {
			return fmt.Errorf("failed to read compartment board: %w", err)
		}

		slot := board.SlotOf(deliveryID)
		if slot == 0 && snapshot != nil {
			return nil
		}
		board.SetSlot(slot, "")

		err = s.boards.Swap(ctx, snapshot, board)
		if errors.Is(err, store.ErrCASMismatch) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to write compartment board: %w", err)
		}

		s.observeOccupancy(board.Occupied())
		return nil
	}

	return apperrors.Conflict("compartment board under contention, retry")
}

// StatusOf returns the slot currently held by deliveryID, or 0 when none.
func (s *Service) StatusOf(ctx context.Context, deliveryID string) (int, error) {
	board, _, err := s.boards.Get(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read compartment board: %w", err)
	}
	return board.SlotOf(deliveryID), nil
}

// Board returns the full board for the status screen.
func (s *Service) Board(ctx context.Context) (*model.CompartmentBoard, error) {
	board, _, err := s.boards.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read compartment board: %w", err)
	}
	return board, nil
}

func (s *Service) observeOccupancy(occupied int) {
	if s.metrics != nil {
		s.metrics.CompartmentsOccupied.Set(float64(occupied))
	}
}
