package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lalabot/delivery-api/internal/model"
	"github.com/lalabot/delivery-api/internal/repository"
	"github.com/lalabot/delivery-api/internal/store"
)

const boardPath = "robot_status/currentDeliveries"

type boardRepository struct {
	store store.Store
}

func NewBoardRepository(s store.Store) repository.BoardRepository {
	return &boardRepository{store: s}
}

func (r *boardRepository) Get(ctx context.Context) (*model.CompartmentBoard, []byte, error) {
	raw, err := r.store.Get(ctx, boardPath)
	if errors.Is(err, store.ErrNotFound) {
		// Board not created yet; callers swap against a nil snapshot.
		return &model.CompartmentBoard{}, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}

	var board model.CompartmentBoard
	if err := json.Unmarshal(raw, &board); err != nil {
		return nil, nil, fmt.Errorf("failed to unmarshal compartment board: %w", err)
	}
	return &board, raw, nil
}

func (r *boardRepository) Swap(ctx context.Context, snapshot []byte, board *model.CompartmentBoard) error {
	raw, err := json.Marshal(board)
	if err != nil {
		return fmt.Errorf("failed to marshal compartment board: %w", err)
	}
	return r.store.CompareAndSwap(ctx, boardPath, snapshot, raw)
}
