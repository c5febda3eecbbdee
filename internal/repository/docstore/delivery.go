// Package docstore implements the repositories over the hierarchical
// document store, using the same tree layout the mobile clients read.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/lalabot/delivery-api/internal/model"
	"github.com/lalabot/delivery-api/internal/repository"
	"github.com/lalabot/delivery-api/internal/store"
	apperrors "github.com/lalabot/delivery-api/pkg/errors"
)

const deliveriesPath = "delivery_requests"

type deliveryRepository struct {
	store store.Store
}

func NewDeliveryRepository(s store.Store) repository.DeliveryRepository {
	return &deliveryRepository{store: s}
}

func (r *deliveryRepository) Create(ctx context.Context, delivery *model.Delivery) error {
	raw, err := json.Marshal(delivery)
	if err != nil {
		return fmt.Errorf("failed to marshal delivery: %w", err)
	}
	// Guard against ID collisions from concurrent creators in the same second.
	err = r.store.CompareAndSwap(ctx, deliveriesPath+"/"+delivery.ID, nil, raw)
	if errors.Is(err, store.ErrCASMismatch) {
		return apperrors.Conflict("delivery id already exists")
	}
	return err
}

func (r *deliveryRepository) Get(ctx context.Context, id string) (*model.Delivery, error) {
	raw, err := r.store.Get(ctx, deliveriesPath+"/"+id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperrors.NotFound("delivery")
	}
	if err != nil {
		return nil, err
	}

	var delivery model.Delivery
	if err := json.Unmarshal(raw, &delivery); err != nil {
		return nil, fmt.Errorf("failed to unmarshal delivery %s: %w", id, err)
	}
	return &delivery, nil
}

func (r *deliveryRepository) Update(ctx context.Context, delivery *model.Delivery) error {
	raw, err := json.Marshal(delivery)
	if err != nil {
		return fmt.Errorf("failed to marshal delivery: %w", err)
	}
	return r.store.Set(ctx, deliveriesPath+"/"+delivery.ID, raw)
}

func (r *deliveryRepository) Delete(ctx context.Context, id string) error {
	return r.store.Delete(ctx, deliveriesPath+"/"+id)
}

func (r *deliveryRepository) List(ctx context.Context) ([]*model.Delivery, error) {
	children, err := r.store.List(ctx, deliveriesPath)
	if err != nil {
		return nil, err
	}

	deliveries := make([]*model.Delivery, 0, len(children))
	for id, raw := range children {
		var delivery model.Delivery
		if err := json.Unmarshal(raw, &delivery); err != nil {
			return nil, fmt.Errorf("failed to unmarshal delivery %s: %w", id, err)
		}
		deliveries = append(deliveries, &delivery)
	}
	sort.Slice(deliveries, func(i, j int) bool {
		return deliveries[i].CreatedAt.Before(deliveries[j].CreatedAt)
	})
	return deliveries, nil
}
