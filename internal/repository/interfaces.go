package repository

import (
	"context"

	"github.com/lalabot/delivery-api/internal/model"
)

type DeliveryRepository interface {
	Create(ctx context.Context, delivery *model.Delivery) error
	Get(ctx context.Context, id string) (*model.Delivery, error)
	Update(ctx context.Context, delivery *model.Delivery) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*model.Delivery, error)
}

// BoardRepository reads and conditionally replaces the compartment board.
// Get returns the board together with the raw snapshot it was decoded from;
// Swap succeeds only if the stored document still equals that snapshot, so
// read-modify-write cycles on the board are race-free. A nil snapshot means
// the board document does not exist yet.
type BoardRepository interface {
	Get(ctx context.Context) (*model.CompartmentBoard, []byte, error)
	Swap(ctx context.Context, snapshot []byte, board *model.CompartmentBoard) error
}

type NotificationRepository interface {
	Create(ctx context.Context, userID string, notification *model.Notification) error
	ListForUser(ctx context.Context, userID string) ([]*model.Notification, error)
	MarkRead(ctx context.Context, userID, key string) error
	Delete(ctx context.Context, userID, key string) error
}

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	Get(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	Update(ctx context.Context, user *model.User) error
	List(ctx context.Context) ([]*model.User, error)
}

// HistoryRepository is the immutable archive for terminal deliveries.
type HistoryRepository interface {
	Archive(ctx context.Context, delivery *model.Delivery) error
	Get(ctx context.Context, id string) (*model.Delivery, error)
	ListForUser(ctx context.Context, userID string) ([]*model.Delivery, error)
	List(ctx context.Context) ([]*model.Delivery, error)
}
