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

const notificationsPath = "notifications"

type notificationRepository struct {
	store store.Store
}

func NewNotificationRepository(s store.Store) repository.NotificationRepository {
	return &notificationRepository{store: s}
}

func notificationPath(userID, key string) string {
	return fmt.Sprintf("%s/%s/%s", notificationsPath, userID, key)
}

func (r *notificationRepository) Create(ctx context.Context, userID string, notification *model.Notification) error {
	raw, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	return r.store.Set(ctx, notificationPath(userID, notification.Key), raw)
}

func (r *notificationRepository) ListForUser(ctx context.Context, userID string) ([]*model.Notification, error) {
	children, err := r.store.List(ctx, notificationsPath+"/"+userID)
	if err != nil {
		return nil, err
	}

	notifications := make([]*model.Notification, 0, len(children))
	for key, raw := range children {
		var n model.Notification
		if err := json.Unmarshal(raw, &n); err != nil {
			return nil, fmt.Errorf("failed to unmarshal notification %s: %w", key, err)
		}
		n.Key = key
		notifications = append(notifications, &n)
	}
	sort.Slice(notifications, func(i, j int) bool {
		return notifications[i].Timestamp.Before(notifications[j].Timestamp)
	})
	return notifications, nil
}

func (r *notificationRepository) MarkRead(ctx context.Context, userID, key string) error {
	path := notificationPath(userID, key)
	raw, err := r.store.Get(ctx, path)
	if errors.Is(err, store.ErrNotFound) {
		return apperrors.NotFound("notification")
	}
	if err != nil {
		return err
	}

	var n model.Notification
	if err := json.Unmarshal(raw, &n); err != nil {
		return fmt.Errorf("failed to unmarshal notification %s: %w", key, err)
	}
	if n.Read {
		return nil
	}
	n.Read = true

	updated, err := json.Marshal(&n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	return r.store.Set(ctx, path, updated)
}

func (r *notificationRepository) Delete(ctx context.Context, userID, key string) error {
	return r.store.Delete(ctx, notificationPath(userID, key))
}
