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

const usersPath = "users"

type userRepository struct {
	store store.Store
}

func NewUserRepository(s store.Store) repository.UserRepository {
	return &userRepository{store: s}
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	raw, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}
	err = r.store.CompareAndSwap(ctx, usersPath+"/"+user.ID, nil, raw)
	if errors.Is(err, store.ErrCASMismatch) {
		return apperrors.Conflict("user already exists")
	}
	return err
}

func (r *userRepository) Get(ctx context.Context, id string) (*model.User, error) {
	raw, err := r.store.Get(ctx, usersPath+"/"+id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperrors.NotFound("user")
	}
	if err != nil {
		return nil, err
	}

	var user model.User
	if err := json.Unmarshal(raw, &user); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user %s: %w", id, err)
	}
	user.ID = id
	return &user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	users, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, user := range users {
		if user.Email == email {
			return user, nil
		}
	}
	return nil, apperrors.NotFound("user")
}

func (r *userRepository) Update(ctx context.Context, user *model.User) error {
	raw, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}
	return r.store.Set(ctx, usersPath+"/"+user.ID, raw)
}

func (r *userRepository) List(ctx context.Context) ([]*model.User, error) {
	children, err := r.store.List(ctx, usersPath)
	if err != nil {
		return nil, err
	}

	users := make([]*model.User, 0, len(children))
	for id, raw := range children {
		var user model.User
		if err := json.Unmarshal(raw, &user); err != nil {
			return nil, fmt.Errorf("failed to unmarshal user %s: %w", id, err)
		}
		user.ID = id
		users = append(users, &user)
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].Username < users[j].Username
	})
	return users, nil
}
