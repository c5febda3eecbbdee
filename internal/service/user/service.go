package user

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/lalabot/delivery-api/internal/imagehost"
	"github.com/lalabot/delivery-api/internal/model"
	"github.com/lalabot/delivery-api/internal/repository"
	apperrors "github.com/lalabot/delivery-api/pkg/errors"
)

// AvatarCount is the number of built-in avatar images shipped with the app.
const AvatarCount = 10

type Service struct {
	users    repository.UserRepository
	uploader imagehost.Uploader
}

func NewService(users repository.UserRepository, uploader imagehost.Uploader) *Service {
	return &Service{users: users, uploader: uploader}
}

func (s *Service) Get(ctx context.Context, id string) (*model.User, error) {
	return s.users.Get(ctx, id)
}

// Search returns users matching the query by username or email, excluding
// the requesting user, capped at limit. An empty query returns nothing.
func (s *Service) Search(ctx context.Context, requesterID, query string, limit int) ([]*model.PublicUser, error) {
	if strings.TrimSpace(query) == "" {
		return []*model.PublicUser{}, nil
	}
	if limit <= 0 {
		limit = 5
	}

	users, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	query = strings.ToLower(query)
	matches := make([]*model.PublicUser, 0, limit)
	for _, u := range users {
		if u.ID == requesterID {
			continue
		}
		if strings.Contains(strings.ToLower(u.Username), query) ||
			strings.Contains(strings.ToLower(u.Email), query) {
			matches = append(matches, u.Public())
			if len(matches) == limit {
				break
			}
		}
	}
	return matches, nil
}

// UpdateAvatar sets either a built-in avatar index or uploads a custom
// image and stores its hosted URL. A custom image wins over the index.
func (s *Service) UpdateAvatar(ctx context.Context, userID string, req *model.UpdateAvatarRequest) (*model.User, error) {
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	switch {
	case req.ImageBase64 != "":
		image, err := decodeImage(req.ImageBase64)
		if err != nil {
			return nil, err
		}
		url, err := s.uploader.Upload(ctx, image)
		if err != nil {
			return nil, apperrors.RemoteUnavailable(fmt.Errorf("avatar upload failed: %w", err))
		}
		user.CustomAvatarURL = url
	case req.AvatarIndex != nil:
		if *req.AvatarIndex < 0 || *req.AvatarIndex >= AvatarCount {
			return nil, apperrors.Validation("avatar index out of range")
		}
		user.ProfileAvatarIndex = *req.AvatarIndex
		user.CustomAvatarURL = ""
	default:
		return nil, apperrors.Validation("avatar index or image is required")
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return user, nil
}

// AvatarSource resolves what the client should render: the custom URL when
// set, otherwise the built-in asset for the stored index, falling back to
// the default avatar for out-of-range values.
func AvatarSource(user *model.User) string {
	if user.CustomAvatarURL != "" {
		return user.CustomAvatarURL
	}
	if user.ProfileAvatarIndex < 0 || user.ProfileAvatarIndex >= AvatarCount {
		return "avatar_0.png"
	}
	return fmt.Sprintf("avatar_%d.png", user.ProfileAvatarIndex)
}

func decodeImage(encoded string) ([]byte, error) {
	// Accept data-URL prefixes from mobile clients.
	if idx := strings.Index(encoded, ","); idx != -1 && strings.HasPrefix(encoded, "data:") {
		encoded = encoded[idx+1:]
	}
	image, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, apperrors.Validation("image is not valid base64")
	}
	return image, nil
}
