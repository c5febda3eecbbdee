package auth

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	"github.com/lalabot/delivery-api/internal/email"
	"github.com/lalabot/delivery-api/internal/model"
	"github.com/lalabot/delivery-api/internal/repository"
	"github.com/lalabot/delivery-api/pkg/auth"
	apperrors "github.com/lalabot/delivery-api/pkg/errors"
	"github.com/lalabot/delivery-api/pkg/security"
)

const resetCodeTTL = 15 * time.Minute

type Service struct {
	users      repository.UserRepository
	jwtSvc     auth.JWTService
	hasher     security.PasswordHasher
	emailSvc   email.Service
	resetCodes *cache.Cache
	logger     zerolog.Logger
}

func NewService(
	users repository.UserRepository,
	jwtSvc auth.JWTService,
	hasher security.PasswordHasher,
	emailSvc email.Service,
	logger zerolog.Logger,
) *Service {
	return &Service{
		users:      users,
		jwtSvc:     jwtSvc,
		hasher:     hasher,
		emailSvc:   emailSvc,
		resetCodes: cache.New(resetCodeTTL, 2*resetCodeTTL),
		logger:     logger,
	}
}

func (s *Service) Register(ctx context.Context, req *model.RegisterRequest) (*model.User, error) {
	if _, err := s.users.GetByEmail(ctx, req.Email); err == nil {
		return nil, apperrors.Conflict("email already registered")
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, apperrors.Validation(err.Error())
	}

	user := &model.User{
		ID:           uuid.New().String(),
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

func (s *Service) Login(ctx context.Context, req *model.LoginRequest) (*model.TokenResponse, error) {
	user, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		return nil, apperrors.Unauthorized("invalid credentials")
	}

	if err := s.hasher.Compare(user.PasswordHash, req.Password); err != nil {
		return nil, apperrors.Unauthorized("invalid credentials")
	}

	now := time.Now().UTC()
	user.LastLoginAt = &now
	if err := s.users.Update(ctx, user); err != nil {
		s.logger.Error().Err(err).Str("user_id", user.ID).Msg("failed to update login timestamp")
	}

	return s.generateTokens(user)
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (*model.TokenResponse, error) {
	claims, err := s.jwtSvc.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, apperrors.Unauthorized("invalid refresh token")
	}
	user, err := s.users.Get(ctx, claims.UserID)
	if err != nil {
		return nil, apperrors.Unauthorized("invalid refresh token")
	}
	return s.generateTokens(user)
}

// RequestPasswordReset mails a short-lived reset code. An unknown email is
// reported as success so the endpoint cannot be used to probe accounts.
func (s *Service) RequestPasswordReset(ctx context.Context, emailAddr string) error {
	user, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		return nil
	}

	code := fmt.Sprintf("%06d", rand.Intn(1000000))
	s.resetCodes.Set("reset:"+user.ID, code, resetCodeTTL)

	if err := s.emailSvc.SendPasswordReset(ctx, user.Email, code); err != nil {
		return apperrors.RemoteUnavailable(fmt.Errorf("failed to send reset email: %w", err))
	}
	return nil
}

// ConfirmPasswordReset exchanges an emailed code for a new password. The
// code is single use; a wrong or expired code reports the same error as an
// unknown email.
func (s *Service) ConfirmPasswordReset(ctx context.Context, req *model.ConfirmResetRequest) error {
	user, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		return apperrors.Unauthorized("invalid reset code")
	}

	cached, ok := s.resetCodes.Get("reset:" + user.ID)
	if !ok || cached.(string) != req.Code {
		return apperrors.Unauthorized("invalid reset code")
	}

	hash, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		return apperrors.Validation(err.Error())
	}
	user.PasswordHash = hash
	if err := s.users.Update(ctx, user); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	s.resetCodes.Delete("reset:" + user.ID)
	return nil
}

func (s *Service) ValidateToken(token string) (*model.TokenClaims, error) {
	return s.jwtSvc.ValidateToken(token)
}

func (s *Service) generateTokens(user *model.User) (*model.TokenResponse, error) {
	access, err := s.jwtSvc.GenerateAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}
	refresh, err := s.jwtSvc.GenerateRefreshToken(user)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}
	return &model.TokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.jwtSvc.AccessExpiry().Seconds()),
	}, nil
}
