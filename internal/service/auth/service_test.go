package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/lalabot/delivery-api/internal/model"
	"github.com/lalabot/delivery-api/internal/repository/docstore"
	"github.com/lalabot/delivery-api/internal/store/memory"
	jwtauth "github.com/lalabot/delivery-api/pkg/auth"
	apperrors "github.com/lalabot/delivery-api/pkg/errors"
	"github.com/lalabot/delivery-api/pkg/security"
)

type fakeEmail struct {
	resets []string
	codes  []string
	err    error
}

func (f *fakeEmail) SendPasswordReset(_ context.Context, to, code string) error {
	if f.err != nil {
		return f.err
	}
	f.resets = append(f.resets, to)
	f.codes = append(f.codes, code)
	return nil
}

func (f *fakeEmail) SendCustom(context.Context, string, string, string) error {
	return nil
}

func newTestService(emailSvc *fakeEmail) *Service {
	repo := docstore.NewUserRepository(memory.NewStore())
	jwtSvc := jwtauth.NewJWTService(jwtauth.JWTConfig{
		Secret:             "test-secret",
		RefreshSecret:      "test-refresh-secret",
		ExpiryHours:        1,
		RefreshExpiryHours: 24,
	})
	return NewService(repo, jwtSvc, security.NewBcryptHasher(bcrypt.MinCost), emailSvc, zerolog.Nop())
}

func registerRequest() *model.RegisterRequest {
	return &model.RegisterRequest{
		Username: "alice",
		Email:    "alice@example.edu",
		Password: "correct-horse",
	}
}

func TestRegisterAndLogin(t *testing.T) {
	svc := newTestService(&fakeEmail{})
	ctx := context.Background()

	user, err := svc.Register(ctx, registerRequest())
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.NotEmpty(t, user.PasswordHash)
	assert.NotEqual(t, "correct-horse", user.PasswordHash)

	tokens, err := svc.Login(ctx, &model.LoginRequest{
		Email:    "alice@example.edu",
		Password: "correct-horse",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, tokens.AccessToken)
	assert.NotEmpty(t, tokens.RefreshToken)
	assert.Equal(t, int64(3600), tokens.ExpiresIn)

	claims, err := svc.ValidateToken(tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, "alice@example.edu", claims.Email)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc := newTestService(&fakeEmail{})
	ctx := context.Background()

	_, err := svc.Register(ctx, registerRequest())
	require.NoError(t, err)

	_, err = svc.Register(ctx, registerRequest())
	assert.True(t, apperrors.IsCode(err, apperrors.ErrConflict))
}

func TestLoginWrongPassword(t *testing.T) {
	svc := newTestService(&fakeEmail{})
	ctx := context.Background()

	_, err := svc.Register(ctx, registerRequest())
	require.NoError(t, err)

	_, err = svc.Login(ctx, &model.LoginRequest{
		Email:    "alice@example.edu",
		Password: "wrong",
	})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrUnauthorized))

	_, err = svc.Login(ctx, &model.LoginRequest{
		Email:    "nobody@example.edu",
		Password: "correct-horse",
	})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrUnauthorized))
}

func TestRefresh(t *testing.T) {
	svc := newTestService(&fakeEmail{})
	ctx := context.Background()

	_, err := svc.Register(ctx, registerRequest())
	require.NoError(t, err)
	tokens, err := svc.Login(ctx, &model.LoginRequest{
		Email:    "alice@example.edu",
		Password: "correct-horse",
	})
	require.NoError(t, err)

	refreshed, err := svc.Refresh(ctx, tokens.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed.AccessToken)

	// An access token is not a valid refresh token.
	_, err = svc.Refresh(ctx, tokens.AccessToken)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrUnauthorized))
}

func TestRequestPasswordReset(t *testing.T) {
	emailSvc := &fakeEmail{}
	svc := newTestService(emailSvc)
	ctx := context.Background()

	_, err := svc.Register(ctx, registerRequest())
	require.NoError(t, err)

	require.NoError(t, svc.RequestPasswordReset(ctx, "alice@example.edu"))
	assert.Equal(t, []string{"alice@example.edu"}, emailSvc.resets)

	// Unknown addresses report success so accounts cannot be probed.
	require.NoError(t, svc.RequestPasswordReset(ctx, "nobody@example.edu"))
	assert.Len(t, emailSvc.resets, 1)
}

func TestConfirmPasswordReset(t *testing.T) {
	emailSvc := &fakeEmail{}
	svc := newTestService(emailSvc)
	ctx := context.Background()

	_, err := svc.Register(ctx, registerRequest())
	require.NoError(t, err)
	require.NoError(t, svc.RequestPasswordReset(ctx, "alice@example.edu"))
	require.Len(t, emailSvc.codes, 1)

	err = svc.ConfirmPasswordReset(ctx, &model.ConfirmResetRequest{
		Email:       "alice@example.edu",
		Code:        emailSvc.codes[0],
		NewPassword: "battery-staple",
	})
	require.NoError(t, err)

	// The old password stops working, the new one logs in.
	_, err = svc.Login(ctx, &model.LoginRequest{
		Email:    "alice@example.edu",
		Password: "correct-horse",
	})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrUnauthorized))

	_, err = svc.Login(ctx, &model.LoginRequest{
		Email:    "alice@example.edu",
		Password: "battery-staple",
	})
	require.NoError(t, err)

	// The code is single use.
	err = svc.ConfirmPasswordReset(ctx, &model.ConfirmResetRequest{
		Email:       "alice@example.edu",
		Code:        emailSvc.codes[0],
		NewPassword: "yet-another-pass",
	})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrUnauthorized))
}

func TestConfirmPasswordResetRejectsBadCode(t *testing.T) {
	emailSvc := &fakeEmail{}
	svc := newTestService(emailSvc)
	ctx := context.Background()

	_, err := svc.Register(ctx, registerRequest())
	require.NoError(t, err)
	require.NoError(t, svc.RequestPasswordReset(ctx, "alice@example.edu"))

	wrong := "000000"
	if emailSvc.codes[0] == wrong {
		wrong = "000001"
	}
	err = svc.ConfirmPasswordReset(ctx, &model.ConfirmResetRequest{
		Email:       "alice@example.edu",
		Code:        wrong,
		NewPassword: "battery-staple",
	})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrUnauthorized))

	err = svc.ConfirmPasswordReset(ctx, &model.ConfirmResetRequest{
		Email:       "nobody@example.edu",
		Code:        emailSvc.codes[0],
		NewPassword: "battery-staple",
	})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrUnauthorized))

	// A failed attempt must not leave the account in a changed state.
	_, err = svc.Login(ctx, &model.LoginRequest{
		Email:    "alice@example.edu",
		Password: "correct-horse",
	})
	require.NoError(t, err)
}

func TestRequestPasswordResetEmailFailure(t *testing.T) {
	emailSvc := &fakeEmail{err: errors.New("smtp down")}
	svc := newTestService(emailSvc)
	ctx := context.Background()

	_, err := svc.Register(ctx, registerRequest())
	require.NoError(t, err)

	err = svc.RequestPasswordReset(ctx, "alice@example.edu")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrRemoteUnavailable))
}
