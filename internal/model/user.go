package model

import "time"

// User is the account record stored under users/{id}.
type User struct {
	ID                 string     `json:"-"`
	Username           string     `json:"username"`
	Email              string     `json:"email"`
	PasswordHash       string     `json:"passwordHash,omitempty"`
	ProfileAvatarIndex int        `json:"profileAvatarIndex"`
	CustomAvatarURL    string     `json:"customAvatarUrl,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
	LastLoginAt        *time.Time `json:"lastLoginAt,omitempty"`
}

// Public strips credential fields for API responses.
func (u *User) Public() *PublicUser {
	return &PublicUser{
		ID:                 u.ID,
		Username:           u.Username,
		Email:              u.Email,
		ProfileAvatarIndex: u.ProfileAvatarIndex,
		CustomAvatarURL:    u.CustomAvatarURL,
	}
}

type PublicUser struct {
	ID                 string `json:"id"`
	Username           string `json:"username"`
	Email              string `json:"email"`
	ProfileAvatarIndex int    `json:"profile_avatar_index"`
	CustomAvatarURL    string `json:"custom_avatar_url,omitempty"`
}

type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=32"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type ResetPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type ConfirmResetRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Code        string `json:"code" binding:"required,len=6,numeric"`
	NewPassword string `json:"new_password" binding:"required,min=8"`
}

type UpdateAvatarRequest struct {
	AvatarIndex *int   `json:"avatar_index" binding:"omitempty,min=0"`
	ImageBase64 string `json:"image_base64"`
}

type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

type TokenClaims struct {
	UserID string
	Email  string
}
