// internal/auth/models.go
// Request/response DTOs for the auth and profile HTTP surface.

package auth

import "github.com/kiekchat/realtime-core/internal/store"

type RegisterRequest struct {
	Username    string `json:"username" validate:"required,alphanum,min=3,max=32"`
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8"`
	DisplayName string `json:"displayName" validate:"required,min=1,max=64"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type UpdateProfileRequest struct {
	DisplayName *string `json:"displayName" validate:"omitempty,min=1,max=64"`
	Bio         *string `json:"bio" validate:"omitempty,max=280"`
	AvatarURL   *string `json:"avatarUrl"`
}

// TokenPair is what register/login/refresh return alongside the user.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type AuthResponse struct {
	User   *store.WithEmail `json:"user"`
	Tokens TokenPair        `json:"tokens"`
}
