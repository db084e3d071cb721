package inbound

import (
	"context"
	"time"
)

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	// Email holds either an email address or a username.
	Email    string `json:"email"`
	Password string `json:"password"`
	ClientIP string `json:"-"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// UserResponse is the public view of a user; it never carries the hash.
type UserResponse struct {
	ID        string    `json:"_id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionResponse is returned by register, login and refresh.
type SessionResponse struct {
	User             UserResponse
	AccessToken      string
	RefreshToken     string
	AccessExpiresIn  int
	RefreshExpiresIn int
}

type AuthUseCase interface {
	Register(ctx context.Context, req RegisterRequest) (*SessionResponse, error)
	Login(ctx context.Context, req LoginRequest) (*SessionResponse, error)
	Refresh(ctx context.Context, req RefreshRequest) (*SessionResponse, error)
	Profile(ctx context.Context, userID string) (*UserResponse, error)
	// Authenticate verifies an access token and loads its user.
	Authenticate(ctx context.Context, token string) (*UserResponse, error)
}
