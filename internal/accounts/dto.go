package accounts

import (
	"time"

	"github.com/angelmondragon/storefront/pkg/db/models"
	"github.com/google/uuid"
)

// SignUpRequest registers a shopper. EmailRedirectTo is where the verification
// link should send them; the configured default applies when empty.
type SignUpRequest struct {
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=6,max=128"`
	EmailRedirectTo string `json:"email_redirect_to" validate:"omitempty,url"`
}

// TokenRequest exchanges credentials for a session.
type TokenRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest exchanges a refresh token for a new session.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// UserDTO is the transport shape that omits credentials.
type UserDTO struct {
	ID          uuid.UUID  `json:"id"`
	Email       string     `json:"email"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// SessionResponse is returned by the token and refresh endpoints.
type SessionResponse struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	TokenType    string   `json:"token_type"`
	ExpiresIn    int64    `json:"expires_in"`
	ExpiresAt    int64    `json:"expires_at"`
	User         *UserDTO `json:"user"`
}

// RoleRowDTO is one role grant.
type RoleRowDTO struct {
	UserID uuid.UUID `json:"user_id"`
	Role   string    `json:"role"`
}

func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}
	return &UserDTO{
		ID:          u.ID,
		Email:       u.Email,
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
	}
}

func roleRowsFromModels(rows []models.UserRole) []RoleRowDTO {
	out := make([]RoleRowDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, RoleRowDTO{UserID: row.UserID, Role: row.Role})
	}
	return out
}
