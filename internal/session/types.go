package session

import (
	"context"
	"time"

	"github.com/angelmondragon/storefront/pkg/enums"
)

// Session is the identity the auth service currently holds for this client.
type Session struct {
	UserID      string
	Email       string
	AccessToken string
	ExpiresAt   time.Time
}

// Listener receives auth-change notifications. session is nil after sign-out.
type Listener func(event enums.AuthEvent, session *Session)

// AuthService is the remote sign-up/sign-in/session boundary.
type AuthService interface {
	OnAuthStateChange(fn Listener) (unsubscribe func())
	GetSession(ctx context.Context) (*Session, error)
	SignUp(ctx context.Context, email, password, redirectTo string) error
	SignIn(ctx context.Context, email, password string) (*Session, error)
	SignOut(ctx context.Context) error
}

// RoleSource returns the raw role rows recorded for a user.
type RoleSource interface {
	FetchRoles(ctx context.Context, userID string) ([]string, error)
}

// State is what the rest of the client sees of the current identity.
type State struct {
	UserID  string     `json:"user_id,omitempty"`
	Email   string     `json:"email,omitempty"`
	Role    enums.Role `json:"role"`
	Loading bool       `json:"loading"`
}

// SignedIn reports whether an identity is present.
func (s State) SignedIn() bool {
	return s.UserID != ""
}

// Result is the outcome of sign-up/in/out. Error is empty on success and otherwise a
// short message suitable for display next to the triggering action.
type Result struct {
	Error string `json:"error,omitempty"`
}

// OK reports whether the call succeeded.
func (r Result) OK() bool {
	return r.Error == ""
}
