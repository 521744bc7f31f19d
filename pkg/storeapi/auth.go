package storeapi

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/angelmondragon/storefront/internal/session"
	"github.com/angelmondragon/storefront/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
)

// refreshSkew refreshes access tokens slightly before they expire.
const refreshSkew = 30 * time.Second

var (
	_ session.AuthService = (*Client)(nil)
	_ session.RoleSource  = (*Client)(nil)
)

type listener struct {
	id int
	fn session.Listener
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	User         *struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}

func (t tokenResponse) stored(now time.Time) StoredSession {
	expires := time.Unix(t.ExpiresAt, 0).UTC()
	if t.ExpiresAt == 0 {
		expires = now.Add(time.Duration(t.ExpiresIn) * time.Second).UTC()
	}
	out := StoredSession{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		ExpiresAt:    expires,
	}
	if t.User != nil {
		out.UserID = t.User.ID
		out.Email = t.User.Email
	}
	return out
}

func toSession(s *StoredSession) *session.Session {
	if s == nil {
		return nil
	}
	return &session.Session{
		UserID:      s.UserID,
		Email:       s.Email,
		AccessToken: s.AccessToken,
		ExpiresAt:   s.ExpiresAt,
	}
}

// OnAuthStateChange registers fn for SIGNED_IN, SIGNED_OUT and TOKEN_REFRESHED events.
func (c *Client) OnAuthStateChange(fn session.Listener) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.listeners = append(c.listeners, listener{id: id, fn: fn})
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, l := range c.listeners {
			if l.id == id {
				c.listeners = append(c.listeners[:i], c.listeners[i+1:]...)
				return
			}
		}
	}
}

func (c *Client) emit(event enums.AuthEvent, s *session.Session) {
	c.mu.Lock()
	listeners := make([]listener, len(c.listeners))
	copy(listeners, c.listeners)
	c.mu.Unlock()
	for _, l := range listeners {
		l.fn(event, s)
	}
}

// GetSession returns the stored session, refreshing it first when the access token is
// about to expire. A rejected refresh clears the stored session and reports none.
func (c *Client) GetSession(ctx context.Context) (*session.Session, error) {
	stored, err := c.tokens.Load(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load stored session")
	}
	if stored == nil {
		return nil, nil
	}
	if c.now().Add(refreshSkew).Before(stored.ExpiresAt) {
		return toSession(stored), nil
	}
	return c.refresh(ctx, stored)
}

func (c *Client) refresh(ctx context.Context, stored *StoredSession) (*session.Session, error) {
	var resp tokenResponse
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/refresh",
		body:   map[string]string{"refresh_token": stored.RefreshToken},
	}, &resp)
	if pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized) {
		c.logg.Info(c.logg.WithUserID(ctx, stored.UserID), "storeapi.session.expired")
		if delErr := c.tokens.Delete(ctx); delErr != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, delErr, "clear stored session")
		}
		c.emit(enums.AuthEventSignedOut, nil)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	next := resp.stored(c.now())
	if next.UserID == "" {
		next.UserID, next.Email = stored.UserID, stored.Email
	}
	if err := c.tokens.Save(ctx, next); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store refreshed session")
	}
	current := toSession(&next)
	c.emit(enums.AuthEventTokenRefreshed, current)
	return current, nil
}

// SignUp registers an account; redirectTo is where the verification e-mail links back to.
func (c *Client) SignUp(ctx context.Context, email, password, redirectTo string) error {
	body := map[string]string{"email": email, "password": password}
	if redirectTo = strings.TrimSpace(redirectTo); redirectTo != "" {
		body["email_redirect_to"] = redirectTo
	}
	return c.do(ctx, request{method: http.MethodPost, path: "/auth/v1/signup", body: body}, nil)
}

// SignIn exchanges credentials for a session and persists it.
func (c *Client) SignIn(ctx context.Context, email, password string) (*session.Session, error) {
	var resp tokenResponse
	if err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/token",
		body:   map[string]string{"email": email, "password": password},
	}, &resp); err != nil {
		return nil, err
	}

	stored := resp.stored(c.now())
	if err := c.tokens.Save(ctx, stored); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store session")
	}
	current := toSession(&stored)
	c.emit(enums.AuthEventSignedIn, current)
	return current, nil
}

// SignOut revokes the remote session and forgets the local one. A session the server
// no longer knows is still cleared locally.
func (c *Client) SignOut(ctx context.Context) error {
	stored, err := c.tokens.Load(ctx)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load stored session")
	}
	if stored != nil {
		err := c.do(ctx, request{method: http.MethodPost, path: "/auth/v1/logout", token: stored.AccessToken}, nil)
		if err != nil && !pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized) {
			return err
		}
	}
	if err := c.tokens.Delete(ctx); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear stored session")
	}
	c.emit(enums.AuthEventSignedOut, nil)
	return nil
}

// AccessToken returns a valid bearer token or an unauthorized error.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	current, err := c.GetSession(ctx)
	if err != nil {
		return "", err
	}
	if current == nil {
		return "", pkgerrors.New(pkgerrors.CodeUnauthorized, "login required")
	}
	return current.AccessToken, nil
}

// tokenFor returns the bearer token of userID's session. Acting for anyone other than
// the signed-in user is refused before any request goes out.
func (c *Client) tokenFor(ctx context.Context, userID string) (string, error) {
	current, err := c.GetSession(ctx)
	if err != nil {
		return "", err
	}
	if current == nil {
		return "", pkgerrors.New(pkgerrors.CodeUnauthorized, "login required")
	}
	if userID = strings.TrimSpace(userID); userID != "" && userID != current.UserID {
		return "", pkgerrors.New(pkgerrors.CodeForbidden, "session belongs to another user")
	}
	return current.AccessToken, nil
}

// FetchRoles lists the role rows recorded for userID.
func (c *Client) FetchRoles(ctx context.Context, userID string) ([]string, error) {
	token, err := c.AccessToken(ctx)
	if err != nil {
		return nil, err
	}
	var rows []struct {
		UserID string `json:"user_id"`
		Role   string `json:"role"`
	}
	if err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/rest/v1/user_roles",
		query:  url.Values{"user_id": {"eq." + userID}},
		token:  token,
	}, &rows); err != nil {
		return nil, err
	}
	roles := make([]string, 0, len(rows))
	for _, row := range rows {
		roles = append(roles, row.Role)
	}
	return roles, nil
}

// CurrentUser fetches the account behind the stored session.
func (c *Client) CurrentUser(ctx context.Context) (User, error) {
	token, err := c.AccessToken(ctx)
	if err != nil {
		return User{}, err
	}
	var user User
	if err := c.do(ctx, request{method: http.MethodGet, path: "/auth/v1/user", token: token}, &user); err != nil {
		return User{}, err
	}
	return user, nil
}

// User is the account record returned by /auth/v1/user.
type User struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	LastLoginAt *time.Time `json:"last_login_at"`
	CreatedAt   time.Time  `json:"created_at"`
}
