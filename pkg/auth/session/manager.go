package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/storefront/pkg/config"
	redisclient "github.com/angelmondragon/storefront/pkg/redis"
	"github.com/google/uuid"
	redislib "github.com/redis/go-redis/v9"
)

const refreshTokenBytes = 32

var ErrInvalidRefreshToken = errors.New("invalid refresh token")

type sessionStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
}

type sessionKeyer interface {
	AccessSessionKey(accessID string) string
	RefreshSessionKey(tokenHash string) string
}

// Grant is a freshly issued access id (the JWT jti) and its refresh token.
type Grant struct {
	AccessID     string
	RefreshToken string
	UserID       string
}

type record struct {
	AccessID  string `json:"access_id"`
	UserID    string `json:"user_id"`
	TokenHash string `json:"token_hash"`
}

// Manager handles refresh token creation, storage, and rotation. Refresh tokens
// are stored hashed; the access key and the refresh key point at the same record.
type Manager struct {
	store sessionStore
	keyer sessionKeyer
	ttl   time.Duration
}

// AccessSessionChecker exposes the read-only surface needed by middleware.
type AccessSessionChecker interface {
	HasSession(ctx context.Context, accessID string) (bool, error)
}

// NewManager constructs a session manager backed by Redis.
func NewManager(client *redisclient.Client, cfg config.JWTConfig) (*Manager, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	ttl := cfg.RefreshTokenTTL()
	if ttl <= 0 {
		return nil, fmt.Errorf("refresh token ttl must be positive")
	}
	accessTTL := time.Duration(cfg.ExpirationMinutes) * time.Minute
	if ttl <= accessTTL {
		return nil, fmt.Errorf("refresh token ttl (%s) must exceed access token ttl (%s)", ttl, accessTTL)
	}

	return &Manager{
		store: client,
		keyer: client,
		ttl:   ttl,
	}, nil
}

// Issue opens a new session for userID.
func (m *Manager) Issue(ctx context.Context, userID string) (Grant, error) {
	if strings.TrimSpace(userID) == "" {
		return Grant{}, fmt.Errorf("user id is required")
	}
	return m.issue(ctx, userID)
}

// Rotate exchanges a refresh token for a new grant and invalidates the old session.
func (m *Manager) Rotate(ctx context.Context, provided string) (Grant, error) {
	provided = strings.TrimSpace(provided)
	if provided == "" {
		return Grant{}, ErrInvalidRefreshToken
	}

	rec, err := m.load(ctx, m.keyer.RefreshSessionKey(hashToken(provided)))
	if err != nil {
		return Grant{}, err
	}

	grant, err := m.issue(ctx, rec.UserID)
	if err != nil {
		return Grant{}, err
	}
	if err := m.drop(ctx, rec); err != nil {
		return Grant{}, err
	}
	return grant, nil
}

// Revoke deletes the session tied to the access identifier. Unknown ids are not an error.
func (m *Manager) Revoke(ctx context.Context, accessID string) error {
	if strings.TrimSpace(accessID) == "" {
		return fmt.Errorf("access id is required")
	}
	rec, err := m.load(ctx, m.keyer.AccessSessionKey(accessID))
	if errors.Is(err, ErrInvalidRefreshToken) {
		return nil
	}
	if err != nil {
		return err
	}
	return m.drop(ctx, rec)
}

// HasSession reports whether the provided access ID still has an active refresh session.
func (m *Manager) HasSession(ctx context.Context, accessID string) (bool, error) {
	if strings.TrimSpace(accessID) == "" {
		return false, fmt.Errorf("access id is required")
	}
	if _, err := m.store.Get(ctx, m.keyer.AccessSessionKey(accessID)); err != nil {
		if errors.Is(err, redislib.Nil) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// NewAccessID produces a stable identifier used as the JWT jti/Redis key.
func NewAccessID() string {
	return uuid.NewString()
}

func (m *Manager) issue(ctx context.Context, userID string) (Grant, error) {
	token, err := generateRefreshToken()
	if err != nil {
		return Grant{}, err
	}
	rec := record{AccessID: NewAccessID(), UserID: userID, TokenHash: hashToken(token)}
	payload, err := json.Marshal(rec)
	if err != nil {
		return Grant{}, fmt.Errorf("encoding session: %w", err)
	}
	if err := m.store.Set(ctx, m.keyer.AccessSessionKey(rec.AccessID), string(payload), m.ttl); err != nil {
		return Grant{}, err
	}
	if err := m.store.Set(ctx, m.keyer.RefreshSessionKey(rec.TokenHash), string(payload), m.ttl); err != nil {
		return Grant{}, err
	}
	return Grant{AccessID: rec.AccessID, RefreshToken: token, UserID: userID}, nil
}

func (m *Manager) load(ctx context.Context, key string) (record, error) {
	raw, err := m.store.Get(ctx, key)
	if err != nil {
		return record{}, wrapNotFound(err)
	}
	var rec record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil || rec.AccessID == "" {
		return record{}, ErrInvalidRefreshToken
	}
	return rec, nil
}

func (m *Manager) drop(ctx context.Context, rec record) error {
	return m.store.Del(ctx, m.keyer.AccessSessionKey(rec.AccessID), m.keyer.RefreshSessionKey(rec.TokenHash))
}

func generateRefreshToken() (string, error) {
	bytes := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("generating refresh token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func wrapNotFound(err error) error {
	if errors.Is(err, redislib.Nil) || errors.Is(err, ErrInvalidRefreshToken) {
		return ErrInvalidRefreshToken
	}
	return err
}
