package storeapi

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"
)

// SessionKey is the record the signed-in tokens are kept under.
const SessionKey = "session.json"

// StoredSession is the locally persisted token pair.
type StoredSession struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	UserID       string    `json:"user_id"`
	Email        string    `json:"email"`
}

// TokenStore persists the session between runs. Load returns nil when nothing is stored.
type TokenStore interface {
	Load(ctx context.Context) (*StoredSession, error)
	Save(ctx context.Context, s StoredSession) error
	Delete(ctx context.Context) error
}

// BlobTokenStore keeps the session as one JSON object in a gocloud bucket.
type BlobTokenStore struct {
	bucket *blob.Bucket
	key    string
}

// NewBlobTokenStore wraps an opened bucket. An empty key falls back to SessionKey.
func NewBlobTokenStore(bucket *blob.Bucket, key string) (*BlobTokenStore, error) {
	if bucket == nil {
		return nil, fmt.Errorf("bucket is required")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		key = SessionKey
	}
	return &BlobTokenStore{bucket: bucket, key: key}, nil
}

func (s *BlobTokenStore) Load(ctx context.Context) (*StoredSession, error) {
	data, err := s.bucket.ReadAll(ctx, s.key)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("read session: %w", err)
	}
	var stored StoredSession
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if stored.AccessToken == "" {
		return nil, nil
	}
	return &stored, nil
}

func (s *BlobTokenStore) Save(ctx context.Context, stored StoredSession) error {
	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.bucket.WriteAll(ctx, s.key, data, &blob.WriterOptions{ContentType: "application/json"}); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

func (s *BlobTokenStore) Delete(ctx context.Context) error {
	if err := s.bucket.Delete(ctx, s.key); err != nil && gcerrors.Code(err) != gcerrors.NotFound {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// MemoryTokenStore forgets the session when the process exits.
type MemoryTokenStore struct {
	mu      sync.Mutex
	session *StoredSession
}

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{}
}

func (m *MemoryTokenStore) Load(context.Context) (*StoredSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil, nil
	}
	copied := *m.session
	return &copied, nil
}

func (m *MemoryTokenStore) Save(_ context.Context, s StoredSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = &s
	return nil
}

func (m *MemoryTokenStore) Delete(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = nil
	return nil
}
