package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	redislib "github.com/redis/go-redis/v9"
)

type mockStore struct {
	mu   sync.Mutex
	data map[string]string
}

func newMockStore() *mockStore {
	return &mockStore{data: make(map[string]string)}
}

func (m *mockStore) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = fmt.Sprint(value)
	return nil
}

func (m *mockStore) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	val, ok := m.data[key]
	if !ok {
		return "", redislib.Nil
	}
	return val, nil
}

func (m *mockStore) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

func (m *mockStore) AccessSessionKey(accessID string) string {
	return fmt.Sprintf("sess:access:%s", accessID)
}

func (m *mockStore) RefreshSessionKey(tokenHash string) string {
	return fmt.Sprintf("sess:refresh:%s", tokenHash)
}

func (m *mockStore) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}

func newTestManager() (*Manager, *mockStore) {
	store := newMockStore()
	return &Manager{store: store, keyer: store, ttl: time.Hour}, store
}

func TestManagerIssueAndRotate(t *testing.T) {
	manager, store := newTestManager()
	ctx := context.Background()

	grant, err := manager.Issue(ctx, "user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if grant.UserID != "user-1" || grant.AccessID == "" || grant.RefreshToken == "" {
		t.Fatalf("unexpected grant %+v", grant)
	}
	if store.size() != 2 {
		t.Fatalf("expected access and refresh keys, got %d entries", store.size())
	}
	if _, ok := store.data[store.RefreshSessionKey(grant.RefreshToken)]; ok {
		t.Fatalf("refresh token must not be stored in clear")
	}

	if _, err := manager.Rotate(ctx, "wrong"); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected invalid refresh token error, got %v", err)
	}

	rotated, err := manager.Rotate(ctx, grant.RefreshToken)
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if rotated.UserID != "user-1" || rotated.AccessID == grant.AccessID {
		t.Fatalf("unexpected rotated grant %+v", rotated)
	}
	if ok, _ := manager.HasSession(ctx, grant.AccessID); ok {
		t.Fatalf("old access session left behind")
	}
	if ok, _ := manager.HasSession(ctx, rotated.AccessID); !ok {
		t.Fatalf("expected new access session")
	}
	if _, err := manager.Rotate(ctx, grant.RefreshToken); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("old refresh token must not rotate twice, got %v", err)
	}
	if store.size() != 2 {
		t.Fatalf("expected only the rotated session, got %d entries", store.size())
	}
}

func TestManagerRevoke(t *testing.T) {
	manager, store := newTestManager()
	ctx := context.Background()

	grant, err := manager.Issue(ctx, "user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if err := manager.Revoke(ctx, grant.AccessID); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if store.size() != 0 {
		t.Fatalf("expected all keys removed, got %d", store.size())
	}
	if _, err := manager.Rotate(ctx, grant.RefreshToken); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("revoked refresh token should be invalid, got %v", err)
	}
	if err := manager.Revoke(ctx, grant.AccessID); err != nil {
		t.Fatalf("second revoke should be a no-op, got %v", err)
	}
	if err := manager.Revoke(ctx, " "); err == nil {
		t.Fatalf("expected error for empty access id")
	}
}

func TestManagerIssueRequiresUser(t *testing.T) {
	manager, _ := newTestManager()
	if _, err := manager.Issue(context.Background(), ""); err == nil {
		t.Fatalf("expected error for empty user id")
	}
}

func TestHasSessionUnknown(t *testing.T) {
	manager, _ := newTestManager()
	ok, err := manager.HasSession(context.Background(), "missing")
	if err != nil || ok {
		t.Fatalf("expected no session, got ok=%v err=%v", ok, err)
	}
}
