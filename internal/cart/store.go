package cart

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/shopspring/decimal"
)

// PersistenceStatus makes the best-effort persistence contract observable.
// Failures never reach the caller; they are counted here and logged.
type PersistenceStatus struct {
	Enabled       bool      `json:"enabled"`
	Healthy       bool      `json:"healthy"`
	Failures      int       `json:"failures"`
	LastOp        string    `json:"last_op,omitempty"`
	LastError     string    `json:"last_error,omitempty"`
	LastFailureAt time.Time `json:"last_failure_at,omitempty"`
	DroppedOnLoad int       `json:"dropped_on_load"`
}

// StoreParams groups the dependencies of a cart store.
type StoreParams struct {
	// Storage may be nil, in which case the cart lives in memory only.
	Storage SnapshotStore
	Logger  *logger.Logger
	Now     func() time.Time
}

// Store is the single source of truth for the shopper's cart.
type Store struct {
	mu      sync.Mutex
	items   []Item
	storage SnapshotStore
	logg    *logger.Logger
	now     func() time.Time
	status  PersistenceStatus
}

// NewStore builds a cart and adopts whatever valid snapshot the storage holds.
func NewStore(ctx context.Context, params StoreParams) *Store {
	s := &Store{
		storage: params.Storage,
		logg:    params.Logger,
		now:     params.Now,
		status: PersistenceStatus{
			Enabled: params.Storage != nil,
			Healthy: params.Storage != nil,
		},
	}
	if s.logg == nil {
		s.logg = logger.Nop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.restore(ctx)
	return s
}

func (s *Store) restore(ctx context.Context) {
	if s.storage == nil {
		return
	}
	data, err := s.storage.Load(ctx)
	if err != nil {
		if errors.Is(err, ErrNoSnapshot) {
			return
		}
		s.recordFailure(ctx, "load", err)
		return
	}
	items, dropped, err := decodeSnapshot(data)
	if err != nil {
		s.recordFailure(ctx, "load", err)
		return
	}
	s.items = items
	s.status.DroppedOnLoad = dropped
	if dropped > 0 {
		s.logg.Warn(s.logg.WithField(ctx, "dropped", dropped), "cart.snapshot.entries_dropped")
	}
}

// Add puts quantity units of item into the cart. The quantity is floored at 1 and the
// resulting line never exceeds the latest known stock (or DefaultStockCeiling).
func (s *Store) Add(ctx context.Context, item Item, quantity int) (Item, error) {
	item.ID = strings.TrimSpace(item.ID)
	if item.ID == "" {
		return Item{}, pkgerrors.New(pkgerrors.CodeValidation, "item id is required")
	}
	if item.UnitPrice.IsNegative() {
		return Item{}, pkgerrors.New(pkgerrors.CodeValidation, "item price cannot be negative").
			WithDetails(map[string]string{"unitPrice": "must be at least 0"})
	}
	if quantity < 1 {
		quantity = 1
	}
	if item.StockLimit < 0 {
		item.StockLimit = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if idx := s.indexOf(item.ID); idx >= 0 {
		existing := s.items[idx]
		if item.StockLimit > 0 {
			existing.StockLimit = item.StockLimit
		}
		if item.Name != "" {
			existing.Name = item.Name
		}
		if !item.UnitPrice.IsZero() {
			existing.UnitPrice = item.UnitPrice
		}
		if item.ImageRef != "" {
			existing.ImageRef = item.ImageRef
		}
		existing.Quantity = clampQuantity(existing.Quantity+quantity, existing.Ceiling())
		s.items[idx] = existing
		s.persist(ctx, "add")
		return existing, nil
	}

	item.Quantity = clampQuantity(quantity, item.Ceiling())
	s.items = append(s.items, item)
	s.persist(ctx, "add")
	return item, nil
}

// Remove deletes the line with the given id. It reports whether anything was removed.
func (s *Store) Remove(ctx context.Context, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(strings.TrimSpace(id))
	if idx < 0 {
		return false
	}
	s.items = append(s.items[:idx], s.items[idx+1:]...)
	s.persist(ctx, "remove")
	return true
}

// UpdateQuantity sets a line's quantity clamped to [1, ceiling]. It never removes the
// line; dropping an item is always an explicit Remove.
func (s *Store) UpdateQuantity(ctx context.Context, id string, quantity int) (Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(strings.TrimSpace(id))
	if idx < 0 {
		return Item{}, false
	}
	s.items[idx].Quantity = clampQuantity(quantity, s.items[idx].Ceiling())
	s.persist(ctx, "update")
	return s.items[idx], true
}

// Clear empties the cart and erases the durable snapshot.
func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = nil
	if s.storage == nil {
		return
	}
	if err := s.storage.Delete(ctx); err != nil {
		s.recordFailure(ctx, "clear", err)
		return
	}
	s.status.Healthy = true
}

// Items returns a copy of the cart lines in insertion order.
func (s *Store) Items() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Item, len(s.items))
	copy(out, s.items)
	return out
}

// Get returns the line with the given id.
func (s *Store) Get(id string) (Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(strings.TrimSpace(id))
	if idx < 0 {
		return Item{}, false
	}
	return s.items[idx], true
}

// Quantity is the line's quantity, or 0 when id is not in the cart.
func (s *Store) Quantity(id string) int {
	item, ok := s.Get(id)
	if !ok {
		return 0
	}
	return item.Quantity
}

// Len is the number of distinct lines.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Count is the total number of units across all lines.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := 0
	for _, item := range s.items {
		total += item.Quantity
	}
	return total
}

// Subtotal sums every line total.
func (s *Store) Subtotal() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := decimal.Zero
	for _, item := range s.items {
		total = total.Add(item.LineTotal())
	}
	return total
}

// Status reports the health of the durable snapshot.
func (s *Store) Status() PersistenceStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Store) indexOf(id string) int {
	for i, item := range s.items {
		if item.ID == id {
			return i
		}
	}
	return -1
}

// persist must be called with mu held.
func (s *Store) persist(ctx context.Context, op string) {
	if s.storage == nil {
		return
	}
	data, err := encodeSnapshot(s.items)
	if err != nil {
		s.recordFailure(ctx, op, err)
		return
	}
	if err := s.storage.Save(ctx, data); err != nil {
		s.recordFailure(ctx, op, err)
		return
	}
	s.status.Healthy = true
}

func (s *Store) recordFailure(ctx context.Context, op string, err error) {
	s.status.Healthy = false
	s.status.Failures++
	s.status.LastOp = op
	s.status.LastError = err.Error()
	s.status.LastFailureAt = s.now()

	ctx = s.logg.WithFields(ctx, map[string]any{
		"op":    op,
		"error": err.Error(),
	})
	s.logg.Warn(ctx, "cart.persistence.failed")
}
