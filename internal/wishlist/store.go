package wishlist

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/angelmondragon/storefront/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/logger"
)

// ErrLoginRequired is returned by Add when nobody is signed in.
var ErrLoginRequired = pkgerrors.New(pkgerrors.CodeUnauthorized, "login required")

// Op names a wishlist request.
type Op string

const (
	OpFetch  Op = "fetch"
	OpAdd    Op = "add"
	OpRemove Op = "remove"
)

// Request is the state of the latest wishlist call.
type Request struct {
	Op        Op                 `json:"op"`
	ProductID int64              `json:"product_id,omitempty"`
	State     enums.RequestState `json:"state"`
	Err       string             `json:"error,omitempty"`
	At        time.Time          `json:"at"`
}

// StoreParams groups the dependencies of a Store.
type StoreParams struct {
	Table  Table
	Logger *logger.Logger
	Now    func() time.Time
}

// Store keeps the signed-in user's favorites. Local state only changes after the
// remote table confirms.
type Store struct {
	table Table
	logg  *logger.Logger
	now   func() time.Time

	mu    sync.Mutex
	owner string
	items []Row
	last  Request
}

func NewStore(params StoreParams) (*Store, error) {
	if params.Table == nil {
		return nil, fmt.Errorf("wishlist table is required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Store{
		table: params.Table,
		logg:  logg,
		now:   now,
		last:  Request{State: enums.RequestStateIdle},
	}, nil
}

// Fetch replaces local state with the user's rows. Without a user, or when the
// remote call fails, local state becomes empty.
func (s *Store) Fetch(ctx context.Context, userID string) []Row {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		s.mu.Lock()
		s.owner, s.items = "", nil
		s.mu.Unlock()
		return nil
	}

	s.begin(OpFetch, 0)
	rows, err := s.table.List(ctx, userID)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.owner = userID
	if err != nil {
		s.items = nil
		s.finish(ctx, err)
		return nil
	}
	s.items = append([]Row(nil), rows...)
	s.finish(ctx, nil)
	return s.snapshot()
}

// Add inserts productID and prepends the confirmed row. Already-present products are a no-op.
func (s *Store) Add(ctx context.Context, userID string, productID int64) (Row, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Row{}, ErrLoginRequired
	}

	s.mu.Lock()
	s.adopt(userID)
	if row, ok := s.find(productID); ok {
		s.mu.Unlock()
		return row, nil
	}
	s.mu.Unlock()

	s.begin(OpAdd, productID)
	row, err := s.table.Insert(ctx, userID, productID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.finish(ctx, err)
		return Row{}, err
	}
	if s.owner == userID {
		if existing, ok := s.find(productID); ok {
			s.finish(ctx, nil)
			return existing, nil
		}
		s.items = append([]Row{row}, s.items...)
	}
	s.finish(ctx, nil)
	return row, nil
}

// Remove deletes productID for the user. Missing users and absent products are a no-op.
func (s *Store) Remove(ctx context.Context, userID string, productID int64) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil
	}

	s.mu.Lock()
	s.adopt(userID)
	_, ok := s.find(productID)
	s.mu.Unlock()
	if !ok {
		return nil
	}

	s.begin(OpRemove, productID)
	err := s.table.Delete(ctx, userID, productID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.finish(ctx, err)
		return err
	}
	if s.owner == userID {
		kept := s.items[:0:0]
		for _, row := range s.items {
			if row.ProductID != productID {
				kept = append(kept, row)
			}
		}
		s.items = kept
	}
	s.finish(ctx, nil)
	return nil
}

// Items returns the rows, newest first.
func (s *Store) Items() []Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// Contains reports whether productID is on the list.
func (s *Store) Contains(productID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.find(productID)
	return ok
}

// LastRequest returns the state of the most recent remote call.
func (s *Store) LastRequest() Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func (s *Store) begin(op Op, productID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = Request{Op: op, ProductID: productID, State: enums.RequestStatePending, At: s.now()}
}

// finish must be called with s.mu held.
func (s *Store) finish(ctx context.Context, err error) {
	s.last.At = s.now()
	fields := map[string]any{"op": string(s.last.Op), "product_id": s.last.ProductID}
	if err != nil {
		s.last.State = enums.RequestStateFailed
		s.last.Err = pkgerrors.UserMessage(err)
		fields["error"] = err.Error()
		s.logg.Warn(s.logg.WithFields(ctx, fields), "wishlist.request.failed")
		return
	}
	s.last.State = enums.RequestStateFulfilled
	s.last.Err = ""
	s.logg.Debug(s.logg.WithFields(ctx, fields), "wishlist.request.fulfilled")
}

// adopt drops rows that belong to a previous identity.
func (s *Store) adopt(userID string) {
	if s.owner != userID {
		s.owner = userID
		s.items = nil
	}
}

func (s *Store) find(productID int64) (Row, bool) {
	for _, row := range s.items {
		if row.ProductID == productID {
			return row, true
		}
	}
	return Row{}, false
}

func (s *Store) snapshot() []Row {
	return append([]Row(nil), s.items...)
}
