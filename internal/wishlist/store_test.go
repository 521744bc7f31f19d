package wishlist

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/angelmondragon/storefront/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTable struct {
	mu        sync.Mutex
	rows      map[string][]Row
	listErr   error
	insertErr error
	deleteErr error
	calls     int
	seq       int
}

func newFakeTable() *fakeTable {
	return &fakeTable{rows: map[string][]Row{}}
}

func (f *fakeTable) List(_ context.Context, userID string) ([]Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]Row(nil), f.rows[userID]...), nil
}

func (f *fakeTable) Insert(_ context.Context, userID string, productID int64) (Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.insertErr != nil {
		return Row{}, f.insertErr
	}
	f.seq++
	row := Row{
		ID:        fmt.Sprintf("w-%d", f.seq),
		UserID:    userID,
		ProductID: productID,
		CreatedAt: time.Date(2026, 1, 1, 0, f.seq, 0, 0, time.UTC),
	}
	f.rows[userID] = append([]Row{row}, f.rows[userID]...)
	return row, nil
}

func (f *fakeTable) Delete(_ context.Context, userID string, productID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.deleteErr != nil {
		return f.deleteErr
	}
	kept := f.rows[userID][:0:0]
	for _, row := range f.rows[userID] {
		if row.ProductID != productID {
			kept = append(kept, row)
		}
	}
	f.rows[userID] = kept
	return nil
}

func (f *fakeTable) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newTestStore(t *testing.T, table Table) *Store {
	t.Helper()
	s, err := NewStore(StoreParams{Table: table})
	require.NoError(t, err)
	return s
}

func productIDs(rows []Row) []int64 {
	out := make([]int64, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.ProductID)
	}
	return out
}

func TestNewStoreRequiresTable(t *testing.T) {
	_, err := NewStore(StoreParams{})
	assert.Error(t, err)
}

func TestFetchWithoutUserClearsLocally(t *testing.T) {
	table := newFakeTable()
	table.rows["u-1"] = []Row{{ID: "a", UserID: "u-1", ProductID: 7}}
	s := newTestStore(t, table)

	require.Len(t, s.Fetch(context.Background(), "u-1"), 1)
	calls := table.callCount()

	assert.Empty(t, s.Fetch(context.Background(), ""))
	assert.Empty(t, s.Items())
	assert.Equal(t, calls, table.callCount())
}

func TestFetchReplacesWholesale(t *testing.T) {
	table := newFakeTable()
	table.rows["u-1"] = []Row{{ID: "b", ProductID: 2}, {ID: "a", ProductID: 1}}
	s := newTestStore(t, table)

	rows := s.Fetch(context.Background(), "u-1")
	assert.Equal(t, []int64{2, 1}, productIDs(rows))

	table.rows["u-1"] = []Row{{ID: "c", ProductID: 3}}
	s.Fetch(context.Background(), "u-1")
	assert.Equal(t, []int64{3}, productIDs(s.Items()))
	assert.Equal(t, enums.RequestStateFulfilled, s.LastRequest().State)
}

func TestFetchErrorResultsInEmpty(t *testing.T) {
	table := newFakeTable()
	table.rows["u-1"] = []Row{{ID: "a", ProductID: 1}}
	s := newTestStore(t, table)
	s.Fetch(context.Background(), "u-1")

	table.listErr = errors.New("connection refused")
	assert.Empty(t, s.Fetch(context.Background(), "u-1"))
	assert.Empty(t, s.Items())

	last := s.LastRequest()
	assert.Equal(t, OpFetch, last.Op)
	assert.Equal(t, enums.RequestStateFailed, last.State)
	assert.Equal(t, "connection refused", last.Err)
}

func TestAddRequiresLogin(t *testing.T) {
	table := newFakeTable()
	s := newTestStore(t, table)

	_, err := s.Add(context.Background(), " ", 5)
	assert.ErrorIs(t, err, ErrLoginRequired)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
	assert.Equal(t, "login required", pkgerrors.UserMessage(err))
	assert.Zero(t, table.callCount())
	assert.Equal(t, enums.RequestStateIdle, s.LastRequest().State)
}

func TestAddPrependsConfirmedRow(t *testing.T) {
	table := newFakeTable()
	s := newTestStore(t, table)
	ctx := context.Background()
	s.Fetch(ctx, "u-1")

	_, err := s.Add(ctx, "u-1", 1)
	require.NoError(t, err)
	row, err := s.Add(ctx, "u-1", 2)
	require.NoError(t, err)

	assert.Equal(t, int64(2), row.ProductID)
	assert.Equal(t, []int64{2, 1}, productIDs(s.Items()))
	assert.True(t, s.Contains(1))

	last := s.LastRequest()
	assert.Equal(t, OpAdd, last.Op)
	assert.Equal(t, int64(2), last.ProductID)
	assert.Equal(t, enums.RequestStateFulfilled, last.State)
}

func TestAddPresentProductIsNoop(t *testing.T) {
	table := newFakeTable()
	s := newTestStore(t, table)
	ctx := context.Background()
	s.Fetch(ctx, "u-1")
	first, err := s.Add(ctx, "u-1", 9)
	require.NoError(t, err)
	calls := table.callCount()

	again, err := s.Add(ctx, "u-1", 9)
	require.NoError(t, err)
	assert.Equal(t, first, again)
	assert.Equal(t, calls, table.callCount())
	assert.Len(t, s.Items(), 1)
}

func TestAddFailureLeavesStateUnchanged(t *testing.T) {
	table := newFakeTable()
	s := newTestStore(t, table)
	ctx := context.Background()
	s.Fetch(ctx, "u-1")
	_, err := s.Add(ctx, "u-1", 1)
	require.NoError(t, err)

	table.insertErr = pkgerrors.New(pkgerrors.CodeConflict, "already in wishlist")
	_, err = s.Add(ctx, "u-1", 2)
	require.Error(t, err)

	assert.Equal(t, []int64{1}, productIDs(s.Items()))
	last := s.LastRequest()
	assert.Equal(t, enums.RequestStateFailed, last.State)
	assert.Equal(t, "already in wishlist", last.Err)
}

func TestRemove(t *testing.T) {
	table := newFakeTable()
	s := newTestStore(t, table)
	ctx := context.Background()
	s.Fetch(ctx, "u-1")
	for _, id := range []int64{1, 2, 3} {
		_, err := s.Add(ctx, "u-1", id)
		require.NoError(t, err)
	}

	require.NoError(t, s.Remove(ctx, "u-1", 2))
	assert.Equal(t, []int64{3, 1}, productIDs(s.Items()))
	assert.Equal(t, OpRemove, s.LastRequest().Op)
}

func TestRemoveNoops(t *testing.T) {
	table := newFakeTable()
	s := newTestStore(t, table)
	ctx := context.Background()
	s.Fetch(ctx, "u-1")
	calls := table.callCount()

	assert.NoError(t, s.Remove(ctx, "", 1))
	assert.NoError(t, s.Remove(ctx, "u-1", 404))
	assert.Equal(t, calls, table.callCount())
}

func TestRemoveFailureLeavesStateUnchanged(t *testing.T) {
	table := newFakeTable()
	s := newTestStore(t, table)
	ctx := context.Background()
	s.Fetch(ctx, "u-1")
	_, err := s.Add(ctx, "u-1", 1)
	require.NoError(t, err)

	table.deleteErr = errors.New("timeout")
	err = s.Remove(ctx, "u-1", 1)
	assert.EqualError(t, err, "timeout")
	assert.True(t, s.Contains(1))
	assert.Equal(t, enums.RequestStateFailed, s.LastRequest().State)
}

func TestSwitchingUserDropsPreviousRows(t *testing.T) {
	table := newFakeTable()
	s := newTestStore(t, table)
	ctx := context.Background()
	s.Fetch(ctx, "u-1")
	_, err := s.Add(ctx, "u-1", 1)
	require.NoError(t, err)

	_, err = s.Add(ctx, "u-2", 5)
	require.NoError(t, err)
	assert.Equal(t, []int64{5}, productIDs(s.Items()))
}
