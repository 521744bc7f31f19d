package cart

import (
	"context"
	"errors"
	"testing"

	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocloud.dev/blob/memblob"
)

type memorySnapshots struct {
	data    []byte
	present bool
	saves   int
	deletes int
}

func (m *memorySnapshots) Load(context.Context) ([]byte, error) {
	if !m.present {
		return nil, ErrNoSnapshot
	}
	return m.data, nil
}

func (m *memorySnapshots) Save(_ context.Context, data []byte) error {
	m.data = append([]byte(nil), data...)
	m.present = true
	m.saves++
	return nil
}

func (m *memorySnapshots) Delete(context.Context) error {
	m.data = nil
	m.present = false
	m.deletes++
	return nil
}

type brokenSnapshots struct {
	loadErr error
	saveErr error
}

func (b brokenSnapshots) Load(context.Context) ([]byte, error) { return nil, b.loadErr }
func (b brokenSnapshots) Save(context.Context, []byte) error   { return b.saveErr }
func (b brokenSnapshots) Delete(context.Context) error         { return b.saveErr }

func soap(stock int) Item {
	return Item{ID: "1", Name: "Soap", UnitPrice: decimal.NewFromInt(30), StockLimit: stock}
}

func TestAddCreatesEntryWithClampedQuantity(t *testing.T) {
	ctx := context.Background()
	store := NewStore(ctx, StoreParams{Storage: &memorySnapshots{}})

	got, err := store.Add(ctx, soap(5), 0)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Quantity, "zero quantity is floored at 1")

	got, err = store.Add(ctx, Item{ID: "2", Name: "Oil", StockLimit: 3}, 10)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Quantity)

	got, err = store.Add(ctx, Item{ID: "3", Name: "Rice"}, 500)
	require.NoError(t, err)
	assert.Equal(t, DefaultStockCeiling, got.Quantity, "unknown stock falls back to the default ceiling")

	assert.Equal(t, 3, store.Len())
}

func TestAddRejectsMissingID(t *testing.T) {
	ctx := context.Background()
	store := NewStore(ctx, StoreParams{})

	_, err := store.Add(ctx, Item{ID: "  "}, 1)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Zero(t, store.Len())
}

func TestAddRejectsNegativePrice(t *testing.T) {
	ctx := context.Background()
	snapshots := &memorySnapshots{}
	store := NewStore(ctx, StoreParams{Storage: snapshots})

	_, err := store.Add(ctx, Item{ID: "9", Name: "Refund", UnitPrice: decimal.NewFromInt(-5), StockLimit: 3}, 1)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Zero(t, store.Len())
	assert.True(t, store.Subtotal().IsZero())
	assert.Zero(t, snapshots.saves)
}

func TestAddExistingClampsToStock(t *testing.T) {
	ctx := context.Background()
	store := NewStore(ctx, StoreParams{Storage: &memorySnapshots{}})

	_, err := store.Add(ctx, soap(5), 2)
	require.NoError(t, err)

	got, err := store.Add(ctx, Item{ID: "1", StockLimit: 5}, 10)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Quantity)
	assert.Equal(t, "Soap", got.Name, "missing incoming fields keep the stored ones")
	assert.Equal(t, 1, store.Len())
}

func TestAddSequenceNeverExceedsLatestStock(t *testing.T) {
	ctx := context.Background()
	store := NewStore(ctx, StoreParams{})

	stocks := []int{10, 10, 4, 0, 7, 2}
	for _, stock := range stocks {
		got, err := store.Add(ctx, Item{ID: "sku", StockLimit: stock}, 3)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, got.Quantity, 1)
		assert.LessOrEqual(t, got.Quantity, got.Ceiling())
	}
	got, ok := store.Get("sku")
	require.True(t, ok)
	assert.Equal(t, 2, got.StockLimit)
	assert.Equal(t, 2, got.Quantity)
}

func TestRemoveThenAddStartsFresh(t *testing.T) {
	ctx := context.Background()
	store := NewStore(ctx, StoreParams{Storage: &memorySnapshots{}})

	_, err := store.Add(ctx, soap(10), 4)
	require.NoError(t, err)
	assert.True(t, store.Remove(ctx, "1"))
	assert.False(t, store.Remove(ctx, "1"), "second remove is a no-op")

	got, err := store.Add(ctx, soap(10), 2)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Quantity)
	assert.Equal(t, 1, store.Len())
}

func TestUpdateQuantity(t *testing.T) {
	ctx := context.Background()
	store := NewStore(ctx, StoreParams{Storage: &memorySnapshots{}})
	_, err := store.Add(ctx, soap(5), 2)
	require.NoError(t, err)

	got, ok := store.UpdateQuantity(ctx, "1", 9)
	require.True(t, ok)
	assert.Equal(t, 5, got.Quantity)

	got, ok = store.UpdateQuantity(ctx, "1", 0)
	require.True(t, ok)
	assert.Equal(t, 1, got.Quantity, "update never removes the line")

	got, ok = store.UpdateQuantity(ctx, "1", -4)
	require.True(t, ok)
	assert.Equal(t, 1, got.Quantity)
	assert.Equal(t, 1, store.Len())
}

func TestUpdateQuantityUnknownIDLeavesCartUnchanged(t *testing.T) {
	ctx := context.Background()
	snapshots := &memorySnapshots{}
	store := NewStore(ctx, StoreParams{Storage: snapshots})
	_, err := store.Add(ctx, soap(5), 2)
	require.NoError(t, err)
	before := store.Items()
	saves := snapshots.saves

	_, ok := store.UpdateQuantity(ctx, "missing", 3)
	assert.False(t, ok)
	assert.Equal(t, before, store.Items())
	assert.Equal(t, saves, snapshots.saves, "no-op must not rewrite the snapshot")
}

func TestClearRemovesSnapshot(t *testing.T) {
	ctx := context.Background()
	snapshots := &memorySnapshots{}
	store := NewStore(ctx, StoreParams{Storage: snapshots})
	_, err := store.Add(ctx, soap(5), 2)
	require.NoError(t, err)
	require.True(t, snapshots.present)

	store.Clear(ctx)
	assert.Zero(t, store.Len())
	assert.False(t, snapshots.present)
	assert.Equal(t, 1, snapshots.deletes)
}

func TestSnapshotRoundTripDropsEntriesWithoutStringID(t *testing.T) {
	ctx := context.Background()
	snapshots := &memorySnapshots{}
	first := NewStore(ctx, StoreParams{Storage: snapshots})
	_, err := first.Add(ctx, soap(5), 2)
	require.NoError(t, err)
	_, err = first.Add(ctx, Item{ID: "7", Name: "Tea", UnitPrice: decimal.RequireFromString("12.5"), StockLimit: 3, ImageRef: "tea.png"}, 1)
	require.NoError(t, err)

	reloaded := NewStore(ctx, StoreParams{Storage: snapshots})
	assert.Equal(t, first.Items(), reloaded.Items())

	snapshots.data = []byte(`[
		{"id":"1","name":"Soap","unitPrice":"30","quantity":2,"stockLimit":5},
		{"id":42,"name":"Numeric id","quantity":1},
		{"name":"No id","quantity":1},
		{"id":"","name":"Empty id","quantity":1},
		{"id":"1","name":"Duplicate","quantity":3}
	]`)
	filtered := NewStore(ctx, StoreParams{Storage: snapshots})
	items := filtered.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "Soap", items[0].Name)
	assert.Equal(t, 4, filtered.Status().DroppedOnLoad)
}

func TestSnapshotIDsAreTrimmedOnLoad(t *testing.T) {
	ctx := context.Background()
	snapshots := &memorySnapshots{present: true, data: []byte(`[
		{"id":" 1 ","name":"Soap","unitPrice":"30","quantity":1,"stockLimit":5},
		{"id":"1","name":"Soap again","unitPrice":"30","quantity":1,"stockLimit":5},
		{"id":"2","name":"Broken","unitPrice":"-4","quantity":1,"stockLimit":5}
	]`)}
	store := NewStore(ctx, StoreParams{Storage: snapshots})

	require.Equal(t, 1, store.Len())
	assert.Equal(t, 2, store.Status().DroppedOnLoad)
	item, ok := store.Get("1")
	require.True(t, ok)
	assert.Equal(t, "1", item.ID)

	_, err := store.Add(ctx, soap(5), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, store.Len())
	assert.Equal(t, 2, store.Quantity("1"))

	assert.True(t, store.Remove(ctx, "1"))
	assert.Zero(t, store.Len())
}

func TestCorruptSnapshotFallsBackToEmptyCart(t *testing.T) {
	ctx := context.Background()
	snapshots := &memorySnapshots{data: []byte("{not json"), present: true}

	store := NewStore(ctx, StoreParams{Storage: snapshots})
	assert.Zero(t, store.Len())
	status := store.Status()
	assert.False(t, status.Healthy)
	assert.Equal(t, "load", status.LastOp)
	assert.Equal(t, 1, status.Failures)
}

func TestPersistenceFailuresAreSwallowed(t *testing.T) {
	ctx := context.Background()
	store := NewStore(ctx, StoreParams{Storage: brokenSnapshots{
		loadErr: errors.New("storage disabled"),
		saveErr: errors.New("quota exceeded"),
	}})

	_, err := store.Add(ctx, soap(5), 2)
	require.NoError(t, err)
	assert.Equal(t, 2, store.Count())

	store.Clear(ctx)
	assert.Zero(t, store.Len())

	status := store.Status()
	assert.True(t, status.Enabled)
	assert.False(t, status.Healthy)
	assert.Equal(t, 3, status.Failures)
	assert.Equal(t, "clear", status.LastOp)
	assert.Equal(t, "quota exceeded", status.LastError)
}

func TestSubtotalAndCount(t *testing.T) {
	ctx := context.Background()
	store := NewStore(ctx, StoreParams{})
	_, err := store.Add(ctx, soap(5), 2)
	require.NoError(t, err)
	_, err = store.Add(ctx, Item{ID: "2", Name: "Tea", UnitPrice: decimal.RequireFromString("12.5"), StockLimit: 9}, 3)
	require.NoError(t, err)

	assert.Equal(t, 5, store.Count())
	assert.Equal(t, 2, store.Len())
	assert.Equal(t, 3, store.Quantity("2"))
	assert.Equal(t, 0, store.Quantity("missing"))
	assert.True(t, decimal.RequireFromString("97.5").Equal(store.Subtotal()))
}

func TestItemFromProduct(t *testing.T) {
	item := ItemFromProduct(types.Product{ID: 12, Name: "Ghee", Price: decimal.NewFromInt(450), Stock: 4, Image: "ghee.jpg"})
	assert.Equal(t, "12", item.ID)
	assert.Equal(t, 1, item.Quantity)
	assert.Equal(t, 4, item.StockLimit)
	assert.Equal(t, "ghee.jpg", item.ImageRef)
}

func TestBlobSnapshotStore(t *testing.T) {
	ctx := context.Background()
	bucket := memblob.OpenBucket(nil)
	defer bucket.Close()

	snapshots, err := NewBlobSnapshotStore(bucket, "")
	require.NoError(t, err)

	_, err = snapshots.Load(ctx)
	assert.ErrorIs(t, err, ErrNoSnapshot)
	require.NoError(t, snapshots.Delete(ctx), "deleting a missing snapshot is not an error")

	store := NewStore(ctx, StoreParams{Storage: snapshots})
	_, err = store.Add(ctx, soap(5), 3)
	require.NoError(t, err)

	exists, err := bucket.Exists(ctx, SnapshotKey)
	require.NoError(t, err)
	assert.True(t, exists)

	reloaded := NewStore(ctx, StoreParams{Storage: snapshots})
	assert.Equal(t, store.Items(), reloaded.Items())

	reloaded.Clear(ctx)
	exists, err = bucket.Exists(ctx, SnapshotKey)
	require.NoError(t, err)
	assert.False(t, exists)
	assert.True(t, reloaded.Status().Healthy)
}
