package favorites

import (
	"context"
	"testing"
	"time"

	"github.com/angelmondragon/storefront/pkg/db/dbtest"
	"github.com/angelmondragon/storefront/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ticker struct {
	at time.Time
}

func (t *ticker) now() time.Time {
	t.at = t.at.Add(time.Second)
	return t.at
}

func setup(t *testing.T, products int) (Service, []int64) {
	t.Helper()
	client := dbtest.Open(t)
	ids := make([]int64, 0, products)
	for i := 0; i < products; i++ {
		row := models.Product{Name: "Item", Price: decimal.NewFromInt(10), Stock: 5}
		require.NoError(t, client.DB().Create(&row).Error)
		ids = append(ids, row.ID)
	}
	clock := &ticker{at: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	svc, err := NewService(NewRepository(client.DB()), clock.now)
	require.NoError(t, err)
	return svc, ids
}

func TestAddAndListNewestFirst(t *testing.T) {
	svc, ids := setup(t, 3)
	ctx := context.Background()
	user := uuid.New()

	for _, id := range ids {
		_, err := svc.Add(ctx, user, id)
		require.NoError(t, err)
	}

	rows, err := svc.List(ctx, user)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, ids[2], rows[0].ProductID)
	assert.Equal(t, ids[0], rows[2].ProductID)
	for _, row := range rows {
		assert.Equal(t, user, row.UserID)
	}
}

func TestAddDuplicateConflicts(t *testing.T) {
	svc, ids := setup(t, 1)
	ctx := context.Background()
	user := uuid.New()

	_, err := svc.Add(ctx, user, ids[0])
	require.NoError(t, err)

	_, err = svc.Add(ctx, user, ids[0])
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	// another user may like the same product
	_, err = svc.Add(ctx, uuid.New(), ids[0])
	require.NoError(t, err)
}

func TestAddUnknownProduct(t *testing.T) {
	svc, _ := setup(t, 0)
	_, err := svc.Add(context.Background(), uuid.New(), 404)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestRemoveIsScopedToUser(t *testing.T) {
	svc, ids := setup(t, 1)
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()

	_, err := svc.Add(ctx, alice, ids[0])
	require.NoError(t, err)
	_, err = svc.Add(ctx, bob, ids[0])
	require.NoError(t, err)

	require.NoError(t, svc.Remove(ctx, alice, ids[0]))
	require.NoError(t, svc.Remove(ctx, alice, ids[0]))

	rows, err := svc.List(ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, rows)

	rows, err = svc.List(ctx, bob)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestRequiresUser(t *testing.T) {
	svc, ids := setup(t, 1)
	ctx := context.Background()

	_, err := svc.List(ctx, uuid.Nil)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
	_, err = svc.Add(ctx, uuid.Nil, ids[0])
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
	assert.True(t, pkgerrors.IsCode(svc.Remove(ctx, uuid.Nil, ids[0]), pkgerrors.CodeUnauthorized))
}
