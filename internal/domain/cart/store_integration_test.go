//go:build integration

package cart_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/storefront-backend/internal/domain/cart"
	"github.com/your-org/storefront-backend/internal/domain/product"
	"github.com/your-org/storefront-backend/internal/testinfra"
)

func TestGormStore(t *testing.T) {
	db := testinfra.NewPostgres(t)
	ctx := context.Background()

	require.NoError(t, db.Create(&[]product.Product{
		{ID: 1, Title: "Mug", Price: decimal.RequireFromString("12.50"), QuantityInStock: 5, MaxOrderQuantity: 5},
		{ID: 2, Title: "Tee", Price: decimal.RequireFromString("20.00"), QuantityInStock: 5, MaxOrderQuantity: 5},
		{ID: 3, Title: "Cap", Price: decimal.RequireFromString("9.99"), QuantityInStock: 5, MaxOrderQuantity: 5},
	}).Error)

	store := cart.NewStore(db)

	t.Run("upsert replaces quantity", func(t *testing.T) {
		testinfra.Truncate(t, db, "cart_lines")

		require.NoError(t, store.Upsert(ctx, 10, 1, 4))
		require.NoError(t, store.Upsert(ctx, 10, 1, 2))

		lines, err := store.Lines(ctx, 10)
		require.NoError(t, err)
		require.Len(t, lines, 1)
		assert.Equal(t, 2, lines[0].Quantity)
	})

	t.Run("entries join products in line order", func(t *testing.T) {
		testinfra.Truncate(t, db, "cart_lines")

		require.NoError(t, store.Upsert(ctx, 10, 2, 1))
		require.NoError(t, store.Upsert(ctx, 10, 1, 3))

		entries, err := store.Entries(ctx, 10)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, uint(2), entries[0].ProductID)
		assert.Equal(t, "Tee", entries[0].Title)
		assert.True(t, entries[1].Price.Equal(decimal.RequireFromString("12.5")))

		empty, err := store.Entries(ctx, 99)
		require.NoError(t, err)
		assert.NotNil(t, empty)
		assert.Empty(t, empty)
	})

	t.Run("bulk insert and counts", func(t *testing.T) {
		testinfra.Truncate(t, db, "cart_lines")

		require.NoError(t, store.Upsert(ctx, 10, 1, 9))
		require.NoError(t, store.BulkInsert(ctx, 10, []cart.LineInput{
			{ProductID: 1, Quantity: 2},
			{ProductID: 3, Quantity: 4},
		}))

		lines, err := store.Count(ctx, 10, false)
		require.NoError(t, err)
		assert.Equal(t, 2, lines)

		total, err := store.Count(ctx, 10, true)
		require.NoError(t, err)
		assert.Equal(t, 6, total)

		zero, err := store.Count(ctx, 77, true)
		require.NoError(t, err)
		assert.Zero(t, zero)
	})

	t.Run("delete and clear", func(t *testing.T) {
		testinfra.Truncate(t, db, "cart_lines")

		require.NoError(t, store.Upsert(ctx, 10, 1, 1))
		require.NoError(t, store.Upsert(ctx, 10, 2, 1))
		require.NoError(t, store.Upsert(ctx, 11, 2, 1))

		require.NoError(t, store.Delete(ctx, 10, 1))
		n, err := store.Count(ctx, 10, false)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		require.NoError(t, store.Clear(ctx, 10))
		n, err = store.Count(ctx, 10, false)
		require.NoError(t, err)
		assert.Zero(t, n)

		n, err = store.Count(ctx, 11, false)
		require.NoError(t, err)
		assert.Equal(t, 1, n, "other carts untouched")
	})

	t.Run("schema rejects non-positive quantity", func(t *testing.T) {
		testinfra.Truncate(t, db, "cart_lines")
		assert.Error(t, store.Upsert(ctx, 10, 1, 0))
	})

	t.Run("lines follow product deletion", func(t *testing.T) {
		testinfra.Truncate(t, db, "cart_lines")

		require.NoError(t, db.Create(&product.Product{ID: 50, Title: "Gone", Price: decimal.NewFromInt(1), QuantityInStock: 1, MaxOrderQuantity: 1}).Error)
		require.NoError(t, store.Upsert(ctx, 10, 50, 1))
		require.NoError(t, db.Delete(&product.Product{}, 50).Error)

		n, err := store.Count(ctx, 10, false)
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}
