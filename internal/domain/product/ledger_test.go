package product

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColumns(t *testing.T) {
	cols, err := Columns(nil)
	require.NoError(t, err)
	assert.Nil(t, cols)

	cols, err = Columns([]string{"price", "quantityInStock", "price", "id"})
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "price", "quantity_in_stock"}, cols)

	_, err = Columns([]string{"price", "password"})
	assert.True(t, errors.Is(err, ErrUnknownField))
}

func TestProduct_Orderable(t *testing.T) {
	p := Product{Price: decimal.NewFromInt(10), QuantityInStock: 2, MaxOrderQuantity: 5}

	assert.True(t, p.Orderable(2))
	assert.False(t, p.Orderable(3), "above stock")
	assert.False(t, p.Orderable(0))

	p.QuantityInStock = 100
	assert.False(t, p.Orderable(6), "above per-order limit")
}
