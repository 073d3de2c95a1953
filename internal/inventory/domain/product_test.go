package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProduct_Validation(t *testing.T) {
	_, err := NewProduct("p-1", "s-1", "Mug", "MUG-1", decimal.RequireFromString("-0.01"), 1)
	assert.Error(t, err)

	_, err = NewProduct("p-1", "s-1", "Mug", "MUG-1", decimal.RequireFromString("1"), -1)
	assert.Error(t, err)

	p, err := NewProduct("p-1", "s-1", "Mug", "MUG-1", decimal.RequireFromString("12.345"), 3)
	require.NoError(t, err)
	assert.Equal(t, "12.35", p.Price.StringFixed(2))
}

func TestProduct_DebitCredit(t *testing.T) {
	p := Product{ID: "p-1", Quantity: 5}

	q, err := p.Debit(3)
	require.NoError(t, err)
	assert.Equal(t, 2, q)

	q, err = p.Debit(3)
	var ise *InsufficientStockError
	require.ErrorAs(t, err, &ise)
	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.Equal(t, 2, ise.Available)
	assert.Equal(t, 3, ise.Requested)
	assert.Equal(t, 2, q)

	q, err = p.Credit(10)
	require.NoError(t, err)
	assert.Equal(t, 12, q)
	assert.Equal(t, int64(2), p.Version)
}

func TestProduct_RejectsNonPositiveAmounts(t *testing.T) {
	p := Product{ID: "p-1", Quantity: 5}

	_, err := p.Debit(0)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
	_, err = p.Credit(-1)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
	assert.Equal(t, 5, p.Quantity)
}

func TestStockMovement_Delta(t *testing.T) {
	assert.Equal(t, -2, StockMovement{Direction: DirectionDebit, Quantity: 2}.Delta())
	assert.Equal(t, 2, StockMovement{Direction: DirectionCredit, Quantity: 2}.Delta())
	assert.True(t, Availability{Requested: 2, Available: 2}.Satisfied())
}
