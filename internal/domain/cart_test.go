package domain

import (
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapshot(price string) ProductSnapshot {
	return ProductSnapshot{
		ID:    uuid.New(),
		Title: "Silk slip dress",
		Price: decimal.RequireFromString(price),
	}
}

func TestCart_AddSameProductIncrementsQuantity(t *testing.T) {
	cart := NewCart("s1")
	p := snapshot("120")

	require.NoError(t, cart.Add(p, 1))
	require.NoError(t, cart.Add(p, 2))

	require.Len(t, cart.Items, 1)
	assert.Equal(t, 3, cart.Items[0].Quantity)
	assert.Equal(t, 3, cart.ItemCount())
}

func TestCart_AddRejectsNonPositiveQuantity(t *testing.T) {
	cart := NewCart("s1")

	assert.ErrorIs(t, cart.Add(snapshot("10"), 0), ErrInvalidQuantity)
	assert.ErrorIs(t, cart.Add(snapshot("10"), -1), ErrInvalidQuantity)
	assert.True(t, cart.IsEmpty())
}

func TestCart_UpdateQuantityToZeroRemovesItem(t *testing.T) {
	cart := NewCart("s1")
	keep := snapshot("50")
	drop := snapshot("75")
	require.NoError(t, cart.Add(keep, 1))
	require.NoError(t, cart.Add(drop, 1))

	require.NoError(t, cart.UpdateQuantity(drop.ID, 0))

	require.Len(t, cart.Items, 1)
	assert.Equal(t, keep.ID, cart.Items[0].Product.ID)
}

func TestCart_UpdateQuantity(t *testing.T) {
	cart := NewCart("s1")
	p := snapshot("50")
	require.NoError(t, cart.Add(p, 1))

	require.NoError(t, cart.UpdateQuantity(p.ID, 4))
	assert.Equal(t, 4, cart.Items[0].Quantity)

	assert.ErrorIs(t, cart.UpdateQuantity(uuid.New(), 2), ErrItemNotFound)
}

func TestCart_RemoveUnknown(t *testing.T) {
	cart := NewCart("s1")
	assert.ErrorIs(t, cart.Remove(uuid.New()), ErrItemNotFound)
}

func TestCart_SubtotalAndClear(t *testing.T) {
	cart := NewCart("s1")
	require.NoError(t, cart.Add(snapshot("19.99"), 3))
	require.NoError(t, cart.Add(snapshot("100"), 1))

	assert.Equal(t, "159.97", cart.Subtotal().String())
	assert.Equal(t, 4, cart.ItemCount())

	cart.Clear()
	assert.True(t, cart.IsEmpty())
	assert.True(t, cart.Subtotal().IsZero())
	assert.Equal(t, 0, cart.ItemCount())
}

func TestCart_Lines(t *testing.T) {
	cart := NewCart("s1")
	require.NoError(t, cart.Add(snapshot("120"), 2))
	require.NoError(t, cart.Add(snapshot("35.50"), 1))

	lines := cart.Lines()
	require.Len(t, lines, 2)
	assert.Equal(t, 2, lines[0].Quantity)
	assert.True(t, lines[1].UnitPrice.Equal(decimal.RequireFromString("35.50")))
}

func TestCart_QuantityLimit(t *testing.T) {
	cart := NewCart("s1")
	p := snapshot("100")

	assert.ErrorIs(t, cart.Add(p, MaxQuantity+1), ErrQuantityLimit)
	assert.True(t, cart.IsEmpty())

	require.NoError(t, cart.Add(p, MaxQuantity))
	assert.ErrorIs(t, cart.Add(p, 1), ErrQuantityLimit)
	assert.Equal(t, MaxQuantity, cart.Items[0].Quantity, "a rejected add leaves the line untouched")

	assert.ErrorIs(t, cart.UpdateQuantity(p.ID, MaxQuantity+1), ErrQuantityLimit)
	assert.Equal(t, MaxQuantity, cart.Items[0].Quantity)
	assert.True(t, cart.Subtotal().IsPositive())
}

func TestCart_AddHugeQuantityDoesNotOverflow(t *testing.T) {
	cart := NewCart("s1")
	p := snapshot("10")
	require.NoError(t, cart.Add(p, 1))

	assert.ErrorIs(t, cart.Add(p, math.MaxInt), ErrQuantityLimit)
	assert.Equal(t, 1, cart.ItemCount())
}
