package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestItemKey(t *testing.T) {
	assert.Equal(t, "7::M", ItemKey("7", "M"))
	assert.Equal(t, "7::", ItemKey("7", ""))
}

func TestFormatPrice(t *testing.T) {
	assert.Equal(t, "19,00 €", FormatPrice(decimal.RequireFromString("19")))
	assert.Equal(t, "9,50 €", FormatPrice(decimal.RequireFromString("9.5")))
	assert.Equal(t, "0,00 €", FormatPrice(decimal.Zero))
	assert.Equal(t, "1234,57 €", FormatPrice(decimal.RequireFromString("1234.567")))
}

func TestNewOrderRoundsTotalAndCopiesItems(t *testing.T) {
	items := []CartItem{
		{Key: ItemKey("7", "M"), ProductID: "7", Name: "Tee", UnitPrice: decimal.RequireFromString("9.50"), Variant: "M", Quantity: 2},
		{Key: ItemKey("9", ""), ProductID: "9", Name: "Mug", UnitPrice: decimal.RequireFromString("0.333"), Quantity: 1},
	}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))

	order := NewOrder(Contact{Name: "Ada"}, items, Customer{UserID: "42", Username: "ada"}, SourceDialogue, now)

	require.NotEmpty(t, order.ID)
	assert.True(t, order.Total.Equal(decimal.RequireFromString("19.33")), "total %s", order.Total)
	assert.Equal(t, "19,33 €", order.TotalFormatted)
	assert.Equal(t, time.UTC, order.CreatedAt.Location())
	assert.Equal(t, 3, order.ItemCount())
	assert.Equal(t, "@ada", order.Customer.Handle())

	items[0].Quantity = 99
	assert.Equal(t, 2, order.Items[0].Quantity, "order must not alias the caller's slice")
}

func TestCartItemDisplayName(t *testing.T) {
	assert.Equal(t, "Tee — Taille M", CartItem{Name: "Tee", Variant: "M"}.DisplayName())
	assert.Equal(t, "Mug", CartItem{Name: "Mug"}.DisplayName())
}
