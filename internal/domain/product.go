// Package domain contains core domain types for the shop bot.
package domain

import (
	"slices"

	"github.com/shopspring/decimal"
)

// Product is a catalog entry. Products are immutable once the catalog is loaded.
type Product struct {
	ID          string
	Name        string
	Price       decimal.Decimal
	Image       string
	Description string
	Variants    []string
}

// HasVariants reports whether the product requires a variant choice before it can be added.
func (p Product) HasVariants() bool {
	return len(p.Variants) > 0
}

// HasVariant reports whether v is one of the product's variants.
func (p Product) HasVariant(v string) bool {
	return slices.Contains(p.Variants, v)
}

// CartItem is one line of a cart. Key is unique within a cart.
type CartItem struct {
	Key       string          `json:"key"`
	ProductID string          `json:"id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"price"`
	Image     string          `json:"image,omitempty"`
	Variant   string          `json:"variant,omitempty"`
	Quantity  int             `json:"qty"`
}

// ItemKey builds the cart key for a product/variant pair.
func ItemKey(productID, variant string) string {
	return productID + "::" + variant
}

// Subtotal returns unit price times quantity.
func (it CartItem) Subtotal() decimal.Decimal {
	return it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
}

// DisplayName returns the item name with its variant, if any.
func (it CartItem) DisplayName() string {
	if it.Variant == "" {
		return it.Name
	}
	return it.Name + " — Taille " + it.Variant
}

// SumItems returns the exact sum of all item subtotals.
func SumItems(items []CartItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Subtotal())
	}
	return total
}
