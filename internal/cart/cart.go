// Package cart implements the per-session shopping cart.
package cart

import (
	"fmt"

	"github.com/ashureev/chatshop/internal/domain"
	"github.com/shopspring/decimal"
)

// Cart is an ordered list of line items with at most one item per key.
// It is not safe for concurrent use; the owning session serializes access.
type Cart struct {
	items []domain.CartItem
}

// Add merges qty units of product/variant into the cart.
func (c *Cart) Add(p domain.Product, variant string, qty int) error {
	if qty < 1 {
		return fmt.Errorf("add %s: %w", p.ID, domain.ErrInvalidQuantity)
	}
	key := domain.ItemKey(p.ID, variant)
	for i := range c.items {
		if c.items[i].Key == key {
			c.items[i].Quantity += qty
			return nil
		}
	}
	c.items = append(c.items, domain.CartItem{
		Key:       key,
		ProductID: p.ID,
		Name:      p.Name,
		UnitPrice: p.Price,
		Image:     p.Image,
		Variant:   variant,
		Quantity:  qty,
	})
	return nil
}

// Remove deletes the item with key. It reports whether an item was removed.
func (c *Cart) Remove(key string) bool {
	for i := range c.items {
		if c.items[i].Key == key {
			c.items = append(c.items[:i], c.items[i+1:]...)
			return true
		}
	}
	return false
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.items = nil
}

// Total returns the exact sum of unit price times quantity.
func (c *Cart) Total() decimal.Decimal {
	return domain.SumItems(c.items)
}

// Snapshot returns a copy of the items that later mutations cannot affect.
func (c *Cart) Snapshot() []domain.CartItem {
	if len(c.items) == 0 {
		return nil
	}
	out := make([]domain.CartItem, len(c.items))
	copy(out, c.items)
	return out
}

// Items is an alias of Snapshot kept for readability at render sites.
func (c *Cart) Items() []domain.CartItem {
	return c.Snapshot()
}

// Count returns the total quantity across items.
func (c *Cart) Count() int {
	n := 0
	for _, it := range c.items {
		n += it.Quantity
	}
	return n
}

// Len returns the number of distinct lines.
func (c *Cart) Len() int {
	return len(c.items)
}

// IsEmpty reports whether the cart has no items.
func (c *Cart) IsEmpty() bool {
	return len(c.items) == 0
}
