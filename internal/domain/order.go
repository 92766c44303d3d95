package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderSource identifies which path produced an order.
type OrderSource string

const (
	// SourceDialogue marks orders completed through the checkout conversation.
	SourceDialogue OrderSource = "dialogue"
	// SourceEmbedded marks orders submitted by the embedded shop surface.
	SourceEmbedded OrderSource = "embedded-submission"
)

// Customer identifies the chat user placing an order.
type Customer struct {
	UserID   string
	Username string
}

// Handle returns "@username" or an empty string when the user has none.
func (c Customer) Handle() string {
	if c.Username == "" {
		return ""
	}
	return "@" + c.Username
}

// Contact holds the delivery details captured for an order.
type Contact struct {
	Name    string
	Address string
	Phone   string
}

// Order is a finalized checkout. It is never mutated after NewOrder returns.
type Order struct {
	ID             string
	Contact        Contact
	Items          []CartItem
	Total          decimal.Decimal
	TotalFormatted string
	Customer       Customer
	CreatedAt      time.Time
	Source         OrderSource
}

// NewOrder builds an order from a copy of items. The total is rounded to two decimals.
func NewOrder(contact Contact, items []CartItem, customer Customer, source OrderSource, now time.Time) Order {
	lines := make([]CartItem, len(items))
	copy(lines, items)

	total := SumItems(lines).Round(2)
	return Order{
		ID:             uuid.NewString(),
		Contact:        contact,
		Items:          lines,
		Total:          total,
		TotalFormatted: FormatPrice(total),
		Customer:       customer,
		CreatedAt:      now.UTC(),
		Source:         source,
	}
}

// ItemCount returns the total quantity across order lines.
func (o Order) ItemCount() int {
	n := 0
	for _, it := range o.Items {
		n += it.Quantity
	}
	return n
}
