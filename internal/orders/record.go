// Package orders persists finalized orders and relays them to the operator.
package orders

import (
	"time"

	"github.com/ashureev/chatshop/internal/domain"
	"github.com/shopspring/decimal"
)

// Record is the self-contained serialized form of an order, one per sink entry.
type Record struct {
	ID             string       `json:"id"`
	CustomerName   string       `json:"customer_name"`
	Address        string       `json:"address"`
	Phone          string       `json:"phone"`
	Cart           []RecordItem `json:"cart"`
	Total          float64      `json:"total"`
	TotalFormatted string       `json:"total_formatted"`
	UserID         string       `json:"user_id"`
	Username       *string      `json:"username"`
	CreatedAt      string       `json:"created_at"`
	Source         string       `json:"source"`
}

// RecordItem is one serialized order line.
type RecordItem struct {
	Key     string  `json:"key"`
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Price   float64 `json:"price"`
	Image   *string `json:"image"`
	Variant *string `json:"variant"`
	Qty     int     `json:"qty"`
}

// NewRecord serializes an order.
func NewRecord(o domain.Order) Record {
	rec := Record{
		ID:             o.ID,
		CustomerName:   o.Contact.Name,
		Address:        o.Contact.Address,
		Phone:          o.Contact.Phone,
		Cart:           make([]RecordItem, 0, len(o.Items)),
		Total:          o.Total.InexactFloat64(),
		TotalFormatted: o.TotalFormatted,
		UserID:         o.Customer.UserID,
		Username:       optional(o.Customer.Handle()),
		CreatedAt:      o.CreatedAt.UTC().Format(time.RFC3339Nano),
		Source:         string(o.Source),
	}
	for _, it := range o.Items {
		rec.Cart = append(rec.Cart, RecordItem{
			Key:     it.Key,
			ID:      it.ProductID,
			Name:    it.Name,
			Price:   it.UnitPrice.InexactFloat64(),
			Image:   optional(it.Image),
			Variant: optional(it.Variant),
			Qty:     it.Quantity,
		})
	}
	return rec
}

// Order converts the record back to the domain type.
func (r Record) Order() (domain.Order, error) {
	created, err := time.Parse(time.RFC3339Nano, r.CreatedAt)
	if err != nil {
		return domain.Order{}, err
	}
	o := domain.Order{
		ID:             r.ID,
		Contact:        domain.Contact{Name: r.CustomerName, Address: r.Address, Phone: r.Phone},
		Total:          decimal.NewFromFloat(r.Total),
		TotalFormatted: r.TotalFormatted,
		Customer:       domain.Customer{UserID: r.UserID},
		CreatedAt:      created,
		Source:         domain.OrderSource(r.Source),
	}
	if r.Username != nil && len(*r.Username) > 1 {
		o.Customer.Username = (*r.Username)[1:]
	}
	for _, it := range r.Cart {
		o.Items = append(o.Items, domain.CartItem{
			Key:       it.Key,
			ProductID: it.ID,
			Name:      it.Name,
			UnitPrice: decimal.NewFromFloat(it.Price),
			Image:     deref(it.Image),
			Variant:   deref(it.Variant),
			Quantity:  it.Qty,
		})
	}
	return o, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
