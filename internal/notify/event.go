package notify

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ashureev/chatshop/internal/domain"
	"github.com/ashureev/chatshop/internal/orders"
)

const (
	// EventsExchange is the topic exchange order events are published to.
	EventsExchange = "chatshop.events"
	// OrderPlacedRoutingKey routes OrderPlaced events.
	OrderPlacedRoutingKey = "order.placed.v1"
	// DefaultKafkaTopic is used when no topic is configured.
	DefaultKafkaTopic = "chatshop.orders"
)

// OrderPlaced is the event body published for every recorded order.
type OrderPlaced struct {
	EventType string        `json:"event_type"`
	OrderID   string        `json:"order_id"`
	Order     orders.Record `json:"order"`
	Timestamp time.Time     `json:"timestamp"`
}

func marshalOrderPlaced(o domain.Order, now time.Time) ([]byte, error) {
	body, err := json.Marshal(OrderPlaced{
		EventType: "OrderPlaced",
		OrderID:   o.ID,
		Order:     orders.NewRecord(o),
		Timestamp: now.UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal OrderPlaced: %w", err)
	}
	return body, nil
}
