// Package notify relays recorded orders to the shop operator: a chat message
// to the operator chat and order events on RabbitMQ and Kafka.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ashureev/chatshop/internal/domain"
	"github.com/ashureev/chatshop/internal/orders"
	"github.com/ashureev/chatshop/internal/render"
)

// Summary formats the operator message for an order.
func Summary(o domain.Order) string {
	title := "📦 Nouvelle commande"
	if o.Source == domain.SourceEmbedded {
		title += " (WebApp)"
	}

	handle := o.Customer.Handle()
	if handle == "" {
		handle = "id " + o.Customer.UserID
	}

	lines := make([]string, 0, len(o.Items))
	for _, it := range o.Items {
		name := it.Name
		if it.Variant != "" {
			name += " (" + it.Variant + ")"
		}
		lines = append(lines, fmt.Sprintf("%s x%d", name, it.Quantity))
	}

	var b strings.Builder
	b.WriteString(title + "\n")
	fmt.Fprintf(&b, "Client: %s (%s)\n", o.Contact.Name, handle)
	fmt.Fprintf(&b, "Adresse: %s\n", o.Contact.Address)
	fmt.Fprintf(&b, "Téléphone: %s\n", o.Contact.Phone)
	fmt.Fprintf(&b, "Total: %s\n", o.TotalFormatted)
	fmt.Fprintf(&b, "Articles: %s", strings.Join(lines, ", "))
	return b.String()
}

// ChatNotifier posts the order summary to the operator chat.
type ChatNotifier struct {
	transport render.Transport
	chat      string
}

// NewChatNotifier sends summaries to chat through t.
func NewChatNotifier(t render.Transport, chat string) *ChatNotifier {
	return &ChatNotifier{transport: t, chat: chat}
}

// NotifyOrder implements orders.Notifier.
func (c *ChatNotifier) NotifyOrder(ctx context.Context, o domain.Order) error {
	if _, err := c.transport.SendText(ctx, c.chat, render.View{Body: Summary(o)}); err != nil {
		return fmt.Errorf("send operator summary: %w", err)
	}
	return nil
}

// Multi notifies through every notifier and joins their errors.
type Multi []orders.Notifier

// NotifyOrder implements orders.Notifier.
func (m Multi) NotifyOrder(ctx context.Context, o domain.Order) error {
	var errs []error
	for _, n := range m {
		if err := n.NotifyOrder(ctx, o); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
