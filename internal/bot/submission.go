package bot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ashureev/chatshop/internal/domain"
	"github.com/ashureev/chatshop/internal/idempotency"
	"github.com/ashureev/chatshop/internal/render"
	"github.com/shopspring/decimal"
)

const submissionKindOrder = "order"

var errInvalidSubmission = errors.New("invalid submission")

type submission struct {
	Kind         string          `json:"kind"`
	Cart         []submittedItem `json:"cart"`
	CustomerName string          `json:"customer_name"`
	Address      string          `json:"address"`
	Phone        string          `json:"phone"`
}

// submittedItem carries no key: line keys are rebuilt from id and variant.
type submittedItem struct {
	ID      flexibleID      `json:"id"`
	Name    string          `json:"name"`
	Price   decimal.Decimal `json:"price"`
	Image   string          `json:"image"`
	Variant string          `json:"variant"`
	Qty     int             `json:"qty"`
}

// flexibleID accepts ids sent either as JSON strings or numbers.
type flexibleID string

func (f *flexibleID) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id must be a string or a number: %w", err)
	}
	*f = flexibleID(n.String())
	return nil
}

// parseSubmission decodes an embedded-shop payload into order lines and the
// contact. The payload's own cart is authoritative.
func parseSubmission(payload []byte) ([]domain.CartItem, domain.Contact, error) {
	var sub submission
	if err := json.Unmarshal(payload, &sub); err != nil {
		return nil, domain.Contact{}, fmt.Errorf("%w: %w", errInvalidSubmission, err)
	}
	if sub.Kind != submissionKindOrder {
		return nil, domain.Contact{}, fmt.Errorf("%w: kind %q", domain.ErrUnsupportedSubmission, sub.Kind)
	}
	if len(sub.Cart) == 0 {
		return nil, domain.Contact{}, fmt.Errorf("%w: empty cart", errInvalidSubmission)
	}

	items := make([]domain.CartItem, 0, len(sub.Cart))
	for i, it := range sub.Cart {
		id := strings.TrimSpace(string(it.ID))
		switch {
		case id == "":
			return nil, domain.Contact{}, fmt.Errorf("%w: line %d has no id", errInvalidSubmission, i)
		case it.Qty < 1:
			return nil, domain.Contact{}, fmt.Errorf("%w: line %d: %w", errInvalidSubmission, i, domain.ErrInvalidQuantity)
		case it.Price.IsNegative():
			return nil, domain.Contact{}, fmt.Errorf("%w: line %d has a negative price", errInvalidSubmission, i)
		}
		items = append(items, domain.CartItem{
			Key:       domain.ItemKey(id, it.Variant),
			ProductID: id,
			Name:      it.Name,
			UnitPrice: it.Price,
			Image:     it.Image,
			Variant:   it.Variant,
			Quantity:  it.Qty,
		})
	}

	contact := domain.Contact{
		Name:    strings.TrimSpace(sub.CustomerName),
		Address: strings.TrimSpace(sub.Address),
		Phone:   strings.TrimSpace(sub.Phone),
	}
	return items, contact, nil
}

// handleSubmission records an order placed from the embedded shop. It never
// touches the session cart or the checkout dialogue.
func (r *Router) handleSubmission(ctx context.Context, t *turn) error {
	items, contact, err := parseSubmission(t.ev.Payload)
	if errors.Is(err, domain.ErrUnsupportedSubmission) {
		r.logger.Info("Unsupported submission", "user_id", t.ev.User.ID, "error", err)
		return r.post(ctx, t, render.View{Body: textUnsupported})
	}
	if err != nil {
		r.logger.Warn("Malformed submission", "user_id", t.ev.User.ID, "error", err)
		return r.post(ctx, t, render.View{Body: textSubmissionFailed})
	}

	key := idempotency.Key(t.ev.User.ID, t.ev.Payload)
	claimed := false
	if r.guard != nil {
		ok, err := r.guard.Claim(ctx, key)
		switch {
		case err != nil:
			r.logger.Warn("Submission dedup unavailable, recording anyway", "user_id", t.ev.User.ID, "error", err)
		case !ok:
			r.logger.Info("Duplicate submission ignored", "user_id", t.ev.User.ID)
			return r.post(ctx, t, render.View{Body: textEmbeddedRepeat})
		default:
			claimed = true
		}
	}

	order := domain.NewOrder(contact, items, t.ev.User.Customer(), domain.SourceEmbedded, r.now())
	if err := r.orders.Place(ctx, order); err != nil {
		if claimed {
			if relErr := r.guard.Release(ctx, key); relErr != nil {
				r.logger.Warn("Submission claim release failed", "user_id", t.ev.User.ID, "error", relErr)
			}
		}
		r.logger.Error("Embedded order could not be recorded", "user_id", t.ev.User.ID, "error", err)
		return r.post(ctx, t, render.View{Body: textNotRecorded})
	}

	r.logger.Info("Embedded order recorded",
		"user_id", t.ev.User.ID,
		"order_id", order.ID,
		"items", order.ItemCount(),
		"total", order.TotalFormatted,
	)
	return r.post(ctx, t, render.View{Body: textEmbeddedDone, Actions: mainMenu(t.sess.Cart.Count())})
}
