package bot

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ashureev/chatshop/internal/action"
	"github.com/ashureev/chatshop/internal/catalog"
	"github.com/ashureev/chatshop/internal/checkout"
	"github.com/ashureev/chatshop/internal/domain"
	"github.com/ashureev/chatshop/internal/idempotency"
	"github.com/ashureev/chatshop/internal/render"
	"github.com/ashureev/chatshop/internal/session"
)

// RouterConfig holds the Router dependencies.
type RouterConfig struct {
	Catalog   *catalog.Store
	Sessions  *session.Store
	Presenter *render.Presenter
	Orders    checkout.Placer
	// Guard deduplicates embedded submissions. Nil disables deduplication.
	Guard     idempotency.Guard
	WebAppURL string
	Logger    *slog.Logger
	Now       func() time.Time
}

// Router handles one event at a time per user. It holds no per-user state of
// its own; everything lives in the session store.
type Router struct {
	catalog   *catalog.Store
	sessions  *session.Store
	presenter *render.Presenter
	orders    checkout.Placer
	guard     idempotency.Guard
	webAppURL string
	logger    *slog.Logger
	now       func() time.Time
}

// NewRouter creates a Router.
func NewRouter(cfg RouterConfig) *Router {
	r := &Router{
		catalog:   cfg.Catalog,
		sessions:  cfg.Sessions,
		presenter: cfg.Presenter,
		orders:    cfg.Orders,
		guard:     cfg.Guard,
		webAppURL: cfg.WebAppURL,
		logger:    cfg.Logger,
		now:       cfg.Now,
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

// turn carries what one event produces: at most one acknowledgement and the
// views to display.
type turn struct {
	ev    Event
	sess  *session.Session
	ack   string
	alert bool
}

func (t *turn) notify(text string, alert bool) {
	t.ack, t.alert = text, alert
}

// Handle processes ev under the user's session lock.
func (r *Router) Handle(ctx context.Context, ev Event) error {
	if ev.User.ID == "" {
		return errors.New("event without user")
	}
	return r.sessions.With(ev.User.ID, func(sess *session.Session) error {
		t := &turn{ev: ev, sess: sess}
		var err error
		switch ev.Kind {
		case EventCommand:
			err = r.handleCommand(ctx, t)
		case EventCallback:
			err = r.handleCallback(ctx, t)
			r.ackOnce(ctx, t)
		case EventText:
			err = r.handleText(ctx, t)
		case EventSubmission:
			err = r.handleSubmission(ctx, t)
		default:
			r.logger.Warn("Dropping event of unknown kind", "kind", int(ev.Kind), "user_id", ev.User.ID)
		}
		return err
	})
}

func (r *Router) ackOnce(ctx context.Context, t *turn) {
	if t.ev.Ack == nil {
		return
	}
	if err := t.ev.Ack(ctx, t.ack, t.alert); err != nil {
		r.logger.Debug("Callback ack failed", "user_id", t.ev.User.ID, "error", err)
	}
}

// show replaces the view the user is looking at: the message carrying the
// pressed button, or else the last message recorded for the chat.
func (r *Router) show(ctx context.Context, t *turn, v render.View) error {
	prev := t.ev.Message
	if prev.IsZero() {
		if m, ok := t.sess.Displayed(t.ev.Chat); ok {
			prev = m
		}
	}
	msg, err := r.presenter.Show(ctx, t.ev.Chat, &prev, v)
	if err != nil {
		// The old record may point at a deleted message; forget it.
		t.sess.ForgetDisplayed(t.ev.Chat)
		r.logger.Warn("Render failed", "chat", t.ev.Chat, "user_id", t.ev.User.ID, "error", err)
		return nil
	}
	t.sess.SetDisplayed(msg)
	return nil
}

// post sends v as a new message, leaving earlier messages in place.
func (r *Router) post(ctx context.Context, t *turn, v render.View) error {
	msg, err := r.presenter.Send(ctx, t.ev.Chat, v)
	if err != nil {
		r.logger.Warn("Render failed", "chat", t.ev.Chat, "user_id", t.ev.User.ID, "error", err)
		return nil
	}
	t.sess.SetDisplayed(msg)
	return nil
}

func (r *Router) env(t *turn) checkout.Env {
	return checkout.Env{
		Cart:     t.sess.Cart,
		Placer:   r.orders,
		Customer: t.ev.User.Customer(),
		Now:      r.now(),
	}
}

func (r *Router) handleCommand(ctx context.Context, t *turn) error {
	count := t.sess.Cart.Count()
	switch t.ev.Command {
	case "start", "restart":
		if t.sess.Checkout.Active() {
			if _, err := t.sess.Checkout.Fire(ctx, r.env(t), checkout.Event{Kind: checkout.EventReset}); err != nil {
				return err
			}
			r.logger.Info("Checkout reset by command", "user_id", t.ev.User.ID, "command", t.ev.Command)
			if t.ev.Command == "restart" {
				if err := r.post(ctx, t, render.View{Body: textRestarted}); err != nil {
					return err
				}
			}
		}
		return r.post(ctx, t, welcomeView(count, r.webAppURL))
	case "help":
		return r.post(ctx, t, helpView())
	case "shop":
		return r.post(ctx, t, catalogView(r.catalog.Products(), count))
	case "cart":
		return r.post(ctx, t, cartView(t.sess.Cart.Items()))
	default:
		return r.post(ctx, t, render.View{Body: textUnknownCommand})
	}
}

func (r *Router) handleCallback(ctx context.Context, t *turn) error {
	a := t.ev.Action
	switch a.Kind {
	case action.KindShop:
		return r.show(ctx, t, catalogView(r.catalog.Products(), t.sess.Cart.Count()))
	case action.KindViewCart:
		return r.show(ctx, t, cartView(t.sess.Cart.Items()))
	case action.KindClearCart:
		t.sess.Cart.Clear()
		return r.show(ctx, t, noticeView(textCartCleared, 0))
	case action.KindViewProduct:
		return r.viewProduct(ctx, t, a.ProductID)
	case action.KindAddToCart:
		return r.addToCart(ctx, t, a.ProductID)
	case action.KindChooseVariant:
		return r.chooseVariant(ctx, t, a.ProductID, a.Variant)
	case action.KindRemoveFromCart:
		t.sess.Cart.Remove(a.Key)
		return r.show(ctx, t, cartView(t.sess.Cart.Items()))
	case action.KindBeginCheckout:
		return r.fireCheckout(ctx, t, checkout.Event{Kind: checkout.EventBegin})
	case action.KindConfirm:
		return r.fireCheckout(ctx, t, checkout.Event{Kind: checkout.EventConfirm})
	case action.KindCancel:
		return r.fireCheckout(ctx, t, checkout.Event{Kind: checkout.EventCancel})
	default:
		t.notify(textUnknownAction, false)
		return nil
	}
}

func (r *Router) viewProduct(ctx context.Context, t *turn, id string) error {
	p, err := r.catalog.ByID(id)
	if errors.Is(err, domain.ErrNotFound) {
		return r.show(ctx, t, noticeView(textNotFound, t.sess.Cart.Count()))
	}
	if err != nil {
		return err
	}
	return r.show(ctx, t, productView(p, t.sess.Cart.Count()))
}

func (r *Router) addToCart(ctx context.Context, t *turn, id string) error {
	p, err := r.catalog.ByID(id)
	if errors.Is(err, domain.ErrNotFound) {
		t.notify(textNotFound, true)
		return nil
	}
	if err != nil {
		return err
	}
	if p.HasVariants() {
		t.notify(textChooseVariant, false)
		return r.show(ctx, t, variantView(p))
	}
	if err := t.sess.Cart.Add(p, "", 1); err != nil {
		return err
	}
	t.notify(textAdded, false)
	return r.show(ctx, t, productView(p, t.sess.Cart.Count()))
}

func (r *Router) chooseVariant(ctx context.Context, t *turn, id, variant string) error {
	p, err := r.catalog.ByID(id)
	if errors.Is(err, domain.ErrNotFound) {
		t.notify(textNotFound, true)
		return nil
	}
	if err != nil {
		return err
	}
	if !p.HasVariant(variant) {
		r.logger.Debug("Rejected variant", "user_id", t.ev.User.ID, "product_id", id, "variant", variant,
			"error", domain.ErrInvalidVariant)
		t.notify(textInvalidVariant, true)
		return nil
	}
	if err := t.sess.Cart.Add(p, variant, 1); err != nil {
		return err
	}
	t.notify("Ajouté ("+variant+") ✅", false)
	return r.show(ctx, t, productView(p, t.sess.Cart.Count()))
}

func (r *Router) handleText(ctx context.Context, t *turn) error {
	if !t.sess.Checkout.State().AwaitsText() {
		r.logger.Debug("Ignoring free text outside checkout", "user_id", t.ev.User.ID)
		return nil
	}
	return r.fireCheckout(ctx, t, checkout.Event{Kind: checkout.EventText, Text: t.ev.Text})
}

// fireCheckout delegates to the dialogue and renders its outcome. Button
// presses replace the current view; text answers get fresh messages below the
// user's reply.
func (r *Router) fireCheckout(ctx context.Context, t *turn, ev checkout.Event) error {
	res, err := t.sess.Checkout.Fire(ctx, r.env(t), ev)
	switch {
	case errors.Is(err, domain.ErrGuardViolation):
		text := textCheckoutActive
		if res.Outcome == checkout.OutcomeCartEmpty {
			text = textCheckoutEmpty
		}
		return r.transient(ctx, t, text)
	case errors.Is(err, domain.ErrPersistence):
		r.logger.Error("Order could not be recorded", "user_id", t.ev.User.ID, "error", err)
		return r.transient(ctx, t, textNotRecorded)
	case err != nil:
		return err
	}

	display := r.show
	if ev.Kind == checkout.EventText {
		display = r.post
	}

	count := t.sess.Cart.Count()
	switch res.Outcome {
	case checkout.OutcomeAskName, checkout.OutcomeAskAddress, checkout.OutcomeAskPhone:
		return display(ctx, t, promptView(res.State))
	case checkout.OutcomeInvalidInput:
		v := promptView(res.State)
		v.Body = textEmptyAnswer + "\n\n" + v.Body
		return display(ctx, t, v)
	case checkout.OutcomeRecap:
		return display(ctx, t, recapView(res.Draft))
	case checkout.OutcomeCancelled:
		return display(ctx, t, noticeView(textCancelled, count))
	case checkout.OutcomeCompleted:
		r.logger.Info("Checkout completed", "user_id", t.ev.User.ID, "order_id", res.Order.ID, "total", res.Order.TotalFormatted)
		return display(ctx, t, render.View{Body: textCompleted, Actions: mainMenu(count)})
	case checkout.OutcomeIgnored:
		if t.ev.Kind == EventCallback {
			t.notify(textStale, false)
		}
		return nil
	default:
		return nil
	}
}

// transient reports a recoverable problem without changing what is displayed:
// as an alert on button presses, as a short message otherwise.
func (r *Router) transient(ctx context.Context, t *turn, text string) error {
	if t.ev.Kind == EventCallback {
		t.notify(text, true)
		return nil
	}
	return r.post(ctx, t, render.View{Body: text})
}
