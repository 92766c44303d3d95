// Package checkout implements the guided checkout conversation as an explicit
// finite-state machine, one per user session.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ashureev/chatshop/internal/cart"
	"github.com/ashureev/chatshop/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// State is a dialogue state. Idle is both the start and the end state.
type State int

const (
	Idle State = iota
	AskName
	AskAddress
	AskPhone
	AskConfirm
)

func (s State) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case AskName:
		return "ASK_NAME"
	case AskAddress:
		return "ASK_ADDRESS"
	case AskPhone:
		return "ASK_PHONE"
	case AskConfirm:
		return "ASK_CONFIRM"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// AwaitsText reports whether the state consumes free-text replies.
func (s State) AwaitsText() bool {
	return s == AskName || s == AskAddress || s == AskPhone
}

// EventKind discriminates dialogue inputs.
type EventKind int

const (
	EventBegin EventKind = iota
	EventText
	EventConfirm
	EventCancel
	EventReset
)

// Event is one dialogue input.
type Event struct {
	Kind EventKind
	Text string
}

// Outcome tells the caller what to render after a transition.
type Outcome int

const (
	OutcomeIgnored Outcome = iota
	OutcomeCartEmpty
	OutcomeAlreadyActive
	OutcomeAskName
	OutcomeAskAddress
	OutcomeAskPhone
	OutcomeInvalidInput
	OutcomeRecap
	OutcomeCancelled
	OutcomeCompleted
	OutcomeReset
)

// Draft is the in-progress checkout. Items is a snapshot of the cart taken when
// checkout began and is never updated from the live cart.
type Draft struct {
	OrderID   string
	Items     []domain.CartItem
	Contact   domain.Contact
	StartedAt time.Time
	UpdatedAt time.Time
}

// Total returns the exact total of the snapshot.
func (d Draft) Total() decimal.Decimal {
	return domain.SumItems(d.Items)
}

func (d *Draft) clone() *Draft {
	if d == nil {
		return nil
	}
	c := *d
	c.Items = append([]domain.CartItem(nil), d.Items...)
	return &c
}

// Placer persists a finalized order.
type Placer interface {
	Place(ctx context.Context, order domain.Order) error
}

// Env carries the collaborators a transition may touch.
type Env struct {
	Cart     *cart.Cart
	Placer   Placer
	Customer domain.Customer
	Now      time.Time
}

// Result describes a transition. Draft is a copy safe to render; Order is set
// only when the checkout completed.
type Result struct {
	Outcome Outcome
	State   State
	Draft   *Draft
	Order   *domain.Order
}

type transition func(m *Machine, ctx context.Context, env Env, ev Event) (Result, error)

// table is the single dispatch table of the dialogue. Pairs missing from it are
// ignored by the current state.
var table = map[State]map[EventKind]transition{
	Idle: {
		EventBegin: (*Machine).begin,
	},
	AskName: {
		EventBegin: (*Machine).rejectReentry,
		EventText:  (*Machine).captureName,
	},
	AskAddress: {
		EventBegin: (*Machine).rejectReentry,
		EventText:  (*Machine).captureAddress,
	},
	AskPhone: {
		EventBegin: (*Machine).rejectReentry,
		EventText:  (*Machine).capturePhone,
	},
	AskConfirm: {
		EventBegin:   (*Machine).rejectReentry,
		EventConfirm: (*Machine).confirm,
		EventCancel:  (*Machine).cancel,
	},
}

// Machine is the per-session dialogue. The zero value is Idle.
type Machine struct {
	state State
	draft *Draft
}

// State returns the current state.
func (m *Machine) State() State { return m.state }

// Active reports whether a draft is in progress.
func (m *Machine) Active() bool { return m.state != Idle }

// Draft returns a copy of the current draft, or nil when idle.
func (m *Machine) Draft() *Draft { return m.draft.clone() }

// Fire applies ev. Reset is accepted in every state; other events follow the
// dispatch table.
func (m *Machine) Fire(ctx context.Context, env Env, ev Event) (Result, error) {
	if ev.Kind == EventReset {
		m.toIdle()
		return Result{Outcome: OutcomeReset, State: Idle}, nil
	}
	fn, ok := table[m.state][ev.Kind]
	if !ok {
		return m.result(OutcomeIgnored), nil
	}
	return fn(m, ctx, env, ev)
}

// Expire cancels a draft that has not advanced since before cutoff.
func (m *Machine) Expire(cutoff time.Time) bool {
	if m.state == Idle || m.draft == nil || !m.draft.UpdatedAt.Before(cutoff) {
		return false
	}
	m.toIdle()
	return true
}

func (m *Machine) begin(_ context.Context, env Env, _ Event) (Result, error) {
	if env.Cart == nil || env.Cart.IsEmpty() {
		return m.result(OutcomeCartEmpty), fmt.Errorf("%w: cart is empty", domain.ErrGuardViolation)
	}
	m.draft = &Draft{
		OrderID:   uuid.NewString(),
		Items:     env.Cart.Snapshot(),
		StartedAt: env.Now,
		UpdatedAt: env.Now,
	}
	m.state = AskName
	return m.result(OutcomeAskName), nil
}

func (m *Machine) rejectReentry(_ context.Context, _ Env, _ Event) (Result, error) {
	return m.result(OutcomeAlreadyActive), fmt.Errorf("%w: checkout already in progress", domain.ErrGuardViolation)
}

func (m *Machine) captureName(_ context.Context, env Env, ev Event) (Result, error) {
	v, ok := cleanInput(ev.Text)
	if !ok {
		return m.result(OutcomeInvalidInput), nil
	}
	m.draft.Contact.Name = v
	return m.advance(env, AskAddress, OutcomeAskAddress), nil
}

func (m *Machine) captureAddress(_ context.Context, env Env, ev Event) (Result, error) {
	v, ok := cleanInput(ev.Text)
	if !ok {
		return m.result(OutcomeInvalidInput), nil
	}
	m.draft.Contact.Address = v
	return m.advance(env, AskPhone, OutcomeAskPhone), nil
}

func (m *Machine) capturePhone(_ context.Context, env Env, ev Event) (Result, error) {
	v, ok := cleanInput(ev.Text)
	if !ok {
		return m.result(OutcomeInvalidInput), nil
	}
	m.draft.Contact.Phone = v
	return m.advance(env, AskConfirm, OutcomeRecap), nil
}

func (m *Machine) cancel(_ context.Context, _ Env, _ Event) (Result, error) {
	m.toIdle()
	return m.result(OutcomeCancelled), nil
}

// confirm places the order built from the snapshot. On failure nothing changes
// so the user can confirm again; the draft's order id keeps a retry from
// producing a second record.
func (m *Machine) confirm(ctx context.Context, env Env, _ Event) (Result, error) {
	order := domain.NewOrder(m.draft.Contact, m.draft.Items, env.Customer, domain.SourceDialogue, env.Now)
	order.ID = m.draft.OrderID

	if err := env.Placer.Place(ctx, order); err != nil {
		if !errors.Is(err, domain.ErrPersistence) {
			err = fmt.Errorf("%w: %w", domain.ErrPersistence, err)
		}
		return m.result(OutcomeIgnored), err
	}

	if env.Cart != nil {
		env.Cart.Clear()
	}
	m.toIdle()
	res := m.result(OutcomeCompleted)
	res.Order = &order
	return res, nil
}

func (m *Machine) advance(env Env, next State, out Outcome) Result {
	m.state = next
	m.draft.UpdatedAt = env.Now
	return m.result(out)
}

func (m *Machine) toIdle() {
	m.state = Idle
	m.draft = nil
}

func (m *Machine) result(out Outcome) Result {
	return Result{Outcome: out, State: m.state, Draft: m.draft.clone()}
}

// cleanInput trims a reply and rejects whitespace-only answers.
func cleanInput(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, s != ""
}
