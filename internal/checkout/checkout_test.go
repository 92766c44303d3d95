package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ashureev/chatshop/internal/cart"
	"github.com/ashureev/chatshop/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePlacer struct {
	mu     sync.Mutex
	err    error
	orders []domain.Order
}

func (f *fakePlacer) Place(_ context.Context, o domain.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.orders = append(f.orders, o)
	return nil
}

var tee = domain.Product{ID: "7", Name: "Tee", Price: decimal.RequireFromString("9.50"), Variants: []string{"M"}}

func newEnv(t *testing.T, c *cart.Cart, p *fakePlacer) Env {
	t.Helper()
	return Env{
		Cart:     c,
		Placer:   p,
		Customer: domain.Customer{UserID: "42", Username: "ada"},
		Now:      time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func fire(t *testing.T, m *Machine, env Env, kind EventKind, text string) Result {
	t.Helper()
	res, err := m.Fire(context.Background(), env, Event{Kind: kind, Text: text})
	require.NoError(t, err)
	return res
}

func walkToConfirm(t *testing.T, m *Machine, env Env) Result {
	t.Helper()
	assert.Equal(t, OutcomeAskName, fire(t, m, env, EventBegin, "").Outcome)
	assert.Equal(t, OutcomeAskAddress, fire(t, m, env, EventText, "  Ada Lovelace ").Outcome)
	assert.Equal(t, OutcomeAskPhone, fire(t, m, env, EventText, "1 rue de la Paix").Outcome)
	res := fire(t, m, env, EventText, "0600000000")
	require.Equal(t, OutcomeRecap, res.Outcome)
	require.Equal(t, AskConfirm, m.State())
	return res
}

func TestBeginOnEmptyCartIsGuarded(t *testing.T) {
	var m Machine
	env := newEnv(t, &cart.Cart{}, &fakePlacer{})

	res, err := m.Fire(context.Background(), env, Event{Kind: EventBegin})

	assert.True(t, errors.Is(err, domain.ErrGuardViolation))
	assert.Equal(t, OutcomeCartEmpty, res.Outcome)
	assert.Equal(t, Idle, m.State())
	assert.Nil(t, m.Draft())
}

func TestFullDialogueCompletesOrder(t *testing.T) {
	c := &cart.Cart{}
	require.NoError(t, c.Add(tee, "M", 2))
	placer := &fakePlacer{}
	env := newEnv(t, c, placer)

	var m Machine
	recap := walkToConfirm(t, &m, env)
	require.NotNil(t, recap.Draft)
	assert.Equal(t, "Ada Lovelace", recap.Draft.Contact.Name)
	assert.True(t, recap.Draft.Total().Equal(decimal.RequireFromString("19")))

	res := fire(t, &m, env, EventConfirm, "")
	require.Equal(t, OutcomeCompleted, res.Outcome)
	require.NotNil(t, res.Order)

	require.Len(t, placer.orders, 1)
	order := placer.orders[0]
	assert.Equal(t, domain.SourceDialogue, order.Source)
	assert.True(t, order.Total.Equal(decimal.RequireFromString("19.0")))
	assert.Equal(t, "19,00 €", order.TotalFormatted)
	require.Len(t, order.Items, 1)
	assert.Equal(t, 2, order.Items[0].Quantity)
	assert.Equal(t, "0600000000", order.Contact.Phone)
	assert.Equal(t, "42", order.Customer.UserID)

	assert.True(t, c.IsEmpty())
	assert.Equal(t, Idle, m.State())
}

func TestConfirmUsesSnapshotNotLiveCart(t *testing.T) {
	c := &cart.Cart{}
	require.NoError(t, c.Add(tee, "M", 1))
	placer := &fakePlacer{}
	env := newEnv(t, c, placer)

	var m Machine
	fire(t, &m, env, EventBegin, "")
	require.NoError(t, c.Add(tee, "M", 5))
	c.Remove("7::M")
	fire(t, &m, env, EventText, "Ada")
	fire(t, &m, env, EventText, "Paris")
	fire(t, &m, env, EventText, "06")
	fire(t, &m, env, EventConfirm, "")

	require.Len(t, placer.orders, 1)
	require.Len(t, placer.orders[0].Items, 1)
	assert.Equal(t, 1, placer.orders[0].Items[0].Quantity)
}

func TestCancelLeavesCartUntouched(t *testing.T) {
	c := &cart.Cart{}
	require.NoError(t, c.Add(tee, "M", 2))
	before := c.Snapshot()
	env := newEnv(t, c, &fakePlacer{})

	var m Machine
	walkToConfirm(t, &m, env)
	res := fire(t, &m, env, EventCancel, "")

	assert.Equal(t, OutcomeCancelled, res.Outcome)
	assert.Equal(t, Idle, m.State())
	assert.Nil(t, m.Draft())
	assert.Equal(t, before, c.Snapshot())

	// The same cart can be checked out again.
	assert.Equal(t, OutcomeAskName, fire(t, &m, env, EventBegin, "").Outcome)
}

func TestPersistenceFailureKeepsStateAndRetrySucceedsOnce(t *testing.T) {
	c := &cart.Cart{}
	require.NoError(t, c.Add(tee, "M", 2))
	placer := &fakePlacer{err: errors.New("disk full")}
	env := newEnv(t, c, placer)

	var m Machine
	walkToConfirm(t, &m, env)

	_, err := m.Fire(context.Background(), env, Event{Kind: EventConfirm})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrPersistence))
	assert.Equal(t, AskConfirm, m.State())
	assert.NotNil(t, m.Draft())
	assert.False(t, c.IsEmpty())
	assert.Empty(t, placer.orders)

	placer.err = nil
	res := fire(t, &m, env, EventConfirm, "")
	assert.Equal(t, OutcomeCompleted, res.Outcome)
	assert.Len(t, placer.orders, 1)
	assert.True(t, c.IsEmpty())

	// A stray second confirm is not a transition from IDLE.
	res = fire(t, &m, env, EventConfirm, "")
	assert.Equal(t, OutcomeIgnored, res.Outcome)
	assert.Len(t, placer.orders, 1)
}

func TestReentryIsRejectedWithoutCorruptingDraft(t *testing.T) {
	c := &cart.Cart{}
	require.NoError(t, c.Add(tee, "M", 1))
	env := newEnv(t, c, &fakePlacer{})

	var m Machine
	fire(t, &m, env, EventBegin, "")
	fire(t, &m, env, EventText, "Ada")

	res, err := m.Fire(context.Background(), env, Event{Kind: EventBegin})
	assert.True(t, errors.Is(err, domain.ErrGuardViolation))
	assert.Equal(t, OutcomeAlreadyActive, res.Outcome)
	assert.Equal(t, AskAddress, m.State())
	assert.Equal(t, "Ada", m.Draft().Contact.Name)
}

func TestTextStatesIgnoreButtonsAndRejectBlankInput(t *testing.T) {
	c := &cart.Cart{}
	require.NoError(t, c.Add(tee, "M", 1))
	env := newEnv(t, c, &fakePlacer{})

	var m Machine
	fire(t, &m, env, EventBegin, "")

	assert.Equal(t, OutcomeIgnored, fire(t, &m, env, EventConfirm, "").Outcome)
	assert.Equal(t, OutcomeIgnored, fire(t, &m, env, EventCancel, "").Outcome)
	assert.Equal(t, OutcomeInvalidInput, fire(t, &m, env, EventText, "   ").Outcome)
	assert.Equal(t, AskName, m.State())
}

func TestResetFromAnyState(t *testing.T) {
	c := &cart.Cart{}
	require.NoError(t, c.Add(tee, "M", 1))
	env := newEnv(t, c, &fakePlacer{})

	var m Machine
	walkToConfirm(t, &m, env)
	res := fire(t, &m, env, EventReset, "")
	assert.Equal(t, OutcomeReset, res.Outcome)
	assert.Equal(t, Idle, m.State())
	assert.Nil(t, m.Draft())
	assert.False(t, c.IsEmpty())
}

func TestExpireCancelsStaleDraft(t *testing.T) {
	c := &cart.Cart{}
	require.NoError(t, c.Add(tee, "M", 1))
	env := newEnv(t, c, &fakePlacer{})

	var m Machine
	fire(t, &m, env, EventBegin, "")

	assert.False(t, m.Expire(env.Now.Add(-time.Minute)))
	assert.True(t, m.Expire(env.Now.Add(time.Minute)))
	assert.Equal(t, Idle, m.State())
	assert.False(t, m.Expire(env.Now.Add(time.Hour)))
}
