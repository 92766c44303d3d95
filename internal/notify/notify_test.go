package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/ashureev/chatshop/internal/domain"
	"github.com/ashureev/chatshop/internal/render/rendertest"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOrder(source domain.OrderSource, username string) domain.Order {
	return domain.NewOrder(
		domain.Contact{Name: "Ada", Address: "1 rue de la Paix", Phone: "0600000000"},
		[]domain.CartItem{
			{Key: "7::M", ProductID: "7", Name: "Tee", UnitPrice: decimal.RequireFromString("9.50"), Variant: "M", Quantity: 2},
			{Key: "9::", ProductID: "9", Name: "Mug", UnitPrice: decimal.RequireFromString("5"), Quantity: 1},
		},
		domain.Customer{UserID: "42", Username: username},
		source,
		time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	)
}

func TestSummary(t *testing.T) {
	got := Summary(testOrder(domain.SourceDialogue, "ada"))
	want := "📦 Nouvelle commande\n" +
		"Client: Ada (@ada)\n" +
		"Adresse: 1 rue de la Paix\n" +
		"Téléphone: 0600000000\n" +
		"Total: 24,00 €\n" +
		"Articles: Tee (M) x2, Mug x1"
	assert.Equal(t, want, got)
}

func TestSummaryEmbeddedWithoutUsername(t *testing.T) {
	got := Summary(testOrder(domain.SourceEmbedded, ""))
	assert.Contains(t, got, "📦 Nouvelle commande (WebApp)\n")
	assert.Contains(t, got, "Client: Ada (id 42)")
}

func TestChatNotifierSendsToOperatorChat(t *testing.T) {
	rec := rendertest.New()
	n := NewChatNotifier(rec, "tg:-100")

	require.NoError(t, n.NotifyOrder(context.Background(), testOrder(domain.SourceDialogue, "ada")))
	last, ok := rec.Last("tg:-100")
	require.True(t, ok)
	assert.Contains(t, last.View.Body, "Total: 24,00 €")
}

type failingNotifier struct{ err error }

func (f failingNotifier) NotifyOrder(context.Context, domain.Order) error { return f.err }

func TestMultiJoinsErrors(t *testing.T) {
	rec := rendertest.New()
	boom := errors.New("broker down")
	m := Multi{failingNotifier{err: boom}, NewChatNotifier(rec, "tg:1")}

	err := m.NotifyOrder(context.Background(), testOrder(domain.SourceDialogue, "ada"))
	require.ErrorIs(t, err, boom)
	_, ok := rec.Last("tg:1")
	assert.True(t, ok, "later notifiers still run")
}

type fakeChannel struct {
	exchange, key string
	msg           amqp.Publishing
	err           error
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	f.exchange, f.key, f.msg = exchange, key, msg
	return f.err
}

func (f *fakeChannel) Close() error { return nil }

func TestAMQPPublisherPublishesOrderPlaced(t *testing.T) {
	ch := &fakeChannel{}
	p := &AMQPPublisher{ch: ch}
	o := testOrder(domain.SourceDialogue, "ada")

	require.NoError(t, p.NotifyOrder(context.Background(), o))
	assert.Equal(t, EventsExchange, ch.exchange)
	assert.Equal(t, OrderPlacedRoutingKey, ch.key)
	assert.Equal(t, amqp.Persistent, ch.msg.DeliveryMode)
	assert.Equal(t, o.ID, ch.msg.MessageId)

	var ev OrderPlaced
	require.NoError(t, json.Unmarshal(ch.msg.Body, &ev))
	assert.Equal(t, "OrderPlaced", ev.EventType)
	assert.Equal(t, o.ID, ev.Order.ID)
	assert.Equal(t, 24.0, ev.Order.Total)
}

func TestAMQPPublisherWrapsError(t *testing.T) {
	p := &AMQPPublisher{ch: &fakeChannel{err: amqp.ErrClosed}}
	err := p.NotifyOrder(context.Background(), testOrder(domain.SourceDialogue, "ada"))
	assert.ErrorIs(t, err, amqp.ErrClosed)
}

type fakeWriter struct {
	msgs []kafka.Message
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func TestKafkaPublisherKeysByUser(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaPublisher{writer: w}
	o := testOrder(domain.SourceEmbedded, "ada")

	require.NoError(t, p.NotifyOrder(context.Background(), o))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "42", string(w.msgs[0].Key))

	var ev OrderPlaced
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &ev))
	assert.Equal(t, "embedded-submission", ev.Order.Source)
}
