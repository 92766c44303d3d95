package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/ashureev/chatshop/internal/domain"
	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes OrderPlaced events to a Kafka topic keyed by user so a
// user's orders stay in one partition.
type KafkaPublisher struct {
	writer messageWriter
}

// NewKafkaPublisher creates a publisher writing to topic on brokers.
func NewKafkaPublisher(topic string, brokers ...string) *KafkaPublisher {
	if topic == "" {
		topic = DefaultKafkaTopic
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
	return &KafkaPublisher{writer: w}
}

// NotifyOrder implements orders.Notifier.
func (p *KafkaPublisher) NotifyOrder(ctx context.Context, o domain.Order) error {
	body, err := marshalOrderPlaced(o, time.Now())
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Key:   []byte(o.Customer.UserID),
		Value: body,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte("OrderPlaced")},
			{Key: "order_id", Value: []byte(o.ID)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write kafka message: %w", err)
	}
	return nil
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
