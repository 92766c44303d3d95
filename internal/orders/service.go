package orders

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/chatshop/internal/domain"
)

const defaultNotifyTimeout = 10 * time.Second

// Notifier relays a recorded order to the operator.
type Notifier interface {
	NotifyOrder(ctx context.Context, order domain.Order) error
}

// Service records orders and then notifies the operator.
type Service struct {
	sink          Sink
	notifier      Notifier
	notifyTimeout time.Duration
	logger        *slog.Logger
	wg            sync.WaitGroup
}

// NewService creates an order service. notifier may be nil.
func NewService(sink Sink, notifier Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		sink:          sink,
		notifier:      notifier,
		notifyTimeout: defaultNotifyTimeout,
		logger:        logger,
	}
}

// Place appends the order and, once it is durable, notifies the operator in
// the background. Only the append can fail the call.
func (s *Service) Place(ctx context.Context, order domain.Order) error {
	if err := s.sink.Append(ctx, order); err != nil {
		s.logger.Error("Order append failed", "order_id", order.ID, "user_id", order.Customer.UserID, "error", err)
		return fmt.Errorf("%w: %w", domain.ErrPersistence, err)
	}
	s.logger.Info("Order recorded",
		"order_id", order.ID,
		"user_id", order.Customer.UserID,
		"source", order.Source,
		"items", order.ItemCount(),
		"total", order.Total.StringFixed(2),
	)

	if s.notifier == nil {
		return nil
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.notifyTimeout)
		defer cancel()
		if err := s.notifier.NotifyOrder(nctx, order); err != nil {
			s.logger.Warn("Operator notification failed", "order_id", order.ID, "error", err)
		}
	}()
	return nil
}

// Wait blocks until in-flight notifications finish.
func (s *Service) Wait() {
	s.wg.Wait()
}
