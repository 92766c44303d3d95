package orders

import (
	"context"
	"fmt"

	"github.com/ashureev/chatshop/internal/domain"
)

// Sink is an append-only order store. Implementations must tolerate concurrent
// Append calls and must treat a repeated order id as already appended.
type Sink interface {
	Append(ctx context.Context, order domain.Order) error
}

// MultiSink appends to every sink in order and fails on the first error.
type MultiSink []Sink

// Append implements Sink.
func (m MultiSink) Append(ctx context.Context, order domain.Order) error {
	for i, s := range m {
		if err := s.Append(ctx, order); err != nil {
			return fmt.Errorf("sink %d: %w", i, err)
		}
	}
	return nil
}
