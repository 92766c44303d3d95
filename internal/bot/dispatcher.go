package bot

import (
	"context"
	"errors"
	"hash/fnv"
	"log/slog"
	"sync"
)

const (
	defaultWorkers   = 8
	defaultQueueSize = 64
)

// ErrDispatcherClosed is returned by Dispatch after Close.
var ErrDispatcherClosed = errors.New("dispatcher closed")

// Handler processes a single event.
type Handler interface {
	Handle(ctx context.Context, ev Event) error
}

// Dispatcher fans events out to a fixed set of workers. Events of one user
// always land on the same worker, so they are handled in arrival order.
type Dispatcher struct {
	handler Handler
	queues  []chan Event
	logger  *slog.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher creates a dispatcher with the given number of workers.
func NewDispatcher(h Handler, workers, queueSize int, logger *slog.Logger) *Dispatcher {
	if workers <= 0 {
		workers = defaultWorkers
	}
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{handler: h, queues: make([]chan Event, workers), logger: logger}
	for i := range d.queues {
		d.queues[i] = make(chan Event, queueSize)
	}
	return d
}

// Start launches the workers. Handlers get ctx's values but not its
// cancellation: events still queued when ctx ends are drained by Close, and a
// confirmation among them must still reach the order sink.
func (d *Dispatcher) Start(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	for i, q := range d.queues {
		d.wg.Add(1)
		go func(id int, queue <-chan Event) {
			defer d.wg.Done()
			d.workerLoop(ctx, id, queue)
		}(i, q)
	}
	d.logger.Info("Dispatcher started", "workers", len(d.queues))
}

func (d *Dispatcher) workerLoop(ctx context.Context, id int, queue <-chan Event) {
	for ev := range queue {
		if err := d.handler.Handle(ctx, ev); err != nil {
			d.logger.Error("Event handling failed",
				"worker", id,
				"kind", ev.Kind.String(),
				"user_id", ev.User.ID,
				"chat", ev.Chat,
				"error", err)
		}
	}
}

func (d *Dispatcher) shard(userID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return int(h.Sum32() % uint32(len(d.queues)))
}

// Dispatch queues ev on its user's worker. It blocks while that queue is full.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDispatcherClosed
	}
	select {
	case d.queues[d.shard(ev.User.ID)] <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting events and waits for queued ones to finish.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, q := range d.queues {
		close(q)
	}
	d.mu.Unlock()
	d.wg.Wait()
	d.logger.Info("Dispatcher stopped")
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, ev Event) error

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, ev Event) error { return f(ctx, ev) }
