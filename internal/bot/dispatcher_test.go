package bot

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type orderRecorder struct {
	mu     sync.Mutex
	byUser map[string][]string
}

func (o *orderRecorder) Handle(_ context.Context, ev Event) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.byUser[ev.User.ID] = append(o.byUser[ev.User.ID], ev.Text)
	return nil
}

func TestDispatcherPreservesPerUserOrder(t *testing.T) {
	rec := &orderRecorder{byUser: make(map[string][]string)}
	d := NewDispatcher(rec, 4, 8, nil)
	d.Start(context.Background())

	const users, perUser = 10, 50
	var wg sync.WaitGroup
	for u := 0; u < users; u++ {
		wg.Add(1)
		go func(u int) {
			defer wg.Done()
			id := fmt.Sprintf("user-%d", u)
			for i := 0; i < perUser; i++ {
				err := d.Dispatch(context.Background(), Event{Kind: EventText, User: User{ID: id}, Text: fmt.Sprint(i)})
				assert.NoError(t, err)
			}
		}(u)
	}
	wg.Wait()
	d.Close()

	require.Len(t, rec.byUser, users)
	for id, texts := range rec.byUser {
		require.Len(t, texts, perUser, id)
		for i, s := range texts {
			assert.Equal(t, fmt.Sprint(i), s, "user %s out of order", id)
		}
	}
}

func TestDispatchAfterClose(t *testing.T) {
	d := NewDispatcher(&orderRecorder{byUser: make(map[string][]string)}, 1, 1, nil)
	d.Start(context.Background())
	d.Close()
	d.Close()

	err := d.Dispatch(context.Background(), Event{User: User{ID: "1"}})
	assert.ErrorIs(t, err, ErrDispatcherClosed)
}

func TestDispatchRespectsContext(t *testing.T) {
	block := make(chan struct{})
	d := NewDispatcher(HandlerFunc(func(context.Context, Event) error {
		<-block
		return nil
	}), 1, 1, nil)
	d.Start(context.Background())
	defer func() {
		close(block)
		d.Close()
	}()

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, d.Dispatch(ctx, Event{User: User{ID: "1"}}))
	require.NoError(t, d.Dispatch(ctx, Event{User: User{ID: "1"}}))

	cancel()
	// The worker holds one event and the queue holds another, so this blocks
	// until the context is done.
	err := d.Dispatch(ctx, Event{User: User{ID: "1"}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCloseDrainsWithLiveContext(t *testing.T) {
	var mu sync.Mutex
	var seen []error
	d := NewDispatcher(HandlerFunc(func(ctx context.Context, _ Event) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, ctx.Err())
		return nil
	}), 1, 4, nil)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, d.Dispatch(context.Background(), Event{User: User{ID: "1"}}))
	require.NoError(t, d.Dispatch(context.Background(), Event{User: User{ID: "1"}}))
	cancel()

	d.Start(ctx)
	d.Close()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 2)
	for _, err := range seen {
		assert.NoError(t, err)
	}
}
