package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPublish_DispatchesToExactSubscribers(t *testing.T) {
	bus := NewInMemoryBus(nil, zap.NewNop())

	var got []string
	bus.Subscribe(TypeCommentCreated, NewHandlerFunc("recorder", func(ctx context.Context, e Event) error {
		got = append(got, e.EventType())
		return nil
	}))

	require.NoError(t, bus.Publish(context.Background(), NewCommentCreatedEvent(1, 2, 3, nil)))
	require.NoError(t, bus.Publish(context.Background(), NewCommentDeletedEvent(1, 2, nil)))

	assert.Equal(t, []string{TypeCommentCreated}, got)
}

func TestPublish_PrefixWildcard(t *testing.T) {
	bus := NewInMemoryBus(nil, zap.NewNop())

	var count int
	bus.Subscribe("comment.*", NewHandlerFunc("wildcard", func(ctx context.Context, e Event) error {
		count++
		return nil
	}))

	require.NoError(t, bus.Publish(context.Background(), NewCommentCreatedEvent(1, 2, 3, nil)))
	require.NoError(t, bus.Publish(context.Background(), NewCommentLikedEvent(1, 2, 3, 4)))
	require.NoError(t, bus.Publish(context.Background(), NewProblemSolvedEvent(1, 2, 3, 4)))

	assert.Equal(t, 2, count)
}

func TestPublish_ContainsHandlerFailures(t *testing.T) {
	bus := NewInMemoryBus(nil, zap.NewNop())

	bus.Subscribe(TypeCommentCreated, NewHandlerFunc("failing", func(ctx context.Context, e Event) error {
		return errors.New("boom")
	}))
	bus.Subscribe(TypeCommentCreated, NewHandlerFunc("panicking", func(ctx context.Context, e Event) error {
		panic("boom")
	}))

	var reached bool
	bus.Subscribe(TypeCommentCreated, NewHandlerFunc("survivor", func(ctx context.Context, e Event) error {
		reached = true
		return nil
	}))

	// Neither the error nor the panic reaches the publisher, and later
	// handlers still run.
	require.NoError(t, bus.Publish(context.Background(), NewCommentCreatedEvent(1, 2, 3, nil)))
	assert.True(t, reached)
}

func TestPublishAsync_DeliversThroughWorkers(t *testing.T) {
	bus := NewInMemoryBus(&Config{Workers: 2, QueueSize: 16, HandlerTimeout: time.Second}, zap.NewNop())
	require.NoError(t, bus.Start())
	defer func() { _ = bus.Stop() }()

	var wg sync.WaitGroup
	wg.Add(1)
	bus.Subscribe(TypeProblemSolved, NewHandlerFunc("async", func(ctx context.Context, e Event) error {
		wg.Done()
		return nil
	}))

	require.NoError(t, bus.PublishAsync(context.Background(), NewProblemSolvedEvent(1, 2, 3, 4)))

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("async event was not delivered")
	}
}

func TestStop_RejectsFurtherPublishes(t *testing.T) {
	bus := NewInMemoryBus(nil, zap.NewNop())
	require.NoError(t, bus.Start())
	require.NoError(t, bus.Stop())

	err := bus.Publish(context.Background(), NewCommentCreatedEvent(1, 2, 3, nil))
	require.Error(t, err)
}

func TestEventsCarryIdentityAndPayload(t *testing.T) {
	e := NewCommentLikedEvent(10, 20, 30, 40)
	assert.NotEmpty(t, e.EventID())
	assert.Equal(t, TypeCommentLiked, e.EventType())
	assert.WithinDuration(t, time.Now(), e.OccurredAt(), time.Minute)
	assert.Same(t, e, e.Payload())
}
