package events

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type testEvent struct {
	BaseEvent
	name string
}

func (e testEvent) EventName() string { return e.name }

func TestPublishSyncRunsHandlersInOrder(t *testing.T) {
	bus := NewInMemoryBus(nil)
	var order []int
	bus.Subscribe("a", HandlerFunc(func(ctx context.Context, event Event) error {
		order = append(order, 1)
		return nil
	}))
	bus.Subscribe("a", HandlerFunc(func(ctx context.Context, event Event) error {
		order = append(order, 2)
		return nil
	}))
	bus.Subscribe("b", HandlerFunc(func(ctx context.Context, event Event) error {
		order = append(order, 99)
		return nil
	}))

	if err := bus.PublishSync(context.Background(), testEvent{name: "a"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("unexpected handler order: %v", order)
	}
}

func TestPublishSyncJoinsErrorsAndRecoversPanics(t *testing.T) {
	bus := NewInMemoryBus(nil)
	sentinel := errors.New("boom")
	bus.Subscribe("a", HandlerFunc(func(ctx context.Context, event Event) error { return sentinel }))
	bus.Subscribe("a", HandlerFunc(func(ctx context.Context, event Event) error { panic("bad handler") }))

	err := bus.PublishSync(context.Background(), testEvent{name: "a"})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected joined error to contain sentinel, got %v", err)
	}
}

func TestPublishAsyncSurvivesCancelledContext(t *testing.T) {
	bus := NewInMemoryBus(nil)
	var calls atomic.Int32
	bus.Subscribe("a", HandlerFunc(func(ctx context.Context, event Event) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		calls.Add(1)
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	bus.Publish(ctx, testEvent{BaseEvent: NewBaseEvent(time.Now()), name: "a"})
	bus.Wait()

	if calls.Load() != 1 {
		t.Fatalf("expected handler to run once, got %d", calls.Load())
	}
}
