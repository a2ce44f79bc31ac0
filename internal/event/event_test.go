package event

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEvent struct {
	Session string `json:"session"`
	Seq     int    `json:"seq"`
}

func (testEvent) Name() string         { return "test_event" }
func (e testEvent) SessionKey() string { return e.Session }

func TestBus_PublishRoutesBySession(t *testing.T) {
	bus := NewBus(4, zerolog.Nop())
	defer bus.Stop()

	a := bus.Subscribe("s-a")
	b := bus.Subscribe("s-b")
	defer a.Close()
	defer b.Close()

	bus.Publish(context.Background(), testEvent{Session: "s-a", Seq: 1})

	select {
	case e := <-a.C:
		assert.Equal(t, testEvent{Session: "s-a", Seq: 1}, e)
	case <-time.After(time.Second):
		t.Fatal("subscriber of s-a got nothing")
	}

	select {
	case e := <-b.C:
		t.Fatalf("subscriber of s-b got %v", e)
	default:
	}
}

func TestBus_FullBufferDropsOldest(t *testing.T) {
	bus := NewBus(2, zerolog.Nop())
	defer bus.Stop()

	sub := bus.Subscribe("s1")
	defer sub.Close()

	for i := 1; i <= 3; i++ {
		bus.Publish(context.Background(), testEvent{Session: "s1", Seq: i})
	}

	got := []int{(<-sub.C).(testEvent).Seq, (<-sub.C).(testEvent).Seq}
	assert.Equal(t, []int{2, 3}, got)
}

func TestBus_CloseSessionEndsStream(t *testing.T) {
	bus := NewBus(1, zerolog.Nop())
	defer bus.Stop()

	sub := bus.Subscribe("s1")
	bus.CloseSession("s1")

	_, ok := <-sub.C
	assert.False(t, ok)
	assert.Equal(t, 0, bus.Subscribers("s1"))

	// closing again after the session was torn down is a no-op
	sub.Close()
}

func TestBus_HandlersReceiveEverything(t *testing.T) {
	bus := NewBus(1, zerolog.Nop())

	var calls atomic.Int32
	bus.Handle(func(ctx context.Context, e Event) error {
		calls.Add(1)
		return nil
	})
	bus.Handle(func(ctx context.Context, e Event) error {
		calls.Add(1)
		return errors.New("boom")
	})
	bus.Handle(func(ctx context.Context, e Event) error {
		panic("handler panic is recovered")
	})

	bus.Publish(context.Background(), testEvent{Session: "x"})
	bus.Publish(context.Background(), testEvent{Session: "y"})
	bus.Stop()

	require.Equal(t, int32(4), calls.Load())
}

func TestSubscription_CloseIsIdempotent(t *testing.T) {
	bus := NewBus(1, zerolog.Nop())
	sub := bus.Subscribe("s1")

	sub.Close()
	sub.Close()

	_, ok := <-sub.C
	assert.False(t, ok)
}

func TestBus_SaturatedPoolDoesNotBlockSubscriptions(t *testing.T) {
	bus := NewBus(4, zerolog.Nop())
	bus.pool = make(chan struct{}, 1)

	release := make(chan struct{})
	bus.Handle(func(context.Context, Event) error {
		<-release
		return nil
	})

	bus.Publish(context.Background(), testEvent{Session: "s1", Seq: 1})

	queued := make(chan struct{})
	go func() {
		bus.Publish(context.Background(), testEvent{Session: "s1", Seq: 2})
		close(queued)
	}()

	sub := bus.Subscribe("s2")
	closed := make(chan struct{})
	go func() {
		bus.CloseSession("s2")
		close(closed)
	}()

	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("CloseSession waited on a busy handler pool")
	}
	_, open := <-sub.C
	assert.False(t, open)

	close(release)
	select {
	case <-queued:
	case <-time.After(time.Second):
		t.Fatal("queued publish never dispatched")
	}
	bus.Stop()
}
