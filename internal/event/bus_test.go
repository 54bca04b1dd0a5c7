package event

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPublishSyncDeliversToAllHandlers(t *testing.T) {
	bus := NewBus(4)
	defer bus.Shutdown()

	var calls atomic.Int32
	bus.Subscribe("user.created", func(context.Context, Event) error {
		calls.Add(1)
		return nil
	})
	bus.Subscribe("user.created", func(context.Context, Event) error {
		calls.Add(1)
		return errors.New("ignored")
	})
	require.Equal(t, 2, bus.SubscriberCount("user.created"))

	bus.PublishSync(context.Background(), Event{Type: "user.created"})
	require.Equal(t, int32(2), calls.Load())

	bus.PublishSync(context.Background(), Event{Type: "user.deleted"})
	require.Equal(t, int32(2), calls.Load())
}

func TestPublishAsync(t *testing.T) {
	bus := NewBus(4)
	defer bus.Shutdown()

	got := make(chan Event, 1)
	bus.Subscribe("user.updated", func(_ context.Context, e Event) error {
		got <- e
		return nil
	})

	bus.Publish(Event{Type: "user.updated", Data: UserChange{IdentityID: 9}})

	select {
	case e := <-got:
		require.False(t, e.Timestamp.IsZero())
		require.Equal(t, uint(9), e.Data.(UserChange).IdentityID)
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestNilBusIsNoop(t *testing.T) {
	var bus *Bus
	bus.Publish(Event{Type: "user.created"})
	bus.PublishSync(context.Background(), Event{Type: "user.created"})
}

func TestShutdownIsIdempotent(t *testing.T) {
	bus := NewBus(1)
	bus.Shutdown()
	bus.Shutdown()
	bus.Publish(Event{Type: "user.created"})
}
