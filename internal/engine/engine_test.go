package engine

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"helpdesk.com/internal/constants"
	"helpdesk.com/internal/event"
	"helpdesk.com/internal/infra"
	"helpdesk.com/internal/infra/infratest"
)

type recordingConn struct {
	mu   sync.Mutex
	msgs []interface{}
}

func (r *recordingConn) WriteJSON(v interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, v)
	return nil
}

func (r *recordingConn) Close() error { return nil }

func (r *recordingConn) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.msgs)
}

func TestActivityEventsReachWebsocketClients(t *testing.T) {
	bus := event.NewBus(16)
	hub := infra.NewWsManager()
	eng := NewEngine(bus, hub, nil)
	require.NoError(t, eng.Start())
	defer eng.Stop()

	for _, typ := range constants.ActivityEvents {
		require.Equal(t, 1, bus.SubscriberCount(typ))
	}
	require.Zero(t, bus.SubscriberCount(constants.EventTokenIssued))

	conn := &recordingConn{}
	hub.Register <- infra.UserConnection{UserID: 1, Conn: conn}
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	bus.PublishSync(context.Background(), event.Event{
		Type: constants.EventUserCreated,
		Data: event.UserChange{IdentityID: 2, Username: "bob"},
	})
	bus.PublishSync(context.Background(), event.Event{Type: constants.EventTokenIssued})

	require.Eventually(t, func() bool { return conn.count() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, 1, conn.count())
}

func TestActivityEventsTravelThroughRelay(t *testing.T) {
	rdb, _ := infratest.NewRedis(t)

	// Two instances sharing one channel.
	busA, hubA := event.NewBus(16), infra.NewWsManager()
	busB, hubB := event.NewBus(16), infra.NewWsManager()
	engA := NewEngine(busA, hubA, infra.NewActivityRelay(rdb, constants.RedisChannelActivity))
	engB := NewEngine(busB, hubB, infra.NewActivityRelay(rdb, constants.RedisChannelActivity))
	require.NoError(t, engA.Start())
	defer engA.Stop()
	require.NoError(t, engB.Start())
	defer engB.Stop()

	connA, connB := &recordingConn{}, &recordingConn{}
	hubA.Register <- infra.UserConnection{UserID: 1, Conn: connA}
	hubB.Register <- infra.UserConnection{UserID: 1, Conn: connB}
	require.Eventually(t, func() bool {
		return hubA.ClientCount() == 1 && hubB.ClientCount() == 1
	}, time.Second, 5*time.Millisecond)

	busA.PublishSync(context.Background(), event.Event{
		Type: constants.EventUserDeleted,
		Data: event.UserChange{IdentityID: 3, Username: "carl"},
	})

	require.Eventually(t, func() bool {
		return connA.count() == 1 && connB.count() == 1
	}, 2*time.Second, 10*time.Millisecond)

	connB.mu.Lock()
	raw, ok := connB.msgs[0].(json.RawMessage)
	connB.mu.Unlock()
	require.True(t, ok)

	var got event.Event
	require.NoError(t, json.Unmarshal(raw, &got))
	require.Equal(t, constants.EventUserDeleted, got.Type)
}
