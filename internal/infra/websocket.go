package infra

import (
	"context"
	"log/slog"
	"sync"
)

// WsConn is the part of a websocket connection the manager writes to.
type WsConn interface {
	WriteJSON(v interface{}) error
	Close() error
}

// WsManager fans activity messages out to connected admin clients.
type WsManager struct {
	// conn -> identity ID of the connected admin
	clients map[WsConn]uint

	// sendChannels stores a buffered channel for each client so that one slow
	// client never blocks a broadcast.
	sendChannels map[WsConn]chan interface{}

	mu sync.RWMutex

	Register   chan UserConnection
	Unregister chan UserConnection

	// closed when Start returns
	done chan struct{}
}

type UserConnection struct {
	UserID uint
	Conn   WsConn
}

const sendBufferSize = 256

func NewWsManager() *WsManager {
	return &WsManager{
		clients:      make(map[WsConn]uint),
		sendChannels: make(map[WsConn]chan interface{}),
		Register:     make(chan UserConnection),
		Unregister:   make(chan UserConnection),
		done:         make(chan struct{}),
	}
}

// Start runs the register/unregister loop until ctx is cancelled.
func (manager *WsManager) Start(ctx context.Context) {
	slog.Info("websocket manager started")
	defer close(manager.done)
	for {
		select {
		case <-ctx.Done():
			manager.closeAll()
			slog.Info("websocket manager stopped")
			return

		case req := <-manager.Register:
			manager.mu.Lock()
			manager.clients[req.Conn] = req.UserID

			sendCh := make(chan interface{}, sendBufferSize)
			manager.sendChannels[req.Conn] = sendCh

			// dedicated writer per connection
			go func(conn WsConn, ch chan interface{}) {
				for msg := range ch {
					if err := conn.WriteJSON(msg); err != nil {
						slog.Warn("websocket write failed", "error", err)
						_ = conn.Close()
						return
					}
				}
			}(req.Conn, sendCh)
			manager.mu.Unlock()
			slog.Debug("websocket client connected", "identity_id", req.UserID)

		case req := <-manager.Unregister:
			manager.mu.Lock()
			manager.remove(req.Conn)
			manager.mu.Unlock()
			slog.Debug("websocket client disconnected", "identity_id", req.UserID)
		}
	}
}

// remove must be called with mu held.
func (manager *WsManager) remove(conn WsConn) {
	if _, ok := manager.clients[conn]; !ok {
		return
	}
	delete(manager.clients, conn)

	if ch, exists := manager.sendChannels[conn]; exists {
		close(ch)
		delete(manager.sendChannels, conn)
	}
}

func (manager *WsManager) closeAll() {
	manager.mu.Lock()
	defer manager.mu.Unlock()
	for conn := range manager.clients {
		manager.remove(conn)
		_ = conn.Close()
	}
}

func (manager *WsManager) enqueue(conn WsConn, msg interface{}) {
	if ch, exists := manager.sendChannels[conn]; exists {
		select {
		case ch <- msg:
		default:
			// buffer full: drop for this client
		}
	}
}

// BroadcastToAll sends msg to every connected client.
func (manager *WsManager) BroadcastToAll(msg interface{}) {
	manager.mu.RLock()
	defer manager.mu.RUnlock()

	for conn := range manager.clients {
		manager.enqueue(conn, msg)
	}
}

// Join registers a connection; false means the manager has stopped.
func (manager *WsManager) Join(uc UserConnection) bool {
	select {
	case manager.Register <- uc:
		return true
	case <-manager.done:
		return false
	}
}

// Leave unregisters a connection without blocking after shutdown.
func (manager *WsManager) Leave(uc UserConnection) {
	select {
	case manager.Unregister <- uc:
	case <-manager.done:
	}
}

// ClientCount returns the number of registered connections.
func (manager *WsManager) ClientCount() int {
	manager.mu.RLock()
	defer manager.mu.RUnlock()
	return len(manager.clients)
}
