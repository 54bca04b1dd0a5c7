package event

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Event 表示系统中的一个事件
type Event struct {
	Type      string      `json:"type"`      // 事件类型
	Source    string      `json:"source"`    // 事件来源
	ActorID   uint        `json:"actor_id"`  // 触发者 (0 表示系统)
	Data      interface{} `json:"data"`      // 事件数据
	Timestamp time.Time   `json:"timestamp"` // 时间戳
}

// UserChange is the payload of user.* events.
type UserChange struct {
	IdentityID uint   `json:"identity_id"`
	Username   string `json:"username"`
	Role       string `json:"role,omitempty"`
}

// Handler 事件处理函数
type Handler func(ctx context.Context, event Event) error

// Bus 事件总线，用于解耦系统各个组件
type Bus struct {
	handlers map[string][]Handler
	mu       sync.RWMutex

	// 异步处理的缓冲通道
	eventChan chan Event
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewBus 创建新的事件总线
func NewBus(bufferSize int) *Bus {
	ctx, cancel := context.WithCancel(context.Background())

	bus := &Bus{
		handlers:  make(map[string][]Handler),
		eventChan: make(chan Event, bufferSize),
		ctx:       ctx,
		cancel:    cancel,
	}

	bus.wg.Add(1)
	go bus.processEvents()

	return bus
}

// Subscribe 订阅事件类型
func (b *Bus) Subscribe(eventType string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)
	slog.Debug("event bus subscription", "type", eventType)
}

// Publish 发布事件（异步），通道满时丢弃
func (b *Bus) Publish(event Event) {
	if b == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case <-b.ctx.Done():
	case b.eventChan <- event:
	default:
		slog.Warn("event bus channel full, dropping event", "type", event.Type)
	}
}

// PublishSync 同步发布事件（立即处理）
func (b *Bus) PublishSync(ctx context.Context, event Event) {
	if b == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	b.dispatch(ctx, event)
}

func (b *Bus) processEvents() {
	defer b.wg.Done()

	for {
		select {
		case event := <-b.eventChan:
			b.dispatch(b.ctx, event)
		case <-b.ctx.Done():
			return
		}
	}
}

// dispatch 并发执行所有订阅者，错误只记录日志
func (b *Bus) dispatch(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers[event.Type]...)
	b.mu.RUnlock()

	var wg sync.WaitGroup
	for _, handler := range handlers {
		wg.Add(1)
		go func(h Handler) {
			defer wg.Done()
			if err := h(ctx, event); err != nil {
				slog.Error("event handler failed", "type", event.Type, "error", err)
			}
		}(handler)
	}
	wg.Wait()
}

// Shutdown 关闭事件总线，未处理的事件被丢弃
func (b *Bus) Shutdown() {
	b.closeOnce.Do(func() {
		b.cancel()
		b.wg.Wait()
		slog.Info("event bus stopped")
	})
}

// SubscriberCount 获取某个事件类型的订阅者数量
func (b *Bus) SubscriberCount(eventType string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[eventType])
}
