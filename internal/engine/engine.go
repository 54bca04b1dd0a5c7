package engine

import (
	"context"
	"log/slog"

	"helpdesk.com/internal/constants"
	"helpdesk.com/internal/domain"
	"helpdesk.com/internal/event"
	"helpdesk.com/internal/infra"
)

// Engine 是一个轻量级协调器，负责：
// 1. 启动后台进程（WebSocket 管理器）
// 2. 将用户生命周期事件转发给管理员活动推送
// 3. 配置了 relay 时经 Redis 在多个实例之间共享活动推送
type Engine struct {
	bus          *event.Bus
	websocketHub *infra.WsManager
	relay        *infra.ActivityRelay

	// 上下文控制
	ctx    context.Context
	cancel context.CancelFunc
}

// NewEngine 创建引擎; relay 可以为 nil (单实例)
func NewEngine(bus *event.Bus, websocketHub *infra.WsManager, relay *infra.ActivityRelay) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		bus:          bus,
		websocketHub: websocketHub,
		relay:        relay,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Start 启动引擎后台进程
func (e *Engine) Start() error {
	slog.Info("engine starting")

	// 1. 启动 WebSocket 管理器
	go e.websocketHub.Start(e.ctx)

	// 2. 启动跨实例转发
	if e.relay != nil {
		if err := e.relay.Start(e.ctx, e.websocketHub); err != nil {
			e.cancel()
			return err
		}
	}

	// 3. 订阅活动事件
	for _, eventType := range constants.ActivityEvents {
		e.bus.Subscribe(eventType, e.forwardActivity)
	}

	slog.Info("engine started", "activity_events", len(constants.ActivityEvents), "relay", e.relay != nil)
	return nil
}

// forwardActivity 推送给本实例的客户端，或经 relay 推送给所有实例
func (e *Engine) forwardActivity(ctx context.Context, ev event.Event) error {
	if e.relay != nil {
		return e.relay.Publish(ctx, ev)
	}
	e.GetNotifier().BroadcastToAll(ev)
	return nil
}

// Stop 停止引擎，未处理的事件被丢弃
func (e *Engine) Stop() {
	slog.Info("engine stopping")
	e.bus.Shutdown()
	e.cancel()
}

// GetNotifier 返回 WebSocket 通知器 (实现 domain.Notifier 接口)
func (e *Engine) GetNotifier() domain.Notifier {
	return e.websocketHub
}
