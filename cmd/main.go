package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"helpdesk.com/internal/api"
	"helpdesk.com/internal/auth"
	"helpdesk.com/internal/config"
	"helpdesk.com/internal/constants"
	"helpdesk.com/internal/engine"
	"helpdesk.com/internal/event"
	"helpdesk.com/internal/infra"
	"helpdesk.com/internal/service"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

// run 返回错误而不是直接退出，保证 defer 的清理逻辑得以执行
func run() error {
	// 1. 加载配置
	cfg := config.LoadConfig()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.Server.SlogLevel(),
	})))

	// 2. 初始化基础设施
	// Database
	dbClient, err := infra.NewDBClient(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer dbClient.Close()

	// Redis
	rdb := infra.NewRedisClient(cfg.Redis)
	defer rdb.Close()
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}

	// 3. 鉴权
	if cfg.JWT.Secret == "" {
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			return fmt.Errorf("generate jwt secret: %w", err)
		}
		cfg.JWT.Secret = hex.EncodeToString(buf)
		slog.Warn("jwt.secret is not set, using a random secret; tokens will not survive a restart")
	}
	tokens, err := auth.NewTokenIssuer(cfg.JWT, infra.NewRedisTokenStore(rdb))
	if err != nil {
		return fmt.Errorf("create token issuer: %w", err)
	}
	enforcer, err := auth.InitCasbin(dbClient.DB)
	if err != nil {
		return fmt.Errorf("initialize casbin: %w", err)
	}

	// 4. 业务服务
	bus := event.NewBus(256)
	users := service.NewUserService(dbClient.DB, service.NewProfileSynchronizer(cfg.Media.DefaultPhoto), bus)
	authSvc := service.NewAuthService(dbClient.DB, tokens, users, bus)
	if err := users.EnsureSuperuser(context.Background(), cfg.Bootstrap); err != nil {
		return fmt.Errorf("bootstrap superuser: %w", err)
	}

	// 5. 初始化引擎 (WebSocket 管理器与活动事件转发)
	wsHub := infra.NewWsManager()
	eng := engine.NewEngine(bus, wsHub, infra.NewActivityRelay(rdb, constants.RedisChannelActivity))
	if err := eng.Start(); err != nil {
		return fmt.Errorf("start engine: %w", err)
	}
	defer eng.Stop()

	// 6. 设置 Fiber 服务器
	app := api.NewServer(cfg, api.Deps{
		Enforcer:    enforcer,
		UserService: users,
		AuthService: authSvc,
		WsManager:   wsHub,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		slog.Info("shutting down server")
		if err := app.Shutdown(); err != nil {
			slog.Error("server shutdown failed", "error", err)
		}
	}()

	// 7. 启动服务器
	slog.Info("server starting", "port", cfg.Server.Port)
	if err := app.Listen(cfg.Server.Port); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return nil
}
