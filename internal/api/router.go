package api

import (
	"sort"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/gofiber/fiber/v2"
	"helpdesk.com/internal/api/middleware"
	"helpdesk.com/internal/auth"
	"helpdesk.com/internal/config"
	"helpdesk.com/internal/domain"
	"helpdesk.com/internal/infra"
)

// Deps 路由依赖
type Deps struct {
	Enforcer    *casbin.Enforcer
	UserService domain.UserService
	AuthService domain.AuthService
	WsManager   *infra.WsManager
}

// Router 负责注册所有路由
type Router struct {
	app    *fiber.App
	cfg    *config.Config
	deps   Deps
	router fiber.Router // /api group
}

func NewRouter(app *fiber.App, cfg *config.Config, deps Deps) *Router {
	return &Router{
		app:  app,
		cfg:  cfg,
		deps: deps,
	}
}

// RouteInfo is one entry of the route listing.
type RouteInfo struct {
	Method string `json:"method"`
	Path   string `json:"path"`
}

// RegisterRoutes 注册所有业务路由
func (r *Router) RegisterRoutes() {
	// 1. 初始化各个 Handler
	views := NewViewBuilder(r.cfg.Server, r.cfg.Media)
	incidentRoles := auth.ParseRoles(r.cfg.Permissions.IncidentManagerRoles)
	authHandler := NewAuthHandler(r.deps.AuthService, views, incidentRoles)
	userHandler := NewUserHandler(r.deps.UserService, views)

	// 2. 注册 WebSocket 路由 (令牌在查询参数中)
	if r.deps.WsManager != nil {
		InitWebsocket(r.app, r.deps.WsManager, r.deps.AuthService)
	}

	// 3. 注册公开路由 (Public); 必须在 /api 中间件之前注册
	r.app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status":  "ok",
			"message": "Service is healthy",
		})
	})
	r.app.Get("/api", r.listRoutes)
	throttle := middleware.RateLimit(r.cfg.RateLimit.LoginPerMinute, r.cfg.RateLimit.LoginBurst)
	r.app.Post("/api/token", throttle, authHandler.Login)
	r.app.Post("/api/token/refresh", throttle, authHandler.Refresh)
	r.app.Post("/api/token/revoke", authHandler.Logout)

	// 4. 注册受保护的 API 路由 (Protected /api)
	r.router = r.app.Group("/api")
	r.router.Use(middleware.CasbinMiddleware(r.deps.Enforcer, r.deps.AuthService))

	r.router.Get("/me", authHandler.GetMe)
	r.registerUserRoutes(userHandler)
}

func (r *Router) registerUserRoutes(h *UserHandler) {
	users := r.router.Group("/users")
	users.Get("/", h.ListUsers)
	users.Post("/", h.CreateUser)
	users.Get("/:id", h.GetUser)
	users.Put("/:id", h.UpdateUser)
	users.Patch("/:id", h.UpdateUser)
	users.Delete("/:id", h.DeleteUser)
	users.Put("/:id/flags", h.SetFlags)
}

// listRoutes 列出已注册的 API 路由
func (r *Router) listRoutes(c *fiber.Ctx) error {
	seen := map[RouteInfo]bool{}
	routes := []RouteInfo{}
	for _, route := range r.app.GetRoutes(true) {
		if route.Method == fiber.MethodHead || route.Method == fiber.MethodOptions {
			continue
		}
		if !strings.HasPrefix(route.Path, "/api/") && !strings.HasPrefix(route.Path, "/ws/") {
			continue
		}
		info := RouteInfo{Method: route.Method, Path: strings.TrimSuffix(route.Path, "/")}
		if !seen[info] {
			seen[info] = true
			routes = append(routes, info)
		}
	}
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path == routes[j].Path {
			return routes[i].Method < routes[j].Method
		}
		return routes[i].Path < routes[j].Path
	})
	return c.JSON(routes)
}
