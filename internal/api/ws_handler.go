package api

import (
	"log/slog"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"helpdesk.com/internal/api/middleware"
	"helpdesk.com/internal/auth"
	"helpdesk.com/internal/domain"
	"helpdesk.com/internal/infra"
)

// InitWebsocket registers the admin activity feed at /ws/activity. The access
// token travels in the query string since browsers cannot set headers on
// websocket upgrades.
func InitWebsocket(app *fiber.App, wsManager *infra.WsManager, authSvc domain.AuthService) {
	app.Use("/ws", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}

		token := c.Query("token")
		if token == "" {
			token = middleware.BearerToken(c)
		}
		if token == "" {
			return handleError(c, domain.NewUnauthorizedError("authentication credentials were not provided"))
		}
		record, err := authSvc.Authenticate(c.UserContext(), token)
		if err != nil {
			return handleError(c, err)
		}
		if !auth.HasAdminAccess(record.Subject()) {
			return handleError(c, domain.NewPermissionDeniedError("only administrators can watch activity"))
		}

		c.Locals("identity_id", record.Identity.ID)
		return c.Next()
	})

	app.Get("/ws/activity", websocket.New(func(c *websocket.Conn) {
		userID, _ := c.Locals("identity_id").(uint)
		slog.Info("activity feed connected", "identity_id", userID)

		uc := infra.UserConnection{UserID: userID, Conn: c}
		if !wsManager.Join(uc) {
			slog.Warn("activity feed unavailable, manager stopped", "identity_id", userID)
			return
		}
		defer wsManager.Leave(uc)

		// The feed is push-only; reading detects the close.
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					slog.Warn("activity feed read error", "identity_id", userID, "error", err)
				}
				return
			}
		}
	}))
}
