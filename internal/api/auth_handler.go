package api

import (
	"github.com/gofiber/fiber/v2"
	"helpdesk.com/internal/auth"
	"helpdesk.com/internal/domain"
	"helpdesk.com/internal/model"
)

type AuthHandler struct {
	auth          domain.AuthService
	views         *ViewBuilder
	incidentRoles []model.Role
}

func NewAuthHandler(authSvc domain.AuthService, views *ViewBuilder, incidentRoles []model.Role) *AuthHandler {
	return &AuthHandler{
		auth:          authSvc,
		views:         views,
		incidentRoles: incidentRoles,
	}
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	Refresh string `json:"refresh"`
}

// Login 签发访问/刷新令牌对
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return handleError(c, domain.NewBadRequestError("invalid request body"))
	}

	pair, err := h.auth.Login(c.UserContext(), req.Username, req.Password)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(pair)
}

// Refresh 轮换刷新令牌
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var req RefreshRequest
	if err := c.BodyParser(&req); err != nil {
		return handleError(c, domain.NewBadRequestError("invalid request body"))
	}

	pair, err := h.auth.Refresh(c.UserContext(), req.Refresh)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(pair)
}

// Logout 作废刷新令牌
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	var req RefreshRequest
	if err := c.BodyParser(&req); err != nil {
		return handleError(c, domain.NewBadRequestError("invalid request body"))
	}

	if err := h.auth.Revoke(c.UserContext(), req.Refresh); err != nil {
		return handleError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetMe 当前用户及其能力
func (h *AuthHandler) GetMe(c *fiber.Ctx) error {
	record, err := currentUser(c)
	if err != nil {
		return handleError(c, err)
	}

	return c.JSON(MeView{
		UserView:     h.views.User(record),
		Capabilities: auth.CapabilitiesOf(record.Subject(), h.incidentRoles),
	})
}
