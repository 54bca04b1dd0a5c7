package api

import (
	"github.com/gofiber/fiber/v2"
	"helpdesk.com/internal/domain"
)

type UserHandler struct {
	users domain.UserService
	views *ViewBuilder
}

func NewUserHandler(users domain.UserService, views *ViewBuilder) *UserHandler {
	return &UserHandler{users: users, views: views}
}

// ListUsers 用户列表; 带 page_size 时返回分页结构
func (h *UserHandler) ListUsers(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return handleError(c, err)
	}

	page := c.QueryInt("page", 1)
	pageSize := c.QueryInt("page_size", 0)
	if pageSize < 0 {
		pageSize = 0
	}

	records, total, err := h.users.ListUsers(c.UserContext(), actor.Subject(), page, pageSize)
	if err != nil {
		return handleError(c, err)
	}

	if pageSize > 0 {
		return SendPaginatedResponse(c, h.views.Users(records), page, pageSize, total)
	}
	return c.JSON(h.views.Users(records))
}

func (h *UserHandler) GetUser(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return handleError(c, err)
	}
	id, err := parseID(c)
	if err != nil {
		return handleError(c, err)
	}

	record, err := h.users.GetUser(c.UserContext(), actor.Subject(), id)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(h.views.User(record))
}

func (h *UserHandler) CreateUser(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return handleError(c, err)
	}

	var in domain.CreateUserInput
	if err := c.BodyParser(&in); err != nil {
		return handleError(c, domain.NewBadRequestError("invalid request body"))
	}

	record, err := h.users.CreateUser(c.UserContext(), actor.Subject(), in)
	if err != nil {
		return handleError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(h.views.User(record))
}

// UpdateUser 合并更新; 请求体按字段白名单拆分为用户与档案两部分
func (h *UserHandler) UpdateUser(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return handleError(c, err)
	}
	id, err := parseID(c)
	if err != nil {
		return handleError(c, err)
	}

	payload := map[string]any{}
	if err := c.BodyParser(&payload); err != nil {
		return handleError(c, domain.NewBadRequestError("invalid request body"))
	}

	record, err := h.users.UpdateUser(c.UserContext(), actor.Subject(), id, payload)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(h.views.User(record))
}

func (h *UserHandler) DeleteUser(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return handleError(c, err)
	}
	id, err := parseID(c)
	if err != nil {
		return handleError(c, err)
	}

	if err := h.users.DeleteUser(c.UserContext(), actor.Subject(), id); err != nil {
		return handleError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *UserHandler) SetFlags(c *fiber.Ctx) error {
	actor, err := currentUser(c)
	if err != nil {
		return handleError(c, err)
	}
	id, err := parseID(c)
	if err != nil {
		return handleError(c, err)
	}

	var in domain.FlagsInput
	if err := c.BodyParser(&in); err != nil {
		return handleError(c, domain.NewBadRequestError("invalid request body"))
	}

	record, err := h.users.SetFlags(c.UserContext(), actor.Subject(), id, in)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(h.views.User(record))
}
