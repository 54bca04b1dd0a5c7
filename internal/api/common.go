package api

import (
	"errors"
	"log/slog"
	"math"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"helpdesk.com/internal/api/middleware"
	"helpdesk.com/internal/domain"
)

// Pagination 元数据结构
type Pagination struct {
	Page      int   `json:"page"`       // 当前页码
	PageSize  int   `json:"page_size"`  // 每页条数
	Total     int64 `json:"total"`      // 总记录数
	TotalPage int   `json:"total_page"` // 总页数
}

// ListResponse 统一的分页响应结构
type ListResponse struct {
	Data       interface{} `json:"data"`       // 数据列表
	Pagination Pagination  `json:"pagination"` // 分页信息
}

// ErrorResponse 统一的错误响应结构
type ErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// SendPaginatedResponse 发送标准的分页响应
func SendPaginatedResponse(c *fiber.Ctx, data interface{}, page, pageSize int, total int64) error {
	totalPage := 0
	if pageSize > 0 {
		totalPage = int(math.Ceil(float64(total) / float64(pageSize)))
	}

	return c.JSON(ListResponse{
		Data: data,
		Pagination: Pagination{
			Page:      page,
			PageSize:  pageSize,
			Total:     total,
			TotalPage: totalPage,
		},
	})
}

// handleError 将业务错误映射为 HTTP 响应
func handleError(c *fiber.Ctx, err error) error {
	var appErr *domain.AppError
	if !errors.As(err, &appErr) {
		slog.Error("unhandled error", "path", c.Path(), "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "internal server error"})
	}

	if appErr.Code >= fiber.StatusInternalServerError {
		// 内部错误不向客户端暴露细节
		slog.Error("request failed", "path", c.Path(), "method", c.Method(), "error", appErr)
		return c.Status(appErr.Code).JSON(ErrorResponse{Error: appErr.Message})
	}
	return c.Status(appErr.Code).JSON(ErrorResponse{Error: appErr.Message, Fields: appErr.Fields})
}

func parseID(c *fiber.Ctx) (uint, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, domain.NewNotFoundError("user not found")
	}
	return uint(id), nil
}

// currentUser returns the authenticated caller set by the auth middleware.
func currentUser(c *fiber.Ctx) (*domain.UserRecord, error) {
	record := middleware.CurrentUser(c)
	if record == nil {
		return nil, domain.NewUnauthorizedError("authentication credentials were not provided")
	}
	return record, nil
}
