package domain

import "errors"

// 定义通用业务错误
var (
	ErrNotFound         = errors.New("resource not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrForbiddenAction  = errors.New("forbidden action")
	ErrPermissionDenied = errors.New("permission denied")
	ErrInternalError    = errors.New("internal error")
)

// AppError 应用错误，包含错误码和消息
type AppError struct {
	Code    int               // HTTP 状态码
	Message string            // 用户友好的错误消息
	Fields  map[string]string // 字段级校验错误
	Err     error             // 原始错误
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// 创建常见错误的便捷函数
func NewNotFoundError(msg string) *AppError {
	return &AppError{Code: 404, Message: msg, Err: ErrNotFound}
}

func NewBadRequestError(msg string) *AppError {
	return &AppError{Code: 400, Message: msg, Err: ErrInvalidInput}
}

// NewValidationError reports per-field failures; fields must not be empty.
func NewValidationError(fields map[string]string) *AppError {
	return &AppError{Code: 400, Message: "validation failed", Fields: fields, Err: ErrInvalidInput}
}

// NewFieldError is a single-field validation error.
func NewFieldError(field, msg string) *AppError {
	return NewValidationError(map[string]string{field: msg})
}

func NewUnauthorizedError(msg string) *AppError {
	return &AppError{Code: 401, Message: msg, Err: ErrUnauthorized}
}

// NewForbiddenActionError is returned for actions that are never allowed on
// the target, whoever asks (deleting a superuser, deleting oneself).
func NewForbiddenActionError(msg string) *AppError {
	return &AppError{Code: 403, Message: msg, Err: ErrForbiddenAction}
}

// NewPermissionDeniedError is returned when the caller's role is insufficient.
func NewPermissionDeniedError(msg string) *AppError {
	return &AppError{Code: 403, Message: msg, Err: ErrPermissionDenied}
}

func NewInternalError(msg string, err error) *AppError {
	if err == nil {
		err = ErrInternalError
	}
	return &AppError{Code: 500, Message: msg, Err: err}
}

// StatusCode extracts the HTTP status of err, defaulting to 500.
func StatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Code != 0 {
		return appErr.Code
	}
	return 500
}
