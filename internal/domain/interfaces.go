package domain

import (
	"context"

	"helpdesk.com/internal/auth"
	"helpdesk.com/internal/config"
	"helpdesk.com/internal/model"
)

// UserRecord is the merged identity + profile view. Profile is nil when the
// identity has no profile row.
type UserRecord struct {
	Identity model.Identity
	Profile  *model.Profile
}

// Subject snapshots the record for permission checks.
func (r *UserRecord) Subject() auth.Subject {
	return auth.SubjectOf(&r.Identity, r.Profile)
}

// CreateUserInput is the POST /users/ payload. Nil pointers mean "not supplied".
type CreateUserInput struct {
	Username        string            `json:"username"`
	Email           string            `json:"email"`
	Password        string            `json:"password"`
	PasswordConfirm string            `json:"password_confirm"`
	FirstName       string            `json:"first_name"`
	LastName        string            `json:"last_name"`
	Role            *model.Role       `json:"role"`
	Phone           *string           `json:"phone"`
	Department      *model.Department `json:"department"`
}

// FlagsInput toggles the identity's superuser/staff flags.
type FlagsInput struct {
	IsSuperuser *bool `json:"is_superuser"`
	IsStaff     *bool `json:"is_staff"`
}

// ===========================
// 用户服务接口
// ===========================

// UserService 定义用户与档案的管理操作，每个操作在一个事务内完成
type UserService interface {
	// 用户列表 (pageSize <= 0 返回全部)
	ListUsers(ctx context.Context, actor auth.Subject, page, pageSize int) ([]UserRecord, int64, error)
	// 用户详情
	GetUser(ctx context.Context, actor auth.Subject, id uint) (*UserRecord, error)
	// 创建用户及其档案
	CreateUser(ctx context.Context, actor auth.Subject, in CreateUserInput) (*UserRecord, error)
	// 合并更新用户与档案 (按字段白名单拆分)
	UpdateUser(ctx context.Context, actor auth.Subject, id uint, payload map[string]any) (*UserRecord, error)
	// 删除用户 (档案级联删除)
	DeleteUser(ctx context.Context, actor auth.Subject, id uint) error
	// 设置超级用户/员工标记
	SetFlags(ctx context.Context, actor auth.Subject, id uint, in FlagsInput) (*UserRecord, error)
	// 加载用户 (不做权限检查，用于鉴权)
	LoadUser(ctx context.Context, id uint) (*UserRecord, error)
	// 空库时创建初始超级用户
	EnsureSuperuser(ctx context.Context, cfg config.BootstrapConfig) error
}

// ===========================
// 认证服务接口
// ===========================

// AuthService 签发与刷新令牌
type AuthService interface {
	Login(ctx context.Context, username, password string) (auth.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (auth.TokenPair, error)
	Revoke(ctx context.Context, refreshToken string) error
	// 校验访问令牌并加载当前用户
	Authenticate(ctx context.Context, accessToken string) (*UserRecord, error)
}

// ===========================
// WebSocket 推送接口
// ===========================

// Notifier 定义推送通知的接口
type Notifier interface {
	// 广播消息给所有连接的客户端
	BroadcastToAll(data interface{})
}
