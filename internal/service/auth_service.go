package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"helpdesk.com/internal/auth"
	"helpdesk.com/internal/constants"
	"helpdesk.com/internal/domain"
	"helpdesk.com/internal/event"
	"helpdesk.com/internal/model"
)

const invalidCredentials = "no active account found with the given credentials"

// AuthServiceImpl 实现 domain.AuthService 接口
type AuthServiceImpl struct {
	db     *gorm.DB
	tokens *auth.TokenIssuer
	users  domain.UserService
	bus    *event.Bus
}

func NewAuthService(db *gorm.DB, tokens *auth.TokenIssuer, users domain.UserService, bus *event.Bus) *AuthServiceImpl {
	return &AuthServiceImpl{
		db:     db,
		tokens: tokens,
		users:  users,
		bus:    bus,
	}
}

// Login 支持用户名或邮箱登录，停用账户视为凭证无效
func (s *AuthServiceImpl) Login(ctx context.Context, username, password string) (auth.TokenPair, error) {
	loginID := strings.TrimSpace(username)
	if loginID == "" || password == "" {
		return auth.TokenPair{}, domain.NewValidationError(map[string]string{
			"username": "username and password are required",
		})
	}

	var identity model.Identity
	err := s.db.WithContext(ctx).
		Where("username = ? OR email = ?", loginID, loginID).
		First(&identity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return auth.TokenPair{}, domain.NewUnauthorizedError(invalidCredentials)
		}
		return auth.TokenPair{}, domain.NewInternalError("failed to load user", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(identity.Password), []byte(password)) != nil || !identity.IsActive {
		return auth.TokenPair{}, domain.NewUnauthorizedError(invalidCredentials)
	}

	pair, err := s.tokens.Issue(&identity)
	if err != nil {
		return auth.TokenPair{}, domain.NewInternalError("failed to issue token", err)
	}

	slog.Info("token issued", "identity_id", identity.ID, "username", identity.Username)
	s.bus.Publish(event.Event{
		Type:    constants.EventTokenIssued,
		Source:  "auth_service",
		ActorID: identity.ID,
		Data:    event.UserChange{IdentityID: identity.ID, Username: identity.Username},
	})
	return pair, nil
}

// Refresh 轮换刷新令牌：旧令牌作废，签发新的一对
func (s *AuthServiceImpl) Refresh(ctx context.Context, refreshToken string) (auth.TokenPair, error) {
	claims, err := s.parseRefresh(ctx, refreshToken)
	if err != nil {
		return auth.TokenPair{}, err
	}
	id, err := claims.IdentityID()
	if err != nil {
		return auth.TokenPair{}, domain.NewUnauthorizedError(err.Error())
	}

	record, err := s.users.LoadUser(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return auth.TokenPair{}, domain.NewUnauthorizedError(invalidCredentials)
		}
		return auth.TokenPair{}, err
	}
	if !record.Identity.IsActive {
		return auth.TokenPair{}, domain.NewUnauthorizedError(invalidCredentials)
	}

	// 原子作废: 并发使用同一刷新令牌时只有一个请求成功
	if err := s.revoke(ctx, claims); err != nil {
		return auth.TokenPair{}, err
	}
	pair, err := s.tokens.Issue(&record.Identity)
	if err != nil {
		return auth.TokenPair{}, domain.NewInternalError("failed to issue token", err)
	}
	return pair, nil
}

// Revoke 作废刷新令牌 (登出)
func (s *AuthServiceImpl) Revoke(ctx context.Context, refreshToken string) error {
	claims, err := s.parseRefresh(ctx, refreshToken)
	if err != nil {
		return err
	}
	if err := s.revoke(ctx, claims); err != nil {
		return err
	}

	id, _ := claims.IdentityID()
	s.bus.Publish(event.Event{
		Type:    constants.EventTokenRevoked,
		Source:  "auth_service",
		ActorID: id,
		Data:    event.UserChange{IdentityID: id, Username: claims.Username},
	})
	return nil
}

// Authenticate 校验访问令牌并加载当前用户
func (s *AuthServiceImpl) Authenticate(ctx context.Context, accessToken string) (*domain.UserRecord, error) {
	claims, err := s.tokens.ParseAccess(accessToken)
	if err != nil {
		return nil, domain.NewUnauthorizedError(err.Error())
	}
	id, err := claims.IdentityID()
	if err != nil {
		return nil, domain.NewUnauthorizedError(err.Error())
	}

	record, err := s.users.LoadUser(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewUnauthorizedError("user not found")
		}
		return nil, err
	}
	if !record.Identity.IsActive {
		return nil, domain.NewUnauthorizedError("user is inactive")
	}
	return record, nil
}

func (s *AuthServiceImpl) revoke(ctx context.Context, claims *auth.Claims) error {
	err := s.tokens.Revoke(ctx, claims)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrTokenRevoked):
		return domain.NewUnauthorizedError(err.Error())
	default:
		return domain.NewInternalError("failed to revoke token", err)
	}
}

func (s *AuthServiceImpl) parseRefresh(ctx context.Context, raw string) (*auth.Claims, error) {
	if raw == "" {
		return nil, domain.NewFieldError("refresh", "this field is required")
	}
	claims, err := s.tokens.ParseRefresh(ctx, raw)
	switch {
	case err == nil:
		return claims, nil
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrTokenRevoked):
		return nil, domain.NewUnauthorizedError(err.Error())
	default:
		return nil, domain.NewInternalError("failed to verify token", err)
	}
}

// 确保实现了接口
var _ domain.AuthService = (*AuthServiceImpl)(nil)
