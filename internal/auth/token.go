package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"helpdesk.com/internal/config"
	"helpdesk.com/internal/model"
)

var (
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrTokenRevoked = errors.New("token has been revoked")
)

type TokenType string

const (
	TokenAccess  TokenType = "access"
	TokenRefresh TokenType = "refresh"
)

// Claims carried by both access and refresh tokens.
type Claims struct {
	Username  string    `json:"username"`
	TokenType TokenType `json:"token_type"`
	jwt.RegisteredClaims
}

// IdentityID parses the numeric subject.
func (c *Claims) IdentityID() (uint, error) {
	id, err := strconv.ParseUint(c.Subject, 10, 64)
	if err != nil {
		return 0, ErrInvalidToken
	}
	return uint(id), nil
}

type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// RevocationStore remembers revoked refresh-token IDs until they would expire anyway.
// Revoke is atomic and reports false when the ID was already revoked.
type RevocationStore interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) (bool, error)
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// TokenIssuer signs HS256 access/refresh pairs with separate lifetimes.
type TokenIssuer struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	revoked    RevocationStore
	now        func() time.Time
}

func NewTokenIssuer(cfg config.JWTConfig, revoked RevocationStore) (*TokenIssuer, error) {
	if cfg.Secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("jwt lifetimes must be positive")
	}
	return &TokenIssuer{
		secret:     []byte(cfg.Secret),
		issuer:     cfg.Issuer,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		revoked:    revoked,
		now:        time.Now,
	}, nil
}

func (t *TokenIssuer) Issue(identity *model.Identity) (TokenPair, error) {
	access, err := t.sign(identity, TokenAccess, t.accessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := t.sign(identity, TokenRefresh, t.refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{Access: access, Refresh: refresh}, nil
}

func (t *TokenIssuer) sign(identity *model.Identity, typ TokenType, ttl time.Duration) (string, error) {
	now := t.now()
	claims := Claims{
		Username:  identity.Username,
		TokenType: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatUint(uint64(identity.ID), 10),
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", typ, err)
	}
	return signed, nil
}

func (t *TokenIssuer) parse(raw string, want TokenType) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	}
	if t.issuer != "" {
		opts = append(opts, jwt.WithIssuer(t.issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return t.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.TokenType != want {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (t *TokenIssuer) ParseAccess(raw string) (*Claims, error) {
	return t.parse(raw, TokenAccess)
}

// ParseRefresh validates a refresh token and rejects revoked ones.
func (t *TokenIssuer) ParseRefresh(ctx context.Context, raw string) (*Claims, error) {
	claims, err := t.parse(raw, TokenRefresh)
	if err != nil {
		return nil, err
	}
	if t.revoked == nil {
		return claims, nil
	}
	revoked, err := t.revoked.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return nil, ErrTokenRevoked
	}
	return claims, nil
}

// Revoke blacklists the token ID for the rest of its lifetime. Only one
// caller wins for a given token; the others get ErrTokenRevoked.
func (t *TokenIssuer) Revoke(ctx context.Context, claims *Claims) error {
	if t.revoked == nil || claims.ExpiresAt == nil {
		return nil
	}
	ttl := claims.ExpiresAt.Sub(t.now())
	if ttl <= 0 {
		return ErrInvalidToken
	}
	first, err := t.revoked.Revoke(ctx, claims.ID, ttl)
	if err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	if !first {
		return ErrTokenRevoked
	}
	return nil
}
