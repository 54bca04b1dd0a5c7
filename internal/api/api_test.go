package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"helpdesk.com/internal/auth"
	"helpdesk.com/internal/config"
	"helpdesk.com/internal/infra"
	"helpdesk.com/internal/infra/infratest"
	"helpdesk.com/internal/model"
	"helpdesk.com/internal/service"
)

const (
	rootPassword = "r00t-passw0rd"
	userPassword = "abcd1234"
)

func newTestApp(t *testing.T, tweak ...func(*config.Config)) *fiber.App {
	t.Helper()

	cfg := config.Default()
	cfg.JWT.Secret = "api-test-secret"
	cfg.RateLimit.LoginPerMinute = 0
	for _, fn := range tweak {
		fn(cfg)
	}

	db := infratest.NewDB(t)
	rdb, _ := infratest.NewRedis(t)

	issuer, err := auth.NewTokenIssuer(cfg.JWT, infra.NewRedisTokenStore(rdb))
	require.NoError(t, err)
	enforcer, err := auth.InitCasbin(db)
	require.NoError(t, err)

	users := service.NewUserService(db, service.NewProfileSynchronizer(cfg.Media.DefaultPhoto), nil)
	require.NoError(t, users.EnsureSuperuser(context.Background(), config.BootstrapConfig{
		AdminUsername: "root",
		AdminEmail:    "root@example.com",
		AdminPassword: rootPassword,
	}))

	return NewServer(cfg, Deps{
		Enforcer:    enforcer,
		UserService: users,
		AuthService: service.NewAuthService(db, issuer, users, nil),
	})
}

func call(t *testing.T, app *fiber.App, method, path, token string, body interface{}) (int, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(data, &v), string(data))
	return v
}

func login(t *testing.T, app *fiber.App, username, password string) string {
	t.Helper()
	status, data := call(t, app, http.MethodPost, "/api/token/", "", LoginRequest{Username: username, Password: password})
	require.Equal(t, http.StatusOK, status, string(data))
	return decode[auth.TokenPair](t, data).Access
}

func createUser(t *testing.T, app *fiber.App, token, username string, extra map[string]any) UserView {
	t.Helper()
	body := map[string]any{
		"username":         username,
		"email":            username + "@example.com",
		"password":         userPassword,
		"password_confirm": userPassword,
	}
	for k, v := range extra {
		body[k] = v
	}
	status, data := call(t, app, http.MethodPost, "/api/users/", token, body)
	require.Equal(t, http.StatusCreated, status, string(data))
	return decode[UserView](t, data)
}

func TestHealthAndRouteListing(t *testing.T) {
	app := newTestApp(t)

	status, _ := call(t, app, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, status)

	status, data := call(t, app, http.MethodGet, "/api/", "", nil)
	require.Equal(t, http.StatusOK, status)
	routes := decode[[]RouteInfo](t, data)
	require.Contains(t, routes, RouteInfo{Method: http.MethodPost, Path: "/api/users"})
	require.Contains(t, routes, RouteInfo{Method: http.MethodDelete, Path: "/api/users/:id"})
	require.Contains(t, routes, RouteInfo{Method: http.MethodPost, Path: "/api/token"})
}

func TestTokenEndpoints(t *testing.T) {
	app := newTestApp(t)

	status, data := call(t, app, http.MethodPost, "/api/token/", "", LoginRequest{Username: "root", Password: "wrong"})
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, "no active account found with the given credentials", decode[ErrorResponse](t, data).Error)

	status, data = call(t, app, http.MethodPost, "/api/token/", "", LoginRequest{Username: "root", Password: rootPassword})
	require.Equal(t, http.StatusOK, status)
	pair := decode[auth.TokenPair](t, data)

	status, data = call(t, app, http.MethodPost, "/api/token/refresh/", "", RefreshRequest{Refresh: pair.Refresh})
	require.Equal(t, http.StatusOK, status, string(data))
	rotated := decode[auth.TokenPair](t, data)

	status, _ = call(t, app, http.MethodPost, "/api/token/refresh/", "", RefreshRequest{Refresh: pair.Refresh})
	require.Equal(t, http.StatusUnauthorized, status)

	status, _ = call(t, app, http.MethodPost, "/api/token/revoke/", "", RefreshRequest{Refresh: rotated.Refresh})
	require.Equal(t, http.StatusNoContent, status)

	status, _ = call(t, app, http.MethodPost, "/api/token/refresh/", "", RefreshRequest{Refresh: rotated.Refresh})
	require.Equal(t, http.StatusUnauthorized, status)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	app := newTestApp(t)

	status, _ := call(t, app, http.MethodGet, "/api/users/", "", nil)
	require.Equal(t, http.StatusUnauthorized, status)

	status, _ = call(t, app, http.MethodGet, "/api/me/", "not-a-token", nil)
	require.Equal(t, http.StatusUnauthorized, status)
}

func TestMe(t *testing.T) {
	app := newTestApp(t)
	token := login(t, app, "root", rootPassword)

	status, data := call(t, app, http.MethodGet, "/api/me/", token, nil)
	require.Equal(t, http.StatusOK, status)
	me := decode[MeView](t, data)
	require.Equal(t, "root", me.Username)
	require.True(t, me.IsSuperuser)
	require.NotNil(t, me.Profile)
	require.Equal(t, model.RoleAdmin, me.Profile.Role)
	require.True(t, me.Capabilities.AdminAccess)
	require.True(t, me.Capabilities.TechnicianAccess)
	require.True(t, me.Capabilities.ManageIncidents)
}

func TestCreateUser(t *testing.T) {
	app := newTestApp(t)
	token := login(t, app, "root", rootPassword)

	view := createUser(t, app, token, "tess", map[string]any{
		"first_name": "Tess",
		"last_name":  "Tech",
		"role":       "technician",
		"department": "it",
	})
	require.Equal(t, "Tess Tech", view.FullName)
	require.True(t, view.IsActive)
	require.NotNil(t, view.Profile)
	require.Equal(t, model.RoleTechnician, view.Profile.Role)
	require.Equal(t, "Technician", view.Profile.RoleDisplay)
	require.Equal(t, "IT", view.Profile.DepartmentDisplay)
	require.NotNil(t, view.Profile.Photo)
	require.Equal(t, "http://localhost:8000/media/profile_photos/default.png", *view.Profile.Photo)

	status, data := call(t, app, http.MethodPost, "/api/users/", token, map[string]any{
		"username":         "mallory",
		"email":            "mallory@example.com",
		"password":         "abcd1234",
		"password_confirm": "abcd1234xx",
	})
	require.Equal(t, http.StatusBadRequest, status)
	require.Contains(t, decode[ErrorResponse](t, data).Fields, "password_confirm")

	status, data = call(t, app, http.MethodGet, "/api/users/", token, nil)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, decode[[]UserView](t, data), 2)
}

func TestPlainUserAccess(t *testing.T) {
	app := newTestApp(t)
	root := login(t, app, "root", rootPassword)
	alice := createUser(t, app, root, "alice", nil)
	bob := createUser(t, app, root, "bob", nil)
	token := login(t, app, "alice", userPassword)

	status, data := call(t, app, http.MethodGet, "/api/users/", token, nil)
	require.Equal(t, http.StatusOK, status)
	list := decode[[]UserView](t, data)
	require.Len(t, list, 1)
	require.Equal(t, alice.ID, list[0].ID)

	status, _ = call(t, app, http.MethodGet, fmt.Sprintf("/api/users/%d/", bob.ID), token, nil)
	require.Equal(t, http.StatusForbidden, status)

	status, _ = call(t, app, http.MethodPost, "/api/users/", token, map[string]any{"username": "eve"})
	require.Equal(t, http.StatusForbidden, status)

	status, _ = call(t, app, http.MethodDelete, fmt.Sprintf("/api/users/%d/", bob.ID), token, nil)
	require.Equal(t, http.StatusForbidden, status)

	status, data = call(t, app, http.MethodPut, fmt.Sprintf("/api/users/%d/", alice.ID), token, map[string]any{
		"first_name": "Alice",
		"phone":      "555-0100",
	})
	require.Equal(t, http.StatusOK, status, string(data))
	updated := decode[UserView](t, data)
	require.Equal(t, "Alice", updated.FirstName)
	require.Equal(t, "555-0100", updated.Profile.Phone)

	status, _ = call(t, app, http.MethodPut, fmt.Sprintf("/api/users/%d/", alice.ID), token, map[string]any{"role": "admin"})
	require.Equal(t, http.StatusForbidden, status)
}

func TestUpdateRollsBackOnProfileError(t *testing.T) {
	app := newTestApp(t)
	root := login(t, app, "root", rootPassword)
	alice := createUser(t, app, root, "alice", nil)
	path := fmt.Sprintf("/api/users/%d/", alice.ID)

	status, data := call(t, app, http.MethodPut, path, root, map[string]any{
		"first_name": "Changed",
		"department": "marketing",
	})
	require.Equal(t, http.StatusBadRequest, status)
	require.Contains(t, decode[ErrorResponse](t, data).Fields, "department")

	status, data = call(t, app, http.MethodGet, path, root, nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "", decode[UserView](t, data).FirstName)
}

func TestDeleteRules(t *testing.T) {
	app := newTestApp(t)
	root := login(t, app, "root", rootPassword)
	ada := createUser(t, app, root, "ada", map[string]any{"role": "admin"})
	bob := createUser(t, app, root, "bob", nil)
	token := login(t, app, "ada", userPassword)

	status, data := call(t, app, http.MethodGet, "/api/me/", root, nil)
	require.Equal(t, http.StatusOK, status)
	rootID := decode[MeView](t, data).ID

	status, data = call(t, app, http.MethodDelete, fmt.Sprintf("/api/users/%d/", rootID), token, nil)
	require.Equal(t, http.StatusForbidden, status)
	require.Equal(t, "cannot delete a superuser", decode[ErrorResponse](t, data).Error)

	status, _ = call(t, app, http.MethodDelete, fmt.Sprintf("/api/users/%d/", ada.ID), token, nil)
	require.Equal(t, http.StatusForbidden, status)

	status, _ = call(t, app, http.MethodDelete, fmt.Sprintf("/api/users/%d/", bob.ID), token, nil)
	require.Equal(t, http.StatusNoContent, status)

	status, _ = call(t, app, http.MethodGet, fmt.Sprintf("/api/users/%d/", bob.ID), token, nil)
	require.Equal(t, http.StatusNotFound, status)

	status, _ = call(t, app, http.MethodGet, "/api/users/abc/", token, nil)
	require.Equal(t, http.StatusNotFound, status)
}

func TestSetFlagsEndpoint(t *testing.T) {
	app := newTestApp(t)
	root := login(t, app, "root", rootPassword)
	bob := createUser(t, app, root, "bob", nil)

	status, data := call(t, app, http.MethodPut, fmt.Sprintf("/api/users/%d/flags/", bob.ID), root, map[string]any{"is_staff": true})
	require.Equal(t, http.StatusOK, status, string(data))
	view := decode[UserView](t, data)
	require.True(t, view.IsStaff)
	require.Equal(t, model.RoleManager, view.Profile.Role)
}

func TestPaginatedList(t *testing.T) {
	app := newTestApp(t)
	root := login(t, app, "root", rootPassword)
	createUser(t, app, root, "alice", nil)
	createUser(t, app, root, "bob", nil)

	status, data := call(t, app, http.MethodGet, "/api/users/?page=2&page_size=2", root, nil)
	require.Equal(t, http.StatusOK, status)

	var resp struct {
		Data       []UserView `json:"data"`
		Pagination Pagination `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(data, &resp))
	require.Equal(t, int64(3), resp.Pagination.Total)
	require.Equal(t, 2, resp.Pagination.TotalPage)
	require.Len(t, resp.Data, 1)
	require.Equal(t, "root", resp.Data[0].Username)
}

func TestLoginIsThrottled(t *testing.T) {
	app := newTestApp(t, func(cfg *config.Config) {
		cfg.RateLimit.LoginPerMinute = 1
		cfg.RateLimit.LoginBurst = 2
	})

	for i := 0; i < 2; i++ {
		status, _ := call(t, app, http.MethodPost, "/api/token/", "", LoginRequest{Username: "root", Password: "wrong"})
		require.Equal(t, http.StatusUnauthorized, status)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/token/", bytes.NewReader([]byte(`{"username":"root","password":"x"}`)))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	require.NotEmpty(t, resp.Header.Get("Retry-After"))
}
