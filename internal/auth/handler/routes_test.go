package handler_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minuradeSilva2000/Employee-Register-App-sub000/internal/auth/domain"
	autherror "github.com/minuradeSilva2000/Employee-Register-App-sub000/internal/errors"
	"github.com/minuradeSilva2000/Employee-Register-App-sub000/internal/ratelimit"
)

// TestRegisterRoutes checks that every route is mounted. Handlers may answer
// 400 or 401 here; only 404 means the route is missing.
func TestRegisterRoutes(t *testing.T) {
	env := newTestEnv(t, nil)
	env.accounts.EXPECT().Ping(gomock.Any()).Return(nil).AnyTimes()

	testCases := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/healthz"},
		{http.MethodPost, "/auth/login"},
		{http.MethodPost, "/auth/refresh"},
		{http.MethodPost, "/auth/logout"},
		{http.MethodGet, "/auth/me"},
		{http.MethodPost, "/accounts"},
		{http.MethodGet, "/accounts"},
		{http.MethodPatch, "/accounts/acc-1/role"},
		{http.MethodPatch, "/accounts/acc-1/deactivate"},
		{http.MethodPatch, "/accounts/acc-1/activate"},
		{http.MethodGet, "/accounts/acc-1/sessions"},
		{http.MethodDelete, "/accounts/acc-1/sessions"},
	}

	for _, tc := range testCases {
		t.Run(fmt.Sprintf("%s_%s_exists", tc.method, tc.path), func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			resp, err := env.app.Test(req)
			require.NoError(t, err)
			assert.NotEqual(t, http.StatusNotFound, resp.StatusCode)
		})
	}
}

func TestAccountRoutes_PermissionGuards(t *testing.T) {
	testCases := []struct {
		name   string
		role   domain.Role
		method string
		path   string
		body   any
		want   int
	}{
		{"viewer cannot create", domain.RoleViewer, http.MethodPost, "/accounts",
			map[string]string{"name": "B", "email": "b@x.com", "password": "longenough", "role": "HR"}, fiber.StatusForbidden},
		{"hr cannot change roles", domain.RoleHR, http.MethodPatch, "/accounts/acc-9/role",
			map[string]string{"role": "Admin"}, fiber.StatusForbidden},
		{"hr cannot force logout", domain.RoleHR, http.MethodDelete, "/accounts/acc-9/sessions", nil, fiber.StatusForbidden},
		{"viewer cannot deactivate", domain.RoleViewer, http.MethodPatch, "/accounts/acc-9/deactivate", nil, fiber.StatusForbidden},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t, nil)
			token := env.signIn(t, env.account(t, "acc-1", tc.role))

			resp, body := env.do(t, tc.method, tc.path, token, tc.body)
			assert.Equal(t, tc.want, resp.StatusCode)
			assert.Equal(t, autherror.CodeForbidden, body["code"])
		})
	}
}

func TestAccountRoutes_Admin(t *testing.T) {
	t.Run("create", func(t *testing.T) {
		env := newTestEnv(t, nil)
		token := env.signIn(t, env.account(t, "admin-1", domain.RoleAdmin))
		env.accounts.EXPECT().GetByEmail(gomock.Any(), "b@x.com").Return(nil, nil)
		env.accounts.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)

		resp, body := env.do(t, http.MethodPost, "/accounts", token, map[string]string{
			"name": "Bea", "email": "b@x.com", "password": "longenough", "role": "HR",
		})
		assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
		assert.Equal(t, "HR", body["role"])
		assert.NotContains(t, body, "passwordHash")
	})

	t.Run("create with duplicate email", func(t *testing.T) {
		env := newTestEnv(t, nil)
		token := env.signIn(t, env.account(t, "admin-1", domain.RoleAdmin))
		env.accounts.EXPECT().GetByEmail(gomock.Any(), "b@x.com").Return(&domain.Account{ID: "acc-2"}, nil)

		resp, body := env.do(t, http.MethodPost, "/accounts", token, map[string]string{
			"name": "Bea", "email": "b@x.com", "password": "longenough", "role": "HR",
		})
		assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
		assert.Equal(t, autherror.CodeEmailInUse, body["code"])
	})

	t.Run("create with unknown role", func(t *testing.T) {
		env := newTestEnv(t, nil)
		token := env.signIn(t, env.account(t, "admin-1", domain.RoleAdmin))

		resp, body := env.do(t, http.MethodPost, "/accounts", token, map[string]string{
			"name": "Bea", "email": "b@x.com", "password": "longenough", "role": "Owner",
		})
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, autherror.CodeValidationFailed, body["code"])
	})

	t.Run("create with password over 72 bytes", func(t *testing.T) {
		env := newTestEnv(t, nil)
		token := env.signIn(t, env.account(t, "admin-1", domain.RoleAdmin))

		resp, body := env.do(t, http.MethodPost, "/accounts", token, map[string]string{
			"name": "Bea", "email": "b@x.com", "password": strings.Repeat("é", 40), "role": "HR",
		})
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, autherror.CodeValidationFailed, body["code"])
	})

	t.Run("update role", func(t *testing.T) {
		env := newTestEnv(t, nil)
		token := env.signIn(t, env.account(t, "admin-1", domain.RoleAdmin))
		env.accounts.EXPECT().UpdateRole(gomock.Any(), "acc-2", domain.RoleViewer).Return(nil)
		env.accounts.EXPECT().GetByID(gomock.Any(), "acc-2").Return(&domain.Account{ID: "acc-2", Role: domain.RoleViewer}, nil)

		resp, body := env.do(t, http.MethodPatch, "/accounts/acc-2/role", token, map[string]string{"role": "Viewer"})
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Equal(t, "Viewer", body["role"])
	})

	t.Run("deactivate self", func(t *testing.T) {
		env := newTestEnv(t, nil)
		token := env.signIn(t, env.account(t, "admin-1", domain.RoleAdmin))

		resp, _ := env.do(t, http.MethodPatch, "/accounts/admin-1/deactivate", token, nil)
		assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	})

	t.Run("deactivate", func(t *testing.T) {
		env := newTestEnv(t, nil)
		token := env.signIn(t, env.account(t, "admin-1", domain.RoleAdmin))
		env.accounts.EXPECT().SetActive(gomock.Any(), "acc-2", false).Return(nil)
		env.sessions.EXPECT().RevokeAllRefreshTokens(gomock.Any(), "acc-2").Return(nil)

		resp, _ := env.do(t, http.MethodPatch, "/accounts/acc-2/deactivate", token, nil)
		assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	})

	t.Run("activate unknown", func(t *testing.T) {
		env := newTestEnv(t, nil)
		token := env.signIn(t, env.account(t, "admin-1", domain.RoleAdmin))
		env.accounts.EXPECT().SetActive(gomock.Any(), "nope", true).Return(autherror.ErrAccountNotFound)

		resp, body := env.do(t, http.MethodPatch, "/accounts/nope/activate", token, nil)
		assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
		assert.Equal(t, autherror.CodeNotFound, body["code"])
	})

	t.Run("force logout", func(t *testing.T) {
		env := newTestEnv(t, nil)
		token := env.signIn(t, env.account(t, "admin-1", domain.RoleAdmin))
		env.accounts.EXPECT().GetByID(gomock.Any(), "acc-2").Return(&domain.Account{ID: "acc-2"}, nil)
		env.sessions.EXPECT().RevokeAllRefreshTokens(gomock.Any(), "acc-2").Return(nil)

		resp, _ := env.do(t, http.MethodDelete, "/accounts/acc-2/sessions", token, nil)
		assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	})
}

func TestAccountRoutes_HRCanRead(t *testing.T) {
	env := newTestEnv(t, nil)
	token := env.signIn(t, env.account(t, "hr-1", domain.RoleHR))
	env.accounts.EXPECT().List(gomock.Any()).Return([]domain.Account{{ID: "a", Role: domain.RoleAdmin}}, nil)

	req := httptest.NewRequest(http.MethodGet, "/accounts", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := env.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestAuthRoutes_RateLimited(t *testing.T) {
	env := newTestEnv(t, ratelimit.New(1, 1).Middleware())

	first, body := env.do(t, http.MethodPost, "/auth/login", "", "{invalid-json")
	assert.Equal(t, fiber.StatusBadRequest, first.StatusCode, body)

	second, body := env.do(t, http.MethodPost, "/auth/login", "", "{invalid-json")
	assert.Equal(t, fiber.StatusTooManyRequests, second.StatusCode)
	assert.Equal(t, autherror.CodeRateLimited, body["code"])
}
