package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/minuradeSilva2000/Employee-Register-App-sub000/config"
	"github.com/minuradeSilva2000/Employee-Register-App-sub000/internal/auth/domain"
	"github.com/minuradeSilva2000/Employee-Register-App-sub000/internal/auth/handler"
	"github.com/minuradeSilva2000/Employee-Register-App-sub000/internal/auth/service"
	autherror "github.com/minuradeSilva2000/Employee-Register-App-sub000/internal/errors"
	"github.com/minuradeSilva2000/Employee-Register-App-sub000/internal/mocks"
)

const (
	accessSecret  = "access-secret"
	refreshSecret = "refresh-secret"
)

type testEnv struct {
	app      *fiber.App
	accounts *mocks.MockAccountRepository
	sessions *mocks.MockSessionStore
	tokens   *service.TokenService
	hasher   *service.PasswordHasher
}

func newTestEnv(t *testing.T, authLimiter fiber.Handler, opts ...service.Option) *testEnv {
	t.Helper()
	ctrl := gomock.NewController(t)

	tokens, err := service.NewTokenService(accessSecret, refreshSecret, 15*time.Minute, 7*24*time.Hour)
	require.NoError(t, err)

	env := &testEnv{
		accounts: mocks.NewMockAccountRepository(ctrl),
		sessions: mocks.NewMockSessionStore(ctrl),
		tokens:   tokens,
		hasher:   service.NewPasswordHasher(bcrypt.MinCost),
	}

	authService := service.NewAuthService(env.accounts, env.sessions, tokens, env.hasher,
		&config.Config{MaxActiveRefreshTokens: 5}, opts...)
	accountService := service.NewAccountService(env.accounts, env.sessions, env.hasher)

	env.app = fiber.New(fiber.Config{ErrorHandler: handler.ErrorHandler(nil)})
	handler.RegisterRoutes(env.app, handler.Routes{
		Auth:        handler.NewAuthHandler(authService, nil),
		Accounts:    handler.NewAccountHandler(accountService, nil),
		AuthLimiter: authLimiter,
	})
	return env
}

func (env *testEnv) account(t *testing.T, id string, role domain.Role) *domain.Account {
	t.Helper()
	hash, err := env.hasher.Hash("secret")
	require.NoError(t, err)
	return &domain.Account{ID: id, Name: "Ada", Email: "a@x.com", PasswordHash: hash, Role: role, Active: true}
}

// signIn returns an access token for account and lets every lookup of it
// succeed.
func (env *testEnv) signIn(t *testing.T, account *domain.Account) string {
	t.Helper()
	env.accounts.EXPECT().GetByID(gomock.Any(), account.ID).Return(account, nil).AnyTimes()
	issued, err := env.tokens.IssueAccessToken(account.ID, account.Role)
	require.NoError(t, err)
	return issued.Token
}

func (env *testEnv) do(t *testing.T, method, path, token string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			reader = bytes.NewReader([]byte(b))
		default:
			raw, err := json.Marshal(b)
			require.NoError(t, err)
			reader = bytes.NewReader(raw)
		}
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := env.app.Test(req, -1)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp, out
}

func TestLogin(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		env := newTestEnv(t, nil)
		account := env.account(t, "acc-1", domain.RoleHR)

		env.accounts.EXPECT().GetByEmail(gomock.Any(), "a@x.com").Return(account, nil)
		env.sessions.EXPECT().StoreRefreshToken(gomock.Any(), gomock.Any(), 5).Return(nil)
		env.accounts.EXPECT().TouchLastLogin(gomock.Any(), "acc-1", gomock.Any()).Return(nil)

		resp, body := env.do(t, http.MethodPost, "/auth/login", "", map[string]string{
			"email": "A@x.com", "password": "secret",
		})
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.NotEmpty(t, body["accessToken"])
		assert.NotEmpty(t, body["refreshToken"])
		assert.Equal(t, "Bearer", body["tokenType"])
		assert.Equal(t, "HR", body["account"].(map[string]any)["role"])
	})

	t.Run("wrong password", func(t *testing.T) {
		env := newTestEnv(t, nil)
		env.accounts.EXPECT().GetByEmail(gomock.Any(), "a@x.com").Return(env.account(t, "acc-1", domain.RoleHR), nil)

		resp, body := env.do(t, http.MethodPost, "/auth/login", "", map[string]string{
			"email": "a@x.com", "password": "wrong",
		})
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, autherror.CodeInvalidCredentials, body["code"])
		assert.Equal(t, autherror.MessageAuthenticationFailed, body["error"])
	})

	t.Run("too many attempts", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		throttle := mocks.NewMockLoginThrottle(ctrl)
		throttle.EXPECT().Allow(gomock.Any(), "a@x.com", gomock.Any()).Return(false, nil)
		env := newTestEnv(t, nil, service.WithThrottle(throttle))

		resp, body := env.do(t, http.MethodPost, "/auth/login", "", map[string]string{
			"email": "a@x.com", "password": "secret",
		})
		assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
		assert.Equal(t, autherror.CodeTooManyAttempts, body["code"])
	})

	t.Run("invalid json", func(t *testing.T) {
		env := newTestEnv(t, nil)
		resp, body := env.do(t, http.MethodPost, "/auth/login", "", "{invalid-json")
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, autherror.CodeValidationFailed, body["code"])
	})

	t.Run("missing fields", func(t *testing.T) {
		env := newTestEnv(t, nil)
		resp, body := env.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "not-an-email"})
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, autherror.CodeValidationFailed, body["code"])
		assert.Len(t, body["fields"], 2)
	})

	t.Run("store failure is not leaked", func(t *testing.T) {
		env := newTestEnv(t, nil)
		env.accounts.EXPECT().GetByEmail(gomock.Any(), "a@x.com").Return(nil, errors.New("connection refused"))

		resp, body := env.do(t, http.MethodPost, "/auth/login", "", map[string]string{
			"email": "a@x.com", "password": "secret",
		})
		assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
		assert.Equal(t, autherror.CodeInternal, body["code"])
		assert.Equal(t, autherror.MessageInternal, body["error"])
	})
}

func TestRefresh(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		env := newTestEnv(t, nil)
		account := env.account(t, "acc-1", domain.RoleViewer)
		issued, err := env.tokens.IssueRefreshToken("acc-1")
		require.NoError(t, err)

		env.sessions.EXPECT().HasRefreshToken(gomock.Any(), "acc-1", service.HashToken(issued.Token), gomock.Any()).Return(true, nil)
		env.accounts.EXPECT().GetByID(gomock.Any(), "acc-1").Return(account, nil)

		resp, body := env.do(t, http.MethodPost, "/auth/refresh", "", map[string]string{"refreshToken": issued.Token})
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.NotEmpty(t, body["accessToken"])
		assert.NotContains(t, body, "refreshToken")
	})

	t.Run("revoked", func(t *testing.T) {
		env := newTestEnv(t, nil)
		issued, err := env.tokens.IssueRefreshToken("acc-1")
		require.NoError(t, err)
		env.sessions.EXPECT().HasRefreshToken(gomock.Any(), "acc-1", gomock.Any(), gomock.Any()).Return(false, nil)

		resp, body := env.do(t, http.MethodPost, "/auth/refresh", "", map[string]string{"refreshToken": issued.Token})
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, autherror.CodeTokenInvalid, body["code"])
	})

	t.Run("access token presented", func(t *testing.T) {
		env := newTestEnv(t, nil)
		access, err := env.tokens.IssueAccessToken("acc-1", domain.RoleAdmin)
		require.NoError(t, err)

		resp, body := env.do(t, http.MethodPost, "/auth/refresh", "", map[string]string{"refreshToken": access.Token})
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, autherror.CodeTokenInvalid, body["code"])
	})
}

func TestMe(t *testing.T) {
	t.Run("no token", func(t *testing.T) {
		env := newTestEnv(t, nil)
		resp, body := env.do(t, http.MethodGet, "/auth/me", "", nil)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, autherror.CodeTokenInvalid, body["code"])
	})

	t.Run("wrong scheme", func(t *testing.T) {
		env := newTestEnv(t, nil)
		req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
		req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
		resp, err := env.app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("expired token", func(t *testing.T) {
		env := newTestEnv(t, nil)
		past, err := service.NewTokenService(accessSecret, refreshSecret, 15*time.Minute, time.Hour,
			service.WithTokenClock(func() time.Time { return time.Now().Add(-time.Hour) }))
		require.NoError(t, err)
		issued, err := past.IssueAccessToken("acc-1", domain.RoleAdmin)
		require.NoError(t, err)

		resp, body := env.do(t, http.MethodGet, "/auth/me", issued.Token, nil)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, autherror.CodeTokenExpired, body["code"])
		assert.Equal(t, autherror.MessageTokenExpired, body["error"])
	})

	t.Run("deactivated account", func(t *testing.T) {
		env := newTestEnv(t, nil)
		account := env.account(t, "acc-1", domain.RoleAdmin)
		account.Active = false
		token := env.signIn(t, account)

		resp, body := env.do(t, http.MethodGet, "/auth/me", token, nil)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, autherror.CodeTokenInvalid, body["code"])
	})

	t.Run("profile with permissions", func(t *testing.T) {
		env := newTestEnv(t, nil)
		token := env.signIn(t, env.account(t, "acc-1", domain.RoleViewer))

		resp, body := env.do(t, http.MethodGet, "/auth/me", token, nil)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Equal(t, "Viewer", body["role"])
		assert.Contains(t, body["permissions"], "users:read")
		assert.NotContains(t, body["permissions"], "users:update")
	})
}

func TestLogout(t *testing.T) {
	t.Run("own token", func(t *testing.T) {
		env := newTestEnv(t, nil)
		token := env.signIn(t, env.account(t, "acc-1", domain.RoleHR))
		refresh, err := env.tokens.IssueRefreshToken("acc-1")
		require.NoError(t, err)

		env.sessions.EXPECT().ConsumeRefreshToken(gomock.Any(), "acc-1", service.HashToken(refresh.Token)).Return(true, nil)

		resp, _ := env.do(t, http.MethodPost, "/auth/logout", token, map[string]string{"refreshToken": refresh.Token})
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	})

	t.Run("all sessions", func(t *testing.T) {
		env := newTestEnv(t, nil)
		token := env.signIn(t, env.account(t, "acc-1", domain.RoleHR))
		env.sessions.EXPECT().RevokeAllRefreshTokens(gomock.Any(), "acc-1").Return(nil)

		resp, _ := env.do(t, http.MethodPost, "/auth/logout", token, map[string]bool{"allSessions": true})
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	})

	t.Run("someone else's token", func(t *testing.T) {
		env := newTestEnv(t, nil)
		token := env.signIn(t, env.account(t, "acc-1", domain.RoleHR))
		other, err := env.tokens.IssueRefreshToken("acc-2")
		require.NoError(t, err)

		resp, body := env.do(t, http.MethodPost, "/auth/logout", token, map[string]string{"refreshToken": other.Token})
		assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
		assert.Equal(t, autherror.CodeForbidden, body["code"])
	})

	t.Run("unauthenticated", func(t *testing.T) {
		env := newTestEnv(t, nil)
		resp, _ := env.do(t, http.MethodPost, "/auth/logout", "", map[string]bool{"allSessions": true})
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("empty body", func(t *testing.T) {
		env := newTestEnv(t, nil)
		token := env.signIn(t, env.account(t, "acc-1", domain.RoleHR))

		resp, body := env.do(t, http.MethodPost, "/auth/logout", token, map[string]string{})
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, autherror.CodeValidationFailed, body["code"])
	})
}

func TestGoogleLogin(t *testing.T) {
	t.Run("not mounted without a provider", func(t *testing.T) {
		env := newTestEnv(t, nil)
		resp, body := env.do(t, http.MethodPost, "/auth/google", "", map[string]string{"code": "abc"})
		assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
		assert.Equal(t, autherror.CodeNotFound, body["code"])
	})

	t.Run("rejected exchange", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		provider := mocks.NewMockIdentityProvider(ctrl)
		provider.EXPECT().Exchange(gomock.Any(), "abc").Return(nil, autherror.ErrExternalAuthFailed)
		env := newTestEnv(t, nil, service.WithIdentityProvider(provider))

		resp, body := env.do(t, http.MethodPost, "/auth/google", "", map[string]string{"code": "abc"})
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, autherror.CodeInvalidCredentials, body["code"])
	})

	t.Run("existing account", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		provider := mocks.NewMockIdentityProvider(ctrl)
		provider.EXPECT().Exchange(gomock.Any(), "abc").Return(&domain.ExternalIdentity{
			Provider: "google", Subject: "g-1", Email: "a@x.com", EmailVerified: true,
		}, nil)
		env := newTestEnv(t, nil, service.WithIdentityProvider(provider))
		account := env.account(t, "acc-1", domain.RoleViewer)
		account.GoogleID = "g-1"

		env.accounts.EXPECT().GetByGoogleID(gomock.Any(), "g-1").Return(account, nil)
		env.sessions.EXPECT().StoreRefreshToken(gomock.Any(), gomock.Any(), 5).Return(nil)
		env.accounts.EXPECT().TouchLastLogin(gomock.Any(), "acc-1", gomock.Any()).Return(nil)

		resp, body := env.do(t, http.MethodPost, "/auth/google", "", map[string]string{"code": "abc"})
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.NotEmpty(t, body["accessToken"])
	})
}

func TestGoogleAuthURL(t *testing.T) {
	t.Run("not mounted without a provider", func(t *testing.T) {
		env := newTestEnv(t, nil)
		resp, _ := env.do(t, http.MethodGet, "/auth/google/url", "", nil)
		assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	})

	t.Run("returns consent url and state", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		provider := mocks.NewMockIdentityProvider(ctrl)
		provider.EXPECT().AuthCodeURL(gomock.Any()).DoAndReturn(func(state string) string {
			return "https://accounts.google.com/o/oauth2/auth?state=" + state
		})
		env := newTestEnv(t, nil, service.WithIdentityProvider(provider))

		resp, body := env.do(t, http.MethodGet, "/auth/google/url", "", nil)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		require.NotEmpty(t, body["state"])
		assert.Equal(t, "https://accounts.google.com/o/oauth2/auth?state="+body["state"].(string), body["url"])
	})
}

func TestHealth(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		env := newTestEnv(t, nil)
		env.accounts.EXPECT().Ping(gomock.Any()).Return(nil)
		resp, body := env.do(t, http.MethodGet, "/healthz", "", nil)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Equal(t, "ok", body["status"])
	})

	t.Run("store down", func(t *testing.T) {
		env := newTestEnv(t, nil)
		env.accounts.EXPECT().Ping(gomock.Any()).Return(context.DeadlineExceeded)
		resp, _ := env.do(t, http.MethodGet, "/healthz", "", nil)
		assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
	})
}
