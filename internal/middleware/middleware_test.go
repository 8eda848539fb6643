package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/innovatube/innovatube-api/internal/config"
)

type resolverFunc func(ctx context.Context, token string) (uint64, error)

func (f resolverFunc) ResolveSession(ctx context.Context, token string) (uint64, error) {
	return f(ctx, token)
}

var errNoSession = errors.New("invalid session")

func isNoSession(err error) bool { return errors.Is(err, errNoSession) }

func onlyToken(valid string, uid uint64) SessionResolver {
	return resolverFunc(func(_ context.Context, token string) (uint64, error) {
		if token != valid {
			return 0, errNoSession
		}
		return uid, nil
	})
}

func serve(e *echo.Echo, method, path, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if auth != "" {
		req.Header.Set(echo.HeaderAuthorization, auth)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestSessionAuth(t *testing.T) {
	e := echo.New()
	called := 0
	e.GET("/me", func(c echo.Context) error {
		called++
		uid, ok := UserID(c)
		require.True(t, ok)
		return c.JSON(http.StatusOK, echo.Map{"uid": uid, "token": SessionToken(c)})
	}, SessionAuth(onlyToken("good", 42), isNoSession))

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"basic scheme", "Basic Z29vZA==", http.StatusUnauthorized},
		{"empty bearer", "Bearer   ", http.StatusUnauthorized},
		{"unknown token", "Bearer bad", http.StatusUnauthorized},
		{"valid", "Bearer good", http.StatusOK},
		{"lowercase scheme", "bearer good", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := serve(e, http.MethodGet, "/me", tc.header)
			assert.Equal(t, tc.status, rec.Code)
			if tc.status == http.StatusUnauthorized {
				assert.JSONEq(t, `{"success":false,"message":"`+messageFor(tc.header)+`"}`, rec.Body.String())
			} else {
				assert.JSONEq(t, `{"uid":42,"token":"good"}`, rec.Body.String())
			}
		})
	}
	assert.Equal(t, 2, called)
}

func messageFor(header string) string {
	if header == "Bearer bad" {
		return "invalid or expired session"
	}
	return "authentication required"
}

func TestSessionAuth_StoreFailureIsNotUnauthorized(t *testing.T) {
	outage := fmt.Errorf("find session: %w", errors.New("dial tcp 127.0.0.1:3306: connection refused"))
	var handled error
	e := echo.New()
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		handled = err
		_ = c.JSON(http.StatusInternalServerError, echo.Map{"success": false, "message": "internal server error"})
	}
	called := false
	e.GET("/me", func(c echo.Context) error {
		called = true
		return c.NoContent(http.StatusOK)
	}, SessionAuth(resolverFunc(func(context.Context, string) (uint64, error) {
		return 0, outage
	}), isNoSession))

	rec := serve(e, http.MethodGet, "/me", "Bearer good")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.False(t, called)
	assert.ErrorIs(t, handled, outage)
	assert.NotContains(t, rec.Body.String(), "invalid or expired session")
}

func TestIdentityHelpers_Unauthenticated(t *testing.T) {
	c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

	_, ok := UserID(c)
	assert.False(t, ok)
	assert.Empty(t, SessionToken(c))

	c.Set(ctxUserID, "42")
	_, ok = UserID(c)
	assert.False(t, ok, "only uint64 ids count")
}

func limiterEcho(t *testing.T, cfg config.RateLimitConfig) (*echo.Echo, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	e := echo.New()
	e.POST("/auth/login", func(c echo.Context) error { return c.NoContent(http.StatusOK) },
		NewTokenBucket(cfg, rdb, zap.NewNop()))
	return e, mr
}

func rlConfig() config.RateLimitConfig {
	return config.RateLimitConfig{
		Enabled: true, Capacity: 2, RefillTokens: 1,
		RefillInterval: time.Hour, TTL: 2 * time.Hour,
		KeyStrategy: "ip_route", Prefix: "auth_rl",
	}
}

func TestTokenBucket_BlocksAfterCapacity(t *testing.T) {
	e, mr := limiterEcho(t, rlConfig())

	for i := 0; i < 2; i++ {
		rec := serve(e, http.MethodPost, "/auth/login", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	}
	rec := serve(e, http.MethodPost, "/auth/login", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.JSONEq(t, `{"success":false,"message":"too many requests, try again later"}`, rec.Body.String())

	key := "auth_rl:ip:192.0.2.1:route:POST /auth/login"
	assert.True(t, mr.Exists(key), "keys: %v", mr.Keys())
	assert.Greater(t, mr.TTL(key), time.Duration(0))
}

func TestTokenBucket_FailsOpenWithoutRedis(t *testing.T) {
	e, mr := limiterEcho(t, rlConfig())
	mr.Close()

	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, serve(e, http.MethodPost, "/auth/login", "").Code)
	}
}

func TestTokenBucket_Disabled(t *testing.T) {
	cfg := rlConfig()
	cfg.Enabled = false
	e := echo.New()
	e.POST("/auth/login", func(c echo.Context) error { return c.NoContent(http.StatusOK) },
		NewTokenBucket(cfg, nil, zap.NewNop()))

	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, serve(e, http.MethodPost, "/auth/login", "").Code)
	}
}

func TestRateKey_Strategies(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/auth/me", nil)
	req.Header.Set(echo.HeaderXRealIP, "203.0.113.9")
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/auth/me")
	c.Set(ctxUserID, uint64(7))

	cfg := rlConfig()
	for strategy, want := range map[string]string{
		"ip":         "auth_rl:ip:203.0.113.9",
		"user":       "auth_rl:user:7",
		"ip_route":   "auth_rl:ip:203.0.113.9:route:POST /auth/me",
		"user_route": "auth_rl:user:7:route:POST /auth/me",
		"":           "auth_rl:ip:203.0.113.9:user:7:route:POST /auth/me",
	} {
		cfg.KeyStrategy = strategy
		assert.Equal(t, want, rateKey(cfg, c), strategy)
	}
}
