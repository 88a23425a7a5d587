// README: Tests for bearer-token auth middleware and principal guards.
package middleware_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ridehail/internal/apperr"
	"ridehail/internal/http/middleware"
	"ridehail/internal/logger"
	"ridehail/internal/modules/session"
)

// stubResolver is a test double for middleware.TokenResolver.
type stubResolver struct {
	principal session.Principal
	err       error
}

func (s *stubResolver) Resolve(_ context.Context, _ string) (session.Principal, error) {
	return s.principal, s.err
}

func newTestRouter(resolver middleware.TokenResolver) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.Logging(logger.Discard()), middleware.Auth(resolver))
	r.GET("/test", func(c *gin.Context) {
		p := middleware.CallerPrincipal(c)
		fromCtx := session.FromContext(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"id": p.ID, "kind": p.Kind, "ctx_id": fromCtx.ID})
	})
	r.GET("/passenger", middleware.RequirePassenger(), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/driver", middleware.RequireDriver(), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/any", middleware.RequireAuthenticated(), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return r
}

func do(r *gin.Engine, path, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuth_MissingHeaderIsAnonymous(t *testing.T) {
	r := newTestRouter(&stubResolver{err: errors.New("must not be called")})
	w := do(r, "/test", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"kind":"anonymous"`)
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
}

func TestAuth_InvalidBearerPrefix(t *testing.T) {
	r := newTestRouter(&stubResolver{principal: session.Principal{Kind: session.KindPassenger, ID: "u1"}})
	for _, h := range []string{"Token sometoken", "Bearer ", "bearer abc"} {
		w := do(r, "/test", h)
		assert.Equal(t, http.StatusUnauthorized, w.Code, h)
	}
}

func TestAuth_ResolverError(t *testing.T) {
	r := newTestRouter(&stubResolver{err: session.ErrInvalidToken})
	w := do(r, "/test", "Bearer invalidtoken")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "invalid or expired token")
}

func TestAuth_StoreErrorIsInternal(t *testing.T) {
	r := newTestRouter(&stubResolver{err: apperr.Store(errors.New("redis: connection refused"))})
	w := do(r, "/test", "Bearer sometoken")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "redis")
}

func TestAuth_ValidTokenPopulatesPrincipal(t *testing.T) {
	m := session.NewManager("secret", time.Hour, nil)
	tok, err := m.Issue(session.KindDriver, "driver123")
	require.NoError(t, err)

	r := newTestRouter(m)
	w := do(r, "/test", "Bearer "+tok.Value)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "driver123", body["id"])
	assert.Equal(t, "driver", body["kind"])
	assert.Equal(t, "driver123", body["ctx_id"])
}

func TestGuards(t *testing.T) {
	passenger := &stubResolver{principal: session.Principal{Kind: session.KindPassenger, ID: "u1"}}
	driver := &stubResolver{principal: session.Principal{Kind: session.KindDriver, ID: "d1"}}

	cases := []struct {
		name     string
		resolver middleware.TokenResolver
		auth     string
		path     string
		want     int
	}{
		{"anonymous passenger route", passenger, "", "/passenger", http.StatusUnauthorized},
		{"anonymous any route", passenger, "", "/any", http.StatusUnauthorized},
		{"passenger on passenger route", passenger, "Bearer t", "/passenger", http.StatusNoContent},
		{"passenger on driver route", passenger, "Bearer t", "/driver", http.StatusForbidden},
		{"driver on passenger route", driver, "Bearer t", "/passenger", http.StatusForbidden},
		{"driver on driver route", driver, "Bearer t", "/driver", http.StatusNoContent},
		{"driver on any route", driver, "Bearer t", "/any", http.StatusNoContent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := do(newTestRouter(tc.resolver), tc.path, tc.auth)
			assert.Equal(t, tc.want, w.Code)
		})
	}
}

func TestLogging_ReusesClientRequestID(t *testing.T) {
	var buf bytes.Buffer
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.Logging(logger.NewWithWriter("test", "info", &buf)))
	r.GET("/x", func(c *gin.Context) {
		c.String(http.StatusOK, logger.RequestIDFromContext(c.Request.Context()))
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(middleware.RequestIDHeader, "req-42")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "req-42", w.Body.String())
	assert.Equal(t, "req-42", w.Header().Get(middleware.RequestIDHeader))
	assert.True(t, strings.Contains(buf.String(), `"request_id":"req-42"`), buf.String())
	assert.Contains(t, buf.String(), `"status":200`)
}

func TestRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.Recovery())
	r.GET("/boom", func(c *gin.Context) { panic("boom") })

	w := do(r, "/boom", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"internal error"}`, w.Body.String())
}

func TestTimeoutSetsDeadline(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.Timeout(time.Second))
	r.GET("/x", func(c *gin.Context) {
		_, ok := c.Request.Context().Deadline()
		c.JSON(http.StatusOK, gin.H{"deadline": ok})
	})
	w := do(r, "/x", "")
	assert.JSONEq(t, `{"deadline":true}`, w.Body.String())
}
