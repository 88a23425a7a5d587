// README: Auth middleware resolves the bearer token into a session principal once per request.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"ridehail/internal/apperr"
	"ridehail/internal/logger"
	"ridehail/internal/modules/session"
)

const principalKey = "principal"

// TokenResolver turns a raw bearer token into a principal.
type TokenResolver interface {
	Resolve(ctx context.Context, raw string) (session.Principal, error)
}

// Auth attaches the caller's principal to the request. A request without an
// Authorization header is anonymous; a malformed or rejected token is a 401.
func Auth(resolver TokenResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			setPrincipal(c, session.Anonymous)
			c.Next()
			return
		}

		raw, ok := strings.CutPrefix(header, "Bearer ")
		raw = strings.TrimSpace(raw)
		if !ok || raw == "" {
			abort(c, http.StatusUnauthorized, "missing or malformed token")
			return
		}

		p, err := resolver.Resolve(c.Request.Context(), raw)
		if err != nil {
			if apperr.KindOf(err) == apperr.KindStore {
				logger.FromContext(c.Request.Context(), nil).Error("resolve token failed", "error", err.Error())
			}
			abort(c, apperr.HTTPStatus(err), apperr.PublicMessage(err))
			return
		}
		setPrincipal(c, p)
		c.Next()
	}
}

func setPrincipal(c *gin.Context, p session.Principal) {
	c.Set(principalKey, p)
	ctx := session.NewContext(c.Request.Context(), p)
	if p.ID != "" {
		l := logger.FromContext(ctx, nil).With("principal", string(p.Kind)+":"+string(p.ID))
		ctx = logger.NewContext(ctx, l)
	}
	c.Request = c.Request.WithContext(ctx)
}

// CallerPrincipal returns the principal resolved by Auth, or Anonymous.
func CallerPrincipal(c *gin.Context) session.Principal {
	if v, ok := c.Get(principalKey); ok {
		if p, ok := v.(session.Principal); ok {
			return p
		}
	}
	return session.Anonymous
}

func RequirePassenger() gin.HandlerFunc {
	return require(func(p session.Principal) bool { return p.IsPassenger() })
}

func RequireDriver() gin.HandlerFunc {
	return require(func(p session.Principal) bool { return p.IsDriver() })
}

// RequireAuthenticated accepts any signed-in passenger or driver.
func RequireAuthenticated() gin.HandlerFunc {
	return require(func(p session.Principal) bool { return p.IsPassenger() || p.IsDriver() })
}

func require(allowed func(session.Principal) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := CallerPrincipal(c)
		if p.Kind == session.KindAnonymous || p.ID == "" {
			abort(c, http.StatusUnauthorized, "authentication required")
			return
		}
		if !allowed(p) {
			abort(c, http.StatusForbidden, "forbidden")
			return
		}
		c.Next()
	}
}

func abort(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
