package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tenant-auth/internal/audit"
	"github.com/iliyamo/tenant-auth/internal/auth"
	"github.com/iliyamo/tenant-auth/internal/queue"
)

const claimsContextKey = "access_claims"

// JWTAuth returns middleware that validates a Bearer access token and
// binds it to the tenant resolved for the request: a syntactically
// valid token issued under a different tenant is rejected with 403, and
// the attempt is audited.  On success the token's subject and role are
// stored in the echo context for handlers and the role middleware.
func JWTAuth(secret string, rec *audit.Recorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimPrefix(header, "Bearer ")

			claims, err := auth.ParseAccessToken(secret, raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			userID, err := strconv.ParseUint(claims.Subject, 10, 64)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}

			tc, resolved := TenantFromContext(c)
			if !resolved {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "tenant not resolved"})
			}
			if claims.TenantID != tc.TenantID {
				rec.Record(c.Request().Context(), queue.SecurityEvent{
					Action: "token.tenant_check", Outcome: audit.OutcomeDenied,
					IP: c.RealIP(), TenantID: tc.TenantID, Subdomain: tc.Subdomain,
					UserID: userID, Detail: "access token issued under different tenant",
				})
				return c.JSON(http.StatusForbidden, echo.Map{"error": "token does not match tenant"})
			}

			c.Set("user_id", userID)
			c.Set("role", claims.Role)
			c.Set(claimsContextKey, claims)
			return next(c)
		}
	}
}

// ClaimsFromContext returns the parsed access-token claims stored by
// JWTAuth.
func ClaimsFromContext(c echo.Context) (*auth.Claims, bool) {
	claims, ok := c.Get(claimsContextKey).(*auth.Claims)
	return claims, ok
}

// UserIDFromContext returns the authenticated user id stored by
// JWTAuth.
func UserIDFromContext(c echo.Context) (uint64, bool) {
	id, ok := c.Get("user_id").(uint64)
	return id, ok
}
