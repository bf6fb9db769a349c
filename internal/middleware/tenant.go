package middleware // middleware provides shared request processing for handlers

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tenant-auth/internal/audit"
	"github.com/iliyamo/tenant-auth/internal/cache"
	"github.com/iliyamo/tenant-auth/internal/model"
	"github.com/iliyamo/tenant-auth/internal/queue"
	"github.com/iliyamo/tenant-auth/internal/repository"
	"github.com/iliyamo/tenant-auth/internal/tenantctx"
)

// TenantSource is the lookup surface the resolver needs.  Satisfied by
// repository.TenantRepo.
type TenantSource interface {
	GetBySubdomain(ctx context.Context, subdomain string) (*model.Tenant, error)
}

// TenantHeader is the explicit tenant override header, useful in
// development and for clients that cannot control their Host header.
const TenantHeader = "X-Tenant-Subdomain"

const tenantContextKey = "tenant_context"

// resolverBypass lists infrastructure paths that skip tenant resolution
// entirely.  /docs is a prefix so generated API documentation assets
// pass through too.
func resolverBypass(path string) bool {
	if path == "/healthz" || path == "/favicon.ico" {
		return true
	}
	return strings.HasPrefix(path, "/docs")
}

// ResolveTenant returns middleware that resolves the tenant for every
// request and fails closed before any business logic runs: missing or
// malformed subdomain is 400, unknown is 404, any status other than
// active is 403.  On success it populates the request-scoped
// TenantContext exactly once.
func ResolveTenant(tenants TenantSource, tcache *cache.TenantCache, rec *audit.Recorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if resolverBypass(c.Request().URL.Path) {
				return next(c)
			}

			raw, ok := extractSubdomain(c)
			if !ok {
				return c.JSON(http.StatusBadRequest, echo.Map{"error": "tenant subdomain required"})
			}
			sub, err := model.NormalizeSubdomain(raw)
			if err != nil {
				return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid tenant subdomain"})
			}

			ctx := c.Request().Context()
			proj, hit := tcache.Get(ctx, sub)
			if !hit {
				t, err := tenants.GetBySubdomain(ctx, sub)
				if err != nil {
					if errors.Is(err, repository.ErrNotFound) {
						rec.Record(ctx, queue.SecurityEvent{
							Action: "tenant.resolve", Outcome: audit.OutcomeRejected,
							IP: c.RealIP(), Subdomain: sub, Detail: "unknown subdomain",
						})
						return c.JSON(http.StatusNotFound, echo.Map{"error": "unknown tenant"})
					}
					return c.JSON(http.StatusInternalServerError, echo.Map{"error": "tenant lookup failed"})
				}
				proj = cache.TenantProjection{ID: t.ID, Subdomain: t.Subdomain, Status: t.Status}
				tcache.Set(ctx, proj)
			}

			// Status is enforced identically on the cache and store
			// paths: both produce the same projection.
			if proj.Status != model.TenantActive {
				rec.Record(ctx, queue.SecurityEvent{
					Action: "tenant.resolve", Outcome: audit.OutcomeDenied,
					IP: c.RealIP(), TenantID: proj.ID, Subdomain: sub,
					Detail: "tenant " + string(proj.Status),
				})
				return c.JSON(http.StatusForbidden, echo.Map{"error": "tenant is not active"})
			}

			c.Set(tenantContextKey, tenantctx.TenantContext{
				TenantID:  proj.ID,
				Subdomain: proj.Subdomain,
				Status:    proj.Status,
				Resolved:  true,
			})
			return next(c)
		}
	}
}

// extractSubdomain applies the resolution precedence: the explicit
// header first, then the tenant query parameter, then the leftmost
// label of the Host header.  A bare localhost, loopback or IP host
// never yields a subdomain, so local development must use the header.
func extractSubdomain(c echo.Context) (string, bool) {
	if v := strings.TrimSpace(c.Request().Header.Get(TenantHeader)); v != "" {
		return v, true
	}
	if v := strings.TrimSpace(c.QueryParam("tenant")); v != "" {
		return v, true
	}

	host := c.Request().Host
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.ToLower(host)
	if host == "" || host == "localhost" || net.ParseIP(host) != nil {
		return "", false
	}
	parts := strings.Split(host, ".")
	// "acme.localhost" still names a tenant; a bare apex domain
	// ("example.com") does not.
	if len(parts) == 2 && parts[1] == "localhost" {
		return parts[0], true
	}
	if len(parts) < 3 {
		return "", false
	}
	return parts[0], true
}

// TenantFromContext returns the TenantContext the resolver stored, or
// ok=false on bypass paths where no tenant was resolved.
func TenantFromContext(c echo.Context) (tenantctx.TenantContext, bool) {
	tc, ok := c.Get(tenantContextKey).(tenantctx.TenantContext)
	return tc, ok && tc.Resolved
}
