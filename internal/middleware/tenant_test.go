package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/tenant-auth/internal/audit"
	"github.com/iliyamo/tenant-auth/internal/cache"
	"github.com/iliyamo/tenant-auth/internal/middleware"
	"github.com/iliyamo/tenant-auth/internal/model"
	"github.com/iliyamo/tenant-auth/internal/repository"
	"github.com/iliyamo/tenant-auth/internal/tenantctx"
)

// fakeTenants serves canned tenants by subdomain and counts lookups so
// the cache-hit path can be asserted.
type fakeTenants struct {
	bySub map[string]*model.Tenant
	calls int
}

func (f *fakeTenants) GetBySubdomain(_ context.Context, sub string) (*model.Tenant, error) {
	f.calls++
	t, ok := f.bySub[sub]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func resolverFixture(t *testing.T, withRedis bool) (*echo.Echo, *fakeTenants, *cache.TenantCache) {
	t.Helper()
	tenants := &fakeTenants{bySub: map[string]*model.Tenant{
		"acme": {ID: 1, Subdomain: "acme", Status: model.TenantActive},
		"dead": {ID: 2, Subdomain: "dead", Status: model.TenantSuspended},
	}}

	var rdb *redis.Client
	if withRedis {
		mr := miniredis.RunT(t)
		rdb = redis.NewClient(&redis.Options{Addr: mr.Addr()})
	}
	tcache := cache.NewTenantCache(rdb, time.Hour)

	e := echo.New()
	e.Use(middleware.ResolveTenant(tenants, tcache, audit.NewRecorder(zap.NewNop())))
	e.GET("/whoami", func(c echo.Context) error {
		tc, ok := middleware.TenantFromContext(c)
		require.True(t, ok)
		return c.JSON(http.StatusOK, echo.Map{"tenant_id": tc.TenantID, "subdomain": tc.Subdomain})
	})
	e.GET("/healthz", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	return e, tenants, tcache
}

func do(e *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestResolveTenantHeader(t *testing.T) {
	e, _, _ := resolverFixture(t, false)
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set(middleware.TenantHeader, "ACME")
	rec := do(e, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"subdomain":"acme"`)
}

func TestResolveTenantQueryParam(t *testing.T) {
	e, _, _ := resolverFixture(t, false)
	req := httptest.NewRequest(http.MethodGet, "/whoami?tenant=acme", nil)
	rec := do(e, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestResolveTenantHostSubdomain(t *testing.T) {
	e, _, _ := resolverFixture(t, false)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Host = "acme.example.com:8080"
	require.Equal(t, http.StatusOK, do(e, req).Code)

	// Development hosts of the form sub.localhost also resolve.
	req = httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Host = "acme.localhost:8080"
	require.Equal(t, http.StatusOK, do(e, req).Code)
}

func TestResolveTenantHeaderBeatsHost(t *testing.T) {
	e, _, _ := resolverFixture(t, false)
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Host = "dead.example.com"
	req.Header.Set(middleware.TenantHeader, "acme")
	require.Equal(t, http.StatusOK, do(e, req).Code)
}

func TestResolveTenantMissing(t *testing.T) {
	e, _, _ := resolverFixture(t, false)
	for _, host := range []string{"localhost:8080", "127.0.0.1:8080", "example.com"} {
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Host = host
		require.Equal(t, http.StatusBadRequest, do(e, req).Code, host)
	}
}

func TestResolveTenantInvalidSyntax(t *testing.T) {
	e, _, _ := resolverFixture(t, false)
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set(middleware.TenantHeader, "-bad-label-")
	require.Equal(t, http.StatusBadRequest, do(e, req).Code)
}

func TestResolveTenantUnknown(t *testing.T) {
	e, _, _ := resolverFixture(t, false)
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set(middleware.TenantHeader, "ghost")
	require.Equal(t, http.StatusNotFound, do(e, req).Code)
}

func TestResolveTenantSuspended(t *testing.T) {
	e, _, _ := resolverFixture(t, false)
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set(middleware.TenantHeader, "dead")
	require.Equal(t, http.StatusForbidden, do(e, req).Code)
}

func TestResolveTenantBypassPaths(t *testing.T) {
	e, tenants, _ := resolverFixture(t, false)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, do(e, req).Code)
	require.Zero(t, tenants.calls)
}

func TestResolveTenantCacheHitSkipsStore(t *testing.T) {
	e, tenants, _ := resolverFixture(t, true)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set(middleware.TenantHeader, "acme")
	require.Equal(t, http.StatusOK, do(e, req).Code)
	require.Equal(t, 1, tenants.calls)

	req = httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set(middleware.TenantHeader, "acme")
	require.Equal(t, http.StatusOK, do(e, req).Code)
	require.Equal(t, 1, tenants.calls)
}

func TestResolveTenantCachedSuspensionStillDenied(t *testing.T) {
	e, _, tcache := resolverFixture(t, true)

	// Pre-seed a suspended projection; the resolver must enforce status
	// on the cached path just as it does on the store path.
	tcache.Set(context.Background(), cache.TenantProjection{
		ID: 7, Subdomain: "frozen", Status: model.TenantSuspended,
	})
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set(middleware.TenantHeader, "frozen")
	require.Equal(t, http.StatusForbidden, do(e, req).Code)
}

func TestTenantFromContextScope(t *testing.T) {
	tc := tenantctx.TenantContext{TenantID: 9, Subdomain: "acme", Status: model.TenantActive, Resolved: true}
	require.Equal(t, tenantctx.Scope{TenantID: 9}, tc.Scope())
}
