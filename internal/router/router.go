package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/tenant-auth/internal/audit"
	"github.com/iliyamo/tenant-auth/internal/cache"
	"github.com/iliyamo/tenant-auth/internal/config"
	"github.com/iliyamo/tenant-auth/internal/handler"
	"github.com/iliyamo/tenant-auth/internal/middleware"
	"github.com/iliyamo/tenant-auth/internal/model"
	"github.com/iliyamo/tenant-auth/internal/repository"
)

// Deps bundles everything route registration needs.
type Deps struct {
	Cfg     config.Config
	Redis   *redis.Client
	Tenants *repository.TenantRepo
	Cache   *cache.TenantCache
	Audit   *audit.Recorder
	Auth    *handler.AuthHandler
	Tenant  *handler.TenantHandler
	Subs    *handler.SubscriptionHandler
}

// Register wires the full route table.  Order matters: tenant
// resolution runs before rate limiting (tenant-aware keys) which runs
// before any business handler; global routes are registered before the
// resolver group so they skip it entirely.
func Register(e *echo.Echo, d Deps) {
	// Infrastructure endpoints bypass tenant resolution via the
	// resolver's allow-list, but are registered at the top level anyway
	// so the route table shows them plainly.
	e.GET("/healthz", handler.Health)

	// Tenant provisioning is global: there is no tenant to resolve
	// before the tenant exists.
	e.POST("/api/tenants", d.Tenant.Create)

	// The plan catalog is global and cacheable.
	plans := e.Group("/api/plans")
	plans.Use(middleware.NewRedisCache(config.LoadCacheConfig(), d.Redis))
	plans.GET("", d.Subs.Plans)

	// Everything below resolves a tenant first and fails closed.
	api := e.Group("/api")
	api.Use(middleware.ResolveTenant(d.Tenants, d.Cache, d.Audit))
	api.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), d.Redis, d.Audit))

	// Unauthenticated auth operations.
	authGroup := api.Group("/auth")
	authGroup.POST("/register", d.Auth.Register)
	authGroup.POST("/login", d.Auth.Login)
	authGroup.POST("/refresh", d.Auth.Refresh)
	authGroup.POST("/logout", d.Auth.Logout)

	// Routes requiring a valid access token bound to the resolved
	// tenant.
	protected := api.Group("")
	protected.Use(middleware.JWTAuth(d.Cfg.JWTSecret, d.Audit))
	protected.GET("/auth/me", d.Auth.Me)
	protected.GET("/subscription", d.Subs.Current)

	// Tenant lifecycle transitions are platform-operator territory.
	admin := protected.Group("/tenants")
	admin.Use(middleware.RequireRole(model.RoleSuperAdmin))
	admin.PATCH("/status", d.Tenant.UpdateStatus)
}
