package main // Entry point package

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/tenant-auth/internal/audit"
	"github.com/iliyamo/tenant-auth/internal/cache"
	"github.com/iliyamo/tenant-auth/internal/config"
	"github.com/iliyamo/tenant-auth/internal/database"
	"github.com/iliyamo/tenant-auth/internal/handler"
	"github.com/iliyamo/tenant-auth/internal/queue"
	"github.com/iliyamo/tenant-auth/internal/repository"
	"github.com/iliyamo/tenant-auth/internal/router"
	"github.com/iliyamo/tenant-auth/internal/service"
)

func main() {
	_ = godotenv.Load() // .env is optional; real deployments use the environment
	cfg := config.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	db, err := database.Open(cfg)
	if err != nil {
		logger.Fatal("open database", zap.Error(err))
	}
	defer db.Close()

	// Redis is optional: without it tenant lookups hit the database,
	// rate limiting and response caching turn off.
	rdb := config.NewRedisClient()
	if rdb == nil {
		logger.Warn("redis unavailable; tenant cache, rate limiting and response cache disabled")
	}

	tenants := repository.NewTenantRepo(db)
	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	subs := repository.NewSubscriptionRepo(db)

	tenantCache := cache.NewTenantCache(rdb, cfg.TenantCacheTTL)
	recorder := audit.NewRecorder(logger)

	authSvc := service.NewAuthService(users, tokens, cfg.JWTSecret,
		cfg.AccessTTL, cfg.RefreshTTL, cfg.BcryptCost, cfg.PasswordStrict)
	tenantSvc := service.NewTenantService(tenants, subs, tenantCache)

	// Background consumer appends audit events to logs/audit.log.
	go func() {
		if err := queue.StartAuditConsumer(); err != nil {
			logger.Warn("audit consumer stopped", zap.Error(err))
		}
	}()

	e := echo.New()
	e.HideBanner = true
	router.Register(e, router.Deps{
		Cfg:     cfg,
		Redis:   rdb,
		Tenants: tenants,
		Cache:   tenantCache,
		Audit:   recorder,
		Auth:    handler.NewAuthHandler(cfg, authSvc, recorder),
		Tenant:  handler.NewTenantHandler(tenantSvc),
		Subs:    handler.NewSubscriptionHandler(subs),
	})

	addr := ":" + cfg.Port
	logger.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
	if err := e.Start(addr); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
