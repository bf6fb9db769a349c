package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tenant-auth/internal/audit"
	"github.com/iliyamo/tenant-auth/internal/config"
	"github.com/iliyamo/tenant-auth/internal/middleware"
	"github.com/iliyamo/tenant-auth/internal/queue"
	"github.com/iliyamo/tenant-auth/internal/service"
	"github.com/iliyamo/tenant-auth/internal/tenantctx"
)

// refreshCookieName is the HTTP-only cookie the auth endpoints set as
// an alternative to the JSON body for browser clients.
const refreshCookieName = "refresh_token"

// refreshCookiePath restricts the cookie to the auth route prefix so it
// never rides along on ordinary API calls.
const refreshCookiePath = "/api/auth"

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Cfg   config.Config
	Auth  *service.AuthService
	Audit *audit.Recorder
}

func NewAuthHandler(cfg config.Config, svc *service.AuthService, rec *audit.Recorder) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Auth: svc, Audit: rec}
}

// ----- DTOs -----

type registerReq struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}
type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

// scope pulls the resolved tenant out of the echo context.  The tenant
// middleware guards every route reaching these handlers, so a missing
// context is a programming error surfaced as 500 by the ok=false path.
func scope(c echo.Context) (tenantctx.TenantContext, bool) {
	return middleware.TenantFromContext(c)
}

// Register: create a user under the resolved tenant and return tokens
// immediately.
func (h *AuthHandler) Register(c echo.Context) error {
	tc, ok := scope(c)
	if !ok {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "tenant not resolved"})
	}
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	bundle, err := h.Auth.Register(ctx, tc.Scope(), req.Email, req.Password, req.FirstName, req.LastName)
	if err != nil {
		return c.JSON(statusOf(err), echo.Map{"error": clientMessage(err)})
	}

	h.Audit.Record(ctx, queue.SecurityEvent{
		Action: "register", Outcome: audit.OutcomeSuccess,
		IP: c.RealIP(), TenantID: tc.TenantID, Subdomain: tc.Subdomain,
		Email: bundle.User.Email, UserID: bundle.User.ID,
	})
	h.setRefreshCookie(c, bundle.Refresh.Token, bundle.Refresh.Expires)
	return c.JSON(http.StatusCreated, bundle)
}

// Login: verify credentials and return a new pair.
func (h *AuthHandler) Login(c echo.Context) error {
	tc, ok := scope(c)
	if !ok {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "tenant not resolved"})
	}
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	bundle, err := h.Auth.Login(ctx, tc.Scope(), req.Email, req.Password)
	if err != nil {
		if service.KindOf(err) != 0 {
			h.Audit.Record(ctx, queue.SecurityEvent{
				Action: "login", Outcome: audit.OutcomeDenied,
				IP: c.RealIP(), TenantID: tc.TenantID, Subdomain: tc.Subdomain,
				Email: strings.ToLower(strings.TrimSpace(req.Email)),
			})
		}
		return c.JSON(statusOf(err), echo.Map{"error": clientMessage(err)})
	}

	h.Audit.Record(ctx, queue.SecurityEvent{
		Action: "login", Outcome: audit.OutcomeSuccess,
		IP: c.RealIP(), TenantID: tc.TenantID, Subdomain: tc.Subdomain,
		Email: bundle.User.Email, UserID: bundle.User.ID,
	})
	h.setRefreshCookie(c, bundle.Refresh.Token, bundle.Refresh.Expires)
	return c.JSON(http.StatusOK, bundle)
}

// Refresh: rotate the submitted refresh token and return a new pair.
// The token may arrive in the JSON body or the auth cookie.
func (h *AuthHandler) Refresh(c echo.Context) error {
	tc, ok := scope(c)
	if !ok {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "tenant not resolved"})
	}
	raw := h.refreshTokenFrom(c)
	if raw == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token required"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	bundle, err := h.Auth.Refresh(ctx, tc.Scope(), raw)
	if err != nil {
		if service.KindOf(err) != 0 {
			h.Audit.Record(ctx, queue.SecurityEvent{
				Action: "refresh", Outcome: audit.OutcomeDenied,
				IP: c.RealIP(), TenantID: tc.TenantID, Subdomain: tc.Subdomain,
				Detail: clientMessage(err),
			})
		}
		return c.JSON(statusOf(err), echo.Map{"error": clientMessage(err)})
	}

	h.setRefreshCookie(c, bundle.Refresh.Token, bundle.Refresh.Expires)
	return c.JSON(http.StatusOK, bundle)
}

// Logout: revoke the submitted refresh token.  Always 204: revoking an
// unknown or already-revoked token is indistinguishable from success,
// and the cookie is cleared either way.
func (h *AuthHandler) Logout(c echo.Context) error {
	tc, ok := scope(c)
	if !ok {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "tenant not resolved"})
	}
	raw := h.refreshTokenFrom(c)

	ctx, cancel := reqCtx(c)
	defer cancel()

	if raw != "" {
		if err := h.Auth.Logout(ctx, tc.Scope(), raw); err != nil {
			return c.JSON(statusOf(err), echo.Map{"error": clientMessage(err)})
		}
		h.Audit.Record(ctx, queue.SecurityEvent{
			Action: "logout", Outcome: audit.OutcomeSuccess,
			IP: c.RealIP(), TenantID: tc.TenantID, Subdomain: tc.Subdomain,
		})
	}
	h.clearRefreshCookie(c)
	return c.NoContent(http.StatusNoContent)
}

// Me: return the authenticated user's profile.  The lookup re-checks
// the tenant binding explicitly; a token for a user that moved or was
// forged across tenants gets a 403 distinct from 404.
func (h *AuthHandler) Me(c echo.Context) error {
	tc, ok := scope(c)
	if !ok {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "tenant not resolved"})
	}
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	profile, err := h.Auth.CurrentUser(ctx, tc.Scope(), userID)
	if err != nil {
		return c.JSON(statusOf(err), echo.Map{"error": clientMessage(err)})
	}
	return c.JSON(http.StatusOK, profile)
}

// refreshTokenFrom reads the refresh token from the JSON body first,
// falling back to the auth cookie.
func (h *AuthHandler) refreshTokenFrom(c echo.Context) string {
	var req refreshReq
	_ = c.Bind(&req)
	if v := strings.TrimSpace(req.RefreshToken); v != "" {
		return v
	}
	if ck, err := c.Cookie(refreshCookieName); err == nil {
		return strings.TrimSpace(ck.Value)
	}
	return ""
}

func (h *AuthHandler) setRefreshCookie(c echo.Context, token string, expires time.Time) {
	c.SetCookie(&http.Cookie{
		Name:     refreshCookieName,
		Value:    token,
		Path:     refreshCookiePath,
		Expires:  expires,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *AuthHandler) clearRefreshCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     refreshCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})
}

// reqCtx bounds the duration of database calls for one request.
func reqCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), 5*time.Second)
}
