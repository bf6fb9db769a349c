package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tenant-auth/internal/model"
	"github.com/iliyamo/tenant-auth/internal/service"
)

// TenantHandler exposes tenant provisioning and lifecycle operations.
type TenantHandler struct {
	Tenants *service.TenantService
}

func NewTenantHandler(svc *service.TenantService) *TenantHandler {
	return &TenantHandler{Tenants: svc}
}

type createTenantReq struct {
	Name      string `json:"name"`
	Subdomain string `json:"subdomain"`
	PlanCode  string `json:"plan_code"`
}

type tenantResp struct {
	ID        uint64             `json:"id"`
	Name      string             `json:"name"`
	Subdomain string             `json:"subdomain"`
	Status    model.TenantStatus `json:"status"`
}

// Create provisions a new tenant with a trial subscription.  This
// endpoint is global: it runs before any tenant exists to resolve.
func (h *TenantHandler) Create(c echo.Context) error {
	var req createTenantReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.PlanCode == "" {
		req.PlanCode = "free"
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	t, err := h.Tenants.Provision(ctx, req.Name, req.Subdomain, req.PlanCode)
	if err != nil {
		return c.JSON(statusOf(err), echo.Map{"error": clientMessage(err)})
	}
	return c.JSON(http.StatusCreated, tenantResp{
		ID: t.ID, Name: t.Name, Subdomain: t.Subdomain, Status: t.Status,
	})
}

type statusReq struct {
	TenantID uint64 `json:"tenant_id"`
	Status   string `json:"status"`
}

// UpdateStatus applies an explicit lifecycle transition.  Restricted to
// superadmins by the role middleware.
func (h *TenantHandler) UpdateStatus(c echo.Context) error {
	var req statusReq
	if err := c.Bind(&req); err != nil || req.TenantID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "tenant_id and status required"})
	}
	to, err := model.ParseTenantStatus(req.Status)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	t, err := h.Tenants.ChangeStatus(ctx, req.TenantID, to)
	if err != nil {
		return c.JSON(statusOf(err), echo.Map{"error": clientMessage(err)})
	}
	return c.JSON(http.StatusOK, tenantResp{
		ID: t.ID, Name: t.Name, Subdomain: t.Subdomain, Status: t.Status,
	})
}
