package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tenant-auth/internal/repository"
)

// SubscriptionHandler exposes the tenant's subscription and the global
// plan catalog.
type SubscriptionHandler struct {
	Subs *repository.SubscriptionRepo
}

func NewSubscriptionHandler(repo *repository.SubscriptionRepo) *SubscriptionHandler {
	return &SubscriptionHandler{Subs: repo}
}

// Current returns the resolved tenant's subscription.
func (h *SubscriptionHandler) Current(c echo.Context) error {
	tc, ok := scope(c)
	if !ok {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "tenant not resolved"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	sub, err := h.Subs.GetByTenant(ctx, tc.Scope())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "no subscription"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "subscription lookup failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"id":                   sub.ID,
		"plan_id":              sub.PlanID,
		"status":               sub.Status,
		"current_period_start": sub.CurrentPeriodStart,
		"current_period_end":   sub.CurrentPeriodEnd,
	})
}

// Plans returns the global plan catalog.  The response-cache middleware
// fronts this route.
func (h *SubscriptionHandler) Plans(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	plans, err := h.Subs.ListPlans(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "plan lookup failed"})
	}
	out := make([]echo.Map, 0, len(plans))
	for _, p := range plans {
		out = append(out, echo.Map{
			"id":          p.ID,
			"code":        p.Code,
			"name":        p.Name,
			"price_cents": p.PriceCents,
			"interval":    p.Interval,
		})
	}
	return c.JSON(http.StatusOK, out)
}
