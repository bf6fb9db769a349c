package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/tenant-auth/internal/model"
	"github.com/iliyamo/tenant-auth/internal/tenantctx"
)

// SubscriptionRepo persists subscriptions (tenant-scoped) and reads the
// global plan catalog.
type SubscriptionRepo struct{ DB *sql.DB }

func NewSubscriptionRepo(db *sql.DB) *SubscriptionRepo { return &SubscriptionRepo{DB: db} }

// Create inserts a subscription for the scope's tenant.  The unique
// tenant_id constraint guarantees at most one subscription per tenant.
func (r *SubscriptionRepo) Create(ctx context.Context, scope tenantctx.Scope, s *model.Subscription) (uint64, error) {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO subscriptions (tenant_id, plan_id, status, current_period_start, current_period_end) VALUES (?,?,?,?,?)",
		scope.TenantID, s.PlanID, s.Status, s.CurrentPeriodStart, s.CurrentPeriodEnd)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByTenant fetches the scope's subscription.
func (r *SubscriptionRepo) GetByTenant(ctx context.Context, scope tenantctx.Scope) (*model.Subscription, error) {
	var s model.Subscription
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,tenant_id,plan_id,status,current_period_start,current_period_end,created_at,updated_at FROM subscriptions WHERE tenant_id=? LIMIT 1",
		scope.TenantID).Scan(&s.ID, &s.TenantID, &s.PlanID, &s.Status,
		&s.CurrentPeriodStart, &s.CurrentPeriodEnd, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// UpdateStatus writes a new billing status for the scope's
// subscription.
func (r *SubscriptionRepo) UpdateStatus(ctx context.Context, scope tenantctx.Scope, status model.SubscriptionStatus) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE subscriptions SET status=?, updated_at=NOW() WHERE tenant_id=?", status, scope.TenantID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListPlans returns the global plan catalog.  Plans are not
// tenant-scoped, so no Scope argument.
func (r *SubscriptionRepo) ListPlans(ctx context.Context) ([]model.SubscriptionPlan, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT id,code,name,price_cents,billing_interval FROM subscription_plans ORDER BY price_cents ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.SubscriptionPlan
	for rows.Next() {
		var p model.SubscriptionPlan
		if err := rows.Scan(&p.ID, &p.Code, &p.Name, &p.PriceCents, &p.Interval); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetPlanByCode fetches a catalog plan by its code.
func (r *SubscriptionRepo) GetPlanByCode(ctx context.Context, code string) (*model.SubscriptionPlan, error) {
	var p model.SubscriptionPlan
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,code,name,price_cents,billing_interval FROM subscription_plans WHERE code=? LIMIT 1",
		code).Scan(&p.ID, &p.Code, &p.Name, &p.PriceCents, &p.Interval)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
