package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/tenant-auth/internal/cache"
	"github.com/iliyamo/tenant-auth/internal/model"
	"github.com/iliyamo/tenant-auth/internal/repository"
	"github.com/iliyamo/tenant-auth/internal/tenantctx"
)

// TenantStore is the persistence surface for tenant provisioning and
// lifecycle.  Satisfied by repository.TenantRepo.
type TenantStore interface {
	Create(ctx context.Context, t *model.Tenant) (uint64, error)
	GetByID(ctx context.Context, id uint64) (*model.Tenant, error)
	UpdateStatus(ctx context.Context, id uint64, status model.TenantStatus) error
}

// SubscriptionStore is the subset of subscription persistence that
// provisioning needs.  Satisfied by repository.SubscriptionRepo.
type SubscriptionStore interface {
	Create(ctx context.Context, scope tenantctx.Scope, s *model.Subscription) (uint64, error)
	GetPlanByCode(ctx context.Context, code string) (*model.SubscriptionPlan, error)
}

// TenantService provisions tenants and drives their explicit status
// transitions.  It also invalidates the resolver cache so a suspended
// tenant stops resolving within the request path, not an hour later.
type TenantService struct {
	tenants TenantStore
	subs    SubscriptionStore
	cache   *cache.TenantCache
}

func NewTenantService(tenants TenantStore, subs SubscriptionStore, c *cache.TenantCache) *TenantService {
	return &TenantService{tenants: tenants, subs: subs, cache: c}
}

// Provision validates and creates a tenant, then starts it on a trial
// subscription for the given plan code.
func (s *TenantService) Provision(ctx context.Context, name, subdomain, planCode string) (*model.Tenant, error) {
	t, err := model.NewTenant(name, subdomain)
	if err != nil {
		return nil, Invalid(err.Error())
	}
	plan, err := s.subs.GetPlanByCode(ctx, planCode)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, Invalid("unknown plan code")
		}
		return nil, fmt.Errorf("load plan: %w", err)
	}

	id, err := s.tenants.Create(ctx, t)
	if err != nil {
		if errors.Is(err, repository.ErrSubdomainExists) {
			return nil, &Error{Kind: KindConflict, Msg: "subdomain already taken"}
		}
		return nil, fmt.Errorf("create tenant: %w", err)
	}
	t.ID = id

	sub := model.NewTrialSubscription(id, plan.ID, time.Now().UTC())
	if _, err := s.subs.Create(ctx, tenantctx.Scope{TenantID: id}, sub); err != nil {
		return nil, fmt.Errorf("create trial subscription: %w", err)
	}
	return t, nil
}

// ChangeStatus applies an explicit lifecycle transition.  Illegal
// transitions are validation failures; the cache entry for the tenant's
// subdomain is dropped on success.
func (s *TenantService) ChangeStatus(ctx context.Context, tenantID uint64, to model.TenantStatus) (*model.Tenant, error) {
	t, err := s.tenants.GetByID(ctx, tenantID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &Error{Kind: KindNotFound, Msg: "tenant not found"}
		}
		return nil, fmt.Errorf("load tenant: %w", err)
	}

	switch to {
	case model.TenantActive:
		err = t.Reactivate()
	case model.TenantSuspended:
		err = t.Suspend()
	case model.TenantCancelled:
		err = t.Cancel()
	case model.TenantDeleted:
		err = t.SoftDelete()
	default:
		err = fmt.Errorf("unknown status %q", to)
	}
	if err != nil {
		return nil, Invalid(err.Error())
	}

	if err := s.tenants.UpdateStatus(ctx, t.ID, t.Status); err != nil {
		return nil, fmt.Errorf("persist status: %w", err)
	}
	s.cache.Invalidate(ctx, t.Subdomain)
	return t, nil
}
