// Package tenantctx carries the tenant resolved for the current request.
// The resolver middleware populates a TenantContext exactly once per
// request; everything downstream treats it as read-only.  Repository
// methods that touch tenant-scoped tables take an explicit Scope so the
// isolation boundary is visible at every call site instead of hiding
// behind an ambient query filter.
package tenantctx

import "github.com/iliyamo/tenant-auth/internal/model"

// TenantContext is the request-scoped result of tenant resolution.
type TenantContext struct {
	TenantID  uint64
	Subdomain string
	Status    model.TenantStatus
	Resolved  bool
}

// Scope is the row-isolation predicate passed to tenant-scoped
// repository methods.  It is a distinct type (not a bare uint64) so a
// user id cannot be passed where a tenant scope is expected.
type Scope struct {
	TenantID uint64
}

// Scope returns the isolation scope for this context.
func (t TenantContext) Scope() Scope { return Scope{TenantID: t.TenantID} }
