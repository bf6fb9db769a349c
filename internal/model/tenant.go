package model

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// TenantStatus enumerates the lifecycle states of a tenant.  Only an
// active tenant may serve requests; the remaining states exist so that
// suspension and cancellation are explicit, auditable transitions
// instead of row deletions.
type TenantStatus string

const (
	TenantActive    TenantStatus = "active"
	TenantSuspended TenantStatus = "suspended"
	TenantCancelled TenantStatus = "cancelled"
	TenantDeleted   TenantStatus = "deleted"
)

// subdomainRe matches a single DNS label: lowercase alphanumerics and
// hyphens, no leading/trailing hyphen, at most 63 characters.
var subdomainRe = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?$`)

// reservedSubdomains are labels that routing or infrastructure already
// claim and that therefore can never identify a tenant.
var reservedSubdomains = map[string]bool{
	"www":       true,
	"api":       true,
	"app":       true,
	"admin":     true,
	"mail":      true,
	"static":    true,
	"assets":    true,
	"localhost": true,
}

var (
	ErrTenantName          = errors.New("tenant name must be 1-100 characters")
	ErrSubdomainSyntax     = errors.New("subdomain must be a valid DNS label")
	ErrSubdomainReserved   = errors.New("subdomain is reserved")
	ErrBadStatusTransition = errors.New("illegal tenant status transition")
)

// Tenant represents a row in the `tenants` table.  A tenant is the unit
// of data partitioning: users, refresh tokens and subscriptions all hang
// off a tenant id and are never visible across tenants.
//
// Fields:
//  ID        – primary key identifier of the tenant.
//  Name      – display name of the customer organization.
//  Subdomain – unique DNS label used for request routing.
//  Status    – lifecycle state (see TenantStatus).
//  CreatedAt – timestamp of creation.
//  UpdatedAt – timestamp of last update.
type Tenant struct {
	ID        uint64
	Name      string
	Subdomain string
	Status    TenantStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewTenant validates name and subdomain and returns a tenant in the
// active state.  The subdomain is normalized to lowercase before
// validation so callers may pass user input directly.
func NewTenant(name, subdomain string) (*Tenant, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > 100 {
		return nil, ErrTenantName
	}
	sub, err := NormalizeSubdomain(subdomain)
	if err != nil {
		return nil, err
	}
	if reservedSubdomains[sub] {
		return nil, fmt.Errorf("%w: %s", ErrSubdomainReserved, sub)
	}
	return &Tenant{Name: name, Subdomain: sub, Status: TenantActive}, nil
}

// NormalizeSubdomain lowercases and syntax-checks a subdomain label.
// It is shared by the tenant factory and the request-time resolver.
func NormalizeSubdomain(s string) (string, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if !subdomainRe.MatchString(s) {
		return "", ErrSubdomainSyntax
	}
	return s, nil
}

// IsActive reports whether the tenant may serve requests.
func (t *Tenant) IsActive() bool { return t.Status == TenantActive }

// Suspend moves an active tenant to suspended.
func (t *Tenant) Suspend() error { return t.transition(TenantSuspended, TenantActive) }

// Reactivate moves a suspended tenant back to active.
func (t *Tenant) Reactivate() error { return t.transition(TenantActive, TenantSuspended) }

// Cancel moves an active or suspended tenant to cancelled.
func (t *Tenant) Cancel() error {
	return t.transition(TenantCancelled, TenantActive, TenantSuspended)
}

// SoftDelete marks a cancelled tenant as deleted.  Deleted is terminal.
func (t *Tenant) SoftDelete() error { return t.transition(TenantDeleted, TenantCancelled) }

func (t *Tenant) transition(to TenantStatus, from ...TenantStatus) error {
	for _, f := range from {
		if t.Status == f {
			t.Status = to
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrBadStatusTransition, t.Status, to)
}

// ParseTenantStatus converts a string into a TenantStatus, rejecting
// unknown values.  Used when decoding admin status-transition requests.
func ParseTenantStatus(s string) (TenantStatus, error) {
	switch TenantStatus(strings.ToLower(strings.TrimSpace(s))) {
	case TenantActive:
		return TenantActive, nil
	case TenantSuspended:
		return TenantSuspended, nil
	case TenantCancelled:
		return TenantCancelled, nil
	case TenantDeleted:
		return TenantDeleted, nil
	}
	return "", fmt.Errorf("unknown tenant status %q", s)
}
