// Package repository implements MySQL persistence.  Tenant-scoped
// repositories take an explicit tenantctx.Scope argument on every
// read/write so the row-isolation predicate is visible at the call
// site; the few cross-tenant lookups the auth flows need are separate
// methods with an AcrossTenants suffix, and their callers must perform
// an explicit tenant-equality check in application code.
package repository

import "errors"

// ErrNotFound is returned when a lookup matches no row inside the
// caller's scope.  Handlers translate it into 404 or, for credential
// paths, a generic 401.
var ErrNotFound = errors.New("not found")

// ErrEmailExists is returned when an insert violates the unique
// (email, tenant_id) constraint.  Handlers translate it into HTTP 409.
var ErrEmailExists = errors.New("email already exists in tenant")

// ErrSubdomainExists is returned when a tenant insert violates the
// unique subdomain constraint.  Handlers translate it into HTTP 409.
var ErrSubdomainExists = errors.New("subdomain already taken")
