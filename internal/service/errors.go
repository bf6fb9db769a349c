// Package service composes credential verification, token issuance and
// the refresh-token lifecycle into the auth flows.  Services are
// transport-agnostic: expected failures come back as typed errors from
// this file and are mapped to HTTP status codes in the handler layer;
// infrastructure faults are wrapped and bubble up as plain errors.
package service

import "errors"

// Kind classifies an expected domain failure.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindUnauthenticated
	KindForbidden
	KindConflict
	KindNotFound
)

// Error is an expected domain failure.  Msg is safe to echo to the
// client; unauthenticated messages stay deliberately generic so
// responses cannot be used to enumerate users or tokens.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

// Invalid builds a validation failure whose message names the violated
// rule.
func Invalid(msg string) *Error { return &Error{Kind: KindValidation, Msg: msg} }

var (
	// ErrInvalidCredentials covers bad email/password pairs and any
	// refresh token that does not resolve inside the caller's tenant.
	// One message for all of them, so nothing leaks.
	ErrInvalidCredentials = &Error{Kind: KindUnauthenticated, Msg: "invalid credentials"}

	// ErrTokenRevoked and ErrTokenExpired are distinct failures of a
	// known token; both still surface as 401.
	ErrTokenRevoked = &Error{Kind: KindUnauthenticated, Msg: "refresh token revoked"}
	ErrTokenExpired = &Error{Kind: KindUnauthenticated, Msg: "refresh token expired"}

	// ErrTenantMismatch is returned when a resource exists but belongs
	// to a different tenant than the one resolved for the request.
	ErrTenantMismatch = &Error{Kind: KindForbidden, Msg: "tenant mismatch"}

	// ErrDuplicateEmail is returned when the (email, tenant) pair is
	// already registered.
	ErrDuplicateEmail = &Error{Kind: KindConflict, Msg: "email already registered"}

	// ErrUserNotFound is returned by current-user lookup when the id
	// matches no row at all.
	ErrUserNotFound = &Error{Kind: KindNotFound, Msg: "user not found"}
)

// KindOf extracts the failure kind from err, or 0 when err is not a
// domain error.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return 0
}
