package model

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

// Role enumerates the authorization levels a user can hold inside a
// tenant.  SuperAdmin is reserved for platform operators and is the only
// role allowed to change tenant status.
type Role string

const (
	RoleUser       Role = "user"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "superadmin"
)

// emailRe is intentionally permissive: one @, no spaces, a dot in the
// domain part.  Strict RFC validation belongs to the mail system.
var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

var (
	ErrEmailSyntax  = errors.New("invalid email address")
	ErrEmptyHash    = errors.New("password hash must not be empty")
	ErrNameRequired = errors.New("first and last name are required")
)

// User represents a row in the `users` table.  Email uniqueness holds
// per tenant, not globally: the same address may register independently
// under different tenants, which is the isolation unit of this system.
//
// Fields:
//  ID            – primary key identifier of the user.
//  TenantID      – owning tenant; part of the unique (email, tenant_id) pair.
//  Email         – lowercased email address.
//  PasswordHash  – bcrypt hash; the plaintext is never stored.
//  FirstName     – given name.
//  LastName      – family name.
//  Role          – authorization level inside the tenant.
//  EmailVerified – whether the address has been confirmed.
//  CreatedAt     – timestamp of creation.
//  UpdatedAt     – timestamp of last update.
type User struct {
	ID            uint64
	TenantID      uint64
	Email         string
	PasswordHash  string
	FirstName     string
	LastName      string
	Role          Role
	EmailVerified bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewUser validates the identity fields and returns a user with the
// default role.  The password must already be hashed; an empty hash is a
// programming error at the call site and is rejected here.
func NewUser(tenantID uint64, email, passwordHash, firstName, lastName string) (*User, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(passwordHash) == "" {
		return nil, ErrEmptyHash
	}
	firstName = strings.TrimSpace(firstName)
	lastName = strings.TrimSpace(lastName)
	if firstName == "" || lastName == "" {
		return nil, ErrNameRequired
	}
	return &User{
		TenantID:     tenantID,
		Email:        email,
		PasswordHash: passwordHash,
		FirstName:    firstName,
		LastName:     lastName,
		Role:         RoleUser,
	}, nil
}

// NormalizeEmail lowercases and syntax-checks an email address.
func NormalizeEmail(s string) (string, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if !emailRe.MatchString(s) {
		return "", ErrEmailSyntax
	}
	return s, nil
}

// FullName joins the name parts for display purposes.
func (u *User) FullName() string { return u.FirstName + " " + u.LastName }
