package service

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode"

	"github.com/iliyamo/tenant-auth/internal/auth"
	"github.com/iliyamo/tenant-auth/internal/model"
	"github.com/iliyamo/tenant-auth/internal/repository"
	"github.com/iliyamo/tenant-auth/internal/tenantctx"
)

// Session-cap constants: before a login or refresh issues a new token,
// any user holding sessionCap or more active tokens keeps only the
// sessionKeep newest.  The bound is best-effort; a race between two
// concurrent logins may transiently exceed it.
const (
	sessionCap  = 4
	sessionKeep = 3
)

// UserStore is the persistence surface the auth flows need for users.
// Satisfied by repository.UserRepo; tests use in-memory fakes.
type UserStore interface {
	Create(ctx context.Context, scope tenantctx.Scope, u *model.User) (uint64, error)
	CreateWithToken(ctx context.Context, scope tenantctx.Scope, u *model.User, tokenDigest string, exp time.Time) (uint64, error)
	GetByEmail(ctx context.Context, scope tenantctx.Scope, email string) (*model.User, error)
	GetByID(ctx context.Context, scope tenantctx.Scope, id uint64) (*model.User, error)
	GetByIDAcrossTenants(ctx context.Context, id uint64) (*model.User, error)
}

// TokenStore is the persistence surface for refresh tokens.  Satisfied
// by repository.TokenRepo.
type TokenStore interface {
	Store(ctx context.Context, userID uint64, tokenDigest string, exp time.Time) error
	FindByDigest(ctx context.Context, scope tenantctx.Scope, tokenDigest string) (*model.RefreshToken, error)
	FindByDigestAcrossTenants(ctx context.Context, tokenDigest string) (*model.RefreshToken, uint64, error)
	Rotate(ctx context.Context, oldDigest string, userID uint64, newDigest string, exp time.Time) error
	RevokeByDigest(ctx context.Context, tokenDigest string) error
	ActiveForUser(ctx context.Context, userID uint64) ([]model.RefreshToken, error)
	RevokeByIDs(ctx context.Context, ids []uint64) error
}

// TokenPart is one half of an issued token pair.
type TokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

// Profile is the user view returned by the auth flows.  It never
// carries the password hash.
type Profile struct {
	ID            uint64     `json:"id"`
	Email         string     `json:"email"`
	FirstName     string     `json:"first_name"`
	LastName      string     `json:"last_name"`
	Role          model.Role `json:"role"`
	EmailVerified bool       `json:"email_verified"`
}

// Bundle is the full result of register/login/refresh.
type Bundle struct {
	User    Profile   `json:"user"`
	Access  TokenPart `json:"access"`
	Refresh TokenPart `json:"refresh"`
}

// AuthService orchestrates the auth flows.  It is state-free; all
// request state arrives via arguments, tenant isolation via the Scope.
type AuthService struct {
	users      UserStore
	tokens     TokenStore
	jwtSecret  string
	accessTTL  time.Duration
	refreshTTL time.Duration
	bcryptCost int
	strictPw   bool
}

func NewAuthService(users UserStore, tokens TokenStore, jwtSecret string, accessTTL, refreshTTL time.Duration, bcryptCost int, strictPw bool) *AuthService {
	return &AuthService{
		users:      users,
		tokens:     tokens,
		jwtSecret:  jwtSecret,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		bcryptCost: bcryptCost,
		strictPw:   strictPw,
	}
}

// Register creates a user under the resolved tenant and issues the first
// token pair.  The user row and its first refresh token are written in a
// single transaction.
func (s *AuthService) Register(ctx context.Context, scope tenantctx.Scope, email, password, firstName, lastName string) (*Bundle, error) {
	if err := validatePassword(password, s.strictPw); err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u, err := model.NewUser(scope.TenantID, email, hash, firstName, lastName)
	if err != nil {
		return nil, Invalid(err.Error())
	}

	refresh, err := auth.NewRefreshToken(s.refreshTTL)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}
	id, err := s.users.CreateWithToken(ctx, scope, u, auth.DigestToken(refresh.Raw), refresh.Exp)
	if err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	u.ID = id

	return s.bundle(u, scope, refresh)
}

// Login verifies credentials within the resolved tenant and issues a
// fresh token pair.  A lookup miss still performs a bcrypt comparison so
// response timing does not reveal whether the email exists.
func (s *AuthService) Login(ctx context.Context, scope tenantctx.Scope, email, password string) (*Bundle, error) {
	normalized, err := model.NormalizeEmail(email)
	if err != nil {
		auth.VerifyDummy(password)
		return nil, ErrInvalidCredentials
	}
	u, err := s.users.GetByEmail(ctx, scope, normalized)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			auth.VerifyDummy(password)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if !auth.VerifyPassword(u.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	if err := s.enforceSessionCap(ctx, u.ID); err != nil {
		return nil, err
	}
	refresh, err := auth.NewRefreshToken(s.refreshTTL)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}
	if err := s.tokens.Store(ctx, u.ID, auth.DigestToken(refresh.Raw), refresh.Exp); err != nil {
		return nil, fmt.Errorf("save refresh token: %w", err)
	}

	return s.bundle(u, scope, refresh)
}

// Refresh exchanges a valid refresh token for a new pair, revoking the
// old token in the same transaction as the new insert.  The token is
// looked up across tenants because the owner must be located before the
// tenant comparison can happen; the equality check below is the
// security-critical step, performed explicitly rather than relying on a
// query predicate.
func (s *AuthService) Refresh(ctx context.Context, scope tenantctx.Scope, rawToken string) (*Bundle, error) {
	digest := auth.DigestToken(rawToken)
	tok, ownerTenant, err := s.tokens.FindByDigestAcrossTenants(ctx, digest)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup refresh token: %w", err)
	}
	// A token from another tenant is indistinguishable from an unknown
	// token, so its existence cannot be probed.
	if ownerTenant != scope.TenantID {
		return nil, ErrInvalidCredentials
	}
	if tok.IsRevoked() {
		return nil, ErrTokenRevoked
	}
	if tok.IsExpired(time.Now().UTC()) {
		return nil, ErrTokenExpired
	}

	u, err := s.users.GetByIDAcrossTenants(ctx, tok.UserID)
	if err != nil {
		return nil, fmt.Errorf("load token owner: %w", err)
	}
	if u.TenantID != scope.TenantID {
		return nil, ErrInvalidCredentials
	}

	if err := s.enforceSessionCap(ctx, u.ID); err != nil {
		return nil, err
	}
	next, err := auth.NewRefreshToken(s.refreshTTL)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}
	// Revoke-then-insert inside one transaction: if the insert fails the
	// rollback restores the old token, and without transactions the
	// ordering fails safe (session lost, never duplicated).
	if err := s.tokens.Rotate(ctx, digest, u.ID, auth.DigestToken(next.Raw), next.Exp); err != nil {
		return nil, fmt.Errorf("rotate refresh token: %w", err)
	}

	return s.bundle(u, scope, next)
}

// Logout revokes the given refresh token if it belongs to the resolved
// tenant.  It is idempotent: unknown, foreign, expired and
// already-revoked tokens all succeed silently, leaving token state as
// the only observable effect.
func (s *AuthService) Logout(ctx context.Context, scope tenantctx.Scope, rawToken string) error {
	digest := auth.DigestToken(rawToken)
	if _, err := s.tokens.FindByDigest(ctx, scope, digest); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("lookup refresh token: %w", err)
	}
	if err := s.tokens.RevokeByDigest(ctx, digest); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

// CurrentUser loads the profile for an authenticated user id.  The
// lookup runs across tenants and the tenant binding is asserted
// explicitly; a mismatch is reported distinctly from not-found.
func (s *AuthService) CurrentUser(ctx context.Context, scope tenantctx.Scope, userID uint64) (*Profile, error) {
	u, err := s.users.GetByIDAcrossTenants(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	if u.TenantID != scope.TenantID {
		return nil, ErrTenantMismatch
	}
	p := profileOf(u)
	return &p, nil
}

// enforceSessionCap revokes the oldest active tokens of a user holding
// sessionCap or more, keeping the sessionKeep newest.  Oldest sessions
// are dropped silently; the caller sees no error.
func (s *AuthService) enforceSessionCap(ctx context.Context, userID uint64) error {
	active, err := s.tokens.ActiveForUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("list active tokens: %w", err)
	}
	if len(active) < sessionCap {
		return nil
	}
	var stale []uint64
	for _, t := range active[sessionKeep:] {
		stale = append(stale, t.ID)
	}
	if err := s.tokens.RevokeByIDs(ctx, stale); err != nil {
		return fmt.Errorf("revoke stale tokens: %w", err)
	}
	return nil
}

func (s *AuthService) bundle(u *model.User, scope tenantctx.Scope, refresh auth.RefreshToken) (*Bundle, error) {
	access, err := auth.NewAccessToken(s.jwtSecret, u, scope.TenantID, s.accessTTL)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	return &Bundle{
		User:    profileOf(u),
		Access:  TokenPart{Token: access.Token, Expires: access.Exp},
		Refresh: TokenPart{Token: refresh.Raw, Expires: refresh.Exp},
	}, nil
}

func profileOf(u *model.User) Profile {
	return Profile{
		ID:            u.ID,
		Email:         u.Email,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		Role:          u.Role,
		EmailVerified: u.EmailVerified,
	}
}

// validatePassword applies the password policy: minimum 8 characters
// always; strict mode additionally requires upper case, lower case, a
// digit and a symbol.
func validatePassword(pw string, strict bool) error {
	if len(pw) < 8 {
		return Invalid("password must be at least 8 characters")
	}
	if !strict {
		return nil
	}
	var upper, lower, digit, symbol bool
	for _, r := range pw {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		default:
			symbol = true
		}
	}
	if !upper || !lower || !digit || !symbol {
		return Invalid("password must mix upper case, lower case, digits and symbols")
	}
	return nil
}
