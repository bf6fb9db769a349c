package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/tenant-auth/internal/model"
	"github.com/iliyamo/tenant-auth/internal/tenantctx"
)

const userColumns = "id,tenant_id,email,password_hash,first_name,last_name,role,email_verified,created_at,updated_at"

// UserRepo persists users.  Every method except the AcrossTenants
// lookup compiles the Scope into the WHERE clause.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// Create inserts a user under the given scope and returns its ID.  The
// tenant id comes from the scope, never from the model, so a handler
// cannot smuggle a foreign tenant id through the request body.
func (r *UserRepo) Create(ctx context.Context, scope tenantctx.Scope, u *model.User) (uint64, error) {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (tenant_id, email, password_hash, first_name, last_name, role) VALUES (?,?,?,?,?,?)",
		scope.TenantID, u.Email, u.PasswordHash, u.FirstName, u.LastName, u.Role)
	if err != nil {
		if isDuplicateKey(err) {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// CreateWithToken inserts a user and their first refresh token in one
// transaction, so registration never leaves a user without a session or
// a session without a user.
func (r *UserRepo) CreateWithToken(ctx context.Context, scope tenantctx.Scope, u *model.User, tokenDigest string, exp time.Time) (uint64, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		"INSERT INTO users (tenant_id, email, password_hash, first_name, last_name, role) VALUES (?,?,?,?,?,?)",
		scope.TenantID, u.Email, u.PasswordHash, u.FirstName, u.LastName, u.Role)
	if err != nil {
		if isDuplicateKey(err) {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO refresh_tokens (user_id, token_digest, expires_at) VALUES (?,?,?)",
		uint64(id), tokenDigest, exp); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByEmail fetches a user by normalized email within the scope.
func (r *UserRepo) GetByEmail(ctx context.Context, scope tenantctx.Scope, email string) (*model.User, error) {
	return r.get(ctx,
		"SELECT "+userColumns+" FROM users WHERE tenant_id=? AND email=? LIMIT 1",
		scope.TenantID, email)
}

// GetByID fetches a user by id within the scope.
func (r *UserRepo) GetByID(ctx context.Context, scope tenantctx.Scope, id uint64) (*model.User, error) {
	return r.get(ctx,
		"SELECT "+userColumns+" FROM users WHERE tenant_id=? AND id=? LIMIT 1",
		scope.TenantID, id)
}

// GetByIDAcrossTenants fetches a user by id with no tenant predicate.
// Callers must compare the returned TenantID against their resolved
// scope themselves; this method exists only for those audited checks
// (token refresh, current-user lookup).
func (r *UserRepo) GetByIDAcrossTenants(ctx context.Context, id uint64) (*model.User, error) {
	return r.get(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id)
}

func (r *UserRepo) get(ctx context.Context, q string, args ...any) (*model.User, error) {
	var u model.User
	err := r.DB.QueryRowContext(ctx, q, args...).Scan(
		&u.ID, &u.TenantID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName,
		&u.Role, &u.EmailVerified, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}
