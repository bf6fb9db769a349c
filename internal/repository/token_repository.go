package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/tenant-auth/internal/model"
	"github.com/iliyamo/tenant-auth/internal/tenantctx"
)

const (
	tokenColumns       = "id,user_id,token_digest,expires_at,revoked_at,created_at"
	joinedTokenColumns = "rt.id,rt.user_id,rt.token_digest,rt.expires_at,rt.revoked_at,rt.created_at,u.tenant_id"
)

// TokenRepo persists refresh tokens.  Rows are written once and mutated
// only by setting revoked_at, which makes concurrent double-revokes a
// benign race.
type TokenRepo struct{ DB *sql.DB }

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{DB: db} }

// Store inserts a refresh token row.
func (r *TokenRepo) Store(ctx context.Context, userID uint64, tokenDigest string, exp time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO refresh_tokens (user_id, token_digest, expires_at) VALUES (?,?,?)",
		userID, tokenDigest, exp)
	return err
}

// FindByDigest fetches a token by digest, restricted to tokens whose
// owner belongs to the scope's tenant.  Used by logout, which needs no
// cross-tenant comparison.
func (r *TokenRepo) FindByDigest(ctx context.Context, scope tenantctx.Scope, tokenDigest string) (*model.RefreshToken, error) {
	t, _, err := r.find(ctx,
		"SELECT "+joinedTokenColumns+" FROM refresh_tokens rt JOIN users u ON u.id=rt.user_id WHERE rt.token_digest=? AND u.tenant_id=? LIMIT 1",
		tokenDigest, scope.TenantID)
	return t, err
}

// FindByDigestAcrossTenants fetches a token by digest with no tenant
// predicate and also reports the owner's tenant id.  The refresh flow
// must first locate the owner before it can compare tenants; the caller
// is required to perform that equality check explicitly.
func (r *TokenRepo) FindByDigestAcrossTenants(ctx context.Context, tokenDigest string) (*model.RefreshToken, uint64, error) {
	return r.find(ctx,
		"SELECT "+joinedTokenColumns+" FROM refresh_tokens rt JOIN users u ON u.id=rt.user_id WHERE rt.token_digest=? LIMIT 1",
		tokenDigest)
}

// Rotate revokes the old token and inserts its replacement in one
// transaction.  The revoke statement runs first so that a failure
// between the two steps leaves the session terminated rather than
// duplicated.
func (r *TokenRepo) Rotate(ctx context.Context, oldDigest string, userID uint64, newDigest string, exp time.Time) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=NOW() WHERE token_digest=? AND revoked_at IS NULL",
		oldDigest); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO refresh_tokens (user_id, token_digest, expires_at) VALUES (?,?,?)",
		userID, newDigest, exp); err != nil {
		return err
	}
	return tx.Commit()
}

// RevokeByDigest marks a token as revoked.  Revoking an already-revoked
// token is a no-op.
func (r *TokenRepo) RevokeByDigest(ctx context.Context, tokenDigest string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=NOW() WHERE token_digest=? AND revoked_at IS NULL",
		tokenDigest)
	return err
}

// RevokeAllForUser revokes all of a user's active tokens.
func (r *TokenRepo) RevokeAllForUser(ctx context.Context, userID uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=NOW() WHERE user_id=? AND revoked_at IS NULL",
		userID)
	return err
}

// ActiveForUser lists a user's non-revoked, non-expired tokens ordered
// newest-first, for the session-cap sweep.
func (r *TokenRepo) ActiveForUser(ctx context.Context, userID uint64) ([]model.RefreshToken, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+tokenColumns+" FROM refresh_tokens WHERE user_id=? AND revoked_at IS NULL AND expires_at > NOW() ORDER BY created_at DESC, id DESC",
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.RefreshToken
	for rows.Next() {
		var t model.RefreshToken
		var revoked sql.NullTime
		if err := rows.Scan(&t.ID, &t.UserID, &t.TokenDigest, &t.ExpiresAt, &revoked, &t.CreatedAt); err != nil {
			return nil, err
		}
		if revoked.Valid {
			rt := revoked.Time
			t.RevokedAt = &rt
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// RevokeByIDs revokes the given token rows.  Used by the session-cap
// sweep to silently drop the oldest sessions.
func (r *TokenRepo) RevokeByIDs(ctx context.Context, ids []uint64) error {
	for _, id := range ids {
		if _, err := r.DB.ExecContext(ctx,
			"UPDATE refresh_tokens SET revoked_at=NOW() WHERE id=? AND revoked_at IS NULL", id); err != nil {
			return err
		}
	}
	return nil
}

func (r *TokenRepo) find(ctx context.Context, q string, args ...any) (*model.RefreshToken, uint64, error) {
	var (
		t        model.RefreshToken
		revoked  sql.NullTime
		tenantID uint64
	)
	err := r.DB.QueryRowContext(ctx, q, args...).Scan(
		&t.ID, &t.UserID, &t.TokenDigest, &t.ExpiresAt, &revoked, &t.CreatedAt, &tenantID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, ErrNotFound
	}
	if err != nil {
		return nil, 0, err
	}
	if revoked.Valid {
		rt := revoked.Time
		t.RevokedAt = &rt
	}
	return &t, tenantID, nil
}
