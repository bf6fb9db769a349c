package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/tenant-auth/internal/model"
)

// TenantRepo persists tenants.  Tenants are the partitioning unit and
// therefore global: no Scope argument here.
type TenantRepo struct{ DB *sql.DB }

func NewTenantRepo(db *sql.DB) *TenantRepo { return &TenantRepo{DB: db} }

// Create inserts a tenant and returns its ID.
func (r *TenantRepo) Create(ctx context.Context, t *model.Tenant) (uint64, error) {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO tenants (name, subdomain, status) VALUES (?,?,?)",
		t.Name, t.Subdomain, t.Status)
	if err != nil {
		if isDuplicateKey(err) {
			return 0, ErrSubdomainExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetBySubdomain fetches a tenant by its normalized subdomain.
func (r *TenantRepo) GetBySubdomain(ctx context.Context, subdomain string) (*model.Tenant, error) {
	return r.get(ctx,
		"SELECT id,name,subdomain,status,created_at,updated_at FROM tenants WHERE subdomain=? LIMIT 1",
		subdomain)
}

// GetByID fetches a tenant by id.
func (r *TenantRepo) GetByID(ctx context.Context, id uint64) (*model.Tenant, error) {
	return r.get(ctx,
		"SELECT id,name,subdomain,status,created_at,updated_at FROM tenants WHERE id=? LIMIT 1",
		id)
}

// UpdateStatus writes a new lifecycle status.  Legality of the
// transition is checked on the model before this is called.
func (r *TenantRepo) UpdateStatus(ctx context.Context, id uint64, status model.TenantStatus) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE tenants SET status=?, updated_at=NOW() WHERE id=?", status, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *TenantRepo) get(ctx context.Context, q string, arg any) (*model.Tenant, error) {
	var t model.Tenant
	err := r.DB.QueryRowContext(ctx, q, arg).
		Scan(&t.ID, &t.Name, &t.Subdomain, &t.Status, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// isDuplicateKey reports whether err is a MySQL duplicate-entry error
// (errno 1062).
func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}
