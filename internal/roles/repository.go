package roles

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-tenancy/internal/platform/db"
	"github.com/odyssey-erp/odyssey-tenancy/internal/rbac"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{pool: pool, logger: logger}
}

const roleColumns = `id, tenant_id, code, name, base_code, permissions, active, is_system, sort_order, created_at, updated_at`

func (r *Repository) scanRole(row pgx.Row) (rbac.Role, error) {
	var (
		role  rbac.Role
		base  *string
		perms []byte
	)
	if err := row.Scan(&role.ID, &role.TenantID, &role.Code, &role.Name, &base, &perms,
		&role.Active, &role.System, &role.SortOrder, &role.CreatedAt, &role.UpdatedAt); err != nil {
		return rbac.Role{}, err
	}
	if base != nil {
		sr, err := parseBase(*base)
		if err != nil {
			r.logger.Warn("role has unknown base, treating as none",
				slog.String("tenant_id", role.TenantID.String()),
				slog.String("code", role.Code),
				slog.String("base", *base))
		}
		role.Base = sr
	}
	set, err := rbac.ParsePermissionSet(perms)
	if err != nil {
		return rbac.Role{}, fmt.Errorf("roles: load %s: %w", role.Code, err)
	}
	role.Permissions = set
	return role, nil
}

// RoleByCode loads one role of a tenant.
func (r *Repository) RoleByCode(ctx context.Context, tenantID uuid.UUID, code string) (rbac.Role, error) {
	role, err := r.scanRole(r.pool.QueryRow(ctx,
		`SELECT `+roleColumns+` FROM roles WHERE tenant_id = $1 AND code = $2`, tenantID, code))
	if errors.Is(err, pgx.ErrNoRows) {
		return rbac.Role{}, ErrNotFound
	}
	return role, err
}

// ListRoles returns the roles of a tenant.
func (r *Repository) ListRoles(ctx context.Context, tenantID uuid.UUID) ([]rbac.Role, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+roleColumns+` FROM roles WHERE tenant_id = $1 ORDER BY sort_order, code`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []rbac.Role
	for rows.Next() {
		role, err := r.scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return roles, nil
}

// CreateRole inserts a new role.
func (r *Repository) CreateRole(ctx context.Context, role rbac.Role) (rbac.Role, error) {
	perms, err := json.Marshal(role.Permissions)
	if err != nil {
		return rbac.Role{}, err
	}
	created, err := r.scanRole(r.pool.QueryRow(ctx, `INSERT INTO roles
	(tenant_id, code, name, base_code, permissions, active, is_system, sort_order)
VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8)
RETURNING `+roleColumns,
		role.TenantID, role.Code, role.Name, baseCode(role.Base), perms, role.Active, role.System, role.SortOrder))
	if isUniqueViolation(err) {
		return rbac.Role{}, ErrDuplicate
	}
	return created, err
}

// UpdateRole persists mutable fields of a role.
func (r *Repository) UpdateRole(ctx context.Context, role rbac.Role) (rbac.Role, error) {
	perms, err := json.Marshal(role.Permissions)
	if err != nil {
		return rbac.Role{}, err
	}
	updated, err := r.scanRole(r.pool.QueryRow(ctx, `UPDATE roles
SET name = $3, base_code = NULLIF($4, ''), permissions = $5, active = $6, sort_order = $7, updated_at = NOW()
WHERE tenant_id = $1 AND code = $2 AND NOT is_system
RETURNING `+roleColumns,
		role.TenantID, role.Code, role.Name, baseCode(role.Base), perms, role.Active, role.SortOrder))
	if errors.Is(err, pgx.ErrNoRows) {
		return rbac.Role{}, ErrNotFound
	}
	return updated, err
}

// DeleteRole removes a custom role.
func (r *Repository) DeleteRole(ctx context.Context, tenantID uuid.UUID, code string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM roles WHERE tenant_id = $1 AND code = $2 AND NOT is_system`, tenantID, code)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CountAssignees returns how many principals of the tenant hold the role.
func (r *Repository) CountAssignees(ctx context.Context, tenantID uuid.UUID, code string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE tenant_id = $1 AND role = $2`, tenantID, code).Scan(&n)
	return n, err
}

// SeedSystemRoles inserts the built-in roles for a tenant in one transaction.
func (r *Repository) SeedSystemRoles(ctx context.Context, tenantID uuid.UUID, roles []rbac.Role) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		for _, role := range roles {
			if _, err := tx.Exec(ctx, `INSERT INTO roles
	(tenant_id, code, name, base_code, permissions, active, is_system, sort_order)
VALUES ($1, $2, $3, $4, '{}'::jsonb, TRUE, TRUE, $5)
ON CONFLICT (tenant_id, code) DO NOTHING`,
				tenantID, role.Code, role.Name, baseCode(role.Base), role.SortOrder); err != nil {
				return fmt.Errorf("roles: seed %s: %w", role.Code, err)
			}
		}
		return nil
	})
}

func baseCode(sr rbac.SystemRole) string {
	if sr == rbac.NoBase {
		return ""
	}
	return sr.Code()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

var _ Store = (*Repository)(nil)
