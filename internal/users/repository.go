package users

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const principalByIDSQL = `SELECT id, tenant_id, email, role, first_name, last_name, is_active
FROM users WHERE id = $1 AND deleted_at IS NULL`

// PrincipalByID loads the minimal principal fields.
func (r *Repository) PrincipalByID(ctx context.Context, id uuid.UUID) (*Principal, error) {
	var p Principal
	err := r.pool.QueryRow(ctx, principalByIDSQL, id).Scan(
		&p.ID, &p.TenantID, &p.Email, &p.Role, &p.FirstName, &p.LastName, &p.IsActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

const profileColumns = `id, tenant_id, email, role, first_name, last_name, is_active,
	COALESCE(phone, ''), COALESCE(avatar_url, ''), created_at, updated_at`

func scanProfile(row pgx.Row) (*Profile, error) {
	var p Profile
	err := row.Scan(&p.ID, &p.TenantID, &p.Email, &p.Role, &p.FirstName, &p.LastName, &p.IsActive,
		&p.Phone, &p.AvatarURL, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Profile loads the full record of a principal within a tenant.
func (r *Repository) Profile(ctx context.Context, tenantID, id uuid.UUID) (*Profile, error) {
	return scanProfile(r.pool.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM users WHERE tenant_id = $1 AND id = $2 AND deleted_at IS NULL`, tenantID, id))
}

// UpdateProfile applies a patch. passwordHash is written only when non-empty.
func (r *Repository) UpdateProfile(ctx context.Context, tenantID, id uuid.UUID, patch ProfilePatch, passwordHash string) (*Profile, error) {
	return scanProfile(r.pool.QueryRow(ctx, `UPDATE users SET
	first_name = COALESCE($3, first_name),
	last_name = COALESCE($4, last_name),
	phone = COALESCE($5, phone),
	avatar_url = COALESCE($6, avatar_url),
	email = COALESCE($7, email),
	is_active = COALESCE($8, is_active),
	password_hash = COALESCE(NULLIF($9, ''), password_hash),
	updated_at = NOW()
WHERE tenant_id = $1 AND id = $2 AND deleted_at IS NULL
RETURNING `+profileColumns,
		tenantID, id, patch.FirstName, patch.LastName, patch.Phone, patch.AvatarURL, patch.Email, patch.IsActive, passwordHash))
}

// SetRole changes the role of a principal.
func (r *Repository) SetRole(ctx context.Context, tenantID, id uuid.UUID, role string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET role = $3, updated_at = NOW() WHERE tenant_id = $1 AND id = $2 AND deleted_at IS NULL`,
		tenantID, id, role)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SoftDelete deactivates and hides a principal.
func (r *Repository) SoftDelete(ctx context.Context, tenantID, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET is_active = FALSE, deleted_at = NOW(), updated_at = NOW()
WHERE tenant_id = $1 AND id = $2 AND deleted_at IS NULL`, tenantID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

var _ Store = (*Repository)(nil)
