package roles

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/brightsmile-hq/brightsmile-portal/internal/platform/db"
	"github.com/brightsmile-hq/brightsmile-portal/internal/shared"
)

const roleColumns = `r.id, r.user_type_id, ut.name, r.name, r.description, r.data_scope,
	r.is_default, r.is_active, r.is_protected, r.created_at, r.updated_at`

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanRole(row pgx.Row) (Role, error) {
	var role Role
	err := row.Scan(&role.ID, &role.UserTypeID, &role.UserTypeName, &role.Name, &role.Description,
		&role.DataScope, &role.IsDefault, &role.IsActive, &role.IsProtected, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, shared.ErrNotFound
		}
		return Role{}, err
	}
	return role, nil
}

// ListRoles returns all active roles ordered by tier then name.
func (r *Repository) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+roleColumns+`
		FROM roles r
		JOIN user_types ut ON ut.id = r.user_type_id
		WHERE r.is_active
		ORDER BY ut.hierarchy_level, r.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// GetRole fetches a role by id.
func (r *Repository) GetRole(ctx context.Context, id int64) (Role, error) {
	return scanRole(r.pool.QueryRow(ctx, `
		SELECT `+roleColumns+`
		FROM roles r
		JOIN user_types ut ON ut.id = r.user_type_id
		WHERE r.id = $1`, id))
}

// CreateRole inserts a new role.
func (r *Repository) CreateRole(ctx context.Context, req CreateRoleRequest) (Role, error) {
	now := time.Now().UTC()
	return scanRole(r.pool.QueryRow(ctx, `
		WITH inserted AS (
			INSERT INTO roles (user_type_id, name, description, data_scope, is_default, is_active, is_protected, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, TRUE, FALSE, $6, $6)
			RETURNING *
		)
		SELECT `+roleColumns+`
		FROM inserted r
		JOIN user_types ut ON ut.id = r.user_type_id`,
		req.UserTypeID, req.Name, req.Description, req.DataScope, req.IsDefault, now))
}

// UpdateRole applies partial updates to a role.
func (r *Repository) UpdateRole(ctx context.Context, id int64, req UpdateRoleRequest) (Role, error) {
	return scanRole(r.pool.QueryRow(ctx, `
		WITH updated AS (
			UPDATE roles SET
				name = COALESCE($2, name),
				description = COALESCE($3, description),
				data_scope = COALESCE($4, data_scope),
				is_default = COALESCE($5, is_default),
				updated_at = NOW()
			WHERE id = $1
			RETURNING *
		)
		SELECT `+roleColumns+`
		FROM updated r
		JOIN user_types ut ON ut.id = r.user_type_id`,
		id, req.Name, req.Description, req.DataScope, req.IsDefault))
}

// DeactivateRole soft-deletes a role; assignment history stays intact.
func (r *Repository) DeactivateRole(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE roles SET is_active = FALSE, updated_at = NOW() WHERE id = $1 AND is_active`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ListTemplate returns the role's permission template.
func (r *Repository) ListTemplate(ctx context.Context, roleID int64) ([]TemplateEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT p.id, p.code, p.category, rp.granted
		FROM role_permissions rp
		JOIN permissions p ON p.id = rp.permission_id
		WHERE rp.role_id = $1
		ORDER BY p.category, p.code`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []TemplateEntry
	for rows.Next() {
		var entry TemplateEntry
		if err := rows.Scan(&entry.PermissionID, &entry.Code, &entry.Category, &entry.Granted); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// ReplaceTemplate swaps the role's permission template in one transaction.
func (r *Repository) ReplaceTemplate(ctx context.Context, roleID int64, entries []TemplateEntryRequest) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, roleID); err != nil {
			return err
		}
		for _, entry := range entries {
			if _, err := tx.Exec(ctx,
				`INSERT INTO role_permissions (role_id, permission_id, granted) VALUES ($1, $2, $3)`,
				roleID, entry.PermissionID, entry.Granted); err != nil {
				return err
			}
		}
		return nil
	})
}

// AssignRole links a user to a role.
func (r *Repository) AssignRole(ctx context.Context, roleID int64, req AssignRoleRequest, assignedBy int64) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO user_roles (user_id, role_id, location_id, assigned_by, is_active, expires_at, created_at)
		VALUES ($1, $2, $3, $4, TRUE, $5, NOW())
		ON CONFLICT (user_id, role_id, location_id) DO UPDATE
			SET is_active = TRUE, expires_at = EXCLUDED.expires_at, assigned_by = EXCLUDED.assigned_by`,
		req.UserID, roleID, req.LocationID, assignedBy, req.ExpiresAt)
	return err
}

// RevokeRole deactivates a user's role assignments for the role. History is
// kept; rows are never deleted.
func (r *Repository) RevokeRole(ctx context.Context, roleID, userID int64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE user_roles SET is_active = FALSE WHERE role_id = $1 AND user_id = $2 AND is_active`,
		roleID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
