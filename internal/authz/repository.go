package authz

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository implements Store on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ActiveRoleAssignments returns active assignments with role and user type.
func (r *Repository) ActiveRoleAssignments(ctx context.Context, userID int64) ([]RoleAssignment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT ur.user_id, ur.role_id, ur.location_id, ur.assigned_by, ur.expires_at,
		       r.id, r.user_type_id, r.name, r.data_scope, r.is_default, r.is_protected,
		       ut.id, ut.name, ut.hierarchy_level
		FROM user_roles ur
		JOIN roles r ON r.id = ur.role_id AND r.is_active
		JOIN user_types ut ON ut.id = r.user_type_id AND ut.is_active
		WHERE ur.user_id = $1 AND ur.is_active`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var assignments []RoleAssignment
	for rows.Next() {
		var a RoleAssignment
		var scopeName string
		var expiresAt *time.Time
		if err := rows.Scan(
			&a.UserID, &a.RoleID, &a.LocationID, &a.AssignedBy, &expiresAt,
			&a.Role.ID, &a.Role.UserTypeID, &a.Role.Name, &scopeName, &a.Role.IsDefault, &a.Role.IsProtected,
			&a.UserType.ID, &a.UserType.Name, &a.UserType.HierarchyLevel,
		); err != nil {
			return nil, err
		}
		scope, err := ParseScope(scopeName)
		if err != nil {
			return nil, err
		}
		a.Role.DataScope = scope
		a.Role.IsActive = true
		a.UserType.IsActive = true
		a.IsActive = true
		a.ExpiresAt = expiresAt
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

// RoleGrants returns the permission template rows for a role.
func (r *Repository) RoleGrants(ctx context.Context, roleID int64) ([]RoleGrant, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT rp.role_id, p.code, rp.granted
		FROM role_permissions rp
		JOIN permissions p ON p.id = rp.permission_id
		WHERE rp.role_id = $1`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var grants []RoleGrant
	for rows.Next() {
		var g RoleGrant
		if err := rows.Scan(&g.RoleID, &g.PermissionCode, &g.Granted); err != nil {
			return nil, err
		}
		grants = append(grants, g)
	}
	return grants, rows.Err()
}

// PermissionOverrides returns the user's active overrides.
func (r *Repository) PermissionOverrides(ctx context.Context, userID int64) ([]PermissionOverride, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT up.user_id, p.code, up.granted, up.expires_at
		FROM user_permissions up
		JOIN permissions p ON p.id = up.permission_id
		WHERE up.user_id = $1 AND up.is_active`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var overrides []PermissionOverride
	for rows.Next() {
		var o PermissionOverride
		if err := rows.Scan(&o.UserID, &o.PermissionCode, &o.Granted, &o.ExpiresAt); err != nil {
			return nil, err
		}
		overrides = append(overrides, o)
	}
	return overrides, rows.Err()
}

// LocationMemberships returns the user's active location links.
func (r *Repository) LocationMemberships(ctx context.Context, userID int64) ([]LocationMembership, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT user_id, location_id, is_primary
		FROM user_locations
		WHERE user_id = $1 AND is_active`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var memberships []LocationMembership
	for rows.Next() {
		var m LocationMembership
		if err := rows.Scan(&m.UserID, &m.LocationID, &m.IsPrimary); err != nil {
			return nil, err
		}
		m.IsActive = true
		memberships = append(memberships, m)
	}
	return memberships, rows.Err()
}

// ActiveUserTypes returns every active user type.
func (r *Repository) ActiveUserTypes(ctx context.Context) ([]UserType, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, hierarchy_level
		FROM user_types
		WHERE is_active
		ORDER BY hierarchy_level`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var userTypes []UserType
	for rows.Next() {
		var ut UserType
		if err := rows.Scan(&ut.ID, &ut.Name, &ut.HierarchyLevel); err != nil {
			return nil, err
		}
		ut.IsActive = true
		userTypes = append(userTypes, ut)
	}
	return userTypes, rows.Err()
}

// RoleByID fetches an active role with its user type.
func (r *Repository) RoleByID(ctx context.Context, roleID int64) (Role, UserType, error) {
	var role Role
	var userType UserType
	var scopeName string
	err := r.pool.QueryRow(ctx, `
		SELECT r.id, r.user_type_id, r.name, r.data_scope, r.is_default, r.is_protected,
		       ut.id, ut.name, ut.hierarchy_level
		FROM roles r
		JOIN user_types ut ON ut.id = r.user_type_id
		WHERE r.id = $1 AND r.is_active`, roleID).Scan(
		&role.ID, &role.UserTypeID, &role.Name, &scopeName, &role.IsDefault, &role.IsProtected,
		&userType.ID, &userType.Name, &userType.HierarchyLevel,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, UserType{}, ErrRoleNotFound
		}
		return Role{}, UserType{}, err
	}
	scope, err := ParseScope(scopeName)
	if err != nil {
		return Role{}, UserType{}, err
	}
	role.DataScope = scope
	role.IsActive = true
	return role, userType, nil
}

var _ Store = (*Repository)(nil)
