package authz

import "context"

// Store is the engine's read boundary against persisted grant data. The
// engine never writes through it; mutation belongs to the admin services
// that call the gate first.
//
// Implementations must return only currently active rows; expiry filtering
// happens in the resolvers so it stays testable in one place.
type Store interface {
	// ActiveRoleAssignments returns the user's active assignments joined
	// with role and user type.
	ActiveRoleAssignments(ctx context.Context, userID int64) ([]RoleAssignment, error)
	// RoleGrants returns the permission template rows for a role.
	RoleGrants(ctx context.Context, roleID int64) ([]RoleGrant, error)
	// PermissionOverrides returns the user's active per-user overrides.
	PermissionOverrides(ctx context.Context, userID int64) ([]PermissionOverride, error)
	// LocationMemberships returns the user's active location links.
	LocationMemberships(ctx context.Context, userID int64) ([]LocationMembership, error)
	// ActiveUserTypes returns every active user type.
	ActiveUserTypes(ctx context.Context) ([]UserType, error)
	// RoleByID fetches a role with its user type. Returns ErrRoleNotFound
	// when the role does not exist or is inactive.
	RoleByID(ctx context.Context, roleID int64) (Role, UserType, error)
}
