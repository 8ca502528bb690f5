// Package authz implements the role/permission hierarchy engine: user-type
// seniority levels, role data scopes, per-user permission overrides and
// location based partitioning of who may manage whom.
package authz

import "time"

// UserType is a tier of staff seniority. A lower HierarchyLevel means more
// organizational authority.
type UserType struct {
	ID             int64
	Name           string
	HierarchyLevel int
	IsActive       bool
}

// Role is a named permission bundle belonging to exactly one UserType.
type Role struct {
	ID          int64
	UserTypeID  int64
	Name        string
	DataScope   Scope
	IsDefault   bool
	IsActive    bool
	IsProtected bool
}

// Permission is an atomic capability.
type Permission struct {
	ID       int64
	Code     string
	Category string
}

// RoleGrant ties a permission code to a role template. Granted=false records
// an explicit denial inside the template.
type RoleGrant struct {
	RoleID         int64
	PermissionCode string
	Granted        bool
}

// RoleAssignment links a user to a role, optionally scoped to one location.
type RoleAssignment struct {
	UserID     int64
	RoleID     int64
	LocationID *int64
	AssignedBy int64
	IsActive   bool
	ExpiresAt  *time.Time

	Role     Role
	UserType UserType
}

// Expired reports whether the assignment has an ExpiresAt in the past.
func (a RoleAssignment) Expired(now time.Time) bool {
	return a.ExpiresAt != nil && a.ExpiresAt.Before(now)
}

// PermissionOverride is a per-user grant or revocation of a single
// permission. Overrides win over anything a role template says.
type PermissionOverride struct {
	UserID         int64
	PermissionCode string
	Granted        bool
	ExpiresAt      *time.Time
}

// Expired reports whether the override has lapsed.
func (o PermissionOverride) Expired(now time.Time) bool {
	return o.ExpiresAt != nil && o.ExpiresAt.Before(now)
}

// Location is a practice site.
type Location struct {
	ID       int64
	Name     string
	IsActive bool
}

// LocationMembership links a user to a location.
type LocationMembership struct {
	UserID     int64
	LocationID int64
	IsActive   bool
	IsPrimary  bool
}

// EffectivePermissions is the flattened view the Permission Resolver
// computes for one actor.
type EffectivePermissions struct {
	Permissions map[string]struct{}
	DataScope   Scope
	LocationIDs map[int64]struct{}
}

// Has reports whether the permission code is in the effective set.
func (e EffectivePermissions) Has(code string) bool {
	_, ok := e.Permissions[code]
	return ok
}

// HierarchyContext describes what one actor is allowed to manage.
type HierarchyContext struct {
	HierarchyLevel      int
	DataScope           Scope
	LocationIDs         map[int64]struct{}
	ManageableUserTypes map[int64]struct{}
	// AllLocations is set when DataScope is ALL_LOCATIONS or GLOBAL; the
	// LocationIDs restriction does not apply then.
	AllLocations bool
}

// CanManageUserType reports whether the actor may manage the given tier.
func (h *HierarchyContext) CanManageUserType(userTypeID int64) bool {
	if h == nil {
		return false
	}
	_, ok := h.ManageableUserTypes[userTypeID]
	return ok
}

// CanManageAtLocation reports whether the actor may manage users at the
// given location.
func (h *HierarchyContext) CanManageAtLocation(locationID int64) bool {
	if h == nil {
		return false
	}
	if h.AllLocations {
		return true
	}
	_, ok := h.LocationIDs[locationID]
	return ok
}

// Decision is the outcome of a single gate check. Denials carry a
// human-readable reason; they are values, never errors.
type Decision struct {
	Allowed bool
	Reason  string
}

// Validation aggregates gate failures for a multi-part request.
type Validation struct {
	Valid  bool
	Errors []string
}

// AssignmentRequest is one proposed role assignment in a user-creation
// payload.
type AssignmentRequest struct {
	RoleID     int64
	LocationID *int64
}
