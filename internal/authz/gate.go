package authz

import (
	"context"
	"errors"
	"fmt"
)

// Gate holds the authorization decision functions route handlers consume.
// Decisions are values; only store failures surface as errors.
type Gate struct {
	resolver *Resolver
	store    Store
}

// NewGate constructs a Gate sharing the resolver's store.
func NewGate(resolver *Resolver, store Store) *Gate {
	return &Gate{resolver: resolver, store: store}
}

// CanAssignRole decides whether the actor may assign the target role,
// optionally at a specific location.
func (g *Gate) CanAssignRole(ctx context.Context, actorID, targetRoleID int64, targetLocationID *int64) (Decision, error) {
	hctx, err := g.resolver.ResolveHierarchyContext(ctx, actorID)
	if err != nil {
		return Decision{}, err
	}
	return g.checkAssignment(ctx, hctx, targetRoleID, targetLocationID)
}

func (g *Gate) checkAssignment(ctx context.Context, hctx *HierarchyContext, targetRoleID int64, targetLocationID *int64) (Decision, error) {
	if hctx == nil {
		return Decision{Reason: "you have no active role and cannot manage users"}, nil
	}

	role, userType, err := g.store.RoleByID(ctx, targetRoleID)
	if err != nil {
		if errors.Is(err, ErrRoleNotFound) || errors.Is(err, ErrUserTypeNotFound) {
			return Decision{Reason: fmt.Sprintf("role %d not found", targetRoleID)}, nil
		}
		return Decision{}, err
	}

	if role.IsProtected {
		return Decision{Reason: fmt.Sprintf("role %q is protected and cannot be assigned", role.Name)}, nil
	}

	if !hctx.CanManageUserType(role.UserTypeID) {
		return Decision{Reason: fmt.Sprintf(
			"cannot assign %q roles: the %q tier is not junior to yours", role.Name, userType.Name,
		)}, nil
	}

	if role.DataScope == ScopeLocation && targetLocationID != nil && !hctx.CanManageAtLocation(*targetLocationID) {
		return Decision{Reason: fmt.Sprintf("no permission to manage users at location %d", *targetLocationID)}, nil
	}

	return Decision{Allowed: true}, nil
}

// ValidateUserCreation checks a user-creation payload: every proposed role
// assignment plus any direct location memberships. The hierarchy context is
// resolved once and reused across checks.
func (g *Gate) ValidateUserCreation(ctx context.Context, actorID int64, assignments []AssignmentRequest, locationIDs []int64) (Validation, error) {
	hctx, err := g.resolver.ResolveHierarchyContext(ctx, actorID)
	if err != nil {
		return Validation{}, err
	}
	if hctx == nil {
		return Validation{Errors: []string{"cannot determine your management permissions"}}, nil
	}

	var result Validation
	for _, assignment := range assignments {
		decision, err := g.checkAssignment(ctx, hctx, assignment.RoleID, assignment.LocationID)
		if err != nil {
			return Validation{}, err
		}
		if !decision.Allowed {
			result.Errors = append(result.Errors, decision.Reason)
		}
	}

	if !hctx.AllLocations {
		for _, locationID := range locationIDs {
			if !hctx.CanManageAtLocation(locationID) {
				// One generic error; do not enumerate every id.
				result.Errors = append(result.Errors, "one or more requested locations are outside your management scope")
				break
			}
		}
	}

	result.Valid = len(result.Errors) == 0
	return result, nil
}

// CanModifyRole guards role update/delete/template changes. Protected roles
// are rejected unconditionally, before any hierarchy computation.
func (g *Gate) CanModifyRole(ctx context.Context, actorID, roleID int64) (Decision, error) {
	role, _, err := g.store.RoleByID(ctx, roleID)
	if err != nil {
		if errors.Is(err, ErrRoleNotFound) || errors.Is(err, ErrUserTypeNotFound) {
			return Decision{Reason: fmt.Sprintf("role %d not found", roleID)}, nil
		}
		return Decision{}, err
	}
	if role.IsProtected {
		return Decision{Reason: fmt.Sprintf("role %q is protected and cannot be modified", role.Name)}, nil
	}

	hctx, err := g.resolver.ResolveHierarchyContext(ctx, actorID)
	if err != nil {
		return Decision{}, err
	}
	if hctx == nil {
		return Decision{Reason: "you have no active role and cannot manage roles"}, nil
	}
	if !hctx.CanManageUserType(role.UserTypeID) {
		return Decision{Reason: fmt.Sprintf("cannot modify roles of a tier that is not junior to yours (role %q)", role.Name)}, nil
	}
	return Decision{Allowed: true}, nil
}
