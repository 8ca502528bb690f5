package authz

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"
)

// Resolver computes flattened permission views and hierarchy contexts for
// actors. It is safe for concurrent use; the only shared state is the
// injected Cache.
type Resolver struct {
	store  Store
	cache  Cache
	logger *slog.Logger
	group  singleflight.Group
	now    func() time.Time
}

// NewResolver constructs a Resolver. cache may be nil to disable caching.
func NewResolver(store Store, cache Cache, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{store: store, cache: cache, logger: logger, now: time.Now}
}

// ResolveEffectivePermissions returns the actor's post-override permission
// set, broadest data scope and location memberships. An actor without any
// active role resolves to the zero value (empty set, SELF, no locations)
// rather than an error, so callers fall back to least privilege.
func (r *Resolver) ResolveEffectivePermissions(ctx context.Context, userID int64) (EffectivePermissions, error) {
	if r.cache != nil {
		if perms, ok, err := r.cache.Get(ctx, userID); err != nil {
			// Cache trouble must not take authorization down.
			r.logger.Warn("permission cache read", slog.Int64("user_id", userID), slog.Any("error", err))
		} else if ok {
			return perms, nil
		}
	}

	v, err, _ := r.group.Do(strconv.FormatInt(userID, 10), func() (interface{}, error) {
		perms, err := r.resolvePermissions(ctx, userID)
		if err != nil {
			return EffectivePermissions{}, err
		}
		if r.cache != nil {
			if err := r.cache.Set(ctx, userID, perms); err != nil {
				r.logger.Warn("permission cache write", slog.Int64("user_id", userID), slog.Any("error", err))
			}
		}
		return perms, nil
	})
	if err != nil {
		return EffectivePermissions{}, err
	}
	return v.(EffectivePermissions), nil
}

func (r *Resolver) resolvePermissions(ctx context.Context, userID int64) (EffectivePermissions, error) {
	now := r.now()
	perms := EffectivePermissions{
		Permissions: make(map[string]struct{}),
		DataScope:   ScopeSelf,
		LocationIDs: make(map[int64]struct{}),
	}

	assignments, err := r.store.ActiveRoleAssignments(ctx, userID)
	if err != nil {
		return EffectivePermissions{}, err
	}
	for _, assignment := range assignments {
		if assignment.Expired(now) {
			continue
		}
		perms.DataScope = MaxScope(perms.DataScope, assignment.Role.DataScope)
		grants, err := r.store.RoleGrants(ctx, assignment.RoleID)
		if err != nil {
			return EffectivePermissions{}, err
		}
		for _, grant := range grants {
			if grant.Granted {
				perms.Permissions[grant.PermissionCode] = struct{}{}
			}
		}
	}

	memberships, err := r.store.LocationMemberships(ctx, userID)
	if err != nil {
		return EffectivePermissions{}, err
	}
	for _, membership := range memberships {
		perms.LocationIDs[membership.LocationID] = struct{}{}
	}

	// Overrides run strictly after the role union, so an override always
	// wins no matter how many roles grant the permission.
	overrides, err := r.store.PermissionOverrides(ctx, userID)
	if err != nil {
		return EffectivePermissions{}, err
	}
	for _, override := range overrides {
		if override.Expired(now) {
			continue
		}
		if override.Granted {
			perms.Permissions[override.PermissionCode] = struct{}{}
		} else {
			delete(perms.Permissions, override.PermissionCode)
		}
	}

	return perms, nil
}

// ResolveHierarchyContext computes what the actor may manage. Returns nil
// when the actor holds no active role assignment: no role, no authority.
// The result is a pure function of store state and is not cached.
func (r *Resolver) ResolveHierarchyContext(ctx context.Context, userID int64) (*HierarchyContext, error) {
	now := r.now()

	assignments, err := r.store.ActiveRoleAssignments(ctx, userID)
	if err != nil {
		return nil, err
	}
	live := assignments[:0]
	for _, assignment := range assignments {
		if !assignment.Expired(now) {
			live = append(live, assignment)
		}
	}
	if len(live) == 0 {
		return nil, nil
	}

	hctx := &HierarchyContext{
		HierarchyLevel:      live[0].UserType.HierarchyLevel,
		DataScope:           ScopeSelf,
		LocationIDs:         make(map[int64]struct{}),
		ManageableUserTypes: make(map[int64]struct{}),
	}
	for _, assignment := range live {
		if assignment.UserType.HierarchyLevel < hctx.HierarchyLevel {
			hctx.HierarchyLevel = assignment.UserType.HierarchyLevel
		}
		hctx.DataScope = MaxScope(hctx.DataScope, assignment.Role.DataScope)
		if assignment.LocationID != nil {
			hctx.LocationIDs[*assignment.LocationID] = struct{}{}
		}
	}

	memberships, err := r.store.LocationMemberships(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, membership := range memberships {
		hctx.LocationIDs[membership.LocationID] = struct{}{}
	}

	userTypes, err := r.store.ActiveUserTypes(ctx)
	if err != nil {
		return nil, err
	}
	for _, userType := range userTypes {
		// Strictly junior tiers only: an actor never manages its own
		// level or above.
		if userType.HierarchyLevel > hctx.HierarchyLevel {
			hctx.ManageableUserTypes[userType.ID] = struct{}{}
		}
	}

	hctx.AllLocations = hctx.DataScope.SpansAllLocations()
	return hctx, nil
}

// InvalidatePermissionCache drops one actor's cached snapshot.
func (r *Resolver) InvalidatePermissionCache(ctx context.Context, userID int64) error {
	if r.cache == nil {
		return nil
	}
	return r.cache.Invalidate(ctx, userID)
}

// InvalidateAllPermissionCaches drops every cached snapshot. Used after
// role-template mutations, which may affect every holder of the role.
func (r *Resolver) InvalidateAllPermissionCaches(ctx context.Context) error {
	if r.cache == nil {
		return nil
	}
	return r.cache.InvalidateAll(ctx)
}
