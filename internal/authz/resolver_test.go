package authz

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	tierRegional = UserType{ID: 1, Name: "Regional Director", HierarchyLevel: 5, IsActive: true}
	tierManager  = UserType{ID: 2, Name: "Practice Manager", HierarchyLevel: 10, IsActive: true}
	tierHygiene  = UserType{ID: 3, Name: "Hygienist", HierarchyLevel: 20, IsActive: true}
	tierTrainee  = UserType{ID: 4, Name: "Trainee", HierarchyLevel: 30, IsActive: true}
)

func allTiers() []UserType {
	return []UserType{tierRegional, tierManager, tierHygiene, tierTrainee}
}

func newTestResolver(store Store) *Resolver {
	return NewResolver(store, nil, nil)
}

func TestResolveEffectivePermissionsUnionsActiveRoles(t *testing.T) {
	store := newMockStore()
	store.addRole(Role{ID: 10, Name: "Hygienist", DataScope: ScopeLocation}, tierHygiene)
	store.addRole(Role{ID: 11, Name: "Scheduler", DataScope: ScopeSelf}, tierHygiene)
	store.grants[10] = []RoleGrant{
		{RoleID: 10, PermissionCode: "patients.view", Granted: true},
		{RoleID: 10, PermissionCode: "patients.edit", Granted: true},
		{RoleID: 10, PermissionCode: "billing.view", Granted: false},
	}
	store.grants[11] = []RoleGrant{
		{RoleID: 11, PermissionCode: "schedule.view", Granted: true},
	}
	store.assign(7, 10, int64Ptr(1), nil)
	store.assign(7, 11, nil, nil)
	store.memberships[7] = []LocationMembership{{UserID: 7, LocationID: 1, IsActive: true, IsPrimary: true}}

	resolver := newTestResolver(store)
	perms, err := resolver.ResolveEffectivePermissions(context.Background(), 7)
	require.NoError(t, err)

	assert.True(t, perms.Has("patients.view"))
	assert.True(t, perms.Has("patients.edit"))
	assert.True(t, perms.Has("schedule.view"))
	assert.False(t, perms.Has("billing.view"), "granted=false template rows contribute nothing")
	assert.Equal(t, ScopeLocation, perms.DataScope)
	assert.Contains(t, perms.LocationIDs, int64(1))
}

func TestResolveEffectivePermissionsOverrideAlwaysWins(t *testing.T) {
	store := newMockStore()
	store.addRole(Role{ID: 10, Name: "Hygienist", DataScope: ScopeLocation}, tierHygiene)
	store.grants[10] = []RoleGrant{
		{RoleID: 10, PermissionCode: "users.edit", Granted: true},
		{RoleID: 10, PermissionCode: "users.view", Granted: true},
	}
	store.assign(7, 10, nil, nil)
	store.overrides[7] = []PermissionOverride{
		{UserID: 7, PermissionCode: "users.edit", Granted: false},
		{UserID: 7, PermissionCode: "reports.export", Granted: true},
	}

	resolver := newTestResolver(store)
	perms, err := resolver.ResolveEffectivePermissions(context.Background(), 7)
	require.NoError(t, err)

	assert.False(t, perms.Has("users.edit"), "revocation override beats the role grant")
	assert.True(t, perms.Has("users.view"))
	assert.True(t, perms.Has("reports.export"), "grant override works without any role grant")
}

func TestResolveEffectivePermissionsExpiredRecordsIgnored(t *testing.T) {
	store := newMockStore()
	store.addRole(Role{ID: 10, Name: "Manager", DataScope: ScopeAllLocations}, tierManager)
	store.grants[10] = []RoleGrant{{RoleID: 10, PermissionCode: "users.edit", Granted: true}}
	store.assign(7, 10, nil, timePtr(time.Now().Add(-24*time.Hour)))
	store.overrides[7] = []PermissionOverride{
		{UserID: 7, PermissionCode: "reports.export", Granted: true, ExpiresAt: timePtr(time.Now().Add(-time.Hour))},
	}

	resolver := newTestResolver(store)
	perms, err := resolver.ResolveEffectivePermissions(context.Background(), 7)
	require.NoError(t, err)

	assert.Empty(t, perms.Permissions)
	assert.Equal(t, ScopeSelf, perms.DataScope, "expired assignment contributes no scope")
}

func TestResolveEffectivePermissionsUnknownActor(t *testing.T) {
	resolver := newTestResolver(newMockStore())
	perms, err := resolver.ResolveEffectivePermissions(context.Background(), 999)
	require.NoError(t, err)
	assert.Empty(t, perms.Permissions)
	assert.Empty(t, perms.LocationIDs)
	assert.Equal(t, ScopeSelf, perms.DataScope)
}

func TestResolveEffectivePermissionsStoreFailurePropagates(t *testing.T) {
	store := newMockStore()
	store.assignmentsErr = errors.New("connection reset")
	resolver := newTestResolver(store)
	_, err := resolver.ResolveEffectivePermissions(context.Background(), 7)
	require.Error(t, err)
}

func TestResolveEffectivePermissionsUsesCache(t *testing.T) {
	store := newMockStore()
	store.addRole(Role{ID: 10, Name: "Hygienist", DataScope: ScopeLocation}, tierHygiene)
	store.grants[10] = []RoleGrant{{RoleID: 10, PermissionCode: "patients.view", Granted: true}}
	store.assign(7, 10, nil, nil)

	resolver := NewResolver(store, NewMemoryCache(time.Minute), nil)
	ctx := context.Background()

	_, err := resolver.ResolveEffectivePermissions(ctx, 7)
	require.NoError(t, err)
	_, err = resolver.ResolveEffectivePermissions(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 1, store.assignmentCalls, "second resolution must hit the cache")

	require.NoError(t, resolver.InvalidatePermissionCache(ctx, 7))
	_, err = resolver.ResolveEffectivePermissions(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 2, store.assignmentCalls, "invalidation forces a reload")
}

func TestResolveHierarchyContextNoActiveRole(t *testing.T) {
	resolver := newTestResolver(newMockStore())
	hctx, err := resolver.ResolveHierarchyContext(context.Background(), 7)
	require.NoError(t, err)
	assert.Nil(t, hctx)
}

func TestResolveHierarchyContextOnlyExpiredRole(t *testing.T) {
	store := newMockStore()
	store.addRole(Role{ID: 10, Name: "Manager", DataScope: ScopeLocation}, tierManager)
	store.assign(7, 10, nil, timePtr(time.Now().Add(-24*time.Hour)))

	resolver := newTestResolver(store)
	hctx, err := resolver.ResolveHierarchyContext(context.Background(), 7)
	require.NoError(t, err)
	assert.Nil(t, hctx, "a role that expired yesterday leaves no manageable context")
}

func TestResolveHierarchyContextMostSeniorRoleWins(t *testing.T) {
	store := newMockStore()
	store.userTypes = allTiers()
	store.addRole(Role{ID: 10, Name: "Practice Manager", DataScope: ScopeLocation}, tierManager)
	store.addRole(Role{ID: 11, Name: "Regional Director", DataScope: ScopeAllLocations}, tierRegional)
	store.assign(7, 10, int64Ptr(1), nil)
	store.assign(7, 11, nil, nil)

	resolver := newTestResolver(store)
	hctx, err := resolver.ResolveHierarchyContext(context.Background(), 7)
	require.NoError(t, err)
	require.NotNil(t, hctx)

	assert.Equal(t, 5, hctx.HierarchyLevel, "minimum level across roles")
	assert.Equal(t, ScopeAllLocations, hctx.DataScope, "maximum scope across roles")
	assert.True(t, hctx.AllLocations)
	assert.True(t, hctx.CanManageAtLocation(42), "ALL_LOCATIONS scope ignores membership")
}

func TestResolveHierarchyContextManageableTiersStrictlyJunior(t *testing.T) {
	store := newMockStore()
	store.userTypes = allTiers()
	store.addRole(Role{ID: 10, Name: "Hygienist", DataScope: ScopeLocation}, tierHygiene)
	store.assign(7, 10, int64Ptr(1), nil)

	resolver := newTestResolver(store)
	hctx, err := resolver.ResolveHierarchyContext(context.Background(), 7)
	require.NoError(t, err)
	require.NotNil(t, hctx)

	assert.True(t, hctx.CanManageUserType(tierTrainee.ID), "level 30 is junior to 20")
	assert.False(t, hctx.CanManageUserType(tierHygiene.ID), "own tier is never manageable")
	assert.False(t, hctx.CanManageUserType(tierManager.ID))
	assert.False(t, hctx.CanManageUserType(tierRegional.ID))
}

func TestResolveHierarchyContextLocationUnion(t *testing.T) {
	store := newMockStore()
	store.userTypes = allTiers()
	store.addRole(Role{ID: 10, Name: "Practice Manager", DataScope: ScopeLocation}, tierManager)
	store.assign(7, 10, int64Ptr(1), nil)
	store.memberships[7] = []LocationMembership{
		{UserID: 7, LocationID: 2, IsActive: true},
		{UserID: 7, LocationID: 3, IsActive: true, IsPrimary: true},
	}

	resolver := newTestResolver(store)
	hctx, err := resolver.ResolveHierarchyContext(context.Background(), 7)
	require.NoError(t, err)
	require.NotNil(t, hctx)

	assert.False(t, hctx.AllLocations)
	for _, id := range []int64{1, 2, 3} {
		assert.True(t, hctx.CanManageAtLocation(id))
	}
	assert.False(t, hctx.CanManageAtLocation(4))
}
