package authz

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGate(store Store) *Gate {
	return NewGate(newTestResolver(store), store)
}

// seniorActor gives user 1 a Practice Manager role at location 1.
func seniorActor(store *mockStore) {
	store.userTypes = allTiers()
	store.addRole(Role{ID: 100, Name: "Practice Manager", DataScope: ScopeLocation}, tierManager)
	store.assign(1, 100, int64Ptr(1), nil)
}

func TestCanAssignRoleJuniorTierAllowed(t *testing.T) {
	store := newMockStore()
	seniorActor(store)
	store.addRole(Role{ID: 200, Name: "Hygienist", DataScope: ScopeLocation}, tierHygiene)

	gate := newTestGate(store)
	decision, err := gate.CanAssignRole(context.Background(), 1, 200, int64Ptr(1))
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.Empty(t, decision.Reason)
}

func TestCanAssignRoleSameTierDenied(t *testing.T) {
	store := newMockStore()
	seniorActor(store)
	store.addRole(Role{ID: 201, Name: "Office Manager", DataScope: ScopeLocation}, tierManager)

	gate := newTestGate(store)
	decision, err := gate.CanAssignRole(context.Background(), 1, 201, nil)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Contains(t, decision.Reason, "Practice Manager", "denial names the tier")
}

func TestCanAssignRoleSeniorTierDenied(t *testing.T) {
	store := newMockStore()
	seniorActor(store)
	store.addRole(Role{ID: 202, Name: "Regional Director", DataScope: ScopeAllLocations}, tierRegional)

	gate := newTestGate(store)
	decision, err := gate.CanAssignRole(context.Background(), 1, 202, nil)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
}

func TestCanAssignRoleOutsideLocationDenied(t *testing.T) {
	store := newMockStore()
	seniorActor(store)
	store.addRole(Role{ID: 200, Name: "Hygienist", DataScope: ScopeLocation}, tierHygiene)

	gate := newTestGate(store)
	decision, err := gate.CanAssignRole(context.Background(), 1, 200, int64Ptr(9))
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Contains(t, decision.Reason, "location")
}

func TestCanAssignRoleGlobalActorIgnoresLocation(t *testing.T) {
	store := newMockStore()
	store.userTypes = allTiers()
	store.addRole(Role{ID: 101, Name: "Regional Director", DataScope: ScopeGlobal}, tierRegional)
	store.assign(1, 101, nil, nil)
	store.addRole(Role{ID: 200, Name: "Hygienist", DataScope: ScopeLocation}, tierHygiene)

	gate := newTestGate(store)
	decision, err := gate.CanAssignRole(context.Background(), 1, 200, int64Ptr(9))
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
}

func TestCanAssignRoleNoContextDenied(t *testing.T) {
	store := newMockStore()
	store.addRole(Role{ID: 200, Name: "Hygienist", DataScope: ScopeLocation}, tierHygiene)

	gate := newTestGate(store)
	decision, err := gate.CanAssignRole(context.Background(), 1, 200, nil)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Contains(t, decision.Reason, "no active role")
}

func TestCanAssignRoleUnknownRoleDenied(t *testing.T) {
	store := newMockStore()
	seniorActor(store)

	gate := newTestGate(store)
	decision, err := gate.CanAssignRole(context.Background(), 1, 404, nil)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Contains(t, decision.Reason, "not found")
}

func TestCanAssignRoleProtectedDenied(t *testing.T) {
	store := newMockStore()
	store.userTypes = allTiers()
	store.addRole(Role{ID: 101, Name: "Regional Director", DataScope: ScopeGlobal}, tierRegional)
	store.assign(1, 101, nil, nil)
	store.addRole(Role{ID: 300, Name: "System Administrator", DataScope: ScopeGlobal, IsProtected: true}, tierTrainee)

	gate := newTestGate(store)
	decision, err := gate.CanAssignRole(context.Background(), 1, 300, nil)
	require.NoError(t, err)
	assert.False(t, decision.Allowed, "protected roles cannot be handed out even by the top of the hierarchy")
	assert.Contains(t, decision.Reason, "protected")
}

func TestValidateUserCreationCollectsAllRoleErrors(t *testing.T) {
	store := newMockStore()
	seniorActor(store)
	store.addRole(Role{ID: 200, Name: "Hygienist", DataScope: ScopeLocation}, tierHygiene)
	store.addRole(Role{ID: 202, Name: "Regional Director", DataScope: ScopeAllLocations}, tierRegional)

	gate := newTestGate(store)
	result, err := gate.ValidateUserCreation(context.Background(), 1, []AssignmentRequest{
		{RoleID: 200, LocationID: int64Ptr(1)},
		{RoleID: 202},
		{RoleID: 404},
	}, nil)
	require.NoError(t, err)

	assert.False(t, result.Valid)
	assert.Len(t, result.Errors, 2, "one error per failing assignment, valid ones pass silently")
}

func TestValidateUserCreationLocationViolationStopsAtFirst(t *testing.T) {
	store := newMockStore()
	seniorActor(store)
	store.addRole(Role{ID: 200, Name: "Hygienist", DataScope: ScopeLocation}, tierHygiene)

	gate := newTestGate(store)
	result, err := gate.ValidateUserCreation(context.Background(), 1, []AssignmentRequest{
		{RoleID: 200, LocationID: int64Ptr(1)},
	}, []int64{1, 8, 9})
	require.NoError(t, err)

	assert.False(t, result.Valid)
	require.Len(t, result.Errors, 1, "a single generic error regardless of how many ids are invalid")
	assert.NotContains(t, result.Errors[0], "8")
	assert.NotContains(t, result.Errors[0], "9")
}

func TestValidateUserCreationGlobalActorSkipsLocationCheck(t *testing.T) {
	store := newMockStore()
	store.userTypes = allTiers()
	store.addRole(Role{ID: 101, Name: "Regional Director", DataScope: ScopeGlobal}, tierRegional)
	store.assign(1, 101, nil, nil)
	store.addRole(Role{ID: 200, Name: "Hygienist", DataScope: ScopeLocation}, tierHygiene)

	gate := newTestGate(store)
	result, err := gate.ValidateUserCreation(context.Background(), 1, []AssignmentRequest{
		{RoleID: 200, LocationID: int64Ptr(77)},
	}, []int64{5, 6, 7})
	require.NoError(t, err)
	assert.True(t, result.Valid)
}

func TestValidateUserCreationNoContext(t *testing.T) {
	gate := newTestGate(newMockStore())
	result, err := gate.ValidateUserCreation(context.Background(), 1, nil, nil)
	require.NoError(t, err)
	assert.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
}

func TestValidateUserCreationStoreFailure(t *testing.T) {
	store := newMockStore()
	store.assignmentsErr = errors.New("db down")
	gate := newTestGate(store)
	_, err := gate.ValidateUserCreation(context.Background(), 1, nil, nil)
	require.Error(t, err, "infrastructure failures are errors, not denials")
}

func TestCanModifyRoleProtectedAlwaysDenied(t *testing.T) {
	store := newMockStore()
	store.userTypes = allTiers()
	store.addRole(Role{ID: 101, Name: "Regional Director", DataScope: ScopeGlobal}, tierRegional)
	store.assign(1, 101, nil, nil)
	store.addRole(Role{ID: 300, Name: "System Administrator", DataScope: ScopeGlobal, IsProtected: true}, tierTrainee)

	gate := newTestGate(store)
	decision, err := gate.CanModifyRole(context.Background(), 1, 300)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Contains(t, decision.Reason, "protected")
}

func TestCanModifyRoleProtectedCheckedBeforeHierarchy(t *testing.T) {
	store := newMockStore()
	store.addRole(Role{ID: 300, Name: "System Administrator", DataScope: ScopeGlobal, IsProtected: true}, tierTrainee)

	// Actor has no context at all; the protected guard must still be the
	// reported reason.
	gate := newTestGate(store)
	decision, err := gate.CanModifyRole(context.Background(), 99, 300)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Contains(t, decision.Reason, "protected")
}

func TestCanModifyRoleJuniorTierAllowed(t *testing.T) {
	store := newMockStore()
	seniorActor(store)
	store.addRole(Role{ID: 200, Name: "Hygienist", DataScope: ScopeLocation}, tierHygiene)

	gate := newTestGate(store)
	decision, err := gate.CanModifyRole(context.Background(), 1, 200)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
}

func TestCanAssignRoleExpiredActorRoleDenied(t *testing.T) {
	store := newMockStore()
	store.userTypes = allTiers()
	store.addRole(Role{ID: 100, Name: "Practice Manager", DataScope: ScopeLocation}, tierManager)
	store.assign(1, 100, int64Ptr(1), timePtr(time.Now().Add(-time.Minute)))
	store.addRole(Role{ID: 200, Name: "Hygienist", DataScope: ScopeLocation}, tierHygiene)

	gate := newTestGate(store)
	decision, err := gate.CanAssignRole(context.Background(), 1, 200, nil)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
}
