package authz

import (
	"context"
	"time"
)

type roleRecord struct {
	role     Role
	userType UserType
}

// mockStore is an in-memory Store for engine tests.
type mockStore struct {
	assignments map[int64][]RoleAssignment
	grants      map[int64][]RoleGrant
	overrides   map[int64][]PermissionOverride
	memberships map[int64][]LocationMembership
	userTypes   []UserType
	roles       map[int64]roleRecord

	// Error injection
	assignmentsErr error
	grantsErr      error
	overridesErr   error

	assignmentCalls int
	userTypeCalls   int
}

func newMockStore() *mockStore {
	return &mockStore{
		assignments: make(map[int64][]RoleAssignment),
		grants:      make(map[int64][]RoleGrant),
		overrides:   make(map[int64][]PermissionOverride),
		memberships: make(map[int64][]LocationMembership),
		roles:       make(map[int64]roleRecord),
	}
}

func (m *mockStore) ActiveRoleAssignments(ctx context.Context, userID int64) ([]RoleAssignment, error) {
	m.assignmentCalls++
	if m.assignmentsErr != nil {
		return nil, m.assignmentsErr
	}
	return append([]RoleAssignment(nil), m.assignments[userID]...), nil
}

func (m *mockStore) RoleGrants(ctx context.Context, roleID int64) ([]RoleGrant, error) {
	if m.grantsErr != nil {
		return nil, m.grantsErr
	}
	return append([]RoleGrant(nil), m.grants[roleID]...), nil
}

func (m *mockStore) PermissionOverrides(ctx context.Context, userID int64) ([]PermissionOverride, error) {
	if m.overridesErr != nil {
		return nil, m.overridesErr
	}
	return append([]PermissionOverride(nil), m.overrides[userID]...), nil
}

func (m *mockStore) LocationMemberships(ctx context.Context, userID int64) ([]LocationMembership, error) {
	return append([]LocationMembership(nil), m.memberships[userID]...), nil
}

func (m *mockStore) ActiveUserTypes(ctx context.Context) ([]UserType, error) {
	m.userTypeCalls++
	return append([]UserType(nil), m.userTypes...), nil
}

func (m *mockStore) RoleByID(ctx context.Context, roleID int64) (Role, UserType, error) {
	record, ok := m.roles[roleID]
	if !ok {
		return Role{}, UserType{}, ErrRoleNotFound
	}
	return record.role, record.userType, nil
}

// addRole registers a role with its tier and returns it for convenience.
func (m *mockStore) addRole(role Role, userType UserType) Role {
	role.UserTypeID = userType.ID
	role.IsActive = true
	m.roles[role.ID] = roleRecord{role: role, userType: userType}
	return role
}

// assign links a user to a role previously registered via addRole.
func (m *mockStore) assign(userID int64, roleID int64, locationID *int64, expiresAt *time.Time) {
	record := m.roles[roleID]
	m.assignments[userID] = append(m.assignments[userID], RoleAssignment{
		UserID:     userID,
		RoleID:     roleID,
		LocationID: locationID,
		IsActive:   true,
		ExpiresAt:  expiresAt,
		Role:       record.role,
		UserType:   record.userType,
	})
}

var _ Store = (*mockStore)(nil)

func int64Ptr(v int64) *int64 { return &v }

func timePtr(t time.Time) *time.Time { return &t }
