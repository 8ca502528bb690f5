package roles

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightsmile-hq/brightsmile-portal/internal/authz"
	"github.com/brightsmile-hq/brightsmile-portal/internal/shared"
)

type mockRepository struct {
	roles      map[int64]Role
	templates  map[int64][]TemplateEntryRequest
	assigned   []AssignRoleRequest
	revoked    []int64
	replaceErr error
	assignErr  error
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		roles:     make(map[int64]Role),
		templates: make(map[int64][]TemplateEntryRequest),
	}
}

func (m *mockRepository) ListRoles(ctx context.Context) ([]Role, error) {
	out := make([]Role, 0, len(m.roles))
	for _, role := range m.roles {
		out = append(out, role)
	}
	return out, nil
}

func (m *mockRepository) GetRole(ctx context.Context, id int64) (Role, error) {
	role, ok := m.roles[id]
	if !ok {
		return Role{}, shared.ErrNotFound
	}
	return role, nil
}

func (m *mockRepository) CreateRole(ctx context.Context, req CreateRoleRequest) (Role, error) {
	role := Role{
		ID:         int64(len(m.roles) + 1),
		Name:       req.Name,
		UserTypeID: req.UserTypeID,
		DataScope:  req.DataScope,
		IsActive:   true,
	}
	m.roles[role.ID] = role
	return role, nil
}

func (m *mockRepository) UpdateRole(ctx context.Context, id int64, req UpdateRoleRequest) (Role, error) {
	role, ok := m.roles[id]
	if !ok {
		return Role{}, shared.ErrNotFound
	}
	if req.Name != nil {
		role.Name = *req.Name
	}
	if req.DataScope != nil {
		role.DataScope = *req.DataScope
	}
	m.roles[id] = role
	return role, nil
}

func (m *mockRepository) DeactivateRole(ctx context.Context, id int64) error {
	role, ok := m.roles[id]
	if !ok {
		return shared.ErrNotFound
	}
	role.IsActive = false
	m.roles[id] = role
	return nil
}

func (m *mockRepository) ListTemplate(ctx context.Context, roleID int64) ([]TemplateEntry, error) {
	entries := make([]TemplateEntry, 0, len(m.templates[roleID]))
	for _, entry := range m.templates[roleID] {
		entries = append(entries, TemplateEntry{PermissionID: entry.PermissionID, Granted: entry.Granted})
	}
	return entries, nil
}

func (m *mockRepository) ReplaceTemplate(ctx context.Context, roleID int64, entries []TemplateEntryRequest) error {
	if m.replaceErr != nil {
		return m.replaceErr
	}
	m.templates[roleID] = entries
	return nil
}

func (m *mockRepository) AssignRole(ctx context.Context, roleID int64, req AssignRoleRequest, assignedBy int64) error {
	if m.assignErr != nil {
		return m.assignErr
	}
	m.assigned = append(m.assigned, req)
	return nil
}

func (m *mockRepository) RevokeRole(ctx context.Context, roleID, userID int64) error {
	m.revoked = append(m.revoked, userID)
	return nil
}

type mockGate struct {
	assignDecision authz.Decision
	modifyDecision authz.Decision
	err            error
	assignCalls    int
	modifyCalls    int
}

func (m *mockGate) CanAssignRole(ctx context.Context, actorID, targetRoleID int64, targetLocationID *int64) (authz.Decision, error) {
	m.assignCalls++
	return m.assignDecision, m.err
}

func (m *mockGate) CanModifyRole(ctx context.Context, actorID, roleID int64) (authz.Decision, error) {
	m.modifyCalls++
	return m.modifyDecision, m.err
}

type mockInvalidator struct {
	invalidated []int64
	clearedAll  int
}

func (m *mockInvalidator) InvalidatePermissionCache(ctx context.Context, userID int64) error {
	m.invalidated = append(m.invalidated, userID)
	return nil
}

func (m *mockInvalidator) InvalidateAllPermissionCaches(ctx context.Context) error {
	m.clearedAll++
	return nil
}

type mockAudit struct {
	logs []shared.AuditLog
}

func (m *mockAudit) Record(ctx context.Context, log shared.AuditLog) error {
	m.logs = append(m.logs, log)
	return nil
}

func allowAll() *mockGate {
	return &mockGate{
		assignDecision: authz.Decision{Allowed: true},
		modifyDecision: authz.Decision{Allowed: true},
	}
}

func seededService(gate *mockGate) (*Service, *mockRepository, *mockInvalidator, *mockAudit) {
	repo := newMockRepository()
	repo.roles[10] = Role{ID: 10, Name: "Hygienist", UserTypeID: 3, DataScope: "LOCATION", IsActive: true}
	invalidator := &mockInvalidator{}
	audit := &mockAudit{}
	return NewService(repo, gate, invalidator, audit, nil, nil), repo, invalidator, audit
}

func TestSetTemplateClearsAllCaches(t *testing.T) {
	gate := allowAll()
	svc, repo, invalidator, audit := seededService(gate)

	decision, err := svc.SetTemplate(context.Background(), 1, 10, SetTemplateRequest{
		Entries: []TemplateEntryRequest{{PermissionID: 7, Granted: true}},
	})
	require.NoError(t, err)
	assert.True(t, decision.Allowed)

	assert.Len(t, repo.templates[10], 1)
	assert.Equal(t, 1, invalidator.clearedAll, "template change must clear every cached snapshot")
	assert.Empty(t, invalidator.invalidated)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, "role.set_template", audit.logs[0].Action)
}

func TestSetTemplateDeniedLeavesTemplateUntouched(t *testing.T) {
	gate := allowAll()
	gate.modifyDecision = authz.Decision{Reason: "role \"Hygienist\" is protected and cannot be modified"}
	svc, repo, invalidator, _ := seededService(gate)

	decision, err := svc.SetTemplate(context.Background(), 1, 10, SetTemplateRequest{
		Entries: []TemplateEntryRequest{{PermissionID: 7, Granted: true}},
	})
	require.NoError(t, err, "a denial is a value, not an error")
	assert.False(t, decision.Allowed)
	assert.Empty(t, repo.templates[10])
	assert.Zero(t, invalidator.clearedAll)
}

func TestUpdateScopeChangeClearsAllCaches(t *testing.T) {
	gate := allowAll()
	svc, _, invalidator, _ := seededService(gate)

	scope := "ALL_LOCATIONS"
	_, decision, err := svc.Update(context.Background(), 1, 10, UpdateRoleRequest{DataScope: &scope})
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.Equal(t, 1, invalidator.clearedAll)
}

func TestUpdateNameOnlySkipsCacheClear(t *testing.T) {
	gate := allowAll()
	svc, _, invalidator, _ := seededService(gate)

	name := "Senior Hygienist"
	role, decision, err := svc.Update(context.Background(), 1, 10, UpdateRoleRequest{Name: &name})
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.Equal(t, "Senior Hygienist", role.Name)
	assert.Zero(t, invalidator.clearedAll, "a rename does not change anyone's permissions")
}

func TestDeactivateClearsAllCaches(t *testing.T) {
	gate := allowAll()
	svc, repo, invalidator, _ := seededService(gate)

	decision, err := svc.Deactivate(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.False(t, repo.roles[10].IsActive)
	assert.Equal(t, 1, invalidator.clearedAll)
}

func TestAssignInvalidatesOnlyTargetUser(t *testing.T) {
	gate := allowAll()
	svc, repo, invalidator, audit := seededService(gate)

	decision, err := svc.Assign(context.Background(), 1, 10, AssignRoleRequest{UserID: 42})
	require.NoError(t, err)
	assert.True(t, decision.Allowed)

	require.Len(t, repo.assigned, 1)
	assert.Equal(t, int64(42), repo.assigned[0].UserID)
	assert.Equal(t, []int64{42}, invalidator.invalidated)
	assert.Zero(t, invalidator.clearedAll)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, "role.assign", audit.logs[0].Action)
}

func TestAssignDeniedDoesNotPersist(t *testing.T) {
	gate := allowAll()
	gate.assignDecision = authz.Decision{Reason: "your role hierarchy does not allow assigning this role"}
	svc, repo, invalidator, _ := seededService(gate)

	decision, err := svc.Assign(context.Background(), 1, 10, AssignRoleRequest{UserID: 42})
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, "your role hierarchy does not allow assigning this role", decision.Reason)
	assert.Empty(t, repo.assigned)
	assert.Empty(t, invalidator.invalidated)
}

func TestAssignGateFailurePropagates(t *testing.T) {
	gate := &mockGate{err: errors.New("store unavailable")}
	svc, repo, _, _ := seededService(gate)

	_, err := svc.Assign(context.Background(), 1, 10, AssignRoleRequest{UserID: 42})
	require.Error(t, err)
	assert.Empty(t, repo.assigned)
}

func TestRevokeReusesAssignmentGate(t *testing.T) {
	gate := allowAll()
	svc, repo, invalidator, _ := seededService(gate)

	decision, err := svc.Revoke(context.Background(), 1, 10, RevokeRoleRequest{UserID: 42})
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.Equal(t, 1, gate.assignCalls)
	assert.Equal(t, []int64{42}, repo.revoked)
	assert.Equal(t, []int64{42}, invalidator.invalidated)
}

func TestCreateRecordsAudit(t *testing.T) {
	gate := allowAll()
	svc, repo, _, audit := seededService(gate)

	role, decision, err := svc.Create(context.Background(), 1, CreateRoleRequest{
		Name:       "  Front Desk  ",
		UserTypeID: 4,
		DataScope:  "SELF",
	})
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.Equal(t, "Front Desk", role.Name)
	assert.Contains(t, repo.roles, role.ID)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, "role.create", audit.logs[0].Action)
}

func TestReplaceTemplateFailureIsAnError(t *testing.T) {
	gate := allowAll()
	svc, repo, invalidator, _ := seededService(gate)
	repo.replaceErr = errors.New("transaction aborted")

	_, err := svc.SetTemplate(context.Background(), 1, 10, SetTemplateRequest{
		Entries: []TemplateEntryRequest{{PermissionID: 7, Granted: true}},
	})
	require.Error(t, err)
	assert.Zero(t, invalidator.clearedAll)
}
