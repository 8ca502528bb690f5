package roles

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/brightsmile-hq/brightsmile-portal/internal/authz"
	"github.com/brightsmile-hq/brightsmile-portal/internal/observability"
	"github.com/brightsmile-hq/brightsmile-portal/internal/shared"
)

// RepositoryPort defines data access methods for roles.
type RepositoryPort interface {
	ListRoles(ctx context.Context) ([]Role, error)
	GetRole(ctx context.Context, id int64) (Role, error)
	CreateRole(ctx context.Context, req CreateRoleRequest) (Role, error)
	UpdateRole(ctx context.Context, id int64, req UpdateRoleRequest) (Role, error)
	DeactivateRole(ctx context.Context, id int64) error
	ListTemplate(ctx context.Context, roleID int64) ([]TemplateEntry, error)
	ReplaceTemplate(ctx context.Context, roleID int64, entries []TemplateEntryRequest) error
	AssignRole(ctx context.Context, roleID int64, req AssignRoleRequest, assignedBy int64) error
	RevokeRole(ctx context.Context, roleID, userID int64) error
}

// GatePort is the slice of the authorization gate the service consumes.
type GatePort interface {
	CanAssignRole(ctx context.Context, actorID, targetRoleID int64, targetLocationID *int64) (authz.Decision, error)
	CanModifyRole(ctx context.Context, actorID, roleID int64) (authz.Decision, error)
}

// InvalidatorPort drops cached permission snapshots.
type InvalidatorPort interface {
	InvalidatePermissionCache(ctx context.Context, userID int64) error
	InvalidateAllPermissionCaches(ctx context.Context) error
}

// AuditPort records administrative actions.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service handles role management business logic. Every mutating method
// returns the gate decision as a value; infrastructure failures are errors.
type Service struct {
	repo        RepositoryPort
	gate        GatePort
	invalidator InvalidatorPort
	audit       AuditPort
	metrics     *observability.Metrics
	logger      *slog.Logger
}

// NewService builds a Service instance. audit and metrics are optional.
func NewService(repo RepositoryPort, gate GatePort, invalidator InvalidatorPort, audit AuditPort, metrics *observability.Metrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, gate: gate, invalidator: invalidator, audit: audit, metrics: metrics, logger: logger}
}

// List returns all active roles.
func (s *Service) List(ctx context.Context) ([]Role, error) {
	return s.repo.ListRoles(ctx)
}

// Get fetches one role.
func (s *Service) Get(ctx context.Context, id int64) (Role, error) {
	return s.repo.GetRole(ctx, id)
}

// Template returns a role's permission template.
func (s *Service) Template(ctx context.Context, roleID int64) ([]TemplateEntry, error) {
	return s.repo.ListTemplate(ctx, roleID)
}

// Create inserts a new role. Creation is guarded by route-level permissions
// only; a freshly created role is never protected.
func (s *Service) Create(ctx context.Context, actorID int64, req CreateRoleRequest) (Role, authz.Decision, error) {
	req.Name = strings.TrimSpace(req.Name)
	role, err := s.repo.CreateRole(ctx, req)
	if err != nil {
		return Role{}, authz.Decision{}, err
	}
	s.record(ctx, actorID, "role.create", role.ID, map[string]any{"name": role.Name})
	return role, authz.Decision{Allowed: true}, nil
}

// Update applies partial updates after the modification guard.
func (s *Service) Update(ctx context.Context, actorID, roleID int64, req UpdateRoleRequest) (Role, authz.Decision, error) {
	decision, err := s.gate.CanModifyRole(ctx, actorID, roleID)
	if err != nil {
		return Role{}, authz.Decision{}, err
	}
	s.metrics.RecordDecision("can_modify_role", decision.Allowed)
	if !decision.Allowed {
		return Role{}, decision, nil
	}

	role, err := s.repo.UpdateRole(ctx, roleID, req)
	if err != nil {
		return Role{}, authz.Decision{}, err
	}
	s.record(ctx, actorID, "role.update", roleID, nil)

	// A scope change alters every holder's effective data scope.
	if req.DataScope != nil {
		s.invalidateAll(ctx)
	}
	return role, decision, nil
}

// Deactivate soft-deletes a role after the modification guard.
func (s *Service) Deactivate(ctx context.Context, actorID, roleID int64) (authz.Decision, error) {
	decision, err := s.gate.CanModifyRole(ctx, actorID, roleID)
	if err != nil {
		return authz.Decision{}, err
	}
	s.metrics.RecordDecision("can_modify_role", decision.Allowed)
	if !decision.Allowed {
		return decision, nil
	}

	if err := s.repo.DeactivateRole(ctx, roleID); err != nil {
		return authz.Decision{}, err
	}
	s.record(ctx, actorID, "role.deactivate", roleID, nil)
	s.invalidateAll(ctx)
	return decision, nil
}

// SetTemplate replaces the role's permission template. The whole cache is
// cleared afterwards: any holder of the role may be affected.
func (s *Service) SetTemplate(ctx context.Context, actorID, roleID int64, req SetTemplateRequest) (authz.Decision, error) {
	decision, err := s.gate.CanModifyRole(ctx, actorID, roleID)
	if err != nil {
		return authz.Decision{}, err
	}
	s.metrics.RecordDecision("can_modify_role", decision.Allowed)
	if !decision.Allowed {
		return decision, nil
	}

	if err := s.repo.ReplaceTemplate(ctx, roleID, req.Entries); err != nil {
		return authz.Decision{}, err
	}
	s.record(ctx, actorID, "role.set_template", roleID, map[string]any{"entries": len(req.Entries)})
	s.invalidateAll(ctx)
	return decision, nil
}

// Assign grants the role to a user after the assignment gate.
func (s *Service) Assign(ctx context.Context, actorID, roleID int64, req AssignRoleRequest) (authz.Decision, error) {
	decision, err := s.gate.CanAssignRole(ctx, actorID, roleID, req.LocationID)
	if err != nil {
		return authz.Decision{}, err
	}
	s.metrics.RecordDecision("can_assign_role", decision.Allowed)
	if !decision.Allowed {
		return decision, nil
	}

	if err := s.repo.AssignRole(ctx, roleID, req, actorID); err != nil {
		return authz.Decision{}, err
	}
	s.record(ctx, actorID, "role.assign", roleID, map[string]any{"user_id": req.UserID})
	s.invalidate(ctx, req.UserID)
	return decision, nil
}

// Revoke deactivates a user's assignment of the role. Revocation reuses the
// assignment gate: whoever may hand a role out may also take it back.
func (s *Service) Revoke(ctx context.Context, actorID, roleID int64, req RevokeRoleRequest) (authz.Decision, error) {
	decision, err := s.gate.CanAssignRole(ctx, actorID, roleID, nil)
	if err != nil {
		return authz.Decision{}, err
	}
	s.metrics.RecordDecision("can_assign_role", decision.Allowed)
	if !decision.Allowed {
		return decision, nil
	}

	if err := s.repo.RevokeRole(ctx, roleID, req.UserID); err != nil {
		return authz.Decision{}, err
	}
	s.record(ctx, actorID, "role.revoke", roleID, map[string]any{"user_id": req.UserID})
	s.invalidate(ctx, req.UserID)
	return decision, nil
}

func (s *Service) record(ctx context.Context, actorID int64, action string, roleID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "role",
		EntityID: strconv.FormatInt(roleID, 10),
		Meta:     meta,
	}); err != nil {
		s.logger.Warn("audit record", slog.String("action", action), slog.Any("error", err))
	}
}

func (s *Service) invalidate(ctx context.Context, userID int64) {
	if s.invalidator == nil {
		return
	}
	if err := s.invalidator.InvalidatePermissionCache(ctx, userID); err != nil {
		s.logger.Warn("invalidate permission cache", slog.Int64("user_id", userID), slog.Any("error", err))
	}
}

func (s *Service) invalidateAll(ctx context.Context) {
	if s.invalidator == nil {
		return
	}
	if err := s.invalidator.InvalidateAllPermissionCaches(ctx); err != nil {
		s.logger.Warn("invalidate all permission caches", slog.Any("error", err))
	}
}
