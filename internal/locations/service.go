package locations

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/brightsmile-hq/brightsmile-portal/internal/authz"
	"github.com/brightsmile-hq/brightsmile-portal/internal/observability"
	"github.com/brightsmile-hq/brightsmile-portal/internal/shared"
)

// RepositoryPort defines data access methods for locations.
type RepositoryPort interface {
	ListLocations(ctx context.Context) ([]Location, error)
	GetLocation(ctx context.Context, id int64) (Location, error)
	CreateLocation(ctx context.Context, req CreateLocationRequest) (Location, error)
	UpdateLocation(ctx context.Context, id int64, req UpdateLocationRequest) (Location, error)
	ListMembers(ctx context.Context, locationID int64) ([]Member, error)
	AddMember(ctx context.Context, locationID int64, req AddMemberRequest) error
	RemoveMember(ctx context.Context, locationID, userID int64) error
}

// ResolverPort is the slice of the hierarchy resolver the service consumes.
type ResolverPort interface {
	ResolveHierarchyContext(ctx context.Context, userID int64) (*authz.HierarchyContext, error)
}

// InvalidatorPort drops cached permission snapshots.
type InvalidatorPort interface {
	InvalidatePermissionCache(ctx context.Context, userID int64) error
}

// AuditPort records administrative actions.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service handles location management. Membership changes are gated on the
// actor's hierarchy context: an actor scoped to a location set may only
// touch memberships inside that set.
type Service struct {
	repo        RepositoryPort
	resolver    ResolverPort
	invalidator InvalidatorPort
	audit       AuditPort
	metrics     *observability.Metrics
	logger      *slog.Logger
}

// NewService builds a Service instance. audit and metrics are optional.
func NewService(repo RepositoryPort, resolver ResolverPort, invalidator InvalidatorPort, audit AuditPort, metrics *observability.Metrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, resolver: resolver, invalidator: invalidator, audit: audit, metrics: metrics, logger: logger}
}

// List returns all locations.
func (s *Service) List(ctx context.Context) ([]Location, error) {
	return s.repo.ListLocations(ctx)
}

// Get fetches one location.
func (s *Service) Get(ctx context.Context, id int64) (Location, error) {
	return s.repo.GetLocation(ctx, id)
}

// Members returns the location's active staff.
func (s *Service) Members(ctx context.Context, locationID int64) ([]Member, error) {
	return s.repo.ListMembers(ctx, locationID)
}

// Create opens a new practice site.
func (s *Service) Create(ctx context.Context, actorID int64, req CreateLocationRequest) (Location, error) {
	req.Name = strings.TrimSpace(req.Name)
	loc, err := s.repo.CreateLocation(ctx, req)
	if err != nil {
		return Location{}, err
	}
	s.record(ctx, actorID, "location.create", loc.ID, map[string]any{"name": loc.Name})
	return loc, nil
}

// Update applies partial updates.
func (s *Service) Update(ctx context.Context, actorID, id int64, req UpdateLocationRequest) (Location, error) {
	loc, err := s.repo.UpdateLocation(ctx, id, req)
	if err != nil {
		return Location{}, err
	}
	s.record(ctx, actorID, "location.update", id, nil)
	return loc, nil
}

// AddMember attaches a user to the location after the location gate.
func (s *Service) AddMember(ctx context.Context, actorID, locationID int64, req AddMemberRequest) (authz.Decision, error) {
	decision, err := s.checkLocation(ctx, actorID, locationID)
	if err != nil {
		return authz.Decision{}, err
	}
	if !decision.Allowed {
		return decision, nil
	}

	if err := s.repo.AddMember(ctx, locationID, req); err != nil {
		return authz.Decision{}, err
	}
	s.record(ctx, actorID, "location.add_member", locationID, map[string]any{"user_id": req.UserID})
	s.invalidate(ctx, req.UserID)
	return decision, nil
}

// RemoveMember detaches a user from the location after the location gate.
func (s *Service) RemoveMember(ctx context.Context, actorID, locationID, userID int64) (authz.Decision, error) {
	decision, err := s.checkLocation(ctx, actorID, locationID)
	if err != nil {
		return authz.Decision{}, err
	}
	if !decision.Allowed {
		return decision, nil
	}

	if err := s.repo.RemoveMember(ctx, locationID, userID); err != nil {
		return authz.Decision{}, err
	}
	s.record(ctx, actorID, "location.remove_member", locationID, map[string]any{"user_id": userID})
	s.invalidate(ctx, userID)
	return decision, nil
}

func (s *Service) checkLocation(ctx context.Context, actorID, locationID int64) (authz.Decision, error) {
	hierarchy, err := s.resolver.ResolveHierarchyContext(ctx, actorID)
	if err != nil {
		return authz.Decision{}, err
	}
	decision := authz.Decision{Allowed: true}
	if hierarchy == nil {
		decision = authz.Decision{Reason: "you have no active role and cannot manage memberships"}
	} else if !hierarchy.CanManageAtLocation(locationID) {
		decision = authz.Decision{Reason: "you cannot manage users at this location"}
	}
	s.metrics.RecordDecision("can_manage_location", decision.Allowed)
	return decision, nil
}

func (s *Service) record(ctx context.Context, actorID int64, action string, locationID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "location",
		EntityID: strconv.FormatInt(locationID, 10),
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
