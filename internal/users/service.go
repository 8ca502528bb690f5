package users

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/brightsmile-hq/brightsmile-portal/internal/authz"
	"github.com/brightsmile-hq/brightsmile-portal/internal/observability"
	"github.com/brightsmile-hq/brightsmile-portal/internal/shared"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	ListUsers(ctx context.Context, req ListUsersRequest) ([]User, int, error)
	GetUser(ctx context.Context, id int64) (User, []RoleSummary, error)
	CreateUser(ctx context.Context, params NewUserParams) (User, error)
}

// GatePort is the slice of the authorization gate the service consumes.
type GatePort interface {
	ValidateUserCreation(ctx context.Context, actorID int64, assignments []authz.AssignmentRequest, locationIDs []int64) (authz.Validation, error)
}

// InvalidatorPort drops cached permission snapshots.
type InvalidatorPort interface {
	InvalidatePermissionCache(ctx context.Context, userID int64) error
}

// AuditPort records administrative actions.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// NotifierPort enqueues the welcome notification; transport lives outside
// this service.
type NotifierPort interface {
	NotifyUserCreated(ctx context.Context, email, displayName string) error
}

// Service handles staff account management.
type Service struct {
	repo        RepositoryPort
	gate        GatePort
	invalidator InvalidatorPort
	audit       AuditPort
	notifier    NotifierPort
	metrics     *observability.Metrics
	logger      *slog.Logger
	titleCaser  cases.Caser
}

// NewService builds a Service instance. audit, notifier and metrics are
// optional.
func NewService(repo RepositoryPort, gate GatePort, invalidator InvalidatorPort, audit AuditPort, notifier NotifierPort, metrics *observability.Metrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:        repo,
		gate:        gate,
		invalidator: invalidator,
		audit:       audit,
		notifier:    notifier,
		metrics:     metrics,
		logger:      logger,
		titleCaser:  cases.Title(language.English),
	}
}

// List returns users matching the filters plus the total row count.
func (s *Service) List(ctx context.Context, req ListUsersRequest) ([]User, int, error) {
	return s.repo.ListUsers(ctx, req)
}

// Get fetches one user with active role summaries.
func (s *Service) Get(ctx context.Context, id int64) (User, []RoleSummary, error) {
	return s.repo.GetUser(ctx, id)
}

// Create validates the payload against the authorization gate and persists
// the account. A failed gate check comes back in the Validation value, not
// as an error.
func (s *Service) Create(ctx context.Context, actorID int64, req CreateUserRequest) (User, authz.Validation, error) {
	assignments := make([]authz.AssignmentRequest, 0, len(req.Roles))
	for _, role := range req.Roles {
		assignments = append(assignments, authz.AssignmentRequest{RoleID: role.RoleID, LocationID: role.LocationID})
	}

	validation, err := s.gate.ValidateUserCreation(ctx, actorID, assignments, req.LocationIDs)
	if err != nil {
		return User{}, authz.Validation{}, err
	}
	s.metrics.RecordDecision("validate_user_creation", validation.Valid)
	if !validation.Valid {
		return User{}, validation, nil
	}

	user, err := s.repo.CreateUser(ctx, NewUserParams{
		Email:       strings.ToLower(strings.TrimSpace(req.Email)),
		FirstName:   s.titleCaser.String(strings.TrimSpace(req.FirstName)),
		LastName:    s.titleCaser.String(strings.TrimSpace(req.LastName)),
		CreatedBy:   actorID,
		Roles:       req.Roles,
		LocationIDs: req.LocationIDs,
	})
	if err != nil {
		return User{}, authz.Validation{}, err
	}

	if s.audit != nil {
		if err := s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   "user.create",
			Entity:   "user",
			EntityID: strconv.FormatInt(user.ID, 10),
			Meta:     map[string]any{"email": user.Email, "roles": len(req.Roles)},
		}); err != nil {
			s.logger.Warn("audit user create", slog.Any("error", err))
		}
	}
	if s.invalidator != nil {
		if err := s.invalidator.InvalidatePermissionCache(ctx, user.ID); err != nil {
			s.logger.Warn("invalidate permission cache", slog.Int64("user_id", user.ID), slog.Any("error", err))
		}
	}
	if s.notifier != nil {
		displayName := strings.TrimSpace(user.FirstName + " " + user.LastName)
		if err := s.notifier.NotifyUserCreated(ctx, user.Email, displayName); err != nil {
			s.logger.Warn("enqueue welcome notification", slog.Any("error", err))
		}
	}

	return user, validation, nil
}
