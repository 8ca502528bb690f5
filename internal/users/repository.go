package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/brightsmile-hq/brightsmile-portal/internal/platform/db"
	"github.com/brightsmile-hq/brightsmile-portal/internal/shared"
)

// ErrDuplicateEmail indicates the email is already taken.
var ErrDuplicateEmail = errors.New("users: email already registered")

// NewUserParams carries everything persisted when creating a staff account.
type NewUserParams struct {
	Email       string
	FirstName   string
	LastName    string
	CreatedBy   int64
	Roles       []RoleAssignmentRequest
	LocationIDs []int64
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListUsers returns users matching the filters plus the unfiltered total.
func (r *Repository) ListUsers(ctx context.Context, req ListUsersRequest) ([]User, int, error) {
	pagination := shared.NewPagination(req.Page, req.PerPage, 0)
	offset := (pagination.Page - 1) * pagination.PerPage

	where := "TRUE"
	args := []any{}
	if req.IsActive != nil {
		args = append(args, *req.IsActive)
		where += fmt.Sprintf(" AND is_active = $%d", len(args))
	}
	if req.Search != nil && *req.Search != "" {
		args = append(args, "%"+*req.Search+"%")
		where += fmt.Sprintf(" AND (email ILIKE $%d OR first_name ILIKE $%d OR last_name ILIKE $%d)", len(args), len(args), len(args))
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, pagination.PerPage, offset)
	rows, err := r.pool.Query(ctx, fmt.Sprintf(
		`SELECT id, email, first_name, last_name, is_active, created_at, updated_at
		 FROM users WHERE %s ORDER BY id LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var user User
		if err := rows.Scan(&user.ID, &user.Email, &user.FirstName, &user.LastName, &user.IsActive, &user.CreatedAt, &user.UpdatedAt); err != nil {
			return nil, 0, err
		}
		users = append(users, user)
	}
	return users, total, rows.Err()
}

// GetUser fetches one user with role summaries.
func (r *Repository) GetUser(ctx context.Context, id int64) (User, []RoleSummary, error) {
	var user User
	err := r.pool.QueryRow(ctx,
		`SELECT id, email, first_name, last_name, is_active, created_at, updated_at
		 FROM users WHERE id = $1`, id).Scan(
		&user.ID, &user.Email, &user.FirstName, &user.LastName, &user.IsActive, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, nil, shared.ErrNotFound
		}
		return User{}, nil, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT ur.role_id, ro.name, ur.location_id, ur.expires_at
		 FROM user_roles ur
		 JOIN roles ro ON ro.id = ur.role_id
		 WHERE ur.user_id = $1 AND ur.is_active`, id)
	if err != nil {
		return User{}, nil, err
	}
	defer rows.Close()

	var roles []RoleSummary
	for rows.Next() {
		var role RoleSummary
		if err := rows.Scan(&role.RoleID, &role.RoleName, &role.LocationID, &role.ExpiresAt); err != nil {
			return User{}, nil, err
		}
		roles = append(roles, role)
	}
	return user, roles, rows.Err()
}

// CreateUser persists the account, its role assignments and location
// memberships in a single transaction.
func (r *Repository) CreateUser(ctx context.Context, params NewUserParams) (User, error) {
	var user User
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		now := time.Now().UTC()
		if err := tx.QueryRow(ctx,
			`INSERT INTO users (email, first_name, last_name, is_active, created_at, updated_at)
			 VALUES ($1, $2, $3, TRUE, $4, $4)
			 RETURNING id, email, first_name, last_name, is_active, created_at, updated_at`,
			params.Email, params.FirstName, params.LastName, now).Scan(
			&user.ID, &user.Email, &user.FirstName, &user.LastName, &user.IsActive, &user.CreatedAt, &user.UpdatedAt); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return ErrDuplicateEmail
			}
			return err
		}
		for _, role := range params.Roles {
			if _, err := tx.Exec(ctx,
				`INSERT INTO user_roles (user_id, role_id, location_id, assigned_by, is_active, expires_at, created_at)
				 VALUES ($1, $2, $3, $4, TRUE, $5, $6)`,
				user.ID, role.RoleID, role.LocationID, params.CreatedBy, role.ExpiresAt, now); err != nil {
				return err
			}
		}
		for i, locationID := range params.LocationIDs {
			if _, err := tx.Exec(ctx,
				`INSERT INTO user_locations (user_id, location_id, is_active, is_primary, created_at)
				 VALUES ($1, $2, TRUE, $3, $4)`,
				user.ID, locationID, i == 0, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return User{}, err
	}
	return user, nil
}
