package locations

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/brightsmile-hq/brightsmile-portal/internal/platform/db"
	"github.com/brightsmile-hq/brightsmile-portal/internal/shared"
)

// Repository provides PostgreSQL backed persistence for locations.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const locationColumns = `id, name, address, phone, is_active, created_at, updated_at`

func scanLocation(row pgx.Row) (Location, error) {
	var loc Location
	err := row.Scan(&loc.ID, &loc.Name, &loc.Address, &loc.Phone, &loc.IsActive, &loc.CreatedAt, &loc.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Location{}, shared.ErrNotFound
	}
	return loc, err
}

// ListLocations returns all locations, active first.
func (r *Repository) ListLocations(ctx context.Context) ([]Location, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+locationColumns+`
		FROM locations
		ORDER BY is_active DESC, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var locations []Location
	for rows.Next() {
		loc, err := scanLocation(rows)
		if err != nil {
			return nil, err
		}
		locations = append(locations, loc)
	}
	return locations, rows.Err()
}

// GetLocation fetches one location.
func (r *Repository) GetLocation(ctx context.Context, id int64) (Location, error) {
	return scanLocation(r.pool.QueryRow(ctx, `
		SELECT `+locationColumns+`
		FROM locations
		WHERE id = $1`, id))
}

// CreateLocation inserts a new practice site.
func (r *Repository) CreateLocation(ctx context.Context, req CreateLocationRequest) (Location, error) {
	return scanLocation(r.pool.QueryRow(ctx, `
		INSERT INTO locations (name, address, phone, is_active)
		VALUES ($1, $2, $3, TRUE)
		RETURNING `+locationColumns, req.Name, req.Address, req.Phone))
}

// UpdateLocation applies partial updates.
func (r *Repository) UpdateLocation(ctx context.Context, id int64, req UpdateLocationRequest) (Location, error) {
	return scanLocation(r.pool.QueryRow(ctx, `
		UPDATE locations SET
			name = COALESCE($2, name),
			address = COALESCE($3, address),
			phone = COALESCE($4, phone),
			is_active = COALESCE($5, is_active),
			updated_at = NOW()
		WHERE id = $1
		RETURNING `+locationColumns, id, req.Name, req.Address, req.Phone, req.IsActive))
}

// ListMembers returns active memberships joined with staff identity.
func (r *Repository) ListMembers(ctx context.Context, locationID int64) ([]Member, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT ul.user_id, u.email, u.first_name, u.last_name, ul.is_primary
		FROM user_locations ul
		JOIN users u ON u.id = ul.user_id
		WHERE ul.location_id = $1 AND ul.is_active
		ORDER BY u.last_name, u.first_name`, locationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []Member
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.UserID, &m.Email, &m.FirstName, &m.LastName, &m.IsPrimary); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// AddMember attaches the user to the location, reactivating a previous
// membership if one exists. A primary membership demotes the user's
// current primary location.
func (r *Repository) AddMember(ctx context.Context, locationID int64, req AddMemberRequest) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if req.IsPrimary {
			if _, err := tx.Exec(ctx, `
				UPDATE user_locations SET is_primary = FALSE
				WHERE user_id = $1 AND is_primary`, req.UserID); err != nil {
				return err
			}
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO user_locations (user_id, location_id, is_primary, is_active)
			VALUES ($1, $2, $3, TRUE)
			ON CONFLICT (user_id, location_id)
			DO UPDATE SET is_primary = EXCLUDED.is_primary, is_active = TRUE`,
			req.UserID, locationID, req.IsPrimary)
		return err
	})
}

// RemoveMember soft-deactivates the membership.
func (r *Repository) RemoveMember(ctx context.Context, locationID, userID int64) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE user_locations SET is_active = FALSE, is_primary = FALSE
		WHERE user_id = $1 AND location_id = $2 AND is_active`, userID, locationID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
