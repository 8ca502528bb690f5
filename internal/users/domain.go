package users

import "time"

// User represents a staff account for management.
type User struct {
	ID        int64
	Email     string
	FirstName string
	LastName  string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RoleSummary is a role attached to a user in listing responses.
type RoleSummary struct {
	RoleID     int64
	RoleName   string
	LocationID *int64
	ExpiresAt  *time.Time
}
