package auth

import "time"

// Account is the credential view of a staff user.
type Account struct {
	ID           int64
	Email        string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
