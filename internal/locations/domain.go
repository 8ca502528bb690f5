package locations

import "time"

// Location is a practice site staff can be attached to.
type Location struct {
	ID        int64
	Name      string
	Address   string
	Phone     string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Member is one user's membership at a location, joined with user identity.
type Member struct {
	UserID    int64
	Email     string
	FirstName string
	LastName  string
	IsPrimary bool
}
