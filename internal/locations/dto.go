package locations

import "time"

// CreateLocationRequest is the payload for opening a new practice site.
type CreateLocationRequest struct {
	Name    string `json:"name" validate:"required,max=150"`
	Address string `json:"address" validate:"max=300"`
	Phone   string `json:"phone" validate:"max=30"`
}

// UpdateLocationRequest carries partial location updates.
type UpdateLocationRequest struct {
	Name     *string `json:"name,omitempty" validate:"omitempty,max=150"`
	Address  *string `json:"address,omitempty" validate:"omitempty,max=300"`
	Phone    *string `json:"phone,omitempty" validate:"omitempty,max=30"`
	IsActive *bool   `json:"is_active,omitempty"`
}

// AddMemberRequest attaches a user to the location.
type AddMemberRequest struct {
	UserID    int64 `json:"user_id" validate:"required,gt=0"`
	IsPrimary bool  `json:"is_primary"`
}

// LocationResponse is the wire shape for one location.
type LocationResponse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// MemberResponse is the wire shape for one membership row.
type MemberResponse struct {
	UserID    int64  `json:"user_id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	IsPrimary bool   `json:"is_primary"`
}

func toLocationResponse(loc Location) LocationResponse {
	return LocationResponse{
		ID:        loc.ID,
		Name:      loc.Name,
		Address:   loc.Address,
		Phone:     loc.Phone,
		IsActive:  loc.IsActive,
		CreatedAt: loc.CreatedAt,
	}
}

func toMemberResponse(m Member) MemberResponse {
	return MemberResponse{
		UserID:    m.UserID,
		Email:     m.Email,
		FirstName: m.FirstName,
		LastName:  m.LastName,
		IsPrimary: m.IsPrimary,
	}
}
