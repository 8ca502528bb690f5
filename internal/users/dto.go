package users

import "time"

// RoleAssignmentRequest is one role proposed for a new user.
type RoleAssignmentRequest struct {
	RoleID     int64      `json:"role_id" validate:"required,gt=0"`
	LocationID *int64     `json:"location_id,omitempty" validate:"omitempty,gt=0"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

// CreateUserRequest is the payload for creating a staff account.
type CreateUserRequest struct {
	Email       string                  `json:"email" validate:"required,email,max=200"`
	FirstName   string                  `json:"first_name" validate:"required,max=100"`
	LastName    string                  `json:"last_name" validate:"required,max=100"`
	Roles       []RoleAssignmentRequest `json:"roles" validate:"required,min=1,dive"`
	LocationIDs []int64                 `json:"location_ids,omitempty" validate:"omitempty,dive,gt=0"`
}

// ListUsersRequest carries listing filters.
type ListUsersRequest struct {
	IsActive *bool   `json:"is_active,omitempty"`
	Search   *string `json:"search,omitempty"`
	Page     int     `json:"page" validate:"gte=0"`
	PerPage  int     `json:"per_page" validate:"gte=0,lte=200"`
}

// UserResponse is the wire shape for one user.
type UserResponse struct {
	ID        int64             `json:"id"`
	Email     string            `json:"email"`
	FirstName string            `json:"first_name"`
	LastName  string            `json:"last_name"`
	IsActive  bool              `json:"is_active"`
	CreatedAt time.Time         `json:"created_at"`
	Roles     []RoleSummaryJSON `json:"roles,omitempty"`
}

// RoleSummaryJSON mirrors RoleSummary for responses.
type RoleSummaryJSON struct {
	RoleID     int64      `json:"role_id"`
	RoleName   string     `json:"role_name"`
	LocationID *int64     `json:"location_id,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

func toUserResponse(user User, roles []RoleSummary) UserResponse {
	resp := UserResponse{
		ID:        user.ID,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		IsActive:  user.IsActive,
		CreatedAt: user.CreatedAt,
	}
	for _, role := range roles {
		resp.Roles = append(resp.Roles, RoleSummaryJSON{
			RoleID:     role.RoleID,
			RoleName:   role.RoleName,
			LocationID: role.LocationID,
			ExpiresAt:  role.ExpiresAt,
		})
	}
	return resp
}
