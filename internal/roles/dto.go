package roles

import "time"

// CreateRoleRequest is the payload for creating a role.
type CreateRoleRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=500"`
	UserTypeID  int64  `json:"user_type_id" validate:"required,gt=0"`
	DataScope   string `json:"data_scope" validate:"required,oneof=SELF LOCATION ALL_LOCATIONS GLOBAL"`
	IsDefault   bool   `json:"is_default"`
}

// UpdateRoleRequest carries partial role updates.
type UpdateRoleRequest struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,max=100"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=500"`
	DataScope   *string `json:"data_scope,omitempty" validate:"omitempty,oneof=SELF LOCATION ALL_LOCATIONS GLOBAL"`
	IsDefault   *bool   `json:"is_default,omitempty"`
}

// SetTemplateRequest replaces a role's permission template.
type SetTemplateRequest struct {
	Entries []TemplateEntryRequest `json:"entries" validate:"required,dive"`
}

// TemplateEntryRequest is one row of a template replacement.
type TemplateEntryRequest struct {
	PermissionID int64 `json:"permission_id" validate:"required,gt=0"`
	Granted      bool  `json:"granted"`
}

// AssignRoleRequest grants a role to a user.
type AssignRoleRequest struct {
	UserID     int64      `json:"user_id" validate:"required,gt=0"`
	LocationID *int64     `json:"location_id,omitempty" validate:"omitempty,gt=0"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

// RevokeRoleRequest removes a role from a user.
type RevokeRoleRequest struct {
	UserID int64 `json:"user_id" validate:"required,gt=0"`
}

// RoleResponse is the wire shape for one role.
type RoleResponse struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	UserTypeID   int64     `json:"user_type_id"`
	UserTypeName string    `json:"user_type_name"`
	DataScope    string    `json:"data_scope"`
	IsDefault    bool      `json:"is_default"`
	IsActive     bool      `json:"is_active"`
	IsProtected  bool      `json:"is_protected"`
	CreatedAt    time.Time `json:"created_at"`
}

func toRoleResponse(role Role) RoleResponse {
	return RoleResponse{
		ID:           role.ID,
		Name:         role.Name,
		Description:  role.Description,
		UserTypeID:   role.UserTypeID,
		UserTypeName: role.UserTypeName,
		DataScope:    role.DataScope,
		IsDefault:    role.IsDefault,
		IsActive:     role.IsActive,
		IsProtected:  role.IsProtected,
		CreatedAt:    role.CreatedAt,
	}
}
