package roles

import "time"

// Role represents a role for management, joined with its user type.
type Role struct {
	ID           int64
	UserTypeID   int64
	UserTypeName string
	Name         string
	Description  string
	DataScope    string
	IsDefault    bool
	IsActive     bool
	IsProtected  bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TemplateEntry is one permission row of a role template.
type TemplateEntry struct {
	PermissionID int64
	Code         string
	Category     string
	Granted      bool
}
