package authz

import "errors"

var (
	// ErrRoleNotFound indicates the referenced role does not exist or is
	// inactive.
	ErrRoleNotFound = errors.New("authz: role not found")
	// ErrUserTypeNotFound indicates the role points at a missing tier.
	ErrUserTypeNotFound = errors.New("authz: user type not found")
)
