package shared

// Core platform permissions.
const (
	PermUsersView = "users.view"
	PermUsersEdit = "users.edit"

	PermRolesView = "roles.view"
	PermRolesEdit = "roles.edit"

	PermLocationsView = "locations.view"
	PermLocationsEdit = "locations.edit"

	PermPermissionsView = "permissions.view"
	PermPermissionsEdit = "permissions.edit"
)

// CoreScopes lists all permissions related to the core platform.
func CoreScopes() []string {
	return []string{
		PermUsersView,
		PermUsersEdit,
		PermRolesView,
		PermRolesEdit,
		PermLocationsView,
		PermLocationsEdit,
		PermPermissionsView,
		PermPermissionsEdit,
	}
}
