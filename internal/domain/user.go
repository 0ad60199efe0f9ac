package domain

import "time"

// UserRole enumerates help-desk product roles.
type UserRole string

const (
	RoleAdministrator UserRole = "ADMINISTRATOR"
	RoleHelpDesk      UserRole = "HELP_DESK"
	RoleInternalUser  UserRole = "INTERNAL_USER"
)

// IsStaff reports whether the role carries elevated workflow permissions.
func (r UserRole) IsStaff() bool {
	return r == RoleAdministrator || r == RoleHelpDesk
}

// Valid reports whether the role grants access to the product at all.
func (r UserRole) Valid() bool {
	return r.IsStaff() || r == RoleInternalUser
}

// User is the directory record used to render display names and role facts.
type User struct {
	UserName    string
	DisplayName string
	Email       string
	Roles       []UserRole
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// HasValidRole reports whether any of the user's roles is a product role.
func HasValidRole(roles []UserRole) bool {
	for _, role := range roles {
		if role.Valid() {
			return true
		}
	}
	return false
}

// HasStaffRole reports whether any of the roles is a staff role.
func HasStaffRole(roles []UserRole) bool {
	for _, role := range roles {
		if role.IsStaff() {
			return true
		}
	}
	return false
}
