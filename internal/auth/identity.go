package auth

import (
	"github.com/spec-kit/helpdesk/internal/domain"
)

// Identity answers the role and naming questions the workflow engine asks about the
// acting user.
type Identity interface {
	CurrentUserName() string
	IsInValidRole() bool
	IsStaff() bool
	GetUserDisplayName(userName string) string
}

// DisplayNameResolver maps user names to human readable names.
type DisplayNameResolver interface {
	DisplayName(userName string) string
}

// Principal represents the authenticated caller.
type Principal struct {
	UserName string
	Roles    []domain.UserRole
	names    DisplayNameResolver
}

// NewPrincipal builds a principal. A nil resolver renders user names verbatim.
func NewPrincipal(userName string, roles []domain.UserRole, names DisplayNameResolver) *Principal {
	return &Principal{UserName: userName, Roles: roles, names: names}
}

// CurrentUserName returns the acting user's name.
func (p *Principal) CurrentUserName() string {
	return p.UserName
}

// IsInValidRole reports whether the caller holds any product role.
func (p *Principal) IsInValidRole() bool {
	return domain.HasValidRole(p.Roles)
}

// IsStaff reports whether the caller is help-desk staff.
func (p *Principal) IsStaff() bool {
	return domain.HasStaffRole(p.Roles)
}

// GetUserDisplayName resolves a display name, falling back to the raw user name.
func (p *Principal) GetUserDisplayName(userName string) string {
	if p.names == nil || userName == "" {
		return userName
	}
	return p.names.DisplayName(userName)
}
