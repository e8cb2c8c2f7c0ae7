package auth

import (
	"fmt"
	"strings"
)

// Role is a closed set. Permission grants are attached to roles at compile
// time; there is no runtime role management.
type Role string

const (
	RoleSuperadmin Role = "superadmin"
	RoleAdmin      Role = "admin"
	RoleManager    Role = "manager"
	RoleClient     Role = "client"
)

// AdminRoles lists the roles allowed onto the back-office surface.
var AdminRoles = []Role{RoleSuperadmin, RoleAdmin, RoleManager}

// ParseRole normalizes and validates a stored or transmitted role value.
func ParseRole(raw string) (Role, error) {
	switch Role(strings.TrimSpace(strings.ToLower(raw))) {
	case RoleSuperadmin:
		return RoleSuperadmin, nil
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleManager:
		return RoleManager, nil
	case RoleClient:
		return RoleClient, nil
	}
	return "", fmt.Errorf("%w: unknown role %q", ErrInvalidInput, raw)
}

// Global reports whether the role acts across all departments.
// Managers are bound to their department; clients hold no admin scope.
func (r Role) Global() bool {
	return r == RoleSuperadmin || r == RoleAdmin
}

// Admin reports whether the role may enter the back office at all.
func (r Role) Admin() bool {
	return r == RoleSuperadmin || r == RoleAdmin || r == RoleManager
}
