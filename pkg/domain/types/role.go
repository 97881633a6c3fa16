package types

import "github.com/m-mizutani/goerr/v2"

// Role represents a user's role within a tenant. Roles are immutable after
// user creation.
type Role string

const (
	RoleEmployee Role = "EMPLOYEE"
	RoleManager  Role = "MANAGER"
)

// AllRoles returns all valid roles
func AllRoles() []Role {
	return []Role{
		RoleEmployee,
		RoleManager,
	}
}

// IsValid checks if the role is valid
func (r Role) IsValid() bool {
	switch r {
	case RoleEmployee, RoleManager:
		return true
	default:
		return false
	}
}

// String returns the string representation of the role
func (r Role) String() string {
	return string(r)
}

// ParseRole parses a string into a Role
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.IsValid() {
		return "", goerr.New("invalid role", goerr.V("role", s))
	}
	return r, nil
}
