package model

import (
	"time"

	"github.com/opsmith-lab/taskmill/pkg/domain/types"
)

// User represents a member of a tenant. Role is immutable after creation.
type User struct {
	ID        types.UserID
	TenantID  types.TenantID
	Name      string
	Role      types.Role
	CreatedAt time.Time
}

// IsManager reports whether the user holds the manager role.
func (u *User) IsManager() bool {
	return u.Role == types.RoleManager
}
