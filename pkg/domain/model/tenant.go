package model

import (
	"time"

	"github.com/opsmith-lab/taskmill/pkg/domain/types"
)

// Tenant represents an isolated organizational unit. Every user and task
// belongs to exactly one tenant.
type Tenant struct {
	ID        types.TenantID
	Name      string
	CreatedAt time.Time
}
