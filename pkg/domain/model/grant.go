package model

import (
	"time"

	"github.com/opsmith-lab/taskmill/pkg/domain/types"
)

// PermissionGrant shares a single task with a user. The (TaskID, SharedWith)
// pair is unique; granting twice is a no-op, not an error.
type PermissionGrant struct {
	ID         types.GrantID
	TaskID     types.TaskID
	SharedWith types.UserID
	CreatedAt  time.Time
}
