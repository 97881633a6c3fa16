package interfaces

import (
	"context"
	"time"

	"github.com/opsmith-lab/taskmill/pkg/domain/model"
	"github.com/opsmith-lab/taskmill/pkg/domain/types"
)

// TaskRepository defines the interface for Task data access. Create, Update
// and DeleteCascade are single atomic units.
type TaskRepository interface {
	// Create inserts a new active task. CreatedAt and UpdatedAt are set by
	// the store; an empty ID is replaced with a generated one. The dedup
	// tuple (tenant, owner, title, description) is enforced at commit time:
	// of two concurrent creations of the same tuple exactly one succeeds,
	// the other fails with ErrDuplicate.
	Create(ctx context.Context, task *model.Task) (*model.Task, error)

	// Get retrieves an active task by ID
	Get(ctx context.Context, id types.TaskID) (*model.Task, error)

	// Update writes the task's new image and appends the given history
	// entries in one atomic unit, refreshing UpdatedAt. The write is
	// conditional on the stored UpdatedAt matching expectUpdatedAt; on
	// mismatch it fails with ErrConflict and nothing is applied. If the
	// update moves the task onto a dedup tuple held by another active task,
	// it fails with ErrDuplicate.
	Update(ctx context.Context, task *model.Task, entries []*model.HistoryEntry, expectUpdatedAt time.Time) (*model.Task, error)

	// DeleteCascade removes the task's permission grants, its history
	// entries and the task itself in one atomic unit.
	DeleteCascade(ctx context.Context, id types.TaskID) error

	// ListByTenant retrieves all active tasks of a tenant
	ListByTenant(ctx context.Context, tenantID types.TenantID) ([]*model.Task, error)

	// ListOwnedOrGranted retrieves the tenant's active tasks that the user
	// either owns or was granted, as one consistent set.
	ListOwnedOrGranted(ctx context.Context, tenantID types.TenantID, userID types.UserID) ([]*model.Task, error)

	// ListStale returns the IDs of active tasks with UpdatedAt before the
	// cutoff, materialized once for the archival unit.
	ListStale(ctx context.Context, cutoff time.Time) ([]types.TaskID, error)
}

// HistoryRepository defines the interface for the append-only audit trail
type HistoryRepository interface {
	// Append inserts one history entry for an existing task, assigning ID,
	// ChangeDate and Seq. ChangeDate is monotonically non-decreasing within
	// a task. Returns ErrNotFound if the task does not exist.
	Append(ctx context.Context, entry *model.HistoryEntry) (*model.HistoryEntry, error)

	// ListByTask retrieves a task's history ordered by ChangeDate, ties
	// broken by Seq.
	ListByTask(ctx context.Context, taskID types.TaskID) ([]*model.HistoryEntry, error)
}

// GrantRepository defines the interface for PermissionGrant data access
type GrantRepository interface {
	// Put inserts the grant and, when entry is non-nil, appends it to the
	// task's history in the same atomic unit. If a grant for the
	// (task, user) pair already exists this is a no-op: Put reports
	// created=false and writes nothing. Returns ErrNotFound if the task
	// does not exist.
	Put(ctx context.Context, grant *model.PermissionGrant, entry *model.HistoryEntry) (created bool, err error)

	// ListByTask retrieves all grants of a task
	ListByTask(ctx context.Context, taskID types.TaskID) ([]*model.PermissionGrant, error)
}

// ArchiveRepository defines the interface for archived task snapshots
type ArchiveRepository interface {
	// MoveTasks archives the tasks named by ids in one atomic unit: it
	// writes a frozen snapshot of each task, deletes the task's grants and
	// history, and removes the task from the active set. IDs that no longer
	// resolve (deleted concurrently) are skipped. Returns the number of
	// tasks archived. Any failure rolls back the whole unit.
	MoveTasks(ctx context.Context, ids []types.TaskID) (int, error)

	// Get retrieves an archived snapshot by its archive ID
	Get(ctx context.Context, id types.ArchiveID) (*model.ArchivedTask, error)

	// ListByTenant retrieves all archived snapshots of a tenant
	ListByTenant(ctx context.Context, tenantID types.TenantID) ([]*model.ArchivedTask, error)
}
