package model

import (
	"time"

	"github.com/opsmith-lab/taskmill/pkg/domain/types"
)

// ArchivedTask is a frozen snapshot of a task's fields at the moment of
// archival. It is immutable once written and carries no history or grant
// relations; those are discarded by the archival unit.
type ArchivedTask struct {
	ID          types.ArchiveID
	TaskID      types.TaskID
	TenantID    types.TenantID
	OwnerID     types.UserID
	Title       string
	Priority    types.Priority
	Description string
	Status      types.TaskStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ArchivedAt  time.Time
}

// NewArchivedTask freezes a task into an archive snapshot with a fresh
// identity.
func NewArchivedTask(t *Task, archivedAt time.Time) *ArchivedTask {
	return &ArchivedTask{
		ID:          types.NewArchiveID(),
		TaskID:      t.ID,
		TenantID:    t.TenantID,
		OwnerID:     t.OwnerID,
		Title:       t.Title,
		Priority:    t.Priority,
		Description: t.Description,
		Status:      t.Status,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
		ArchivedAt:  archivedAt,
	}
}
