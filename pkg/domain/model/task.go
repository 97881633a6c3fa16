package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/opsmith-lab/taskmill/pkg/domain/types"
)

// Task represents an active task owned by a user. The owner's tenant always
// equals the task's tenant.
type Task struct {
	ID          types.TaskID
	TenantID    types.TenantID
	OwnerID     types.UserID
	Title       string
	Priority    types.Priority
	Description string
	Status      types.TaskStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// DedupKey returns the deduplication key for the task. Two active tasks with
// the same (tenant, owner, title, description) tuple are duplicates; the
// store enforces uniqueness of this key at commit time.
func (t *Task) DedupKey() string {
	h := sha256.New()
	for _, part := range []string{string(t.TenantID), string(t.OwnerID), t.Title, t.Description} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// TaskPatch is a partial update of a task. Nil fields are left untouched,
// not nulled.
type TaskPatch struct {
	Title       *string
	Priority    *types.Priority
	Description *string
	Status      *types.TaskStatus
}

// IsEmpty reports whether the patch carries no fields at all.
func (p TaskPatch) IsEmpty() bool {
	return p.Title == nil && p.Priority == nil && p.Description == nil && p.Status == nil
}

// Validate checks enum domains of the supplied fields.
func (p TaskPatch) Validate() error {
	if p.Priority != nil && !p.Priority.IsValid() {
		return fmt.Errorf("invalid priority: %s", *p.Priority)
	}
	if p.Status != nil && !p.Status.IsValid() {
		return fmt.Errorf("invalid task status: %s", *p.Status)
	}
	return nil
}

// Changes returns one human-readable transition description per supplied
// field whose value differs from the stored one. The description field is
// not echoed into the audit trail; it yields a generic note.
func (p TaskPatch) Changes(old *Task) []string {
	var changes []string
	if p.Title != nil && *p.Title != old.Title {
		changes = append(changes, fmt.Sprintf("title changed from %q to %q", old.Title, *p.Title))
	}
	if p.Priority != nil && *p.Priority != old.Priority {
		changes = append(changes, fmt.Sprintf("priority changed from %s to %s", old.Priority, *p.Priority))
	}
	if p.Description != nil && *p.Description != old.Description {
		changes = append(changes, "description updated")
	}
	if p.Status != nil && *p.Status != old.Status {
		changes = append(changes, fmt.Sprintf("status changed from %s to %s", old.Status, *p.Status))
	}
	return changes
}

// Apply writes the supplied fields onto the task.
func (p TaskPatch) Apply(t *Task) {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
}
