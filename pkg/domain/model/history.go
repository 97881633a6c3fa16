package model

import (
	"time"

	"github.com/opsmith-lab/taskmill/pkg/domain/types"
)

// HistoryEntry is one record of a task's append-only audit trail. Entries
// are never updated; they are removed only when the whole task is deleted or
// archived. Ordering within a task is by ChangeDate, ties broken by Seq
// (insertion order). The store assigns ChangeDate and Seq on append and
// keeps ChangeDate monotonically non-decreasing per task.
type HistoryEntry struct {
	ID          types.HistoryID
	TaskID      types.TaskID
	ChangedBy   types.UserID
	ChangeDate  time.Time
	Seq         int64
	Description string
}
