package memory

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/opsmith-lab/taskmill/pkg/domain/model"
	"github.com/opsmith-lab/taskmill/pkg/domain/types"
)

type historyRepository struct {
	s *store
}

func (r *historyRepository) Append(ctx context.Context, entry *model.HistoryEntry) (*model.HistoryEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.tasks[entry.TaskID]; !exists {
		return nil, goerr.Wrap(ErrNotFound, "task not found", goerr.V("taskID", entry.TaskID))
	}
	stored := r.s.appendEntryLocked(entry)
	return copyEntry(stored), nil
}

func (r *historyRepository) ListByTask(ctx context.Context, taskID types.TaskID) ([]*model.HistoryEntry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	entries := r.s.history[taskID]
	result := make([]*model.HistoryEntry, 0, len(entries))
	// Entries are stored in append order, which already satisfies the
	// (ChangeDate, Seq) ordering because ChangeDate never decreases.
	for _, e := range entries {
		result = append(result, copyEntry(e))
	}
	return result, nil
}

type grantRepository struct {
	s *store
}

func (r *grantRepository) Put(ctx context.Context, grant *model.PermissionGrant, entry *model.HistoryEntry) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.tasks[grant.TaskID]; !exists {
		return false, goerr.Wrap(ErrNotFound, "task not found", goerr.V("taskID", grant.TaskID))
	}

	bucket := r.s.grants[grant.TaskID]
	if bucket == nil {
		bucket = make(map[types.UserID]*model.PermissionGrant)
		r.s.grants[grant.TaskID] = bucket
	}
	if _, exists := bucket[grant.SharedWith]; exists {
		return false, nil
	}

	created := copyGrant(grant)
	if created.ID == "" {
		created.ID = types.NewGrantID()
	}
	created.CreatedAt = now()
	bucket[grant.SharedWith] = created

	if entry != nil {
		e := copyEntry(entry)
		e.TaskID = grant.TaskID
		r.s.appendEntryLocked(e)
	}
	return true, nil
}

func (r *grantRepository) ListByTask(ctx context.Context, taskID types.TaskID) ([]*model.PermissionGrant, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	bucket := r.s.grants[taskID]
	result := make([]*model.PermissionGrant, 0, len(bucket))
	for _, g := range bucket {
		result = append(result, copyGrant(g))
	}
	return result, nil
}
