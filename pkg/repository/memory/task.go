package memory

import (
	"context"
	"sort"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/opsmith-lab/taskmill/pkg/domain/model"
	"github.com/opsmith-lab/taskmill/pkg/domain/types"
)

type taskRepository struct {
	s *store
}

func (r *taskRepository) Create(ctx context.Context, task *model.Task) (*model.Task, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	created := copyTask(task)
	if created.ID == "" {
		created.ID = types.NewTaskID()
	}
	if _, exists := r.s.tasks[created.ID]; exists {
		return nil, goerr.Wrap(ErrDuplicate, "task ID already exists", goerr.V("id", created.ID))
	}

	// The dedup check and the insert share the write lock, so the
	// uniqueness of the tuple holds at commit time even for concurrent
	// creators.
	key := created.DedupKey()
	if other, exists := r.s.dedup[key]; exists {
		return nil, goerr.Wrap(ErrDuplicate, "active task with same tuple exists",
			goerr.V("existingTaskID", other))
	}

	ts := now()
	created.CreatedAt = ts
	created.UpdatedAt = ts

	r.s.tasks[created.ID] = created
	r.s.dedup[key] = created.ID
	return copyTask(created), nil
}

func (r *taskRepository) Get(ctx context.Context, id types.TaskID) (*model.Task, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	task, exists := r.s.tasks[id]
	if !exists {
		return nil, goerr.Wrap(ErrNotFound, "task not found", goerr.V("id", id))
	}
	return copyTask(task), nil
}

func (r *taskRepository) Update(ctx context.Context, task *model.Task, entries []*model.HistoryEntry, expectUpdatedAt time.Time) (*model.Task, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	cur, exists := r.s.tasks[task.ID]
	if !exists {
		return nil, goerr.Wrap(ErrNotFound, "task not found", goerr.V("id", task.ID))
	}
	if !cur.UpdatedAt.Equal(expectUpdatedAt) {
		return nil, goerr.Wrap(ErrConflict, "task was modified concurrently",
			goerr.V("id", task.ID),
			goerr.V("expect", expectUpdatedAt),
			goerr.V("stored", cur.UpdatedAt))
	}

	next := copyTask(task)
	next.TenantID = cur.TenantID
	next.OwnerID = cur.OwnerID
	next.CreatedAt = cur.CreatedAt
	next.UpdatedAt = now()

	oldKey, newKey := cur.DedupKey(), next.DedupKey()
	if oldKey != newKey {
		if other, exists := r.s.dedup[newKey]; exists && other != next.ID {
			return nil, goerr.Wrap(ErrDuplicate, "active task with same tuple exists",
				goerr.V("existingTaskID", other))
		}
		delete(r.s.dedup, oldKey)
		r.s.dedup[newKey] = next.ID
	}

	r.s.tasks[next.ID] = next
	for _, e := range entries {
		entry := copyEntry(e)
		entry.TaskID = next.ID
		r.s.appendEntryLocked(entry)
	}
	return copyTask(next), nil
}

func (r *taskRepository) DeleteCascade(ctx context.Context, id types.TaskID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	task, exists := r.s.tasks[id]
	if !exists {
		return goerr.Wrap(ErrNotFound, "task not found", goerr.V("id", id))
	}
	r.s.dropTaskLocked(task)
	return nil
}

func (r *taskRepository) ListByTenant(ctx context.Context, tenantID types.TenantID) ([]*model.Task, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	result := make([]*model.Task, 0)
	for _, t := range r.s.tasks {
		if t.TenantID == tenantID {
			result = append(result, copyTask(t))
		}
	}
	sortTasks(result)
	return result, nil
}

func (r *taskRepository) ListOwnedOrGranted(ctx context.Context, tenantID types.TenantID, userID types.UserID) ([]*model.Task, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	result := make([]*model.Task, 0)
	for _, t := range r.s.tasks {
		if t.TenantID != tenantID {
			continue
		}
		if t.OwnerID == userID {
			result = append(result, copyTask(t))
			continue
		}
		if g := r.s.grants[t.ID]; g != nil {
			if _, granted := g[userID]; granted {
				result = append(result, copyTask(t))
			}
		}
	}
	sortTasks(result)
	return result, nil
}

func (r *taskRepository) ListStale(ctx context.Context, cutoff time.Time) ([]types.TaskID, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	ids := make([]types.TaskID, 0)
	for _, t := range r.s.tasks {
		if t.UpdatedAt.Before(cutoff) {
			ids = append(ids, t.ID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func sortTasks(tasks []*model.Task) {
	sort.Slice(tasks, func(i, j int) bool {
		if !tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
			return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
		}
		return tasks[i].ID < tasks[j].ID
	})
}
