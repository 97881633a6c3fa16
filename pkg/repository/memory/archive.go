package memory

import (
	"context"
	"sort"

	"github.com/m-mizutani/goerr/v2"
	"github.com/opsmith-lab/taskmill/pkg/domain/model"
	"github.com/opsmith-lab/taskmill/pkg/domain/types"
)

type archiveRepository struct {
	s *store
}

func (r *archiveRepository) MoveTasks(ctx context.Context, ids []types.TaskID) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	ts := now()
	count := 0
	for _, id := range ids {
		task, exists := r.s.tasks[id]
		if !exists {
			// Deleted since the key list was materialized.
			continue
		}
		snapshot := model.NewArchivedTask(task, ts)
		r.s.archived[snapshot.ID] = snapshot
		r.s.dropTaskLocked(task)
		count++
	}
	return count, nil
}

func (r *archiveRepository) Get(ctx context.Context, id types.ArchiveID) (*model.ArchivedTask, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	a, exists := r.s.archived[id]
	if !exists {
		return nil, goerr.Wrap(ErrNotFound, "archived task not found", goerr.V("id", id))
	}
	return copyArchived(a), nil
}

func (r *archiveRepository) ListByTenant(ctx context.Context, tenantID types.TenantID) ([]*model.ArchivedTask, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	result := make([]*model.ArchivedTask, 0)
	for _, a := range r.s.archived {
		if a.TenantID == tenantID {
			result = append(result, copyArchived(a))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].ArchivedAt.Equal(result[j].ArchivedAt) {
			return result[i].ArchivedAt.Before(result[j].ArchivedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}
