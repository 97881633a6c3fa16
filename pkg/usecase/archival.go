package usecase

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/opsmith-lab/taskmill/pkg/domain/interfaces"
)

// ArchivalUseCase moves stale tasks to the archive. The stale set is
// materialized once, then archived in a single atomic unit; a failed run
// leaves the active set untouched and may simply be retried.
type ArchivalUseCase struct {
	repo      interfaces.Repository
	opTimeout time.Duration
}

func NewArchivalUseCase(repo interfaces.Repository, opTimeout time.Duration) *ArchivalUseCase {
	return &ArchivalUseCase{
		repo:      repo,
		opTimeout: opTimeout,
	}
}

// ArchiveTasksOlderThan archives every active task whose UpdatedAt is before
// the cutoff and returns how many tasks were moved. Tasks that disappear
// between materialization and the move are skipped. A second run with the
// same cutoff archives nothing.
func (uc *ArchivalUseCase) ArchiveTasksOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	ids, err := uc.repo.Task().ListStale(ctx, cutoff)
	if err != nil {
		return 0, goerr.Wrap(ErrArchivalFailure, "failed to materialize stale tasks", goerr.V("cutoff", cutoff))
	}
	if len(ids) == 0 {
		return 0, nil
	}

	ctx, cancel := mutationContext(ctx, uc.opTimeout)
	defer cancel()

	moved, err := uc.repo.Archive().MoveTasks(ctx, ids)
	if err != nil {
		if timedOut(err) {
			return 0, goerr.Wrap(ErrOperationTimeout, "archival run timed out", goerr.V("cutoff", cutoff))
		}
		return 0, goerr.Wrap(ErrArchivalFailure, "failed to move tasks to archive",
			goerr.V("cutoff", cutoff),
			goerr.V("candidates", len(ids)))
	}
	return moved, nil
}
