package usecase

import (
	"context"
	"errors"

	"github.com/m-mizutani/goerr/v2"
	"github.com/opsmith-lab/taskmill/pkg/domain/interfaces"
	"github.com/opsmith-lab/taskmill/pkg/domain/model"
	"github.com/opsmith-lab/taskmill/pkg/domain/types"
)

// AuditUseCase is the single recording path for the audit trail. Mutations
// that must be atomic with their trail entries go through Compose and hand
// the entries to the repository unit; standalone notes go through Record.
type AuditUseCase struct {
	repo interfaces.Repository
}

func NewAuditUseCase(repo interfaces.Repository) *AuditUseCase {
	return &AuditUseCase{repo: repo}
}

// Compose builds unsaved trail entries, one per description, attributed to
// the actor. The store assigns ID, ChangeDate and Seq at write time.
func (uc *AuditUseCase) Compose(taskID types.TaskID, actorID types.UserID, descriptions []string) []*model.HistoryEntry {
	entries := make([]*model.HistoryEntry, 0, len(descriptions))
	for _, desc := range descriptions {
		entries = append(entries, &model.HistoryEntry{
			TaskID:      taskID,
			ChangedBy:   actorID,
			Description: desc,
		})
	}
	return entries
}

// Record appends a single entry to the task's trail as its own atomic unit.
func (uc *AuditUseCase) Record(ctx context.Context, taskID types.TaskID, actorID types.UserID, description string) error {
	if description == "" {
		return goerr.Wrap(ErrInvalidFieldValue, "trail description is required", goerr.V(TaskIDKey, taskID))
	}
	if _, err := uc.repo.User().Get(ctx, actorID); err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return goerr.Wrap(ErrUserNotFound, "actor not found", goerr.V(UserIDKey, actorID))
		}
		return goerr.Wrap(err, "failed to get actor", goerr.V(UserIDKey, actorID))
	}

	entry := uc.Compose(taskID, actorID, []string{description})[0]
	if _, err := uc.repo.History().Append(ctx, entry); err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return goerr.Wrap(ErrTaskNotFound, "task not found", goerr.V(TaskIDKey, taskID))
		}
		return goerr.Wrap(err, "failed to append trail entry", goerr.V(TaskIDKey, taskID))
	}
	return nil
}

// Trail returns the task's audit entries ordered by change date, ties broken
// by sequence.
func (uc *AuditUseCase) Trail(ctx context.Context, taskID types.TaskID) ([]*model.HistoryEntry, error) {
	if _, err := uc.repo.Task().Get(ctx, taskID); err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil, goerr.Wrap(ErrTaskNotFound, "task not found", goerr.V(TaskIDKey, taskID))
		}
		return nil, goerr.Wrap(err, "failed to get task", goerr.V(TaskIDKey, taskID))
	}

	entries, err := uc.repo.History().ListByTask(ctx, taskID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list trail", goerr.V(TaskIDKey, taskID))
	}
	return entries, nil
}
