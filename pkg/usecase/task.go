package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/opsmith-lab/taskmill/pkg/domain/interfaces"
	"github.com/opsmith-lab/taskmill/pkg/domain/model"
	"github.com/opsmith-lab/taskmill/pkg/domain/types"
)

// TaskUseCase implements the task lifecycle: create, partial update, delete
// and per-task sharing. Every mutation is one repository-level atomic unit
// executed under a bounded deadline.
type TaskUseCase struct {
	repo      interfaces.Repository
	audit     *AuditUseCase
	opTimeout time.Duration
}

func NewTaskUseCase(repo interfaces.Repository, audit *AuditUseCase, opTimeout time.Duration) *TaskUseCase {
	return &TaskUseCase{
		repo:      repo,
		audit:     audit,
		opTimeout: opTimeout,
	}
}

func (uc *TaskUseCase) CreateTask(ctx context.Context, tenantID types.TenantID, ownerID types.UserID, title string, priority types.Priority, description string, status types.TaskStatus) (types.TaskID, error) {
	if title == "" {
		return "", goerr.Wrap(ErrInvalidFieldValue, "task title is required")
	}
	if !priority.IsValid() {
		return "", goerr.Wrap(ErrInvalidFieldValue, "invalid priority", goerr.V("priority", priority))
	}
	status = status.Normalize()
	if !status.IsValid() {
		return "", goerr.Wrap(ErrInvalidFieldValue, "invalid task status", goerr.V("status", status))
	}

	if _, err := uc.repo.Tenant().Get(ctx, tenantID); err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return "", goerr.Wrap(ErrTenantNotFound, "tenant not found", goerr.V(TenantIDKey, tenantID))
		}
		return "", goerr.Wrap(err, "failed to get tenant", goerr.V(TenantIDKey, tenantID))
	}

	owner, err := uc.repo.User().Get(ctx, ownerID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return "", goerr.Wrap(ErrUserNotFound, "owner not found", goerr.V(UserIDKey, ownerID))
		}
		return "", goerr.Wrap(err, "failed to get owner", goerr.V(UserIDKey, ownerID))
	}
	if owner.TenantID != tenantID {
		return "", goerr.Wrap(ErrTenantMismatch, "owner belongs to another tenant",
			goerr.V(TenantIDKey, tenantID),
			goerr.V(UserIDKey, ownerID))
	}

	ctx, cancel := mutationContext(ctx, uc.opTimeout)
	defer cancel()

	created, err := uc.repo.Task().Create(ctx, &model.Task{
		TenantID:    tenantID,
		OwnerID:     ownerID,
		Title:       title,
		Priority:    priority,
		Description: description,
		Status:      status,
	})
	if err != nil {
		switch {
		case errors.Is(err, interfaces.ErrDuplicate):
			return "", goerr.Wrap(ErrDuplicateTask, "an active task with the same owner, title and description exists",
				goerr.V(TenantIDKey, tenantID),
				goerr.V(UserIDKey, ownerID))
		case timedOut(err):
			return "", goerr.Wrap(ErrOperationTimeout, "task creation timed out")
		default:
			return "", goerr.Wrap(err, "failed to create task")
		}
	}
	return created.ID, nil
}

func (uc *TaskUseCase) UpdateTask(ctx context.Context, taskID types.TaskID, updatedBy types.UserID, patch model.TaskPatch) error {
	if err := patch.Validate(); err != nil {
		return goerr.Wrap(ErrInvalidFieldValue, err.Error(), goerr.V(TaskIDKey, taskID))
	}

	task, err := uc.getTask(ctx, taskID)
	if err != nil {
		return err
	}
	actor, err := uc.getUser(ctx, updatedBy)
	if err != nil {
		return err
	}
	if actor.TenantID != task.TenantID {
		return goerr.Wrap(ErrTenantMismatch, "actor belongs to another tenant",
			goerr.V(TaskIDKey, taskID),
			goerr.V(UserIDKey, updatedBy))
	}

	changes := patch.Changes(task)
	if len(changes) == 0 {
		// Nothing differs from the stored image: no write, no trail entry,
		// UpdatedAt untouched.
		return nil
	}

	next := *task
	patch.Apply(&next)
	entries := uc.audit.Compose(taskID, updatedBy, changes)

	ctx, cancel := mutationContext(ctx, uc.opTimeout)
	defer cancel()

	if _, err := uc.repo.Task().Update(ctx, &next, entries, task.UpdatedAt); err != nil {
		switch {
		case errors.Is(err, interfaces.ErrConflict):
			return goerr.Wrap(ErrConcurrentModification, "task changed since it was read", goerr.V(TaskIDKey, taskID))
		case errors.Is(err, interfaces.ErrDuplicate):
			return goerr.Wrap(ErrDuplicateTask, "update collides with an existing active task", goerr.V(TaskIDKey, taskID))
		case errors.Is(err, interfaces.ErrNotFound):
			return goerr.Wrap(ErrTaskNotFound, "task not found", goerr.V(TaskIDKey, taskID))
		case timedOut(err):
			return goerr.Wrap(ErrOperationTimeout, "task update timed out", goerr.V(TaskIDKey, taskID))
		default:
			return goerr.Wrap(err, "failed to update task", goerr.V(TaskIDKey, taskID))
		}
	}
	return nil
}

func (uc *TaskUseCase) DeleteTask(ctx context.Context, taskID types.TaskID, deletedBy types.UserID) error {
	task, err := uc.getTask(ctx, taskID)
	if err != nil {
		return err
	}
	actor, err := uc.getUser(ctx, deletedBy)
	if err != nil {
		return err
	}
	if actor.TenantID != task.TenantID {
		return goerr.Wrap(ErrTenantMismatch, "actor belongs to another tenant",
			goerr.V(TaskIDKey, taskID),
			goerr.V(UserIDKey, deletedBy))
	}

	ctx, cancel := mutationContext(ctx, uc.opTimeout)
	defer cancel()

	// Deletion removes the trail with the task; it leaves no entry of its own.
	if err := uc.repo.Task().DeleteCascade(ctx, taskID); err != nil {
		switch {
		case errors.Is(err, interfaces.ErrNotFound):
			return goerr.Wrap(ErrTaskNotFound, "task not found", goerr.V(TaskIDKey, taskID))
		case timedOut(err):
			return goerr.Wrap(ErrOperationTimeout, "task deletion timed out", goerr.V(TaskIDKey, taskID))
		default:
			return goerr.Wrap(err, "failed to delete task", goerr.V(TaskIDKey, taskID))
		}
	}
	return nil
}

// ShareTask grants sharedWith read access to the task. Sharing an already
// shared task is a no-op, not an error.
func (uc *TaskUseCase) ShareTask(ctx context.Context, taskID types.TaskID, sharedWith types.UserID) error {
	task, err := uc.getTask(ctx, taskID)
	if err != nil {
		return err
	}
	grantee, err := uc.getUser(ctx, sharedWith)
	if err != nil {
		return err
	}
	if grantee.TenantID != task.TenantID {
		return goerr.Wrap(ErrTenantMismatch, "grantee belongs to another tenant",
			goerr.V(TaskIDKey, taskID),
			goerr.V(UserIDKey, sharedWith))
	}

	grant := &model.PermissionGrant{TaskID: taskID, SharedWith: sharedWith}
	entry := uc.audit.Compose(taskID, sharedWith, []string{fmt.Sprintf("shared with user %s", sharedWith)})[0]

	ctx, cancel := mutationContext(ctx, uc.opTimeout)
	defer cancel()

	if _, err := uc.repo.Grant().Put(ctx, grant, entry); err != nil {
		switch {
		case errors.Is(err, interfaces.ErrNotFound):
			return goerr.Wrap(ErrTaskNotFound, "task not found", goerr.V(TaskIDKey, taskID))
		case timedOut(err):
			return goerr.Wrap(ErrOperationTimeout, "task sharing timed out", goerr.V(TaskIDKey, taskID))
		default:
			return goerr.Wrap(err, "failed to share task", goerr.V(TaskIDKey, taskID))
		}
	}
	return nil
}

func (uc *TaskUseCase) GetTask(ctx context.Context, taskID types.TaskID) (*model.Task, error) {
	return uc.getTask(ctx, taskID)
}

func (uc *TaskUseCase) getTask(ctx context.Context, taskID types.TaskID) (*model.Task, error) {
	task, err := uc.repo.Task().Get(ctx, taskID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil, goerr.Wrap(ErrTaskNotFound, "task not found", goerr.V(TaskIDKey, taskID))
		}
		return nil, goerr.Wrap(err, "failed to get task", goerr.V(TaskIDKey, taskID))
	}
	return task, nil
}

func (uc *TaskUseCase) getUser(ctx context.Context, userID types.UserID) (*model.User, error) {
	user, err := uc.repo.User().Get(ctx, userID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil, goerr.Wrap(ErrUserNotFound, "user not found", goerr.V(UserIDKey, userID))
		}
		return nil, goerr.Wrap(err, "failed to get user", goerr.V(UserIDKey, userID))
	}
	return user, nil
}
