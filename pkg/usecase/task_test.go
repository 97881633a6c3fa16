package usecase_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/opsmith-lab/taskmill/pkg/domain/interfaces"
	"github.com/opsmith-lab/taskmill/pkg/domain/model"
	"github.com/opsmith-lab/taskmill/pkg/domain/types"
	"github.com/opsmith-lab/taskmill/pkg/repository/memory"
	"github.com/opsmith-lab/taskmill/pkg/usecase"
)

func newUseCases(t *testing.T) (*usecase.UseCases, interfaces.Repository) {
	t.Helper()
	repo := memory.New()
	return usecase.New(repo), repo
}

func seedTenantUser(t *testing.T, uc *usecase.UseCases, role types.Role) (*model.Tenant, *model.User) {
	t.Helper()
	ctx := context.Background()

	tenant, err := uc.Admin.CreateTenant(ctx, "", "Test Tenant")
	gt.NoError(t, err).Required()

	user, err := uc.Admin.CreateUser(ctx, tenant.ID, "", "test-user", role)
	gt.NoError(t, err).Required()

	return tenant, user
}

func strPtr(s string) *string                        { return &s }
func priorityPtr(p types.Priority) *types.Priority   { return &p }
func statusPtr(s types.TaskStatus) *types.TaskStatus { return &s }

func TestCreateTask(t *testing.T) {
	ctx := context.Background()

	t.Run("creates a task in the owner's tenant", func(t *testing.T) {
		uc, repo := newUseCases(t)
		tenant, owner := seedTenantUser(t, uc, types.RoleEmployee)

		taskID, err := uc.Task.CreateTask(ctx, tenant.ID, owner.ID, "Quarterly filing", types.PriorityHigh, "prepare the filing", types.TaskStatusPending)
		gt.NoError(t, err).Required()

		task, err := repo.Task().Get(ctx, taskID)
		gt.NoError(t, err).Required()
		gt.Value(t, task.TenantID).Equal(tenant.ID)
		gt.Value(t, task.OwnerID).Equal(owner.ID)
		gt.Value(t, task.Title).Equal("Quarterly filing")
	})

	t.Run("defaults status to pending", func(t *testing.T) {
		uc, repo := newUseCases(t)
		tenant, owner := seedTenantUser(t, uc, types.RoleEmployee)

		taskID, err := uc.Task.CreateTask(ctx, tenant.ID, owner.ID, "No status", types.PriorityLow, "", "")
		gt.NoError(t, err).Required()

		task, err := repo.Task().Get(ctx, taskID)
		gt.NoError(t, err).Required()
		gt.Value(t, task.Status).Equal(types.TaskStatusPending)
	})

	t.Run("rejects empty title", func(t *testing.T) {
		uc, _ := newUseCases(t)
		tenant, owner := seedTenantUser(t, uc, types.RoleEmployee)

		_, err := uc.Task.CreateTask(ctx, tenant.ID, owner.ID, "", types.PriorityLow, "", types.TaskStatusPending)
		gt.Error(t, err)
		gt.Bool(t, errors.Is(err, usecase.ErrInvalidFieldValue)).True()
	})

	t.Run("rejects invalid priority", func(t *testing.T) {
		uc, _ := newUseCases(t)
		tenant, owner := seedTenantUser(t, uc, types.RoleEmployee)

		_, err := uc.Task.CreateTask(ctx, tenant.ID, owner.ID, "Bad priority", types.Priority("URGENT"), "", types.TaskStatusPending)
		gt.Error(t, err)
		gt.Bool(t, errors.Is(err, usecase.ErrInvalidFieldValue)).True()
	})

	t.Run("rejects unknown tenant", func(t *testing.T) {
		uc, _ := newUseCases(t)
		_, owner := seedTenantUser(t, uc, types.RoleEmployee)

		_, err := uc.Task.CreateTask(ctx, types.NewTenantID(), owner.ID, "Orphan", types.PriorityLow, "", types.TaskStatusPending)
		gt.Error(t, err)
		gt.Bool(t, errors.Is(err, usecase.ErrTenantNotFound)).True()
	})

	t.Run("rejects unknown owner", func(t *testing.T) {
		uc, _ := newUseCases(t)
		tenant, _ := seedTenantUser(t, uc, types.RoleEmployee)

		_, err := uc.Task.CreateTask(ctx, tenant.ID, types.NewUserID(), "Orphan", types.PriorityLow, "", types.TaskStatusPending)
		gt.Error(t, err)
		gt.Bool(t, errors.Is(err, usecase.ErrUserNotFound)).True()
	})

	t.Run("rejects owner from another tenant", func(t *testing.T) {
		uc, _ := newUseCases(t)
		tenantA, _ := seedTenantUser(t, uc, types.RoleEmployee)
		_, ownerB := seedTenantUser(t, uc, types.RoleEmployee)

		_, err := uc.Task.CreateTask(ctx, tenantA.ID, ownerB.ID, "Cross-tenant", types.PriorityLow, "", types.TaskStatusPending)
		gt.Error(t, err)
		gt.Bool(t, errors.Is(err, usecase.ErrTenantMismatch)).True()
	})

	t.Run("rejects a duplicate of an active task", func(t *testing.T) {
		uc, _ := newUseCases(t)
		tenant, owner := seedTenantUser(t, uc, types.RoleEmployee)

		_, err := uc.Task.CreateTask(ctx, tenant.ID, owner.ID, "Same", types.PriorityLow, "same", types.TaskStatusPending)
		gt.NoError(t, err).Required()

		_, err = uc.Task.CreateTask(ctx, tenant.ID, owner.ID, "Same", types.PriorityHigh, "same", types.TaskStatusInProgress)
		gt.Error(t, err)
		gt.Bool(t, errors.Is(err, usecase.ErrDuplicateTask)).True()
	})

	t.Run("concurrent duplicate creation yields one task", func(t *testing.T) {
		uc, repo := newUseCases(t)
		tenant, owner := seedTenantUser(t, uc, types.RoleEmployee)

		const writers = 8
		var wg sync.WaitGroup
		errs := make([]error, writers)
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = uc.Task.CreateTask(ctx, tenant.ID, owner.ID, "Contended", types.PriorityMedium, "same tuple", types.TaskStatusPending)
			}(i)
		}
		wg.Wait()

		succeeded := 0
		for _, err := range errs {
			if err == nil {
				succeeded++
				continue
			}
			gt.Bool(t, errors.Is(err, usecase.ErrDuplicateTask)).True()
		}
		gt.Value(t, succeeded).Equal(1)

		tasks, err := repo.Task().ListByTenant(ctx, tenant.ID)
		gt.NoError(t, err).Required()
		gt.Array(t, tasks).Length(1)
	})
}

func TestUpdateTask(t *testing.T) {
	ctx := context.Background()

	t.Run("writes one trail entry per changed field", func(t *testing.T) {
		uc, _ := newUseCases(t)
		tenant, owner := seedTenantUser(t, uc, types.RoleEmployee)

		taskID, err := uc.Task.CreateTask(ctx, tenant.ID, owner.ID, "Draft", types.PriorityLow, "first draft", types.TaskStatusPending)
		gt.NoError(t, err).Required()

		err = uc.Task.UpdateTask(ctx, taskID, owner.ID, model.TaskPatch{
			Title:    strPtr("Final"),
			Priority: priorityPtr(types.PriorityHigh),
			Status:   statusPtr(types.TaskStatusInProgress),
		})
		gt.NoError(t, err).Required()

		entries, err := uc.Audit.Trail(ctx, taskID)
		gt.NoError(t, err).Required()
		gt.Array(t, entries).Length(3)
		for _, entry := range entries {
			gt.Value(t, entry.ChangedBy).Equal(owner.ID)
		}
	})

	t.Run("no-op patch leaves task and trail untouched", func(t *testing.T) {
		uc, repo := newUseCases(t)
		tenant, owner := seedTenantUser(t, uc, types.RoleEmployee)

		taskID, err := uc.Task.CreateTask(ctx, tenant.ID, owner.ID, "Stable", types.PriorityMedium, "unchanging", types.TaskStatusPending)
		gt.NoError(t, err).Required()
		before, err := repo.Task().Get(ctx, taskID)
		gt.NoError(t, err).Required()

		err = uc.Task.UpdateTask(ctx, taskID, owner.ID, model.TaskPatch{
			Title:  strPtr("Stable"),
			Status: statusPtr(types.TaskStatusPending),
		})
		gt.NoError(t, err).Required()

		after, err := repo.Task().Get(ctx, taskID)
		gt.NoError(t, err).Required()
		gt.Bool(t, after.UpdatedAt.Equal(before.UpdatedAt)).True()

		entries, err := uc.Audit.Trail(ctx, taskID)
		gt.NoError(t, err).Required()
		gt.Array(t, entries).Length(0)
	})

	t.Run("description change yields a generic note", func(t *testing.T) {
		uc, _ := newUseCases(t)
		tenant, owner := seedTenantUser(t, uc, types.RoleEmployee)

		taskID, err := uc.Task.CreateTask(ctx, tenant.ID, owner.ID, "Sensitive", types.PriorityLow, "old secret", types.TaskStatusPending)
		gt.NoError(t, err).Required()

		err = uc.Task.UpdateTask(ctx, taskID, owner.ID, model.TaskPatch{Description: strPtr("new secret")})
		gt.NoError(t, err).Required()

		entries, err := uc.Audit.Trail(ctx, taskID)
		gt.NoError(t, err).Required()
		gt.Array(t, entries).Length(1)
		gt.Value(t, entries[0].Description).Equal("description updated")
	})

	t.Run("rejects invalid enum in patch", func(t *testing.T) {
		uc, _ := newUseCases(t)
		tenant, owner := seedTenantUser(t, uc, types.RoleEmployee)

		taskID, err := uc.Task.CreateTask(ctx, tenant.ID, owner.ID, "Enum check", types.PriorityLow, "", types.TaskStatusPending)
		gt.NoError(t, err).Required()

		bad := types.TaskStatus("DONE")
		err = uc.Task.UpdateTask(ctx, taskID, owner.ID, model.TaskPatch{Status: &bad})
		gt.Error(t, err)
		gt.Bool(t, errors.Is(err, usecase.ErrInvalidFieldValue)).True()
	})

	t.Run("rejects unknown task", func(t *testing.T) {
		uc, _ := newUseCases(t)
		_, owner := seedTenantUser(t, uc, types.RoleEmployee)

		err := uc.Task.UpdateTask(ctx, types.NewTaskID(), owner.ID, model.TaskPatch{Title: strPtr("ghost")})
		gt.Error(t, err)
		gt.Bool(t, errors.Is(err, usecase.ErrTaskNotFound)).True()
	})

	t.Run("rejects actor from another tenant", func(t *testing.T) {
		uc, _ := newUseCases(t)
		tenantA, ownerA := seedTenantUser(t, uc, types.RoleEmployee)
		_, ownerB := seedTenantUser(t, uc, types.RoleEmployee)

		taskID, err := uc.Task.CreateTask(ctx, tenantA.ID, ownerA.ID, "Fenced", types.PriorityLow, "", types.TaskStatusPending)
		gt.NoError(t, err).Required()

		err = uc.Task.UpdateTask(ctx, taskID, ownerB.ID, model.TaskPatch{Title: strPtr("intruded")})
		gt.Error(t, err)
		gt.Bool(t, errors.Is(err, usecase.ErrTenantMismatch)).True()
	})
}

func TestDeleteTask(t *testing.T) {
	ctx := context.Background()

	t.Run("removes task, grants and trail", func(t *testing.T) {
		uc, repo := newUseCases(t)
		tenant, owner := seedTenantUser(t, uc, types.RoleEmployee)

		grantee, err := uc.Admin.CreateUser(ctx, tenant.ID, "", "grantee", types.RoleEmployee)
		gt.NoError(t, err).Required()

		taskID, err := uc.Task.CreateTask(ctx, tenant.ID, owner.ID, "Short-lived", types.PriorityLow, "", types.TaskStatusPending)
		gt.NoError(t, err).Required()
		gt.NoError(t, uc.Task.ShareTask(ctx, taskID, grantee.ID))
		gt.NoError(t, uc.Task.UpdateTask(ctx, taskID, owner.ID, model.TaskPatch{Status: statusPtr(types.TaskStatusCompleted)}))

		gt.NoError(t, uc.Task.DeleteTask(ctx, taskID, owner.ID))

		_, err = repo.Task().Get(ctx, taskID)
		gt.Bool(t, errors.Is(err, interfaces.ErrNotFound)).True()

		entries, err := repo.History().ListByTask(ctx, taskID)
		gt.NoError(t, err).Required()
		gt.Array(t, entries).Length(0)

		grants, err := repo.Grant().ListByTask(ctx, taskID)
		gt.NoError(t, err).Required()
		gt.Array(t, grants).Length(0)
	})

	t.Run("rejects unknown task", func(t *testing.T) {
		uc, _ := newUseCases(t)
		_, owner := seedTenantUser(t, uc, types.RoleEmployee)

		err := uc.Task.DeleteTask(ctx, types.NewTaskID(), owner.ID)
		gt.Error(t, err)
		gt.Bool(t, errors.Is(err, usecase.ErrTaskNotFound)).True()
	})
}

func TestShareTask(t *testing.T) {
	ctx := context.Background()

	t.Run("grants access and records the share", func(t *testing.T) {
		uc, repo := newUseCases(t)
		tenant, owner := seedTenantUser(t, uc, types.RoleEmployee)

		grantee, err := uc.Admin.CreateUser(ctx, tenant.ID, "", "grantee", types.RoleEmployee)
		gt.NoError(t, err).Required()

		taskID, err := uc.Task.CreateTask(ctx, tenant.ID, owner.ID, "Shared work", types.PriorityLow, "", types.TaskStatusPending)
		gt.NoError(t, err).Required()

		gt.NoError(t, uc.Task.ShareTask(ctx, taskID, grantee.ID))

		grants, err := repo.Grant().ListByTask(ctx, taskID)
		gt.NoError(t, err).Required()
		gt.Array(t, grants).Length(1)
		gt.Value(t, grants[0].SharedWith).Equal(grantee.ID)

		entries, err := uc.Audit.Trail(ctx, taskID)
		gt.NoError(t, err).Required()
		gt.Array(t, entries).Length(1)
		gt.Value(t, entries[0].ChangedBy).Equal(grantee.ID)
	})

	t.Run("repeated share is a silent no-op", func(t *testing.T) {
		uc, repo := newUseCases(t)
		tenant, owner := seedTenantUser(t, uc, types.RoleEmployee)

		grantee, err := uc.Admin.CreateUser(ctx, tenant.ID, "", "grantee", types.RoleEmployee)
		gt.NoError(t, err).Required()

		taskID, err := uc.Task.CreateTask(ctx, tenant.ID, owner.ID, "Reshared work", types.PriorityLow, "", types.TaskStatusPending)
		gt.NoError(t, err).Required()

		gt.NoError(t, uc.Task.ShareTask(ctx, taskID, grantee.ID))
		gt.NoError(t, uc.Task.ShareTask(ctx, taskID, grantee.ID))

		grants, err := repo.Grant().ListByTask(ctx, taskID)
		gt.NoError(t, err).Required()
		gt.Array(t, grants).Length(1)

		entries, err := uc.Audit.Trail(ctx, taskID)
		gt.NoError(t, err).Required()
		gt.Array(t, entries).Length(1)
	})

	t.Run("rejects grantee from another tenant", func(t *testing.T) {
		uc, _ := newUseCases(t)
		tenantA, ownerA := seedTenantUser(t, uc, types.RoleEmployee)
		_, outsider := seedTenantUser(t, uc, types.RoleEmployee)

		taskID, err := uc.Task.CreateTask(ctx, tenantA.ID, ownerA.ID, "Internal", types.PriorityLow, "", types.TaskStatusPending)
		gt.NoError(t, err).Required()

		err = uc.Task.ShareTask(ctx, taskID, outsider.ID)
		gt.Error(t, err)
		gt.Bool(t, errors.Is(err, usecase.ErrTenantMismatch)).True()
	})

	t.Run("rejects unknown grantee", func(t *testing.T) {
		uc, _ := newUseCases(t)
		tenant, owner := seedTenantUser(t, uc, types.RoleEmployee)

		taskID, err := uc.Task.CreateTask(ctx, tenant.ID, owner.ID, "Lonely", types.PriorityLow, "", types.TaskStatusPending)
		gt.NoError(t, err).Required()

		err = uc.Task.ShareTask(ctx, taskID, types.NewUserID())
		gt.Error(t, err)
		gt.Bool(t, errors.Is(err, usecase.ErrUserNotFound)).True()
	})
}
