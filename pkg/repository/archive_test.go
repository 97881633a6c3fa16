package repository_test

import (
	"context"
	"errors"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/opsmith-lab/taskmill/pkg/domain/interfaces"
	"github.com/opsmith-lab/taskmill/pkg/domain/model"
	"github.com/opsmith-lab/taskmill/pkg/domain/types"
	"github.com/opsmith-lab/taskmill/pkg/repository/memory"
)

func runArchiveRepositoryTest(t *testing.T, newRepo func(t *testing.T) interfaces.Repository) {
	t.Helper()

	t.Run("MoveTasks freezes field-identical snapshots", func(t *testing.T) {
		repo := newRepo(t)
		tenant, user := seedTenantAndUser(t, repo)
		ctx := context.Background()

		task := seedTask(t, repo, tenant, user, "Old task")

		moved, err := repo.Archive().MoveTasks(ctx, []types.TaskID{task.ID})
		gt.NoError(t, err).Required()
		gt.Value(t, moved).Equal(1)

		archived, err := repo.Archive().ListByTenant(ctx, tenant.ID)
		gt.NoError(t, err).Required()
		gt.Array(t, archived).Length(1)

		snapshot := archived[0]
		gt.Value(t, snapshot.TaskID).Equal(task.ID)
		gt.Value(t, snapshot.TenantID).Equal(task.TenantID)
		gt.Value(t, snapshot.OwnerID).Equal(task.OwnerID)
		gt.Value(t, snapshot.Title).Equal(task.Title)
		gt.Value(t, snapshot.Priority).Equal(task.Priority)
		gt.Value(t, snapshot.Description).Equal(task.Description)
		gt.Value(t, snapshot.Status).Equal(task.Status)
		gt.Bool(t, snapshot.CreatedAt.Equal(task.CreatedAt)).True()
		gt.Bool(t, snapshot.UpdatedAt.Equal(task.UpdatedAt)).True()
		gt.Bool(t, snapshot.ArchivedAt.IsZero()).False()

		_, err = repo.Task().Get(ctx, task.ID)
		gt.Bool(t, errors.Is(err, interfaces.ErrNotFound)).True()
	})

	t.Run("MoveTasks removes history and grants", func(t *testing.T) {
		repo := newRepo(t)
		tenant, user := seedTenantAndUser(t, repo)
		ctx := context.Background()

		task := seedTask(t, repo, tenant, user, "Documented task")

		_, err := repo.History().Append(ctx, &model.HistoryEntry{
			TaskID:      task.ID,
			ChangedBy:   user.ID,
			Description: "status changed from PENDING to IN_PROGRESS",
		})
		gt.NoError(t, err).Required()

		grantee, err := repo.User().Create(ctx, &model.User{
			TenantID: tenant.ID,
			Name:     "grantee",
			Role:     types.RoleEmployee,
		})
		gt.NoError(t, err).Required()
		_, err = repo.Grant().Put(ctx, &model.PermissionGrant{TaskID: task.ID, SharedWith: grantee.ID}, nil)
		gt.NoError(t, err).Required()

		moved, err := repo.Archive().MoveTasks(ctx, []types.TaskID{task.ID})
		gt.NoError(t, err).Required()
		gt.Value(t, moved).Equal(1)

		entries, err := repo.History().ListByTask(ctx, task.ID)
		gt.NoError(t, err).Required()
		gt.Array(t, entries).Length(0)

		grants, err := repo.Grant().ListByTask(ctx, task.ID)
		gt.NoError(t, err).Required()
		gt.Array(t, grants).Length(0)
	})

	t.Run("MoveTasks skips tasks deleted in the meantime", func(t *testing.T) {
		repo := newRepo(t)
		tenant, user := seedTenantAndUser(t, repo)
		ctx := context.Background()

		kept := seedTask(t, repo, tenant, user, "Kept task")
		gone := seedTask(t, repo, tenant, user, "Gone task")
		gt.NoError(t, repo.Task().DeleteCascade(ctx, gone.ID))

		moved, err := repo.Archive().MoveTasks(ctx, []types.TaskID{kept.ID, gone.ID})
		gt.NoError(t, err).Required()
		gt.Value(t, moved).Equal(1)

		archived, err := repo.Archive().ListByTenant(ctx, tenant.ID)
		gt.NoError(t, err).Required()
		gt.Array(t, archived).Length(1)
		gt.Value(t, archived[0].TaskID).Equal(kept.ID)
	})

	t.Run("MoveTasks with no ids is a no-op", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		moved, err := repo.Archive().MoveTasks(ctx, nil)
		gt.NoError(t, err).Required()
		gt.Value(t, moved).Equal(0)
	})

	t.Run("Get returns the snapshot", func(t *testing.T) {
		repo := newRepo(t)
		tenant, user := seedTenantAndUser(t, repo)
		ctx := context.Background()

		task := seedTask(t, repo, tenant, user, "Lookup task")
		_, err := repo.Archive().MoveTasks(ctx, []types.TaskID{task.ID})
		gt.NoError(t, err).Required()

		archived, err := repo.Archive().ListByTenant(ctx, tenant.ID)
		gt.NoError(t, err).Required()
		gt.Array(t, archived).Length(1)

		snapshot, err := repo.Archive().Get(ctx, archived[0].ID)
		gt.NoError(t, err).Required()
		gt.Value(t, snapshot.Title).Equal("Lookup task")
	})

	t.Run("Get missing snapshot fails with ErrNotFound", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		_, err := repo.Archive().Get(ctx, types.NewArchiveID())
		gt.Error(t, err)
		gt.Bool(t, errors.Is(err, interfaces.ErrNotFound)).True()
	})

	t.Run("Archived tuple can be recreated as an active task", func(t *testing.T) {
		repo := newRepo(t)
		tenant, user := seedTenantAndUser(t, repo)
		ctx := context.Background()

		task := seedTask(t, repo, tenant, user, "Revived task")
		_, err := repo.Archive().MoveTasks(ctx, []types.TaskID{task.ID})
		gt.NoError(t, err).Required()

		_, err = repo.Task().Create(ctx, &model.Task{
			TenantID:    tenant.ID,
			OwnerID:     user.ID,
			Title:       "Revived task",
			Priority:    types.PriorityMedium,
			Description: "seeded task",
			Status:      types.TaskStatusPending,
		})
		gt.NoError(t, err)
	})
}

func TestMemoryArchiveRepository(t *testing.T) {
	runArchiveRepositoryTest(t, func(t *testing.T) interfaces.Repository {
		return memory.New()
	})
}

func TestFirestoreArchiveRepository(t *testing.T) {
	runArchiveRepositoryTest(t, newFirestoreRepository)
}
