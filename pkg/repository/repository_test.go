package repository_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/opsmith-lab/taskmill/pkg/domain/interfaces"
	"github.com/opsmith-lab/taskmill/pkg/domain/model"
	"github.com/opsmith-lab/taskmill/pkg/domain/types"
	"github.com/opsmith-lab/taskmill/pkg/repository/firestore"
)

func newFirestoreRepository(t *testing.T) interfaces.Repository {
	t.Helper()

	projectID := os.Getenv("TEST_FIRESTORE_PROJECT_ID")
	if projectID == "" {
		t.Skip("TEST_FIRESTORE_PROJECT_ID not set")
	}

	databaseID := os.Getenv("TEST_FIRESTORE_DATABASE_ID")
	if databaseID == "" {
		t.Skip("TEST_FIRESTORE_DATABASE_ID not set")
	}

	ctx := context.Background()
	prefix := fmt.Sprintf("test_%d", time.Now().UnixNano())
	repo, err := firestore.New(ctx, projectID, databaseID, firestore.WithCollectionPrefix(prefix))
	gt.NoError(t, err).Required()
	t.Cleanup(func() {
		gt.NoError(t, repo.Close())
	})
	return repo
}

// seedTenantAndUser creates a tenant with one employee, shared scaffolding
// for the task-level suites.
func seedTenantAndUser(t *testing.T, repo interfaces.Repository) (*model.Tenant, *model.User) {
	t.Helper()
	ctx := context.Background()

	tenant, err := repo.Tenant().Create(ctx, &model.Tenant{Name: "Test Tenant"})
	gt.NoError(t, err).Required()

	user, err := repo.User().Create(ctx, &model.User{
		TenantID: tenant.ID,
		Name:     "test-user",
		Role:     types.RoleEmployee,
	})
	gt.NoError(t, err).Required()

	return tenant, user
}

func seedTask(t *testing.T, repo interfaces.Repository, tenant *model.Tenant, owner *model.User, title string) *model.Task {
	t.Helper()
	ctx := context.Background()

	task, err := repo.Task().Create(ctx, &model.Task{
		TenantID:    tenant.ID,
		OwnerID:     owner.ID,
		Title:       title,
		Priority:    types.PriorityMedium,
		Description: "seeded task",
		Status:      types.TaskStatusPending,
	})
	gt.NoError(t, err).Required()
	return task
}
