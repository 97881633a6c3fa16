package usecase

import (
	"context"
	"errors"

	"github.com/m-mizutani/goerr/v2"
	"github.com/opsmith-lab/taskmill/pkg/domain/interfaces"
	"github.com/opsmith-lab/taskmill/pkg/domain/model"
	"github.com/opsmith-lab/taskmill/pkg/domain/types"
)

// VisibilityUseCase resolves which active tasks a user may see. Managers see
// every task of their own tenant; employees see what they own plus what was
// shared with them. Visibility never crosses tenants.
type VisibilityUseCase struct {
	repo interfaces.Repository
}

func NewVisibilityUseCase(repo interfaces.Repository) *VisibilityUseCase {
	return &VisibilityUseCase{repo: repo}
}

func (uc *VisibilityUseCase) GetVisibleTasks(ctx context.Context, userID types.UserID) ([]*model.Task, error) {
	user, err := uc.repo.User().Get(ctx, userID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil, goerr.Wrap(ErrUserNotFound, "user not found", goerr.V(UserIDKey, userID))
		}
		return nil, goerr.Wrap(err, "failed to get user", goerr.V(UserIDKey, userID))
	}

	var tasks []*model.Task
	if user.IsManager() {
		tasks, err = uc.repo.Task().ListByTenant(ctx, user.TenantID)
	} else {
		tasks, err = uc.repo.Task().ListOwnedOrGranted(ctx, user.TenantID, userID)
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list visible tasks", goerr.V(UserIDKey, userID))
	}
	return tasks, nil
}
