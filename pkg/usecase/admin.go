package usecase

import (
	"context"
	"errors"

	"github.com/m-mizutani/goerr/v2"
	"github.com/opsmith-lab/taskmill/pkg/domain/interfaces"
	"github.com/opsmith-lab/taskmill/pkg/domain/model"
	"github.com/opsmith-lab/taskmill/pkg/domain/types"
)

// AdminUseCase bootstraps tenants and users. Explicit IDs (e.g. from a
// bootstrap file) are allowed; empty IDs get generated ones.
type AdminUseCase struct {
	repo interfaces.Repository
}

func NewAdminUseCase(repo interfaces.Repository) *AdminUseCase {
	return &AdminUseCase{repo: repo}
}

func (uc *AdminUseCase) CreateTenant(ctx context.Context, id types.TenantID, name string) (*model.Tenant, error) {
	if name == "" {
		return nil, goerr.Wrap(ErrInvalidFieldValue, "tenant name is required")
	}
	if id != "" {
		if err := id.Validate(); err != nil {
			return nil, goerr.Wrap(ErrInvalidFieldValue, err.Error())
		}
	}

	tenant, err := uc.repo.Tenant().Create(ctx, &model.Tenant{ID: id, Name: name})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create tenant", goerr.V(TenantIDKey, id))
	}
	return tenant, nil
}

func (uc *AdminUseCase) CreateUser(ctx context.Context, tenantID types.TenantID, id types.UserID, name string, role types.Role) (*model.User, error) {
	if name == "" {
		return nil, goerr.Wrap(ErrInvalidFieldValue, "user name is required")
	}
	if !role.IsValid() {
		return nil, goerr.Wrap(ErrInvalidFieldValue, "invalid role", goerr.V("role", role))
	}
	if id != "" {
		if err := id.Validate(); err != nil {
			return nil, goerr.Wrap(ErrInvalidFieldValue, err.Error())
		}
	}

	user, err := uc.repo.User().Create(ctx, &model.User{
		ID:       id,
		TenantID: tenantID,
		Name:     name,
		Role:     role,
	})
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil, goerr.Wrap(ErrTenantNotFound, "tenant not found", goerr.V(TenantIDKey, tenantID))
		}
		return nil, goerr.Wrap(err, "failed to create user", goerr.V(UserIDKey, id))
	}
	return user, nil
}

// GetUser resolves a user, mapping absence to ErrUserNotFound.
func (uc *AdminUseCase) GetUser(ctx context.Context, id types.UserID) (*model.User, error) {
	user, err := uc.repo.User().Get(ctx, id)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil, goerr.Wrap(ErrUserNotFound, "user not found", goerr.V(UserIDKey, id))
		}
		return nil, goerr.Wrap(err, "failed to get user", goerr.V(UserIDKey, id))
	}
	return user, nil
}
