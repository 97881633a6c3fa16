package memory

import (
	"context"
	"sort"

	"github.com/m-mizutani/goerr/v2"
	"github.com/opsmith-lab/taskmill/pkg/domain/model"
	"github.com/opsmith-lab/taskmill/pkg/domain/types"
)

type tenantRepository struct {
	s *store
}

func (r *tenantRepository) Create(ctx context.Context, tenant *model.Tenant) (*model.Tenant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	created := copyTenant(tenant)
	if created.ID == "" {
		created.ID = types.NewTenantID()
	}
	if _, exists := r.s.tenants[created.ID]; exists {
		return nil, goerr.Wrap(ErrDuplicate, "tenant already exists", goerr.V("id", created.ID))
	}
	created.CreatedAt = now()

	r.s.tenants[created.ID] = created
	return copyTenant(created), nil
}

func (r *tenantRepository) Get(ctx context.Context, id types.TenantID) (*model.Tenant, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	tenant, exists := r.s.tenants[id]
	if !exists {
		return nil, goerr.Wrap(ErrNotFound, "tenant not found", goerr.V("id", id))
	}
	return copyTenant(tenant), nil
}

func (r *tenantRepository) List(ctx context.Context) ([]*model.Tenant, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	result := make([]*model.Tenant, 0, len(r.s.tenants))
	for _, t := range r.s.tenants {
		result = append(result, copyTenant(t))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})
	return result, nil
}

type userRepository struct {
	s *store
}

func (r *userRepository) Create(ctx context.Context, user *model.User) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.tenants[user.TenantID]; !exists {
		return nil, goerr.Wrap(ErrNotFound, "tenant not found", goerr.V("tenantID", user.TenantID))
	}

	created := copyUser(user)
	if created.ID == "" {
		created.ID = types.NewUserID()
	}
	if _, exists := r.s.users[created.ID]; exists {
		return nil, goerr.Wrap(ErrDuplicate, "user already exists", goerr.V("id", created.ID))
	}
	created.CreatedAt = now()

	r.s.users[created.ID] = created
	return copyUser(created), nil
}

func (r *userRepository) Get(ctx context.Context, id types.UserID) (*model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	user, exists := r.s.users[id]
	if !exists {
		return nil, goerr.Wrap(ErrNotFound, "user not found", goerr.V("id", id))
	}
	return copyUser(user), nil
}

func (r *userRepository) ListByTenant(ctx context.Context, tenantID types.TenantID) ([]*model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	result := make([]*model.User, 0)
	for _, u := range r.s.users {
		if u.TenantID == tenantID {
			result = append(result, copyUser(u))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})
	return result, nil
}
