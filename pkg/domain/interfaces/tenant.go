package interfaces

import (
	"context"

	"github.com/opsmith-lab/taskmill/pkg/domain/model"
	"github.com/opsmith-lab/taskmill/pkg/domain/types"
)

// TenantRepository defines the interface for Tenant data access
type TenantRepository interface {
	// Create creates a new tenant. An empty ID is replaced with a generated
	// one. Returns ErrDuplicate if the ID is already taken.
	Create(ctx context.Context, tenant *model.Tenant) (*model.Tenant, error)

	// Get retrieves a tenant by ID
	Get(ctx context.Context, id types.TenantID) (*model.Tenant, error)

	// List retrieves all tenants
	List(ctx context.Context) ([]*model.Tenant, error)
}

// UserRepository defines the interface for User data access
type UserRepository interface {
	// Create creates a new user. An empty ID is replaced with a generated
	// one. Returns ErrNotFound if the tenant does not exist and ErrDuplicate
	// if the ID is already taken.
	Create(ctx context.Context, user *model.User) (*model.User, error)

	// Get retrieves a user by ID
	Get(ctx context.Context, id types.UserID) (*model.User, error)

	// ListByTenant retrieves all users of a tenant
	ListByTenant(ctx context.Context, tenantID types.TenantID) ([]*model.User, error)
}
