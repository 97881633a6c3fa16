package config

import (
	"context"
	"errors"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/opsmith-lab/taskmill/pkg/domain/interfaces"
	"github.com/opsmith-lab/taskmill/pkg/domain/types"
	"github.com/opsmith-lab/taskmill/pkg/usecase"
	"github.com/opsmith-lab/taskmill/pkg/utils/logging"
	"github.com/pelletier/go-toml/v2"
)

// Bootstrap declares tenants and users to provision at startup
type Bootstrap struct {
	Tenants []TenantEntry `toml:"tenant"`
	Users   []UserEntry   `toml:"user"`
}

// TenantEntry represents a tenant declaration
type TenantEntry struct {
	ID   string `toml:"id"`
	Name string `toml:"name"`
}

// Validate checks if the TenantEntry is valid
func (t *TenantEntry) Validate() error {
	if err := types.TenantID(t.ID).Validate(); err != nil {
		return goerr.Wrap(err, "invalid tenant ID")
	}
	if t.Name == "" {
		return goerr.New("tenant name is required", goerr.V("id", t.ID))
	}
	return nil
}

// UserEntry represents a user declaration
type UserEntry struct {
	ID     string `toml:"id"`
	Tenant string `toml:"tenant"`
	Name   string `toml:"name"`
	Role   string `toml:"role"`
}

// Validate checks if the UserEntry is valid
func (u *UserEntry) Validate() error {
	if err := types.UserID(u.ID).Validate(); err != nil {
		return goerr.Wrap(err, "invalid user ID")
	}
	if u.Name == "" {
		return goerr.New("user name is required", goerr.V("id", u.ID))
	}
	if _, err := types.ParseRole(u.Role); err != nil {
		return goerr.Wrap(err, "invalid user role", goerr.V("id", u.ID))
	}
	return nil
}

// Validate checks if the Bootstrap is valid
func (b *Bootstrap) Validate() error {
	tenantIDs := make(map[string]bool)
	for _, tenant := range b.Tenants {
		if err := tenant.Validate(); err != nil {
			return goerr.Wrap(err, "invalid tenant entry")
		}
		if tenantIDs[tenant.ID] {
			return goerr.New("duplicate tenant ID", goerr.V("id", tenant.ID))
		}
		tenantIDs[tenant.ID] = true
	}

	userIDs := make(map[string]bool)
	for _, user := range b.Users {
		if err := user.Validate(); err != nil {
			return goerr.Wrap(err, "invalid user entry")
		}
		if userIDs[user.ID] {
			return goerr.New("duplicate user ID", goerr.V("id", user.ID))
		}
		userIDs[user.ID] = true
		if !tenantIDs[user.Tenant] {
			return goerr.New("user references unknown tenant",
				goerr.V("id", user.ID),
				goerr.V("tenant", user.Tenant))
		}
	}

	return nil
}

// LoadBootstrap loads a bootstrap declaration from a TOML file
func LoadBootstrap(path string) (*Bootstrap, error) {
	// #nosec G304 - path is expected to be provided by CLI argument
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read bootstrap file", goerr.V("path", path))
	}

	var bootstrap Bootstrap
	if err := toml.Unmarshal(data, &bootstrap); err != nil {
		return nil, goerr.Wrap(err, "failed to parse TOML bootstrap", goerr.V("path", path))
	}

	if err := bootstrap.Validate(); err != nil {
		return nil, goerr.Wrap(err, "bootstrap validation failed", goerr.V("path", path))
	}

	return &bootstrap, nil
}

// Apply provisions the declared tenants and users. Entries whose IDs already
// exist are left as they are, so the same file can be applied on every start.
func (b *Bootstrap) Apply(ctx context.Context, uc *usecase.UseCases) error {
	logger := logging.From(ctx)

	for _, tenant := range b.Tenants {
		_, err := uc.Admin.CreateTenant(ctx, types.TenantID(tenant.ID), tenant.Name)
		if err != nil {
			if errors.Is(err, interfaces.ErrDuplicate) {
				logger.Debug("tenant already exists, skipping", "id", tenant.ID)
				continue
			}
			return goerr.Wrap(err, "failed to bootstrap tenant", goerr.V("id", tenant.ID))
		}
		logger.Info("bootstrapped tenant", "id", tenant.ID, "name", tenant.Name)
	}

	for _, user := range b.Users {
		role, err := types.ParseRole(user.Role)
		if err != nil {
			return goerr.Wrap(err, "invalid role", goerr.V("id", user.ID))
		}
		_, err = uc.Admin.CreateUser(ctx, types.TenantID(user.Tenant), types.UserID(user.ID), user.Name, role)
		if err != nil {
			if errors.Is(err, interfaces.ErrDuplicate) {
				logger.Debug("user already exists, skipping", "id", user.ID)
				continue
			}
			return goerr.Wrap(err, "failed to bootstrap user", goerr.V("id", user.ID))
		}
		logger.Info("bootstrapped user", "id", user.ID, "tenant", user.Tenant, "role", user.Role)
	}

	return nil
}
