package types

import (
	"regexp"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
)

// idPattern constrains externally supplied identifiers (e.g. bootstrap
// config). Generated IDs are UUIDs and always satisfy it.
var idPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

// TenantID identifies a tenant, the root of isolation.
type TenantID string

func NewTenantID() TenantID {
	return TenantID(uuid.New().String())
}

func (x TenantID) String() string { return string(x) }

func (x TenantID) Validate() error {
	if x == "" {
		return goerr.New("tenant ID cannot be empty")
	}
	if !idPattern.MatchString(string(x)) {
		return goerr.New("tenant ID must be lowercase alphanumeric with hyphens", goerr.V("id", x))
	}
	return nil
}

// UserID identifies a user within a tenant.
type UserID string

func NewUserID() UserID {
	return UserID(uuid.New().String())
}

func (x UserID) String() string { return string(x) }

func (x UserID) Validate() error {
	if x == "" {
		return goerr.New("user ID cannot be empty")
	}
	if !idPattern.MatchString(string(x)) {
		return goerr.New("user ID must be lowercase alphanumeric with hyphens", goerr.V("id", x))
	}
	return nil
}

// TaskID identifies a task.
type TaskID string

func NewTaskID() TaskID {
	return TaskID(uuid.New().String())
}

func (x TaskID) String() string { return string(x) }

func (x TaskID) Validate() error {
	if x == "" {
		return goerr.New("task ID cannot be empty")
	}
	return nil
}

// HistoryID identifies an audit trail entry.
type HistoryID string

func NewHistoryID() HistoryID {
	return HistoryID(uuid.New().String())
}

func (x HistoryID) String() string { return string(x) }

// GrantID identifies a permission grant.
type GrantID string

func NewGrantID() GrantID {
	return GrantID(uuid.New().String())
}

func (x GrantID) String() string { return string(x) }

// ArchiveID identifies an archived task snapshot. Archived tasks live in
// their own identity space, independent of the task they were frozen from.
type ArchiveID string

func NewArchiveID() ArchiveID {
	return ArchiveID(uuid.New().String())
}

func (x ArchiveID) String() string { return string(x) }
