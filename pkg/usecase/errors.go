package usecase

import "errors"

// Sentinel errors for use case layer
var (
	// Not found errors
	ErrTaskNotFound   = errors.New("task not found")
	ErrUserNotFound   = errors.New("user not found")
	ErrTenantNotFound = errors.New("tenant not found")

	// Validation errors
	ErrInvalidFieldValue = errors.New("invalid field value")
	ErrTenantMismatch    = errors.New("user does not belong to the task's tenant")

	// Write contention errors
	ErrDuplicateTask          = errors.New("duplicate task")
	ErrConcurrentModification = errors.New("task was modified concurrently")

	// Operational errors
	ErrArchivalFailure  = errors.New("archival run failed")
	ErrOperationTimeout = errors.New("operation timed out")
)

// Context keys for error values
const (
	TenantIDKey = "tenant_id"
	UserIDKey   = "user_id"
	TaskIDKey   = "task_id"
)
