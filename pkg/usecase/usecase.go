package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/opsmith-lab/taskmill/pkg/domain/interfaces"
)

// DefaultOperationTimeout bounds every mutating use case call.
const DefaultOperationTimeout = 5 * time.Second

type UseCases struct {
	repo      interfaces.Repository
	opTimeout time.Duration

	Admin      *AdminUseCase
	Task       *TaskUseCase
	Visibility *VisibilityUseCase
	Audit      *AuditUseCase
	Archival   *ArchivalUseCase
	Report     *ReportUseCase
}

type Option func(*UseCases)

// WithOperationTimeout overrides the per-mutation deadline.
func WithOperationTimeout(d time.Duration) Option {
	return func(uc *UseCases) {
		uc.opTimeout = d
	}
}

func New(repo interfaces.Repository, opts ...Option) *UseCases {
	uc := &UseCases{
		repo:      repo,
		opTimeout: DefaultOperationTimeout,
	}

	for _, opt := range opts {
		opt(uc)
	}

	uc.Admin = NewAdminUseCase(repo)
	uc.Audit = NewAuditUseCase(repo)
	uc.Task = NewTaskUseCase(repo, uc.Audit, uc.opTimeout)
	uc.Visibility = NewVisibilityUseCase(repo)
	uc.Archival = NewArchivalUseCase(repo, uc.opTimeout)
	uc.Report = NewReportUseCase(repo)

	return uc
}

// mutationContext applies the bounded deadline shared by all mutating
// operations.
func mutationContext(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, d)
}

// timedOut distinguishes our own deadline expiry from other failures so the
// caller sees ErrOperationTimeout rather than a raw context error.
func timedOut(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}
