package usecase

import (
	"context"
	"errors"
	"sort"

	"github.com/m-mizutani/goerr/v2"
	"github.com/opsmith-lab/taskmill/pkg/domain/interfaces"
	"github.com/opsmith-lab/taskmill/pkg/domain/types"
)

// ManagerStatRow is one aggregation bucket of the manager statistics report:
// the number of a user's tasks in one status, grouped by creation month.
type ManagerStatRow struct {
	Employee types.UserID     `json:"employee"`
	Status   types.TaskStatus `json:"status"`
	Month    string           `json:"month"`
	Count    int              `json:"count"`
}

// ActivityReport summarizes a tenant's current activity.
type ActivityReport struct {
	TotalUsers     int `json:"total_users"`
	TotalTasks     int `json:"total_tasks"`
	CompletedTasks int `json:"completed_tasks"`
	PendingTasks   int `json:"pending_tasks"`
}

// ReportUseCase produces read-only aggregations. Each report reads one
// consistent task snapshot; reports never write.
type ReportUseCase struct {
	repo interfaces.Repository
}

func NewReportUseCase(repo interfaces.Repository) *ReportUseCase {
	return &ReportUseCase{repo: repo}
}

func (uc *ReportUseCase) tenantExists(ctx context.Context, tenantID types.TenantID) error {
	if _, err := uc.repo.Tenant().Get(ctx, tenantID); err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return goerr.Wrap(ErrTenantNotFound, "tenant not found", goerr.V(TenantIDKey, tenantID))
		}
		return goerr.Wrap(err, "failed to get tenant", goerr.V(TenantIDKey, tenantID))
	}
	return nil
}

// GetManagerStatistics aggregates the tenant's active tasks per (employee,
// status, creation month). Rows are ordered by month ascending, then count
// descending; remaining ties break on employee and status so the output is
// stable. A tenant without tasks yields an empty slice.
func (uc *ReportUseCase) GetManagerStatistics(ctx context.Context, tenantID types.TenantID) ([]ManagerStatRow, error) {
	if err := uc.tenantExists(ctx, tenantID); err != nil {
		return nil, err
	}

	tasks, err := uc.repo.Task().ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list tasks", goerr.V(TenantIDKey, tenantID))
	}

	type bucket struct {
		employee types.UserID
		status   types.TaskStatus
		month    string
	}
	counts := make(map[bucket]int, len(tasks))
	for _, task := range tasks {
		counts[bucket{
			employee: task.OwnerID,
			status:   task.Status,
			month:    task.CreatedAt.Format("2006-01"),
		}]++
	}

	rows := make([]ManagerStatRow, 0, len(counts))
	for b, n := range counts {
		rows = append(rows, ManagerStatRow{
			Employee: b.employee,
			Status:   b.status,
			Month:    b.month,
			Count:    n,
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Month != rows[j].Month {
			return rows[i].Month < rows[j].Month
		}
		if rows[i].Count != rows[j].Count {
			return rows[i].Count > rows[j].Count
		}
		if rows[i].Employee != rows[j].Employee {
			return rows[i].Employee < rows[j].Employee
		}
		return rows[i].Status < rows[j].Status
	})
	return rows, nil
}

// GetTenantActivityReport counts the tenant's users and active tasks. An
// empty tenant yields all zeroes, not an error.
func (uc *ReportUseCase) GetTenantActivityReport(ctx context.Context, tenantID types.TenantID) (*ActivityReport, error) {
	if err := uc.tenantExists(ctx, tenantID); err != nil {
		return nil, err
	}

	users, err := uc.repo.User().ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list users", goerr.V(TenantIDKey, tenantID))
	}
	tasks, err := uc.repo.Task().ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list tasks", goerr.V(TenantIDKey, tenantID))
	}

	report := &ActivityReport{
		TotalUsers: len(users),
		TotalTasks: len(tasks),
	}
	for _, task := range tasks {
		switch task.Status {
		case types.TaskStatusCompleted:
			report.CompletedTasks++
		case types.TaskStatusPending:
			report.PendingTasks++
		}
	}
	return report, nil
}
