package interfaces

// Repository defines the interface for data persistence. Each sub-repository
// method documented as atomic must apply all of its effects in one unit:
// either everything commits or nothing does. Read methods return deep copies
// observed at a single consistent point in time and never block writers.
type Repository interface {
	Tenant() TenantRepository
	User() UserRepository
	Task() TaskRepository
	History() HistoryRepository
	Grant() GrantRepository
	Archive() ArchiveRepository

	Close() error
}
