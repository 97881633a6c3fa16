package memory

import (
	"sync"
	"time"

	"github.com/opsmith-lab/taskmill/pkg/domain/interfaces"
	"github.com/opsmith-lab/taskmill/pkg/domain/model"
	"github.com/opsmith-lab/taskmill/pkg/domain/types"
)

// Store-level sentinels, shared with the firestore backend through the
// interfaces package.
var (
	ErrNotFound  = interfaces.ErrNotFound
	ErrDuplicate = interfaces.ErrDuplicate
	ErrConflict  = interfaces.ErrConflict
)

// store holds every relation behind a single lock. Atomic units span
// relations (task + history + grants + dedup index), so the critical
// section is store-wide rather than per-entity. Readers take the read lock
// and copy out, which gives them a consistent point-in-time view without
// blocking behind each other.
type store struct {
	mu sync.RWMutex

	tenants  map[types.TenantID]*model.Tenant
	users    map[types.UserID]*model.User
	tasks    map[types.TaskID]*model.Task
	dedup    map[string]types.TaskID
	history  map[types.TaskID][]*model.HistoryEntry
	seq      map[types.TaskID]int64
	grants   map[types.TaskID]map[types.UserID]*model.PermissionGrant
	archived map[types.ArchiveID]*model.ArchivedTask
}

func newStore() *store {
	return &store{
		tenants:  make(map[types.TenantID]*model.Tenant),
		users:    make(map[types.UserID]*model.User),
		tasks:    make(map[types.TaskID]*model.Task),
		dedup:    make(map[string]types.TaskID),
		history:  make(map[types.TaskID][]*model.HistoryEntry),
		seq:      make(map[types.TaskID]int64),
		grants:   make(map[types.TaskID]map[types.UserID]*model.PermissionGrant),
		archived: make(map[types.ArchiveID]*model.ArchivedTask),
	}
}

// now returns the current time truncated to microseconds, matching the
// precision the firestore backend can round-trip. Keeping both backends at
// the same precision lets the optimistic UpdatedAt comparison use Equal.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// appendEntryLocked assigns identity, sequence and a per-task monotonically
// non-decreasing ChangeDate, then appends. Caller must hold the write lock
// and have verified the task exists.
func (s *store) appendEntryLocked(e *model.HistoryEntry) *model.HistoryEntry {
	stored := copyEntry(e)
	if stored.ID == "" {
		stored.ID = types.NewHistoryID()
	}
	stored.ChangeDate = now()
	if prev := s.history[stored.TaskID]; len(prev) > 0 {
		if last := prev[len(prev)-1].ChangeDate; stored.ChangeDate.Before(last) {
			stored.ChangeDate = last
		}
	}
	s.seq[stored.TaskID]++
	stored.Seq = s.seq[stored.TaskID]
	s.history[stored.TaskID] = append(s.history[stored.TaskID], stored)
	return stored
}

// dropTaskLocked removes a task and all of its children. Caller must hold
// the write lock.
func (s *store) dropTaskLocked(t *model.Task) {
	delete(s.dedup, t.DedupKey())
	delete(s.history, t.ID)
	delete(s.seq, t.ID)
	delete(s.grants, t.ID)
	delete(s.tasks, t.ID)
}

func copyTenant(t *model.Tenant) *model.Tenant {
	c := *t
	return &c
}

func copyUser(u *model.User) *model.User {
	c := *u
	return &c
}

func copyTask(t *model.Task) *model.Task {
	c := *t
	return &c
}

func copyEntry(e *model.HistoryEntry) *model.HistoryEntry {
	c := *e
	return &c
}

func copyGrant(g *model.PermissionGrant) *model.PermissionGrant {
	c := *g
	return &c
}

func copyArchived(a *model.ArchivedTask) *model.ArchivedTask {
	c := *a
	return &c
}

// Memory is the in-memory Repository implementation, for development and
// tests.
type Memory struct {
	tenant  *tenantRepository
	user    *userRepository
	task    *taskRepository
	history *historyRepository
	grant   *grantRepository
	archive *archiveRepository
}

var _ interfaces.Repository = &Memory{}

func New() *Memory {
	s := newStore()
	return &Memory{
		tenant:  &tenantRepository{s: s},
		user:    &userRepository{s: s},
		task:    &taskRepository{s: s},
		history: &historyRepository{s: s},
		grant:   &grantRepository{s: s},
		archive: &archiveRepository{s: s},
	}
}

func (m *Memory) Tenant() interfaces.TenantRepository {
	return m.tenant
}

func (m *Memory) User() interfaces.UserRepository {
	return m.user
}

func (m *Memory) Task() interfaces.TaskRepository {
	return m.task
}

func (m *Memory) History() interfaces.HistoryRepository {
	return m.history
}

func (m *Memory) Grant() interfaces.GrantRepository {
	return m.grant
}

func (m *Memory) Archive() interfaces.ArchiveRepository {
	return m.archive
}

func (m *Memory) Close() error {
	return nil
}
