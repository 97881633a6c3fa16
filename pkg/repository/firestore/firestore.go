package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/opsmith-lab/taskmill/pkg/domain/interfaces"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Store-level sentinels, shared with the memory backend through the
// interfaces package.
var (
	ErrNotFound  = interfaces.ErrNotFound
	ErrDuplicate = interfaces.ErrDuplicate
	ErrConflict  = interfaces.ErrConflict
)

const (
	tenantsCollection  = "tenants"
	usersCollection    = "users"
	tasksCollection    = "tasks"
	dedupCollection    = "task_dedup"
	metaCollection     = "task_meta"
	historyCollection  = "histories"
	grantsCollection   = "grants"
	archivedCollection = "archived_tasks"

	// Firestore batch operation limits
	// Reference: https://cloud.google.com/firestore/docs/query-data/get-data#go
	firestoreGetAllLimit = 30
)

// Firestore is the Firestore-backed Repository implementation. Every atomic
// unit of the store contract runs inside a Firestore transaction, which
// provides serializable isolation; commit-time uniqueness rides on
// tx.Create of deterministic document IDs.
type Firestore struct {
	client  *firestore.Client
	tenant  *tenantRepository
	user    *userRepository
	task    *taskRepository
	history *historyRepository
	grant   *grantRepository
	archive *archiveRepository
}

var _ interfaces.Repository = &Firestore{}

type Option func(*Firestore)

// WithCollectionPrefix namespaces every collection, so multiple deployments
// can share a database (used by tests).
func WithCollectionPrefix(prefix string) Option {
	return func(f *Firestore) {
		f.tenant.collectionPrefix = prefix
		f.user.collectionPrefix = prefix
		f.task.collectionPrefix = prefix
		f.history.collectionPrefix = prefix
		f.grant.collectionPrefix = prefix
		f.archive.collectionPrefix = prefix
	}
}

func New(ctx context.Context, projectID, databaseID string, opts ...Option) (*Firestore, error) {
	var client *firestore.Client
	var err error
	if databaseID != "" {
		client, err = firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	} else {
		client, err = firestore.NewClient(ctx, projectID)
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("projectID", projectID),
			goerr.V("databaseID", databaseID))
	}

	f := &Firestore{
		client:  client,
		tenant:  &tenantRepository{client: client},
		user:    &userRepository{client: client},
		task:    &taskRepository{client: client},
		history: &historyRepository{client: client},
		grant:   &grantRepository{client: client},
		archive: &archiveRepository{client: client},
	}

	for _, opt := range opts {
		opt(f)
	}

	return f, nil
}

func (f *Firestore) Tenant() interfaces.TenantRepository {
	return f.tenant
}

func (f *Firestore) User() interfaces.UserRepository {
	return f.user
}

func (f *Firestore) Task() interfaces.TaskRepository {
	return f.task
}

func (f *Firestore) History() interfaces.HistoryRepository {
	return f.history
}

func (f *Firestore) Grant() interfaces.GrantRepository {
	return f.grant
}

func (f *Firestore) Archive() interfaces.ArchiveRepository {
	return f.archive
}

func (f *Firestore) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}

func collectionName(prefix, name string) string {
	if prefix != "" {
		return prefix + "_" + name
	}
	return name
}

// translateCommitError maps Firestore commit failures onto the store
// sentinels. AlreadyExists means a tx.Create on a deterministic document ID
// (dedup tuple, grant pair) lost at commit; Aborted means the transaction
// could not be serialized against a concurrent writer even after retries.
func translateCommitError(err error, msg string) error {
	switch status.Code(err) {
	case codes.AlreadyExists:
		return goerr.Wrap(ErrDuplicate, msg)
	case codes.Aborted:
		return goerr.Wrap(ErrConflict, msg)
	default:
		return goerr.Wrap(err, msg)
	}
}

// truncateTime normalizes timestamps to the microsecond precision Firestore
// round-trips, so stored UpdatedAt values compare cleanly with Equal.
func truncateTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

func now() time.Time {
	return truncateTime(time.Now())
}
