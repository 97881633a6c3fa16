package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/opsmith-lab/taskmill/pkg/domain/model"
	"github.com/opsmith-lab/taskmill/pkg/domain/types"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type archiveRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

// archivedDoc is the Firestore persistence model
type archivedDoc struct {
	ID          string    `firestore:"id"`
	TaskID      string    `firestore:"task_id"`
	TenantID    string    `firestore:"tenant_id"`
	OwnerID     string    `firestore:"owner_id"`
	Title       string    `firestore:"title"`
	Priority    string    `firestore:"priority"`
	Description string    `firestore:"description"`
	Status      string    `firestore:"status"`
	CreatedAt   time.Time `firestore:"created_at"`
	UpdatedAt   time.Time `firestore:"updated_at"`
	ArchivedAt  time.Time `firestore:"archived_at"`
}

func toArchivedDoc(a *model.ArchivedTask) *archivedDoc {
	return &archivedDoc{
		ID:          string(a.ID),
		TaskID:      string(a.TaskID),
		TenantID:    string(a.TenantID),
		OwnerID:     string(a.OwnerID),
		Title:       a.Title,
		Priority:    string(a.Priority),
		Description: a.Description,
		Status:      string(a.Status),
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
		ArchivedAt:  a.ArchivedAt,
	}
}

func fromArchivedDoc(doc *archivedDoc) *model.ArchivedTask {
	return &model.ArchivedTask{
		ID:          types.ArchiveID(doc.ID),
		TaskID:      types.TaskID(doc.TaskID),
		TenantID:    types.TenantID(doc.TenantID),
		OwnerID:     types.UserID(doc.OwnerID),
		Title:       doc.Title,
		Priority:    types.Priority(doc.Priority),
		Description: doc.Description,
		Status:      types.TaskStatus(doc.Status),
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
		ArchivedAt:  doc.ArchivedAt,
	}
}

func (r *archiveRepository) collection() *firestore.CollectionRef {
	return r.client.Collection(collectionName(r.collectionPrefix, archivedCollection))
}

func (r *archiveRepository) tasks() *firestore.CollectionRef {
	return r.client.Collection(collectionName(r.collectionPrefix, tasksCollection))
}

func (r *archiveRepository) dedup() *firestore.CollectionRef {
	return r.client.Collection(collectionName(r.collectionPrefix, dedupCollection))
}

func (r *archiveRepository) meta() *firestore.CollectionRef {
	return r.client.Collection(collectionName(r.collectionPrefix, metaCollection))
}

func (r *archiveRepository) histories() *firestore.CollectionRef {
	return r.client.Collection(collectionName(r.collectionPrefix, historyCollection))
}

func (r *archiveRepository) grants() *firestore.CollectionRef {
	return r.client.Collection(collectionName(r.collectionPrefix, grantsCollection))
}

func (r *archiveRepository) MoveTasks(ctx context.Context, ids []types.TaskID) (int, error) {
	count := 0
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		count = 0
		ts := now()

		// Reads first: resolve the fixed key list and collect children.
		type pending struct {
			task      *model.Task
			childRefs []*firestore.DocumentRef
		}
		var moves []pending
		for _, id := range ids {
			snap, err := tx.Get(r.tasks().Doc(string(id)))
			if err != nil {
				if status.Code(err) == codes.NotFound {
					// Deleted since the key list was materialized.
					continue
				}
				return goerr.Wrap(err, "failed to get task", goerr.V("id", id))
			}
			var doc taskDoc
			if err := snap.DataTo(&doc); err != nil {
				return goerr.Wrap(err, "failed to unmarshal task", goerr.V("id", id))
			}
			task := fromTaskDoc(&doc)

			refs, err := childRefsTx(tx, r.histories(), r.grants(), id)
			if err != nil {
				return err
			}
			moves = append(moves, pending{task: task, childRefs: refs})
		}

		// Writes: freeze snapshots, drop children, remove from active set.
		for _, m := range moves {
			snapshot := model.NewArchivedTask(m.task, ts)
			if err := tx.Create(r.collection().Doc(string(snapshot.ID)), toArchivedDoc(snapshot)); err != nil {
				return err
			}
			for _, ref := range m.childRefs {
				if err := tx.Delete(ref); err != nil {
					return err
				}
			}
			if err := tx.Delete(r.dedup().Doc(m.task.DedupKey())); err != nil {
				return err
			}
			if err := tx.Delete(r.meta().Doc(string(m.task.ID))); err != nil {
				return err
			}
			if err := tx.Delete(r.tasks().Doc(string(m.task.ID))); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	if err != nil {
		return 0, translateCommitError(err, "failed to archive tasks")
	}
	return count, nil
}

func (r *archiveRepository) Get(ctx context.Context, id types.ArchiveID) (*model.ArchivedTask, error) {
	snap, err := r.collection().Doc(string(id)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(ErrNotFound, "archived task not found", goerr.V("id", id))
		}
		return nil, goerr.Wrap(err, "failed to get archived task", goerr.V("id", id))
	}

	var doc archivedDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal archived task", goerr.V("id", id))
	}
	return fromArchivedDoc(&doc), nil
}

func (r *archiveRepository) ListByTenant(ctx context.Context, tenantID types.TenantID) ([]*model.ArchivedTask, error) {
	iter := r.collection().
		Where("tenant_id", "==", string(tenantID)).
		OrderBy("archived_at", firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	archived := make([]*model.ArchivedTask, 0)
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate archived tasks", goerr.V("tenantID", tenantID))
		}
		var doc archivedDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal archived task", goerr.V("docID", snap.Ref.ID))
		}
		archived = append(archived, fromArchivedDoc(&doc))
	}
	return archived, nil
}
