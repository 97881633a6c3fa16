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

type historyRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

// historyDoc is the Firestore persistence model
type historyDoc struct {
	ID          string    `firestore:"id"`
	TaskID      string    `firestore:"task_id"`
	ChangedBy   string    `firestore:"changed_by"`
	ChangeDate  time.Time `firestore:"change_date"`
	Seq         int64     `firestore:"seq"`
	Description string    `firestore:"description"`
}

func toHistoryDoc(e *model.HistoryEntry) *historyDoc {
	return &historyDoc{
		ID:          string(e.ID),
		TaskID:      string(e.TaskID),
		ChangedBy:   string(e.ChangedBy),
		ChangeDate:  e.ChangeDate,
		Seq:         e.Seq,
		Description: e.Description,
	}
}

func fromHistoryDoc(doc *historyDoc) *model.HistoryEntry {
	return &model.HistoryEntry{
		ID:          types.HistoryID(doc.ID),
		TaskID:      types.TaskID(doc.TaskID),
		ChangedBy:   types.UserID(doc.ChangedBy),
		ChangeDate:  doc.ChangeDate,
		Seq:         doc.Seq,
		Description: doc.Description,
	}
}

func (r *historyRepository) collection() *firestore.CollectionRef {
	return r.client.Collection(collectionName(r.collectionPrefix, historyCollection))
}

func (r *historyRepository) tasks() *firestore.CollectionRef {
	return r.client.Collection(collectionName(r.collectionPrefix, tasksCollection))
}

func (r *historyRepository) meta() *firestore.CollectionRef {
	return r.client.Collection(collectionName(r.collectionPrefix, metaCollection))
}

func (r *historyRepository) Append(ctx context.Context, entry *model.HistoryEntry) (*model.HistoryEntry, error) {
	taskRef := r.tasks().Doc(string(entry.TaskID))
	metaRef := r.meta().Doc(string(entry.TaskID))

	stored := *entry
	if stored.ID == "" {
		stored.ID = types.NewHistoryID()
	}

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if _, err := tx.Get(taskRef); err != nil {
			if status.Code(err) == codes.NotFound {
				return goerr.Wrap(ErrNotFound, "task not found", goerr.V("taskID", entry.TaskID))
			}
			return goerr.Wrap(err, "failed to get task", goerr.V("taskID", entry.TaskID))
		}
		meta, err := getMetaTx(tx, metaRef)
		if err != nil {
			return err
		}

		ts := now()
		if ts.Before(meta.LastChangeAt) {
			ts = meta.LastChangeAt
		}
		meta.LastSeq++
		stored.Seq = meta.LastSeq
		stored.ChangeDate = ts
		meta.LastChangeAt = ts

		if err := tx.Create(r.collection().Doc(string(stored.ID)), toHistoryDoc(&stored)); err != nil {
			return err
		}
		return tx.Set(metaRef, meta)
	})
	if err != nil {
		return nil, translateCommitError(err, "failed to append history entry")
	}
	return &stored, nil
}

func (r *historyRepository) ListByTask(ctx context.Context, taskID types.TaskID) ([]*model.HistoryEntry, error) {
	iter := r.collection().
		Where("task_id", "==", string(taskID)).
		OrderBy("change_date", firestore.Asc).
		OrderBy("seq", firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	entries := make([]*model.HistoryEntry, 0)
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate history", goerr.V("taskID", taskID))
		}
		var doc historyDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal history entry", goerr.V("docID", snap.Ref.ID))
		}
		entries = append(entries, fromHistoryDoc(&doc))
	}
	return entries, nil
}

type grantRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

// grantDoc is the Firestore persistence model. The document ID is
// "<taskID>_<userID>", making the (task, user) uniqueness structural.
type grantDoc struct {
	ID         string    `firestore:"id"`
	TaskID     string    `firestore:"task_id"`
	SharedWith string    `firestore:"shared_with"`
	CreatedAt  time.Time `firestore:"created_at"`
}

func grantDocID(taskID types.TaskID, userID types.UserID) string {
	return string(taskID) + "_" + string(userID)
}

func toGrantDoc(g *model.PermissionGrant) *grantDoc {
	return &grantDoc{
		ID:         string(g.ID),
		TaskID:     string(g.TaskID),
		SharedWith: string(g.SharedWith),
		CreatedAt:  g.CreatedAt,
	}
}

func fromGrantDoc(doc *grantDoc) *model.PermissionGrant {
	return &model.PermissionGrant{
		ID:         types.GrantID(doc.ID),
		TaskID:     types.TaskID(doc.TaskID),
		SharedWith: types.UserID(doc.SharedWith),
		CreatedAt:  doc.CreatedAt,
	}
}

func (r *grantRepository) collection() *firestore.CollectionRef {
	return r.client.Collection(collectionName(r.collectionPrefix, grantsCollection))
}

func (r *grantRepository) tasks() *firestore.CollectionRef {
	return r.client.Collection(collectionName(r.collectionPrefix, tasksCollection))
}

func (r *grantRepository) histories() *firestore.CollectionRef {
	return r.client.Collection(collectionName(r.collectionPrefix, historyCollection))
}

func (r *grantRepository) meta() *firestore.CollectionRef {
	return r.client.Collection(collectionName(r.collectionPrefix, metaCollection))
}

func (r *grantRepository) Put(ctx context.Context, grant *model.PermissionGrant, entry *model.HistoryEntry) (bool, error) {
	grantRef := r.collection().Doc(grantDocID(grant.TaskID, grant.SharedWith))
	taskRef := r.tasks().Doc(string(grant.TaskID))
	metaRef := r.meta().Doc(string(grant.TaskID))

	created := false
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		created = false

		if _, err := tx.Get(grantRef); err == nil {
			// Existing grant: idempotent no-op, no history entry.
			return nil
		} else if status.Code(err) != codes.NotFound {
			return goerr.Wrap(err, "failed to get grant")
		}

		if _, err := tx.Get(taskRef); err != nil {
			if status.Code(err) == codes.NotFound {
				return goerr.Wrap(ErrNotFound, "task not found", goerr.V("taskID", grant.TaskID))
			}
			return goerr.Wrap(err, "failed to get task", goerr.V("taskID", grant.TaskID))
		}

		meta, err := getMetaTx(tx, metaRef)
		if err != nil {
			return err
		}

		stored := *grant
		if stored.ID == "" {
			stored.ID = types.NewGrantID()
		}
		ts := now()
		stored.CreatedAt = ts
		if err := tx.Create(grantRef, toGrantDoc(&stored)); err != nil {
			return err
		}

		var entries []*model.HistoryEntry
		if entry != nil {
			e := *entry
			e.TaskID = grant.TaskID
			entries = append(entries, &e)
		}
		if err := writeEntriesTx(tx, r.histories(), metaRef, meta, entries, ts); err != nil {
			return err
		}
		created = true
		return nil
	})
	if err != nil {
		// A concurrent Put of the same pair may lose with AlreadyExists on
		// the grant document; the grant exists afterwards, so report the
		// idempotent outcome instead of an error.
		if status.Code(err) == codes.AlreadyExists {
			return false, nil
		}
		return false, translateCommitError(err, "failed to put grant")
	}
	return created, nil
}

func (r *grantRepository) ListByTask(ctx context.Context, taskID types.TaskID) ([]*model.PermissionGrant, error) {
	iter := r.collection().Where("task_id", "==", string(taskID)).Documents(ctx)
	defer iter.Stop()

	grants := make([]*model.PermissionGrant, 0)
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate grants", goerr.V("taskID", taskID))
		}
		var doc grantDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal grant", goerr.V("docID", snap.Ref.ID))
		}
		grants = append(grants, fromGrantDoc(&doc))
	}
	return grants, nil
}
