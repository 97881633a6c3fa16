package firestore

import (
	"context"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/opsmith-lab/taskmill/pkg/domain/model"
	"github.com/opsmith-lab/taskmill/pkg/domain/types"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type taskRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

// taskDoc is the Firestore persistence model
type taskDoc struct {
	ID          string    `firestore:"id"`
	TenantID    string    `firestore:"tenant_id"`
	OwnerID     string    `firestore:"owner_id"`
	Title       string    `firestore:"title"`
	Priority    string    `firestore:"priority"`
	Description string    `firestore:"description"`
	Status      string    `firestore:"status"`
	CreatedAt   time.Time `firestore:"created_at"`
	UpdatedAt   time.Time `firestore:"updated_at"`
}

// dedupDoc pins the (tenant, owner, title, description) tuple of an active
// task. Its document ID is the tuple hash, so tx.Create fails at commit when
// a second writer races on the same tuple.
type dedupDoc struct {
	TaskID string `firestore:"task_id"`
}

// metaDoc carries per-task history sequencing state.
type metaDoc struct {
	LastSeq      int64     `firestore:"last_seq"`
	LastChangeAt time.Time `firestore:"last_change_at"`
}

func (r *taskRepository) collection() *firestore.CollectionRef {
	return r.client.Collection(collectionName(r.collectionPrefix, tasksCollection))
}

func (r *taskRepository) dedup() *firestore.CollectionRef {
	return r.client.Collection(collectionName(r.collectionPrefix, dedupCollection))
}

func (r *taskRepository) meta() *firestore.CollectionRef {
	return r.client.Collection(collectionName(r.collectionPrefix, metaCollection))
}

func (r *taskRepository) histories() *firestore.CollectionRef {
	return r.client.Collection(collectionName(r.collectionPrefix, historyCollection))
}

func (r *taskRepository) grants() *firestore.CollectionRef {
	return r.client.Collection(collectionName(r.collectionPrefix, grantsCollection))
}

func toTaskDoc(t *model.Task) *taskDoc {
	return &taskDoc{
		ID:          string(t.ID),
		TenantID:    string(t.TenantID),
		OwnerID:     string(t.OwnerID),
		Title:       t.Title,
		Priority:    string(t.Priority),
		Description: t.Description,
		Status:      string(t.Status),
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func fromTaskDoc(doc *taskDoc) *model.Task {
	return &model.Task{
		ID:          types.TaskID(doc.ID),
		TenantID:    types.TenantID(doc.TenantID),
		OwnerID:     types.UserID(doc.OwnerID),
		Title:       doc.Title,
		Priority:    types.Priority(doc.Priority),
		Description: doc.Description,
		Status:      types.TaskStatus(doc.Status),
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
	}
}

func (r *taskRepository) Create(ctx context.Context, task *model.Task) (*model.Task, error) {
	created := *task
	if created.ID == "" {
		created.ID = types.NewTaskID()
	}
	ts := now()
	created.CreatedAt = ts
	created.UpdatedAt = ts

	taskRef := r.collection().Doc(string(created.ID))
	dedupRef := r.dedup().Doc(created.DedupKey())

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		// Both creates are enforced at commit; a concurrent creation of
		// the same tuple loses with AlreadyExists on the dedup document.
		if err := tx.Create(dedupRef, &dedupDoc{TaskID: string(created.ID)}); err != nil {
			return err
		}
		return tx.Create(taskRef, toTaskDoc(&created))
	})
	if err != nil {
		return nil, translateCommitError(err, "failed to create task")
	}
	return &created, nil
}

func (r *taskRepository) Get(ctx context.Context, id types.TaskID) (*model.Task, error) {
	snap, err := r.collection().Doc(string(id)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(ErrNotFound, "task not found", goerr.V("id", id))
		}
		return nil, goerr.Wrap(err, "failed to get task", goerr.V("id", id))
	}

	var doc taskDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal task", goerr.V("id", id))
	}
	return fromTaskDoc(&doc), nil
}

// getMetaTx reads the per-task history meta document inside a transaction,
// returning a zero value when it does not exist yet.
func getMetaTx(tx *firestore.Transaction, ref *firestore.DocumentRef) (*metaDoc, error) {
	snap, err := tx.Get(ref)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return &metaDoc{}, nil
		}
		return nil, goerr.Wrap(err, "failed to get task meta")
	}
	var meta metaDoc
	if err := snap.DataTo(&meta); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal task meta")
	}
	return &meta, nil
}

// writeEntriesTx appends history entries and advances the meta document.
// ChangeDate is clamped to the last recorded change so per-task ordering is
// monotonically non-decreasing.
func writeEntriesTx(tx *firestore.Transaction, histories *firestore.CollectionRef, metaRef *firestore.DocumentRef, meta *metaDoc, entries []*model.HistoryEntry, ts time.Time) error {
	if len(entries) == 0 {
		return nil
	}
	changeAt := ts
	if changeAt.Before(meta.LastChangeAt) {
		changeAt = meta.LastChangeAt
	}
	for _, e := range entries {
		stored := *e
		if stored.ID == "" {
			stored.ID = types.NewHistoryID()
		}
		meta.LastSeq++
		stored.Seq = meta.LastSeq
		stored.ChangeDate = changeAt
		if err := tx.Create(histories.Doc(string(stored.ID)), toHistoryDoc(&stored)); err != nil {
			return err
		}
	}
	meta.LastChangeAt = changeAt
	return tx.Set(metaRef, meta)
}

func (r *taskRepository) Update(ctx context.Context, task *model.Task, entries []*model.HistoryEntry, expectUpdatedAt time.Time) (*model.Task, error) {
	taskRef := r.collection().Doc(string(task.ID))
	metaRef := r.meta().Doc(string(task.ID))

	var updated *model.Task
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(taskRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return goerr.Wrap(ErrNotFound, "task not found", goerr.V("id", task.ID))
			}
			return goerr.Wrap(err, "failed to get task", goerr.V("id", task.ID))
		}
		var curDoc taskDoc
		if err := snap.DataTo(&curDoc); err != nil {
			return goerr.Wrap(err, "failed to unmarshal task", goerr.V("id", task.ID))
		}
		cur := fromTaskDoc(&curDoc)

		if !cur.UpdatedAt.Equal(expectUpdatedAt) {
			return goerr.Wrap(ErrConflict, "task was modified concurrently",
				goerr.V("id", task.ID),
				goerr.V("expect", expectUpdatedAt),
				goerr.V("stored", cur.UpdatedAt))
		}

		meta, err := getMetaTx(tx, metaRef)
		if err != nil {
			return err
		}

		ts := now()
		next := *task
		next.TenantID = cur.TenantID
		next.OwnerID = cur.OwnerID
		next.CreatedAt = cur.CreatedAt
		next.UpdatedAt = ts

		// Keep the dedup index in step when the tuple moves. The create of
		// the new key is enforced at commit.
		oldKey, newKey := cur.DedupKey(), next.DedupKey()
		if oldKey != newKey {
			if err := tx.Create(r.dedup().Doc(newKey), &dedupDoc{TaskID: string(next.ID)}); err != nil {
				return err
			}
			if err := tx.Delete(r.dedup().Doc(oldKey)); err != nil {
				return err
			}
		}

		if err := tx.Set(taskRef, toTaskDoc(&next)); err != nil {
			return err
		}
		if err := writeEntriesTx(tx, r.histories(), metaRef, meta, entries, ts); err != nil {
			return err
		}
		updated = &next
		return nil
	})
	if err != nil {
		return nil, translateCommitError(err, "failed to update task")
	}
	return updated, nil
}

// childRefsTx collects the history and grant document refs of a task inside
// a transaction. All transactional reads must precede writes.
func childRefsTx(tx *firestore.Transaction, histories, grants *firestore.CollectionRef, taskID types.TaskID) ([]*firestore.DocumentRef, error) {
	var refs []*firestore.DocumentRef
	for _, col := range []*firestore.CollectionRef{histories, grants} {
		iter := tx.Documents(col.Where("task_id", "==", string(taskID)))
		for {
			snap, err := iter.Next()
			if err == iterator.Done {
				break
			}
			if err != nil {
				iter.Stop()
				return nil, goerr.Wrap(err, "failed to query task children", goerr.V("taskID", taskID))
			}
			refs = append(refs, snap.Ref)
		}
		iter.Stop()
	}
	return refs, nil
}

func (r *taskRepository) DeleteCascade(ctx context.Context, id types.TaskID) error {
	taskRef := r.collection().Doc(string(id))
	metaRef := r.meta().Doc(string(id))

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(taskRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return goerr.Wrap(ErrNotFound, "task not found", goerr.V("id", id))
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

		for _, ref := range refs {
			if err := tx.Delete(ref); err != nil {
				return err
			}
		}
		if err := tx.Delete(r.dedup().Doc(task.DedupKey())); err != nil {
			return err
		}
		if err := tx.Delete(metaRef); err != nil {
			return err
		}
		return tx.Delete(taskRef)
	})
	if err != nil {
		return translateCommitError(err, "failed to delete task")
	}
	return nil
}

func (r *taskRepository) ListByTenant(ctx context.Context, tenantID types.TenantID) ([]*model.Task, error) {
	iter := r.collection().
		Where("tenant_id", "==", string(tenantID)).
		OrderBy("created_at", firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	return collectTasks(iter, "failed to iterate tenant tasks")
}

func (r *taskRepository) ListOwnedOrGranted(ctx context.Context, tenantID types.TenantID, userID types.UserID) ([]*model.Task, error) {
	seen := make(map[types.TaskID]struct{})
	var result []*model.Task

	ownedIter := r.collection().
		Where("tenant_id", "==", string(tenantID)).
		Where("owner_id", "==", string(userID)).
		Documents(ctx)
	owned, err := collectTasks(ownedIter, "failed to iterate owned tasks")
	ownedIter.Stop()
	if err != nil {
		return nil, err
	}
	for _, t := range owned {
		seen[t.ID] = struct{}{}
		result = append(result, t)
	}

	grantIter := r.grants().Where("shared_with", "==", string(userID)).Documents(ctx)
	var grantedRefs []*firestore.DocumentRef
	for {
		snap, err := grantIter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			grantIter.Stop()
			return nil, goerr.Wrap(err, "failed to iterate grants", goerr.V("userID", userID))
		}
		var g grantDoc
		if err := snap.DataTo(&g); err != nil {
			grantIter.Stop()
			return nil, goerr.Wrap(err, "failed to unmarshal grant", goerr.V("docID", snap.Ref.ID))
		}
		if _, ok := seen[types.TaskID(g.TaskID)]; !ok {
			grantedRefs = append(grantedRefs, r.collection().Doc(g.TaskID))
		}
	}
	grantIter.Stop()

	for start := 0; start < len(grantedRefs); start += firestoreGetAllLimit {
		end := min(start+firestoreGetAllLimit, len(grantedRefs))
		snaps, err := r.client.GetAll(ctx, grantedRefs[start:end])
		if err != nil {
			return nil, goerr.Wrap(err, "failed to fetch granted tasks")
		}
		for _, snap := range snaps {
			if !snap.Exists() {
				// Grant outlived its task inside this non-transactional
				// read; the cascade rules make this a transient state.
				continue
			}
			var doc taskDoc
			if err := snap.DataTo(&doc); err != nil {
				return nil, goerr.Wrap(err, "failed to unmarshal task", goerr.V("docID", snap.Ref.ID))
			}
			t := fromTaskDoc(&doc)
			if t.TenantID != tenantID {
				continue
			}
			if _, ok := seen[t.ID]; ok {
				continue
			}
			seen[t.ID] = struct{}{}
			result = append(result, t)
		}
	}

	sortTasksByCreation(result)
	return result, nil
}

func (r *taskRepository) ListStale(ctx context.Context, cutoff time.Time) ([]types.TaskID, error) {
	iter := r.collection().Where("updated_at", "<", truncateTime(cutoff)).Documents(ctx)
	defer iter.Stop()

	var ids []types.TaskID
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate stale tasks")
		}
		ids = append(ids, types.TaskID(snap.Ref.ID))
	}
	return ids, nil
}

func collectTasks(iter *firestore.DocumentIterator, msg string) ([]*model.Task, error) {
	var tasks []*model.Task
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, msg)
		}
		var doc taskDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal task", goerr.V("docID", snap.Ref.ID))
		}
		tasks = append(tasks, fromTaskDoc(&doc))
	}
	return tasks, nil
}

func sortTasksByCreation(tasks []*model.Task) {
	sort.Slice(tasks, func(i, j int) bool {
		if !tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
			return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
		}
		return tasks[i].ID < tasks[j].ID
	})
}
