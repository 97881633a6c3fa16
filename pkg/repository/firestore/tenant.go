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

type tenantRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

// tenantDoc is the Firestore persistence model
type tenantDoc struct {
	ID        string    `firestore:"id"`
	Name      string    `firestore:"name"`
	CreatedAt time.Time `firestore:"created_at"`
}

func (r *tenantRepository) collection() *firestore.CollectionRef {
	return r.client.Collection(collectionName(r.collectionPrefix, tenantsCollection))
}

func toTenantDoc(t *model.Tenant) *tenantDoc {
	return &tenantDoc{
		ID:        string(t.ID),
		Name:      t.Name,
		CreatedAt: t.CreatedAt,
	}
}

func fromTenantDoc(doc *tenantDoc) *model.Tenant {
	return &model.Tenant{
		ID:        types.TenantID(doc.ID),
		Name:      doc.Name,
		CreatedAt: doc.CreatedAt,
	}
}

func (r *tenantRepository) Create(ctx context.Context, tenant *model.Tenant) (*model.Tenant, error) {
	created := *tenant
	if created.ID == "" {
		created.ID = types.NewTenantID()
	}
	created.CreatedAt = now()

	_, err := r.collection().Doc(string(created.ID)).Create(ctx, toTenantDoc(&created))
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return nil, goerr.Wrap(ErrDuplicate, "tenant already exists", goerr.V("id", created.ID))
		}
		return nil, goerr.Wrap(err, "failed to create tenant", goerr.V("id", created.ID))
	}
	return &created, nil
}

func (r *tenantRepository) Get(ctx context.Context, id types.TenantID) (*model.Tenant, error) {
	snap, err := r.collection().Doc(string(id)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(ErrNotFound, "tenant not found", goerr.V("id", id))
		}
		return nil, goerr.Wrap(err, "failed to get tenant", goerr.V("id", id))
	}

	var doc tenantDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal tenant", goerr.V("id", id))
	}
	return fromTenantDoc(&doc), nil
}

func (r *tenantRepository) List(ctx context.Context) ([]*model.Tenant, error) {
	iter := r.collection().OrderBy("id", firestore.Asc).Documents(ctx)
	defer iter.Stop()

	var tenants []*model.Tenant
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate tenants")
		}

		var doc tenantDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal tenant", goerr.V("docID", snap.Ref.ID))
		}
		tenants = append(tenants, fromTenantDoc(&doc))
	}
	return tenants, nil
}

type userRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

// userDoc is the Firestore persistence model
type userDoc struct {
	ID        string    `firestore:"id"`
	TenantID  string    `firestore:"tenant_id"`
	Name      string    `firestore:"name"`
	Role      string    `firestore:"role"`
	CreatedAt time.Time `firestore:"created_at"`
}

func (r *userRepository) collection() *firestore.CollectionRef {
	return r.client.Collection(collectionName(r.collectionPrefix, usersCollection))
}

func (r *userRepository) tenantCollection() *firestore.CollectionRef {
	return r.client.Collection(collectionName(r.collectionPrefix, tenantsCollection))
}

func toUserDoc(u *model.User) *userDoc {
	return &userDoc{
		ID:        string(u.ID),
		TenantID:  string(u.TenantID),
		Name:      u.Name,
		Role:      string(u.Role),
		CreatedAt: u.CreatedAt,
	}
}

func fromUserDoc(doc *userDoc) *model.User {
	return &model.User{
		ID:        types.UserID(doc.ID),
		TenantID:  types.TenantID(doc.TenantID),
		Name:      doc.Name,
		Role:      types.Role(doc.Role),
		CreatedAt: doc.CreatedAt,
	}
}

func (r *userRepository) Create(ctx context.Context, user *model.User) (*model.User, error) {
	created := *user
	if created.ID == "" {
		created.ID = types.NewUserID()
	}
	created.CreatedAt = now()

	tenantRef := r.tenantCollection().Doc(string(created.TenantID))
	userRef := r.collection().Doc(string(created.ID))

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if _, err := tx.Get(tenantRef); err != nil {
			if status.Code(err) == codes.NotFound {
				return goerr.Wrap(ErrNotFound, "tenant not found", goerr.V("tenantID", created.TenantID))
			}
			return goerr.Wrap(err, "failed to get tenant")
		}
		return tx.Create(userRef, toUserDoc(&created))
	})
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return nil, goerr.Wrap(ErrDuplicate, "user already exists", goerr.V("id", created.ID))
		}
		return nil, err
	}
	return &created, nil
}

func (r *userRepository) Get(ctx context.Context, id types.UserID) (*model.User, error) {
	snap, err := r.collection().Doc(string(id)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(ErrNotFound, "user not found", goerr.V("id", id))
		}
		return nil, goerr.Wrap(err, "failed to get user", goerr.V("id", id))
	}

	var doc userDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal user", goerr.V("id", id))
	}
	return fromUserDoc(&doc), nil
}

func (r *userRepository) ListByTenant(ctx context.Context, tenantID types.TenantID) ([]*model.User, error) {
	iter := r.collection().Where("tenant_id", "==", string(tenantID)).Documents(ctx)
	defer iter.Stop()

	var users []*model.User
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate users", goerr.V("tenantID", tenantID))
		}

		var doc userDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal user", goerr.V("docID", snap.Ref.ID))
		}
		users = append(users, fromUserDoc(&doc))
	}
	return users, nil
}
