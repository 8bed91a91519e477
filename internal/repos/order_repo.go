package repos

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"shopfront/internal/docstore"
	"shopfront/internal/domain"
)

const ordersColl = "orders"

type OrderRepo struct{ store *docstore.Store }

func NewOrderRepo(store *docstore.Store) *OrderRepo { return &OrderRepo{store: store} }

type orderDoc struct {
	UserID    string         `json:"userId"`
	Items     map[string]int `json:"items"`
	CreatedAt any            `json:"createdAt"`
	Status    string         `json:"status"`
}

// Create queues a new order document in tx and returns its id. The creation
// time is assigned by the store at commit.
func (r *OrderRepo) Create(tx *docstore.Txn, uid string, items map[string]int) string {
	id := uuid.NewString()
	tx.Create(docstore.Doc(ordersColl, id), orderDoc{
		UserID:    uid,
		Items:     items,
		CreatedAt: docstore.ServerTimestamp,
		Status:    domain.OrderStatusConfirmed,
	})
	return id
}

func decodeOrder(snap docstore.Snapshot) (domain.Order, error) {
	var o domain.Order
	if err := snap.DataTo(&o); err != nil {
		return domain.Order{}, fmt.Errorf("decode %s: %w", snap.Ref, err)
	}
	o.ID = snap.Ref.ID
	return o, nil
}

// Get returns the order or an error wrapping docstore.ErrNotFound.
func (r *OrderRepo) Get(ctx context.Context, id string) (domain.Order, error) {
	snap, err := r.store.Get(ctx, docstore.Doc(ordersColl, id))
	if err != nil {
		return domain.Order{}, err
	}
	if !snap.Exists {
		return domain.Order{}, fmt.Errorf("order %s: %w", id, docstore.ErrNotFound)
	}
	return decodeOrder(snap)
}

// ListByUser returns uid's orders, newest first.
func (r *OrderRepo) ListByUser(ctx context.Context, uid string) ([]domain.Order, error) {
	snaps, err := r.store.Query(ctx, docstore.From(ordersColl).Where("userId", uid).OrderBy("createdAt", docstore.Desc))
	if err != nil {
		return nil, err
	}
	out := make([]domain.Order, 0, len(snaps))
	for _, s := range snaps {
		o, err := decodeOrder(s)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}
