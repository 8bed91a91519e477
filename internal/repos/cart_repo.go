package repos

import (
	"context"
	"fmt"

	"shopfront/internal/docstore"
	"shopfront/internal/domain"
)

const cartsColl = "carts"

// CartRepo maps carts/<uid> documents. Writes only happen inside a
// transaction so every change is conditioned on the version read.
type CartRepo struct{ store *docstore.Store }

func NewCartRepo(store *docstore.Store) *CartRepo { return &CartRepo{store: store} }

func cartRef(uid string) docstore.Ref { return docstore.Doc(cartsColl, uid) }

func decodeCart(uid string, snap docstore.Snapshot) (domain.Cart, error) {
	c := domain.Cart{UserID: uid, Items: map[string]int{}}
	if !snap.Exists {
		return c, nil
	}
	if err := snap.DataTo(&c); err != nil {
		return domain.Cart{}, fmt.Errorf("decode %s: %w", snap.Ref, err)
	}
	c.UserID, c.Exists = uid, true
	if c.Items == nil {
		c.Items = map[string]int{}
	}
	return c, nil
}

// Get reads the cart outside a transaction. A missing cart is empty.
func (r *CartRepo) Get(ctx context.Context, uid string) (domain.Cart, error) {
	snap, err := r.store.Get(ctx, cartRef(uid))
	if err != nil {
		return domain.Cart{}, err
	}
	return decodeCart(uid, snap)
}

// Read reads the cart inside tx.
func (r *CartRepo) Read(ctx context.Context, tx *docstore.Txn, uid string) (domain.Cart, error) {
	snap, err := tx.Get(ctx, cartRef(uid))
	if err != nil {
		return domain.Cart{}, err
	}
	return decodeCart(uid, snap)
}

// Write stores the whole cart in tx.
func (r *CartRepo) Write(tx *docstore.Txn, c domain.Cart) {
	items := c.Items
	if items == nil {
		items = map[string]int{}
	}
	tx.Set(cartRef(c.UserID), domain.Cart{Items: items})
}

func (r *CartRepo) Delete(tx *docstore.Txn, uid string) { tx.Delete(cartRef(uid)) }

func (r *CartRepo) Transaction(ctx context.Context, fn func(ctx context.Context, tx *docstore.Txn) error) error {
	return r.store.RunTransaction(ctx, fn)
}
