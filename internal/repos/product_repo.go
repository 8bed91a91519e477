package repos

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"shopfront/internal/cache"
	"shopfront/internal/docstore"
	"shopfront/internal/domain"
	applog "shopfront/internal/log"
)

const productsColl = "products"

// productDoc is the stored shape; CreatedAt holds docstore.ServerTimestamp on write.
type productDoc struct {
	Title       string  `json:"title"`
	Price       float64 `json:"price"`
	Category    string  `json:"category"`
	ImageURL    string  `json:"imageUrl"`
	Description string  `json:"description"`
	Published   bool    `json:"published"`
	CreatedBy   string  `json:"createdBy"`
	CreatedAt   any     `json:"createdAt"`
}

type ProductRepo struct {
	store *docstore.Store
	cache cache.Cache
	ttl   time.Duration
}

// NewProductRepo reads products through c when it is non-nil.
func NewProductRepo(store *docstore.Store, c cache.Cache, ttl time.Duration) *ProductRepo {
	return &ProductRepo{store: store, cache: c, ttl: ttl}
}

func cacheKey(id string) string { return "product:" + id }

func decodeProduct(snap docstore.Snapshot) (domain.Product, error) {
	var p domain.Product
	if err := snap.DataTo(&p); err != nil {
		return domain.Product{}, fmt.Errorf("decode %s: %w", snap.Ref, err)
	}
	p.ID = snap.Ref.ID
	return p, nil
}

// Get returns the product or an error wrapping docstore.ErrNotFound.
func (r *ProductRepo) Get(ctx context.Context, id string) (domain.Product, error) {
	if r.cache != nil {
		if raw, ok, err := r.cache.Get(ctx, cacheKey(id)); err != nil {
			applog.Event(applog.LevelWarn, "cache.get.fail", err, map[string]any{"key": cacheKey(id)})
		} else if ok {
			var p domain.Product
			if json.Unmarshal(raw, &p) == nil {
				p.ID = id
				return p, nil
			}
		}
	}

	snap, err := r.store.Get(ctx, docstore.Doc(productsColl, id))
	if err != nil {
		return domain.Product{}, err
	}
	if !snap.Exists {
		return domain.Product{}, fmt.Errorf("product %s: %w", id, docstore.ErrNotFound)
	}
	p, err := decodeProduct(snap)
	if err != nil {
		return domain.Product{}, err
	}
	if r.cache != nil {
		if err := r.cache.Set(ctx, cacheKey(id), snap.Data, r.ttl); err != nil {
			applog.Event(applog.LevelWarn, "cache.set.fail", err, map[string]any{"key": cacheKey(id)})
		}
	}
	return p, nil
}

// GetMany returns the products that exist among ids, keyed by id.
func (r *ProductRepo) GetMany(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	out := make(map[string]domain.Product, len(ids))
	for _, id := range ids {
		p, err := r.Get(ctx, id)
		if isNotFound(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out[id] = p
	}
	return out, nil
}

func (r *ProductRepo) list(ctx context.Context, q docstore.Query) ([]domain.Product, error) {
	snaps, err := r.store.Query(ctx, q.OrderBy("createdAt", docstore.Desc))
	if err != nil {
		return nil, err
	}
	out := make([]domain.Product, 0, len(snaps))
	for _, s := range snaps {
		p, err := decodeProduct(s)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// ListPublished returns published products, newest first, optionally in one category.
func (r *ProductRepo) ListPublished(ctx context.Context, category string) ([]domain.Product, error) {
	q := docstore.From(productsColl).Where("published", true)
	if category != "" {
		q = q.Where("category", category)
	}
	return r.list(ctx, q)
}

// Search matches published product titles containing q, ignoring case.
func (r *ProductRepo) Search(ctx context.Context, q string) ([]domain.Product, error) {
	all, err := r.ListPublished(ctx, "")
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(strings.TrimSpace(q))
	if needle == "" {
		return all, nil
	}
	var out []domain.Product
	for _, p := range all {
		if strings.Contains(strings.ToLower(p.Title), needle) {
			out = append(out, p)
		}
	}
	return out, nil
}

// Categories lists the distinct categories of published products, sorted.
func (r *ProductRepo) Categories(ctx context.Context) ([]string, error) {
	all, err := r.ListPublished(ctx, "")
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var out []string
	for _, p := range all {
		if p.Category == "" || seen[p.Category] {
			continue
		}
		seen[p.Category] = true
		out = append(out, p.Category)
	}
	sort.Strings(out)
	return out, nil
}

func (r *ProductRepo) ListByOwner(ctx context.Context, uid string) ([]domain.Product, error) {
	return r.list(ctx, docstore.From(productsColl).Where("createdBy", uid))
}

// Create stores p under a generated id with a server creation time.
func (r *ProductRepo) Create(ctx context.Context, p domain.Product) (string, error) {
	ref, err := r.store.Add(ctx, productsColl, productDoc{
		Title:       p.Title,
		Price:       p.Price,
		Category:    p.Category,
		ImageURL:    p.ImageURL,
		Description: p.Description,
		Published:   p.Published,
		CreatedBy:   p.CreatedBy,
		CreatedAt:   docstore.ServerTimestamp,
	})
	if err != nil {
		return "", err
	}
	return ref.ID, nil
}

// Update applies the fields returned by change to product id in one
// transaction. change sees the current product and may refuse with an error.
func (r *ProductRepo) Update(ctx context.Context, id string, change func(domain.Product) (map[string]any, error)) error {
	ref := docstore.Doc(productsColl, id)
	err := r.store.RunTransaction(ctx, func(ctx context.Context, tx *docstore.Txn) error {
		snap, err := tx.Get(ctx, ref)
		if err != nil {
			return err
		}
		if !snap.Exists {
			return fmt.Errorf("product %s: %w", id, docstore.ErrNotFound)
		}
		p, err := decodeProduct(snap)
		if err != nil {
			return err
		}
		fields, err := change(p)
		if err != nil || len(fields) == 0 {
			return err
		}
		doc := map[string]any{}
		if err := json.Unmarshal(snap.Data, &doc); err != nil {
			return fmt.Errorf("decode %s: %w", ref, err)
		}
		for k, v := range fields {
			doc[k] = v
		}
		tx.Set(ref, doc)
		return nil
	})
	if err != nil {
		return err
	}
	if r.cache != nil {
		if err := r.cache.Delete(ctx, cacheKey(id)); err != nil {
			applog.Event(applog.LevelWarn, "cache.delete.fail", err, map[string]any{"key": cacheKey(id)})
		}
	}
	return nil
}
