package services

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"shopfront/internal/docstore"
	"shopfront/internal/pricing"
	"shopfront/internal/repos"
	"shopfront/internal/session"
)

// CartService is the cart transaction manager. Every change is a
// read-modify-write of carts/<uid> that the store retries on conflict, so
// concurrent changes for one user are never lost.
type CartService struct {
	Carts *repos.CartRepo
	Prods *repos.ProductRepo
}

func NewCartService(carts *repos.CartRepo, prods *repos.ProductRepo) *CartService {
	return &CartService{Carts: carts, Prods: prods}
}

func (s *CartService) requireProduct(ctx context.Context, id string) error {
	_, err := s.Prods.Get(ctx, id)
	if notFound(err) {
		return ErrProductNotFound
	}
	return wrap("product.get", err)
}

// AddItem adds qty of productID to the caller's cart.
func (s *CartService) AddItem(ctx context.Context, sess *session.Context, productID string, qty int) error {
	uid, ok := sess.UID()
	if !ok {
		return ErrNotAuthenticated
	}
	if qty < 1 {
		return &ValidationError{Field: "qty", Message: "Quantity must be at least 1."}
	}
	if err := s.requireProduct(ctx, productID); err != nil {
		return err
	}
	err := s.Carts.Transaction(ctx, func(ctx context.Context, tx *docstore.Txn) error {
		c, err := s.Carts.Read(ctx, tx, uid)
		if err != nil {
			return err
		}
		c.Add(productID, qty)
		s.Carts.Write(tx, c)
		return nil
	})
	return wrap("cart.add", err)
}

// RemoveItem drops productID from the cart. Removing something that is not
// there succeeds without writing.
func (s *CartService) RemoveItem(ctx context.Context, sess *session.Context, productID string) error {
	uid, ok := sess.UID()
	if !ok {
		return ErrNotAuthenticated
	}
	err := s.Carts.Transaction(ctx, func(ctx context.Context, tx *docstore.Txn) error {
		c, err := s.Carts.Read(ctx, tx, uid)
		if err != nil {
			return err
		}
		if _, ok := c.Items[productID]; !ok {
			return nil
		}
		delete(c.Items, productID)
		s.Carts.Write(tx, c)
		return nil
	})
	return wrap("cart.remove", err)
}

// SetQuantity sets the quantity of productID; qty <= 0 removes it.
func (s *CartService) SetQuantity(ctx context.Context, sess *session.Context, productID string, qty int) error {
	uid, ok := sess.UID()
	if !ok {
		return ErrNotAuthenticated
	}
	if qty > 0 {
		if err := s.requireProduct(ctx, productID); err != nil {
			return err
		}
	}
	err := s.Carts.Transaction(ctx, func(ctx context.Context, tx *docstore.Txn) error {
		c, err := s.Carts.Read(ctx, tx, uid)
		if err != nil {
			return err
		}
		cur, present := c.Items[productID]
		switch {
		case qty <= 0 && !present, qty > 0 && cur == qty:
			return nil
		case qty <= 0:
			delete(c.Items, productID)
		default:
			c.Items[productID] = qty
		}
		s.Carts.Write(tx, c)
		return nil
	})
	return wrap("cart.set_qty", err)
}

type LineView struct {
	ProductID string
	Title     string
	ImageURL  string
	Price     string
	Qty       int
	Total     string
}

type CartView struct {
	Lines  []LineView
	Count  int
	Totals pricing.View
}

func (v CartView) Empty() bool { return len(v.Lines) == 0 }

// View prices the caller's cart. Items whose product no longer exists are
// left out of the lines and totals.
func (s *CartService) View(ctx context.Context, sess *session.Context) (CartView, error) {
	uid, ok := sess.UID()
	if !ok {
		return CartView{}, ErrNotAuthenticated
	}
	c, err := s.Carts.Get(ctx, uid)
	if err != nil {
		return CartView{}, wrap("cart.get", err)
	}
	return s.price(ctx, c.Items)
}

func (s *CartService) price(ctx context.Context, items map[string]int) (CartView, error) {
	ids := make([]string, 0, len(items))
	for id := range items {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	prods, err := s.Prods.GetMany(ctx, ids)
	if err != nil {
		return CartView{}, wrap("product.get", err)
	}

	var lines []pricing.Line
	for _, id := range ids {
		p, ok := prods[id]
		if !ok {
			continue
		}
		lines = append(lines, pricing.Line{
			ProductID: id,
			Title:     p.Title,
			ImageURL:  p.ImageURL,
			Price:     decimal.NewFromFloat(p.Price),
			Qty:       items[id],
		})
	}

	v := CartView{Totals: pricing.Compute(lines).View()}
	for _, l := range lines {
		v.Lines = append(v.Lines, LineView{
			ProductID: l.ProductID,
			Title:     l.Title,
			ImageURL:  l.ImageURL,
			Price:     pricing.Money(l.Price),
			Qty:       l.Qty,
			Total:     pricing.Money(l.Total()),
		})
		v.Count += l.Qty
	}
	return v, nil
}
