package services

import (
	"context"
	"time"

	"shopfront/internal/docstore"
	"shopfront/internal/domain"
	"shopfront/internal/events"
	applog "shopfront/internal/log"
	"shopfront/internal/repos"
	"shopfront/internal/session"
)

type OrderService struct {
	Carts  *repos.CartRepo
	Orders *repos.OrderRepo
	Cart   *CartService
	Events events.Publisher
}

func NewOrderService(carts *repos.CartRepo, orders *repos.OrderRepo, cart *CartService, pub events.Publisher) *OrderService {
	return &OrderService{Carts: carts, Orders: orders, Cart: cart, Events: pub}
}

// PlaceOrder turns the caller's cart into a confirmed order. Creating the
// order and deleting the cart commit together or not at all.
func (s *OrderService) PlaceOrder(ctx context.Context, sess *session.Context) (string, error) {
	uid, ok := sess.UID()
	if !ok {
		return "", ErrNotAuthenticated
	}

	var (
		orderID string
		items   map[string]int
	)
	err := s.Carts.Transaction(ctx, func(ctx context.Context, tx *docstore.Txn) error {
		c, err := s.Carts.Read(ctx, tx, uid)
		if err != nil {
			return err
		}
		if c.Empty() {
			return ErrEmptyCart
		}
		items = c.Snapshot()
		orderID = s.Orders.Create(tx, uid, items)
		s.Carts.Delete(tx, uid)
		return nil
	})
	if err != nil {
		return "", wrap("order.place", err)
	}

	s.announce(ctx, events.OrderPlaced{
		OrderID:  orderID,
		UserID:   uid,
		Items:    items,
		Status:   domain.OrderStatusConfirmed,
		PlacedAt: time.Now().UTC(),
	})
	return orderID, nil
}

// announce publishes best-effort; the order is already committed.
func (s *OrderService) announce(ctx context.Context, e events.OrderPlaced) {
	if s.Events == nil {
		return
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.Events.OrderPlaced(pctx, e); err != nil {
		applog.Event(applog.LevelWarn, "order.event.fail", err, map[string]any{"order_id": e.OrderID})
	}
}

type OrderView struct {
	ID        string
	Status    string
	CreatedAt time.Time
	CartView
}

// Order returns one of the caller's orders, priced at current product prices.
func (s *OrderService) Order(ctx context.Context, sess *session.Context, id string) (OrderView, error) {
	uid, ok := sess.UID()
	if !ok {
		return OrderView{}, ErrNotAuthenticated
	}
	o, err := s.Orders.Get(ctx, id)
	if notFound(err) {
		return OrderView{}, ErrOrderNotFound
	}
	if err != nil {
		return OrderView{}, wrap("order.get", err)
	}
	if o.UserID != uid {
		return OrderView{}, ErrForbidden
	}
	cv, err := s.Cart.price(ctx, o.Items)
	if err != nil {
		return OrderView{}, err
	}
	return OrderView{ID: o.ID, Status: o.Status, CreatedAt: o.CreatedAt, CartView: cv}, nil
}

type OrderSummary struct {
	ID        string
	Status    string
	CreatedAt time.Time
	Items     int
}

func (s *OrderService) History(ctx context.Context, sess *session.Context) ([]OrderSummary, error) {
	uid, ok := sess.UID()
	if !ok {
		return nil, ErrNotAuthenticated
	}
	orders, err := s.Orders.ListByUser(ctx, uid)
	if err != nil {
		return nil, wrap("order.list", err)
	}
	out := make([]OrderSummary, 0, len(orders))
	for _, o := range orders {
		n := 0
		for _, q := range o.Items {
			n += q
		}
		out = append(out, OrderSummary{ID: o.ID, Status: o.Status, CreatedAt: o.CreatedAt, Items: n})
	}
	return out, nil
}
