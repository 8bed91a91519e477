package domain

import "time"

type Product struct {
	ID          string    `json:"-"`
	Title       string    `json:"title"`
	Price       float64   `json:"price"`
	Category    string    `json:"category"`
	ImageURL    string    `json:"imageUrl"`
	Description string    `json:"description"`
	Published   bool      `json:"published"`
	CreatedBy   string    `json:"createdBy"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Cart is the per-user document carts/<uid>. Exists is false when no
// document is stored; such a cart reads as empty.
type Cart struct {
	UserID string         `json:"-"`
	Exists bool           `json:"-"`
	Items  map[string]int `json:"items"`
}

func (c Cart) Empty() bool { return len(c.Items) == 0 }

// Add increments productID by qty, removing the entry if it drops to zero or below.
func (c *Cart) Add(productID string, qty int) {
	if c.Items == nil {
		c.Items = map[string]int{}
	}
	n := c.Items[productID] + qty
	if n <= 0 {
		delete(c.Items, productID)
		return
	}
	c.Items[productID] = n
}

// Snapshot returns a copy of the items safe to store in an order.
func (c Cart) Snapshot() map[string]int {
	out := make(map[string]int, len(c.Items))
	for id, q := range c.Items {
		if q > 0 {
			out[id] = q
		}
	}
	return out
}

const OrderStatusConfirmed = "confirmed"

type Order struct {
	ID        string         `json:"-"`
	UserID    string         `json:"userId"`
	Items     map[string]int `json:"items"`
	CreatedAt time.Time      `json:"createdAt"`
	Status    string         `json:"status"`
}
