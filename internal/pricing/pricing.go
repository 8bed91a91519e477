// Package pricing derives the totals shown on cart and order pages.
package pricing

import "github.com/shopspring/decimal"

var (
	TaxRate     = decimal.RequireFromString("0.08")
	DeliveryFee = decimal.NewFromInt(20)
)

type Line struct {
	ProductID string
	Title     string
	ImageURL  string
	Price     decimal.Decimal
	Qty       int
}

func (l Line) Total() decimal.Decimal { return l.Price.Mul(decimal.NewFromInt(int64(l.Qty))) }

type Totals struct {
	Subtotal decimal.Decimal
	Taxes    decimal.Decimal
	Delivery decimal.Decimal
	Grand    decimal.Decimal
}

// Compute sums lines and applies tax and the flat delivery fee. Delivery is
// charged even for an empty list; callers hide totals when nothing is shown.
func Compute(lines []Line) Totals {
	sub := decimal.Zero
	for _, l := range lines {
		sub = sub.Add(l.Total())
	}
	tax := sub.Mul(TaxRate)
	return Totals{
		Subtotal: sub,
		Taxes:    tax,
		Delivery: DeliveryFee,
		Grand:    sub.Add(tax).Add(DeliveryFee),
	}
}

// Money formats d with two decimals.
func Money(d decimal.Decimal) string { return d.StringFixed(2) }

// View is Totals formatted for templates and JSON.
type View struct {
	Subtotal string `json:"subtotal"`
	Taxes    string `json:"taxes"`
	Delivery string `json:"delivery"`
	Grand    string `json:"grand"`
}

func (t Totals) View() View {
	return View{
		Subtotal: Money(t.Subtotal),
		Taxes:    Money(t.Taxes),
		Delivery: Money(t.Delivery),
		Grand:    Money(t.Grand),
	}
}
