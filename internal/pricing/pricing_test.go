package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestComputeTotals(t *testing.T) {
	got := Compute([]Line{
		{ProductID: "p1", Price: decimal.NewFromInt(100), Qty: 2},
		{ProductID: "p2", Price: decimal.NewFromInt(50), Qty: 1},
	})
	if !got.Subtotal.Equal(decimal.NewFromInt(250)) {
		t.Fatalf("subtotal = %s", got.Subtotal)
	}
	v := got.View()
	if v.Taxes != "20.00" || v.Delivery != "20.00" || v.Grand != "290.00" {
		t.Fatalf("unexpected totals %+v", v)
	}
}

func TestComputeAvoidsFloatDrift(t *testing.T) {
	got := Compute([]Line{{Price: decimal.RequireFromString("0.1"), Qty: 3}})
	if got.Subtotal.String() != "0.3" {
		t.Fatalf("subtotal = %s", got.Subtotal)
	}
	if Money(got.Taxes) != "0.02" {
		t.Fatalf("taxes = %s", Money(got.Taxes))
	}
}
