package invoice

import "testing"

func TestCalculateTotalsEmpty(t *testing.T) {
	got := CalculateTotals(nil)
	if got.Subtotal != 0 || got.Tax != 0 || got.Total != 0 {
		t.Fatalf("expected zero totals, got %+v", got)
	}
}

func TestCalculateTotals(t *testing.T) {
	got := CalculateTotals([]LineItem{
		{Description: "consulting", Quantity: 2, UnitPrice: 100, TaxRate: 5},
	})
	if got.Subtotal != 200 {
		t.Fatalf("subtotal = %v, want 200", got.Subtotal)
	}
	if got.Tax != 10 {
		t.Fatalf("tax = %v, want 10", got.Tax)
	}
	if got.Total != 210 {
		t.Fatalf("total = %v, want 210", got.Total)
	}
}

func TestCalculateTotalsMultipleItems(t *testing.T) {
	got := CalculateTotals([]LineItem{
		{Description: "design", Quantity: 1, UnitPrice: 500, TaxRate: 0},
		{Description: "hosting", Quantity: 12, UnitPrice: 25, TaxRate: 10},
	})
	if got.Subtotal != 800 {
		t.Fatalf("subtotal = %v, want 800", got.Subtotal)
	}
	if got.Tax != 30 {
		t.Fatalf("tax = %v, want 30", got.Tax)
	}
	if got.Total != 830 {
		t.Fatalf("total = %v, want 830", got.Total)
	}
}
