package invoice

// CalculateTotals derives subtotal, tax and total from line items. Pure and
// deterministic; an empty sequence yields all zeros. Sums keep full float
// precision; currency rounding happens only at presentation time.
func CalculateTotals(items []LineItem) Totals {
	var t Totals
	for _, item := range items {
		lineSubtotal := item.Quantity * item.UnitPrice
		lineTax := lineSubtotal * item.TaxRate / 100
		t.Subtotal += lineSubtotal
		t.Tax += lineTax
	}
	t.Total = t.Subtotal + t.Tax
	return t
}
