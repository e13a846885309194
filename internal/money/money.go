// Package money holds the decimal conventions shared by carts and orders.
//
// Importing it sets decimal.MarshalJSONWithoutQuotes for the whole process,
// so every decimal.Decimal is encoded as a JSON number. cart and orders
// import it directly; anything that encodes their types gets the same shape.
package money

import "github.com/shopspring/decimal"

func init() {
	// prices travel as JSON numbers (14.97), not strings
	decimal.MarshalJSONWithoutQuotes = true
}

// Sum adds vs; the sum of nothing is zero.
func Sum(vs ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range vs {
		total = total.Add(v)
	}
	return total
}

// Fixed2 renders d with exactly two decimals, e.g. "14.97".
func Fixed2(d decimal.Decimal) string { return d.StringFixed(2) }
