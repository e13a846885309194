package discount

import "github.com/shopspring/decimal"

// Tier gives PercentOff once a cart holds at least Items entries.
type Tier struct {
	Items      int
	PercentOff int
}

// thresholds must stay strictly increasing
var tiers = []Tier{
	{Items: 2, PercentOff: 3},
	{Items: 5, PercentOff: 5},
	{Items: 10, PercentOff: 7},
	{Items: 15, PercentOff: 10},
}

// Tiers returns a copy of the discount table.
func Tiers() []Tier {
	out := make([]Tier, len(tiers))
	copy(out, tiers)
	return out
}

// For returns the percent off for a cart of count items: the last tier whose
// threshold is <= count, or 0 below the first tier.
func For(count int) int {
	pct := 0
	for _, t := range tiers {
		if count >= t.Items {
			pct = t.PercentOff
		}
	}
	return pct
}

// Apply returns total × (1 − For(count)/100) without rounding.
func Apply(total decimal.Decimal, count int) decimal.Decimal {
	pct := For(count)
	if pct == 0 {
		return total
	}
	factor := decimal.NewFromInt(100 - int64(pct)).Div(decimal.NewFromInt(100))
	return total.Mul(factor)
}
