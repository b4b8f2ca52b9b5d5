package provider

import "github.com/shopspring/decimal"

// floatOf converts an optional decimal to float64, 0 when absent.
func floatOf(d *decimal.Decimal) float64 {
	if d == nil {
		return 0
	}
	f, _ := d.Float64()
	return f
}

// supplyFrom derives circulating supply as valuation / price.
// Returns 0 when either side is not positive.
func supplyFrom(valuation float64, price decimal.Decimal) float64 {
	if valuation <= 0 || !price.IsPositive() {
		return 0
	}
	s, _ := decimal.NewFromFloat(valuation).Div(price).Float64()
	return s
}
