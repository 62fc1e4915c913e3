// Package money holds the monetary rounding rules shared by the payroll
// calculator and the finding engine. All amounts are carried as float64 and
// normalized to 2 decimals at every accumulation step.
package money

import "github.com/shopspring/decimal"

// Round2 rounds to 2 decimal places, half away from zero.
func Round2(value float64) float64 {
	rounded, _ := decimal.NewFromFloat(value).Round(2).Float64()
	return rounded
}

// Sum2 adds amounts, rounding after each accumulation step.
func Sum2(amounts ...float64) float64 {
	var total float64
	for _, amount := range amounts {
		total = Round2(total + amount)
	}
	return total
}
