package domain

import "github.com/shopspring/decimal"

// Decimal is the fixed-precision type used for every amount, price, and
// health-factor value in the system. Never float64.
type Decimal = decimal.Decimal

// NewFromInt builds a Decimal from a plain integer, e.g. the "1.0" boundary
// in the bucket assignment rule.
func NewFromInt(v int64) Decimal {
	return decimal.NewFromInt(v)
}

// Zero is the additive identity, used throughout as the placeholder value
// for a freshly enrolled user's totals.
var Zero = decimal.Zero
