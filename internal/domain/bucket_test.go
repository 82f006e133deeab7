package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestAssignBucket_Boundaries(t *testing.T) {
	atRisk := decimal.RequireFromString("1.5")

	cases := []struct {
		name string
		hf   decimal.Decimal
		want Bucket
	}{
		{"just below one", decimal.RequireFromString("0.999999999999999999"), Liquidatable},
		{"exactly one", decimal.RequireFromString("1.0"), AtRisk},
		{"exactly at_risk_threshold", atRisk, AtRisk},
		{"just above at_risk_threshold", decimal.RequireFromString("1.500000000000000001"), Healthy},
	}

	for _, c := range cases {
		got := AssignBucket(c.hf, atRisk)
		require.Equalf(t, c.want, got, "AssignBucket(%s, %s) = %s, want %s", c.hf, atRisk, got, c.want)
	}
}
