package moneymath

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestRoundHalfEven_ExactTies(t *testing.T) {
	cases := []struct {
		in    string
		scale int32
		want  string
	}{
		{"2.5", 0, "2"},
		{"3.5", 0, "4"},
		{"-2.5", 0, "-2"},
		{"0.125", 2, "0.12"},
		{"0.135", 2, "0.14"},
	}

	for _, c := range cases {
		got := RoundHalfEven(decimal.RequireFromString(c.in), c.scale)
		require.Truef(t, got.Equal(decimal.RequireFromString(c.want)),
			"RoundHalfEven(%s, %d) = %s, want %s", c.in, c.scale, got, c.want)
	}
}

func TestRoundHalfEven_NonTies(t *testing.T) {
	got := RoundHalfEven(decimal.RequireFromString("2.751"), 0)
	require.True(t, got.Equal(decimal.NewFromInt(3)))

	got = RoundHalfEven(decimal.RequireFromString("2.249"), 0)
	require.True(t, got.Equal(decimal.NewFromInt(2)))
}

func TestDivHalfEven(t *testing.T) {
	got := DivHalfEven(decimal.NewFromInt(1), decimal.NewFromInt(8), 18)
	want := decimal.RequireFromString("0.125000000000000000")
	require.True(t, got.Equal(want), "got %s want %s", got, want)
}
