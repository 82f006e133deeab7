package domain

import "time"

// Account is the per-user record stored in exactly one bucket table.
type Account struct {
	UserAddress           Address
	LastUpdatedBlock      uint64
	HealthFactor          Decimal
	TotalCollateralUSD    Decimal
	TotalDebtUSD          Decimal
	LeadingCollateralRsv  Address
	LeadingDebtRsv        Address
	LeadingCollateralUSD  Decimal
	LeadingDebtUSD        Decimal
	Timestamp             time.Time
}

// Placeholder builds the enrollment-time account record: cap health factor,
// zeroed totals, no leading reserves, block 0 so the refresh loop's
// placeholder-upgrade rule can find it regardless of cadence.
func Placeholder(user Address, cap Decimal, now time.Time) Account {
	return Account{
		UserAddress:        user,
		LastUpdatedBlock:   0,
		HealthFactor:       cap,
		TotalCollateralUSD: Zero,
		TotalDebtUSD:       Zero,
		Timestamp:          now,
	}
}

// IsPlaceholder reports whether this account has never been scored, per the
// refresh loop's placeholder-upgrade rule.
func (a Account) IsPlaceholder(cap Decimal) bool {
	return a.LastUpdatedBlock == 0 && a.HealthFactor.Equal(cap)
}

// Bucket derives the account's bucket from its health factor alone.
func (a Account) Bucket(atRiskThreshold Decimal) Bucket {
	return AssignBucket(a.HealthFactor, atRiskThreshold)
}
