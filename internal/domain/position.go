package domain

// Position is a single user/reserve row: either the collateral side or the
// debt side of a reserve, never both in one row. Amount is USD-valued.
type Position struct {
	User         Address
	Reserve      Address
	Amount       Decimal
	IsCollateral bool
}
