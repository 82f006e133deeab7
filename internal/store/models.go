package store

import (
	"time"

	"github.com/superlend/liquidation-indexer/internal/domain"
)

// accountRow is the shared shape of the three bucket tables. shopspring's
// decimal.Decimal implements sql.Scanner/driver.Valuer, so GORM persists it
// directly as a DECIMAL column instead of going through a string column.
type accountRow struct {
	ID                       uint `gorm:"primaryKey"`
	UserAddress              string `gorm:"uniqueIndex;size:42;not null"`
	LastUpdatedBlock         uint64
	HealthFactor             domain.Decimal `gorm:"type:decimal(48,18)"`
	TotalCollateralUSD       domain.Decimal `gorm:"type:decimal(48,18)"`
	TotalDebtUSD             domain.Decimal `gorm:"type:decimal(48,18)"`
	LeadingCollateralReserve string         `gorm:"size:42"`
	LeadingDebtReserve       string         `gorm:"size:42"`
	LeadingCollateralValue   domain.Decimal `gorm:"type:decimal(48,18)"`
	LeadingDebtValue         domain.Decimal `gorm:"type:decimal(48,18)"`
	Timestamp                time.Time
}

// liquidatableAccount, atRiskAccount, and healthyAccount are the three
// bucket tables. They share accountRow's fields exactly; only the table
// name differs, matching the spec's "identical shape" requirement.
type liquidatableAccount accountRow

func (liquidatableAccount) TableName() string { return "liquidatable_accounts" }

type atRiskAccount accountRow

func (atRiskAccount) TableName() string { return "at_risk_accounts" }

type healthyAccount accountRow

func (healthyAccount) TableName() string { return "healthy_accounts" }

// positionRow backs the user_debt_collateral table: one row per
// (user, reserve, is_collateral) triple.
type positionRow struct {
	ID           uint           `gorm:"primaryKey"`
	UserAddress  string         `gorm:"uniqueIndex:idx_user_reserve_side;size:42;not null"`
	Reserve      string         `gorm:"uniqueIndex:idx_user_reserve_side;size:42;not null"`
	IsCollateral bool           `gorm:"uniqueIndex:idx_user_reserve_side"`
	Amount       domain.Decimal `gorm:"type:decimal(48,18)"`
}

func (positionRow) TableName() string { return "user_debt_collateral" }

// lastIndexBlockRow is the single-row last-indexed-block table.
type lastIndexBlockRow struct {
	ID        uint `gorm:"primaryKey"`
	LastBlock uint64
}

func (lastIndexBlockRow) TableName() string { return "last_index_block" }

// knownReserveRow tracks which reserves a user has ever been seen against
// (via a Borrow log), independent of whether a position row currently
// exists for that reserve. A freshly enrolled user has entries here before
// they have any position row, which is what lets the refresh loop know
// which reserves to query on the user's first score.
type knownReserveRow struct {
	ID          uint   `gorm:"primaryKey"`
	UserAddress string `gorm:"uniqueIndex:idx_user_known_reserve;size:42;not null"`
	Reserve     string `gorm:"uniqueIndex:idx_user_known_reserve;size:42;not null"`
}

func (knownReserveRow) TableName() string { return "user_known_reserves" }
