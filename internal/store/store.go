// Package store implements the Bucket Store: the durable, transactional
// home for the three risk buckets, each user's position rows, their known
// reserve set, and the last-indexed block. Grounded on the teacher's own
// internal/db persistence pattern: a single *gorm.DB handle, AutoMigrate at
// startup, every mutating operation scoped to its own transaction.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/superlend/liquidation-indexer/internal/domain"
)

// ErrStoreFault wraps any error originating below the GORM/SQL layer:
// constraint violations, lost connections, anything the supervisor should
// treat as fatal rather than per-user.
var ErrStoreFault = errors.New("store: fault")

// ErrBlockRegression is returned by SetLastBlock when the candidate block
// is behind the currently stored one, enforcing invariant 3.
var ErrBlockRegression = errors.New("store: last_block may not decrease")

const lastIndexBlockSingletonID = 1

// Store is the Bucket Store (C).
type Store struct {
	db *gorm.DB
}

// Open dials a MySQL database via the given DSN and runs AutoMigrate for
// all six backing tables (the five from the logical schema, plus the known
// reserves bookkeeping table the system needs to implement known_reserves).
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("store: open: %w: %v", ErrStoreFault, err)
	}

	if err := db.AutoMigrate(
		&liquidatableAccount{},
		&atRiskAccount{},
		&healthyAccount{},
		&positionRow{},
		&lastIndexBlockRow{},
		&knownReserveRow{},
	); err != nil {
		return nil, fmt.Errorf("store: automigrate: %w: %v", ErrStoreFault, err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("store: close: %w: %v", ErrStoreFault, err)
	}
	return sqlDB.Close()
}

// SetConnPool bounds the shared connection pool, matching the spec's
// "DB connection pool is shared" resource model.
func (s *Store) SetConnPool(maxOpen, maxIdle int) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("store: conn pool: %w: %v", ErrStoreFault, err)
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxIdle)
	return nil
}

// GetLastBlock returns the single scalar last-indexed block, 0 if the store
// has never indexed anything.
func (s *Store) GetLastBlock(ctx context.Context) (uint64, error) {
	var row lastIndexBlockRow
	err := s.db.WithContext(ctx).FirstOrCreate(&row, lastIndexBlockRow{ID: lastIndexBlockSingletonID}).Error
	if err != nil {
		return 0, fmt.Errorf("store: get last block: %w: %v", ErrStoreFault, err)
	}
	return row.LastBlock, nil
}

// SetLastBlock advances the last-indexed block. Attempts to move it
// backward are rejected, enforcing invariant 3.
func (s *Store) SetLastBlock(ctx context.Context, n uint64) error {
	return s.withTx(ctx, func(tx *gorm.DB) error {
		return setLastBlockTx(tx, n)
	})
}

func setLastBlockTx(tx *gorm.DB, n uint64) error {
	var row lastIndexBlockRow
	if err := tx.FirstOrCreate(&row, lastIndexBlockRow{ID: lastIndexBlockSingletonID}).Error; err != nil {
		return fmt.Errorf("%w: %v", ErrStoreFault, err)
	}
	if n < row.LastBlock {
		return fmt.Errorf("%w: have %d, got %d", ErrBlockRegression, row.LastBlock, n)
	}
	if err := tx.Model(&lastIndexBlockRow{}).Where("id = ?", lastIndexBlockSingletonID).Update("last_block", n).Error; err != nil {
		return fmt.Errorf("%w: %v", ErrStoreFault, err)
	}
	return nil
}

// Enrollment is one (user, reserve) pair discovered in a Borrow log.
type Enrollment struct {
	User    domain.Address
	Reserve domain.Address
}

// CommitDiscoveryWindow atomically enrolls every user in enrollments,
// records their known reserves, and advances last_block to toBlock — all
// in one transaction, matching the spec's requirement that D's window
// commit (enrollments + set_last_block) be indivisible.
func (s *Store) CommitDiscoveryWindow(ctx context.Context, toBlock uint64, enrollments []Enrollment, capHF domain.Decimal, now time.Time) error {
	return s.withTx(ctx, func(tx *gorm.DB) error {
		for _, e := range enrollments {
			if err := enrollUserTx(tx, e.User, capHF, now); err != nil {
				return err
			}
			if err := recordKnownReserveTx(tx, e.User, e.Reserve); err != nil {
				return err
			}
		}
		return setLastBlockTx(tx, toBlock)
	})
}

// enrollUserTx is idempotent: if user already exists in any bucket, it is a
// no-op; otherwise a placeholder account is inserted into healthy.
func enrollUserTx(tx *gorm.DB, user domain.Address, capHF domain.Decimal, now time.Time) error {
	exists, err := userExistsTx(tx, user)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	placeholder := domain.Placeholder(user, capHF, now)
	row := accountToHealthyRow(placeholder)
	if err := tx.Where(healthyAccount{UserAddress: string(user)}).FirstOrCreate(&row).Error; err != nil {
		return fmt.Errorf("%w: %v", ErrStoreFault, err)
	}
	return nil
}

func recordKnownReserveTx(tx *gorm.DB, user, reserve domain.Address) error {
	row := knownReserveRow{UserAddress: string(user), Reserve: string(reserve)}
	err := tx.Where(knownReserveRow{UserAddress: string(user), Reserve: string(reserve)}).FirstOrCreate(&row).Error
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreFault, err)
	}
	return nil
}

func userExistsTx(tx *gorm.DB, user domain.Address) (bool, error) {
	for _, table := range []string{liquidatableAccount{}.TableName(), atRiskAccount{}.TableName(), healthyAccount{}.TableName()} {
		var count int64
		if err := tx.Table(table).Where("user_address = ?", string(user)).Count(&count).Error; err != nil {
			return false, fmt.Errorf("%w: %v", ErrStoreFault, err)
		}
		if count > 0 {
			return true, nil
		}
	}
	return false, nil
}

// KnownReserves returns the union of reserves ever seen for user.
func (s *Store) KnownReserves(ctx context.Context, user domain.Address) ([]domain.Address, error) {
	var rows []knownReserveRow
	err := s.db.WithContext(ctx).Where("user_address = ?", string(user)).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("store: known reserves: %w: %v", ErrStoreFault, err)
	}
	out := make([]domain.Address, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.Address(r.Reserve))
	}
	return out, nil
}

// ListDue returns users in bucket whose timestamp + cadence <= now.
func (s *Store) ListDue(ctx context.Context, bucket domain.Bucket, cadence time.Duration, now time.Time) ([]domain.Address, error) {
	cutoff := now.Add(-cadence)
	var rows []accountRow
	err := s.db.WithContext(ctx).Table(bucket.Table()).Where("timestamp <= ?", cutoff).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("store: list due %s: %w: %v", bucket, ErrStoreFault, err)
	}
	return addressesOf(rows), nil
}

// ListPlaceholders returns every user across all buckets whose account is
// still the enrollment placeholder (health_factor == cap, block == 0),
// regardless of cadence — the refresh loop's placeholder-upgrade rule.
func (s *Store) ListPlaceholders(ctx context.Context, capHF domain.Decimal) ([]domain.Address, error) {
	var out []domain.Address
	for _, bucket := range domain.Buckets() {
		var rows []accountRow
		err := s.db.WithContext(ctx).Table(bucket.Table()).
			Where("last_updated_block = 0 AND health_factor = ?", capHF).Find(&rows).Error
		if err != nil {
			return nil, fmt.Errorf("store: list placeholders %s: %w: %v", bucket, ErrStoreFault, err)
		}
		out = append(out, addressesOf(rows)...)
	}
	return out, nil
}

func addressesOf(rows []accountRow) []domain.Address {
	out := make([]domain.Address, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.Address(r.UserAddress))
	}
	return out
}

// UpsertAccount writes record into the bucket its health factor assigns it
// to, removing any prior row for the same user in the other two buckets,
// all within one transaction — the single operation that moves a user
// between buckets.
func (s *Store) UpsertAccount(ctx context.Context, account domain.Account, atRiskThreshold domain.Decimal) error {
	return s.withTx(ctx, func(tx *gorm.DB) error {
		return upsertAccountTx(tx, account, atRiskThreshold)
	})
}

func upsertAccountTx(tx *gorm.DB, account domain.Account, atRiskThreshold domain.Decimal) error {
	target := account.Bucket(atRiskThreshold)

	for _, bucket := range domain.Buckets() {
		if bucket == target {
			continue
		}
		if err := tx.Table(bucket.Table()).Where("user_address = ?", string(account.UserAddress)).Delete(&accountRow{}).Error; err != nil {
			return fmt.Errorf("%w: %v", ErrStoreFault, err)
		}
	}

	row := accountRowFrom(account)
	err := tx.Table(target.Table()).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_address"}},
			UpdateAll: true,
		}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreFault, err)
	}
	return nil
}

// UpsertPositions replaces all position rows for user with rows, in one
// transaction — a full replacement, never an incremental diff.
func (s *Store) UpsertPositions(ctx context.Context, user domain.Address, rows []domain.Position) error {
	return s.withTx(ctx, func(tx *gorm.DB) error {
		return upsertPositionsTx(tx, user, rows)
	})
}

func upsertPositionsTx(tx *gorm.DB, user domain.Address, rows []domain.Position) error {
	if err := tx.Where("user_address = ?", string(user)).Delete(&positionRow{}).Error; err != nil {
		return fmt.Errorf("%w: %v", ErrStoreFault, err)
	}
	if len(rows) == 0 {
		return nil
	}

	models := make([]positionRow, 0, len(rows))
	for _, p := range rows {
		models = append(models, positionRow{
			UserAddress:  string(p.User),
			Reserve:      string(p.Reserve),
			IsCollateral: p.IsCollateral,
			Amount:       p.Amount,
		})
	}
	if err := tx.Create(&models).Error; err != nil {
		return fmt.Errorf("%w: %v", ErrStoreFault, err)
	}
	return nil
}

// ScoreUser writes a fresh position set and the resulting account record
// atomically, so no reader ever observes rows that disagree with the
// user's bucket.
func (s *Store) ScoreUser(ctx context.Context, user domain.Address, positions []domain.Position, account domain.Account, atRiskThreshold domain.Decimal) error {
	return s.withTx(ctx, func(tx *gorm.DB) error {
		if err := upsertPositionsTx(tx, user, positions); err != nil {
			return err
		}
		return upsertAccountTx(tx, account, atRiskThreshold)
	})
}

// Reset wipes all six tables, backing the CLI's `reset` subcommand.
func (s *Store) Reset(ctx context.Context) error {
	return s.withTx(ctx, func(tx *gorm.DB) error {
		tables := []string{
			liquidatableAccount{}.TableName(),
			atRiskAccount{}.TableName(),
			healthyAccount{}.TableName(),
			positionRow{}.TableName(),
			knownReserveRow{}.TableName(),
			lastIndexBlockRow{}.TableName(),
		}
		for _, table := range tables {
			if err := tx.Exec(fmt.Sprintf("DELETE FROM %s", table)).Error; err != nil {
				return fmt.Errorf("%w: %v", ErrStoreFault, err)
			}
		}
		return nil
	})
}

func (s *Store) withTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	err := s.db.WithContext(ctx).Transaction(fn)
	if err != nil && !errors.Is(err, ErrStoreFault) && !errors.Is(err, ErrBlockRegression) {
		return fmt.Errorf("%w: %v", ErrStoreFault, err)
	}
	return err
}

func accountToHealthyRow(a domain.Account) healthyAccount {
	return healthyAccount(accountRowFrom(a))
}

func accountRowFrom(a domain.Account) accountRow {
	return accountRow{
		UserAddress:              string(a.UserAddress),
		LastUpdatedBlock:         a.LastUpdatedBlock,
		HealthFactor:             a.HealthFactor,
		TotalCollateralUSD:       a.TotalCollateralUSD,
		TotalDebtUSD:             a.TotalDebtUSD,
		LeadingCollateralReserve: string(a.LeadingCollateralRsv),
		LeadingDebtReserve:       string(a.LeadingDebtRsv),
		LeadingCollateralValue:  a.LeadingCollateralUSD,
		LeadingDebtValue:        a.LeadingDebtUSD,
		Timestamp:                a.Timestamp,
	}
}
