package store

import (
	"context"
	"time"

	"github.com/superlend/liquidation-indexer/internal/domain"
)

// BucketStore is the Bucket Store's logical interface: what D, E, and the
// CLI depend on instead of the concrete GORM-backed Store, so tests can
// substitute storetest.Fake.
type BucketStore interface {
	GetLastBlock(ctx context.Context) (uint64, error)
	SetLastBlock(ctx context.Context, n uint64) error
	CommitDiscoveryWindow(ctx context.Context, toBlock uint64, enrollments []Enrollment, capHF domain.Decimal, now time.Time) error
	KnownReserves(ctx context.Context, user domain.Address) ([]domain.Address, error)
	ListDue(ctx context.Context, bucket domain.Bucket, cadence time.Duration, now time.Time) ([]domain.Address, error)
	ListPlaceholders(ctx context.Context, capHF domain.Decimal) ([]domain.Address, error)
	UpsertAccount(ctx context.Context, account domain.Account, atRiskThreshold domain.Decimal) error
	UpsertPositions(ctx context.Context, user domain.Address, rows []domain.Position) error
	ScoreUser(ctx context.Context, user domain.Address, positions []domain.Position, account domain.Account, atRiskThreshold domain.Decimal) error
	Reset(ctx context.Context) error
}

var _ BucketStore = (*Store)(nil)
