// Package storetest provides an in-memory BucketStore fake, grounded on the
// teacher's own sqlmock-backed unit tests but simpler: this package tests
// bucket-assignment and transaction-shaped logic without any SQL driver at
// all, which is enough for the discovery and refresh loops that only
// depend on store.BucketStore's behavior, not its persistence mechanism.
package storetest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/superlend/liquidation-indexer/internal/domain"
	"github.com/superlend/liquidation-indexer/internal/store"
)

// Fake is a mutex-guarded, in-memory BucketStore.
type Fake struct {
	mu sync.Mutex

	lastBlock     uint64
	accounts      map[domain.Bucket]map[domain.Address]domain.Account
	positions     map[domain.Address][]domain.Position
	knownReserves map[domain.Address]map[domain.Address]struct{}

	// SetLastBlockCalls and ScoreUserCalls record call counts for tests
	// that assert on call sequencing.
	SetLastBlockCalls int
	ScoreUserCalls    int
}

// New builds an empty Fake.
func New() *Fake {
	return &Fake{
		accounts: map[domain.Bucket]map[domain.Address]domain.Account{
			domain.Liquidatable: {},
			domain.AtRisk:       {},
			domain.Healthy:      {},
		},
		positions:     make(map[domain.Address][]domain.Position),
		knownReserves: make(map[domain.Address]map[domain.Address]struct{}),
	}
}

func (f *Fake) GetLastBlock(ctx context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastBlock, nil
}

func (f *Fake) SetLastBlock(ctx context.Context, n uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.setLastBlockLocked(n)
}

func (f *Fake) setLastBlockLocked(n uint64) error {
	if n < f.lastBlock {
		return fmt.Errorf("%w: have %d, got %d", store.ErrBlockRegression, f.lastBlock, n)
	}
	f.lastBlock = n
	f.SetLastBlockCalls++
	return nil
}

func (f *Fake) CommitDiscoveryWindow(ctx context.Context, toBlock uint64, enrollments []store.Enrollment, capHF domain.Decimal, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, e := range enrollments {
		if !f.userExistsLocked(e.User) {
			f.accounts[domain.Healthy][e.User] = domain.Placeholder(e.User, capHF, now)
		}
		if f.knownReserves[e.User] == nil {
			f.knownReserves[e.User] = make(map[domain.Address]struct{})
		}
		f.knownReserves[e.User][e.Reserve] = struct{}{}
	}
	return f.setLastBlockLocked(toBlock)
}

func (f *Fake) userExistsLocked(user domain.Address) bool {
	for _, bucket := range domain.Buckets() {
		if _, ok := f.accounts[bucket][user]; ok {
			return true
		}
	}
	return false
}

func (f *Fake) KnownReserves(ctx context.Context, user domain.Address) ([]domain.Address, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	set := f.knownReserves[user]
	out := make([]domain.Address, 0, len(set))
	for r := range set {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (f *Fake) ListDue(ctx context.Context, bucket domain.Bucket, cadence time.Duration, now time.Time) ([]domain.Address, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	cutoff := now.Add(-cadence)
	var out []domain.Address
	for addr, acc := range f.accounts[bucket] {
		if !acc.Timestamp.After(cutoff) {
			out = append(out, addr)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (f *Fake) ListPlaceholders(ctx context.Context, capHF domain.Decimal) ([]domain.Address, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []domain.Address
	for _, bucket := range domain.Buckets() {
		for addr, acc := range f.accounts[bucket] {
			if acc.IsPlaceholder(capHF) {
				out = append(out, addr)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (f *Fake) UpsertAccount(ctx context.Context, account domain.Account, atRiskThreshold domain.Decimal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.upsertAccountLocked(account, atRiskThreshold)
}

func (f *Fake) upsertAccountLocked(account domain.Account, atRiskThreshold domain.Decimal) error {
	target := account.Bucket(atRiskThreshold)
	for _, bucket := range domain.Buckets() {
		if bucket != target {
			delete(f.accounts[bucket], account.UserAddress)
		}
	}
	f.accounts[target][account.UserAddress] = account
	return nil
}

func (f *Fake) UpsertPositions(ctx context.Context, user domain.Address, rows []domain.Position) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.positions[user] = append([]domain.Position(nil), rows...)
	return nil
}

func (f *Fake) ScoreUser(ctx context.Context, user domain.Address, positions []domain.Position, account domain.Account, atRiskThreshold domain.Decimal) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.positions[user] = append([]domain.Position(nil), positions...)
	f.ScoreUserCalls++
	return f.upsertAccountLocked(account, atRiskThreshold)
}

func (f *Fake) Reset(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.lastBlock = 0
	f.accounts = map[domain.Bucket]map[domain.Address]domain.Account{
		domain.Liquidatable: {},
		domain.AtRisk:       {},
		domain.Healthy:      {},
	}
	f.positions = make(map[domain.Address][]domain.Position)
	f.knownReserves = make(map[domain.Address]map[domain.Address]struct{})
	return nil
}

// BucketOf reports which bucket user currently sits in, for test
// assertions. The second return is false if the user is in no bucket.
func (f *Fake) BucketOf(user domain.Address) (domain.Bucket, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, bucket := range domain.Buckets() {
		if _, ok := f.accounts[bucket][user]; ok {
			return bucket, true
		}
	}
	return "", false
}

// Account returns the stored account record for user in bucket, if present.
func (f *Fake) Account(bucket domain.Bucket, user domain.Address) (domain.Account, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	acc, ok := f.accounts[bucket][user]
	return acc, ok
}
