// Package refresh implements the periodic re-scoring loop: it never
// discovers new users, it only re-reads positions for users the discovery
// loop has already enrolled and re-buckets them.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/superlend/liquidation-indexer/internal/chainclient"
	"github.com/superlend/liquidation-indexer/internal/domain"
	"github.com/superlend/liquidation-indexer/internal/store"
)

// reader is the subset of position.Reader the loop depends on, so tests can
// substitute a scriptable fake instead of wiring a real chain client.
type reader interface {
	Read(ctx context.Context, user domain.Address, knownReserves []domain.Address, block uint64) ([]domain.Position, domain.Account, error)
}

// tickInterval is how often the loop evaluates due users. The spec calls
// for "executed frequently, e.g. every second" since the bucket cadences
// themselves (30s/120s/3600s) are what actually throttles work.
const tickInterval = time.Second

// concurrencyLimit bounds simultaneous in-flight per-user scorings.
const concurrencyLimit = 16

// Cadences holds the three independent per-bucket re-score frequencies.
type Cadences struct {
	Liquidatable time.Duration
	AtRisk       time.Duration
	Healthy      time.Duration
}

func (c Cadences) forBucket(b domain.Bucket) time.Duration {
	switch b {
	case domain.Liquidatable:
		return c.Liquidatable
	case domain.AtRisk:
		return c.AtRisk
	default:
		return c.Healthy
	}
}

// Loop re-scores users due for refresh, bucket by bucket in risk order.
type Loop struct {
	chain chainclient.ChainClient
	store store.BucketStore
	score reader
	log   *zap.Logger

	cadences        Cadences
	atRiskThreshold domain.Decimal
	maxCapOnHF      domain.Decimal

	sleep func(time.Duration)
}

// New builds a refresh Loop.
func New(chain chainclient.ChainClient, st store.BucketStore, score reader, log *zap.Logger, cadences Cadences, atRiskThreshold, maxCapOnHF domain.Decimal) *Loop {
	return &Loop{
		chain:           chain,
		store:           st,
		score:           score,
		log:             log,
		cadences:        cadences,
		atRiskThreshold: atRiskThreshold,
		maxCapOnHF:      maxCapOnHF,
		sleep:           time.Sleep,
	}
}

// Run loops until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := l.tick(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, store.ErrStoreFault) {
				return fmt.Errorf("refresh: %w", err)
			}
			l.log.Error("refresh tick failed, will retry", zap.Error(err))
		}
		l.sleep(tickInterval)
	}
}

// tick performs one pass: read the chain head, collect due users per
// bucket in risk order plus any unscored placeholders, and score them
// under a bounded concurrency limit.
func (l *Loop) tick(ctx context.Context) error {
	block, err := l.chain.LatestBlock(ctx)
	if err != nil {
		return fmt.Errorf("latest block: %w", err)
	}

	now := time.Now()
	placeholders, err := l.store.ListPlaceholders(ctx, l.maxCapOnHF)
	if err != nil {
		return fmt.Errorf("list placeholders: %w", err)
	}
	placeholderSet := make(map[domain.Address]bool, len(placeholders))
	for _, u := range placeholders {
		placeholderSet[u] = true
	}

	for _, bucket := range domain.Buckets() {
		due, err := l.store.ListDue(ctx, bucket, l.cadences.forBucket(bucket), now)
		if err != nil {
			return fmt.Errorf("list due %s: %w", bucket, err)
		}

		users := due
		for u := range placeholderSet {
			if !containsAddress(users, u) {
				users = append(users, u)
			}
		}
		for _, u := range users {
			delete(placeholderSet, u)
		}

		if err := l.scoreAll(ctx, users, block); err != nil {
			return err
		}
	}
	return nil
}

// scoreAll scores users concurrently, bounded by concurrencyLimit. A single
// user's failure does not abort the others; only a store fault propagates.
func (l *Loop) scoreAll(ctx context.Context, users []domain.Address, block uint64) error {
	if len(users) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrencyLimit)

	for _, user := range users {
		user := user
		g.Go(func() error {
			if err := l.scoreOne(gctx, user, block); err != nil {
				if errors.Is(err, store.ErrStoreFault) {
					return err
				}
				l.log.Error("scoring user failed, will retry next cycle", zap.String("user", user.String()), zap.Error(err))
			}
			return nil
		})
	}
	return g.Wait()
}

// scoreOne re-reads one user's position and atomically writes it back.
func (l *Loop) scoreOne(ctx context.Context, user domain.Address, block uint64) error {
	reserves, err := l.store.KnownReserves(ctx, user)
	if err != nil {
		return fmt.Errorf("known reserves for %s: %w", user, err)
	}

	positions, account, err := l.score.Read(ctx, user, reserves, block)
	if err != nil {
		return fmt.Errorf("score %s: %w", user, err)
	}
	account.Timestamp = time.Now()

	if err := l.store.ScoreUser(ctx, user, positions, account, l.atRiskThreshold); err != nil {
		return fmt.Errorf("persist score for %s: %w", user, err)
	}
	return nil
}

func containsAddress(list []domain.Address, target domain.Address) bool {
	for _, a := range list {
		if a == target {
			return true
		}
	}
	return false
}
