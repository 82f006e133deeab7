// Package discovery implements the tailing loop that turns Borrow logs into
// enrolled users: it never scores anyone, it only grows the known-user and
// known-reserve sets and advances the last-indexed block.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/superlend/liquidation-indexer/internal/chainclient"
	"github.com/superlend/liquidation-indexer/internal/domain"
	"github.com/superlend/liquidation-indexer/internal/store"
)

// BorrowTopic0 is the Borrow(address indexed reserve, address user, address
// indexed onBehalfOf, uint256 amount, uint8 interestRateMode, uint256
// borrowRate, uint16 indexed referralCode) event signature hash.
var BorrowTopic0 = common.HexToHash("0xb3d084820fb1a9decffb176436bd02558d15fac9b0ddfed8c465bc7359d7dce0")

// idleInterval is how long the loop sleeps when it is caught up with the
// chain head before checking again.
const idleInterval = 3 * time.Second

// Loop tails Borrow logs and enrolls users window by window.
type Loop struct {
	chain chainclient.ChainClient
	store store.BucketStore
	log   *zap.Logger

	poolAddress   common.Address
	startBlock    uint64
	logPerRequest uint64
	safety        uint64
	maxOutOfSync  uint64
	maxCapOnHF    domain.Decimal

	// sleep is overridable in tests so a loop iteration never actually
	// blocks a test goroutine for idleInterval.
	sleep func(time.Duration)
}

// Config collects the knobs discovery needs out of internal/config.Config,
// kept narrow so this package doesn't depend on the config package itself.
type Config struct {
	PoolAddress       common.Address
	StartBlock        uint64
	LogPerRequest     uint64
	Safety            uint64
	MaxBlockOutOfSync uint64
	MaxCapOnHF        domain.Decimal
}

// New builds a discovery Loop.
func New(chain chainclient.ChainClient, st store.BucketStore, log *zap.Logger, cfg Config) *Loop {
	logPerRequest := cfg.LogPerRequest
	if logPerRequest == 0 {
		logPerRequest = 2000
	}
	return &Loop{
		chain:         chain,
		store:         st,
		log:           log,
		poolAddress:   cfg.PoolAddress,
		startBlock:    cfg.StartBlock,
		logPerRequest: logPerRequest,
		safety:        cfg.Safety,
		maxOutOfSync:  cfg.MaxBlockOutOfSync,
		maxCapOnHF:    cfg.MaxCapOnHF,
		sleep:         time.Sleep,
	}
}

// Run loops until ctx is cancelled, returning the cancellation error (or a
// store fault) so the supervisor can tell a clean shutdown from a crash.
func (l *Loop) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := l.tick(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if isFatal(err) {
				return fmt.Errorf("discovery: %w", err)
			}
			l.log.Error("discovery tick failed, will retry", zap.Error(err))
			l.sleep(idleInterval)
		}
	}
}

// tick runs one iteration of the discovery algorithm. A nil error with no
// work done (caught up with head) is the normal idle path.
func (l *Loop) tick(ctx context.Context) error {
	head, err := l.chain.LatestBlock(ctx)
	if err != nil {
		return fmt.Errorf("latest block: %w", err)
	}

	last, err := l.store.GetLastBlock(ctx)
	if err != nil {
		return fmt.Errorf("get last block: %w", err)
	}

	from := last + 1
	if last == 0 && l.startBlock > 0 {
		from = l.startBlock
	}
	if from > head {
		l.sleep(idleInterval)
		return nil
	}

	if l.maxOutOfSync > 0 && head-last > l.maxOutOfSync {
		l.log.Warn("indexer is behind chain head past the alerting bound",
			zap.Uint64("head", head), zap.Uint64("last_block", last), zap.Uint64("max_block_out_of_sync", l.maxOutOfSync))
	}

	window := l.logPerRequest
	for {
		to := from + window - 1
		if head >= l.safety && to > head-l.safety {
			to = head - l.safety
		}
		if to < from {
			return nil
		}

		logs, err := l.chain.GetLogs(ctx, from, to, BorrowTopic0, l.poolAddress)
		if err != nil {
			if errors.Is(err, chainclient.ErrRangeTooLarge) {
				window = window / 2
				if window == 0 {
					window = 1
				}
				l.log.Warn("shrinking discovery window after range-too-large", zap.Uint64("new_window", window))
				continue
			}
			return fmt.Errorf("get logs [%d,%d]: %w", from, to, err)
		}

		enrollments, err := decodeEnrollments(logs)
		if err != nil {
			return fmt.Errorf("decode borrow logs: %w", err)
		}

		if err := l.store.CommitDiscoveryWindow(ctx, to, enrollments, l.maxCapOnHF, time.Now()); err != nil {
			return fmt.Errorf("commit window [%d,%d]: %w", from, to, err)
		}

		l.log.Info("discovery window committed",
			zap.Uint64("from", from), zap.Uint64("to", to), zap.Int("enrollments", len(enrollments)))
		return nil
	}
}

// decodeEnrollments extracts (onBehalfOf, reserve) pairs from raw Borrow
// logs. reserve is topic[1] (the first indexed parameter); onBehalfOf is
// topic[2] (the second indexed parameter, per the event signature in which
// the non-indexed `user` sits between them in the ABI but not in topics).
func decodeEnrollments(logs []types.Log) ([]store.Enrollment, error) {
	out := make([]store.Enrollment, 0, len(logs))
	for _, lg := range logs {
		if len(lg.Topics) < 3 {
			return nil, fmt.Errorf("borrow log at block %d has %d topics, want at least 3", lg.BlockNumber, len(lg.Topics))
		}
		reserve := domain.NewAddress(common.BytesToAddress(lg.Topics[1].Bytes()))
		onBehalfOf := domain.NewAddress(common.BytesToAddress(lg.Topics[2].Bytes()))
		out = append(out, store.Enrollment{User: onBehalfOf, Reserve: reserve})
	}
	return out, nil
}

// isFatal reports whether err should stop the loop entirely rather than be
// retried after a sleep. Discovery treats only store faults as fatal;
// chain-side failures (transient or permanent) are retried indefinitely
// since a stalled RPC provider is not a reason to crash the process.
func isFatal(err error) bool {
	return errors.Is(err, store.ErrStoreFault)
}
