package discovery

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/superlend/liquidation-indexer/internal/chainclient"
	"github.com/superlend/liquidation-indexer/internal/chainclient/chainclienttest"
	"github.com/superlend/liquidation-indexer/internal/domain"
	"github.com/superlend/liquidation-indexer/internal/store/storetest"
)

var (
	poolAddr = common.BigToAddress(big.NewInt(0xC001))
)

func borrowLog(block uint64, reserve, onBehalfOf common.Address) types.Log {
	return types.Log{
		BlockNumber: block,
		Topics: []common.Hash{
			BorrowTopic0,
			common.BytesToHash(reserve.Bytes()),
			common.BytesToHash(onBehalfOf.Bytes()),
		},
	}
}

func noSleep(time.Duration) {}

func TestDiscovery_S1_FirstDiscovery(t *testing.T) {
	reserve1 := common.BigToAddress(big.NewInt(0xCAFE1))
	userAAA := common.BigToAddress(big.NewInt(0xAAA))

	fake := chainclienttest.NewFake()
	fake.LatestBlockValue = 150
	fake.Logs = []types.Log{borrowLog(120, reserve1, userAAA)}

	st := storetest.New()
	loop := New(fake, st, zap.NewNop(), Config{
		PoolAddress:   poolAddr,
		StartBlock:    100,
		LogPerRequest: 2000,
		MaxCapOnHF:    domain.NewFromInt(1000),
	})
	loop.sleep = noSleep

	require.NoError(t, loop.tick(context.Background()))

	last, err := st.GetLastBlock(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(150), last)

	bucket, ok := st.BucketOf(domain.NewAddress(userAAA))
	require.True(t, ok)
	require.Equal(t, domain.Healthy, bucket)

	acc, ok := st.Account(domain.Healthy, domain.NewAddress(userAAA))
	require.True(t, ok)
	require.True(t, acc.HealthFactor.Equal(domain.NewFromInt(1000)))
	require.Equal(t, uint64(0), acc.LastUpdatedBlock)

	reserves, err := st.KnownReserves(context.Background(), domain.NewAddress(userAAA))
	require.NoError(t, err)
	require.Equal(t, []domain.Address{domain.NewAddress(reserve1)}, reserves)
}

// rangeShrinkingFake returns ErrRangeTooLarge for any window wider than its
// threshold and succeeds (with no logs) otherwise, modeling an RPC provider
// that caps eth_getLogs to a fixed number of blocks.
type rangeShrinkingFake struct {
	latest    uint64
	threshold uint64
	calls     []uint64
}

func (f *rangeShrinkingFake) LatestBlock(ctx context.Context) (uint64, error) {
	return f.latest, nil
}

func (f *rangeShrinkingFake) GetLogs(ctx context.Context, from, to uint64, topic0 common.Hash, contract common.Address) ([]types.Log, error) {
	width := to - from + 1
	f.calls = append(f.calls, width)
	if width > f.threshold {
		return nil, chainclient.ErrRangeTooLarge
	}
	return nil, nil
}

func (f *rangeShrinkingFake) CallView(ctx context.Context, contract common.Address, a *abi.ABI, method string, args []interface{}, atBlock uint64) ([]interface{}, error) {
	return nil, nil
}

func TestDiscovery_S5_WindowTooLarge(t *testing.T) {
	fake := &rangeShrinkingFake{latest: 20000, threshold: 5000}
	st := storetest.New()
	loop := New(fake, st, zap.NewNop(), Config{
		PoolAddress:   poolAddr,
		StartBlock:    1,
		LogPerRequest: 10000,
		MaxCapOnHF:    domain.NewFromInt(1000),
	})
	loop.sleep = noSleep

	require.NoError(t, loop.tick(context.Background()))

	last, err := st.GetLastBlock(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(5000), last)
	require.Equal(t, []uint64{10000, 5000}, fake.calls)
}

func TestDiscovery_S6_ReplayIsIdempotent(t *testing.T) {
	reserve1 := common.BigToAddress(big.NewInt(0xCAFE1))
	userAAA := common.BigToAddress(big.NewInt(0xAAA))

	fake := chainclienttest.NewFake()
	fake.LatestBlockValue = 150
	fake.Logs = []types.Log{borrowLog(120, reserve1, userAAA)}

	st := storetest.New()
	loop := New(fake, st, zap.NewNop(), Config{
		PoolAddress:   poolAddr,
		StartBlock:    100,
		LogPerRequest: 2000,
		MaxCapOnHF:    domain.NewFromInt(1000),
	})
	loop.sleep = noSleep

	require.NoError(t, loop.tick(context.Background()))
	firstLast, err := st.GetLastBlock(context.Background())
	require.NoError(t, err)

	// A second tick with the chain head unchanged finds from > head and is a
	// pure no-op: last_block does not move and no user is re-enrolled,
	// matching the idempotence a restart before a commit would also need.
	require.NoError(t, loop.tick(context.Background()))
	secondLast, err := st.GetLastBlock(context.Background())
	require.NoError(t, err)
	require.Equal(t, firstLast, secondLast)

	bucket, ok := st.BucketOf(domain.NewAddress(userAAA))
	require.True(t, ok)
	require.Equal(t, domain.Healthy, bucket)
}
