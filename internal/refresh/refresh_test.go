package refresh

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/superlend/liquidation-indexer/internal/chainclient/chainclienttest"
	"github.com/superlend/liquidation-indexer/internal/domain"
	"github.com/superlend/liquidation-indexer/internal/store"
	"github.com/superlend/liquidation-indexer/internal/store/storetest"
)

// scriptedReader returns a pre-programmed (positions, account) pair for a
// user on each call, advancing through a per-user queue so a test can model
// a sequence of re-scores (S2 -> S3 -> S4) across successive ticks.
type scriptedReader struct {
	queue map[domain.Address][]scriptedResult
}

type scriptedResult struct {
	positions []domain.Position
	account   domain.Account
}

func newScriptedReader() *scriptedReader {
	return &scriptedReader{queue: make(map[domain.Address][]scriptedResult)}
}

func (r *scriptedReader) program(user domain.Address, result scriptedResult) {
	r.queue[user] = append(r.queue[user], result)
}

func (r *scriptedReader) Read(ctx context.Context, user domain.Address, knownReserves []domain.Address, block uint64) ([]domain.Position, domain.Account, error) {
	q := r.queue[user]
	if len(q) == 0 {
		return nil, domain.Account{UserAddress: user, HealthFactor: domain.NewFromInt(1000)}, nil
	}
	next := q[0]
	r.queue[user] = q[1:]
	next.account.UserAddress = user
	next.account.LastUpdatedBlock = block
	return next.positions, next.account, nil
}

func mustDecimal(t *testing.T, s string) domain.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func TestRefresh_PlaceholderUpgrade_S2(t *testing.T) {
	user := domain.AddressFromHex("0xAAA0000000000000000000000000000000000A")
	reserve1 := domain.AddressFromHex("0xCAFE000000000000000000000000000000CAFE")
	reserve2 := domain.AddressFromHex("0xBEEF000000000000000000000000000000BEEF")

	st := storetest.New()
	require.NoError(t, st.CommitDiscoveryWindow(context.Background(), 150,
		[]store.Enrollment{{User: user, Reserve: reserve1}}, domain.NewFromInt(1000), time.Now().Add(-2*time.Hour)))

	atRisk := mustDecimal(t, "2.0")
	cap := domain.NewFromInt(1000)

	sr := newScriptedReader()
	sr.program(user, scriptedResult{
		positions: []domain.Position{
			{User: user, Reserve: reserve1, Amount: domain.NewFromInt(1000), IsCollateral: true},
			{User: user, Reserve: reserve2, Amount: domain.NewFromInt(500), IsCollateral: false},
		},
		account: domain.Account{
			HealthFactor:         mustDecimal(t, "1.6"),
			TotalCollateralUSD:   domain.NewFromInt(1000),
			TotalDebtUSD:         domain.NewFromInt(500),
			LeadingCollateralRsv: reserve1,
			LeadingDebtRsv:       reserve2,
			LeadingCollateralUSD: domain.NewFromInt(1000),
			LeadingDebtUSD:       domain.NewFromInt(500),
		},
	})

	fakeChain := chainclienttest.NewFake()
	fakeChain.LatestBlockValue = 160

	loop := New(fakeChain, st, sr, zap.NewNop(), Cadences{
		Liquidatable: 30 * time.Second,
		AtRisk:       120 * time.Second,
		Healthy:      3600 * time.Second,
	}, atRisk, cap)

	require.NoError(t, loop.tick(context.Background()))

	bucket, ok := st.BucketOf(user)
	require.True(t, ok)
	require.Equal(t, domain.AtRisk, bucket)

	acc, ok := st.Account(domain.AtRisk, user)
	require.True(t, ok)
	require.True(t, acc.HealthFactor.Equal(mustDecimal(t, "1.6")))
	require.Equal(t, reserve1, acc.LeadingCollateralRsv)
	require.Equal(t, reserve2, acc.LeadingDebtRsv)
}

func TestRefresh_S3_FallToLiquidatable_And_S4_FullRepayment(t *testing.T) {
	user := domain.AddressFromHex("0xAAA0000000000000000000000000000000000A")
	reserve1 := domain.AddressFromHex("0xCAFE000000000000000000000000000000CAFE")
	reserve2 := domain.AddressFromHex("0xBEEF000000000000000000000000000000BEEF")

	st := storetest.New()
	atRisk := mustDecimal(t, "2.0")
	cap := domain.NewFromInt(1000)

	// Seed S2 state directly: account already at-risk, due for refresh.
	require.NoError(t, st.UpsertAccount(context.Background(), domain.Account{
		UserAddress:          user,
		HealthFactor:         mustDecimal(t, "1.6"),
		TotalCollateralUSD:   domain.NewFromInt(1000),
		TotalDebtUSD:         domain.NewFromInt(500),
		LeadingCollateralRsv: reserve1,
		LeadingDebtRsv:       reserve2,
		Timestamp:            time.Now().Add(-time.Hour),
	}, atRisk))

	sr := newScriptedReader()
	sr.program(user, scriptedResult{
		positions: []domain.Position{
			{User: user, Reserve: reserve1, Amount: domain.NewFromInt(400), IsCollateral: true},
			{User: user, Reserve: reserve2, Amount: domain.NewFromInt(500), IsCollateral: false},
		},
		account: domain.Account{
			HealthFactor:       mustDecimal(t, "0.64"),
			TotalCollateralUSD: domain.NewFromInt(400),
			TotalDebtUSD:       domain.NewFromInt(500),
		},
	})

	fakeChain := chainclienttest.NewFake()
	fakeChain.LatestBlockValue = 200

	loop := New(fakeChain, st, sr, zap.NewNop(), Cadences{
		Liquidatable: 30 * time.Second,
		AtRisk:       120 * time.Second,
		Healthy:      3600 * time.Second,
	}, atRisk, cap)

	require.NoError(t, loop.tick(context.Background()))

	bucket, ok := st.BucketOf(user)
	require.True(t, ok)
	require.Equal(t, domain.Liquidatable, bucket)
	_, stillAtRisk := st.Account(domain.AtRisk, user)
	require.False(t, stillAtRisk)

	// S4: re-score again, this time fully repaid.
	require.NoError(t, st.UpsertAccount(context.Background(), domain.Account{
		UserAddress:  user,
		HealthFactor: mustDecimal(t, "0.64"),
		Timestamp:    time.Now().Add(-time.Hour),
	}, atRisk))

	sr.program(user, scriptedResult{
		positions: []domain.Position{
			{User: user, Reserve: reserve1, Amount: domain.NewFromInt(400), IsCollateral: true},
		},
		account: domain.Account{
			HealthFactor:      cap,
			TotalCollateralUSD: domain.NewFromInt(400),
			TotalDebtUSD:       domain.Zero,
		},
	})

	require.NoError(t, loop.tick(context.Background()))

	bucket, ok = st.BucketOf(user)
	require.True(t, ok)
	require.Equal(t, domain.Healthy, bucket)
	acc, ok := st.Account(domain.Healthy, user)
	require.True(t, ok)
	require.True(t, acc.TotalDebtUSD.IsZero())
	require.Empty(t, acc.LeadingDebtRsv)
}
