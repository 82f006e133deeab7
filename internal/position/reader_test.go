package position

import (
	"context"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/superlend/liquidation-indexer/internal/chainclient/chainclienttest"
	"github.com/superlend/liquidation-indexer/internal/domain"
)

const dataProviderABI = `[
{"name":"getUserReserveData","type":"function","constant":true,
 "inputs":[{"name":"asset","type":"address"},{"name":"user","type":"address"}],
 "outputs":[
   {"name":"currentATokenBalance","type":"uint256"},
   {"name":"currentStableDebt","type":"uint256"},
   {"name":"currentVariableDebt","type":"uint256"}
 ]},
{"name":"getReserveConfigurationData","type":"function","constant":true,
 "inputs":[{"name":"asset","type":"address"}],
 "outputs":[
   {"name":"decimals","type":"uint256"},
   {"name":"ltv","type":"uint256"},
   {"name":"liquidationThreshold","type":"uint256"}
 ]}
]`

const priceOracleABI = `[
{"name":"getAssetPrice","type":"function","constant":true,
 "inputs":[{"name":"asset","type":"address"}],
 "outputs":[{"name":"price","type":"uint256"}]}
]`

func mustParseABI(t *testing.T, raw string) *abi.ABI {
	t.Helper()
	parsed, err := abi.JSON(strings.NewReader(raw))
	require.NoError(t, err)
	return &parsed
}

// TestRead_S2Scenario reproduces the spec's S2 scenario: 1000 units of
// collateral on RES1 (price $1, 18 decimals, LT 0.8) and 500 units of debt
// on RES2 (price $1, 18 decimals). HF should be (1000*0.8)/500 = 1.6.
func TestRead_S2Scenario(t *testing.T) {
	dpABI := mustParseABI(t, dataProviderABI)
	poABI := mustParseABI(t, priceOracleABI)

	dataProvider := common.HexToAddress("0xd000000000000000000000000000000000000d")
	priceOracle := common.HexToAddress("0x0ace000000000000000000000000000000000e")
	user := common.HexToAddress("0xaaa0000000000000000000000000000000000a")
	reserve1 := common.HexToAddress("0x1000000000000000000000000000000000000a")
	reserve2 := common.HexToAddress("0x2000000000000000000000000000000000000b")

	oneE18 := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	amount := func(units int64) *big.Int {
		return new(big.Int).Mul(big.NewInt(units), oneE18)
	}

	fake := chainclienttest.NewFake()

	fake.Views[chainclienttest.Call(dataProvider, "getUserReserveData", reserve1, user)] =
		[]interface{}{amount(1000), big.NewInt(0), big.NewInt(0)}
	fake.Views[chainclienttest.Call(dataProvider, "getUserReserveData", reserve2, user)] =
		[]interface{}{big.NewInt(0), big.NewInt(0), amount(500)}

	fake.Views[chainclienttest.Call(dataProvider, "getReserveConfigurationData", reserve1)] =
		[]interface{}{big.NewInt(18), big.NewInt(7500), big.NewInt(8000)}
	fake.Views[chainclienttest.Call(dataProvider, "getReserveConfigurationData", reserve2)] =
		[]interface{}{big.NewInt(18), big.NewInt(7500), big.NewInt(8000)}

	oneUSD := new(big.Int).Exp(big.NewInt(10), big.NewInt(oraclePriceDecimals), nil)
	fake.Views[chainclienttest.Call(priceOracle, "getAssetPrice", reserve1)] = []interface{}{oneUSD}
	fake.Views[chainclienttest.Call(priceOracle, "getAssetPrice", reserve2)] = []interface{}{oneUSD}

	r := New(fake, dataProvider, dpABI, priceOracle, poABI, decimal.NewFromInt(1000))

	positions, account, err := r.Read(context.Background(), domain.NewAddress(user),
		[]domain.Address{domain.NewAddress(reserve1), domain.NewAddress(reserve2)}, 150)
	require.NoError(t, err)
	require.Len(t, positions, 2)

	require.True(t, account.HealthFactor.Equal(decimal.RequireFromString("1.6")), "got %s", account.HealthFactor)
	require.True(t, account.TotalCollateralUSD.Equal(decimal.NewFromInt(1000)))
	require.True(t, account.TotalDebtUSD.Equal(decimal.NewFromInt(500)))
	require.Equal(t, domain.NewAddress(reserve1), account.LeadingCollateralRsv)
	require.Equal(t, domain.NewAddress(reserve2), account.LeadingDebtRsv)
	require.True(t, account.LeadingCollateralUSD.Equal(decimal.NewFromInt(1000)))
	require.True(t, account.LeadingDebtUSD.Equal(decimal.NewFromInt(500)))
}

func TestScaleToUSD(t *testing.T) {
	got := scaleToUSD(decimal.NewFromInt(1000), decimal.NewFromInt(1), 0)
	require.True(t, got.Equal(decimal.NewFromInt(1000)))

	got = scaleToUSD(decimal.RequireFromString("1000000000000000000"), decimal.NewFromInt(1), 18)
	require.True(t, got.Equal(decimal.NewFromInt(1)))
}

func TestIsNewLeader_TieBreak(t *testing.T) {
	a := common.HexToAddress("0x01")
	b := common.HexToAddress("0x02")

	require.True(t, isNewLeader(decimal.NewFromInt(100), decimal.NewFromInt(100), a, b))
	require.False(t, isNewLeader(decimal.NewFromInt(100), decimal.NewFromInt(100), b, a))
}

func TestHealthFactor_ZeroDebtIsCap(t *testing.T) {
	r := New(chainclienttest.NewFake(), common.Address{}, mustParseABI(t, dataProviderABI), common.Address{}, mustParseABI(t, priceOracleABI), decimal.NewFromInt(1000))
	_, account, err := r.Read(context.Background(), domain.AddressFromHex("0x9999999999999999999999999999999999999999"), nil, 1)
	require.NoError(t, err)
	require.True(t, account.HealthFactor.Equal(decimal.NewFromInt(1000)))
	require.True(t, account.TotalDebtUSD.IsZero())
}
