// Package position implements the Position Reader: given a user and a
// block, it reconstructs every known reserve's collateral/debt amounts in
// USD and derives the account's health factor.
package position

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/superlend/liquidation-indexer/internal/chainclient"
	"github.com/superlend/liquidation-indexer/internal/domain"
	"github.com/superlend/liquidation-indexer/internal/moneymath"
)

// oraclePriceDecimals is the fixed-point scale Aave-style price oracles
// report asset prices in (an 8-decimal USD price, the Chainlink aggregator
// convention the protocol's PRICE_ORACLE wraps).
const oraclePriceDecimals = 8

// Reader computes positions and health factors against the data-provider
// and price-oracle contracts.
type Reader struct {
	chain            chainclient.ChainClient
	dataProvider     common.Address
	dataProviderABI  *abi.ABI
	priceOracle      common.Address
	priceOracleABI   *abi.ABI
	maxCap           decimal.Decimal
	configCache      sync.Map // reserve common.Address -> reserveConfig
}

// reserveConfig is the static, per-reserve half of getReserveConfigurationData
// — decimals and liquidation threshold never change for a live reserve, so
// both are fetched off the same call and cached together rather than
// refetching liquidation threshold on every tick.
type reserveConfig struct {
	decimals             int32
	liquidationThreshold decimal.Decimal
}

// New builds a Reader bound to the protocol's data-provider and price
// oracle contracts. maxCap is the configured MAX_CAP_ON_HEALTH_FACTOR.
func New(chain chainclient.ChainClient, dataProvider common.Address, dataProviderABI *abi.ABI, priceOracle common.Address, priceOracleABI *abi.ABI, maxCap decimal.Decimal) *Reader {
	return &Reader{
		chain:           chain,
		dataProvider:    dataProvider,
		dataProviderABI: dataProviderABI,
		priceOracle:     priceOracle,
		priceOracleABI:  priceOracleABI,
		maxCap:          maxCap,
	}
}

// reserveView holds one reserve's per-user amounts plus its static
// configuration, all expressed before USD scaling.
type reserveView struct {
	reserve              common.Address
	collateralRaw        decimal.Decimal
	debtRaw              decimal.Decimal
	decimals             int32
	liquidationThreshold decimal.Decimal // fraction, e.g. 0.8
	price                decimal.Decimal // USD per whole unit
}

// Read reconstructs user's position across every reserve in knownReserves
// at the given block, returning the per-reserve position rows plus the
// derived account totals and health factor (not yet bucket-assigned).
func (r *Reader) Read(ctx context.Context, user domain.Address, knownReserves []domain.Address, block uint64) ([]domain.Position, domain.Account, error) {
	views := make([]reserveView, 0, len(knownReserves))

	for _, reserve := range knownReserves {
		v, err := r.readReserve(ctx, user.Common(), reserve.Common(), block)
		if err != nil {
			return nil, domain.Account{}, fmt.Errorf("position: reading reserve %s for user %s: %w", reserve, user, err)
		}
		views = append(views, v)
	}

	positions := make([]domain.Position, 0, len(views)*2)
	totalCollateral := domain.Zero
	totalDebt := domain.Zero

	var leadingCollateralReserve, leadingDebtReserve common.Address
	leadingCollateralValue := domain.Zero
	leadingDebtValue := domain.Zero

	for _, v := range views {
		collateralUSD := scaleToUSD(v.collateralRaw, v.price, v.decimals)
		debtUSD := scaleToUSD(v.debtRaw, v.price, v.decimals)

		if v.collateralRaw.Sign() > 0 {
			positions = append(positions, domain.Position{
				User: user, Reserve: domain.NewAddress(v.reserve), Amount: collateralUSD, IsCollateral: true,
			})
			totalCollateral = totalCollateral.Add(collateralUSD)
			if isNewLeader(collateralUSD, leadingCollateralValue, v.reserve, leadingCollateralReserve) {
				leadingCollateralValue = collateralUSD
				leadingCollateralReserve = v.reserve
			}
		}
		if v.debtRaw.Sign() > 0 {
			positions = append(positions, domain.Position{
				User: user, Reserve: domain.NewAddress(v.reserve), Amount: debtUSD, IsCollateral: false,
			})
			totalDebt = totalDebt.Add(debtUSD)
			if isNewLeader(debtUSD, leadingDebtValue, v.reserve, leadingDebtReserve) {
				leadingDebtValue = debtUSD
				leadingDebtReserve = v.reserve
			}
		}
	}

	healthFactor := r.maxCap
	if totalDebt.Sign() > 0 {
		weighted := domain.Zero
		for _, v := range views {
			collateralUSD := scaleToUSD(v.collateralRaw, v.price, v.decimals)
			weighted = weighted.Add(collateralUSD.Mul(v.liquidationThreshold))
		}
		healthFactor = moneymath.DivHalfEven(weighted, totalDebt, moneymath.DefaultScale)
		if healthFactor.GreaterThan(r.maxCap) {
			healthFactor = r.maxCap
		}
	}

	account := domain.Account{
		UserAddress:          user,
		LastUpdatedBlock:     block,
		HealthFactor:         healthFactor,
		TotalCollateralUSD:   totalCollateral,
		TotalDebtUSD:         totalDebt,
		LeadingCollateralRsv: addressOrEmpty(leadingCollateralReserve),
		LeadingDebtRsv:       addressOrEmpty(leadingDebtReserve),
		LeadingCollateralUSD: leadingCollateralValue,
		LeadingDebtUSD:       leadingDebtValue,
	}

	return positions, account, nil
}

// isNewLeader reports whether candidateValue at candidateReserve displaces
// the current leader, breaking exact ties by lexicographically smaller
// reserve address per invariant 4.
func isNewLeader(candidateValue, currentValue decimal.Decimal, candidateReserve, currentReserve common.Address) bool {
	if currentReserve == (common.Address{}) {
		return true
	}
	if candidateValue.GreaterThan(currentValue) {
		return true
	}
	if candidateValue.Equal(currentValue) {
		return domain.NewAddress(candidateReserve) < domain.NewAddress(currentReserve)
	}
	return false
}

// asBigInt extracts a *big.Int from an ABI-unpacked value, defaulting to
// zero for any shape we don't expect (never nil, since callers immediately
// arithmetic on the result).
func asBigInt(v interface{}) *big.Int {
	if b, ok := v.(*big.Int); ok {
		return b
	}
	return big.NewInt(0)
}

func addressOrEmpty(a common.Address) domain.Address {
	if a == (common.Address{}) {
		return ""
	}
	return domain.NewAddress(a)
}

// scaleToUSD converts a raw on-chain amount to a USD value: raw * price *
// 10^-decimals, where price is already USD-denominated.
func scaleToUSD(raw, price decimal.Decimal, decimals int32) decimal.Decimal {
	if raw.Sign() == 0 {
		return domain.Zero
	}
	scale := decimal.New(1, -decimals)
	return moneymath.RoundHalfEven(raw.Mul(scale).Mul(price), moneymath.DefaultScale)
}

// readReserve fetches one reserve's user balances, configuration, and price,
// retrying transient RPC failures with a bounded backoff.
func (r *Reader) readReserve(ctx context.Context, user, reserve common.Address, block uint64) (reserveView, error) {
	var v reserveView
	v.reserve = reserve

	cfg, err := r.configFor(ctx, reserve, block)
	if err != nil {
		return reserveView{}, err
	}
	v.decimals = cfg.decimals
	v.liquidationThreshold = cfg.liquidationThreshold

	var userData []interface{}
	err = chainclient.WithRetry(ctx, func() error {
		out, callErr := r.chain.CallView(ctx, r.dataProvider, r.dataProviderABI, "getUserReserveData", []interface{}{reserve, user}, block)
		if callErr != nil {
			return callErr
		}
		userData = out
		return nil
	})
	if err != nil {
		return reserveView{}, fmt.Errorf("getUserReserveData: %w", err)
	}
	if len(userData) < 3 {
		return reserveView{}, fmt.Errorf("getUserReserveData: unexpected return shape (%d values)", len(userData))
	}
	v.collateralRaw = decimal.NewFromBigInt(asBigInt(userData[0]), 0)
	v.debtRaw = decimal.NewFromBigInt(asBigInt(userData[2]), 0)

	var priceData []interface{}
	err = chainclient.WithRetry(ctx, func() error {
		out, callErr := r.chain.CallView(ctx, r.priceOracle, r.priceOracleABI, "getAssetPrice", []interface{}{reserve}, block)
		if callErr != nil {
			return callErr
		}
		priceData = out
		return nil
	})
	if err != nil {
		return reserveView{}, fmt.Errorf("getAssetPrice: %w", err)
	}
	if len(priceData) < 1 {
		return reserveView{}, fmt.Errorf("getAssetPrice: unexpected return shape")
	}
	rawPrice := decimal.NewFromBigInt(asBigInt(priceData[0]), 0)
	v.price = rawPrice.Mul(decimal.New(1, -oraclePriceDecimals))

	return v, nil
}

// configFor fetches a reserve's decimals and liquidation threshold once per
// process and caches them together, matching the spec's "fetched once and
// cached process-wide" requirement — both values come off the same
// getReserveConfigurationData call, so there is no reason to fetch them
// separately.
func (r *Reader) configFor(ctx context.Context, reserve common.Address, block uint64) (reserveConfig, error) {
	if cached, ok := r.configCache.Load(reserve); ok {
		return cached.(reserveConfig), nil
	}

	var configData []interface{}
	err := chainclient.WithRetry(ctx, func() error {
		out, callErr := r.chain.CallView(ctx, r.dataProvider, r.dataProviderABI, "getReserveConfigurationData", []interface{}{reserve}, block)
		if callErr != nil {
			return callErr
		}
		configData = out
		return nil
	})
	if err != nil {
		return reserveConfig{}, fmt.Errorf("getReserveConfigurationData %s: %w", reserve.Hex(), err)
	}
	if len(configData) < 3 {
		return reserveConfig{}, fmt.Errorf("getReserveConfigurationData %s: unexpected return shape (%d values)", reserve.Hex(), len(configData))
	}

	ltBps := decimal.NewFromBigInt(asBigInt(configData[2]), 0)
	cfg := reserveConfig{
		decimals:             int32(asBigInt(configData[0]).Int64()),
		liquidationThreshold: ltBps.Div(decimal.NewFromInt(10000)),
	}
	r.configCache.Store(reserve, cfg)
	return cfg, nil
}
