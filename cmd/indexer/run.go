package main

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/superlend/liquidation-indexer/internal/chainclient"
	"github.com/superlend/liquidation-indexer/internal/config"
	"github.com/superlend/liquidation-indexer/internal/discovery"
	"github.com/superlend/liquidation-indexer/internal/logging"
	"github.com/superlend/liquidation-indexer/internal/position"
	"github.com/superlend/liquidation-indexer/internal/refresh"
	"github.com/superlend/liquidation-indexer/internal/store"
	"github.com/superlend/liquidation-indexer/internal/supervisor"
)

// runSupervisor loads configuration, wires every component, and blocks
// running the supervisor until ctx is cancelled or a loop fails fatally.
func runSupervisor(ctx context.Context, envFile string) error {
	cfg, err := config.Load(envFile)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, err := logging.New(logging.Options{InsideFile: cfg.LogInsideFile})
	if err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	defer log.Sync()

	st, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	rpc, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("dialing RPC: %w", err)
	}
	defer rpc.Close()
	chain := chainclient.New(rpc)

	dataProviderABI, priceOracleABI, err := position.LoadContractABIs()
	if err != nil {
		return fmt.Errorf("loading contract ABIs: %w", err)
	}
	reader := position.New(chain, common.HexToAddress(cfg.PoolDataProvider), dataProviderABI,
		common.HexToAddress(cfg.PriceOracle), priceOracleABI, cfg.MaxCapOnHealthFactor)

	discoveryLoop := discovery.New(chain, st, log, discovery.Config{
		PoolAddress:       common.HexToAddress(cfg.PoolAddress),
		StartBlock:        cfg.StartBlock,
		LogPerRequest:     cfg.LogPerRequest,
		MaxBlockOutOfSync: cfg.MaxBlockOutOfSync,
		MaxCapOnHF:        cfg.MaxCapOnHealthFactor,
	})

	refreshLoop := refresh.New(chain, st, reader, log, refresh.Cadences{
		Liquidatable: cfg.LiquidatableUsersUpdateFrequency,
		AtRisk:       cfg.AtRiskUsersUpdateFrequency,
		Healthy:      cfg.HealthyUsersUpdateFrequency,
	}, cfg.AtRiskHealthFactor, cfg.MaxCapOnHealthFactor)

	sup := supervisor.New(discoveryLoop, refreshLoop, log)

	log.Info("starting indexer",
		zap.String("pool_address", cfg.PoolAddress),
		zap.Uint64("start_block", cfg.StartBlock))

	return sup.Run(ctx)
}
