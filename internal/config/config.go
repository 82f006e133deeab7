// Package config loads the indexer's configuration from the process
// environment, with an optional .env file for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds every tunable the indexer needs at startup. Field names
// mirror the environment keys they come from.
type Config struct {
	DatabaseURL       string
	RPCURL            string
	PoolAddress       string
	PoolDataProvider  string
	PriceOracle       string
	StartBlock        uint64
	LogPerRequest     uint64
	MaxBlockOutOfSync uint64

	MaxCapOnHealthFactor decimal.Decimal
	AtRiskHealthFactor   decimal.Decimal

	LiquidatableUsersUpdateFrequency time.Duration
	AtRiskUsersUpdateFrequency       time.Duration
	HealthyUsersUpdateFrequency      time.Duration

	LogInsideFile bool
}

// Load reads the configuration from the environment. It first attempts to
// load a .env file at path (ignored if absent, matching the teacher's own
// best-effort godotenv.Load usage), then requires the keys below.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		_ = godotenv.Load(envFile)
	}

	var (
		cfg Config
		err error
	)

	cfg.DatabaseURL, err = requireString("DATABASE_URL")
	if err != nil {
		return Config{}, err
	}
	cfg.RPCURL, err = requireString("RPC_URL")
	if err != nil {
		return Config{}, err
	}
	cfg.PoolAddress, err = requireString("POOL_ADDRESS")
	if err != nil {
		return Config{}, err
	}
	cfg.PoolDataProvider, err = requireString("POOL_DATA_PROVIDER")
	if err != nil {
		return Config{}, err
	}
	cfg.PriceOracle, err = requireString("PRICE_ORACLE")
	if err != nil {
		return Config{}, err
	}

	cfg.StartBlock, err = requireUint("START_BLOCK")
	if err != nil {
		return Config{}, err
	}
	cfg.LogPerRequest, err = uintWithDefault("LOG_PER_REQUEST", 2000)
	if err != nil {
		return Config{}, err
	}
	cfg.MaxBlockOutOfSync, err = uintWithDefault("MAX_BLOCK_OUT_OF_SYNC", 1000)
	if err != nil {
		return Config{}, err
	}

	capHF, err := decimalWithDefault("MAX_CAP_ON_HEALTH_FACTOR", "1000")
	if err != nil {
		return Config{}, err
	}
	cfg.MaxCapOnHealthFactor = capHF

	atRiskHF, err := decimalWithDefault("AT_RISK_HEALTH_FACTOR", "1.5")
	if err != nil {
		return Config{}, err
	}
	cfg.AtRiskHealthFactor = atRiskHF

	liq, err := secondsWithDefault("LIQUIDATABLE_USERS_UPDATE_FREQUENCY", 30)
	if err != nil {
		return Config{}, err
	}
	cfg.LiquidatableUsersUpdateFrequency = liq

	risk, err := secondsWithDefault("AT_RISK_USERS_UPDATE_FREQUENCY", 120)
	if err != nil {
		return Config{}, err
	}
	cfg.AtRiskUsersUpdateFrequency = risk

	healthy, err := secondsWithDefault("HEALTHY_USERS_UPDATE_FREQUENCY", 3600)
	if err != nil {
		return Config{}, err
	}
	cfg.HealthyUsersUpdateFrequency = healthy

	cfg.LogInsideFile = boolWithDefault("LOG_INSIDE_FILE", false)

	return cfg, nil
}

func requireString(key string) (string, error) {
	v := os.Getenv(key)
	if v == "" {
		return "", fmt.Errorf("config: missing required env var %s", key)
	}
	return v, nil
}

func requireUint(key string) (uint64, error) {
	v := os.Getenv(key)
	if v == "" {
		return 0, fmt.Errorf("config: missing required env var %s", key)
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("config: %s must be a non-negative integer: %w", key, err)
	}
	return n, nil
}

func uintWithDefault(key string, def uint64) (uint64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("config: %s must be a non-negative integer: %w", key, err)
	}
	return n, nil
}

func decimalWithDefault(key, def string) (decimal.Decimal, error) {
	v := os.Getenv(key)
	if v == "" {
		v = def
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("config: %s must be a decimal number: %w", key, err)
	}
	return d, nil
}

func secondsWithDefault(key string, def int) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return time.Duration(def) * time.Second, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s must be an integer number of seconds: %w", key, err)
	}
	return time.Duration(n) * time.Second, nil
}

func boolWithDefault(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
