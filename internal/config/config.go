// Package config loads backtest settings from the environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"alert-backtest-lab/internal/domain"
	"alert-backtest-lab/internal/portfolio"
)

// Configuration errors
var (
	ErrInvalidInterval      = errors.New("BACKTEST_INTERVAL_SECONDS must be positive")
	ErrInvalidHorizon       = errors.New("BACKTEST_HORIZON_HOURS must be positive")
	ErrInvalidStopReference = errors.New("BACKTEST_STOP_REFERENCE must be alert or entry")
	ErrInvalidWorkers       = errors.New("BACKTEST_WORKERS must be >= 0")
)

// Config holds every tunable of the command-line tools.
type Config struct {
	// Window
	IntervalSeconds int
	HorizonHours    float64

	// Trade
	StopReference domain.StopReference
	TPMult        float64
	SLMult        float64
	IntrabarOrder domain.IntrabarOrder
	MaxHoldHours  float64 // 0 = uncapped

	// Costs
	TakerFeeBps float64
	SlippageBps float64

	// Portfolio
	InitialCapital         float64
	MaxConcurrentPositions int
	MaxAllocationPct       float64
	MaxRiskPerTrade        float64
	MinExecutableSize      float64

	// Storage
	ClickHouseDSN string
	PostgresDSN   string
	SnapshotPath  string

	// Trial cache
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	TrialCacheTTL time.Duration

	// Runtime
	Workers     int
	MetricsAddr string
	Debug       bool
}

// Load reads envFile (when non-empty) into the environment, then builds and validates a Config.
// Variables already set in the environment take precedence over the file.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	cfg := &Config{
		IntervalSeconds: getEnvInt("BACKTEST_INTERVAL_SECONDS", 60),
		HorizonHours:    getEnvFloat("BACKTEST_HORIZON_HOURS", 24),

		StopReference: domain.StopReference(getEnv("BACKTEST_STOP_REFERENCE", string(domain.StopReferenceEntry))),
		TPMult:        getEnvFloat("BACKTEST_TP_MULT", 2.0),
		SLMult:        getEnvFloat("BACKTEST_SL_MULT", 0.5),
		IntrabarOrder: domain.IntrabarOrder(getEnv("BACKTEST_INTRABAR_ORDER", string(domain.IntrabarSLFirst))),
		MaxHoldHours:  getEnvFloat("BACKTEST_MAX_HOLD_HOURS", 0),

		TakerFeeBps: getEnvFloat("BACKTEST_TAKER_FEE_BPS", 30),
		SlippageBps: getEnvFloat("BACKTEST_SLIPPAGE_BPS", 10),

		InitialCapital:         getEnvFloat("BACKTEST_INITIAL_CAPITAL", 10_000),
		MaxConcurrentPositions: getEnvInt("BACKTEST_MAX_POSITIONS", 10),
		MaxAllocationPct:       getEnvFloat("BACKTEST_MAX_ALLOCATION_PCT", 0.04),
		MaxRiskPerTrade:        getEnvFloat("BACKTEST_MAX_RISK_PER_TRADE", 0.02),
		MinExecutableSize:      getEnvFloat("BACKTEST_MIN_EXECUTABLE_SIZE", 10),

		ClickHouseDSN: getEnv("CLICKHOUSE_DSN", ""),
		PostgresDSN:   getEnv("POSTGRES_DSN", ""),
		SnapshotPath:  getEnv("BACKTEST_SNAPSHOT", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		TrialCacheTTL: getEnvDuration("BACKTEST_TRIAL_CACHE_TTL", 24*time.Hour),

		Workers:     getEnvInt("BACKTEST_WORKERS", 0),
		MetricsAddr: getEnv("METRICS_ADDR", ""),
		Debug:       getEnvBool("BACKTEST_DEBUG", false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the simulators cannot run with.
func (c *Config) Validate() error {
	if c.IntervalSeconds <= 0 {
		return ErrInvalidInterval
	}
	if c.HorizonHours <= 0 {
		return ErrInvalidHorizon
	}
	if !c.StopReference.IsValid() {
		return ErrInvalidStopReference
	}
	if c.Workers < 0 {
		return ErrInvalidWorkers
	}
	if err := portfolio.ValidateConfig(c.PortfolioConfig()); err != nil {
		return fmt.Errorf("portfolio: %w", err)
	}
	return nil
}

// MaxHoldMs converts MaxHoldHours to milliseconds.
func (c *Config) MaxHoldMs() int64 {
	return int64(c.MaxHoldHours * float64(time.Hour/time.Millisecond))
}

// ExitConfig is the TP/SL exit described by the config.
func (c *Config) ExitConfig() domain.ExitConfig {
	return portfolio.ExitConfig(c.PortfolioConfig())
}

// PortfolioConfig converts the flat settings into a replay config.
func (c *Config) PortfolioConfig() domain.PortfolioConfig {
	return domain.PortfolioConfig{
		InitialCapital:         c.InitialCapital,
		MaxConcurrentPositions: c.MaxConcurrentPositions,
		MaxAllocationPct:       c.MaxAllocationPct,
		MaxRiskPerTrade:        c.MaxRiskPerTrade,
		MinExecutableSize:      c.MinExecutableSize,
		TPMult:                 c.TPMult,
		SLMult:                 c.SLMult,
		MaxHoldMs:              c.MaxHoldMs(),
		IntrabarOrder:          c.IntrabarOrder,
		Costs: domain.CostConfig{
			TakerFeeBps: c.TakerFeeBps,
			SlippageBps: c.SlippageBps,
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
