// Package config loads application configuration from the environment.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/tasoulis/riskbench/internal/modules/returns"
	"github.com/tasoulis/riskbench/internal/modules/stress"
)

// Config holds application configuration
type Config struct {
	Port            int
	DevMode         bool
	LogLevel        string
	PricesDBPath    string
	CacheDBPath     string
	PortfolioPath   string
	Lambda          float64
	NumSims         int
	Seed            uint64
	Notional        float64
	LookbackDays    int
	BacktestWindow  int
	RefreshSchedule string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Port:            getEnvAsInt("PORT", 8090),
		DevMode:         getEnvAsBool("DEV_MODE", false),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		PricesDBPath:    getEnv("PRICES_DB_PATH", "./data/prices.db"),
		CacheDBPath:     getEnv("CACHE_DB_PATH", "./data/cache.db"),
		PortfolioPath:   getEnv("PORTFOLIO_PATH", "./data/portfolio.json"),
		Lambda:          getEnvAsFloat("EWMA_LAMBDA", 0.94),
		NumSims:         getEnvAsInt("MC_NUM_SIMS", 100000),
		Seed:            uint64(getEnvAsInt("MC_SEED", 42)),
		Notional:        getEnvAsFloat("NOTIONAL", 1000000),
		LookbackDays:    getEnvAsInt("LOOKBACK_DAYS", 0),
		BacktestWindow:  getEnvAsInt("BACKTEST_WINDOW", 250),
		RefreshSchedule: getEnv("REFRESH_SCHEDULE", "@daily"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.PricesDBPath == "" {
		return fmt.Errorf("PRICES_DB_PATH is required")
	}
	if c.PortfolioPath == "" {
		return fmt.Errorf("PORTFOLIO_PATH is required")
	}
	if c.Lambda <= 0 || c.Lambda >= 1 {
		return fmt.Errorf("EWMA_LAMBDA must lie strictly between 0 and 1, got %g", c.Lambda)
	}
	if c.NumSims <= 0 {
		return fmt.Errorf("MC_NUM_SIMS must be positive, got %d", c.NumSims)
	}
	if c.Notional <= 0 {
		return fmt.Errorf("NOTIONAL must be positive, got %g", c.Notional)
	}
	return nil
}

// Portfolio is the on-disk portfolio definition: normalized target weights
// and the asset-class map the stress scenarios shock by.
type Portfolio struct {
	Weights returns.Weights              `json:"weights"`
	Classes map[string]stress.AssetClass `json:"classes"`
}

// LoadPortfolio reads the portfolio definition file.
func LoadPortfolio(path string) (*Portfolio, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read portfolio file: %w", err)
	}

	var p Portfolio
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse portfolio file %s: %w", path, err)
	}
	if len(p.Weights) == 0 {
		return nil, fmt.Errorf("portfolio file %s defines no weights", path)
	}
	return &p, nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}
