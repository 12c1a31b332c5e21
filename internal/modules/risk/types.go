package risk

import (
	"time"

	"github.com/tasoulis/riskbench/internal/modules/backtest"
	"github.com/tasoulis/riskbench/internal/modules/montecarlo"
	"github.com/tasoulis/riskbench/internal/modules/portfolio"
	"github.com/tasoulis/riskbench/internal/modules/stress"
)

// AssetRisk is one asset's fitted marginal and its risk numbers. A failed
// fit leaves the numeric fields zero and Error set; one bad series must not
// sink the whole table.
type AssetRisk struct {
	Asset    string  `json:"asset"`
	Weight   float64 `json:"weight"`
	Mu       float64 `json:"mu"`
	Sigma    float64 `json:"sigma"`
	Nu       float64 `json:"nu"`
	VaR95    float64 `json:"var95"`
	ES95     float64 `json:"es95"`
	VaR99    float64 `json:"var99"`
	ES99     float64 `json:"es99"`
	GARCH    bool    `json:"garch"`
	Fallback bool    `json:"fallback,omitempty"`
	Error    string  `json:"error,omitempty"`
}

// MonteCarloResult is one simulated PnL distribution reduced to its risk
// numbers, in currency units.
type MonteCarloResult struct {
	HorizonDays int     `json:"horizon_days"`
	NumSims     int     `json:"num_sims"`
	Seed        uint64  `json:"seed"`
	VaR95       float64 `json:"var95"`
	CVaR95      float64 `json:"cvar95"`
	VaR99       float64 `json:"var99"`
	CVaR99      float64 `json:"cvar99"`
}

// BacktestEntry pairs a confidence level with its backtest result.
type BacktestEntry struct {
	Alpha  float64         `json:"alpha"`
	Window int             `json:"window"`
	Result backtest.Result `json:"result"`
}

// Snapshot is one complete risk run. All fields are plain values; handlers
// serve it directly.
type Snapshot struct {
	RunID       string                    `json:"run_id"`
	GeneratedAt time.Time                 `json:"generated_at"`
	Assets      []AssetRisk               `json:"assets"`
	Summaries   []portfolio.Summary       `json:"summaries"`
	MonteCarlo  []MonteCarloResult        `json:"monte_carlo"`
	Components  []montecarlo.Contribution `json:"components"`
	Backtests   []BacktestEntry           `json:"backtests"`
	Stress      []stress.Result           `json:"stress"`
	Notional    float64                   `json:"notional"`
}
