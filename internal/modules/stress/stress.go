// Package stress applies stylised asset-class shock scenarios to a
// portfolio and reports per-asset and portfolio profit-and-loss.
package stress

import (
	"fmt"
	"sort"
)

// AssetClass buckets an instrument for group-level shocks.
type AssetClass string

const (
	ClassEquity    AssetClass = "equity"
	ClassBond      AssetClass = "bond"
	ClassCommodity AssetClass = "commodity"
)

// Scenario is a named set of fractional price shocks per asset class.
// Classes absent from the map are unshocked.
type Scenario struct {
	Name   string                 `json:"name"`
	Shocks map[AssetClass]float64 `json:"shocks"`
}

// DefaultScenarios is the standard stress battery. Shock sizes are
// stylised calibrations, not fitted quantities.
func DefaultScenarios() []Scenario {
	return []Scenario{
		{
			Name: "COVID Crash",
			Shocks: map[AssetClass]float64{
				ClassEquity:    -0.30,
				ClassCommodity: -0.25,
				ClassBond:      0.05,
			},
		},
		{
			Name: "+200bps Rate Shock",
			Shocks: map[AssetClass]float64{
				ClassEquity:    -0.05,
				ClassCommodity: -0.05,
				ClassBond:      -0.08,
			},
		},
		{
			Name: "Oil Spike",
			Shocks: map[AssetClass]float64{
				ClassEquity:    -0.10,
				ClassCommodity: 0.20,
				ClassBond:      -0.03,
			},
		},
		{
			Name: "China Slowdown",
			Shocks: map[AssetClass]float64{
				ClassEquity:    -0.15,
				ClassCommodity: -0.10,
				ClassBond:      0.03,
			},
		},
	}
}

// AssetPnL is a single asset's result under a scenario.
type AssetPnL struct {
	Asset string     `json:"asset"`
	Class AssetClass `json:"class"`
	Shock float64    `json:"shock"`
	PnL   float64    `json:"pnl"`
}

// Result is one scenario applied to a portfolio.
type Result struct {
	Scenario     string     `json:"scenario"`
	PortfolioPnL float64    `json:"portfolio_pnl"`
	AssetPnL     []AssetPnL `json:"asset_pnl"`
	Worst        []AssetPnL `json:"worst"`
	Best         []AssetPnL `json:"best"`
}

// rankCount is how many assets the Worst/Best lists carry.
const rankCount = 5

// Apply computes per-asset PnL for one scenario:
//
//	pnl_i = notional * w_i * shock(class_i)
//
// classes maps asset name to class; unclassified assets default to equity.
func Apply(sc Scenario, weights map[string]float64, classes map[string]AssetClass, notional float64) (Result, error) {
	if len(weights) == 0 {
		return Result{}, fmt.Errorf("stress scenario %q: no portfolio weights", sc.Name)
	}
	if notional <= 0 {
		return Result{}, fmt.Errorf("stress scenario %q: notional must be positive, got %g", sc.Name, notional)
	}

	assets := make([]string, 0, len(weights))
	for a := range weights {
		assets = append(assets, a)
	}
	sort.Strings(assets)

	res := Result{Scenario: sc.Name, AssetPnL: make([]AssetPnL, 0, len(assets))}
	for _, asset := range assets {
		class, ok := classes[asset]
		if !ok {
			class = ClassEquity
		}
		shock := sc.Shocks[class]
		pnl := notional * weights[asset] * shock
		res.AssetPnL = append(res.AssetPnL, AssetPnL{Asset: asset, Class: class, Shock: shock, PnL: pnl})
		res.PortfolioPnL += pnl
	}

	res.Worst = rankByPnL(res.AssetPnL, true)
	res.Best = rankByPnL(res.AssetPnL, false)
	return res, nil
}

// RunAll applies every scenario in the default battery.
func RunAll(weights map[string]float64, classes map[string]AssetClass, notional float64) ([]Result, error) {
	scenarios := DefaultScenarios()
	results := make([]Result, 0, len(scenarios))
	for _, sc := range scenarios {
		res, err := Apply(sc, weights, classes, notional)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, nil
}

func rankByPnL(pnl []AssetPnL, worst bool) []AssetPnL {
	ranked := make([]AssetPnL, len(pnl))
	copy(ranked, pnl)
	sort.SliceStable(ranked, func(i, j int) bool {
		if worst {
			return ranked[i].PnL < ranked[j].PnL
		}
		return ranked[i].PnL > ranked[j].PnL
	})
	if len(ranked) > rankCount {
		ranked = ranked[:rankCount]
	}
	return ranked
}
