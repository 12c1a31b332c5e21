package returns

import (
	"fmt"
	"math"
)

// Weights maps asset to portfolio weight. Weights may be signed; alignment
// renormalizes them to sum to 1 over the panel's asset universe.
type Weights map[string]float64

// Align drops assets absent from the panel and renormalizes the remainder to
// sum to 1. A zero sum after alignment is an input error: there is no
// portfolio to measure.
func (w Weights) Align(p *Panel) (Weights, error) {
	aligned := make(Weights, len(w))
	sum := 0.0
	for asset, weight := range w {
		if !p.HasAsset(asset) {
			continue
		}
		aligned[asset] = weight
		sum += weight
	}
	if len(aligned) == 0 {
		return nil, fmt.Errorf("no weighted assets present in panel")
	}
	if sum == 0 || math.IsNaN(sum) {
		return nil, fmt.Errorf("aligned weights sum to zero, cannot normalize")
	}
	for asset := range aligned {
		aligned[asset] /= sum
	}
	return aligned, nil
}

// Vector returns the weights ordered by the given asset list. Missing assets
// get weight zero.
func (w Weights) Vector(assets []string) []float64 {
	out := make([]float64, len(assets))
	for i, a := range assets {
		out[i] = w[a]
	}
	return out
}

// PortfolioReturns computes the realized weighted portfolio return series
// R·w over the panel. Weights are aligned and renormalized first.
func PortfolioReturns(p *Panel, w Weights) ([]float64, error) {
	aligned, err := w.Align(p)
	if err != nil {
		return nil, err
	}
	vec := aligned.Vector(p.Assets())

	out := make([]float64, p.T())
	for t := 0; t < p.T(); t++ {
		row := p.Row(t)
		acc := 0.0
		for i, r := range row {
			acc += r * vec[i]
		}
		out[t] = acc
	}
	return out, nil
}
