package montecarlo

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/tasoulis/riskbench/pkg/formulas"
)

// Contribution decomposes tail risk by asset: MarginalES is the covariance
// of the asset's simulated returns with portfolio PnL inside the tail,
// scaled to the Euler marginal, ComponentES = weight * MarginalES, and
// PctContrib is the share of total ES it explains.
type Contribution struct {
	Asset       string  `json:"asset"`
	Weight      float64 `json:"weight"`
	MarginalES  float64 `json:"marginal_es"`
	ComponentES float64 `json:"component_es"`
	PctContrib  float64 `json:"pct_contrib"`
}

// ComponentES allocates portfolio expected shortfall to assets from a
// simulated scenario matrix (NumSims x N asset returns). alpha is the tail
// probability (0.05 for ES95).
func ComponentES(scenarios *mat.Dense, assets []string, weights []float64, alpha float64) ([]Contribution, error) {
	rows, cols := scenarios.Dims()
	if cols != len(assets) || cols != len(weights) {
		return nil, fmt.Errorf("scenario matrix has %d columns for %d assets / %d weights", cols, len(assets), len(weights))
	}
	if rows == 0 {
		return nil, fmt.Errorf("empty scenario matrix")
	}
	if alpha <= 0 || alpha >= 1 {
		return nil, fmt.Errorf("tail probability %g outside (0,1)", alpha)
	}

	// Portfolio return per scenario.
	pnl := make([]float64, rows)
	for s := 0; s < rows; s++ {
		acc := 0.0
		for j := 0; j < cols; j++ {
			acc += scenarios.At(s, j) * weights[j]
		}
		pnl[s] = acc
	}

	cutoff := formulas.Quantile(pnl, alpha)

	// Tail slice and its mean.
	tailIdx := make([]int, 0, int(float64(rows)*alpha)+1)
	es := 0.0
	for s, v := range pnl {
		if v <= cutoff {
			tailIdx = append(tailIdx, s)
			es += v
		}
	}
	if len(tailIdx) == 0 || es == 0 {
		return nil, fmt.Errorf("degenerate tail: %d scenarios at or below cutoff", len(tailIdx))
	}
	es /= float64(len(tailIdx))

	out := make([]Contribution, cols)
	for j := 0; j < cols; j++ {
		// Population covariance of asset return vs portfolio return inside
		// the tail.
		meanAsset := 0.0
		for _, s := range tailIdx {
			meanAsset += scenarios.At(s, j)
		}
		meanAsset /= float64(len(tailIdx))

		cov := 0.0
		for _, s := range tailIdx {
			cov += (scenarios.At(s, j) - meanAsset) * (pnl[s] - es)
		}
		cov /= float64(len(tailIdx))

		mes := cov / (alpha * es)
		ces := weights[j] * mes
		out[j] = Contribution{
			Asset:       assets[j],
			Weight:      weights[j],
			MarginalES:  mes,
			ComponentES: ces,
			PctContrib:  ces / es,
		}
	}
	return out, nil
}
