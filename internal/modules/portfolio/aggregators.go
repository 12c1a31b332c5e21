// Package portfolio aggregates marginal and dependence estimates into
// portfolio-level VaR and expected shortfall under three models: static
// Student-t, GARCH-t, and historical (empirical). All outputs are signed
// returns (losses negative).
package portfolio

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/tasoulis/riskbench/internal/modules/marginal"
	"github.com/tasoulis/riskbench/internal/modules/returns"
	"github.com/tasoulis/riskbench/pkg/formulas"
)

// Model names reported in summaries.
const (
	ModelStaticT    = "static_t"
	ModelGARCHT     = "garch_t"
	ModelHistorical = "historical"
)

// Summary holds one model's portfolio risk numbers as signed returns.
// Nu is zero for the historical model, which assumes no distribution.
type Summary struct {
	Model string  `json:"model"`
	Nu    float64 `json:"nu,omitempty"`
	VaR95 float64 `json:"var95"`
	ES95  float64 `json:"es95"`
	VaR99 float64 `json:"var99"`
	ES99  float64 `json:"es99"`
}

// StaticT fits one portfolio-level Student-t to the realized weighted return
// series: the degrees of freedom come from the same KS search used per
// asset, while mean and std come from the realized series itself, so the
// full realized covariance is embedded rather than re-derived from marginals.
func StaticT(p *returns.Panel, w returns.Weights, src rand.Source) (Summary, error) {
	portRet, err := returns.PortfolioReturns(p, w)
	if err != nil {
		return Summary{}, err
	}

	model, err := marginal.FitStatic(portRet, src)
	if err != nil {
		return Summary{}, fmt.Errorf("portfolio student-t fit: %w", err)
	}
	return summaryFromModel(ModelStaticT, model)
}

// GARCHT combines per-asset conditional forecasts with a static correlation
// matrix: sigma_p^2 = w' (D Corr D) w with D = diag(conditional sigma).
//
// The portfolio degrees of freedom are the |w|-weighted average of per-asset
// nu. That is an approximation (a weighted sum of Student-t variables is
// not Student-t), but it is the standard pragmatic choice for a quantile
// formula at this level.
func GARCHT(weights []float64, models []marginal.Model, corr *mat.SymDense) (Summary, error) {
	n := len(weights)
	if n == 0 {
		return Summary{}, fmt.Errorf("empty weight vector")
	}
	if len(models) != n {
		return Summary{}, fmt.Errorf("%d models for %d weights", len(models), n)
	}
	if corr.SymmetricDim() != n {
		return Summary{}, fmt.Errorf("correlation matrix is %dx%d, expected %d", corr.SymmetricDim(), corr.SymmetricDim(), n)
	}

	muP := 0.0
	variance := 0.0
	nuNum, nuDen := 0.0, 0.0
	for i := 0; i < n; i++ {
		muP += weights[i] * models[i].Mu
		absW := math.Abs(weights[i])
		nuNum += absW * models[i].Nu
		nuDen += absW
		for j := 0; j < n; j++ {
			variance += weights[i] * weights[j] * models[i].Sigma * models[j].Sigma * corr.At(i, j)
		}
	}
	if nuDen == 0 {
		return Summary{}, fmt.Errorf("all weights zero, portfolio nu undefined")
	}
	if variance < 0 {
		return Summary{}, fmt.Errorf("negative portfolio variance %g, correlation matrix malformed", variance)
	}

	model := marginal.Model{
		Mu:    muP,
		Sigma: math.Sqrt(variance),
		Nu:    nuNum / nuDen,
		Kind:  marginal.KindConditional,
	}
	return summaryFromModel(ModelGARCHT, model)
}

// Historical computes the empirical VaR (alpha-quantile of realized returns)
// and ES (mean of returns at or below that quantile). No distributional
// assumption; accuracy degrades on short or non-stationary samples.
func Historical(portRet []float64) (Summary, error) {
	if len(portRet) == 0 {
		return Summary{}, fmt.Errorf("empty portfolio return series")
	}

	var95 := formulas.Quantile(portRet, 0.05)
	var99 := formulas.Quantile(portRet, 0.01)
	return Summary{
		Model: ModelHistorical,
		VaR95: var95,
		ES95:  formulas.TailMean(portRet, var95),
		VaR99: var99,
		ES99:  formulas.TailMean(portRet, var99),
	}, nil
}

func summaryFromModel(name string, m marginal.Model) (Summary, error) {
	es95, err := m.ES(0.05)
	if err != nil {
		return Summary{}, err
	}
	es99, err := m.ES(0.01)
	if err != nil {
		return Summary{}, err
	}
	return Summary{
		Model: name,
		Nu:    m.Nu,
		VaR95: m.VaR(0.05),
		ES95:  es95,
		VaR99: m.VaR(0.01),
		ES99:  es99,
	}, nil
}

// MeanStd reports the realized mean and std of a portfolio return series.
// Exposed for summary tables.
func MeanStd(portRet []float64) (float64, float64) {
	if len(portRet) == 0 {
		return 0, 0
	}
	return stat.Mean(portRet, nil), stat.StdDev(portRet, nil)
}
