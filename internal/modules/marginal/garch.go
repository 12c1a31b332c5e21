package marginal

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"
)

const (
	// minGARCHObs is the shortest history worth fitting; anything less falls
	// back to unconditional stats.
	minGARCHObs = 50

	// fallbackNu is the generic tail weight assumed when no fit is possible.
	fallbackNu = 30.0

	maxLikelihoodIter = 500
)

// GARCHParams holds the fitted GARCH(1,1)-t parameters on the rescaled
// series: sigma2_t = Omega + Alpha*eps2_{t-1} + Beta*sigma2_{t-1} with
// standardized Student-t(Nu) innovations.
type GARCHParams struct {
	Omega float64
	Alpha float64
	Beta  float64
	Nu    float64
}

// FitGARCH fits a GARCH(1,1) conditional-variance model with Student-t
// innovations by maximum likelihood and returns a model whose Mu and Sigma
// are the one-step-ahead conditional forecasts.
//
// The series is rescaled by a magnitude-dependent factor before fitting to
// keep the likelihood surface away from degeneracy, then forecasts are
// scaled back. Short histories and optimizer non-convergence both degrade to
// unconditional sample stats; neither is an error, matching the requirement
// that a single stubborn asset never aborts a portfolio-wide estimation.
func FitGARCH(series []float64) (Model, error) {
	if len(series) < 2 {
		return Model{}, fmt.Errorf("need at least 2 observations for conditional fit, got %d", len(series))
	}

	mean := stat.Mean(series, nil)
	std := stat.StdDev(series, nil)

	if len(series) < minGARCHObs {
		return Model{
			Mu:       mean,
			Sigma:    std,
			Nu:       fallbackNu,
			Kind:     KindConditional,
			Fallback: true,
		}, nil
	}
	if std == 0 {
		return Model{}, fmt.Errorf("series has zero variance, conditional fit undefined")
	}

	scale := garchScale(std)
	eps := make([]float64, len(series))
	for i, v := range series {
		eps[i] = (v - mean) * scale
	}

	params, ok := maximizeGARCHLikelihood(eps)
	if !ok {
		// Best-effort: keep the unconditional view rather than failing.
		return Model{
			Mu:       mean,
			Sigma:    std,
			Nu:       fallbackNu,
			Kind:     KindConditional,
			Fallback: true,
		}, nil
	}

	// One-step-ahead variance forecast from the filtered recursion.
	sigma2 := filterVariance(eps, params)
	last := len(eps) - 1
	forecast := params.Omega + params.Alpha*eps[last]*eps[last] + params.Beta*sigma2[last]

	return Model{
		Mu:    mean,
		Sigma: math.Sqrt(forecast) / scale,
		Nu:    params.Nu,
		Kind:  KindConditional,
	}, nil
}

// garchScale picks the numerical rescaling factor for a series of the given
// volatility level.
func garchScale(std float64) float64 {
	switch {
	case std < 1e-4:
		return 1000.0
	case std < 1e-3:
		return 100.0
	default:
		return 1.0
	}
}

// filterVariance runs the GARCH variance recursion over demeaned residuals,
// seeded with the sample variance.
func filterVariance(eps []float64, p GARCHParams) []float64 {
	sigma2 := make([]float64, len(eps))
	sigma2[0] = stat.Variance(eps, nil)
	for t := 1; t < len(eps); t++ {
		sigma2[t] = p.Omega + p.Alpha*eps[t-1]*eps[t-1] + p.Beta*sigma2[t-1]
	}
	return sigma2
}

// negLogLikelihood is the negative log-likelihood of demeaned residuals
// under GARCH(1,1) with standardized Student-t(nu) innovations.
func negLogLikelihood(eps []float64, p GARCHParams) float64 {
	sigma2 := filterVariance(eps, p)

	nu := p.Nu
	lg1, _ := math.Lgamma((nu + 1) / 2)
	lg2, _ := math.Lgamma(nu / 2)
	logNorm := lg1 - lg2 - 0.5*math.Log(math.Pi*(nu-2))

	ll := 0.0
	for t, e := range eps {
		s2 := sigma2[t]
		if s2 <= 0 || math.IsNaN(s2) || math.IsInf(s2, 0) {
			return math.Inf(1)
		}
		z2 := e * e / s2
		ll += logNorm - 0.5*math.Log(s2) - ((nu+1)/2)*math.Log1p(z2/(nu-2))
	}
	return -ll
}

// paramsFromVector maps unconstrained optimizer coordinates to valid GARCH
// parameters: omega > 0, alpha,beta >= 0, alpha+beta < 1, nu > 2.
func paramsFromVector(x []float64) GARCHParams {
	alpha := sigmoid(x[1])
	beta := sigmoid(x[2]) * (1 - alpha)
	return GARCHParams{
		Omega: math.Exp(x[0]),
		Alpha: alpha,
		Beta:  beta,
		Nu:    2 + math.Exp(x[3]),
	}
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

func logit(p float64) float64 {
	return math.Log(p / (1 - p))
}

// maximizeGARCHLikelihood runs Nelder-Mead with a BFGS retry, accepting the
// usual convergence statuses. Returns ok=false when neither attempt lands on
// a finite optimum.
func maximizeGARCHLikelihood(eps []float64) (GARCHParams, bool) {
	variance := stat.Variance(eps, nil)

	objective := func(x []float64) float64 {
		return negLogLikelihood(eps, paramsFromVector(x))
	}
	// BFGS needs a gradient; the likelihood has no tractable closed form,
	// so supply finite differences. Nelder-Mead ignores it.
	problem := optimize.Problem{
		Func: objective,
		Grad: func(grad, x []float64) {
			fd.Gradient(grad, objective, x, nil)
		},
	}

	// Start from the conventional persistent regime: alpha=0.05, beta=0.90,
	// omega matching the unconditional variance, nu=8.
	initial := []float64{
		math.Log(0.05 * variance),
		logit(0.05),
		logit(0.90 / 0.95),
		math.Log(8 - 2),
	}

	settings := &optimize.Settings{MajorIterations: maxLikelihoodIter}

	successStatuses := map[optimize.Status]bool{
		optimize.Success:             true,
		optimize.GradientThreshold:   true,
		optimize.FunctionConvergence: true,
	}

	result, err := optimize.Minimize(problem, initial, settings, &optimize.NelderMead{})
	if err != nil || !successStatuses[result.Status] {
		result, err = optimize.Minimize(problem, initial, settings, &optimize.BFGS{})
		if err != nil || !successStatuses[result.Status] {
			return GARCHParams{}, false
		}
	}
	if math.IsNaN(result.F) || math.IsInf(result.F, 0) {
		return GARCHParams{}, false
	}
	return paramsFromVector(result.X), true
}
