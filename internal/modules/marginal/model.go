// Package marginal provides per-asset risk models: a static Student-t fit
// selected by KS distance and a conditional GARCH(1,1)-t fit. All estimators
// are pure functions over a single return series; callers own any
// parallelism across assets.
package marginal

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// Kind distinguishes unconditional from conditional-volatility models.
type Kind string

const (
	KindStatic      Kind = "static"
	KindConditional Kind = "conditional"
)

// Model holds the fitted location/scale/tail parameters of one asset.
// For conditional models Mu and Sigma are one-step-ahead forecasts.
type Model struct {
	Mu    float64
	Sigma float64
	Nu    float64
	Kind  Kind

	// Fallback marks estimates produced by the unconditional fallback path
	// (short history or optimizer non-convergence).
	Fallback bool
}

// ESFactor returns the Student-t expected-shortfall multiplier for tail
// probability alpha: ES = mu + sigma * ESFactor(alpha, nu). Requires nu > 1
// so the (nu-1) denominator is valid; nu <= 2 additionally means infinite
// variance, which callers must rule out before scaling by a sample std.
func ESFactor(alpha, nu float64) (float64, error) {
	if nu <= 1 {
		return 0, fmt.Errorf("es factor undefined for nu=%g (need nu > 1)", nu)
	}
	if alpha <= 0 || alpha >= 1 {
		return 0, fmt.Errorf("tail probability %g outside (0,1)", alpha)
	}
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: nu}
	q := dist.Quantile(alpha)
	pdf := dist.Prob(q)
	return -((nu + q*q) / (nu - 1)) * (pdf / alpha), nil
}

// VaR returns the signed return threshold at tail probability alpha
// (e.g. alpha=0.05 for 95% VaR).
func (m Model) VaR(alpha float64) float64 {
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: m.Nu}
	return m.Mu + m.Sigma*dist.Quantile(alpha)
}

// ES returns the signed expected shortfall at tail probability alpha.
func (m Model) ES(alpha float64) (float64, error) {
	factor, err := ESFactor(alpha, m.Nu)
	if err != nil {
		return math.NaN(), err
	}
	return m.Mu + m.Sigma*factor, nil
}
