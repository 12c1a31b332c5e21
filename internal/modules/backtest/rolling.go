// Package backtest validates a VaR series against realized returns with
// likelihood-ratio coverage tests and a Basel-style traffic light. All
// functions are pure over their inputs.
package backtest

import (
	"fmt"
	"math"

	"github.com/tasoulis/riskbench/pkg/formulas"
)

// RollingHistoricalVaR computes, for each date t >= window, the left-tail
// quantile of the trailing window of returns (excluding observation t) at
// confidence alpha. Entries before the window has filled are NaN sentinels,
// never zero: a zero would read as a valid (and absurdly tight) VaR.
func RollingHistoricalVaR(rets []float64, alpha float64, window int) ([]float64, error) {
	if alpha <= 0 || alpha >= 1 {
		return nil, fmt.Errorf("confidence %g outside (0,1)", alpha)
	}
	if window < 2 {
		return nil, fmt.Errorf("window must be at least 2, got %d", window)
	}

	p := 1.0 - alpha
	out := make([]float64, len(rets))
	for t := range rets {
		if t < window {
			out[t] = math.NaN()
			continue
		}
		out[t] = formulas.Quantile(rets[t-window:t], p)
	}
	return out, nil
}
