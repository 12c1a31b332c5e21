package backtest

import (
	"fmt"
	"math"
)

// Result is a full VaR backtest: observation counts, the exception mask,
// coverage statistics, and the 99%-only traffic-light zone.
type Result struct {
	Alpha         float64            `json:"alpha"`
	Observations  int                `json:"observations"`
	Exceptions    int                `json:"exceptions"`
	ExceptionRate float64            `json:"exception_rate"`
	Breaches      []bool             `json:"breaches"`
	Kupiec        KupiecResult       `json:"kupiec"`
	Independence  IndependenceResult `json:"independence"`
	Coverage      CoverageResult     `json:"conditional_coverage"`
	Zone          Zone               `json:"zone"`
	GreenMax      int                `json:"green_max,omitempty"`
	YellowMax     int                `json:"yellow_max,omitempty"`
}

// Run backtests a VaR series against realized returns at confidence alpha.
// The two series are index-aligned; entries where the VaR is the NaN
// sentinel (warm-up period of a rolling estimator) are excluded, not
// treated as zero. An exception is a realized return strictly below the VaR
// threshold (VaR is a signed loss level).
func Run(rets, varSeries []float64, alpha float64) (Result, error) {
	if len(rets) != len(varSeries) {
		return Result{}, fmt.Errorf("returns (%d) and VaR series (%d) lengths differ", len(rets), len(varSeries))
	}

	breaches := make([]bool, 0, len(rets))
	for i := range rets {
		if math.IsNaN(varSeries[i]) {
			continue
		}
		breaches = append(breaches, rets[i] < varSeries[i])
	}
	if len(breaches) == 0 {
		return Result{}, fmt.Errorf("no defined observations after dropping VaR warm-up")
	}

	exceptions := 0
	for _, b := range breaches {
		if b {
			exceptions++
		}
	}

	pof, err := Kupiec(breaches, alpha)
	if err != nil {
		return Result{}, err
	}
	cc, err := ConditionalCoverage(breaches, alpha)
	if err != nil {
		return Result{}, err
	}

	res := Result{
		Alpha:         alpha,
		Observations:  len(breaches),
		Exceptions:    exceptions,
		ExceptionRate: float64(exceptions) / float64(len(breaches)),
		Breaches:      breaches,
		Kupiec:        pof,
		Independence:  cc.Independence,
		Coverage:      cc,
		Zone:          ZoneUndefined,
	}

	// The traffic light is defined for the 99% level only.
	if alpha == 0.99 {
		res.Zone = TrafficLight99(len(breaches), exceptions)
		if green, yellow, ok := Thresholds99(len(breaches)); ok {
			res.GreenMax = green
			res.YellowMax = yellow
		}
	}
	return res, nil
}
