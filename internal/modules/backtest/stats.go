package backtest

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// logEps keeps likelihood logs finite when an empirical rate hits 0 or 1.
const logEps = 1e-10

// KupiecResult is the Kupiec (1995) proportion-of-failures test: a
// likelihood ratio of the observed exception rate against the nominal
// (1-alpha) rate under a Bernoulli model, asymptotically chi-squared(1).
type KupiecResult struct {
	N             int     `json:"n"`
	Exceptions    int     `json:"exceptions"`
	ExceptionRate float64 `json:"exception_rate"`
	Statistic     float64 `json:"statistic"`
	PValue        float64 `json:"p_value"`
}

// Kupiec runs the POF test over an exception indicator series at VaR
// confidence alpha.
func Kupiec(breaches []bool, alpha float64) (KupiecResult, error) {
	n := len(breaches)
	if n == 0 {
		return KupiecResult{}, fmt.Errorf("no observations for coverage test")
	}
	if alpha <= 0 || alpha >= 1 {
		return KupiecResult{}, fmt.Errorf("confidence %g outside (0,1)", alpha)
	}

	x := 0
	for _, b := range breaches {
		if b {
			x++
		}
	}
	piHat := float64(x) / float64(n)
	piClipped := clip(piHat, logEps, 1-logEps)
	p0 := 1.0 - alpha

	logL0 := float64(x)*math.Log(p0) + float64(n-x)*math.Log(1-p0)
	logL1 := float64(x)*math.Log(piClipped) + float64(n-x)*math.Log(1-piClipped)
	lr := -2.0 * (logL0 - logL1)

	return KupiecResult{
		N:             n,
		Exceptions:    x,
		ExceptionRate: piHat,
		Statistic:     lr,
		PValue:        chiSquaredPValue(lr, 1),
	}, nil
}

// IndependenceResult is the Christoffersen (1998) independence test over a
// first-order Markov transition table of exception indicators. When a state
// never transitions (e.g. zero exceptions throughout) the statistic is NaN:
// the test is inconclusive, not passed.
type IndependenceResult struct {
	N00       int     `json:"n00"`
	N01       int     `json:"n01"`
	N10       int     `json:"n10"`
	N11       int     `json:"n11"`
	Pi01      float64 `json:"pi01"`
	Pi11      float64 `json:"pi11"`
	Statistic float64 `json:"statistic"`
	PValue    float64 `json:"p_value"`
}

// Defined reports whether the test produced a usable statistic.
func (r IndependenceResult) Defined() bool {
	return !math.IsNaN(r.Statistic)
}

// Independence runs the Christoffersen independence test.
func Independence(breaches []bool) (IndependenceResult, error) {
	if len(breaches) < 2 {
		return IndependenceResult{}, fmt.Errorf("need at least 2 observations for independence test, got %d", len(breaches))
	}

	var n00, n01, n10, n11 int
	for t := 1; t < len(breaches); t++ {
		prev, cur := breaches[t-1], breaches[t]
		switch {
		case !prev && !cur:
			n00++
		case !prev && cur:
			n01++
		case prev && !cur:
			n10++
		default:
			n11++
		}
	}

	res := IndependenceResult{N00: n00, N01: n01, N10: n10, N11: n11}
	if n00+n01 == 0 || n10+n11 == 0 {
		res.Pi01 = math.NaN()
		res.Pi11 = math.NaN()
		res.Statistic = math.NaN()
		res.PValue = math.NaN()
		return res, nil
	}

	pi01 := float64(n01) / float64(n00+n01)
	pi11 := float64(n11) / float64(n10+n11)
	n0 := float64(n00 + n01)
	n1 := float64(n10 + n11)
	pi := (float64(n01) + float64(n11)) / (n0 + n1)

	pi01c := clip(pi01, logEps, 1-logEps)
	pi11c := clip(pi11, logEps, 1-logEps)
	pic := clip(pi, logEps, 1-logEps)

	logLRestricted := n0*math.Log(1-pic) + n1*math.Log(pic)
	logLUnrestricted := float64(n00)*math.Log(1-pi01c) + float64(n01)*math.Log(pi01c) +
		float64(n10)*math.Log(1-pi11c) + float64(n11)*math.Log(pi11c)

	lr := -2.0 * (logLRestricted - logLUnrestricted)

	res.Pi01 = pi01
	res.Pi11 = pi11
	res.Statistic = lr
	res.PValue = chiSquaredPValue(lr, 1)
	return res, nil
}

// CoverageResult combines unconditional coverage and independence:
// LR_cc = LR_pof + LR_ind, asymptotically chi-squared(2). Undefined whenever
// the independence component is undefined.
type CoverageResult struct {
	Kupiec       KupiecResult       `json:"kupiec"`
	Independence IndependenceResult `json:"independence"`
	Statistic    float64            `json:"statistic"`
	PValue       float64            `json:"p_value"`
}

// ConditionalCoverage runs the combined Christoffersen test.
func ConditionalCoverage(breaches []bool, alpha float64) (CoverageResult, error) {
	pof, err := Kupiec(breaches, alpha)
	if err != nil {
		return CoverageResult{}, err
	}
	ind, err := Independence(breaches)
	if err != nil {
		return CoverageResult{}, err
	}

	res := CoverageResult{Kupiec: pof, Independence: ind}
	if !ind.Defined() {
		res.Statistic = math.NaN()
		res.PValue = math.NaN()
		return res, nil
	}
	res.Statistic = pof.Statistic + ind.Statistic
	res.PValue = chiSquaredPValue(res.Statistic, 2)
	return res, nil
}

func chiSquaredPValue(statistic float64, df float64) float64 {
	if math.IsNaN(statistic) {
		return math.NaN()
	}
	if statistic <= 0 {
		return 1.0
	}
	return 1.0 - distuv.ChiSquared{K: df}.CDF(statistic)
}

func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
