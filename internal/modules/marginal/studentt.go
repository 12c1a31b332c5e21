package marginal

import (
	"fmt"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Degrees-of-freedom search bounds. The lower bound stays well above 1 so
// the ES factor denominator is always valid.
const (
	MinDF = 2
	MaxDF = 99
)

// EstimateDF selects integer Student-t degrees of freedom for a return
// series by minimizing the two-sample Kolmogorov-Smirnov distance between
// the standardized series and a same-length simulated t(nu) sample.
//
// The search is stochastic: each candidate nu draws a fresh sample from src,
// so results are reproducible only with a pinned source. Ties break toward
// the smallest nu.
func EstimateDF(series []float64, src rand.Source, minDF, maxDF int) (int, error) {
	if len(series) < 2 {
		return 0, fmt.Errorf("need at least 2 observations to estimate degrees of freedom, got %d", len(series))
	}
	if minDF < 2 {
		return 0, fmt.Errorf("minDF must be >= 2, got %d", minDF)
	}
	if maxDF < minDF {
		return 0, fmt.Errorf("maxDF %d below minDF %d", maxDF, minDF)
	}

	mean := stat.Mean(series, nil)
	std := stat.StdDev(series, nil)
	if std == 0 {
		return 0, fmt.Errorf("series has zero variance, degrees of freedom undefined")
	}

	standardized := make([]float64, len(series))
	for i, v := range series {
		standardized[i] = (v - mean) / std
	}
	sort.Float64s(standardized)

	bestNu := minDF
	bestKS := 2.0 // KS statistic is bounded by 1
	sim := make([]float64, len(series))
	for nu := minDF; nu <= maxDF; nu++ {
		dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(nu), Src: src}
		for i := range sim {
			sim[i] = dist.Rand()
		}
		sort.Float64s(sim)

		if ks := ksStatisticSorted(sim, standardized); ks < bestKS {
			bestKS = ks
			bestNu = nu
		}
	}
	return bestNu, nil
}

// FitStatic fits the unconditional Student-t marginal: sample mean, sample
// std (Bessel-corrected), and KS-selected degrees of freedom.
func FitStatic(series []float64, src rand.Source) (Model, error) {
	if len(series) == 0 {
		return Model{}, fmt.Errorf("empty return series")
	}
	nu, err := EstimateDF(series, src, MinDF, MaxDF)
	if err != nil {
		return Model{}, err
	}
	// nu=2 has infinite variance, so scaling by the sample std and the ES
	// formula are both meaningless. Surface it instead of emitting NaNs.
	if nu <= 2 {
		return Model{}, fmt.Errorf("degrees-of-freedom search selected nu=%d, expected shortfall undefined", nu)
	}
	return Model{
		Mu:    stat.Mean(series, nil),
		Sigma: stat.StdDev(series, nil),
		Nu:    float64(nu),
		Kind:  KindStatic,
	}, nil
}

// ksStatisticSorted computes the two-sample Kolmogorov-Smirnov statistic
// sup_x |F1(x) - F2(x)| for two already-sorted samples by merging them.
func ksStatisticSorted(a, b []float64) float64 {
	na, nb := len(a), len(b)
	var i, j int
	var maxDiff float64
	for i < na && j < nb {
		// Consume full runs of the smallest value from both sides before
		// measuring, so ties never produce a spurious mid-tie gap.
		v := a[i]
		if b[j] < v {
			v = b[j]
		}
		for i < na && a[i] == v {
			i++
		}
		for j < nb && b[j] == v {
			j++
		}
		diff := float64(i)/float64(na) - float64(j)/float64(nb)
		if diff < 0 {
			diff = -diff
		}
		if diff > maxDiff {
			maxDiff = diff
		}
	}
	return maxDiff
}
