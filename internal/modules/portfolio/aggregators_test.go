package portfolio

import (
	"fmt"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/tasoulis/riskbench/internal/modules/marginal"
	"github.com/tasoulis/riskbench/internal/modules/returns"
)

// independentTPanel builds a panel of independent Student-t(nu) assets with
// the given daily sigma.
func independentTPanel(t *testing.T, days, assets int, nu, sigma float64, seed uint64) *returns.Panel {
	t.Helper()
	src := rand.NewPCG(seed, seed)
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: nu, Src: src}
	stdT := math.Sqrt(nu / (nu - 2))

	dates := make([]string, days)
	rows := make([][]float64, days)
	names := make([]string, assets)
	for i := range names {
		names[i] = fmt.Sprintf("A%d", i)
	}
	for d := 0; d < days; d++ {
		dates[d] = fmt.Sprintf("d%04d", d)
		row := make([]float64, assets)
		for i := range row {
			row[i] = sigma * dist.Rand() / stdT
		}
		rows[d] = row
	}
	p, err := returns.NewPanel(dates, names, rows)
	require.NoError(t, err)
	return p
}

func TestStaticTOrdering(t *testing.T) {
	p := independentTPanel(t, 1500, 2, 5, 0.01, 42)
	w := returns.Weights{"A0": 0.5, "A1": 0.5}

	s, err := StaticT(p, w, rand.NewPCG(42, 42))
	require.NoError(t, err)

	assert.Equal(t, ModelStaticT, s.Model)
	assert.Less(t, s.VaR95, 0.0)
	assert.Less(t, s.ES95, s.VaR95)
	assert.Less(t, s.VaR99, s.VaR95)
	assert.Less(t, s.ES99, s.VaR99)
}

func TestStaticTIndependentAssetsScaleBySqrtHalf(t *testing.T) {
	// Two independent t(5, sigma=0.01) assets, equal weights: portfolio VaR
	// should match the single-asset analytic VaR scaled by sqrt(0.5).
	p := independentTPanel(t, 4000, 2, 5, 0.01, 7)
	w := returns.Weights{"A0": 0.5, "A1": 0.5}

	s, err := StaticT(p, w, rand.NewPCG(42, 42))
	require.NoError(t, err)

	single := marginal.Model{Mu: 0, Sigma: 0.01, Nu: 5, Kind: marginal.KindStatic}
	want := single.VaR(0.05) * math.Sqrt(0.5)

	assert.InDelta(t, want, s.VaR95, math.Abs(want)*0.25)
}

func TestGARCHT(t *testing.T) {
	models := []marginal.Model{
		{Mu: 0.0, Sigma: 0.01, Nu: 5, Kind: marginal.KindConditional},
		{Mu: 0.0, Sigma: 0.02, Nu: 9, Kind: marginal.KindConditional},
	}
	corr := mat.NewSymDense(2, []float64{1, 0.5, 0.5, 1})
	weights := []float64{0.5, 0.5}

	s, err := GARCHT(weights, models, corr)
	require.NoError(t, err)

	assert.Equal(t, ModelGARCHT, s.Model)
	assert.InDelta(t, 7.0, s.Nu, 1e-12, "|w|-weighted average of per-asset nu")

	// sigma_p^2 = 0.25*(0.0001 + 0.0004) + 2*0.25*0.5*0.0002
	wantSigma := math.Sqrt(0.25*0.0005 + 0.00005)
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: 7}
	assert.InDelta(t, wantSigma*dist.Quantile(0.05), s.VaR95, 1e-9)
	assert.Less(t, s.ES95, s.VaR95)
}

func TestGARCHTValidation(t *testing.T) {
	corr := mat.NewSymDense(2, []float64{1, 0, 0, 1})
	models := []marginal.Model{{Sigma: 0.01, Nu: 5}, {Sigma: 0.01, Nu: 5}}

	_, err := GARCHT(nil, nil, corr)
	assert.Error(t, err)

	_, err = GARCHT([]float64{1}, models, corr)
	assert.Error(t, err)

	_, err = GARCHT([]float64{0, 0}, models, corr)
	assert.Error(t, err)
}

func TestHistorical(t *testing.T) {
	// 100 evenly spread returns from -0.05 to +0.049.
	rets := make([]float64, 100)
	for i := range rets {
		rets[i] = -0.05 + 0.001*float64(i)
	}

	s, err := Historical(rets)
	require.NoError(t, err)

	assert.Equal(t, ModelHistorical, s.Model)
	assert.Zero(t, s.Nu)
	assert.Less(t, s.VaR99, s.VaR95)
	assert.LessOrEqual(t, s.ES95, s.VaR95)
	assert.LessOrEqual(t, s.ES99, s.VaR99)
}

func TestHistoricalEmpty(t *testing.T) {
	_, err := Historical(nil)
	assert.Error(t, err)
}

func TestMeanStd(t *testing.T) {
	mu, sd := MeanStd([]float64{1, 2, 3})
	assert.InDelta(t, 2.0, mu, 1e-12)
	assert.InDelta(t, 1.0, sd, 1e-12)

	mu, sd = MeanStd(nil)
	assert.Zero(t, mu)
	assert.Zero(t, sd)
}
