package returns

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPanel(t *testing.T) *Panel {
	t.Helper()
	p, err := NewPanel(
		[]string{"2024-01-02", "2024-01-03", "2024-01-04"},
		[]string{"AAA", "BBB"},
		[][]float64{
			{0.01, -0.02},
			{-0.005, 0.01},
			{0.002, 0.003},
		},
	)
	require.NoError(t, err)
	return p
}

func TestNewPanelValidation(t *testing.T) {
	_, err := NewPanel([]string{"2024-01-02"}, nil, [][]float64{{}})
	assert.Error(t, err)

	_, err = NewPanel([]string{"2024-01-02"}, []string{"AAA"}, [][]float64{{math.NaN()}})
	assert.Error(t, err)

	_, err = NewPanel([]string{"2024-01-02"}, []string{"AAA", "AAA"}, [][]float64{{0.1, 0.2}})
	assert.Error(t, err)
}

func TestPanelFromPrices(t *testing.T) {
	p, err := PanelFromPrices(
		[]string{"d1", "d2", "d3"},
		[]string{"AAA"},
		[][]float64{{100}, {110}, {99}},
	)
	require.NoError(t, err)
	assert.Equal(t, 2, p.T())

	series, err := p.Series("AAA")
	require.NoError(t, err)
	assert.InDelta(t, math.Log(1.1), series[0], 1e-12)
	assert.InDelta(t, math.Log(99.0/110.0), series[1], 1e-12)
}

func TestPanelFromPricesRejectsNonPositive(t *testing.T) {
	_, err := PanelFromPrices(
		[]string{"d1", "d2"},
		[]string{"AAA"},
		[][]float64{{100}, {0}},
	)
	assert.Error(t, err)
}

func TestSeriesUnknownAsset(t *testing.T) {
	p := testPanel(t)
	_, err := p.Series("ZZZ")
	assert.Error(t, err)
}

func TestWeightsAlign(t *testing.T) {
	p := testPanel(t)

	w := Weights{"AAA": 2, "BBB": 2, "GONE": 5}
	aligned, err := w.Align(p)
	require.NoError(t, err)
	assert.Len(t, aligned, 2)
	assert.InDelta(t, 0.5, aligned["AAA"], 1e-12)
	assert.InDelta(t, 0.5, aligned["BBB"], 1e-12)
}

func TestWeightsAlignZeroSum(t *testing.T) {
	p := testPanel(t)
	_, err := Weights{"AAA": 1, "BBB": -1}.Align(p)
	assert.Error(t, err)

	_, err = Weights{"GONE": 1}.Align(p)
	assert.Error(t, err)
}

func TestPortfolioReturns(t *testing.T) {
	p := testPanel(t)
	port, err := PortfolioReturns(p, Weights{"AAA": 0.5, "BBB": 0.5})
	require.NoError(t, err)
	require.Len(t, port, 3)
	assert.InDelta(t, (0.01-0.02)/2, port[0], 1e-12)
	assert.InDelta(t, (-0.005+0.01)/2, port[1], 1e-12)
}
