// Package returns holds the immutable daily return panel and portfolio
// weight handling that every estimator consumes.
package returns

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Panel is an immutable T x N matrix of daily log returns with ordered dates
// and a fixed asset universe. Construct once, never mutate.
type Panel struct {
	dates  []string
	assets []string
	index  map[string]int
	data   *mat.Dense // T x N
}

// NewPanel builds a panel from row-major return data. rows[t][i] is the log
// return of assets[i] on dates[t].
func NewPanel(dates []string, assets []string, rows [][]float64) (*Panel, error) {
	if len(assets) == 0 {
		return nil, fmt.Errorf("panel needs at least one asset")
	}
	if len(dates) == 0 {
		return nil, fmt.Errorf("panel needs at least one observation")
	}
	if len(rows) != len(dates) {
		return nil, fmt.Errorf("row count %d does not match date count %d", len(rows), len(dates))
	}

	data := mat.NewDense(len(dates), len(assets), nil)
	for t, row := range rows {
		if len(row) != len(assets) {
			return nil, fmt.Errorf("row %d has %d values, expected %d", t, len(row), len(assets))
		}
		for i, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("non-finite return for %s on %s", assets[i], dates[t])
			}
			data.Set(t, i, v)
		}
	}

	index := make(map[string]int, len(assets))
	for i, a := range assets {
		if _, dup := index[a]; dup {
			return nil, fmt.Errorf("duplicate asset %q", a)
		}
		index[a] = i
	}

	return &Panel{
		dates:  append([]string(nil), dates...),
		assets: append([]string(nil), assets...),
		index:  index,
		data:   data,
	}, nil
}

// PanelFromPrices converts a price panel to a log-return panel. The first
// date is consumed by differencing. Prices must be strictly positive.
func PanelFromPrices(dates []string, assets []string, prices [][]float64) (*Panel, error) {
	if len(prices) < 2 {
		return nil, fmt.Errorf("need at least 2 price rows to compute returns, got %d", len(prices))
	}
	if len(dates) != len(prices) {
		return nil, fmt.Errorf("price row count %d does not match date count %d", len(prices), len(dates))
	}

	rows := make([][]float64, len(prices)-1)
	for t := 1; t < len(prices); t++ {
		if len(prices[t]) != len(assets) || len(prices[t-1]) != len(assets) {
			return nil, fmt.Errorf("price row %d has wrong width", t)
		}
		row := make([]float64, len(assets))
		for i := range assets {
			prev, cur := prices[t-1][i], prices[t][i]
			if prev <= 0 || cur <= 0 {
				return nil, fmt.Errorf("non-positive price for %s on %s", assets[i], dates[t])
			}
			row[i] = math.Log(cur / prev)
		}
		rows[t-1] = row
	}

	return NewPanel(dates[1:], assets, rows)
}

// T returns the number of observations.
func (p *Panel) T() int { return len(p.dates) }

// N returns the number of assets.
func (p *Panel) N() int { return len(p.assets) }

// Dates returns a copy of the ordered date index.
func (p *Panel) Dates() []string { return append([]string(nil), p.dates...) }

// Assets returns a copy of the asset universe in column order.
func (p *Panel) Assets() []string { return append([]string(nil), p.assets...) }

// HasAsset reports whether the asset is a panel column.
func (p *Panel) HasAsset(asset string) bool {
	_, ok := p.index[asset]
	return ok
}

// Series returns a copy of one asset's return series, oldest first.
func (p *Panel) Series(asset string) ([]float64, error) {
	i, ok := p.index[asset]
	if !ok {
		return nil, fmt.Errorf("asset %q not in panel", asset)
	}
	out := make([]float64, p.T())
	mat.Col(out, i, p.data)
	return out, nil
}

// Row returns a copy of the cross-section of returns at observation t.
func (p *Panel) Row(t int) []float64 {
	out := make([]float64, p.N())
	mat.Row(out, t, p.data)
	return out
}

// Matrix returns a dense copy of the full T x N return matrix.
func (p *Panel) Matrix() *mat.Dense {
	out := mat.NewDense(p.T(), p.N(), nil)
	out.Copy(p.data)
	return out
}
