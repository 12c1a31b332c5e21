// Package store provides the sqlite-backed price input path and the
// msgpack result cache.
package store

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog"

	"github.com/tasoulis/riskbench/internal/database"
	"github.com/tasoulis/riskbench/internal/modules/returns"
)

// PricesSchema creates the daily price table.
const PricesSchema = `
CREATE TABLE IF NOT EXISTS daily_prices (
    asset TEXT NOT NULL,
    date  TEXT NOT NULL,
    close REAL NOT NULL,
    PRIMARY KEY (asset, date)
);
CREATE INDEX IF NOT EXISTS idx_daily_prices_date ON daily_prices(date);
`

// PriceStore reads daily close prices and assembles return panels.
type PriceStore struct {
	db  *database.DB
	log zerolog.Logger
}

// NewPriceStore wraps an opened prices database.
func NewPriceStore(db *database.DB, log zerolog.Logger) *PriceStore {
	return &PriceStore{
		db:  db,
		log: log.With().Str("component", "price_store").Logger(),
	}
}

// Migrate applies the price schema.
func (s *PriceStore) Migrate() error {
	return s.db.Migrate(PricesSchema)
}

// UpsertPrice writes one close observation.
func (s *PriceStore) UpsertPrice(ctx context.Context, asset, date string, close float64) error {
	if close <= 0 || math.IsNaN(close) || math.IsInf(close, 0) {
		return fmt.Errorf("invalid close price %g for %s on %s", close, asset, date)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO daily_prices (asset, date, close)
		VALUES (?, ?, ?)
		ON CONFLICT(asset, date) DO UPDATE SET close = excluded.close
	`, asset, date, close)
	if err != nil {
		return fmt.Errorf("failed to upsert price for %s: %w", asset, err)
	}
	return nil
}

// Assets lists the distinct assets with at least one price row.
func (s *PriceStore) Assets(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT asset FROM daily_prices ORDER BY asset")
	if err != nil {
		return nil, fmt.Errorf("failed to list assets: %w", err)
	}
	defer rows.Close()

	var assets []string
	for rows.Next() {
		var a string
		if err := rows.Scan(&a); err != nil {
			return nil, fmt.Errorf("failed to scan asset: %w", err)
		}
		assets = append(assets, a)
	}
	return assets, rows.Err()
}

// LoadPanel builds a log-return panel for the given assets over at most
// lookback trading days (0 means all history). Dates where some asset has
// no quote are filled: forward from the previous close, then backward from
// the first available close, matching how gappy cross-listed series are
// usually aligned. Assets with no prices at all are rejected.
func (s *PriceStore) LoadPanel(ctx context.Context, assets []string, lookback int) (*returns.Panel, error) {
	if len(assets) == 0 {
		return nil, fmt.Errorf("no assets requested")
	}

	sorted := append([]string(nil), assets...)
	sort.Strings(sorted)

	prices := make(map[string]map[string]float64, len(sorted))
	dateSet := make(map[string]struct{})

	for _, asset := range sorted {
		rows, err := s.db.QueryContext(ctx,
			"SELECT date, close FROM daily_prices WHERE asset = ? ORDER BY date", asset)
		if err != nil {
			return nil, fmt.Errorf("failed to load prices for %s: %w", asset, err)
		}

		series := make(map[string]float64)
		for rows.Next() {
			var date string
			var close float64
			if err := rows.Scan(&date, &close); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan price row for %s: %w", asset, err)
			}
			series[date] = close
			dateSet[date] = struct{}{}
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("price scan for %s: %w", asset, err)
		}
		if len(series) == 0 {
			return nil, fmt.Errorf("asset %s has no price history", asset)
		}
		prices[asset] = series
	}

	dates := make([]string, 0, len(dateSet))
	for d := range dateSet {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	if lookback > 0 && len(dates) > lookback+1 {
		// One extra date so lookback returns survive differencing.
		dates = dates[len(dates)-lookback-1:]
	}

	grid := make([][]float64, len(dates))
	for i, date := range dates {
		row := make([]float64, len(sorted))
		for j, asset := range sorted {
			if px, ok := prices[asset][date]; ok {
				row[j] = px
			} else {
				row[j] = math.NaN()
			}
		}
		grid[i] = row
	}

	filled := fillGaps(grid)
	s.log.Debug().
		Int("assets", len(sorted)).
		Int("dates", len(dates)).
		Msg("Loaded price panel")

	panel, err := returns.PanelFromPrices(dates, sorted, filled)
	if err != nil {
		return nil, fmt.Errorf("failed to build return panel: %w", err)
	}
	return panel, nil
}

// fillGaps forward-fills each column then back-fills the leading gap.
func fillGaps(grid [][]float64) [][]float64 {
	if len(grid) == 0 {
		return grid
	}
	cols := len(grid[0])

	for j := 0; j < cols; j++ {
		last := math.NaN()
		for i := 0; i < len(grid); i++ {
			if math.IsNaN(grid[i][j]) {
				grid[i][j] = last
			} else {
				last = grid[i][j]
			}
		}
		// Leading gap: seed from the first real observation.
		first := math.NaN()
		for i := 0; i < len(grid); i++ {
			if !math.IsNaN(grid[i][j]) {
				first = grid[i][j]
				break
			}
		}
		for i := 0; i < len(grid) && math.IsNaN(grid[i][j]); i++ {
			grid[i][j] = first
		}
	}
	return grid
}
