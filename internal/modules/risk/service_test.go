package risk

import (
	"context"
	"math"
	"math/rand/v2"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/tasoulis/riskbench/internal/database"
	"github.com/tasoulis/riskbench/internal/modules/portfolio"
	"github.com/tasoulis/riskbench/internal/modules/returns"
	"github.com/tasoulis/riskbench/internal/modules/stress"
	"github.com/tasoulis/riskbench/internal/store"
)

// seedPrices writes synthetic t-noise random walks for each asset.
func seedPrices(t *testing.T, s *store.PriceStore, assets []string, days int) {
	t.Helper()
	ctx := context.Background()

	dist := distuv.StudentsT{Mu: 0, Sigma: 0.01, Nu: 6, Src: rand.NewPCG(7, 7)}
	for _, asset := range assets {
		price := 100.0
		for d := 0; d < days; d++ {
			date := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC).
				AddDate(0, 0, d).Format("2006-01-02")
			require.NoError(t, s.UpsertPrice(ctx, asset, date, price))
			price *= math.Exp(dist.Rand())
		}
	}
}

func newTestService(t *testing.T, params Params) *Service {
	t.Helper()

	pricesDB, err := database.New(database.Config{
		Path: filepath.Join(t.TempDir(), "prices.db"),
		Name: "prices",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pricesDB.Close() })

	priceStore := store.NewPriceStore(pricesDB, zerolog.Nop())
	require.NoError(t, priceStore.Migrate())
	seedPrices(t, priceStore, []string{"AAA", "BBB", "CCC"}, 400)

	cacheDB, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), "cache.db"),
		Profile: database.ProfileCache,
		Name:    "cache",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = cacheDB.Close() })

	cache := store.NewResultCache(cacheDB)
	require.NoError(t, cache.Migrate())

	svc, err := NewService(priceStore, cache, params, zerolog.Nop())
	require.NoError(t, err)
	return svc
}

func testParams() Params {
	return Params{
		Weights: returns.Weights{"AAA": 0.5, "BBB": 0.3, "CCC": 0.2},
		Classes: map[string]stress.AssetClass{
			"AAA": stress.ClassEquity,
			"BBB": stress.ClassBond,
			"CCC": stress.ClassCommodity,
		},
		NumSims:        4000,
		Seed:           11,
		BacktestWindow: 100,
	}
}

func TestServiceRequiresWeights(t *testing.T) {
	_, err := NewService(nil, nil, Params{}, zerolog.Nop())
	assert.Error(t, err)
}

func TestSnapshotBeforeRefresh(t *testing.T) {
	svc := newTestService(t, testParams())
	_, err := svc.Snapshot()
	assert.ErrorIs(t, err, ErrNoSnapshot)

	_, err = svc.RunMonteCarlo(MonteCarloRequest{})
	assert.ErrorIs(t, err, ErrNoSnapshot)
}

func TestRefreshBuildsFullSnapshot(t *testing.T) {
	svc := newTestService(t, testParams())

	snap, err := svc.Refresh(context.Background())
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.NotEmpty(t, snap.RunID)

	// Per-asset table: all three fit, no failures on clean data.
	require.Len(t, snap.Assets, 3)
	for _, a := range snap.Assets {
		assert.Empty(t, a.Error)
		assert.Greater(t, a.Sigma, 0.0)
		assert.GreaterOrEqual(t, a.Nu, 2.0)
		assert.Less(t, a.VaR95, 0.0)
		assert.Less(t, a.ES95, a.VaR95, "expected shortfall is deeper than VaR")
		assert.Less(t, a.VaR99, a.VaR95)
		// The table must report the lower quantile, not its mirror image.
		lower := distuv.StudentsT{Mu: a.Mu, Sigma: a.Sigma, Nu: a.Nu}.Quantile(0.05)
		assert.InDelta(t, lower, a.VaR95, 1e-12)
	}

	// The three aggregators, in model order.
	require.Len(t, snap.Summaries, 3)
	models := []string{}
	for _, sum := range snap.Summaries {
		models = append(models, sum.Model)
		assert.Less(t, sum.VaR95, 0.0)
		assert.Less(t, sum.VaR99, sum.VaR95)
	}
	assert.Equal(t, []string{portfolio.ModelStaticT, portfolio.ModelGARCHT, portfolio.ModelHistorical}, models)

	// Monte Carlo at both horizons; ten-day risk is bigger than one-day.
	require.Len(t, snap.MonteCarlo, 2)
	assert.Equal(t, 1, snap.MonteCarlo[0].HorizonDays)
	assert.Equal(t, 10, snap.MonteCarlo[1].HorizonDays)
	assert.Less(t, snap.MonteCarlo[1].VaR99, snap.MonteCarlo[0].VaR99)

	// Component ES covers every asset.
	require.Len(t, snap.Components, 3)

	// Backtests at both confidence levels.
	require.Len(t, snap.Backtests, 2)
	assert.Equal(t, 0.95, snap.Backtests[0].Alpha)
	assert.Equal(t, 0.99, snap.Backtests[1].Alpha)
	assert.Greater(t, snap.Backtests[0].Result.Observations, 0)

	// All four stress scenarios.
	assert.Len(t, snap.Stress, 4)

	// The snapshot is now served.
	got, err := svc.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, snap.RunID, got.RunID)
}

func TestRefreshUsesCacheOnSecondRun(t *testing.T) {
	svc := newTestService(t, testParams())

	first, err := svc.Refresh(context.Background())
	require.NoError(t, err)
	second, err := svc.Refresh(context.Background())
	require.NoError(t, err)

	assert.NotEqual(t, first.RunID, second.RunID)
	// Same inputs, cached simulation: identical numbers.
	assert.Equal(t, first.MonteCarlo, second.MonteCarlo)
}

func TestRunMonteCarloDeterministic(t *testing.T) {
	svc := newTestService(t, testParams())
	_, err := svc.Refresh(context.Background())
	require.NoError(t, err)

	req := MonteCarloRequest{NumSims: 2000, Seed: 99}
	a, err := svc.RunMonteCarlo(req)
	require.NoError(t, err)
	b, err := svc.RunMonteCarlo(req)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := svc.RunMonteCarlo(MonteCarloRequest{NumSims: 2000, Seed: 100})
	require.NoError(t, err)
	assert.NotEqual(t, a.VaR99, c.VaR99)

	ten, err := svc.RunMonteCarlo(MonteCarloRequest{HorizonDays: 10, NumSims: 2000, Seed: 99})
	require.NoError(t, err)
	assert.Equal(t, 10, ten.HorizonDays)
	assert.Less(t, ten.VaR99, a.VaR99)
}

func TestRefreshUnknownAssetFails(t *testing.T) {
	params := testParams()
	params.Weights["ZZZ"] = 0.1

	svc := newTestService(t, params)
	_, err := svc.Refresh(context.Background())
	// The price store rejects assets with no history outright.
	assert.Error(t, err)
}
