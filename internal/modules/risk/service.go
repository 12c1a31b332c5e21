// Package risk orchestrates a full portfolio risk run: per-asset marginal
// fits, the portfolio-level aggregators, Monte Carlo simulation, backtests
// and stress scenarios, assembled into one immutable snapshot.
package risk

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/tasoulis/riskbench/internal/modules/backtest"
	"github.com/tasoulis/riskbench/internal/modules/dependence"
	"github.com/tasoulis/riskbench/internal/modules/marginal"
	"github.com/tasoulis/riskbench/internal/modules/montecarlo"
	"github.com/tasoulis/riskbench/internal/modules/portfolio"
	"github.com/tasoulis/riskbench/internal/modules/returns"
	"github.com/tasoulis/riskbench/internal/modules/stress"
	"github.com/tasoulis/riskbench/internal/store"
)

// ErrNoSnapshot is returned before the first successful refresh.
var ErrNoSnapshot = errors.New("no risk snapshot computed yet")

// Params configures a risk run.
type Params struct {
	Weights        returns.Weights
	Classes        map[string]stress.AssetClass
	Lambda         float64
	NumSims        int
	Seed           uint64
	Notional       float64
	LookbackDays   int
	BacktestWindow int
	Parallelism    int
}

// withDefaults fills unset fields.
func (p Params) withDefaults() Params {
	if p.Lambda == 0 {
		p.Lambda = dependence.DefaultLambda
	}
	if p.NumSims == 0 {
		p.NumSims = 100_000
	}
	if p.Seed == 0 {
		p.Seed = 42
	}
	if p.Notional == 0 {
		p.Notional = 1_000_000
	}
	if p.BacktestWindow == 0 {
		p.BacktestWindow = 250
	}
	if p.Parallelism == 0 {
		p.Parallelism = 4
	}
	return p
}

// Service computes and serves risk snapshots. Refresh replaces the held
// snapshot atomically; readers are never blocked by a running computation.
type Service struct {
	prices *store.PriceStore
	cache  *store.ResultCache // optional
	params Params
	log    zerolog.Logger

	mu       sync.RWMutex
	snapshot *Snapshot
	panel    *returns.Panel
	weights  returns.Weights
}

// NewService wires the price input path and run parameters. cache may be
// nil to disable result caching.
func NewService(prices *store.PriceStore, cache *store.ResultCache, params Params, log zerolog.Logger) (*Service, error) {
	if len(params.Weights) == 0 {
		return nil, fmt.Errorf("risk service needs portfolio weights")
	}
	return &Service{
		prices: prices,
		cache:  cache,
		params: params.withDefaults(),
		log:    log.With().Str("component", "risk").Logger(),
	}, nil
}

// Snapshot returns the latest completed run.
func (s *Service) Snapshot() (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snapshot == nil {
		return nil, ErrNoSnapshot
	}
	snap := *s.snapshot
	return &snap, nil
}

// Refresh recomputes the full snapshot from the price store. Per-asset fit
// failures are recorded on the asset row; failures that invalidate the
// portfolio view (unreadable prices, degenerate dependence, simulation
// failure) abort the run and leave the previous snapshot in place.
func (s *Service) Refresh(ctx context.Context) (*Snapshot, error) {
	started := time.Now()

	assets := make([]string, 0, len(s.params.Weights))
	for a := range s.params.Weights {
		assets = append(assets, a)
	}

	panel, err := s.prices.LoadPanel(ctx, assets, s.params.LookbackDays)
	if err != nil {
		return nil, fmt.Errorf("risk refresh: %w", err)
	}
	weights, err := s.params.Weights.Align(panel)
	if err != nil {
		return nil, fmt.Errorf("risk refresh: %w", err)
	}

	snap := Snapshot{
		RunID:       uuid.New().String(),
		GeneratedAt: started,
		Notional:    s.params.Notional,
	}

	garchModels, err := s.fitMarginals(ctx, panel, weights, &snap)
	if err != nil {
		return nil, fmt.Errorf("risk refresh: %w", err)
	}

	if err := s.aggregate(panel, weights, garchModels, &snap); err != nil {
		return nil, fmt.Errorf("risk refresh: %w", err)
	}
	if err := s.simulate(panel, weights, &snap); err != nil {
		return nil, fmt.Errorf("risk refresh: %w", err)
	}
	if err := s.backtest(panel, weights, &snap); err != nil {
		return nil, fmt.Errorf("risk refresh: %w", err)
	}

	stressResults, err := stress.RunAll(weights, s.params.Classes, s.params.Notional)
	if err != nil {
		return nil, fmt.Errorf("risk refresh: %w", err)
	}
	snap.Stress = stressResults

	s.mu.Lock()
	s.snapshot = &snap
	s.panel = panel
	s.weights = weights
	s.mu.Unlock()

	s.log.Info().
		Str("run_id", snap.RunID).
		Int("assets", panel.N()).
		Int("observations", panel.T()).
		Dur("elapsed", time.Since(started)).
		Msg("Risk snapshot refreshed")
	return &snap, nil
}

// fitMarginals builds the per-asset static table sequentially (the degrees
// of freedom search shares a seeded source, so order matters for
// reproducibility) and the conditional GARCH models in parallel. A GARCH
// hard failure for an asset falls back to its static fit so the
// conditional aggregator still covers the full portfolio.
func (s *Service) fitMarginals(ctx context.Context, p *returns.Panel, w returns.Weights, snap *Snapshot) ([]marginal.Model, error) {
	assets := p.Assets()
	staticModels := make([]marginal.Model, len(assets))
	snap.Assets = make([]AssetRisk, len(assets))

	src := rand.NewPCG(s.params.Seed, s.params.Seed)
	for i, asset := range assets {
		series, err := p.Series(asset)
		if err != nil {
			return nil, err
		}

		row := AssetRisk{Asset: asset, Weight: w[asset]}
		model, err := marginal.FitStatic(series, src)
		if err != nil {
			s.log.Warn().Err(err).Str("asset", asset).Msg("Static fit failed")
			row.Error = err.Error()
			snap.Assets[i] = row
			continue
		}

		staticModels[i] = model
		row.Mu = model.Mu
		row.Sigma = model.Sigma
		row.Nu = model.Nu
		// VaR/ES take the tail probability, not the confidence level.
		row.VaR95 = model.VaR(0.05)
		row.VaR99 = model.VaR(0.01)
		if es, err := model.ES(0.05); err == nil {
			row.ES95 = es
		}
		if es, err := model.ES(0.01); err == nil {
			row.ES99 = es
		}
		snap.Assets[i] = row
	}

	garchModels := make([]marginal.Model, len(assets))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.params.Parallelism)
	for i, asset := range assets {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			series, err := p.Series(asset)
			if err != nil {
				return err
			}
			model, err := marginal.FitGARCH(series)
			if err != nil {
				s.log.Warn().Err(err).Str("asset", asset).Msg("GARCH fit failed, using static model")
				model = staticModels[i]
				model.Fallback = true
			}
			garchModels[i] = model
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i := range snap.Assets {
		if snap.Assets[i].Error == "" {
			snap.Assets[i].GARCH = garchModels[i].Kind == marginal.KindConditional
			snap.Assets[i].Fallback = garchModels[i].Fallback
		}
	}
	return garchModels, nil
}

func (s *Service) aggregate(p *returns.Panel, w returns.Weights, garchModels []marginal.Model, snap *Snapshot) error {
	src := rand.NewPCG(s.params.Seed+1, s.params.Seed+1)

	staticSummary, err := portfolio.StaticT(p, w, src)
	if err != nil {
		return err
	}

	ewma, err := dependence.EWMACovariance(p, s.params.Lambda)
	if err != nil {
		return err
	}
	garchSummary, err := portfolio.GARCHT(w.Vector(p.Assets()), garchModels, ewma.Corr)
	if err != nil {
		return err
	}

	portRet, err := returns.PortfolioReturns(p, w)
	if err != nil {
		return err
	}
	histSummary, err := portfolio.Historical(portRet)
	if err != nil {
		return err
	}

	snap.Summaries = []portfolio.Summary{staticSummary, garchSummary, histSummary}
	return nil
}

// mcHorizons are the simulated holding periods, in trading days.
var mcHorizons = []int{1, 10}

func (s *Service) simulate(p *returns.Panel, w returns.Weights, snap *Snapshot) error {
	for _, horizon := range mcHorizons {
		engine := s.engine(horizon)

		cacheKey := store.Key("mc", p.Assets(),
			fmt.Sprintf("h=%d", horizon),
			fmt.Sprintf("sims=%d", engine.NumSims),
			fmt.Sprintf("seed=%d", engine.Seed),
			fmt.Sprintf("lambda=%g", engine.Lambda),
			fmt.Sprintf("notional=%g", engine.Notional),
		)
		if s.cache != nil {
			var cached MonteCarloResult
			if err := s.cache.Get(cacheKey, &cached); err == nil {
				snap.MonteCarlo = append(snap.MonteCarlo, cached)
				if horizon == 1 {
					if err := s.components(engine, p, w, snap); err != nil {
						return err
					}
				}
				continue
			}
		}

		pnl, err := engine.SimulatePnL(p, w)
		if err != nil {
			return err
		}
		result := MonteCarloResult{
			HorizonDays: horizon,
			NumSims:     engine.NumSims,
			Seed:        engine.Seed,
		}
		if result.VaR95, result.CVaR95, err = montecarlo.VaRCVaR(pnl, 0.95); err != nil {
			return err
		}
		if result.VaR99, result.CVaR99, err = montecarlo.VaRCVaR(pnl, 0.99); err != nil {
			return err
		}
		snap.MonteCarlo = append(snap.MonteCarlo, result)

		if s.cache != nil {
			if err := s.cache.Set(cacheKey, result, store.DefaultResultTTL); err != nil {
				s.log.Warn().Err(err).Msg("Failed to cache Monte Carlo result")
			}
		}

		if horizon == 1 {
			if err := s.components(engine, p, w, snap); err != nil {
				return err
			}
		}
	}
	return nil
}

// components decomposes the one-day ES across assets.
func (s *Service) components(engine montecarlo.Engine, p *returns.Panel, w returns.Weights, snap *Snapshot) error {
	scenarios, assets, err := engine.SimulateScenarios(p, w)
	if err != nil {
		return err
	}
	contribs, err := montecarlo.ComponentES(scenarios, assets, w.Vector(assets), 0.95)
	if err != nil {
		return err
	}
	snap.Components = contribs
	return nil
}

func (s *Service) backtest(p *returns.Panel, w returns.Weights, snap *Snapshot) error {
	portRet, err := returns.PortfolioReturns(p, w)
	if err != nil {
		return err
	}

	window := s.params.BacktestWindow
	if len(portRet) <= window {
		s.log.Warn().
			Int("observations", len(portRet)).
			Int("window", window).
			Msg("History shorter than backtest window, skipping backtests")
		return nil
	}

	for _, alpha := range []float64{0.95, 0.99} {
		varSeries, err := backtest.RollingHistoricalVaR(portRet, alpha, window)
		if err != nil {
			return err
		}
		result, err := backtest.Run(portRet, varSeries, alpha)
		if err != nil {
			return err
		}
		snap.Backtests = append(snap.Backtests, BacktestEntry{Alpha: alpha, Window: window, Result: result})
	}
	return nil
}

// BacktestAt reruns the portfolio backtests with a caller-chosen rolling
// window against the panel of the latest refresh.
func (s *Service) BacktestAt(alphas []float64, window int) ([]BacktestEntry, error) {
	s.mu.RLock()
	panel, weights := s.panel, s.weights
	s.mu.RUnlock()
	if panel == nil {
		return nil, ErrNoSnapshot
	}
	if window <= 0 {
		return nil, fmt.Errorf("backtest window must be positive, got %d", window)
	}

	portRet, err := returns.PortfolioReturns(panel, weights)
	if err != nil {
		return nil, err
	}
	if len(portRet) <= window {
		return nil, fmt.Errorf("history of %d returns is too short for a %d-day window", len(portRet), window)
	}

	entries := make([]BacktestEntry, 0, len(alphas))
	for _, alpha := range alphas {
		varSeries, err := backtest.RollingHistoricalVaR(portRet, alpha, window)
		if err != nil {
			return nil, err
		}
		result, err := backtest.Run(portRet, varSeries, alpha)
		if err != nil {
			return nil, err
		}
		entries = append(entries, BacktestEntry{Alpha: alpha, Window: window, Result: result})
	}
	return entries, nil
}

// engine builds the configured Monte Carlo engine for a horizon.
func (s *Service) engine(horizon int) montecarlo.Engine {
	engine := montecarlo.NewEngine()
	engine.Notional = s.params.Notional
	engine.NumSims = s.params.NumSims
	engine.HorizonDays = horizon
	engine.Lambda = s.params.Lambda
	engine.Seed = s.params.Seed
	return engine
}

// MonteCarloRequest overrides the run parameters for an on-demand
// simulation. Zero fields keep the configured values.
type MonteCarloRequest struct {
	HorizonDays int     `json:"horizon_days"`
	NumSims     int     `json:"num_sims"`
	Seed        uint64  `json:"seed"`
	NuCopula    float64 `json:"nu_copula"`
	NuMarginal  float64 `json:"nu_marginal"`
	Notional    float64 `json:"notional"`
}

// RunMonteCarlo simulates on demand against the panel of the latest
// refresh.
func (s *Service) RunMonteCarlo(req MonteCarloRequest) (*MonteCarloResult, error) {
	s.mu.RLock()
	panel, weights := s.panel, s.weights
	s.mu.RUnlock()
	if panel == nil {
		return nil, ErrNoSnapshot
	}

	engine := s.engine(1)
	if req.HorizonDays > 0 {
		engine.HorizonDays = req.HorizonDays
	}
	if req.NumSims > 0 {
		engine.NumSims = req.NumSims
	}
	if req.Seed != 0 {
		engine.Seed = req.Seed
	}
	if req.NuCopula != 0 {
		engine.NuCopula = req.NuCopula
	}
	if req.NuMarginal != 0 {
		engine.NuMarginal = req.NuMarginal
	}
	if req.Notional > 0 {
		engine.Notional = req.Notional
	}

	pnl, err := engine.SimulatePnL(panel, weights)
	if err != nil {
		return nil, fmt.Errorf("on-demand simulation: %w", err)
	}

	result := MonteCarloResult{
		HorizonDays: engine.HorizonDays,
		NumSims:     engine.NumSims,
		Seed:        engine.Seed,
	}
	if result.VaR95, result.CVaR95, err = montecarlo.VaRCVaR(pnl, 0.95); err != nil {
		return nil, err
	}
	if result.VaR99, result.CVaR99, err = montecarlo.VaRCVaR(pnl, 0.99); err != nil {
		return nil, err
	}
	return &result, nil
}
