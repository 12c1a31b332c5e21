// Package handlers provides HTTP handlers for risk snapshot operations.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/tasoulis/riskbench/internal/modules/risk"
)

// Handler serves the risk service over HTTP.
type Handler struct {
	svc *risk.Service
	log zerolog.Logger
}

// NewHandler creates a new risk handler.
func NewHandler(svc *risk.Service, log zerolog.Logger) *Handler {
	return &Handler{
		svc: svc,
		log: log.With().Str("handler", "risk").Logger(),
	}
}

// HandleGetSummary handles GET /api/risk/summary
func (h *Handler) HandleGetSummary(w http.ResponseWriter, r *http.Request) {
	snap, err := h.snapshot(w)
	if err != nil {
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"run_id":       snap.RunID,
			"generated_at": snap.GeneratedAt.Format(time.RFC3339),
			"notional":     snap.Notional,
			"summaries":    snap.Summaries,
			"monte_carlo":  snap.MonteCarlo,
			"components":   snap.Components,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleGetAssets handles GET /api/risk/assets
func (h *Handler) HandleGetAssets(w http.ResponseWriter, r *http.Request) {
	snap, err := h.snapshot(w)
	if err != nil {
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"run_id": snap.RunID,
			"assets": snap.Assets,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleGetBacktest handles GET /api/risk/backtest?alpha=0.99&window=250
func (h *Handler) HandleGetBacktest(w http.ResponseWriter, r *http.Request) {
	snap, err := h.snapshot(w)
	if err != nil {
		return
	}

	alphas := []float64{0.95, 0.99}
	if raw := r.URL.Query().Get("alpha"); raw != "" {
		alpha, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			http.Error(w, "invalid alpha parameter", http.StatusBadRequest)
			return
		}
		alphas = []float64{alpha}
	}

	backtests := snap.Backtests
	if raw := r.URL.Query().Get("window"); raw != "" {
		window, err := strconv.Atoi(raw)
		if err != nil || window <= 0 {
			http.Error(w, "invalid window parameter", http.StatusBadRequest)
			return
		}
		backtests, err = h.svc.BacktestAt(alphas, window)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	} else if len(alphas) == 1 {
		filtered := backtests[:0:0]
		for _, bt := range backtests {
			if bt.Alpha == alphas[0] {
				filtered = append(filtered, bt)
			}
		}
		backtests = filtered
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"run_id":    snap.RunID,
			"backtests": backtests,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandlePostMonteCarlo handles POST /api/risk/montecarlo
func (h *Handler) HandlePostMonteCarlo(w http.ResponseWriter, r *http.Request) {
	var req risk.MonteCarloRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.svc.RunMonteCarlo(req)
	if err != nil {
		if errors.Is(err, risk.ErrNoSnapshot) {
			http.Error(w, "no risk snapshot available yet", http.StatusServiceUnavailable)
			return
		}
		h.log.Error().Err(err).Msg("On-demand simulation failed")
		http.Error(w, "simulation failed", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": result,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleGetStress handles GET /api/risk/stress
func (h *Handler) HandleGetStress(w http.ResponseWriter, r *http.Request) {
	snap, err := h.snapshot(w)
	if err != nil {
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"run_id":    snap.RunID,
			"notional":  snap.Notional,
			"scenarios": snap.Stress,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// snapshot fetches the latest snapshot, writing the error response itself
// when none exists.
func (h *Handler) snapshot(w http.ResponseWriter) (*risk.Snapshot, error) {
	snap, err := h.svc.Snapshot()
	if err != nil {
		if errors.Is(err, risk.ErrNoSnapshot) {
			http.Error(w, "no risk snapshot available yet", http.StatusServiceUnavailable)
		} else {
			h.log.Error().Err(err).Msg("Failed to read snapshot")
			http.Error(w, "failed to read snapshot", http.StatusInternalServerError)
		}
		return nil, err
	}
	return snap, nil
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
