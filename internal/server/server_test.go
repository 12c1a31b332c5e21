package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tasoulis/riskbench/internal/database"
	"github.com/tasoulis/riskbench/internal/modules/returns"
	"github.com/tasoulis/riskbench/internal/modules/risk"
	riskhandlers "github.com/tasoulis/riskbench/internal/modules/risk/handlers"
	"github.com/tasoulis/riskbench/internal/store"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	pricesDB, err := database.New(database.Config{
		Path: filepath.Join(t.TempDir(), "prices.db"),
		Name: "prices",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pricesDB.Close() })

	cacheDB, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), "cache.db"),
		Profile: database.ProfileCache,
		Name:    "cache",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = cacheDB.Close() })

	priceStore := store.NewPriceStore(pricesDB, zerolog.Nop())
	require.NoError(t, priceStore.Migrate())

	svc, err := risk.NewService(priceStore, nil, risk.Params{
		Weights: returns.Weights{"AAA": 1.0},
	}, zerolog.Nop())
	require.NoError(t, err)

	return New(Config{
		Port:     0,
		Log:      zerolog.Nop(),
		PricesDB: pricesDB,
		CacheDB:  cacheDB,
		Risk:     riskhandlers.NewHandler(svc, zerolog.Nop()),
		DevMode:  true,
	})
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Status    string            `json:"status"`
		Databases map[string]string `json:"databases"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "ok", body.Databases["prices"])
	assert.Equal(t, "ok", body.Databases["cache"])
}

func TestRiskRoutesMounted(t *testing.T) {
	srv := newTestServer(t)

	// No refresh has run yet: mounted route answers 503, not 404.
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/risk/summary", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
