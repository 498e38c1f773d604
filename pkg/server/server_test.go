package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nicktill/econdash/pkg/config"
	"github.com/nicktill/econdash/pkg/metrics"
	"github.com/nicktill/econdash/pkg/server/monitor"
)

const sourceHeader = "\"Data Source\",\"World Development Indicators\",\n\n\"Last Updated Date\",\"2025-07-01\",\n\n" +
	"\"Country Name\",\"Country Code\",\"Indicator Name\",\"Indicator Code\",\"2000\",\"2001\",\"2002\",\n"

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"gdp.csv": sourceHeader +
			"\"Aruba\",\"ABW\",\"GDP\",\"X\",\"20620.7\",\"20669.0\",\"\",\n" +
			"\"Afghanistan\",\"AFG\",\"GDP\",\"X\",\"..\",\"180.2\",\"190.7\",\n",
		"pop.csv": sourceHeader +
			"\"Aruba\",\"ABW\",\"Pop\",\"X\",\"100\",\"110\",\"\",\n" +
			"\"Afghanistan\",\"AFG\",\"Pop\",\"X\",\"200\",\"0\",\"50\",\n",
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}

	cfg := config.New()
	cfg.DataDir = dir
	cfg.Metrics = []config.Metric{
		{Key: "gdp_per_capita", Title: "GDP per Capita (current US$)", File: "gdp.csv"},
		{Key: "total_population", Title: "Total Population", File: "pop.csv"},
	}
	cfg.LoadConcurrency = 2
	require.NoError(t, cfg.Validate())
	return cfg
}

type testServer struct {
	handler http.Handler
	metrics *metrics.Manager
	sources *monitor.SourceMonitor
	cfg     *config.Config
}

func newTestServer(t *testing.T, origins ...string) *testServer {
	t.Helper()
	cfg := testConfig(t)
	if len(origins) > 0 {
		cfg.AllowedOrigins = origins
	}

	loadMonitor := &monitor.LoadMonitor{}
	store, err := InitializeStore(context.Background(), cfg, loadMonitor)
	require.NoError(t, err)

	mm := metrics.NewManager()
	sources := InitializeSourceMonitor(cfg)
	queryHandler, exportHandler := InitializeHandlers(store, mm)

	h := SetupRoutes(mux.NewRouter(), queryHandler, exportHandler, loadMonitor, sources, mm, cfg.AllowedOrigins)
	return &testServer{handler: h, metrics: mm, sources: sources, cfg: cfg}
}

func (s *testServer) get(t *testing.T, target string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	return rr
}

func TestRoutes_Data(t *testing.T) {
	s := newTestServer(t)

	rr := s.get(t, "/data?countries=ABW,AFG&metrics=population_growth,gdp_per_capita,bogus&start_year=2000&end_year=2002")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{
		"population_growth": {
			"label": "Population Growth (% annual)",
			"series": {
				"ABW": {"countryName": "Aruba", "years": [2001], "values": [10]},
				"AFG": {"countryName": "Afghanistan", "years": [2001], "values": [-100]}
			}
		},
		"gdp_per_capita": {
			"label": "GDP per Capita (current US$)",
			"series": {
				"ABW": {"countryName": "Aruba", "years": [2000, 2001], "values": [20620.7, 20669]},
				"AFG": {"countryName": "Afghanistan", "years": [2001, 2002], "values": [180.2, 190.7]}
			}
		}
	}`, rr.Body.String())
}

func TestRoutes_Metadata(t *testing.T) {
	s := newTestServer(t)

	rr := s.get(t, "/metadata")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{
		"countries": [
			{"Country Name": "Afghanistan", "Country Code": "AFG"},
			{"Country Name": "Aruba", "Country Code": "ABW"}
		],
		"years": {"min": 2000, "max": 2002},
		"metrics": {
			"gdp_per_capita": "GDP per Capita (current US$)",
			"total_population": "Total Population",
			"population_growth": "Population Growth (% annual)"
		}
	}`, rr.Body.String())

	etag := rr.Header().Get("ETag")
	require.NotEmpty(t, etag)
	assert.Equal(t, http.StatusNotModified, s.get(t, "/metadata", "If-None-Match", etag).Code)
}

func TestRoutes_Download(t *testing.T) {
	s := newTestServer(t)

	rr := s.get(t, "/download?countries=ABW&metric=population_growth&start_year=2000&end_year=2002")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "attachment; filename=population_growth_2000_2002.csv", rr.Header().Get("Content-Disposition"))
	assert.Equal(t, "Country Name,Country Code,Year,Value\nAruba,ABW,2000,\nAruba,ABW,2001,10\nAruba,ABW,2002,\n", rr.Body.String())

	rr = s.get(t, "/download?countries=ABW&metric=nonexistent&start_year=2000&end_year=2002")
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "unknown metric")
}

func TestRoutes_BadYearParameters(t *testing.T) {
	s := newTestServer(t)

	for _, target := range []string{
		"/data?countries=ABW&metrics=gdp_per_capita",
		"/data?countries=ABW&metrics=gdp_per_capita&start_year=2000&end_year=later",
		"/download?countries=ABW&metric=gdp_per_capita&start_year=&end_year=2001",
	} {
		rr := s.get(t, target)
		assert.Equal(t, http.StatusBadRequest, rr.Code, target)
		assert.Equal(t, "application/json", rr.Header().Get("Content-Type"), target)
	}
}

func TestRoutes_Health(t *testing.T) {
	s := newTestServer(t)

	rr := s.get(t, "/health")
	require.Equal(t, http.StatusOK, rr.Code)

	var health HealthResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health.Status)
	assert.True(t, health.Load.Healthy)
	assert.Equal(t, 3, health.Load.Tables)
	assert.Equal(t, "derived", health.Load.PerTable["population_growth"].Kind)
	require.NotNil(t, health.Sources)
	assert.Equal(t, 2, health.Sources.Files)
}

func TestRoutes_HealthUnavailableWithoutStore(t *testing.T) {
	lm := &monitor.LoadMonitor{}
	lm.RecordFailure(os.ErrNotExist)

	rr := httptest.NewRecorder()
	handleHealth(lm, nil)(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), `"unavailable"`)
}

func TestRoutes_MetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.get(t, "/data?countries=ABW&metrics=bogus&start_year=2000&end_year=2001")

	rr := s.get(t, "/metrics")
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, `econdash_http_requests_total{endpoint="/data",method="GET",status_code="200"} 1`)
	assert.Contains(t, body, "econdash_query_metrics_skipped_total 1")
	assert.Contains(t, body, `econdash_store_rows{metric="population_growth"} 6`)
}

func TestRoutes_NotFound(t *testing.T) {
	s := newTestServer(t)
	rr := s.get(t, "/nope")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "/nope")
}

func TestMetricsMiddleware_LabelsByRouteTemplate(t *testing.T) {
	s := newTestServer(t)
	s.get(t, "/nope/1")
	s.get(t, "/nope/2")
	s.get(t, "/health")

	body := s.get(t, "/metrics").Body.String()
	assert.Contains(t, body, `econdash_http_requests_total{endpoint="/health",method="GET",status_code="200"} 1`)
	assert.NotContains(t, body, `endpoint="/nope`)
}

func TestMiddleware_RequestID(t *testing.T) {
	s := newTestServer(t)

	rr := s.get(t, "/health")
	generated := rr.Header().Get(RequestIDHeader)
	assert.Len(t, generated, 36)

	rr = s.get(t, "/health", RequestIDHeader, "abc-123")
	assert.Equal(t, "abc-123", rr.Header().Get(RequestIDHeader))
}

func TestMiddleware_CORS(t *testing.T) {
	s := newTestServer(t)
	rr := s.get(t, "/health", "Origin", "http://example.com")
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))

	restricted := newTestServer(t, "http://localhost:3000")
	rr = restricted.get(t, "/health", "Origin", "http://localhost:3000")
	assert.Equal(t, "http://localhost:3000", rr.Header().Get("Access-Control-Allow-Origin"))
	rr = restricted.get(t, "/health", "Origin", "http://evil.example")
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))

	req := httptest.NewRequest(http.MethodOptions, "/data", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rr = httptest.NewRecorder()
	restricted.handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Contains(t, rr.Header().Get("Access-Control-Allow-Methods"), "GET")
}

func TestMiddleware_Recovery(t *testing.T) {
	h := requestIDMiddleware(recoveryMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})))

	rr := httptest.NewRecorder()
	require.NotPanics(t, func() {
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/data", nil))
	})
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.NotEmpty(t, rr.Header().Get(RequestIDHeader))
}

func TestInitializeStore_Failures(t *testing.T) {
	cfg := testConfig(t)
	cfg.DataDir = filepath.Join(cfg.DataDir, "missing")

	lm := &monitor.LoadMonitor{}
	_, err := InitializeStore(context.Background(), cfg, lm)
	require.Error(t, err)
	assert.False(t, lm.IsHealthy())
	assert.Equal(t, 1, lm.Status().Attempts)

	cfg = testConfig(t)
	require.NoError(t, os.WriteFile(filepath.Join(cfg.DataDir, "pop.csv"), []byte("only\nfour\nlines\nhere\n"), 0o644))
	_, err = InitializeStore(context.Background(), cfg, lm)
	require.Error(t, err)
	assert.True(t, strings.Contains(lm.Status().LastError, "total_population"))
}

func TestWatchSources_StopsOnCancel(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, os.WriteFile(filepath.Join(s.cfg.DataDir, "gdp.csv"), []byte("rewritten"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go WatchSources(ctx, s.sources, 10*time.Millisecond, &wg)

	time.Sleep(50 * time.Millisecond)
	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("WatchSources did not stop")
	}
}
