package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nicktill/econdash/pkg/storage"
)

func TestManagersDoNotShareRegistries(t *testing.T) {
	a := NewManager()
	b := NewManager()
	require.NotSame(t, a.Registry(), b.Registry())

	a.MetricSkipped("nope")
	assert.Equal(t, 1.0, testutil.ToFloat64(a.querySkipped))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.querySkipped))
}

func TestOptions(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewManager(
		WithNamespace("test"),
		WithSubsystem("api"),
		WithHistogramBuckets([]float64{1, 2}),
		WithPrometheusRegistry(reg),
	)
	assert.Same(t, reg, m.Registry())

	m.UnknownMetric("x")
	n, err := testutil.GatherAndCount(reg, "test_api_export_unknown_metric_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestObserveStore(t *testing.T) {
	m := NewManager()
	m.ObserveStore(storage.Stats{
		Tables:       2,
		LoadDuration: 1500 * time.Millisecond,
		PerTable: []storage.TableStats{
			{Key: "gdp_per_capita", Rows: 10, Missing: 3},
			{Key: "population_growth", Rows: 8, Missing: 2},
		},
	})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.storeTables))
	assert.Equal(t, 1.5, testutil.ToFloat64(m.storeLoadDuration))
	assert.Equal(t, 10.0, testutil.ToFloat64(m.storeRows.WithLabelValues("gdp_per_capita")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.storeMissing.WithLabelValues("population_growth")))
}

func TestExportCounters(t *testing.T) {
	m := NewManager()
	m.RowsExported("gdp_per_capita", 4)
	m.RowsExported("gdp_per_capita", 6)
	m.UnknownMetric("nope")

	assert.Equal(t, 10.0, testutil.ToFloat64(m.exportRows.WithLabelValues("gdp_per_capita")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.exportUnknown))
}

func TestHandlerExposesRecordedRequests(t *testing.T) {
	m := NewManager()
	m.RecordHTTPRequest("/data", http.MethodGet, "200", 3)

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	body, err := io.ReadAll(rr.Body)
	require.NoError(t, err)
	out := string(body)
	assert.True(t, strings.Contains(out, `econdash_http_requests_total{endpoint="/data",method="GET",status_code="200"} 1`), out)
	assert.Contains(t, out, "econdash_http_request_duration_milliseconds_bucket")
	assert.Contains(t, out, "go_goroutines")
}
