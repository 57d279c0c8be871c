package metrics_test

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-etl-pipeline/internal/metrics"
	"go-etl-pipeline/internal/pipeline"
)

func scrape(t *testing.T, c *metrics.Collector) string {
	t.Helper()
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	b, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(b)
}

func TestCollectorObservesRun(t *testing.T) {
	ctx := context.Background()
	c := metrics.NewCollector("etl")

	var obs pipeline.Observer = c
	c.RunStarted()
	obs.PhaseStarted(ctx, pipeline.PhaseFetch)
	obs.RecordsFetched(ctx, 3)
	obs.PhaseFinished(ctx, pipeline.PhaseFetch, 10*time.Millisecond, nil)
	obs.RecordProcessed(ctx)
	obs.RecordProcessed(ctx)
	obs.PhaseFinished(ctx, pipeline.PhaseProcess, time.Millisecond, errors.New("x"))
	c.RunFinished("failed")
	c.RecordHTTPRequest("GET", "/api/v1/steps", 200, time.Millisecond)

	out := scrape(t, c)
	assert.Contains(t, out, "etl_records_fetched_total 3")
	assert.Contains(t, out, "etl_records_processed_total 2")
	assert.Contains(t, out, `etl_runs_total{status="failed"} 1`)
	assert.Contains(t, out, "etl_active_runs 0")
	assert.Contains(t, out, `etl_phase_duration_seconds_count{phase="fetch",status="ok"} 1`)
	assert.Contains(t, out, `etl_phase_duration_seconds_count{phase="process",status="error"} 1`)
	assert.Contains(t, out, `etl_http_requests_total{method="GET",path="/api/v1/steps",status_code="200"} 1`)
}

func TestCollectorsAreIndependent(t *testing.T) {
	a := metrics.NewCollector("etl")
	b := metrics.NewCollector("etl")
	a.RecordsFetched(context.Background(), 5)

	assert.Contains(t, scrape(t, a), "etl_records_fetched_total 5")
	assert.Contains(t, scrape(t, b), "etl_records_fetched_total 0")
}
