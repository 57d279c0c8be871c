package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-etl-pipeline/internal/api"
	"go-etl-pipeline/internal/api/handler"
	"go-etl-pipeline/internal/engine"
	"go-etl-pipeline/internal/metrics"
	"go-etl-pipeline/internal/model"
	"go-etl-pipeline/internal/pipeline"
	"go-etl-pipeline/internal/steps"
	"go-etl-pipeline/internal/store"
	"go-etl-pipeline/pkg/router"
)

type server struct {
	router *router.Router
	engine *engine.Engine
}

func newServer(t *testing.T) *server {
	t.Helper()
	s, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "runs.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	reg := steps.NewRegistry()
	m := metrics.NewCollector("test")
	e := engine.New(nil, reg, engine.WithStore(s), engine.WithMetrics(m))
	r := router.New(nil)
	api.RegisterRoutes(r, handler.NewPipelineHandler(nil, e, s, reg), m)
	return &server{router: r, engine: e}
}

func (s *server) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

const goodPipeline = `{
	"name": "demo",
	"pipeline": {
		"searchPaths": ["sources", "transformers", "loaders"],
		"source": {"module": "static", "config": {"records": [{"n": 1}, {"n": 2}]}},
		"transformers": [{"module": "expr", "config": {"fields": {"double": "n * 2"}}}],
		"loader": {"module": "log", "config": {}}
	}
}`

const failingPipeline = `{
	"name": "broken",
	"pipeline": {
		"source": {"module": "sources/static", "config": {"records": [{"n": 1}]}},
		"loader": {"module": "loaders/nope", "config": {}}
	}
}`

func TestCreateAndInspectRun(t *testing.T) {
	s := newServer(t)

	rec := s.do(t, "POST", "/api/v1/pipelines", goodPipeline)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	created := decode[model.SubmitResponse](t, rec)
	require.NotEmpty(t, created.ID)
	assert.Equal(t, "pending", created.Status)
	s.engine.Wait()

	rec = s.do(t, "GET", "/api/v1/pipelines/"+created.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	run := decode[model.RunSummary](t, rec)
	assert.Equal(t, model.StatusCompleted, run.Status)
	assert.Equal(t, "demo", run.Name)
	assert.Equal(t, int64(2), run.RecordsProcessed)

	rec = s.do(t, "GET", "/api/v1/pipelines/"+created.ID+"/phases", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]model.PhaseProgress](t, rec), 5)

	rec = s.do(t, "GET", "/api/v1/pipelines/"+created.ID+"/errors", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]model.ErrorDetail](t, rec))

	rec = s.do(t, "GET", "/api/v1/pipelines", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]model.RunSummary](t, rec), 1)
}

func TestFailedRunRecordsLoadError(t *testing.T) {
	s := newServer(t)

	rec := s.do(t, "POST", "/api/v1/pipelines", failingPipeline)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	id := decode[model.SubmitResponse](t, rec).ID
	s.engine.Wait()

	run := decode[model.RunSummary](t, s.do(t, "GET", "/api/v1/pipelines/"+id, ""))
	assert.Equal(t, model.StatusFailed, run.Status)

	errs := decode[[]model.ErrorDetail](t, s.do(t, "GET", "/api/v1/pipelines/"+id+"/errors", ""))
	require.Len(t, errs, 1)
	assert.Equal(t, "load", errs[0].Phase)
	assert.Equal(t, "loaders/nope", errs[0].Step)
	assert.Contains(t, errs[0].Message, "could not load step, loaders/nope.")
}

func TestCreateRejectsBadRequests(t *testing.T) {
	s := newServer(t)

	rec := s.do(t, "POST", "/api/v1/pipelines", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, "POST", "/api/v1/pipelines", `{"name": "x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, "POST", "/api/v1/pipelines", `{"pipeline": {"source": {"module": "sources/static", "config": {}}}}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, pipeline.ErrLoaderConfig.Error(), decode[model.ErrorResponse](t, rec).Error)
}

func TestUnknownRun(t *testing.T) {
	s := newServer(t)
	for _, p := range []string{"/api/v1/pipelines/nope", "/api/v1/pipelines/nope/errors", "/api/v1/pipelines/nope/phases"} {
		assert.Equal(t, http.StatusNotFound, s.do(t, "GET", p, "").Code, p)
	}
}

func TestListSteps(t *testing.T) {
	s := newServer(t)
	rec := s.do(t, "GET", "/api/v1/steps", "")
	require.Equal(t, http.StatusOK, rec.Code)
	types := decode[[]pipeline.TypeInfo](t, rec)
	require.NotEmpty(t, types)
	assert.Equal(t, "loaders/aggregate", types[0].Identifier)
	assert.Equal(t, "RecordLoader", types[0].Role)
}

func TestMetricsAndHealth(t *testing.T) {
	s := newServer(t)
	s.do(t, "GET", "/api/v1/steps", "")

	rec := s.do(t, "GET", "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `test_http_requests_total{method="GET",path="/api/v1/steps",status_code="200"} 1`)

	rec = s.do(t, "GET", "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
