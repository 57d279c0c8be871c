package api

import (
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger"

	"go-etl-pipeline/internal/api/handler"
	"go-etl-pipeline/internal/metrics"
	"go-etl-pipeline/pkg/router"

	_ "go-etl-pipeline/docs"
)

func RegisterRoutes(r *router.Router, h *handler.PipelineHandler, m *metrics.Collector) {
	r.POST("/api/v1/pipelines", h.CreatePipeline)
	r.GET("/api/v1/pipelines", h.ListPipelines)
	// More specific routes first
	r.GET("/api/v1/pipelines/*/errors", h.GetPipelineErrors)
	r.GET("/api/v1/pipelines/*/phases", h.GetPipelinePhases)
	// Generic pipeline route last
	r.GET("/api/v1/pipelines/*", h.GetPipeline)
	r.GET("/api/v1/steps", h.ListSteps)
	r.GET("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Handle("/swagger/", httpSwagger.WrapHandler)
	if m != nil {
		r.Handle("/metrics", m.Handler())
		r.OnRequest(m.RecordHTTPRequest)
	}
}
