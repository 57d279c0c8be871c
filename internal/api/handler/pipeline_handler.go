package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"go-etl-pipeline/internal/model"
	"go-etl-pipeline/internal/pipeline"
	"go-etl-pipeline/internal/store"
	"go-etl-pipeline/pkg/router"
)

// Submitter starts pipeline runs in the background.
type Submitter interface {
	Submit(ctx context.Context, spec model.PipelineJobSpec) (string, error)
}

// RunStore reads run history.
type RunStore interface {
	ListRuns(ctx context.Context) ([]model.RunSummary, error)
	GetRun(ctx context.Context, runID string) (model.RunSummary, error)
	GetRunErrors(ctx context.Context, runID string) ([]model.ErrorDetail, error)
	GetPhaseProgress(ctx context.Context, runID string) ([]model.PhaseProgress, error)
}

// StepCatalog lists the built-in step types.
type StepCatalog interface {
	Types() []pipeline.TypeInfo
}

// PipelineHandler serves the pipeline API.
type PipelineHandler struct {
	logger  *slog.Logger
	runs    Submitter
	store   RunStore
	catalog StepCatalog
}

// NewPipelineHandler creates a PipelineHandler.
func NewPipelineHandler(logger *slog.Logger, runs Submitter, s RunStore, catalog StepCatalog) *PipelineHandler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &PipelineHandler{logger: logger, runs: runs, store: s, catalog: catalog}
}

// CreatePipeline submits a new pipeline run
// @Summary Create a new pipeline run
// @Description Validate the pipeline structure and start a run in the background
// @Tags pipelines
// @Accept json
// @Produce json
// @Param pipeline body model.PipelineJobSpec true "Pipeline definition"
// @Success 202 {object} model.SubmitResponse "Run accepted"
// @Failure 400 {object} model.ErrorResponse "Invalid request payload"
// @Failure 500 {object} model.ErrorResponse "Internal server error"
// @Router /pipelines [post]
func (h *PipelineHandler) CreatePipeline(w http.ResponseWriter, r *http.Request) {
	var job model.PipelineJobSpec
	if err := json.NewDecoder(r.Body).Decode(&job); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON payload", err)
		return
	}
	if job.Pipeline == nil {
		writeError(w, http.StatusBadRequest, "pipeline is required", nil)
		return
	}

	runID, err := h.runs.Submit(r.Context(), job)
	if err != nil {
		var cfgErr *pipeline.ConfigError
		if errors.As(err, &cfgErr) {
			writeError(w, http.StatusBadRequest, cfgErr.Error(), nil)
			return
		}
		h.logger.Error("failed to submit pipeline", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to start pipeline", nil)
		return
	}

	writeJSON(w, http.StatusAccepted, model.SubmitResponse{
		ID:      runID,
		Status:  string(model.StatusPending),
		Message: "Pipeline run accepted",
	})
}

// ListPipelines retrieves all pipeline runs
// @Summary List all pipeline runs
// @Description Get every pipeline run with its current status, newest first
// @Tags pipelines
// @Produce json
// @Success 200 {array} model.RunSummary "List of runs"
// @Failure 500 {object} model.ErrorResponse "Internal server error"
// @Router /pipelines [get]
func (h *PipelineHandler) ListPipelines(w http.ResponseWriter, r *http.Request) {
	runs, err := h.store.ListRuns(r.Context())
	if err != nil {
		h.logger.Error("failed to list runs", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch pipelines", nil)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

// GetPipeline retrieves one pipeline run
// @Summary Get pipeline run
// @Description Retrieve status, counters and definition of a pipeline run
// @Tags pipelines
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} model.RunSummary "Run details"
// @Failure 404 {object} model.ErrorResponse "Run not found"
// @Router /pipelines/{id} [get]
func (h *PipelineHandler) GetPipeline(w http.ResponseWriter, r *http.Request) {
	run, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// GetPipelineErrors retrieves errors for a pipeline run
// @Summary Get pipeline run errors
// @Description Retrieve the errors recorded while a run executed
// @Tags pipelines
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {array} model.ErrorDetail "Run errors"
// @Failure 404 {object} model.ErrorResponse "Run not found"
// @Failure 500 {object} model.ErrorResponse "Internal server error"
// @Router /pipelines/{id}/errors [get]
func (h *PipelineHandler) GetPipelineErrors(w http.ResponseWriter, r *http.Request) {
	run, ok := h.lookup(w, r)
	if !ok {
		return
	}
	errs, err := h.store.GetRunErrors(r.Context(), run.ID)
	if err != nil {
		h.logger.Error("failed to fetch run errors", "run_id", run.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch errors", nil)
		return
	}
	writeJSON(w, http.StatusOK, errs)
}

// GetPipelinePhases retrieves lifecycle phase progress for a run
// @Summary Get pipeline run phases
// @Description Retrieve start time, duration and outcome of each lifecycle phase
// @Tags pipelines
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {array} model.PhaseProgress "Run phases"
// @Failure 404 {object} model.ErrorResponse "Run not found"
// @Failure 500 {object} model.ErrorResponse "Internal server error"
// @Router /pipelines/{id}/phases [get]
func (h *PipelineHandler) GetPipelinePhases(w http.ResponseWriter, r *http.Request) {
	run, ok := h.lookup(w, r)
	if !ok {
		return
	}
	phases, err := h.store.GetPhaseProgress(r.Context(), run.ID)
	if err != nil {
		h.logger.Error("failed to fetch run phases", "run_id", run.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch phases", nil)
		return
	}
	writeJSON(w, http.StatusOK, phases)
}

// ListSteps lists the built-in step types
// @Summary List step types
// @Description List every built-in step identifier with its role
// @Tags steps
// @Produce json
// @Success 200 {array} pipeline.TypeInfo "Step types"
// @Router /steps [get]
func (h *PipelineHandler) ListSteps(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.catalog.Types())
}

// lookup loads the run named by the fourth path segment,
// /api/v1/pipelines/{id}/..., and writes the error response itself.
func (h *PipelineHandler) lookup(w http.ResponseWriter, r *http.Request) (model.RunSummary, bool) {
	runID := router.Segment(r, 3)
	if runID == "" {
		writeError(w, http.StatusBadRequest, "Run ID is required", nil)
		return model.RunSummary{}, false
	}
	run, err := h.store.GetRun(r.Context(), runID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Run not found", nil)
		return run, false
	}
	if err != nil {
		h.logger.Error("failed to fetch run", "run_id", runID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch run", nil)
		return run, false
	}
	return run, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string, cause error) {
	resp := model.ErrorResponse{Error: msg}
	if cause != nil {
		resp.Details = []string{cause.Error()}
	}
	writeJSON(w, status, resp)
}
