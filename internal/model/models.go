package model

// PipelineJobSpec is the request body for POST /api/v1/pipelines
type PipelineJobSpec struct {
	Name     string         `json:"name" example:"people-to-sqlite"`
	Pipeline map[string]any `json:"pipeline" swaggertype:"object"` // searchPaths, source, transformers, loader
}

// SubmitResponse is returned once a run has been accepted
type SubmitResponse struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// ErrorResponse is the body of every non-2xx API response
type ErrorResponse struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}
