package model

import "time"

// RunStatus is the lifecycle status of a stored pipeline run
type RunStatus string

const (
	StatusPending   RunStatus = "pending"
	StatusRunning   RunStatus = "running"
	StatusCompleted RunStatus = "completed"
	StatusFailed    RunStatus = "failed"
)

// Done reports whether the run has finished, successfully or not.
func (s RunStatus) Done() bool {
	return s == StatusCompleted || s == StatusFailed
}

// RunCounts are the record counters of a run
type RunCounts struct {
	RecordsFetched   int64 `json:"records_fetched"`
	RecordsProcessed int64 `json:"records_processed"`
}

// RunSummary is one row of the run history
type RunSummary struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Status    RunStatus       `json:"status"`
	Spec      PipelineJobSpec `json:"spec"`
	Error     string          `json:"error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	RunCounts
}
