package model

import "time"

// PhaseProgress records one lifecycle phase of a run
type PhaseProgress struct {
	Phase      string        `json:"phase"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt *time.Time    `json:"finished_at,omitempty"`
	Duration   time.Duration `json:"duration" swaggertype:"integer"`
	Error      string        `json:"error,omitempty"`
}

// ErrorDetail represents a run failure with context
type ErrorDetail struct {
	ID        int64     `json:"id"`
	RunID     string    `json:"run_id"`
	Phase     string    `json:"phase"`
	Step      string    `json:"step,omitempty"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}
