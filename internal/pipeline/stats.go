package pipeline

import "log/slog"

// Stats is a snapshot of a runner's counters.
type Stats struct {
	State            State `json:"-"`
	RecordsFetched   int64 `json:"records_fetched"`
	RecordsProcessed int64 `json:"records_processed"`
}

// LogValue implements slog.LogValuer.
func (s Stats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("state", s.State.String()),
		slog.Int64("fetched", s.RecordsFetched),
		slog.Int64("processed", s.RecordsProcessed),
	)
}
