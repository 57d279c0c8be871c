package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// NewLogger builds a text or JSON slog.Logger writing to w at the configured
// level.
func NewLogger(s LogSettings, w io.Writer) (*slog.Logger, error) {
	level := slog.LevelInfo
	if s.Level != "" {
		if err := level.UnmarshalText([]byte(s.Level)); err != nil {
			return nil, fmt.Errorf("invalid log level %q", s.Level)
		}
	}
	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(s.Format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q", s.Format)
	}
}
