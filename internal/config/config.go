// Package config loads pipeline definitions and service settings.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"go-etl-pipeline/internal/pipeline"
)

// LoadPipelineFile reads a YAML or JSON pipeline definition and decodes it.
func LoadPipelineFile(path string) (pipeline.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return pipeline.Config{}, fmt.Errorf("failed to read pipeline file: %w", err)
	}
	raw, err := ParsePipeline(data)
	if err != nil {
		return pipeline.Config{}, err
	}
	return pipeline.DecodeConfig(raw)
}

// ParsePipeline parses YAML or JSON into the untyped form DecodeConfig
// accepts.
func ParsePipeline(data []byte) (map[string]any, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse pipeline file: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("pipeline file is empty")
	}
	return raw, nil
}

// Settings configure the CLI and the API server
type Settings struct {
	Server      ServerSettings  `yaml:"server"`
	Store       StoreSettings   `yaml:"store"`
	Log         LogSettings     `yaml:"log"`
	Metrics     MetricsSettings `yaml:"metrics"`
	SearchPaths []string        `yaml:"searchPaths"` // appended to every pipeline's own searchPaths
	ScriptRoot  string          `yaml:"scriptRoot"`  // base directory for step scripts
}

type ServerSettings struct {
	Address string `yaml:"address"`
}

type StoreSettings struct {
	Path string `yaml:"path"`
}

type LogSettings struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

type MetricsSettings struct {
	Namespace string `yaml:"namespace"`
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		Server:      ServerSettings{Address: ":8080"},
		Store:       StoreSettings{Path: "pipeline.db"},
		Log:         LogSettings{Level: "info", Format: "text"},
		Metrics:     MetricsSettings{Namespace: "pipeline"},
		SearchPaths: []string{"sources", "transformers", "loaders"},
	}
}

// LoadSettings starts from DefaultSettings, overlays the YAML file at path
// when path is not empty, then applies PIPELINE_* environment overrides.
func LoadSettings(path string) (Settings, error) {
	s := DefaultSettings()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return s, fmt.Errorf("failed to read settings file: %w", err)
		}
		if err := yaml.Unmarshal(data, &s); err != nil {
			return s, fmt.Errorf("failed to parse settings file: %w", err)
		}
	}
	applyEnv(&s, os.LookupEnv)
	return s, nil
}

func applyEnv(s *Settings, lookup func(string) (string, bool)) {
	if v, ok := lookup("PIPELINE_ADDR"); ok && v != "" {
		s.Server.Address = v
	}
	if v, ok := lookup("PIPELINE_DB"); ok && v != "" {
		s.Store.Path = v
	}
	if v, ok := lookup("PIPELINE_LOG_LEVEL"); ok && v != "" {
		s.Log.Level = v
	}
	if v, ok := lookup("PIPELINE_LOG_FORMAT"); ok && v != "" {
		s.Log.Format = v
	}
	if v, ok := lookup("PIPELINE_METRICS_NAMESPACE"); ok && v != "" {
		s.Metrics.Namespace = v
	}
	if v, ok := lookup("PIPELINE_SCRIPT_ROOT"); ok && v != "" {
		s.ScriptRoot = v
	}
	if v, ok := lookup("PIPELINE_SEARCH_PATHS"); ok {
		s.SearchPaths = nil
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				s.SearchPaths = append(s.SearchPaths, p)
			}
		}
	}
}
