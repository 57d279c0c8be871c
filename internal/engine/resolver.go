package engine

import (
	"go-etl-pipeline/internal/pipeline"
	"go-etl-pipeline/internal/script"
)

// NewResolver resolves identifiers against builtin first, then as step
// scripts relative to scriptRoot.
func NewResolver(builtin *pipeline.Registry, scriptRoot string) pipeline.Resolver {
	return pipeline.ChainResolver{
		builtin,
		script.NewResolver(script.WithRoot(scriptRoot)),
	}
}
