package pipeline

import "fmt"

// StepSpec names a step component and the configuration it is built with.
// Exactly one of Module or Type is set.
type StepSpec struct {
	// Module is an identifier the Resolver turns into a StepType.
	Module string `json:"module,omitempty" yaml:"module,omitempty"`
	// Type is an already resolved component; resolution is skipped.
	Type *StepType `json:"-" yaml:"-"`
	// Config is handed to ValidateConfig and GetInstance. It may be empty but
	// not nil.
	Config map[string]any `json:"config" yaml:"config"`
}

// Name identifies the step in diagnostics.
func (s StepSpec) Name() string {
	if s.Type != nil {
		return s.Type.Name
	}
	return s.Module
}

func (s StepSpec) valid() bool {
	if (s.Module == "") == (s.Type == nil) {
		return false
	}
	return s.Config != nil
}

// Config describes one pipeline: a source, an ordered transformer chain and a
// loader. SearchPaths are tried in order when a Module identifier does not
// resolve directly.
type Config struct {
	Source       StepSpec   `json:"source" yaml:"source"`
	Transformers []StepSpec `json:"transformers" yaml:"transformers"`
	Loader       StepSpec   `json:"loader" yaml:"loader"`
	SearchPaths  []string   `json:"searchPaths,omitempty" yaml:"searchPaths,omitempty"`
}

// Validate checks the structure of c. It never resolves anything.
func (c Config) Validate() error {
	if !c.Source.valid() {
		return ErrSourceConfig
	}
	for _, t := range c.Transformers {
		if !t.valid() {
			return ErrTransformersConfig
		}
	}
	if !c.Loader.valid() {
		return ErrLoaderConfig
	}
	return nil
}

// clone returns a copy of c that shares no mutable state with it.
func (c Config) clone() Config {
	out := Config{
		Source: c.Source.clone(),
		Loader: c.Loader.clone(),
	}
	out.Transformers = make([]StepSpec, len(c.Transformers))
	for i, t := range c.Transformers {
		out.Transformers[i] = t.clone()
	}
	if c.SearchPaths != nil {
		out.SearchPaths = append([]string(nil), c.SearchPaths...)
	}
	return out
}

func (s StepSpec) clone() StepSpec {
	out := StepSpec{Module: s.Module, Type: s.Type}
	if s.Config != nil {
		out.Config = cloneValue(s.Config).(map[string]any)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, e := range t {
			m[k] = cloneValue(e)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, e := range t {
			s[i] = cloneValue(e)
		}
		return s
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}

// DecodeConfig builds a Config from the untyped document a YAML or JSON
// pipeline file decodes to. The "module" key of a step holds either an
// identifier string or a *StepType.
func DecodeConfig(raw map[string]any) (Config, error) {
	var cfg Config

	if v, ok := raw["searchPaths"]; ok {
		paths, err := decodeSearchPaths(v)
		if err != nil {
			return Config{}, err
		}
		cfg.SearchPaths = paths
	}

	src, ok := decodeStepSpec(raw["source"])
	if !ok {
		return Config{}, ErrSourceConfig
	}
	cfg.Source = src

	if v, present := raw["transformers"]; present {
		list, ok := v.([]any)
		if !ok {
			return Config{}, ErrTransformersConfig
		}
		cfg.Transformers = make([]StepSpec, 0, len(list))
		for _, item := range list {
			spec, ok := decodeStepSpec(item)
			if !ok {
				return Config{}, ErrTransformersConfig
			}
			cfg.Transformers = append(cfg.Transformers, spec)
		}
	}

	ldr, ok := decodeStepSpec(raw["loader"])
	if !ok {
		return Config{}, ErrLoaderConfig
	}
	cfg.Loader = ldr

	return cfg, nil
}

func decodeSearchPaths(v any) ([]string, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case []string:
		return append([]string(nil), t...), nil
	case []any:
		paths := make([]string, 0, len(t))
		for _, p := range t {
			s, ok := p.(string)
			if !ok {
				return nil, ErrSearchPaths
			}
			paths = append(paths, s)
		}
		return paths, nil
	}
	return nil, ErrSearchPaths
}

func decodeStepSpec(v any) (StepSpec, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return StepSpec{}, false
	}
	var spec StepSpec
	switch mod := m["module"].(type) {
	case string:
		spec.Module = mod
	case *StepType:
		spec.Type = mod
	default:
		return StepSpec{}, false
	}
	conf, ok := m["config"].(map[string]any)
	if !ok {
		return StepSpec{}, false
	}
	spec.Config = conf
	if !spec.valid() {
		return StepSpec{}, false
	}
	return spec.clone(), true
}

// String renders a short summary of the pipeline shape.
func (c Config) String() string {
	return fmt.Sprintf("source=%s transformers=%d loader=%s", c.Source.Name(), len(c.Transformers), c.Loader.Name())
}
