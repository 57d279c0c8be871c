package pipeline_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go-etl-pipeline/internal/pipeline"
)

// =============================================================================
// Spied steps
// =============================================================================

// calls counts lifecycle invocations on one step.
type calls struct {
	begin, end, abort atomic.Int32
	op                atomic.Int32
}

// spy carries the behaviour shared by every spied step.
type spy struct {
	calls    *calls
	beginErr error
	endErr   error
	abortErr error
	abortCtx chan error
}

func (s *spy) Begin(context.Context) error {
	s.calls.begin.Add(1)
	return s.beginErr
}

func (s *spy) End(context.Context) error {
	s.calls.end.Add(1)
	return s.endErr
}

func (s *spy) Abort(ctx context.Context) error {
	s.calls.abort.Add(1)
	if s.abortCtx != nil {
		s.abortCtx <- ctx.Err()
	}
	return s.abortErr
}

type spySource struct {
	spy
	records  []pipeline.Record
	fetchErr error
}

func (s *spySource) GetRecords(context.Context) ([]pipeline.Record, error) {
	s.calls.op.Add(1)
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	return s.records, nil
}

// spyTransformer increments the "data" field of a record.
type spyTransformer struct {
	spy
	err    error
	cancel context.CancelFunc
}

func (t *spyTransformer) Transform(_ context.Context, rec pipeline.Record) (pipeline.Record, error) {
	t.calls.op.Add(1)
	if t.cancel != nil {
		t.cancel()
	}
	if t.err != nil {
		return nil, t.err
	}
	in := rec.(map[string]any)
	return map[string]any{"data": in["data"].(int) + 1}, nil
}

// spyLoader increments the "data" field and appends the result.
type spyLoader struct {
	spy
	err error

	mu     sync.Mutex
	loaded []map[string]any
}

func (l *spyLoader) LoadRecord(_ context.Context, rec pipeline.Record) error {
	l.calls.op.Add(1)
	if l.err != nil {
		return l.err
	}
	in := rec.(map[string]any)
	l.mu.Lock()
	l.loaded = append(l.loaded, map[string]any{"data": in["data"].(int) + 1})
	l.mu.Unlock()
	return nil
}

func (l *spyLoader) results() []map[string]any {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]map[string]any(nil), l.loaded...)
}

// identity passes records through untouched.
type identity struct{ spy }

func (identity) Transform(_ context.Context, rec pipeline.Record) (pipeline.Record, error) {
	return rec, nil
}

// collector appends every record it receives.
type collector struct {
	spy
	mu      sync.Mutex
	records []pipeline.Record
}

func (c *collector) LoadRecord(_ context.Context, rec pipeline.Record) error {
	c.mu.Lock()
	c.records = append(c.records, rec)
	c.mu.Unlock()
	return nil
}

// =============================================================================
// Step types
// =============================================================================

func sourceType(name string, s pipeline.Source) *pipeline.StepType {
	return pipeline.DeclareSource(name, nil, func(context.Context, pipeline.Logger, map[string]any) (pipeline.Source, error) {
		return s, nil
	})
}

func transformerType(name string, t pipeline.Transformer) *pipeline.StepType {
	return pipeline.DeclareTransformer(name, nil, func(context.Context, pipeline.Logger, map[string]any) (pipeline.Transformer, error) {
		return t, nil
	})
}

func slowTransformerType(name string, delay time.Duration, t pipeline.Transformer) *pipeline.StepType {
	return pipeline.DeclareTransformer(name, nil, func(context.Context, pipeline.Logger, map[string]any) (pipeline.Transformer, error) {
		time.Sleep(delay)
		return t, nil
	})
}

func loaderType(name string, l pipeline.Loader) *pipeline.StepType {
	return pipeline.DeclareLoader(name, nil, func(context.Context, pipeline.Logger, map[string]any) (pipeline.Loader, error) {
		return l, nil
	})
}

func spec(t *pipeline.StepType) pipeline.StepSpec {
	return pipeline.StepSpec{Type: t, Config: map[string]any{}}
}

func module(id string) pipeline.StepSpec {
	return pipeline.StepSpec{Module: id, Config: map[string]any{}}
}

// fixture is the classic one-source, one-transformer, one-loader pipeline.
type fixture struct {
	src  *spySource
	tr   *spyTransformer
	ldr  *spyLoader
	all  []*calls
	conf pipeline.Config
}

func newFixture(records ...pipeline.Record) *fixture {
	f := &fixture{
		src: &spySource{spy: spy{calls: &calls{}}, records: records},
		tr:  &spyTransformer{spy: spy{calls: &calls{}}},
		ldr: &spyLoader{spy: spy{calls: &calls{}}},
	}
	f.all = []*calls{f.src.calls, f.tr.calls, f.ldr.calls}
	f.conf = pipeline.Config{
		Source:       spec(sourceType("test-source", f.src)),
		Transformers: []pipeline.StepSpec{spec(transformerType("test-transformer", f.tr))},
		Loader:       spec(loaderType("test-loader", f.ldr)),
	}
	return f
}

// =============================================================================
// Logger
// =============================================================================

// recLogger records every message it receives.
type recLogger struct {
	mu      sync.Mutex
	entries []string
}

func (l *recLogger) log(level, msg string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, level+" "+msg+" "+fmt.Sprint(args...))
}

func (l *recLogger) Debug(msg string, args ...any) { l.log("DEBUG", msg, args...) }
func (l *recLogger) Info(msg string, args ...any)  { l.log("INFO", msg, args...) }
func (l *recLogger) Error(msg string, args ...any) { l.log("ERROR", msg, args...) }

func (l *recLogger) contains(level, substr string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if strings.HasPrefix(e, level+" ") && strings.Contains(e, substr) {
			return true
		}
	}
	return false
}

// =============================================================================
// Observer
// =============================================================================

type recObserver struct {
	mu        sync.Mutex
	started   []pipeline.Phase
	finished  map[pipeline.Phase]error
	fetched   int
	processed atomic.Int32
}

func newRecObserver() *recObserver {
	return &recObserver{finished: make(map[pipeline.Phase]error)}
}

func (o *recObserver) PhaseStarted(_ context.Context, p pipeline.Phase) {
	o.mu.Lock()
	o.started = append(o.started, p)
	o.mu.Unlock()
}

func (o *recObserver) PhaseFinished(_ context.Context, p pipeline.Phase, _ time.Duration, err error) {
	o.mu.Lock()
	o.finished[p] = err
	o.mu.Unlock()
}

func (o *recObserver) RecordsFetched(_ context.Context, n int) {
	o.mu.Lock()
	o.fetched = n
	o.mu.Unlock()
}

func (o *recObserver) RecordProcessed(context.Context) { o.processed.Add(1) }
