package steps

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go-etl-pipeline/internal/pipeline"
	"go-etl-pipeline/pkg/utils"
)

// AggregateLoader groups records by a field and computes metrics per group.
// Results are written as JSON to path on End, or logged when no path is set.
//
//	config:
//	  group_by: country
//	  metrics: [count, sum, avg, min, max, first, last]
//	  fields: [age, score]   # numeric fields to aggregate; default all
//	  path: out/by_country.json
var AggregateLoader = pipeline.DeclareLoader("loaders/aggregate", validateAggregate, newAggregateLoader)

var aggregateMetrics = map[string]bool{
	"count": true, "sum": true, "avg": true, "average": true,
	"min": true, "max": true, "first": true, "last": true,
}

// AggregatedResult is the output row for one group.
type AggregatedResult struct {
	GroupKey    string         `json:"group_key"`
	GroupValue  any            `json:"group_value"`
	RecordCount int            `json:"record_count"`
	Metrics     map[string]any `json:"metrics"`
}

type group struct {
	value any
	count int
	sums  map[string]float64
	nums  map[string]int
	mins  map[string]float64
	maxs  map[string]float64
	first map[string]any
	last  map[string]any
}

type aggregateLoader struct {
	logger  pipeline.Logger
	groupBy string
	metrics []string
	fields  map[string]bool
	path    string

	mu      sync.Mutex
	groups  map[string]*group
	skipped int
}

func validateAggregate(cfg map[string]any) []error {
	var errs []error
	if err := requireString(cfg, "group_by"); err != nil {
		errs = append(errs, err)
	}
	metrics, ok := stringList(cfg["metrics"])
	if !ok {
		errs = append(errs, fmt.Errorf("metrics must be a list of strings"))
	}
	for _, m := range metrics {
		if !aggregateMetrics[strings.ToLower(m)] {
			errs = append(errs, fmt.Errorf("unknown metric: %s", m))
		}
	}
	if err := checkStringList(cfg, "fields"); err != nil {
		errs = append(errs, err)
	}
	return errs
}

func newAggregateLoader(_ context.Context, logger pipeline.Logger, cfg map[string]any) (pipeline.Loader, error) {
	names, _ := stringList(cfg["metrics"])
	metrics := make([]string, 0, len(names))
	for _, m := range names {
		metrics = append(metrics, strings.ToLower(m))
	}
	if len(metrics) == 0 {
		metrics = []string{"count"}
	}
	l := &aggregateLoader{
		logger:  logger,
		groupBy: stringOpt(cfg, "group_by", ""),
		metrics: metrics,
		path:    stringOpt(cfg, "path", ""),
	}
	if fields, _ := stringList(cfg["fields"]); len(fields) > 0 {
		l.fields = make(map[string]bool, len(fields))
		for _, f := range fields {
			l.fields[f] = true
		}
	}
	return l, nil
}

func (l *aggregateLoader) Begin(context.Context) error {
	l.mu.Lock()
	l.groups = make(map[string]*group)
	l.mu.Unlock()
	return nil
}

func (l *aggregateLoader) LoadRecord(_ context.Context, rec pipeline.Record) error {
	obj, err := asObject(rec)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	groupValue, ok := obj[l.groupBy]
	if !ok {
		l.skipped++
		return nil
	}
	key := fmt.Sprintf("%v", groupValue)
	g, ok := l.groups[key]
	if !ok {
		g = &group{
			value: groupValue,
			sums:  map[string]float64{},
			nums:  map[string]int{},
			mins:  map[string]float64{},
			maxs:  map[string]float64{},
			first: map[string]any{},
			last:  map[string]any{},
		}
		l.groups[key] = g
	}
	g.count++

	for field, value := range obj {
		if _, seen := g.first[field]; !seen {
			g.first[field] = value
		}
		g.last[field] = value

		if field == l.groupBy || !l.aggregates(field, value) {
			continue
		}
		num, _ := utils.ToFloat(value)
		g.sums[field] += num
		g.nums[field]++
		if cur, ok := g.mins[field]; !ok || num < cur {
			g.mins[field] = num
		}
		if cur, ok := g.maxs[field]; !ok || num > cur {
			g.maxs[field] = num
		}
	}
	return nil
}

func (l *aggregateLoader) aggregates(field string, value any) bool {
	if l.fields != nil && !l.fields[field] {
		return false
	}
	return utils.IsNumber(value)
}

// results builds one row per group, sorted by group value.
func (l *aggregateLoader) results() []AggregatedResult {
	out := make([]AggregatedResult, 0, len(l.groups))
	for _, g := range l.groups {
		res := AggregatedResult{
			GroupKey:    l.groupBy,
			GroupValue:  g.value,
			RecordCount: g.count,
			Metrics:     make(map[string]any),
		}
		for _, m := range l.metrics {
			switch m {
			case "count":
				res.Metrics["count"] = g.count
			case "sum":
				for f, v := range g.sums {
					res.Metrics["sum_"+f] = v
				}
			case "avg", "average":
				for f, v := range g.sums {
					res.Metrics["avg_"+f] = v / float64(g.nums[f])
				}
			case "min":
				for f, v := range g.mins {
					res.Metrics["min_"+f] = v
				}
			case "max":
				for f, v := range g.maxs {
					res.Metrics["max_"+f] = v
				}
			case "first":
				for f, v := range g.first {
					res.Metrics["first_"+f] = v
				}
			case "last":
				for f, v := range g.last {
					res.Metrics["last_"+f] = v
				}
			}
		}
		out = append(out, res)
	}
	sortResults(out)
	return out
}

func sortResults(results []AggregatedResult) {
	sort.Slice(results, func(i, j int) bool {
		fi, iok := utils.ToFloat(results[i].GroupValue)
		fj, jok := utils.ToFloat(results[j].GroupValue)
		if iok && jok {
			return fi < fj
		}
		return fmt.Sprintf("%v", results[i].GroupValue) < fmt.Sprintf("%v", results[j].GroupValue)
	})
}

func (l *aggregateLoader) End(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	results := l.results()
	if l.skipped > 0 {
		l.logger.Info("records without group field skipped", "group_by", l.groupBy, "skipped", l.skipped)
	}
	if l.path == "" {
		for _, r := range results {
			l.logger.Info("aggregated group", "group", r.GroupValue, "records", r.RecordCount, "metrics", r.Metrics)
		}
		return nil
	}
	return writeJSONFile(l.path, results)
}

func (l *aggregateLoader) Abort(context.Context) error {
	l.mu.Lock()
	l.groups = nil
	l.mu.Unlock()
	return nil
}

// writeJSONFile writes v to path through a temporary file and a rename.
func writeJSONFile(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}
	tmp := path + ".partial"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("failed to write results: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to move results into place: %w", err)
	}
	return nil
}
