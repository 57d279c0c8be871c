package steps

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"go-etl-pipeline/internal/pipeline"
)

// FieldsTransformer applies named field operations to every record, in the
// configured order.
//
//	config:
//	  operations: [trimStrings, removeNulls, normalizeNames, addMetadata]
//	  version: "1.0.0"
var FieldsTransformer = pipeline.DeclareTransformer("transformers/fields", validateFields, newFieldsTransformer)

type fieldOp func(rec map[string]any, t *fieldsTransformer)

var fieldOps = map[string]fieldOp{
	"normalizeNames":     normalizeNames,
	"convertToLowercase": convertToLowercase,
	"convertToUppercase": convertToUppercase,
	"trimStrings":        trimStrings,
	"removeNulls":        removeNulls,
	"addTimestamp":       addTimestamp,
	"addMetadata":        addMetadata,
}

type fieldsTransformer struct {
	lifecycle
	ops     []fieldOp
	version string
	now     func() time.Time
}

func validateFields(cfg map[string]any) []error {
	names, ok := stringList(cfg["operations"])
	if !ok {
		return []error{fmt.Errorf("operations must be a list of strings")}
	}
	if len(names) == 0 {
		return []error{fmt.Errorf("operations is required")}
	}
	var errs []error
	for _, n := range names {
		if _, ok := fieldOps[n]; !ok {
			errs = append(errs, fmt.Errorf("unknown transformation: %s", n))
		}
	}
	return errs
}

func newFieldsTransformer(_ context.Context, _ pipeline.Logger, cfg map[string]any) (pipeline.Transformer, error) {
	names, _ := stringList(cfg["operations"])
	t := &fieldsTransformer{
		version: stringOpt(cfg, "version", "1.0.0"),
		now:     time.Now,
	}
	for _, n := range names {
		op, ok := fieldOps[n]
		if !ok {
			return nil, fmt.Errorf("unknown transformation: %s", n)
		}
		t.ops = append(t.ops, op)
	}
	return t, nil
}

func (t *fieldsTransformer) Transform(_ context.Context, rec pipeline.Record) (pipeline.Record, error) {
	in, err := asObject(rec)
	if err != nil {
		return nil, err
	}
	out := copyObject(in)
	for _, op := range t.ops {
		op(out, t)
	}
	return out, nil
}

// normalizeNames title-cases string fields whose key looks like a name.
func normalizeNames(rec map[string]any, _ *fieldsTransformer) {
	for key, val := range rec {
		if str, ok := val.(string); ok && isNameLikeField(strings.ToLower(key)) {
			rec[key] = titleCase(str)
		}
	}
}

var namePatterns = []string{
	"name", "title", "label", "symbol", "code",
	"country", "location", "city", "state", "region",
	"category", "type", "status",
	"company", "organization", "department", "team",
}

func isNameLikeField(fieldName string) bool {
	for _, pattern := range namePatterns {
		if strings.Contains(fieldName, pattern) {
			return true
		}
	}
	return false
}

func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

func convertToLowercase(rec map[string]any, _ *fieldsTransformer) {
	mapStrings(rec, strings.ToLower)
}

func convertToUppercase(rec map[string]any, _ *fieldsTransformer) {
	mapStrings(rec, strings.ToUpper)
}

func trimStrings(rec map[string]any, _ *fieldsTransformer) {
	mapStrings(rec, strings.TrimSpace)
}

func mapStrings(rec map[string]any, fn func(string) string) {
	for key, val := range rec {
		if str, ok := val.(string); ok {
			rec[key] = fn(str)
		}
	}
}

func removeNulls(rec map[string]any, _ *fieldsTransformer) {
	for key, val := range rec {
		if val == nil {
			delete(rec, key)
		}
	}
}

func addTimestamp(rec map[string]any, t *fieldsTransformer) {
	rec["processed_at"] = t.now().UTC().Format(time.RFC3339)
}

func addMetadata(rec map[string]any, t *fieldsTransformer) {
	rec["_processed_at"] = t.now().UTC().Format(time.RFC3339)
	rec["_pipeline_version"] = t.version
	rec["_record_id"] = uuid.NewString()
}
