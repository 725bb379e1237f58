// Package query executes load parameters against a data source: in memory
// for static collections, over HTTP for remote endpoints. Each call is a
// pure computation of its inputs; async orchestration belongs to the data
// source controller.
package query

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/lk-keep-fighting/jsonpage/internal/template"
	"github.com/lk-keep-fighting/jsonpage/model"
)

// Static filters, sorts, and paginates an in-memory row collection. The
// input rows are never mutated. Page is 1-based; an out-of-range page yields
// an empty slice, not an error. Total reflects the full filtered set.
func Static(rows []map[string]any, params model.LoadParams, filters []model.FilterConfig) model.QueryResult {
	filtered := applyFilters(rows, params.Filters, filters)
	sorted := applySort(filtered, params.Sort)
	return paginate(sorted, params.Page, params.PageSize)
}

// applyFilters keeps rows satisfying every active filter. A filter is
// inactive when its value is nil, "", or "all" for the boolean tri-state.
func applyFilters(rows []map[string]any, values map[string]any, filters []model.FilterConfig) []map[string]any {
	if len(filters) == 0 {
		return rows
	}

	out := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		if rowMatches(row, values, filters) {
			out = append(out, row)
		}
	}
	return out
}

func rowMatches(row map[string]any, values map[string]any, filters []model.FilterConfig) bool {
	for _, f := range filters {
		value := values[f.ID]
		if !filterActive(f, value) {
			continue
		}
		fieldValue, _ := template.GetByPath(row, f.Field)

		switch f.Type {
		case model.FilterText:
			haystack := strings.ToLower(coerceString(fieldValue))
			needle := strings.ToLower(coerceString(value))
			if !strings.Contains(haystack, needle) {
				return false
			}
		case model.FilterNumber:
			want, okWant := coerceNumber(value)
			have, okHave := coerceNumber(fieldValue)
			if !okWant || !okHave || want != have {
				return false
			}
		case model.FilterSelect:
			if coerceString(fieldValue) != coerceString(value) {
				return false
			}
		case model.FilterBoolean:
			if !matchTriState(fieldValue, value) {
				return false
			}
		case model.FilterDateRange:
			if !matchDateRange(fieldValue, value) {
				return false
			}
		}
	}
	return true
}

// filterActive reports whether a filter value enables its predicate.
func filterActive(f model.FilterConfig, value any) bool {
	if value == nil {
		return false
	}
	if s, ok := value.(string); ok {
		if s == "" {
			return false
		}
		if f.Type == model.FilterBoolean && s == "all" {
			return false
		}
	}
	if f.Type == model.FilterDateRange {
		rng, ok := coerceRange(value)
		if !ok || (rng.From == "" && rng.To == "") {
			return false
		}
	}
	return true
}

// matchTriState implements the boolean filter: "true"/true requires a truthy
// field, "false"/false requires a falsy field, anything else passes.
func matchTriState(fieldValue, value any) bool {
	switch value {
	case "true", true:
		return coerceBool(fieldValue)
	case "false", false:
		return !coerceBool(fieldValue)
	default:
		return true
	}
}

// matchDateRange excludes rows whose date field is missing or unparsable,
// then checks from <= value <= to for whichever bounds are set.
func matchDateRange(fieldValue, value any) bool {
	rowTime, ok := parseTime(coerceString(fieldValue))
	if !ok {
		return false
	}
	rng, _ := coerceRange(value)
	if rng.From != "" {
		if from, ok := parseTime(rng.From); ok && rowTime.Before(from) {
			return false
		}
	}
	if rng.To != "" {
		if to, ok := parseTime(rng.To); ok && rowTime.After(to) {
			return false
		}
	}
	return true
}

// applySort stable-sorts a copy of rows by the directive's field. Rows with
// a missing value sort before any present value ascending, after descending;
// ties keep their original relative order.
func applySort(rows []map[string]any, directive *model.SortDirective) []map[string]any {
	if directive == nil || directive.Field == "" {
		return rows
	}

	sorted := make([]map[string]any, len(rows))
	copy(sorted, rows)

	asc := directive.Direction != model.SortDesc
	sort.SliceStable(sorted, func(i, j int) bool {
		a, aok := template.GetByPath(sorted[i], directive.Field)
		b, bok := template.GetByPath(sorted[j], directive.Field)
		cmp := compareValues(a, aok, b, bok)
		if asc {
			return cmp < 0
		}
		return cmp > 0
	})
	return sorted
}

// compareValues orders two field values: nil/missing is weakest, numbers
// compare numerically when both sides are numeric, everything else compares
// as strings.
func compareValues(a any, aok bool, b any, bok bool) int {
	aNil := !aok || a == nil
	bNil := !bok || b == nil
	switch {
	case aNil && bNil:
		return 0
	case aNil:
		return -1
	case bNil:
		return 1
	}

	an, aNum := coerceNumber(a)
	bn, bNum := coerceNumber(b)
	if aNum && bNum {
		switch {
		case an < bn:
			return -1
		case an > bn:
			return 1
		default:
			return 0
		}
	}

	return strings.Compare(coerceString(a), coerceString(b))
}

func paginate(rows []map[string]any, page, pageSize int) model.QueryResult {
	total := len(rows)
	start := (page - 1) * pageSize
	if start < 0 {
		start = 0
	}
	if start >= total {
		return model.QueryResult{Rows: []map[string]any{}, Total: total}
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return model.QueryResult{Rows: rows[start:end], Total: total}
}

// --- typed coercion helpers ---

// coerceString renders a field value for textual comparison. Nil becomes "".
func coerceString(v any) string {
	return template.Stringify(v)
}

// coerceNumber extracts a float64 from numeric values and numeric-looking
// strings.
func coerceNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// coerceBool mirrors JSON truthiness: false, nil, 0, and "" are falsy.
func coerceBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t != "" && t != "false" && t != "0"
	case float64:
		return t != 0
	case int:
		return t != 0
	case nil:
		return false
	default:
		return true
	}
}

// coerceRange reads a date-range value from either a typed RangeValue or a
// {from, to} map as it arrives from JSON.
func coerceRange(v any) (model.RangeValue, bool) {
	switch t := v.(type) {
	case model.RangeValue:
		return t, true
	case *model.RangeValue:
		if t == nil {
			return model.RangeValue{}, false
		}
		return *t, true
	case map[string]any:
		rng := model.RangeValue{}
		if s, ok := t["from"].(string); ok {
			rng.From = s
		}
		if s, ok := t["to"].(string); ok {
			rng.To = s
		}
		return rng, true
	default:
		return model.RangeValue{}, false
	}
}

// timeLayouts are the accepted date formats, tried in order.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	// Millisecond epoch, the other representation the renderer emits.
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), true
	}
	return time.Time{}, false
}
