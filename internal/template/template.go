package template

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	placeholderRegex       = regexp.MustCompile(`\{\{\s*([\w.]+)\s*\}\}`)
	singlePlaceholderRegex = regexp.MustCompile(`^\{\{\s*([\w.]+)\s*\}\}$`)
)

// Resolve substitutes {{path}} placeholders in value using ctx.
//
// A string consisting of exactly one placeholder resolves to the referenced
// value's native type; if the path misses, it resolves to "". A string mixing
// placeholders with other text stringifies each resolved value in place,
// substituting "" for misses. Slices and maps are resolved recursively,
// preserving order and keys. Any other value is returned unchanged.
func Resolve(value any, ctx map[string]any) any {
	switch v := value.(type) {
	case string:
		return resolveString(v, ctx)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = Resolve(item, ctx)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = Resolve(item, ctx)
		}
		return out
	default:
		return value
	}
}

// resolveString handles the two string cases: a pure single placeholder
// keeps the resolved value's type; anything else interpolates into a string.
func resolveString(s string, ctx map[string]any) any {
	if m := singlePlaceholderRegex.FindStringSubmatch(s); m != nil {
		resolved, ok := GetByPath(ctx, strings.TrimSpace(m[1]))
		if !ok || resolved == nil {
			return ""
		}
		return resolved
	}

	return placeholderRegex.ReplaceAllStringFunc(s, func(match string) string {
		path := strings.TrimSpace(placeholderRegex.FindStringSubmatch(match)[1])
		resolved, ok := GetByPath(ctx, path)
		if !ok || resolved == nil {
			return ""
		}
		return Stringify(resolved)
	})
}

// ResolveParams resolves a string-valued template map into query parameters,
// stringifying each resolved value. Entries whose value resolves to nil are
// dropped rather than emitted empty.
func ResolveParams(tmpl map[string]string, ctx map[string]any) map[string]string {
	if len(tmpl) == 0 {
		return nil
	}
	out := make(map[string]string, len(tmpl))
	for key, value := range tmpl {
		resolved := Resolve(value, ctx)
		if resolved == nil {
			continue
		}
		out[key] = Stringify(resolved)
	}
	return out
}

// Stringify renders a resolved value the way it should appear inside a
// larger string. Floats that carry an integral value print without the
// trailing ".0" JSON decoding would otherwise introduce.
func Stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%g", t)
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}
