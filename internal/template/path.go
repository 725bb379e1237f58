// Package template implements dotted-path lookup and {{placeholder}}
// resolution against a runtime context. Both are pure functions with no
// failure mode: a missing path degrades to an absent value, never an error.
package template

import "strings"

// GetByPath navigates a dot-separated path through nested maps. It returns
// false when the path is empty or any segment is missing or not traversable.
func GetByPath(root map[string]any, path string) (any, bool) {
	if path == "" || root == nil {
		return nil, false
	}

	var current any = root
	for _, part := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}
