package template

import "testing"

func testGraph() map[string]any {
	return map[string]any{
		"a": map[string]any{
			"b": float64(2),
			"c": map[string]any{
				"d": "deep",
			},
		},
		"name": "Ann",
		"nil":  nil,
	}
}

func TestGetByPath_nested(t *testing.T) {
	val, ok := GetByPath(testGraph(), "a.b")
	if !ok {
		t.Fatal("expected a.b to resolve")
	}
	if val != float64(2) {
		t.Errorf("val = %v, want 2", val)
	}
}

func TestGetByPath_deep(t *testing.T) {
	val, ok := GetByPath(testGraph(), "a.c.d")
	if !ok || val != "deep" {
		t.Errorf("val = %v ok = %v, want deep/true", val, ok)
	}
}

func TestGetByPath_missingLeaf(t *testing.T) {
	if _, ok := GetByPath(testGraph(), "a.x"); ok {
		t.Error("expected miss for a.x")
	}
}

func TestGetByPath_missingIntermediate(t *testing.T) {
	if _, ok := GetByPath(map[string]any{"a": map[string]any{}}, "a.b.c"); ok {
		t.Error("expected miss for a.b.c")
	}
}

func TestGetByPath_throughScalar(t *testing.T) {
	if _, ok := GetByPath(testGraph(), "name.length"); ok {
		t.Error("expected miss when traversing through a scalar")
	}
}

func TestGetByPath_emptyPath(t *testing.T) {
	if _, ok := GetByPath(map[string]any{}, ""); ok {
		t.Error("empty path must not resolve")
	}
}

func TestGetByPath_nilRoot(t *testing.T) {
	if _, ok := GetByPath(nil, "a"); ok {
		t.Error("nil root must not resolve")
	}
}

func TestGetByPath_nilValue(t *testing.T) {
	val, ok := GetByPath(testGraph(), "nil")
	if !ok {
		t.Fatal("present nil value should resolve")
	}
	if val != nil {
		t.Errorf("val = %v, want nil", val)
	}
}
