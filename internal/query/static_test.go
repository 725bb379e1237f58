package query

import (
	"testing"

	"github.com/lk-keep-fighting/jsonpage/model"
)

func userRows() []map[string]any {
	return []map[string]any{
		{"id": "1", "name": "Tom", "status": "active", "age": float64(34), "verified": true, "createdAt": "2024-01-10"},
		{"id": "2", "name": "Amy", "status": "inactive", "age": float64(28), "verified": false, "createdAt": "2024-02-20"},
		{"id": "3", "name": "Bob", "status": "active", "age": float64(28), "verified": true, "createdAt": "not-a-date"},
		{"id": "4", "name": "Eve", "status": "active", "age": float64(41), "verified": false, "createdAt": "2024-03-05"},
	}
}

func userFilters() []model.FilterConfig {
	return []model.FilterConfig{
		{ID: "keyword", Field: "name", Type: model.FilterText},
		{ID: "status", Field: "status", Type: model.FilterSelect},
		{ID: "age", Field: "age", Type: model.FilterNumber},
		{ID: "verified", Field: "verified", Type: model.FilterBoolean},
		{ID: "created", Field: "createdAt", Type: model.FilterDateRange},
	}
}

func params(filters map[string]any, page, pageSize int, sort *model.SortDirective) model.LoadParams {
	return model.LoadParams{Filters: filters, Page: page, PageSize: pageSize, Sort: sort}
}

func TestStatic_noFilters(t *testing.T) {
	res := Static(userRows(), params(nil, 1, 10, nil), userFilters())
	if res.Total != 4 || len(res.Rows) != 4 {
		t.Errorf("total = %d rows = %d, want 4/4", res.Total, len(res.Rows))
	}
}

func TestStatic_textFilterCaseInsensitive(t *testing.T) {
	res := Static(userRows(), params(map[string]any{"keyword": "TO"}, 1, 10, nil), userFilters())
	if res.Total != 1 || res.Rows[0]["name"] != "Tom" {
		t.Errorf("got %v, want Tom only", res.Rows)
	}
}

func TestStatic_filtersCombineWithAND(t *testing.T) {
	rows := []map[string]any{
		{"name": "Tom", "status": "active"},
		{"name": "Amy", "status": "inactive"},
	}
	filters := []model.FilterConfig{
		{ID: "keyword", Field: "name", Type: model.FilterText},
		{ID: "status", Field: "status", Type: model.FilterSelect},
	}
	res := Static(rows, params(map[string]any{"keyword": "o", "status": "active"}, 1, 10, nil), filters)
	if res.Total != 1 || res.Rows[0]["name"] != "Tom" {
		t.Errorf("got %v, want exactly Tom", res.Rows)
	}
}

func TestStatic_numberFilterEquality(t *testing.T) {
	res := Static(userRows(), params(map[string]any{"age": "28"}, 1, 10, nil), userFilters())
	if res.Total != 2 {
		t.Errorf("total = %d, want 2", res.Total)
	}
}

func TestStatic_booleanTriState(t *testing.T) {
	all := Static(userRows(), params(map[string]any{"verified": "all"}, 1, 10, nil), userFilters())
	if all.Total != 4 {
		t.Errorf(`"all" total = %d, want 4`, all.Total)
	}
	yes := Static(userRows(), params(map[string]any{"verified": "true"}, 1, 10, nil), userFilters())
	if yes.Total != 2 {
		t.Errorf(`"true" total = %d, want 2`, yes.Total)
	}
	no := Static(userRows(), params(map[string]any{"verified": false}, 1, 10, nil), userFilters())
	if no.Total != 2 {
		t.Errorf(`false total = %d, want 2`, no.Total)
	}
}

func TestStatic_dateRangeBounds(t *testing.T) {
	res := Static(userRows(), params(map[string]any{
		"created": map[string]any{"from": "2024-02-01", "to": "2024-02-28"},
	}, 1, 10, nil), userFilters())
	if res.Total != 1 || res.Rows[0]["name"] != "Amy" {
		t.Errorf("got %v, want Amy only", res.Rows)
	}
}

func TestStatic_dateRangeExcludesUnparsable(t *testing.T) {
	// Bob's createdAt is unparsable, so any active range excludes him.
	res := Static(userRows(), params(map[string]any{
		"created": map[string]any{"from": "2000-01-01"},
	}, 1, 10, nil), userFilters())
	for _, row := range res.Rows {
		if row["name"] == "Bob" {
			t.Error("row with unparsable date must be excluded")
		}
	}
	if res.Total != 3 {
		t.Errorf("total = %d, want 3", res.Total)
	}
}

func TestStatic_emptyFilterValueIsInactive(t *testing.T) {
	res := Static(userRows(), params(map[string]any{"keyword": ""}, 1, 10, nil), userFilters())
	if res.Total != 4 {
		t.Errorf("total = %d, want 4", res.Total)
	}
}

func TestStatic_sortAscending(t *testing.T) {
	res := Static(userRows(), params(nil, 1, 10, &model.SortDirective{Field: "age", Direction: model.SortAsc}), userFilters())
	ages := []float64{}
	for _, row := range res.Rows {
		ages = append(ages, row["age"].(float64))
	}
	want := []float64{28, 28, 34, 41}
	for i := range want {
		if ages[i] != want[i] {
			t.Fatalf("ages = %v, want %v", ages, want)
		}
	}
}

func TestStatic_sortStableOnTies(t *testing.T) {
	// Amy (id 2) precedes Bob (id 3); both are 28 and must keep that order
	// in either direction.
	for _, dir := range []string{model.SortAsc, model.SortDesc} {
		res := Static(userRows(), params(nil, 1, 10, &model.SortDirective{Field: "age", Direction: dir}), userFilters())
		amyIdx, bobIdx := -1, -1
		for i, row := range res.Rows {
			switch row["id"] {
			case "2":
				amyIdx = i
			case "3":
				bobIdx = i
			}
		}
		if amyIdx > bobIdx {
			t.Errorf("direction %s: tie order not preserved (amy=%d bob=%d)", dir, amyIdx, bobIdx)
		}
	}
}

func TestStatic_sortNilWeakest(t *testing.T) {
	rows := []map[string]any{
		{"id": "a", "rank": float64(2)},
		{"id": "b"},
		{"id": "c", "rank": float64(1)},
	}
	asc := Static(rows, params(nil, 1, 10, &model.SortDirective{Field: "rank", Direction: model.SortAsc}), nil)
	if asc.Rows[0]["id"] != "b" {
		t.Errorf("asc first = %v, want b (missing sorts first)", asc.Rows[0]["id"])
	}
	desc := Static(rows, params(nil, 1, 10, &model.SortDirective{Field: "rank", Direction: model.SortDesc}), nil)
	if desc.Rows[2]["id"] != "b" {
		t.Errorf("desc last = %v, want b (missing sorts last)", desc.Rows[2]["id"])
	}
}

func TestStatic_pagination(t *testing.T) {
	rows := make([]map[string]any, 25)
	for i := range rows {
		rows[i] = map[string]any{"n": float64(i)}
	}
	res := Static(rows, params(nil, 3, 10, nil), nil)
	if res.Total != 25 {
		t.Errorf("total = %d, want 25", res.Total)
	}
	if len(res.Rows) != 5 {
		t.Fatalf("rows = %d, want 5", len(res.Rows))
	}
	if res.Rows[0]["n"] != float64(20) || res.Rows[4]["n"] != float64(24) {
		t.Errorf("page 3 = %v..%v, want 20..24", res.Rows[0]["n"], res.Rows[4]["n"])
	}
}

func TestStatic_pageOutOfRange(t *testing.T) {
	res := Static(userRows(), params(nil, 9, 10, nil), nil)
	if len(res.Rows) != 0 || res.Total != 4 {
		t.Errorf("rows = %d total = %d, want 0/4", len(res.Rows), res.Total)
	}
}

func TestStatic_nestedFieldPath(t *testing.T) {
	rows := []map[string]any{
		{"user": map[string]any{"name": "Tom"}},
		{"user": map[string]any{"name": "Amy"}},
	}
	filters := []model.FilterConfig{{ID: "kw", Field: "user.name", Type: model.FilterText}}
	res := Static(rows, params(map[string]any{"kw": "amy"}, 1, 10, nil), filters)
	if res.Total != 1 {
		t.Errorf("total = %d, want 1", res.Total)
	}
}
