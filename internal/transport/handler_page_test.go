package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"go.uber.org/zap"

	"github.com/lk-keep-fighting/jsonpage/internal/source"
	"github.com/lk-keep-fighting/jsonpage/model"
)

func TestHandleListPages(t *testing.T) {
	r := NewRouter(testDeps())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/ui/pages", nil))

	if w.Code != 200 {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	var body struct {
		Pages []pageSummary `json:"pages"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if len(body.Pages) != 1 || body.Pages[0].ID != "users" {
		t.Errorf("pages = %+v, want one entry with id users", body.Pages)
	}
}

func TestHandleGetPage(t *testing.T) {
	r := NewRouter(testDeps())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/ui/pages/users", nil))

	if w.Code != 200 {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var page model.PageConfig
	if err := json.NewDecoder(w.Body).Decode(&page); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if page.ID != "users" || page.DataSource == nil {
		t.Errorf("page = %+v, want users page with data source", page)
	}
}

func TestHandleGetPage_notFound(t *testing.T) {
	r := NewRouter(testDeps())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/ui/pages/orders", nil))

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestHandleGetPageData_defaultsAndPaging(t *testing.T) {
	r := NewRouter(testDeps())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/ui/pages/users/data", nil))

	if w.Code != 200 {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	var body dataResponse
	json.NewDecoder(w.Body).Decode(&body)

	// Page size comes from the table's pagination config.
	if body.Page != 1 || body.PageSize != 2 {
		t.Errorf("page/pageSize = %d/%d, want 1/2", body.Page, body.PageSize)
	}
	if body.Total != 3 || len(body.Rows) != 2 {
		t.Errorf("total = %d rows = %d, want 3 and 2", body.Total, len(body.Rows))
	}
}

func TestHandleGetPageData_filterAndSort(t *testing.T) {
	r := NewRouter(testDeps())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET",
		"/ui/pages/users/data?filter[status]=active&sortField=name&sortDirection=desc", nil))

	if w.Code != 200 {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body dataResponse
	json.NewDecoder(w.Body).Decode(&body)

	if body.Total != 2 {
		t.Errorf("total = %d, want 2", body.Total)
	}
	if len(body.Rows) != 2 || body.Rows[0]["name"] != "Carol" || body.Rows[1]["name"] != "Ada" {
		t.Errorf("rows = %+v, want Carol then Ada", body.Rows)
	}
}

func TestHandleGetPageData_filterDefaultApplied(t *testing.T) {
	page := usersPage()
	page.Filters[0].Default = "active"
	r := NewRouter(testDeps(page))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/ui/pages/users/data", nil))

	var body dataResponse
	json.NewDecoder(w.Body).Decode(&body)
	if body.Total != 2 {
		t.Errorf("total = %d, want 2 after default status filter", body.Total)
	}
}

func TestHandleGetPageSnapshot(t *testing.T) {
	deps := testDeps()
	ctrl := source.NewController(func(context.Context, model.LoadParams) (model.QueryResult, error) {
		return model.QueryResult{
			Rows:  []map[string]any{{"id": "1"}},
			Total: 1,
		}, nil
	}, model.LoadParams{Page: 1, PageSize: 25}, zap.NewNop())
	<-ctrl.Refetch(context.Background())
	deps.Controllers.Add("users", ctrl)
	t.Cleanup(deps.Controllers.CloseAll)

	r := NewRouter(deps)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/ui/pages/users/snapshot", nil))

	if w.Code != 200 {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	var body snapshotResponse
	json.NewDecoder(w.Body).Decode(&body)
	if body.Total != 1 || len(body.Rows) != 1 || body.Loading {
		t.Errorf("snapshot = %+v, want one settled row", body)
	}
	if body.LastLoaded == nil {
		t.Error("lastLoaded should be set after a successful load")
	}
}

func TestHandleGetPageSnapshot_noController(t *testing.T) {
	r := NewRouter(testDeps())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/ui/pages/users/snapshot", nil))

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestQueryFilters(t *testing.T) {
	req := httptest.NewRequest("GET",
		"/data?filter[status]=active&filter[created][from]=2024-01-01&filter[created][to]=2024-02-01&page=2", nil)

	got := queryFilters(req)
	want := map[string]any{
		"status": "active",
		"created": map[string]any{
			"from": "2024-01-01",
			"to":   "2024-02-01",
		},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("queryFilters = %+v, want %+v", got, want)
	}
}

func TestLoadParams_clampsInvalidValues(t *testing.T) {
	page := usersPage()
	req := httptest.NewRequest("GET", "/data?page=0&pageSize=-5", nil)

	params := loadParams(req, &page)
	if params.Page != 1 {
		t.Errorf("page = %d, want 1", params.Page)
	}
	if params.PageSize != 2 {
		t.Errorf("pageSize = %d, want table default 2", params.PageSize)
	}
}

func TestLoadParams_sortDirectionDefaultsToAsc(t *testing.T) {
	page := usersPage()
	req := httptest.NewRequest("GET", "/data?sortField=name&sortDirection=sideways", nil)

	params := loadParams(req, &page)
	if params.Sort == nil || params.Sort.Direction != model.SortAsc {
		t.Errorf("sort = %+v, want asc on name", params.Sort)
	}
}
