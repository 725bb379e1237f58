package transport

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/lk-keep-fighting/jsonpage/model"
)

// actionsPage builds a page with one action of each flavor pointed at the
// given backend base URL.
func actionsPage(backend string) model.PageConfig {
	page := usersPage()
	page.Table.RowActions = []model.ActionConfig{
		{
			ID:      "disable-user",
			Label:   "Disable",
			Scope:   model.ScopeRow,
			Confirm: &model.ConfirmConfig{Title: "Disable this user?"},
			Behavior: model.BehaviorConfig{
				Type:           model.BehaviorAPI,
				Method:         "POST",
				Endpoint:       backend + "/users/{{rowId}}/disable",
				BodyTemplate:   map[string]any{"reason": "{{form.reason}}"},
				SuccessMessage: "User disabled",
			},
			Form: &model.FormConfig{
				Fields: []model.FormFieldConfig{
					{ID: "reason", Type: model.FieldText, Required: true},
				},
			},
		},
		{
			ID:    "view-orders",
			Label: "Orders",
			Scope: model.ScopeRow,
			Behavior: model.BehaviorConfig{
				Type:   model.BehaviorLink,
				URL:    "/orders?user={{rowId}}",
				Target: "_blank",
			},
		},
	}
	page.Table.BulkActions = []model.ActionConfig{
		{
			ID:                "bulk-disable",
			Label:             "Disable selected",
			Scope:             model.ScopeBulk,
			RequiresSelection: true,
			Behavior: model.BehaviorConfig{
				Type:         model.BehaviorAPI,
				Method:       "POST",
				Endpoint:     backend + "/users/bulk-disable",
				BodyTemplate: map[string]any{"userIds": "{{rowIds}}"},
			},
		},
	}
	return page
}

func postAction(r http.Handler, path string, body any) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest("POST", path, strings.NewReader(string(raw)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandleExecuteAction_declinedConfirmIsNoop(t *testing.T) {
	var calls atomic.Int32
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(200)
	}))
	defer backend.Close()

	r := NewRouter(testDeps(actionsPage(backend.URL)))
	w := postAction(r, "/ui/pages/users/actions/disable-user", map[string]any{
		"row":        map[string]any{"id": "7"},
		"formValues": map[string]any{"reason": "abuse"},
		"confirmed":  false,
	})

	if w.Code != 200 {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	var result model.ActionResult
	json.NewDecoder(w.Body).Decode(&result)
	if result.Executed {
		t.Error("declined confirm must not execute")
	}
	if calls.Load() != 0 {
		t.Errorf("backend calls = %d, want 0", calls.Load())
	}
}

func TestHandleExecuteAction_apiSuccess(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		raw, _ := io.ReadAll(r.Body)
		json.Unmarshal(raw, &gotBody)
		WriteJSON(w, 200, map[string]any{"ok": true})
	}))
	defer backend.Close()

	r := NewRouter(testDeps(actionsPage(backend.URL)))
	w := postAction(r, "/ui/pages/users/actions/disable-user", map[string]any{
		"row":        map[string]any{"id": "7", "name": "Ada"},
		"formValues": map[string]any{"reason": "abuse"},
		"confirmed":  true,
	})

	if w.Code != 200 {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	var result model.ActionResult
	json.NewDecoder(w.Body).Decode(&result)
	if !result.Executed || result.Message != "User disabled" {
		t.Errorf("result = %+v, want executed with success message", result)
	}
	if gotPath != "/users/7/disable" {
		t.Errorf("backend path = %q, want /users/7/disable", gotPath)
	}
	if gotBody["reason"] != "abuse" {
		t.Errorf("backend body = %+v, want reason abuse", gotBody)
	}
}

func TestHandleExecuteAction_validationFailure(t *testing.T) {
	var calls atomic.Int32
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
	}))
	defer backend.Close()

	r := NewRouter(testDeps(actionsPage(backend.URL)))
	w := postAction(r, "/ui/pages/users/actions/disable-user", map[string]any{
		"row":        map[string]any{"id": "7"},
		"formValues": map[string]any{"reason": ""},
		"confirmed":  true,
	})

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422: %s", w.Code, w.Body.String())
	}
	var body struct {
		Error *model.ErrorEnvelope `json:"error"`
	}
	json.NewDecoder(w.Body).Decode(&body)
	if body.Error == nil || body.Error.Code != model.ErrValidationError {
		t.Errorf("error = %+v, want VALIDATION_ERROR", body.Error)
	}
	if len(body.Error.Details) != 1 || body.Error.Details[0].Field != "reason" {
		t.Errorf("details = %+v, want one failure on reason", body.Error.Details)
	}
	if calls.Load() != 0 {
		t.Errorf("backend calls = %d, want 0", calls.Load())
	}
}

func TestHandleExecuteAction_bulkRequiresSelection(t *testing.T) {
	r := NewRouter(testDeps(actionsPage("http://backend.invalid")))
	w := postAction(r, "/ui/pages/users/actions/bulk-disable", map[string]any{
		"rows":      []map[string]any{},
		"confirmed": true,
	})

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400: %s", w.Code, w.Body.String())
	}
}

func TestHandleExecuteAction_bulkDerivesRowIDs(t *testing.T) {
	var gotBody map[string]any
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		json.Unmarshal(raw, &gotBody)
		w.WriteHeader(200)
	}))
	defer backend.Close()

	r := NewRouter(testDeps(actionsPage(backend.URL)))
	w := postAction(r, "/ui/pages/users/actions/bulk-disable", map[string]any{
		"rows": []map[string]any{{"id": "1"}, {"id": "2"}},
	})

	if w.Code != 200 {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	ids, _ := gotBody["userIds"].([]any)
	if len(ids) != 2 || ids[0] != "1" || ids[1] != "2" {
		t.Errorf("userIds = %+v, want [1 2] derived from rows", gotBody["userIds"])
	}
}

func TestHandleExecuteAction_link(t *testing.T) {
	r := NewRouter(testDeps(actionsPage("http://backend.invalid")))
	w := postAction(r, "/ui/pages/users/actions/view-orders", map[string]any{
		"row": map[string]any{"id": "7"},
	})

	if w.Code != 200 {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	var result model.ActionResult
	json.NewDecoder(w.Body).Decode(&result)
	if !result.Executed || result.URL != "/orders?user=7" || result.Target != "_blank" {
		t.Errorf("result = %+v, want resolved link", result)
	}
}

func TestHandleExecuteAction_unknownAction(t *testing.T) {
	r := NewRouter(testDeps(actionsPage("http://backend.invalid")))
	w := postAction(r, "/ui/pages/users/actions/nope", map[string]any{})

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestHandleExecuteAction_invalidBody(t *testing.T) {
	r := NewRouter(testDeps(actionsPage("http://backend.invalid")))
	req := httptest.NewRequest("POST", "/ui/pages/users/actions/view-orders",
		strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestHandleOpenActionForm(t *testing.T) {
	page := actionsPage("http://backend.invalid")
	page.Table.RowActions[0].Form.Fields[0].Default = "{{name}} violated terms"
	r := NewRouter(testDeps(page))

	w := postAction(r, "/ui/pages/users/actions/disable-user/form", map[string]any{
		"row": map[string]any{"id": "7", "name": "Ada"},
	})

	if w.Code != 200 {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	var form model.FormConfig
	json.NewDecoder(w.Body).Decode(&form)
	if len(form.Fields) != 1 || form.Fields[0].Default != "Ada violated terms" {
		t.Errorf("form = %+v, want resolved default", form)
	}
}

func TestHandleOpenActionForm_noForm(t *testing.T) {
	r := NewRouter(testDeps(actionsPage("http://backend.invalid")))
	w := postAction(r, "/ui/pages/users/actions/view-orders/form", map[string]any{})

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}
