package integration

import (
	"net/http"
	"testing"
)

func TestActionExecution_confirmDecline(t *testing.T) {
	backend := NewMockBackend(t)
	h := NewHarness(t, WithActionEndpoint("users", "disable-user",
		backend.URL()+"/users/{{rowId}}/disable"))

	resp := h.Post("/ui/pages/users/actions/disable-user", map[string]any{
		"row":        map[string]any{"id": "1", "name": "Ada"},
		"formValues": map[string]any{"reason": "terms violation"},
		"confirmed":  false,
	})

	if resp.Status != 200 {
		t.Fatalf("status = %d, want 200: %s", resp.Status, resp.Raw)
	}
	if resp.Body["executed"] != false {
		t.Error("declined confirm must report executed=false")
	}
	if backend.CallCount() != 0 {
		t.Errorf("backend calls = %d, want 0", backend.CallCount())
	}
}

func TestActionExecution_apiWithForm(t *testing.T) {
	backend := NewMockBackend(t)
	backend.RespondWith(200, map[string]any{"disabled": true})
	h := NewHarness(t, WithActionEndpoint("users", "disable-user",
		backend.URL()+"/users/{{rowId}}/disable"))

	resp := h.Post("/ui/pages/users/actions/disable-user", map[string]any{
		"row":        map[string]any{"id": "1", "name": "Ada"},
		"formValues": map[string]any{"reason": "terms violation"},
		"confirmed":  true,
	})

	if resp.Status != 200 {
		t.Fatalf("status = %d, want 200: %s", resp.Status, resp.Raw)
	}
	if resp.Body["executed"] != true || resp.Body["message"] != "User disabled" {
		t.Errorf("result = %v, want executed with success message", resp.Body)
	}

	reqs := backend.Received()
	if len(reqs) != 1 {
		t.Fatalf("backend calls = %d, want 1", len(reqs))
	}
	if reqs[0].Path != "/users/1/disable" {
		t.Errorf("path = %q, want /users/1/disable", reqs[0].Path)
	}
	if reqs[0].Body["reason"] != "terms violation" {
		t.Errorf("body = %+v, want templated reason", reqs[0].Body)
	}
}

func TestActionExecution_formValidationFailure(t *testing.T) {
	backend := NewMockBackend(t)
	h := NewHarness(t, WithActionEndpoint("users", "disable-user",
		backend.URL()+"/users/{{rowId}}/disable"))

	resp := h.Post("/ui/pages/users/actions/disable-user", map[string]any{
		"row":        map[string]any{"id": "1"},
		"formValues": map[string]any{"reason": ""},
		"confirmed":  true,
	})

	if resp.Status != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422: %s", resp.Status, resp.Raw)
	}
	if resp.ErrorCode() != "VALIDATION_ERROR" {
		t.Errorf("code = %q, want VALIDATION_ERROR", resp.ErrorCode())
	}
	if backend.CallCount() != 0 {
		t.Errorf("backend calls = %d, want 0 on validation failure", backend.CallCount())
	}
}

func TestActionExecution_bulk(t *testing.T) {
	backend := NewMockBackend(t)
	h := NewHarness(t, WithActionEndpoint("users", "bulk-disable",
		backend.URL()+"/users/bulk-disable"))

	// Selection required: an empty invocation is rejected.
	resp := h.Post("/ui/pages/users/actions/bulk-disable", map[string]any{})
	if resp.Status != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 without selection", resp.Status)
	}

	resp = h.Post("/ui/pages/users/actions/bulk-disable", map[string]any{
		"rows": []map[string]any{{"id": "1"}, {"id": "3"}},
	})
	if resp.Status != 200 {
		t.Fatalf("status = %d, want 200: %s", resp.Status, resp.Raw)
	}

	reqs := backend.Received()
	if len(reqs) != 1 {
		t.Fatalf("backend calls = %d, want 1", len(reqs))
	}
	ids, _ := reqs[0].Body["userIds"].([]any)
	if len(ids) != 2 || ids[0] != "1" || ids[1] != "3" {
		t.Errorf("userIds = %+v, want [1 3]", reqs[0].Body["userIds"])
	}
}

func TestActionExecution_link(t *testing.T) {
	h := NewHarness(t)

	resp := h.Post("/ui/pages/users/actions/view-orders", map[string]any{
		"row": map[string]any{"id": "2"},
	})

	if resp.Status != 200 {
		t.Fatalf("status = %d, want 200: %s", resp.Status, resp.Raw)
	}
	if resp.Body["url"] != "/orders?user=2" || resp.Body["target"] != "_blank" {
		t.Errorf("result = %v, want resolved link", resp.Body)
	}
}

func TestActionExecution_idempotentReplay(t *testing.T) {
	backend := NewMockBackend(t)
	backend.RespondWith(200, map[string]any{"disabled": true})
	h := NewHarness(t, WithActionEndpoint("users", "disable-user",
		backend.URL()+"/users/{{rowId}}/disable"))

	body := map[string]any{
		"row":        map[string]any{"id": "1"},
		"formValues": map[string]any{"reason": "spam"},
		"confirmed":  true,
	}
	first := h.Post("/ui/pages/users/actions/disable-user", body,
		"X-Idempotency-Key", "req-42")
	second := h.Post("/ui/pages/users/actions/disable-user", body,
		"X-Idempotency-Key", "req-42")

	if first.Status != 200 || second.Status != 200 {
		t.Fatalf("statuses = %d/%d, want 200/200", first.Status, second.Status)
	}
	if backend.CallCount() != 1 {
		t.Errorf("backend calls = %d, want 1 with replayed key", backend.CallCount())
	}
	if second.Body["executed"] != true {
		t.Error("replay must return the cached executed result")
	}
}

func TestActionExecution_idempotencyKeyConflict(t *testing.T) {
	backend := NewMockBackend(t)
	backend.RespondWith(200, map[string]any{"disabled": true})
	h := NewHarness(t, WithActionEndpoint("users", "disable-user",
		backend.URL()+"/users/{{rowId}}/disable"))

	h.Post("/ui/pages/users/actions/disable-user", map[string]any{
		"row":        map[string]any{"id": "1"},
		"formValues": map[string]any{"reason": "spam"},
		"confirmed":  true,
	}, "X-Idempotency-Key", "req-7")

	resp := h.Post("/ui/pages/users/actions/disable-user", map[string]any{
		"row":        map[string]any{"id": "2"},
		"formValues": map[string]any{"reason": "other"},
		"confirmed":  true,
	}, "X-Idempotency-Key", "req-7")

	if resp.Status != http.StatusConflict {
		t.Errorf("status = %d, want 409 for reused key with different input: %s",
			resp.Status, resp.Raw)
	}
}

func TestActionExecution_openForm(t *testing.T) {
	h := NewHarness(t)

	resp := h.Post("/ui/pages/users/actions/disable-user/form", map[string]any{
		"row": map[string]any{"id": "1", "name": "Ada"},
	})

	if resp.Status != 200 {
		t.Fatalf("status = %d, want 200: %s", resp.Status, resp.Raw)
	}
	fields, _ := resp.Body["fields"].([]any)
	if len(fields) != 1 {
		t.Fatalf("fields = %d, want 1", len(fields))
	}
}

func TestActionExecution_normalizedOperation(t *testing.T) {
	backend := NewMockBackend(t)
	backend.RespondWith(200, map[string]any{"refunded": true})
	h := NewHarness(t, WithActionEndpoint("orders", "refund",
		backend.URL()+"/api/orders/{{rowId}}/refund"))

	// The refund action comes from the models layout: its form is resolved
	// through form_ref during normalization.
	resp := h.Post("/ui/pages/orders/actions/refund", map[string]any{
		"row":        map[string]any{"id": "ord-9", "ref": "ord-9"},
		"formValues": map[string]any{"amount": "25.50", "mode": "1"},
		"confirmed":  true,
	})

	if resp.Status != 200 {
		t.Fatalf("status = %d, want 200: %s", resp.Status, resp.Raw)
	}
	reqs := backend.Received()
	if len(reqs) != 1 {
		t.Fatalf("backend calls = %d, want 1", len(reqs))
	}
	if reqs[0].Path != "/api/orders/ord-9/refund" {
		t.Errorf("path = %q, want templated order id", reqs[0].Path)
	}
	// Coercion turned the number string and the option index into canonical
	// values before templating.
	if reqs[0].Body["amount"] != 25.5 || reqs[0].Body["mode"] != "partial" {
		t.Errorf("body = %+v, want amount 25.5 and mode partial", reqs[0].Body)
	}
}
