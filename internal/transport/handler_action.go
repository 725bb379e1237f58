package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/lk-keep-fighting/jsonpage/internal/action"
	"github.com/lk-keep-fighting/jsonpage/internal/observability"
	"github.com/lk-keep-fighting/jsonpage/internal/schema"
	"github.com/lk-keep-fighting/jsonpage/model"
)

// idempotencyKeyHeader carries the caller-chosen deduplication key for api
// actions.
const idempotencyKeyHeader = "X-Idempotency-Key"

type confirmedKey struct{}

func withConfirmed(ctx context.Context, confirmed bool) context.Context {
	return context.WithValue(ctx, confirmedKey{}, confirmed)
}

// RequestConfirmer answers an action's confirm gate from the invocation
// request: the caller acknowledges the confirm dialog by sending
// confirmed=true. Wire it into the Executor the server will serve.
var RequestConfirmer = action.ConfirmFunc(func(ctx context.Context, _ *model.ActionConfig) (bool, error) {
	confirmed, _ := ctx.Value(confirmedKey{}).(bool)
	return confirmed, nil
})

// actionRequest is the body of an action invocation or form-open call.
type actionRequest struct {
	Row        map[string]any   `json:"row,omitempty"`
	RowID      string           `json:"rowId,omitempty"`
	Rows       []map[string]any `json:"rows,omitempty"`
	RowIDs     []string         `json:"rowIds,omitempty"`
	Filters    map[string]any   `json:"filters,omitempty"`
	FormValues map[string]any   `json:"formValues,omitempty"`
	Confirmed  bool             `json:"confirmed,omitempty"`
}

func (s *Server) handleOpenActionForm(w http.ResponseWriter, r *http.Request) {
	act, _, ok := s.lookupAction(w, r)
	if !ok {
		return
	}
	req, err := decodeActionRequest(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	form, err := s.executor.OpenForm(act, executionContext(req))
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, form)
}

func (s *Server) handleExecuteAction(w http.ResponseWriter, r *http.Request) {
	act, pageID, ok := s.lookupAction(w, r)
	if !ok {
		return
	}
	req, err := decodeActionRequest(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	ec := executionContext(req)
	if act.RequiresSelection && len(ec.Rows) == 0 && len(ec.RowIDs) == 0 {
		WriteError(w, model.NewBadRequestError(
			fmt.Sprintf("action %q requires a row selection", act.ID),
		))
		return
	}

	ctx := withConfirmed(r.Context(), req.Confirmed)
	ctx, span := observability.StartSpan(ctx, "action.execute",
		observability.AttrPageID.String(pageID),
		observability.AttrActionID.String(act.ID),
	)
	start := time.Now()
	result, err := s.executor.Execute(ctx, act, ec, r.Header.Get(idempotencyKeyHeader))
	observability.EndSpanWithError(span, err)
	if err != nil {
		s.recordActionOutcome(ctx, pageID, act, err, time.Since(start))
		WriteError(w, err)
		return
	}
	s.recordActionOutcome(ctx, pageID, act, nil, time.Since(start))

	// A completed api action likely changed backend state; refresh any
	// background controller serving this page.
	if result.Executed && act.Behavior.Type == model.BehaviorAPI {
		if ctrl, found := s.controllers.Get(pageID); found {
			ctrl.Refetch(context.WithoutCancel(ctx))
		}
	}

	WriteJSON(w, http.StatusOK, result)
}

// lookupAction resolves the page and action from the route, writing the 404
// itself when either is missing.
func (s *Server) lookupAction(w http.ResponseWriter, r *http.Request) (*model.ActionConfig, string, bool) {
	pageID := chi.URLParam(r, "pageId")
	actionID := chi.URLParam(r, "actionId")
	page, ok := s.registry.Get(pageID)
	if !ok {
		WriteNotFound(w, fmt.Sprintf("page %q not found", pageID))
		return nil, "", false
	}
	act, found := schema.FindAction(&page, actionID)
	if !found {
		WriteNotFound(w, fmt.Sprintf("action %q not found on page %q", actionID, pageID))
		return nil, "", false
	}
	return act, pageID, true
}

func decodeActionRequest(r *http.Request) (actionRequest, error) {
	var req actionRequest
	if r.Body == nil || r.ContentLength == 0 {
		return req, nil
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, model.NewBadRequestError(fmt.Sprintf("invalid request body: %v", err))
	}
	return req, nil
}

// executionContext builds the invocation context from the request. Missing
// row and list ids are derived from the row data.
func executionContext(req actionRequest) model.ExecutionContext {
	ec := model.ExecutionContext{
		Row:        req.Row,
		RowID:      req.RowID,
		Rows:       req.Rows,
		RowIDs:     req.RowIDs,
		Filters:    req.Filters,
		FormValues: req.FormValues,
	}
	if ec.Row != nil && ec.RowID == "" {
		ec.RowID = action.RowContext(ec.Row, nil, nil).RowID
	}
	if len(ec.Rows) > 0 && len(ec.RowIDs) == 0 {
		ec.RowIDs = action.BulkContext(ec.Rows, nil, nil).RowIDs
	}
	return ec
}

func (s *Server) recordActionOutcome(ctx context.Context, pageID string, act *model.ActionConfig, err error, elapsed time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
		var env *model.ErrorEnvelope
		if errors.As(err, &env) && env.Code == model.ErrValidationError {
			status = "validation_failure"
			if s.metrics != nil {
				s.metrics.RecordActionValidationFailure(act.ID)
			}
		}
		observability.RequestLogger(ctx, s.log).Warn("action execution failed",
			zap.String("page_id", pageID),
			zap.String("action_id", act.ID),
			zap.Error(err))
	}
	if s.metrics != nil {
		s.metrics.RecordActionExecution(act.ID, status, elapsed)
	}
}
