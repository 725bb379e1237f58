// Package action executes configured UI actions: api actions call a backend
// endpoint with template-resolved parameters, link actions resolve to a URL
// without any network traffic. Execution is gated by an optional confirmation
// step and an optional input form.
package action

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/lk-keep-fighting/jsonpage/internal/form"
	"github.com/lk-keep-fighting/jsonpage/internal/observability"
	"github.com/lk-keep-fighting/jsonpage/internal/template"
	"github.com/lk-keep-fighting/jsonpage/model"
)

const maxResponseBytes = 10 << 20

// Confirmer decides whether a confirmation-gated action may proceed. The
// transport layer implements it from the caller's confirmed flag; tests plug
// in a canned answer.
type Confirmer interface {
	Confirm(ctx context.Context, action *model.ActionConfig) (bool, error)
}

// ConfirmFunc adapts a function to the Confirmer interface.
type ConfirmFunc func(ctx context.Context, action *model.ActionConfig) (bool, error)

func (f ConfirmFunc) Confirm(ctx context.Context, action *model.ActionConfig) (bool, error) {
	return f(ctx, action)
}

// AlwaysConfirm approves every confirmation prompt.
var AlwaysConfirm = ConfirmFunc(func(context.Context, *model.ActionConfig) (bool, error) {
	return true, nil
})

// Executor runs actions against their configured behavior.
type Executor struct {
	client    *http.Client
	confirmer Confirmer
	store     IdempotencyStore
	idemTTL   time.Duration
	log       *zap.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithConfirmer sets the confirmation gate.
func WithConfirmer(c Confirmer) Option {
	return func(e *Executor) { e.confirmer = c }
}

// WithIdempotencyStore enables result deduplication for api actions invoked
// with an idempotency key.
func WithIdempotencyStore(s IdempotencyStore, ttl time.Duration) Option {
	return func(e *Executor) {
		e.store = s
		if ttl > 0 {
			e.idemTTL = ttl
		}
	}
}

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Executor) { e.client = c }
}

// NewExecutor creates an executor. Without options it confirms every prompt
// and uses a 10 second request timeout.
func NewExecutor(log *zap.Logger, opts ...Option) *Executor {
	if log == nil {
		log = zap.NewNop()
	}
	e := &Executor{
		client:    &http.Client{Timeout: 10 * time.Second},
		confirmer: AlwaysConfirm,
		idemTTL:   time.Hour,
		log:       log,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs one action invocation. A declined confirmation is not an
// error: the result comes back with Executed false and nothing happened.
// idemKey, when non-empty, deduplicates api actions through the store.
func (e *Executor) Execute(
	ctx context.Context,
	action *model.ActionConfig,
	ec model.ExecutionContext,
	idemKey string,
) (model.ActionResult, error) {
	if action.Confirm != nil {
		ok, err := e.confirmer.Confirm(ctx, action)
		if err != nil {
			return model.ActionResult{}, err
		}
		if !ok {
			return model.ActionResult{Executed: false}, nil
		}
	}

	if action.Form != nil {
		values, err := form.Process(action.Form, ec.FormValues)
		if err != nil {
			return model.ActionResult{}, err
		}
		ec.FormValues = values
	}

	tctx := BuildTemplateContext(ec)

	switch action.Behavior.Type {
	case model.BehaviorAPI:
		return e.executeAPI(ctx, action, ec, tctx, idemKey)
	case model.BehaviorLink:
		return executeLink(action, tctx), nil
	default:
		return model.ActionResult{}, model.NewBadRequestError(
			fmt.Sprintf("action %q has unknown behavior type %q", action.ID, action.Behavior.Type),
		)
	}
}

// OpenForm returns the action's form with field defaults resolved against the
// execution context, ready to present to the caller.
func (e *Executor) OpenForm(action *model.ActionConfig, ec model.ExecutionContext) (*model.FormConfig, error) {
	if action.Form == nil {
		return nil, model.NewNotFoundError(fmt.Sprintf("action %q has no form", action.ID))
	}
	tctx := BuildTemplateContext(ec)

	out := *action.Form
	out.Fields = make([]model.FormFieldConfig, len(action.Form.Fields))
	copy(out.Fields, action.Form.Fields)
	for i := range out.Fields {
		if out.Fields[i].Default != nil {
			out.Fields[i].Default = template.Resolve(out.Fields[i].Default, tctx)
		}
	}
	return &out, nil
}

// BuildTemplateContext flattens the invocation into the placeholder
// namespace. Row fields come first, form values override them, and the
// structured entries are always available under their own names.
func BuildTemplateContext(ec model.ExecutionContext) map[string]any {
	tctx := make(map[string]any, len(ec.Row)+len(ec.FormValues)+7)
	for k, v := range ec.Row {
		tctx[k] = v
	}
	for k, v := range ec.FormValues {
		tctx[k] = v
	}
	tctx["row"] = ec.Row
	tctx["rowId"] = ec.RowID
	tctx["rows"] = ec.Rows
	tctx["rowIds"] = ec.RowIDs
	tctx["filters"] = ec.Filters
	tctx["form"] = ec.FormValues
	tctx["formValues"] = ec.FormValues
	return tctx
}

// RowContext builds the execution context for a row-scoped invocation.
func RowContext(row map[string]any, filters, formValues map[string]any) model.ExecutionContext {
	return model.ExecutionContext{
		Row:        row,
		RowID:      rowID(row),
		Filters:    filters,
		FormValues: formValues,
	}
}

// BulkContext builds the execution context for a bulk invocation. Row ids are
// taken from the id, key, or uuid field of each row; rows without one are
// skipped in the id list but kept in rows.
func BulkContext(rows []map[string]any, filters, formValues map[string]any) model.ExecutionContext {
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		if id := rowID(row); id != "" {
			ids = append(ids, id)
		}
	}
	return model.ExecutionContext{
		Rows:       rows,
		RowIDs:     ids,
		Filters:    filters,
		FormValues: formValues,
	}
}

func rowID(row map[string]any) string {
	for _, key := range []string{"id", "key", "uuid"} {
		if v, ok := row[key]; ok {
			if s := template.Stringify(v); s != "" {
				return s
			}
		}
	}
	return ""
}

func (e *Executor) executeAPI(
	ctx context.Context,
	action *model.ActionConfig,
	ec model.ExecutionContext,
	tctx map[string]any,
	idemKey string,
) (model.ActionResult, error) {
	b := action.Behavior

	var inputHash string
	if e.store != nil && idemKey != "" {
		inputHash = hashContext(ec)
		key := FormatIdempotencyKey(action.ID, idemKey)
		cached, found, err := e.store.Check(ctx, key, inputHash)
		if err != nil {
			return model.ActionResult{}, err
		}
		if found {
			return *cached, nil
		}
	}

	method := b.Method
	if method == "" {
		method = http.MethodPost
	}

	endpoint := template.Stringify(template.Resolve(b.Endpoint, tctx))
	if qs := template.ResolveParams(b.Query, tctx); len(qs) > 0 {
		values := url.Values{}
		for k, v := range qs {
			values.Set(k, v)
		}
		endpoint += "?" + values.Encode()
	}

	var body io.Reader
	if method != http.MethodGet && b.BodyTemplate != nil {
		resolved := template.Resolve(b.BodyTemplate, tctx)
		payload, err := json.Marshal(resolved)
		if err != nil {
			return model.ActionResult{}, fmt.Errorf("action: marshal body: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return model.ActionResult{}, fmt.Errorf("action: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range b.Headers {
		req.Header.Set(k, template.Stringify(template.Resolve(v, tctx)))
	}
	observability.InjectTraceHeaders(ctx, req.Header)

	resp, err := e.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return model.ActionResult{}, ctxErr
		}
		return model.ActionResult{}, model.NewBackendUnavailableError()
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return model.ActionResult{}, fmt.Errorf("action: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := b.ErrorMessage
		if msg == "" {
			msg = fmt.Sprintf("action failed: %d %s", resp.StatusCode, string(respBody))
		}
		e.log.Warn("action request failed",
			zap.String("action_id", action.ID),
			zap.Int("status", resp.StatusCode),
		)
		return model.ActionResult{}, model.NewBackendError(msg, resp.StatusCode, string(respBody))
	}

	result := model.ActionResult{Executed: true, Message: b.SuccessMessage}
	if len(respBody) > 0 {
		var payload any
		if err := json.Unmarshal(respBody, &payload); err == nil {
			result.Payload = payload
		}
	}

	if e.store != nil && idemKey != "" {
		key := FormatIdempotencyKey(action.ID, idemKey)
		if err := e.store.Store(ctx, key, inputHash, result, e.idemTTL); err != nil {
			e.log.Warn("idempotency store failed", zap.String("key", key), zap.Error(err))
		}
	}
	return result, nil
}

func executeLink(action *model.ActionConfig, tctx map[string]any) model.ActionResult {
	return model.ActionResult{
		Executed: true,
		URL:      template.Stringify(template.Resolve(action.Behavior.URL, tctx)),
		Target:   action.Behavior.Target,
	}
}

func hashContext(ec model.ExecutionContext) string {
	data, err := json.Marshal(ec)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
