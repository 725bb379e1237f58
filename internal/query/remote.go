package query

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/lk-keep-fighting/jsonpage/internal/observability"
	"github.com/lk-keep-fighting/jsonpage/internal/template"
	"github.com/lk-keep-fighting/jsonpage/model"
)

const (
	defaultPageParam     = "page"
	defaultPageSizeParam = "pageSize"
	defaultDataPath      = "data"
	defaultTotalPath     = "total"

	maxResponseBytes = 10 << 20 // 10MB
)

// Engine executes load parameters against data sources. Remote endpoints
// get a cached HTTP client and circuit breaker each; static sources are
// computed inline.
type Engine struct {
	defaultTimeout time.Duration
	metrics        SourceMetrics

	mu      sync.Mutex
	clients map[string]*endpointClient
}

// SourceMetrics receives remote request outcomes. Status 0 marks a request
// that failed before a response arrived.
type SourceMetrics interface {
	RecordSourceRequest(endpoint string, status int, duration time.Duration)
	SetCircuitBreakerState(endpoint string, state int)
}

// SetMetrics attaches a metrics sink for remote requests. Call before the
// first query.
func (e *Engine) SetMetrics(m SourceMetrics) {
	e.metrics = m
}

type endpointClient struct {
	client  *http.Client
	breaker *CircuitBreaker
}

// NewEngine creates an Engine. defaultTimeout bounds remote requests whose
// source config does not set its own; non-positive means 10s.
func NewEngine(defaultTimeout time.Duration) *Engine {
	if defaultTimeout <= 0 {
		defaultTimeout = 10 * time.Second
	}
	return &Engine{
		defaultTimeout: defaultTimeout,
		clients:        make(map[string]*endpointClient),
	}
}

// Query dispatches on the source type. Static sources never fail; remote
// sources can return backend errors.
func (e *Engine) Query(
	ctx context.Context,
	source *model.DataSourceConfig,
	params model.LoadParams,
	filters []model.FilterConfig,
) (model.QueryResult, error) {
	if source == nil {
		return model.QueryResult{}, model.NewBadRequestError("page has no data source")
	}
	switch source.Type {
	case model.SourceStatic:
		return Static(source.Data, params, filters), nil
	case model.SourceRemote:
		return e.Remote(ctx, source, params)
	default:
		return model.QueryResult{}, model.NewBadRequestError(
			fmt.Sprintf("unknown data source type %q", source.Type),
		)
	}
}

// Remote serializes the load parameters into an HTTP request against the
// source endpoint and maps the response back into a QueryResult. GET carries
// everything in the query string; other methods send a JSON body merging the
// configured request body with page, pageSize, filters, and sort.
func (e *Engine) Remote(
	ctx context.Context,
	source *model.DataSourceConfig,
	params model.LoadParams,
) (model.QueryResult, error) {
	method := source.Method
	if method == "" {
		method = http.MethodGet
	}

	reqURL := source.Endpoint
	var bodyBytes []byte

	if method == http.MethodGet {
		qs := buildQueryString(source, params)
		if qs != "" {
			reqURL = source.Endpoint + "?" + qs
		}
	} else {
		body := make(map[string]any, len(source.RequestBody)+4)
		for k, v := range source.RequestBody {
			body[k] = v
		}
		body["page"] = params.Page
		body["pageSize"] = params.PageSize
		body["filters"] = params.Filters
		if params.Sort != nil {
			body["sort"] = params.Sort
		}
		var err error
		bodyBytes, err = json.Marshal(body)
		if err != nil {
			return model.QueryResult{}, fmt.Errorf("query: marshal body: %w", err)
		}
	}

	result, err := e.do(ctx, source, method, reqURL, bodyBytes)
	if err != nil {
		return model.QueryResult{}, err
	}
	return mapResponse(result, source.ResponseMapping), nil
}

// buildQueryString carries page/pageSize under descriptor-specified names,
// the sort directive when present, and one entry per active filter. Range
// filters expand into From/To parameters; filter keys may be remapped.
func buildQueryString(source *model.DataSourceConfig, params model.LoadParams) string {
	values := url.Values{}

	pageParam := defaultPageParam
	pageSizeParam := defaultPageSizeParam
	if p := source.Pagination; p != nil {
		if p.PageParam != "" {
			pageParam = p.PageParam
		}
		if p.PageSizeParam != "" {
			pageSizeParam = p.PageSizeParam
		}
	}
	values.Set(pageParam, fmt.Sprintf("%d", params.Page))
	values.Set(pageSizeParam, fmt.Sprintf("%d", params.PageSize))

	if params.Sort != nil && params.Sort.Field != "" {
		values.Set("sortField", params.Sort.Field)
		values.Set("sortDirection", params.Sort.Direction)
	}

	for key, value := range params.Filters {
		if value == nil || value == "" {
			continue
		}
		mapped := key
		if m, ok := source.QueryMapping[key]; ok {
			mapped = m
		}
		if rng, ok := coerceRange(value); ok {
			if rng.From != "" {
				values.Set(mapped+"From", rng.From)
			}
			if rng.To != "" {
				values.Set(mapped+"To", rng.To)
			}
			continue
		}
		values.Set(mapped, template.Stringify(value))
	}

	return values.Encode()
}

// do performs one HTTP exchange with circuit breaker protection. A non-2xx
// response is a hard failure carrying the status and body text.
func (e *Engine) do(ctx context.Context, source *model.DataSourceConfig, method, reqURL string, bodyBytes []byte) (any, error) {
	ec := e.clientFor(source)

	if err := ec.breaker.Allow(); err != nil {
		e.observeBreaker(source.Endpoint, ec)
		return nil, model.NewBackendUnavailableError()
	}

	start := time.Now()

	var body io.Reader
	if bodyBytes != nil {
		body = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return nil, fmt.Errorf("query: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range source.Headers {
		req.Header.Set(k, v)
	}
	observability.InjectTraceHeaders(ctx, req.Header)

	resp, err := ec.client.Do(req)
	if err != nil {
		// Cancellation is the caller's doing, not an endpoint failure.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		e.observeRequest(source.Endpoint, 0, start)
		ec.breaker.RecordFailure()
		e.observeBreaker(source.Endpoint, ec)
		if isConnectionError(err) {
			return nil, model.NewBackendUnavailableError()
		}
		var urlErr *url.Error
		if errors.As(err, &urlErr) && urlErr.Timeout() {
			return nil, model.NewBackendTimeoutError()
		}
		return nil, fmt.Errorf("query: request failed: %w", err)
	}
	defer resp.Body.Close()
	e.observeRequest(source.Endpoint, resp.StatusCode, start)

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		ec.breaker.RecordFailure()
		e.observeBreaker(source.Endpoint, ec)
		return nil, fmt.Errorf("query: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if resp.StatusCode >= 500 {
			ec.breaker.RecordFailure()
			e.observeBreaker(source.Endpoint, ec)
		}
		return nil, model.NewBackendError(
			fmt.Sprintf("failed to load data: %d %s", resp.StatusCode, string(respBody)),
			resp.StatusCode,
			string(respBody),
		)
	}
	ec.breaker.RecordSuccess()
	e.observeBreaker(source.Endpoint, ec)

	var parsed any
	if len(respBody) > 0 {
		if err := json.Unmarshal(respBody, &parsed); err != nil {
			return nil, model.NewBackendError("invalid JSON in response body", resp.StatusCode, string(respBody))
		}
	}
	return parsed, nil
}

// mapResponse extracts rows and total using the configured paths. When the
// data path misses, the whole body is used as the row collection only if the
// body itself is an array; the total path is honored independently, falling
// back to the row count when absent or non-numeric.
func mapResponse(body any, mapping *model.ResponseMapping) model.QueryResult {
	dataPath := defaultDataPath
	totalPath := defaultTotalPath
	if mapping != nil {
		if mapping.Data != "" {
			dataPath = mapping.Data
		}
		if mapping.Total != "" {
			totalPath = mapping.Total
		}
	}

	var rawRows any
	bodyMap, isMap := body.(map[string]any)
	if isMap {
		if v, ok := template.GetByPath(bodyMap, dataPath); ok {
			rawRows = v
		}
	}
	if rawRows == nil {
		if arr, ok := body.([]any); ok {
			rawRows = arr
		}
	}

	rows := toRowSlice(rawRows)

	total := len(rows)
	if isMap {
		if v, ok := template.GetByPath(bodyMap, totalPath); ok {
			if n, numeric := coerceNumber(v); numeric {
				total = int(n)
			}
		}
	}

	return model.QueryResult{Rows: rows, Total: total}
}

func toRowSlice(v any) []map[string]any {
	arr, ok := v.([]any)
	if !ok {
		return []map[string]any{}
	}
	rows := make([]map[string]any, 0, len(arr))
	for _, item := range arr {
		if m, ok := item.(map[string]any); ok {
			rows = append(rows, m)
		}
	}
	return rows
}

func (e *Engine) clientFor(source *model.DataSourceConfig) *endpointClient {
	e.mu.Lock()
	defer e.mu.Unlock()

	ec, ok := e.clients[source.Endpoint]
	if ok {
		return ec
	}

	timeout := source.Timeout
	if timeout <= 0 {
		timeout = e.defaultTimeout
	}
	ec = &endpointClient{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxConnsPerHost:     50,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		breaker: NewCircuitBreaker(5, 2, 30*time.Second),
	}
	e.clients[source.Endpoint] = ec
	return ec
}

func (e *Engine) observeRequest(endpoint string, status int, start time.Time) {
	if e.metrics == nil {
		return
	}
	e.metrics.RecordSourceRequest(endpoint, status, time.Since(start))
}

func (e *Engine) observeBreaker(endpoint string, ec *endpointClient) {
	if e.metrics == nil {
		return
	}
	e.metrics.SetCircuitBreakerState(endpoint, int(ec.breaker.State()))
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	var netErr *net.OpError
	if errors.As(err, &netErr) {
		return true
	}
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}
