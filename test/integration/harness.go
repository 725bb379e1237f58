// Package integration provides a reusable test harness for end-to-end
// testing of the jsonpage server. It starts a full HTTP server over pages
// loaded from testdata, with an in-memory idempotency store and an HS256
// test token signer.
package integration

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/lk-keep-fighting/jsonpage/internal/action"
	"github.com/lk-keep-fighting/jsonpage/internal/config"
	"github.com/lk-keep-fighting/jsonpage/internal/query"
	"github.com/lk-keep-fighting/jsonpage/internal/schema"
	"github.com/lk-keep-fighting/jsonpage/internal/source"
	"github.com/lk-keep-fighting/jsonpage/internal/transport"
)

const testSecret = "integration-test-secret"

// TestHarness encapsulates a fully wired jsonpage instance for integration
// testing.
type TestHarness struct {
	t      *testing.T
	server *httptest.Server

	Registry         *schema.Registry
	Engine           *query.Engine
	Executor         *action.Executor
	IdempotencyStore *action.MemoryIdempotencyStore
	Controllers      *source.Manager

	cfg *config.Config
}

// HarnessOption configures the test harness.
type HarnessOption func(*harnessConfig)

type harnessConfig struct {
	pagesDirs      []string
	authEnabled    bool
	rewrites       map[string]string
	actionRewrites map[string]map[string]string
}

// WithPages sets the page directories to load. Relative paths are resolved
// from the testdata directory.
func WithPages(dirs ...string) HarnessOption {
	return func(c *harnessConfig) {
		c.pagesDirs = dirs
	}
}

// WithAuth enables bearer token authentication with the test secret.
func WithAuth() HarnessOption {
	return func(c *harnessConfig) {
		c.authEnabled = true
	}
}

// WithRemoteEndpoint rewrites the data source endpoint of a loaded page,
// pointing it at a mock backend started by the test.
func WithRemoteEndpoint(pageID, url string) HarnessOption {
	return func(c *harnessConfig) {
		if c.rewrites == nil {
			c.rewrites = make(map[string]string)
		}
		c.rewrites[pageID] = url
	}
}

// WithActionEndpoint rewrites the behavior endpoint of one action on a loaded
// page. The url may still contain placeholders.
func WithActionEndpoint(pageID, actionID, url string) HarnessOption {
	return func(c *harnessConfig) {
		if c.actionRewrites == nil {
			c.actionRewrites = make(map[string]map[string]string)
		}
		if c.actionRewrites[pageID] == nil {
			c.actionRewrites[pageID] = make(map[string]string)
		}
		c.actionRewrites[pageID][actionID] = url
	}
}

// NewHarness builds and starts a jsonpage server. The server and all its
// resources are cleaned up with the test.
func NewHarness(t *testing.T, opts ...HarnessOption) *TestHarness {
	t.Helper()

	hc := &harnessConfig{pagesDirs: []string{"pages"}}
	for _, opt := range opts {
		opt(hc)
	}

	cfg := config.Defaults()
	cfg.Server.HandlerTimeout = 5 * time.Second
	cfg.Query.DefaultTimeout = 2 * time.Second
	if hc.authEnabled {
		cfg.Auth.Enabled = true
		cfg.Auth.Secret = testSecret
	}

	validator, err := schema.NewValidator()
	if err != nil {
		t.Fatalf("schema validator: %v", err)
	}
	loader := schema.NewLoader(validator)

	dirs := make([]string, len(hc.pagesDirs))
	for i, dir := range hc.pagesDirs {
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(testdataDir(t), dir)
		}
		dirs[i] = dir
	}
	pages, err := loader.LoadAll(dirs)
	if err != nil {
		t.Fatalf("loading pages: %v", err)
	}
	for i := range pages {
		if url, ok := hc.rewrites[pages[i].ID]; ok {
			if pages[i].DataSource == nil {
				t.Fatalf("page %q has no data source to rewrite", pages[i].ID)
			}
			pages[i].DataSource.Endpoint = url
		}
		for actionID, url := range hc.actionRewrites[pages[i].ID] {
			act, found := schema.FindAction(&pages[i], actionID)
			if !found {
				t.Fatalf("page %q has no action %q to rewrite", pages[i].ID, actionID)
			}
			act.Behavior.Endpoint = url
		}
	}
	registry := schema.NewRegistry(pages)

	engine := query.NewEngine(cfg.Query.DefaultTimeout)
	store := action.NewMemoryIdempotencyStore()
	executor := action.NewExecutor(zap.NewNop(),
		action.WithConfirmer(transport.RequestConfirmer),
		action.WithIdempotencyStore(store, cfg.Idempotency.TTL),
	)
	controllers := source.NewManager()
	t.Cleanup(controllers.CloseAll)

	router := transport.NewRouter(transport.Dependencies{
		Config:      cfg,
		Logger:      zap.NewNop(),
		Registry:    registry,
		Engine:      engine,
		Executor:    executor,
		Metrics:     nil,
		Controllers: controllers,
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &TestHarness{
		t:                t,
		server:           srv,
		Registry:         registry,
		Engine:           engine,
		Executor:         executor,
		IdempotencyStore: store,
		Controllers:      controllers,
		cfg:              cfg,
	}
}

// URL returns the base URL of the running server.
func (h *TestHarness) URL() string {
	return h.server.URL
}

// Token signs an HS256 bearer token with the given subject and roles.
func (h *TestHarness) Token(subject string, roles ...string) string {
	h.t.Helper()
	claims := jwt.MapClaims{
		"sub": subject,
		"iat": jwt.NewNumericDate(time.Now()),
		"exp": jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	if len(roles) > 0 {
		rs := make([]any, len(roles))
		for i, r := range roles {
			rs[i] = r
		}
		claims["roles"] = rs
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		h.t.Fatalf("signing token: %v", err)
	}
	return signed
}

// ExpiredToken signs a token that expired an hour ago.
func (h *TestHarness) ExpiredToken(subject string) string {
	h.t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": subject,
		"iat": jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
		"exp": jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	}).SignedString([]byte(testSecret))
	if err != nil {
		h.t.Fatalf("signing token: %v", err)
	}
	return signed
}

// Response wraps an HTTP response with its decoded JSON body.
type Response struct {
	Status int
	Body   map[string]any
	Raw    []byte
	Header http.Header
}

// Get performs a GET request against the server. Headers come in key, value
// pairs.
func (h *TestHarness) Get(path string, headers ...string) *Response {
	h.t.Helper()
	return h.do("GET", path, nil, headers...)
}

// Post performs a POST request with a JSON body.
func (h *TestHarness) Post(path string, body any, headers ...string) *Response {
	h.t.Helper()
	return h.do("POST", path, body, headers...)
}

func (h *TestHarness) do(method, path string, body any, headers ...string) *Response {
	h.t.Helper()
	if len(headers)%2 != 0 {
		h.t.Fatal("headers must come in key, value pairs")
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			h.t.Fatalf("marshaling request body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, h.server.URL+path, reader)
	if err != nil {
		h.t.Fatalf("building request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		h.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		h.t.Fatalf("reading response body: %v", err)
	}

	out := &Response{Status: resp.StatusCode, Raw: raw, Header: resp.Header}
	if len(raw) > 0 {
		json.Unmarshal(raw, &out.Body)
	}
	return out
}

// ErrorCode extracts the error envelope code from a response body.
func (r *Response) ErrorCode() string {
	errObj, _ := r.Body["error"].(map[string]any)
	code, _ := errObj["code"].(string)
	return code
}

// Rows extracts the rows array from a data response.
func (r *Response) Rows() []any {
	rows, _ := r.Body["rows"].([]any)
	return rows
}

// testdataDir resolves the testdata directory next to this source file.
func testdataDir(t *testing.T) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("resolving caller for testdata path")
	}
	return filepath.Join(filepath.Dir(file), "testdata")
}
