package integration

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// MockBackend is a configurable HTTP test server that simulates the service
// behind a remote data source or an api action. Responses are served from a
// queue; the last configured response repeats once the queue drains. Every
// received request is recorded for later assertion.
type MockBackend struct {
	t      *testing.T
	server *httptest.Server

	mu        sync.Mutex
	responses []mockResponse
	served    int
	received  []*RecordedRequest
}

// RecordedRequest captures one request received by the mock backend.
type RecordedRequest struct {
	Method      string
	Path        string
	QueryParams map[string]string
	Headers     http.Header
	Body        map[string]any
	RawBody     []byte
	ReceivedAt  time.Time
}

type mockResponse struct {
	status int
	body   any
	delay  time.Duration
}

// NewMockBackend starts a mock backend that answers 200 with an empty JSON
// object until configured otherwise.
func NewMockBackend(t *testing.T) *MockBackend {
	t.Helper()
	mb := &MockBackend{t: t}
	mb.server = httptest.NewServer(http.HandlerFunc(mb.handle))
	t.Cleanup(mb.server.Close)
	return mb
}

// URL returns the base URL of the mock backend server.
func (mb *MockBackend) URL() string {
	return mb.server.URL
}

// RespondWith queues a response with the given status and JSON body.
func (mb *MockBackend) RespondWith(status int, body any) *MockBackend {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.responses = append(mb.responses, mockResponse{status: status, body: body})
	return mb
}

// RespondAfter queues a response served after the given delay, for timeout
// scenarios.
func (mb *MockBackend) RespondAfter(delay time.Duration, status int, body any) *MockBackend {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.responses = append(mb.responses, mockResponse{status: status, body: body, delay: delay})
	return mb
}

// Received returns all recorded requests so far.
func (mb *MockBackend) Received() []*RecordedRequest {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	out := make([]*RecordedRequest, len(mb.received))
	copy(out, mb.received)
	return out
}

// CallCount returns the number of requests received so far.
func (mb *MockBackend) CallCount() int {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	return len(mb.received)
}

func (mb *MockBackend) handle(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)

	rec := &RecordedRequest{
		Method:      r.Method,
		Path:        r.URL.Path,
		QueryParams: make(map[string]string),
		Headers:     r.Header.Clone(),
		RawBody:     raw,
		ReceivedAt:  time.Now(),
	}
	for key, values := range r.URL.Query() {
		if len(values) > 0 {
			rec.QueryParams[key] = values[0]
		}
	}
	if len(raw) > 0 {
		json.Unmarshal(raw, &rec.Body)
	}

	mb.mu.Lock()
	mb.received = append(mb.received, rec)
	resp := mockResponse{status: http.StatusOK, body: map[string]any{}}
	if len(mb.responses) > 0 {
		idx := mb.served
		if idx >= len(mb.responses) {
			idx = len(mb.responses) - 1
		}
		resp = mb.responses[idx]
		mb.served++
	}
	mb.mu.Unlock()

	if resp.delay > 0 {
		time.Sleep(resp.delay)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.status)
	if resp.body != nil {
		json.NewEncoder(w).Encode(resp.body)
	}
}
