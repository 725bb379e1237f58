package action

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/lk-keep-fighting/jsonpage/model"
)

func testActionResult() model.ActionResult {
	return model.ActionResult{
		Executed: true,
		Message:  "User suspended",
		Payload:  map[string]any{"id": "42", "status": "suspended"},
	}
}

func TestMemoryIdempotencyStore_CheckNotFound(t *testing.T) {
	store := NewMemoryIdempotencyStore()

	result, found, err := store.Check(context.Background(), "idem:suspend-user:key1", "hash-abc")
	if err != nil {
		t.Fatalf("Check error: %v", err)
	}
	if found || result != nil {
		t.Errorf("found = %v result = %+v, want miss", found, result)
	}
}

func TestMemoryIdempotencyStore_StoreAndCheck(t *testing.T) {
	store := NewMemoryIdempotencyStore()
	ctx := context.Background()
	key := FormatIdempotencyKey("suspend-user", "key1")

	if err := store.Store(ctx, key, "hash-abc", testActionResult(), 5*time.Minute); err != nil {
		t.Fatalf("Store error: %v", err)
	}

	result, found, err := store.Check(ctx, key, "hash-abc")
	if err != nil {
		t.Fatalf("Check error: %v", err)
	}
	if !found {
		t.Fatal("found = false, want true")
	}
	if result.Message != "User suspended" || !result.Executed {
		t.Errorf("result = %+v", result)
	}
}

func TestMemoryIdempotencyStore_HashMismatchConflicts(t *testing.T) {
	store := NewMemoryIdempotencyStore()
	ctx := context.Background()
	key := FormatIdempotencyKey("suspend-user", "key1")

	if err := store.Store(ctx, key, "hash-abc", testActionResult(), 5*time.Minute); err != nil {
		t.Fatalf("Store error: %v", err)
	}

	_, found, err := store.Check(ctx, key, "other-hash")
	if !found {
		t.Error("found = false, want true")
	}
	var ee *model.ErrorEnvelope
	if !errors.As(err, &ee) || ee.Code != model.ErrConflict {
		t.Errorf("err = %v, want conflict", err)
	}
}

func TestMemoryIdempotencyStore_ExpiredEntryIsMiss(t *testing.T) {
	store := NewMemoryIdempotencyStore()
	ctx := context.Background()
	key := FormatIdempotencyKey("suspend-user", "key1")

	if err := store.Store(ctx, key, "hash-abc", testActionResult(), time.Millisecond); err != nil {
		t.Fatalf("Store error: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	_, found, err := store.Check(ctx, key, "hash-abc")
	if err != nil {
		t.Fatalf("Check error: %v", err)
	}
	if found {
		t.Error("expired entry must be a miss")
	}
	if store.Len() != 0 {
		t.Errorf("expired entry must be evicted, len = %d", store.Len())
	}
}

func TestRedisIdempotencyStore_StoreAndCheck(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisIdempotencyStore(client)
	ctx := context.Background()
	key := FormatIdempotencyKey("suspend-user", "key1")

	if err := store.Store(ctx, key, "hash-abc", testActionResult(), 5*time.Minute); err != nil {
		t.Fatalf("Store error: %v", err)
	}

	result, found, err := store.Check(ctx, key, "hash-abc")
	if err != nil {
		t.Fatalf("Check error: %v", err)
	}
	if !found || result.Message != "User suspended" {
		t.Errorf("found = %v result = %+v", found, result)
	}

	// The entry expires with Redis TTL semantics.
	mr.FastForward(6 * time.Minute)
	_, found, err = store.Check(ctx, key, "hash-abc")
	if err != nil {
		t.Fatalf("Check after expiry error: %v", err)
	}
	if found {
		t.Error("entry must expire")
	}
}

func TestRedisIdempotencyStore_HashMismatchConflicts(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisIdempotencyStore(client)
	ctx := context.Background()
	key := FormatIdempotencyKey("suspend-user", "key1")

	if err := store.Store(ctx, key, "hash-abc", testActionResult(), 5*time.Minute); err != nil {
		t.Fatalf("Store error: %v", err)
	}

	_, found, err := store.Check(ctx, key, "other-hash")
	if !found {
		t.Error("found = false, want true")
	}
	var ee *model.ErrorEnvelope
	if !errors.As(err, &ee) || ee.Code != model.ErrConflict {
		t.Errorf("err = %v, want conflict", err)
	}
}

func TestExecutor_idempotentReplayReturnsCachedResult(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	store := NewMemoryIdempotencyStore()
	e := NewExecutor(nil, WithIdempotencyStore(store, time.Minute))

	ctx := context.Background()
	ec := model.ExecutionContext{RowID: "42"}
	action := apiAction(srv.URL)

	first, err := e.Execute(ctx, action, ec, "req-1")
	if err != nil {
		t.Fatalf("first Execute error: %v", err)
	}
	second, err := e.Execute(ctx, action, ec, "req-1")
	if err != nil {
		t.Fatalf("second Execute error: %v", err)
	}

	if calls.Load() != 1 {
		t.Errorf("backend calls = %d, want 1", calls.Load())
	}
	if first.Executed != second.Executed || first.Message != second.Message {
		t.Errorf("replay result differs: %+v vs %+v", first, second)
	}
}
