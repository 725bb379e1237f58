package action

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lk-keep-fighting/jsonpage/model"
)

// IdempotencyStore deduplicates action executions. Keys are scoped per action
// as "idem:{actionId}:{key}".
type IdempotencyStore interface {
	// Check looks up a previous result by key. If the key exists with the
	// same input hash the cached result is returned; with a different hash
	// the key was reused for a different invocation and Check returns a
	// conflict error.
	Check(ctx context.Context, key string, inputHash string) (result *model.ActionResult, found bool, err error)

	// Store saves an action result under the key with a TTL.
	Store(ctx context.Context, key string, inputHash string, result model.ActionResult, ttl time.Duration) error
}

type idempotencyEntry struct {
	InputHash string             `json:"input_hash"`
	Result    model.ActionResult `json:"result"`
}

// MemoryIdempotencyStore is an in-memory IdempotencyStore with TTL support,
// suitable for single-instance deployments and tests.
type MemoryIdempotencyStore struct {
	mu      sync.RWMutex
	entries map[string]*memEntry
}

type memEntry struct {
	data      idempotencyEntry
	expiresAt time.Time
}

// NewMemoryIdempotencyStore creates an empty in-memory store.
func NewMemoryIdempotencyStore() *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{entries: make(map[string]*memEntry)}
}

func (s *MemoryIdempotencyStore) Check(_ context.Context, key string, inputHash string) (*model.ActionResult, bool, error) {
	s.mu.RLock()
	entry, exists := s.entries[key]
	s.mu.RUnlock()

	if !exists {
		return nil, false, nil
	}
	if time.Now().After(entry.expiresAt) {
		s.mu.Lock()
		delete(s.entries, key)
		s.mu.Unlock()
		return nil, false, nil
	}
	if entry.data.InputHash != inputHash {
		return nil, true, model.NewConflictError(
			fmt.Sprintf("idempotency key %q already used with different input", key),
		)
	}
	result := entry.data.Result
	return &result, true, nil
}

func (s *MemoryIdempotencyStore) Store(_ context.Context, key string, inputHash string, result model.ActionResult, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = &memEntry{
		data:      idempotencyEntry{InputHash: inputHash, Result: result},
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}

// Len reports the number of entries, expired ones included. For tests.
func (s *MemoryIdempotencyStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// RedisIdempotencyStore is a Redis-backed IdempotencyStore.
type RedisIdempotencyStore struct {
	client redis.Cmdable
}

// NewRedisIdempotencyStore creates a store over the given Redis client.
func NewRedisIdempotencyStore(client redis.Cmdable) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{client: client}
}

func (s *RedisIdempotencyStore) Check(ctx context.Context, key string, inputHash string) (*model.ActionResult, bool, error) {
	raw, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %q: %w", key, err)
	}

	var entry idempotencyEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, false, fmt.Errorf("unmarshal idempotency entry %q: %w", key, err)
	}
	if entry.InputHash != inputHash {
		return nil, true, model.NewConflictError(
			fmt.Sprintf("idempotency key %q already used with different input", key),
		)
	}
	return &entry.Result, true, nil
}

func (s *RedisIdempotencyStore) Store(ctx context.Context, key string, inputHash string, result model.ActionResult, ttl time.Duration) error {
	entry := idempotencyEntry{InputHash: inputHash, Result: result}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal idempotency entry: %w", err)
	}
	if err := s.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", key, err)
	}
	return nil
}

// HealthCheck pings Redis so the readiness endpoint can report on the store.
func (s *RedisIdempotencyStore) HealthCheck(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// FormatIdempotencyKey builds the per-action idempotency key.
func FormatIdempotencyKey(actionID, key string) string {
	return fmt.Sprintf("idem:%s:%s", actionID, key)
}
