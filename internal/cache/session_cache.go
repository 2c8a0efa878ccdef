package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

const DefaultSessionTTL = 24 * time.Hour

// Store keeps per-session JSON documents. Get returns nil, nil on a miss.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, data interface{}) error
	Delete(ctx context.Context, key string) error
}

type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

func (c *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil // Cache miss
	}
	if err != nil {
		return nil, err
	}
	return val, nil
}

// Set stores data as JSON and refreshes the TTL.
func (c *RedisStore) Set(ctx context.Context, key string, data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, jsonData, c.ttl).Err()
}

func (c *RedisStore) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// MemoryStore is the in-process Store used when Redis is not configured.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok {
		return nil, nil
	}
	if m.now().After(entry.expiresAt) {
		delete(m.entries, key)
		return nil, nil
	}
	out := make([]byte, len(entry.data))
	copy(out, entry.data)
	return out, nil
}

func (m *MemoryStore) Set(_ context.Context, key string, data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memoryEntry{data: jsonData, expiresAt: m.now().Add(m.ttl)}
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

// Build cache key for a session's user list
func UsersKey(sessionID string) string {
	return fmt.Sprintf("session:%s:users", sessionID)
}

// Build cache key for a session's pending toasts
func ToastsKey(sessionID string) string {
	return fmt.Sprintf("session:%s:toasts", sessionID)
}
