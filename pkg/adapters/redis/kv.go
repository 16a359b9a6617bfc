package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"
)

// KeyValueStore implements execution.KeyValueStore on Redis, giving
// stateful nodes (gates and friends) durability across runs and
// processes. Values round-trip through JSON.
type KeyValueStore struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

// NewKeyValueStore creates a key-value store from an existing client.
func NewKeyValueStore(client *backend.Client, opts ...KVOption) *KeyValueStore {
	store := &KeyValueStore{
		client: client,
		prefix: "espalier:state:",
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// KVOption configures a KeyValueStore.
type KVOption func(*KeyValueStore)

// WithKVPrefix sets the key prefix for node state.
func WithKVPrefix(prefix string) KVOption {
	return func(s *KeyValueStore) { s.prefix = prefix }
}

// WithKVTTL sets the expiration for node state.
func WithKVTTL(ttl time.Duration) KVOption {
	return func(s *KeyValueStore) { s.ttl = ttl }
}

// Get returns the decoded value for key and whether it exists.
func (s *KeyValueStore) Get(ctx context.Context, key string) (any, bool, error) {
	val, err := s.client.Get(ctx, s.prefix+key).Result()
	if err != nil {
		if err == backend.Nil {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get state from redis: %w", err)
	}
	var out any
	if err := json.Unmarshal([]byte(val), &out); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	return out, true, nil
}

// Set stores the JSON-encoded value for key.
func (s *KeyValueStore) Set(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	if err := s.client.Set(ctx, s.prefix+key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save state to redis: %w", err)
	}
	return nil
}
