// Package redis provides redis-backed adapters for run persistence and
// durable node state.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/espalierhq/espalier/pkg/flow/execution"
	"github.com/espalierhq/espalier/pkg/ports"
	backend "github.com/redis/go-redis/v9"
)

// RunStore implements ports.RunStore on Redis. Run records are stored
// as JSON values; per-board ZSET indices keep listing cheap and let
// expired runs fall out lazily.
type RunStore struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

// Option configures a RunStore.
type Option func(*RunStore)

// WithTTL sets the expiration for stored runs.
func WithTTL(ttl time.Duration) Option {
	return func(s *RunStore) { s.ttl = ttl }
}

// WithPrefix sets the key prefix for runs.
func WithPrefix(prefix string) Option {
	return func(s *RunStore) { s.prefix = prefix }
}

// New creates a run store with its own client.
func New(address, password string, db int, opts ...Option) *RunStore {
	client := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(client, opts...)
}

// NewFromClient creates a run store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *RunStore {
	store := &RunStore{
		client: client,
		prefix: "espalier:run:",
		ttl:    0, // no expiration by default
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

func (s *RunStore) key(runID string) string {
	return s.prefix + runID
}

func (s *RunStore) indexKey(boardID string) string {
	return s.prefix + "index:" + boardID
}

// Save persists the run and indexes it under its board.
func (s *RunStore) Save(ctx context.Context, run *execution.Run) error {
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.key(run.ID), data, s.ttl)

	// Score by start time so List comes back newest first. With a TTL
	// the score doubles as the expiry for lazy index pruning.
	score := float64(run.Start)
	pipe.ZAdd(ctx, s.indexKey(run.BoardID), backend.Z{
		Score:  score,
		Member: run.ID,
	})

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save run to redis: %w", err)
	}
	return nil
}

// Load retrieves a run record.
func (s *RunStore) Load(ctx context.Context, id string) (*execution.Run, error) {
	val, err := s.client.Get(ctx, s.key(id)).Result()
	if err != nil {
		if err == backend.Nil {
			return nil, ports.ErrRunNotFound
		}
		return nil, fmt.Errorf("failed to get run from redis: %w", err)
	}

	var run execution.Run
	if err := json.Unmarshal([]byte(val), &run); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run: %w", err)
	}
	return &run, nil
}

// Delete removes the run and its index entry. The board ID is read from
// the stored record first; a missing record is not an error.
func (s *RunStore) Delete(ctx context.Context, id string) error {
	run, err := s.Load(ctx, id)
	if err != nil {
		if err == ports.ErrRunNotFound {
			return nil
		}
		return err
	}

	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.key(id))
	pipe.ZRem(ctx, s.indexKey(run.BoardID), id)
	_, err = pipe.Exec(ctx)
	return err
}

// List returns the board's run IDs, newest first. Index entries whose
// run value has expired are pruned lazily.
func (s *RunStore) List(ctx context.Context, boardID string) ([]string, error) {
	ids, err := s.client.ZRevRange(ctx, s.indexKey(boardID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	if s.ttl == 0 {
		return ids, nil
	}

	live := make([]string, 0, len(ids))
	var stale []any
	for _, id := range ids {
		exists, err := s.client.Exists(ctx, s.key(id)).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to check run key: %w", err)
		}
		if exists > 0 {
			live = append(live, id)
		} else {
			stale = append(stale, id)
		}
	}
	if len(stale) > 0 {
		if err := s.client.ZRem(ctx, s.indexKey(boardID), stale...).Err(); err != nil {
			return nil, fmt.Errorf("failed to prune expired runs: %w", err)
		}
	}
	return live, nil
}

// Close closes the redis client.
func (s *RunStore) Close() error {
	return s.client.Close()
}
