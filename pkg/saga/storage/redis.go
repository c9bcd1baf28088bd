// Copyright © 2025 jackelyj <dreamerlyj@gmail.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.
//

package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/innovationmech/ticketing/pkg/saga"
)

// eventsKeyPattern is the pattern for a saga's event list: {prefix}saga:{sagaID}:events
const eventsKeyPattern = "%ssaga:%s:events"

// RedisClient is the subset of go-redis used by RedisEventStore.
type RedisClient interface {
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	LRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

// RedisConfig configures RedisEventStore.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// KeyPrefix is prepended to every key, e.g. "ticketing:".
	KeyPrefix string
	// TTL is refreshed on every append. Zero keeps streams forever.
	TTL time.Duration
	// DialTimeout bounds the connectivity check in NewRedisEventStore.
	DialTimeout time.Duration
}

// RedisEventStore keeps one JSON list per saga.
type RedisEventStore struct {
	client RedisClient
	prefix string
	ttl    time.Duration
}

// NewRedisEventStore connects to Redis and verifies connectivity with a ping.
func NewRedisEventStore(ctx context.Context, config *RedisConfig) (*RedisEventStore, error) {
	if config == nil || config.Addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	timeout := config.DialTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return NewRedisEventStoreWithClient(client, config.KeyPrefix, config.TTL), nil
}

// NewRedisEventStoreWithClient wraps an existing client.
func NewRedisEventStoreWithClient(client RedisClient, keyPrefix string, ttl time.Duration) *RedisEventStore {
	return &RedisEventStore{client: client, prefix: keyPrefix, ttl: ttl}
}

func (s *RedisEventStore) key(sagaID string) string {
	return fmt.Sprintf(eventsKeyPattern, s.prefix, sagaID)
}

// Append pushes event to the tail of its saga's list.
func (s *RedisEventStore) Append(ctx context.Context, event saga.SagaEvent) error {
	if event.SagaID == "" {
		return saga.NewValidationError("event has no saga id")
	}
	data, err := json.Marshal(event)
	if err != nil {
		return saga.NewStorageError("encode", err)
	}

	key := s.key(event.SagaID)
	if err := s.client.RPush(ctx, key, data).Err(); err != nil {
		return saga.NewStorageError("append", err)
	}
	if s.ttl > 0 {
		if err := s.client.Expire(ctx, key, s.ttl).Err(); err != nil {
			return saga.NewStorageError("expire", err)
		}
	}
	return nil
}

// Events reads the whole list of sagaID.
func (s *RedisEventStore) Events(ctx context.Context, sagaID string) ([]saga.SagaEvent, error) {
	raw, err := s.client.LRange(ctx, s.key(sagaID), 0, -1).Result()
	if err != nil {
		return nil, saga.NewStorageError("read", err)
	}
	if len(raw) == 0 {
		return nil, saga.NewSagaNotFoundError(sagaID)
	}

	events := make([]saga.SagaEvent, 0, len(raw))
	for i, item := range raw {
		var e saga.SagaEvent
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			return nil, saga.NewStorageError(fmt.Sprintf("decode event %d", i), err)
		}
		events = append(events, e)
	}
	return events, nil
}

// Summary derives the saga's execution summary.
func (s *RedisEventStore) Summary(ctx context.Context, sagaID string) (*saga.ExecutionSummary, error) {
	events, err := s.Events(ctx, sagaID)
	if err != nil {
		return nil, err
	}
	return saga.Summarize(sagaID, events), nil
}

// Close closes the underlying client.
func (s *RedisEventStore) Close() error {
	return s.client.Close()
}

// Ping checks that the server is reachable.
func (s *RedisEventStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
