package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey holds the state map when no key is configured.
const DefaultRedisKey = "qrydex:bot_state"

// RedisStore keeps the state map as one JSON string value, shared by every
// process pointed at the same key.
type RedisStore struct {
	client *redis.Client
	key    string
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore creates a store on client. An empty key uses DefaultRedisKey.
func NewRedisStore(client *redis.Client, key string) *RedisStore {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStore{client: client, key: key}
}

// Load implements Store.
func (s *RedisStore) Load(ctx context.Context) (Map, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Map{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bot state: %w", err)
	}

	m := Map{}
	if unmarshalErr := json.Unmarshal(data, &m); unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal bot state: %w", unmarshalErr)
	}
	return m, nil
}

// Save implements Store. The value never expires.
func (s *RedisStore) Save(ctx context.Context, m Map) error {
	if m == nil {
		m = Map{}
	}
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal bot state: %w", err)
	}
	if setErr := s.client.Set(ctx, s.key, data, 0).Err(); setErr != nil {
		return fmt.Errorf("failed to save bot state: %w", setErr)
	}
	return nil
}
