// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package store is the single collaborator through which every SensorHub
// component talks to the backing key-value store. It wraps a Redis client
// with the handful of atomic primitives the domain packages build on:
// set-if-absent with TTL, Lua script evaluation, sorted-set and set
// operations, and pipelining. Domain packages hold a *Store rather than
// their own *redis.Client, per the spec's external-interfaces boundary;
// telemetry still reaches the client through Client and Pipeline for its
// counter read and batched writes.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Store wraps a Redis client with typed JSON helpers and the atomic
// primitives domain packages require.
type Store struct {
	client *redis.Client
	logger zerolog.Logger
}

// Config holds connection parameters for the backing store.
type Config struct {
	Addr        string
	Password    string
	DB          int
	DialTimeout time.Duration
}

// New connects to the backing store and verifies reachability with a ping.
func New(ctx context.Context, cfg Config, logger zerolog.Logger) (*Store, error) {
	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 5 * time.Second
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  dialTimeout,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     20,
		MinIdleConns: 5,
	})

	pingCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("store: connect to %s: %w", cfg.Addr, err)
	}

	logger.Info().Str("addr", cfg.Addr).Int("db", cfg.DB).Msg("connected to backing store")

	return &Store{client: client, logger: logger}, nil
}

// NewWithClient wraps an existing *redis.Client, used by tests to point the
// Store at an in-process miniredis instance.
func NewWithClient(client *redis.Client, logger zerolog.Logger) *Store {
	return &Store{client: client, logger: logger}
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.client.Close()
}

// HealthCheck reports whether the backing store is reachable.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Client exposes the raw Redis client for callers that need a command the
// typed helpers below do not wrap (telemetry's integer counter read).
func (s *Store) Client() *redis.Client {
	return s.client
}

// SetJSON marshals v and stores it at key with the given TTL (zero means no
// expiry).
func (s *Store) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("store: marshal %s: %w", key, err)
	}
	if err := s.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("store: set %s: %w", key, err)
	}
	return nil
}

// GetJSON loads the value at key into v. It returns redis.Nil (unwrapped
// via errors.Is) when the key does not exist.
func (s *Store) GetJSON(ctx context.Context, key string, v any) error {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("store: unmarshal %s: %w", key, err)
	}
	return nil
}

// SetString stores a plain string value with optional TTL.
func (s *Store) SetString(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

// GetString loads a plain string value.
func (s *Store) GetString(ctx context.Context, key string) (string, error) {
	return s.client.Get(ctx, key).Result()
}

// SetNX atomically sets key to value only if it does not already exist,
// with the given TTL. It is the primitive behind both device registration
// and distributed locking.
func (s *Store) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, key, value, ttl).Result()
}

// SAdd adds members to a set.
func (s *Store) SAdd(ctx context.Context, key string, members ...any) error {
	return s.client.SAdd(ctx, key, members...).Err()
}

// SRem removes members from a set.
func (s *Store) SRem(ctx context.Context, key string, members ...any) error {
	return s.client.SRem(ctx, key, members...).Err()
}

// SMembers returns all members of a set.
func (s *Store) SMembers(ctx context.Context, key string) ([]string, error) {
	return s.client.SMembers(ctx, key).Result()
}

// SCard returns the cardinality of a set.
func (s *Store) SCard(ctx context.Context, key string) (int64, error) {
	return s.client.SCard(ctx, key).Result()
}

// ZAdd adds a single scored member to a sorted set.
func (s *Store) ZAdd(ctx context.Context, key string, score float64, member any) error {
	return s.client.ZAdd(ctx, key, redis.Z{Score: score, Member: member}).Err()
}

// ZRangeByScore returns members in [min, max], in ascending score order,
// truncated to limit when limit > 0.
func (s *Store) ZRangeByScore(ctx context.Context, key, min, max string, limit int64) ([]string, error) {
	opt := &redis.ZRangeBy{Min: min, Max: max}
	if limit > 0 {
		opt.Count = limit
	}
	return s.client.ZRangeByScore(ctx, key, opt).Result()
}

// ZRange returns members between the given rank indices.
func (s *Store) ZRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	return s.client.ZRange(ctx, key, start, stop).Result()
}

// ZRemRangeByScore removes members scored within [min, max].
func (s *Store) ZRemRangeByScore(ctx context.Context, key, min, max string) error {
	return s.client.ZRemRangeByScore(ctx, key, min, max).Err()
}

// ZCard returns the cardinality of a sorted set.
func (s *Store) ZCard(ctx context.Context, key string) (int64, error) {
	return s.client.ZCard(ctx, key).Result()
}

// Expire sets a TTL on an existing key.
func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return s.client.Expire(ctx, key, ttl).Err()
}

// Incr atomically increments an integer counter.
func (s *Store) Incr(ctx context.Context, key string) (int64, error) {
	return s.client.Incr(ctx, key).Result()
}

// IncrBy atomically increments an integer counter by delta.
func (s *Store) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	return s.client.IncrBy(ctx, key, delta).Result()
}

// Keys returns all keys matching pattern. Used sparingly (telemetry query
// without an explicit metric scans `telemetry:{device}:*`), mirroring the
// original implementation's own use of a keys scan for that one query shape.
func (s *Store) Keys(ctx context.Context, pattern string) ([]string, error) {
	return s.client.Keys(ctx, pattern).Result()
}

// Eval runs a Lua script against the store and returns its raw result.
func (s *Store) Eval(ctx context.Context, script string, keys []string, args ...any) (any, error) {
	return s.client.Eval(ctx, script, keys, args...).Result()
}

// Pipeline returns a new pipeliner for batched writes.
func (s *Store) Pipeline() redis.Pipeliner {
	return s.client.Pipeline()
}

// IsNotFound reports whether err represents a missing key.
func IsNotFound(err error) bool {
	return err == redis.Nil
}
