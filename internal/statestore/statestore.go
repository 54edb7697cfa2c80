// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Lumenarc

// Package statestore persists the last commanded state per apartment, so the
// dashboard collaborator can restore the installation after a restart.
package statestore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-redis/redis/v8"

	"github.com/lumenarc/maquette/internal/inventory"
)

// ErrNoState is returned when an apartment has no persisted state.
var ErrNoState = errors.New("statestore: no state recorded")

// Store records the last commanded state per apartment.
type Store interface {
	Set(ctx context.Context, apartmentID string, st inventory.State) error
	Get(ctx context.Context, apartmentID string) (inventory.State, error)
	All(ctx context.Context) (map[string]inventory.State, error)
}

// hashKey is the redis hash holding apartment states.
const hashKey = "maquette:apartment_state"

// RedisStore keeps apartment states in a redis hash.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps a connected client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Dial connects to redis and verifies the connection.
func Dial(ctx context.Context, addr, password string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Set(ctx context.Context, apartmentID string, st inventory.State) error {
	return s.client.HSet(ctx, hashKey, apartmentID, string(st)).Err()
}

func (s *RedisStore) Get(ctx context.Context, apartmentID string) (inventory.State, error) {
	v, err := s.client.HGet(ctx, hashKey, apartmentID).Result()
	if err == redis.Nil {
		return "", fmt.Errorf("%w: %s", ErrNoState, apartmentID)
	}
	if err != nil {
		return "", err
	}
	return inventory.State(v), nil
}

func (s *RedisStore) All(ctx context.Context) (map[string]inventory.State, error) {
	vals, err := s.client.HGetAll(ctx, hashKey).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string]inventory.State, len(vals))
	for id, v := range vals {
		out[id] = inventory.State(v)
	}
	return out, nil
}

// Close releases the redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// MemoryStore is the fallback when no redis is configured.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[string]inventory.State
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]inventory.State)}
}

func (s *MemoryStore) Set(_ context.Context, apartmentID string, st inventory.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[apartmentID] = st
	return nil
}

func (s *MemoryStore) Get(_ context.Context, apartmentID string) (inventory.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.states[apartmentID]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNoState, apartmentID)
	}
	return st, nil
}

func (s *MemoryStore) All(_ context.Context) (map[string]inventory.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]inventory.State, len(s.states))
	for id, st := range s.states {
		out[id] = st
	}
	return out, nil
}
