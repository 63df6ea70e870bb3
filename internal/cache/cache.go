// Package cache defines the byte store behind the map image cache and an
// in-process implementation of it.
package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

var ErrMiss = errors.New("cache miss")

// Store is a TTL key/value store. Get returns ErrMiss for absent keys.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	DelPrefix(ctx context.Context, prefix string) (int, error)
}

// Memory keeps entries in a bounded LRU. All entries share the TTL given to
// NewMemory; the ttl argument of Set is ignored.
type Memory struct {
	lru *expirable.LRU[string, []byte]
}

func NewMemory(size int, ttl time.Duration) *Memory {
	if size <= 0 {
		size = 1024
	}
	return &Memory{lru: expirable.NewLRU[string, []byte](size, nil, ttl)}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	if v, ok := m.lru.Get(key); ok {
		return v, nil
	}
	return nil, ErrMiss
}

func (m *Memory) Set(_ context.Context, key string, val []byte, _ time.Duration) error {
	m.lru.Add(key, val)
	return nil
}

func (m *Memory) DelPrefix(_ context.Context, prefix string) (int, error) {
	n := 0
	for _, k := range m.lru.Keys() {
		if strings.HasPrefix(k, prefix) && m.lru.Remove(k) {
			n++
		}
	}
	return n, nil
}
