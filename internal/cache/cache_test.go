package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemory(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(10, time.Minute)

	if _, err := m.Get(ctx, "a"); !errors.Is(err, ErrMiss) {
		t.Fatalf("want ErrMiss, got %v", err)
	}
	_ = m.Set(ctx, "svc1:a", []byte("1"), 0)
	_ = m.Set(ctx, "svc1:b", []byte("2"), 0)
	_ = m.Set(ctx, "svc2:a", []byte("3"), 0)

	if v, err := m.Get(ctx, "svc1:a"); err != nil || string(v) != "1" {
		t.Fatalf("get %q %v", v, err)
	}
	n, err := m.DelPrefix(ctx, "svc1:")
	if err != nil || n != 2 {
		t.Fatalf("DelPrefix n=%d err=%v", n, err)
	}
	if _, err := m.Get(ctx, "svc2:a"); err != nil {
		t.Fatalf("svc2 evicted: %v", err)
	}
}

func TestMemory_Expiry(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(10, 20*time.Millisecond)
	_ = m.Set(ctx, "k", []byte("v"), 0)
	time.Sleep(60 * time.Millisecond)
	if _, err := m.Get(ctx, "k"); !errors.Is(err, ErrMiss) {
		t.Fatalf("want expiry, got %v", err)
	}
}
