package redisstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mohammed-shakir/wmsgate/internal/cache/keys"
)

func TestExpiredImagesAreMissesAndNotEvicted(t *testing.T) {
	rc, mr := newMini(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	t.Cleanup(cancel)

	svc := "http://wms.example.com/wms"
	short := keys.Image(svc, svc+"?LAYERS=roads")
	long := keys.Image(svc, svc+"?LAYERS=water")
	if err := rc.Set(ctx, short, []byte("png"), 2*time.Second); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := rc.Set(ctx, long, []byte("png"), time.Hour); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if ttl := mr.TTL(short); ttl != 2*time.Second {
		t.Fatalf("ttl=%v want 2s", ttl)
	}

	mr.FastForward(3 * time.Second)

	if _, err := rc.Get(ctx, short); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expired image still served, err=%v", err)
	}
	n, err := rc.DelPrefix(ctx, keys.ServicePrefix(svc))
	if err != nil {
		t.Fatalf("DelPrefix: %v", err)
	}
	if n != 1 {
		t.Fatalf("evicted %d images, want only the live one", n)
	}
}
