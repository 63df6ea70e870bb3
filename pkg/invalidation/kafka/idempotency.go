package kafka

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

type versionDedupe struct {
	mu  sync.Mutex
	lru *lru.Cache[string, uint64]
}

func newVersionDedupe(size int) *versionDedupe {
	if size <= 0 {
		size = 4096
	}
	c, _ := lru.New[string, uint64](size)
	return &versionDedupe{lru: c}
}

// newer reports whether v is newer than the last version applied for the
// service.
func (d *versionDedupe) newer(service string, v uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	last, ok := d.lru.Peek(service)
	return !ok || v > last
}

// record remembers v once it has been applied.
func (d *versionDedupe) record(service string, v uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if last, ok := d.lru.Get(service); ok && last >= v {
		return
	}
	d.lru.Add(service, v)
}
