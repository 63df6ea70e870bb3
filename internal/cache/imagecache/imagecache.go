// Package imagecache stores rendered map images so identical GetMap
// requests are answered without a round trip to the map server.
package imagecache

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/mohammed-shakir/wmsgate/internal/cache"
	"github.com/mohammed-shakir/wmsgate/internal/cache/keys"
	"github.com/mohammed-shakir/wmsgate/internal/core/model"
	"github.com/mohammed-shakir/wmsgate/internal/core/observability"
	"github.com/mohammed-shakir/wmsgate/internal/core/ogc"
)

const DefaultTTL = 10 * time.Minute

// entries are stored as "<content type>\n<body>".
const sep = '\n'

type Cache struct {
	store  cache.Store
	ttl    time.Duration
	logger *slog.Logger
}

func New(store cache.Store, ttl time.Duration, logger *slog.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{store: store, ttl: ttl, logger: logger}
}

func serviceOf(req ogc.Request) string {
	if req.Service != "" {
		return req.Service
	}
	return req.Endpoint
}

func keyOf(req ogc.Request) string {
	// GET and POST with the same parameters render the same image
	return keys.Image(serviceOf(req), model.JoinQuery(req.Endpoint, req.Query()))
}

// Lookup returns a cached image. Store errors count as a miss.
func (c *Cache) Lookup(ctx context.Context, req ogc.Request) ([]byte, string, bool) {
	raw, err := c.store.Get(ctx, keyOf(req))
	switch {
	case errors.Is(err, cache.ErrMiss):
		observability.IncImageCache("miss")
		return nil, "", false
	case err != nil:
		observability.IncImageCache("error")
		c.logger.Warn("image cache lookup failed", "service", serviceOf(req), "err", err)
		return nil, "", false
	}
	i := bytes.IndexByte(raw, sep)
	if i < 0 {
		observability.IncImageCache("error")
		return nil, "", false
	}
	observability.IncImageCache("hit")
	return raw[i+1:], string(raw[:i]), true
}

func (c *Cache) Store(ctx context.Context, req ogc.Request, body []byte, contentType string) {
	raw := make([]byte, 0, len(contentType)+1+len(body))
	raw = append(raw, contentType...)
	raw = append(raw, sep)
	raw = append(raw, body...)
	if err := c.store.Set(ctx, keyOf(req), raw, c.ttl); err != nil {
		observability.IncImageCache("error")
		c.logger.Warn("image cache store failed", "service", serviceOf(req), "err", err)
	}
}

// DeleteService evicts every image cached for serviceURL.
func (c *Cache) DeleteService(ctx context.Context, serviceURL string) (int, error) {
	n, err := c.store.DelPrefix(ctx, keys.ServicePrefix(serviceURL))
	if err != nil {
		return n, err
	}
	c.logger.Debug("image cache evicted", "service", serviceURL, "entries", n)
	return n, nil
}
