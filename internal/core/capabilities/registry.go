package capabilities

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/mohammed-shakir/wmsgate/internal/core/observability"
)

const (
	DefaultRegistryTTL  = 24 * time.Hour
	DefaultRegistrySize = 256
)

type RegistryOption func(*registryOptions)

type registryOptions struct {
	ttl    time.Duration
	size   int
	logger *slog.Logger
}

func WithTTL(d time.Duration) RegistryOption {
	return func(o *registryOptions) { o.ttl = d }
}

func WithSize(n int) RegistryOption {
	return func(o *registryOptions) { o.size = n }
}

func WithLogger(l *slog.Logger) RegistryOption {
	return func(o *registryOptions) { o.logger = l }
}

// Registry shares one Service per service URL. The first successful load for
// a URL wins; concurrent callers for the same URL wait on that single load
// instead of issuing their own request.
type Registry struct {
	loader Loader
	cache  *expirable.LRU[string, *Service]
	group  singleflight.Group
	log    *slog.Logger

	// gen is bumped by Invalidate; a load only caches if it is unchanged
	mu  sync.Mutex
	gen map[string]uint64
}

func NewRegistry(loader Loader, opts ...RegistryOption) *Registry {
	o := registryOptions{ttl: DefaultRegistryTTL, size: DefaultRegistrySize}
	for _, f := range opts {
		f(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return &Registry{
		loader: loader,
		cache:  expirable.NewLRU[string, *Service](o.size, nil, o.ttl),
		log:    o.logger,
		gen:    map[string]uint64{},
	}
}

// Get returns the cached service for serviceURL or loads it.
func (r *Registry) Get(ctx context.Context, serviceURL string) (*Service, error) {
	if serviceURL == "" {
		return nil, errors.New("service url is required")
	}
	if svc, ok := r.cache.Get(serviceURL); ok {
		observability.IncRegistry("hit")
		r.log.Debug("capabilities from registry", "service", serviceURL)
		return svc, nil
	}

	v, err, shared := r.group.Do(serviceURL, func() (any, error) {
		if svc, ok := r.cache.Get(serviceURL); ok {
			return svc, nil
		}
		r.mu.Lock()
		gen := r.gen[serviceURL]
		r.mu.Unlock()
		// the load outlives the first caller so waiters are not failed by its cancellation
		svc, err := r.loader.Load(context.WithoutCancel(ctx), serviceURL)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.gen[serviceURL] != gen {
			r.log.Debug("capabilities invalidated during load", "service", serviceURL)
			return svc, nil
		}
		r.cache.Add(serviceURL, svc)
		r.log.Debug("capabilities loaded", "service", serviceURL, "layers", svc.Layers.Len())
		return svc, nil
	})
	if err != nil {
		observability.IncRegistry("error")
		return nil, fmt.Errorf("load capabilities %q: %w", serviceURL, err)
	}
	if shared {
		observability.IncRegistry("shared")
	} else {
		observability.IncRegistry("miss")
	}
	svc, _ := v.(*Service)
	return svc, nil
}

// Invalidate drops the cached service so the next Get reloads it. A load
// already in flight still answers its waiters but is not cached.
func (r *Registry) Invalidate(serviceURL string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gen[serviceURL]++
	r.group.Forget(serviceURL)
	return r.cache.Remove(serviceURL)
}

func (r *Registry) Len() int { return r.cache.Len() }
