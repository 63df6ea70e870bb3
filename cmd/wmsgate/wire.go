package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/mohammed-shakir/wmsgate/internal/cache"
	"github.com/mohammed-shakir/wmsgate/internal/cache/imagecache"
	"github.com/mohammed-shakir/wmsgate/internal/cache/redisstore"
	"github.com/mohammed-shakir/wmsgate/internal/core/capabilities"
	"github.com/mohammed-shakir/wmsgate/internal/core/config"
	"github.com/mohammed-shakir/wmsgate/internal/core/executor"
	"github.com/mohammed-shakir/wmsgate/internal/core/health"
	"github.com/mohammed-shakir/wmsgate/internal/core/httpclient"
	"github.com/mohammed-shakir/wmsgate/internal/featureinfo"
	"github.com/mohammed-shakir/wmsgate/internal/featureinfo/memsource"
	"github.com/mohammed-shakir/wmsgate/internal/gateway"
	"github.com/mohammed-shakir/wmsgate/internal/render"
)

// newRegistry serves inline capabilities from the catalog and fetches the
// rest over HTTP.
func newRegistry(cfg config.Config, cat *config.Catalog, proxy *url.URL, logger *slog.Logger) (*capabilities.Registry, error) {
	static, err := cat.StaticCapabilities()
	if err != nil {
		return nil, err
	}
	loader := capabilities.Chain{
		static,
		capabilities.HTTPLoader{
			Client:    httpclient.NewOutbound(httpclient.WithProxy(proxy)),
			Version:   cfg.CapabilitiesVersion,
			UserAgent: cfg.FetchUserAgent,
		},
	}
	return capabilities.NewRegistry(loader,
		capabilities.WithTTL(cfg.CapabilitiesTTL),
		capabilities.WithSize(cfg.CapabilitiesSize),
		capabilities.WithLogger(logger.With("component", "capabilities")),
	), nil
}

func parseProxy(raw string) (*url.URL, error) {
	if raw == "" {
		return nil, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("fetch proxy: %w", err)
	}
	return u, nil
}

// newImageCache returns nil when caching is off. A redis backed cache adds a
// readiness check.
func newImageCache(ctx context.Context, cfg config.Config, logger *slog.Logger, ready map[string]health.Checker) (*imagecache.Cache, func(), error) {
	log := logger.With("component", "imagecache")
	switch cfg.ImageCache {
	case "none", "":
		return nil, func() {}, nil
	case "memory":
		store := cache.NewMemory(cfg.ImageCacheSize, cfg.ImageCacheTTL)
		return imagecache.New(store, cfg.ImageCacheTTL, log), func() {}, nil
	case "redis":
		rc, err := redisstore.New(ctx, cfg.RedisAddr,
			redisstore.WithPoolSize(cfg.RedisPoolSize),
			redisstore.WithDialTimeout(cfg.RedisDialTimeout),
			redisstore.WithReadTimeout(cfg.CacheOpTimeout),
			redisstore.WithWriteTimeout(cfg.CacheOpTimeout),
		)
		if err != nil {
			return nil, nil, err
		}
		ready["redis"] = health.CheckFunc(rc.Ping)
		closer := func() {
			if err := rc.Close(); err != nil {
				log.Warn("redis close", "err", err)
			}
		}
		return imagecache.New(rc, cfg.ImageCacheTTL, log), closer, nil
	default:
		return nil, nil, fmt.Errorf("unknown image cache %q", cfg.ImageCache)
	}
}

// fetcherFor builds one executor per catalog service so credentials stay
// scoped to their service.
func fetcherFor(cfg config.Config, proxy *url.URL, images *imagecache.Cache, logger *slog.Logger) gateway.FetcherFunc {
	return func(svc config.ServiceEntry) render.Fetcher {
		opts := executor.DefaultOptions()
		opts.Timeout = cfg.FetchTimeout
		opts.UserAgent = cfg.FetchUserAgent
		opts.TolerateTruncation = cfg.TolerateTruncation
		opts.Proxy = proxy
		if svc.Username != "" {
			opts.Credentials = &executor.Credentials{Username: svc.Username, Password: svc.Password}
		}
		var extra []executor.Option
		if images != nil {
			extra = append(extra, executor.WithCache(images))
		}
		return executor.New(logger.With("component", "executor", "service", svc.Name), nil, opts, extra...)
	}
}

// featureCatalog loads the GeoJSON source of every catalog layer into an
// indexed in-memory source.
func featureCatalog(cat *config.Catalog, logger *slog.Logger) (*featureinfo.Catalog, error) {
	layers := make([]featureinfo.Layer, 0, len(cat.Layers))
	for _, e := range cat.Layers {
		l := featureinfo.Layer{
			Name:         e.Name,
			Enabled:      e.IsEnabled(),
			QueryEnabled: e.IsQueryable(),
			TargetSRID:   e.TargetSRID,
		}
		switch e.Reproject {
		case config.ReprojectToMerc:
			l.Reproject = featureinfo.WGS84ToWebMercator
		case config.ReprojectToWGS84:
			l.Reproject = featureinfo.WebMercatorToWGS84
		}
		if e.Source != "" {
			src, err := memsource.LoadFile(e.Source, e.Resolution)
			if err != nil {
				return nil, fmt.Errorf("layer %q: %w", e.Name, err)
			}
			l.Query = src
			logger.Info("feature layer loaded", "layer", e.Name, "features", src.Len(), "resolution", e.Resolution)
		}
		layers = append(layers, l)
	}
	return featureinfo.NewCatalog(layers...), nil
}
