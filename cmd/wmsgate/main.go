package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/mohammed-shakir/wmsgate/internal/core/config"
	"github.com/mohammed-shakir/wmsgate/internal/core/health"
	"github.com/mohammed-shakir/wmsgate/internal/core/server"
	"github.com/mohammed-shakir/wmsgate/internal/featureinfo"
	"github.com/mohammed-shakir/wmsgate/internal/gateway"
	"github.com/mohammed-shakir/wmsgate/internal/logger"
	"github.com/mohammed-shakir/wmsgate/internal/metrics"
	"github.com/mohammed-shakir/wmsgate/pkg/invalidation/kafka"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	cfg := config.FromEnv()

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   cfg.LogConsole,
		SampleN:   0,
		Component: "wmsgate",
	}, os.Stdout)
	appLog := logger.NewSlog(&zl)

	mp := metrics.Init(metrics.Config{
		Enabled: cfg.MetricsEnabled,
		Build: metrics.BuildInfo{
			Version:   Version,
			Revision:  os.Getenv("BUILD_REVISION"),
			Branch:    os.Getenv("BUILD_BRANCH"),
			BuildDate: os.Getenv("BUILD_DATE"),
		},
	})

	appLog.Info("starting wmsgate",
		"addr", cfg.Addr,
		"version", Version,
		"catalog", cfg.CatalogPath,
		"image_cache", cfg.ImageCache)

	cat, err := config.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		appLog.Error("load catalog", "err", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	proxy, err := parseProxy(cfg.FetchProxy)
	if err != nil {
		appLog.Error("fetch proxy", "err", err)
		return 1
	}

	reg, err := newRegistry(cfg, cat, proxy, appLog)
	if err != nil {
		appLog.Error("capabilities registry", "err", err)
		return 1
	}

	ready := map[string]health.Checker{}
	images, closeImages, err := newImageCache(ctx, cfg, appLog, ready)
	if err != nil {
		appLog.Error("image cache", "err", err)
		return 1
	}
	defer closeImages()

	gw, err := gateway.New(cat, reg, fetcherFor(cfg, proxy, images, appLog), appLog)
	if err != nil {
		appLog.Error("gateway setup failed", "err", err)
		return 1
	}

	fic, err := featureCatalog(cat, appLog)
	if err != nil {
		appLog.Error("feature layers", "err", err)
		return 1
	}

	opts := kafka.Options{Logger: appLog.With("component", "invalidation"), Register: mp.Registerer()}
	if images != nil {
		opts.Images = images
	}
	inv := kafka.New(kafka.FromConfig(cfg.Invalidation), reg, opts)
	if err := inv.Start(ctx); err != nil {
		appLog.Error("invalidation runner", "err", err)
		return 1
	}
	defer inv.Stop()
	if cfg.Invalidation.Enabled {
		ready["invalidation"] = health.Reporter(inv)
	}

	handler := server.NewRouter(server.Deps{
		Logger:      appLog,
		Metrics:     mp,
		FeatureInfo: featureinfo.NewHandler(fic, appLog),
		Maps:        gw,
		DefaultSRID: cat.Render.SRID,
		Ready:       ready,
	})

	if err := server.Run(ctx, cfg, appLog, handler); err != nil {
		appLog.Error("server exited with error", "err", err)
		return 1
	}
	appLog.Info("server stopped")
	return 0
}
