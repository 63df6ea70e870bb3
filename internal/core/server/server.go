// Package server mounts the gateway routes on chi and runs the HTTP server.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mohammed-shakir/wmsgate/internal/core/config"
	"github.com/mohammed-shakir/wmsgate/internal/core/health"
	middleware "github.com/mohammed-shakir/wmsgate/internal/core/middleware"
	"github.com/mohammed-shakir/wmsgate/internal/core/router"
	"github.com/mohammed-shakir/wmsgate/internal/metrics"
)

type Deps struct {
	Logger *slog.Logger
	// Metrics is optional.
	Metrics     *metrics.Provider
	FeatureInfo http.Handler
	Maps        router.MapRenderer
	DefaultSRID int
	Ready       map[string]health.Checker
}

func NewRouter(d Deps) chi.Router {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r := chi.NewRouter()
	r.Use(middleware.Recover(logger))
	r.Use(middleware.Logging(logger))
	r.Use(middleware.Metrics())
	r.Use(middleware.CORS())

	r.Get("/healthz", health.Liveness())
	r.Get("/readyz", health.Readiness(health.DefaultCheckTimeout, d.Ready))
	if d.Metrics != nil {
		d.Metrics.Mount(r)
	}
	if d.FeatureInfo != nil {
		r.Get("/wms", router.HandleWMS(d.FeatureInfo))
	}
	if d.Maps != nil {
		r.Get("/map", router.HandleMap(logger, d.DefaultSRID, d.Maps))
	}
	return r
}

// Run serves handler on cfg.Addr until ctx is done.
func Run(ctx context.Context, cfg config.Config, logger *slog.Logger, handler http.Handler) error {
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listen", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
