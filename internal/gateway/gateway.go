// Package gateway renders /map requests against the services of the catalog.
package gateway

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"log/slog"

	"github.com/mohammed-shakir/wmsgate/internal/core/capabilities"
	"github.com/mohammed-shakir/wmsgate/internal/core/config"
	"github.com/mohammed-shakir/wmsgate/internal/core/model"
	"github.com/mohammed-shakir/wmsgate/internal/core/router"
	"github.com/mohammed-shakir/wmsgate/internal/render"
)

// FetcherFunc returns the fetcher used for one catalog service, so that
// credentials can differ per service.
type FetcherFunc func(svc config.ServiceEntry) render.Fetcher

type Gateway struct {
	catalog    *config.Catalog
	registry   *capabilities.Registry
	fetchers   map[string]render.Fetcher
	defaults   render.LayerOptions
	background color.Color
	parallel   int
	logger     *slog.Logger
}

func New(cat *config.Catalog, reg *capabilities.Registry, fetcherFor FetcherFunc, logger *slog.Logger) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}
	bg, err := config.ParseColor(cat.Render.Background)
	if err != nil {
		return nil, fmt.Errorf("render background: %w", err)
	}
	opts := render.DefaultLayerOptions()
	opts.SRID = cat.Render.SRID
	opts.Transparent = cat.Render.Transparent
	opts.BgColor = bg
	opts.ContinueOnError = cat.Render.ContinueOnError
	opts.Fit = cat.Render.Fit
	opts.Logger = logger

	g := &Gateway{
		catalog:  cat,
		registry: reg,
		fetchers: make(map[string]render.Fetcher, len(cat.Services)),
		defaults: opts,
		parallel: cat.Render.Parallelism,
		logger:   logger,
	}
	if !cat.Render.Transparent {
		g.background = bg
	}
	for _, s := range cat.Services {
		g.fetchers[s.Name] = fetcherFor(s)
	}
	return g, nil
}

// Layer builds the render layer for one group of a request.
func (g *Gateway) Layer(ctx context.Context, grp router.ServiceLayers, srid int) (*render.Layer, error) {
	svc, ok := g.catalog.Service(grp.Service)
	if !ok {
		return nil, fmt.Errorf("%w: %q", router.ErrUnknownService, grp.Service)
	}
	opts := g.defaults
	opts.SRID = srid
	opts.Version = svc.Version

	l, err := render.NewLayer(ctx, svc.Name, svc.URL, g.registry, g.fetchers[svc.Name], opts)
	if err != nil {
		return nil, err
	}
	if svc.ForceURL != "" {
		l.ForceOnlineResourceURL(svc.ForceURL)
	}
	for _, name := range grp.Layers {
		if err := l.AddLayer(name); err != nil {
			return nil, err
		}
	}
	for _, name := range grp.Styles {
		if err := l.AddStyle(name); err != nil {
			return nil, err
		}
	}
	return l, nil
}

func (g *Gateway) RenderMap(ctx context.Context, req router.MapRequest) (image.Image, error) {
	m := &render.Map{Background: g.background, Parallelism: g.parallel}
	if m.Background == nil && req.Format == "image/jpeg" {
		// JPEG has no alpha channel.
		m.Background = g.defaults.BgColor
	}
	for _, grp := range req.Groups {
		l, err := g.Layer(ctx, grp, req.SRID)
		if err != nil {
			return nil, err
		}
		m.Layers = append(m.Layers, l)
	}
	return m.Render(ctx, model.Viewport{
		BBox: req.BBox,
		Size: model.Size{Width: req.Width, Height: req.Height},
	})
}
