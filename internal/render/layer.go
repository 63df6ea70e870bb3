package render

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"image/draw"
	"log/slog"

	"github.com/mohammed-shakir/wmsgate/internal/core/capabilities"
	"github.com/mohammed-shakir/wmsgate/internal/core/crs"
	"github.com/mohammed-shakir/wmsgate/internal/core/executor"
	"github.com/mohammed-shakir/wmsgate/internal/core/model"
	"github.com/mohammed-shakir/wmsgate/internal/core/observability"
	"github.com/mohammed-shakir/wmsgate/internal/core/ogc"
	"github.com/mohammed-shakir/wmsgate/internal/logger"
)

var (
	ErrUnsupportedFormat = errors.New("format not offered by the service")
	ErrInvalidOpacity    = errors.New("opacity must be within 0 and 1")
)

// RenderError names the layer whose fetch or decode failed.
type RenderError struct {
	Layer string
	Err   error
}

func (e *RenderError) Error() string { return fmt.Sprintf("render layer %q: %v", e.Layer, e.Err) }
func (e *RenderError) Unwrap() error { return e.Err }

type Fetcher interface {
	FetchMap(ctx context.Context, req ogc.Request) (executor.Result, error)
}

type LayerOptions struct {
	// overrides the advertised version
	Version     string
	SRID        int
	Transparent bool
	BgColor     color.RGBA
	// ContinueOnError skips a failing layer instead of failing the map.
	ContinueOnError bool
	Fit             bool
	Logger          *slog.Logger
}

func DefaultLayerOptions() LayerOptions {
	return LayerOptions{
		SRID:            crs.WGS84,
		Transparent:     true,
		BgColor:         color.RGBA{R: 255, G: 255, B: 255, A: 255},
		ContinueOnError: true,
	}
}

// Layer is a map layer served by a remote WMS. Configure it before the first
// Render; configuration methods are not safe to call concurrently with it.
type Layer struct {
	name    string
	svc     *capabilities.Service
	fetcher Fetcher
	opts    LayerOptions
	version string
	format  string
	layers  *ogc.LayerSelection
	styles  *ogc.StyleSelection
	forced  string
	attrs   *ColorMatrix
	log     *slog.Logger
}

// NewLayer attaches to the service at serviceURL. It fails when no image
// format the service offers can be decoded.
func NewLayer(ctx context.Context, name, serviceURL string, reg *capabilities.Registry, fetcher Fetcher, opts LayerOptions) (*Layer, error) {
	svc, err := reg.Get(ctx, serviceURL)
	if err != nil {
		return nil, err
	}
	return NewLayerFromService(name, svc, fetcher, opts)
}

func NewLayerFromService(name string, svc *capabilities.Service, fetcher Fetcher, opts LayerOptions) (*Layer, error) {
	format, err := ogc.SelectFormat(svc.GetMap.Formats, supportedAmong(svc.GetMap.Formats))
	if err != nil {
		return nil, fmt.Errorf("layer %q: %w", name, err)
	}
	version := opts.Version
	if version == "" {
		version = svc.Version
	}
	if !crs.ValidVersion(version) {
		version = crs.Version111
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Layer{
		name:    name,
		svc:     svc,
		fetcher: fetcher,
		opts:    opts,
		version: version,
		format:  format,
		layers:  ogc.NewLayerSelection(svc.Layers),
		styles:  ogc.NewStyleSelection(svc.Layers),
		log:     log.With("layer", name, "service", svc.URL),
	}, nil
}

func (l *Layer) Name() string { return l.name }
func (l *Layer) Format() string { return l.format }
func (l *Layer) Version() string { return l.version }
func (l *Layer) Layers() []string { return l.layers.Names() }
func (l *Layer) Styles() []string { return l.styles.Names() }

func (l *Layer) AddLayer(name string) error { return l.layers.Add(name) }
func (l *Layer) RemoveLayer(name string) bool { return l.layers.Remove(name) }
func (l *Layer) RemoveLayerAt(i int) error { return l.layers.RemoveAt(i) }
func (l *Layer) RemoveAllLayers() { l.layers.Clear() }
func (l *Layer) AddStyle(name string) error { return l.styles.Add(name) }
func (l *Layer) RemoveStyle(name string) bool { return l.styles.Remove(name) }
func (l *Layer) RemoveStyleAt(i int) error { return l.styles.RemoveAt(i) }
func (l *Layer) RemoveAllStyles() { l.styles.Clear() }

// AddChildLayers selects the named children of parent, or all of its named
// descendants when recursive is set. Layers already selected are kept once.
func (l *Layer) AddChildLayers(parent string, recursive bool) error {
	if _, ok := l.svc.Layers.FindLayer(parent); !ok {
		return fmt.Errorf("%w: %q", ogc.ErrUnknownLayer, parent)
	}
	var kids []capabilities.Layer
	if recursive {
		kids = l.svc.Layers.Subtree(parent)[1:]
	} else {
		kids = l.svc.Layers.Children(parent)
	}
	for _, k := range kids {
		if k.Name == "" {
			continue
		}
		if err := l.layers.Add(k.Name); err != nil && !errors.Is(err, ogc.ErrDuplicateLayer) {
			return err
		}
	}
	return nil
}

// SetImageFormat picks the output format. The service must offer it and it
// must be decodable here.
func (l *Layer) SetImageFormat(mimeType string) error {
	if !l.svc.GetMap.HasFormat(mimeType) {
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, mimeType)
	}
	if !Supported(mimeType) {
		return fmt.Errorf("%w: %q", ogc.ErrNoSupportedFormat, mimeType)
	}
	l.format = mimeType
	return nil
}

// ForceOnlineResourceURL sends requests to endpoint instead of the one the
// capabilities advertise. Useful behind proxies that rewrite hosts.
func (l *Layer) ForceOnlineResourceURL(endpoint string) { l.forced = endpoint }

func (l *Layer) SetOpacity(o float32) error {
	if o < 0 || o > 1 {
		return fmt.Errorf("%w: %v", ErrInvalidOpacity, o)
	}
	m := Opacity(o)
	l.attrs = &m
	return nil
}

// nil removes it
func (l *Layer) SetColorMatrix(m *ColorMatrix) { l.attrs = m }

// Envelope is the extent of the service in the layer's spatial reference.
func (l *Layer) Envelope() (model.BBox, bool) {
	return l.svc.Layers.Envelope(l.opts.SRID)
}

func (l *Layer) request(vp model.Viewport) (ogc.Request, error) {
	method, err := ogc.SelectMethod(l.svc.GetMap.Methods)
	if err != nil {
		return ogc.Request{}, err
	}
	if l.forced != "" {
		method.Endpoint = l.forced
	}
	req, err := ogc.BuildGetMap(ogc.GetMapParams{
		BBox:        vp.BBox,
		Width:       vp.Size.Width,
		Height:      vp.Size.Height,
		SRID:        l.opts.SRID,
		Version:     l.version,
		Format:      l.format,
		Transparent: l.opts.Transparent,
		BgColor:     l.opts.BgColor,
	}, l.layers, l.styles, method)
	if err != nil {
		return ogc.Request{}, err
	}
	req.Service = l.svc.URL
	return req, nil
}

func (l *Layer) RequestURL(vp model.Viewport) (string, error) {
	req, err := l.request(vp)
	if err != nil {
		return "", err
	}
	return req.URL(), nil
}

func (l *Layer) fetch(ctx context.Context, vp model.Viewport) ([]byte, error) {
	req, err := l.request(vp)
	if err != nil {
		return nil, err
	}
	ctx = logger.WithLayer(logger.WithService(ctx, l.svc.URL), l.name)
	res, err := l.fetcher.FetchMap(ctx, req)
	if err != nil {
		return nil, err
	}
	return res.Body, nil
}

func (l *Layer) compositor() Compositor {
	return Compositor{Attributes: l.attrs, Fit: l.opts.Fit}
}

// log and drop under ContinueOnError, else wrap with the layer name
func (l *Layer) fail(ctx context.Context, err error) error {
	if l.opts.ContinueOnError {
		observability.IncRenderLayer("skipped")
		l.log.WarnContext(ctx, "layer skipped", "err", err)
		return nil
	}
	observability.IncRenderLayer("failed")
	return &RenderError{Layer: l.name, Err: err}
}

// Render fetches the layer for vp and draws it on canvas.
func (l *Layer) Render(ctx context.Context, canvas draw.Image, vp model.Viewport) error {
	body, err := l.fetch(ctx, vp)
	if err != nil {
		return l.fail(ctx, err)
	}
	if err := l.compositor().Draw(canvas, body); err != nil {
		return l.fail(ctx, err)
	}
	observability.IncRenderLayer("ok")
	return nil
}
