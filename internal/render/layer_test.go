package render

import (
	"context"
	"errors"
	"image"
	"image/color"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mohammed-shakir/wmsgate/internal/core/capabilities"
	"github.com/mohammed-shakir/wmsgate/internal/core/executor"
	"github.com/mohammed-shakir/wmsgate/internal/core/model"
	"github.com/mohammed-shakir/wmsgate/internal/core/ogc"
)

var vp = model.Viewport{
	BBox: model.BBox{X1: 0, Y1: 0, X2: 10, Y2: 10, SRID: 3857},
	Size: model.Size{Width: 4, Height: 4},
}

func newTestLayer(t *testing.T, f Fetcher, mutate func(*LayerOptions)) *Layer {
	t.Helper()
	opts := DefaultLayerOptions()
	opts.SRID = 3857
	if mutate != nil {
		mutate(&opts)
	}
	l, err := NewLayerFromService("base", testService("image/svg+xml", "image/png", "image/jpeg"), f, opts)
	require.NoError(t, err)
	return l
}

func TestNewLayer_NegotiatesFormat(t *testing.T) {
	l := newTestLayer(t, &fakeFetcher{}, nil)
	require.Equal(t, "image/jpeg", l.Format())
	require.Equal(t, "1.1.1", l.Version())

	_, err := NewLayerFromService("x", testService("image/svg+xml", "application/pdf"), &fakeFetcher{}, DefaultLayerOptions())
	require.ErrorIs(t, err, ogc.ErrNoSupportedFormat)
}

func TestNewLayer_InvalidVersionFallsBack(t *testing.T) {
	svc := testService("image/png")
	svc.Version = "2.0.0"
	l, err := NewLayerFromService("x", svc, &fakeFetcher{}, DefaultLayerOptions())
	require.NoError(t, err)
	require.Equal(t, "1.1.1", l.Version())
}

func TestNewLayer_FromRegistry(t *testing.T) {
	svc := testService("image/png")
	reg := capabilities.NewRegistry(capabilities.StaticLoader{svc.URL: svc})
	l, err := NewLayer(context.Background(), "x", svc.URL, reg, &fakeFetcher{}, DefaultLayerOptions())
	require.NoError(t, err)
	require.Equal(t, "image/png", l.Format())

	_, err = NewLayer(context.Background(), "x", "http://missing", reg, &fakeFetcher{}, DefaultLayerOptions())
	require.Error(t, err)
}

func TestLayer_SelectionAndChildren(t *testing.T) {
	l := newTestLayer(t, &fakeFetcher{}, nil)
	require.NoError(t, l.AddLayer("highways"))
	require.ErrorIs(t, l.AddLayer("nope"), ogc.ErrUnknownLayer)

	require.NoError(t, l.AddChildLayers("roads", false))
	require.Equal(t, []string{"highways", "minor"}, l.Layers())

	l.RemoveAllLayers()
	require.NoError(t, l.AddChildLayers("roads", true))
	require.Equal(t, []string{"highways", "minor", "tracks"}, l.Layers())

	require.ErrorIs(t, l.AddChildLayers("nope", true), ogc.ErrUnknownLayer)

	require.NoError(t, l.AddStyle("thin"))
	require.ErrorIs(t, l.AddStyle("bold"), ogc.ErrUnknownStyle)
	require.True(t, l.RemoveStyle("thin"))
	require.Empty(t, l.Styles())
}

func TestLayer_SetImageFormat(t *testing.T) {
	l := newTestLayer(t, &fakeFetcher{}, nil)
	require.NoError(t, l.SetImageFormat("image/png"))
	require.Equal(t, "image/png", l.Format())
	require.ErrorIs(t, l.SetImageFormat("image/gif"), ErrUnsupportedFormat)
	require.ErrorIs(t, l.SetImageFormat("image/svg+xml"), ogc.ErrNoSupportedFormat)
	require.Equal(t, "image/png", l.Format())
}

func TestLayer_SetOpacity(t *testing.T) {
	l := newTestLayer(t, &fakeFetcher{}, nil)
	require.ErrorIs(t, l.SetOpacity(1.5), ErrInvalidOpacity)
	require.ErrorIs(t, l.SetOpacity(-0.1), ErrInvalidOpacity)
	require.NoError(t, l.SetOpacity(0.25))
	require.NotNil(t, l.attrs)
	l.SetColorMatrix(nil)
	require.Nil(t, l.attrs)
}

func TestLayer_RequestURL(t *testing.T) {
	l := newTestLayer(t, &fakeFetcher{}, nil)
	require.NoError(t, l.AddLayer("water"))
	require.NoError(t, l.SetImageFormat("image/png"))

	got, err := l.RequestURL(vp)
	require.NoError(t, err)
	require.Equal(t,
		"http://example.com/wms?REQUEST=GetMap&BBOX=0,0,10,10&WIDTH=4&HEIGHT=4&LAYERS=water&FORMAT=image/png&SRS=EPSG:3857&VERSION=1.1.1&STYLES=&TRANSPARENT=TRUE",
		got)

	l.ForceOnlineResourceURL("http://proxy.local/wms")
	got, err = l.RequestURL(vp)
	require.NoError(t, err)
	u, err := url.Parse(got)
	require.NoError(t, err)
	require.Equal(t, "proxy.local", u.Host)

	bad := vp
	bad.Size.Width = 0
	_, err = l.RequestURL(bad)
	require.ErrorIs(t, err, ogc.ErrInvalidSize)
}

func TestLayer_Envelope(t *testing.T) {
	l := newTestLayer(t, &fakeFetcher{}, nil)
	env, ok := l.Envelope()
	require.True(t, ok)
	require.Equal(t, -100.0, env.X1)
	require.Equal(t, 50.0, env.Y2)

	l4326 := newTestLayer(t, &fakeFetcher{}, func(o *LayerOptions) { o.SRID = 4326 })
	_, ok = l4326.Envelope()
	require.False(t, ok)
}

func TestLayer_RenderDraws(t *testing.T) {
	f := &fakeFetcher{bodies: map[string][]byte{"water": solidPNG(t, 4, 4, blue)}}
	l := newTestLayer(t, f, nil)
	require.NoError(t, l.AddLayer("water"))

	canvas := image.NewRGBA(image.Rect(0, 0, 4, 4))
	require.NoError(t, l.Render(context.Background(), canvas, vp))
	require.Equal(t, blue, rgbaAt(canvas, 2, 2))

	require.Len(t, f.seen, 1)
	require.Equal(t, "http://example.com/caps", f.seen[0].Service)
}

func TestLayer_ContinueOnError(t *testing.T) {
	boom := errors.New("boom")
	f := &fakeFetcher{errs: map[string]error{"water": boom}}

	lenient := newTestLayer(t, f, nil)
	require.NoError(t, lenient.AddLayer("water"))
	canvas := image.NewRGBA(image.Rect(0, 0, 4, 4))
	require.NoError(t, lenient.Render(context.Background(), canvas, vp))
	require.Equal(t, color.RGBA{}, rgbaAt(canvas, 0, 0))

	strict := newTestLayer(t, f, func(o *LayerOptions) { o.ContinueOnError = false })
	require.NoError(t, strict.AddLayer("water"))
	err := strict.Render(context.Background(), canvas, vp)
	var re *RenderError
	require.ErrorAs(t, err, &re)
	require.Equal(t, "base", re.Layer)
	require.ErrorIs(t, err, boom)
}

func TestLayer_RenderUndecodableBody(t *testing.T) {
	f := &fakeFetcher{bodies: map[string][]byte{"water": []byte("not an image")}}
	l := newTestLayer(t, f, func(o *LayerOptions) { o.ContinueOnError = false })
	require.NoError(t, l.AddLayer("water"))
	err := l.Render(context.Background(), image.NewRGBA(image.Rect(0, 0, 4, 4)), vp)
	var re *RenderError
	require.ErrorAs(t, err, &re)
}

func TestLayer_RenderThroughExecutor(t *testing.T) {
	png := solidPNG(t, 4, 4, red)
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Query().Get("LAYERS") != "water" || r.URL.Query().Get("REQUEST") != "GetMap" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(png)
	}))
	t.Cleanup(srv.Close)

	svc := testService("image/png")
	svc.GetMap.Methods = []capabilities.TransportMethod{{Kind: capabilities.MethodGet, Endpoint: srv.URL + "/wms"}}

	opts := DefaultLayerOptions()
	opts.SRID = 3857
	opts.ContinueOnError = false
	l, err := NewLayerFromService("live", svc, executor.New(nil, srv.Client(), executor.DefaultOptions()), opts)
	require.NoError(t, err)
	require.NoError(t, l.AddLayer("water"))

	canvas := image.NewRGBA(image.Rect(0, 0, 4, 4))
	require.NoError(t, l.Render(context.Background(), canvas, vp))
	require.Equal(t, red, rgbaAt(canvas, 3, 3))
	require.Equal(t, int32(1), hits.Load())
}
