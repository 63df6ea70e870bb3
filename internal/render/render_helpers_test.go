package render

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/mohammed-shakir/wmsgate/internal/core/capabilities"
	"github.com/mohammed-shakir/wmsgate/internal/core/executor"
	"github.com/mohammed-shakir/wmsgate/internal/core/model"
	"github.com/mohammed-shakir/wmsgate/internal/core/ogc"
)

func solidPNG(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func testService(formats ...string) *capabilities.Service {
	b := capabilities.NewBuilder()
	root := b.Root(capabilities.Layer{
		Name: "root",
		BoundingBoxes: []capabilities.SRSBox{{
			SRID: 3857,
			Box:  model.BBox{X1: -100, Y1: -50, X2: 100, Y2: 50, SRID: 3857},
		}},
	})
	roads := b.Add(root, capabilities.Layer{Name: "roads", Styles: []string{"thin"}})
	b.Add(roads, capabilities.Layer{Name: "highways"})
	b.Add(roads, capabilities.Layer{Title: "unnamed group"})
	minor := b.Add(roads, capabilities.Layer{Name: "minor"})
	b.Add(minor, capabilities.Layer{Name: "tracks"})
	b.Add(root, capabilities.Layer{Name: "water"})
	return &capabilities.Service{
		URL:     "http://example.com/caps",
		Version: "1.1.1",
		GetMap: capabilities.Operation{
			Formats: formats,
			Methods: []capabilities.TransportMethod{
				{Kind: capabilities.MethodPost, Endpoint: "http://example.com/post"},
				{Kind: capabilities.MethodGet, Endpoint: "http://example.com/wms?"},
			},
		},
		Layers: b.Build(),
	}
}

// fakeFetcher answers by the LAYERS parameter of the request.
type fakeFetcher struct {
	mu     sync.Mutex
	bodies map[string][]byte
	errs   map[string]error
	delay  map[string]time.Duration
	seen   []ogc.Request
}

func (f *fakeFetcher) FetchMap(ctx context.Context, req ogc.Request) (executor.Result, error) {
	layers, _ := req.Get("LAYERS")
	f.mu.Lock()
	f.seen = append(f.seen, req)
	body, err, d := f.bodies[layers], f.errs[layers], f.delay[layers]
	f.mu.Unlock()
	if d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return executor.Result{}, ctx.Err()
		}
	}
	if err != nil {
		return executor.Result{}, err
	}
	return executor.Result{Body: body, ContentType: "image/png", State: executor.StateComplete}, nil
}

func rgbaAt(img image.Image, x, y int) color.RGBA {
	return color.RGBAModel.Convert(img.At(x, y)).(color.RGBA)
}
