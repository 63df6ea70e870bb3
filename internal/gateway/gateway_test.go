package gateway

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mohammed-shakir/wmsgate/internal/core/capabilities"
	"github.com/mohammed-shakir/wmsgate/internal/core/config"
	"github.com/mohammed-shakir/wmsgate/internal/core/executor"
	"github.com/mohammed-shakir/wmsgate/internal/core/model"
	"github.com/mohammed-shakir/wmsgate/internal/core/ogc"
	"github.com/mohammed-shakir/wmsgate/internal/core/router"
	"github.com/mohammed-shakir/wmsgate/internal/render"
)

func pngOf(t *testing.T, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func doc(endpoint string) *capabilities.Document {
	return &capabilities.Document{
		Version: "1.1.1",
		GetMap: capabilities.OperationDoc{
			Formats: []string{"image/png"},
			Methods: []capabilities.MethodDoc{{Kind: "GET", Endpoint: endpoint}},
		},
		Layer: capabilities.LayerDoc{
			Title: "root",
			Layers: []capabilities.LayerDoc{
				{Name: "roads", Styles: []string{"thin"}},
				{Name: "water"},
			},
		},
	}
}

func newGateway(t *testing.T, endpoint string) (*Gateway, *sync.Map) {
	t.Helper()
	cat := &config.Catalog{
		Services: []config.ServiceEntry{
			{Name: "demo", URL: "http://caps.local/demo", Capabilities: doc(endpoint)},
			{Name: "forced", URL: "http://caps.local/forced", Capabilities: doc("http://unreachable.invalid/wms"), ForceURL: endpoint, Username: "u"},
		},
		Render: config.RenderDefaults{SRID: 4326, Parallelism: 2, Background: "#FFFFFF", Transparent: true, ContinueOnError: false},
	}
	static, err := cat.StaticCapabilities()
	require.NoError(t, err)
	reg := capabilities.NewRegistry(static)

	seen := &sync.Map{}
	g, err := New(cat, reg, func(s config.ServiceEntry) render.Fetcher {
		seen.Store(s.Name, s.Username)
		return executor.New(nil, nil, executor.DefaultOptions())
	}, nil)
	require.NoError(t, err)
	return g, seen
}

func TestRenderMap_TwoServices(t *testing.T) {
	var mu sync.Mutex
	var layers []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		layers = append(layers, r.URL.Query().Get("LAYERS"))
		mu.Unlock()
		c := color.RGBA{R: 255, A: 255}
		if r.URL.Query().Get("LAYERS") == "water" {
			c = color.RGBA{B: 255, A: 255}
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(pngOf(t, c))
	}))
	t.Cleanup(srv.Close)

	g, seen := newGateway(t, srv.URL+"/wms")
	u, _ := seen.Load("forced")
	require.Equal(t, "u", u)

	img, err := g.RenderMap(context.Background(), router.MapRequest{
		Groups: []router.ServiceLayers{
			{Service: "demo", Layers: []string{"roads"}, Styles: []string{"thin"}},
			{Service: "forced", Layers: []string{"water"}},
		},
		BBox:   model.BBox{X1: 0, Y1: 0, X2: 1, Y2: 1, SRID: 4326},
		Width:  8,
		Height: 8,
		SRID:   4326,
		Format: "image/png",
	})
	require.NoError(t, err)
	r, _, b, _ := img.At(4, 4).RGBA()
	require.Equal(t, uint32(0), r)
	require.Equal(t, uint32(0xFFFF), b)
	require.ElementsMatch(t, []string{"roads", "water"}, layers)
}

func TestRenderMap_Errors(t *testing.T) {
	g, _ := newGateway(t, "http://127.0.0.1:1/wms")
	base := router.MapRequest{BBox: model.BBox{X2: 1, Y2: 1}, Width: 1, Height: 1, SRID: 4326}

	req := base
	req.Groups = []router.ServiceLayers{{Service: "nope", Layers: []string{"roads"}}}
	_, err := g.RenderMap(context.Background(), req)
	require.ErrorIs(t, err, router.ErrUnknownService)

	req.Groups = []router.ServiceLayers{{Service: "demo", Layers: []string{"lakes"}}}
	_, err = g.RenderMap(context.Background(), req)
	require.ErrorIs(t, err, ogc.ErrUnknownLayer)

	req.Groups = []router.ServiceLayers{{Service: "demo", Layers: []string{"roads"}, Styles: []string{"bold"}}}
	_, err = g.RenderMap(context.Background(), req)
	require.ErrorIs(t, err, ogc.ErrUnknownStyle)

	req.Groups = []router.ServiceLayers{{Service: "demo", Layers: []string{"roads"}}}
	_, err = g.RenderMap(context.Background(), req)
	var re *render.RenderError
	require.ErrorAs(t, err, &re)
}

func TestRenderMap_JPEGGetsBackground(t *testing.T) {
	g, _ := newGateway(t, "http://127.0.0.1:1/wms")
	img, err := g.RenderMap(context.Background(), router.MapRequest{
		BBox: model.BBox{X2: 1, Y2: 1}, Width: 2, Height: 2, SRID: 4326, Format: "image/jpeg",
	})
	require.NoError(t, err)
	require.Equal(t, color.RGBA{R: 255, G: 255, B: 255, A: 255}, img.(*image.RGBA).RGBAAt(1, 1))
}
