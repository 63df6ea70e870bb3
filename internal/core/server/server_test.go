package server

import (
	"context"
	"image"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mohammed-shakir/wmsgate/internal/core/health"
	"github.com/mohammed-shakir/wmsgate/internal/core/router"
	"github.com/mohammed-shakir/wmsgate/internal/metrics"
)

type blankMaps struct{}

func (blankMaps) RenderMap(_ context.Context, req router.MapRequest) (image.Image, error) {
	return image.NewRGBA(image.Rect(0, 0, req.Width, req.Height)), nil
}

func TestNewRouter_Routes(t *testing.T) {
	p := metrics.Init(metrics.Config{Enabled: true})
	fi := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = io.WriteString(w, "fi") })
	r := NewRouter(Deps{
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		Metrics:     p,
		FeatureInfo: fi,
		Maps:        blankMaps{},
		DefaultSRID: 4326,
		Ready:       map[string]health.Checker{"noop": health.CheckFunc(func(context.Context) error { return nil })},
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	get := func(path string) (*http.Response, string) {
		t.Helper()
		resp, err := srv.Client().Get(srv.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		defer func() { _ = resp.Body.Close() }()
		b, _ := io.ReadAll(resp.Body)
		return resp, string(b)
	}

	if resp, body := get("/healthz"); resp.StatusCode != http.StatusOK || body != "ok" {
		t.Fatalf("healthz %d %q", resp.StatusCode, body)
	}
	if resp, _ := get("/readyz"); resp.StatusCode != http.StatusOK {
		t.Fatalf("readyz %d", resp.StatusCode)
	}
	if _, body := get("/wms?BBOX=0,0,1,1"); body != "fi" {
		t.Fatalf("wms body %q", body)
	}
	resp, _ := get("/map?service=a&layers=b&bbox=0,0,1,1&width=3&height=2")
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "image/png" {
		t.Fatalf("map %d %q", resp.StatusCode, resp.Header.Get("Content-Type"))
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatal("missing request id")
	}
	if _, body := get("/metrics"); !strings.Contains(body, `route="/map"`) {
		t.Fatalf("metrics missing map route:\n%s", body)
	}
}

func TestNewRouter_OptionalRoutes(t *testing.T) {
	srv := httptest.NewServer(NewRouter(Deps{}))
	t.Cleanup(srv.Close)
	for _, p := range []string{"/wms", "/map", "/metrics"} {
		resp, err := srv.Client().Get(srv.URL + p)
		if err != nil {
			t.Fatal(err)
		}
		_ = resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("%s status=%d", p, resp.StatusCode)
		}
	}
}
