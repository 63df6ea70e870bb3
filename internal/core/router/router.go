// Package router parses gateway requests and mounts the HTTP routes.
package router

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mohammed-shakir/wmsgate/internal/core/crs"
	"github.com/mohammed-shakir/wmsgate/internal/core/model"
	"github.com/mohammed-shakir/wmsgate/internal/core/ogc"
)

const (
	MaxImageSize = 4096
	jpegQuality  = 85
)

var (
	ErrUnknownService = errors.New("unknown service")
	ErrBadRequest     = errors.New("bad request")
)

// ServiceLayers is one group of layers drawn from one catalog service.
type ServiceLayers struct {
	Service string
	Layers  []string
	Styles  []string
}

// MapRequest asks for a map built from one or more services, bottom first.
type MapRequest struct {
	Groups []ServiceLayers
	BBox   model.BBox
	Width  int
	Height int
	SRID   int
	Format string
}

// MapRenderer draws a parsed map request.
type MapRenderer interface {
	RenderMap(ctx context.Context, req MapRequest) (image.Image, error)
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrBadRequest, fmt.Sprintf(format, args...))
}

// ParseMapRequest reads a /map query. Every service parameter is paired
// with the layers (and optional styles) parameter at the same position.
func ParseMapRequest(q url.Values, defaultSRID int) (MapRequest, error) {
	services := q["service"]
	layers := q["layers"]
	styles := q["styles"]
	if len(services) == 0 {
		return MapRequest{}, badRequest("missing required parameter: service")
	}
	if len(layers) != len(services) {
		return MapRequest{}, badRequest("want one layers parameter per service, got %d for %d", len(layers), len(services))
	}
	if len(styles) > len(services) {
		return MapRequest{}, badRequest("more styles than service parameters")
	}

	req := MapRequest{SRID: defaultSRID, Format: "image/png"}
	for i, svc := range services {
		g := ServiceLayers{Service: strings.TrimSpace(svc), Layers: splitList(layers[i])}
		if g.Service == "" || len(g.Layers) == 0 {
			return MapRequest{}, badRequest("service %d needs a name and at least one layer", i)
		}
		if i < len(styles) {
			g.Styles = splitList(styles[i])
		}
		req.Groups = append(req.Groups, g)
	}

	raw := strings.TrimSpace(q.Get("bbox"))
	if raw == "" {
		return MapRequest{}, badRequest("missing required parameter: bbox")
	}
	bb, err := ogc.ParseBBOX(raw, false)
	if err != nil {
		return MapRequest{}, badRequest("invalid bbox: %v", err)
	}
	if bb.IsEmpty() {
		return MapRequest{}, badRequest("bbox has no area")
	}

	if req.Width, err = dimension(q, "width"); err != nil {
		return MapRequest{}, err
	}
	if req.Height, err = dimension(q, "height"); err != nil {
		return MapRequest{}, err
	}

	if s := strings.TrimSpace(q.Get("srs")); s != "" {
		if req.SRID, err = crs.Parse(s); err != nil {
			return MapRequest{}, badRequest("invalid srs: %v", err)
		}
	}
	bb.SRID = req.SRID
	req.BBox = bb

	switch f := strings.ToLower(strings.TrimSpace(q.Get("format"))); f {
	case "", "png", "image/png":
	case "jpeg", "jpg", "image/jpeg":
		req.Format = "image/jpeg"
	default:
		return MapRequest{}, badRequest("unsupported format %q", f)
	}
	return req, nil
}

func dimension(q url.Values, key string) (int, error) {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return 0, badRequest("missing required parameter: %s", key)
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 || n > MaxImageSize {
		return 0, badRequest("%s must be within 1 and %d", key, MaxImageSize)
	}
	return n, nil
}

// HandleMap renders a map and encodes it in the requested format.
func HandleMap(logger *slog.Logger, defaultSRID int, renderer MapRenderer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := ParseMapRequest(r.URL.Query(), defaultSRID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		start := time.Now()
		img, err := renderer.RenderMap(r.Context(), req)
		if err != nil {
			status := mapStatus(err)
			if status >= http.StatusInternalServerError {
				logger.ErrorContext(r.Context(), "map render failed", "err", err)
			}
			http.Error(w, err.Error(), status)
			return
		}

		var buf bytes.Buffer
		if req.Format == "image/jpeg" {
			err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality})
		} else {
			err = png.Encode(&buf, img)
		}
		if err != nil {
			logger.ErrorContext(r.Context(), "map encode failed", "err", err)
			http.Error(w, "encode failed", http.StatusInternalServerError)
			return
		}
		logger.DebugContext(r.Context(), "map rendered",
			"groups", len(req.Groups), "bytes", buf.Len(), "took", time.Since(start))

		w.Header().Set("Content-Type", req.Format)
		w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
		_, _ = w.Write(buf.Bytes())
	}
}

func mapStatus(err error) int {
	switch {
	case errors.Is(err, ErrUnknownService):
		return http.StatusNotFound
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, ogc.ErrUnknownLayer),
		errors.Is(err, ogc.ErrUnknownStyle),
		errors.Is(err, ogc.ErrDuplicateLayer),
		errors.Is(err, ogc.ErrDuplicateStyle),
		errors.Is(err, ogc.ErrInvalidSpatialReference):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

// HandleWMS dispatches /wms by REQUEST to the feature info handler. A
// missing REQUEST is treated as GetFeatureInfo.
func HandleWMS(featureInfo http.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		op := ""
		for k, v := range r.URL.Query() {
			if strings.EqualFold(k, "REQUEST") && len(v) > 0 {
				op = v[0]
				break
			}
		}
		if op != "" && !strings.EqualFold(op, "GetFeatureInfo") {
			ogc.WriteException(w, ogc.Exception(ogc.CodeOperationNotSupported, fmt.Sprintf("Operation %s is not supported", op)))
			return
		}
		featureInfo.ServeHTTP(w, r)
	}
}
