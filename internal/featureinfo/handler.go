package featureinfo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/paulmach/orb/geojson"

	"github.com/mohammed-shakir/wmsgate/internal/core/crs"
	"github.com/mohammed-shakir/wmsgate/internal/core/observability"
	"github.com/mohammed-shakir/wmsgate/internal/core/ogc"
)

const ContentType = "application/json; charset=utf-8"

// errWrite marks failures after the response has started.
var errWrite = errors.New("write feature info")

type Handler struct {
	catalog *Catalog
	logger  *slog.Logger
}

func NewHandler(catalog *Catalog, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{catalog: catalog, logger: logger}
}

// param looks a WMS parameter up case-insensitively.
func param(q url.Values, key string) (string, bool) {
	if v, ok := q[key]; ok && len(v) > 0 {
		return v[0], true
	}
	for k, v := range q {
		if strings.EqualFold(k, key) && len(v) > 0 {
			return v[0], true
		}
	}
	return "", false
}

// ServeFeatureInfo answers one request. Client errors are written as OGC
// service exceptions and return nil. Other errors are logged, nothing is
// written and the error is returned.
func (h *Handler) ServeFeatureInfo(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	q := r.URL.Query()

	raw, _ := param(q, "BBOX")
	if strings.TrimSpace(raw) == "" {
		ogc.WriteException(w, ogc.Exception(ogc.CodeInvalidDimensionValue, "Required parameter BBOX not specified"))
		return nil
	}

	layers := h.catalog.Snapshot()
	flip := len(layers) > 0 && layers[0].TargetSRID == crs.WGS84
	bbox, err := ogc.ParseBBOX(raw, flip)
	if err != nil {
		ogc.WriteException(w, ogc.Exception(ogc.CodeGeneric, "Invalid parameter BBOX"))
		return nil
	}

	if csv, ok := param(q, "LAYERS"); ok {
		restrict(layers, csv)
	}

	box := bbox.Bound()
	fc := geojson.NewFeatureCollection()
	for _, l := range layers {
		if !l.Enabled || !l.queryable() {
			continue
		}
		feats, err := l.Query.Query(ctx, box)
		if err != nil {
			err = fmt.Errorf("query layer %q: %w", l.Name, err)
			h.logger.ErrorContext(ctx, "feature info query failed", "layer", l.Name, "err", err)
			return err
		}
		if l.Reproject != nil {
			feats = reprojectAll(feats, l.Reproject)
		}
		for _, f := range feats {
			if f != nil {
				fc.Append(f)
			}
		}
	}

	body, err := json.Marshal(fc)
	if err != nil {
		err = fmt.Errorf("encode feature collection: %w", err)
		h.logger.ErrorContext(ctx, "feature info encode failed", "err", err)
		return err
	}
	observability.ObserveFeatureInfo(len(fc.Features))

	w.Header().Set("Content-Type", ContentType)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		h.logger.WarnContext(ctx, "feature info write failed", "err", err)
		return fmt.Errorf("%w: %w", errWrite, err)
	}
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}

// ServeHTTP reports unexpected failures as a generic exception.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	err := h.ServeFeatureInfo(r.Context(), w, r)
	if err == nil || errors.Is(err, errWrite) || errors.Is(err, context.Canceled) {
		return
	}
	ogc.WriteException(w, err)
}
