package ogc

import (
	"errors"
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"github.com/mohammed-shakir/wmsgate/internal/core/capabilities"
	"github.com/mohammed-shakir/wmsgate/internal/core/crs"
	"github.com/mohammed-shakir/wmsgate/internal/core/model"
)

var (
	ErrInvalidSpatialReference = errors.New("spatial reference system not set")
	ErrUnsupportedVersion      = errors.New("unsupported wms version")
	ErrInvalidSize             = errors.New("image size must be positive")
)

// GetMapParams describes the viewport of one map request. BBox is in the
// coordinates of SRID, x before y.
type GetMapParams struct {
	BBox        model.BBox
	Width       int
	Height      int
	SRID        int
	Version     string
	Format      string
	Transparent bool
	BgColor     color.RGBA
	// swap BBOX to lat/lon for geographic systems under 1.3.0
	AxisAware bool
}

func (p GetMapParams) validate() error {
	if p.SRID < 0 {
		return ErrInvalidSpatialReference
	}
	if !crs.ValidVersion(p.Version) {
		return fmt.Errorf("%w: %q", ErrUnsupportedVersion, p.Version)
	}
	if p.Width <= 0 || p.Height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidSize, p.Width, p.Height)
	}
	return nil
}

func (p GetMapParams) bbox() string {
	b := p.BBox
	if p.AxisAware && AxisOrder(p.SRID, p.Version) == LatLon {
		b = b.Flip()
	}
	return b.String()
}

func HexColor(c color.RGBA) string {
	return fmt.Sprintf("0x%02X%02X%02X", c.R, c.G, c.B)
}

// BuildGetMap assembles a GetMap request against method's endpoint.
// Parameters appear in a fixed order: REQUEST, BBOX, WIDTH, HEIGHT, LAYERS,
// FORMAT, CRS or SRS, VERSION, STYLES, TRANSPARENT and BGCOLOR when opaque.
func BuildGetMap(p GetMapParams, layers *LayerSelection, styles *StyleSelection, method capabilities.TransportMethod) (Request, error) {
	return build("GetMap", p, layers, styles, method)
}

func build(op string, p GetMapParams, layers *LayerSelection, styles *StyleSelection, method capabilities.TransportMethod) (Request, error) {
	if err := p.validate(); err != nil {
		return Request{}, err
	}
	req := Request{Method: method.Kind, Endpoint: method.Endpoint}
	if req.Method == "" || method.IsGet() {
		req.Method = capabilities.MethodGet
	} else if method.IsPost() {
		req.Method = capabilities.MethodPost
	}

	req.add("REQUEST", op)
	req.add("BBOX", p.bbox())
	req.add("WIDTH", strconv.Itoa(p.Width))
	req.add("HEIGHT", strconv.Itoa(p.Height))
	req.add("LAYERS", joinNames(layers))
	req.add("FORMAT", p.Format)
	req.add(crs.ParamName(p.Version), crs.Code(p.SRID))
	req.add("VERSION", p.Version)
	req.add("STYLES", joinStyles(styles))
	req.add("TRANSPARENT", strings.ToUpper(strconv.FormatBool(p.Transparent)))
	if !p.Transparent {
		req.add("BGCOLOR", HexColor(p.BgColor))
	}
	return req, nil
}

func joinNames(l *LayerSelection) string {
	if l == nil {
		return ""
	}
	return l.sel.join()
}

func joinStyles(s *StyleSelection) string {
	if s == nil {
		return ""
	}
	return s.sel.join()
}

type FeatureInfoParams struct {
	GetMapParams
	QueryLayers  []string
	InfoFormat   string
	X, Y         int
	FeatureCount int
}

var ErrInvalidPixel = errors.New("query pixel outside the image")

// QueryLayers defaults to the selected layers
func BuildGetFeatureInfo(p FeatureInfoParams, layers *LayerSelection, styles *StyleSelection, method capabilities.TransportMethod) (Request, error) {
	req, err := build("GetFeatureInfo", p.GetMapParams, layers, styles, method)
	if err != nil {
		return Request{}, err
	}
	if p.X < 0 || p.Y < 0 || p.X >= p.Width || p.Y >= p.Height {
		return Request{}, fmt.Errorf("%w: %d,%d", ErrInvalidPixel, p.X, p.Y)
	}
	query := strings.Join(p.QueryLayers, ",")
	if query == "" {
		query = joinNames(layers)
	}
	req.add("QUERY_LAYERS", query)
	if p.InfoFormat != "" {
		req.add("INFO_FORMAT", p.InfoFormat)
	}
	ix, iy := "X", "Y"
	if p.Version == crs.Version130 {
		ix, iy = "I", "J"
	}
	req.add(ix, strconv.Itoa(p.X))
	req.add(iy, strconv.Itoa(p.Y))
	if p.FeatureCount > 0 {
		req.add("FEATURE_COUNT", strconv.Itoa(p.FeatureCount))
	}
	return req, nil
}
