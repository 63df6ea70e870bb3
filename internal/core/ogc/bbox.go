package ogc

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/mohammed-shakir/wmsgate/internal/core/crs"
	"github.com/mohammed-shakir/wmsgate/internal/core/model"
)

type Axis int

const (
	XY Axis = iota
	LatLon
)

// axis order used on the wire for srid at version
func AxisOrder(srid int, version string) Axis {
	if crs.NeedsFlip(srid, version) {
		return LatLon
	}
	return XY
}

var ErrInvalidBBox = errors.New("invalid bbox")

// parses "a,b,c,d", ignoring a fifth CRS element; flip reads lat/lon and returns x/y
func ParseBBOX(raw string, flip bool) (model.BBox, error) {
	parts := strings.Split(strings.TrimSpace(raw), ",")
	if len(parts) != 4 && len(parts) != 5 {
		return model.BBox{}, fmt.Errorf("%w: want 4 values, got %d", ErrInvalidBBox, len(parts))
	}
	var v [4]float64
	for i := 0; i < 4; i++ {
		f, err := strconv.ParseFloat(strings.TrimSpace(parts[i]), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return model.BBox{}, fmt.Errorf("%w: %q", ErrInvalidBBox, parts[i])
		}
		v[i] = f
	}
	b := model.BBox{X1: v[0], Y1: v[1], X2: v[2], Y2: v[3]}
	if flip {
		b = b.Flip()
	}
	if b.X1 > b.X2 || b.Y1 > b.Y2 {
		return model.BBox{}, fmt.Errorf("%w: min exceeds max", ErrInvalidBBox)
	}
	return b, nil
}
