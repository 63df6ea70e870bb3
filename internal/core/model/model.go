// Package model defines core domain types shared across the service.
package model

import (
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

// BBox is an axis aligned extent in the coordinates of SRID.
type BBox struct {
	X1, Y1 float64
	X2, Y2 float64
	SRID   int
}

// String renders the box as minX,minY,maxX,maxY using an invariant number
// format (no grouping, '.' decimal separator, shortest round-trip digits).
func (b BBox) String() string {
	var sb strings.Builder
	sb.Grow(64)
	sb.WriteString(FormatFloat(b.X1))
	sb.WriteByte(',')
	sb.WriteString(FormatFloat(b.Y1))
	sb.WriteByte(',')
	sb.WriteString(FormatFloat(b.X2))
	sb.WriteByte(',')
	sb.WriteString(FormatFloat(b.Y2))
	return sb.String()
}

func (b BBox) Width() float64  { return b.X2 - b.X1 }
func (b BBox) Height() float64 { return b.Y2 - b.Y1 }

// Flip swaps the axes, turning lat/lon into x/y and back.
func (b BBox) Flip() BBox {
	return BBox{X1: b.Y1, Y1: b.X1, X2: b.Y2, Y2: b.X2, SRID: b.SRID}
}

// IsEmpty reports whether the box has no area.
func (b BBox) IsEmpty() bool {
	return b.X2 <= b.X1 || b.Y2 <= b.Y1
}

// Union grows b to include o. SRID of b is kept.
func (b BBox) Union(o BBox) BBox {
	out := b
	if o.X1 < out.X1 {
		out.X1 = o.X1
	}
	if o.Y1 < out.Y1 {
		out.Y1 = o.Y1
	}
	if o.X2 > out.X2 {
		out.X2 = o.X2
	}
	if o.Y2 > out.Y2 {
		out.Y2 = o.Y2
	}
	return out
}

func (b BBox) Bound() orb.Bound {
	return orb.Bound{Min: orb.Point{b.X1, b.Y1}, Max: orb.Point{b.X2, b.Y2}}
}

func FromBound(bd orb.Bound, srid int) BBox {
	return BBox{X1: bd.Min[0], Y1: bd.Min[1], X2: bd.Max[0], Y2: bd.Max[1], SRID: srid}
}

// FormatFloat is the single number format used on the wire.
func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Size is a pixel size of a map canvas.
type Size struct {
	Width  int
	Height int
}

// Viewport is what a map render asks every layer to draw.
type Viewport struct {
	BBox BBox
	Size Size
}

// JoinQuery appends rawQuery to endpoint, which may already carry its own
// query string.
func JoinQuery(endpoint, rawQuery string) string {
	if rawQuery == "" {
		return endpoint
	}
	var sb strings.Builder
	sb.Grow(len(endpoint) + len(rawQuery) + 1)
	sb.WriteString(endpoint)
	switch {
	case !strings.Contains(endpoint, "?"):
		sb.WriteByte('?')
	case strings.HasSuffix(endpoint, "?"), strings.HasSuffix(endpoint, "&"):
	default:
		sb.WriteByte('&')
	}
	sb.WriteString(rawQuery)
	return sb.String()
}
