// Package render draws WMS responses onto a map canvas: decoding, colour
// transforms and compositing of layers in order.
package render

import (
	"image/color"
	"math"
)

// ColorMatrix transforms a colour as the row vector [r g b a 1] times the
// matrix, channels normalized to 0..1. Row 4 holds translations.
type ColorMatrix [5][5]float32

func Identity() ColorMatrix {
	var m ColorMatrix
	for i := range m {
		m[i][i] = 1
	}
	return m
}

// Opacity scales alpha by o: 1 keeps the image opaque, 0 makes it invisible.
func Opacity(o float32) ColorMatrix {
	m := Identity()
	m[3][3] = o
	return m
}

func (m *ColorMatrix) Apply(c color.Color) color.NRGBA {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	in := [5]float32{
		float32(n.R) / 255,
		float32(n.G) / 255,
		float32(n.B) / 255,
		float32(n.A) / 255,
		1,
	}
	var out [4]float32
	for j := 0; j < 4; j++ {
		var v float32
		for i := 0; i < 5; i++ {
			v += in[i] * m[i][j]
		}
		out[j] = v
	}
	return color.NRGBA{R: clamp8(out[0]), G: clamp8(out[1]), B: clamp8(out[2]), A: clamp8(out[3])}
}

func clamp8(v float32) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 1:
		return 255
	default:
		return uint8(math.Round(float64(v * 255)))
	}
}
