package render

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"

	xdraw "golang.org/x/image/draw"
)

// Compositor draws one decoded response onto a canvas at its origin.
type Compositor struct {
	// optional per-pixel transform
	Attributes *ColorMatrix
	Fit        bool
}

func Decode(body []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

func (c Compositor) Draw(dst draw.Image, body []byte) error {
	img, err := Decode(body)
	if err != nil {
		return err
	}
	c.DrawImage(dst, img)
	return nil
}

func (c Compositor) DrawImage(dst draw.Image, img image.Image) {
	if c.Attributes != nil {
		img = applyMatrix(img, c.Attributes)
	}
	canvas := dst.Bounds()
	src := img.Bounds()
	if c.Fit && src.Size() != canvas.Size() {
		FitCanvas(dst, img)
		return
	}
	r := image.Rectangle{Min: canvas.Min, Max: canvas.Min.Add(src.Size())}.Intersect(canvas)
	draw.Draw(dst, r, img, src.Min, draw.Over)
}

// scales img over the whole canvas
func FitCanvas(dst draw.Image, img image.Image) {
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), xdraw.Over, nil)
}

func applyMatrix(img image.Image, m *ColorMatrix) *image.NRGBA {
	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			out.SetNRGBA(x-b.Min.X, y-b.Min.Y, m.Apply(img.At(x, y)))
		}
	}
	return out
}
