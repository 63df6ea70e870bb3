package render

import (
	"image"
	"image/color"
	"testing"
)

var (
	red  = color.RGBA{R: 255, A: 255}
	blue = color.RGBA{B: 255, A: 255}
)

func TestCompositor_DrawUnscaled(t *testing.T) {
	canvas := image.NewRGBA(image.Rect(0, 0, 4, 4))
	if err := (Compositor{}).Draw(canvas, solidPNG(t, 2, 2, red)); err != nil {
		t.Fatal(err)
	}
	if rgbaAt(canvas, 1, 1) != red {
		t.Fatalf("(1,1) = %+v", rgbaAt(canvas, 1, 1))
	}
	if rgbaAt(canvas, 3, 3).A != 0 {
		t.Fatal("outside the image must stay untouched")
	}
}

func TestCompositor_Opacity(t *testing.T) {
	canvas := image.NewRGBA(image.Rect(0, 0, 2, 2))
	m := Opacity(0)
	if err := (Compositor{Attributes: &m}).Draw(canvas, solidPNG(t, 2, 2, red)); err != nil {
		t.Fatal(err)
	}
	if rgbaAt(canvas, 0, 0).A != 0 {
		t.Fatalf("transparent layer drew %+v", rgbaAt(canvas, 0, 0))
	}

	m = Opacity(0.5)
	if err := (Compositor{Attributes: &m}).Draw(canvas, solidPNG(t, 2, 2, red)); err != nil {
		t.Fatal(err)
	}
	if a := rgbaAt(canvas, 0, 0).A; a < 120 || a > 135 {
		t.Fatalf("alpha %d", a)
	}
}

func TestCompositor_Fit(t *testing.T) {
	canvas := image.NewRGBA(image.Rect(0, 0, 8, 8))
	if err := (Compositor{Fit: true}).Draw(canvas, solidPNG(t, 2, 2, blue)); err != nil {
		t.Fatal(err)
	}
	if rgbaAt(canvas, 7, 7) != blue {
		t.Fatalf("(7,7) = %+v", rgbaAt(canvas, 7, 7))
	}
}

func TestCompositor_DecodeError(t *testing.T) {
	canvas := image.NewRGBA(image.Rect(0, 0, 1, 1))
	if err := (Compositor{}).Draw(canvas, []byte("<ServiceExceptionReport/>")); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestSupported(t *testing.T) {
	for mt, want := range map[string]bool{
		"image/png":            true,
		"image/png; mode=8bit": true,
		"IMAGE/JPEG":           true,
		"image/tiff":           true,
		"image/webp":           true,
		"image/svg+xml":        false,
		"application/pdf":      false,
	} {
		if got := Supported(mt); got != want {
			t.Fatalf("%s: got %v", mt, got)
		}
	}
}
