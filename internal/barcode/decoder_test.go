package barcode

import (
	"image"
	"image/color"
	"testing"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/oned"
)

func renderEAN13(t *testing.T, code string) image.Image {
	t.Helper()

	matrix, err := oned.NewEAN13Writer().Encode(code, gozxing.BarcodeFormat_EAN_13, 400, 160, nil)
	if err != nil {
		t.Fatalf("failed to render barcode: %v", err)
	}

	img := image.NewGray(image.Rect(0, 0, matrix.GetWidth(), matrix.GetHeight()))
	for y := 0; y < matrix.GetHeight(); y++ {
		for x := 0; x < matrix.GetWidth(); x++ {
			if matrix.Get(x, y) {
				img.SetGray(x, y, color.Gray{Y: 0})
			} else {
				img.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return img
}

func TestDecoderDecodesEAN13(t *testing.T) {
	img := renderEAN13(t, "4006381333931")

	if got := NewDecoder(nil).Decode(img); got != "4006381333931" {
		t.Errorf("Decode = %q, expected 4006381333931", got)
	}
}

func TestDecoderDecodesRotatedFrame(t *testing.T) {
	img := renderEAN13(t, "4006381333931")
	rotated := rotate90(img)

	if got := NewDecoder(nil).Decode(rotated); got != "4006381333931" {
		t.Errorf("Decode of rotated frame = %q, expected 4006381333931", got)
	}
}

func TestDecoderBlankFrame(t *testing.T) {
	blank := image.NewGray(image.Rect(0, 0, 400, 160))
	for i := range blank.Pix {
		blank.Pix[i] = 255
	}

	if got := NewDecoder(nil).Decode(blank); got != "" {
		t.Errorf("expected no decode on blank frame, got %q", got)
	}
}

type fakeNative struct{ code string }

func (f fakeNative) DecodeBarcode(img image.Image) string { return f.code }

func TestDecoderPrefersNativeDecoder(t *testing.T) {
	blank := image.NewGray(image.Rect(0, 0, 100, 100))

	d := NewDecoder(fakeNative{code: "4006381333931"})
	if got := d.Decode(blank); got != "4006381333931" {
		t.Errorf("expected native decode to win, got %q", got)
	}

	// A native result failing validation falls through to the software path.
	d = NewDecoder(fakeNative{code: "4006381333930"})
	if got := d.Decode(blank); got != "" {
		t.Errorf("expected invalid native decode to be rejected, got %q", got)
	}
}

func rotate90(img image.Image) image.Image {
	b := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dy(), b.Dx()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			out.Set(b.Max.Y-1-y, x-b.Min.X, img.At(x, y))
		}
	}
	return out
}
