package barcode

import (
	"image"
	"log"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/oned"

	"github.com/mealscan/mealscan/internal/imgproc"
)

// NativeDecoder is an optional platform decoder tried before the
// software fallback. Implementations return "" when nothing decodes.
type NativeDecoder interface {
	DecodeBarcode(img image.Image) string
}

// Decoder runs a native decoder first, then gozxing's one-dimensional
// readers across rotations and crop variants of the frame.
type Decoder struct {
	native  NativeDecoder
	readers []gozxing.Reader
}

func NewDecoder(native NativeDecoder) *Decoder {
	return &Decoder{
		native: native,
		readers: []gozxing.Reader{
			oned.NewEAN13Reader(),
			oned.NewUPCAReader(),
			oned.NewEAN8Reader(),
		},
	}
}

var rotations = []int{0, 90, 180, 270}

// Decode returns the first normalized code passing
// IsLikelyProductBarcode, or "" when no variant decodes.
func (d *Decoder) Decode(img image.Image) string {
	if d.native != nil {
		if code := Normalize(d.native.DecodeBarcode(img)); IsLikelyProductBarcode(code) {
			return code
		}
	}

	// Up to 3 variants: full frame, center crop, contrast-enhanced crop.
	variants := []image.Image{
		img,
		imgproc.CenterCrop(img, 0.6),
		imgproc.EnhanceContrast(imgproc.CenterCrop(img, 0.6)),
	}

	for _, variant := range variants {
		for _, rot := range rotations {
			if code := d.decodeOne(imgproc.Rotate(variant, rot)); code != "" {
				return code
			}
		}
	}
	return ""
}

func (d *Decoder) decodeOne(img image.Image) string {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		log.Printf("[BARCODE] Failed to build bitmap: %v", err)
		return ""
	}

	hints := map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_TRY_HARDER: true,
	}
	for _, reader := range d.readers {
		result, err := reader.Decode(bmp, hints)
		if err != nil {
			continue
		}
		code := Normalize(result.GetText())
		if IsLikelyProductBarcode(code) {
			return code
		}
	}
	return ""
}
