package imgproc

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"

	"github.com/disintegration/imaging"
)

var (
	grayWhite = color.Gray{Y: 255}
	grayBlack = color.Gray{Y: 0}
)

// VariantKind selects a preprocessing recipe for an OCR or barcode pass.
type VariantKind int

const (
	VariantNormal VariantKind = iota
	VariantAggressive
)

// Variant is one preprocessed rendition of a source image.
type Variant struct {
	Kind     VariantKind
	Rotation int // degrees, one of 0/90/180/270
	Image    image.Image
}

// Prepare applies the variant recipe: grayscale plus a contrast/sharpen
// pass, then rotation. The aggressive recipe additionally binarizes
// with an Otsu threshold, which helps low-contrast packaging text.
func Prepare(img image.Image, kind VariantKind, rotation int) image.Image {
	var out image.Image = imaging.Grayscale(img)
	switch kind {
	case VariantAggressive:
		out = imaging.AdjustContrast(out, 45)
		out = imaging.Sharpen(out, 0.8)
		out = otsuBinarize(out)
	default:
		out = imaging.AdjustContrast(out, 20)
		out = imaging.Sharpen(out, 0.5)
	}
	return Rotate(out, rotation)
}

// Rotate rotates by a multiple of 90 degrees.
func Rotate(img image.Image, degrees int) image.Image {
	switch ((degrees % 360) + 360) % 360 {
	case 90:
		return imaging.Rotate90(img)
	case 180:
		return imaging.Rotate180(img)
	case 270:
		return imaging.Rotate270(img)
	default:
		return img
	}
}

// CenterCrop returns the central fraction of the image, upscaled back
// toward the original width so small barcodes keep enough pixels.
func CenterCrop(img image.Image, fraction float64) image.Image {
	if fraction <= 0 || fraction >= 1 {
		return img
	}
	b := img.Bounds()
	w := int(float64(b.Dx()) * fraction)
	h := int(float64(b.Dy()) * fraction)
	cropped := imaging.CropCenter(img, w, h)
	if b.Dx() > w {
		return imaging.Resize(cropped, b.Dx(), 0, imaging.Lanczos)
	}
	return cropped
}

// EnhanceContrast is the cheap contrast-only pass used by the barcode
// decoder's second crop variant.
func EnhanceContrast(img image.Image) image.Image {
	out := imaging.Grayscale(img)
	return imaging.AdjustContrast(out, 35)
}

// EncodeJPEG encodes an image for engines that consume raw bytes.
func EncodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func otsuBinarize(img image.Image) image.Image {
	gray := toGray(img)
	t := otsuThreshold(gray)
	b := gray.Bounds()
	out := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if gray.GrayAt(x, y).Y > t {
				out.SetGray(x, y, grayWhite)
			} else {
				out.SetGray(x, y, grayBlack)
			}
		}
	}
	return out
}

func otsuThreshold(img *image.Gray) uint8 {
	b := img.Bounds()
	total := b.Dx() * b.Dy()
	if total == 0 {
		return 128
	}

	var histogram [256]int
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			histogram[img.GrayAt(x, y).Y]++
		}
	}

	var sumTotal float64
	for i, n := range histogram {
		sumTotal += float64(i) * float64(n)
	}

	var sumB float64
	var wB int
	var maxVariance float64
	var threshold uint8
	for t := 0; t < 256; t++ {
		wB += histogram[t]
		if wB == 0 {
			continue
		}
		wF := total - wB
		if wF == 0 {
			break
		}
		sumB += float64(t) * float64(histogram[t])
		mB := sumB / float64(wB)
		mF := (sumTotal - sumB) / float64(wF)
		variance := float64(wB) * float64(wF) * (mB - mF) * (mB - mF)
		if variance > maxVariance {
			maxVariance = variance
			threshold = uint8(t)
		}
	}
	return threshold
}

func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	b := img.Bounds()
	out := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			out.Set(x, y, img.At(x, y))
		}
	}
	return out
}
