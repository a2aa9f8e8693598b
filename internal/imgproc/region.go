package imgproc

import (
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// TextLikelihood estimates how likely a crop is to contain printed
// text by measuring horizontal luma transition density. Printed text
// produces many sharp dark/light alternations per row; flat packaging
// or blurry frames produce few.
func TextLikelihood(img image.Image) float64 {
	gray := toGray(imaging.Resize(img, 160, 0, imaging.Linear))
	b := gray.Bounds()
	if b.Dx() < 2 || b.Dy() < 1 {
		return 0
	}

	const edge = 28 // luma delta counted as a transition
	transitions := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		prev := int(gray.GrayAt(b.Min.X, y).Y)
		for x := b.Min.X + 1; x < b.Max.X; x++ {
			cur := int(gray.GrayAt(x, y).Y)
			if abs(cur-prev) >= edge {
				transitions++
			}
			prev = cur
		}
	}

	density := float64(transitions) / float64((b.Dx()-1)*b.Dy())
	// Typical printed text lands around 0.08-0.25 transition density.
	return clamp01(density / 0.12)
}

// TextRegion is a detected rectangle likely to contain printed text,
// with a 0..1 detection score.
type TextRegion struct {
	Rect  image.Rectangle
	Score float64
}

// DetectTextRegion scans the frame for the band with the highest
// transition density, projecting first onto rows and then onto columns
// within the winning row band.
func DetectTextRegion(frame image.Image) (TextRegion, bool) {
	gray := toGray(imaging.Resize(frame, 240, 0, imaging.Linear))
	b := gray.Bounds()
	if b.Dx() < 16 || b.Dy() < 16 {
		return TextRegion{}, false
	}

	const edge = 28
	rowDensity := make([]float64, b.Dy())
	colHits := make([][]int, b.Dy())
	for y := 0; y < b.Dy(); y++ {
		hits := make([]int, b.Dx())
		prev := int(gray.GrayAt(b.Min.X, b.Min.Y+y).Y)
		count := 0
		for x := 1; x < b.Dx(); x++ {
			cur := int(gray.GrayAt(b.Min.X+x, b.Min.Y+y).Y)
			if abs(cur-prev) >= edge {
				count++
				hits[x] = 1
			}
			prev = cur
		}
		rowDensity[y] = float64(count) / float64(b.Dx()-1)
		colHits[y] = hits
	}

	// Best contiguous row band, sized at a quarter of the frame.
	band := b.Dy() / 4
	if band < 8 {
		band = 8
	}
	bestTop, bestSum := 0, -1.0
	sum := 0.0
	for y := 0; y < band && y < b.Dy(); y++ {
		sum += rowDensity[y]
	}
	bestSum = sum
	for y := band; y < b.Dy(); y++ {
		sum += rowDensity[y] - rowDensity[y-band]
		if sum > bestSum {
			bestSum = sum
			bestTop = y - band + 1
		}
	}

	// Column extent inside the band: keep columns with enough hits.
	colTotals := make([]int, b.Dx())
	for y := bestTop; y < bestTop+band && y < b.Dy(); y++ {
		for x, h := range colHits[y] {
			colTotals[x] += h
		}
	}
	minHits := band / 6
	left, right := -1, -1
	for x, n := range colTotals {
		if n > minHits {
			if left < 0 {
				left = x
			}
			right = x
		}
	}
	if left < 0 || right-left < 8 {
		return TextRegion{}, false
	}

	score := clamp01(bestSum / float64(band) / 0.12)
	if score < 0.2 {
		return TextRegion{}, false
	}

	// Map back to source coordinates.
	srcB := frame.Bounds()
	scaleX := float64(srcB.Dx()) / float64(b.Dx())
	scaleY := float64(srcB.Dy()) / float64(b.Dy())
	rect := image.Rect(
		srcB.Min.X+int(float64(left)*scaleX),
		srcB.Min.Y+int(float64(bestTop)*scaleY),
		srcB.Min.X+int(float64(right+1)*scaleX),
		srcB.Min.Y+int(float64(bestTop+band)*scaleY),
	).Intersect(srcB)

	return TextRegion{Rect: rect, Score: score}, true
}

// IoU computes intersection-over-union of two rectangles.
func IoU(a, b image.Rectangle) float64 {
	inter := a.Intersect(b)
	if inter.Empty() {
		return 0
	}
	interArea := float64(inter.Dx() * inter.Dy())
	union := float64(a.Dx()*a.Dy()+b.Dx()*b.Dy()) - interArea
	if union <= 0 {
		return 0
	}
	return interArea / union
}

// CenterDistance is the Euclidean distance between rect centers,
// normalized by the diagonal of the first rect.
func CenterDistance(a, b image.Rectangle) float64 {
	ax := float64(a.Min.X+a.Max.X) / 2
	ay := float64(a.Min.Y+a.Max.Y) / 2
	bx := float64(b.Min.X+b.Max.X) / 2
	by := float64(b.Min.Y+b.Max.Y) / 2
	diag := math.Hypot(float64(a.Dx()), float64(a.Dy()))
	if diag == 0 {
		return math.Inf(1)
	}
	return math.Hypot(bx-ax, by-ay) / diag
}

// BlendRect moves prev toward next by factor (0 keeps prev, 1 takes next).
func BlendRect(prev, next image.Rectangle, factor float64) image.Rectangle {
	factor = clamp01(factor)
	mix := func(a, b int) int { return a + int(math.Round(float64(b-a)*factor)) }
	return image.Rect(
		mix(prev.Min.X, next.Min.X),
		mix(prev.Min.Y, next.Min.Y),
		mix(prev.Max.X, next.Max.X),
		mix(prev.Max.Y, next.Max.Y),
	)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
