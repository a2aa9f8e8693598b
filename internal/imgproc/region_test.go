package imgproc

import (
	"image"
	"math"
	"testing"
)

func TestTextLikelihood(t *testing.T) {
	striped := TextLikelihood(stripedImage(200, 60, 3))
	flat := TextLikelihood(flatImage(200, 60, 128))

	if striped <= flat {
		t.Errorf("expected striped likelihood (%.3f) above flat (%.3f)", striped, flat)
	}
	if flat > 0.05 {
		t.Errorf("expected near-zero likelihood for flat image, got %.3f", flat)
	}
}

func TestDetectTextRegionFindsStripedBand(t *testing.T) {
	// Flat frame with a high-frequency band in the middle third.
	frame := image.NewGray(image.Rect(0, 0, 320, 240))
	for y := 0; y < 240; y++ {
		for x := 0; x < 320; x++ {
			v := uint8(128)
			if y >= 100 && y < 140 && x >= 40 && x < 280 && (x/3)%2 == 0 {
				v = 245
			}
			frame.Pix[y*frame.Stride+x] = v
		}
	}

	region, ok := DetectTextRegion(frame)
	if !ok {
		t.Fatal("expected a detected region")
	}
	center := (region.Rect.Min.Y + region.Rect.Max.Y) / 2
	if center < 70 || center > 170 {
		t.Errorf("expected region centered near the striped band, got rect %v", region.Rect)
	}
	if region.Score <= 0 {
		t.Errorf("expected positive detection score, got %.3f", region.Score)
	}
}

func TestDetectTextRegionFlatFrame(t *testing.T) {
	if _, ok := DetectTextRegion(flatImage(320, 240, 128)); ok {
		t.Error("expected no region on a flat frame")
	}
}

func TestIoU(t *testing.T) {
	tests := []struct {
		name     string
		a, b     image.Rectangle
		expected float64
	}{
		{"identical", image.Rect(0, 0, 10, 10), image.Rect(0, 0, 10, 10), 1.0},
		{"disjoint", image.Rect(0, 0, 10, 10), image.Rect(20, 20, 30, 30), 0.0},
		{"half overlap", image.Rect(0, 0, 10, 10), image.Rect(5, 0, 15, 10), 50.0 / 150.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IoU(tt.a, tt.b); math.Abs(got-tt.expected) > 0.001 {
				t.Errorf("IoU = %.4f, expected %.4f", got, tt.expected)
			}
		})
	}
}

func TestBlendRect(t *testing.T) {
	prev := image.Rect(0, 0, 100, 100)
	next := image.Rect(100, 100, 200, 200)

	if got := BlendRect(prev, next, 0); got != prev {
		t.Errorf("factor 0 should keep prev, got %v", got)
	}
	if got := BlendRect(prev, next, 1); got != next {
		t.Errorf("factor 1 should take next, got %v", got)
	}
	mid := BlendRect(prev, next, 0.5)
	if mid.Min.X != 50 || mid.Max.Y != 150 {
		t.Errorf("unexpected midpoint blend: %v", mid)
	}
}

func TestCenterDistance(t *testing.T) {
	a := image.Rect(0, 0, 100, 100)
	if d := CenterDistance(a, a); d != 0 {
		t.Errorf("expected zero distance for same rect, got %.3f", d)
	}
	b := image.Rect(100, 0, 200, 100)
	if d := CenterDistance(a, b); d <= 0 {
		t.Errorf("expected positive distance, got %.3f", d)
	}
}
