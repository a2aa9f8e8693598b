package imgproc

import (
	"image"
	"image/color"
	"testing"
)

func gradientImage(w, h int, horizontal bool) image.Image {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := 255 - x*255/w
			if !horizontal {
				v = 255 - y*255/h
			}
			img.SetGray(x, y, color.Gray{Y: uint8(v)})
		}
	}
	return img
}

func stripedImage(w, h, period int) image.Image {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if (x/period)%2 == 0 {
				img.SetGray(x, y, color.Gray{Y: 250})
			} else {
				img.SetGray(x, y, color.Gray{Y: 10})
			}
		}
	}
	return img
}

func flatImage(w, h int, v uint8) image.Image {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
	return img
}

func TestDHashIdenticalImages(t *testing.T) {
	a := gradientImage(120, 90, true)
	b := gradientImage(120, 90, true)

	if d := HammingDistance(DHash(a), DHash(b)); d != 0 {
		t.Errorf("expected distance 0 for identical images, got %d", d)
	}
}

func TestDHashDistinctImages(t *testing.T) {
	a := gradientImage(120, 90, true)
	b := gradientImage(120, 90, false)

	if d := HammingDistance(DHash(a), DHash(b)); d <= 14 {
		t.Errorf("expected distance above acceptance threshold for distinct images, got %d", d)
	}

	if DegenerateHash(DHash(a)) || DegenerateHash(DHash(b)) {
		t.Error("structured frames must not hash as degenerate")
	}
}

func TestDHashFlatFrameIsDegenerate(t *testing.T) {
	flat := flatImage(120, 90, 128)
	bright := flatImage(120, 90, 240)

	// Featureless frames collapse to the same hash regardless of their
	// content; they must be flagged rather than matched.
	if d := HammingDistance(DHash(flat), DHash(bright)); d > 14 {
		t.Fatalf("expected collapsed hashes for flat frames, got distance %d", d)
	}
	if !DegenerateHash(DHash(flat)) {
		t.Error("flat frame hash should be degenerate")
	}
	if !DegenerateHash(DHash(stripedImage(120, 90, 60))) {
		t.Error("a single broad edge should not count as identifying structure")
	}
}

func TestHashHexRoundTrip(t *testing.T) {
	hashes := []uint64{0, 1, 0xdeadbeefcafef00d, ^uint64(0)}
	for _, h := range hashes {
		hex := HashHex(h)
		if len(hex) != 16 {
			t.Errorf("expected 16 char hex, got %q", hex)
		}
		parsed, err := ParseHashHex(hex)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if parsed != h {
			t.Errorf("round trip mismatch: %x != %x", parsed, h)
		}
	}
}

func TestParseHashHexInvalid(t *testing.T) {
	if _, err := ParseHashHex("not-a-hash"); err == nil {
		t.Error("expected error for invalid hex")
	}
}

func TestHammingDistance(t *testing.T) {
	tests := []struct {
		a, b     uint64
		expected int
	}{
		{0, 0, 0},
		{0, 1, 1},
		{0, ^uint64(0), 64},
		{0b1010, 0b0101, 4},
	}

	for _, tt := range tests {
		if d := HammingDistance(tt.a, tt.b); d != tt.expected {
			t.Errorf("HammingDistance(%x, %x) = %d, expected %d", tt.a, tt.b, d, tt.expected)
		}
	}
}
