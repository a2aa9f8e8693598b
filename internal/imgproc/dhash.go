package imgproc

import (
	"fmt"
	"image"
	"math/bits"
	"strconv"

	"github.com/disintegration/imaging"
	xdraw "golang.org/x/image/draw"
)

// DHash computes a 64-bit difference hash over a 9x9 luma grid: 32
// bits record horizontal brightness steps and 32 record vertical ones,
// so frames that vary along only one axis still hash apart.
func DHash(img image.Image) uint64 {
	gray := imaging.Grayscale(img)

	small := image.NewGray(image.Rect(0, 0, 9, 9))
	xdraw.ApproxBiLinear.Scale(small, small.Bounds(), gray, gray.Bounds(), xdraw.Over, nil)

	var hash uint64
	for y := 0; y < 8; y += 2 {
		for x := 0; x < 8; x++ {
			hash <<= 1
			if small.GrayAt(x, y).Y > small.GrayAt(x+1, y).Y {
				hash |= 1
			}
		}
	}
	for x := 0; x < 8; x += 2 {
		for y := 0; y < 8; y++ {
			hash <<= 1
			if small.GrayAt(x, y).Y > small.GrayAt(x, y+1).Y {
				hash |= 1
			}
		}
	}
	return hash
}

// DegenerateHash reports whether a hash carries too little structure
// to identify anything. Flat or blurry frames collapse toward the
// all-zero or all-one hash and would sit within matching distance of
// each other despite sharing no content.
func DegenerateHash(hash uint64) bool {
	ones := bits.OnesCount64(hash)
	return ones < 10 || ones > 54
}

// HashHex renders a hash as a fixed-width 16 character hex string.
func HashHex(hash uint64) string {
	return fmt.Sprintf("%016x", hash)
}

// ParseHashHex is the inverse of HashHex.
func ParseHashHex(s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing hash %q: %w", s, err)
	}
	return v, nil
}

// HammingDistance counts differing bits between two hashes.
func HammingDistance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}
