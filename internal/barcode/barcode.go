package barcode

import (
	"strings"
)

// Normalize strips everything but digits from a scanned code.
func Normalize(code string) string {
	var b strings.Builder
	for _, r := range code {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// IsLikelyProductBarcode reports whether a code looks like a retail
// product barcode: 8, 12 or 13 digits with a valid GTIN check digit,
// or 14 digits accepted without checksum enforcement (GTIN-14 codes in
// the wild frequently carry packaging-level indicators that break the
// plain checksum).
func IsLikelyProductBarcode(code string) bool {
	digits := Normalize(code)
	switch len(digits) {
	case 8, 12, 13:
		return gtinChecksumValid(digits)
	case 14:
		return true
	default:
		return false
	}
}

// gtinChecksumValid checks the weighted modulo-10 GTIN checksum: from
// the digit next to the check digit leftwards, weights alternate 3,1.
func gtinChecksumValid(digits string) bool {
	sum := 0
	weight := 3
	for i := len(digits) - 2; i >= 0; i-- {
		sum += int(digits[i]-'0') * weight
		if weight == 3 {
			weight = 1
		} else {
			weight = 3
		}
	}
	check := (10 - sum%10) % 10
	return int(digits[len(digits)-1]-'0') == check
}
