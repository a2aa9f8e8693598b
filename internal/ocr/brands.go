package ocr

import (
	"strings"
)

// BrandMatch is the outcome of fuzzy-matching raw OCR text against the
// canonical brand dictionary.
type BrandMatch struct {
	Canonical string
	Display   string
	Score     float64
}

// BrandMatcher holds a canonical brand dictionary. Keys are canonical
// (lowercased) brand names; values are display names injected into
// rescue seeds.
type BrandMatcher struct {
	brands map[string]string
}

// defaultBrands is a starter dictionary; deployments extend it via
// NewBrandMatcherWith.
var defaultBrands = map[string]string{
	"coca cola":  "Coca-Cola",
	"pepsi":      "Pepsi",
	"nutella":    "Nutella",
	"barilla":    "Barilla",
	"danone":     "Danone",
	"kelloggs":   "Kellogg's",
	"heinz":      "Heinz",
	"nesquik":    "Nesquik",
	"oreo":       "Oreo",
	"alpro":      "Alpro",
	"activia":    "Activia",
	"milka":      "Milka",
	"snickers":   "Snickers",
	"tropicana":  "Tropicana",
	"ben jerrys": "Ben & Jerry's",
}

func NewBrandMatcher() *BrandMatcher {
	return NewBrandMatcherWith(defaultBrands)
}

func NewBrandMatcherWith(brands map[string]string) *BrandMatcher {
	return &BrandMatcher{brands: brands}
}

// Match fuzzy-matches raw text against the dictionary and returns the
// best brand scoring at least minScore, or ok=false. Matching works
// per token with a normalized edit-distance similarity, so "nutela"
// and "NUTELLA hazelnut spread" both find Nutella.
func (m *BrandMatcher) Match(rawText string, minScore float64) (BrandMatch, bool) {
	tokens := brandTokens(rawText)
	if len(tokens) == 0 {
		return BrandMatch{}, false
	}

	var best BrandMatch
	for canonical, display := range m.brands {
		score := m.scoreBrand(canonical, tokens)
		if score > best.Score {
			best = BrandMatch{Canonical: canonical, Display: display, Score: score}
		}
	}

	if best.Score < minScore {
		return BrandMatch{}, false
	}
	return best, true
}

func (m *BrandMatcher) scoreBrand(canonical string, textTokens []string) float64 {
	brandParts := strings.Fields(canonical)
	total := 0.0
	for _, part := range brandParts {
		best := 0.0
		for _, token := range textTokens {
			if s := tokenSimilarity(part, token); s > best {
				best = s
			}
		}
		total += best
	}
	return total / float64(len(brandParts))
}

func brandTokens(text string) []string {
	var b strings.Builder
	for _, r := range strings.ToLower(text) {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	fields := strings.Fields(b.String())
	tokens := fields[:0]
	for _, f := range fields {
		if len(f) >= 3 {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// tokenSimilarity is 1 - normalized Levenshtein distance.
func tokenSimilarity(a, b string) float64 {
	if a == b {
		return 1
	}
	la, lb := len(a), len(b)
	if la == 0 || lb == 0 {
		return 0
	}

	prev := make([]int, lb+1)
	cur := make([]int, lb+1)
	for j := 0; j <= lb; j++ {
		prev[j] = j
	}
	for i := 1; i <= la; i++ {
		cur[0] = i
		for j := 1; j <= lb; j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = minInt(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}

	longest := la
	if lb > longest {
		longest = lb
	}
	return 1 - float64(prev[lb])/float64(longest)
}

func minInt(vals ...int) int {
	m := vals[0]
	for _, v := range vals[1:] {
		if v < m {
			m = v
		}
	}
	return m
}
