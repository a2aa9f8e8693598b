package resolve

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// canonicalAliases maps normalized labels onto the catalog's preferred
// spelling. Applied after plural folding.
var canonicalAliases = map[string]string{
	"macaroni and cheese": "mac and cheese",
	"macaroni cheese":     "mac and cheese",
	"french fries":        "fries",
	"chips":               "fries",
	"cola":                "soda",
	"coke":                "soda",
	"soda pop":            "soda",
	"flapjack":            "pancake",
	"hotdog":              "hot dog",
}

// keepPlural lists labels whose trailing "s" is part of the word, not
// a plural marker.
var keepPlural = map[string]bool{
	"fries":    true,
	"chips":    true,
	"hummus":   true,
	"couscous": true,
	"oats":     true,
	"grits":    true,
	"noodles":  true,
	"nachos":   true,
	"molasses": true,
}

// NormalizeLabel folds a raw prediction or OCR label into the form the
// resolvers and dedup keys expect: NFC, lowercase, punctuation
// stripped, whitespace collapsed, trivial plurals folded, catalog
// aliases applied.
func NormalizeLabel(raw string) string {
	s := norm.NFC.String(raw)
	s = strings.ToLower(s)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r) || r == '-' || r == '_' || r == '/':
			b.WriteByte(' ')
		}
	}
	s = strings.Join(strings.Fields(b.String()), " ")
	if s == "" {
		return ""
	}

	s = foldPlural(s)
	if alias, ok := canonicalAliases[s]; ok {
		s = alias
	}
	return s
}

func foldPlural(s string) string {
	if keepPlural[s] {
		return s
	}
	words := strings.Split(s, " ")
	last := words[len(words)-1]
	if len(last) > 3 && strings.HasSuffix(last, "s") && !strings.HasSuffix(last, "ss") && !keepPlural[last] {
		words[len(words)-1] = strings.TrimSuffix(last, "s")
	}
	return strings.Join(words, " ")
}

// labelTokens splits a normalized label into tokens of two or more
// characters.
func labelTokens(label string) []string {
	fields := strings.Fields(label)
	tokens := fields[:0]
	for _, f := range fields {
		if len(f) > 1 {
			tokens = append(tokens, f)
		}
	}
	return tokens
}
