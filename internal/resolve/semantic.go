package resolve

// categoryRule hard-zeroes candidates that fall outside the category a
// seed clearly implies. A drink seed must never resolve to a solid
// snack just because the tokens overlap.
type categoryRule struct {
	triggers []string // any of these in the seed fires the rule
	required []string // candidate must contain at least one
}

var categoryRules = []categoryRule{
	{
		triggers: []string{"drink", "juice", "soda", "smoothie", "shake", "lemonade", "beverage"},
		required: []string{"drink", "juice", "soda", "smoothie", "shake", "lemonade", "beverage", "water", "nectar", "cola", "tea", "coffee", "milk"},
	},
	{
		triggers: []string{"milk", "yogurt", "kefir"},
		required: []string{"milk", "yogurt", "kefir", "dairy", "cream", "latte", "cocoa", "drink"},
	},
}

// SemanticScore measures how well a candidate's name and brand cover
// the seed label, as the fraction of seed tokens present in the
// candidate text. Category rules can force the score to zero.
func SemanticScore(seedLabel, candidateName, candidateBrand string) float64 {
	seedTokens := labelTokens(NormalizeLabel(seedLabel))
	if len(seedTokens) == 0 {
		return 0
	}

	candidateText := NormalizeLabel(candidateName + " " + candidateBrand)
	candidateTokens := make(map[string]bool)
	for _, t := range labelTokens(candidateText) {
		candidateTokens[t] = true
	}

	if violatesCategory(seedTokens, candidateTokens) {
		return 0
	}

	matched := 0
	for _, t := range seedTokens {
		if candidateTokens[t] {
			matched++
		}
	}
	return float64(matched) / float64(len(seedTokens))
}

func violatesCategory(seedTokens []string, candidateTokens map[string]bool) bool {
	for _, rule := range categoryRules {
		if !containsAny(seedTokens, rule.triggers) {
			continue
		}
		found := false
		for _, req := range rule.required {
			if candidateTokens[req] {
				found = true
				break
			}
		}
		if !found {
			return true
		}
	}
	return false
}

func containsAny(tokens []string, set []string) bool {
	for _, t := range tokens {
		for _, s := range set {
			if t == s {
				return true
			}
		}
	}
	return false
}

// labelSimilarity is a Jaccard index over label tokens, used by
// duplicate suppression and recency matching.
func labelSimilarity(a, b string) float64 {
	at := labelTokens(NormalizeLabel(a))
	bt := labelTokens(NormalizeLabel(b))
	if len(at) == 0 || len(bt) == 0 {
		return 0
	}
	seen := make(map[string]bool, len(at))
	for _, t := range at {
		seen[t] = true
	}
	union := make(map[string]bool, len(at)+len(bt))
	for _, t := range at {
		union[t] = true
	}
	intersect := 0
	for _, t := range bt {
		if seen[t] {
			intersect++
		}
		union[t] = true
	}
	return float64(intersect) / float64(len(union))
}
