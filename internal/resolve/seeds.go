package resolve

import (
	"sort"
	"strings"

	"github.com/mealscan/mealscan/internal/ai"
)

const (
	textTieBoostPerToken = 0.05
	textTieBoostMax      = 0.2
)

// SeedInput carries every signal group that can contribute resolver
// seeds for a single resolution run.
type SeedInput struct {
	// Selected is a user-picked label and always wins with
	// confidence 1.0.
	Selected string

	Dish     []ai.Prediction
	OCRBrand []ai.Prediction
	OCRText  []ai.Prediction
	Vision   []ai.Prediction

	// OCRTokens are the raw on-pack tokens used to corroborate
	// vision predictions.
	OCRTokens []string
}

// BuildSeeds merges all signal groups into at most maxSeeds normalized
// seeds. Duplicate labels keep the highest confidence; ties keep the
// higher-priority source. The result is sorted by source priority,
// then confidence, and SeedIndex is assigned 1-based.
func BuildSeeds(input SeedInput, maxSeeds int) []ResolverSeed {
	type keyed struct {
		seed ResolverSeed
	}
	byLabel := make(map[string]*keyed)

	add := func(label string, confidence float64, source SeedSource) {
		normalized := NormalizeLabel(label)
		if normalized == "" || confidence <= 0 {
			return
		}
		if confidence > 1 {
			confidence = 1
		}
		existing, ok := byLabel[normalized]
		if !ok {
			byLabel[normalized] = &keyed{seed: ResolverSeed{
				Label:      normalized,
				Confidence: confidence,
				Source:     source,
			}}
			return
		}
		if confidence > existing.seed.Confidence {
			existing.seed.Confidence = confidence
			existing.seed.Source = source
		}
	}

	if input.Selected != "" {
		add(input.Selected, 1.0, SourceSelected)
	}
	for _, p := range input.Dish {
		add(p.Label, p.Confidence, SourceDish)
	}
	for _, p := range input.OCRBrand {
		add(p.Label, p.Confidence, SourceOCRBrand)
	}
	for _, p := range input.OCRText {
		add(p.Label, p.Confidence, SourceOCRText)
	}
	for _, p := range input.Vision {
		add(p.Label, textTieBoost(p, input.OCRTokens), SourceVision)
	}

	seeds := make([]ResolverSeed, 0, len(byLabel))
	for _, k := range byLabel {
		seeds = append(seeds, k.seed)
	}
	sort.Slice(seeds, func(i, j int) bool {
		if seeds[i].Source.priority() != seeds[j].Source.priority() {
			return seeds[i].Source.priority() < seeds[j].Source.priority()
		}
		if seeds[i].Confidence != seeds[j].Confidence {
			return seeds[i].Confidence > seeds[j].Confidence
		}
		return seeds[i].Label < seeds[j].Label
	})

	if maxSeeds > 0 && len(seeds) > maxSeeds {
		seeds = seeds[:maxSeeds]
	}
	for i := range seeds {
		seeds[i].SeedIndex = i + 1
	}
	return seeds
}

// textTieBoost raises a vision prediction's confidence when its label
// tokens also appear in the on-pack OCR text, capped at +0.2.
func textTieBoost(p ai.Prediction, ocrTokens []string) float64 {
	if len(ocrTokens) == 0 {
		return p.Confidence
	}
	present := make(map[string]bool, len(ocrTokens))
	for _, t := range ocrTokens {
		present[strings.ToLower(t)] = true
	}
	boost := 0.0
	for _, token := range labelTokens(NormalizeLabel(p.Label)) {
		if present[token] {
			boost += textTieBoostPerToken
		}
	}
	if boost > textTieBoostMax {
		boost = textTieBoostMax
	}
	confidence := p.Confidence + boost
	if confidence > 1 {
		confidence = 1
	}
	return confidence
}
