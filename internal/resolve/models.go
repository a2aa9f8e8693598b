package resolve

import (
	"time"

	"github.com/mealscan/mealscan/internal/lookup"
)

// SeedSource tags where a resolver seed came from. Order matters:
// merge priority runs selected > dish > ocr brand > ocr text > vision.
type SeedSource string

const (
	SourceSelected SeedSource = "selected_prediction"
	SourceDish     SeedSource = "dish_prediction"
	SourceOCRBrand SeedSource = "ocr_brand"
	SourceOCRText  SeedSource = "ocr_text"
	SourceVision   SeedSource = "vision_prediction"
)

func (s SeedSource) priority() int {
	switch s {
	case SourceSelected:
		return 0
	case SourceDish:
		return 1
	case SourceOCRBrand:
		return 2
	case SourceOCRText:
		return 3
	default:
		return 4
	}
}

// ResolverSeed is one normalized, confidence-scored label feeding the
// ranker. SeedIndex is 1-based position in the merged seed list.
type ResolverSeed struct {
	Label      string     `json:"label"`
	Confidence float64    `json:"confidence"`
	Source     SeedSource `json:"source"`
	SeedIndex  int        `json:"seed_index"`
}

// Provenance records how a ranked candidate was derived, for telemetry
// and the correction flow.
type Provenance struct {
	AILabel            string     `json:"ai_label"`
	CombinedConfidence float64    `json:"combined_confidence"`
	SemanticScore      float64    `json:"semantic_score"`
	SeedSource         SeedSource `json:"resolver_seed_source"`
	SeedIndex          int        `json:"resolver_seed_index"`
	Reasons            []string   `json:"reasons,omitempty"`
}

// RankedCandidate pairs a nutrition candidate with its final combined
// score after semantic scaling, adaptive rules and recency boost.
type RankedCandidate struct {
	Item       lookup.Candidate `json:"item"`
	Combined   float64          `json:"combined"`
	Provenance Provenance       `json:"provenance"`
}

// Thresholds collects the empirically tuned constants of the engine.
// They were calibrated against scan logs, not derived; keep them
// configurable.
type Thresholds struct {
	MaxSeeds         int
	MaxSeedsResolved int

	CombineFloor    float64
	CombineCeil     float64
	SemanticDiscard float64

	AdaptiveMin  float64
	AdaptiveMax  float64
	RecencyBoost float64
	RecencyDepth int

	AmbiguityGap          float64
	WrongButConfidentSeed float64
	WrongButConfidentBest float64

	DuplicateWindow     time.Duration
	DuplicateVisibility float64

	ResolveEnvelope time.Duration
	QuickLookup     time.Duration
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		MaxSeeds:         6,
		MaxSeedsResolved: 4,

		CombineFloor:    0.35,
		CombineCeil:     0.98,
		SemanticDiscard: 0.02,

		AdaptiveMin:  0.65,
		AdaptiveMax:  1.35,
		RecencyBoost: 0.035,
		RecencyDepth: 10,

		AmbiguityGap:          0.07,
		WrongButConfidentSeed: 0.8,
		WrongButConfidentBest: 0.5,

		DuplicateWindow:     4 * time.Second,
		DuplicateVisibility: 0.5,

		ResolveEnvelope: 22 * time.Second,
		QuickLookup:     5 * time.Second,
	}
}
