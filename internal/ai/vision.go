package ai

import (
	"context"
	"time"
)

// Prediction is one labeled candidate with a 0..1 confidence, as
// returned by any remote classifier.
type Prediction struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// ScanAnalysis is the fused response of the food-detection service for
// one image.
type ScanAnalysis struct {
	TopMatch        *Prediction  `json:"top_match"`
	Alternatives    []Prediction `json:"alternatives"`
	BrandCandidates []Prediction `json:"brand_candidates"`
	DishPredictions []Prediction `json:"dish_predictions"`
	PackagingType   string       `json:"packaging_type"`
	OCRStrategyHint string       `json:"ocr_strategy"`
	ScanLogID       string       `json:"scan_log_id"`
	NeedsRecapture  bool         `json:"needs_recapture"`
	RecaptureHint   string       `json:"recapture_hint"`
}

// VisionService analyzes a photo remotely. The engine consumes it as a
// label+confidence provider only; no inference runs locally.
type VisionService interface {
	AnalyzeImage(ctx context.Context, imageData []byte) (*ScanAnalysis, error)
}

// DishService classifies plated (non-packaged) food. The boolean
// return is the service's circuit-open flag: true means "temporarily
// unavailable, proceed without dish predictions".
type DishService interface {
	ClassifyDish(ctx context.Context, imageData []byte) ([]Prediction, bool, error)
}

type Config struct {
	VisionBaseURL string
	DishBaseURL   string
	APIKey        string
	VisionTimeout time.Duration
	DishTimeout   time.Duration
}

func NewConfig() *Config {
	return &Config{
		VisionTimeout: 30 * time.Second,
		DishTimeout:   10 * time.Second,
	}
}
