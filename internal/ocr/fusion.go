package ocr

import (
	"strings"
	"time"

	"gonum.org/v1/gonum/stat"
)

// SampleSource distinguishes raw recognizer output from brand-rescued
// substitutions.
type SampleSource int

const (
	SourceRaw SampleSource = iota
	SourceRescued
)

// Sample is one timed OCR observation of a tracked text region.
type Sample struct {
	Timestamp      time.Time
	Text           string
	OCRConfidence  float64
	DetectionScore float64
	CropScore      float64
	Source         SampleSource
	RescueBrand    string
	RescueScore    float64
}

const (
	sampleWindowSize = 5
	rescuePenalty    = 0.85
)

// Fusion is the running text hypothesis over a sample window.
type Fusion struct {
	Text       string
	Confidence float64
	Winner     Sample
}

// FuseSamples picks the sample best supported by the rest of the
// window and computes a fused confidence. Each sample is weighted by
// its similarity to the others (centroid agreement), the detection and
// crop quality scores, and a flat penalty for rescued samples.
func FuseSamples(samples []Sample) (Fusion, bool) {
	if len(samples) == 0 {
		return Fusion{}, false
	}

	sims := make([]float64, len(samples))
	weights := make([]float64, len(samples))
	confs := make([]float64, len(samples))
	for i, s := range samples {
		sims[i] = centroidSimilarity(i, samples)
		w := sims[i] * s.DetectionScore * s.CropScore * s.OCRConfidence
		if s.Source == SourceRescued {
			w *= rescuePenalty
		}
		weights[i] = w
		confs[i] = s.OCRConfidence
	}

	best := 0
	for i := 1; i < len(samples); i++ {
		if weights[i] > weights[best] {
			best = i
		}
	}
	if weights[best] <= 0 {
		return Fusion{}, false
	}

	agreement := stat.Mean(sims, weights)
	confidence := stat.Mean(confs, weights) * (0.85 + 0.15*agreement)
	if confidence > 1 {
		confidence = 1
	}

	return Fusion{
		Text:       samples[best].Text,
		Confidence: confidence,
		Winner:     samples[best],
	}, true
}

func centroidSimilarity(i int, samples []Sample) float64 {
	if len(samples) == 1 {
		return 1
	}
	total := 0.0
	for j, other := range samples {
		if j == i {
			continue
		}
		total += TextSimilarity(samples[i].Text, other.Text)
	}
	return total / float64(len(samples)-1)
}

// TextSimilarity is Jaccard overlap over lowercased tokens.
func TextSimilarity(a, b string) float64 {
	ta := tokenSet(a)
	tb := tokenSet(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	inter := 0
	for tok := range ta {
		if tb[tok] {
			inter++
		}
	}
	union := len(ta) + len(tb) - inter
	return float64(inter) / float64(union)
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range strings.Fields(strings.ToLower(s)) {
		if len(tok) > 1 {
			set[tok] = true
		}
	}
	return set
}
