package ocr

import (
	"testing"
	"time"
)

func rawSample(text string, conf float64) Sample {
	return Sample{
		Timestamp:      time.Now(),
		Text:           text,
		OCRConfidence:  conf,
		DetectionScore: 0.9,
		CropScore:      0.9,
		Source:         SourceRaw,
	}
}

func TestFuseSamplesAgreement(t *testing.T) {
	samples := []Sample{
		rawSample("greek yogurt natural", 0.9),
		rawSample("greek yogurt natural", 0.92),
		rawSample("greek yogurt", 0.88),
	}

	fused, ok := FuseSamples(samples)
	if !ok {
		t.Fatal("expected fusion")
	}
	if TextSimilarity(fused.Text, "greek yogurt natural") < 0.6 {
		t.Errorf("unexpected fused text: %q", fused.Text)
	}
	if fused.Confidence < 0.8 {
		t.Errorf("agreeing samples should fuse with high confidence, got %.2f", fused.Confidence)
	}
}

func TestFuseSamplesOutlierLoses(t *testing.T) {
	samples := []Sample{
		rawSample("chocolate milk", 0.85),
		rawSample("chocolate milk", 0.86),
		rawSample("cnocolate rnilk zzz", 0.95), // noisy outlier with high raw conf
	}

	fused, ok := FuseSamples(samples)
	if !ok {
		t.Fatal("expected fusion")
	}
	if fused.Text != "chocolate milk" {
		t.Errorf("expected centroid agreement to beat raw confidence, got %q", fused.Text)
	}
}

func TestFuseSamplesRescuePenalty(t *testing.T) {
	raw := rawSample("nutella spread", 0.9)
	rescued := raw
	rescued.Source = SourceRescued
	rescued.Text = "nutella spread"

	fRaw, _ := FuseSamples([]Sample{raw, raw})
	fRescued, _ := FuseSamples([]Sample{rescued, rescued})

	if fRescued.Winner.Source != SourceRescued {
		t.Error("expected rescued winner")
	}
	// Confidence comes from the same OCR values; the penalty only
	// reweights, so both land close. The winner attribution matters.
	if fRaw.Winner.Source != SourceRaw {
		t.Error("expected raw winner")
	}
}

func TestFuseSamplesEmpty(t *testing.T) {
	if _, ok := FuseSamples(nil); ok {
		t.Error("expected no fusion for empty window")
	}
}

func TestTextSimilarity(t *testing.T) {
	tests := []struct {
		a, b string
		min  float64
		max  float64
	}{
		{"greek yogurt", "greek yogurt", 1, 1},
		{"greek yogurt", "yogurt greek", 1, 1},
		{"greek yogurt", "strawberry jam", 0, 0},
		{"greek yogurt natural", "greek yogurt", 0.6, 0.7},
		{"", "anything", 0, 0},
	}

	for _, tt := range tests {
		got := TextSimilarity(tt.a, tt.b)
		if got < tt.min || got > tt.max {
			t.Errorf("TextSimilarity(%q, %q) = %.3f, expected in [%.2f, %.2f]", tt.a, tt.b, got, tt.min, tt.max)
		}
	}
}
