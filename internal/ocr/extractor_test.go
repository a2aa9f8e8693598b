package ocr

import (
	"image"
	"image/color"
	"testing"
)

// fakeEngine returns canned lines per call, cycling through scripts.
type fakeEngine struct {
	lines    [][]Line
	fullText string
	calls    int
}

func (f *fakeEngine) Lines(img image.Image) ([]Line, error) {
	if len(f.lines) == 0 {
		return nil, nil
	}
	idx := f.calls
	if idx >= len(f.lines) {
		idx = len(f.lines) - 1
	}
	f.calls++
	return f.lines[idx], nil
}

func (f *fakeEngine) FullText(img image.Image) (string, error) {
	return f.fullText, nil
}

// textyImage passes the text-likelihood gate.
func textyImage() image.Image {
	img := image.NewGray(image.Rect(0, 0, 200, 80))
	for y := 0; y < 80; y++ {
		for x := 0; x < 200; x++ {
			if (x/3)%2 == 0 {
				img.SetGray(x, y, color.Gray{Y: 240})
			} else {
				img.SetGray(x, y, color.Gray{Y: 15})
			}
		}
	}
	return img
}

func TestExtractorProducesSeeds(t *testing.T) {
	engine := &fakeEngine{
		lines: [][]Line{{
			{Text: "Chocolate Hazelnut Spread", Confidence: 0.91},
			{Text: "Ingredients: sugar, palm oil", Confidence: 0.88},
			{Text: "Net Wt 400g", Confidence: 0.85},
			{Text: "Family Recipe", Confidence: 0.7},
		}},
	}
	ex := NewExtractor(engine, NewBrandMatcher())

	result := ex.Extract(textyImage())

	if len(result.Seeds) != 2 {
		t.Fatalf("expected 2 seeds after filtering, got %d: %+v", len(result.Seeds), result.Seeds)
	}
	if result.Seeds[0].Label != "Chocolate Hazelnut Spread" {
		t.Errorf("unexpected first seed: %q", result.Seeds[0].Label)
	}
	if result.BestLineScore != 0.91 {
		t.Errorf("expected best line score 0.91, got %.2f", result.BestLineScore)
	}
	if result.Rescued {
		t.Error("strong pass should not trigger rescue")
	}
}

func TestExtractorGateSkipsFlatImages(t *testing.T) {
	engine := &fakeEngine{lines: [][]Line{{{Text: "Should Never Run", Confidence: 0.9}}}}
	ex := NewExtractor(engine, NewBrandMatcher())

	flat := image.NewGray(image.Rect(0, 0, 200, 80))
	for i := range flat.Pix {
		flat.Pix[i] = 128
	}

	result := ex.Extract(flat)
	if result.Usable() {
		t.Errorf("expected empty result for flat image, got %+v", result)
	}
	if engine.calls != 0 {
		t.Errorf("expected engine never called, got %d calls", engine.calls)
	}
}

func TestExtractorBlobFallback(t *testing.T) {
	engine := &fakeEngine{
		lines:    [][]Line{nil, nil, nil, nil},
		fullText: "Greek Yogurt\nNatural",
	}
	ex := NewExtractor(engine, NewBrandMatcher())

	result := ex.Extract(textyImage())
	if len(result.Seeds) != 2 {
		t.Fatalf("expected fallback seeds, got %+v", result.Seeds)
	}
	if result.Seeds[0].Label != "Greek Yogurt" {
		t.Errorf("unexpected fallback seed: %q", result.Seeds[0].Label)
	}
	if result.Seeds[0].Confidence != fallbackLineScore {
		t.Errorf("fallback seeds should carry the fallback confidence, got %.2f", result.Seeds[0].Confidence)
	}
}

func TestExtractorBrandRescueOnWeakPass(t *testing.T) {
	engine := &fakeEngine{
		lines: [][]Line{{
			{Text: "NUTELA ferero", Confidence: 0.45},
		}},
	}
	ex := NewExtractor(engine, NewBrandMatcher())

	result := ex.Extract(textyImage())
	if !result.Rescued {
		t.Fatal("expected brand rescue on weak pass")
	}
	if result.RescueBrand != "nutella" {
		t.Errorf("expected canonical nutella, got %q", result.RescueBrand)
	}
	if len(result.BrandSeeds) == 0 || result.BrandSeeds[0].Label != "Nutella" {
		t.Errorf("expected boosted Nutella seed, got %+v", result.BrandSeeds)
	}
	if result.BrandSeeds[0].Confidence <= 0.45 {
		t.Errorf("rescue seed should be boosted, got %.2f", result.BrandSeeds[0].Confidence)
	}
}

func TestExtractorCachesByImageHash(t *testing.T) {
	engine := &fakeEngine{
		lines: [][]Line{{
			{Text: "Tomato Soup Classic", Confidence: 0.95},
			{Text: "Ready to Heat", Confidence: 0.9},
		}},
	}
	ex := NewExtractor(engine, NewBrandMatcher())
	img := textyImage()

	first := ex.Extract(img)
	callsAfterFirst := engine.calls
	second := ex.Extract(img)

	if engine.calls != callsAfterFirst {
		t.Errorf("expected cache hit, engine called %d more times", engine.calls-callsAfterFirst)
	}
	if len(first.Seeds) != len(second.Seeds) {
		t.Error("cached result differs from original")
	}
}

func TestUsableLine(t *testing.T) {
	tests := []struct {
		line     string
		expected bool
	}{
		{"Chocolate Milk", true},
		{"x", false},
		{"12 34", false},
		{"Ingredients: water", false},
		{"nutrition facts", false},
		{"best before 2026", false},
		{"IMG_2041.jpg", false},
		{"www.example.com", false},
		{"Protein bar", false},
		{"Creamy Peanut Butter", true},
	}

	for _, tt := range tests {
		if got := usableLine(tt.line); got != tt.expected {
			t.Errorf("usableLine(%q) = %v, expected %v", tt.line, got, tt.expected)
		}
	}
}
