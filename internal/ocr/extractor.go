package ocr

import (
	"image"
	"log"
	"regexp"
	"strings"
	"unicode"

	"github.com/mealscan/mealscan/internal/imgproc"
)

// Seed is a candidate food/brand label extracted from packaging text.
type Seed struct {
	Label      string
	Confidence float64
}

// Result is the outcome of one extraction pass over a crop.
type Result struct {
	Seeds         []Seed // free-text line seeds
	BrandSeeds    []Seed // brand-rescue seeds, already boosted
	BestLineScore float64
	RawText       string
	Rescued       bool
	RescueBrand   string // canonical brand when rescued
	RescueScore   float64
	Quality       float64
}

// Usable reports whether the pass produced anything worth seeding.
func (r Result) Usable() bool {
	return len(r.Seeds) > 0 || len(r.BrandSeeds) > 0
}

const (
	// Below either limit the pass is considered weak and the brand
	// rescue matcher runs over the raw text.
	weakLineScore = 0.62
	weakSeedCount = 2

	gateThreshold     = 0.12 // text-likelihood below this skips OCR entirely
	earlyStopScore    = 0.82 // variant search stops once a pass scores this well
	rescueMinScore    = 0.72
	fallbackLineScore = 0.40 // confidence assigned to whole-blob fallback lines
)

// Extractor runs a small search over preprocessing variants and
// distills the recognizer output into ranked seeds.
type Extractor struct {
	engine  TextEngine
	matcher *BrandMatcher
	cache   *resultCache
}

func NewExtractor(engine TextEngine, matcher *BrandMatcher) *Extractor {
	if matcher == nil {
		matcher = NewBrandMatcher()
	}
	return &Extractor{
		engine:  engine,
		matcher: matcher,
		cache:   newResultCache(32),
	}
}

type variantSpec struct {
	kind     imgproc.VariantKind
	rotation int
}

var variantOrder = []variantSpec{
	{imgproc.VariantNormal, 0},
	{imgproc.VariantAggressive, 0},
	{imgproc.VariantNormal, 90},
	{imgproc.VariantAggressive, 90},
}

// Extract runs the variant search over a crop. Results are cached by
// perceptual hash so repeated taps on an unchanged photo are free.
func (e *Extractor) Extract(crop image.Image) Result {
	hash := imgproc.DHash(crop)
	if cached, ok := e.cache.get(hash); ok {
		return cached
	}

	result := e.extract(crop)
	e.cache.put(hash, result)
	return result
}

func (e *Extractor) extract(crop image.Image) Result {
	if likelihood := imgproc.TextLikelihood(crop); likelihood < gateThreshold {
		log.Printf("[OCR] Skipping text-free crop (likelihood %.3f)", likelihood)
		return Result{}
	}

	var best Result
	bestScore := -1.0
	for _, spec := range variantOrder {
		prepared := imgproc.Prepare(crop, spec.kind, spec.rotation)
		lines, err := e.engine.Lines(prepared)
		if err != nil {
			log.Printf("[OCR] Line extraction failed: %v", err)
			continue
		}

		candidate := buildResult(lines)
		score := variantScore(candidate)
		if score > bestScore {
			bestScore = score
			best = candidate
		}
		if score >= earlyStopScore {
			break
		}
	}

	if len(best.Seeds) == 0 {
		best = e.blobFallback(crop, best)
	}

	if best.BestLineScore < weakLineScore || len(best.Seeds) < weakSeedCount {
		e.rescue(&best)
	}

	best.Quality = variantScore(best)
	return best
}

// blobFallback extracts whole-image text when no usable lines appeared
// and splits it into low-confidence seeds.
func (e *Extractor) blobFallback(crop image.Image, base Result) Result {
	text, err := e.engine.FullText(imgproc.Prepare(crop, imgproc.VariantNormal, 0))
	if err != nil {
		log.Printf("[OCR] Whole-text fallback failed: %v", err)
		return base
	}

	var lines []Line
	for _, raw := range strings.Split(text, "\n") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		lines = append(lines, Line{Text: raw, Confidence: fallbackLineScore})
	}
	result := buildResult(lines)
	if result.RawText == "" {
		result.RawText = base.RawText
	}
	return result
}

func (e *Extractor) rescue(result *Result) {
	match, ok := e.matcher.Match(result.RawText, rescueMinScore)
	if !ok {
		return
	}

	boosted := 0.55 + 0.4*match.Score
	if boosted > 0.9 {
		boosted = 0.9
	}
	result.BrandSeeds = append(result.BrandSeeds, Seed{Label: match.Display, Confidence: boosted})
	result.Rescued = true
	result.RescueBrand = match.Canonical
	result.RescueScore = match.Score
	log.Printf("[OCR] Brand rescue: %s (%.2f)", match.Canonical, match.Score)
}

func buildResult(lines []Line) Result {
	var result Result
	var rawParts []string
	for _, line := range lines {
		rawParts = append(rawParts, line.Text)
		if !usableLine(line.Text) {
			continue
		}
		if line.Confidence > result.BestLineScore {
			result.BestLineScore = line.Confidence
		}
		result.Seeds = append(result.Seeds, Seed{
			Label:      cleanLine(line.Text),
			Confidence: line.Confidence,
		})
	}
	result.RawText = strings.Join(rawParts, "\n")
	if len(result.Seeds) > 4 {
		result.Seeds = result.Seeds[:4]
	}
	return result
}

// variantScore is the composite used to pick between preprocessing
// variants: seed count, best line confidence and raw character volume.
func variantScore(r Result) float64 {
	seedTerm := float64(len(r.Seeds)) / 3.0
	if seedTerm > 1 {
		seedTerm = 1
	}
	charTerm := float64(len(r.RawText)) / 40.0
	if charTerm > 1 {
		charTerm = 1
	}
	return 0.3*seedTerm + 0.5*r.BestLineScore + 0.2*charTerm
}

var (
	denylist = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^(nutrition|nutritional)\b`),
		regexp.MustCompile(`(?i)^ingredients?\b`),
		regexp.MustCompile(`(?i)^(calories|kcal|energy|protein|carbohydrates?|fat|salt|sugars?)\b`),
		regexp.MustCompile(`(?i)^(best before|use by|expiry|exp\.?)`),
		regexp.MustCompile(`(?i)^net\s*(wt|weight)`),
		regexp.MustCompile(`(?i)^(serving|servings|per 100\s*g)`),
		regexp.MustCompile(`(?i)^keep (refrigerated|frozen|cool)`),
		regexp.MustCompile(`(?i)(www\.|https?://|@)`),
		regexp.MustCompile(`(?i)^(recyclable|recycle|barcode)`),
	}
	filenameShape = regexp.MustCompile(`(?i)^\S+\.(jpe?g|png|gif|webp|heic|bmp)$`)
)

func usableLine(text string) bool {
	letters := 0
	for _, r := range text {
		if unicode.IsLetter(r) {
			letters++
		}
	}
	if letters < 2 {
		return false
	}
	if filenameShape.MatchString(strings.TrimSpace(text)) {
		return false
	}
	for _, re := range denylist {
		if re.MatchString(strings.TrimSpace(text)) {
			return false
		}
	}
	return true
}

func cleanLine(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
