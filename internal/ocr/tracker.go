package ocr

import (
	"image"
	"log"
	"time"

	"github.com/disintegration/imaging"

	"github.com/mealscan/mealscan/internal/imgproc"
)

// TrackState is the tracker's lifecycle phase for the current region.
type TrackState int

const (
	StateSearching TrackState = iota
	StateTracking
	StateStale
)

func (s TrackState) String() string {
	switch s {
	case StateTracking:
		return "tracking"
	case StateStale:
		return "stale"
	default:
		return "searching"
	}
}

const (
	sampleInterval = 180 * time.Millisecond
	minContinuity  = 500 * time.Millisecond
	maxMisses      = 4

	commitConfidence       = 0.85
	commitConfidenceRescue = 0.88
	commitStability        = 2

	// A new detection with near-zero overlap and a sharp confidence
	// drop is treated as a swap (one bad frame), not a real move.
	swapIoU       = 0.05
	swapScoreDrop = 0.5
)

// TickOutcome reports what one tracker tick did.
type TickOutcome struct {
	State          TrackState
	Region         imgproc.TextRegion
	Sampled        bool
	Fused          Fusion
	Committed      string
	CommittedStale bool
}

// Tracker follows the most text-likely region of a live stream and
// accumulates OCR samples into a fused, eventually committed, text
// hypothesis.
type Tracker struct {
	extractor *Extractor
	now       func() time.Time

	state          TrackState
	rect           image.Rectangle
	score          float64
	misses         int
	trackingSince  time.Time
	lastSampleAt   time.Time
	window         []Sample
	fused          Fusion
	fusedOK        bool
	lastFusedText  string
	stability      int
	committed      string
	committedStale bool
}

func NewTracker(extractor *Extractor) *Tracker {
	return &Tracker{extractor: extractor, now: time.Now}
}

// Reset clears all per-region state, e.g. on mode switch or when the
// capture surface is hidden.
func (t *Tracker) Reset() {
	*t = Tracker{extractor: t.extractor, now: t.now}
}

// Tick processes one frame and returns the current tracking outcome.
func (t *Tracker) Tick(frame image.Image) TickOutcome {
	now := t.now()

	region, found := imgproc.DetectTextRegion(frame)
	if !found {
		t.miss()
		return t.outcome()
	}
	t.misses = 0

	switch t.state {
	case StateTracking:
		t.follow(region)
	default:
		// Searching, or re-finding a region after going stale: the old
		// geometry is gone, so adopt fresh and restart the continuity
		// clock. Any stale committed text is kept until recommitted.
		t.adopt(region, now)
	}

	if t.shouldSample(now) {
		t.sample(frame, now)
	}

	return t.outcome()
}

func (t *Tracker) miss() {
	t.misses++
	if t.state != StateSearching && t.misses >= maxMisses {
		log.Printf("[TRACK] Region lost after %d misses", t.misses)
		committed := t.committed
		t.Reset()
		// A previously committed hypothesis survives as stale rather
		// than vanishing, so the UI does not flicker.
		if committed != "" {
			t.committed = committed
			t.committedStale = true
			t.state = StateStale
		}
	}
}

func (t *Tracker) adopt(region imgproc.TextRegion, now time.Time) {
	t.state = StateTracking
	t.rect = region.Rect
	t.score = region.Score
	t.trackingSince = now
	t.stability = 0
}

func (t *Tracker) follow(region imgproc.TextRegion) {
	iou := imgproc.IoU(t.rect, region.Rect)

	if iou < swapIoU && region.Score < t.score*swapScoreDrop {
		// Swap: keep the previous geometry and flag the committed
		// text instead of discarding it on one bad frame.
		log.Printf("[TRACK] Region swap suspected (iou %.3f, score %.2f -> %.2f)", iou, t.score, region.Score)
		if t.committed != "" {
			t.committedStale = true
		}
		return
	}

	// Favor new data only when confidence is rising and the region
	// barely moved; otherwise smooth conservatively.
	factor := 0.35
	if region.Score > t.score && iou > 0.5 && imgproc.CenterDistance(t.rect, region.Rect) < 0.25 {
		factor = 0.6
	}
	t.rect = imgproc.BlendRect(t.rect, region.Rect, factor)
	t.score = t.score + (region.Score-t.score)*factor
	t.state = StateTracking
}

func (t *Tracker) shouldSample(now time.Time) bool {
	if t.state != StateTracking {
		return false
	}
	if now.Sub(t.trackingSince) < minContinuity {
		return false
	}
	return now.Sub(t.lastSampleAt) >= sampleInterval
}

func (t *Tracker) sample(frame image.Image, now time.Time) {
	t.lastSampleAt = now

	crop := imaging.Crop(frame, t.rect)
	extracted := t.extractor.Extract(crop)
	sample, ok := sampleFromResult(extracted, now, t.score, imgproc.TextLikelihood(crop))
	if !ok {
		return
	}

	t.window = append(t.window, sample)
	if len(t.window) > sampleWindowSize {
		t.window = t.window[1:]
	}

	fused, ok := FuseSamples(t.window)
	if !ok {
		return
	}
	t.fused = fused
	t.fusedOK = true

	if TextSimilarity(fused.Text, t.lastFusedText) >= 0.75 {
		t.stability++
	} else {
		t.stability = 1
	}
	t.lastFusedText = fused.Text

	t.tryCommit(now)
}

func (t *Tracker) tryCommit(now time.Time) {
	if t.committed != "" && !t.committedStale {
		return
	}
	if now.Sub(t.trackingSince) < minContinuity || t.stability < commitStability {
		return
	}

	required := commitConfidence
	if t.fused.Winner.Source == SourceRescued {
		required = commitConfidenceRescue
		if !t.rescueCorroborated() {
			return
		}
	}
	if t.fused.Confidence < required {
		return
	}

	log.Printf("[TRACK] Committing %q (conf %.2f, stability %d)", t.fused.Text, t.fused.Confidence, t.stability)
	t.committed = t.fused.Text
	t.committedStale = false
}

// rescueCorroborated requires two rescue hits, or one rescue hit plus
// a raw sample agreeing with the winner text.
func (t *Tracker) rescueCorroborated() bool {
	rescues := 0
	rawAgree := false
	for _, s := range t.window {
		switch s.Source {
		case SourceRescued:
			rescues++
		case SourceRaw:
			if TextSimilarity(s.Text, t.fused.Text) >= 0.5 {
				rawAgree = true
			}
		}
	}
	return rescues >= 2 || (rescues == 1 && rawAgree)
}

func (t *Tracker) outcome() TickOutcome {
	out := TickOutcome{
		State:          t.state,
		Region:         imgproc.TextRegion{Rect: t.rect, Score: t.score},
		Committed:      t.committed,
		CommittedStale: t.committedStale,
	}
	if t.fusedOK {
		out.Fused = t.fused
		out.Sampled = len(t.window) > 0
	}
	return out
}

func sampleFromResult(r Result, now time.Time, detectionScore, cropScore float64) (Sample, bool) {
	if !r.Usable() {
		return Sample{}, false
	}

	// Prefer a rescue seed when the raw pass was weak enough to need one.
	if r.Rescued && len(r.BrandSeeds) > 0 {
		seed := r.BrandSeeds[0]
		return Sample{
			Timestamp:      now,
			Text:           seed.Label,
			OCRConfidence:  seed.Confidence,
			DetectionScore: detectionScore,
			CropScore:      cropScore,
			Source:         SourceRescued,
			RescueBrand:    r.RescueBrand,
			RescueScore:    r.RescueScore,
		}, true
	}

	best := r.Seeds[0]
	for _, s := range r.Seeds[1:] {
		if s.Confidence > best.Confidence {
			best = s
		}
	}
	return Sample{
		Timestamp:      now,
		Text:           best.Label,
		OCRConfidence:  best.Confidence,
		DetectionScore: detectionScore,
		CropScore:      cropScore,
		Source:         SourceRaw,
	}, true
}
