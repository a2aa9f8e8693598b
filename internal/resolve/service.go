package resolve

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mealscan/mealscan/internal/ai"
	"github.com/mealscan/mealscan/internal/barcode"
	"github.com/mealscan/mealscan/internal/imgproc"
	"github.com/mealscan/mealscan/internal/lookup"
	"github.com/mealscan/mealscan/internal/ocr"
)

// BarcodeLookup resolves a validated numeric code to a single catalog
// record, or nil when the code is unknown.
type BarcodeLookup interface {
	Lookup(ctx context.Context, code string) (*lookup.Candidate, error)
}

// RulesProvider supplies the adaptive ranking snapshot.
type RulesProvider interface {
	Snapshot(ctx context.Context) *lookup.AdaptiveSnapshot
}

// FeedbackSink receives scan outcome telemetry.
type FeedbackSink interface {
	Submit(ctx context.Context, outcome lookup.Outcome)
}

// AnchorIndex recognizes previously accepted items by perceptual image
// hash, as the last fallback before giving up on a frame.
type AnchorIndex interface {
	Remember(img image.Image, item lookup.Candidate) error
	Match(img image.Image) (*lookup.Candidate, bool)
}

// History exposes the user's scan log for recency boosts, brand-avoid
// filtering and outcome recording.
type History interface {
	RecentNames(ctx context.Context, userID string, limit int) ([]string, error)
	AvoidMap(ctx context.Context, userID string) (map[string][]string, error)
	LogScan(ctx context.Context, record ScanRecord) error
	RecordAvoid(ctx context.Context, userID, canonicalBrand, itemID string) error
	RecordItem(ctx context.Context, userID, name string) error
}

// ScanRecord is one row of the scan log.
type ScanRecord struct {
	UserID    string
	ScanLogID string
	Name      string
	Brand     string
	ItemID    string
	Source    string
	Decision  DecisionKind
	Combined  float64
}

// ScanRequest is one captured frame plus its capture context.
type ScanRequest struct {
	UserID        string
	Image         image.Image
	ImageData     []byte // encoded copy sent to the remote services
	SelectedLabel string // user-picked label, wins over all signals
	Visibility    float64

	// CommittedText is a fused on-pack text hypothesis from the live
	// tracker, seeded alongside the single-frame OCR pass.
	CommittedText       string
	CommittedConfidence float64
}

// SessionUpdate is one server-sent event payload.
type SessionUpdate struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// ScanSession tracks one resolution run from capture to decision. All
// fields except Updates are written only by the resolution goroutine.
type ScanSession struct {
	ID          string
	UserID      string
	Status      string // analyzing | complete | needs_input | cancelled | error
	StartedAt   time.Time
	CompletedAt *time.Time
	ScanLogID   string
	Barcode     string
	Seeds       []ResolverSeed
	Decision    *Decision
	Updates     chan SessionUpdate
	CancelFunc  context.CancelFunc
}

// Service fuses barcode, OCR and remote classifier signals for one
// frame and gates the result into a decision.
type Service struct {
	vision    ai.VisionService
	dish      ai.DishService
	extractor *ocr.Extractor
	decoder   *barcode.Decoder
	barcodes  BarcodeLookup
	ranker    *Ranker
	rules     RulesProvider
	feedback  FeedbackSink
	anchors   AnchorIndex
	history   History

	thresholds Thresholds
	guard      RunGuard
	suppressor *DuplicateSuppressor

	sessions   map[string]*ScanSession
	sessionsMu sync.RWMutex

	cache   map[string]Decision
	cacheMu sync.Mutex
}

func NewService(
	vision ai.VisionService,
	dish ai.DishService,
	extractor *ocr.Extractor,
	decoder *barcode.Decoder,
	barcodes BarcodeLookup,
	ranker *Ranker,
	rules RulesProvider,
	feedback FeedbackSink,
	anchors AnchorIndex,
	history History,
	thresholds Thresholds,
) *Service {
	return &Service{
		vision:     vision,
		dish:       dish,
		extractor:  extractor,
		decoder:    decoder,
		barcodes:   barcodes,
		ranker:     ranker,
		rules:      rules,
		feedback:   feedback,
		anchors:    anchors,
		history:    history,
		thresholds: thresholds,
		suppressor: NewDuplicateSuppressor(thresholds),
		sessions:   make(map[string]*ScanSession),
		cache:      make(map[string]Decision),
	}
}

// StartScan opens a session and resolves the frame in the background,
// streaming progress over the session's Updates channel. A new scan
// cancels any scan still in flight.
func (s *Service) StartScan(req ScanRequest) (*ScanSession, error) {
	if req.Image == nil {
		return nil, fmt.Errorf("scan request has no image")
	}

	runID, runCtx := s.guard.Begin(context.Background())
	ctx, cancel := context.WithTimeout(runCtx, s.thresholds.ResolveEnvelope)

	session := &ScanSession{
		ID:         uuid.New().String(),
		UserID:     req.UserID,
		Status:     "analyzing",
		StartedAt:  time.Now(),
		Updates:    make(chan SessionUpdate, 100),
		CancelFunc: cancel,
	}

	s.sessionsMu.Lock()
	s.sessions[session.ID] = session
	s.sessionsMu.Unlock()

	go s.runResolution(ctx, runID, session, req)

	return session, nil
}

// GetSession returns a session by id.
func (s *Service) GetSession(sessionID string) (*ScanSession, bool) {
	s.sessionsMu.RLock()
	defer s.sessionsMu.RUnlock()
	session, exists := s.sessions[sessionID]
	return session, exists
}

// StopScan cancels a running session.
func (s *Service) StopScan(sessionID string) error {
	s.sessionsMu.RLock()
	session, exists := s.sessions[sessionID]
	s.sessionsMu.RUnlock()

	if !exists {
		return fmt.Errorf("session not found")
	}
	if session.CancelFunc != nil {
		log.Printf("[SCAN] Stopping session %s", sessionID)
		session.CancelFunc()
	}
	return nil
}

func (s *Service) runResolution(ctx context.Context, runID uint64, session *ScanSession, req ScanRequest) {
	defer close(session.Updates)

	log.Printf("[SCAN] Starting resolution for session %s", session.ID)
	session.Updates <- SessionUpdate{Type: "analyzing", Data: map[string]interface{}{"session_id": session.ID}}

	cacheKey := imgproc.HashHex(imgproc.DHash(req.Image)) + "|" + NormalizeLabel(req.SelectedLabel)
	if decision, ok := s.cachedDecision(cacheKey); ok {
		log.Printf("[SCAN] Serving session %s from frame cache", session.ID)
		s.finish(runID, session, req, decision, "")
		return
	}

	// A clean barcode read short-circuits the whole text path.
	if code := s.decoder.Decode(req.Image); code != "" {
		session.Barcode = code
		if decision, ok := s.resolveBarcode(ctx, code); ok {
			s.finish(runID, session, req, decision, cacheKey)
			return
		}
		log.Printf("[SCAN] Barcode %s not in catalog, falling through to text resolution", code)
	}

	// A cancelled context means the run was superseded or stopped and
	// the result is unwanted. An expired envelope is different: the
	// frame was already paid for, so degrade through ranking and the
	// quick fallback instead of dropping the scan.
	sig := s.gatherSignals(ctx, req)
	if err := ctx.Err(); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		s.cancelSession(session)
		return
	}

	if sig.analysis != nil && sig.analysis.NeedsRecapture {
		hint := sig.analysis.RecaptureHint
		if hint == "" {
			hint = "Could not read the frame. Try moving closer or improving the light."
		}
		s.finish(runID, session, req, Decision{Kind: DecisionManual, Reason: hint}, "")
		return
	}

	seeds := BuildSeeds(s.seedInput(req, sig), s.thresholds.MaxSeeds)
	session.Seeds = seeds
	session.Updates <- SessionUpdate{Type: "seeds", Data: map[string]interface{}{
		"session_id": session.ID,
		"seeds":      seeds,
	}}

	if len(seeds) == 0 {
		s.finish(runID, session, req, s.noSeedFallback(req), cacheKey)
		return
	}

	decision := s.rankAndGate(ctx, session, req, seeds, sig)
	s.finish(runID, session, req, decision, cacheKey)
}

// signals holds the raw concurrent results for one frame.
type signals struct {
	ocrResult ocr.Result
	analysis  *ai.ScanAnalysis
	dishPreds []ai.Prediction
}

func (s *Service) gatherSignals(ctx context.Context, req ScanRequest) signals {
	var (
		wg  sync.WaitGroup
		out signals
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		out.ocrResult = s.extractor.Extract(req.Image)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		analysis, err := s.vision.AnalyzeImage(ctx, req.ImageData)
		if err != nil {
			log.Printf("[SCAN] Vision analysis failed: %v", err)
			return
		}
		out.analysis = analysis
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		preds, circuitOpen, err := s.dish.ClassifyDish(ctx, req.ImageData)
		if err != nil {
			log.Printf("[SCAN] Dish classification failed: %v", err)
			return
		}
		if circuitOpen {
			log.Printf("[SCAN] Dish classifier circuit open, skipping dish seeds")
			return
		}
		out.dishPreds = preds
	}()

	wg.Wait()
	return out
}

func (s *Service) seedInput(req ScanRequest, sig signals) SeedInput {
	input := SeedInput{
		Selected: req.SelectedLabel,
		Dish:     sig.dishPreds,
	}

	if req.CommittedText != "" {
		confidence := req.CommittedConfidence
		if confidence == 0 {
			confidence = 0.85
		}
		input.OCRText = append(input.OCRText, ai.Prediction{Label: req.CommittedText, Confidence: confidence})
	}
	for _, seed := range sig.ocrResult.Seeds {
		input.OCRText = append(input.OCRText, ai.Prediction{Label: seed.Label, Confidence: seed.Confidence})
	}
	for _, seed := range sig.ocrResult.BrandSeeds {
		input.OCRBrand = append(input.OCRBrand, ai.Prediction{Label: seed.Label, Confidence: seed.Confidence})
	}
	input.OCRTokens = labelTokens(NormalizeLabel(sig.ocrResult.RawText))

	if sig.analysis != nil {
		if sig.analysis.TopMatch != nil {
			input.Vision = append(input.Vision, *sig.analysis.TopMatch)
		}
		input.Vision = append(input.Vision, sig.analysis.Alternatives...)
		input.OCRBrand = append(input.OCRBrand, sig.analysis.BrandCandidates...)
		input.Dish = append(input.Dish, sig.analysis.DishPredictions...)
	}
	return input
}

func (s *Service) resolveBarcode(ctx context.Context, code string) (Decision, bool) {
	hit, err := s.barcodes.Lookup(ctx, code)
	if err != nil {
		log.Printf("[SCAN] Barcode lookup for %s failed: %v", code, err)
		return Decision{}, false
	}
	if hit == nil {
		return Decision{}, false
	}
	log.Printf("[SCAN] Barcode %s resolved to %q", code, hit.Name)
	return Decision{
		Kind: DecisionAutoAccept,
		Accepted: &RankedCandidate{
			Item:     *hit,
			Combined: hit.Confidence,
			Provenance: Provenance{
				AILabel:            code,
				CombinedConfidence: hit.Confidence,
				SemanticScore:      1,
				Reasons:            []string{"barcode_hit"},
			},
		},
	}, true
}

// noSeedFallback runs when neither classifier nor OCR produced a
// usable label: try the anchor index, else ask the user.
func (s *Service) noSeedFallback(req ScanRequest) Decision {
	if item, ok := s.anchors.Match(req.Image); ok {
		log.Printf("[SCAN] Anchor match: %q", item.Name)
		return Decision{
			Kind: DecisionAutoAccept,
			Accepted: &RankedCandidate{
				Item:     *item,
				Combined: item.Confidence,
				Provenance: Provenance{
					CombinedConfidence: item.Confidence,
					SemanticScore:      1,
					Reasons:            []string{"anchor_match"},
				},
			},
		}
	}
	return Decision{Kind: DecisionNoMatch, Reason: "no readable signal in frame"}
}

func (s *Service) rankAndGate(ctx context.Context, session *ScanSession, req ScanRequest, seeds []ResolverSeed, sig signals) Decision {
	opts := RankOptions{
		Snapshot:    s.rules.Snapshot(ctx),
		ActiveBrand: sig.ocrResult.RescueBrand,
	}
	if recent, err := s.history.RecentNames(ctx, req.UserID, s.thresholds.RecencyDepth); err == nil {
		opts.RecentNames = recent
	} else {
		log.Printf("[SCAN] Recent-items fetch failed: %v", err)
	}
	if avoid, err := s.history.AvoidMap(ctx, req.UserID); err == nil {
		opts.AvoidItems = avoid
	} else {
		log.Printf("[SCAN] Brand-avoid fetch failed: %v", err)
	}

	ranked, err := s.ranker.Rank(ctx, seeds, opts)
	if err != nil {
		if ctx.Err() != nil {
			log.Printf("[SCAN] Resolution envelope expired, trying quick single-seed lookup")
			return s.quickFallback(seeds[0], opts)
		}
		log.Printf("[SCAN] Ranking failed: %v", err)
		return Decision{Kind: DecisionManual, Reason: "catalog lookups failed"}
	}

	session.Updates <- SessionUpdate{Type: "candidates", Data: map[string]interface{}{
		"session_id": session.ID,
		"candidates": ranked,
	}}

	return Decide(seeds[0].Confidence, ranked, s.thresholds)
}

// quickFallback resolves only the top seed on a short fresh deadline
// after the main envelope has expired. Degraded, but better than
// returning nothing for a frame we already paid for.
func (s *Service) quickFallback(top ResolverSeed, opts RankOptions) Decision {
	ctx, cancel := context.WithTimeout(context.Background(), s.thresholds.QuickLookup)
	defer cancel()

	ranked, err := s.ranker.Rank(ctx, []ResolverSeed{top}, opts)
	if err != nil || len(ranked) == 0 {
		return Decision{Kind: DecisionManual, Reason: "resolution timed out"}
	}
	return Decide(top.Confidence, ranked, s.thresholds)
}

func (s *Service) finish(runID uint64, session *ScanSession, req ScanRequest, decision Decision, cacheKey string) {
	if !s.guard.IsCurrent(runID) {
		log.Printf("[SCAN] Session %s superseded, dropping result", session.ID)
		s.cancelSession(session)
		return
	}

	if decision.Kind == DecisionAutoAccept && decision.Accepted != nil {
		if s.suppressor.ShouldSuppress(decision.Accepted.Item.Name, req.Visibility) {
			log.Printf("[SCAN] Suppressing duplicate accept of %q", decision.Accepted.Item.Name)
			decision = Decision{Kind: DecisionSuppressed, Reason: "item was just logged and is still in frame"}
		} else {
			s.suppressor.Record(decision.Accepted.Item.Name)
			s.commitAccept(session, req, decision.Accepted)
		}
	}

	if cacheKey != "" {
		s.storeDecision(cacheKey, decision)
	}

	session.Decision = &decision
	now := time.Now()
	session.CompletedAt = &now

	updateType := "complete"
	switch decision.Kind {
	case DecisionChoices:
		session.Status = "needs_input"
		updateType = "choices"
	case DecisionManual, DecisionNoMatch:
		session.Status = "needs_input"
		updateType = "needs_input"
	default:
		session.Status = "complete"
	}

	session.Updates <- SessionUpdate{Type: updateType, Data: map[string]interface{}{
		"session_id":  session.ID,
		"decision":    decision,
		"scan_log_id": session.ScanLogID,
		"elapsed":     time.Since(session.StartedAt).String(),
	}}
	log.Printf("[SCAN] Session %s finished: %s (%.2fs)", session.ID, decision.Kind, time.Since(session.StartedAt).Seconds())
}

func (s *Service) commitAccept(session *ScanSession, req ScanRequest, accepted *RankedCandidate) {
	// The resolution envelope may already be spent by the time a
	// decision lands; commit on its own short deadline so an accepted
	// scan is never lost to the clock.
	ctx, cancel := context.WithTimeout(context.Background(), s.thresholds.QuickLookup)
	defer cancel()

	session.ScanLogID = uuid.New().String()

	if err := s.history.LogScan(ctx, ScanRecord{
		UserID:    req.UserID,
		ScanLogID: session.ScanLogID,
		Name:      accepted.Item.Name,
		Brand:     accepted.Item.Brand,
		ItemID:    accepted.Item.ItemID,
		Source:    accepted.Item.Source,
		Decision:  DecisionAutoAccept,
		Combined:  accepted.Combined,
	}); err != nil {
		log.Printf("[SCAN] Scan log write failed: %v", err)
	}

	if err := s.anchors.Remember(req.Image, accepted.Item); err != nil {
		log.Printf("[SCAN] Anchor store failed: %v", err)
	}
}

func (s *Service) cancelSession(session *ScanSession) {
	session.Status = "cancelled"
	select {
	case session.Updates <- SessionUpdate{Type: "cancelled", Data: map[string]interface{}{
		"message": "Scan cancelled",
	}}:
	default:
	}
}

// Confirm records that the user accepted the decision. itemID selects
// among the offered choices; empty means the auto-accepted candidate.
func (s *Service) Confirm(ctx context.Context, sessionID, itemID string) error {
	session, chosen, err := s.sessionCandidate(sessionID, itemID)
	if err != nil {
		return err
	}

	s.feedback.Submit(ctx, lookup.Outcome{
		ScanLogID: session.ScanLogID,
		Kind:      "confirmed",
		Name:      chosen.Item.Name,
		Brand:     chosen.Item.Brand,
		ItemID:    chosen.Item.ItemID,
	})
	if err := s.history.RecordItem(ctx, session.UserID, chosen.Item.Name); err != nil {
		log.Printf("[SCAN] Recent-item write failed: %v", err)
	}
	return nil
}

// Correct records that the user replaced the decision with their own
// label. The rejected item is added to the brand-avoid map so it is
// not re-suggested under that brand.
func (s *Service) Correct(ctx context.Context, sessionID, correctedName string) error {
	session, exists := s.GetSession(sessionID)
	if !exists {
		return fmt.Errorf("session not found")
	}
	if correctedName == "" {
		return fmt.Errorf("corrected name is required")
	}

	var rejected *RankedCandidate
	if session.Decision != nil {
		rejected = session.Decision.Accepted
	}

	outcome := lookup.Outcome{
		ScanLogID: session.ScanLogID,
		Kind:      "corrected",
		Corrected: correctedName,
	}
	if rejected != nil {
		outcome.Name = rejected.Item.Name
		outcome.Brand = rejected.Item.Brand
		outcome.ItemID = rejected.Item.ItemID

		if canonical := NormalizeLabel(rejected.Item.Brand); canonical != "" {
			if err := s.history.RecordAvoid(ctx, session.UserID, canonical, rejected.Item.ItemID); err != nil {
				log.Printf("[SCAN] Brand-avoid write failed: %v", err)
			}
		}
	}
	s.feedback.Submit(ctx, outcome)

	if err := s.history.RecordItem(ctx, session.UserID, correctedName); err != nil {
		log.Printf("[SCAN] Recent-item write failed: %v", err)
	}
	return nil
}

func (s *Service) sessionCandidate(sessionID, itemID string) (*ScanSession, *RankedCandidate, error) {
	session, exists := s.GetSession(sessionID)
	if !exists {
		return nil, nil, fmt.Errorf("session not found")
	}
	if session.Decision == nil {
		return nil, nil, fmt.Errorf("session has no decision yet")
	}

	if itemID == "" {
		if session.Decision.Accepted == nil {
			return nil, nil, fmt.Errorf("no accepted candidate to confirm")
		}
		return session, session.Decision.Accepted, nil
	}
	for i := range session.Decision.Choices {
		if session.Decision.Choices[i].Item.ItemID == itemID {
			return session, &session.Decision.Choices[i], nil
		}
	}
	if session.Decision.Accepted != nil && session.Decision.Accepted.Item.ItemID == itemID {
		return session, session.Decision.Accepted, nil
	}
	return nil, nil, fmt.Errorf("item %s not among offered candidates", itemID)
}

const maxCachedDecisions = 32

func (s *Service) cachedDecision(key string) (Decision, bool) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	decision, ok := s.cache[key]
	return decision, ok
}

func (s *Service) storeDecision(key string, decision Decision) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if len(s.cache) >= maxCachedDecisions {
		for k := range s.cache {
			delete(s.cache, k)
			break
		}
	}
	s.cache[key] = decision
}
