package resolve

import (
	"testing"

	"github.com/mealscan/mealscan/internal/barcode"
	"github.com/mealscan/mealscan/internal/lookup"
	"github.com/mealscan/mealscan/internal/ocr"
)

func TestLiveScannerBarcodeTrigger(t *testing.T) {
	barcodes := &fakeBarcodeLookup{hit: &lookup.Candidate{
		Name: "Muesli Bar", ItemID: "b-1", Confidence: 0.97, Source: "barcode",
	}}
	fx := newFixture(t, &fakeVision{}, &fakeResolver{source: "regional"}, fakeNative{code: "4006381333931"}, barcodes)

	stream := barcode.NewStreamDecoder(barcode.NewDecoder(fakeNative{code: "4006381333931"}))
	tracker := ocr.NewTracker(ocr.NewExtractor(fakeOCREngine{}, nil))
	live := NewLiveScanner(fx.service, stream, tracker, "u1")

	// First sighting arms the stability gate, the second fires.
	out, err := live.ObserveFrame(testFrame(), nil, 0.9)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Barcode != "" || out.Session != nil {
		t.Fatalf("first sighting must not fire: %+v", out)
	}

	out, err = live.ObserveFrame(testFrame(), nil, 0.9)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Barcode != "4006381333931" {
		t.Fatalf("second sighting should fire the code, got %q", out.Barcode)
	}
	if out.Session == nil {
		t.Fatal("stable barcode should start a resolution run")
	}
	if d := drain(t, out.Session); d.Kind != DecisionAutoAccept {
		t.Errorf("expected barcode auto accept, got %s", d.Kind)
	}

	// The handled code is debounced; the next frame is quiet.
	out, err = live.ObserveFrame(testFrame(), nil, 0.9)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Barcode != "" || out.Session != nil {
		t.Errorf("debounced code must not re-fire: %+v", out)
	}
}

func TestLiveScannerResetClearsCommit(t *testing.T) {
	fx := newFixture(t, &fakeVision{}, &fakeResolver{source: "regional"}, nil, &fakeBarcodeLookup{})

	stream := barcode.NewStreamDecoder(barcode.NewDecoder(nil))
	tracker := ocr.NewTracker(ocr.NewExtractor(fakeOCREngine{}, nil))
	live := NewLiveScanner(fx.service, stream, tracker, "u1")
	live.lastCommitted = "nutella"

	live.Reset()
	if live.lastCommitted != "" {
		t.Error("reset should forget the last committed hypothesis")
	}
}

func TestCommittedTextBecomesSeed(t *testing.T) {
	vision := &fakeVision{}
	primary := &fakeResolver{
		source: "regional",
		results: map[string][]lookup.Candidate{
			"nutella": {
				{Name: "Nutella", Brand: "Ferrero", ItemID: "r-1", Confidence: 0.9, Source: "regional"},
			},
		},
	}
	fx := newFixture(t, vision, primary, nil, &fakeBarcodeLookup{})

	session, err := fx.service.StartScan(ScanRequest{
		UserID:              "u1",
		Image:               testFrame(),
		Visibility:          0.9,
		CommittedText:       "Nutella",
		CommittedConfidence: 0.9,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	decision := drain(t, session)

	if len(session.Seeds) != 1 || session.Seeds[0].Source != SourceOCRText {
		t.Fatalf("committed text should seed as OCR text, got %+v", session.Seeds)
	}
	if session.Seeds[0].Confidence != 0.9 {
		t.Errorf("committed confidence should carry through, got %.2f", session.Seeds[0].Confidence)
	}
	if decision.Kind != DecisionAutoAccept {
		t.Errorf("expected auto accept from committed seed, got %s (%s)", decision.Kind, decision.Reason)
	}
}
