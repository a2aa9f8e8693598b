package resolve

import (
	"testing"
	"time"

	"github.com/mealscan/mealscan/internal/lookup"
)

func rankedWith(scores ...float64) []RankedCandidate {
	out := make([]RankedCandidate, len(scores))
	for i, s := range scores {
		out[i] = RankedCandidate{
			Item:     lookup.Candidate{Name: "item", ItemID: "id"},
			Combined: s,
		}
	}
	return out
}

func TestDecideAutoAccept(t *testing.T) {
	decision := Decide(0.9, rankedWith(0.85, 0.6), DefaultThresholds())
	if decision.Kind != DecisionAutoAccept {
		t.Fatalf("expected auto accept, got %s (%s)", decision.Kind, decision.Reason)
	}
	if decision.Accepted == nil || decision.Accepted.Combined != 0.85 {
		t.Errorf("unexpected accepted candidate: %+v", decision.Accepted)
	}
}

func TestDecideAmbiguityGap(t *testing.T) {
	decision := Decide(0.9, rankedWith(0.70, 0.65, 0.55, 0.40), DefaultThresholds())
	if decision.Kind != DecisionChoices {
		t.Fatalf("gap 0.05 < 0.07 should yield choices, got %s", decision.Kind)
	}
	if len(decision.Choices) != 3 {
		t.Errorf("expected top 3 choices, got %d", len(decision.Choices))
	}
}

func TestDecideWrongButConfident(t *testing.T) {
	decision := Decide(0.85, rankedWith(0.45, 0.2), DefaultThresholds())
	if decision.Kind != DecisionManual {
		t.Fatalf("confident seed with weak best match should go manual, got %s", decision.Kind)
	}
	if len(decision.Choices) == 0 {
		t.Error("manual decision should still offer the weak candidates")
	}
}

func TestDecideEmpty(t *testing.T) {
	decision := Decide(0.9, nil, DefaultThresholds())
	if decision.Kind != DecisionManual {
		t.Errorf("expected manual on empty list, got %s", decision.Kind)
	}
}

func TestDuplicateSuppressor(t *testing.T) {
	now := time.Now()
	d := NewDuplicateSuppressor(DefaultThresholds())
	d.now = func() time.Time { return now }

	if d.ShouldSuppress("Greek Yogurt", 0.9) {
		t.Error("nothing recorded yet, should not suppress")
	}

	d.Record("Greek Yogurt")

	now = now.Add(2 * time.Second)
	if !d.ShouldSuppress("greek yogurt", 0.9) {
		t.Error("near-identical name within window and visible should suppress")
	}
	if d.ShouldSuppress("greek yogurt", 0.3) {
		t.Error("low visibility means the item left frame, should not suppress")
	}
	if d.ShouldSuppress("banana bread", 0.9) {
		t.Error("different item should not suppress")
	}

	now = now.Add(3 * time.Second)
	if d.ShouldSuppress("greek yogurt", 0.9) {
		t.Error("window expired, should not suppress")
	}
}
