package resolve

import (
	"fmt"
	"sync"
	"time"
)

// DecisionKind is the terminal state of one resolution run.
type DecisionKind string

const (
	DecisionAutoAccept DecisionKind = "auto_accept"
	DecisionChoices    DecisionKind = "choices"
	DecisionManual     DecisionKind = "manual"
	DecisionNoMatch    DecisionKind = "no_match"
	DecisionSuppressed DecisionKind = "suppressed"
)

// Decision is the gate's output: either one accepted candidate, a
// short disambiguation list, or a prompt for manual input.
type Decision struct {
	Kind     DecisionKind      `json:"kind"`
	Accepted *RankedCandidate  `json:"accepted,omitempty"`
	Choices  []RankedCandidate `json:"choices,omitempty"`
	Reason   string            `json:"reason,omitempty"`
}

const maxChoices = 3

// Decide applies the confidence gate to a ranked list. topSeedConf is
// the confidence of the strongest seed that produced the list; a very
// confident seed paired with a weak best candidate means the catalogs
// disagree with the classifier and the user must arbitrate.
func Decide(topSeedConf float64, ranked []RankedCandidate, th Thresholds) Decision {
	if len(ranked) == 0 {
		return Decision{Kind: DecisionManual, Reason: "no candidates survived ranking"}
	}

	best := ranked[0]
	if topSeedConf > th.WrongButConfidentSeed && best.Combined < th.WrongButConfidentBest {
		return Decision{
			Kind:    DecisionManual,
			Choices: topChoices(ranked),
			Reason: fmt.Sprintf("classifier confident (%.2f) but best catalog match weak (%.2f)",
				topSeedConf, best.Combined),
		}
	}

	if len(ranked) >= 2 && best.Combined-ranked[1].Combined < th.AmbiguityGap {
		return Decision{
			Kind:    DecisionChoices,
			Choices: topChoices(ranked),
			Reason:  "top candidates too close to auto-accept",
		}
	}

	return Decision{Kind: DecisionAutoAccept, Accepted: &best}
}

func topChoices(ranked []RankedCandidate) []RankedCandidate {
	if len(ranked) > maxChoices {
		ranked = ranked[:maxChoices]
	}
	out := make([]RankedCandidate, len(ranked))
	copy(out, ranked)
	return out
}

// DuplicateSuppressor drops repeat auto-accepts of the same item while
// it is still visible in frame shortly after being logged.
type DuplicateSuppressor struct {
	mu       sync.Mutex
	now      func() time.Time
	window   time.Duration
	minVis   float64
	lastName string
	lastAt   time.Time
}

func NewDuplicateSuppressor(th Thresholds) *DuplicateSuppressor {
	return &DuplicateSuppressor{
		now:    time.Now,
		window: th.DuplicateWindow,
		minVis: th.DuplicateVisibility,
	}
}

// ShouldSuppress reports whether an accept for name should be dropped:
// the previous accept was textually near-identical, happened within
// the window, and the item is still well visible.
func (d *DuplicateSuppressor) ShouldSuppress(name string, visibility float64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.lastName == "" || visibility < d.minVis {
		return false
	}
	if d.now().Sub(d.lastAt) >= d.window {
		return false
	}
	return labelSimilarity(name, d.lastName) >= 0.8
}

// Record notes an accepted item so later near-duplicates can be
// suppressed.
func (d *DuplicateSuppressor) Record(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastName = name
	d.lastAt = d.now()
}
