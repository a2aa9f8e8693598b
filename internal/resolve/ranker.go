package resolve

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"

	"github.com/mealscan/mealscan/internal/lookup"
)

// Ranker resolves seeds against the nutrition catalogs and produces a
// single deduplicated, adaptively adjusted candidate list.
type Ranker struct {
	primary    lookup.Resolver
	secondary  lookup.Resolver
	thresholds Thresholds
}

func NewRanker(primary, secondary lookup.Resolver, thresholds Thresholds) *Ranker {
	return &Ranker{
		primary:    primary,
		secondary:  secondary,
		thresholds: thresholds,
	}
}

// RankOptions carries per-run context: the adaptive rules snapshot,
// the brand currently visible on-pack, the user's recent items and the
// items they corrected away from per brand.
type RankOptions struct {
	Snapshot    *lookup.AdaptiveSnapshot
	ActiveBrand string
	RecentNames []string
	AvoidItems  map[string][]string // canonical brand -> item ids
}

// Rank queries the catalogs for the top seeds concurrently and merges
// the results into one list sorted by combined confidence.
func (r *Ranker) Rank(ctx context.Context, seeds []ResolverSeed, opts RankOptions) ([]RankedCandidate, error) {
	if len(seeds) == 0 {
		return nil, nil
	}
	querySeeds := seeds
	if len(querySeeds) > r.thresholds.MaxSeedsResolved {
		querySeeds = querySeeds[:r.thresholds.MaxSeedsResolved]
	}

	type seedResult struct {
		seed       ResolverSeed
		candidates []lookup.Candidate
		err        error
	}

	results := make([]seedResult, len(querySeeds))
	var wg sync.WaitGroup
	for i, seed := range querySeeds {
		wg.Add(1)
		go func(i int, seed ResolverSeed) {
			defer wg.Done()
			candidates, err := r.resolveSeed(ctx, seed.Label)
			results[i] = seedResult{seed: seed, candidates: candidates, err: err}
		}(i, seed)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("ranking window closed: %w", err)
	}

	merged := make(map[string]RankedCandidate)
	resolvedAny := false
	for _, res := range results {
		if res.err != nil {
			log.Printf("[RANK] Seed %q failed: %v", res.seed.Label, res.err)
			continue
		}
		resolvedAny = true
		for _, cand := range res.candidates {
			ranked, ok := r.score(res.seed, cand, opts)
			if !ok {
				continue
			}
			key := dedupKey(cand)
			if existing, dup := merged[key]; !dup || ranked.Combined > existing.Combined {
				merged[key] = ranked
			}
		}
	}
	if !resolvedAny {
		return nil, fmt.Errorf("all seed lookups failed")
	}

	out := make([]RankedCandidate, 0, len(merged))
	for _, rc := range merged {
		out = append(out, rc)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Combined != out[j].Combined {
			return out[i].Combined > out[j].Combined
		}
		return out[i].Item.Name < out[j].Item.Name
	})
	return out, nil
}

// resolveSeed prefers the regional catalog and falls back to the open
// database when the regional table has nothing for the label.
func (r *Ranker) resolveSeed(ctx context.Context, label string) ([]lookup.Candidate, error) {
	candidates, err := r.primary.Lookup(ctx, label)
	if err == nil && len(candidates) > 0 {
		return candidates, nil
	}
	if err != nil {
		log.Printf("[RANK] %s lookup for %q failed, trying %s: %v", r.primary.Source(), label, r.secondary.Source(), err)
	}
	fallback, fbErr := r.secondary.Lookup(ctx, label)
	if fbErr != nil {
		if err != nil {
			return nil, fmt.Errorf("%s: %v; %s: %w", r.primary.Source(), err, r.secondary.Source(), fbErr)
		}
		return nil, fbErr
	}
	return fallback, nil
}

func (r *Ranker) score(seed ResolverSeed, cand lookup.Candidate, opts RankOptions) (RankedCandidate, bool) {
	semantic := SemanticScore(seed.Label, cand.Name, cand.Brand)
	if semantic <= r.thresholds.SemanticDiscard {
		return RankedCandidate{}, false
	}

	combined := clampFloat(seed.Confidence*cand.Confidence, r.thresholds.CombineFloor, r.thresholds.CombineCeil)
	combined *= 0.75 + 0.5*semantic

	reasons := []string{matchReason(semantic)}

	canonical := NormalizeLabel(cand.Brand)
	if canonical != "" {
		for _, avoided := range opts.AvoidItems[canonical] {
			if avoided == cand.ItemID {
				return RankedCandidate{}, false
			}
		}
	}

	if opts.Snapshot.Active() && canonical != "" && canonical == NormalizeLabel(opts.ActiveBrand) {
		penalty, boost := opts.Snapshot.Adjustment(canonical, cand.ItemID)
		factor := clampFloat(1-penalty+boost, r.thresholds.AdaptiveMin, r.thresholds.AdaptiveMax)
		if factor != 1 {
			combined *= factor
			if penalty > boost {
				reasons = append(reasons, "adaptive_penalty")
			} else {
				reasons = append(reasons, "adaptive_boost")
			}
		}
	}

	if recencyMatch(cand.Name, opts.RecentNames) {
		combined += r.thresholds.RecencyBoost
		reasons = append(reasons, "recent_item")
	}

	if combined > r.thresholds.CombineCeil {
		combined = r.thresholds.CombineCeil
	}

	return RankedCandidate{
		Item:     cand,
		Combined: combined,
		Provenance: Provenance{
			AILabel:            seed.Label,
			CombinedConfidence: combined,
			SemanticScore:      semantic,
			SeedSource:         seed.Source,
			SeedIndex:          seed.SeedIndex,
			Reasons:            reasons,
		},
	}, true
}

func matchReason(semantic float64) string {
	switch {
	case semantic >= 0.99:
		return "exact_match"
	case semantic >= 0.5:
		return "partial_match"
	default:
		return "weak_match"
	}
}

func recencyMatch(name string, recent []string) bool {
	for _, r := range recent {
		if labelSimilarity(name, r) >= 0.8 {
			return true
		}
	}
	return false
}

func dedupKey(cand lookup.Candidate) string {
	return strings.Join([]string{cand.Source, NormalizeLabel(cand.Name), NormalizeLabel(cand.Brand)}, "|")
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
