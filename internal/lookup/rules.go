package lookup

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"
)

// BrandRule is one adaptive ranking adjustment keyed by a canonical
// brand and a resolver item id.
type BrandRule struct {
	Canonical string  `json:"canonical"`
	ItemID    string  `json:"itemId"`
	Penalty   float64 `json:"penalty,omitempty"`
	Boost     float64 `json:"boost,omitempty"`
}

// AdaptiveSnapshot is the server-supplied ranking-rules document,
// cached for the session.
type AdaptiveSnapshot struct {
	Enabled            bool        `json:"enabled"`
	KillSwitch         bool        `json:"killSwitch"`
	GeneratedAt        time.Time   `json:"generatedAt"`
	MaxPenaltyPerBrand float64     `json:"maxPenaltyPerBrand"`
	MaxBoostPerBrand   float64     `json:"maxBoostPerBrand"`
	DoNotPrefer        []BrandRule `json:"doNotPrefer"`
	Boosts             []BrandRule `json:"boosts"`
}

// Active reports whether the snapshot should influence ranking at all.
func (s *AdaptiveSnapshot) Active() bool {
	return s != nil && s.Enabled && !s.KillSwitch
}

// Adjustment returns the clamped (penalty, boost) pair for a brand and
// item. Values are clamped to the snapshot's declared maxima.
func (s *AdaptiveSnapshot) Adjustment(canonical, itemID string) (penalty, boost float64) {
	if !s.Active() {
		return 0, 0
	}
	for _, rule := range s.DoNotPrefer {
		if rule.Canonical == canonical && (rule.ItemID == "" || rule.ItemID == itemID) {
			penalty += rule.Penalty
		}
	}
	for _, rule := range s.Boosts {
		if rule.Canonical == canonical && (rule.ItemID == "" || rule.ItemID == itemID) {
			boost += rule.Boost
		}
	}
	if s.MaxPenaltyPerBrand > 0 && penalty > s.MaxPenaltyPerBrand {
		penalty = s.MaxPenaltyPerBrand
	}
	if s.MaxBoostPerBrand > 0 && boost > s.MaxBoostPerBrand {
		boost = s.MaxBoostPerBrand
	}
	return penalty, boost
}

// RulesClient fetches the adaptive snapshot once per session and
// caches it. Fetch failures degrade to an inactive snapshot.
type RulesClient struct {
	baseURL    string
	httpClient *http.Client

	mu       sync.Mutex
	snapshot *AdaptiveSnapshot
	fetched  bool
}

func NewRulesClient(baseURL string) *RulesClient {
	return &RulesClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// Snapshot returns the session snapshot, fetching it on first use.
func (c *RulesClient) Snapshot(ctx context.Context) *AdaptiveSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.fetched {
		return c.snapshot
	}
	c.fetched = true

	snapshot, err := c.fetch(ctx)
	if err != nil {
		log.Printf("[RULES] Fetch failed, ranking without adaptive rules: %v", err)
		return nil
	}
	c.snapshot = snapshot
	return c.snapshot
}

func (c *RulesClient) fetch(ctx context.Context) (*AdaptiveSnapshot, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/v1/ranking-rules", nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ranking-rules service returned status %d", resp.StatusCode)
	}

	var snapshot AdaptiveSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snapshot); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	return &snapshot, nil
}
