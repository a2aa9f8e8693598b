package lookup

import (
	"context"
	"encoding/json"
)

// Macros are nutrition values per 100g.
type Macros struct {
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fat      float64 `json:"fat"`
}

// Candidate is one nutrition record returned by a resolver service.
// It lives only for the duration of one scan.
type Candidate struct {
	Name       string          `json:"name"`
	Brand      string          `json:"brand,omitempty"`
	Per100g    Macros          `json:"per_100g"`
	Confidence float64         `json:"confidence"`
	Source     string          `json:"source"`
	ItemID     string          `json:"item_id,omitempty"`
	ImageURL   string          `json:"image_url,omitempty"`
	Raw        json.RawMessage `json:"raw,omitempty"`
}

// Resolver maps a free-text label to ranked nutrition candidates.
type Resolver interface {
	Lookup(ctx context.Context, label string) ([]Candidate, error)
	Source() string
}
