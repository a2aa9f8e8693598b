package lookup

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"
)

// Outcome is a free-form scan outcome report keyed by scan-log id.
type Outcome struct {
	ScanLogID string `json:"scan_log_id"`
	Kind      string `json:"kind"` // confirmed | corrected | not_food | bad_photo
	Name      string `json:"name,omitempty"`
	Corrected string `json:"corrected,omitempty"`
	Brand     string `json:"brand,omitempty"`
	ItemID    string `json:"item_id,omitempty"`
}

// FeedbackClient sends scan outcome telemetry. Submission is strictly
// best-effort: every failure is logged and swallowed.
type FeedbackClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewFeedbackClient(baseURL string) *FeedbackClient {
	return &FeedbackClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

func (c *FeedbackClient) Submit(ctx context.Context, outcome Outcome) {
	if c.baseURL == "" || outcome.ScanLogID == "" {
		return
	}

	jsonData, err := json.Marshal(outcome)
	if err != nil {
		log.Printf("[FEEDBACK] Marshal failed: %v", err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/v1/feedback", bytes.NewBuffer(jsonData))
	if err != nil {
		log.Printf("[FEEDBACK] Request build failed: %v", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("[FEEDBACK] Submit failed: %v", err)
		return
	}
	resp.Body.Close()
}
