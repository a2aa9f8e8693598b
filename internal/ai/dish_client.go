package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// DishClient talks to the dish-classification service.
type DishClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewDishClient(baseURL, apiKey string, timeout time.Duration) *DishClient {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &DishClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type dishRequest struct {
	Image string `json:"image"`
	TopK  int    `json:"top_k"`
}

type dishResponse struct {
	Predictions []Prediction  `json:"predictions"`
	CircuitOpen bool          `json:"circuit_open"`
	Error       *serviceError `json:"error"`
}

// ClassifyDish returns up to 5 dish predictions. A true circuit-open
// flag means the classifier is temporarily down and the caller should
// proceed without dish seeds.
func (c *DishClient) ClassifyDish(ctx context.Context, imageData []byte) ([]Prediction, bool, error) {
	reqBody := dishRequest{
		Image: base64.StdEncoding.EncodeToString(imageData),
		TopK:  5,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, false, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/v1/dish", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, false, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("dish service returned status %d", resp.StatusCode)
	}

	var dishResp dishResponse
	if err := json.NewDecoder(resp.Body).Decode(&dishResp); err != nil {
		return nil, false, fmt.Errorf("decoding response: %w", err)
	}
	if dishResp.Error != nil {
		return nil, false, fmt.Errorf("dish service error: %s", dishResp.Error.Message)
	}

	return dishResp.Predictions, dishResp.CircuitOpen, nil
}
