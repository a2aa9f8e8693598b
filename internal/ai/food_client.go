package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// FoodVisionClient talks to the remote food-detection service.
type FoodVisionClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewFoodVisionClient(baseURL, apiKey string, timeout time.Duration) *FoodVisionClient {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &FoodVisionClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type foodVisionRequest struct {
	Image string `json:"image"`
}

type foodVisionResponse struct {
	ScanAnalysis
	Error *serviceError `json:"error"`
}

type serviceError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (c *FoodVisionClient) AnalyzeImage(ctx context.Context, imageData []byte) (*ScanAnalysis, error) {
	reqBody := foodVisionRequest{
		Image: base64.StdEncoding.EncodeToString(imageData),
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/v1/detect", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("food vision service returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	var visionResp foodVisionResponse
	if err := json.Unmarshal(body, &visionResp); err != nil {
		return nil, fmt.Errorf("unmarshaling response: %w", err)
	}
	if visionResp.Error != nil {
		return nil, fmt.Errorf("food vision service error: %s", visionResp.Error.Message)
	}

	analysis := visionResp.ScanAnalysis
	return &analysis, nil
}
