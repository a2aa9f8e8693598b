package lookup

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const defaultLookupTimeout = 7500 * time.Millisecond

// RegionalClient queries the regional food-composition table. It is
// the preferred resolver: its records carry curated per-100g macros.
type RegionalClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewRegionalClient(baseURL, apiKey string) *RegionalClient {
	return &RegionalClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: defaultLookupTimeout,
		},
	}
}

func (c *RegionalClient) Source() string { return "regional" }

type regionalResponse struct {
	Best       *regionalItem  `json:"best"`
	Candidates []regionalItem `json:"candidates"`
}

type regionalItem struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Brand      string          `json:"brand"`
	Confidence float64         `json:"confidence"`
	Per100g    Macros          `json:"per_100g"`
	Raw        json.RawMessage `json:"raw"`
}

func (c *RegionalClient) Lookup(ctx context.Context, label string) ([]Candidate, error) {
	params := url.Values{}
	params.Set("q", label)
	params.Set("limit", "8")

	resp, err := c.get(ctx, "/v1/foods/search?"+params.Encode())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("regional lookup returned status %d", resp.StatusCode)
	}

	var decoded regionalResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decoding regional response: %w", err)
	}

	items := decoded.Candidates
	if decoded.Best != nil {
		items = append([]regionalItem{*decoded.Best}, items...)
	}

	candidates := make([]Candidate, 0, len(items))
	for _, item := range items {
		candidates = append(candidates, Candidate{
			Name:       item.Name,
			Brand:      item.Brand,
			Per100g:    item.Per100g,
			Confidence: item.Confidence,
			Source:     c.Source(),
			ItemID:     item.ID,
			Raw:        item.Raw,
		})
	}
	return candidates, nil
}

func (c *RegionalClient) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	return resp, nil
}

// OpenFoodClient queries the generic open product database, used when
// the regional table returns nothing for a label.
type OpenFoodClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewOpenFoodClient(baseURL string) *OpenFoodClient {
	return &OpenFoodClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: defaultLookupTimeout,
		},
	}
}

func (c *OpenFoodClient) Source() string { return "openfood" }

type openFoodResponse struct {
	Products []openFoodProduct `json:"products"`
}

type openFoodProduct struct {
	Code        string          `json:"code"`
	ProductName string          `json:"product_name"`
	Brands      string          `json:"brands"`
	Score       float64         `json:"score"`
	Nutriments  openNutriments  `json:"nutriments"`
	Raw         json.RawMessage `json:"raw"`
	ImageURL    string          `json:"image_url"`
}

type openNutriments struct {
	EnergyKcal100g float64 `json:"energy-kcal_100g"`
	Proteins100g   float64 `json:"proteins_100g"`
	Carbs100g      float64 `json:"carbohydrates_100g"`
	Fat100g        float64 `json:"fat_100g"`
}

func (c *OpenFoodClient) Lookup(ctx context.Context, label string) ([]Candidate, error) {
	params := url.Values{}
	params.Set("search_terms", label)
	params.Set("page_size", "8")

	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/cgi/search.pl?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("open food lookup returned status %d", resp.StatusCode)
	}

	var decoded openFoodResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decoding open food response: %w", err)
	}

	candidates := make([]Candidate, 0, len(decoded.Products))
	for _, p := range decoded.Products {
		if p.ProductName == "" {
			continue
		}
		confidence := p.Score
		if confidence == 0 {
			// The open database does not score; assume a modest prior.
			confidence = 0.5
		}
		candidates = append(candidates, Candidate{
			Name:       p.ProductName,
			Brand:      p.Brands,
			Confidence: confidence,
			Source:     c.Source(),
			ItemID:     p.Code,
			ImageURL:   p.ImageURL,
			Per100g: Macros{
				Calories: p.Nutriments.EnergyKcal100g,
				Protein:  p.Nutriments.Proteins100g,
				Carbs:    p.Nutriments.Carbs100g,
				Fat:      p.Nutriments.Fat100g,
			},
			Raw: p.Raw,
		})
	}
	return candidates, nil
}

// BarcodeClient resolves a validated numeric code to a single product
// record, or nil when the code is unknown.
type BarcodeClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewBarcodeClient(baseURL string) *BarcodeClient {
	return &BarcodeClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: defaultLookupTimeout,
		},
	}
}

type barcodeResponse struct {
	Found   bool            `json:"found"`
	Product openFoodProduct `json:"product"`
}

func (c *BarcodeClient) Lookup(ctx context.Context, code string) (*Candidate, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/v1/products/"+url.PathEscape(code), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("barcode lookup returned status %d", resp.StatusCode)
	}

	var decoded barcodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decoding barcode response: %w", err)
	}
	if !decoded.Found {
		return nil, nil
	}

	p := decoded.Product
	return &Candidate{
		Name:       p.ProductName,
		Brand:      p.Brands,
		Confidence: 0.97, // exact barcode hit
		Source:     "barcode",
		ItemID:     p.Code,
		ImageURL:   p.ImageURL,
		Per100g: Macros{
			Calories: p.Nutriments.EnergyKcal100g,
			Protein:  p.Nutriments.Proteins100g,
			Carbs:    p.Nutriments.Carbs100g,
			Fat:      p.Nutriments.Fat100g,
		},
		Raw: p.Raw,
	}, nil
}
