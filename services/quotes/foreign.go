package quotes

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// Foreign quote API URL (Yahoo-style chart endpoint)
const ForeignQuoteAPIURL = "https://query1.finance.yahoo.com/v8/finance/chart"

// ForeignQuoteResponse represents the foreign quote API response
type ForeignQuoteResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol             string  `json:"symbol"`
				Currency           string  `json:"currency"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
			} `json:"meta"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// ForeignClient fetches quotes for overseas symbols (e.g. AAPL).
type ForeignClient struct {
	baseURL string
	client  *http.Client
}

// NewForeignClient creates a foreign quote client. An empty baseURL uses the
// production endpoint.
func NewForeignClient(baseURL string) *ForeignClient {
	if baseURL == "" {
		baseURL = ForeignQuoteAPIURL
	}
	return &ForeignClient{
		baseURL: baseURL,
		client:  newHTTPClient(),
	}
}

// FetchPrice fetches the current traded price for a foreign symbol.
func (c *ForeignClient) FetchPrice(ctx context.Context, ticker string) (*Quote, error) {
	url := fmt.Sprintf("%s/%s?interval=1m&range=1d", c.baseURL, ticker)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch foreign quote for %s: %w", ticker, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		log.Printf("Foreign quote API error for %s: status=%d, body=%s", ticker, resp.StatusCode, string(body))
		return nil, fmt.Errorf("foreign quote API error for %s (status %d)", ticker, resp.StatusCode)
	}

	var response ForeignQuoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to parse foreign quote for %s: %w", ticker, err)
	}

	if response.Chart.Error != nil {
		return nil, fmt.Errorf("foreign quote API error for %s: %s", ticker, response.Chart.Error.Description)
	}
	if len(response.Chart.Result) == 0 {
		return nil, fmt.Errorf("no quote data for %s", ticker)
	}

	return &Quote{
		Price:     decimal.NewFromFloat(response.Chart.Result[0].Meta.RegularMarketPrice),
		FetchedAt: time.Now(),
	}, nil
}
