package quotes

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Domestic quote API URL (mobile endpoint, no auth required)
const DomesticQuoteAPIURL = "https://m.stock.naver.com/api/stock"

// DomesticQuoteResponse represents the domestic quote API response.
// Prices arrive as strings with thousands separators ("71,200").
type DomesticQuoteResponse struct {
	ItemCode      string `json:"itemCode"`
	StockName     string `json:"stockName"`
	ClosePrice    string `json:"closePrice"`
	CompareToOpen string `json:"compareToPreviousClosePrice"`
	FluctuRate    string `json:"fluctuationsRatio"`
	MarketStatus  string `json:"marketStatus"`
}

// DomesticClient fetches quotes for KRX-listed tickers (e.g. 005930).
type DomesticClient struct {
	baseURL string
	client  *http.Client
}

// NewDomesticClient creates a domestic quote client. An empty baseURL uses
// the production endpoint.
func NewDomesticClient(baseURL string) *DomesticClient {
	if baseURL == "" {
		baseURL = DomesticQuoteAPIURL
	}
	return &DomesticClient{
		baseURL: baseURL,
		client:  newHTTPClient(),
	}
}

// FetchPrice fetches the current traded price for a domestic ticker.
func (c *DomesticClient) FetchPrice(ctx context.Context, ticker string) (*Quote, error) {
	url := fmt.Sprintf("%s/%s/basic", c.baseURL, ticker)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch domestic quote for %s: %w", ticker, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		log.Printf("Domestic quote API error for %s: status=%d, body=%s", ticker, resp.StatusCode, string(body))
		return nil, fmt.Errorf("domestic quote API error for %s (status %d)", ticker, resp.StatusCode)
	}

	var response DomesticQuoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to parse domestic quote for %s: %w", ticker, err)
	}

	price, err := parseKoreanPrice(response.ClosePrice)
	if err != nil {
		return nil, fmt.Errorf("invalid price %q for %s: %w", response.ClosePrice, ticker, err)
	}

	return &Quote{
		Price:     price,
		FetchedAt: time.Now(),
	}, nil
}

// parseKoreanPrice parses a price string with thousands separators
func parseKoreanPrice(s string) (decimal.Decimal, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if cleaned == "" {
		return decimal.Zero, fmt.Errorf("empty price")
	}
	return decimal.NewFromString(cleaned)
}
