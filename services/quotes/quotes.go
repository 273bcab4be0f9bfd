package quotes

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"stockwatch_backend/models"

	"github.com/shopspring/decimal"
)

// Quote represents the latest traded price for one instrument.
type Quote struct {
	Price     decimal.Decimal `json:"price"`
	FetchedAt time.Time       `json:"fetched_at"`
}

// Gateway fetches the latest traded price for an instrument. An error means
// the price is unavailable this run; callers skip the instrument and never
// abort the run because of it.
type Gateway interface {
	FetchPrice(ctx context.Context, market, ticker string) (*Quote, error)
}

// VendorGateway routes price lookups to the vendor client for each market.
type VendorGateway struct {
	domestic *DomesticClient
	foreign  *ForeignClient
}

// NewVendorGateway creates a gateway backed by the default vendor clients.
func NewVendorGateway() *VendorGateway {
	return &VendorGateway{
		domestic: NewDomesticClient(""),
		foreign:  NewForeignClient(""),
	}
}

// FetchPrice fetches the current price for (market, ticker).
func (g *VendorGateway) FetchPrice(ctx context.Context, market, ticker string) (*Quote, error) {
	switch market {
	case models.MarketDomestic:
		return g.domestic.FetchPrice(ctx, ticker)
	case models.MarketForeign:
		return g.foreign.FetchPrice(ctx, ticker)
	}
	return nil, fmt.Errorf("unknown market %q for ticker %s", market, ticker)
}

// newHTTPClient returns the http client used by vendor requests
func newHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 10 * time.Second,
	}
}
