package notify

import (
	"context"
	"fmt"

	"stockwatch_backend/models"

	"github.com/shopspring/decimal"
)

// Message is one outbound push notification composed for a fired alert.
type Message struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

// SendResult is the per-endpoint outcome of a multicast send. Unregistered
// marks a permanently invalid token that must be removed from the user's
// registry; any other error is transient and left for the next notification.
type SendResult struct {
	Token        string
	Err          error
	Unregistered bool
}

// Transport delivers one user's messages to all of their endpoints in a
// single multicast call and reports a per-endpoint outcome.
type Transport interface {
	SendMulticast(ctx context.Context, tokens []string, messages []Message) ([]SendResult, error)
}

// EndpointStore is the push endpoint registry surface the dispatcher needs.
type EndpointStore interface {
	ListByUser(ctx context.Context, userID uint) ([]models.PushEndpoint, error)
	DeleteByTokens(ctx context.Context, userID uint, tokens []string) error
}

// SettingsStore looks up a user's push notification preference.
type SettingsStore interface {
	IsPushEnabled(ctx context.Context, userID uint) (bool, error)
}

// ComposeMessage builds the push message for one fired alert. The title
// carries the instrument name and direction, the body the current vs target
// price, and the data payload a deep link back to the instrument page.
func ComposeMessage(alert models.Alert, current decimal.Decimal) Message {
	return Message{
		Title: fmt.Sprintf("%s 목표가 %s", alert.Name, models.DirectionText(alert.Direction)),
		Body: fmt.Sprintf("현재가 %s (목표가 %s)",
			formatPrice(alert.Market, current),
			formatPrice(alert.Market, alert.TargetPrice)),
		Data: map[string]string{
			"alert_id": fmt.Sprintf("%d", alert.ID),
			"link":     instrumentLink(alert.Market, alert.Ticker),
		},
	}
}

// formatPrice renders a price for the notification body. Domestic prices are
// whole won; foreign prices keep two decimal places.
func formatPrice(market string, price decimal.Decimal) string {
	if market == models.MarketDomestic {
		return price.StringFixed(0) + "원"
	}
	return "$" + price.StringFixed(2)
}

// instrumentLink builds the deep link to the instrument page.
func instrumentLink(market, ticker string) string {
	return fmt.Sprintf("/stocks/%s/%s", market, ticker)
}
