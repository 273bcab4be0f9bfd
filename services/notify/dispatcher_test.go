package notify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"stockwatch_backend/models"
	"stockwatch_backend/services/quotes"

	"github.com/shopspring/decimal"
)

type mockSettings struct {
	enabled map[uint]bool
	err     error
}

func (s *mockSettings) IsPushEnabled(ctx context.Context, userID uint) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	return s.enabled[userID], nil
}

type mockEndpoints struct {
	mu        sync.Mutex
	byUser    map[uint][]models.PushEndpoint
	listErr   error
	deleteErr error
	deleted   map[uint][]string
}

func newMockEndpoints() *mockEndpoints {
	return &mockEndpoints{
		byUser:  make(map[uint][]models.PushEndpoint),
		deleted: make(map[uint][]string),
	}
}

func (e *mockEndpoints) add(userID uint, token string) {
	e.byUser[userID] = append(e.byUser[userID], models.PushEndpoint{
		UserID:    userID,
		Token:     token,
		CreatedAt: time.Now(),
	})
}

func (e *mockEndpoints) ListByUser(ctx context.Context, userID uint) ([]models.PushEndpoint, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.listErr != nil {
		return nil, e.listErr
	}
	return e.byUser[userID], nil
}

func (e *mockEndpoints) DeleteByTokens(ctx context.Context, userID uint, tokens []string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deleteErr != nil {
		return e.deleteErr
	}
	e.deleted[userID] = append(e.deleted[userID], tokens...)
	return nil
}

type mockTransport struct {
	mu           sync.Mutex
	calls        int
	sentMessages []Message
	sentTokens   []string
	results      []SendResult
	err          error
}

func (t *mockTransport) SendMulticast(ctx context.Context, tokens []string, messages []Message) ([]SendResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls++
	t.sentTokens = append([]string(nil), tokens...)
	t.sentMessages = append([]Message(nil), messages...)
	if t.err != nil {
		return nil, t.err
	}
	if t.results != nil {
		return t.results, nil
	}
	results := make([]SendResult, len(tokens))
	for i, token := range tokens {
		results[i].Token = token
	}
	return results, nil
}

func firedAlert(id, userID uint, market, ticker, name, direction, target string) models.Alert {
	now := time.Now()
	targetPrice, _ := decimal.NewFromString(target)
	return models.Alert{
		ID:          id,
		UserID:      userID,
		Market:      market,
		Ticker:      ticker,
		Name:        name,
		Direction:   direction,
		TargetPrice: targetPrice,
		IsActive:    true,
		IsTriggered: true,
		TriggeredAt: &now,
	}
}

func priceBook(alerts []models.Alert, prices ...string) map[models.InstrumentKey]*quotes.Quote {
	book := make(map[models.InstrumentKey]*quotes.Quote)
	for i, a := range alerts {
		p, _ := decimal.NewFromString(prices[i])
		book[a.Key()] = &quotes.Quote{Price: p, FetchedAt: time.Now()}
	}
	return book
}

func TestDispatchRemovesOnlyInvalidEndpoints(t *testing.T) {
	settings := &mockSettings{enabled: map[uint]bool{10: true}}
	endpoints := newMockEndpoints()
	endpoints.add(10, "token-E")
	endpoints.add(10, "token-F")

	transport := &mockTransport{
		results: []SendResult{
			{Token: "token-E", Unregistered: true},
			{Token: "token-F", Err: errors.New("timeout")},
		},
	}

	d := NewDispatcher(settings, endpoints, transport, nil)

	fired := []models.Alert{firedAlert(1, 10, models.MarketForeign, "AAPL", "Apple", models.DirectionAbove, "150")}
	err := d.DispatchForUser(context.Background(), 10, fired, priceBook(fired, "170"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	deleted := endpoints.deleted[10]
	if len(deleted) != 1 || deleted[0] != "token-E" {
		t.Errorf("deleted tokens = %v, want only token-E", deleted)
	}
}

func TestDispatchSkipsDisabledUser(t *testing.T) {
	settings := &mockSettings{enabled: map[uint]bool{10: false}}
	endpoints := newMockEndpoints()
	endpoints.add(10, "token-A")
	transport := &mockTransport{}

	d := NewDispatcher(settings, endpoints, transport, nil)

	fired := []models.Alert{firedAlert(1, 10, models.MarketForeign, "AAPL", "Apple", models.DirectionAbove, "150")}
	err := d.DispatchForUser(context.Background(), 10, fired, priceBook(fired, "170"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if transport.calls != 0 {
		t.Error("transport called despite push being disabled")
	}
}

func TestDispatchNoEndpointsIsNoop(t *testing.T) {
	settings := &mockSettings{enabled: map[uint]bool{10: true}}
	endpoints := newMockEndpoints()
	transport := &mockTransport{}

	d := NewDispatcher(settings, endpoints, transport, nil)

	fired := []models.Alert{firedAlert(1, 10, models.MarketForeign, "AAPL", "Apple", models.DirectionAbove, "150")}
	err := d.DispatchForUser(context.Background(), 10, fired, priceBook(fired, "170"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if transport.calls != 0 {
		t.Error("transport called with no registered endpoints")
	}
}

func TestDispatchOneMulticastPerUser(t *testing.T) {
	settings := &mockSettings{enabled: map[uint]bool{10: true}}
	endpoints := newMockEndpoints()
	endpoints.add(10, "token-A")
	endpoints.add(10, "token-B")
	transport := &mockTransport{}

	d := NewDispatcher(settings, endpoints, transport, nil)

	fired := []models.Alert{
		firedAlert(1, 10, models.MarketForeign, "AAPL", "Apple", models.DirectionAbove, "150"),
		firedAlert(2, 10, models.MarketDomestic, "005930", "삼성전자", models.DirectionBelow, "70000"),
	}
	err := d.DispatchForUser(context.Background(), 10, fired, priceBook(fired, "170", "69000"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if transport.calls != 1 {
		t.Errorf("transport called %d times, want exactly 1", transport.calls)
	}
	if len(transport.sentMessages) != 2 {
		t.Errorf("sent %d messages, want one per fired alert (2)", len(transport.sentMessages))
	}
	if len(transport.sentTokens) != 2 {
		t.Errorf("sent to %d tokens, want 2", len(transport.sentTokens))
	}
}

func TestDispatchErrorsSurface(t *testing.T) {
	fired := []models.Alert{firedAlert(1, 10, models.MarketForeign, "AAPL", "Apple", models.DirectionAbove, "150")}
	book := priceBook(fired, "170")

	t.Run("settings lookup error", func(t *testing.T) {
		d := NewDispatcher(&mockSettings{err: errors.New("db down")}, newMockEndpoints(), &mockTransport{}, nil)
		if err := d.DispatchForUser(context.Background(), 10, fired, book); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("endpoint lookup error", func(t *testing.T) {
		endpoints := newMockEndpoints()
		endpoints.listErr = errors.New("mongo down")
		d := NewDispatcher(&mockSettings{enabled: map[uint]bool{10: true}}, endpoints, &mockTransport{}, nil)
		if err := d.DispatchForUser(context.Background(), 10, fired, book); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("transport error", func(t *testing.T) {
		endpoints := newMockEndpoints()
		endpoints.add(10, "token-A")
		d := NewDispatcher(&mockSettings{enabled: map[uint]bool{10: true}}, endpoints, &mockTransport{err: errors.New("fcm down")}, nil)
		if err := d.DispatchForUser(context.Background(), 10, fired, book); err == nil {
			t.Error("expected error")
		}
	})
}

func TestComposeMessage(t *testing.T) {
	alert := firedAlert(7, 10, models.MarketDomestic, "005930", "삼성전자", models.DirectionAbove, "70000")
	current, _ := decimal.NewFromString("71200")

	msg := ComposeMessage(alert, current)

	if !strings.Contains(msg.Title, "삼성전자") {
		t.Errorf("title missing instrument name: %q", msg.Title)
	}
	if !strings.Contains(msg.Title, "상승 도달") {
		t.Errorf("title missing direction phrase: %q", msg.Title)
	}
	if !strings.Contains(msg.Body, "71200원") || !strings.Contains(msg.Body, "70000원") {
		t.Errorf("body missing current/target price: %q", msg.Body)
	}
	if msg.Data["link"] != "/stocks/domestic/005930" {
		t.Errorf("unexpected deep link: %q", msg.Data["link"])
	}

	foreign := firedAlert(8, 10, models.MarketForeign, "AAPL", "Apple", models.DirectionBelow, "150")
	fp, _ := decimal.NewFromString("149.5")
	msg = ComposeMessage(foreign, fp)
	if !strings.Contains(msg.Title, "하락 도달") {
		t.Errorf("title missing direction phrase: %q", msg.Title)
	}
	if !strings.Contains(msg.Body, "$149.50") {
		t.Errorf("body missing formatted foreign price: %q", msg.Body)
	}
}
