package notify

import (
	"context"
	"fmt"
	"log"

	"stockwatch_backend/models"
	"stockwatch_backend/services/quotes"
)

// Dispatcher fans a user's fired alerts out to their registered push
// endpoints and removes endpoints the transport reports as permanently
// invalid. Each user's dispatch is independent; errors returned here are
// counted by the runner but never abort the run.
type Dispatcher struct {
	settings  SettingsStore
	endpoints EndpointStore
	transport Transport
	hub       *Hub
}

// NewDispatcher creates a dispatcher. The hub is optional; when nil, no
// trigger events are streamed.
func NewDispatcher(settings SettingsStore, endpoints EndpointStore, transport Transport, hub *Hub) *Dispatcher {
	return &Dispatcher{
		settings:  settings,
		endpoints: endpoints,
		transport: transport,
		hub:       hub,
	}
}

// DispatchForUser delivers one user's fired alerts. The trigger state is
// already persisted by the time this runs, so a lost notification is never
// refired.
func (d *Dispatcher) DispatchForUser(ctx context.Context, userID uint, fired []models.Alert, prices map[models.InstrumentKey]*quotes.Quote) error {
	// Stream trigger events to connected sessions regardless of the push
	// preference; the preference only gates push delivery.
	d.publishEvents(fired, prices)

	enabled, err := d.settings.IsPushEnabled(ctx, userID)
	if err != nil {
		return fmt.Errorf("settings lookup failed for user %d: %w", userID, err)
	}
	if !enabled {
		log.Printf("Push disabled for user %d, skipping %d notification(s)", userID, len(fired))
		return nil
	}

	endpoints, err := d.endpoints.ListByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("endpoint lookup failed for user %d: %w", userID, err)
	}
	if len(endpoints) == 0 {
		log.Printf("No push endpoints registered for user %d", userID)
		return nil
	}

	tokens := make([]string, len(endpoints))
	for i, ep := range endpoints {
		tokens[i] = ep.Token
	}

	messages := make([]Message, 0, len(fired))
	for _, alert := range fired {
		quote, ok := prices[alert.Key()]
		if !ok {
			// Fired alerts always have a sample; guard anyway.
			continue
		}
		messages = append(messages, ComposeMessage(alert, quote.Price))
	}
	if len(messages) == 0 {
		return nil
	}

	results, err := d.transport.SendMulticast(ctx, tokens, messages)
	if err != nil {
		return fmt.Errorf("push send failed for user %d: %w", userID, err)
	}

	var invalid []string
	for _, res := range results {
		if res.Unregistered {
			invalid = append(invalid, res.Token)
			continue
		}
		if res.Err != nil {
			log.Printf("Transient push failure for user %d endpoint %s: %v", userID, maskToken(res.Token), res.Err)
		}
	}

	// Cleanup is awaited so a run's deletions are observable before it ends.
	if len(invalid) > 0 {
		if err := d.endpoints.DeleteByTokens(ctx, userID, invalid); err != nil {
			log.Printf("Failed to remove %d invalid endpoints for user %d: %v", len(invalid), userID, err)
		}
	}

	log.Printf("Dispatched %d notification(s) to user %d across %d endpoint(s), %d invalid removed",
		len(messages), userID, len(tokens), len(invalid))
	return nil
}

// publishEvents broadcasts fired alerts to the websocket hub.
func (d *Dispatcher) publishEvents(fired []models.Alert, prices map[models.InstrumentKey]*quotes.Quote) {
	if d.hub == nil {
		return
	}
	for _, alert := range fired {
		quote, ok := prices[alert.Key()]
		if !ok {
			continue
		}
		d.hub.Publish(NewTriggerEvent(alert, quote.Price))
	}
}

// maskToken shortens a push token for logging
func maskToken(token string) string {
	if len(token) <= 8 {
		return "***"
	}
	return token[:8] + "***"
}
