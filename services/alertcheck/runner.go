package alertcheck

import (
	"context"
	"log"
	"sync"
	"time"

	"stockwatch_backend/models"
	"stockwatch_backend/services/quotes"

	"github.com/google/uuid"
)

// Notifier dispatches notifications for one user's fired alerts. Failures
// are the notifier's own to log; the runner only counts them.
type Notifier interface {
	DispatchForUser(ctx context.Context, userID uint, fired []models.Alert, prices map[models.InstrumentKey]*quotes.Quote) error
}

// RunResult summarizes one monitoring pass.
type RunResult struct {
	RunID     string        `json:"run_id"`
	StartedAt time.Time     `json:"started_at"`
	Checked   int           `json:"checked"`
	Triggered int           `json:"triggered"`
	Notified  int           `json:"notified"`
	Duration  time.Duration `json:"duration"`
}

// Runner wires one monitoring pass: load pending alerts, price each distinct
// instrument once (chunked, rate-limited), evaluate, record triggers, then
// fan out notifications per user. A run is stateless; the scheduler owns the
// repeat cadence.
type Runner struct {
	store      AlertStore
	gateway    quotes.Gateway
	notifier   Notifier
	chunkSize  int
	chunkDelay time.Duration

	sleep func(time.Duration)
	now   func() time.Time
}

// NewRunner creates a runner with the given collaborators and batching
// parameters.
func NewRunner(store AlertStore, gateway quotes.Gateway, notifier Notifier, chunkSize int, chunkDelay time.Duration) *Runner {
	if chunkSize < 1 {
		chunkSize = 1
	}
	return &Runner{
		store:      store,
		gateway:    gateway,
		notifier:   notifier,
		chunkSize:  chunkSize,
		chunkDelay: chunkDelay,
		sleep:      time.Sleep,
		now:        time.Now,
	}
}

// Run executes one monitoring pass.
func (r *Runner) Run(ctx context.Context) (*RunResult, error) {
	start := r.now()
	result := &RunResult{
		RunID:     uuid.NewString(),
		StartedAt: start,
	}

	alerts, err := r.store.LoadPending(ctx)
	if err != nil {
		return nil, err
	}
	result.Checked = len(alerts)

	if len(alerts) == 0 {
		result.Duration = r.now().Sub(start)
		log.Printf("Alert run %s: no pending alerts", result.RunID)
		return result, nil
	}

	batch := GroupByInstrument(alerts)
	log.Printf("Alert run %s: %d alerts across %d instruments", result.RunID, len(alerts), len(batch.Keys))

	prices := r.fetchPrices(ctx, result.RunID, batch)

	fired := r.recordTriggers(ctx, result.RunID, alerts, prices)
	result.Triggered = len(fired)

	result.Notified = r.dispatch(ctx, result.RunID, fired, prices)

	result.Duration = r.now().Sub(start)
	log.Printf("Alert run %s finished: checked=%d triggered=%d notified=%d duration=%v",
		result.RunID, result.Checked, result.Triggered, result.Notified, result.Duration)
	return result, nil
}

// fetchPrices prices each distinct instrument once. Lookups within a chunk
// run concurrently; chunks run sequentially with a delay between them to
// stay under vendor rate limits. A failed lookup leaves its instrument out
// of the price book; its alerts are skipped this run.
func (r *Runner) fetchPrices(ctx context.Context, runID string, batch *InstrumentBatch) map[models.InstrumentKey]*quotes.Quote {
	prices := make(map[models.InstrumentKey]*quotes.Quote, len(batch.Keys))
	var mu sync.Mutex

	chunks := batch.Chunks(r.chunkSize)
	for i, chunk := range chunks {
		var wg sync.WaitGroup
		for _, key := range chunk {
			wg.Add(1)
			go func(k models.InstrumentKey) {
				defer wg.Done()
				quote, err := r.gateway.FetchPrice(ctx, k.Market, k.Ticker)
				if err != nil {
					log.Printf("Alert run %s: price unavailable for %s/%s: %v", runID, k.Market, k.Ticker, err)
					return
				}
				mu.Lock()
				prices[k] = quote
				mu.Unlock()
			}(key)
		}
		wg.Wait()

		if i < len(chunks)-1 {
			r.sleep(r.chunkDelay)
		}
	}
	return prices
}

// recordTriggers evaluates every alert that has a price sample and persists
// the pending-to-fired transition before any notification is sent. The
// compare-and-set in the store keeps re-triggering at most once even if a
// notification is later lost.
func (r *Runner) recordTriggers(ctx context.Context, runID string, alerts []models.Alert, prices map[models.InstrumentKey]*quotes.Quote) []models.Alert {
	var fired []models.Alert
	for _, alert := range alerts {
		quote, ok := prices[alert.Key()]
		if !ok {
			continue
		}
		if !ShouldTrigger(alert.Direction, alert.TargetPrice, quote.Price) {
			continue
		}

		now := r.now()
		updated, err := r.store.MarkTriggered(ctx, alert.ID, now)
		if err != nil {
			log.Printf("Alert run %s: failed to record trigger for alert %d: %v", runID, alert.ID, err)
			continue
		}
		if !updated {
			log.Printf("Alert run %s: alert %d already fired, skipping dispatch", runID, alert.ID)
			continue
		}

		alert.IsTriggered = true
		alert.TriggeredAt = &now
		fired = append(fired, alert)
	}
	return fired
}

// dispatch groups fired alerts by owner and dispatches per user
// concurrently. Each user's dispatch is independent; one user's failure
// never suppresses another's. Returns the number of users dispatched
// without error.
func (r *Runner) dispatch(ctx context.Context, runID string, fired []models.Alert, prices map[models.InstrumentKey]*quotes.Quote) int {
	if len(fired) == 0 || r.notifier == nil {
		return 0
	}

	byUser := make(map[uint][]models.Alert)
	for _, alert := range fired {
		byUser[alert.UserID] = append(byUser[alert.UserID], alert)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	notified := 0

	for userID, userAlerts := range byUser {
		wg.Add(1)
		go func(uid uint, ua []models.Alert) {
			defer wg.Done()
			if err := r.notifier.DispatchForUser(ctx, uid, ua, prices); err != nil {
				log.Printf("Alert run %s: dispatch failed for user %d: %v", runID, uid, err)
				return
			}
			mu.Lock()
			notified++
			mu.Unlock()
		}(userID, userAlerts)
	}
	wg.Wait()

	return notified
}
