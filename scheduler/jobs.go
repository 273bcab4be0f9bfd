package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"stockwatch_backend/services/alertcheck"
	"stockwatch_backend/services/runlog"

	"github.com/go-co-op/gocron"
)

// Scheduler manages the in-process alert monitoring job. The deployment
// default is an external scheduler hitting the check endpoint; this exists
// for single-instance setups without one.
type Scheduler struct {
	cron   *gocron.Scheduler
	runner *alertcheck.Runner
	ledger *runlog.Ledger

	runMu sync.Mutex
}

// NewScheduler creates a new scheduler instance
func NewScheduler(runner *alertcheck.Runner, ledger *runlog.Ledger) *Scheduler {
	return &Scheduler{
		cron:   gocron.NewScheduler(time.UTC),
		runner: runner,
		ledger: ledger,
	}
}

// Start starts all scheduled jobs
func (s *Scheduler) Start() {
	log.Println("Starting scheduler...")

	// Check price alerts every minute while a market is open
	s.cron.Every(1).Minute().Do(func() {
		if isAnyMarketOpen(time.Now()) {
			s.checkAlerts()
		}
	})

	s.cron.StartAsync()
	log.Println("Scheduler started successfully")
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.cron.Stop()
	log.Println("Scheduler stopped")
}

// checkAlerts runs one monitoring pass. An overlapping tick is skipped
// rather than run concurrently.
func (s *Scheduler) checkAlerts() {
	if !s.runMu.TryLock() {
		log.Println("Previous alert run still in progress, skipping tick")
		return
	}
	defer s.runMu.Unlock()

	result, err := s.runner.Run(context.Background())
	if s.ledger != nil {
		s.ledger.Record(result, err)
	}
	if err != nil {
		log.Printf("Scheduled alert run failed: %v", err)
	}
}

// isAnyMarketOpen reports whether at least one monitored market is trading.
func isAnyMarketOpen(now time.Time) bool {
	return isDomesticMarketOpen(now) || isForeignMarketOpen(now)
}

// isDomesticMarketOpen checks KRX hours: weekdays 09:00-15:30 KST
func isDomesticMarketOpen(now time.Time) bool {
	loc, err := time.LoadLocation("Asia/Seoul")
	if err != nil {
		return true
	}
	t := now.In(loc)

	if t.Weekday() == time.Saturday || t.Weekday() == time.Sunday {
		return false
	}

	minutes := t.Hour()*60 + t.Minute()
	return minutes >= 9*60 && minutes <= 15*60+30
}

// isForeignMarketOpen checks US regular session hours: weekdays 09:30-16:00 ET
func isForeignMarketOpen(now time.Time) bool {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return true
	}
	t := now.In(loc)

	if t.Weekday() == time.Saturday || t.Weekday() == time.Sunday {
		return false
	}

	minutes := t.Hour()*60 + t.Minute()
	return minutes >= 9*60+30 && minutes <= 16*60
}
