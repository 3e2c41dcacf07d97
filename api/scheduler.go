/*
scheduler.go - Automated period scheduler

PURPOSE:
  Periodically makes sure upcoming pay periods exist so runs can be
  created without anyone remembering to open the month first.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Creates the current month's period and MonthsAhead future ones
  - Period codes follow "YYYY-MM"; an existing code is left untouched

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 hour)
  - MonthsAhead:   How many future months to keep open (default: 1)
  - Enabled:       Whether scheduler is active (default: true)

USAGE:
  scheduler := NewPeriodScheduler(store)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: CreatePeriod endpoint (manual period creation)
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/warp/payroll-engine/engine"
	"github.com/warp/payroll-engine/payroll"
)

// PeriodScheduler keeps upcoming monthly pay periods open.
type PeriodScheduler struct {
	Store         payroll.Store
	CheckInterval time.Duration
	MonthsAhead   int
	Enabled       bool

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewPeriodScheduler creates a new scheduler.
func NewPeriodScheduler(store payroll.Store) *PeriodScheduler {
	return &PeriodScheduler{
		Store:         store,
		CheckInterval: 1 * time.Hour,
		MonthsAhead:   1,
		Enabled:       true,
		stop:          make(chan bool),
	}
}

// Start begins the scheduler.
func (ps *PeriodScheduler) Start() {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if !ps.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}

	ps.ticker = time.NewTicker(ps.CheckInterval)
	ps.wg.Add(1)

	go ps.run()

	log.Printf("[Scheduler] Started with check interval: %v", ps.CheckInterval)
}

// Stop stops the scheduler.
func (ps *PeriodScheduler) Stop() {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if ps.ticker != nil {
		ps.ticker.Stop()
		close(ps.stop)
		ps.wg.Wait()
		log.Println("[Scheduler] Stopped")
	}
}

func (ps *PeriodScheduler) run() {
	defer ps.wg.Done()

	// Run immediately on start
	ps.EnsureUpcoming(context.Background())

	for {
		select {
		case <-ps.ticker.C:
			ps.EnsureUpcoming(context.Background())
		case <-ps.stop:
			return
		}
	}
}

// EnsureUpcoming creates the current month's period and the configured
// number of future months, skipping codes that already exist.
func (ps *PeriodScheduler) EnsureUpcoming(ctx context.Context) {
	start := engine.StartOfMonth(engine.Today())
	created := 0

	for i := 0; i <= ps.MonthsAhead; i++ {
		monthStart := start.AddMonths(i)
		code := monthStart.Time().Format("2006-01")

		if _, err := ps.Store.Periods().GetPeriodByCode(ctx, code); err == nil {
			continue
		} else if !engine.IsNotFound(err) {
			log.Printf("[Scheduler] Error looking up period %s: %v", code, err)
			continue
		}

		end := engine.EndOfMonth(monthStart)
		_, err := ps.Store.Periods().SavePeriod(ctx, payroll.PayrollPeriod{
			Code:        code,
			Start:       monthStart,
			End:         end,
			PaymentDate: end,
		})
		if err != nil {
			log.Printf("[Scheduler] Error creating period %s: %v", code, err)
			continue
		}
		created++
	}

	if created > 0 {
		log.Printf("[Scheduler] Opened %d pay period(s)", created)
	}
}
