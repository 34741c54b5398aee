// Package scheduler runs the periodic maintenance sweeps: expiring
// stale pending holds, flipping overdue deposits and cancelling their
// owners, and marking confirmed no-shows. Every sweep is idempotent,
// so overlapping or repeated runs are harmless.
package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/localtours/booking-backend/internal/booking"
)

// Config sets the interval of each sweep. Zero or negative intervals
// disable that sweep.
type Config struct {
	ExpireEvery  time.Duration
	OverdueEvery time.Duration
	NoShowEvery  time.Duration
}

// Scheduler drives the engine's sweeps on tickers.
type Scheduler struct {
	engine *booking.Engine
	cfg    Config
}

func New(engine *booking.Engine, cfg Config) *Scheduler {
	return &Scheduler{engine: engine, cfg: cfg}
}

// Start launches one goroutine per enabled sweep. The goroutines exit
// when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	run(ctx, "expiration", s.cfg.ExpireEvery, s.engine.RunExpirationSweep)
	run(ctx, "overdue-deposit", s.cfg.OverdueEvery, s.engine.RunOverdueDepositSweep)
	run(ctx, "no-show", s.cfg.NoShowEvery, s.engine.RunNoShowSweep)
}

func run(ctx context.Context, name string, every time.Duration, sweep func(context.Context) (booking.SweepResult, error)) {
	if every <= 0 {
		log.Printf("scheduler: %s sweep disabled", name)
		return
	}
	go func() {
		t := time.NewTicker(every)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				res, err := sweep(ctx)
				if err != nil {
					log.Printf("scheduler: %s sweep: %v", name, err)
					continue
				}
				if res.Scanned > 0 {
					log.Printf("scheduler: %s sweep scanned=%d transitioned=%d skipped=%d failed=%d",
						name, res.Scanned, res.Transitioned, res.Skipped, res.Failed)
				}
			}
		}
	}()
}
