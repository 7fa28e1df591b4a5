package presence

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Sweeper drives the periodic expiry scan. Timeout and interval are
// independent settings: an interval coarser than the timeout only means a user
// can stay visible slightly past expiry until the next tick, which is an
// accepted bounded-staleness property.
type Sweeper struct {
	coordinator *Coordinator
	timeout     time.Duration
	interval    time.Duration
	log         zerolog.Logger
}

func NewSweeper(coordinator *Coordinator, timeout, interval time.Duration, log zerolog.Logger) *Sweeper {
	return &Sweeper{
		coordinator: coordinator,
		timeout:     timeout,
		interval:    interval,
		log:         log,
	}
}

// Run ticks until ctx is cancelled. Sweep failures are logged and retried on
// the next tick; a transient store outage must not kill the loop.
func (s *Sweeper) Run(ctx context.Context) {
	s.log.Info().
		Dur("timeout", s.timeout).
		Dur("interval", s.interval).
		Msg("expiry sweeper started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("expiry sweeper stopped")
			return
		case now := <-ticker.C:
			evicted, err := s.coordinator.SweepExpired(ctx, now, s.timeout)
			if err != nil {
				s.log.Error().Err(err).Msg("expiry sweep failed")
				continue
			}
			if len(evicted) > 0 {
				s.log.Info().Int("evicted", len(evicted)).Msg("evicted expired presence entries")
			}
		}
	}
}
