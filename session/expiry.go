package session

import (
	"context"
	"log/slog"
	"time"
)

// maxBackoff is the upper limit between sweeps after repeated failures.
const maxBackoff = 5 * time.Minute

// Sweeper is implemented by Manager.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// RunExpiryLoop sweeps expired sessions every interval until ctx is
// cancelled. After a failed sweep the delay doubles, capped at maxBackoff,
// and resets to interval on the next success. It always returns nil so it can
// run under an errgroup next to the HTTP server.
func RunExpiryLoop(ctx context.Context, s Sweeper, interval time.Duration, log *slog.Logger) error {
	if interval < time.Second {
		interval = time.Second
	}
	delay := interval

	timer := time.NewTimer(delay)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("expiry loop stopped")
			return nil
		case <-timer.C:
			n, err := s.Sweep(ctx)
			if err != nil {
				delay *= 2
				if delay > maxBackoff {
					delay = maxBackoff
				}
				log.Warn("session sweep failed", "error", err, "next_attempt", delay)
			} else {
				delay = interval
				if n > 0 {
					log.Debug("session sweep finished", "expired", n)
				}
			}
			timer.Reset(delay)
		}
	}
}
