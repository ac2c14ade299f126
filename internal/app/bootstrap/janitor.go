package bootstrap

import (
	"context"
	"time"

	"github.com/Yardman-Mzansi/potholematic/pkg/logging"
)

type purger interface {
	Purge(ctx context.Context, cutoff time.Time) (int64, error)
}

// StartDedupJanitor deletes processed webhook ids older than ttl every
// interval until ctx is cancelled. The returned channel closes on exit.
func StartDedupJanitor(ctx context.Context, p purger, ttl, interval time.Duration, logger *logging.Logger) <-chan struct{} {
	done := make(chan struct{})
	if p == nil || ttl <= 0 {
		close(done)
		return done
	}
	if interval <= 0 {
		interval = time.Hour
	}
	if logger == nil {
		logger = logging.Default()
	}

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed, err := p.Purge(ctx, time.Now().Add(-ttl))
				if err != nil {
					logger.Warn("dedup purge failed", "error", err)
					continue
				}
				if removed > 0 {
					logger.Info("dedup purge complete", "removed", removed)
				}
			}
		}
	}()
	return done
}
