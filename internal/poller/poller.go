// Package poller implements the caller side of the progress polling
// contract: poll on a fixed interval while a scan is running and back off
// to a longer interval after a failed poll.
package poller

import (
	"context"
	"time"

	"github.com/IvanShishkin/buckfinder/pkg/models"
	"go.uber.org/zap"
)

const (
	DefaultInterval = 200 * time.Millisecond
	DefaultBackoff  = 500 * time.Millisecond
)

// FetchFunc retrieves one progress snapshot
type FetchFunc func(ctx context.Context) (models.ScanProgress, error)

// UpdateFunc receives every successful snapshot
type UpdateFunc func(p models.ScanProgress)

// Poller drives a FetchFunc until the job completes
type Poller struct {
	interval time.Duration
	backoff  time.Duration
	logger   *zap.Logger
}

// New creates a poller. Zero durations fall back to the defaults.
func New(interval, backoff time.Duration, logger *zap.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if backoff <= 0 {
		backoff = DefaultBackoff
	}
	return &Poller{
		interval: interval,
		backoff:  backoff,
		logger:   logger,
	}
}

// Run polls until a snapshot reports completion or a start failure, or ctx
// is done. Fetch errors are retried after the backoff interval and never end
// the loop. The last successful snapshot is returned.
func (p *Poller) Run(ctx context.Context, fetch FetchFunc, onUpdate UpdateFunc) (models.ScanProgress, error) {
	var last models.ScanProgress
	failures := 0

	for {
		snap, err := fetch(ctx)
		wait := p.interval
		if err != nil {
			if ctx.Err() != nil {
				return last, ctx.Err()
			}
			failures++
			wait = p.backoff
			p.logger.Debug("Progress poll failed, backing off",
				zap.Int("failures", failures),
				zap.Duration("retry_in", wait),
				zap.Error(err))
		} else {
			failures = 0
			last = snap
			if onUpdate != nil {
				onUpdate(snap)
			}
			if snap.IsComplete || snap.Status == models.StatusError {
				return snap, nil
			}
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return last, ctx.Err()
		case <-timer.C:
		}
	}
}
