package services

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type Purger interface {
	PurgeExpired(ctx context.Context) (bool, error)
}

// Janitor periodically drops a persisted playback session that outlived its
// expiry without being resumed.
type Janitor struct {
	purger   Purger
	interval time.Duration
	logger   *zap.Logger
}

func NewJanitor(p Purger, interval time.Duration, logger *zap.Logger) *Janitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &Janitor{purger: p, interval: interval, logger: logger.Named("janitor")}
}

// Run sweeps every interval until ctx is done.
func (j *Janitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	j.logger.Info("session janitor started", zap.Duration("interval", j.interval))
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			j.Sweep(ctx)
		}
	}
}

func (j *Janitor) Sweep(ctx context.Context) {
	purged, err := j.purger.PurgeExpired(ctx)
	if err != nil {
		j.logger.Warn("failed to check playback session", zap.Error(err))
		return
	}
	if purged {
		j.logger.Info("expired playback session purged")
	}
}
