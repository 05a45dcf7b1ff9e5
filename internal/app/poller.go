package app

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/todopad/todopad/internal/todolist"
)

const (
	defaultPollInterval = 30 * time.Second
	maxBackoff          = 5 * time.Minute
)

type refresher interface {
	Refresh(ctx context.Context) error
	Snapshot() todolist.Snapshot
}

type sessionView interface {
	Expired() bool
}

// StartPoller launches a background goroutine that refreshes the current page
// at a fixed cadence, backing off while the backend keeps failing. Nothing is
// fetched while logged out. It returns immediately.
func StartPoller(ctx context.Context, list refresher, sess sessionView, interval time.Duration, logger log.FieldLogger) {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	logger = logger.WithField("component", "poller")

	go func() {
		timer := time.NewTimer(interval)
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-timer.C:
			}

			if !sess.Expired() {
				if err := list.Refresh(ctx); err != nil && ctx.Err() == nil {
					logger.WithError(err).Debug("background refresh failed")
				}
			}
			timer.Reset(calculateBackoff(list.Snapshot().ConsecutiveFailures, interval))
		}
	}()
}

// calculateBackoff doubles base for every consecutive failure, up to maxBackoff.
func calculateBackoff(failures int, base time.Duration) time.Duration {
	d := base
	for i := 0; i < failures; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return d
}
