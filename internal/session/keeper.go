package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
)

// Activity is a user interaction that keeps the session alive.
type Activity int

const (
	KeyPress Activity = iota
	Scroll
	Click
)

func (a Activity) String() string {
	switch a {
	case KeyPress:
		return "keypress"
	case Scroll:
		return "scroll"
	case Click:
		return "click"
	default:
		return "unknown"
	}
}

// Renewer extends the session on the backend. *todoapi.Client satisfies it.
type Renewer interface {
	RenewSession(ctx context.Context) (string, error)
}

const (
	DefaultIdleTimeout  = 15 * time.Minute
	defaultRenewTimeout = 10 * time.Second
	activityBuffer      = 16
)

// KeeperOptions tune a Keeper.
type KeeperOptions struct {
	Timeout      time.Duration // idle window; zero uses DefaultIdleTimeout
	RenewTimeout time.Duration // per renewal call; zero uses 10s
	Logger       log.FieldLogger
}

// Keeper logs the user out after a period without activity and renews the
// token on the backend whenever activity is seen.
//
// A Keeper runs once: after it expires or is stopped, build a new one.
type Keeper struct {
	state        *State
	renewer      Renewer
	timeout      time.Duration
	renewTimeout time.Duration
	logger       log.FieldLogger

	activity chan Activity
	done     chan struct{}
	started  atomic.Bool
	expired  atomic.Bool
	renewals sync.WaitGroup
}

// NewKeeper builds a Keeper bound to state.
func NewKeeper(state *State, renewer Renewer, opts KeeperOptions) *Keeper {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultIdleTimeout
	}
	renewTimeout := opts.RenewTimeout
	if renewTimeout <= 0 {
		renewTimeout = defaultRenewTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Keeper{
		state:        state,
		renewer:      renewer,
		timeout:      timeout,
		renewTimeout: renewTimeout,
		logger:       logger.WithField("component", "keeper"),
		activity:     make(chan Activity, activityBuffer),
		done:         make(chan struct{}),
	}
}

// Start arms the idle timer, fires an initial renewal and returns a stop
// function. Stop releases the timer and waits for in-flight renewals; it is
// safe to call more than once and after the keeper expired on its own.
func (k *Keeper) Start(ctx context.Context) (stop func()) {
	if !k.started.CompareAndSwap(false, true) {
		return func() {}
	}
	ctx, cancel := context.WithCancel(ctx)
	go k.run(ctx)

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-k.done
		})
	}
}

// Touch reports user activity. It never blocks; touches after expiry or
// stop are ignored.
func (k *Keeper) Touch(a Activity) {
	if k.expired.Load() {
		return
	}
	select {
	case <-k.done:
	case k.activity <- a:
	default:
		// Queue full: the queued touches already reset the timer.
	}
}

// Done is closed once the keeper has stopped or expired.
func (k *Keeper) Done() <-chan struct{} {
	return k.done
}

// Status reports ACTIVE until the idle timer fired or the session ended.
func (k *Keeper) Status() Status {
	if k.expired.Load() {
		return StatusExpired
	}
	return StatusActive
}

func (k *Keeper) run(ctx context.Context) {
	defer close(k.done)
	defer k.renewals.Wait()
	// Renewals die with the keeper; Done must not wait out a slow backend.
	renewCtx, cancelRenewals := context.WithCancel(ctx)
	defer cancelRenewals()

	episode, ended := k.state.watch()
	timer := time.NewTimer(k.timeout)
	defer timer.Stop()

	k.logger.WithField("timeout", k.timeout).Debug("idle keeper started")
	k.renew(renewCtx)

	for {
		select {
		case <-ctx.Done():
			k.logger.Debug("idle keeper stopped")
			return
		case <-ended:
			k.expired.Store(true)
			k.logger.Debug("session ended elsewhere, idle keeper exiting")
			return
		case a := <-k.activity:
			timer.Reset(k.timeout)
			k.logger.WithField("activity", a).Trace("idle timer reset")
			k.renew(renewCtx)
		case <-timer.C:
			k.expired.Store(true)
			k.logger.WithField("timeout", k.timeout).Info("idle timeout reached")
			k.state.ExpireEpisode(episode, ReasonIdle, MessageIdleExpired)
			return
		}
	}
}

// renew fires one best-effort renewal. Every activity gets its own call, even
// while an earlier one is still in flight.
func (k *Keeper) renew(ctx context.Context) {
	if k.renewer == nil {
		return
	}
	k.renewals.Add(1)
	go func() {
		defer k.renewals.Done()

		rctx, cancel := context.WithTimeout(ctx, k.renewTimeout)
		defer cancel()
		if _, err := k.renewer.RenewSession(rctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			k.logger.WithError(err).Warn("session renewal failed")
			return
		}
		k.logger.Debug("session renewed")
	}()
}
