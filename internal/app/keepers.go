package app

import (
	"context"
	"sync"

	"github.com/todopad/todopad/internal/session"
)

// keeperSlot holds the idle keeper of the current login episode. A keeper
// runs once, so every login gets a fresh one.
type keeperSlot struct {
	ctx     context.Context
	state   *session.State
	renewer session.Renewer
	opts    session.KeeperOptions

	mu      sync.Mutex
	current *session.Keeper
	stop    func()
}

func newKeeperSlot(ctx context.Context, state *session.State, renewer session.Renewer, opts session.KeeperOptions) *keeperSlot {
	return &keeperSlot{ctx: ctx, state: state, renewer: renewer, opts: opts}
}

// restart stops the previous keeper, if any, and starts a new one.
func (s *keeperSlot) restart() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		s.stop()
	}
	k := session.NewKeeper(s.state, s.renewer, s.opts)
	s.current = k
	s.stop = k.Start(s.ctx)
}

// touch forwards activity to the running keeper.
func (s *keeperSlot) touch(a session.Activity) {
	s.mu.Lock()
	k := s.current
	s.mu.Unlock()
	if k != nil {
		k.Touch(a)
	}
}

func (s *keeperSlot) keeper() *session.Keeper {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *keeperSlot) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		s.stop()
		s.stop = nil
	}
	s.current = nil
}
