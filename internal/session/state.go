package session

import (
	"fmt"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Status is the lifecycle position of the login session.
type Status int

const (
	StatusActive Status = iota
	StatusExpired
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusExpired:
		return "expired"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Reason explains why a session ended.
type Reason int

const (
	// ReasonServer means the backend rejected the token.
	ReasonServer Reason = iota
	// ReasonIdle means no activity was seen for the idle timeout.
	ReasonIdle
	// ReasonLogout means the user logged out.
	ReasonLogout
)

func (r Reason) String() string {
	switch r {
	case ReasonServer:
		return "server"
	case ReasonIdle:
		return "idle"
	case ReasonLogout:
		return "logout"
	default:
		return fmt.Sprintf("reason(%d)", int(r))
	}
}

// Notice is a user-visible message emitted once per expiry episode.
type Notice struct {
	Reason  Reason
	Message string
	At      time.Time
}

// Default notice texts.
const (
	MessageServerExpired = "Session expired, please log in again"
	MessageIdleExpired   = "Logged out after a period of inactivity"
	MessageLoggedOut     = "Logged out"
)

// TokenStore persists the session token. *tokenstore.Store satisfies it.
type TokenStore interface {
	Token() string
	Save(token string) error
	Clear() error
}

const noticeBuffer = 4

// State owns the session status and the stored token. It is the only writer
// of "the session has ended", so an expiry observed concurrently by several
// requests and the idle keeper produces one notice.
type State struct {
	tokens TokenStore
	logger log.FieldLogger

	mu      sync.Mutex
	status  Status
	episode uint64
	ended   chan struct{}
	notices chan Notice
}

// NewState starts ACTIVE when a token is already stored, EXPIRED otherwise.
func NewState(tokens TokenStore, logger log.FieldLogger) *State {
	if logger == nil {
		logger = log.StandardLogger()
	}
	s := &State{
		tokens:  tokens,
		logger:  logger,
		status:  StatusExpired,
		ended:   make(chan struct{}),
		notices: make(chan Notice, noticeBuffer),
	}
	if tokens != nil && tokens.Token() != "" {
		s.status = StatusActive
	} else {
		close(s.ended)
	}
	return s
}

// Token returns the stored token, or "" when logged out.
func (s *State) Token() string {
	if s == nil || s.tokens == nil {
		return ""
	}
	return s.tokens.Token()
}

// Current returns the stored token together with the episode it belongs to.
// Callers that act on the outcome of a request later pass the episode back
// so a stale answer cannot end a newer login.
func (s *State) Current() (token string, episode uint64) {
	if s == nil {
		return "", 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tokens != nil {
		token = s.tokens.Token()
	}
	return token, s.episode
}

// Episode identifies the current login. Every successful Authenticated call
// moves it forward.
func (s *State) Episode() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.episode
}

// watch returns the current episode and its ended channel as one snapshot.
func (s *State) watch() (uint64, <-chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.episode, s.ended
}

// Status reports the current session status.
func (s *State) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Expired reports whether the session has ended.
func (s *State) Expired() bool {
	return s.Status() == StatusExpired
}

// Ended returns a channel closed when the current episode ends. After a new
// login a fresh channel is handed out.
func (s *State) Ended() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended
}

// Notices delivers one Notice per ended episode.
func (s *State) Notices() <-chan Notice {
	return s.notices
}

// Expire ends the current episode. Only the first call per episode clears
// the token and emits a notice; it reports whether this call did so.
func (s *State) Expire(reason Reason, message string) bool {
	return s.end(false, 0, reason, message)
}

// ExpireEpisode is Expire restricted to the given episode. It does nothing
// when a newer login has started since the episode was captured.
func (s *State) ExpireEpisode(episode uint64, reason Reason, message string) bool {
	return s.end(true, episode, reason, message)
}

// Logout ends the session on user request.
func (s *State) Logout() bool {
	return s.end(false, 0, ReasonLogout, MessageLoggedOut)
}

func (s *State) end(matchEpisode bool, episode uint64, reason Reason, message string) bool {
	if strings.TrimSpace(message) == "" {
		message = defaultMessage(reason)
	}

	s.mu.Lock()
	if matchEpisode && episode != s.episode {
		s.mu.Unlock()
		s.logger.WithField("reason", reason).Debug("ignoring expiry of a previous session")
		return false
	}
	if s.status == StatusExpired {
		s.mu.Unlock()
		return false
	}
	s.status = StatusExpired
	close(s.ended)
	// The token goes while the lock is held so a concurrent login cannot
	// store a token that this episode then deletes.
	if s.tokens != nil {
		if err := s.tokens.Clear(); err != nil {
			s.logger.WithError(err).Error("failed to clear session token")
		}
	}
	s.mu.Unlock()

	s.logger.WithField("reason", reason).Info("session ended")

	notice := Notice{Reason: reason, Message: message, At: time.Now()}
	select {
	case s.notices <- notice:
	default:
		s.logger.WithField("reason", reason).Warn("session notice dropped, nobody listening")
	}
	return true
}

// Authenticated stores a token from a fresh login and starts a new episode.
func (s *State) Authenticated(token string) error {
	if s.tokens == nil {
		return fmt.Errorf("session has no token store")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.tokens.Save(token); err != nil {
		return fmt.Errorf("store token: %w", err)
	}
	s.episode++
	if s.status == StatusExpired {
		s.status = StatusActive
		s.ended = make(chan struct{})
	}
	s.logger.WithField("episode", s.episode).Info("session authenticated")
	return nil
}

// Renewed replaces the token after a successful renewal. A renewal that
// lands after the episode ended is discarded so it cannot revive a session
// the user was logged out of.
func (s *State) Renewed(token string) error {
	return s.renewed(false, 0, token)
}

// RenewedEpisode is Renewed restricted to the given episode, so a renewal
// started under a previous login cannot overwrite the token of a newer one.
func (s *State) RenewedEpisode(episode uint64, token string) error {
	return s.renewed(true, episode, token)
}

func (s *State) renewed(matchEpisode bool, episode uint64, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusActive || (matchEpisode && episode != s.episode) {
		return ErrNotActive
	}
	if s.tokens == nil {
		return fmt.Errorf("session has no token store")
	}
	if err := s.tokens.Save(token); err != nil {
		return fmt.Errorf("store token: %w", err)
	}
	return nil
}

func defaultMessage(reason Reason) string {
	switch reason {
	case ReasonIdle:
		return MessageIdleExpired
	case ReasonLogout:
		return MessageLoggedOut
	default:
		return MessageServerExpired
	}
}
