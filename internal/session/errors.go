package session

import "errors"

// ErrNotActive is returned when a token update arrives outside an active session.
var ErrNotActive = errors.New("session is not active")
