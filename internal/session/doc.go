// Package session owns the login session: whether it is active, the stored
// token, and the idle keeper that ends it.
//
// # State
//
// State is the single place that decides a session has ended. The API client
// calls Expire when the backend rejects the token, the Keeper calls it when
// the idle timer fires, and the UI calls Logout. Only the first call in an
// episode clears the token and publishes a Notice; the rest are no-ops. A
// successful login (Authenticated) starts the next episode.
//
//	ACTIVE ──Expire/Logout──▶ EXPIRED ──Authenticated──▶ ACTIVE
//
// # Keeper
//
// Keeper is a one-shot state machine:
//
//	ACTIVE ──Touch──▶ ACTIVE   (timer restarted, renewal fired)
//	ACTIVE ──timeout─▶ EXPIRED (State.Expire(ReasonIdle))
//
// Renewals are best-effort: they run in the background, at most one at a
// time, and failures are logged. Start returns a stop function that cancels
// the timer and in-flight renewals; call it on every exit path.
package session
