// Package app provides the orchestration layer for todopad.
//
// # Overview
//
// This package wires together configuration, logging, the token store, the
// session, the API client, the list controller, the background poller and
// the UI. It is the composition root: every dependency is built here and
// handed down explicitly.
//
// # Startup
//
//  1. Load ~/.config/todopad/config.toml and apply command-line overrides
//  2. Point logrus at the log file (the TUI owns the terminal)
//  3. Load UI preferences
//  4. Open the credentials file; a stored token starts the session ACTIVE
//  5. Build the API client and list controller on top of the session
//  6. Start the idle keeper when a session is active
//  7. Launch the background poller and fetch the first page
//  8. Run the TUI until the user quits or the context is cancelled
//
// # Components
//
//   - app.go: Run and command-line overrides
//   - keepers.go: the idle keeper of the current login; replaced on every login
//   - poller.go: background refresh of the current page with backoff
//
// # Data Flow
//
//	┌──────────────┐
//	│   Run()      │
//	└──────┬───────┘
//	       ├─────> config.Load()         config file + overrides
//	       ├─────> logging.Setup()       log file
//	       ├─────> tokenstore.Open()     stored token
//	       ├─────> session.NewState()    ACTIVE / EXPIRED
//	       ├─────> todoapi.NewClient()   HTTP + x-auth-token
//	       ├─────> todolist.New()        page, query, pending edit
//	       ├─────> keeperSlot.restart()  idle keeper
//	       ├─────> StartPoller()         background refresh
//	       └─────> ui.Run()              TUI (blocks)
//
//	UI activity ──> keeperSlot.touch ──> Keeper.Touch ──> renew + reset timer
//	Login       ──> keeperSlot.restart
//
// # Polling Behavior
//
// The poller refreshes the current page (30 seconds by default) so edits made
// from other clients show up. It skips ticks while logged out and doubles its
// delay for every consecutive failure, capped at five minutes.
//
// # Error Handling
//
// Fatal errors (returned from Run):
//   - Invalid configuration file
//   - Log file or credentials file that cannot be opened
//   - Invalid API URL
//
// Recoverable errors (logged, UI keeps running):
//   - Initial or periodic fetch failures
//   - Session renewal failures
//   - Preference load failures
//
// An expired token is not an error at startup: the first request that the
// backend rejects ends the session and the UI shows the login view.
package app
