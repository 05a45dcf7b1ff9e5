// Package todoapi provides an HTTP client for the to-do backend.
//
// # Overview
//
// The client lists, searches, creates, updates, deletes and toggles items,
// downloads attachments, logs in and renews the session token. The package
// is split into two files:
//
//   - client.go: HTTP client implementation and request/response handling
//   - types.go: data structures mirroring the backend's JSON schema
//
// # Client Usage
//
//	state := session.NewState(tokens, logger)
//	client, err := todoapi.NewClient("http://localhost:5000", state, todoapi.Options{})
//	if err != nil {
//		return err
//	}
//	page, err := client.Search(ctx, "milk", "", 1)
//
// # Session Handling
//
// Every request carries the stored token in the x-auth-token header. When a
// /api/todos endpoint answers with the configured expired status (400 by
// default) the client ends the session through session.State, which clears
// the token and publishes a single notice however many requests observed the
// expiry. The call returns an error wrapping ErrSessionExpired. Auth
// endpoints never trigger the expiry path; their failures are plain
// *StatusError values.
//
// # Error Handling
//
// Transport failures are wrapped with "execute request", malformed bodies
// with "decode response". Other error statuses return *StatusError carrying
// the backend's message field. There are no retries.
package todoapi
