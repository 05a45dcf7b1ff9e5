// Package todolist holds the list view state and turns user intents into
// backend calls.
//
// # Overview
//
// The Controller owns the current Query (search text, tag filter and page),
// the pending edit, and a Store with the items of the current page. The UI
// calls controller methods from tea.Cmd goroutines and renders Snapshot
// values; it never touches the backend directly.
//
//	UI (bubbletea)                Controller                 todoapi.Client
//	┌──────────────┐  SetQuery   ┌──────────────┐  Search   ┌──────────────┐
//	│ key handlers │────────────→│ query, edit  │──────────→│ HTTP         │
//	│              │←────────────│ Store        │←──────────│              │
//	└──────────────┘  Snapshot   └──────────────┘  Page     └──────────────┘
//
// # Fetch Semantics
//
// Refresh uses the search endpoint whenever the query carries text or a
// tag, otherwise the plain listing. Changing the text or the tag returns to
// page 1. Creating an item returns to page 1; updating, deleting and
// toggling keep the current page and filter.
//
// Every fetch takes a sequence number. Store.Update applies a result only
// when no newer fetch has been applied, so a slow response for an old query
// cannot overwrite a fast one for the current query.
//
// # Error Handling
//
// A failed fetch keeps the previous items and records the error:
//
//   - LastError: most recent fetch error (nil on success)
//   - ConsecutiveFailures: reset on the next success; two or more mark the
//     backend offline
//
// A failed write returns its error and leaves the pending edit in place so
// the user can retry. A successful write whose follow-up refresh fails still
// reports success; the refresh failure is visible in the snapshot.
//
// # Concurrency
//
// All Controller methods are safe for concurrent use. Snapshot returns a
// deep copy, including item tag slices. The zero Store is ready to use.
package todolist
