// Package ui provides the Bubble Tea terminal interface for todopad.
//
// # Architecture Overview
//
// Model is the root tea.Model. It never talks to the backend directly:
// list operations go through todolist.Controller and sign-in through
// todoapi.Client, always from a tea.Cmd so the UI loop never blocks. Results
// come back as messages (actionMsg, loginMsg) and the view re-reads the
// controller snapshot on every tick.
//
// # Files
//
//   - app.go: Model, Update routing, commands, Run
//   - list.go: item list, detail pane, pagination bar
//   - form.go: add/update form with attachment previews
//   - filters.go: search and tag inputs
//   - login.go: sign-in form
//   - logs.go: client log pane (tail of the log file)
//   - header.go: status bar and command bar
//   - modal.go: notice and confirm dialogs
//   - help.go, keys.go: key map and help overlay
//   - theme.go, strings.go, layout.go: styling, including the background canvas
//
// # Views
//
//   - List: items of the current page with completion box, tags and 🖼/📎
//     markers, a detail pane on wide terminals, and "Page p/N" below
//   - Form: text, tags, thumbnail path and file path; titled Add or Update
//   - Filters: search text and tag; each edit returns to page 1
//   - Login: email and password
//   - Log: the newest client log lines, filtered by minimum level
//
// # Session
//
// Every key press, mouse wheel event and left click is reported through
// Options.Touch so the idle keeper restarts its window. A goroutine started
// by waitForNotice blocks on session.State.Notices; when the session ends
// for any reason the model cancels pending edits, switches to the login view
// and shows the notice in a modal that must be dismissed. After a successful
// login Options.OnLogin restarts the keeper and the list reloads.
//
// # Errors
//
// Attachment validation errors and failed saves open a blocking modal.
// Other failures show in the header for a few seconds; fetch failures are
// also summarised there from the snapshot (HTTP status, timeout, offline
// after repeated failures). Session expiry errors are not shown twice: the
// session notice covers them.
package ui
