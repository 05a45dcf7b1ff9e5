package ui

import "time"

// Terminal width thresholds for responsive layouts.
const (
	// LayoutCompactWidth is the threshold below which compact mode is used.
	LayoutCompactWidth = 100

	// LayoutSplitWidth is the minimum width to show the detail pane next to the list.
	LayoutSplitWidth = 110

	// LayoutExtraWideWidth is the threshold for extra-wide layouts.
	LayoutExtraWideWidth = 160
)

// Log pane limits.
const (
	// LogTailLines is the number of lines read from the end of the log file.
	LogTailLines = 500
)

// Timing constants.
const (
	// DefaultUIInterval is how often the view re-reads the list snapshot.
	DefaultUIInterval = time.Second

	// FlashDuration is how long a status message stays in the header.
	FlashDuration = 4 * time.Second

	// ActionTimeout bounds a single backend call started from the UI.
	ActionTimeout = 30 * time.Second
)
