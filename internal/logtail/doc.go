// Package logtail reads the end of the todopad log file and parses the
// logrus text lines for the in-app log pane.
//
// # Reading
//
// Read keeps a ring buffer of maxLines entries while scanning the file once,
// so memory stays O(maxLines) however large the log grows:
//
//	lines, err := logtail.Read(cfg.LogFile, 500)
//
// A missing file is not an error; the client may not have logged yet.
//
// # Parsing
//
// logging.Setup configures the logrus TextFormatter without colors, which
// writes key=value pairs:
//
//	time="2026-10-17 09:41:07" level=info msg="item created" component=list id=6f2c
//
// Parse returns the timestamp, level, message and remaining fields. Lines
// that are not key=value output (panics, stray writes) are kept as raw
// messages without a level. Filter drops entries below a minimum severity;
// unlevelled lines inherit the decision of the line before them.
package logtail
