// Package logging assembles the structured slog loggers used across evenkeel.
//
// It owns the console and JSON handlers, the fanout that duplicates events to
// stdout and the log file, and a no-op logger for tests and wiring code that
// cannot fail. Console output is one timestamped line per event, colored only
// when writing to a terminal.
//
// Prefer these constructors over hand-rolled slog setup so every component
// emits events with the same shape and routing.
package logging
