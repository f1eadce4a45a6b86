// Package logging assembles structured slog loggers and formatting helpers used
// across the bot runtime and the admin CLI.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so delivery and broadcast code
// can tag log lines with run ids, users, and titles. NewNop returns a logger
// for tests and wiring code that cannot fail.
package logging
