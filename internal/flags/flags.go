package flags

// Package flags defines canonical CLI flag names shared across the CLI.
// Keeping these as constants helps avoid drift between Cobra flag wiring and
// other code paths that need to reference flags (e.g. error messages and
// documentation).
// IMPORTANT: These are flag *names* without leading dashes.
const (
	FlagConfig        = "config"
	FlagVerbose       = "verbose"
	FlagDryRun        = "dry-run"
	FlagReport        = "report"
	FlagReportFormat  = "report-format"
	FlagNoColor       = "no-color"
	FlagExampleConfig = "example-config"
)
