// Package flags defines canonical CLI flag names shared across the CLI and engine.
// Keeping these as constants helps avoid drift between Cobra flag wiring and other
// code paths that need to reference flags (e.g. error messages).
// IMPORTANT: These are flag *names* without leading dashes.
// Example usage:
//
//	cmd.Flags().StringVar(&cfg.Targeting.Project, flags.FlagProject, "", "...")
//	arg := "--" + flags.FlagProject
package flags

const (
	// Targeting
	FlagProject = "project"
	FlagRepos   = "repos"

	// Policy / state
	FlagConfig = "config"
	FlagState  = "state"

	// Auth
	FlagUsername = "username"
	FlagToken    = "token"

	// Output
	FlagLogFile   = "log-file"
	FlagReport    = "report"
	FlagNoConsole = "no-console"

	// Runtime
	FlagConcurrency = "concurrency"
	FlagTimeout     = "timeout"
	FlagDryRun      = "dry-run"
)
