package cli

import (
	"github.com/spf13/cobra"

	"branchsweep/internal/flags"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Classify every branch's staleness and persist the results",
	Long: `Classify every branch of the project's repositories and persist the
classifications for a later reconcile run.

For each branch (except master, develop and the policy file's exclusions) the
latest commit date is fetched, inactivity is computed in whole days, and the
branch is either RETAINED (inactivity within its threshold, boundary
inclusive) or MARKED FOR DELETION. Thresholds are keyed by the branch-name
prefix before the first "/", with a mandatory default.

Nothing is deleted by this command. The classifications land in the state
file (see --state) and are only acted on by a later "branchsweep reconcile".

Authentication:
  Branchsweep sends a bearer token (--token or BITBUCKET_TOKEN), or HTTP basic
  credentials when --username is set.

Exit codes:
	0 = clean run
	2 = partial failure (some repositories or branches errored)
	3 = fatal error (configuration, auth, or state I/O)

Examples:
  export BITBUCKET_TOKEN="<your_token>"
  branchsweep scan --project MYPROJ --config policy.yaml

  # Only two repositories, with a run log and HTML summary
  branchsweep scan --project MYPROJ --config policy.yaml \
    --repos service-a,service-b --log-file results/scan.log --report results/index.html
`,
	Run: func(cmd *cobra.Command, args []string) {
		runPhase(cmd, phaseScan)
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)
	addCommonFlags(scanCmd)
}

func addCommonFlags(cmd *cobra.Command) {
	// Targeting
	cmd.Flags().StringVar(&cfg.Targeting.Project, flags.FlagProject, "", "Bitbucket project key (required)")
	cmd.Flags().StringSliceVar(&cfg.Targeting.Repos, flags.FlagRepos, nil, "Repositories to process (repeatable; comma-separated accepted; default: all project repositories)")

	// Policy / state
	cmd.Flags().StringVar(&cfg.Paths.Policy, flags.FlagConfig, "", "Retention policy YAML file (required)")
	cmd.Flags().StringVar(&cfg.Paths.State, flags.FlagState, cfg.Paths.State, "Persisted classification document")

	// Auth
	cmd.Flags().StringVar(&cfg.Auth.Username, flags.FlagUsername, "", "Username for HTTP basic auth (omit to send the token as a bearer token)")
	cmd.Flags().StringVar(&cfg.Auth.Token, flags.FlagToken, "", "Access token or password (default: BITBUCKET_TOKEN)")

	// Output
	cmd.Flags().StringVar(&cfg.Output.LogFile, flags.FlagLogFile, "", "Append per-repository result tables to this file")
	cmd.Flags().StringVar(&cfg.Output.Report, flags.FlagReport, "", "Write an HTML summary to this path")
	cmd.Flags().BoolVar(&cfg.Output.NoConsole, flags.FlagNoConsole, false, "Suppress console output")

	// Runtime
	cmd.Flags().IntVar(&cfg.Runtime.Concurrency, flags.FlagConcurrency, cfg.Runtime.Concurrency, "Concurrent branch lookups per repository")
	cmd.Flags().DurationVar(&cfg.Runtime.Timeout, flags.FlagTimeout, cfg.Runtime.Timeout, "Global timeout for the run")

	_ = cmd.MarkFlagRequired(flags.FlagProject)
	_ = cmd.MarkFlagRequired(flags.FlagConfig)
}
