package cli

import (
	"github.com/spf13/cobra"

	"branchsweep/internal/flags"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Re-validate flagged branches and delete the ones still stale",
	Long: `Replay the persisted classifications of a previous "branchsweep scan"
against the current live branch lists and delete the branches that are still
stale.

A flagged branch is deleted only if its current inactivity still exceeds its
threshold. If the branch received new commits since the scan, its inactivity
is recomputed from the new commit date and the branch is retained when it
recovered. The delete sequence per branch is strictly ordered: matching
branch-permission rules are removed first, then the branch itself. A failure
affects only that branch; the rest of the batch proceeds.

Exit codes:
	0 = clean run (also when no persisted state exists yet)
	2 = partial failure (some repositories or branches errored)
	3 = fatal error (configuration, auth, or state I/O)

Examples:
  export BITBUCKET_TOKEN="<your_token>"
  branchsweep reconcile --project MYPROJ --config policy.yaml

  # Show what would be deleted without touching anything
  branchsweep reconcile --project MYPROJ --config policy.yaml --dry-run
`,
	Run: func(cmd *cobra.Command, args []string) {
		runPhase(cmd, phaseReconcile)
	},
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
	addCommonFlags(reconcileCmd)
	reconcileCmd.Flags().BoolVar(&cfg.Runtime.DryRun, flags.FlagDryRun, false, "Report what would be deleted without calling any destructive endpoint")
}
