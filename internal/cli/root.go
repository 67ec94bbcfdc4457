package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	buildVersion = "dev"
	buildCommit  = "unknown"
	buildDate    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "branchsweep",
	Short: "Retire stale Bitbucket branches under a retention policy",
	Long: `Branchsweep retires stale branches across the repositories of a Bitbucket
Server project, following prefix-keyed retention rules.

The retention cycle has two phases:

	# Scan day: classify every branch and persist the classifications
	branchsweep scan --project MYPROJ --config policy.yaml

	# Delete day: re-validate each flagged branch against its current state,
	# then delete the ones that are still stale
	branchsweep reconcile --project MYPROJ --config policy.yaml

A branch that received new commits between the two phases is never deleted:
the reconcile phase detects the drift, recomputes its inactivity and retains
it. master, develop and any branches excluded by the policy file are never
classified at all.`,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&cfg.Runtime.Verbose, "verbose", false, "Enable verbose logging (prints every Bitbucket API call and full error details)")
}

func SetBuildInfo(version, commit, date string) {
	if version != "" {
		buildVersion = version
	}
	if commit != "" {
		buildCommit = commit
	}
	if date != "" {
		buildDate = date
	}

	rootCmd.Version = fmt.Sprintf("%s (%s) %s", buildVersion, buildCommit, buildDate)
	rootCmd.SetVersionTemplate("{{.Version}}\n")
}

func BuildInfo() (version, commit, date string) {
	return buildVersion, buildCommit, buildDate
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
