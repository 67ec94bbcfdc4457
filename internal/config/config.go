package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type Config struct {
	// MAINTAINER NOTE: If you add/change/remove config fields that affect run
	// behavior, keep the CLI flags in internal/cli/scan.go and
	// internal/cli/reconcile.go in sync.
	Targeting Targeting
	Auth      Auth
	Paths     Paths
	Output    Output
	Runtime   Runtime
}

type Targeting struct {
	// Project is the Bitbucket project key whose repositories are processed
	// (see --project).
	Project string

	// Repos is an explicit list of repository names within the project
	// (see --repos). Values may be provided as repeated flags and/or
	// comma-separated lists. Empty means all repositories of the project.
	Repos []string
}

type Auth struct {
	// Username enables HTTP basic auth together with Token (see --username).
	// If empty, Token is sent as a bearer token.
	Username string

	// Token is the access token or password (see --token). If empty it is
	// resolved from the BITBUCKET_TOKEN environment variable.
	Token string
}

type Paths struct {
	// Policy is the YAML retention-policy file (see --config).
	Policy string

	// State is the persisted classification document (see --state).
	State string
}

type Output struct {
	// LogFile appends per-repository result tables to this path (see --log-file).
	LogFile string

	// Report writes an HTML summary to this path (see --report).
	Report string

	// NoConsole suppresses the console sink (see --no-console).
	NoConsole bool
}

type Runtime struct {
	// Concurrency bounds the branch fan-out width per repository
	// (see --concurrency). Must be >= 1.
	Concurrency int

	// Timeout is the global timeout for the run (see --timeout). Must be > 0.
	Timeout time.Duration

	// DryRun reports what reconcile would delete without calling any
	// destructive endpoint (see --dry-run).
	DryRun bool

	// Verbose enables debug logging, including one line per API call.
	Verbose bool
}

func New() *Config {
	return &Config{
		Paths: Paths{
			State: "results/state.json",
		},
		Runtime: Runtime{
			Concurrency: 8,
			Timeout:     30 * time.Minute,
		},
	}
}

func (c *Config) Validate() error {
	// Normalize comma-delimited list inputs.
	c.Targeting.Repos = splitCommaList(c.Targeting.Repos)

	c.Targeting.Project = strings.TrimSpace(c.Targeting.Project)
	if c.Targeting.Project == "" {
		return errors.New("--project is required")
	}

	if strings.TrimSpace(c.Paths.Policy) == "" {
		return errors.New("--config is required")
	}
	if strings.TrimSpace(c.Paths.State) == "" {
		return errors.New("--state must not be empty")
	}

	if c.Runtime.Concurrency <= 0 {
		return errors.New("--concurrency must be >= 1")
	}
	if c.Runtime.Timeout <= 0 {
		return errors.New("--timeout must be > 0")
	}

	if c.Auth.Username != "" && strings.TrimSpace(c.Auth.Token) == "" {
		return fmt.Errorf("--username requires a token (set --token or BITBUCKET_TOKEN)")
	}

	return nil
}

func splitCommaList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			p := strings.TrimSpace(part)
			if p == "" {
				continue
			}
			out = append(out, p)
		}
	}
	return out
}
