package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Policy is the retention policy loaded from the --config YAML file. It is
// immutable for the duration of a run: load it once, then thread it by value
// into every component that needs it.
type Policy struct {
	// BaseURL is the Bitbucket Server root, e.g. https://bitbucket.example.com.
	BaseURL string `yaml:"url"`

	// ExcludedBranches are branch display names that never get classified.
	// master and develop are always included regardless of the file contents.
	ExcludedBranches []string `yaml:"branches_to_exclude"`

	// Thresholds maps a branch-name prefix (the text before the first "/") to
	// a retention period in days. The "default" entry is mandatory.
	Thresholds map[string]int `yaml:"thresholds"`
}

// alwaysExcluded are protected by convention; deleting them is never on the
// table no matter what the policy file says.
var alwaysExcluded = []string{"master", "develop"}

const defaultThresholdKey = "default"

// LoadPolicy reads and validates the retention policy. Validation failures here
// are configuration errors: fatal, and raised before any remote call is made.
func LoadPolicy(path string) (Policy, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("read policy file: %w", err)
	}

	var p Policy
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return Policy{}, fmt.Errorf("parse policy file %s: %w", path, err)
	}

	p.BaseURL = strings.TrimRight(strings.TrimSpace(p.BaseURL), "/")
	if p.BaseURL == "" {
		return Policy{}, fmt.Errorf("policy file %s: url is required", path)
	}
	if len(p.Thresholds) == 0 {
		return Policy{}, fmt.Errorf("policy file %s: thresholds are required", path)
	}
	if _, ok := p.Thresholds[defaultThresholdKey]; !ok {
		return Policy{}, fmt.Errorf("policy file %s: thresholds.default is required", path)
	}
	for prefix, days := range p.Thresholds {
		if days <= 0 {
			return Policy{}, fmt.Errorf("policy file %s: threshold %q must be > 0, got %d", path, prefix, days)
		}
	}

	for _, name := range alwaysExcluded {
		if !containsString(p.ExcludedBranches, name) {
			p.ExcludedBranches = append(p.ExcludedBranches, name)
		}
	}

	return p, nil
}

// Excluded reports whether a branch display name is exempt from classification.
func (p Policy) Excluded(branchName string) bool {
	return containsString(p.ExcludedBranches, branchName)
}

// ThresholdFor resolves the retention period for a branch name: the segment
// before the first "/" selects the table entry, anything else falls back to
// the default. LoadPolicy guarantees the default exists, so there is no error
// path here.
func (p Policy) ThresholdFor(branchName string) int {
	prefix, _, _ := strings.Cut(branchName, "/")
	if days, ok := p.Thresholds[prefix]; ok {
		return days
	}
	return p.Thresholds[defaultThresholdKey]
}

func containsString(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}
