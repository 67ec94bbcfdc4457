package output

import (
	"errors"
	"fmt"

	"branchsweep/internal/state"
)

// RepoResult is one repository's finished batch of branch rows, in
// branch-listing order. Sinks receive exactly one RepoResult per processed
// repository.
type RepoResult struct {
	Project string
	Repo    string
	Rows    []state.Row
}

// Sink defines a destination for run results.
type Sink interface {
	Write(res RepoResult) error
	Close() error
}

// Manager coordinates writing results to multiple sinks.
type Manager struct {
	sinks []Sink
}

func NewManager() *Manager {
	return &Manager{}
}

func (m *Manager) AddSink(s Sink) error {
	if s == nil {
		return fmt.Errorf("sink must not be nil")
	}
	m.sinks = append(m.sinks, s)
	return nil
}

func (m *Manager) Write(res RepoResult) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Write(res); err != nil {
			errs = append(errs, fmt.Errorf("write %T: %w", s, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors writing to sinks: %w", errors.Join(errs...))
	}
	return nil
}

func (m *Manager) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %T: %w", s, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors closing sinks: %w", errors.Join(errs...))
	}
	return nil
}
