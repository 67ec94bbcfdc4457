package output

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fatih/color"

	"branchsweep/internal/state"
)

var (
	retainedColor = color.New(color.FgGreen)
	markedColor   = color.New(color.FgYellow)
	deletedColor  = color.New(color.FgRed)
)

// ConsoleSink prints one aligned table per repository, with row coloring by
// status.
type ConsoleSink struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewConsoleSink(w io.Writer) *ConsoleSink {
	if w == nil {
		w = os.Stdout
	}
	return &ConsoleSink{writer: w}
}

func (s *ConsoleSink) Write(res RepoResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := fmt.Fprintf(s.writer, "\n%s - %s\n", res.Project, res.Repo); err != nil {
		return err
	}

	lines := formatTable(res.Rows)
	for i, line := range lines {
		// The first two lines are the header and separator.
		if i >= 2 {
			line = colorFor(res.Rows[i-2].Status).Sprint(line)
		}
		if _, err := fmt.Fprintln(s.writer, line); err != nil {
			return err
		}
	}
	return nil
}

func (s *ConsoleSink) Close() error {
	return nil
}

func colorFor(status state.Status) *color.Color {
	switch status {
	case state.StatusDeleted:
		return deletedColor
	case state.StatusMarked:
		return markedColor
	default:
		return retainedColor
	}
}
