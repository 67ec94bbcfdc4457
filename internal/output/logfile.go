package output

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// LogFileSink appends one section per repository to a plain-text run log.
type LogFileSink struct {
	path string
	file *os.File
	mu   sync.Mutex
}

func NewLogFileSink(path string) (*LogFileSink, error) {
	if path == "" {
		return nil, fmt.Errorf("log file path required")
	}

	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return &LogFileSink{path: path, file: f}, nil
}

func (s *LogFileSink) Write(res RepoResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	banner := strings.Repeat("=", 100)
	var b strings.Builder
	fmt.Fprintf(&b, "\n%s\n", banner)
	fmt.Fprintf(&b, "%s - %s\n", strings.ToUpper(res.Project), strings.ToUpper(res.Repo))
	fmt.Fprintf(&b, "%s\n\n", banner)
	for _, line := range formatTable(res.Rows) {
		fmt.Fprintf(&b, "%s\n", line)
	}
	b.WriteString("\n")

	_, err := s.file.WriteString(b.String())
	return err
}

func (s *LogFileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}
