package output

import (
	"fmt"
	"strings"

	"branchsweep/internal/state"
)

var tableHeader = []string{"BRANCH", "LAST COMMIT", "INACTIVE (days)", "STATUS"}

// formatTable renders rows as aligned columns: a header line, a separator
// line, then one line per row.
func formatTable(rows []state.Row) []string {
	widths := make([]int, len(tableHeader))
	for i, h := range tableHeader {
		widths[i] = len(h)
	}

	cells := make([][]string, 0, len(rows))
	for _, r := range rows {
		row := []string{r.Branch, r.Commit, fmt.Sprintf("%d", r.InactiveDays), string(r.Status)}
		for i, c := range row {
			if len(c) > widths[i] {
				widths[i] = len(c)
			}
		}
		cells = append(cells, row)
	}

	pad := func(row []string) string {
		parts := make([]string, len(row))
		for i, c := range row {
			parts[i] = fmt.Sprintf("%-*s", widths[i], c)
		}
		return strings.TrimRight(strings.Join(parts, " "), " ")
	}

	separator := make([]string, len(tableHeader))
	for i, h := range tableHeader {
		separator[i] = strings.Repeat("-", len(h))
	}

	lines := []string{pad(tableHeader), pad(separator)}
	for _, row := range cells {
		lines = append(lines, pad(row))
	}
	return lines
}
