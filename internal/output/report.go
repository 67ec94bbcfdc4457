package output

import (
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"sync"

	"branchsweep/internal/state"
)

const summaryTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta http-equiv="X-UA-Compatible" content="IE=edge">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Branch Purging Summary</title>
</head>
<style>
    body {
        font-family: arial, sans-serif;
    }

    table {
      border-collapse: collapse;
    }

    td, th {
      border: 1px solid #dddddd;
      text-align: center;
      padding: 8px;
    }

    tr:nth-child(even) {
      background-color: #dddddd;
    }

    li {
        padding-bottom: 8px
    }
</style>
<body>
    <h3>Branch Maintenance</h3>

    <h4>Rule for Purging</h4>
    <p>
    Branches without any commits for consecutive days of the retention period mentioned below are candidates for purging, except for master &amp; develop.
    <br/>
    Deprecated repos are excluded.
    </p>
    <ol>
        <li>Release &amp; Hotfix - Retention period is 30 days</li>
        <li>All other branches - Retention period is 45 days</li>
    </ol>
    <h4>Summary</h4>
    <i>For detailed log please refer the attachment</i>
    <table>
        <tr>
        {{- range .Header}}
            <th>{{.}}</th>
        {{- end}}
        </tr>
        {{- range .Body}}
        <tr>
            <td>{{.Repo}}</td>
            <td>{{.Total}}</td>
            <td>{{.Retained}}</td>
            <td>{{.Removed}}</td>
        </tr>
        {{- end}}
    </table>
</body>
</html>
`

type summaryRow struct {
	Repo     string
	Total    int
	Retained int
	Removed  int
}

// HTMLReportSink accumulates per-repository totals and renders the summary
// page on Close. actionLabel distinguishes the two phases in the header
// ("marked for deletion" on scan day, "deleted" on delete day).
type HTMLReportSink struct {
	path        string
	actionLabel string
	mu          sync.Mutex
	body        []summaryRow
}

func NewHTMLReportSink(path, actionLabel string) (*HTMLReportSink, error) {
	if path == "" {
		return nil, fmt.Errorf("report path required")
	}
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create report directory: %w", err)
		}
	}
	return &HTMLReportSink{path: path, actionLabel: actionLabel}, nil
}

func (s *HTMLReportSink) Write(res RepoResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := summaryRow{Repo: res.Repo, Total: len(res.Rows)}
	for _, r := range res.Rows {
		if r.Status == state.StatusRetained {
			row.Retained++
		} else {
			row.Removed++
		}
	}

	// Clean repositories stay out of the summary body.
	if row.Removed > 0 {
		s.body = append(s.body, row)
	}
	return nil
}

func (s *HTMLReportSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tmpl, err := template.New("summary").Parse(summaryTemplate)
	if err != nil {
		return fmt.Errorf("parse summary template: %w", err)
	}

	f, err := os.Create(s.path)
	if err != nil {
		return fmt.Errorf("create report file: %w", err)
	}

	data := struct {
		Header []string
		Body   []summaryRow
	}{
		Header: []string{
			"Repository",
			"Total Branches",
			"# of branches retained",
			fmt.Sprintf("# of branches %s", s.actionLabel),
		},
		Body: s.body,
	}

	if err := tmpl.Execute(f, data); err != nil {
		_ = f.Close()
		return fmt.Errorf("render report: %w", err)
	}
	return f.Close()
}
