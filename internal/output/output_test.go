package output

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"branchsweep/internal/state"
)

var sampleRows = []state.Row{
	{Branch: "release/1.0", Commit: "c1", InactiveDays: 69, Status: state.StatusMarked},
	{Branch: "feature/x", Commit: "c2", InactiveDays: 19, Status: state.StatusRetained},
}

func TestFormatTable(t *testing.T) {
	lines := formatTable(sampleRows)
	require.Len(t, lines, 4)

	assert.Equal(t, "BRANCH      LAST COMMIT INACTIVE (days) STATUS", lines[0])
	assert.Equal(t, "------      ----------- --------------- ------", lines[1])
	assert.Equal(t, "release/1.0 c1          69              MARKED FOR DELETION", lines[2])
	assert.Equal(t, "feature/x   c2          19              RETAINED", lines[3])
}

func TestFormatTable_WidensColumnsToFit(t *testing.T) {
	rows := []state.Row{
		{Branch: "feature/a-very-long-branch-name", Commit: "deadbeefcafe", InactiveDays: 3, Status: state.StatusRetained},
	}
	lines := formatTable(rows)

	// Every cell starts at the same offset in every line.
	commitCol := strings.Index(lines[0], "LAST COMMIT")
	assert.Equal(t, commitCol, strings.Index(lines[2], "deadbeefcafe"))
}

func TestConsoleSink(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })

	var buf bytes.Buffer
	sink := NewConsoleSink(&buf)

	require.NoError(t, sink.Write(RepoResult{Project: "PROJ", Repo: "service-a", Rows: sampleRows}))
	require.NoError(t, sink.Close())

	out := buf.String()
	assert.Contains(t, out, "PROJ - service-a")
	assert.Contains(t, out, "MARKED FOR DELETION")
	assert.Contains(t, out, "feature/x")
}

func TestLogFileSink_AppendsSections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results", "run.log")

	sink, err := NewLogFileSink(path)
	require.NoError(t, err)
	require.NoError(t, sink.Write(RepoResult{Project: "proj", Repo: "service-a", Rows: sampleRows}))
	require.NoError(t, sink.Close())

	// A second run appends rather than truncates.
	sink, err = NewLogFileSink(path)
	require.NoError(t, err)
	require.NoError(t, sink.Write(RepoResult{Project: "proj", Repo: "service-b", Rows: sampleRows[:1]}))
	require.NoError(t, sink.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(raw)
	assert.Contains(t, content, "PROJ - SERVICE-A")
	assert.Contains(t, content, "PROJ - SERVICE-B")
	assert.Contains(t, content, strings.Repeat("=", 100))
	assert.Contains(t, content, "release/1.0")
}

func TestHTMLReportSink_OnlyRepositoriesWithRemovals(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.html")

	sink, err := NewHTMLReportSink(path, "deleted")
	require.NoError(t, err)
	require.NoError(t, sink.Write(RepoResult{Project: "proj", Repo: "dirty", Rows: sampleRows}))
	require.NoError(t, sink.Write(RepoResult{Project: "proj", Repo: "clean", Rows: []state.Row{
		{Branch: "feature/x", Commit: "c2", InactiveDays: 19, Status: state.StatusRetained},
	}}))
	require.NoError(t, sink.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(raw)
	assert.Contains(t, content, "<td>dirty</td>")
	assert.NotContains(t, content, "<td>clean</td>")
	assert.Contains(t, content, "# of branches deleted")
}

func TestHTMLReportSink_CountsRetainedAndRemoved(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.html")

	sink, err := NewHTMLReportSink(path, "marked for deletion")
	require.NoError(t, err)
	require.NoError(t, sink.Write(RepoResult{Project: "proj", Repo: "service-a", Rows: sampleRows}))
	require.NoError(t, sink.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(raw)
	assert.Contains(t, content, "<td>service-a</td>")
	assert.Contains(t, content, "<td>2</td>") // total
	assert.Contains(t, content, "# of branches marked for deletion")
}

func TestManager_FansOutAndJoinsErrors(t *testing.T) {
	var a, b bytes.Buffer
	mgr := NewManager()
	require.NoError(t, mgr.AddSink(NewConsoleSink(&a)))
	require.NoError(t, mgr.AddSink(NewConsoleSink(&b)))

	require.NoError(t, mgr.Write(RepoResult{Project: "p", Repo: "r", Rows: sampleRows}))
	assert.NotEmpty(t, a.String())
	assert.Equal(t, a.String(), b.String())

	require.Error(t, mgr.AddSink(nil))
	require.NoError(t, mgr.Close())
}
