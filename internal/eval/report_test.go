package eval

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/fredqa/internal/model"
)

func sampleReport() *Report {
	results := sampleResults()
	resp := model.NewResponse(results[0].Question, model.TransformPoint)
	resp.Value = model.Ptr(14.7)
	resp.ValueDisplay = model.Ptr("14.70%")
	resp.Confidence = 0.95
	results[0].Response = resp
	return &Report{RunID: "run-1", Agent: "local", Cases: results, Summary: Summarize(results)}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, sampleReport()))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	summary := decoded["summary"].(map[string]any)
	for _, key := range []string{"total", "passed", "failed", "pass_rate", "critical_failure_count", "failure_breakdown_by_check"} {
		assert.Contains(t, summary, key)
	}
	first := decoded["cases"].([]any)[0].(map[string]any)
	assert.Equal(t, "pass", first["status"])
	assert.Equal(t, []any{}, first["failures"])
}

func TestWriteMarkdown(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMarkdown(&buf, sampleReport()))
	md := buf.String()

	assert.True(t, strings.HasPrefix(md, "# fredqa Evaluation Report\n"))
	assert.Contains(t, md, "- Total cases: 3\n")
	assert.Contains(t, md, "- Pass rate: 33.3%\n")
	assert.Contains(t, md, "- Critical failures: 1\n")
	assert.Contains(t, md, "## Failure breakdown\n\n- value_display_in_answer: 2\n- truth_matches: 1\n")
	assert.Contains(t, md, "- **unrate_yoy_0**\n  - Question: What was the year-over-year change")
	assert.Contains(t, md, "  - [critical] truth_matches: truth_matches failed\n")
	assert.NotContains(t, md, "**unrate_point_0**")
}

func TestWriteMarkdown_LimitsExamplesAndEmpty(t *testing.T) {
	var results []CaseResult
	for i := range 8 {
		results = append(results, CaseResult{ID: fmt.Sprintf("case_%d", i), Failures: []model.Failure{failure("schema_valid", model.SeverityCritical)}})
	}
	var buf bytes.Buffer
	require.NoError(t, WriteMarkdown(&buf, &Report{Cases: results, Summary: Summarize(results)}))
	assert.Equal(t, exampleFailures, strings.Count(buf.String(), "- **case_"))

	buf.Reset()
	require.NoError(t, WriteMarkdown(&buf, &Report{Summary: Summarize(nil)}))
	assert.Contains(t, buf.String(), "## Failure breakdown\n\n- None\n")
	assert.Contains(t, buf.String(), "## Example failed cases\n\n- None\n")
}

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTable(&buf, sampleReport()))
	out := buf.String()
	assert.Contains(t, out, "33.3%")
	assert.Contains(t, out, "value_display_in_answer")
	assert.Contains(t, out, "truth_matches")
}

func TestWriteXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "report.xlsx")
	require.NoError(t, WriteXLSX(path, sampleReport()))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)

	summary, ok := f.Sheet[SummarySheet]
	require.True(t, ok)
	assert.Equal(t, "Run", summary.Rows[0].Cells[0].String())
	assert.Equal(t, "run-1", summary.Rows[0].Cells[1].String())
	assert.Equal(t, "33.3%", summary.Rows[4].Cells[1].String())

	cases, ok := f.Sheet[CasesSheet]
	require.True(t, ok)
	require.Len(t, cases.Rows, 4)
	assert.Equal(t, "ID", cases.Rows[0].Cells[0].String())
	row := cases.Rows[1].Cells
	assert.Equal(t, "unrate_point_0", row[0].String())
	assert.Equal(t, "14.7", row[3].String())
	assert.Equal(t, "14.70%", row[4].String())
	assert.Equal(t, "0.95", row[5].String())
	assert.Equal(t, "[critical] truth_matches; [warning] value_display_in_answer", cases.Rows[2].Cells[6].String())
}

func TestWriteFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	paths, err := WriteFiles(dir, sampleReport(), true)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "report.json"),
		filepath.Join(dir, "report.md"),
		filepath.Join(dir, "report.xlsx"),
	}, paths)
	for _, p := range paths {
		info, err := os.Stat(p)
		require.NoError(t, err)
		assert.Positive(t, info.Size())
	}
}
