package eval

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/fredqa/internal/model"
)

// exampleFailures is how many failed cases the Markdown report lists.
const exampleFailures = 5

// WriteJSON writes the full report as indented JSON.
func WriteJSON(w io.Writer, r *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return eris.Wrap(err, "eval: encode report")
	}
	return nil
}

// WriteMarkdown writes a human-readable run summary.
func WriteMarkdown(w io.Writer, r *Report) error {
	s := r.Summary
	var b strings.Builder
	b.WriteString("# fredqa Evaluation Report\n\n")
	fmt.Fprintf(&b, "- Run: %s\n", r.RunID)
	if r.Agent != "" {
		fmt.Fprintf(&b, "- Agent: %s\n", r.Agent)
	}
	fmt.Fprintf(&b, "- Total cases: %d\n", s.Total)
	fmt.Fprintf(&b, "- Passed: %d\n", s.NumPassed)
	fmt.Fprintf(&b, "- Failed: %d\n", s.NumFailed)
	fmt.Fprintf(&b, "- Pass rate: %.1f%%\n", s.PassRate*100)
	fmt.Fprintf(&b, "- Critical failures: %d\n\n", s.CriticalFailureCount)

	b.WriteString("## Failure breakdown\n\n")
	breakdown := s.Breakdown()
	if len(breakdown) == 0 {
		b.WriteString("- None\n")
	}
	for _, c := range breakdown {
		fmt.Fprintf(&b, "- %s: %d\n", c.CheckID, c.Count)
	}

	b.WriteString("\n## Example failed cases\n\n")
	shown := 0
	for _, c := range r.Cases {
		if c.Passed() {
			continue
		}
		if shown == exampleFailures {
			break
		}
		shown++
		fmt.Fprintf(&b, "- **%s**\n", c.ID)
		fmt.Fprintf(&b, "  - Question: %s\n", c.Question)
		for _, f := range c.Failures {
			fmt.Fprintf(&b, "  - [%s] %s: %s\n", f.Severity, f.CheckID, f.Message)
		}
	}
	if shown == 0 {
		b.WriteString("- None\n")
	}

	if _, err := io.WriteString(w, b.String()); err != nil {
		return eris.Wrap(err, "eval: write markdown")
	}
	return nil
}

// WriteTable prints the summary and failure breakdown as console tables.
func WriteTable(w io.Writer, r *Report) error {
	s := r.Summary
	table := tablewriter.NewWriter(w)
	table.Header([]string{"Total", "Passed", "Failed", "Pass Rate", "Critical"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})
	if err := table.Bulk([][]string{{
		strconv.Itoa(s.Total),
		strconv.Itoa(s.NumPassed),
		strconv.Itoa(s.NumFailed),
		fmt.Sprintf("%.1f%%", s.PassRate*100),
		strconv.Itoa(s.CriticalFailureCount),
	}}); err != nil {
		return eris.Wrap(err, "eval: summary table")
	}
	if err := table.Render(); err != nil {
		return eris.Wrap(err, "eval: render summary table")
	}

	breakdown := s.Breakdown()
	if len(breakdown) == 0 {
		return nil
	}
	checks := tablewriter.NewWriter(w)
	checks.Header([]string{"Check", "Failures"})
	data := make([][]string, 0, len(breakdown))
	for _, c := range breakdown {
		data = append(data, []string{c.CheckID, strconv.Itoa(c.Count)})
	}
	if err := checks.Bulk(data); err != nil {
		return eris.Wrap(err, "eval: breakdown table")
	}
	if err := checks.Render(); err != nil {
		return eris.Wrap(err, "eval: render breakdown table")
	}
	return nil
}

// Sheet names used by WriteXLSX.
const (
	SummarySheet = "Summary"
	CasesSheet   = "Cases"
)

var caseColumns = []string{"ID", "Question", "Status", "Value", "Display", "Confidence", "Failures", "Elapsed (ms)"}

// WriteXLSX saves the report as a workbook with a summary sheet and one row
// per case.
func WriteXLSX(path string, r *Report) error {
	f := xlsx.NewFile()

	summary, err := f.AddSheet(SummarySheet)
	if err != nil {
		return eris.Wrap(err, "eval: add summary sheet")
	}
	s := r.Summary
	addRow(summary, "Run", r.RunID)
	addRow(summary, "Total cases", strconv.Itoa(s.Total))
	addRow(summary, "Passed", strconv.Itoa(s.NumPassed))
	addRow(summary, "Failed", strconv.Itoa(s.NumFailed))
	addRow(summary, "Pass rate", fmt.Sprintf("%.1f%%", s.PassRate*100))
	addRow(summary, "Critical failures", strconv.Itoa(s.CriticalFailureCount))
	for _, c := range s.Breakdown() {
		addRow(summary, c.CheckID, strconv.Itoa(c.Count))
	}

	cases, err := f.AddSheet(CasesSheet)
	if err != nil {
		return eris.Wrap(err, "eval: add cases sheet")
	}
	addRow(cases, caseColumns...)
	for _, c := range r.Cases {
		value, display, confidence := "", "", ""
		if c.Response != nil {
			if c.Response.Value != nil {
				value = strconv.FormatFloat(*c.Response.Value, 'g', -1, 64)
			}
			if c.Response.ValueDisplay != nil {
				display = *c.Response.ValueDisplay
			}
			confidence = strconv.FormatFloat(c.Response.Confidence, 'f', 2, 64)
		}
		addRow(cases, c.ID, c.Question, c.Status, value, display, confidence,
			failureSummary(c.Failures), strconv.FormatInt(c.ElapsedMS, 10))
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrapf(err, "eval: create report dir %s", dir)
		}
	}
	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "eval: save workbook %s", path)
	}
	return nil
}

func addRow(sheet *xlsx.Sheet, values ...string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}

func failureSummary(failures []model.Failure) string {
	parts := make([]string, len(failures))
	for i, f := range failures {
		parts[i] = fmt.Sprintf("[%s] %s", f.Severity, f.CheckID)
	}
	return strings.Join(parts, "; ")
}

// WriteFiles writes report.json and report.md into dir, plus report.xlsx
// when withXLSX is set. It returns the written paths.
func WriteFiles(dir string, r *Report, withXLSX bool) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "eval: create report dir %s", dir)
	}
	var paths []string
	for _, out := range []struct {
		name  string
		write func(io.Writer, *Report) error
	}{
		{"report.json", WriteJSON},
		{"report.md", WriteMarkdown},
	} {
		p := filepath.Join(dir, out.name)
		if err := writeFile(p, r, out.write); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	if withXLSX {
		p := filepath.Join(dir, "report.xlsx")
		if err := WriteXLSX(p, r); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}

func writeFile(path string, r *Report, write func(io.Writer, *Report) error) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "eval: create %s", path)
	}
	if err := write(f, r); err != nil {
		f.Close() //nolint:errcheck
		return err
	}
	return eris.Wrapf(f.Close(), "eval: close %s", path)
}
