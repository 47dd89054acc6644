package eval

import (
	"sort"

	"github.com/rotisserie/eris"

	"github.com/sells-group/fredqa/internal/model"
)

// DefaultPassThreshold is the minimum pass rate for a run to pass the gate.
const DefaultPassThreshold = 0.9

// ErrGateFailed is returned when a run misses the pass threshold or has
// critical failures.
var ErrGateFailed = eris.New("eval: pass gate failed")

// Summary aggregates case results.
type Summary struct {
	Total                int            `json:"total"`
	NumPassed            int            `json:"passed"`
	NumFailed            int            `json:"failed"`
	PassRate             float64        `json:"pass_rate"`
	CriticalFailureCount int            `json:"critical_failure_count"`
	FailureBreakdown     map[string]int `json:"failure_breakdown_by_check"`
}

// Summarize counts passes, critical failures and failures per check.
func Summarize(results []CaseResult) Summary {
	s := Summary{Total: len(results), FailureBreakdown: map[string]int{}}
	for _, r := range results {
		if r.Passed() {
			s.NumPassed++
			continue
		}
		s.NumFailed++
		for _, f := range r.Failures {
			s.FailureBreakdown[f.CheckID]++
			if f.Severity == model.SeverityCritical {
				s.CriticalFailureCount++
			}
		}
	}
	if s.Total > 0 {
		s.PassRate = float64(s.NumPassed) / float64(s.Total)
	}
	return s
}

// Passed reports whether the run meets threshold with no critical failures.
func (s Summary) Passed(threshold float64) bool {
	return s.PassRate >= threshold && s.CriticalFailureCount == 0
}

// Gate returns ErrGateFailed when the run does not pass.
func (s Summary) Gate(threshold float64) error {
	if s.Passed(threshold) {
		return nil
	}
	return eris.Wrapf(ErrGateFailed, "pass rate %.1f%% (threshold %.1f%%), %d critical failures",
		s.PassRate*100, threshold*100, s.CriticalFailureCount)
}

// CheckCount is one row of the failure breakdown.
type CheckCount struct {
	CheckID string
	Count   int
}

// Breakdown returns the failure breakdown ordered by count descending, then
// check id.
func (s Summary) Breakdown() []CheckCount {
	out := make([]CheckCount, 0, len(s.FailureBreakdown))
	for id, n := range s.FailureBreakdown {
		out = append(out, CheckCount{CheckID: id, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].CheckID < out[j].CheckID
	})
	return out
}
