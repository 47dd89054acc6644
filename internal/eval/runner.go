// Package eval runs evaluation cases against an answering strategy and
// aggregates verifier results into reports.
package eval

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/fredqa/internal/metrics"
	"github.com/sells-group/fredqa/internal/model"
)

// RunnerErrorCheck is the check id recorded when asking a case fails.
const RunnerErrorCheck = "runner_error"

// Runner defaults.
const (
	DefaultWorkers     = 4
	DefaultCaseTimeout = 60 * time.Second
)

// Asker answers a question. Implementations must be safe for concurrent use.
type Asker interface {
	Ask(ctx context.Context, question string) (*model.Response, error)
}

// AskerFunc adapts a function to Asker.
type AskerFunc func(ctx context.Context, question string) (*model.Response, error)

// Ask calls f.
func (f AskerFunc) Ask(ctx context.Context, question string) (*model.Response, error) {
	return f(ctx, question)
}

// Verifier checks a response against a case.
type Verifier interface {
	VerifyResponse(ctx context.Context, c model.Case, resp *model.Response) ([]model.Failure, error)
}

// CaseResult is the outcome of one case.
type CaseResult struct {
	ID        string          `json:"id"`
	Question  string          `json:"question"`
	Status    string          `json:"status"`
	Response  *model.Response `json:"response"`
	Failures  []model.Failure `json:"failures"`
	ElapsedMS int64           `json:"elapsed_ms"`
}

// Passed reports whether the case produced no failures.
func (r CaseResult) Passed() bool {
	return len(r.Failures) == 0
}

// Report is a complete run.
type Report struct {
	RunID      string       `json:"run_id"`
	Agent      string       `json:"agent,omitempty"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Summary    Summary      `json:"summary"`
	Cases      []CaseResult `json:"cases"`
}

// Runner executes cases on a bounded worker pool.
type Runner struct {
	verifier    Verifier
	asker       Asker
	workers     int
	caseTimeout time.Duration
	agent       string
	metrics     *metrics.Metrics
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithWorkers bounds concurrent cases.
func WithWorkers(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithCaseTimeout bounds each ask.
func WithCaseTimeout(d time.Duration) RunnerOption {
	return func(r *Runner) {
		if d > 0 {
			r.caseTimeout = d
		}
	}
}

// WithAgent labels the report with the strategy under test.
func WithAgent(name string) RunnerOption {
	return func(r *Runner) { r.agent = name }
}

// WithRunnerMetrics counts case results.
func WithRunnerMetrics(m *metrics.Metrics) RunnerOption {
	return func(r *Runner) { r.metrics = m }
}

// NewRunner returns a Runner.
func NewRunner(v Verifier, a Asker, opts ...RunnerOption) *Runner {
	r := &Runner{
		verifier:    v,
		asker:       a,
		workers:     DefaultWorkers,
		caseTimeout: DefaultCaseTimeout,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Run scores every case. Results keep input order. A failing, panicking or
// hung ask becomes a runner_error failure for that case only; the run is
// aborted only when ctx is cancelled.
func (r *Runner) Run(ctx context.Context, cases []model.Case) (*Report, error) {
	report := &Report{
		RunID:     uuid.NewString(),
		Agent:     r.agent,
		StartedAt: time.Now().UTC(),
		Cases:     make([]CaseResult, len(cases)),
	}

	log := zap.L().With(zap.String("run_id", report.RunID))
	log.Info("eval: starting run",
		zap.Int("cases", len(cases)),
		zap.Int("workers", r.workers),
		zap.Duration("case_timeout", r.caseTimeout),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i, c := range cases {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res := r.runCase(gctx, c)
			report.Cases[i] = res
			r.metrics.IncrementCase(res.Passed())
			log.Debug("eval: case finished",
				zap.String("case", c.ID),
				zap.String("status", res.Status),
				zap.Int("failures", len(res.Failures)),
				zap.Int64("elapsed_ms", res.ElapsedMS),
			)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "eval: run cancelled")
	}
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "eval: run cancelled")
	}

	report.FinishedAt = time.Now().UTC()
	report.Summary = Summarize(report.Cases)
	log.Info("eval: run complete",
		zap.Int("total", report.Summary.Total),
		zap.Float64("pass_rate", report.Summary.PassRate),
		zap.Int("critical_failures", report.Summary.CriticalFailureCount),
	)
	return report, nil
}

func (r *Runner) runCase(ctx context.Context, c model.Case) CaseResult {
	start := time.Now()
	res := CaseResult{ID: c.ID, Question: c.Question, Failures: []model.Failure{}}

	resp, err := r.ask(ctx, c.Question)
	if err == nil {
		res.Response = resp
		res.Failures, err = r.verifier.VerifyResponse(ctx, c, resp)
	}
	if err != nil {
		res.Failures = []model.Failure{{
			CheckID:  RunnerErrorCheck,
			Severity: model.SeverityCritical,
			Message:  err.Error(),
		}}
	}
	if res.Failures == nil {
		res.Failures = []model.Failure{}
	}

	res.Status = "pass"
	if !res.Passed() {
		res.Status = "fail"
	}
	res.ElapsedMS = time.Since(start).Milliseconds()
	return res
}

type askResult struct {
	resp *model.Response
	err  error
}

// ask runs the asker under the case timeout and converts panics to errors.
// A hung asker is abandoned once the timeout fires.
func (r *Runner) ask(ctx context.Context, question string) (*model.Response, error) {
	cctx, cancel := context.WithTimeout(ctx, r.caseTimeout)
	defer cancel()

	ch := make(chan askResult, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				ch <- askResult{err: eris.New(fmt.Sprintf("eval: ask panicked: %v", p))}
			}
		}()
		resp, err := r.asker.Ask(cctx, question)
		ch <- askResult{resp: resp, err: err}
	}()

	select {
	case res := <-ch:
		if res.err != nil {
			return nil, res.err
		}
		if res.resp == nil {
			return nil, eris.New("eval: asker returned no response")
		}
		return res.resp, nil
	case <-cctx.Done():
		return nil, eris.Errorf("eval: ask timed out after %s", r.caseTimeout)
	}
}
