// Package verify checks candidate responses against evaluation cases. Each
// check is independent; severities and applicability come from a Map.
package verify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/sells-group/fredqa/internal/metrics"
	"github.com/sells-group/fredqa/internal/model"
)

// TruthSource recomputes the expected value of a truth spec. ok=false means
// the value is absent.
type TruthSource interface {
	Compute(ctx context.Context, spec model.TruthSpec) (float64, bool, error)
}

// Suite runs the checks of a Map against responses. It is safe for
// concurrent use.
type Suite struct {
	m       Map
	truth   TruthSource
	metrics *metrics.Metrics
}

// Option configures a Suite.
type Option func(*Suite)

// WithMetrics counts failures by check and severity.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Suite) { s.metrics = m }
}

// NewSuite validates m and returns a Suite over it.
func NewSuite(m Map, truth TruthSource, opts ...Option) (*Suite, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	s := &Suite{m: m, truth: truth}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Map returns the suite's verifier map.
func (s *Suite) Map() Map {
	return s.m
}

// Verify checks a raw JSON response. A body that is not a JSON object yields
// a single schema_valid failure.
func (s *Suite) Verify(ctx context.Context, c model.Case, raw []byte) []model.Failure {
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return s.record(s.schemaFailure(fmt.Sprintf("Response is not valid JSON: %v.", err)))
	}
	obj, ok := decoded.(map[string]any)
	if !ok {
		return s.record(s.schemaFailure("Response must be a JSON object."))
	}

	in := input{c: c, r: view(obj), truth: s.truth}
	failures := []model.Failure{}
	for _, e := range s.m.Verifiers {
		if !e.IsEnabled() || !e.Applies(c.Expect) {
			continue
		}
		fn, ok := registry[e.ID]
		if !ok {
			continue
		}
		for _, msg := range fn(ctx, in) {
			failures = append(failures, model.Failure{CheckID: e.ID, Severity: e.Severity, Message: msg})
		}
	}
	return s.record(failures)
}

// VerifyResponse checks a typed response.
func (s *Suite) VerifyResponse(ctx context.Context, c model.Case, resp *model.Response) ([]model.Failure, error) {
	raw, err := json.Marshal(resp)
	if err != nil {
		return nil, eris.Wrap(err, "verify: marshal response")
	}
	return s.Verify(ctx, c, raw), nil
}

func (s *Suite) schemaFailure(msg string) []model.Failure {
	sev := model.SeverityCritical
	if e, ok := s.m.Lookup(CheckSchemaValid); ok {
		sev = e.Severity
	}
	return []model.Failure{{CheckID: CheckSchemaValid, Severity: sev, Message: msg}}
}

func (s *Suite) record(failures []model.Failure) []model.Failure {
	for _, f := range failures {
		s.metrics.IncrementVerifierFailure(f.CheckID, string(f.Severity))
	}
	return failures
}
