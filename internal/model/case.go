package model

// DefaultTolerance is the absolute tolerance used when a truth spec omits one.
const DefaultTolerance = 1e-6

// Severity grades a verification failure. Critical failures gate a run.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Failure is a single verifier finding for a case/response pair.
type Failure struct {
	CheckID  string   `json:"check_id"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// SpecWindow is the inclusive window of a windowed truth spec.
type SpecWindow struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// TruthSpec declares what the correct answer to a case is, independent of
// how any agent computes it.
type TruthSpec struct {
	SeriesID  string      `json:"series_id"`
	Transform Transform   `json:"transform"`
	Date      string      `json:"date,omitempty"`
	Window    *SpecWindow `json:"window,omitempty"`
	Periods   int         `json:"periods,omitempty"`
	Tolerance *float64    `json:"tolerance,omitempty"`
}

// Tol returns the comparison tolerance, defaulting to DefaultTolerance.
func (s TruthSpec) Tol() float64 {
	if s.Tolerance == nil {
		return DefaultTolerance
	}
	return *s.Tolerance
}

// Expectation is the expected structural outcome of a case.
type Expectation struct {
	SeriesID                 string    `json:"series_id,omitempty"`
	Transform                Transform `json:"transform,omitempty"`
	ShouldAnswer             *bool     `json:"should_answer,omitempty"`
	ShouldHaveValue          *bool     `json:"should_have_value,omitempty"`
	RequireCitation          bool      `json:"require_citation,omitempty"`
	RequireRetrievedCitation bool      `json:"require_retrieved_citation,omitempty"`
}

// WantsAnswer reports should_answer, defaulting to true.
func (e Expectation) WantsAnswer() bool {
	return e.ShouldAnswer == nil || *e.ShouldAnswer
}

// WantsValue reports should_have_value, defaulting to true.
func (e Expectation) WantsValue() bool {
	return e.ShouldHaveValue == nil || *e.ShouldHaveValue
}

// Case is a single evaluation item.
type Case struct {
	ID        string      `json:"id"`
	Question  string      `json:"question"`
	Expect    Expectation `json:"expect"`
	TruthSpec *TruthSpec  `json:"truth_spec,omitempty"`
}
