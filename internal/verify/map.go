package verify

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/fredqa/internal/model"
)

// Entry configures one check: its severity, whether it runs, and which
// cases it applies to.
type Entry struct {
	ID                           string         `yaml:"id" json:"id"`
	Severity                     model.Severity `yaml:"severity" json:"severity"`
	Enabled                      *bool          `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	RequireExpectShouldAnswer    bool           `yaml:"require_expect_should_answer,omitempty" json:"require_expect_should_answer,omitempty"`
	RequireExpectShouldHaveValue bool           `yaml:"require_expect_should_have_value,omitempty" json:"require_expect_should_have_value,omitempty"`
	RequireExpectRefusal         bool           `yaml:"require_expect_refusal,omitempty" json:"require_expect_refusal,omitempty"`
}

// IsEnabled reports whether the entry runs. Entries are enabled unless
// explicitly disabled.
func (e Entry) IsEnabled() bool {
	return e.Enabled == nil || *e.Enabled
}

// Applies reports whether the entry's gating admits the case.
func (e Entry) Applies(expect model.Expectation) bool {
	if e.RequireExpectShouldAnswer && !expect.WantsAnswer() {
		return false
	}
	if e.RequireExpectShouldHaveValue && !expect.WantsValue() {
		return false
	}
	if e.RequireExpectRefusal && expect.WantsAnswer() {
		return false
	}
	return true
}

// Map is the ordered verifier profile.
type Map struct {
	Verifiers []Entry `yaml:"verifiers" json:"verifiers"`
}

// Lookup returns the entry for a check id.
func (m Map) Lookup(id string) (Entry, bool) {
	for _, e := range m.Verifiers {
		if e.ID == id {
			return e, true
		}
	}
	return Entry{}, false
}

// Validate rejects unknown check ids, duplicate ids and unknown severities.
func (m Map) Validate() error {
	seen := make(map[string]bool, len(m.Verifiers))
	for _, e := range m.Verifiers {
		if _, ok := registry[e.ID]; !ok {
			return eris.Errorf("verify: unknown check %q", e.ID)
		}
		if seen[e.ID] {
			return eris.Errorf("verify: duplicate check %q", e.ID)
		}
		seen[e.ID] = true
		if e.Severity != model.SeverityWarning && e.Severity != model.SeverityCritical {
			return eris.Errorf("verify: check %q has invalid severity %q", e.ID, e.Severity)
		}
	}
	return nil
}

// ParseMap decodes and validates a YAML verifier map.
func ParseMap(data []byte) (Map, error) {
	var m Map
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Map{}, eris.Wrap(err, "verify: parse map")
	}
	if err := m.Validate(); err != nil {
		return Map{}, err
	}
	return m, nil
}

// LoadMap reads a YAML verifier map from path.
func LoadMap(path string) (Map, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Map{}, eris.Wrapf(err, "verify: read map %s", path)
	}
	return ParseMap(data)
}

// DefaultMap returns the canonical profile.
func DefaultMap() Map {
	critical, warning := model.SeverityCritical, model.SeverityWarning
	return Map{Verifiers: []Entry{
		{ID: CheckSchemaValid, Severity: critical},
		{ID: CheckNoHallucinationOnError, Severity: critical},
		{ID: CheckCitationsPresentWhenValue, Severity: critical},
		{ID: CheckCitationsMatchSeriesID, Severity: critical},
		{ID: CheckCitationsSubsetOfRetrieved, Severity: warning},
		{ID: CheckWindowRules, Severity: critical, RequireExpectShouldHaveValue: true},
		{ID: CheckDateRules, Severity: critical, RequireExpectShouldHaveValue: true},
		{ID: CheckConfidenceRules, Severity: warning},
		{ID: CheckNoURLsInAnswer, Severity: warning},
		{ID: CheckValueDisplayInAnswer, Severity: warning},
		{ID: CheckExpectationTransform, Severity: critical, RequireExpectShouldAnswer: true},
		{ID: CheckExpectationValuePresence, Severity: critical},
		{ID: CheckTruthMatches, Severity: critical, RequireExpectShouldHaveValue: true},
	}}
}
