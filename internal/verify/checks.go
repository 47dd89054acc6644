package verify

import (
	"context"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/fredqa/internal/model"
)

// Check ids.
const (
	CheckSchemaValid                = "schema_valid"
	CheckNoHallucinationOnError     = "no_hallucination_on_error"
	CheckCitationsPresentWhenValue  = "citations_present_when_value"
	CheckCitationsMatchSeriesID     = "citations_match_series_id"
	CheckCitationsSubsetOfRetrieved = "citations_subset_of_retrieved"
	CheckWindowRules                = "window_rules"
	CheckDateRules                  = "date_rules"
	CheckConfidenceRules            = "confidence_rules"
	CheckNoURLsInAnswer             = "no_urls_in_answer"
	CheckValueDisplayInAnswer       = "value_display_in_answer"
	CheckExpectationTransform       = "expectation_transform"
	CheckExpectationValuePresence   = "expectation_value_presence"
	CheckTruthMatches               = "truth_matches"
)

// Confidence thresholds.
const (
	maxRefusalConfidence  = 0.4
	minAnsweredConfidence = 0.7
	maxIdleConfidence     = 0.8
)

// input is what every check sees.
type input struct {
	c     model.Case
	r     view
	truth TruthSource
}

type checkFunc func(ctx context.Context, in input) []string

var registry = map[string]checkFunc{
	CheckSchemaValid:                schemaValid,
	CheckNoHallucinationOnError:     noHallucinationOnError,
	CheckCitationsPresentWhenValue:  citationsPresentWhenValue,
	CheckCitationsMatchSeriesID:     citationsMatchSeriesID,
	CheckCitationsSubsetOfRetrieved: citationsSubsetOfRetrieved,
	CheckWindowRules:                windowRules,
	CheckDateRules:                  dateRules,
	CheckConfidenceRules:            confidenceRules,
	CheckNoURLsInAnswer:             noURLsInAnswer,
	CheckValueDisplayInAnswer:       valueDisplayInAnswer,
	CheckExpectationTransform:       expectationTransform,
	CheckExpectationValuePresence:   expectationValuePresence,
	CheckTruthMatches:               truthMatches,
}

var requiredFields = []string{
	"question", "series_id", "transform", "date", "window", "value",
	"unit", "answer", "citations", "confidence", "errors", "retrieved_docs",
}

func schemaValid(_ context.Context, in input) []string {
	var msgs []string
	r := in.r
	for _, key := range requiredFields {
		if !r.has(key) {
			msgs = append(msgs, fmt.Sprintf("Missing required field '%s'.", key))
		}
	}
	if w, ok := r.obj("window"); !ok {
		msgs = append(msgs, "window must be an object.")
	} else {
		for _, key := range []string{"start", "end", "periods"} {
			if !w.has(key) {
				msgs = append(msgs, fmt.Sprintf("window missing '%s'.", key))
			}
		}
	}
	if !model.Transform(r.str("transform")).Valid() {
		msgs = append(msgs, fmt.Sprintf("Unsupported transform '%s'.", show(r["transform"])))
	}
	for _, key := range []string{"citations", "retrieved_docs", "errors"} {
		if _, ok := r[key].([]any); !ok {
			msgs = append(msgs, key+" must be a list.")
		}
	}
	if r.present("value") {
		if _, ok := r.num("value"); !ok {
			msgs = append(msgs, "value must be a number or null.")
		}
	}
	if r.has("confidence") {
		if _, ok := r.num("confidence"); !ok {
			msgs = append(msgs, "confidence must be a number.")
		}
	}
	if r.present("value") && r.str("value_display") == "" {
		msgs = append(msgs, "value_display missing while value provided.")
	}
	return msgs
}

func noHallucinationOnError(_ context.Context, in input) []string {
	r := in.r
	if !r.nonEmpty("errors") {
		return nil
	}
	var msgs []string
	if r.present("value") {
		msgs = append(msgs, "Value present despite errors.")
	}
	if r.nonEmpty("citations") {
		msgs = append(msgs, "Citations present despite errors.")
	}
	if r.confidence(1) > maxRefusalConfidence {
		msgs = append(msgs, "Confidence too high when errors are present.")
	}
	return msgs
}

func citationsPresentWhenValue(_ context.Context, in input) []string {
	r := in.r
	if !r.present("value") {
		return nil
	}
	var msgs []string
	if r.str("series_id") == "" {
		msgs = append(msgs, "series_id missing while value provided.")
	}
	if !r.nonEmpty("citations") {
		msgs = append(msgs, "Citations missing while value provided.")
	}
	if r.confidence(0) < minAnsweredConfidence {
		msgs = append(msgs, "Confidence too low for answered case.")
	}
	if r.str("value_display") == "" {
		msgs = append(msgs, "value_display missing while value provided.")
	}
	return msgs
}

func citationsMatchSeriesID(_ context.Context, in input) []string {
	seriesID := in.r.str("series_id")
	if seriesID == "" {
		return nil
	}
	expected := model.DocID(seriesID)
	var msgs []string
	for _, id := range in.r.docIDs("citations") {
		if id != expected {
			msgs = append(msgs, fmt.Sprintf("Citation doc_id %s does not match %s.", id, expected))
		}
	}
	return msgs
}

func citationsSubsetOfRetrieved(_ context.Context, in input) []string {
	retrieved := make(map[string]bool)
	for _, id := range in.r.docIDs("retrieved_docs") {
		retrieved[id] = true
	}
	var msgs []string
	for _, id := range in.r.docIDs("citations") {
		if id != "" && !retrieved[id] {
			msgs = append(msgs, fmt.Sprintf("Citation doc_id %s missing from retrieved_docs.", id))
		}
	}
	return msgs
}

func windowRules(_ context.Context, in input) []string {
	if !model.Transform(in.r.str("transform")).Windowed() {
		return nil
	}
	w, _ := in.r.obj("window")
	var msgs []string
	if !w.nonEmpty("start") {
		msgs = append(msgs, "window.start missing for max/min question.")
	}
	if !w.nonEmpty("end") {
		msgs = append(msgs, "window.end missing for max/min question.")
	}
	return msgs
}

func dateRules(_ context.Context, in input) []string {
	if !in.c.Expect.WantsValue() {
		return nil
	}
	if model.Transform(in.r.str("transform")).PointLike() && !in.r.nonEmpty("date") {
		return []string{"date missing for point/yoy/mom/ma transform."}
	}
	return nil
}

func confidenceRules(_ context.Context, in input) []string {
	r := in.r
	conf, ok := r.num("confidence")
	if !ok {
		return nil
	}
	var msgs []string
	if conf < 0 || conf > 1 {
		msgs = append(msgs, fmt.Sprintf("Confidence %s outside [0, 1].", show(conf)))
	}
	hasValue, hasErrors := r.present("value"), r.nonEmpty("errors")
	switch {
	case !hasValue && !hasErrors && conf > maxIdleConfidence:
		msgs = append(msgs, "Confidence too high with no value and no errors.")
	case !hasValue && hasErrors && conf > maxRefusalConfidence:
		msgs = append(msgs, fmt.Sprintf("Refusal confidence %s exceeds %s.", show(conf), show(maxRefusalConfidence)))
	case hasValue && conf < minAnsweredConfidence:
		msgs = append(msgs, fmt.Sprintf("Answered confidence %s below %s.", show(conf), show(minAnsweredConfidence)))
	}
	return msgs
}

func noURLsInAnswer(_ context.Context, in input) []string {
	if strings.Contains(strings.ToLower(in.r.str("answer")), "http") {
		return []string{"Answer contains HTTP/URL content."}
	}
	return nil
}

func valueDisplayInAnswer(_ context.Context, in input) []string {
	if !in.r.present("value") {
		return nil
	}
	display := in.r.str("value_display")
	if display == "" {
		return []string{"value_display missing while value provided."}
	}
	if !strings.Contains(in.r.str("answer"), display) {
		return []string{fmt.Sprintf("value_display '%s' not found in answer text.", display)}
	}
	return nil
}

func expectationTransform(_ context.Context, in input) []string {
	expect := in.c.Expect
	var msgs []string
	if expect.SeriesID != "" && in.r.str("series_id") != expect.SeriesID {
		msgs = append(msgs, fmt.Sprintf("Expected series %s but got %s.", expect.SeriesID, show(in.r["series_id"])))
	}
	if expect.Transform != "" && in.r.str("transform") != string(expect.Transform) {
		msgs = append(msgs, fmt.Sprintf("Expected transform %s but got %s.", expect.Transform, show(in.r["transform"])))
	}
	return msgs
}

func expectationValuePresence(_ context.Context, in input) []string {
	expect := in.c.Expect
	r := in.r
	var msgs []string

	hasValue := r.present("value")
	if expect.WantsValue() && !hasValue {
		msgs = append(msgs, "Expected a numeric value but got null.")
	}
	if expect.WantsValue() && in.c.TruthSpec == nil {
		msgs = append(msgs, "truth_spec missing for a numeric expectation.")
	}
	if !expect.WantsValue() && hasValue {
		msgs = append(msgs, "Value present though should_have_value=false.")
	}
	if !expect.WantsAnswer() && !r.nonEmpty("errors") {
		msgs = append(msgs, "Expected refusal/clarification, but errors list is empty.")
	}
	if expect.RequireCitation && !r.nonEmpty("citations") {
		msgs = append(msgs, "Expected citations but none were returned.")
	}
	if expect.RequireRetrievedCitation && r.nonEmpty("citations") {
		retrieved := make(map[string]bool)
		for _, id := range r.docIDs("retrieved_docs") {
			retrieved[id] = true
		}
		for _, id := range r.docIDs("citations") {
			if !retrieved[id] {
				msgs = append(msgs, fmt.Sprintf("Citation %s missing from retrieved docs for required match.", id))
			}
		}
	}
	return msgs
}

func truthMatches(ctx context.Context, in input) []string {
	spec := in.c.TruthSpec
	if !in.c.Expect.WantsValue() || spec == nil {
		return nil
	}
	if in.truth == nil {
		return []string{"Unable to compute truth value for truth_spec."}
	}

	expected, ok, err := in.truth.Compute(ctx, *spec)
	if err != nil {
		zap.L().Warn("verify: truth computation failed",
			zap.String("case", in.c.ID),
			zap.String("series", spec.SeriesID),
			zap.Error(err),
		)
		ok = false
	}
	if !ok {
		return []string{"Unable to compute truth value for truth_spec."}
	}

	if !in.r.present("value") {
		return []string{"Response missing value despite truth_spec."}
	}
	actual, isNum := in.r.num("value")
	if !isNum {
		return []string{fmt.Sprintf("Value %s is not numeric.", show(in.r["value"]))}
	}

	tol := spec.Tol()
	if math.Abs(actual-expected) > tol {
		return []string{fmt.Sprintf("Value %s differs from truth %s (tol=%s).", show(actual), show(expected), show(tol))}
	}
	return nil
}
