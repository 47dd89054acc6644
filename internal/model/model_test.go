package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFrequency(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want Frequency
	}{
		{"Monthly", FrequencyMonthly},
		{"Daily", FrequencyDaily},
		{"Daily, 7-Day", FrequencyDaily},
		{"Quarterly", FrequencyQuarterly},
		{"Q", FrequencyQuarterly},
		{"m", FrequencyMonthly},
		{"Weekly, Ending Friday", FrequencyUnknown},
		{"", FrequencyUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ParseFrequency(tt.raw))
		})
	}
}

func TestTransformClassification(t *testing.T) {
	t.Parallel()

	assert.True(t, TransformMax.Windowed())
	assert.True(t, TransformMin.Windowed())
	assert.False(t, TransformMA.Windowed())
	assert.True(t, TransformMA.PointLike())
	assert.False(t, TransformMax.PointLike())
	assert.True(t, TransformYoY.Percent())
	assert.False(t, TransformPoint.Percent())
	assert.True(t, Transform("mom").Valid())
	assert.False(t, Transform("median").Valid())
}

func TestExpectationDefaults(t *testing.T) {
	t.Parallel()

	var e Expectation
	assert.True(t, e.WantsAnswer())
	assert.True(t, e.WantsValue())

	e.ShouldHaveValue = Ptr(false)
	assert.False(t, e.WantsValue())
}

func TestTruthSpecTolerance(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 1e-6, TruthSpec{}.Tol(), 0)
	assert.InDelta(t, 0.5, TruthSpec{Tolerance: Ptr(0.5)}.Tol(), 0)
}

func TestNewResponse_EmptyListsNotNull(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(NewResponse("q", TransformPoint))
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, []any{}, raw["citations"])
	assert.Equal(t, []any{}, raw["errors"])
	assert.Equal(t, []any{}, raw["retrieved_docs"])
	assert.Nil(t, raw["value"])
	assert.Contains(t, raw, "value_display")
	assert.Contains(t, raw["window"], "periods")
}

func TestBackfillDisplay(t *testing.T) {
	t.Parallel()

	r := NewResponse("q", TransformPoint)
	r.BackfillDisplay(func(float64) string { return "x" })
	assert.Nil(t, r.ValueDisplay)

	r.Value = Ptr(1.5)
	r.BackfillDisplay(func(float64) string { return "1.50" })
	require.NotNil(t, r.ValueDisplay)
	assert.Equal(t, "1.50", *r.ValueDisplay)
}

func TestDocIDRoundTrip(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "series_UNRATE", DocID("UNRATE"))
	assert.Equal(t, "UNRATE", SeriesIDFromDocID("series_unrate"))
}

func TestParseDate(t *testing.T) {
	t.Parallel()

	d, ok := ParseDate("2014-06-01")
	require.True(t, ok)
	assert.Equal(t, Date(2014, time.June, 1), d)

	d, ok = ParseDate("2014-06")
	require.True(t, ok)
	assert.Equal(t, Date(2014, time.June, 1), d)

	_, ok = ParseDate("June 2014")
	assert.False(t, ok)
}

func TestHumanizeDate(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "June 2014", HumanizeDate(Date(2014, time.June, 1)))
	assert.Equal(t, "June 5, 2014", HumanizeDate(Date(2014, time.June, 5)))
}
