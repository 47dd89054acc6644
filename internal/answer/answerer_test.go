package answer

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/fredqa/internal/cards"
	"github.com/sells-group/fredqa/internal/metrics"
	"github.com/sells-group/fredqa/internal/model"
	"github.com/sells-group/fredqa/internal/parse"
	"github.com/sells-group/fredqa/internal/retrieve"
	"github.com/sells-group/fredqa/internal/store"
	"github.com/sells-group/fredqa/internal/truth"
)

var (
	unrateMeta = model.Series{
		SeriesID:  "UNRATE",
		Title:     "Unemployment Rate",
		Units:     "Percent",
		Frequency: "Monthly",
		Notes:     "The unemployment rate represents the number of unemployed as a percentage of the labor force. See https://www.bls.gov/cps/ for details.",
	}
	cpiMeta = model.Series{
		SeriesID:  "CPIAUCSL",
		Title:     "Consumer Price Index",
		Units:     "Index 1982-1984=100",
		Frequency: "Monthly",
	}
)

func obs(id string, y int, m time.Month, v float64) model.Observation {
	return model.Observation{SeriesID: id, Date: model.Date(y, m, 1), Value: model.Ptr(v)}
}

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	ctx := context.Background()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "answer.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(ctx))

	require.NoError(t, st.UpsertSeries(ctx, unrateMeta))
	require.NoError(t, st.UpsertSeries(ctx, cpiMeta))
	_, err = st.UpsertObservations(ctx, []model.Observation{
		obs("UNRATE", 2020, time.January, 3.5),
		obs("UNRATE", 2020, time.February, 3.5),
		obs("UNRATE", 2020, time.March, 4.4),
		obs("UNRATE", 2020, time.April, 14.7),
		obs("UNRATE", 2020, time.May, 13.2),
		obs("CPIAUCSL", 2013, time.June, 232.9),
		obs("CPIAUCSL", 2014, time.June, 238.3),
	})
	require.NoError(t, err)
	return st
}

func newTestAnswerer(t *testing.T, opts ...Option) *Answerer {
	t.Helper()
	st := newTestStore(t)
	return New(parse.Default(), truth.New(st, nil), st, opts...)
}

func withCards(t *testing.T) []Option {
	t.Helper()
	docs := []cards.Doc{
		{ID: model.DocID("UNRATE"), Text: cards.Render(unrateMeta, nil, cards.DefaultRecent)},
		{ID: model.DocID("CPIAUCSL"), Text: cards.Render(cpiMeta, nil, cards.DefaultRecent)},
	}
	return []Option{WithRetrieval(retrieve.NewIndex(docs), 3), WithLibrary(cards.NewLibrary(docs))}
}

func TestAsk_Point(t *testing.T) {
	a := newTestAnswerer(t, withCards(t)...)

	resp, err := a.Ask(context.Background(), "What was the unemployment rate in April 2020?")
	require.NoError(t, err)

	require.NotNil(t, resp.Value)
	assert.InDelta(t, 14.7, *resp.Value, 1e-9)
	assert.Equal(t, "14.70%", *resp.ValueDisplay)
	assert.Equal(t, "UNRATE", *resp.SeriesID)
	assert.Equal(t, "2020-04-01", *resp.Date)
	assert.Equal(t, "Percent", *resp.Unit)
	assert.Nil(t, resp.Window.Start)
	assert.Nil(t, resp.Window.Periods)
	assert.Equal(t, "In April 2020, Unemployment Rate was 14.70%. "+
		"The unemployment rate represents the number of unemployed as a percentage of the labor force.", resp.Answer)
	assert.NotContains(t, resp.Answer, "http")
	assert.InDelta(t, ConfidenceAnswered, resp.Confidence, 0)
	assert.Empty(t, resp.Errors)

	require.Len(t, resp.Citations, 1)
	assert.Equal(t, model.Citation{DocID: "series_UNRATE", SeriesID: "UNRATE", Dates: []string{"2020-04-01"}, Source: CitationSource}, resp.Citations[0])
	assert.True(t, resp.HasRetrieved("series_UNRATE"))
	assert.LessOrEqual(t, len(resp.RetrievedDocs), 3)
}

func TestAsk_CitedDocInsertedWithoutRetrieval(t *testing.T) {
	a := newTestAnswerer(t)

	resp, err := a.Ask(context.Background(), "unemployment 2020-03")
	require.NoError(t, err)
	assert.Equal(t, "In March 2020, Unemployment Rate was 4.40%.", resp.Answer)
	assert.Equal(t, []model.RetrievedDoc{{DocID: "series_UNRATE", Score: 1.0}}, resp.RetrievedDocs)
}

func TestAsk_YoY(t *testing.T) {
	a := newTestAnswerer(t)

	resp, err := a.Ask(context.Background(), "What was the year-over-year change in CPI for June 2014?")
	require.NoError(t, err)
	require.NotNil(t, resp.Value)
	assert.InDelta(t, (238.3-232.9)/232.9*100, *resp.Value, 1e-9)
	assert.Equal(t, "2.32%", *resp.ValueDisplay)
	assert.Equal(t, "In June 2014, the year-over-year change for Consumer Price Index was 2.32%.", resp.Answer)
}

func TestAsk_MovingAverage(t *testing.T) {
	a := newTestAnswerer(t)

	resp, err := a.Ask(context.Background(), "What was the 3-month moving average of unemployment in April 2020?")
	require.NoError(t, err)
	require.NotNil(t, resp.Value)
	assert.InDelta(t, (3.5+4.4+14.7)/3, *resp.Value, 1e-9)
	require.NotNil(t, resp.Window.Periods)
	assert.Equal(t, 3, *resp.Window.Periods)
	assert.Equal(t, "The 3-period moving average of Unemployment Rate on April 2020 was 7.53%.", resp.Answer)
}

func TestAsk_Max(t *testing.T) {
	a := newTestAnswerer(t)

	resp, err := a.Ask(context.Background(), "What was the highest unemployment rate between 2020-01 and 2020-04?")
	require.NoError(t, err)
	require.NotNil(t, resp.Value)
	assert.InDelta(t, 14.7, *resp.Value, 1e-9)
	assert.Nil(t, resp.Date)
	assert.Equal(t, "2020-01-01", *resp.Window.Start)
	assert.Equal(t, "2020-04-01", *resp.Window.End)
	assert.Equal(t, []string{"2020-04-01"}, resp.Citations[0].Dates)
	assert.Equal(t, "The maximum value of Unemployment Rate between 2020-01-01 and 2020-04-01 was 14.70% on April 2020.", resp.Answer)
}

func TestAsk_ClarifyMissingSeries(t *testing.T) {
	a := newTestAnswerer(t)

	resp, err := a.Ask(context.Background(), "What was it in April 2020?")
	require.NoError(t, err)
	assert.Nil(t, resp.SeriesID)
	assert.Nil(t, resp.Value)
	assert.Equal(t, []string{parse.MissingSeriesError}, resp.Errors)
	assert.Equal(t, parse.MissingSeriesError, resp.Answer)
	assert.InDelta(t, ConfidenceClarify, resp.Confidence, 0)
	assert.Empty(t, resp.Citations)
}

func TestAsk_ClarifyMissingDate(t *testing.T) {
	a := newTestAnswerer(t)

	resp, err := a.Ask(context.Background(), "What was the unemployment rate?")
	require.NoError(t, err)
	assert.Equal(t, "UNRATE", *resp.SeriesID)
	assert.Nil(t, resp.Date)
	assert.Equal(t, []string{parse.DateRequiredError}, resp.Errors)
	assert.Equal(t, parse.DateRequiredError, resp.Answer)
	assert.InDelta(t, ConfidenceClarify, resp.Confidence, 0)
}

func TestAsk_DataAbsent(t *testing.T) {
	a := newTestAnswerer(t)

	resp, err := a.Ask(context.Background(), "What was unemployment in April 1950?")
	require.NoError(t, err)
	assert.Nil(t, resp.Value)
	assert.Nil(t, resp.ValueDisplay)
	assert.Equal(t, []string{DataAbsentError}, resp.Errors)
	assert.Equal(t, DataAbsentError, resp.Answer)
	assert.InDelta(t, ConfidenceAbsent, resp.Confidence, 0)
	assert.Empty(t, resp.Citations)
}

func TestAsk_SeriesNotInWarehouse(t *testing.T) {
	a := newTestAnswerer(t)

	resp, err := a.Ask(context.Background(), "What was real GDP in 2020-01?")
	require.NoError(t, err)
	assert.Equal(t, []string{"Series GDPC1 not found in warehouse."}, resp.Errors)
	assert.Nil(t, resp.Value)
	assert.InDelta(t, ConfidenceClarify, resp.Confidence, 0)
}

type hinterFunc func(ctx context.Context, q *model.ParsedQuery) error

func (f hinterFunc) Refine(ctx context.Context, q *model.ParsedQuery) error { return f(ctx, q) }

func TestAsk_HinterFillsMissingDate(t *testing.T) {
	called := 0
	h := hinterFunc(func(_ context.Context, q *model.ParsedQuery) error {
		called++
		d := model.Date(2020, time.May, 1)
		q.Date = &d
		parse.Validate(q)
		return nil
	})
	a := newTestAnswerer(t, WithHinter(h))

	resp, err := a.Ask(context.Background(), "What was the unemployment rate?")
	require.NoError(t, err)
	assert.Equal(t, 1, called)
	require.NotNil(t, resp.Value)
	assert.InDelta(t, 13.2, *resp.Value, 1e-9)

	_, err = a.Ask(context.Background(), "What was the unemployment rate in April 2020?")
	require.NoError(t, err)
	assert.Equal(t, 1, called, "complete parses skip the hinter")
}

func TestAsk_HinterErrorFallsBackToClarify(t *testing.T) {
	h := hinterFunc(func(context.Context, *model.ParsedQuery) error { return errors.New("model unavailable") })
	a := newTestAnswerer(t, WithHinter(h))

	resp, err := a.Ask(context.Background(), "What was the unemployment rate?")
	require.NoError(t, err)
	assert.Equal(t, []string{parse.DateRequiredError}, resp.Errors)
}

type failingLookup struct{}

func (failingLookup) Series(context.Context, string) (*model.Series, error) {
	return nil, errors.New("connection reset")
}

func TestAsk_MetadataErrorPropagates(t *testing.T) {
	st := newTestStore(t)
	m := metrics.New()
	a := New(parse.Default(), truth.New(st, nil), failingLookup{}, WithMetrics(m))

	_, err := a.Ask(context.Background(), "What was unemployment in April 2020?")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "answer: metadata UNRATE")
	assert.InDelta(t, 1, testutil.ToFloat64(m.AnswerOutcome.WithLabelValues(metrics.OutcomeError, "unknown")), 0)
}

func TestAsk_RecordsMetrics(t *testing.T) {
	m := metrics.New()
	a := newTestAnswerer(t, WithMetrics(m))

	_, err := a.Ask(context.Background(), "What was unemployment in April 2020?")
	require.NoError(t, err)
	_, err = a.Ask(context.Background(), "What was it in April 2020?")
	require.NoError(t, err)

	assert.InDelta(t, 1, testutil.ToFloat64(m.AnswerOutcome.WithLabelValues(metrics.OutcomeAnswered, "point")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.AnswerOutcome.WithLabelValues(metrics.OutcomeClarify, "point")), 0)
}

func TestFallbackSeries(t *testing.T) {
	a := New(parse.Default(), nil, nil)
	retrieved := []model.RetrievedDoc{{DocID: "series_unrate", Score: 0.4}}

	t.Run("series only missing", func(t *testing.T) {
		q := parse.Default().Parse("What was it in April 2020?")
		a.fallbackSeries(&q, retrieved)
		assert.Equal(t, "UNRATE", q.SeriesID)
		assert.False(t, q.MissingSeries)
		assert.Empty(t, q.Errors)
	})

	t.Run("low score", func(t *testing.T) {
		q := parse.Default().Parse("What was it in April 2020?")
		a.fallbackSeries(&q, []model.RetrievedDoc{{DocID: "series_UNRATE", Score: 0.2}})
		assert.Empty(t, q.SeriesID)
		assert.True(t, q.MissingSeries)
	})

	t.Run("other errors block fallback", func(t *testing.T) {
		q := parse.Default().Parse("What was it?")
		a.fallbackSeries(&q, retrieved)
		assert.Empty(t, q.SeriesID)
		assert.Equal(t, []string{parse.DateRequiredError, parse.MissingSeriesError}, q.Errors)
	})
}
