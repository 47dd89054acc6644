package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/fredqa/internal/cards"
	"github.com/sells-group/fredqa/internal/config"
	"github.com/sells-group/fredqa/internal/eval"
	"github.com/sells-group/fredqa/internal/fred"
	"github.com/sells-group/fredqa/internal/model"
)

// testConfig points every path at a temp dir and seeds UNRATE for 2020.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	c := &config.Config{
		Store:  config.StoreConfig{Driver: "sqlite", DatabaseURL: filepath.Join(dir, "fredqa.db")},
		Cards:  config.CardsConfig{Dir: filepath.Join(dir, "cards"), Recent: 12},
		Answer: config.AnswerConfig{RetrievalK: 3, MinRetrievalScore: 0.25, SnippetChars: 200},
		Eval: config.EvalConfig{
			ReportDir:       filepath.Join(dir, "reports"),
			Workers:         2,
			CaseTimeoutSecs: 5,
			PassThreshold:   0.9,
		},
	}

	ctx := context.Background()
	st, err := openStore(ctx, c)
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	require.NoError(t, st.UpsertSeries(ctx, model.Series{
		SeriesID: "UNRATE", Title: "Unemployment Rate", Units: "Percent", Frequency: "Monthly",
		Notes: "The unemployment rate represents the number of unemployed as a percentage of the labor force.",
	}))
	var obs []model.Observation
	for i, v := range []float64{3.5, 3.5, 4.4, 14.7, 13.2, 11.0} {
		obs = append(obs, model.Observation{
			SeriesID: "UNRATE",
			Date:     model.Date(2020, time.January, 1).AddDate(0, i, 0),
			Value:    model.Ptr(v),
		})
	}
	_, err = st.UpsertObservations(ctx, obs)
	require.NoError(t, err)
	return c
}

func pointCase(id, series string) model.Case {
	return model.Case{
		ID:       id,
		Question: "What was the unemployment rate in March 2020?",
		Expect: model.Expectation{
			SeriesID:        series,
			Transform:       model.TransformPoint,
			ShouldAnswer:    model.Ptr(true),
			ShouldHaveValue: model.Ptr(true),
			RequireCitation: true,
		},
		TruthSpec: &model.TruthSpec{SeriesID: "UNRATE", Transform: model.TransformPoint, Date: "2020-03-01"},
	}
}

func refusalCase() model.Case {
	return model.Case{
		ID:       "refusal_1",
		Question: "How is the economy doing?",
		Expect:   model.Expectation{ShouldAnswer: model.Ptr(false), ShouldHaveValue: model.Ptr(false)},
	}
}

func TestInitEnv_Answers(t *testing.T) {
	c := testConfig(t)
	ctx := context.Background()

	env, err := initEnv(ctx, c)
	require.NoError(t, err)
	defer env.Close()

	resp, err := env.Answerer.Ask(ctx, "What was the unemployment rate in April 2020?")
	require.NoError(t, err)
	require.NotNil(t, resp.Value)
	assert.InDelta(t, 14.7, *resp.Value, 1e-9)
	assert.Empty(t, resp.Errors)
	require.NotEmpty(t, resp.Citations)
	assert.Equal(t, "series_UNRATE", resp.Citations[0].DocID)
}

func TestInitEnv_UsesCardsForRetrieval(t *testing.T) {
	c := testConfig(t)
	ctx := context.Background()

	st, err := openStore(ctx, c)
	require.NoError(t, err)
	docs, err := cards.Build(ctx, st, c.Cards.Recent)
	require.NoError(t, err)
	require.NoError(t, cards.WriteDir(c.Cards.Dir, docs))
	require.NoError(t, st.Close())

	env, err := initEnv(ctx, c)
	require.NoError(t, err)
	defer env.Close()

	resp, err := env.Answerer.Ask(ctx, "What was the unemployment rate in March 2020?")
	require.NoError(t, err)
	assert.True(t, resp.HasRetrieved("series_UNRATE"))
	assert.Contains(t, resp.Answer, "The unemployment rate represents")
}

func TestInitEnv_BadCatalog(t *testing.T) {
	c := testConfig(t)
	c.Catalog.Path = filepath.Join(t.TempDir(), "missing.yaml")

	_, err := initEnv(context.Background(), c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read catalog")
}

func TestInitHinter_DisabledWithoutKey(t *testing.T) {
	c := &config.Config{Answer: config.AnswerConfig{Hints: true}}
	assert.Nil(t, initHinter(c, config.DefaultCatalog()))

	c.Anthropic.Key = "sk-ant-test"
	assert.NotNil(t, initHinter(c, config.DefaultCatalog()))

	c.Answer.Hints = false
	assert.Nil(t, initHinter(c, config.DefaultCatalog()))
}

func TestExecuteEval_PassingRun(t *testing.T) {
	c := testConfig(t)
	ctx := context.Background()

	env, err := initEnv(ctx, c)
	require.NoError(t, err)
	defer env.Close()
	suite, err := initSuite(c, env.Engine, env.Metrics)
	require.NoError(t, err)

	runner := eval.NewRunner(suite, env.Answerer, eval.WithWorkers(2))
	var out bytes.Buffer
	report, err := executeEval(ctx, &out, runner, []model.Case{pointCase("unrate_point_1", "UNRATE"), refusalCase()},
		c.Eval.ReportDir, true, c.Eval.PassThreshold)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Summary.NumPassed, "%+v", report.Cases)
	assert.Contains(t, out.String(), "100.0%")
	for _, name := range []string{"report.json", "report.md", "report.xlsx"} {
		assert.FileExists(t, filepath.Join(c.Eval.ReportDir, name))
	}
}

func TestExecuteEval_GateFails(t *testing.T) {
	c := testConfig(t)
	ctx := context.Background()

	env, err := initEnv(ctx, c)
	require.NoError(t, err)
	defer env.Close()
	suite, err := initSuite(c, env.Engine, nil)
	require.NoError(t, err)

	runner := eval.NewRunner(suite, env.Answerer)
	report, err := executeEval(ctx, &bytes.Buffer{}, runner, []model.Case{pointCase("wrong_series", "CPIAUCSL")},
		c.Eval.ReportDir, false, c.Eval.PassThreshold)
	require.Error(t, err)
	assert.True(t, errors.Is(err, eval.ErrGateFailed))
	require.NotNil(t, report)
	assert.Equal(t, 1, report.Summary.NumFailed)
	assert.NoFileExists(t, filepath.Join(c.Eval.ReportDir, "report.xlsx"))
}

func TestInitSuite_LoadsMapFile(t *testing.T) {
	c := testConfig(t)
	c.Eval.VerifierMap = filepath.Join(t.TempDir(), "verifiers.yaml")
	require.NoError(t, os.WriteFile(c.Eval.VerifierMap, []byte("verifiers:\n  - id: schema_valid\n    severity: critical\n"), 0o644))

	suite, err := initSuite(c, nil, nil)
	require.NoError(t, err)
	assert.Len(t, suite.Map().Verifiers, 1)

	c.Eval.VerifierMap = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = initSuite(c, nil, nil)
	assert.Error(t, err)
}

func TestVerifyRaw(t *testing.T) {
	c := testConfig(t)
	ctx := context.Background()

	env, err := initEnv(ctx, c)
	require.NoError(t, err)
	defer env.Close()
	suite, err := initSuite(c, env.Engine, nil)
	require.NoError(t, err)

	kase := pointCase("unrate_point_1", "UNRATE")
	resp, err := env.Answerer.Ask(ctx, kase.Question)
	require.NoError(t, err)
	raw, err := json.Marshal(resp)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, verifyRaw(ctx, &out, suite, kase, raw))
	assert.Contains(t, out.String(), `"passed": true`)

	out.Reset()
	err = verifyRaw(ctx, &out, suite, kase, []byte(`{"question": "x"}`))
	require.Error(t, err)
	assert.Contains(t, out.String(), "schema_valid")
}

func TestFindCase(t *testing.T) {
	cases := []model.Case{pointCase("a", "UNRATE"), refusalCase()}

	got, err := findCase(cases, "refusal_1")
	require.NoError(t, err)
	assert.Equal(t, "How is the economy doing?", got.Question)

	_, err = findCase(cases, "nope")
	assert.Error(t, err)
}

func TestWriteSyncTable(t *testing.T) {
	res := &fred.SyncResult{Series: []fred.SeriesResult{
		{SeriesID: "UNRATE", Observations: 10, Missing: 1, Upserted: 10, Elapsed: 1500 * time.Millisecond},
		{SeriesID: "GDPC1", Err: fred.ErrSeriesNotFound},
	}}

	var out bytes.Buffer
	require.NoError(t, writeSyncTable(&out, res))
	assert.Contains(t, out.String(), "UNRATE")
	assert.Contains(t, out.String(), "1.5s")
	assert.Contains(t, out.String(), "permanent")
}

func TestNewFetcher(t *testing.T) {
	f := newFetcher(config.FREDConfig{MaxRetries: 2, InitialBackoff: 10, TimeoutSecs: 5, UserAgent: "fredqa-test"})
	assert.NotNil(t, f)
}

func TestSnapshots(t *testing.T) {
	report := &eval.Report{RunID: "run-9", Summary: eval.Summary{
		Total: 10, NumPassed: 7, NumFailed: 3, PassRate: 0.7, CriticalFailureCount: 2,
	}}
	snap := evalSnapshot(report, 0.9)
	assert.Equal(t, "run-9", snap.RunID)
	assert.Equal(t, 3, snap.EvalFailed)
	assert.Equal(t, 2, snap.CriticalFailures)
	assert.InDelta(t, 0.9, snap.PassThreshold, 1e-9)

	res := &fred.SyncResult{Series: []fred.SeriesResult{
		{SeriesID: "UNRATE"},
		{SeriesID: "GDPC1", Err: fred.ErrSeriesNotFound},
	}}
	ing := ingestSnapshot(res)
	assert.Equal(t, 2, ing.IngestTotal)
	assert.Equal(t, []string{"GDPC1"}, ing.IngestFailed)
}
