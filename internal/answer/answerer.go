// Package answer turns a question into a cited Response: parse, refine,
// compute the truth value, and render the answer text.
package answer

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/fredqa/internal/cards"
	"github.com/sells-group/fredqa/internal/metrics"
	"github.com/sells-group/fredqa/internal/model"
	"github.com/sells-group/fredqa/internal/parse"
	"github.com/sells-group/fredqa/internal/retrieve"
	"github.com/sells-group/fredqa/internal/truth"
)

// Confidence levels assigned to responses.
const (
	ConfidenceAnswered = 0.95
	ConfidenceAbsent   = 0.25
	ConfidenceClarify  = 0.2
)

// DataAbsentError is reported when the query is complete but the store
// cannot supply the value.
const DataAbsentError = "Unable to compute the requested value with available data."

// CitationSource labels citations produced by the answerer.
const CitationSource = "fredqa"

// Defaults for retrieval and answer decoration.
const (
	DefaultMinRetrievalScore = 0.25
	DefaultSnippetChars      = 200
)

// Hinter refines an incomplete parse in place, filling only missing slots.
type Hinter interface {
	Refine(ctx context.Context, q *model.ParsedQuery) error
}

// SeriesLookup returns series metadata, or nil when the series is unknown.
type SeriesLookup interface {
	Series(ctx context.Context, seriesID string) (*model.Series, error)
}

// Answerer answers questions against the observation store. It is safe for
// concurrent use when its collaborators are.
type Answerer struct {
	parser  *parse.Parser
	engine  *truth.Engine
	meta    SeriesLookup
	index   *retrieve.Index
	library *cards.Library
	hinter  Hinter
	metrics *metrics.Metrics

	k                 int
	minRetrievalScore float64
	snippetChars      int
}

// Option configures an Answerer.
type Option func(*Answerer)

// WithRetrieval enables card retrieval and the series-id fallback.
func WithRetrieval(idx *retrieve.Index, k int) Option {
	return func(a *Answerer) {
		a.index = idx
		if k > 0 {
			a.k = k
		}
	}
}

// WithLibrary supplies the cards used for definition snippets.
func WithLibrary(lib *cards.Library) Option {
	return func(a *Answerer) { a.library = lib }
}

// WithHinter enables model hints for incomplete parses.
func WithHinter(h Hinter) Option {
	return func(a *Answerer) { a.hinter = h }
}

// WithMetrics records answer outcomes and latency.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Answerer) { a.metrics = m }
}

// WithMinRetrievalScore sets the score the top card needs to supply a
// missing series id.
func WithMinRetrievalScore(s float64) Option {
	return func(a *Answerer) { a.minRetrievalScore = s }
}

// WithSnippetChars caps the definition snippet length; 0 disables snippets.
func WithSnippetChars(n int) Option {
	return func(a *Answerer) { a.snippetChars = n }
}

// New returns an Answerer.
func New(p *parse.Parser, e *truth.Engine, meta SeriesLookup, opts ...Option) *Answerer {
	a := &Answerer{
		parser:            p,
		engine:            e,
		meta:              meta,
		k:                 retrieve.DefaultK,
		minRetrievalScore: DefaultMinRetrievalScore,
		snippetChars:      DefaultSnippetChars,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Ask answers question. Incomplete or unanswerable questions produce a
// Response with errors; a returned error means infrastructure failure.
func (a *Answerer) Ask(ctx context.Context, question string) (*model.Response, error) {
	start := time.Now()
	resp, outcome, err := a.ask(ctx, question)
	if err != nil {
		a.metrics.ObserveAnswer("unknown", metrics.OutcomeError, time.Since(start))
		return nil, err
	}
	a.metrics.ObserveAnswer(string(resp.Transform), outcome, time.Since(start))
	zap.L().Debug("answer: done",
		zap.String("question", question),
		zap.String("transform", string(resp.Transform)),
		zap.String("outcome", outcome),
		zap.Duration("elapsed", time.Since(start)),
	)
	return resp, nil
}

func (a *Answerer) ask(ctx context.Context, question string) (*model.Response, string, error) {
	retrieved := a.retrieve(question)

	q := a.parser.Parse(question)
	if !q.Complete() && a.hinter != nil {
		if err := a.hinter.Refine(ctx, &q); err != nil {
			zap.L().Warn("answer: hints unavailable", zap.String("question", question), zap.Error(err))
		}
	}
	a.fallbackSeries(&q, retrieved)

	resp := baseResponse(q, retrieved)
	if q.SeriesID == "" || !q.Complete() {
		resp.SeriesID = nil
		if q.SeriesID != "" {
			resp.SeriesID = model.Ptr(q.SeriesID)
		}
		return clarify(resp, q.Errors), metrics.OutcomeClarify, nil
	}

	meta, err := a.meta.Series(ctx, q.SeriesID)
	if err != nil {
		return nil, "", eris.Wrapf(err, "answer: metadata %s", q.SeriesID)
	}
	if meta == nil {
		return clarify(resp, []string{fmt.Sprintf("Series %s not found in warehouse.", q.SeriesID)}), metrics.OutcomeAbsent, nil
	}
	if meta.Units != "" {
		resp.Unit = model.Ptr(meta.Units)
	}

	c, ok, err := a.compute(ctx, q, *meta)
	if err != nil {
		return nil, "", err
	}
	if !ok {
		resp.Errors = []string{DataAbsentError}
		resp.Answer = DataAbsentError
		resp.Confidence = ConfidenceAbsent
		return resp, metrics.OutcomeAbsent, nil
	}

	text := c.text
	if snippet, ok := a.snippet(q.SeriesID); ok {
		text += " " + snippet
	}

	docID := model.DocID(q.SeriesID)
	if !resp.HasRetrieved(docID) {
		resp.RetrievedDocs = append([]model.RetrievedDoc{{DocID: docID, Score: 1.0}}, resp.RetrievedDocs...)
	}

	resp.Value = model.Ptr(c.value)
	resp.ValueDisplay = model.Ptr(c.display)
	resp.Answer = text
	resp.Citations = []model.Citation{{
		DocID:    docID,
		SeriesID: q.SeriesID,
		Dates:    []string{model.FormatDate(c.citeDate)},
		Source:   CitationSource,
	}}
	resp.Confidence = ConfidenceAnswered
	resp.Errors = []string{}
	return resp, metrics.OutcomeAnswered, nil
}

func (a *Answerer) retrieve(question string) []model.RetrievedDoc {
	out := []model.RetrievedDoc{}
	if a.index == nil {
		return out
	}
	for _, r := range a.index.Retrieve(question, a.k) {
		out = append(out, model.RetrievedDoc{DocID: r.DocID, Score: math.Round(r.Score*1e4) / 1e4})
	}
	return out
}

// fallbackSeries takes the series from the top retrieved card when the
// series is the only missing slot and the card scores high enough.
func (a *Answerer) fallbackSeries(q *model.ParsedQuery, retrieved []model.RetrievedDoc) {
	if q.SeriesID != "" || !q.MissingSeries || len(retrieved) == 0 {
		return
	}
	for _, e := range q.Errors {
		if e != parse.MissingSeriesError {
			return
		}
	}
	top := retrieved[0]
	if top.Score < a.minRetrievalScore {
		return
	}
	q.SeriesID = model.SeriesIDFromDocID(top.DocID)
	q.MissingSeries = false
	parse.Validate(q)
	zap.L().Debug("answer: series from retrieval",
		zap.String("series", q.SeriesID),
		zap.Float64("score", top.Score),
	)
}

func (a *Answerer) snippet(seriesID string) (string, bool) {
	if a.library == nil || a.snippetChars <= 0 {
		return "", false
	}
	doc, ok := a.library.Get(model.DocID(seriesID))
	if !ok {
		return "", false
	}
	return cards.DefinitionSnippet(doc.Text, a.snippetChars)
}

type computed struct {
	value    float64
	display  string
	text     string
	citeDate time.Time
}

func (a *Answerer) compute(ctx context.Context, q model.ParsedQuery, meta model.Series) (computed, bool, error) {
	title := meta.Title
	if title == "" {
		title = q.SeriesID
	}
	var (
		c   computed
		ok  bool
		err error
	)

	switch q.Transform {
	case model.TransformMax, model.TransformMin:
		var obs model.Observation
		if q.Transform == model.TransformMax {
			obs, ok, err = a.engine.Max(ctx, q.SeriesID, *q.WindowStart, *q.WindowEnd)
		} else {
			obs, ok, err = a.engine.Min(ctx, q.SeriesID, *q.WindowStart, *q.WindowEnd)
		}
		if err != nil || !ok {
			return c, false, err
		}
		c.value, c.citeDate = *obs.Value, obs.Date
		c.display = FormatDisplay(q.Transform, c.value, meta.Units)
		c.text = extremeText(q.Transform, title, c.display, *q.WindowStart, *q.WindowEnd, obs.Date)
		return c, true, nil

	case model.TransformPoint:
		c.value, ok, err = a.engine.Point(ctx, q.SeriesID, *q.Date)
	case model.TransformYoY:
		c.value, ok, err = a.engine.YoY(ctx, q.SeriesID, *q.Date)
	case model.TransformMoM:
		c.value, ok, err = a.engine.MoM(ctx, q.SeriesID, *q.Date)
	case model.TransformMA:
		c.value, ok, err = a.engine.MA(ctx, q.SeriesID, *q.Date, q.Periods)
	default:
		return c, false, nil
	}
	if err != nil || !ok {
		return c, false, err
	}

	c.citeDate = *q.Date
	c.display = FormatDisplay(q.Transform, c.value, meta.Units)
	switch q.Transform {
	case model.TransformPoint:
		c.text = pointText(title, c.display, *q.Date, meta.Units)
	case model.TransformMA:
		c.text = maText(title, c.display, *q.Date, meta.Units, q.Periods)
	default:
		c.text = changeText(q.Transform, title, c.display, *q.Date)
	}
	return c, true, nil
}

// baseResponse carries the parsed slots. Date is set only for point-like
// transforms, window bounds only for max/min and periods only for ma.
func baseResponse(q model.ParsedQuery, retrieved []model.RetrievedDoc) *model.Response {
	resp := model.NewResponse(q.Question, q.Transform)
	if q.SeriesID != "" {
		resp.SeriesID = model.Ptr(q.SeriesID)
	}
	if q.Transform.PointLike() {
		resp.Date = model.DatePtr(q.Date)
	}
	if q.Transform.Windowed() {
		resp.Window.Start = model.DatePtr(q.WindowStart)
		resp.Window.End = model.DatePtr(q.WindowEnd)
	}
	if q.Transform == model.TransformMA {
		resp.Window.Periods = model.Ptr(q.Periods)
	}
	resp.RetrievedDocs = retrieved
	return resp
}

func clarify(resp *model.Response, errs []string) *model.Response {
	resp.Errors = append([]string{}, errs...)
	resp.Answer = strings.Join(errs, " ")
	if resp.Answer == "" {
		resp.Answer = parse.MissingSeriesError
	}
	resp.Confidence = ConfidenceClarify
	resp.Value = nil
	resp.ValueDisplay = nil
	resp.Citations = []model.Citation{}
	return resp
}
