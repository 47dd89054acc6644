package eval

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/fredqa/internal/model"
	"github.com/sells-group/fredqa/internal/store"
	"github.com/sells-group/fredqa/internal/truth"
)

// GenerateOptions controls synthetic case generation. Window cases are split
// between max (half, rounded down) and min.
type GenerateOptions struct {
	Seed       uint64
	Point      int
	YoY        int
	MoM        int
	MA         int
	Window     int
	MinPeriods int
	MaxPeriods int
	// Series limits generation to these ids. Empty means every stored series.
	Series []string
	// Names overrides the series title used in question text.
	Names map[string]string
}

// DefaultGenerateOptions returns the standard golden set profile.
func DefaultGenerateOptions() GenerateOptions {
	return GenerateOptions{
		Seed:       42,
		Point:      20,
		YoY:        10,
		MoM:        10,
		MA:         8,
		Window:     10,
		MinPeriods: 3,
		MaxPeriods: 6,
	}
}

// CaseSource is the store surface the generator reads.
type CaseSource interface {
	store.Reader
	ListSeries(ctx context.Context) ([]model.Series, error)
}

// Generator builds golden cases whose truth is computable from the store.
type Generator struct {
	src    CaseSource
	engine *truth.Engine
	opts   GenerateOptions
	rng    *rand.Rand
}

// NewGenerator returns a seeded generator.
func NewGenerator(src CaseSource, engine *truth.Engine, opts GenerateOptions) *Generator {
	if opts.MinPeriods <= 0 {
		opts.MinPeriods = model.DefaultMAPeriods
	}
	if opts.MaxPeriods < opts.MinPeriods {
		opts.MaxPeriods = opts.MinPeriods
	}
	return &Generator{
		src:    src,
		engine: engine,
		opts:   opts,
		rng:    rand.New(rand.NewPCG(opts.Seed, opts.Seed)),
	}
}

type seriesData struct {
	id    string
	name  string
	dates []time.Time
}

type candidate struct {
	series  *seriesData
	date    time.Time
	periods int
	end     time.Time
}

// Generate returns shuffled cases. Only candidates whose truth spec the
// engine can evaluate are kept, so a category may come back short.
func (g *Generator) Generate(ctx context.Context) ([]model.Case, error) {
	data, err := g.load(ctx)
	if err != nil {
		return nil, err
	}

	var cases []model.Case
	for _, step := range []struct {
		transform model.Transform
		count     int
	}{
		{model.TransformPoint, g.opts.Point},
		{model.TransformYoY, g.opts.YoY},
		{model.TransformMoM, g.opts.MoM},
		{model.TransformMA, g.opts.MA},
	} {
		built, err := g.pointLike(ctx, data, step.transform, step.count)
		if err != nil {
			return nil, err
		}
		cases = append(cases, built...)
	}

	maxCount := g.opts.Window / 2
	for _, step := range []struct {
		transform model.Transform
		count     int
	}{
		{model.TransformMax, maxCount},
		{model.TransformMin, g.opts.Window - maxCount},
	} {
		built, err := g.windowed(ctx, data, step.transform, step.count)
		if err != nil {
			return nil, err
		}
		cases = append(cases, built...)
	}

	g.rng.Shuffle(len(cases), func(i, j int) { cases[i], cases[j] = cases[j], cases[i] })
	zap.L().Info("eval: generated cases", zap.Int("cases", len(cases)), zap.Int("series", len(data)))
	return cases, nil
}

func (g *Generator) load(ctx context.Context) ([]*seriesData, error) {
	all, err := g.src.ListSeries(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "eval: list series")
	}
	want := map[string]bool{}
	for _, id := range g.opts.Series {
		want[strings.ToUpper(id)] = true
	}

	var out []*seriesData
	for _, s := range all {
		if len(want) > 0 && !want[s.SeriesID] {
			continue
		}
		obs, err := store.All(ctx, g.src, s.SeriesID)
		if err != nil {
			return nil, eris.Wrapf(err, "eval: observations %s", s.SeriesID)
		}
		if len(obs) == 0 {
			continue
		}
		d := &seriesData{id: s.SeriesID, name: s.Title}
		if n, ok := g.opts.Names[s.SeriesID]; ok && n != "" {
			d.name = n
		}
		if d.name == "" {
			d.name = s.SeriesID
		}
		for _, o := range obs {
			d.dates = append(d.dates, o.Date)
		}
		out = append(out, d)
	}
	return out, nil
}

func (g *Generator) pointLike(ctx context.Context, data []*seriesData, t model.Transform, count int) ([]model.Case, error) {
	if count <= 0 {
		return nil, nil
	}
	var options []candidate
	for _, d := range data {
		for _, date := range d.dates {
			if t != model.TransformMA {
				options = append(options, candidate{series: d, date: date})
				continue
			}
			for p := g.opts.MinPeriods; p <= g.opts.MaxPeriods; p++ {
				options = append(options, candidate{series: d, date: date, periods: p})
			}
		}
	}
	g.rng.Shuffle(len(options), func(i, j int) { options[i], options[j] = options[j], options[i] })

	var cases []model.Case
	for _, o := range options {
		if len(cases) == count {
			break
		}
		spec := model.TruthSpec{
			SeriesID:  o.series.id,
			Transform: t,
			Date:      model.FormatDate(o.date),
			Periods:   o.periods,
			Tolerance: model.Ptr(model.DefaultTolerance),
		}
		ok, err := g.computable(ctx, spec)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		cases = append(cases, newCase(
			fmt.Sprintf("%s_%s_%d", strings.ToLower(o.series.id), t, len(cases)),
			pointQuestion(t, o.series.name, o.date, o.periods),
			spec,
		))
	}
	return cases, nil
}

func (g *Generator) windowed(ctx context.Context, data []*seriesData, t model.Transform, count int) ([]model.Case, error) {
	if count <= 0 {
		return nil, nil
	}
	var options []model.TruthSpec
	for _, d := range data {
		if len(d.dates) < 3 {
			continue
		}
		indices := g.rng.Perm(len(d.dates) - 2)
		found := 0
		for _, i := range indices {
			if found >= count*2 {
				break
			}
			ends := d.dates[i+2:]
			end := ends[g.rng.IntN(len(ends))]
			spec := model.TruthSpec{
				SeriesID:  d.id,
				Transform: t,
				Window:    &model.SpecWindow{Start: model.FormatDate(d.dates[i]), End: model.FormatDate(end)},
				Tolerance: model.Ptr(model.DefaultTolerance),
			}
			ok, err := g.computable(ctx, spec)
			if err != nil {
				return nil, err
			}
			if ok {
				options = append(options, spec)
				found++
			}
		}
	}
	g.rng.Shuffle(len(options), func(i, j int) { options[i], options[j] = options[j], options[i] })
	if len(options) > count {
		options = options[:count]
	}

	names := map[string]string{}
	for _, d := range data {
		names[d.id] = d.name
	}
	adjective := "highest"
	if t == model.TransformMin {
		adjective = "lowest"
	}
	cases := make([]model.Case, 0, len(options))
	for i, spec := range options {
		start, _ := model.ParseDate(spec.Window.Start)
		end, _ := model.ParseDate(spec.Window.End)
		q := fmt.Sprintf("What was the %s %s between %s and %s?",
			adjective, names[spec.SeriesID], model.HumanizeDate(start), model.HumanizeDate(end))
		cases = append(cases, newCase(fmt.Sprintf("%s_%s_%d", strings.ToLower(spec.SeriesID), t, i), q, spec))
	}
	return cases, nil
}

func (g *Generator) computable(ctx context.Context, spec model.TruthSpec) (bool, error) {
	_, ok, err := g.engine.Compute(ctx, spec)
	if err != nil {
		return false, eris.Wrapf(err, "eval: truth %s %s", spec.SeriesID, spec.Transform)
	}
	return ok, nil
}

func pointQuestion(t model.Transform, name string, date time.Time, periods int) string {
	when := model.HumanizeDate(date)
	switch t {
	case model.TransformYoY:
		return fmt.Sprintf("What was the year-over-year change in %s in %s?", name, when)
	case model.TransformMoM:
		return fmt.Sprintf("What was the month-over-month change in %s in %s?", name, when)
	case model.TransformMA:
		return fmt.Sprintf("What was the %d-period moving average of %s in %s?", periods, name, when)
	default:
		return fmt.Sprintf("What was %s in %s?", name, when)
	}
}

func newCase(id, question string, spec model.TruthSpec) model.Case {
	s := spec
	return model.Case{
		ID:       id,
		Question: question,
		Expect: model.Expectation{
			SeriesID:        spec.SeriesID,
			Transform:       spec.Transform,
			ShouldAnswer:    model.Ptr(true),
			ShouldHaveValue: model.Ptr(true),
		},
		TruthSpec: &s,
	}
}

var refusalQuestions = []string{
	"What was the unemployment rate?",
	"What was it in June 2014?",
	"What is the weather tomorrow?",
	"What was the 0-period moving average of unemployment in April 2020?",
	"What was the lowest fed funds rate between sometime and later?",
}

// RefusalCases returns fixed questions that should be met with a
// clarification rather than a value.
func RefusalCases() []model.Case {
	cases := make([]model.Case, len(refusalQuestions))
	for i, q := range refusalQuestions {
		cases[i] = model.Case{
			ID:       fmt.Sprintf("refusal_%d", i),
			Question: q,
			Expect: model.Expectation{
				ShouldAnswer:    model.Ptr(false),
				ShouldHaveValue: model.Ptr(false),
			},
		}
	}
	return cases
}
