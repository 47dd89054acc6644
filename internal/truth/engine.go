// Package truth computes reference answers directly from the observation store.
//
// Every operation returns (value, ok, err). ok=false marks an absent answer:
// missing rows, null values, short windows, or a zero comparison base. err is
// reserved for store failures.
package truth

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/fredqa/internal/model"
	"github.com/sells-group/fredqa/internal/store"
)

// Engine evaluates transforms against a store.Reader.
type Engine struct {
	reader store.Reader
	freqs  *FrequencyCache
}

// New returns an Engine reading from r. A nil cache gets a fresh one.
func New(r store.Reader, cache *FrequencyCache) *Engine {
	if cache == nil {
		cache = NewFrequencyCache()
	}
	return &Engine{reader: r, freqs: cache}
}

// Frequency returns the (cached) reporting frequency of a series.
func (e *Engine) Frequency(ctx context.Context, seriesID string) (model.Frequency, error) {
	if f, ok := e.freqs.Get(seriesID); ok {
		return f, nil
	}
	raw, err := e.reader.Frequency(ctx, seriesID)
	if err != nil {
		return model.FrequencyUnknown, eris.Wrapf(err, "truth: frequency %s", seriesID)
	}
	return e.freqs.Store(seriesID, model.ParseFrequency(raw)), nil
}

// Point returns the observation value at exactly date.
func (e *Engine) Point(ctx context.Context, seriesID string, date time.Time) (float64, bool, error) {
	if date.IsZero() {
		return 0, false, nil
	}
	v, err := e.reader.Value(ctx, seriesID, date)
	if err != nil {
		return 0, false, eris.Wrapf(err, "truth: point %s", seriesID)
	}
	if v == nil {
		return 0, false, nil
	}
	return *v, true, nil
}

// YoY returns the year-over-year percent change at date.
func (e *Engine) YoY(ctx context.Context, seriesID string, date time.Time) (float64, bool, error) {
	freq, err := e.Frequency(ctx, seriesID)
	if err != nil {
		return 0, false, err
	}
	return e.change(ctx, seriesID, date, ShiftForYoY(date, freq))
}

// MoM returns the one-period percent change at date: three months for
// quarterly series, one day for daily, one month otherwise.
func (e *Engine) MoM(ctx context.Context, seriesID string, date time.Time) (float64, bool, error) {
	freq, err := e.Frequency(ctx, seriesID)
	if err != nil {
		return 0, false, err
	}
	return e.change(ctx, seriesID, date, ShiftForMoM(date, freq))
}

func (e *Engine) change(ctx context.Context, seriesID string, date, prevDate time.Time) (float64, bool, error) {
	if date.IsZero() {
		return 0, false, nil
	}
	cur, ok, err := e.Point(ctx, seriesID, date)
	if err != nil || !ok {
		return 0, false, err
	}
	prev, ok, err := e.Point(ctx, seriesID, prevDate)
	if err != nil || !ok {
		return 0, false, err
	}
	if prev == 0 {
		zap.L().Debug("truth: zero comparison base",
			zap.String("series", seriesID),
			zap.String("prev_date", model.FormatDate(prevDate)),
		)
		return 0, false, nil
	}
	return (cur - prev) / prev * 100, true, nil
}

// MA returns the mean of the n observations ending at date inclusive. The
// window is absent when it is short or contains a null value.
func (e *Engine) MA(ctx context.Context, seriesID string, date time.Time, n int) (float64, bool, error) {
	if n <= 0 || date.IsZero() {
		return 0, false, nil
	}
	obs, err := e.reader.Trailing(ctx, seriesID, date, n)
	if err != nil {
		return 0, false, eris.Wrapf(err, "truth: ma %s", seriesID)
	}
	if len(obs) < n {
		return 0, false, nil
	}
	var sum float64
	for _, o := range obs {
		if o.Value == nil {
			return 0, false, nil
		}
		sum += *o.Value
	}
	return sum / float64(n), true, nil
}

// Max returns the highest observation in [start, end]. Ties go to the
// earliest date.
func (e *Engine) Max(ctx context.Context, seriesID string, start, end time.Time) (model.Observation, bool, error) {
	return e.extreme(ctx, seriesID, start, end, func(a, b float64) bool { return a > b })
}

// Min returns the lowest observation in [start, end]. Ties go to the
// earliest date.
func (e *Engine) Min(ctx context.Context, seriesID string, start, end time.Time) (model.Observation, bool, error) {
	return e.extreme(ctx, seriesID, start, end, func(a, b float64) bool { return a < b })
}

func (e *Engine) extreme(ctx context.Context, seriesID string, start, end time.Time, better func(a, b float64) bool) (model.Observation, bool, error) {
	if start.IsZero() || end.IsZero() {
		return model.Observation{}, false, nil
	}
	if start.After(end) {
		start, end = end, start
	}
	obs, err := e.reader.Range(ctx, seriesID, start, end)
	if err != nil {
		return model.Observation{}, false, eris.Wrapf(err, "truth: range %s", seriesID)
	}

	var (
		best  model.Observation
		found bool
	)
	for _, o := range obs {
		if o.Value == nil {
			continue
		}
		if !found || better(*o.Value, *best.Value) {
			best = o
			found = true
		}
	}
	return best, found, nil
}

// Compute evaluates a declarative truth spec. Malformed dates, a missing
// window, or an unknown transform yield an absent result.
func (e *Engine) Compute(ctx context.Context, spec model.TruthSpec) (float64, bool, error) {
	if spec.Transform.Windowed() {
		if spec.Window == nil {
			return 0, false, nil
		}
		start, okStart := model.ParseDate(spec.Window.Start)
		end, okEnd := model.ParseDate(spec.Window.End)
		if !okStart || !okEnd {
			return 0, false, nil
		}
		var (
			obs model.Observation
			ok  bool
			err error
		)
		if spec.Transform == model.TransformMax {
			obs, ok, err = e.Max(ctx, spec.SeriesID, start, end)
		} else {
			obs, ok, err = e.Min(ctx, spec.SeriesID, start, end)
		}
		if err != nil || !ok {
			return 0, false, err
		}
		return *obs.Value, true, nil
	}

	date, ok := model.ParseDate(spec.Date)
	if !ok {
		return 0, false, nil
	}
	switch spec.Transform {
	case model.TransformPoint:
		return e.Point(ctx, spec.SeriesID, date)
	case model.TransformYoY:
		return e.YoY(ctx, spec.SeriesID, date)
	case model.TransformMoM:
		return e.MoM(ctx, spec.SeriesID, date)
	case model.TransformMA:
		periods := spec.Periods
		if periods == 0 {
			periods = model.DefaultMAPeriods
		}
		return e.MA(ctx, spec.SeriesID, date, periods)
	default:
		return 0, false, nil
	}
}
