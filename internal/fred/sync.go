package fred

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/fredqa/internal/metrics"
	"github.com/sells-group/fredqa/internal/model"
	"github.com/sells-group/fredqa/internal/resilience"
	"github.com/sells-group/fredqa/internal/store"
)

// DefaultConcurrency bounds concurrent series downloads.
const DefaultConcurrency = 2

// Source is the FRED surface the syncer needs.
type Source interface {
	Series(ctx context.Context, seriesID string) (*model.Series, error)
	Observations(ctx context.Context, seriesID, start, end string) ([]model.Observation, error)
}

// SyncOptions bounds a sync.
type SyncOptions struct {
	Start       string
	End         string
	Concurrency int
}

// SeriesResult is the outcome for one series.
type SeriesResult struct {
	SeriesID     string
	Observations int
	Missing      int
	Upserted     int64
	Elapsed      time.Duration
	Err          error
}

// SyncResult collects per-series outcomes in request order.
type SyncResult struct {
	Series []SeriesResult
}

// Failed returns the results that errored.
func (r SyncResult) Failed() []SeriesResult {
	var out []SeriesResult
	for _, s := range r.Series {
		if s.Err != nil {
			out = append(out, s)
		}
	}
	return out
}

// Rows returns the total upserted observation rows.
func (r SyncResult) Rows() int64 {
	var n int64
	for _, s := range r.Series {
		n += s.Upserted
	}
	return n
}

// Syncer loads FRED series into a store.
type Syncer struct {
	src     Source
	w       store.Writer
	metrics *metrics.Metrics
}

// NewSyncer returns a Syncer. m may be nil.
func NewSyncer(src Source, w store.Writer, m *metrics.Metrics) *Syncer {
	return &Syncer{src: src, w: w, metrics: m}
}

// Sync ingests every series. A failing series is recorded in its result and
// does not stop the others; only cancellation aborts the run.
func (s *Syncer) Sync(ctx context.Context, seriesIDs []string, opts SyncOptions) (*SyncResult, error) {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	res := &SyncResult{Series: make([]SeriesResult, len(seriesIDs))}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	for i, id := range seriesIDs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res.Series[i] = s.syncOne(gctx, id, opts)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "fred: sync cancelled")
	}
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "fred: sync cancelled")
	}
	return res, nil
}

func (s *Syncer) syncOne(ctx context.Context, seriesID string, opts SyncOptions) SeriesResult {
	start := time.Now()
	r := SeriesResult{SeriesID: seriesID}
	log := zap.L().With(zap.String("series", seriesID))

	defer func() {
		r.Elapsed = time.Since(start)
		if r.Err != nil {
			log.Error("fred: series sync failed",
				zap.String("error_type", resilience.Classify(r.Err)),
				zap.Error(r.Err),
			)
		}
	}()

	meta, err := s.src.Series(ctx, seriesID)
	if err != nil {
		r.Err = err
		return r
	}
	obs, err := s.src.Observations(ctx, seriesID, opts.Start, opts.End)
	if err != nil {
		r.Err = err
		return r
	}
	if err := s.w.UpsertSeries(ctx, *meta); err != nil {
		r.Err = eris.Wrapf(err, "fred: store series %s", seriesID)
		return r
	}
	n, err := s.w.UpsertObservations(ctx, obs)
	if err != nil {
		r.Err = eris.Wrapf(err, "fred: store observations %s", seriesID)
		return r
	}

	r.Observations = len(obs)
	for _, o := range obs {
		if o.Value == nil {
			r.Missing++
		}
	}
	r.Upserted = n
	s.metrics.AddIngested(seriesID, n)
	log.Info("fred: series synced",
		zap.Int("observations", r.Observations),
		zap.Int("missing", r.Missing),
		zap.Int64("upserted", n),
		zap.Duration("elapsed", time.Since(start)),
	)
	return r
}
