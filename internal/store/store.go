// Package store persists series metadata and observations.
package store

import (
	"context"
	"time"

	"github.com/sells-group/fredqa/internal/model"
)

// Reader is the read surface used by the truth engine.
type Reader interface {
	// Value returns the observation value at exactly date. A nil value means
	// the row is missing or its value is null.
	Value(ctx context.Context, seriesID string, date time.Time) (*float64, error)
	// Range returns observations with start <= date <= end in ascending date order.
	Range(ctx context.Context, seriesID string, start, end time.Time) ([]model.Observation, error)
	// Trailing returns the latest n observations at or before end, ascending.
	Trailing(ctx context.Context, seriesID string, end time.Time, n int) ([]model.Observation, error)
	// Frequency returns the stored frequency label, or "" when the series is unknown.
	Frequency(ctx context.Context, seriesID string) (string, error)
}

// Writer loads metadata and observations. Both operations are idempotent upserts.
type Writer interface {
	UpsertSeries(ctx context.Context, s model.Series) error
	UpsertObservations(ctx context.Context, obs []model.Observation) (int64, error)
}

// Store is the full persistence interface.
type Store interface {
	Reader
	Writer

	// Series returns metadata for one series, or nil when it is not stored.
	Series(ctx context.Context, seriesID string) (*model.Series, error)
	ListSeries(ctx context.Context) ([]model.Series, error)

	Migrate(ctx context.Context) error
	Close() error
}

// Open returns the store selected by driver ("sqlite" or "postgres").
func Open(ctx context.Context, driver, dsn string, poolCfg *PoolConfig) (Store, error) {
	switch driver {
	case "", "sqlite":
		return NewSQLite(dsn)
	case "postgres":
		return NewPostgres(ctx, dsn, poolCfg)
	default:
		return nil, errUnknownDriver(driver)
	}
}

// All returns every observation of a series in ascending order.
func All(ctx context.Context, r Reader, seriesID string) ([]model.Observation, error) {
	return r.Range(ctx, seriesID, time.Time{}, model.Date(9999, time.December, 31))
}
