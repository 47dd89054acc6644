package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/fredqa/internal/db"
	"github.com/sells-group/fredqa/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists the hot read queries prepared on each new connection.
var preparedStatements = map[string]string{
	"obs_value":    `SELECT value FROM observations WHERE series_id = $1 AND date = $2`,
	"obs_range":    `SELECT date, value FROM observations WHERE series_id = $1 AND date >= $2 AND date <= $3 ORDER BY date ASC`,
	"obs_trailing": `SELECT date, value FROM observations WHERE series_id = $1 AND date <= $2 ORDER BY date DESC LIMIT $3`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS series (
	series_id           TEXT PRIMARY KEY,
	title               TEXT NOT NULL DEFAULT '',
	units               TEXT NOT NULL DEFAULT '',
	frequency           TEXT NOT NULL DEFAULT '',
	seasonal_adjustment TEXT NOT NULL DEFAULT '',
	notes               TEXT NOT NULL DEFAULT '',
	last_updated        TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS observations (
	series_id TEXT NOT NULL,
	date      DATE NOT NULL,
	value     DOUBLE PRECISION,
	PRIMARY KEY (series_id, date)
);

CREATE INDEX IF NOT EXISTS idx_observations_date ON observations(date);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) Value(ctx context.Context, seriesID string, date time.Time) (*float64, error) {
	var v *float64
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM observations WHERE series_id = $1 AND date = $2`,
		seriesID, date,
	).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: value %s", seriesID)
	}
	return v, nil
}

func (s *PostgresStore) Range(ctx context.Context, seriesID string, start, end time.Time) ([]model.Observation, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT date, value FROM observations WHERE series_id = $1 AND date >= $2 AND date <= $3 ORDER BY date ASC`,
		seriesID, start, end,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: range %s", seriesID)
	}
	defer rows.Close()

	return scanPgObservations(rows, seriesID)
}

func (s *PostgresStore) Trailing(ctx context.Context, seriesID string, end time.Time, n int) ([]model.Observation, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT date, value FROM observations WHERE series_id = $1 AND date <= $2 ORDER BY date DESC LIMIT $3`,
		seriesID, end, n,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: trailing %s", seriesID)
	}
	defer rows.Close()

	obs, err := scanPgObservations(rows, seriesID)
	if err != nil {
		return nil, err
	}
	reverse(obs)
	return obs, nil
}

func (s *PostgresStore) Frequency(ctx context.Context, seriesID string) (string, error) {
	var freq string
	err := s.pool.QueryRow(ctx,
		`SELECT frequency FROM series WHERE series_id = $1`, seriesID,
	).Scan(&freq)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", eris.Wrapf(err, "postgres: frequency %s", seriesID)
	}
	return freq, nil
}

func (s *PostgresStore) Series(ctx context.Context, seriesID string) (*model.Series, error) {
	var m model.Series
	err := s.pool.QueryRow(ctx,
		`SELECT series_id, title, units, frequency, seasonal_adjustment, notes, last_updated
		 FROM series WHERE series_id = $1`, seriesID,
	).Scan(&m.SeriesID, &m.Title, &m.Units, &m.Frequency, &m.SeasonalAdjustment, &m.Notes, &m.LastUpdated)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: series %s", seriesID)
	}
	return &m, nil
}

func (s *PostgresStore) ListSeries(ctx context.Context) ([]model.Series, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT series_id, title, units, frequency, seasonal_adjustment, notes, last_updated
		 FROM series ORDER BY series_id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list series")
	}
	defer rows.Close()

	var out []model.Series
	for rows.Next() {
		var m model.Series
		if err := rows.Scan(&m.SeriesID, &m.Title, &m.Units, &m.Frequency, &m.SeasonalAdjustment, &m.Notes, &m.LastUpdated); err != nil {
			return nil, eris.Wrap(err, "postgres: scan series")
		}
		out = append(out, m)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list series rows")
}

func (s *PostgresStore) UpsertSeries(ctx context.Context, m model.Series) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO series (series_id, title, units, frequency, seasonal_adjustment, notes, last_updated)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (series_id) DO UPDATE SET
			title = EXCLUDED.title,
			units = EXCLUDED.units,
			frequency = EXCLUDED.frequency,
			seasonal_adjustment = EXCLUDED.seasonal_adjustment,
			notes = EXCLUDED.notes,
			last_updated = EXCLUDED.last_updated`,
		m.SeriesID, m.Title, m.Units, m.Frequency, m.SeasonalAdjustment, m.Notes, m.LastUpdated,
	)
	return eris.Wrapf(err, "postgres: upsert series %s", m.SeriesID)
}

// UpsertObservations bulk-loads observations through a COPY into a temp table.
// Later duplicates of the same (series_id, date) within obs win.
func (s *PostgresStore) UpsertObservations(ctx context.Context, obs []model.Observation) (int64, error) {
	n, err := db.UpsertObservations(ctx, s.pool, obs)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: upsert observations")
	}
	return n, nil
}

func scanPgObservations(rows pgx.Rows, seriesID string) ([]model.Observation, error) {
	var out []model.Observation
	for rows.Next() {
		var (
			d time.Time
			v *float64
		)
		if err := rows.Scan(&d, &v); err != nil {
			return nil, eris.Wrap(err, "postgres: scan observation")
		}
		out = append(out, model.Observation{
			SeriesID: seriesID,
			Date:     model.Date(d.Year(), d.Month(), d.Day()),
			Value:    v,
		})
	}
	return out, eris.Wrap(rows.Err(), "postgres: observation rows")
}
