package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/fredqa/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
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
	date      TEXT NOT NULL,
	value     REAL,
	PRIMARY KEY (series_id, date)
);

CREATE INDEX IF NOT EXISTS idx_observations_date ON observations(date);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Value(ctx context.Context, seriesID string, date time.Time) (*float64, error) {
	var v sql.NullFloat64
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM observations WHERE series_id = ? AND date = ?`,
		seriesID, model.FormatDate(date),
	).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: value %s", seriesID)
	}
	if !v.Valid {
		return nil, nil
	}
	return &v.Float64, nil
}

func (s *SQLiteStore) Range(ctx context.Context, seriesID string, start, end time.Time) ([]model.Observation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT date, value FROM observations WHERE series_id = ? AND date >= ? AND date <= ? ORDER BY date ASC`,
		seriesID, model.FormatDate(start), model.FormatDate(end),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: range %s", seriesID)
	}
	defer rows.Close() //nolint:errcheck

	return scanSQLiteObservations(rows, seriesID)
}

func (s *SQLiteStore) Trailing(ctx context.Context, seriesID string, end time.Time, n int) ([]model.Observation, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT date, value FROM observations WHERE series_id = ? AND date <= ? ORDER BY date DESC LIMIT ?`,
		seriesID, model.FormatDate(end), n,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: trailing %s", seriesID)
	}
	defer rows.Close() //nolint:errcheck

	obs, err := scanSQLiteObservations(rows, seriesID)
	if err != nil {
		return nil, err
	}
	reverse(obs)
	return obs, nil
}

func (s *SQLiteStore) Frequency(ctx context.Context, seriesID string) (string, error) {
	var freq string
	err := s.db.QueryRowContext(ctx,
		`SELECT frequency FROM series WHERE series_id = ?`, seriesID,
	).Scan(&freq)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", eris.Wrapf(err, "sqlite: frequency %s", seriesID)
	}
	return freq, nil
}

func (s *SQLiteStore) Series(ctx context.Context, seriesID string) (*model.Series, error) {
	var m model.Series
	err := s.db.QueryRowContext(ctx,
		`SELECT series_id, title, units, frequency, seasonal_adjustment, notes, last_updated
		 FROM series WHERE series_id = ?`, seriesID,
	).Scan(&m.SeriesID, &m.Title, &m.Units, &m.Frequency, &m.SeasonalAdjustment, &m.Notes, &m.LastUpdated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: series %s", seriesID)
	}
	return &m, nil
}

func (s *SQLiteStore) ListSeries(ctx context.Context) ([]model.Series, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT series_id, title, units, frequency, seasonal_adjustment, notes, last_updated
		 FROM series ORDER BY series_id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list series")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Series
	for rows.Next() {
		var m model.Series
		if err := rows.Scan(&m.SeriesID, &m.Title, &m.Units, &m.Frequency, &m.SeasonalAdjustment, &m.Notes, &m.LastUpdated); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan series")
		}
		out = append(out, m)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list series rows")
}

func (s *SQLiteStore) UpsertSeries(ctx context.Context, m model.Series) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO series (series_id, title, units, frequency, seasonal_adjustment, notes, last_updated)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(series_id) DO UPDATE SET
			title = excluded.title,
			units = excluded.units,
			frequency = excluded.frequency,
			seasonal_adjustment = excluded.seasonal_adjustment,
			notes = excluded.notes,
			last_updated = excluded.last_updated`,
		m.SeriesID, m.Title, m.Units, m.Frequency, m.SeasonalAdjustment, m.Notes, m.LastUpdated,
	)
	return eris.Wrapf(err, "sqlite: upsert series %s", m.SeriesID)
}

func (s *SQLiteStore) UpsertObservations(ctx context.Context, obs []model.Observation) (int64, error) {
	if len(obs) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO observations (series_id, date, value) VALUES (?, ?, ?)
		 ON CONFLICT(series_id, date) DO UPDATE SET value = excluded.value`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare upsert observations")
	}
	defer stmt.Close() //nolint:errcheck

	var n int64
	for _, o := range obs {
		var v any
		if o.Value != nil {
			v = *o.Value
		}
		if _, err := stmt.ExecContext(ctx, o.SeriesID, model.FormatDate(o.Date), v); err != nil {
			return n, eris.Wrapf(err, "sqlite: upsert observation %s %s", o.SeriesID, model.FormatDate(o.Date))
		}
		n++
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit observations")
	}
	return n, nil
}

func scanSQLiteObservations(rows *sql.Rows, seriesID string) ([]model.Observation, error) {
	var out []model.Observation
	for rows.Next() {
		var (
			raw string
			v   sql.NullFloat64
		)
		if err := rows.Scan(&raw, &v); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan observation")
		}
		d, ok := model.ParseDate(raw)
		if !ok {
			return nil, eris.Errorf("sqlite: bad date %q for %s", raw, seriesID)
		}
		o := model.Observation{SeriesID: seriesID, Date: d}
		if v.Valid {
			o.Value = model.Ptr(v.Float64)
		}
		out = append(out, o)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: observation rows")
}

func reverse(obs []model.Observation) {
	for i, j := 0, len(obs)-1; i < j; i, j = i+1, j-1 {
		obs[i], obs[j] = obs[j], obs[i]
	}
}
