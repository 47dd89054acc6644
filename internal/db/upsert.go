package db

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/fredqa/internal/model"
)

// Staged describes a COPY-staged merge into Table. Rows are copied into a
// session temp table shaped like Table and then merged on Keys.
type Staged struct {
	Table   string
	Columns []string
	Keys    []string
}

// Observations merges observation rows on (series_id, date), replacing the
// stored value.
var Observations = Staged{
	Table:   "observations",
	Columns: []string{"series_id", "date", "value"},
	Keys:    []string{"series_id", "date"},
}

func (s Staged) validate() error {
	if s.Table == "" {
		return eris.New("db: staged merge has no table")
	}
	if len(s.Columns) == 0 {
		return eris.Errorf("db: staged merge into %s has no columns", s.Table)
	}
	if len(s.Keys) == 0 {
		return eris.Errorf("db: staged merge into %s has no keys", s.Table)
	}
	return nil
}

func (s Staged) stageTable() string {
	return "stage_" + strings.ReplaceAll(s.Table, ".", "_")
}

// statements returns the temp table DDL and the merge statement. Non-key
// columns are overwritten on conflict; a table with only key columns keeps
// its existing rows.
func (s Staged) statements() (create, merge string) {
	stage := pgx.Identifier{s.stageTable()}.Sanitize()
	target := pgx.Identifier(strings.SplitN(s.Table, ".", 2)).Sanitize()

	create = "CREATE TEMP TABLE " + stage + " (LIKE " + target + " INCLUDING DEFAULTS) ON COMMIT DROP"

	keys := make(map[string]bool, len(s.Keys))
	for _, k := range s.Keys {
		keys[k] = true
	}
	var sets []string
	for _, c := range s.Columns {
		if !keys[c] {
			col := pgx.Identifier{c}.Sanitize()
			sets = append(sets, col+" = EXCLUDED."+col)
		}
	}
	action := "DO NOTHING"
	if len(sets) > 0 {
		action = "DO UPDATE SET " + strings.Join(sets, ", ")
	}

	cols := identList(s.Columns)
	merge = "INSERT INTO " + target + " (" + cols + ") SELECT " + cols + " FROM " + stage +
		" ON CONFLICT (" + identList(s.Keys) + ") " + action
	return create, merge
}

// Merge copies rows into the stage table and merges them into the target in
// one transaction. Keys must not repeat within rows.
func Merge(ctx context.Context, pool Pool, s Staged, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if err := s.validate(); err != nil {
		return 0, err
	}
	create, merge := s.statements()

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "db: begin merge")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, create); err != nil {
		return 0, eris.Wrapf(err, "db: stage %s", s.Table)
	}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{s.stageTable()}, s.Columns, pgx.CopyFromRows(rows)); err != nil {
		return 0, eris.Wrapf(err, "db: copy %d rows for %s", len(rows), s.Table)
	}
	tag, err := tx.Exec(ctx, merge)
	if err != nil {
		return 0, eris.Wrapf(err, "db: merge %s", s.Table)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "db: commit merge")
	}
	return tag.RowsAffected(), nil
}

// ObservationRows converts observations to COPY rows. When a (series_id,
// date) pair repeats, the later observation replaces the earlier one in place.
func ObservationRows(obs []model.Observation) [][]any {
	type key struct {
		id   string
		date time.Time
	}
	index := make(map[key]int, len(obs))
	rows := make([][]any, 0, len(obs))
	for _, o := range obs {
		k := key{o.SeriesID, o.Date}
		row := []any{o.SeriesID, o.Date, o.Value}
		if i, ok := index[k]; ok {
			rows[i] = row
			continue
		}
		index[k] = len(rows)
		rows = append(rows, row)
	}
	return rows
}

// UpsertObservations merges obs into the observations table.
func UpsertObservations(ctx context.Context, pool Pool, obs []model.Observation) (int64, error) {
	return Merge(ctx, pool, Observations, ObservationRows(obs))
}

func identList(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}
