// Package catalog keeps a SQLite record of pipeline runs: every per-image
// decision of every stage and the VCI computed for each region.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/project-spencer/orbit/pkg/classifier"
	"github.com/project-spencer/orbit/pkg/funnel"
	"github.com/project-spencer/orbit/pkg/vci"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
  id          TEXT PRIMARY KEY,
  input       TEXT NOT NULL,
  started_at  DATETIME NOT NULL,
  elapsed_ms  INTEGER NOT NULL,
  initial     INTEGER NOT NULL,
  final       INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS decisions (
  id      INTEGER PRIMARY KEY,
  run_id  TEXT NOT NULL REFERENCES runs(id),
  stage   TEXT NOT NULL,
  path    TEXT NOT NULL,
  metric  REAL,
  kept    INTEGER NOT NULL CHECK (kept IN (0,1)),
  error   TEXT
);
CREATE INDEX IF NOT EXISTS idx_decisions_run ON decisions(run_id, stage);
CREATE TABLE IF NOT EXISTS vci_results (
  id       INTEGER PRIMARY KEY,
  run_id   TEXT NOT NULL REFERENCES runs(id),
  region   TEXT NOT NULL,
  current  REAL NOT NULL,
  vci      REAL NOT NULL,
  state    TEXT NOT NULL,
  UNIQUE(run_id, region)
);
`

type Catalog struct {
	sql *sql.DB
}

func Open(path string) (*Catalog, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	return &Catalog{sql: db}, nil
}

func (c *Catalog) Close() error {
	if c == nil || c.sql == nil {
		return nil
	}
	return c.sql.Close()
}

// RecordRun stores the run and the decisions of each of its stages.
func (c *Catalog) RecordRun(ctx context.Context, runID string, startedAt time.Time, rep *funnel.Report) (err error) {
	tx, err := c.sql.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, input, started_at, elapsed_ms, initial, final) VALUES (?, ?, ?, ?, ?, ?)`,
		runID, rep.Input, startedAt.UTC(), rep.Elapsed.Milliseconds(), rep.Initial, rep.Count(),
	); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO decisions (run_id, stage, path, metric, kept, error) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, s := range rep.Stages {
		if s.Result == nil {
			continue
		}
		for _, group := range [][]classifier.Decision{s.Result.Kept, s.Result.Discarded, s.Result.Failed} {
			for _, d := range group {
				var metric, msg any
				if d.Err != nil {
					msg = d.Err.Error()
				} else {
					metric = d.Metric
				}
				if _, err = stmt.ExecContext(ctx, runID, s.Name, d.Path, metric, boolInt(d.Keep), msg); err != nil {
					return err
				}
			}
		}
	}

	return tx.Commit()
}

const ensureRun = `INSERT INTO runs (id, input, started_at, elapsed_ms, initial, final) VALUES (?, ?, ?, 0, ?, 0)
	ON CONFLICT(id) DO NOTHING`

// BeginRun stores a run that has no funnel behind it, such as a standalone
// VCI analysis of input. An existing row is left alone.
func (c *Catalog) BeginRun(ctx context.Context, runID, input string, startedAt time.Time, initial int) error {
	_, err := c.sql.ExecContext(ctx, ensureRun, runID, input, startedAt.UTC(), initial)
	return err
}

// RecordVCI stores the per-region results of a run. A run not recorded yet
// gets an empty row so that no result is orphaned.
func (c *Catalog) RecordVCI(ctx context.Context, runID string, results []vci.Result) (err error) {
	tx, err := c.sql.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, ensureRun, runID, "", time.Now().UTC(), 0); err != nil {
		return err
	}

	for _, r := range results {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO vci_results (run_id, region, current, vci, state) VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT(run_id, region) DO UPDATE SET current = excluded.current, vci = excluded.vci, state = excluded.state`,
			runID, r.Region, r.Current, r.VCI, r.State.String(),
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

type DecisionRow struct {
	Stage  string
	Path   string
	Metric *float64
	Kept   bool
	Error  string
}

func (c *Catalog) Decisions(ctx context.Context, runID string) ([]DecisionRow, error) {
	rows, err := c.sql.QueryContext(ctx,
		`SELECT stage, path, metric, kept, error FROM decisions WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DecisionRow
	for rows.Next() {
		var (
			r      DecisionRow
			metric sql.NullFloat64
			kept   int
			msg    sql.NullString
		)
		if err := rows.Scan(&r.Stage, &r.Path, &metric, &kept, &msg); err != nil {
			return nil, err
		}
		if metric.Valid {
			r.Metric = &metric.Float64
		}
		r.Kept = kept == 1
		r.Error = msg.String
		out = append(out, r)
	}
	return out, rows.Err()
}

type ResultRow struct {
	Region  string
	Current float64
	VCI     float64
	State   string
}

func (c *Catalog) Results(ctx context.Context, runID string) ([]ResultRow, error) {
	rows, err := c.sql.QueryContext(ctx,
		`SELECT region, current, vci, state FROM vci_results WHERE run_id = ? ORDER BY region`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ResultRow
	for rows.Next() {
		var r ResultRow
		if err := rows.Scan(&r.Region, &r.Current, &r.VCI, &r.State); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ErrUnknownRun is returned by Run for an id never recorded.
var ErrUnknownRun = errors.New("unknown run")

type RunRow struct {
	ID      string
	Input   string
	Elapsed time.Duration
	Initial int
	Final   int
}

func (c *Catalog) Run(ctx context.Context, runID string) (RunRow, error) {
	var (
		r  RunRow
		ms int64
	)
	err := c.sql.QueryRowContext(ctx,
		`SELECT id, input, elapsed_ms, initial, final FROM runs WHERE id = ?`, runID,
	).Scan(&r.ID, &r.Input, &ms, &r.Initial, &r.Final)
	if errors.Is(err, sql.ErrNoRows) {
		return RunRow{}, ErrUnknownRun
	}
	if err != nil {
		return RunRow{}, err
	}
	r.Elapsed = time.Duration(ms) * time.Millisecond
	return r, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
