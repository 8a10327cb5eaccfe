// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package etl

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/mrdp/mrdp/internal/model"
)

// LedgerFile is the ledger database name inside its directory.
const LedgerFile = "etl.db"

const ledgerSchema = `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		status TEXT NOT NULL,
		window_start TEXT,
		window_end TEXT,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		records TEXT,
		error TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at DESC);
	CREATE INDEX IF NOT EXISTS idx_runs_type ON runs(type, status);
`

// Run is one ledger entry.
type Run struct {
	ID          string         `json:"id"`
	Type        string         `json:"type"`
	Status      string         `json:"status"`
	WindowStart string         `json:"window_start,omitempty"`
	WindowEnd   string         `json:"window_end,omitempty"`
	StartedAt   time.Time      `json:"started_at"`
	FinishedAt  *time.Time     `json:"finished_at,omitempty"`
	Records     map[string]int `json:"records,omitempty"`
	Error       string         `json:"error,omitempty"`
}

// Ledger records ETL runs in a local SQLite database.
type Ledger struct {
	conn *sql.DB
	now  func() time.Time
}

// OpenLedger opens or creates the ledger in dir.
func OpenLedger(dir string) (*Ledger, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil { //nolint:mnd
		return nil, fmt.Errorf("failed to create ledger directory: %w", err)
	}
	conn, err := sql.Open("sqlite", filepath.Join(dir, LedgerFile))
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	conn.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := conn.Exec(pragma); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}
	if _, err := conn.Exec(ledgerSchema); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to initialize ledger: %w", err)
	}
	return &Ledger{conn: conn, now: time.Now}, nil
}

// Close closes the database.
func (l *Ledger) Close() error {
	return l.conn.Close()
}

// Start records a running run and returns its id.
func (l *Ledger) Start(ctx context.Context, typ string, start, end time.Time) (string, error) {
	id := uuid.NewString()
	_, err := l.conn.ExecContext(ctx,
		`INSERT INTO runs (id, type, status, window_start, window_end, started_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, typ, StatusRunning, nullDate(start), nullDate(end), l.now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return "", fmt.Errorf("failed to record run: %w", err)
	}
	return id, nil
}

// Finish closes a run.
func (l *Ledger) Finish(ctx context.Context, id, status string, records map[string]int, errMsg string) error {
	b, err := json.Marshal(records)
	if err != nil {
		return err
	}
	res, err := l.conn.ExecContext(ctx,
		`UPDATE runs SET status = ?, finished_at = ?, records = ?, error = ? WHERE id = ?`,
		status, l.now().UTC().Format(time.RFC3339Nano), string(b), nullString(errMsg), id)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run not found: %s", id)
	}
	return nil
}

// LastWindowEnd returns the window end of the latest successful run that
// loaded procedure facts.
func (l *Ledger) LastWindowEnd(ctx context.Context) (time.Time, bool, error) {
	var end sql.NullString
	err := l.conn.QueryRowContext(ctx, `
		SELECT window_end FROM runs
		WHERE status = ? AND type IN (?, ?) AND window_end IS NOT NULL
		ORDER BY window_end DESC LIMIT 1`,
		StatusSuccess, string(TypeFull), string(TypeProcedures)).Scan(&end)
	if err == sql.ErrNoRows {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	t, err := time.Parse(model.DateLayout, end.String)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("bad window_end %q: %w", end.String, err)
	}
	return t, true, nil
}

// History returns the most recent runs, newest first. limit <= 0 returns
// every run.
func (l *Ledger) History(ctx context.Context, limit int) ([]Run, error) {
	q := `SELECT id, type, status, window_start, window_end, started_at, finished_at, records, error
	      FROM runs ORDER BY started_at DESC`
	args := []any{}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := l.conn.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var (
			r                                 Run
			ws, we, finished, records, errMsg sql.NullString
			started                           string
		)
		if err := rows.Scan(&r.ID, &r.Type, &r.Status, &ws, &we, &started, &finished, &records, &errMsg); err != nil {
			return nil, err
		}
		r.WindowStart, r.WindowEnd, r.Error = ws.String, we.String, errMsg.String
		if r.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, err
		}
		if finished.Valid {
			t, err := time.Parse(time.RFC3339Nano, finished.String)
			if err != nil {
				return nil, err
			}
			r.FinishedAt = &t
		}
		if records.Valid && records.String != "" {
			if err := json.Unmarshal([]byte(records.String), &r.Records); err != nil {
				return nil, err
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func nullDate(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return model.FormatDate(t)
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
