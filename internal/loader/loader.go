// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package loader

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/gzip"
	"github.com/lib/pq"

	"github.com/mrdp/mrdp/internal/aws"
	"github.com/mrdp/mrdp/internal/db"
	"github.com/mrdp/mrdp/internal/generator"
	"github.com/mrdp/mrdp/internal/model"
)

// BulkPrefix is where full telemetry dumps land in the raw bucket.
const BulkPrefix = "telemetry/bulk/"

// Table pairs an OLTP table with the generator file that feeds it.
type Table struct {
	Name string
	File string
}

// Tables lists the loadable tables in foreign key order.
var Tables = []Table{
	{"surgical_robots", generator.RobotsFile},
	{"robot_maintenance_logs", generator.MaintenanceFile},
	{"surgical_procedures", generator.ProceduresFile},
	{"procedure_outcomes", generator.OutcomesFile},
}

// TelemetryTable is loaded only on request.
var TelemetryTable = Table{"procedure_telemetry", generator.TelemetryFile}

// Options controls a load.
type Options struct {
	Dir       string
	Telemetry bool
	Truncate  bool
}

// Result reports the rows copied into one table.
type Result struct {
	Table string
	Rows  int
}

// Load copies every generated file into its table, one transaction per
// table. A failure stops the load; earlier tables stay committed.
func Load(ctx context.Context, conn db.Beginner, opts Options) ([]Result, error) {
	tables := append([]Table{}, Tables...)
	if opts.Telemetry {
		tables = append(tables, TelemetryTable)
	}

	if opts.Truncate {
		if err := truncate(ctx, conn, tables); err != nil {
			return nil, err
		}
	}

	var results []Result
	for _, t := range tables {
		start := time.Now()
		n, err := loadTable(ctx, conn, t, filepath.Join(opts.Dir, t.File))
		if err != nil {
			return results, fmt.Errorf("failed to load %s: %w", t.Name, err)
		}
		log.WithField("table", t.Name).Infof("copied %s rows in %s", humanize.Comma(int64(n)), time.Since(start).Round(time.Millisecond))
		results = append(results, Result{Table: t.Name, Rows: n})
	}
	return results, nil
}

func truncate(ctx context.Context, conn db.Beginner, tables []Table) error {
	names := make([]string, len(tables))
	for i, t := range tables {
		names[len(tables)-1-i] = pq.QuoteIdentifier(t.Name)
	}
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "TRUNCATE "+strings.Join(names, ", ")+" CASCADE"); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to truncate: %w", err)
	}
	return tx.Commit()
}

func loadTable(ctx context.Context, conn db.Beginner, t Table, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	var src rowSource
	if t == TelemetryTable {
		src = newTelemetrySource(f)
	} else {
		src, err = newCSVSource(f)
		if err != nil {
			return 0, err
		}
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	n, err := copyRows(ctx, tx, t.Name, src)
	if err != nil {
		tx.Rollback()
		return 0, err
	}
	return n, tx.Commit()
}

// copyRows streams src through a COPY FROM STDIN statement.
func copyRows(ctx context.Context, tx *sql.Tx, table string, src rowSource) (int, error) {
	stmt, err := tx.PrepareContext(ctx, pq.CopyIn(table, src.Columns()...))
	if err != nil {
		return 0, err
	}

	n := 0
	for {
		rec, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			stmt.Close()
			return n, fmt.Errorf("row %d: %w", n+1, err)
		}
		if _, err := stmt.ExecContext(ctx, Values(rec)...); err != nil {
			stmt.Close()
			return n, fmt.Errorf("row %d: %w", n+1, err)
		}
		n++
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return n, err
	}
	return n, stmt.Close()
}

// Values converts text fields into COPY arguments; empty fields become NULL.
func Values(rec []string) []any {
	out := make([]any, len(rec))
	for i, v := range rec {
		if v == "" {
			out[i] = nil
		} else {
			out[i] = v
		}
	}
	return out
}

type rowSource interface {
	Columns() []string
	Next() ([]string, error)
}

type csvSource struct {
	r    *csv.Reader
	cols []string
}

func newCSVSource(r io.Reader) (*csvSource, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = false
	cols, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	return &csvSource{r: cr, cols: cols}, nil
}

func (s *csvSource) Columns() []string { return s.cols }

func (s *csvSource) Next() ([]string, error) { return s.r.Read() }

type telemetrySource struct {
	sc *bufio.Scanner
}

func newTelemetrySource(r io.Reader) *telemetrySource {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	return &telemetrySource{sc: sc}
}

func (s *telemetrySource) Columns() []string { return model.TelemetrySample{}.Header() }

func (s *telemetrySource) Next() ([]string, error) {
	for s.sc.Scan() {
		line := strings.TrimSpace(s.sc.Text())
		if line == "" {
			continue
		}
		var ts model.TelemetrySample
		if err := json.Unmarshal([]byte(line), &ts); err != nil {
			return nil, err
		}
		return ts.Record(), nil
	}
	if err := s.sc.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

// UploadTelemetry puts the telemetry NDJSON file under BulkPrefix in bucket
// and returns the object key. With compress set the body is gzip encoded.
func UploadTelemetry(ctx context.Context, api aws.S3API, bucket, dir string, compress bool, now time.Time) (string, error) {
	path := filepath.Join(dir, generator.TelemetryFile)
	key := BulkPrefix + now.UTC().Format("20060102") + "/" + generator.TelemetryFile

	src, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer src.Close()

	body := io.ReadSeeker(src)
	encoding := ""
	if compress {
		tmp, err := os.CreateTemp("", "mrdp-telemetry-*.json.gz")
		if err != nil {
			return "", err
		}
		defer os.Remove(tmp.Name())
		defer tmp.Close()

		zw := gzip.NewWriter(tmp)
		if _, err := io.Copy(zw, src); err != nil {
			return "", err
		}
		if err := zw.Close(); err != nil {
			return "", err
		}
		if _, err := tmp.Seek(0, io.SeekStart); err != nil {
			return "", err
		}
		body = tmp
		key += ".gz"
		encoding = "gzip"
	}

	size, err := body.Seek(0, io.SeekEnd)
	if err != nil {
		return "", err
	}
	if _, err := body.Seek(0, io.SeekStart); err != nil {
		return "", err
	}

	if err := aws.PutReader(ctx, api, bucket, key, body, size, "application/x-ndjson", encoding); err != nil {
		return "", err
	}
	log.Infof("uploaded %s to %s", humanize.Bytes(uint64(size)), aws.S3URI(bucket, key))
	return key, nil
}
