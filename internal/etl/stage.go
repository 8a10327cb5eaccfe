// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package etl

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/apex/log"
	"github.com/klauspost/compress/gzip"

	"github.com/mrdp/mrdp/internal/aws"
)

// StagingPrefix is the root of every staged object.
const StagingPrefix = "etl-staging/"

type column struct {
	name string
	typ  string
}

// stagingTable is a session temp table that receives one COPY.
type stagingTable struct {
	name    string
	columns []column
	// copyOpts are appended to the COPY options.
	copyOpts []string
}

func (t stagingTable) names() []string {
	out := make([]string, len(t.columns))
	for i, c := range t.columns {
		out[i] = c.name
	}
	return out
}

func (t stagingTable) index(name string) int {
	for i, c := range t.columns {
		if c.name == name {
			return i
		}
	}
	return -1
}

func (t stagingTable) createSQL() string {
	defs := make([]string, len(t.columns))
	for i, c := range t.columns {
		defs[i] = c.name + " " + c.typ
	}
	return fmt.Sprintf("CREATE TEMP TABLE %s (%s)", t.name, strings.Join(defs, ", "))
}

// copySQL renders the Redshift COPY for a staged object.
func (t stagingTable) copySQL(uri, role string, compressed bool) string {
	opts := []string{"DELIMITER '|'", "REMOVEQUOTES", "EMPTYASNULL"}
	opts = append(opts, t.copyOpts...)
	if compressed {
		opts = append(opts, "GZIP")
	}
	return fmt.Sprintf("COPY %s FROM %s IAM_ROLE %s %s", t.name, quote(uri), quote(role), strings.Join(opts, " "))
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// encodeRows writes rows as headerless pipe-delimited text, gzip compressed
// when requested.
func encodeRows(rows [][]string, compress bool) ([]byte, error) {
	var buf bytes.Buffer
	var zw *gzip.Writer
	w := csv.NewWriter(&buf)
	if compress {
		zw = gzip.NewWriter(&buf)
		w = csv.NewWriter(zw)
	}
	w.Comma = '|'
	if err := w.WriteAll(rows); err != nil {
		return nil, err
	}
	if zw != nil {
		if err := zw.Close(); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// stage uploads rows under key (".gz" is appended when compressing) and
// returns the s3:// URI. Empty input is ErrNoData.
func (r *Runner) stage(ctx context.Context, key string, rows [][]string) (string, error) {
	if len(rows) == 0 {
		return "", ErrNoData
	}
	if r.StagingBucket == "" {
		return "", fmt.Errorf("staging bucket is not set")
	}
	body, err := encodeRows(rows, r.Compress)
	if err != nil {
		return "", fmt.Errorf("failed to encode staging rows: %w", err)
	}
	encoding := ""
	if r.Compress {
		key += ".gz"
		encoding = "gzip"
	}
	if err := aws.PutBytes(ctx, r.S3, r.StagingBucket, key, body, "text/csv", encoding); err != nil {
		return "", err
	}
	uri := aws.S3URI(r.StagingBucket, key)
	log.Debugf("staged %d rows to %s", len(rows), uri)
	return uri, nil
}

// load stages rows and, in one transaction, COPYs them into the temp table
// and runs merge. It returns what merge reports.
func (r *Runner) load(ctx context.Context, key string, t stagingTable, rows [][]string, merge func(*sql.Tx) (int, error)) (int, error) {
	uri, err := r.stage(ctx, key, rows)
	if err != nil {
		return 0, err
	}

	tx, err := r.Warehouse.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	n, err := func() (int, error) {
		if _, err := tx.ExecContext(ctx, t.createSQL()); err != nil {
			return 0, fmt.Errorf("failed to create %s: %w", t.name, err)
		}
		if _, err := tx.ExecContext(ctx, t.copySQL(uri, r.IAMRole, r.Compress)); err != nil {
			return 0, fmt.Errorf("failed to copy %s: %w", uri, err)
		}
		return merge(tx)
	}()
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	return n, tx.Commit()
}

func affected(res sql.Result) int {
	n, err := res.RowsAffected()
	if err != nil {
		return 0
	}
	return int(n)
}
