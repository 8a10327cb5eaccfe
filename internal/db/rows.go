// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package db

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/mrdp/mrdp/internal/model"
)

// Row is one result row keyed by column name.
type Row map[string]any

// ScanRows reads every row of rs into Rows. Byte slices become strings so
// NUMERIC values keep their exact text.
func ScanRows(rs *sql.Rows) ([]Row, error) {
	defer rs.Close()

	cols, err := rs.Columns()
	if err != nil {
		return nil, err
	}

	out := []Row{}
	for rs.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rs.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(Row, len(cols))
		for i, c := range cols {
			if b, ok := vals[i].([]byte); ok {
				row[c] = string(b)
			} else {
				row[c] = vals[i]
			}
		}
		out = append(out, row)
	}
	return out, rs.Err()
}

// QueryRows runs query and scans the result.
func QueryRows(ctx context.Context, q Queryer, query string, args ...any) ([]Row, error) {
	rs, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return ScanRows(rs)
}

// QueryRow runs query and returns its first row, or nil when there is none.
func QueryRow(ctx context.Context, q Queryer, query string, args ...any) (Row, error) {
	rows, err := QueryRows(ctx, q, query, args...)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

// ScanRecords reads every row of rs as text fields in column order. NULL
// becomes the empty string, dates render as YYYY-MM-DD when they carry no
// clock and booleans as true/false.
func ScanRecords(rs *sql.Rows) ([]string, [][]string, error) {
	defer rs.Close()

	cols, err := rs.Columns()
	if err != nil {
		return nil, nil, err
	}

	var out [][]string
	for rs.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rs.Scan(ptrs...); err != nil {
			return nil, nil, err
		}
		rec := make([]string, len(cols))
		for i, v := range vals {
			rec[i] = Text(v)
		}
		out = append(out, rec)
	}
	return cols, out, rs.Err()
}

// Text renders a driver value as staging text.
func Text(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(x)
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return model.FormatFloat(x)
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 && x.Nanosecond() == 0 {
			return model.FormatDate(x)
		}
		if x.Nanosecond() != 0 {
			return model.FormatMillis(x)
		}
		return model.FormatTimestamp(x)
	default:
		return fmt.Sprint(x)
	}
}
