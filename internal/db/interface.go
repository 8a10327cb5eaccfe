// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strings"

	"github.com/apex/log"
)

// Queryer runs statements that return rows. *sql.DB, *sql.Tx and *sql.Conn
// satisfy it.
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Execer runs statements that do not return rows.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// QueryExecer is both.
type QueryExecer interface {
	Queryer
	Execer
}

// Beginner starts transactions.
type Beginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

var (
	_ QueryExecer = (*sql.DB)(nil)
	_ QueryExecer = (*sql.Tx)(nil)
	_ Beginner    = (*sql.DB)(nil)
)

type loggingQueryExecer struct {
	inner      QueryExecer
	logger     log.Interface
	logQueries bool
}

// NewLogging wraps qe so every statement is logged at debug level when
// logQueries is set.
func NewLogging(qe QueryExecer, logger log.Interface, logQueries bool) QueryExecer {
	return &loggingQueryExecer{inner: qe, logger: logger, logQueries: logQueries}
}

func (l *loggingQueryExecer) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	if l.logQueries {
		l.logger.Debugf("QUERY: %s [%s]", compact(query), argsString(args...))
	}
	return l.inner.QueryContext(ctx, query, args...)
}

func (l *loggingQueryExecer) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if l.logQueries {
		l.logger.Debugf("EXEC: %s [%s]", compact(query), argsString(args...))
	}
	return l.inner.ExecContext(ctx, query, args...)
}

// compact collapses whitespace so multi-line statements log on one line.
func compact(q string) string {
	return strings.Join(strings.Fields(q), " ")
}

// argsString pretty prints query arguments for logging.
func argsString(args ...any) string {
	var b strings.Builder
	for i, a := range args {
		var v any = a
		if x, ok := v.(driver.Valuer); ok {
			if y, err := x.Value(); err == nil {
				v = y
			}
		}
		switch v.(type) {
		case string, []byte:
			v = fmt.Sprintf("%q", v)
		default:
			v = fmt.Sprintf("%v", v)
		}
		fmt.Fprintf(&b, "%d:%s", i+1, v)
		if i+1 < len(args) {
			b.WriteByte(' ')
		}
	}
	return b.String()
}
