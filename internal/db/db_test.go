// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0
// no-cloc

package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/apex/log"
	"github.com/apex/log/handlers/memory"
	awsv2 "github.com/aws/aws-sdk-go-v2/aws"
	smv2 "github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSecrets struct {
	value string
	err   error
	calls int
}

func (f *fakeSecrets) GetSecretValue(_ context.Context, in *smv2.GetSecretValueInput, _ ...func(*smv2.Options)) (*smv2.GetSecretValueOutput, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &smv2.GetSecretValueOutput{ARN: in.SecretId, SecretString: awsv2.String(f.value)}, nil
}

func TestParamsDSN(t *testing.T) {
	tests := []struct {
		name string
		p    Params
		want string
	}{
		{
			name: "minimal",
			p:    Params{Host: "db.local", DBName: "medrobotics", User: "dbadmin"},
			want: "dbname=medrobotics host=db.local user=dbadmin",
		},
		{
			name: "full",
			p: Params{
				Host: "db.local", Port: 5432, DBName: "medrobotics", User: "dbadmin",
				Password: "s3cret", SSLMode: "require", ConnectTimeout: 10 * time.Second,
			},
			want: "connect_timeout=10 dbname=medrobotics host=db.local password=s3cret port=5432 sslmode=require user=dbadmin",
		},
		{
			name: "quoted password",
			p:    Params{Host: "h", DBName: "d", User: "u", Password: `it's a \pw`},
			want: `dbname=d host=h password='it\'s a \\pw' user=u`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.p.DSN())
		})
	}
}

func TestParamsValidate(t *testing.T) {
	err := Params{Host: "h"}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dbname, user")

	assert.NoError(t, Params{Host: "h", DBName: "d", User: "u"}.Validate())
}

func TestResolvePassword(t *testing.T) {
	t.Run("reads secret", func(t *testing.T) {
		fs := &fakeSecrets{value: `{"username":"dbadmin","password":"pw"}`}
		p := Params{SecretARN: "arn:secret"}
		require.NoError(t, p.ResolvePassword(context.Background(), fs))
		assert.Equal(t, "pw", p.Password)
	})

	t.Run("explicit password wins", func(t *testing.T) {
		fs := &fakeSecrets{value: `{"password":"other"}`}
		p := Params{Password: "given", SecretARN: "arn:secret"}
		require.NoError(t, p.ResolvePassword(context.Background(), fs))
		assert.Equal(t, "given", p.Password)
		assert.Zero(t, fs.calls)
	})

	t.Run("no client", func(t *testing.T) {
		p := Params{SecretARN: "arn:secret"}
		assert.Error(t, p.ResolvePassword(context.Background(), nil))
	})

	t.Run("secret error", func(t *testing.T) {
		p := Params{SecretARN: "arn:secret"}
		assert.Error(t, p.ResolvePassword(context.Background(), &fakeSecrets{err: errors.New("denied")}))
	})
}

func TestLoggingQueryExecer(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	h := memory.New()
	logger := &log.Logger{Handler: h, Level: log.DebugLevel}
	qe := NewLogging(conn, logger, true)

	mock.ExpectExec("DELETE FROM t").WithArgs("x", 3).WillReturnResult(sqlmock.NewResult(0, 2))
	res, err := qe.ExecContext(context.Background(), "DELETE FROM t\n  WHERE a = $1 AND b = $2", "x", 3)
	require.NoError(t, err)
	n, _ := res.RowsAffected()
	assert.Equal(t, int64(2), n)

	require.Len(t, h.Entries, 1)
	assert.Equal(t, `EXEC: DELETE FROM t WHERE a = $1 AND b = $2 [1:"x" 2:3]`, h.Entries[0].Message)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryRows(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	ts := time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC)
	mock.ExpectQuery("SELECT").WillReturnRows(
		sqlmock.NewRows([]string{"id", "cost", "at", "note"}).
			AddRow("r1", []byte("12.50"), ts, nil).
			AddRow("r2", []byte("3.00"), ts, "x"),
	)

	rows, err := QueryRows(context.Background(), conn, "SELECT id, cost, at, note FROM t")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "12.50", rows[0]["cost"])
	assert.Nil(t, rows[0]["note"])
	assert.Equal(t, ts, rows[1]["at"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryRowEmpty(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	mock.ExpectQuery("SELECT").WillReturnRows(sqlmock.NewRows([]string{"id"}))
	row, err := QueryRow(context.Background(), conn, "SELECT id FROM t WHERE id = $1", "nope")
	require.NoError(t, err)
	assert.Nil(t, row)
}

func TestScanRecords(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	day := time.Date(2024, 2, 3, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT").WillReturnRows(
		sqlmock.NewRows([]string{"id", "on", "ok", "n"}).AddRow("a", day, true, int64(7)),
	)
	rs, err := conn.Query("SELECT")
	require.NoError(t, err)

	cols, recs, err := ScanRecords(rs)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "on", "ok", "n"}, cols)
	assert.Equal(t, [][]string{{"a", "2024-02-03", "true", "7"}}, recs)
}

func TestText(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{[]byte("1.5"), "1.5"},
		{"s", "s"},
		{false, "false"},
		{int64(-4), "-4"},
		{2.25, "2.25"},
		{time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), "2024-01-02 03:04:05"},
		{time.Date(2024, 1, 2, 3, 4, 5, 250_000_000, time.UTC), "2024-01-02 03:04:05.250"},
		{int32(9), "9"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Text(tt.in))
	}
}
