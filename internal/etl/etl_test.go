// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0
// no-cloc

package etl

import (
	"bytes"
	"context"
	"database/sql/driver"
	"errors"
	"io"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/mrdp/mrdp/internal/aws/awstest"
)

var fixedNow = time.Date(2024, 3, 2, 12, 0, 0, 0, time.UTC)

func q(s string) string { return regexp.QuoteMeta(s) }

func gz(t *testing.T, b []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write(b)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

type harness struct {
	runner *Runner
	src    sqlmock.Sqlmock
	wh     sqlmock.Sqlmock
	s3     *awstest.S3
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	srcDB, src, err := sqlmock.New()
	require.NoError(t, err)
	whDB, wh, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		srcDB.Close()
		whDB.Close()
	})

	s3 := awstest.NewS3()
	return &harness{
		runner: &Runner{
			Source:    srcDB,
			Warehouse: whDB,
			S3:        s3,
			Config: Config{
				StagingBucket: "staging",
				RawBucket:     "raw",
				IAMRole:       "arn:aws:iam::1:role/redshift",
			},
			now: func() time.Time { return fixedNow },
		},
		src: src,
		wh:  wh,
		s3:  s3,
	}
}

func (h *harness) verify(t *testing.T) {
	t.Helper()
	assert.NoError(t, h.src.ExpectationsWereMet())
	assert.NoError(t, h.wh.ExpectationsWereMet())
}

func TestParseType(t *testing.T) {
	got, err := ParseType("")
	require.NoError(t, err)
	assert.Equal(t, TypeFull, got)

	got, err = ParseType(" Procedures ")
	require.NoError(t, err)
	assert.Equal(t, TypeProcedures, got)

	_, err = ParseType("telemetry")
	assert.Error(t, err)
}

func TestEncodeRows(t *testing.T) {
	rows := [][]string{{"a", "b|c", ""}, {"1", "2", "3"}}
	want := "a|\"b|c\"|\n1|2|3\n"

	plain, err := encodeRows(rows, false)
	require.NoError(t, err)
	assert.Equal(t, want, string(plain))

	compressed, err := encodeRows(rows, true)
	require.NoError(t, err)
	zr, err := gzip.NewReader(bytes.NewReader(compressed))
	require.NoError(t, err)
	got, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Equal(t, want, string(got))
}

func TestStagingSQL(t *testing.T) {
	assert.Equal(t,
		"COPY staging_telemetry FROM 's3://b/k.csv.gz' IAM_ROLE 'arn:role' DELIMITER '|' REMOVEQUOTES EMPTYASNULL TIMEFORMAT 'auto' GZIP",
		telemetryStaging.copySQL("s3://b/k.csv.gz", "arn:role", true))
	assert.Equal(t,
		"CREATE TEMP TABLE staging_facilities (facility_id VARCHAR(50), facility_name VARCHAR(200), effective_date DATE)",
		facilityDimension.staging.createSQL())
	assert.Equal(t,
		"UPDATE dim_surgeons SET expiration_date = $1, is_current = FALSE WHERE is_current = TRUE AND surgeon_id IN (SELECT surgeon_id FROM staging_surgeons)",
		surgeonDimension.expireSQL())
	assert.Equal(t, "'it''s'", quote("it's"))
}

func TestPlanSCD2(t *testing.T) {
	source := [][]string{
		{"FAC-001", "North", "2021-01-01"},
		{"FAC-002", "South 2", "2021-02-01"},
		{"FAC-003", "East", "2021-03-01"},
		{"FAC-001", "duplicate", "2021-04-01"},
		{"", "blank", "2021-05-01"},
	}
	current := map[string][]string{
		"FAC-002": {"South"},
		"FAC-003": {"East "},
	}

	p := planSCD2(facilityDimension.staging, "facility_id", []string{"facility_name"}, current, source, fixedNow)
	assert.Equal(t, 1, p.New)
	assert.Equal(t, 1, p.Changed)
	assert.Equal(t, 1, p.Unchanged)
	assert.Equal(t, [][]string{
		{"FAC-001", "North", "2021-01-01"},
		{"FAC-002", "South 2", "2024-03-02"},
	}, p.Rows)
	assert.Equal(t, "2021-02-01", source[1][2], "source rows are not modified")
}

func TestDecodeBody(t *testing.T) {
	tests := []struct {
		name    string
		body    []byte
		want    int
		wantErr bool
	}{
		{name: "object", body: []byte(`{"a":1}`), want: 1},
		{name: "array skips non-objects", body: []byte(`[{"a":1}, 2, {"b":2}]`), want: 2},
		{name: "ndjson skips bad lines", body: []byte("{\"a\":1}\nnot json\n\n{\"b\":2}\n"), want: 2},
		{name: "gzip", body: gz(t, []byte(`[{"a":1}]`)), want: 1},
		{name: "blank", body: []byte("  \n"), want: 0},
		{name: "garbage", body: []byte("garbage"), wantErr: true},
		{name: "scalar", body: []byte(`"text"`), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeBody(tt.body)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
		})
	}
}

const nestedRecord = `{"procedure_id":"PROC-1","timestamp":"2024-03-01T10:15:30.250Z",
	"arm_position":{"x":1.5,"y":2,"z":3.25},"arm_rotation":{"x":10,"y":20,"z":30},
	"force_feedback":4.5,"tool_type":"Grasper","tool_active":true,"camera_zoom":2.5,
	"lighting_level":80,"system_metrics":{"temperature":36.6,"motor_current":1.2345,
	"network_latency_ms":12.6,"video_fps":60}}`

const flatRecord = `{"telemetry_id":"t1","procedure_id":"PROC-2","timestamp":"2024-03-01 23:59:59.999",
	"arm_position_x":100.5,"arm_position_y":200,"arm_position_z":50,"arm_rotation":270.25,
	"tool_type":"Scalpel","grip_pressure":0,"camera_zoom":1.5,"force_feedback_x":3,
	"force_feedback_y":4,"force_feedback_z":0,"system_temperature":37.1,"power_consumption":450}`

func TestTransformRecord(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{
			name: "nested",
			in:   nestedRecord,
			want: []string{"PROC-1", "101500", "2024-03-01 10:15:30.250", "1.5", "2", "3.25", "10", "20", "30", "4.5",
				"Grasper", "true", "2.5", "80", "36.6", "1.2345", "13", "60"},
		},
		{
			name: "flat",
			in:   flatRecord,
			want: []string{"PROC-2", "235900", "2024-03-01 23:59:59.999", "100.5", "200", "50", "", "", "270.25", "5",
				"Scalpel", "false", "1.5", "", "37.1", "", "", ""},
		},
		{name: "no timestamp", in: `{"procedure_id":"P"}`},
		{name: "numeric timestamp", in: `{"procedure_id":"P","timestamp":1700000000}`},
		{name: "bad timestamp", in: `{"procedure_id":"P","timestamp":"yesterday"}`},
		{name: "no procedure", in: `{"timestamp":"2024-03-01 10:00:00"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := transformRecord(gjson.Parse(tt.in))
			if tt.want == nil {
				assert.False(t, ok)
				return
			}
			require.True(t, ok)
			assert.Len(t, got, len(telemetryStaging.columns))
			assert.Equal(t, tt.want, got)
		})
	}

	row, ok := transformRecord(gjson.Parse(`{"procedure_id":"P","timestamp":"2024-03-01 10:00:00","grip_pressure":12.5}`))
	require.True(t, ok)
	assert.Equal(t, "true", row[telemetryStaging.index("tool_active")])
}

func TestLoadDimension(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.src.ExpectQuery(q("FROM surgical_robots")).WillReturnRows(
		sqlmock.NewRows([]string{"facility_id", "facility_name", "effective_date"}).
			AddRow("FAC-001", "North", time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)).
			AddRow("FAC-002", "South 2", time.Date(2021, 2, 1, 0, 0, 0, 0, time.UTC)))
	h.wh.ExpectQuery(q("FROM dim_facilities WHERE is_current = TRUE")).WillReturnRows(
		sqlmock.NewRows([]string{"facility_id", "facility_name"}).AddRow("FAC-002", "South"))
	h.wh.ExpectBegin()
	h.wh.ExpectExec(q("CREATE TEMP TABLE staging_facilities")).WillReturnResult(sqlmock.NewResult(0, 0))
	h.wh.ExpectExec(q("COPY staging_facilities FROM 's3://staging/etl-staging/20240302/facilities.csv' IAM_ROLE 'arn:aws:iam::1:role/redshift'")).
		WillReturnResult(sqlmock.NewResult(0, 2))
	h.wh.ExpectExec(q("UPDATE dim_facilities SET expiration_date = $1")).WithArgs("2024-03-01").WillReturnResult(sqlmock.NewResult(0, 1))
	h.wh.ExpectExec(q("INSERT INTO dim_facilities")).WillReturnResult(sqlmock.NewResult(0, 2))
	h.wh.ExpectCommit()

	n, err := h.runner.loadDimension(ctx, facilityDimension)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	h.verify(t)

	body, ok := h.s3.Get("staging", "etl-staging/20240302/facilities.csv")
	require.True(t, ok)
	assert.Equal(t, "FAC-001|North|2021-01-01\nFAC-002|South 2|2024-03-02\n", string(body))
}

func TestLoadDimension_NothingChanged(t *testing.T) {
	h := newHarness(t)

	h.src.ExpectQuery(q("FROM surgical_procedures")).WillReturnRows(
		sqlmock.NewRows([]string{"surgeon_id", "surgeon_name", "specialization", "years_experience", "certification_level", "effective_date"}).
			AddRow("SURG-0001", "Dr. Ada Lovelace", "General Surgery", int64(2), "Board Certified", "2023-01-02"))
	h.wh.ExpectQuery(q("FROM dim_surgeons")).WillReturnRows(
		sqlmock.NewRows([]string{"surgeon_id", "surgeon_name", "specialization"}).
			AddRow("SURG-0001", "Dr. Ada Lovelace", "General Surgery"))

	n, err := h.runner.loadDimension(context.Background(), surgeonDimension)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, h.s3.Keys("staging", ""))
	h.verify(t)
}

func procedureRow() []driver.Value {
	return []driver.Value{
		"PROC-1", "ROB-001", "SURG-0001", "FAC-001", int64(20240301), int64(90000), int64(20240301), int64(103000),
		"Prostatectomy", "urological", "PAT-1", int64(61), "M", int64(90), "2.5",
		"successful", int64(120), "none", int64(2), int64(9), false, "completed",
	}
}

func TestRun_ProceduresWithLedger(t *testing.T) {
	h := newHarness(t)
	ledger, err := OpenLedger(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { ledger.Close() })
	ledger.now = func() time.Time { return fixedNow }
	h.runner.Ledger = ledger
	ctx := context.Background()

	cols := procedureFact.staging.names()
	h.src.ExpectQuery(q("FROM surgical_procedures p")).WithArgs("2024-03-01", "2024-03-02").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(procedureRow()...))
	h.wh.ExpectBegin()
	h.wh.ExpectExec(q("CREATE TEMP TABLE staging_procedures")).WillReturnResult(sqlmock.NewResult(0, 0))
	h.wh.ExpectExec(q("COPY staging_procedures FROM 's3://staging/etl-staging/20240302/procedures_2024-03-01_2024-03-02.csv'")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	h.wh.ExpectExec(q("INSERT INTO fact_procedures")).WillReturnResult(sqlmock.NewResult(0, 1))
	h.wh.ExpectCommit()

	res, err := h.runner.Run(ctx, Request{Type: TypeProcedures})
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, "2024-03-02T12:00:00Z", res.Timestamp)
	assert.Equal(t, "2024-03-01", res.Start)
	assert.Equal(t, "2024-03-02", res.End)
	assert.Equal(t, map[string]int{"procedures": 1}, res.RecordsLoaded)
	h.verify(t)

	body, ok := h.s3.Get("staging", "etl-staging/20240302/procedures_2024-03-01_2024-03-02.csv")
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(string(body), "PROC-1|ROB-001|SURG-0001|FAC-001|20240301|90000|"))
	assert.True(t, strings.HasSuffix(string(body), "|false|completed\n"))

	runs, err := ledger.History(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "procedures", runs[0].Type)
	assert.Equal(t, StatusSuccess, runs[0].Status)
	assert.Equal(t, "2024-03-02", runs[0].WindowEnd)
	assert.Equal(t, map[string]int{"procedures": 1}, runs[0].Records)
	require.NotNil(t, runs[0].FinishedAt)

	// A second incremental run the same day has nothing to load.
	res, err = h.runner.Run(ctx, Request{Type: TypeProcedures, SinceLast: true})
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, "2024-03-02", res.Start)
	assert.Equal(t, "2024-03-02", res.End)
	assert.Zero(t, res.Total())
	h.verify(t)

	runs, err = ledger.History(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestRun_EmptyExplicitWindow(t *testing.T) {
	h := newHarness(t)
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	res, err := h.runner.Run(context.Background(), Request{Type: TypeProcedures, Start: day, End: day})
	assert.ErrorContains(t, err, "empty window")
	assert.Equal(t, StatusFailed, res.Status)
}

func TestRun_LedgerStartFailure(t *testing.T) {
	h := newHarness(t)
	ledger, err := OpenLedger(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, ledger.Close())
	h.runner.Ledger = ledger

	res, err := h.runner.Run(context.Background(), Request{Type: TypeDimensions})
	require.Error(t, err)
	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, err.Error(), res.Error)

	tres, err := h.runner.Telemetry(context.Background(), TelemetryRequest{})
	require.Error(t, err)
	assert.Equal(t, StatusFailed, tres.Status)
	assert.NotEmpty(t, tres.Error)
	h.verify(t)
}

func TestPass_TelemetryRunsAfterEmptyWindow(t *testing.T) {
	h := newHarness(t)
	ledger, err := OpenLedger(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { ledger.Close() })
	ledger.now = func() time.Time { return fixedNow }
	h.runner.Ledger = ledger
	ctx := context.Background()

	id, err := ledger.Start(ctx, string(TypeProcedures), fixedNow.AddDate(0, 0, -1), time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.NoError(t, ledger.Finish(ctx, id, StatusSuccess, map[string]int{"procedures": 0}, ""))

	h.runner.pass(ctx, Request{Type: TypeProcedures, SinceLast: true}, TelemetryRequest{})
	h.verify(t)

	runs, err := ledger.History(ctx, 0)
	require.NoError(t, err)
	types := make([]string, 0, len(runs))
	for _, r := range runs {
		types = append(types, r.Type)
	}
	assert.ElementsMatch(t, []string{"procedures", "telemetry"}, types)
}

func TestRun_FailureIsRecorded(t *testing.T) {
	h := newHarness(t)
	ledger, err := OpenLedger(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { ledger.Close() })
	h.runner.Ledger = ledger

	h.src.ExpectQuery(q("FROM robot_maintenance_logs m")).WillReturnError(errors.New("connection reset"))

	res, err := h.runner.Run(context.Background(), Request{
		Type:  TypeMaintenance,
		Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
	})
	require.Error(t, err)
	assert.Equal(t, StatusFailed, res.Status)
	assert.Contains(t, res.Error, "maintenance: failed to extract: connection reset")

	runs, err := ledger.History(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, StatusFailed, runs[0].Status)
	assert.Equal(t, "2024-01-01", runs[0].WindowStart)
	assert.Contains(t, runs[0].Error, "connection reset")

	_, ok, err := ledger.LastWindowEnd(context.Background())
	require.NoError(t, err)
	assert.False(t, ok, "failed runs do not move the window")
}

func TestRun_SinceLastNeedsLedger(t *testing.T) {
	h := newHarness(t)
	_, err := h.runner.Run(context.Background(), Request{Type: TypeFull, SinceLast: true})
	assert.ErrorContains(t, err, "ledger")
}

func TestTelemetry(t *testing.T) {
	h := newHarness(t)
	h.s3.Put("raw", "telemetry/p1/a.json", []byte(nestedRecord))
	h.s3.Put("raw", "telemetry/p2/b.jsonl", []byte(strings.ReplaceAll(flatRecord, "\n", "")+"\n"+
		strings.ReplaceAll(strings.Replace(flatRecord, "23:59:59.999", "23:59:58.999", 1), "\n", "")+"\n"))
	h.s3.Put("raw", "telemetry/p3/c.json", []byte("garbage"))
	h.s3.Put("raw", "telemetry/p3/readme.txt", []byte("ignored"))

	h.wh.ExpectBegin()
	h.wh.ExpectExec(q("CREATE TEMP TABLE staging_telemetry")).WillReturnResult(sqlmock.NewResult(0, 0))
	h.wh.ExpectExec(q("COPY staging_telemetry FROM 's3://staging/etl-staging/telemetry/20240302/telemetry_120000.csv'")).
		WillReturnResult(sqlmock.NewResult(0, 3))
	h.wh.ExpectExec(q("INSERT INTO fact_procedure_telemetry")).WillReturnResult(sqlmock.NewResult(0, 3))
	h.wh.ExpectCommit()

	res, err := h.runner.Telemetry(context.Background(), TelemetryRequest{})
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, "20240302", res.BatchDate)
	assert.Equal(t, 3, res.FilesFound)
	assert.Equal(t, 1, res.FilesFailed)
	assert.Equal(t, 2, res.FilesProcessed)
	assert.Equal(t, 3, res.RecordsParsed)
	assert.Equal(t, 3, res.RecordsLoaded)
	h.verify(t)

	body, ok := h.s3.Get("staging", "etl-staging/telemetry/20240302/telemetry_120000.csv")
	require.True(t, ok)
	lines := strings.Split(strings.TrimSpace(string(body)), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "PROC-1|101500|2024-03-01 10:15:30.250|"))
	assert.True(t, strings.HasPrefix(lines[1], "PROC-2|235900|2024-03-01 23:59:59.999|"))
}

func TestTelemetry_MaxFilesAndEmpty(t *testing.T) {
	h := newHarness(t)
	h.runner.MaxFiles = 1
	h.s3.Put("raw", "incoming/a.json", []byte(`{"procedure_id":"P"}`))
	h.s3.Put("raw", "incoming/b.json", []byte(nestedRecord))

	res, err := h.runner.Telemetry(context.Background(), TelemetryRequest{Prefix: "incoming/", BatchDate: "batch1"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.FilesFound)
	assert.Equal(t, 1, res.FilesProcessed)
	assert.Zero(t, res.RecordsParsed)
	assert.Zero(t, res.RecordsLoaded)
	assert.Empty(t, h.s3.Keys("staging", ""))
	h.verify(t)
}

func TestIsTelemetryKey(t *testing.T) {
	assert.True(t, IsTelemetryKey("telemetry/a.json"))
	assert.True(t, IsTelemetryKey("telemetry/a.jsonl"))
	assert.True(t, IsTelemetryKey("telemetry/bulk/20240101/procedure_telemetry.json.gz"))
	assert.False(t, IsTelemetryKey("telemetry/a.csv"))
}

func TestParseSchedule(t *testing.T) {
	s, err := ParseSchedule("0 2 * * *")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 2, 2, 0, 0, 0, time.UTC), s.Next(time.Date(2024, 3, 2, 1, 30, 0, 0, time.UTC)))

	s, err = ParseSchedule("@every 6h")
	require.NoError(t, err)
	assert.Equal(t, fixedNow.Add(6*time.Hour), s.Next(fixedNow))

	_, err = ParseSchedule("every tuesday")
	assert.Error(t, err)
}

func TestResultTotal(t *testing.T) {
	assert.Equal(t, 6, Result{RecordsLoaded: map[string]int{"a": 1, "b": 5}}.Total())
}
