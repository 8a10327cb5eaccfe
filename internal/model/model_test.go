// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0
// no-cloc

package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordsMatchHeaders(t *testing.T) {
	recs := []Record{Robot{}, Procedure{}, Outcome{}, MaintenanceLog{}, TelemetrySample{}}
	for _, r := range recs {
		assert.Len(t, r.Record(), len(r.Header()), "%T", r)
	}
}

func TestRobotRecord(t *testing.T) {
	r := Robot{
		RobotID:          "r1",
		SerialNumber:     "INT-12345",
		InstallationDate: time.Date(2020, 3, 4, 0, 0, 0, 0, time.UTC),
		TotalProcedures:  42,
		CreatedAt:        time.Date(2020, 3, 4, 0, 0, 0, 0, time.UTC),
	}
	rec := r.Record()
	assert.Equal(t, "r1", rec[0])
	assert.Equal(t, "2020-03-04", rec[4])
	assert.Equal(t, "", rec[8])
	assert.Equal(t, "42", rec[9])
	assert.Equal(t, "2020-03-04 00:00:00", rec[11])
}

func TestOutcomeBooleans(t *testing.T) {
	rec := Outcome{Readmission30Day: true}.Record()
	assert.Equal(t, "True", rec[6])
	assert.Equal(t, "False", rec[10])
}

func TestTelemetryJSON(t *testing.T) {
	ts := time.Date(2024, 5, 6, 7, 8, 9, 123_000_000, time.UTC)
	s := TelemetrySample{TelemetryID: "t1", ProcedureID: "p1", Timestamp: ts, ArmPositionX: 12.5, ToolType: "Grasper"}

	b, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"timestamp":"2024-05-06 07:08:09.123"`)
	assert.Contains(t, string(b), `"arm_position_x":12.5`)

	var back TelemetrySample
	require.NoError(t, json.Unmarshal(b, &back))
	assert.True(t, ts.Equal(back.Timestamp))
	assert.Equal(t, "Grasper", back.ToolType)
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Time
		wantErr bool
	}{
		{in: "2024-01-02 03:04:05.678", want: time.Date(2024, 1, 2, 3, 4, 5, 678_000_000, time.UTC)},
		{in: "2024-01-02 03:04:05", want: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)},
		{in: "2024-01-02T03:04:05Z", want: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)},
		{in: "2024-01-02", want: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)},
		{in: "yesterday", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTimestamp(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got))
		})
	}
}

func TestRoundAndFormat(t *testing.T) {
	assert.Equal(t, 3.14, Round(3.14159, 2))
	assert.Equal(t, "3.1416", FormatFloat(Round(3.14159, 4)))
	assert.Equal(t, "100", FormatFloat(100))
}
