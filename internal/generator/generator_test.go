// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0
// no-cloc

package generator

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrdp/mrdp/internal/model"
)

func smallConfig(t *testing.T) Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Robots = 20
	cfg.Facilities = 5
	cfg.Procedures = 60
	cfg.TelemetrySamples = 12
	cfg.MaintenanceLogs = 15
	cfg.Seed = 42
	cfg.OutputDir = t.TempDir()
	return cfg
}

func TestConfigValidate(t *testing.T) {
	base := DefaultConfig()
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "zero robots", mutate: func(c *Config) { c.Robots = 0 }, wantErr: true},
		{name: "too many facilities", mutate: func(c *Config) { c.Facilities = 11 }, wantErr: true},
		{name: "negative procedures", mutate: func(c *Config) { c.Procedures = -1 }, wantErr: true},
		{name: "inverted range", mutate: func(c *Config) { c.End = c.Start.AddDate(0, 0, -1) }, wantErr: true},
		{name: "no output dir", mutate: func(c *Config) { c.OutputDir = "" }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			if tt.wantErr {
				assert.Error(t, cfg.Validate())
			} else {
				assert.NoError(t, cfg.Validate())
			}
		})
	}
}

func TestRobots(t *testing.T) {
	cfg := smallConfig(t)
	g, err := New(cfg)
	require.NoError(t, err)

	robots := g.Robots()
	require.Len(t, robots, cfg.Robots)

	for i, r := range robots {
		assert.Len(t, r.RobotID, 36)
		parts := strings.SplitN(r.SerialNumber, "-", 2)
		require.Len(t, parts, 2)
		assert.Equal(t, strings.ToUpper(r.Manufacturer[:3]), parts[0])
		assert.Len(t, parts[1], 5)

		assert.Equal(t, facilityNames[i%cfg.Facilities], r.FacilityName)
		assert.Contains(t, model.RobotStatuses, r.Status)

		age := cfg.Start.Sub(r.InstallationDate).Hours() / 24
		assert.GreaterOrEqual(t, age, float64(365*2))
		assert.LessOrEqual(t, age, float64(365*5))

		assert.True(t, r.LastMaintenanceDate.Before(cfg.Start))
		assert.GreaterOrEqual(t, r.TotalProcedures, 100)
		assert.LessOrEqual(t, r.TotalProcedures, 2000)
		assert.Equal(t, cfg.Start, r.UpdatedAt)
	}
	assert.Equal(t, "FAC-000", robots[0].FacilityID)
	assert.Equal(t, "FAC-001", robots[6].FacilityID)
}

func TestDeterministicPerSeed(t *testing.T) {
	cfg := smallConfig(t)
	a, err := New(cfg)
	require.NoError(t, err)
	b, err := New(cfg)
	require.NoError(t, err)
	assert.Equal(t, a.Robots(), b.Robots())

	cfg.Seed = 43
	c, err := New(cfg)
	require.NoError(t, err)
	assert.NotEqual(t, a.Robots()[0].RobotID, c.Robots()[0].RobotID)
}

func TestMaintenance(t *testing.T) {
	cfg := smallConfig(t)
	cfg.MaintenanceLogs = 200
	g, err := New(cfg)
	require.NoError(t, err)

	logs := g.Maintenance(g.Robots())
	require.Len(t, logs, 200)

	for i, m := range logs {
		if i > 0 {
			assert.False(t, m.MaintenanceDate.Before(logs[i-1].MaintenanceDate), "sorted by date")
		}
		assert.Contains(t, model.MaintenanceTypes, m.Type)
		assert.True(t, strings.HasPrefix(m.TechnicianID, "TECH-"))

		dt := downtimeByType[m.Type]
		assert.GreaterOrEqual(t, m.DowntimeHours, dt.lo)
		assert.LessOrEqual(t, m.DowntimeHours, dt.hi)

		if m.Type == model.MaintenanceEmergency {
			assert.NotEqual(t, noParts, m.PartsReplaced)
		}
		if m.Type == model.MaintenanceUpgrade || m.Type == model.MaintenanceCalibration {
			assert.Equal(t, noParts, m.PartsReplaced)
		}

		actions := strings.Split(m.ActionsTaken, "; ")
		assert.GreaterOrEqual(t, len(actions), 1)
		assert.LessOrEqual(t, len(actions), 3)

		gap := m.NextMaintenanceDate.Sub(m.MaintenanceDate).Hours() / 24
		assert.GreaterOrEqual(t, gap, 30.0)
		assert.LessOrEqual(t, gap, 90.0)
	}
}

func TestMaintenanceWithoutRobots(t *testing.T) {
	g, err := New(smallConfig(t))
	require.NoError(t, err)
	assert.Empty(t, g.Maintenance(nil))
}

func TestProceduresRequireOperationalRobot(t *testing.T) {
	g, err := New(smallConfig(t))
	require.NoError(t, err)

	_, err = g.Procedures([]model.Robot{{RobotID: "r1", Status: model.RobotRetired}})
	assert.ErrorIs(t, err, ErrNoOperationalRobots)
}

func TestProcedures(t *testing.T) {
	cfg := smallConfig(t)
	g, err := New(cfg)
	require.NoError(t, err)

	robots := []model.Robot{
		{RobotID: "up", Status: model.RobotOperational},
		{RobotID: "down", Status: model.RobotMaintenance},
	}
	procs, err := g.Procedures(robots)
	require.NoError(t, err)
	require.Len(t, procs, cfg.Procedures)

	for i, p := range procs {
		if i > 0 {
			assert.False(t, p.StartTime.Before(procs[i-1].StartTime), "sorted by start")
		}
		assert.Equal(t, "up", p.RobotID)
		assert.Contains(t, procedureTypes[p.Category], p.Type)
		assert.GreaterOrEqual(t, p.StartTime.Hour(), 7)
		assert.LessOrEqual(t, p.StartTime.Hour(), 17)
		assert.GreaterOrEqual(t, p.ComplexityScore, 1.0)
		assert.LessOrEqual(t, p.ComplexityScore, 5.0)
		assert.Equal(t, time.Duration(p.DurationMinutes)*time.Minute, p.EndTime.Sub(p.StartTime))
		assert.True(t, strings.HasPrefix(p.SurgeonName, "Dr. "))
		assert.GreaterOrEqual(t, p.PatientAge, 18)
		assert.LessOrEqual(t, p.PatientAge, 85)
		assert.Contains(t, model.ProcedureStatuses, p.Status)
	}
}

func TestOutcomesOnlyForCompleted(t *testing.T) {
	g, err := New(smallConfig(t))
	require.NoError(t, err)

	end := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	procs := []model.Procedure{
		{ProcedureID: "a", Status: model.ProcedureCompleted, ComplexityScore: 1, EndTime: end},
		{ProcedureID: "b", Status: model.ProcedureAborted, ComplexityScore: 3, EndTime: end},
		{ProcedureID: "c", Status: model.ProcedureCompleted, ComplexityScore: 5, EndTime: end},
	}
	outs := g.Outcomes(procs)
	require.Len(t, outs, 2)
	assert.Equal(t, "a", outs[0].ProcedureID)
	assert.Equal(t, "c", outs[1].ProcedureID)

	for _, o := range outs {
		gap := o.CreatedAt.Sub(end)
		assert.GreaterOrEqual(t, gap, time.Hour)
		assert.LessOrEqual(t, gap, 24*time.Hour)
		switch o.SuccessStatus {
		case model.OutcomeSuccessful:
			assert.Equal(t, "none", o.Complications)
			assert.GreaterOrEqual(t, o.RecoveryScore, 80)
		case model.OutcomeComplicated, model.OutcomeFailed:
			assert.NotEqual(t, "none", o.Complications)
			assert.True(t, o.FollowUpRequired)
		}
	}
}

func TestTelemetryBounds(t *testing.T) {
	cfg := smallConfig(t)
	g, err := New(cfg)
	require.NoError(t, err)

	start := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	p := model.Procedure{
		ProcedureID: "p1",
		Status:      model.ProcedureCompleted,
		StartTime:   start,
		EndTime:     start.Add(120 * time.Minute),
	}
	samples := g.procedureTelemetry(p)
	require.Len(t, samples, cfg.TelemetrySamples)

	step := 10 * time.Minute
	for i, s := range samples {
		assert.Equal(t, start.Add(time.Duration(i)*step), s.Timestamp)
		assert.GreaterOrEqual(t, s.ArmPositionX, 0.0)
		assert.LessOrEqual(t, s.ArmPositionX, 500.0)
		assert.GreaterOrEqual(t, s.ArmPositionZ, 0.0)
		assert.LessOrEqual(t, s.ArmPositionZ, 300.0)
		assert.GreaterOrEqual(t, s.ArmRotation, 0.0)
		assert.LessOrEqual(t, s.ArmRotation, 360.0)
		if grippingTools[s.ToolType] {
			assert.GreaterOrEqual(t, s.GripPressure, 0.5)
		} else {
			assert.Zero(t, s.GripPressure)
		}
	}
}

func TestTelemetryCancelled(t *testing.T) {
	g, err := New(smallConfig(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = g.Telemetry(ctx, []model.Procedure{{Status: model.ProcedureCompleted}}, json.NewEncoder(&strings.Builder{}))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunWritesFiles(t *testing.T) {
	cfg := smallConfig(t)
	g, err := New(cfg)
	require.NoError(t, err)

	sum, err := g.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, sum.Files, len(Files))
	assert.Positive(t, sum.TotalBytes())
	assert.Contains(t, sum.String(), "total")

	for i, f := range sum.Files {
		assert.Equal(t, Files[i], f.Name)
		assert.FileExists(t, f.Path)
	}

	fh, err := os.Open(filepath.Join(cfg.OutputDir, RobotsFile))
	require.NoError(t, err)
	defer fh.Close()
	rows, err := csv.NewReader(fh).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, cfg.Robots+1)
	assert.Equal(t, model.Robot{}.Header(), rows[0])

	tf, err := os.Open(filepath.Join(cfg.OutputDir, TelemetryFile))
	require.NoError(t, err)
	defer tf.Close()
	sc := bufio.NewScanner(tf)
	lines := 0
	for sc.Scan() {
		var s model.TelemetrySample
		require.NoError(t, json.Unmarshal(sc.Bytes(), &s))
		lines++
	}
	assert.Equal(t, sum.Files[4].Rows, lines)
	assert.Zero(t, lines%cfg.TelemetrySamples)
}
