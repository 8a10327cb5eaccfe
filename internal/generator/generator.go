// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package generator

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/dustin/go-humanize"

	"github.com/mrdp/mrdp/internal/model"
)

// Output file names, in generation order.
const (
	RobotsFile      = "surgical_robots.csv"
	MaintenanceFile = "robot_maintenance_logs.csv"
	ProceduresFile  = "surgical_procedures.csv"
	OutcomesFile    = "procedure_outcomes.csv"
	TelemetryFile   = "procedure_telemetry.json"
)

// Files lists every output in generation order.
var Files = []string{RobotsFile, MaintenanceFile, ProceduresFile, OutcomesFile, TelemetryFile}

// ErrNoOperationalRobots is returned when procedures cannot be assigned to
// any robot.
var ErrNoOperationalRobots = errors.New("no operational robots")

// Config controls the volume and shape of generated data.
type Config struct {
	Robots           int
	Facilities       int
	Procedures       int
	TelemetrySamples int
	MaintenanceLogs  int
	Start            time.Time
	End              time.Time
	OutputDir        string
	Seed             int64
}

// DefaultConfig returns the stock data volumes.
func DefaultConfig() Config {
	return Config{
		Robots:           50,
		Facilities:       10,
		Procedures:       5000,
		TelemetrySamples: 100,
		MaintenanceLogs:  200,
		Start:            time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		End:              time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
		OutputDir:        "sample_data",
		Seed:             time.Now().UnixNano(),
	}
}

// Validate reports configuration values that cannot produce a dataset.
func (c Config) Validate() error {
	switch {
	case c.Robots <= 0:
		return fmt.Errorf("robots must be positive, got %d", c.Robots)
	case c.Facilities <= 0 || c.Facilities > len(facilityNames):
		return fmt.Errorf("facilities must be between 1 and %d, got %d", len(facilityNames), c.Facilities)
	case c.Procedures < 0 || c.MaintenanceLogs < 0 || c.TelemetrySamples < 0:
		return errors.New("counts must not be negative")
	case c.End.Before(c.Start):
		return fmt.Errorf("end %s is before start %s", model.FormatDate(c.End), model.FormatDate(c.Start))
	case c.OutputDir == "":
		return errors.New("output directory is required")
	}
	return nil
}

// FileStat describes one written output file.
type FileStat struct {
	Name  string
	Path  string
	Rows  int
	Bytes int64
}

// Summary reports what Run produced.
type Summary struct {
	Files   []FileStat
	Elapsed time.Duration
}

// TotalBytes sums the size of every output file.
func (s Summary) TotalBytes() int64 {
	var n int64
	for _, f := range s.Files {
		n += f.Bytes
	}
	return n
}

func (s Summary) String() string {
	var b strings.Builder
	for _, f := range s.Files {
		fmt.Fprintf(&b, "%-28s %10s rows  %8s\n", f.Name, humanize.Comma(int64(f.Rows)), humanize.Bytes(uint64(f.Bytes)))
	}
	fmt.Fprintf(&b, "total %s in %s\n", humanize.Bytes(uint64(s.TotalBytes())), s.Elapsed.Round(time.Millisecond))
	return b.String()
}

// Generator produces a reproducible synthetic dataset for one seed.
type Generator struct {
	cfg Config
	src *source
}

// New returns a Generator for cfg.
func New(cfg Config) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Generator{cfg: cfg, src: newSource(cfg.Seed)}, nil
}

// Run generates every dataset in dependency order and writes the output
// files into the configured directory.
func (g *Generator) Run(ctx context.Context) (Summary, error) {
	began := time.Now()

	if err := os.MkdirAll(g.cfg.OutputDir, 0o755); err != nil {
		return Summary{}, fmt.Errorf("failed to create output directory: %w", err)
	}

	var sum Summary

	robots := g.Robots()
	if err := writeCSV(&sum, g.cfg.OutputDir, RobotsFile, robots); err != nil {
		return sum, err
	}

	if err := writeCSV(&sum, g.cfg.OutputDir, MaintenanceFile, g.Maintenance(robots)); err != nil {
		return sum, err
	}

	procs, err := g.Procedures(robots)
	if err != nil {
		return sum, err
	}
	if err := writeCSV(&sum, g.cfg.OutputDir, ProceduresFile, procs); err != nil {
		return sum, err
	}

	if err := writeCSV(&sum, g.cfg.OutputDir, OutcomesFile, g.Outcomes(procs)); err != nil {
		return sum, err
	}

	if err := g.writeTelemetry(ctx, &sum, procs); err != nil {
		return sum, err
	}

	sum.Elapsed = time.Since(began)
	log.WithField("dir", g.cfg.OutputDir).Infof("generated %s of sample data", humanize.Bytes(uint64(sum.TotalBytes())))
	return sum, nil
}

func writeRecords[T model.Record](path string, rows []T) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	var zero T
	if err := w.Write(zero.Header()); err != nil {
		return 0, err
	}
	for _, r := range rows {
		if err := w.Write(r.Record()); err != nil {
			return 0, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return 0, err
	}
	st, err := f.Stat()
	if err != nil {
		return 0, err
	}
	return st.Size(), nil
}

func writeCSV[T model.Record](sum *Summary, dir, name string, rows []T) error {
	path := filepath.Join(dir, name)
	size, err := writeRecords(path, rows)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	log.Debugf("wrote %d rows to %s", len(rows), path)
	sum.Files = append(sum.Files, FileStat{Name: name, Path: path, Rows: len(rows), Bytes: size})
	return nil
}

func (g *Generator) writeTelemetry(ctx context.Context, sum *Summary, procs []model.Procedure) error {
	path := filepath.Join(g.cfg.OutputDir, TelemetryFile)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", TelemetryFile, err)
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	n, err := g.Telemetry(ctx, procs, json.NewEncoder(bw))
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", TelemetryFile, err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to write %s: %w", TelemetryFile, err)
	}
	st, err := f.Stat()
	if err != nil {
		return err
	}
	sum.Files = append(sum.Files, FileStat{Name: TelemetryFile, Path: path, Rows: n, Bytes: st.Size()})
	return nil
}

func (g *Generator) rangeDays() int {
	return int(g.cfg.End.Sub(g.cfg.Start).Hours() / 24)
}

// Robots generates the robot fleet.
func (g *Generator) Robots() []model.Robot {
	s := g.src
	start := g.cfg.Start
	robots := make([]model.Robot, 0, g.cfg.Robots)

	for i := 0; i < g.cfg.Robots; i++ {
		id := s.uuid()
		m := choice(s, robotModels)
		serial := fmt.Sprintf("%s-%d", strings.ToUpper(m.manufacturer[:3]), s.intRange(10000, 99999))

		fac := i % g.cfg.Facilities
		installed := start.AddDate(0, 0, -s.intRange(365*2, 365*5))
		status := model.RobotStatuses[s.weighted(0.85, 0.12, 0.03)]

		var lastMaint time.Time
		if status == model.RobotOperational {
			lastMaint = start.AddDate(0, 0, -s.intRange(1, 90))
		} else {
			lastMaint = start.AddDate(0, 0, -s.intRange(1, 30))
		}

		robots = append(robots, model.Robot{
			RobotID:             id,
			SerialNumber:        serial,
			Model:               m.name,
			Manufacturer:        m.manufacturer,
			InstallationDate:    installed,
			FacilityID:          fmt.Sprintf("FAC-%03d", fac),
			FacilityName:        facilityNames[fac],
			Status:              status,
			LastMaintenanceDate: lastMaint,
			TotalProcedures:     s.intRange(100, 2000),
			FirmwareVersion:     fmt.Sprintf("%d.%d.%d", s.intRange(2, 5), s.intRange(0, 9), s.intRange(0, 20)),
			CreatedAt:           installed,
			UpdatedAt:           start,
		})
	}
	return robots
}

// Maintenance generates maintenance logs for random robots, sorted by date.
func (g *Generator) Maintenance(robots []model.Robot) []model.MaintenanceLog {
	if len(robots) == 0 {
		return nil
	}
	s := g.src

	type technician struct{ id, name string }
	techs := make([]technician, 20)
	for i := range techs {
		techs[i] = technician{
			id:   fmt.Sprintf("TECH-%04d", i),
			name: choice(s, technicianFirstNames) + " " + choice(s, technicianLastNames),
		}
	}

	days := g.rangeDays()
	logs := make([]model.MaintenanceLog, 0, g.cfg.MaintenanceLogs)
	for i := 0; i < g.cfg.MaintenanceLogs; i++ {
		id := s.uuid()
		robot := choice(s, robots)
		date := g.cfg.Start.AddDate(0, 0, s.intRange(0, days))
		mtype := choice(s, model.MaintenanceTypes)
		tech := choice(s, techs)

		cat := maintenanceByType[mtype]
		issue := choice(s, cat.issues)
		actions := strings.Join(sample(s, cat.actions, s.intRange(1, 3)), "; ")

		parts := noParts
		switch {
		case mtype == model.MaintenanceEmergency:
			parts = choice(s, replaceableParts)
		case mtype == model.MaintenanceRoutine && s.chance(0.3):
			parts = choice(s, append([]string{noParts}, replaceableParts...))
		}

		dt := downtimeByType[mtype]
		downtime := model.Round(s.uniform(dt.lo, dt.hi), 2)
		next := date.AddDate(0, 0, s.intRange(30, 90))

		cr := costByType[mtype]
		cost := model.Round(s.uniform(cr.lo, cr.hi), 2)
		if parts != noParts {
			cost = model.Round(cost+s.uniform(partsCost.lo, partsCost.hi), 2)
		}

		logs = append(logs, model.MaintenanceLog{
			MaintenanceID:       id,
			RobotID:             robot.RobotID,
			MaintenanceDate:     date,
			Type:                mtype,
			TechnicianID:        tech.id,
			TechnicianName:      tech.name,
			IssuesFound:         issue,
			ActionsTaken:        actions,
			PartsReplaced:       parts,
			DowntimeHours:       downtime,
			NextMaintenanceDate: next,
			Cost:                cost,
			CreatedAt:           date,
		})
	}

	sort.SliceStable(logs, func(i, j int) bool {
		return logs[i].MaintenanceDate.Before(logs[j].MaintenanceDate)
	})
	return logs
}

// Procedures generates procedures on operational robots, sorted by start.
func (g *Generator) Procedures(robots []model.Robot) ([]model.Procedure, error) {
	var operational []model.Robot
	for _, r := range robots {
		if r.Status == model.RobotOperational {
			operational = append(operational, r)
		}
	}
	if len(operational) == 0 {
		return nil, ErrNoOperationalRobots
	}
	s := g.src

	type surgeon struct{ id, name string }
	surgeons := make([]surgeon, 50)
	for i := range surgeons {
		surgeons[i] = surgeon{
			id:   fmt.Sprintf("SURG-%04d", i),
			name: "Dr. " + choice(s, surgeonFirstNames) + " " + choice(s, surgeonLastNames),
		}
	}

	days := g.rangeDays()
	procs := make([]model.Procedure, 0, g.cfg.Procedures)
	for i := 0; i < g.cfg.Procedures; i++ {
		id := s.uuid()
		robot := choice(s, operational)
		category := choice(s, model.Categories)
		ptype := choice(s, procedureTypes[category])

		day := g.cfg.Start.AddDate(0, 0, s.intRange(0, days))
		hour, minute := s.intRange(7, 17), s.intRange(0, 59)
		start := time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, day.Location())

		complexity := model.Round(s.uniform(1.0, 5.0), 2)
		base := s.intRange(30, 480)
		duration := int(float64(base) * (1 + (complexity-1)*0.2))

		surg := choice(s, surgeons)
		patient := fmt.Sprintf("PAT-%d", s.intRange(100000, 999999))
		age := s.intRange(18, 85)
		gender := choice(s, genders)
		status := model.ProcedureStatuses[s.weighted(0.92, 0.02, 0.03, 0.03)]

		procs = append(procs, model.Procedure{
			ProcedureID:     id,
			RobotID:         robot.RobotID,
			Type:            ptype,
			Category:        category,
			StartTime:       start,
			EndTime:         start.Add(time.Duration(duration) * time.Minute),
			DurationMinutes: duration,
			SurgeonID:       surg.id,
			SurgeonName:     surg.name,
			PatientID:       patient,
			PatientAge:      age,
			PatientGender:   gender,
			ComplexityScore: complexity,
			Status:          status,
			CreatedAt:       start,
		})
	}

	sort.SliceStable(procs, func(i, j int) bool {
		return procs[i].StartTime.Before(procs[j].StartTime)
	})
	return procs, nil
}

// Outcomes generates one outcome per completed procedure.
func (g *Generator) Outcomes(procs []model.Procedure) []model.Outcome {
	s := g.src
	var outcomes []model.Outcome

	for _, p := range procs {
		if p.Status != model.ProcedureCompleted {
			continue
		}
		id := s.uuid()
		c := p.ComplexityScore
		status := model.SuccessStatuses[s.weighted(
			0.85-(c-1)*0.05,
			0.12+(c-1)*0.04,
			0.03+(c-1)*0.01,
		)]

		blood := s.intRange(50, 500)
		switch status {
		case model.OutcomeComplicated:
			blood = int(float64(blood) * s.uniform(1.5, 3.0))
		case model.OutcomeFailed:
			blood = int(float64(blood) * s.uniform(2.0, 4.0))
		}

		comps := "none"
		switch status {
		case model.OutcomeComplicated:
			comps = strings.Join(sample(s, complications, s.intRange(1, 2)), ", ")
		case model.OutcomeFailed:
			comps = strings.Join(sample(s, complications, s.intRange(2, 4)), ", ")
		}

		var stay, satisfaction, recovery int
		switch status {
		case model.OutcomeSuccessful:
			stay = s.intRange(1, 4)
		case model.OutcomeComplicated:
			stay = s.intRange(3, 10)
		default:
			stay = s.intRange(7, 21)
		}

		readmitP := 0.25
		if status == model.OutcomeSuccessful {
			readmitP = 0.05
		}
		readmit := s.chance(readmitP)

		switch status {
		case model.OutcomeSuccessful:
			satisfaction = s.intRange(7, 10)
		case model.OutcomeComplicated:
			satisfaction = s.intRange(4, 8)
		default:
			satisfaction = s.intRange(1, 5)
		}

		notes := successNotes
		if status != model.OutcomeSuccessful {
			notes = complicationNotes
		}
		note := choice(s, notes)

		switch status {
		case model.OutcomeSuccessful:
			recovery = s.intRange(80, 100)
		case model.OutcomeComplicated:
			recovery = s.intRange(50, 85)
		default:
			recovery = s.intRange(20, 60)
		}

		followUp := status != model.OutcomeSuccessful || s.chance(0.3)
		created := p.EndTime.Add(time.Duration(s.intRange(1, 24)) * time.Hour)

		outcomes = append(outcomes, model.Outcome{
			OutcomeID:           id,
			ProcedureID:         p.ProcedureID,
			SuccessStatus:       status,
			BloodLossML:         blood,
			Complications:       comps,
			HospitalStayDays:    stay,
			Readmission30Day:    readmit,
			PatientSatisfaction: satisfaction,
			SurgeonNotes:        note,
			RecoveryScore:       recovery,
			FollowUpRequired:    followUp,
			CreatedAt:           created,
			UpdatedAt:           created,
		})
	}
	return outcomes
}

// Encoder receives telemetry samples one at a time.
type Encoder interface {
	Encode(v any) error
}

// Telemetry streams samples for every completed procedure to enc and
// returns the number written.
func (g *Generator) Telemetry(ctx context.Context, procs []model.Procedure, enc Encoder) (int, error) {
	n := 0
	completed := 0
	for _, p := range procs {
		if p.Status != model.ProcedureCompleted {
			continue
		}
		if err := ctx.Err(); err != nil {
			return n, err
		}
		for _, sample := range g.procedureTelemetry(p) {
			if err := enc.Encode(sample); err != nil {
				return n, err
			}
			n++
		}
		completed++
		if completed%500 == 0 {
			log.Debugf("generated telemetry for %d procedures", completed)
		}
	}
	return n, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func (g *Generator) procedureTelemetry(p model.Procedure) []model.TelemetrySample {
	samples := g.cfg.TelemetrySamples
	if samples == 0 {
		return nil
	}
	s := g.src
	interval := p.EndTime.Sub(p.StartTime) / time.Duration(samples)

	x := s.uniform(0, 500)
	y := s.uniform(0, 500)
	z := s.uniform(0, 300)
	rot := s.uniform(0, 360)

	tool := choice(s, surgicalTools)
	every := samples / s.intRange(3, 7)

	out := make([]model.TelemetrySample, 0, samples)
	for i := 0; i < samples; i++ {
		ts := p.StartTime.Add(time.Duration(i) * interval)

		x = clamp(x+s.uniform(-10, 10), 0, 500)
		y = clamp(y+s.uniform(-10, 10), 0, 500)
		z = clamp(z+s.uniform(-5, 5), 0, 300)
		rot = mod360(rot + s.uniform(-15, 15))

		if every > 0 && i > 0 && i%every == 0 {
			tool = choice(s, surgicalTools)
		}

		grip := 0.0
		if grippingTools[tool] {
			grip = s.uniform(0.5, 5.0)
		}

		out = append(out, model.TelemetrySample{
			TelemetryID:        s.uuid(),
			ProcedureID:        p.ProcedureID,
			Timestamp:          ts.Truncate(time.Millisecond),
			ArmPositionX:       model.Round(x, 4),
			ArmPositionY:       model.Round(y, 4),
			ArmPositionZ:       model.Round(z, 4),
			ArmRotation:        model.Round(rot, 2),
			ToolType:           tool,
			GripPressure:       model.Round(grip, 2),
			TremorCompensation: model.Round(s.uniform(2, 15), 2),
			CameraZoom:         model.Round(s.uniform(1, 10), 2),
			CameraAngle:        model.Round(s.uniform(-30, 30), 2),
			ForceFeedbackX:     model.Round(s.uniform(-2, 2), 4),
			ForceFeedbackY:     model.Round(s.uniform(-2, 2), 4),
			ForceFeedbackZ:     model.Round(s.uniform(-5, 5), 4),
			SystemTemperature:  model.Round(s.uniform(20, 35), 2),
			PowerConsumption:   model.Round(s.uniform(150, 400), 2),
		})
	}
	return out
}

// mod360 wraps degrees into [0, 360).
func mod360(d float64) float64 {
	for d < 0 {
		d += 360
	}
	for d >= 360 {
		d -= 360
	}
	return d
}
