// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package model

import (
	"encoding/json"
	"math"
	"strconv"
	"time"
)

// Timestamp layouts shared by CSV files, NDJSON telemetry and SQL literals.
const (
	DateLayout      = "2006-01-02"
	TimestampLayout = "2006-01-02 15:04:05"
	MillisLayout    = "2006-01-02 15:04:05.000"
)

// Robot statuses.
const (
	RobotOperational = "operational"
	RobotMaintenance = "maintenance"
	RobotRetired     = "retired"
)

// Procedure statuses.
const (
	ProcedureCompleted  = "completed"
	ProcedureInProgress = "in_progress"
	ProcedureAborted    = "aborted"
	ProcedureCancelled  = "cancelled"
)

// Outcome success statuses.
const (
	OutcomeSuccessful  = "successful"
	OutcomeComplicated = "complicated"
	OutcomeFailed      = "failed"
)

// Maintenance types.
const (
	MaintenanceRoutine     = "routine"
	MaintenanceEmergency   = "emergency"
	MaintenanceUpgrade     = "upgrade"
	MaintenanceCalibration = "calibration"
)

var (
	RobotStatuses     = []string{RobotOperational, RobotMaintenance, RobotRetired}
	ProcedureStatuses = []string{ProcedureCompleted, ProcedureInProgress, ProcedureAborted, ProcedureCancelled}
	SuccessStatuses   = []string{OutcomeSuccessful, OutcomeComplicated, OutcomeFailed}
	MaintenanceTypes  = []string{MaintenanceRoutine, MaintenanceEmergency, MaintenanceUpgrade, MaintenanceCalibration}
)

// Record is implemented by every type that is written to CSV.
type Record interface {
	Header() []string
	Record() []string
}

// Robot is a row of surgical_robots.
type Robot struct {
	RobotID             string    `json:"robot_id"`
	SerialNumber        string    `json:"robot_serial_number"`
	Model               string    `json:"robot_model"`
	Manufacturer        string    `json:"manufacturer"`
	InstallationDate    time.Time `json:"installation_date"`
	FacilityID          string    `json:"facility_id"`
	FacilityName        string    `json:"facility_name"`
	Status              string    `json:"status"`
	LastMaintenanceDate time.Time `json:"last_maintenance_date"`
	TotalProcedures     int       `json:"total_procedures"`
	FirmwareVersion     string    `json:"firmware_version"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

func (Robot) Header() []string {
	return []string{
		"robot_id", "robot_serial_number", "robot_model", "manufacturer",
		"installation_date", "facility_id", "facility_name", "status",
		"last_maintenance_date", "total_procedures", "firmware_version",
		"created_at", "updated_at",
	}
}

func (r Robot) Record() []string {
	return []string{
		r.RobotID, r.SerialNumber, r.Model, r.Manufacturer,
		FormatDate(r.InstallationDate), r.FacilityID, r.FacilityName, r.Status,
		FormatDate(r.LastMaintenanceDate), strconv.Itoa(r.TotalProcedures), r.FirmwareVersion,
		FormatTimestamp(r.CreatedAt), FormatTimestamp(r.UpdatedAt),
	}
}

// Procedure is a row of surgical_procedures.
type Procedure struct {
	ProcedureID     string    `json:"procedure_id"`
	RobotID         string    `json:"robot_id"`
	Type            string    `json:"procedure_type"`
	Category        string    `json:"procedure_category"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	DurationMinutes int       `json:"duration_minutes"`
	SurgeonID       string    `json:"surgeon_id"`
	SurgeonName     string    `json:"surgeon_name"`
	PatientID       string    `json:"patient_id"`
	PatientAge      int       `json:"patient_age"`
	PatientGender   string    `json:"patient_gender"`
	ComplexityScore float64   `json:"complexity_score"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
}

func (Procedure) Header() []string {
	return []string{
		"procedure_id", "robot_id", "procedure_type", "procedure_category",
		"start_time", "end_time", "duration_minutes", "surgeon_id", "surgeon_name",
		"patient_id", "patient_age", "patient_gender", "complexity_score",
		"status", "created_at",
	}
}

func (p Procedure) Record() []string {
	return []string{
		p.ProcedureID, p.RobotID, p.Type, p.Category,
		FormatTimestamp(p.StartTime), FormatTimestamp(p.EndTime), strconv.Itoa(p.DurationMinutes),
		p.SurgeonID, p.SurgeonName, p.PatientID, strconv.Itoa(p.PatientAge), p.PatientGender,
		FormatFloat(p.ComplexityScore), p.Status, FormatTimestamp(p.CreatedAt),
	}
}

// Outcome is a row of procedure_outcomes.
type Outcome struct {
	OutcomeID           string    `json:"outcome_id"`
	ProcedureID         string    `json:"procedure_id"`
	SuccessStatus       string    `json:"success_status"`
	BloodLossML         int       `json:"blood_loss_ml"`
	Complications       string    `json:"complications"`
	HospitalStayDays    int       `json:"hospital_stay_days"`
	Readmission30Day    bool      `json:"readmission_30day"`
	PatientSatisfaction int       `json:"patient_satisfaction_score"`
	SurgeonNotes        string    `json:"surgeon_notes"`
	RecoveryScore       int       `json:"recovery_score"`
	FollowUpRequired    bool      `json:"follow_up_required"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

func (Outcome) Header() []string {
	return []string{
		"outcome_id", "procedure_id", "success_status", "blood_loss_ml",
		"complications", "hospital_stay_days", "readmission_30day",
		"patient_satisfaction_score", "surgeon_notes", "recovery_score",
		"follow_up_required", "created_at", "updated_at",
	}
}

func (o Outcome) Record() []string {
	return []string{
		o.OutcomeID, o.ProcedureID, o.SuccessStatus, strconv.Itoa(o.BloodLossML),
		o.Complications, strconv.Itoa(o.HospitalStayDays), FormatBool(o.Readmission30Day),
		strconv.Itoa(o.PatientSatisfaction), o.SurgeonNotes, strconv.Itoa(o.RecoveryScore),
		FormatBool(o.FollowUpRequired), FormatTimestamp(o.CreatedAt), FormatTimestamp(o.UpdatedAt),
	}
}

// MaintenanceLog is a row of robot_maintenance_logs.
type MaintenanceLog struct {
	MaintenanceID       string    `json:"maintenance_id"`
	RobotID             string    `json:"robot_id"`
	MaintenanceDate     time.Time `json:"maintenance_date"`
	Type                string    `json:"maintenance_type"`
	TechnicianID        string    `json:"technician_id"`
	TechnicianName      string    `json:"technician_name"`
	IssuesFound         string    `json:"issues_found"`
	ActionsTaken        string    `json:"actions_taken"`
	PartsReplaced       string    `json:"parts_replaced"`
	DowntimeHours       float64   `json:"downtime_hours"`
	NextMaintenanceDate time.Time `json:"next_maintenance_date"`
	Cost                float64   `json:"cost"`
	CreatedAt           time.Time `json:"created_at"`
}

func (MaintenanceLog) Header() []string {
	return []string{
		"maintenance_id", "robot_id", "maintenance_date", "maintenance_type",
		"technician_id", "technician_name", "issues_found", "actions_taken",
		"parts_replaced", "downtime_hours", "next_maintenance_date", "cost",
		"created_at",
	}
}

func (m MaintenanceLog) Record() []string {
	return []string{
		m.MaintenanceID, m.RobotID, FormatDate(m.MaintenanceDate), m.Type,
		m.TechnicianID, m.TechnicianName, m.IssuesFound, m.ActionsTaken,
		m.PartsReplaced, FormatFloat(m.DowntimeHours), FormatDate(m.NextMaintenanceDate), FormatFloat(m.Cost),
		FormatTimestamp(m.CreatedAt),
	}
}

// TelemetrySample is one high-frequency sensor reading in the flat shape
// written to procedure_telemetry.json.
type TelemetrySample struct {
	TelemetryID        string    `json:"telemetry_id"`
	ProcedureID        string    `json:"procedure_id"`
	Timestamp          time.Time `json:"-"`
	ArmPositionX       float64   `json:"arm_position_x"`
	ArmPositionY       float64   `json:"arm_position_y"`
	ArmPositionZ       float64   `json:"arm_position_z"`
	ArmRotation        float64   `json:"arm_rotation"`
	ToolType           string    `json:"tool_type"`
	GripPressure       float64   `json:"grip_pressure"`
	TremorCompensation float64   `json:"tremor_compensation"`
	CameraZoom         float64   `json:"camera_zoom"`
	CameraAngle        float64   `json:"camera_angle"`
	ForceFeedbackX     float64   `json:"force_feedback_x"`
	ForceFeedbackY     float64   `json:"force_feedback_y"`
	ForceFeedbackZ     float64   `json:"force_feedback_z"`
	SystemTemperature  float64   `json:"system_temperature"`
	PowerConsumption   float64   `json:"power_consumption"`
}

// MarshalJSON renders the timestamp with millisecond precision.
func (t TelemetrySample) MarshalJSON() ([]byte, error) {
	type alias TelemetrySample
	return json.Marshal(struct {
		alias
		Timestamp string `json:"timestamp"`
	}{alias(t), FormatMillis(t.Timestamp)})
}

// UnmarshalJSON accepts the millisecond layout written by MarshalJSON.
func (t *TelemetrySample) UnmarshalJSON(b []byte) error {
	type alias TelemetrySample
	aux := struct {
		*alias
		Timestamp string `json:"timestamp"`
	}{alias: (*alias)(t)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	ts, err := ParseTimestamp(aux.Timestamp)
	if err != nil {
		return err
	}
	t.Timestamp = ts
	return nil
}

func (TelemetrySample) Header() []string {
	return []string{
		"telemetry_id", "procedure_id", "sample_timestamp",
		"arm_position_x", "arm_position_y", "arm_position_z", "arm_rotation",
		"tool_type", "grip_pressure", "tremor_compensation", "camera_zoom", "camera_angle",
		"force_feedback_x", "force_feedback_y", "force_feedback_z",
		"system_temperature", "power_consumption",
	}
}

func (t TelemetrySample) Record() []string {
	return []string{
		t.TelemetryID, t.ProcedureID, FormatMillis(t.Timestamp),
		FormatFloat(t.ArmPositionX), FormatFloat(t.ArmPositionY), FormatFloat(t.ArmPositionZ), FormatFloat(t.ArmRotation),
		t.ToolType, FormatFloat(t.GripPressure), FormatFloat(t.TremorCompensation), FormatFloat(t.CameraZoom), FormatFloat(t.CameraAngle),
		FormatFloat(t.ForceFeedbackX), FormatFloat(t.ForceFeedbackY), FormatFloat(t.ForceFeedbackZ),
		FormatFloat(t.SystemTemperature), FormatFloat(t.PowerConsumption),
	}
}

// FormatDate renders a calendar date. The zero time renders empty.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DateLayout)
}

// FormatTimestamp renders a second-precision timestamp.
func FormatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(TimestampLayout)
}

// FormatMillis renders a millisecond-precision timestamp.
func FormatMillis(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(MillisLayout)
}

// FormatFloat renders the shortest representation that round-trips.
func FormatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// FormatBool renders Python-style booleans so CSVs stay byte compatible with
// files produced by earlier tooling.
func FormatBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

// ParseTimestamp accepts the millisecond, second and RFC 3339 layouts. Values
// without a zone are read as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	var err error
	for _, layout := range []string{MillisLayout, TimestampLayout, time.RFC3339Nano, "2006-01-02T15:04:05", DateLayout} {
		var t time.Time
		if t, err = time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, err
}

// Round rounds f to the given number of decimal places.
func Round(f float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(f*p) / p
}

// Procedure categories.
const (
	CategoryUrological    = "urological"
	CategoryGynecological = "gynecological"
	CategoryCardiac       = "cardiac"
	CategoryThoracic      = "thoracic"
	CategoryGeneral       = "general"
	CategoryOrthopedic    = "orthopedic"
)

var Categories = []string{
	CategoryUrological, CategoryGynecological, CategoryCardiac,
	CategoryThoracic, CategoryGeneral, CategoryOrthopedic,
}
