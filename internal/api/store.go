// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mrdp/mrdp/internal/db"
)

// ErrNotFound is returned by single-record lookups.
var ErrNotFound = errors.New("not found")

// ProcedureFilter narrows a procedure listing. Empty fields are ignored.
type ProcedureFilter struct {
	RobotID  string
	Category string
	Status   string
	Limit    int
	Offset   int
}

// Store reads the OLTP database.
type Store interface {
	Robots(ctx context.Context, facilityID, status string) ([]db.Row, error)
	Robot(ctx context.Context, id string) (db.Row, int64, error)
	Procedures(ctx context.Context, f ProcedureFilter) ([]db.Row, error)
	Procedure(ctx context.Context, id string) (procedure, outcome db.Row, err error)
	Outcomes(ctx context.Context, successStatus string, limit int) ([]db.Row, error)
	RobotUtilization(ctx context.Context) ([]db.Row, error)
	OutcomesSummary(ctx context.Context) ([]db.Row, error)
	ProceduresByCategory(ctx context.Context, since time.Time) ([]db.Row, error)
}

// SQLStore is a Store over PostgreSQL.
type SQLStore struct {
	DB db.Queryer
}

var _ Store = (*SQLStore)(nil)

// where accumulates "AND col = $n" conditions.
type where struct {
	conds []string
	args  []any
}

func (w *where) eq(col string, v string) {
	if v == "" {
		return
	}
	w.args = append(w.args, v)
	w.conds = append(w.conds, fmt.Sprintf("%s = $%d", col, len(w.args)))
}

func (w *where) next(v any) string {
	w.args = append(w.args, v)
	return fmt.Sprintf("$%d", len(w.args))
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " AND " + strings.Join(w.conds, " AND ")
}

func (s *SQLStore) Robots(ctx context.Context, facilityID, status string) ([]db.Row, error) {
	var w where
	w.eq("facility_id", facilityID)
	w.eq("status", status)
	q := "SELECT * FROM surgical_robots WHERE 1=1" + w.String() + " ORDER BY facility_name, robot_serial_number"
	return db.QueryRows(ctx, s.DB, q, w.args...)
}

func (s *SQLStore) Robot(ctx context.Context, id string) (db.Row, int64, error) {
	robot, err := db.QueryRow(ctx, s.DB, "SELECT * FROM surgical_robots WHERE robot_id = $1", id)
	if err != nil {
		return nil, 0, err
	}
	if robot == nil {
		return nil, 0, ErrNotFound
	}
	cnt, err := db.QueryRow(ctx, s.DB, "SELECT COUNT(*) AS procedure_count FROM surgical_procedures WHERE robot_id = $1", id)
	if err != nil {
		return nil, 0, err
	}
	n, _ := cnt["procedure_count"].(int64)
	return robot, n, nil
}

func (s *SQLStore) Procedures(ctx context.Context, f ProcedureFilter) ([]db.Row, error) {
	var w where
	w.eq("robot_id", f.RobotID)
	w.eq("procedure_category", f.Category)
	w.eq("status", f.Status)
	q := "SELECT * FROM surgical_procedures WHERE 1=1" + w.String()
	q += " ORDER BY start_time DESC LIMIT " + w.next(f.Limit) + " OFFSET " + w.next(f.Offset)
	return db.QueryRows(ctx, s.DB, q, w.args...)
}

func (s *SQLStore) Procedure(ctx context.Context, id string) (db.Row, db.Row, error) {
	p, err := db.QueryRow(ctx, s.DB, `
		SELECT p.*, r.robot_model, r.facility_name
		FROM surgical_procedures p
		JOIN surgical_robots r ON p.robot_id = r.robot_id
		WHERE p.procedure_id = $1`, id)
	if err != nil {
		return nil, nil, err
	}
	if p == nil {
		return nil, nil, ErrNotFound
	}
	o, err := db.QueryRow(ctx, s.DB, "SELECT * FROM procedure_outcomes WHERE procedure_id = $1", id)
	if err != nil {
		return nil, nil, err
	}
	return p, o, nil
}

func (s *SQLStore) Outcomes(ctx context.Context, successStatus string, limit int) ([]db.Row, error) {
	var w where
	w.eq("o.success_status", successStatus)
	q := `
		SELECT o.*, p.procedure_type, p.start_time
		FROM procedure_outcomes o
		JOIN surgical_procedures p ON o.procedure_id = p.procedure_id
		WHERE 1=1` + w.String() + " ORDER BY p.start_time DESC LIMIT " + w.next(limit)
	return db.QueryRows(ctx, s.DB, q, w.args...)
}

func (s *SQLStore) RobotUtilization(ctx context.Context) ([]db.Row, error) {
	return db.QueryRows(ctx, s.DB, "SELECT * FROM vw_robot_utilization ORDER BY procedure_count DESC")
}

func (s *SQLStore) OutcomesSummary(ctx context.Context) ([]db.Row, error) {
	return db.QueryRows(ctx, s.DB, `
		SELECT success_status,
		       COUNT(*) AS count,
		       AVG(blood_loss_ml) AS avg_blood_loss,
		       AVG(hospital_stay_days) AS avg_stay_days,
		       AVG(patient_satisfaction_score) AS avg_satisfaction
		FROM procedure_outcomes
		GROUP BY success_status`)
}

func (s *SQLStore) ProceduresByCategory(ctx context.Context, since time.Time) ([]db.Row, error) {
	return db.QueryRows(ctx, s.DB, `
		SELECT procedure_category,
		       COUNT(*) AS count,
		       AVG(duration_minutes) AS avg_duration,
		       AVG(complexity_score) AS avg_complexity
		FROM surgical_procedures
		WHERE start_time >= $1
		GROUP BY procedure_category
		ORDER BY count DESC`, since)
}
