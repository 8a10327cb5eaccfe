// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package etl

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/apex/log"

	"github.com/mrdp/mrdp/internal/model"
)

type fact struct {
	name string
	// extract takes the window as $1 (inclusive) and $2 (exclusive).
	extract string
	insert  string
	staging stagingTable
}

var procedureFact = fact{
	name: "procedures",
	extract: `
		SELECT p.procedure_id,
		       p.robot_id,
		       p.surgeon_id,
		       r.facility_id,
		       TO_CHAR(p.start_time, 'YYYYMMDD')::INTEGER AS start_date_key,
		       (EXTRACT(HOUR FROM p.start_time) * 10000 + EXTRACT(MINUTE FROM p.start_time) * 100)::INTEGER AS start_time_key,
		       TO_CHAR(p.end_time, 'YYYYMMDD')::INTEGER AS end_date_key,
		       (EXTRACT(HOUR FROM p.end_time) * 10000 + EXTRACT(MINUTE FROM p.end_time) * 100)::INTEGER AS end_time_key,
		       p.procedure_type,
		       p.procedure_category,
		       p.patient_id,
		       p.patient_age,
		       p.patient_gender,
		       p.duration_minutes,
		       p.complexity_score,
		       o.success_status,
		       o.blood_loss_ml,
		       CASE
		           WHEN o.procedure_id IS NULL THEN NULL
		           WHEN COALESCE(o.complications, 'none') = 'none' THEN 'none'
		           WHEN o.complications LIKE '%,%' THEN 'major'
		           ELSE 'minor'
		       END AS complication_level,
		       o.hospital_stay_days,
		       o.patient_satisfaction_score,
		       o.readmission_30day,
		       p.status
		FROM surgical_procedures p
		LEFT JOIN surgical_robots r ON p.robot_id = r.robot_id
		LEFT JOIN procedure_outcomes o ON p.procedure_id = o.procedure_id
		WHERE p.start_time >= $1 AND p.start_time < $2
		ORDER BY p.start_time, p.procedure_id`,
	insert: `
		INSERT INTO fact_procedures (
		    procedure_id, robot_key, surgeon_key, facility_key,
		    start_date_key, start_time_key, end_date_key, end_time_key,
		    procedure_type, procedure_category, patient_id, patient_age,
		    patient_gender, duration_minutes, complexity_score,
		    success_status, blood_loss_ml, complication_level,
		    hospital_stay_days, patient_satisfaction_score,
		    readmission_30day, status)
		SELECT s.procedure_id, r.robot_key, sg.surgeon_key, f.facility_key,
		       s.start_date_key, s.start_time_key, s.end_date_key, s.end_time_key,
		       s.procedure_type, s.procedure_category, s.patient_id, s.patient_age,
		       s.patient_gender, s.duration_minutes, s.complexity_score,
		       s.success_status, s.blood_loss_ml, s.complication_level,
		       s.hospital_stay_days, s.patient_satisfaction_score,
		       s.readmission_30day, s.status
		FROM staging_procedures s
		LEFT JOIN dim_robots r ON s.robot_id = r.robot_id AND r.is_current = TRUE
		LEFT JOIN dim_surgeons sg ON s.surgeon_id = sg.surgeon_id AND sg.is_current = TRUE
		LEFT JOIN dim_facilities f ON s.facility_id = f.facility_id AND f.is_current = TRUE
		WHERE NOT EXISTS (
		    SELECT 1 FROM fact_procedures fp WHERE fp.procedure_id = s.procedure_id
		)`,
	staging: stagingTable{
		name: "staging_procedures",
		columns: []column{
			{"procedure_id", "VARCHAR(100)"},
			{"robot_id", "VARCHAR(50)"},
			{"surgeon_id", "VARCHAR(50)"},
			{"facility_id", "VARCHAR(50)"},
			{"start_date_key", "INTEGER"},
			{"start_time_key", "INTEGER"},
			{"end_date_key", "INTEGER"},
			{"end_time_key", "INTEGER"},
			{"procedure_type", "VARCHAR(100)"},
			{"procedure_category", "VARCHAR(50)"},
			{"patient_id", "VARCHAR(100)"},
			{"patient_age", "SMALLINT"},
			{"patient_gender", "VARCHAR(10)"},
			{"duration_minutes", "INTEGER"},
			{"complexity_score", "DECIMAL(3,1)"},
			{"success_status", "VARCHAR(50)"},
			{"blood_loss_ml", "INTEGER"},
			{"complication_level", "VARCHAR(50)"},
			{"hospital_stay_days", "INTEGER"},
			{"patient_satisfaction_score", "DECIMAL(3,1)"},
			{"readmission_30day", "BOOLEAN"},
			{"status", "VARCHAR(50)"},
		},
	},
}

var maintenanceFact = fact{
	name: "maintenance",
	extract: `
		SELECT m.maintenance_id,
		       m.robot_id,
		       r.facility_id,
		       TO_CHAR(m.maintenance_date, 'YYYYMMDD')::INTEGER AS maintenance_date_key,
		       m.maintenance_type,
		       m.technician_id,
		       m.parts_replaced,
		       m.downtime_hours,
		       m.cost,
		       TO_CHAR(m.next_maintenance_date, 'YYYYMMDD')::INTEGER AS next_maintenance_date_key
		FROM robot_maintenance_logs m
		LEFT JOIN surgical_robots r ON r.robot_id = m.robot_id
		WHERE m.maintenance_date >= $1 AND m.maintenance_date < $2
		ORDER BY m.maintenance_date, m.maintenance_id`,
	insert: `
		INSERT INTO fact_robot_maintenance (
		    maintenance_id, robot_key, facility_key, maintenance_date_key,
		    maintenance_type, technician_id, parts_replaced, downtime_hours,
		    cost, next_maintenance_date_key)
		SELECT s.maintenance_id, r.robot_key, f.facility_key, s.maintenance_date_key,
		       s.maintenance_type, s.technician_id, s.parts_replaced, s.downtime_hours,
		       s.cost, s.next_maintenance_date_key
		FROM staging_maintenance s
		LEFT JOIN dim_robots r ON s.robot_id = r.robot_id AND r.is_current = TRUE
		LEFT JOIN dim_facilities f ON s.facility_id = f.facility_id AND f.is_current = TRUE
		WHERE NOT EXISTS (
		    SELECT 1 FROM fact_robot_maintenance fm WHERE fm.maintenance_id = s.maintenance_id
		)`,
	staging: stagingTable{
		name: "staging_maintenance",
		columns: []column{
			{"maintenance_id", "VARCHAR(50)"},
			{"robot_id", "VARCHAR(50)"},
			{"facility_id", "VARCHAR(50)"},
			{"maintenance_date_key", "INTEGER"},
			{"maintenance_type", "VARCHAR(20)"},
			{"technician_id", "VARCHAR(50)"},
			{"parts_replaced", "VARCHAR(500)"},
			{"downtime_hours", "DECIMAL(6,2)"},
			{"cost", "DECIMAL(12,2)"},
			{"next_maintenance_date_key", "INTEGER"},
		},
	},
}

func (r *Runner) loadFact(ctx context.Context, f fact, start, end time.Time) (int, error) {
	from, to := model.FormatDate(start), model.FormatDate(end)
	rows, err := queryRecords(ctx, r.Source, f.extract, from, to)
	if err != nil {
		return 0, fmt.Errorf("failed to extract: %w", err)
	}
	if len(rows) == 0 {
		log.WithField("fact", f.name).Infof("no rows between %s and %s", from, to)
		return 0, nil
	}

	key := fmt.Sprintf("%s%s/%s_%s_%s.csv", StagingPrefix, r.clock().Format("20060102"), f.name, from, to)
	n, err := r.load(ctx, key, f.staging, rows, func(tx *sql.Tx) (int, error) {
		res, err := tx.ExecContext(ctx, f.insert)
		if err != nil {
			return 0, fmt.Errorf("failed to insert facts: %w", err)
		}
		return affected(res), nil
	})
	if errors.Is(err, ErrNoData) {
		return 0, nil
	}
	if err == nil {
		log.WithField("fact", f.name).Infof("loaded %d of %d rows", n, len(rows))
	}
	return n, err
}
