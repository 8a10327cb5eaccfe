// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package etl

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/apex/log"

	"github.com/mrdp/mrdp/internal/db"
	"github.com/mrdp/mrdp/internal/model"
)

type dimension struct {
	name    string
	table   string
	id      string
	tracked []string
	// extract selects source rows in staging column order.
	extract string
	// current selects the id then the tracked columns of current versions.
	current string
	insert  string
	staging stagingTable
}

var dateFormat = []string{"DATEFORMAT 'YYYY-MM-DD'"}

var facilityDimension = dimension{
	name:    "facilities",
	table:   "dim_facilities",
	id:      "facility_id",
	tracked: []string{"facility_name"},
	extract: `
		SELECT facility_id,
		       MAX(facility_name) AS facility_name,
		       MIN(installation_date) AS effective_date
		FROM surgical_robots
		GROUP BY facility_id
		ORDER BY facility_id`,
	current: `SELECT facility_id, facility_name FROM dim_facilities WHERE is_current = TRUE`,
	insert: `
		INSERT INTO dim_facilities (facility_id, facility_name, effective_date, expiration_date, is_current)
		SELECT facility_id, facility_name, effective_date, NULL, TRUE
		FROM staging_facilities`,
	staging: stagingTable{
		name: "staging_facilities",
		columns: []column{
			{"facility_id", "VARCHAR(50)"},
			{"facility_name", "VARCHAR(200)"},
			{"effective_date", "DATE"},
		},
		copyOpts: dateFormat,
	},
}

var surgeonDimension = dimension{
	name:    "surgeons",
	table:   "dim_surgeons",
	id:      "surgeon_id",
	tracked: []string{"surgeon_name", "specialization"},
	extract: `
		SELECT surgeon_id,
		       MAX(surgeon_name) AS surgeon_name,
		       'General Surgery' AS specialization,
		       EXTRACT(YEAR FROM AGE(CURRENT_DATE, MIN(start_time)))::INTEGER AS years_experience,
		       'Board Certified' AS certification_level,
		       MIN(start_time)::DATE AS effective_date
		FROM surgical_procedures
		WHERE surgeon_id IS NOT NULL
		GROUP BY surgeon_id
		ORDER BY surgeon_id`,
	current: `SELECT surgeon_id, surgeon_name, specialization FROM dim_surgeons WHERE is_current = TRUE`,
	insert: `
		INSERT INTO dim_surgeons (surgeon_id, surgeon_name, specialization, years_experience,
		                          certification_level, effective_date, expiration_date, is_current)
		SELECT surgeon_id, surgeon_name, specialization, years_experience,
		       certification_level, effective_date, NULL, TRUE
		FROM staging_surgeons`,
	staging: stagingTable{
		name: "staging_surgeons",
		columns: []column{
			{"surgeon_id", "VARCHAR(50)"},
			{"surgeon_name", "VARCHAR(200)"},
			{"specialization", "VARCHAR(100)"},
			{"years_experience", "INTEGER"},
			{"certification_level", "VARCHAR(50)"},
			{"effective_date", "DATE"},
		},
		copyOpts: dateFormat,
	},
}

var robotDimension = dimension{
	name:  "robots",
	table: "dim_robots",
	id:    "robot_id",
	tracked: []string{
		"robot_serial_number", "robot_model", "manufacturer", "facility_id",
		"software_version", "hardware_revision", "status", "last_maintenance_date",
	},
	extract: `
		SELECT r.robot_id,
		       r.robot_serial_number,
		       r.robot_model,
		       r.manufacturer,
		       r.facility_id,
		       r.installation_date AS install_date,
		       r.firmware_version AS software_version,
		       r.hardware_revision,
		       r.status,
		       r.last_maintenance_date,
		       COUNT(p.procedure_id) AS total_procedures_count,
		       ROUND(COALESCE(SUM(p.duration_minutes), 0) / 60.0, 2) AS total_operating_hours,
		       r.installation_date AS effective_date
		FROM surgical_robots r
		LEFT JOIN surgical_procedures p ON r.robot_id = p.robot_id
		GROUP BY r.robot_id, r.robot_serial_number, r.robot_model, r.manufacturer,
		         r.facility_id, r.installation_date, r.firmware_version,
		         r.hardware_revision, r.status, r.last_maintenance_date
		ORDER BY r.robot_id`,
	current: `
		SELECT r.robot_id, r.robot_serial_number, r.robot_model, r.manufacturer,
		       f.facility_id, r.software_version, r.hardware_revision, r.status,
		       r.last_maintenance_date
		FROM dim_robots r
		LEFT JOIN dim_facilities f ON f.facility_key = r.facility_key
		WHERE r.is_current = TRUE`,
	insert: `
		INSERT INTO dim_robots (robot_id, robot_serial_number, robot_model, manufacturer,
		                        facility_key, install_date, software_version, hardware_revision,
		                        status, last_maintenance_date, total_procedures_count,
		                        total_operating_hours, effective_date, expiration_date, is_current)
		SELECT s.robot_id, s.robot_serial_number, s.robot_model, s.manufacturer,
		       f.facility_key, s.install_date, s.software_version, s.hardware_revision,
		       s.status, s.last_maintenance_date, s.total_procedures_count,
		       s.total_operating_hours, s.effective_date, NULL, TRUE
		FROM staging_robots s
		LEFT JOIN dim_facilities f ON s.facility_id = f.facility_id AND f.is_current = TRUE`,
	staging: stagingTable{
		name: "staging_robots",
		columns: []column{
			{"robot_id", "VARCHAR(50)"},
			{"robot_serial_number", "VARCHAR(100)"},
			{"robot_model", "VARCHAR(100)"},
			{"manufacturer", "VARCHAR(100)"},
			{"facility_id", "VARCHAR(50)"},
			{"install_date", "DATE"},
			{"software_version", "VARCHAR(50)"},
			{"hardware_revision", "VARCHAR(50)"},
			{"status", "VARCHAR(50)"},
			{"last_maintenance_date", "DATE"},
			{"total_procedures_count", "INTEGER"},
			{"total_operating_hours", "DECIMAL(10,2)"},
			{"effective_date", "DATE"},
		},
		copyOpts: dateFormat,
	},
}

// dimensions in load order; robots look up facility keys.
var dimensions = []dimension{facilityDimension, surgeonDimension, robotDimension}

func (d dimension) expireSQL() string {
	return fmt.Sprintf(`UPDATE %s SET expiration_date = $1, is_current = FALSE WHERE is_current = TRUE AND %s IN (SELECT %s FROM %s)`,
		d.table, d.id, d.id, d.staging.name)
}

func (r *Runner) loadDimension(ctx context.Context, d dimension) (int, error) {
	source, err := queryRecords(ctx, r.Source, d.extract)
	if err != nil {
		return 0, fmt.Errorf("failed to extract: %w", err)
	}
	currentRows, err := queryRecords(ctx, r.Warehouse, d.current)
	if err != nil {
		return 0, fmt.Errorf("failed to read current versions: %w", err)
	}
	current := make(map[string][]string, len(currentRows))
	for _, rec := range currentRows {
		current[rec[0]] = rec[1:]
	}

	today := r.today()
	plan := planSCD2(d.staging, d.id, d.tracked, current, source, today)
	log.WithField("dimension", d.name).Infof("%d new, %d changed, %d unchanged", plan.New, plan.Changed, plan.Unchanged)
	if len(plan.Rows) == 0 {
		return 0, nil
	}

	key := StagingPrefix + r.clock().Format("20060102") + "/" + d.name + ".csv"
	n, err := r.load(ctx, key, d.staging, plan.Rows, func(tx *sql.Tx) (int, error) {
		if plan.Changed > 0 {
			expiry := model.FormatDate(today.AddDate(0, 0, -1))
			if _, err := tx.ExecContext(ctx, d.expireSQL(), expiry); err != nil {
				return 0, fmt.Errorf("failed to expire versions: %w", err)
			}
		}
		res, err := tx.ExecContext(ctx, d.insert)
		if err != nil {
			return 0, fmt.Errorf("failed to insert versions: %w", err)
		}
		return affected(res), nil
	})
	if errors.Is(err, ErrNoData) {
		return 0, nil
	}
	return n, err
}

func queryRecords(ctx context.Context, q db.Queryer, query string, args ...any) ([][]string, error) {
	rs, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	_, recs, err := db.ScanRecords(rs)
	return recs, err
}
