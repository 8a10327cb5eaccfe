// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mrdp/mrdp/internal/db"
)

// Stats summarises the procedures table.
type Stats struct {
	TotalProcedures int64   `json:"total_procedures"`
	UniqueRobots    int64   `json:"unique_robots"`
	LatestProcedure *string `json:"latest_procedure"`
}

// Store persists procedures.
type Store interface {
	UpsertProcedure(ctx context.Context, rec map[string]any) error
	Stats(ctx context.Context) (Stats, error)
}

// procedureColumns are written by UpsertProcedure in this order.
var procedureColumns = []string{
	"procedure_id", "robot_id", "procedure_type", "procedure_category",
	"start_time", "end_time", "duration_minutes", "surgeon_id", "surgeon_name",
	"patient_id", "patient_age", "patient_gender", "complexity_score", "status",
}

var upsertProcedure = func() string {
	ph := make([]string, len(procedureColumns))
	for i := range procedureColumns {
		ph[i] = fmt.Sprintf("$%d", i+1)
	}
	return fmt.Sprintf(`INSERT INTO surgical_procedures (%s) VALUES (%s)
		ON CONFLICT (procedure_id) DO UPDATE SET
		    status = EXCLUDED.status,
		    end_time = EXCLUDED.end_time,
		    duration_minutes = EXCLUDED.duration_minutes`,
		strings.Join(procedureColumns, ", "), strings.Join(ph, ", "))
}()

// SQLStore is a Store over PostgreSQL.
type SQLStore struct {
	DB db.QueryExecer
}

var _ Store = (*SQLStore)(nil)

// UpsertProcedure inserts rec or, when the procedure exists, updates its
// status, end time and duration. Missing columns are NULL.
func (s *SQLStore) UpsertProcedure(ctx context.Context, rec map[string]any) error {
	args := make([]any, len(procedureColumns))
	for i, c := range procedureColumns {
		v := rec[c]
		if n, ok := v.(json.Number); ok {
			v = n.String()
		}
		args[i] = v
	}
	if _, err := s.DB.ExecContext(ctx, upsertProcedure, args...); err != nil {
		return fmt.Errorf("failed to upsert procedure: %w", err)
	}
	return nil
}

func (s *SQLStore) Stats(ctx context.Context) (Stats, error) {
	row, err := db.QueryRow(ctx, s.DB, `
		SELECT COUNT(*) AS total_procedures,
		       COUNT(DISTINCT robot_id) AS unique_robots,
		       MAX(start_time) AS latest_procedure
		FROM surgical_procedures`)
	if err != nil || row == nil {
		return Stats{}, err
	}
	st := Stats{}
	st.TotalProcedures, _ = row["total_procedures"].(int64)
	st.UniqueRobots, _ = row["unique_robots"].(int64)
	switch v := row["latest_procedure"].(type) {
	case time.Time:
		ts := v.Format("2006-01-02T15:04:05")
		st.LatestProcedure = &ts
	case string:
		st.LatestProcedure = &v
	}
	return st, nil
}
