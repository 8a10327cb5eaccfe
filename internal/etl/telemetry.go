// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package etl

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/apex/log"
	"golang.org/x/sync/errgroup"

	"github.com/mrdp/mrdp/internal/aws"
)

const insertTelemetry = `
	INSERT INTO fact_procedure_telemetry (
	    procedure_key, timestamp_key, sample_timestamp,
	    arm_position_x, arm_position_y, arm_position_z,
	    arm_rotation_x, arm_rotation_y, arm_rotation_z,
	    force_feedback, tool_type, tool_active, camera_zoom,
	    lighting_level, system_temperature, motor_current,
	    network_latency_ms, video_fps)
	SELECT fp.procedure_key, st.timestamp_key, st.sample_timestamp,
	       st.arm_position_x, st.arm_position_y, st.arm_position_z,
	       st.arm_rotation_x, st.arm_rotation_y, st.arm_rotation_z,
	       st.force_feedback, st.tool_type, st.tool_active, st.camera_zoom,
	       st.lighting_level, st.system_temperature, st.motor_current,
	       st.network_latency_ms, st.video_fps
	FROM staging_telemetry st
	INNER JOIN fact_procedures fp ON st.procedure_id = fp.procedure_id
	WHERE NOT EXISTS (
	    SELECT 1 FROM fact_procedure_telemetry fpt
	    WHERE fpt.procedure_key = fp.procedure_key
	      AND fpt.sample_timestamp = st.sample_timestamp
	)`

// TelemetryRequest describes one telemetry batch.
type TelemetryRequest struct {
	// Prefix is listed in the raw bucket. Defaults to DefaultPrefix.
	Prefix string
	// BatchDate names the staging folder. Defaults to today as YYYYMMDD.
	BatchDate string
}

// TelemetryResult is the outcome of a telemetry batch.
type TelemetryResult struct {
	Status         string `json:"status"`
	Timestamp      string `json:"timestamp"`
	BatchDate      string `json:"batch_date"`
	FilesFound     int    `json:"files_found"`
	FilesProcessed int    `json:"files_processed"`
	FilesFailed    int    `json:"files_failed"`
	RecordsParsed  int    `json:"records_parsed"`
	RecordsLoaded  int    `json:"records_loaded"`
	Error          string `json:"error,omitempty"`
}

// IsTelemetryKey reports the object keys a batch will read.
func IsTelemetryKey(key string) bool {
	k := strings.TrimSuffix(key, ".gz")
	return strings.HasSuffix(k, ".json") || strings.HasSuffix(k, ".jsonl")
}

// Telemetry loads up to MaxFiles raw telemetry objects into the warehouse.
// Unreadable objects and records are skipped and counted.
func (r *Runner) Telemetry(ctx context.Context, req TelemetryRequest) (TelemetryResult, error) {
	now := r.clock()
	if req.Prefix == "" {
		req.Prefix = DefaultPrefix
	}
	if req.BatchDate == "" {
		req.BatchDate = now.Format("20060102")
	}
	res := TelemetryResult{
		Status:    StatusSuccess,
		Timestamp: now.Format(time.RFC3339),
		BatchDate: req.BatchDate,
	}

	var runID string
	if r.Ledger != nil {
		id, err := r.Ledger.Start(ctx, string(TypeTelemetry), time.Time{}, time.Time{})
		if err != nil {
			res.Status, res.Error = StatusFailed, err.Error()
			return res, err
		}
		runID = id
	}

	err := r.telemetry(ctx, req, now, &res)
	if err != nil {
		res.Status, res.Error = StatusFailed, err.Error()
		log.WithError(err).Error("telemetry etl failed")
	}
	if runID != "" {
		counts := map[string]int{"telemetry": res.RecordsLoaded}
		if lerr := r.Ledger.Finish(ctx, runID, res.Status, counts, res.Error); lerr != nil {
			log.WithError(lerr).Warn("failed to record etl run")
		}
	}
	return res, err
}

func (r *Runner) telemetry(ctx context.Context, req TelemetryRequest, now time.Time, res *TelemetryResult) error {
	maxFiles := r.MaxFiles
	if maxFiles <= 0 {
		maxFiles = DefaultMaxFiles
	}
	workers := r.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	objs, err := aws.ListObjects(ctx, r.S3, r.RawBucket, req.Prefix, maxFiles, IsTelemetryKey)
	if err != nil {
		return err
	}
	res.FilesFound = len(objs)
	if len(objs) == 0 {
		log.Infof("no telemetry objects under %s", aws.S3URI(r.RawBucket, req.Prefix))
		return nil
	}

	// Results are kept per object so staged rows follow listing order.
	perFile := make([][][]string, len(objs))
	var failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, o := range objs {
		g.Go(func() error {
			b, err := aws.GetBytes(gctx, r.S3, r.RawBucket, o.Key)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				log.WithError(err).Warnf("skipping %s", o.Key)
				failed.Add(1)
				return nil
			}
			recs, err := decodeBody(b)
			if err != nil {
				log.WithError(err).Warnf("skipping %s", o.Key)
				failed.Add(1)
				return nil
			}
			rows := make([][]string, 0, len(recs))
			for _, rec := range recs {
				if row, ok := transformRecord(rec); ok {
					rows = append(rows, row)
				}
			}
			perFile[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	var rows [][]string
	for _, fr := range perFile {
		rows = append(rows, fr...)
	}
	res.FilesFailed = int(failed.Load())
	res.FilesProcessed = len(objs) - res.FilesFailed
	res.RecordsParsed = len(rows)
	log.Infof("processed %d files with %d telemetry records", res.FilesProcessed, len(rows))
	if len(rows) == 0 {
		return nil
	}

	key := fmt.Sprintf("%stelemetry/%s/telemetry_%s.csv", StagingPrefix, req.BatchDate, now.Format("150405"))
	n, err := r.load(ctx, key, telemetryStaging, rows, func(tx *sql.Tx) (int, error) {
		res, err := tx.ExecContext(ctx, insertTelemetry)
		if err != nil {
			return 0, fmt.Errorf("failed to insert telemetry: %w", err)
		}
		return affected(res), nil
	})
	if errors.Is(err, ErrNoData) {
		return nil
	}
	if err != nil {
		return err
	}
	res.RecordsLoaded = n
	return nil
}
