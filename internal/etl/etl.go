// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package etl

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/apex/log"

	"github.com/mrdp/mrdp/internal/aws"
	"github.com/mrdp/mrdp/internal/db"
	"github.com/mrdp/mrdp/internal/model"
)

// Type selects what a run loads.
type Type string

// Run types.
const (
	TypeFull        Type = "full"
	TypeDimensions  Type = "dimensions"
	TypeProcedures  Type = "procedures"
	TypeMaintenance Type = "maintenance"
	TypeTelemetry   Type = "telemetry"
)

// Types lists the types accepted by Run.
var Types = []Type{TypeFull, TypeDimensions, TypeProcedures, TypeMaintenance}

// Run statuses.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusRunning = "running"
)

// ErrNoData means there was nothing to stage.
var ErrNoData = errors.New("no data to load")

// ParseType validates s as a Run type.
func ParseType(s string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	if t == "" {
		return TypeFull, nil
	}
	for _, v := range Types {
		if v == t {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown etl type %q (want full, dimensions, procedures or maintenance)", s)
}

// Request describes one run. A zero Start or End falls back to yesterday
// and today.
type Request struct {
	Type      Type
	Start     time.Time
	End       time.Time
	SinceLast bool
}

// Result is the outcome of a run.
type Result struct {
	Status        string         `json:"status"`
	Timestamp     string         `json:"timestamp"`
	Type          Type           `json:"etl_type"`
	Start         string         `json:"start_date,omitempty"`
	End           string         `json:"end_date,omitempty"`
	RecordsLoaded map[string]int `json:"records_loaded"`
	Error         string         `json:"error,omitempty"`
}

// Total sums RecordsLoaded.
func (r Result) Total() int {
	n := 0
	for _, v := range r.RecordsLoaded {
		n += v
	}
	return n
}

// Config carries the S3 and IAM settings shared by every load.
type Config struct {
	StagingBucket string
	RawBucket     string
	// IAMRole is the role ARN Redshift assumes to read staged objects.
	IAMRole  string
	Compress bool
	// MaxFiles caps the telemetry objects processed per batch.
	MaxFiles int
	// Workers bounds concurrent telemetry downloads.
	Workers int
}

// Defaults for Config.
const (
	DefaultMaxFiles = 100
	DefaultWorkers  = 8
	DefaultPrefix   = "telemetry/"
)

// Warehouse is the Redshift side of a run.
type Warehouse interface {
	db.Queryer
	db.Beginner
}

// Runner executes ETL runs.
type Runner struct {
	Source    db.Queryer
	Warehouse Warehouse
	S3        aws.S3API
	Ledger    *Ledger
	Config

	now func() time.Time
}

func (r *Runner) clock() time.Time {
	if r.now != nil {
		return r.now()
	}
	return time.Now()
}

func (r *Runner) today() time.Time {
	n := r.clock()
	return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, time.UTC)
}

// window resolves the fact window for req.
func (r *Runner) window(ctx context.Context, req Request) (time.Time, time.Time, error) {
	today := r.today()
	start, end := req.Start, req.End
	if end.IsZero() {
		end = today
	}
	if req.SinceLast {
		if r.Ledger == nil {
			return start, end, errors.New("--since-last needs the run ledger")
		}
		last, ok, err := r.Ledger.LastWindowEnd(ctx)
		if err != nil {
			return start, end, err
		}
		if ok {
			start = last
		}
	}
	if start.IsZero() {
		start = today.AddDate(0, 0, -1)
	}
	if !start.Before(end) && !req.SinceLast {
		return start, end, fmt.Errorf("empty window: start %s is not before end %s", model.FormatDate(start), model.FormatDate(end))
	}
	return start, end, nil
}

// Run executes req and records it in the ledger when one is set. The
// returned Result is populated even on failure.
func (r *Runner) Run(ctx context.Context, req Request) (Result, error) {
	if req.Type == "" {
		req.Type = TypeFull
	}
	res := Result{
		Status:        StatusSuccess,
		Timestamp:     r.clock().Format(time.RFC3339),
		Type:          req.Type,
		RecordsLoaded: map[string]int{},
	}

	facts := req.Type == TypeFull || req.Type == TypeProcedures || req.Type == TypeMaintenance
	var start, end time.Time
	if facts {
		var err error
		if start, end, err = r.window(ctx, req); err != nil {
			res.Status, res.Error = StatusFailed, err.Error()
			return res, err
		}
		res.Start, res.End = model.FormatDate(start), model.FormatDate(end)
		if req.SinceLast && !start.Before(end) {
			log.Warnf("etl %s: nothing new since %s, skipping", req.Type, res.Start)
			return res, nil
		}
	}

	var runID string
	if r.Ledger != nil {
		id, err := r.Ledger.Start(ctx, string(req.Type), start, end)
		if err != nil {
			res.Status, res.Error = StatusFailed, err.Error()
			return res, err
		}
		runID = id
	}

	err := r.run(ctx, req.Type, start, end, res.RecordsLoaded)
	if err != nil {
		res.Status, res.Error = StatusFailed, err.Error()
		log.WithError(err).Errorf("etl %s failed", req.Type)
	}
	if runID != "" {
		if lerr := r.Ledger.Finish(ctx, runID, res.Status, res.RecordsLoaded, res.Error); lerr != nil {
			log.WithError(lerr).Warn("failed to record etl run")
		}
	}
	return res, err
}

func (r *Runner) run(ctx context.Context, t Type, start, end time.Time, loaded map[string]int) error {
	if t == TypeFull || t == TypeDimensions {
		for _, d := range dimensions {
			n, err := r.loadDimension(ctx, d)
			if err != nil {
				return fmt.Errorf("%s: %w", d.name, err)
			}
			loaded[d.name] = n
		}
	}
	if t == TypeFull || t == TypeProcedures {
		n, err := r.loadFact(ctx, procedureFact, start, end)
		if err != nil {
			return fmt.Errorf("procedures: %w", err)
		}
		loaded[procedureFact.name] = n
	}
	if t == TypeFull || t == TypeMaintenance {
		n, err := r.loadFact(ctx, maintenanceFact, start, end)
		if err != nil {
			return fmt.Errorf("maintenance: %w", err)
		}
		loaded[maintenanceFact.name] = n
	}
	return nil
}
