// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package etl

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/robfig/cron"
)

// ParseSchedule accepts a standard five-field cron spec or a descriptor
// such as @daily or @every 6h.
func ParseSchedule(spec string) (cron.Schedule, error) {
	s, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return s, nil
}

// Schedule runs a full ETL followed by a telemetry batch every time spec
// fires, until ctx is cancelled. A tick that arrives while the previous
// pass is still running is skipped.
func (r *Runner) Schedule(ctx context.Context, spec string, req Request, treq TelemetryRequest) error {
	sched, err := ParseSchedule(spec)
	if err != nil {
		return err
	}

	var mu sync.Mutex
	c := cron.New()
	c.Schedule(sched, cron.FuncJob(func() {
		if !mu.TryLock() {
			log.Warn("previous etl pass still running, skipping")
			return
		}
		defer mu.Unlock()
		r.pass(ctx, req, treq)
		log.Infof("next etl pass at %s", sched.Next(time.Now()).Format(time.RFC3339))
	}))

	log.Infof("etl scheduled %q, first pass at %s", spec, sched.Next(time.Now()).Format(time.RFC3339))
	c.Start()
	<-ctx.Done()
	c.Stop()

	// Wait for an in-flight pass to observe cancellation.
	mu.Lock()
	defer mu.Unlock()
	return nil
}

// pass runs one scheduled iteration. Failures are logged and recorded in
// the ledger; a failed table load does not hold back telemetry and the
// schedule keeps going.
func (r *Runner) pass(ctx context.Context, req Request, treq TelemetryRequest) {
	if ctx.Err() != nil {
		return
	}
	if res, err := r.Run(ctx, req); err != nil {
		log.WithError(err).Errorf("scheduled etl %s failed", res.Type)
	} else {
		log.Infof("etl %s loaded %d records", res.Type, res.Total())
	}

	tres, err := r.Telemetry(ctx, treq)
	if err != nil {
		log.WithError(err).Error("scheduled telemetry etl failed")
		return
	}
	log.Infof("telemetry loaded %d of %d records", tres.RecordsLoaded, tres.RecordsParsed)
}
