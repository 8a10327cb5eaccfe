// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os/signal"
	"reflect"
	"sort"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/mrdp/mrdp/internal/config"
	"github.com/mrdp/mrdp/internal/etl"
	"github.com/mrdp/mrdp/internal/log"
	"github.com/mrdp/mrdp/internal/meta"
	"github.com/mrdp/mrdp/internal/output"
)

// DefaultLedgerDir holds the run ledger when --ledger-dir is not given.
const DefaultLedgerDir = ".mrdp"

// loadedRow is one table of an etl run.
type loadedRow struct {
	Table   string `json:"table"`
	Records int    `json:"records"`
}

var (
	etlRunDefaultAttrs       = []string{"table,records:records:c"}
	etlTelemetryDefaultAttrs = []string{"batch_date:batch,status,files_found:found,files_processed:processed,files_failed:failed,records_parsed:parsed:c,records_loaded:loaded:c"}
	etlHistoryDefaultAttrs   = []string{"id:id:8,type,status,window_start:from,window_end:to,started_at:started:t,records"}
)

// etlSession owns the connections one etl command opens.
type etlSession struct {
	runner *etl.Runner
	conns  []*sql.DB
}

func (s *etlSession) Close() {
	for _, c := range s.conns {
		_ = c.Close()
	}
	if s.runner.Ledger != nil {
		_ = s.runner.Ledger.Close()
	}
}

// openETL builds a Runner against the warehouse and, when withSource is
// set, the operational database.
func openETL(ctx context.Context, cmd *cli.Command, withSource bool) (*etlSession, error) {
	clients := NewClients(cmd)
	s := &etlSession{runner: &etl.Runner{
		Config: etl.Config{
			StagingBucket: cmd.String("staging-bucket"),
			RawBucket:     cmd.String("raw-bucket"),
			IAMRole:       cmd.String("iam-role"),
			Compress:      cmd.Bool("gzip"),
			MaxFiles:      int(cmd.Int("max-files")),
			Workers:       int(cmd.Int("workers")),
		},
	}}

	ledger, err := etl.OpenLedger(cmd.String("ledger-dir"))
	if err != nil {
		return nil, err
	}
	s.runner.Ledger = ledger

	wh, err := clients.OpenDB(ctx, redshiftEndpoint)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.conns = append(s.conns, wh)
	s.runner.Warehouse = wh

	if withSource {
		src, err := clients.OpenDB(ctx, rdsEndpoint)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.conns = append(s.conns, src)
		s.runner.Source = src
	}

	s3, err := clients.S3(ctx)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.runner.S3 = s3
	return s, nil
}

// etlRequest reads the run flags.
func etlRequest(cmd *cli.Command) (etl.Request, error) {
	t, err := etl.ParseType(cmd.String("type"))
	if err != nil {
		return etl.Request{}, err
	}
	return etl.Request{
		Type:      t,
		Start:     parseDate(cmd.String("start")),
		End:       parseDate(cmd.String("end")),
		SinceLast: cmd.Bool("since-last"),
	}, nil
}

func telemetryRequest(cmd *cli.Command) etl.TelemetryRequest {
	return etl.TelemetryRequest{
		Prefix:    cmd.String("prefix"),
		BatchDate: cmd.String("batch-date"),
	}
}

// emitETLResult writes the full result document for json and raw output
// and a per-table listing otherwise.
func emitETLResult(cmd *cli.Command, res etl.Result) error {
	opts := output.OptionsFrom(cmd)
	w := cmd.Root().Writer

	switch opts.Output {
	case output.FormatRaw:
		b, err := json.Marshal(res)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(b))
		return err
	case output.FormatJSON:
		b, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(b))
		return err
	}

	rows := make([]loadedRow, 0, len(res.RecordsLoaded))
	for table, n := range res.RecordsLoaded {
		rows = append(rows, loadedRow{Table: table, Records: n})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Table < rows[j].Table })

	opts.Footer = fmt.Sprintf("%s %s: %d records", res.Type, res.Status, res.Total())
	if res.Start != "" {
		opts.Footer += fmt.Sprintf(" for %s..%s", res.Start, res.End)
	}
	return output.Emit(rows, BuildAttrs(cmd, etlRunDefaultAttrs...), opts, w)
}

func etlRunAction(ctx context.Context, cmd *cli.Command) error {
	config.Config.Namespace = "etl"

	if ShortCircuitTLDR(ctx, cmd, "etl-run") {
		return nil
	}
	if DumpSchemaIfRequested(cmd, reflect.TypeOf(loadedRow{})) {
		return nil
	}

	req, err := etlRequest(cmd)
	if err != nil {
		return err
	}
	s, err := openETL(ctx, cmd, true)
	if err != nil {
		return err
	}
	defer s.Close()

	res, runErr := s.runner.Run(ctx, req)
	if err := emitETLResult(cmd, res); err != nil {
		return err
	}
	return runErr
}

func etlTelemetryAction(ctx context.Context, cmd *cli.Command) error {
	config.Config.Namespace = "etl"

	var runErr error
	err := NewQueryActionRunner(
		"etl-telemetry",
		reflect.TypeOf(etl.TelemetryResult{}),
		etlTelemetryDefaultAttrs,
		func(ctx context.Context, cmd *cli.Command) ([]etl.TelemetryResult, error) {
			s, err := openETL(ctx, cmd, false)
			if err != nil {
				return nil, err
			}
			defer s.Close()

			res, err := s.runner.Telemetry(ctx, telemetryRequest(cmd))
			runErr = err
			return []etl.TelemetryResult{res}, nil
		},
	).Run(ctx, cmd)
	if err != nil {
		return err
	}
	return runErr
}

func etlScheduleAction(ctx context.Context, cmd *cli.Command) error {
	config.Config.Namespace = "etl"

	if ShortCircuitTLDR(ctx, cmd, "etl-schedule") {
		return nil
	}

	spec := cmd.String("cron")
	if _, err := etl.ParseSchedule(spec); err != nil {
		return err
	}
	req, err := etlRequest(cmd)
	if err != nil {
		return err
	}
	s, err := openETL(ctx, cmd, true)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = s.runner.Schedule(ctx, spec, req, telemetryRequest(cmd))
	log.Infof("etl schedule stopped")
	return err
}

func etlHistoryAction(ctx context.Context, cmd *cli.Command) error {
	config.Config.Namespace = "etl"

	return NewQueryActionRunner(
		"etl-history",
		reflect.TypeOf(etl.Run{}),
		etlHistoryDefaultAttrs,
		func(ctx context.Context, cmd *cli.Command) ([]etl.Run, error) {
			ledger, err := etl.OpenLedger(cmd.String("ledger-dir"))
			if err != nil {
				return nil, err
			}
			defer ledger.Close()
			return ledger.History(ctx, int(cmd.Int("limit")))
		},
	).Run(ctx, cmd)
}

func ledgerFlag(ns, path string) cli.Flag {
	return &cli.StringFlag{
		Name:    "ledger-dir",
		Usage:   "directory of the local run ledger",
		Value:   DefaultLedgerDir,
		Sources: Sources(ns, "ledger-dir", path, "MRDP_LEDGER_DIR"),
	}
}

// etlSharedFlags are the bucket, role and warehouse flags every loading
// subcommand needs.
func etlSharedFlags(ns, path string) []cli.Flag {
	flags := []cli.Flag{
		NewBucketFlag("staging-bucket", "bucket for staged COPY files", "S3_STAGING_BUCKET", ns, path),
		NewBucketFlag("raw-bucket", "bucket holding raw telemetry", "S3_RAW_BUCKET", ns, path),
		&cli.StringFlag{
			Name:    "iam-role",
			Usage:   "IAM role ARN Redshift assumes for COPY",
			Sources: Sources(ns, "iam-role", path, "REDSHIFT_IAM_ROLE"),
		},
		&cli.BoolFlag{
			Name:    "gzip",
			Usage:   "gzip staged files",
			Value:   true,
			Sources: Sources(ns, "gzip", path),
		},
		ledgerFlag(ns, path),
	}
	flags = append(flags, redshiftEndpoint.NewDBFlags(ns, path)...)
	return append(flags, NewAWSFlags(ns, path)...)
}

func etlRunFlags(ns, path string) []cli.Flag {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:    "type",
			Usage:   "what to load (full, dimensions, procedures, maintenance)",
			Value:   string(etl.TypeFull),
			Sources: Sources(ns, "type", path, "ETL_TYPE"),
			Validator: func(v string) error {
				return FlagValidators(v, ETLTypeValidator)
			},
		},
		&cli.BoolFlag{
			Name:  "since-last",
			Usage: "start the window where the last successful run ended",
		},
	}
	return append(flags, rdsEndpoint.NewDBFlags(ns, path)...)
}

// etlWindowFlags fix the fact window of a single run.
func etlWindowFlags() []cli.Flag {
	dateFlag := func(name, usage string) *cli.StringFlag {
		return &cli.StringFlag{
			Name:  name,
			Usage: usage,
			Validator: func(v string) error {
				return FlagValidators(v, DateValidator)
			},
		}
	}
	return []cli.Flag{
		dateFlag("start", "first day of the fact window (default yesterday)"),
		dateFlag("end", "day after the fact window (default today)"),
	}
}

func etlTelemetryFlags(ns, path string) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "prefix",
			Usage:   "raw bucket prefix to scan",
			Value:   etl.DefaultPrefix,
			Sources: Sources(ns, "prefix", path),
		},
		&cli.IntFlag{
			Name:    "max-files",
			Usage:   "most telemetry objects read per batch",
			Value:   etl.DefaultMaxFiles,
			Sources: Sources(ns, "max-files", path),
		},
		&cli.IntFlag{
			Name:    "workers",
			Usage:   "concurrent telemetry downloads",
			Value:   etl.DefaultWorkers,
			Sources: Sources(ns, "workers", path),
		},
	}
}

func etlCommandBuilder(meta meta.Meta) *cli.Command {
	ns, path := "etl", meta.Config.Source

	runFlags := append(etlRunFlags(ns, path), etlWindowFlags()...)
	runFlags = append(runFlags, etlSharedFlags(ns, path)...)

	telemetryFlags := append(etlTelemetryFlags(ns, path), &cli.StringFlag{
		Name:  "batch-date",
		Usage: "staging folder name, YYYYMMDD (default today)",
	})
	telemetryFlags = append(telemetryFlags, etlSharedFlags(ns, path)...)

	scheduleFlags := append(etlRunFlags(ns, path), etlTelemetryFlags(ns, path)...)
	scheduleFlags = append(scheduleFlags, etlSharedFlags(ns, path)...)
	scheduleFlags = append(scheduleFlags,
		&cli.StringFlag{
			Name:     "cron",
			Usage:    "cron spec or descriptor such as @daily",
			Required: true,
			Sources:  Sources(ns, "cron", path, "ETL_SCHEDULE"),
		},
		newTLDRFlag(),
	)

	historyFlags := []cli.Flag{
		ledgerFlag(ns, path),
		&cli.IntFlag{
			Name:  "limit",
			Usage: "most runs listed (0 for all)",
			Value: 20,
		},
	}

	return &cli.Command{
		Name:      "etl",
		Usage:     "move data from the operational database and S3 into the warehouse",
		UsageText: "mrdp etl <subcommand> [options]",
		Metadata: map[string]any{
			"meta": meta,
		},
		Commands: []*cli.Command{
			(&QueryCommandBuilder{
				Name:      "run",
				Usage:     "load dimensions and facts",
				UsageText: "mrdp etl run [--type TYPE] [--start DATE] [--end DATE] [options]",
				Flags:     runFlags,
				Action:    etlRunAction,
				Meta:      meta,
			}).Build(),
			(&QueryCommandBuilder{
				Name:      "telemetry",
				Usage:     "load a batch of raw telemetry objects",
				UsageText: "mrdp etl telemetry [--prefix PREFIX] [options]",
				Flags:     telemetryFlags,
				Action:    etlTelemetryAction,
				Meta:      meta,
			}).Build(),
			{
				Name:      "schedule",
				Usage:     "run the full etl and a telemetry batch on a schedule",
				UsageText: "mrdp etl schedule --cron SPEC [options]",
				Metadata: map[string]any{
					"meta": meta,
				},
				Flags:  scheduleFlags,
				Action: etlScheduleAction,
			},
			(&QueryCommandBuilder{
				Name:      "history",
				Usage:     "list recorded etl runs",
				UsageText: "mrdp etl history [--limit N] [options]",
				Flags:     historyFlags,
				Action:    etlHistoryAction,
				Meta:      meta,
			}).Build(),
		},
	}
}
