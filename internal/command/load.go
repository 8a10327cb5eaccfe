// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/mrdp/mrdp/internal/aws"
	"github.com/mrdp/mrdp/internal/config"
	"github.com/mrdp/mrdp/internal/generator"
	"github.com/mrdp/mrdp/internal/loader"
	"github.com/mrdp/mrdp/internal/log"
	"github.com/mrdp/mrdp/internal/meta"
)

var loadDefaultAttrs = []string{"Table:table,Rows:rows:c"}

func loadCommandAction(ctx context.Context, cmd *cli.Command) error {
	config.Config.Namespace = "load"

	clients := NewClients(cmd)
	var uploaded string

	runner := NewQueryActionRunner(
		"load",
		reflect.TypeOf(loader.Result{}),
		loadDefaultAttrs,
		func(ctx context.Context, cmd *cli.Command) ([]loader.Result, error) {
			conn, err := clients.OpenDB(ctx, rdsEndpoint)
			if err != nil {
				return nil, err
			}
			defer conn.Close()

			opts := loader.Options{
				Dir:       cmd.String("dir"),
				Telemetry: cmd.Bool("telemetry"),
				Truncate:  cmd.Bool("truncate"),
			}
			log.Debugf("loading %s (telemetry=%t truncate=%t)", opts.Dir, opts.Telemetry, opts.Truncate)

			results, err := loader.Load(ctx, conn, opts)
			if err != nil {
				return results, err
			}

			if bucket := cmd.String("raw-bucket"); bucket != "" && cmd.Bool("upload") {
				s3, err := clients.S3(ctx)
				if err != nil {
					return results, err
				}
				key, err := loader.UploadTelemetry(ctx, s3, bucket, opts.Dir, cmd.Bool("gzip"), time.Now())
				if err != nil {
					return results, fmt.Errorf("telemetry upload failed: %w", err)
				}
				uploaded = aws.S3URI(bucket, key)
			}
			return results, nil
		},
	)
	runner.Footer = func(results []loader.Result) string {
		total := 0
		for _, r := range results {
			total += r.Rows
		}
		footer := fmt.Sprintf("%d tables, %d rows", len(results), total)
		if uploaded != "" {
			footer += ", telemetry at " + uploaded
		}
		return footer
	}
	return runner.Run(ctx, cmd)
}

func loadCommandBuilder(meta meta.Meta) *cli.Command {
	ns, path := "load", meta.Config.Source

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:    "dir",
			Aliases: []string{"d"},
			Usage:   "directory holding the generated files",
			Value:   generator.DefaultConfig().OutputDir,
			Sources: Sources(ns, "dir", path),
		},
		&cli.BoolFlag{
			Name:    "telemetry",
			Usage:   "also copy telemetry into procedure_telemetry",
			Sources: Sources(ns, "telemetry", path),
		},
		&cli.BoolFlag{
			Name:  "truncate",
			Usage: "empty the tables before loading",
		},
		&cli.BoolFlag{
			Name:    "upload",
			Usage:   "upload the telemetry file to the raw bucket",
			Sources: Sources(ns, "upload", path),
		},
		NewBucketFlag("raw-bucket", "raw telemetry bucket", "S3_RAW_BUCKET", ns, path),
		&cli.BoolFlag{
			Name:    "gzip",
			Usage:   "gzip the uploaded telemetry",
			Sources: Sources(ns, "gzip", path),
		},
	}
	flags = append(flags, rdsEndpoint.NewDBFlags(ns, path)...)
	flags = append(flags, NewAWSFlags(ns, path)...)

	return (&QueryCommandBuilder{
		Name:      "load",
		Usage:     "load generated data into the operational database",
		UsageText: "mrdp load [options]",
		Flags:     flags,
		Action:    loadCommandAction,
		Meta:      meta,
	}).Build()
}
