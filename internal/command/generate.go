// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"

	"github.com/mrdp/mrdp/internal/config"
	"github.com/mrdp/mrdp/internal/generator"
	"github.com/mrdp/mrdp/internal/log"
	"github.com/mrdp/mrdp/internal/meta"
)

var generateDefaultAttrs = []string{"Name:file,Rows:rows:c,Bytes:size:b"}

// generateConfig maps the flags onto a generator.Config.
func generateConfig(cmd *cli.Command) generator.Config {
	cfg := generator.DefaultConfig()
	cfg.Robots = int(cmd.Int("robots"))
	cfg.Facilities = int(cmd.Int("facilities"))
	cfg.Procedures = int(cmd.Int("procedures"))
	cfg.TelemetrySamples = int(cmd.Int("telemetry-samples"))
	cfg.MaintenanceLogs = int(cmd.Int("maintenance-logs"))
	cfg.OutputDir = cmd.String("output-dir")
	if s := cmd.String("start"); s != "" {
		cfg.Start = parseDate(s)
	}
	if s := cmd.String("end"); s != "" {
		cfg.End = parseDate(s)
	}
	if cmd.IsSet("seed") {
		cfg.Seed = cmd.Int64("seed")
	}
	return cfg
}

func generateCommandAction(ctx context.Context, cmd *cli.Command) error {
	config.Config.Namespace = "generate"

	var (
		sum  generator.Summary
		seed int64
	)
	runner := NewQueryActionRunner(
		"generate",
		reflect.TypeOf(generator.FileStat{}),
		generateDefaultAttrs,
		func(ctx context.Context, cmd *cli.Command) ([]generator.FileStat, error) {
			cfg := generateConfig(cmd)
			seed = cfg.Seed
			g, err := generator.New(cfg)
			if err != nil {
				return nil, err
			}
			log.Infof("generating into %s with seed %d", cfg.OutputDir, cfg.Seed)
			sum, err = g.Run(ctx)
			if err != nil {
				return nil, err
			}
			return sum.Files, nil
		},
	)
	runner.Footer = func([]generator.FileStat) string {
		return fmt.Sprintf("total %s in %s (seed %d)", humanize.Bytes(uint64(sum.TotalBytes())), sum.Elapsed.Round(time.Millisecond), seed)
	}
	return runner.Run(ctx, cmd)
}

func generateCommandBuilder(meta meta.Meta) *cli.Command {
	ns, path := "generate", meta.Config.Source
	def := generator.DefaultConfig()
	intFlag := func(name, usage string, value int) *cli.IntFlag {
		return &cli.IntFlag{Name: name, Usage: usage, Value: value, Sources: Sources(ns, name, path)}
	}

	return (&QueryCommandBuilder{
		Name:      "generate",
		Usage:     "generate synthetic surgical robotics data",
		UsageText: "mrdp generate [options]",
		Flags: []cli.Flag{
			intFlag("robots", "number of robots", def.Robots),
			intFlag("facilities", "number of facilities", def.Facilities),
			intFlag("procedures", "number of procedures", def.Procedures),
			intFlag("telemetry-samples", "telemetry samples per procedure", def.TelemetrySamples),
			intFlag("maintenance-logs", "number of maintenance records", def.MaintenanceLogs),
			&cli.StringFlag{
				Name:    "start",
				Usage:   "first procedure date (YYYY-MM-DD)",
				Value:   def.Start.Format(DateLayout),
				Sources: Sources(ns, "start", path),
				Validator: func(v string) error {
					return FlagValidators(v, DateValidator)
				},
			},
			&cli.StringFlag{
				Name:    "end",
				Usage:   "last procedure date (YYYY-MM-DD)",
				Value:   def.End.Format(DateLayout),
				Sources: Sources(ns, "end", path),
				Validator: func(v string) error {
					return FlagValidators(v, DateValidator)
				},
			},
			&cli.StringFlag{
				Name:    "output-dir",
				Aliases: []string{"d"},
				Usage:   "directory for the generated files",
				Value:   def.OutputDir,
				Sources: Sources(ns, "output-dir", path),
			},
			&cli.Int64Flag{
				Name:    "seed",
				Usage:   "random seed; the same seed reproduces the same data",
				Sources: Sources(ns, "seed", path, "MRDP_SEED"),
			},
		},
		Action: generateCommandAction,
		Meta:   meta,
	}).Build()
}
