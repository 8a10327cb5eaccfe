// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"fmt"
	"reflect"

	"github.com/urfave/cli/v3"

	"github.com/mrdp/mrdp/internal/config"
	"github.com/mrdp/mrdp/internal/meta"
	"github.com/mrdp/mrdp/internal/schema"
)

// schemaRow reports what one schema subcommand changed.
type schemaRow struct {
	Target string `json:"target"`
	Table  string `json:"table,omitempty"`
	Count  int    `json:"count"`
}

var schemaDefaultAttrs = []string{"target,table,count:count:c"}

// endpointFor maps a target onto the database that holds it.
func endpointFor(t schema.Target) endpoint {
	if t == schema.Warehouse {
		return redshiftEndpoint
	}
	return rdsEndpoint
}

func schemaApplyAction(ctx context.Context, cmd *cli.Command) error {
	config.Config.Namespace = "schema"

	clients := NewClients(cmd)
	return NewQueryActionRunner(
		"schema-apply",
		reflect.TypeOf(schemaRow{}),
		schemaDefaultAttrs,
		func(ctx context.Context, cmd *cli.Command) ([]schemaRow, error) {
			target, err := schema.ParseTarget(cmd.String("target"))
			if err != nil {
				return nil, err
			}
			conn, err := clients.OpenDB(ctx, endpointFor(target))
			if err != nil {
				return nil, err
			}
			defer conn.Close()

			n, err := schema.Apply(ctx, conn, target)
			if err != nil {
				return nil, err
			}
			return []schemaRow{{Target: string(target), Count: n}}, nil
		},
	).Run(ctx, cmd)
}

func schemaSeedCalendarAction(ctx context.Context, cmd *cli.Command) error {
	config.Config.Namespace = "schema"

	clients := NewClients(cmd)
	return NewQueryActionRunner(
		"schema-seed-calendar",
		reflect.TypeOf(schemaRow{}),
		schemaDefaultAttrs,
		func(ctx context.Context, cmd *cli.Command) ([]schemaRow, error) {
			from, to := parseDate(cmd.String("from")), parseDate(cmd.String("to"))
			if to.Before(from) {
				return nil, fmt.Errorf("--to %s is before --from %s", cmd.String("to"), cmd.String("from"))
			}
			conn, err := clients.OpenDB(ctx, redshiftEndpoint)
			if err != nil {
				return nil, err
			}
			defer conn.Close()

			dates, times, err := schema.SeedCalendar(ctx, conn, from, to)
			if err != nil {
				return nil, err
			}
			target := string(schema.Warehouse)
			return []schemaRow{
				{Target: target, Table: "dim_date", Count: dates},
				{Target: target, Table: "dim_time", Count: times},
			}, nil
		},
	).Run(ctx, cmd)
}

func schemaCommandBuilder(meta meta.Meta) *cli.Command {
	ns, path := "schema", meta.Config.Source

	applyFlags := []cli.Flag{
		&cli.StringFlag{
			Name:     "target",
			Usage:    "schema to apply (oltp, warehouse)",
			Required: true,
			Sources:  Sources(ns, "target", path),
			Validator: func(v string) error {
				return FlagValidators(v, TargetValidator)
			},
		},
	}
	applyFlags = append(applyFlags, rdsEndpoint.NewDBFlags(ns, path)...)
	applyFlags = append(applyFlags, redshiftEndpoint.NewDBFlags(ns, path)...)
	applyFlags = append(applyFlags, NewAWSFlags(ns, path)...)

	dateFlag := func(name, usage, value string) *cli.StringFlag {
		return &cli.StringFlag{
			Name:    name,
			Usage:   usage,
			Value:   value,
			Sources: Sources(ns, name, path),
			Validator: func(v string) error {
				return FlagValidators(v, DateValidator)
			},
		}
	}
	seedFlags := []cli.Flag{
		dateFlag("from", "first calendar date (YYYY-MM-DD)", "2020-01-01"),
		dateFlag("to", "last calendar date (YYYY-MM-DD)", "2030-12-31"),
	}
	seedFlags = append(seedFlags, redshiftEndpoint.NewDBFlags(ns, path)...)
	seedFlags = append(seedFlags, NewAWSFlags(ns, path)...)

	return &cli.Command{
		Name:      "schema",
		Usage:     "manage database schemas",
		UsageText: "mrdp schema <subcommand> [options]",
		Metadata: map[string]any{
			"meta": meta,
		},
		Commands: []*cli.Command{
			(&QueryCommandBuilder{
				Name:      "apply",
				Usage:     "create the operational or warehouse schema",
				UsageText: "mrdp schema apply --target oltp|warehouse [options]",
				Flags:     applyFlags,
				Action:    schemaApplyAction,
				Meta:      meta,
				NoSchema:  true,
			}).Build(),
			(&QueryCommandBuilder{
				Name:      "seed-calendar",
				Usage:     "populate the warehouse date and time dimensions",
				UsageText: "mrdp schema seed-calendar [--from DATE] [--to DATE] [options]",
				Flags:     seedFlags,
				Action:    schemaSeedCalendarAction,
				Meta:      meta,
				NoSchema:  true,
			}).Build(),
		},
	}
}
