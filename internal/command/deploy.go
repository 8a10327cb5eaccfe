// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/mrdp/mrdp/internal/config"
	"github.com/mrdp/mrdp/internal/differ"
	"github.com/mrdp/mrdp/internal/log"
	"github.com/mrdp/mrdp/internal/meta"
	"github.com/mrdp/mrdp/internal/output"
	"github.com/mrdp/mrdp/internal/stack"
)

// DefaultProject names the stacks when --project is not given.
const DefaultProject = "medrobotics"

var errNothingPicked = errors.New("no stacks picked")

// resultRow is one line of deploy and destroy output.
type resultRow struct {
	Component string  `json:"component"`
	Stack     string  `json:"stack"`
	Action    string  `json:"action"`
	Status    string  `json:"status"`
	Elapsed   string  `json:"elapsed"`
	Seconds   float64 `json:"seconds"`
}

// statusRow is one line of stacks output.
type statusRow struct {
	Component string            `json:"component"`
	Stack     string            `json:"stack"`
	Status    string            `json:"status"`
	Reason    string            `json:"reason,omitempty"`
	Updated   *time.Time        `json:"updated,omitempty"`
	Outputs   map[string]string `json:"outputs,omitempty"`
}

// planRow is one line of deploy --dry-run output.
type planRow struct {
	Order      int               `json:"order"`
	Component  string            `json:"component"`
	Stack      string            `json:"stack"`
	Template   string            `json:"template"`
	Parameters map[string]string `json:"parameters"`
}

var (
	resultDefaultAttrs = []string{"component,stack,action,status,elapsed"}
	statusDefaultAttrs = []string{"component,stack,status,updated:updated:T"}
	planDefaultAttrs   = []string{"order,component,stack,template"}
)

func toResultRows(results []stack.Result) []resultRow {
	rows := make([]resultRow, 0, len(results))
	for _, r := range results {
		rows = append(rows, resultRow{
			Component: r.Component,
			Stack:     r.StackName,
			Action:    r.Action,
			Status:    r.Status,
			Elapsed:   r.Elapsed.Round(time.Second).String(),
			Seconds:   r.Elapsed.Seconds(),
		})
	}
	return rows
}

func toStatusRows(statuses []stack.Status) []statusRow {
	rows := make([]statusRow, 0, len(statuses))
	for _, s := range statuses {
		row := statusRow{
			Component: s.Component,
			Stack:     s.StackName,
			Status:    s.Status,
			Reason:    s.Reason,
			Outputs:   s.Outputs,
		}
		if !s.LastUpdated.IsZero() {
			t := s.LastUpdated
			row.Updated = &t
		}
		rows = append(rows, row)
	}
	return rows
}

// projectDir is the positional project directory, or the starting
// directory when none was given.
func projectDir(m meta.Meta) string {
	if m.ProjectDir != "" {
		return m.ProjectDir
	}
	if m.StartingDir != "" {
		return m.StartingDir
	}
	wd, _ := os.Getwd()
	return wd
}

// planFrom builds the stack plan from the plan flags, a "dir::env"
// positional and any deploy.stacks.<component> parameter overrides in the
// config file.
func planFrom(cmd *cli.Command) (stack.Plan, error) {
	m := GetMeta(cmd)

	env := cmd.String("env")
	if m.Env != "" {
		env = m.Env
	}

	dir := cmd.String("template-dir")
	if dir == "" {
		dir = filepath.Join(projectDir(m), "cloudformation")
	}

	compute := cmd.String("compute")
	overrides := map[string]map[string]string{}
	for _, name := range stack.ComponentNames(compute) {
		if ov, err := config.GetStringMap("deploy.stacks." + name); err == nil && len(ov) > 0 {
			overrides[name] = ov
		}
	}

	p, err := stack.BuildPlan(stack.PlanOptions{
		Project:     cmd.String("project"),
		Env:         env,
		Compute:     compute,
		TemplateDir: dir,
		Only:        cmd.StringSlice("only"),
		Overrides:   overrides,
	})
	if err != nil {
		return p, err
	}
	log.Debugf("plan %s/%s: %d stacks from %s", p.Project, p.Env, len(p.Stacks), dir)

	if cmd.Bool("pick") {
		return pickStacks(p)
	}
	return p, nil
}

// pickStacks narrows p to the stacks chosen in the interactive picker.
func pickStacks(p stack.Plan) (stack.Plan, error) {
	items := make([]differ.Item, 0, len(p.Stacks))
	for _, s := range p.Stacks {
		items = append(items, differ.Item{Name: s.Component, Detail: s.StackName})
	}
	chosen, err := differ.Select("Select stacks", items)
	if err != nil {
		return p, err
	}
	if len(chosen) == 0 {
		return p, errNothingPicked
	}
	picked := make([]stack.Stack, 0, len(chosen))
	for _, i := range chosen {
		picked = append(picked, p.Stacks[i])
	}
	p.Stacks = picked
	return p, nil
}

// deployerFrom builds a Deployer from the timing and bucket flags.
func deployerFrom(ctx context.Context, cmd *cli.Command, clients *Clients) (*stack.Deployer, error) {
	cfg, err := clients.Config(ctx)
	if err != nil {
		return nil, err
	}
	cfn, err := clients.CloudFormation(ctx)
	if err != nil {
		return nil, err
	}
	s3, err := clients.S3(ctx)
	if err != nil {
		return nil, err
	}
	return &stack.Deployer{
		CFN:            cfn,
		S3:             s3,
		ArtifactBucket: cmd.String("artifact-bucket"),
		Region:         cfg.Region,
		PollInterval:   cmd.Duration("poll-interval"),
		Timeout:        cmd.Duration("timeout"),
		OutputsTTL:     cmd.Duration("outputs-ttl"),
	}, nil
}

// emitResults renders whatever stacks were attempted before returning the
// run error, so a failed deploy still shows how far it got.
func emitResults(cmd *cli.Command, results []stack.Result, runErr error) error {
	attrs := BuildAttrs(cmd, resultDefaultAttrs...)
	opts := output.OptionsFrom(cmd)
	if runErr == nil {
		opts.Footer = fmt.Sprintf("%d stacks", len(results))
	}
	if err := output.Emit(toResultRows(results), attrs, opts, cmd.Root().Writer); err != nil {
		return err
	}
	return runErr
}

func deployCommandAction(ctx context.Context, cmd *cli.Command) error {
	config.Config.Namespace = "deploy"

	if ShortCircuitTLDR(ctx, cmd, "deploy") {
		return nil
	}
	if DumpSchemaIfRequested(cmd, reflect.TypeOf(resultRow{})) {
		return nil
	}

	p, err := planFrom(cmd)
	if err != nil {
		return err
	}
	if len(p.Stacks) == 0 {
		log.Warnf("no stacks selected")
		return nil
	}

	if cmd.Bool("dry-run") {
		rows := make([]planRow, 0, len(p.Stacks))
		for i, s := range p.Stacks {
			rows = append(rows, planRow{
				Order:      i + 1,
				Component:  s.Component,
				Stack:      s.StackName,
				Template:   s.TemplatePath,
				Parameters: s.Parameters,
			})
		}
		return output.Emit(rows, BuildAttrs(cmd, planDefaultAttrs...), output.OptionsFrom(cmd), cmd.Root().Writer)
	}

	d, err := deployerFrom(ctx, cmd, NewClients(cmd))
	if err != nil {
		return err
	}
	results, err := d.Deploy(ctx, p)
	return emitResults(cmd, results, err)
}

func destroyCommandAction(ctx context.Context, cmd *cli.Command) error {
	config.Config.Namespace = "destroy"

	if ShortCircuitTLDR(ctx, cmd, "destroy") {
		return nil
	}
	if DumpSchemaIfRequested(cmd, reflect.TypeOf(resultRow{})) {
		return nil
	}

	p, err := planFrom(cmd)
	if err != nil {
		return err
	}
	if len(p.Stacks) == 0 {
		log.Warnf("no stacks selected")
		return nil
	}
	if !cmd.Bool("yes") {
		return fmt.Errorf("destroy deletes %d stacks of %s-%s; rerun with --yes to confirm", len(p.Stacks), p.Project, p.Env)
	}

	d, err := deployerFrom(ctx, cmd, NewClients(cmd))
	if err != nil {
		return err
	}
	results, err := d.Destroy(ctx, p)
	return emitResults(cmd, results, err)
}

func stacksCommandAction(ctx context.Context, cmd *cli.Command) error {
	config.Config.Namespace = "stacks"

	clients := NewClients(cmd)
	runner := NewQueryActionRunner(
		"stacks",
		reflect.TypeOf(statusRow{}),
		statusDefaultAttrs,
		func(ctx context.Context, cmd *cli.Command) ([]statusRow, error) {
			p, err := planFrom(cmd)
			if err != nil {
				return nil, err
			}
			d, err := deployerFrom(ctx, cmd, clients)
			if err != nil {
				return nil, err
			}
			statuses, err := d.Status(ctx, p)
			if err != nil {
				return nil, err
			}
			return toStatusRows(statuses), nil
		},
	)
	runner.Footer = func(rows []statusRow) string {
		deployed := 0
		for _, r := range rows {
			if r.Status != stack.NotDeployed {
				deployed++
			}
		}
		return fmt.Sprintf("%d of %d stacks deployed", deployed, len(rows))
	}
	return runner.Run(ctx, cmd)
}

func stacksDiffCommandAction(ctx context.Context, cmd *cli.Command) error {
	config.Config.Namespace = "stacks"

	if ShortCircuitTLDR(ctx, cmd, "stacks-diff") {
		return nil
	}

	p, err := planFrom(cmd)
	if err != nil {
		return err
	}
	d, err := deployerFrom(ctx, cmd, NewClients(cmd))
	if err != nil {
		return err
	}

	w := cmd.Root().Writer
	opts := differ.Options{Ignore: cmd.StringSlice("ignore"), Color: cmd.Bool("color")}
	changed := 0
	for _, s := range p.Stacks {
		fmt.Fprintf(w, "--- %s (%s)\n", s.StackName, s.Component)

		localBody, err := os.ReadFile(s.TemplatePath)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", s.TemplatePath, err)
		}
		local, err := stack.TemplateJSON(localBody)
		if err != nil {
			return fmt.Errorf("%s: %w", s.TemplatePath, err)
		}

		deployedBody, err := d.DeployedTemplate(ctx, s.StackName)
		if err != nil {
			log.Warnf("skipping %s: %v", s.StackName, err)
			fmt.Fprintln(w, stack.NotDeployed)
			continue
		}
		deployed, err := stack.TemplateJSON(deployedBody)
		if err != nil {
			return fmt.Errorf("%s: deployed template: %w", s.StackName, err)
		}

		differs, err := differ.Diff(w, deployed, local, opts)
		if err != nil {
			return err
		}
		if differs {
			changed++
		}
	}
	log.Infof("%d of %d templates differ", changed, len(p.Stacks))
	return nil
}

// planFlags are shared by every command that builds a plan.
func planFlags(ns, path string) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "project",
			Usage:   "project name used in stack names",
			Value:   DefaultProject,
			Sources: Sources(ns, "project", path, "MRDP_PROJECT"),
		},
		&cli.StringFlag{
			Name:    "env",
			Aliases: []string{"e"},
			Usage:   "environment name used in stack names",
			Value:   "dev",
			Sources: Sources(ns, "env", path, "MRDP_ENV"),
		},
		&cli.StringFlag{
			Name:    "compute",
			Usage:   "compute flavour (ecs, eks)",
			Value:   stack.ComputeECS,
			Sources: Sources(ns, "compute", path),
			Validator: func(v string) error {
				return FlagValidators(v, ComputeValidator)
			},
		},
		&cli.StringSliceFlag{
			Name:  "only",
			Usage: "limit the plan to these components",
		},
		&cli.BoolFlag{
			Name:  "pick",
			Usage: "choose the stacks interactively",
		},
		&cli.StringFlag{
			Name:    "template-dir",
			Usage:   "directory of component templates (default <project dir>/cloudformation)",
			Sources: Sources(ns, "template-dir", path),
		},
	}
}

// deployerFlags are the AWS, bucket and timing flags of a Deployer.
func deployerFlags(ns, path string) []cli.Flag {
	flags := []cli.Flag{
		NewBucketFlag("artifact-bucket", "bucket for templates too large to send inline", "MRDP_ARTIFACT_BUCKET", ns, path),
		&cli.DurationFlag{
			Name:    "poll-interval",
			Usage:   "stack status poll interval",
			Value:   stack.DefaultPollInterval,
			Sources: Sources(ns, "poll-interval", path),
		},
		&cli.DurationFlag{
			Name:    "timeout",
			Usage:   "per-stack timeout",
			Value:   stack.DefaultTimeout,
			Sources: Sources(ns, "timeout", path),
		},
		&cli.DurationFlag{
			Name:    "outputs-ttl",
			Usage:   "cache stack outputs locally for this long (0 disables)",
			Value:   5 * time.Minute,
			Sources: Sources(ns, "outputs-ttl", path),
		},
	}
	return append(flags, NewAWSFlags(ns, path)...)
}

func deployCommandBuilder(meta meta.Meta) *cli.Command {
	ns, path := "deploy", meta.Config.Source

	flags := append(planFlags(ns, path), deployerFlags(ns, path)...)
	flags = append(flags, &cli.BoolFlag{
		Name:  "dry-run",
		Usage: "print the plan without touching any stack",
	})

	return (&QueryCommandBuilder{
		Name:      "deploy",
		Usage:     "create or update the platform stacks in order",
		UsageText: "mrdp deploy [dir[::env]] [options]",
		Flags:     flags,
		Action:    deployCommandAction,
		Meta:      meta,
	}).Build()
}

func destroyCommandBuilder(meta meta.Meta) *cli.Command {
	ns, path := "destroy", meta.Config.Source

	flags := append(planFlags(ns, path), deployerFlags(ns, path)...)
	flags = append(flags, &cli.BoolFlag{
		Name:  "yes",
		Usage: "confirm deletion",
	})

	return (&QueryCommandBuilder{
		Name:      "destroy",
		Usage:     "delete the platform stacks in reverse order",
		UsageText: "mrdp destroy [dir[::env]] --yes [options]",
		Flags:     flags,
		Action:    destroyCommandAction,
		Meta:      meta,
	}).Build()
}

func stacksCommandBuilder(meta meta.Meta) *cli.Command {
	ns, path := "stacks", meta.Config.Source

	diffFlags := append(planFlags(ns, path), deployerFlags(ns, path)...)
	diffFlags = append(diffFlags,
		&cli.StringSliceFlag{
			Name:  "ignore",
			Usage: "top-level template keys to leave out of the comparison",
			Value: []string{"Metadata"},
		},
		&cli.BoolFlag{
			Name:    "color",
			Aliases: []string{"c"},
			Usage:   "enable colored diff output",
		},
		newTLDRFlag(),
	)

	return (&QueryCommandBuilder{
		Name:      "stacks",
		Usage:     "show the status of the platform stacks",
		UsageText: "mrdp stacks [dir[::env]] [options]",
		Flags:     append(planFlags(ns, path), deployerFlags(ns, path)...),
		Commands: []*cli.Command{
			{
				Name:      "diff",
				Usage:     "compare local templates with the deployed ones",
				UsageText: "mrdp stacks diff [dir[::env]] [options]",
				Metadata: map[string]any{
					"meta": meta,
				},
				Flags:  diffFlags,
				Action: stacksDiffCommandAction,
			},
		},
		Action: stacksCommandAction,
		Meta:   meta,
	}).Build()
}
