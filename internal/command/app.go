// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"fmt"
	"os"
	"slices"
	"sort"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/mrdp/mrdp/internal/config"
	"github.com/mrdp/mrdp/internal/meta"
	"github.com/mrdp/mrdp/internal/util"
)

// projectCommands take an optional dir[::env] positional.
var projectCommands = []string{"deploy", "destroy", "stacks"}

// projectArg returns the dir[::env] positional of args, if any. For
// "stacks diff" the positional follows the subcommand.
func projectArg(ns string, args []string) (string, bool) {
	if !slices.Contains(projectCommands, ns) {
		return "", false
	}
	idx := 2
	if ns == "stacks" && len(args) > 2 && args[2] == "diff" {
		idx = 3
	}
	if len(args) > idx && !strings.HasPrefix(args[idx], "-") {
		return args[idx], true
	}
	return "", false
}

func InitApp(ctx context.Context, args []string) (*cli.Command, error) {

	// Save the CWD at startup and then defer restoring it so we're tidy.
	sd, _ := os.Getwd()
	defer func() {
		if err := os.Chdir(sd); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to restore directory: %v\n", err)
		}
	}()

	// The arg[1] immediately following the binary (arg[0]) is the mrdp
	// subcommand and also represents the namespace key to be used when
	// retrieving config values. arg[1] could be -h/--help, so ignore it if it
	// appears to be a flag.
	var ns string
	if len(args) > 1 && !strings.HasPrefix(args[1], "-") {
		ns = args[1]
	}

	// A missing config file is fine; flags and env vars still work.
	cfg, _ := config.Load(ns) //nolint
	meta := meta.Meta{
		Args:        args,
		Config:      cfg,
		Context:     ctx,
		StartingDir: sd,
	}

	if spec, ok := projectArg(ns, args); ok {
		dir, env, err := util.ParseProjectDir(spec)
		if err != nil {
			return nil, fmt.Errorf("failed to parse project dir (%s): %w", spec, err)
		}
		meta.ProjectDir = dir
		meta.Env = env
	} else {
		meta.ProjectDir = sd
	}

	app := &cli.Command{
		Name:  "mrdp",
		Usage: "Medical Robotics Data Platform",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "version",
				Aliases:     []string{"v"},
				Usage:       "mrdp version info",
				HideDefault: true,
			},
		},
	}

	app.Commands = append(app.Commands,
		generateCommandBuilder(meta),
		loadCommandBuilder(meta),
		schemaCommandBuilder(meta),
		deployCommandBuilder(meta),
		destroyCommandBuilder(meta),
		stacksCommandBuilder(meta),
		etlCommandBuilder(meta),
		serveCommandBuilder(meta),
		completionCommandBuilder(meta),
	)

	// Make sure flags are sorted for the --help text.
	var sortFlags func(cmds []*cli.Command)
	sortFlags = func(cmds []*cli.Command) {
		for _, cmd := range cmds {
			sort.Slice(cmd.Flags, func(i, j int) bool {
				return cmd.Flags[i].Names()[0] < cmd.Flags[j].Names()[0]
			})
			sortFlags(cmd.Commands)
		}
	}
	sortFlags(app.Commands)

	return app, nil
}
