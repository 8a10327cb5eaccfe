// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/mrdp/mrdp/internal/meta"
)

// QueryCommandBuilder constructs the listing commands (stacks, etl history,
// generate, load, ...) in one shape: metadata carrying meta, the command's
// own flags followed by tldr/schema and the global output flags.
type QueryCommandBuilder struct {
	Name      string
	Usage     string
	UsageText string
	Flags     []cli.Flag
	Commands  []*cli.Command
	Action    func(context.Context, *cli.Command) error
	Meta      meta.Meta
	// NoSchema drops --schema for commands whose rows have no fixed type.
	NoSchema bool
}

// Build returns a configured cli.Command from the builder.
func (qcb *QueryCommandBuilder) Build() *cli.Command {
	flags := append([]cli.Flag{}, qcb.Flags...)
	flags = append(flags, newTLDRFlag())
	if !qcb.NoSchema {
		flags = append(flags, newSchemaFlag())
	}
	flags = append(flags, NewGlobalFlags()...)

	return &cli.Command{
		Name:      qcb.Name,
		Usage:     qcb.Usage,
		UsageText: qcb.UsageText,
		Metadata: map[string]any{
			"meta": qcb.Meta,
		},
		Flags:    flags,
		Commands: qcb.Commands,
		Action:   qcb.Action,
	}
}
