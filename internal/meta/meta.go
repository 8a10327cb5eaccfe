// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package meta

import (
	"context"

	"github.com/mrdp/mrdp/internal/config"
)

// ProjectSpec holds the resolved project directory (where CloudFormation
// templates, SQL and sample data live) and the optional environment override.
type ProjectSpec struct {
	ProjectDir string
	Env        string
}

// Meta contains runtime metadata shared by commands. It carries CLI arguments,
// loaded configuration, context, the resolved project specification, and the
// starting working directory.
type Meta struct {
	Args    []string
	Config  config.Type
	Context context.Context
	ProjectSpec
	StartingDir string
}
