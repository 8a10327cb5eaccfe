// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0
// no-cloc

// Package output renders command rows (stacks, generated files, loaded
// tables, ETL runs) as text tables, json, yaml or raw json after the
// --filter and --sort flags have been applied.
package output
