// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0
// no-cloc

// Package generator produces a reproducible synthetic surgical robotics
// dataset: robots, maintenance logs, procedures, outcomes as CSV and
// per-procedure telemetry as NDJSON.
package generator
