// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0
// no-cloc

// Package model defines the operational records of the surgical robotics
// platform as they appear in the OLTP tables, the generated CSV files and the
// telemetry NDJSON stream.
package model
