// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0
// no-cloc

// Package loader bulk loads generated sample data into the operational
// database with COPY FROM STDIN and uploads the raw telemetry stream to S3.
package loader
