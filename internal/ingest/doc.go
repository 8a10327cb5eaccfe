// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0
// no-cloc

// Package ingest is the write-side service. Telemetry and batches are
// stored as raw JSON objects in the raw bucket for the telemetry ETL;
// procedures are upserted into the OLTP database.
package ingest
