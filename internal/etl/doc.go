// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0
// no-cloc

// Package etl moves operational data into the warehouse.
//
// Dimensions (facilities, surgeons, robots) are versioned SCD Type 2: the
// merge plan is computed here by comparing the tracked attributes of each
// source row with the current warehouse version, and only rows that need a
// new version are staged. Facts (procedures, maintenance) are appended for
// a time window and skip rows that already exist. Telemetry is read from
// raw JSON objects in S3.
//
// Every load stages pipe-delimited text in S3 and runs COPY into a session
// temp table followed by the merge, all inside one warehouse transaction.
package etl
