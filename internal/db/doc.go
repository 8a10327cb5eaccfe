// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0
// no-cloc

// Package db opens PostgreSQL and Redshift connections through lib/pq,
// resolves passwords from Secrets Manager, wraps queryers and execers with
// debug logging and scans result sets into generic rows.
package db
