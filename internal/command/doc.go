// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0
// no-cloc

// Package command defines the mrdp command set: sample data generation and
// loading, schema management, CloudFormation stack lifecycle, warehouse ETL
// and the HTTP services. It wires flags, validators, actions and shell
// completion for each subcommand.
package command
