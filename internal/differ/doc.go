// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0
// no-cloc

// Package differ renders the difference between a deployed CloudFormation
// template and its local source, and provides the terminal picker used to
// choose stacks interactively.
package differ
