// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0
// no-cloc

// Package attrs parses --attrs column specs and applies their value
// transforms (local time, time ago, case, length, bytes and comma grouping).
package attrs
