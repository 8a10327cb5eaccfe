// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0
// no-cloc

// Package api is the read-only query service over the OLTP database:
// robots, procedures, outcomes and a few analytics views.
package api
