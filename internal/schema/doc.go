// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0
// no-cloc

// Package schema embeds the operational and warehouse DDL, applies it
// statement by statement and seeds the warehouse calendar dimensions.
package schema
