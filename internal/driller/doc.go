// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0
// no-cloc

// Package driller resolves dotted attribute paths against listing rows so
// nested values, like a stack's outputs, can be addressed from --attrs.
package driller
