// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0
// no-cloc

// Package filters applies --filter expressions to listing rows.
//
// An expression is key, operator and target, for example status@ROLLBACK.
// Operators:
//
//   - = : equal (numeric for numbers)
//   - ~ : equal ignoring case
//   - ^ : prefix
//   - < : less than (numeric for numbers)
//   - > : greater than (numeric for numbers)
//   - @ : contains; list element or map key for composite values
//   - / : regular expression
//
// Any operator may be negated with a leading !, as in status!=failed.
// Expressions are comma separated unless MRDP_FILTER_DELIM names another
// delimiter. Keys match an attr's output key first and otherwise address the
// row directly, so hidden columns can still be filtered on. A row is kept
// only when it passes every expression.
package filters
