// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package etl

import (
	"slices"
	"strings"
	"time"

	"github.com/mrdp/mrdp/internal/model"
)

// MergePlan is the SCD Type 2 outcome for one dimension.
type MergePlan struct {
	// Rows are the source rows that need a new current version.
	Rows      [][]string
	New       int
	Changed   int
	Unchanged int
}

// planSCD2 compares source rows against the current versions. current maps
// a natural key to its tracked values, in the order of tracked. New keys
// keep their source effective date; keys whose tracked values differ get a
// new version effective today. Duplicate source keys after the first are
// ignored.
func planSCD2(t stagingTable, id string, tracked []string, current map[string][]string, source [][]string, today time.Time) MergePlan {
	idIdx := t.index(id)
	effIdx := t.index("effective_date")
	cols := make([]int, len(tracked))
	for i, c := range tracked {
		cols[i] = t.index(c)
	}

	var p MergePlan
	seen := map[string]bool{}
	for _, row := range source {
		key := row[idIdx]
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true

		cur, ok := current[key]
		if !ok {
			p.New++
			p.Rows = append(p.Rows, row)
			continue
		}
		if sameValues(row, cols, cur) {
			p.Unchanged++
			continue
		}
		p.Changed++
		next := slices.Clone(row)
		if effIdx >= 0 {
			next[effIdx] = model.FormatDate(today)
		}
		p.Rows = append(p.Rows, next)
	}
	return p
}

func sameValues(row []string, cols []int, cur []string) bool {
	if len(cur) != len(cols) {
		return false
	}
	for i, c := range cols {
		if strings.TrimSpace(row[c]) != strings.TrimSpace(cur[i]) {
			return false
		}
	}
	return true
}
