// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package driller

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

var segmentRe = regexp.MustCompile(`^([^.\[\]]+)(\[(\d+|\*)?\])?$`)

// Driller walks a dotted path through a JSON document. A segment may carry
// an index (records[2]); an unindexed single-element array collapses to its
// element and any other array is returned whole. A malformed segment or an
// out of range index yields an empty result.
func Driller(jsonData string, path string) gjson.Result {
	current := gjson.Parse(jsonData)
	if path == "" {
		return current
	}

	for _, p := range strings.Split(path, ".") {
		m := segmentRe.FindStringSubmatch(p)
		if m == nil {
			return gjson.Result{}
		}

		val := current.Get(m[1])
		if val.IsArray() {
			arr := val.Array()
			switch {
			case m[3] != "" && m[3] != "*":
				i, err := strconv.Atoi(m[3])
				if err != nil || i >= len(arr) {
					return gjson.Result{}
				}
				val = arr[i]
			case len(arr) == 1:
				val = arr[0]
			}
		}

		current = val
	}

	return current
}
