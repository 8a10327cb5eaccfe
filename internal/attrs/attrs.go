// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package attrs

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/mrdp/mrdp/internal/log"
)

// timeLayouts are the timestamp shapes found in listing rows: RFC3339 from
// JSON-encoded Go times and the space separated form PostgreSQL and sqlite
// hand back.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

var lengthRe = regexp.MustCompile(`-?\d+`)

// Attr is one column of a listing. Key is a gjson path into each row, so
// nested values such as outputs.VpcId are addressable.
type Attr struct {
	// Row key to extract.
	Key string `yaml:"key" json:"Key"`
	// False when the attr only exists for filtering and sorting.
	Include bool `yaml:"include" json:"Include"`
	// Output key, also the column title for text output.
	OutputKey string `yaml:"outputKey" json:"OutputKey"`
	// Transformation spec to apply to the output value.
	TransformSpec string `yaml:"transformSpec" json:"TransformSpec"`
}

// Transform applies the attribute's transform spec to a value. Numeric specs
// (b for bytes, c for comma grouping) apply to numbers; everything else
// applies to strings. Other types pass through untouched.
func (a *Attr) Transform(value interface{}) interface{} {
	if n, ok := value.(float64); ok {
		return a.transformNumber(n)
	}

	result, ok := value.(string)
	if !ok {
		log.Tracef("passthrough: value=%v", value)
		return value
	}

	// Local time or time ago.
	if strings.ContainsAny(a.TransformSpec, "tT") {
		if ts, ok := parseTime(result); ok {
			local := ts.In(time.Local)
			if strings.Contains(a.TransformSpec, "T") {
				result = humanize.Time(local)
			} else {
				result = local.Format("2006-01-02T15:04:05MST")
			}
			log.Tracef("time: result=%s", result)
		}
	}

	// The last case letter wins so an attr spec can override a global one,
	// e.g. --attrs '*::U,status::l'.
	lastL := strings.LastIndexAny(a.TransformSpec, "lL")
	lastU := strings.LastIndexAny(a.TransformSpec, "uU")
	if lastL > lastU {
		result = strings.ToLower(result)
	} else if lastU > lastL {
		result = strings.ToUpper(result)
	}

	if l, ok := a.length(); ok {
		result = clip(result, l)
	}

	return result
}

func (a *Attr) transformNumber(n float64) interface{} {
	switch {
	case strings.Contains(a.TransformSpec, "b"):
		if n < 0 {
			return n
		}
		return humanize.Bytes(uint64(n))
	case strings.Contains(a.TransformSpec, "c"):
		if n == math.Trunc(n) {
			return humanize.Comma(int64(n))
		}
		return humanize.Commaf(n)
	}
	return n
}

// length returns the last length in the spec, which overrides any earlier
// (global) one.
func (a *Attr) length() (int, bool) {
	if a.TransformSpec == "" {
		return 0, false
	}
	match := lengthRe.FindAllString(a.TransformSpec, -1)
	if len(match) == 0 {
		return 0, false
	}
	l, err := strconv.Atoi(match[len(match)-1])
	if err != nil {
		return 0, false
	}
	return l, true
}

// clip truncates s to l runes. A negative l keeps both ends and elides the
// middle.
func clip(s string, l int) string {
	r := []rune(s)
	abs := l
	if abs < 0 {
		abs = -abs
	}
	if len(r) <= abs {
		return s
	}
	if l >= 0 {
		return string(r[:l])
	}
	keep := abs/2 - 1
	if keep < 1 {
		keep = 1
	}
	return string(r[:keep]) + ".." + string(r[len(r)-keep:])
}

func parseTime(s string) (time.Time, bool) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// AttrList is a collection of Attr used to shape output fields.
type AttrList []Attr

// Parse builds an AttrList from an --attrs style spec. Commands use it for
// their default columns.
func Parse(spec string) AttrList {
	var a AttrList
	if err := a.Set(spec); err != nil {
		log.Errorf("attrs parse: %v", err)
	}
	return a
}

// Set parses each spec from --attrs and merges it into the AttrList. A spec
// is key[:output[:transform]]. A leading ! keeps the key for filtering and
// sorting but hides it from output. The key * carries a global transform.
func (a *AttrList) Set(value string) error {
	if value == "" || value == "*" {
		return nil
	}

	const (
		keyIdx = iota
		outputIdx
		transformIdx
	)

specloop:
	for _, spec := range strings.Split(value, ",") {
		if strings.TrimSpace(spec) == "" {
			continue
		}
		fields := strings.Split(spec, ":")
		if len(fields) > 3 {
			return fmt.Errorf("invalid attr spec %q: too many fields", spec)
		}

		attr := Attr{Include: true}
		attr.Key = strings.TrimSpace(fields[keyIdx])
		if strings.HasPrefix(attr.Key, "!") {
			attr.Include = false
			attr.Key = attr.Key[1:]
		}
		if attr.Key == "" {
			return fmt.Errorf("invalid attr spec %q: empty key", spec)
		}
		if attr.Key == "*" {
			attr.Include = false
		}

		// The output key defaults to the last segment of the row key.
		if len(fields) > outputIdx && strings.TrimSpace(fields[outputIdx]) != "" {
			attr.OutputKey = strings.TrimSpace(fields[outputIdx])
		} else {
			segments := strings.Split(attr.Key, ".")
			attr.OutputKey = segments[len(segments)-1]
		}

		if len(fields) > transformIdx {
			attr.TransformSpec = strings.TrimSpace(fields[transformIdx])
		}
		log.Tracef("attr parsed: key=%s output=%s transform=%s include=%v",
			attr.Key, attr.OutputKey, attr.TransformSpec, attr.Include)

		// Re-specifying a default column updates it in place.
		for i := range *a {
			if (*a)[i].Key == attr.Key || (*a)[i].OutputKey == attr.Key {
				(*a)[i].Include = attr.Include
				(*a)[i].OutputKey = attr.OutputKey
				(*a)[i].TransformSpec = attr.TransformSpec
				continue specloop
			}
		}

		*a = append(*a, attr)
	}

	return nil
}

// SetGlobalTransformSpec prepends the spec of the first * attr onto every
// attr in the list.
func (a *AttrList) SetGlobalTransformSpec() error {
	spec := ""
	for i := range *a {
		if (*a)[i].Key == "*" {
			spec = (*a)[i].TransformSpec
			break
		}
	}
	if spec == "" {
		return nil
	}

	for i := range *a {
		(*a)[i].TransformSpec = spec + "," + (*a)[i].TransformSpec
	}
	log.Debugf("global spec applied: spec=%s", spec)

	return nil
}

// Included returns the attrs that render as columns.
func (a AttrList) Included() AttrList {
	var out AttrList
	for _, attr := range a {
		if attr.Include {
			out = append(out, attr)
		}
	}
	return out
}

// String returns the list in --attrs form.
func (a *AttrList) String() string {
	result := make([]string, 0, len(*a))
	for _, attr := range *a {
		result = append(result, fmt.Sprintf("%s:%s:%s", attr.Key, attr.OutputKey, attr.TransformSpec))
	}
	return strings.Join(result, ",")
}

// Type returns the flag type for use with the flag.Value interface.
func (a *AttrList) Type() string { return "list" }
