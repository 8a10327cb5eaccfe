// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package etl

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/tidwall/gjson"

	"github.com/mrdp/mrdp/internal/model"
)

var telemetryStaging = stagingTable{
	name: "staging_telemetry",
	columns: []column{
		{"procedure_id", "VARCHAR(100)"},
		{"timestamp_key", "INTEGER"},
		{"sample_timestamp", "TIMESTAMP"},
		{"arm_position_x", "DECIMAL(10,4)"},
		{"arm_position_y", "DECIMAL(10,4)"},
		{"arm_position_z", "DECIMAL(10,4)"},
		{"arm_rotation_x", "DECIMAL(10,4)"},
		{"arm_rotation_y", "DECIMAL(10,4)"},
		{"arm_rotation_z", "DECIMAL(10,4)"},
		{"force_feedback", "DECIMAL(10,4)"},
		{"tool_type", "VARCHAR(100)"},
		{"tool_active", "BOOLEAN"},
		{"camera_zoom", "DECIMAL(5,2)"},
		{"lighting_level", "INTEGER"},
		{"system_temperature", "DECIMAL(5,2)"},
		{"motor_current", "DECIMAL(8,4)"},
		{"network_latency_ms", "INTEGER"},
		{"video_fps", "INTEGER"},
	},
	copyOpts: []string{"TIMEFORMAT 'auto'"},
}

var errNotJSON = errors.New("body is not JSON, a JSON array or NDJSON")

// decodeBody returns the telemetry records of one object. Bodies may be a
// single object, an array of objects or newline-delimited objects, and may
// be gzip compressed.
func decodeBody(b []byte) ([]gjson.Result, error) {
	if len(b) > 2 && b[0] == 0x1f && b[1] == 0x8b {
		zr, err := gzip.NewReader(bytes.NewReader(b))
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		if b, err = io.ReadAll(zr); err != nil {
			return nil, err
		}
	}

	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil, nil
	}
	if gjson.ValidBytes(b) {
		doc := gjson.ParseBytes(b)
		switch {
		case doc.IsArray():
			var out []gjson.Result
			for _, r := range doc.Array() {
				if r.IsObject() {
					out = append(out, r)
				}
			}
			return out, nil
		case doc.IsObject():
			return []gjson.Result{doc}, nil
		}
		return nil, errNotJSON
	}

	var out []gjson.Result
	sc := bufio.NewScanner(bytes.NewReader(b))
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 || !gjson.ValidBytes(line) {
			continue
		}
		if r := gjson.ParseBytes(line); r.IsObject() {
			out = append(out, r)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, errNotJSON
	}
	return out, nil
}

// transformRecord flattens one telemetry record into staging column order.
// Records without a procedure or a parseable timestamp are dropped.
//
// Nested records carry arm_position.{x,y,z}, arm_rotation.{x,y,z},
// force_feedback, tool_active and system_metrics.*. Flat records, as
// written by the generator, carry arm_position_{x,y,z}, a single
// arm_rotation angle, force_feedback_{x,y,z} and grip_pressure; the angle
// maps to the z rotation, the force components to their magnitude and any
// grip pressure marks the tool active.
func transformRecord(rec gjson.Result) ([]string, bool) {
	procedureID := strings.TrimSpace(rec.Get("procedure_id").String())
	rawTS := rec.Get("timestamp")
	if !rawTS.Exists() {
		rawTS = rec.Get("sample_timestamp")
	}
	if procedureID == "" || rawTS.Type != gjson.String {
		return nil, false
	}
	ts, err := model.ParseTimestamp(rawTS.String())
	if err != nil {
		return nil, false
	}
	ts = ts.UTC()

	rotZ := number(rec, "arm_rotation.z")
	if r := rec.Get("arm_rotation"); r.Type == gjson.Number {
		rotZ = r.Raw
	}

	force := number(rec, "force_feedback")
	if fx, fy, fz := rec.Get("force_feedback_x"), rec.Get("force_feedback_y"), rec.Get("force_feedback_z"); force == "" && (fx.Exists() || fy.Exists() || fz.Exists()) {
		force = model.FormatFloat(model.Round(math.Sqrt(fx.Float()*fx.Float()+fy.Float()*fy.Float()+fz.Float()*fz.Float()), 4))
	}

	active := false
	if a := rec.Get("tool_active"); a.Exists() {
		active = a.Bool()
	} else {
		active = rec.Get("grip_pressure").Float() > 0
	}

	return []string{
		procedureID,
		strconv.Itoa(ts.Hour()*10000 + ts.Minute()*100),
		model.FormatMillis(ts),
		number(rec, "arm_position.x", "arm_position_x"),
		number(rec, "arm_position.y", "arm_position_y"),
		number(rec, "arm_position.z", "arm_position_z"),
		number(rec, "arm_rotation.x", "arm_rotation_x"),
		number(rec, "arm_rotation.y", "arm_rotation_y"),
		rotZ,
		force,
		rec.Get("tool_type").String(),
		strconv.FormatBool(active),
		number(rec, "camera_zoom"),
		integer(rec, "lighting_level"),
		number(rec, "system_metrics.temperature", "system_temperature"),
		number(rec, "system_metrics.motor_current", "motor_current"),
		integer(rec, "system_metrics.network_latency_ms", "network_latency_ms"),
		integer(rec, "system_metrics.video_fps", "video_fps"),
	}, true
}

// number returns the first numeric value found at paths as text, or "".
func number(rec gjson.Result, paths ...string) string {
	for _, p := range paths {
		v := rec.Get(p)
		switch v.Type {
		case gjson.Number:
			return v.Raw
		case gjson.String:
			if _, err := strconv.ParseFloat(v.Str, 64); err == nil {
				return v.Str
			}
		}
	}
	return ""
}

// integer is number rounded for INTEGER columns.
func integer(rec gjson.Result, paths ...string) string {
	s := number(rec, paths...)
	if s == "" {
		return ""
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return ""
	}
	return strconv.FormatInt(int64(math.Round(f)), 10)
}
