// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package output

import (
	"fmt"
	"io"
	"os"
	"reflect"
	"sort"
	"strings"
	"time"
)

// maxSchemaDepth limits how far nested structs are expanded.
const maxSchemaDepth = 2

var timeType = reflect.TypeOf(time.Time{})

// DumpSchema writes the sorted --attrs keys available for rows of typ, which
// must be a struct (or pointer to one) encoded with json tags.
func DumpSchema(typ reflect.Type, w io.Writer) {
	if w == nil {
		w = os.Stdout
	}

	for typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	if typ.Kind() != reflect.Struct {
		fmt.Fprintf(w, "no schema for %s\n", typ)
		return
	}

	fmt.Fprintln(w, "Row keys available to the --attrs, --filter and --sort flags.")
	fmt.Fprintln(w, "")

	keys := schemaKeys("", typ, 0)
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintln(w, k)
	}
}

// schemaKeys collects the json names of typ's fields. Nested structs expand
// into dotted keys and maps are shown as <key>.*.
func schemaKeys(holder string, typ reflect.Type, depth int) []string {
	var keys []string

	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		if !field.IsExported() {
			continue
		}

		if field.Anonymous && field.Type.Kind() == reflect.Struct {
			keys = append(keys, schemaKeys(holder, field.Type, depth)...)
			continue
		}

		name := jsonName(field)
		if name == "" {
			continue
		}
		if holder != "" {
			name = holder + "." + name
		}

		ft := field.Type
		for ft.Kind() == reflect.Ptr {
			ft = ft.Elem()
		}

		switch {
		case ft.Kind() == reflect.Map:
			keys = append(keys, name+".*")
		case ft.Kind() == reflect.Struct && ft != timeType && depth < maxSchemaDepth:
			keys = append(keys, schemaKeys(name, ft, depth+1)...)
		default:
			keys = append(keys, name)
		}
	}

	return keys
}

// jsonName returns the encoded name of field, or "" when it is skipped.
func jsonName(field reflect.StructField) string {
	tag, ok := field.Tag.Lookup("json")
	if !ok {
		return field.Name
	}
	name, _, _ := strings.Cut(tag, ",")
	switch name {
	case "-":
		return ""
	case "":
		return field.Name
	}
	return name
}
