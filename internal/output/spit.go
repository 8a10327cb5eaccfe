// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image/color"
	"io"
	"os"
	"reflect"
	"strconv"

	"github.com/apex/log"
	"github.com/charmbracelet/lipgloss/v2"
	"github.com/charmbracelet/lipgloss/v2/table"
	"github.com/tidwall/gjson"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v2"

	"github.com/mrdp/mrdp/internal/attrs"
	"github.com/mrdp/mrdp/internal/config"
	"github.com/mrdp/mrdp/internal/filters"
)

// Formats accepted by --output.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatRaw  = "raw"
)

// Options are the rendering switches shared by every listing command.
type Options struct {
	Output  string
	Filter  string
	Sort    string
	Local   bool
	Titles  bool
	Color   bool
	Padding int
	Header  string
	Footer  string
}

// OptionsFrom reads the global output flags from cmd. Header and footer come
// from the command metadata when a command sets them.
func OptionsFrom(cmd *cli.Command) Options {
	opts := Options{
		Output:  cmd.String("output"),
		Filter:  cmd.String("filter"),
		Sort:    cmd.String("sort"),
		Local:   cmd.Bool("local"),
		Titles:  cmd.Bool("titles"),
		Color:   cmd.Bool("color"),
		Padding: int(cmd.Int("padding")),
	}
	if h, ok := cmd.Metadata["header"].(string); ok {
		opts.Header = h
	}
	if f, ok := cmd.Metadata["footer"].(string); ok {
		opts.Footer = f
	}
	return opts
}

// InterfaceToString converts supported primitive or composite values to a
// string. A custom empty value may be provided.
func InterfaceToString(value interface{}, emptyValue ...string) string {
	if len(emptyValue) == 0 {
		emptyValue = []string{""}
	}

	if value == nil || reflect.ValueOf(value).IsZero() {
		return emptyValue[0]
	}

	switch value := value.(type) {
	case string:
		return value
	case int:
		return strconv.Itoa(value)
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(value)
	default:
		jsonBytes, err := json.Marshal(value)
		if err != nil {
			return fmt.Sprintf("%v", value)
		}
		return string(jsonBytes)
	}
}

// Emit renders any JSON-encodable list (rows from the database, stack
// statuses, ledger runs) through SliceDiceSpit.
func Emit(v any, list attrs.AttrList, opts Options, w io.Writer) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding rows: %w", err)
	}
	return SliceDiceSpit(raw, list, opts, w, nil)
}

// SliceDiceSpit filters, sorts, transforms and renders a JSON array of rows
// according to opts. The optional postProcess callback runs on the filtered
// dataset before text rendering.
func SliceDiceSpit(raw []byte,
	list attrs.AttrList,
	opts Options,
	w io.Writer,
	postProcess func([]map[string]interface{}) error) error {

	if w == nil {
		w = os.Stdout
	}

	if opts.Output == FormatRaw {
		_, err := w.Write(raw)
		return err
	}

	list = append(attrs.AttrList(nil), list...)
	if err := list.SetGlobalTransformSpec(); err != nil {
		return err
	}

	// Filtering first keeps the remaining stages working on fewer rows.
	dataset := filters.FilterDataset(gjson.ParseBytes(raw), list, opts.Filter)

	// Sorting precedes transforms so humanized values order by their source.
	SortDataset(dataset, opts.Sort)

	// --local forces a time transform on every column; values that do not
	// parse as timestamps pass through unchanged.
	if opts.Local {
		for i := range list {
			list[i].TransformSpec += "t"
		}
	}

	for _, row := range dataset {
		for _, attr := range list {
			if attr.TransformSpec != "" {
				row[attr.OutputKey] = attr.Transform(row[attr.OutputKey])
			}
		}
	}

	switch opts.Output {
	case FormatJSON:
		b, err := orderedJSON(dataset, list.Included())
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(b))
		return err
	case FormatYAML:
		b, err := yaml.Marshal(orderedYAML(dataset, list.Included()))
		if err != nil {
			return fmt.Errorf("yaml marshal: %w", err)
		}
		_, err = w.Write(b)
		return err
	case "", FormatText:
		if postProcess != nil {
			if err := postProcess(dataset); err != nil {
				log.Errorf("post process: %v", err)
			}
		}
		TableWriter(dataset, list, opts, w)
		return nil
	default:
		return fmt.Errorf("unknown output format %q", opts.Output)
	}
}

// orderedJSON encodes rows keeping the column order of list.
func orderedJSON(rows []map[string]interface{}, list attrs.AttrList) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, row := range rows {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('{')
		for j, attr := range list {
			if j > 0 {
				buf.WriteByte(',')
			}
			k, _ := json.Marshal(attr.OutputKey)
			v, err := json.Marshal(row[attr.OutputKey])
			if err != nil {
				return nil, fmt.Errorf("json marshal %s: %w", attr.OutputKey, err)
			}
			buf.Write(k)
			buf.WriteByte(':')
			buf.Write(v)
		}
		buf.WriteByte('}')
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// orderedYAML converts rows to MapSlices keeping the column order of list.
func orderedYAML(rows []map[string]interface{}, list attrs.AttrList) []yaml.MapSlice {
	out := make([]yaml.MapSlice, 0, len(rows))
	for _, row := range rows {
		ms := make(yaml.MapSlice, 0, len(list))
		for _, attr := range list {
			ms = append(ms, yaml.MapItem{Key: attr.OutputKey, Value: row[attr.OutputKey]})
		}
		out = append(out, ms)
	}
	return out
}

// TableWriter renders the result set as a borderless table honoring color,
// titles and padding options. Nothing is written for an empty result set.
func TableWriter(
	resultSet []map[string]interface{},
	list attrs.AttrList,
	opts Options,
	w io.Writer) {

	if w == nil {
		w = os.Stdout
	}

	if len(resultSet) == 0 {
		return
	}

	var (
		headerStyle  = lipgloss.NewStyle().Align(lipgloss.Left).Bold(true)
		cellStyle    = lipgloss.NewStyle().Padding(0, 0).Align(lipgloss.Left)
		evenRowStyle = cellStyle
		oddRowStyle  = cellStyle
	)

	if opts.Color {
		headerColor, evenColor, oddColor := getColors("colors")

		headerStyle = headerStyle.Foreground(headerColor)
		evenRowStyle = evenRowStyle.Foreground(evenColor)
		oddRowStyle = oddRowStyle.Foreground(oddColor)
	}

	included := list.Included()

	rows := make([][]string, 0, len(resultSet))
	for _, result := range resultSet {
		row := make([]string, 0, len(included))
		for _, attr := range included {
			row = append(row, InterfaceToString(result[attr.OutputKey], "-"))
		}
		rows = append(rows, row)
	}

	if opts.Header != "" {
		fmt.Fprintln(w, headerStyle.Render(opts.Header))
	}

	pad := opts.Padding
	t := table.New().
		BorderBottom(false).
		BorderTop(false).
		BorderLeft(false).
		BorderRight(false).
		Border(lipgloss.HiddenBorder()).
		StyleFunc(func(row, col int) lipgloss.Style {
			var style lipgloss.Style
			switch {
			case row == table.HeaderRow:
				style = headerStyle
			case row%2 == 0:
				style = evenRowStyle
			default:
				style = oddRowStyle
			}

			if col > 0 {
				style = style.PaddingLeft(pad)
			}

			return style
		}).
		Headers().
		Rows(rows...)

	if opts.Titles {
		headers := make([]string, 0, len(included))
		for _, attr := range included {
			headers = append(headers, attr.OutputKey)
		}

		// https://github.com/charmbracelet/lipgloss/issues/261
		t = t.Headers(headers...).BorderHeader(false)
	}
	fmt.Fprintln(w, t)

	if opts.Footer != "" {
		fmt.Fprintln(w, headerStyle.Render(opts.Footer))
	}
}

// getColors returns the table colors. Explicit colors under key in the
// config file win; otherwise defaults are picked for the terminal's
// background.
func getColors(key string) (header, even, odd color.Color) {
	isDark := lipgloss.HasDarkBackground(os.Stdin, os.Stdout)

	resolveColor := func(key string, light string, dark string) color.Color {
		colorCfg, err := config.GetString(key)
		if err == nil {
			return lipgloss.Color(colorCfg)
		}

		if isDark {
			return lipgloss.Color(dark)
		}
		return lipgloss.Color(light)
	}

	header = resolveColor(key+".title", "#b08800", "#f6be00")
	even = resolveColor(key+".even", "#333333", "#ffffff")
	odd = resolveColor(key+".odd", "#0088a0", "#00c8f0")

	return
}
