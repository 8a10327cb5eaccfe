// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package differ

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/yudai/gojsondiff"
	"github.com/yudai/gojsondiff/formatter"

	"github.com/mrdp/mrdp/internal/log"
)

// Identical is printed when two templates match.
const Identical = "The templates are identical."

// Options controls Diff rendering.
type Options struct {
	// Ignore lists top-level keys dropped from both sides before comparing.
	Ignore []string
	Color  bool
}

// Diff compares the deployed and local JSON documents and writes an ASCII
// delta to w. It reports whether the documents differ.
func Diff(w io.Writer, deployed, local []byte, opts Options) (bool, error) {
	log.Debugf("len(templates): %d %d", len(deployed), len(local))

	left, err := prune(deployed, opts.Ignore)
	if err != nil {
		return false, fmt.Errorf("failed to read deployed template: %w", err)
	}
	right, err := prune(local, opts.Ignore)
	if err != nil {
		return false, fmt.Errorf("failed to read local template: %w", err)
	}

	delta := gojsondiff.New().CompareObjects(left, right)
	if !delta.Modified() {
		fmt.Fprintln(w, Identical)
		return false, nil
	}

	f := formatter.NewAsciiFormatter(left, formatter.AsciiFormatterConfig{
		ShowArrayIndex: false,
		Coloring:       opts.Color,
	})
	out, err := f.Format(delta)
	if err != nil {
		return true, err
	}
	fmt.Fprint(w, out)
	return true, nil
}

func prune(doc []byte, ignore []string) (map[string]any, error) {
	m := map[string]any{}
	if len(doc) == 0 {
		return m, nil
	}
	if err := json.Unmarshal(doc, &m); err != nil {
		return nil, err
	}
	for _, k := range ignore {
		delete(m, k)
	}
	return m, nil
}
