// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package stack

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var refRe = regexp.MustCompile(`\$\{(env|stack):([^}]+)\}`)

// OutputsFunc returns the outputs of the stack built for a component.
type OutputsFunc func(ctx context.Context, component string) (map[string]string, error)

// Resolver expands ${env:NAME} and ${stack:component.Output} references in
// parameter values.
type Resolver struct {
	Env     func(string) (string, bool)
	Outputs OutputsFunc
}

// Resolve expands every reference in v. Unset variables and missing
// outputs are errors.
func (r Resolver) Resolve(ctx context.Context, v string) (string, error) {
	var firstErr error
	out := refRe.ReplaceAllStringFunc(v, func(m string) string {
		if firstErr != nil {
			return m
		}
		sub := refRe.FindStringSubmatch(m)
		kind, ref := sub[1], strings.TrimSpace(sub[2])

		switch kind {
		case "env":
			if r.Env == nil {
				firstErr = fmt.Errorf("cannot resolve %s: no environment", m)
				return m
			}
			val, ok := r.Env(ref)
			if !ok {
				firstErr = fmt.Errorf("environment variable %s is not set", ref)
				return m
			}
			return val
		default:
			comp, key, ok := strings.Cut(ref, ".")
			if !ok || comp == "" || key == "" {
				firstErr = fmt.Errorf("malformed stack reference %s (want ${stack:component.Output})", m)
				return m
			}
			if r.Outputs == nil {
				firstErr = fmt.Errorf("cannot resolve %s: no stack outputs", m)
				return m
			}
			outs, err := r.Outputs(ctx, comp)
			if err != nil {
				firstErr = fmt.Errorf("cannot resolve %s: %w", m, err)
				return m
			}
			val, ok := outs[key]
			if !ok {
				firstErr = fmt.Errorf("stack %s has no output %s", comp, key)
				return m
			}
			return val
		}
	})
	if firstErr != nil {
		return "", firstErr
	}
	return out, nil
}

// ResolveAll expands every value of params, returning a new map.
func (r Resolver) ResolveAll(ctx context.Context, params map[string]string) (map[string]string, error) {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[string]string, len(params))
	for _, k := range keys {
		v, err := r.Resolve(ctx, params[k])
		if err != nil {
			return nil, fmt.Errorf("parameter %s: %w", k, err)
		}
		out[k] = v
	}
	return out, nil
}
