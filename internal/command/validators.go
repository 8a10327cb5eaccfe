// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"fmt"
	"slices"
	"time"

	"github.com/mrdp/mrdp/internal/etl"
	"github.com/mrdp/mrdp/internal/output"
	"github.com/mrdp/mrdp/internal/schema"
	"github.com/mrdp/mrdp/internal/stack"
)

// DateLayout is the accepted form of every date flag.
const DateLayout = "2006-01-02"

type FlagValidatorType func(any) error

func FlagValidators(value any, validators ...FlagValidatorType) error {
	for _, v := range validators {
		if err := v(value); err != nil {
			return err
		}
	}
	return nil
}

func oneOf(value any, valid []string) error {
	s, _ := value.(string)
	if !slices.Contains(valid, s) {
		return fmt.Errorf("must be one of %v", valid)
	}
	return nil
}

func OutputValidator(value any) error {
	return oneOf(value, []string{output.FormatText, output.FormatJSON, output.FormatRaw, output.FormatYAML})
}

func ComputeValidator(value any) error {
	return oneOf(value, []string{stack.ComputeECS, stack.ComputeEKS})
}

func TargetValidator(value any) error {
	valid := make([]string, 0, len(schema.Targets))
	for _, t := range schema.Targets {
		valid = append(valid, string(t))
	}
	return oneOf(value, valid)
}

func ETLTypeValidator(value any) error {
	s, _ := value.(string)
	_, err := etl.ParseType(s)
	return err
}

// DateValidator accepts an empty value or a YYYY-MM-DD date.
func DateValidator(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	if _, err := time.Parse(DateLayout, s); err != nil {
		return fmt.Errorf("must be a date in %s form", DateLayout)
	}
	return nil
}

// parseDate parses an already validated date flag. Empty yields the zero
// time.
func parseDate(s string) time.Time {
	t, _ := time.Parse(DateLayout, s)
	return t
}
