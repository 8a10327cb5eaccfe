// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0
// no-cloc

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrdp/mrdp/internal/config"
)

func TestDeduplicateFlags(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected []string
	}{
		{
			name:     "empty args",
			args:     []string{},
			expected: []string{},
		},
		{
			name:     "only program and command",
			args:     []string{"mrdp", "stacks"},
			expected: []string{"mrdp", "stacks"},
		},
		{
			name:     "no duplicates",
			args:     []string{"mrdp", "stacks", "--output", "text", "--titles"},
			expected: []string{"mrdp", "stacks", "--output", "text", "--titles"},
		},
		{
			name:     "duplicate flag with value - last wins",
			args:     []string{"mrdp", "stacks", "--output", "json", "--titles", "--output", "text"},
			expected: []string{"mrdp", "stacks", "--titles", "--output", "text"},
		},
		{
			name:     "duplicate boolean flag",
			args:     []string{"mrdp", "stacks", "--titles", "--color", "--titles"},
			expected: []string{"mrdp", "stacks", "--color", "--titles"},
		},
		{
			name:     "duplicate flag with equals syntax",
			args:     []string{"mrdp", "stacks", "--output=json", "--titles", "--output=text"},
			expected: []string{"mrdp", "stacks", "--titles", "--output=text"},
		},
		{
			name:     "mixed equals and space syntax - same flag",
			args:     []string{"mrdp", "stacks", "--output=json", "--output", "text"},
			expected: []string{"mrdp", "stacks", "--output", "text"},
		},
		{
			name:     "multiple different flags with duplicates",
			args:     []string{"mrdp", "deploy", "--env", "dev", "--compute", "ecs", "--env", "prod", "--compute", "eks"},
			expected: []string{"mrdp", "deploy", "--env", "prod", "--compute", "eks"},
		},
		{
			name:     "positional args preserved",
			args:     []string{"mrdp", "deploy", "/path/to/project", "--output", "json", "--output", "text"},
			expected: []string{"mrdp", "deploy", "/path/to/project", "--output", "text"},
		},
		{
			name:     "short flags deduplicated",
			args:     []string{"mrdp", "stacks", "-o", "json", "-o", "text"},
			expected: []string{"mrdp", "stacks", "-o", "text"},
		},
		{
			name:     "different flags not affected",
			args:     []string{"mrdp", "stacks", "--color", "--titles"},
			expected: []string{"mrdp", "stacks", "--color", "--titles"},
		},
		{
			name:     "triple duplicate",
			args:     []string{"mrdp", "stacks", "--output", "a", "--output", "b", "--output", "c"},
			expected: []string{"mrdp", "stacks", "--output", "c"},
		},
		{
			name:     "repeatable flags kept",
			args:     []string{"mrdp", "deploy", "--only", "vpc", "--only", "rds"},
			expected: []string{"mrdp", "deploy", "--only", "vpc", "--only", "rds"},
		},
		{
			name:     "subcommand preserved",
			args:     []string{"mrdp", "etl", "run", "--type", "full", "--type", "dimensions"},
			expected: []string{"mrdp", "etl", "run", "--type", "dimensions"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, deduplicateFlags(tt.args))
		})
	}
}

func TestDeduplicateFlagsWithPositionalAfterFlags(t *testing.T) {
	args := []string{"mrdp", "stacks", "--output", "json", "/path", "--output", "text"}
	assert.Equal(t, []string{"mrdp", "stacks", "/path", "--output", "text"}, deduplicateFlags(args))
}

func TestInjectSet(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		entries  []string
		at       int
		expected []string
	}{
		{
			name:     "empty set removes marker",
			args:     []string{"mrdp", "stacks", "@prod", "--titles"},
			at:       2,
			expected: []string{"mrdp", "stacks", "--titles"},
		},
		{
			name:     "single entry injected",
			args:     []string{"mrdp", "stacks", "@prod", "--titles"},
			entries:  []string{"--color"},
			at:       2,
			expected: []string{"mrdp", "stacks", "--color", "--titles"},
		},
		{
			name:     "multi-word entry split",
			args:     []string{"mrdp", "stacks", "@prod"},
			entries:  []string{"--env prod", "--output  json"},
			at:       2,
			expected: []string{"mrdp", "stacks", "--env", "prod", "--output", "json"},
		},
		{
			name:     "after positional",
			args:     []string{"mrdp", "deploy", "/path/to/project", "@prod", "--dry-run"},
			entries:  []string{"--env prod"},
			at:       3,
			expected: []string{"mrdp", "deploy", "/path/to/project", "--env", "prod", "--dry-run"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, injectSet(tt.args, tt.entries, tt.at))
		})
	}
}

func TestProcessSetOnly(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "mrdp.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte(`
stacks:
  prod:
    - --env prod
    - --titles
`), 0o600))
	t.Setenv("MRDP_CFG_FILE", cfgFile)
	_, err := config.Load()
	require.NoError(t, err)

	got := processSetOnly([]string{"mrdp", "stacks", "@prod", "--output", "json"})
	assert.Equal(t, []string{"mrdp", "stacks", "--env", "prod", "--titles", "--output", "json"}, got)

	unchanged := []string{"mrdp", "stacks", "--titles"}
	assert.Equal(t, unchanged, processSetOnly(unchanged))

	// An unknown set only drops the marker.
	assert.Equal(t, []string{"mrdp", "stacks"}, processSetOnly([]string{"mrdp", "stacks", "@missing"}))
}

func TestProcessCommandArgs(t *testing.T) {
	completion := []string{"mrdp", "completion", "bash"}
	assert.Equal(t, completion, processCommandArgs(completion))

	got := processCommandArgs([]string{"mrdp", "stacks", "--output", "json", "--output", "yaml"})
	assert.Equal(t, []string{"mrdp", "stacks", "--output", "yaml"}, got)
}

func TestHandleNakedCommand(t *testing.T) {
	assert.Equal(t, []string{"mrdp", "--help"}, handleNakedCommand([]string{"mrdp"}))
	assert.Equal(t, []string{"mrdp", "stacks"}, handleNakedCommand([]string{"mrdp", "stacks"}))
}

func TestHandleVersion(t *testing.T) {
	assert.False(t, handleVersion([]string{"mrdp", "stacks"}))
	assert.True(t, handleVersion([]string{"mrdp", "--version"}))
	assert.True(t, handleVersion([]string{"mrdp", "-v"}))
}
