// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0
// no-cloc

package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestConfig points MRDP_CFG_FILE at a testdata file and resets the
// global Config so the next getter reloads.
func setupTestConfig(t *testing.T, testdataFile string) {
	t.Helper()

	absPath, err := filepath.Abs(filepath.Join("testdata", testdataFile))
	require.NoError(t, err)

	t.Setenv("MRDP_CFG_FILE", absPath)
	Config = Type{}
	t.Cleanup(func() { Config = Type{} })
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name      string
		testFile  string
		checkFunc func(*testing.T, Type)
	}{
		{
			name:     "simple string values",
			testFile: "simple.yaml",
			checkFunc: func(t *testing.T, cfg Type) {
				assert.NotEmpty(t, cfg.Source)
				assert.Equal(t, "us-east-1", cfg.Data["region"])
				assert.Equal(t, "medrobotics", cfg.Data["project"])
			},
		},
		{
			name:     "nested structure",
			testFile: "nested.yaml",
			checkFunc: func(t *testing.T, cfg Type) {
				deploy, ok := cfg.Data["deploy"].(map[string]interface{})
				require.True(t, ok, "deploy should be a map")
				assert.Equal(t, "us-west-2", deploy["region"])
			},
		},
		{
			name:     "empty file",
			testFile: "empty.yaml",
			checkFunc: func(t *testing.T, cfg Type) {
				assert.NotEmpty(t, cfg.Source)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setupTestConfig(t, tt.testFile)

			cfg, err := Load()
			require.NoError(t, err)
			tt.checkFunc(t, cfg)
		})
	}
}

func TestLoad_NoConfigFile(t *testing.T) {
	t.Setenv("MRDP_CFG_FILE", "/nonexistent/path/mrdp.yaml")
	Config = Type{}

	_, err := Load()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "config file not found")
}

func TestLoad_CfgFileIsDirectory(t *testing.T) {
	t.Setenv("MRDP_CFG_FILE", "testdata")
	Config = Type{}

	_, err := Load()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "points to a directory")
}

func TestLoad_KeepsNamespace(t *testing.T) {
	setupTestConfig(t, "nested.yaml")

	cfg, err := Load("deploy")
	require.NoError(t, err)
	assert.Equal(t, "deploy", cfg.Namespace)

	// Namespaced key wins over the global one.
	region, err := GetString("region")
	require.NoError(t, err)
	assert.Equal(t, "us-west-2", region)
}

func TestGetString(t *testing.T) {
	tests := []struct {
		name         string
		testFile     string
		key          string
		defaultValue []string
		want         string
		wantErr      bool
	}{
		{name: "simple string value", testFile: "simple.yaml", key: "region", want: "us-east-1"},
		{name: "nested string value", testFile: "nested.yaml", key: "deploy.artifact_bucket", want: "medrobotics-cfn"},
		{name: "missing key with default", testFile: "simple.yaml", key: "missing", defaultValue: []string{"fallback"}, want: "fallback"},
		{name: "missing key without default", testFile: "simple.yaml", key: "missing", wantErr: true},
		{name: "non-string value", testFile: "mixed-types.yaml", key: "version", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setupTestConfig(t, tt.testFile)

			got, err := GetString(tt.key, tt.defaultValue...)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetInt(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue []int
		want         int
		wantErr      bool
	}{
		{name: "int value", key: "version", want: 1},
		{name: "float truncates", key: "timeout", want: 30},
		{name: "missing with default", key: "retries", defaultValue: []int{3}, want: 3},
		{name: "string is not int", key: "name", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setupTestConfig(t, "mixed-types.yaml")

			got, err := GetInt(tt.key, tt.defaultValue...)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetBool(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue []bool
		want         bool
		wantErr      bool
	}{
		{name: "native bool", key: "enabled", want: true},
		{name: "string yes", key: "verbose", want: true},
		{name: "missing with default", key: "nope", defaultValue: []bool{true}, want: true},
		{name: "missing without default", key: "nope", wantErr: true},
		{name: "non bool", key: "name", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setupTestConfig(t, "mixed-types.yaml")

			got, err := GetBool(tt.key, tt.defaultValue...)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetStringSlice(t *testing.T) {
	t.Run("string list", func(t *testing.T) {
		setupTestConfig(t, "mixed-types.yaml")
		got, err := GetStringSlice("tags")
		require.NoError(t, err)
		assert.Equal(t, []string{"surgical", "robotics"}, got)
	})

	t.Run("mixed list errors", func(t *testing.T) {
		setupTestConfig(t, "mixed-types.yaml")
		_, err := GetStringSlice("mixed")
		assert.Error(t, err)
	})

	t.Run("namespaced set", func(t *testing.T) {
		setupTestConfig(t, "nested.yaml")
		Config.Namespace = "deploy"
		got, err := GetStringSlice("defaults")
		require.NoError(t, err)
		assert.Equal(t, []string{"--env dev", "--compute ecs"}, got)
	})

	t.Run("missing with default", func(t *testing.T) {
		setupTestConfig(t, "simple.yaml")
		got, err := GetStringSlice("nothing", []string{"a"})
		require.NoError(t, err)
		assert.Equal(t, []string{"a"}, got)
	})
}

func TestGetStringMap(t *testing.T) {
	setupTestConfig(t, "nested.yaml")

	got, err := GetStringMap("deploy.stacks.rds")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"DBInstanceClass":  "db.t3.medium",
		"MultiAZ":          "false",
		"AllocatedStorage": "100",
	}, got)

	_, err = GetStringMap("deploy.region")
	assert.Error(t, err)

	_, err = GetStringMap("deploy.stacks.missing")
	assert.Error(t, err)
}
