// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0
// no-cloc

package cacheutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrdp/mrdp/internal/config"
)

func withCache(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("MRDP_CACHE_DIR", dir)
	t.Setenv("MRDP_CACHE", "1")
	return dir
}

func TestDir(t *testing.T) {
	t.Run("env wins", func(t *testing.T) {
		d := t.TempDir()
		t.Setenv("MRDP_CACHE_DIR", d)
		got, ok := Dir()
		assert.True(t, ok)
		assert.Equal(t, d, got)
	})

	t.Run("empty env falls back", func(t *testing.T) {
		t.Setenv("MRDP_CACHE_DIR", "")
		got, ok := Dir()
		if ok {
			assert.True(t, filepath.IsAbs(got))
			assert.Equal(t, "mrdp", filepath.Base(got))
		}
	})
}

func TestEnabled(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"", true},
		{"1", true},
		{"true", true},
		{"yes", true},
		{"0", false},
		{"false", false},
	}

	for _, tt := range tests {
		t.Run("value="+tt.value, func(t *testing.T) {
			t.Setenv("MRDP_CACHE", tt.value)
			assert.Equal(t, tt.want, Enabled())
		})
	}
}

func TestEnabled_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mrdp.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cache:\n  enabled: false\n"), 0o600))
	t.Setenv("MRDP_CFG_FILE", path)
	_, err := config.Load()
	require.NoError(t, err)
	t.Cleanup(func() { config.Config = config.Type{} })

	t.Setenv("MRDP_CACHE", "")
	assert.False(t, Enabled())

	t.Setenv("MRDP_CACHE", "1")
	assert.True(t, Enabled())

	require.NoError(t, os.WriteFile(path, []byte("cache:\n  enabled: maybe\n"), 0o600))
	_, err = config.Load()
	require.NoError(t, err)
	t.Setenv("MRDP_CACHE", "")
	assert.True(t, Enabled())
}

func TestEnsureBaseDir(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		t.Setenv("MRDP_CACHE", "0")
		p, ok, err := EnsureBaseDir()
		assert.NoError(t, err)
		assert.False(t, ok)
		assert.Empty(t, p)
	})

	t.Run("creates directory", func(t *testing.T) {
		base := filepath.Join(t.TempDir(), "nested", "cache")
		t.Setenv("MRDP_CACHE_DIR", base)
		t.Setenv("MRDP_CACHE", "1")

		p, ok, err := EnsureBaseDir()
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, base, p)
		assert.DirExists(t, base)
	})
}

func TestWriteRead(t *testing.T) {
	withCache(t)
	subdirs := []string{"stacks", "medrobotics-dev"}

	_, ok := Read(subdirs, "outputs")
	assert.False(t, ok)

	require.NoError(t, Write(subdirs, "outputs", []byte("  {\"VpcId\":\"vpc-1\"}\n")))

	e, ok := Read(subdirs, "outputs")
	require.True(t, ok)
	assert.Equal(t, `{"VpcId":"vpc-1"}`, string(e.Data))
	assert.Equal(t, "outputs", e.Key)
	assert.Len(t, e.EncodedKey, 64)

	info, err := os.Stat(e.Path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestWrite_Disabled(t *testing.T) {
	dir := withCache(t)
	t.Setenv("MRDP_CACHE", "false")

	require.NoError(t, Write([]string{"x"}, "k", []byte("v")))
	assert.NoDirExists(t, filepath.Join(dir, "x"))

	_, ok := Read([]string{"x"}, "k")
	assert.False(t, ok)
}

func TestReadFresh(t *testing.T) {
	withCache(t)
	subdirs := []string{"stacks"}
	require.NoError(t, Write(subdirs, "k", []byte("v")))

	p, ok := EntryPath(subdirs, "k")
	require.True(t, ok)
	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(p, old, old))

	_, ok = ReadFresh(subdirs, "k", time.Hour)
	assert.False(t, ok, "entry older than maxAge is a miss")

	_, ok = ReadFresh(subdirs, "k", 3*time.Hour)
	assert.True(t, ok)

	_, ok = ReadFresh(subdirs, "k", 0)
	assert.True(t, ok, "zero maxAge accepts any age")
}

func TestJSONRoundTrip(t *testing.T) {
	withCache(t)
	subdirs := []string{"stacks"}

	in := map[string]map[string]string{"vpc": {"VpcId": "vpc-123"}}
	require.NoError(t, WriteJSON(subdirs, "dev", in))

	var out map[string]map[string]string
	require.True(t, ReadJSON(subdirs, "dev", time.Minute, &out))
	assert.Equal(t, in, out)

	require.NoError(t, Write(subdirs, "broken", []byte("{not json")))
	assert.False(t, ReadJSON(subdirs, "broken", 0, &out))
}

func TestInvalidate(t *testing.T) {
	withCache(t)
	subdirs := []string{"stacks"}

	require.NoError(t, Invalidate(subdirs, "missing"))

	require.NoError(t, Write(subdirs, "k", []byte("v")))
	require.NoError(t, Invalidate(subdirs, "k"))
	_, ok := Read(subdirs, "k")
	assert.False(t, ok)
}

func TestPurge(t *testing.T) {
	dir := withCache(t)

	oldFile := filepath.Join(dir, "a", "old")
	newFile := filepath.Join(dir, "b", "new")
	for _, f := range []string{oldFile, newFile} {
		require.NoError(t, os.MkdirAll(filepath.Dir(f), 0o755))
		require.NoError(t, os.WriteFile(f, []byte("x"), 0o600))
	}
	past := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(oldFile, past, past))

	require.NoError(t, Purge(0))
	assert.FileExists(t, oldFile)

	require.NoError(t, Purge(24))
	assert.NoFileExists(t, oldFile)
	assert.FileExists(t, newFile)
}

func TestEncodeKey(t *testing.T) {
	a := encodeKey("medrobotics-dev-vpc")
	assert.Equal(t, a, encodeKey("medrobotics-dev-vpc"))
	assert.NotEqual(t, a, encodeKey("medrobotics-dev-rds"))
	assert.Regexp(t, `^[0-9a-f]{64}$`, a)
}
