// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package util

import (
	"os"
	"path/filepath"
	"strings"
)

// ParseProjectDir parses a "dir[::env]" spec and returns the absolute project
// directory and the optional environment override. It returns an error if the
// fs entry does not exist, is empty or is not a directory.
func ParseProjectDir(spec string) (string, string, error) {
	if spec == "" {
		return "", "", os.ErrInvalid
	}

	var dir, env string

	parts := strings.Split(spec, "::")
	if len(parts) > 1 {
		env = parts[1]
	}

	if parts[0] == "" {
		return "", "", os.ErrInvalid
	}

	if !filepath.IsAbs(parts[0]) {
		cwd, err := os.Getwd()
		if err != nil {
			return "", "", err
		}
		dir = filepath.Join(cwd, parts[0])
	} else {
		dir = filepath.Clean(parts[0])
	}

	if r, err := os.Stat(dir); err != nil {
		return "", "", err
	} else if !r.IsDir() {
		return "", "", os.ErrInvalid
	}

	return dir, env, nil
}

// StackName builds the CloudFormation stack name for a component in the
// "<project>-<env>-<component>" convention. An empty env drops the middle
// segment.
func StackName(project, env, component string) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{project, env, component} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "-")
}
