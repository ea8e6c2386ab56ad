// Copyright 2026 The triage Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package util provides small shared helpers for path resolution.
package util

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// WritablePath returns the base directory for files the server writes at
// runtime (logs, trace databases). It honors the TRIAGE_DATA_DIR environment
// variable and falls back to the current working directory.
func WritablePath() string {
	if base := os.Getenv("TRIAGE_DATA_DIR"); base != "" {
		return base
	}
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}

// ExpandPath expands a leading "~" to the user's home directory and returns
// an absolute path. Relative paths are resolved against the working directory.
func ExpandPath(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("empty path")
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to resolve home directory: %w", err)
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return filepath.Abs(path)
}
