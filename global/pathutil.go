/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see the LICENSE file for details                                    *
 ******************************************************************************/

package global

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ValidatePathWithinDir validates that a relative path, when resolved against baseDir,
// stays within baseDir. This prevents path traversal through client-supplied
// identifiers (session ids, history file names).
// Returns the absolute resolved path if valid, or an error if traversal is detected.
func ValidatePathWithinDir(baseDir, relativePath string) (string, error) {
	if filepath.IsAbs(relativePath) {
		return "", fmt.Errorf("absolute paths not allowed: %s", relativePath)
	}

	cleanPath := filepath.Clean(relativePath)

	absBaseDir, err := filepath.Abs(baseDir)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute base directory: %w", err)
	}

	absFilePath, err := filepath.Abs(filepath.Join(absBaseDir, cleanPath))
	if err != nil {
		return "", fmt.Errorf("failed to get absolute file path: %w", err)
	}

	if !strings.HasPrefix(absFilePath, absBaseDir+string(filepath.Separator)) &&
		absFilePath != absBaseDir {
		return "", fmt.Errorf("path escapes base directory: %s", relativePath)
	}

	return absFilePath, nil
}
