// Package fsutil provides small filesystem helpers shared by the command
// line tools: directory creation that accepts file or directory paths, and
// globbing with frame-number-aware ordering.
package fsutil

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
)

// EnsureDir creates the directory for path if it does not exist. A path with
// an extension is treated as a file path and its parent directory is created
// instead. Existing directories are left untouched.
func EnsureDir(path string) error {
	dir := path
	if filepath.Ext(path) != "" {
		dir = filepath.Dir(path)
	}
	return os.MkdirAll(dir, 0755)
}

// SortedGlob returns the files in dir matching pattern, ordered by the
// number embedded in each filename so that frame_2 sorts before frame_10.
// Files without a number keep their lexical order at the front.
func SortedGlob(dir, pattern string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, err
	}
	sort.Slice(matches, func(i, j int) bool {
		numI := extractNumber(matches[i])
		numJ := extractNumber(matches[j])
		if numI != numJ {
			return numI < numJ
		}
		return matches[i] < matches[j]
	})
	return matches, nil
}

// extractNumber extracts the numeric part from a filename
func extractNumber(filename string) int {
	base := filepath.Base(filename)
	numStr := ""
	for _, c := range base {
		if c >= '0' && c <= '9' {
			numStr += string(c)
		}
	}

	if numStr != "" {
		num, err := strconv.Atoi(numStr)
		if err == nil {
			return num
		}
	}
	return 0
}
