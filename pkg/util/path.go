package util

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrUnsafePath is returned for body file paths that escape their base
// directory.
var ErrUnsafePath = errors.New("path escapes base directory")

// ResolveBodyFile cleans p and resolves it against baseDir. Absolute paths
// are accepted as-is since body files come from trusted configuration;
// relative paths must stay inside baseDir.
func ResolveBodyFile(baseDir, p string) (string, error) {
	if p == "" {
		return "", errors.New("empty path")
	}
	if strings.Contains(p, `\..`) || strings.Contains(p, `..\`) {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, p)
	}
	clean := filepath.Clean(p)
	if filepath.IsAbs(clean) {
		return clean, nil
	}
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, p)
	}
	if baseDir == "" {
		return clean, nil
	}
	return filepath.Join(baseDir, clean), nil
}
