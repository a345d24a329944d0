package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultPattern selects collection files below a directory.
const DefaultPattern = "**/*.{yaml,yml,json}"

// DirectoryLoader loads every collection file below a directory.
type DirectoryLoader struct {
	// Path is the directory to load from
	Path string

	// Pattern is a doublestar glob relative to Path (default: DefaultPattern)
	Pattern string
}

// LoadResult contains the result of loading a directory.
type LoadResult struct {
	// Collection holds the endpoints of every file that loaded, in file
	// name order
	Collection *Collection

	// Files are the paths that were read, sorted
	Files []string

	// FileCount is the number of files processed
	FileCount int

	// Errors are any non-fatal errors encountered
	Errors []LoadError
}

// LoadError represents an error loading a specific file.
type LoadError struct {
	Path    string
	Message string
	Err     error
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Path, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

func (e *LoadError) Unwrap() error { return e.Err }

// NewDirectoryLoader creates a new directory loader.
func NewDirectoryLoader(path string) *DirectoryLoader {
	return &DirectoryLoader{Path: path, Pattern: DefaultPattern}
}

// Files returns the collection files below the directory, sorted. Hidden
// files and directories are skipped.
func (d *DirectoryLoader) Files() ([]string, error) {
	info, err := os.Stat(d.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("directory not found: %s", d.Path)
		}
		return nil, fmt.Errorf("failed to access directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", d.Path)
	}

	pattern := d.Pattern
	if pattern == "" {
		pattern = DefaultPattern
	}
	matches, err := doublestar.Glob(os.DirFS(d.Path), pattern)
	if err != nil {
		return nil, fmt.Errorf("expanding glob pattern: %w", err)
	}

	files := make([]string, 0, len(matches))
	for _, m := range matches {
		if hidden(m) {
			continue
		}
		files = append(files, filepath.Join(d.Path, filepath.FromSlash(m)))
	}
	sort.Strings(files)
	return files, nil
}

// Load loads all collections below the directory and merges their
// endpoints. A file that fails to load is recorded in Errors and skipped;
// an endpoint whose ID was already loaded from an earlier file is recorded
// and dropped.
func (d *DirectoryLoader) Load() (*LoadResult, error) {
	files, err := d.Files()
	if err != nil {
		return nil, err
	}

	result := &LoadResult{
		Collection: &Collection{Version: CurrentVersion, Name: filepath.Base(d.Path)},
		Files:      files,
	}
	seen := make(map[string]string)
	for _, file := range files {
		result.FileCount++
		collection, err := LoadFromFile(file)
		if err != nil {
			result.Errors = append(result.Errors, LoadError{Path: file, Message: "failed to load", Err: err})
			continue
		}
		for _, ep := range collection.Endpoints {
			if prev, dup := seen[ep.ID]; dup {
				result.Errors = append(result.Errors, LoadError{
					Path:    file,
					Message: "endpoint " + ep.ID + " already defined in " + prev,
					Err:     ErrDuplicateID,
				})
				continue
			}
			seen[ep.ID] = file
			result.Collection.Endpoints = append(result.Collection.Endpoints, ep)
		}
	}
	return result, nil
}

// hidden reports whether any element of a slash-separated path starts
// with a dot.
func hidden(rel string) bool {
	for _, seg := range strings.Split(rel, "/") {
		if strings.HasPrefix(seg, ".") {
			return true
		}
	}
	return false
}
