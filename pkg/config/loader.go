package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Common errors for configuration loading/saving.
var (
	ErrFileNotFound     = errors.New("configuration file not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrInvalidJSON      = errors.New("invalid JSON syntax")
	ErrInvalidYAML      = errors.New("invalid YAML syntax")
	ErrEmptyFile        = errors.New("configuration file is empty")
	ErrDuplicateID      = errors.New("duplicate endpoint id")
)

// Format is a configuration file encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatOf returns the format implied by a file extension: YAML for .yaml
// and .yml, JSON otherwise.
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Load reads a collection from a file, or from every collection file under
// a directory.
func Load(path string) (*Collection, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, statError(path, err)
	}
	if !info.IsDir() {
		return LoadFromFile(path)
	}
	result, err := NewDirectoryLoader(path).Load()
	if err != nil {
		return nil, err
	}
	if len(result.Errors) > 0 {
		errs := make([]error, len(result.Errors))
		for i := range result.Errors {
			errs[i] = &result.Errors[i]
		}
		return nil, errors.Join(errs...)
	}
	return result.Collection, nil
}

// LoadFromFile reads a Collection from a JSON or YAML file.
// The format is auto-detected based on file extension (.yaml, .yml for YAML, otherwise JSON).
func LoadFromFile(path string) (*Collection, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	if FormatOf(path) == FormatYAML {
		return ParseYAML(data)
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("%w in file: %s", ErrInvalidJSON, path)
	}
	return ParseJSON(data)
}

// readFile reads a regular, non-empty file, mapping common failures onto
// the package sentinels.
func readFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, statError(path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("path is a directory, not a file: %s", path)
	}

	file, err := os.Open(path)
	if err != nil {
		if os.IsPermission(err) {
			return nil, fmt.Errorf("%w: %s", ErrPermissionDenied, path)
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyFile, path)
	}
	return data, nil
}

func statError(path string, err error) error {
	if os.IsNotExist(err) {
		return fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}
	if os.IsPermission(err) {
		return fmt.Errorf("%w: %s", ErrPermissionDenied, path)
	}
	return fmt.Errorf("failed to stat file: %w", err)
}

// Decode parses data without validating it. ConfiguredOrder is assigned.
func Decode(data []byte, format Format) (*Collection, error) {
	var collection Collection
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &collection); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidYAML, err)
		}
	default:
		if err := json.Unmarshal(data, &collection); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidJSON, err)
		}
	}
	collection.assignOrder()
	return &collection, nil
}

// ParseJSON parses JSON bytes into a Collection with structural validation.
func ParseJSON(data []byte) (*Collection, error) {
	return parse(data, FormatJSON)
}

// ParseYAML parses YAML bytes into a Collection with structural validation.
func ParseYAML(data []byte) (*Collection, error) {
	return parse(data, FormatYAML)
}

func parse(data []byte, format Format) (*Collection, error) {
	collection, err := Decode(data, format)
	if err != nil {
		return nil, err
	}
	if err := collection.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	return collection, nil
}

// Validate checks every endpoint's structure and that endpoint IDs are
// unique. It stops at the first problem; use Validate with a registry for
// a full report.
func (c *Collection) Validate() error {
	seen := make(map[string]bool, len(c.Endpoints))
	for i, ep := range c.Endpoints {
		if ep == nil {
			return fmt.Errorf("endpoints[%d]: endpoint is null", i)
		}
		if err := ep.Validate(); err != nil {
			return fmt.Errorf("endpoints[%d]: %w", i, err)
		}
		if seen[ep.ID] {
			return fmt.Errorf("endpoints[%d]: %w: %s", i, ErrDuplicateID, ep.ID)
		}
		seen[ep.ID] = true
	}
	return nil
}

// ToJSON serializes a collection as indented JSON.
func ToJSON(collection *Collection) ([]byte, error) {
	return json.MarshalIndent(collection, "", "  ")
}

// ToYAML serializes a collection as YAML.
func ToYAML(collection *Collection) ([]byte, error) {
	return yaml.Marshal(collection)
}

// SaveToFile writes a Collection to a file using atomic rename.
// The format is determined by file extension (.yaml, .yml for YAML, otherwise JSON).
// Creates parent directories if they don't exist.
func SaveToFile(path string, collection *Collection) error {
	if collection == nil {
		return errors.New("collection cannot be nil")
	}
	if collection.Version == "" {
		collection.Version = CurrentVersion
	}

	var data []byte
	var err error
	if FormatOf(path) == FormatYAML {
		data, err = ToYAML(collection)
	} else {
		data, err = ToJSON(collection)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal collection: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	// Write to temporary file first (atomic write pattern)
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temporary file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}
	return nil
}

// LoadServerConfig reads a ServerConfig from a YAML or JSON file, expanding
// ${VAR} and ${VAR:-default} references first. Defaults are applied to
// fields the file leaves unset. A relative Mocks path is resolved against
// the file's directory.
func LoadServerConfig(path string) (*ServerConfig, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := ParseServerConfig(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if cfg.Mocks != "" && !filepath.IsAbs(cfg.Mocks) {
		cfg.Mocks = filepath.Join(filepath.Dir(path), cfg.Mocks)
	}
	return cfg, nil
}

// ParseServerConfig parses server settings. JSON is accepted as YAML.
func ParseServerConfig(data []byte) (*ServerConfig, error) {
	var cfg ServerConfig
	dec := yaml.NewDecoder(strings.NewReader(ExpandEnvVars(string(data))))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %w", ErrInvalidYAML, err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// ExpandEnvVars expands environment variables in the input string.
// Supports ${VAR_NAME} and ${VAR_NAME:-default} syntax. Collections are
// never expanded because their templates share the ${...} syntax.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		submatch := envVarPattern.FindStringSubmatch(match)
		if len(submatch) < 2 {
			return match
		}
		if val := os.Getenv(submatch[1]); val != "" {
			return val
		}
		if len(submatch) >= 3 {
			return submatch[2]
		}
		return ""
	})
}
