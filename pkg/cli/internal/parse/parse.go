// Package parse provides string parsing utilities for CLI commands.
package parse

import (
	"fmt"
	"net/http"
	"strings"
)

// KeyValue parses a "key:value" or "key=value" string.
// If delimiters are provided, uses the first one found; otherwise defaults to ':'.
// Returns the key, value, and a boolean indicating success.
func KeyValue(s string, delimiters ...rune) (key, value string, ok bool) {
	if len(delimiters) == 0 {
		delimiters = []rune{':'}
	}

	for i, c := range s {
		for _, d := range delimiters {
			if c == d {
				return s[:i], s[i+1:], true
			}
		}
	}
	return "", "", false
}

// Headers parses repeated "Name: value" flags into an http.Header.
// Values are trimmed of leading/trailing whitespace.
func Headers(headers []string) (http.Header, error) {
	result := make(http.Header, len(headers))
	for _, h := range headers {
		key, value, ok := KeyValue(h, ':')
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("invalid header %q, want Name: value", h)
		}
		result.Add(strings.TrimSpace(key), strings.TrimSpace(value))
	}
	return result, nil
}

// Vars parses repeated "name=value" flags. Later flags win.
func Vars(vars []string) (map[string]string, error) {
	result := make(map[string]string, len(vars))
	for _, v := range vars {
		key, value, ok := KeyValue(v, '=')
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid variable %q, want name=value", v)
		}
		result[key] = value
	}
	return result, nil
}
