package matching

import (
	"strconv"
	"strings"
)

// MatchPath checks if the request path matches the pattern.
// Returns a score > 0 if matched, 0 if not matched.
// Exact matches score higher than wildcard matches.
// Supports:
//   - Exact match: "/api/users" matches "/api/users"
//   - Named params: "/api/users/{id}" matches "/api/users/123"
//   - Wildcard: "/api/users/*" matches "/api/users/123/orders"
func MatchPath(pattern, path string) int {
	if pattern == path {
		return ScorePathExact
	}
	if containsParam(pattern) && matchSegments(pattern, path) {
		return ScorePathNamedParams
	}
	if strings.HasSuffix(pattern, "/*") {
		prefix := strings.TrimSuffix(pattern, "/*")
		if !containsParam(prefix) && (strings.HasPrefix(path, prefix+"/") || path == prefix) {
			return ScorePathWildcard
		}
	}
	if containsWildcard(pattern) && matchSegments(pattern, path) {
		return ScorePathWildcard
	}
	if containsWildcard(pattern) && !containsParam(pattern) && MatchWildcard(pattern, path) {
		return ScorePathWildcard
	}
	return 0
}

// matchSegments compares a pattern segment by segment. {name} and * match any
// single segment; a trailing * matches the rest of the path.
func matchSegments(pattern, path string) bool {
	patternParts := splitPath(pattern)
	pathParts := splitPath(path)

	for i, p := range patternParts {
		if p == "*" && i == len(patternParts)-1 {
			return len(pathParts) >= i
		}
		if i >= len(pathParts) {
			return false
		}
		if isParam(p) || p == "*" {
			continue
		}
		if p != pathParts[i] {
			return false
		}
	}
	return len(patternParts) == len(pathParts)
}

// PathParams extracts path variables from a path pattern.
// Supports both {name} style params and * wildcards.
// Examples:
//   - pattern "/users/{id}" with path "/users/123" returns {"id": "123"}
//   - pattern "/api/users/*" with path "/api/users/456" returns {"0": "456"}
//   - pattern "/api/*/items/*" with path "/api/users/items/789" returns {"0": "users", "1": "789"}
func PathParams(pattern, path string) map[string]string {
	result := make(map[string]string)

	patternParts := splitPath(pattern)
	pathParts := splitPath(path)
	wildcardIndex := 0

	for i, p := range patternParts {
		if i >= len(pathParts) {
			break
		}
		switch {
		case isParam(p):
			result[p[1:len(p)-1]] = pathParts[i]
		case p == "*":
			if i == len(patternParts)-1 {
				result[strconv.Itoa(wildcardIndex)] = strings.Join(pathParts[i:], "/")
			} else {
				result[strconv.Itoa(wildcardIndex)] = pathParts[i]
			}
			wildcardIndex++
		}
	}
	return result
}

// MatchWildcard reports whether s matches pattern, where * matches any run of
// characters (including none). A pattern without * must equal s.
func MatchWildcard(pattern, s string) bool {
	parts := strings.Split(pattern, "*")
	if len(parts) == 1 {
		return pattern == s
	}
	if !strings.HasPrefix(s, parts[0]) {
		return false
	}
	last := parts[len(parts)-1]
	if !strings.HasSuffix(s[len(parts[0]):], last) {
		return false
	}
	rest := s[len(parts[0]) : len(s)-len(last)]
	for _, part := range parts[1 : len(parts)-1] {
		idx := strings.Index(rest, part)
		if idx == -1 {
			return false
		}
		rest = rest[idx+len(part):]
	}
	return true
}

func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

func isParam(seg string) bool {
	return len(seg) > 2 && strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}")
}

func containsParam(pattern string) bool {
	return strings.Contains(pattern, "{") && strings.Contains(pattern, "}")
}

func containsWildcard(pattern string) bool {
	return strings.Contains(pattern, "*")
}
