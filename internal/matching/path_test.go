package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchPath(t *testing.T) {
	tests := []struct {
		name      string
		pattern   string
		path      string
		wantScore int
	}{
		{
			name:      "exact match",
			pattern:   "/api/users",
			path:      "/api/users",
			wantScore: ScorePathExact,
		},
		{
			name:      "root",
			pattern:   "/",
			path:      "/",
			wantScore: ScorePathExact,
		},
		{
			name:      "named param match",
			pattern:   "/api/users/{id}",
			path:      "/api/users/123",
			wantScore: ScorePathNamedParams,
		},
		{
			name:      "named param segment count differs",
			pattern:   "/api/users/{id}",
			path:      "/api/users/123/orders",
			wantScore: 0,
		},
		{
			name:      "named param with trailing wildcard",
			pattern:   "/api/users/{id}/*",
			path:      "/api/users/1/orders/9",
			wantScore: ScorePathNamedParams,
		},
		{
			name:      "trailing wildcard",
			pattern:   "/api/users/*",
			path:      "/api/users/123/orders",
			wantScore: ScorePathWildcard,
		},
		{
			name:      "trailing wildcard matches prefix itself",
			pattern:   "/api/users/*",
			path:      "/api/users",
			wantScore: ScorePathWildcard,
		},
		{
			name:      "middle wildcard",
			pattern:   "/api/*/items",
			path:      "/api/carts/items",
			wantScore: ScorePathWildcard,
		},
		{
			name:      "in-segment wildcard",
			pattern:   "/files/*.json",
			path:      "/files/report.json",
			wantScore: ScorePathWildcard,
		},
		{
			name:      "in-segment wildcard suffix mismatch",
			pattern:   "/files/*.json",
			path:      "/files/report.xml",
			wantScore: 0,
		},
		{
			name:      "no match",
			pattern:   "/api/users",
			path:      "/api/products",
			wantScore: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantScore, MatchPath(tt.pattern, tt.path))
		})
	}
}

func TestPathParams(t *testing.T) {
	tests := []struct {
		name     string
		pattern  string
		path     string
		expected map[string]string
	}{
		{
			name:     "single named param",
			pattern:  "/users/{id}",
			path:     "/users/123",
			expected: map[string]string{"id": "123"},
		},
		{
			name:    "multiple named params",
			pattern: "/users/{userId}/posts/{postId}",
			path:    "/users/42/posts/99",
			expected: map[string]string{
				"userId": "42",
				"postId": "99",
			},
		},
		{
			name:     "single wildcard",
			pattern:  "/api/*",
			path:     "/api/anything",
			expected: map[string]string{"0": "anything"},
		},
		{
			name:     "trailing wildcard captures rest",
			pattern:  "/api/*",
			path:     "/api/a/b/c",
			expected: map[string]string{"0": "a/b/c"},
		},
		{
			name:     "mixed",
			pattern:  "/api/*/items/{id}",
			path:     "/api/users/items/789",
			expected: map[string]string{"0": "users", "id": "789"},
		},
		{
			name:     "exact path has no params",
			pattern:  "/health",
			path:     "/health",
			expected: map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, PathParams(tt.pattern, tt.path))
		})
	}
}

func TestMatchWildcard(t *testing.T) {
	tests := []struct {
		pattern, s string
		want       bool
	}{
		{"Bearer *", "Bearer abc", true},
		{"Bearer *", "Basic abc", false},
		{"*-json", "application-json", true},
		{"*json*", "application/json; charset=utf-8", true},
		{"a*b*c", "abc", true},
		{"a*b*c", "axxbyyc", true},
		{"a*b*c", "acb", false},
		{"a*a", "a", false},
		{"*", "", true},
		{"exact", "exact", true},
		{"exact", "exactly", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MatchWildcard(tt.pattern, tt.s), "%s ~ %s", tt.pattern, tt.s)
	}
}

func TestMaxPathScore(t *testing.T) {
	assert.Equal(t, ScorePathExact, maxPathScore("/a/b"))
	assert.Equal(t, ScorePathNamedParams, maxPathScore("/a/{id}"))
	assert.Equal(t, ScorePathWildcard, maxPathScore("/a/*"))
}
