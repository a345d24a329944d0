package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveBodyFile(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		base     string
		input    string
		wantPath string
		wantOK   bool
	}{
		{"simple relative", "", "data/test.json", "data/test.json", true},
		{"dot prefix", "", "./data/test.json", "data/test.json", true},
		{"joined with base", "/srv/mocks", "bodies/user.json", "/srv/mocks/bodies/user.json", true},
		{"absolute ignores base", "/srv/mocks", "/etc/fixtures/a.json", "/etc/fixtures/a.json", true},
		{"traversal resolves safely", "/srv/mocks", "a/b/../c.json", "/srv/mocks/a/c.json", true},
		{"double slash", "", "data//test.json", "data/test.json", true},

		{"simple traversal", "/srv/mocks", "../secret.json", "", false},
		{"nested traversal", "/srv/mocks", "data/../../etc/passwd", "", false},
		{"dot-dot only", "", "..", "", false},
		{"backslash traversal", "", `data\..\secret`, "", false},
		{"empty", "/srv/mocks", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ResolveBodyFile(tt.base, tt.input)
			if !tt.wantOK {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantPath, got)
		})
	}
}

func TestResolveBodyFile_UnsafeSentinel(t *testing.T) {
	t.Parallel()
	_, err := ResolveBodyFile("", "../x")
	assert.ErrorIs(t, err, ErrUnsafePath)
}

func TestSniffContentType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		body string
		want string
	}{
		{`{"a":1}`, ContentTypeJSON},
		{"  [1,2]\n", ContentTypeJSON},
		{`<?xml version="1.0"?><a/>`, ContentTypeXML},
		{"<order><id>1</id></order>", ContentTypeXML},
		{"hello", ContentTypeText},
		{"", ContentTypeText},
		{"{not closed", ContentTypeText},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SniffContentType(tt.body), tt.body)
	}
}

func TestTruncateBody(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		data    string
		maxSize int
		want    string
	}{
		{"short string no truncation", "hello", 100, "hello"},
		{"exact length", "12345", 5, "12345"},
		{"one over", "123456", 5, "12345...(truncated)"},
		{"zero maxSize uses default", "hello", 0, "hello"},
		{"empty string", "", 10, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, TruncateBody(tt.data, tt.maxSize))
		})
	}
}
