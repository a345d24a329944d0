package template

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewContext_FromHTTPRequest(t *testing.T) {
	body := `{"user": {"id": 7}}`
	r := httptest.NewRequest("POST", "/users?page=2&tag=a&tag=b", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json; charset=utf-8")
	r.Header.Set("X-Trace", "abc")

	ctx := NewContext(r, []byte(body))

	assert.Equal(t, "POST", ctx.Request.Method)
	assert.Equal(t, "/users", ctx.Request.Path)
	assert.Equal(t, body, ctx.Request.RawBody)
	assert.Equal(t, "2", ctx.Query("page"))
	assert.Equal(t, []string{"a", "b"}, ctx.Request.Query["tag"])
	assert.Equal(t, "abc", ctx.Header("x-trace"))
	assert.Equal(t, map[string]any{"user": map[string]any{"id": float64(7)}}, ctx.Request.Body)
	assert.NotNil(t, ctx.Vars)
}

func TestNewContext_JSONDetection(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		wantParsed  bool
	}{
		{"json content type", "application/json", `{"a":1}`, true},
		{"vendor json", "application/vnd.api+json", `{"a":1}`, true},
		{"sniffed object", "", ` {"a":1}`, true},
		{"sniffed array", "", `[1,2]`, true},
		{"plain text", "text/plain", `{"a":1}`, false},
		{"invalid json", "application/json", `{"a":`, false},
		{"empty body", "application/json", ``, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("POST", "/", strings.NewReader(tt.body))
			if tt.contentType != "" {
				r.Header.Set("Content-Type", tt.contentType)
			}
			ctx := NewContext(r, []byte(tt.body))
			assert.Equal(t, tt.wantParsed, ctx.Request.Body != nil)
		})
	}
}

func TestContext_Vars(t *testing.T) {
	ctx := &Context{}
	_, ok := ctx.Var("x")
	assert.False(t, ok)

	ctx.SetVar("x", 1)
	ctx.SetVar("x", 2)
	v, ok := ctx.Var("x")
	assert.True(t, ok)
	assert.Equal(t, 2, v, "last write wins")

	var nilCtx *Context
	_, ok = nilCtx.Var("x")
	assert.False(t, ok)
}

func TestContext_CloneIsIndependent(t *testing.T) {
	ctx := NewEmptyContext()
	ctx.SetVar("a", "1")
	ctx.Request.Headers["X-A"] = []string{"1"}
	ctx.Request.PathParams["id"] = "7"

	clone := ctx.Clone()
	clone.SetVar("a", "2")
	clone.SetVar("b", "3")
	clone.Request.Headers["X-A"][0] = "changed"
	clone.Request.PathParams["id"] = "8"

	v, _ := ctx.Var("a")
	assert.Equal(t, "1", v)
	_, ok := ctx.Var("b")
	assert.False(t, ok)
	assert.Equal(t, "1", ctx.Request.Headers["X-A"][0])
	assert.Equal(t, "7", ctx.Request.PathParams["id"])
}

func TestContext_CloneOfSeededContextIsDeterministic(t *testing.T) {
	a := NewEmptyContext()
	a.SetSeed(42)
	b := NewEmptyContext()
	b.SetSeed(42)

	assert.Equal(t, a.Clone().IntN(1000), b.Clone().IntN(1000))
}

func TestContext_CloneLeavesParentSequenceAlone(t *testing.T) {
	ref := Seeded(7)
	want := []uint64{ref.Uint64(), ref.Uint64(), ref.Uint64()}

	ctx := NewEmptyContext()
	ctx.SetSeed(7)
	clone := ctx.Clone()
	require.NotNil(t, clone.Rand)
	_ = clone.Uint64()

	got := []uint64{ctx.Uint64(), ctx.Uint64(), ctx.Uint64()}
	assert.Equal(t, want, got)
	assert.NotEqual(t, want[0], ctx.Clone().Uint64(), "clone sequence should differ from the parent's")
}

func TestContext_CloneOfUnseededRand(t *testing.T) {
	ctx := &Context{Rand: Seeded(1)}
	assert.Nil(t, ctx.Clone().Rand)
}

func TestContext_UUID(t *testing.T) {
	ctx := NewEmptyContext()
	id := ctx.UUID()
	_, err := uuid.Parse(id)
	require.NoError(t, err)

	s1 := &Context{Rand: Seeded(1)}
	s2 := &Context{Rand: Seeded(1)}
	seeded := s1.UUID()
	assert.Equal(t, seeded, s2.UUID())

	parsed, err := uuid.Parse(seeded)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(4), parsed.Version())
}

func TestContext_RandomHelpersStayInRange(t *testing.T) {
	ctx := &Context{Rand: Seeded(3)}
	for range 100 {
		n := ctx.IntN(10)
		assert.GreaterOrEqual(t, n, 0)
		assert.Less(t, n, 10)
		f := ctx.Float64()
		assert.GreaterOrEqual(t, f, 0.0)
		assert.Less(t, f, 1.0)
	}
	assert.Equal(t, 0, ctx.IntN(0))
}
