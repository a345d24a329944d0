package exprcache

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_Eval(t *testing.T) {
	c := New()
	got, err := c.Eval("price * qty", map[string]any{"price": 2.5, "qty": 4})
	require.NoError(t, err)
	assert.Equal(t, 10.0, got)
}

func TestCache_EvalBool(t *testing.T) {
	c := New()
	ok, err := c.EvalBool(`method == "GET" && len(path) > 1`, map[string]any{"method": "GET", "path": "/a"})
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = c.EvalBool("1 + 1", map[string]any{})
	assert.Error(t, err)
}

func TestCache_CompileErrors(t *testing.T) {
	c := New()
	_, err := c.Eval("1 +", nil)
	assert.Error(t, err)
	assert.Equal(t, 0, c.Len())
}

func TestCache_ReusesProgramsPerSignature(t *testing.T) {
	c := New()
	_, err := c.Eval("a + 1", map[string]any{"a": 1})
	require.NoError(t, err)
	_, err = c.Eval("a + 1", map[string]any{"a": 2})
	require.NoError(t, err)
	assert.Equal(t, 1, c.Len())

	_, err = c.Eval("a + 1", map[string]any{"a": 1.5})
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len(), "a different value type compiles a new program")
}

func TestCache_ConcurrentEval(t *testing.T) {
	c := New()
	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got, err := c.Eval("n * 2", map[string]any{"n": i})
			assert.NoError(t, err)
			assert.Equal(t, i*2, got)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, c.Len())
}

func TestSyntax(t *testing.T) {
	assert.NoError(t, Syntax(`unknownIdent > 3 && json.user.name == "x"`))
	assert.Error(t, Syntax("1 +"))
	assert.Error(t, Syntax(`a == "unterminated`))
}
