// Package exprcache evaluates expr-lang expressions with a compile cache keyed
// by expression text and environment shape.
package exprcache

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Cache compiles expressions once per environment signature. It is safe for
// concurrent use.
type Cache struct {
	mu       sync.RWMutex
	programs map[string]*vm.Program
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{programs: make(map[string]*vm.Program)}
}

// Eval evaluates expression against env.
func (c *Cache) Eval(expression string, env map[string]any) (any, error) {
	if env == nil {
		env = map[string]any{}
	}
	program, err := c.Compile(expression, env)
	if err != nil {
		return nil, fmt.Errorf("compile %q: %w", expression, err)
	}
	result, err := expr.Run(program, env)
	if err != nil {
		return nil, fmt.Errorf("eval %q: %w", expression, err)
	}
	return result, nil
}

// EvalBool evaluates expression and requires a boolean result.
func (c *Cache) EvalBool(expression string, env map[string]any) (bool, error) {
	v, err := c.Eval(expression, env)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("expression %q returned %T, want bool", expression, v)
	}
	return b, nil
}

// Compile returns the cached program for expression, compiling it for the
// shape of env on first use.
func (c *Cache) Compile(expression string, env map[string]any) (*vm.Program, error) {
	if env == nil {
		env = map[string]any{}
	}
	key := expression + "\x00" + envSignature(env)

	c.mu.RLock()
	if program, ok := c.programs[key]; ok {
		c.mu.RUnlock()
		return program, nil
	}
	c.mu.RUnlock()

	program, err := expr.Compile(expression, expr.Env(env))
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.programs[key]; ok {
		return existing, nil
	}
	c.programs[key] = program
	return program, nil
}

// Syntax checks that expression parses, without type-checking identifiers
// against an environment.
func Syntax(expression string) error {
	if _, err := expr.Compile(expression); err != nil {
		return fmt.Errorf("compile %q: %w", expression, err)
	}
	return nil
}

// Len returns the number of compiled programs.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.programs)
}

func envSignature(env map[string]any) string {
	if len(env) == 0 {
		return ""
	}
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+":"+fmt.Sprintf("%T", env[k]))
	}
	return strings.Join(parts, ",")
}
