package template

import (
	"encoding/json"
	"maps"
	mathrand "math/rand/v2"
	"mime"
	"net/http"
	"strings"
)

// Context is the per-request evaluation state. It is owned by a single
// request and must not be shared between goroutines; use Clone to hand a
// snapshot to another worker.
type Context struct {
	Request RequestContext
	Vars    map[string]Value

	// Rand, when set, makes random functions deterministic. Prefer SetSeed,
	// which also lets Clone derive a generator without drawing from Rand.
	Rand *mathrand.Rand

	seed   uint64
	seeded bool

	// Iteration is the zero-based index within EvaluateBatch.
	Iteration int
}

// RequestContext contains inbound request data available to functions.
type RequestContext struct {
	Method     string
	Path       string
	URL        string
	Body       any    // parsed JSON, nil when the body is not JSON
	RawBody    string // original body
	Query      map[string][]string
	Headers    map[string][]string
	PathParams map[string]string
}

// NewContext creates an evaluation context from an HTTP request whose body has
// already been read.
func NewContext(r *http.Request, body []byte) *Context {
	ctx := &Context{
		Request: RequestContext{
			Method:     r.Method,
			Path:       r.URL.Path,
			URL:        r.URL.String(),
			RawBody:    string(body),
			Query:      r.URL.Query(),
			Headers:    r.Header,
			PathParams: make(map[string]string),
		},
		Vars: make(map[string]Value),
	}
	if isJSONContent(r.Header.Get("Content-Type"), body) {
		var parsed any
		if err := json.Unmarshal(body, &parsed); err == nil {
			ctx.Request.Body = parsed
		}
	}
	return ctx
}

// NewEmptyContext returns a context with no request data, used for offline
// rendering and pushback of configured payloads.
func NewEmptyContext() *Context {
	return &Context{
		Request: RequestContext{
			Query:      make(map[string][]string),
			Headers:    make(map[string][]string),
			PathParams: make(map[string]string),
		},
		Vars: make(map[string]Value),
	}
}

// isJSONContent reports whether the body should be parsed as JSON. A missing
// content type falls back to sniffing the first byte.
func isJSONContent(contentType string, body []byte) bool {
	if len(body) == 0 {
		return false
	}
	if contentType != "" {
		mt, _, err := mime.ParseMediaType(contentType)
		if err == nil {
			return mt == "application/json" || strings.HasSuffix(mt, "+json")
		}
	}
	trimmed := strings.TrimSpace(string(body))
	return strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[")
}

// Var returns the value of a context variable.
func (c *Context) Var(name string) (Value, bool) {
	if c == nil || c.Vars == nil {
		return nil, false
	}
	v, ok := c.Vars[name]
	return v, ok
}

// SetVar stores a variable, overwriting any previous value.
func (c *Context) SetVar(name string, v Value) {
	if c.Vars == nil {
		c.Vars = make(map[string]Value)
	}
	c.Vars[name] = v
}

// Header returns the first value of a request header, case-insensitively.
func (c *Context) Header(name string) string {
	if c == nil {
		return ""
	}
	if vals := http.Header(c.Request.Headers).Values(name); len(vals) > 0 {
		return vals[0]
	}
	// Fall back to a literal lookup for maps that were not canonicalised.
	for k, vals := range c.Request.Headers {
		if strings.EqualFold(k, name) && len(vals) > 0 {
			return vals[0]
		}
	}
	return ""
}

// Query returns the first value of a query parameter.
func (c *Context) Query(name string) string {
	if c == nil {
		return ""
	}
	if vals := c.Request.Query[name]; len(vals) > 0 {
		return vals[0]
	}
	return ""
}

// Clone returns an independent copy of the context. Vars and request maps are
// copied; the parsed body is shared since it is never mutated. A context
// seeded with SetSeed hands the clone a generator derived from the seed, so
// neither sequence depends on the other. A Rand assigned directly is not
// carried over.
func (c *Context) Clone() *Context {
	if c == nil {
		return NewEmptyContext()
	}
	out := &Context{
		Request:   c.Request,
		Vars:      maps.Clone(c.Vars),
		Iteration: c.Iteration,
	}
	if out.Vars == nil {
		out.Vars = make(map[string]Value)
	}
	out.Request.Query = cloneMultiMap(c.Request.Query)
	out.Request.Headers = cloneMultiMap(c.Request.Headers)
	out.Request.PathParams = maps.Clone(c.Request.PathParams)
	if c.seeded {
		out.setSeed(c.seed ^ cloneSalt)
	}
	return out
}

func cloneMultiMap(m map[string][]string) map[string][]string {
	if m == nil {
		return nil
	}
	out := make(map[string][]string, len(m))
	for k, v := range m {
		out[k] = append([]string(nil), v...)
	}
	return out
}
