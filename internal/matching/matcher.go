package matching

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/getmockd/mockresolver/internal/docpath"
	"github.com/getmockd/mockresolver/internal/exprcache"
	"github.com/getmockd/mockresolver/pkg/mock"
)

// Matcher evaluates predicates. It is safe for concurrent use; compiled
// regex and expr programs are shared between calls.
type Matcher struct {
	regexes *regexCache
	exprs   *exprcache.Cache
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithExprCache shares an expression cache with other components.
func WithExprCache(c *exprcache.Cache) Option {
	return func(m *Matcher) {
		if c != nil {
			m.exprs = c
		}
	}
}

// New creates a Matcher.
func New(opts ...Option) *Matcher {
	m := &Matcher{
		regexes: newRegexCache(),
		exprs:   exprcache.New(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

var defaultMatcher = New()

// Evaluate reports whether req satisfies match using a process-wide Matcher.
func Evaluate(match *mock.MatchRequest, req *mock.Request) bool {
	return defaultMatcher.Evaluate(match, req)
}

// Evaluate reports whether req satisfies match. A nil predicate, or one
// without conditions, always matches. "and" stops at the first failing
// condition, "or" at the first passing one.
func (m *Matcher) Evaluate(match *mock.MatchRequest, req *mock.Request) bool {
	if match == nil || len(match.Conditions) == 0 {
		return true
	}
	if req == nil {
		req = &mock.Request{}
	}

	if match.Logic == mock.LogicOr {
		for i := range match.Conditions {
			if m.Condition(&match.Conditions[i], req) {
				return true
			}
		}
		return false
	}
	for i := range match.Conditions {
		if !m.Condition(&match.Conditions[i], req) {
			return false
		}
	}
	return true
}

// Condition evaluates a single condition, applying Negate.
func (m *Matcher) Condition(c *mock.Condition, req *mock.Request) bool {
	matched, _ := m.test(c, req)
	return matched != c.Negate
}

// observation is what a condition sees of the request.
type observation struct {
	values  []any
	present bool
}

func (o observation) first() any {
	if len(o.values) == 0 {
		return nil
	}
	return o.values[0]
}

// observe collects the request values a condition inspects.
func observe(c *mock.Condition, req *mock.Request) observation {
	switch c.Field {
	case mock.FieldMethod:
		return observation{values: []any{req.Method}, present: req.Method != ""}
	case mock.FieldPath:
		return observation{values: []any{req.Path}, present: req.Path != ""}
	case mock.FieldHeader:
		return stringsObservation(http.Header(req.Headers).Values(c.Key))
	case mock.FieldQuery:
		vals, ok := req.Query[c.Key]
		o := stringsObservation(vals)
		o.present = ok
		return o
	case mock.FieldBody:
		return observation{values: []any{string(req.Body)}, present: len(req.Body) > 0}
	case mock.FieldJSONPath:
		data := req.JSON()
		if data == nil {
			return observation{}
		}
		vals, err := docpath.JSON(data, c.Key)
		if err != nil {
			return observation{}
		}
		return observation{values: vals, present: len(vals) > 0}
	case mock.FieldXPath:
		return stringsObservation(docpath.XML(req.XML(), c.Key))
	case mock.FieldVar:
		v, ok := req.Var(c.Key)
		if !ok {
			return observation{}
		}
		return observation{values: []any{v}, present: true}
	default:
		return observation{}
	}
}

func stringsObservation(vals []string) observation {
	o := observation{values: make([]any, len(vals)), present: len(vals) > 0}
	for i, v := range vals {
		o.values[i] = v
	}
	return o
}

// test evaluates c without Negate and returns the observed value for
// diagnostics.
func (m *Matcher) test(c *mock.Condition, req *mock.Request) (bool, any) {
	obs := observe(c, req)

	switch c.Op {
	case mock.OpExists:
		want := true
		if b, ok := c.Value.(bool); ok {
			want = b
		}
		return obs.present == want, obs.present
	case mock.OpEquals:
		for _, v := range obs.values {
			if c.Field == mock.FieldMethod {
				if strings.EqualFold(stringify(v), c.ValueString()) {
					return true, v
				}
				continue
			}
			if valuesEqual(v, c.Value) {
				return true, v
			}
		}
	case mock.OpContains:
		want := c.ValueString()
		for _, v := range obs.values {
			if strings.Contains(stringify(v), want) {
				return true, v
			}
		}
	case mock.OpRegex:
		re := m.regexes.get(c.ValueString())
		if re == nil {
			return false, obs.first()
		}
		for _, v := range obs.values {
			if re.MatchString(stringify(v)) {
				return true, v
			}
		}
	case mock.OpPattern:
		pattern := c.ValueString()
		for _, v := range obs.values {
			if c.Field == mock.FieldPath {
				if MatchPath(pattern, stringify(v)) > 0 {
					return true, v
				}
				continue
			}
			if MatchWildcard(pattern, stringify(v)) {
				return true, v
			}
		}
	case mock.OpExpr:
		env := exprEnv(req)
		if c.Field != "" {
			env["value"] = orEmpty(obs.first())
		}
		ok, err := m.exprs.EvalBool(c.ValueString(), env)
		return err == nil && ok, obs.first()
	}
	return false, obs.first()
}

// exprEnv exposes the request to expr conditions. Every key is always
// present with a stable type so one compiled program serves all requests.
func exprEnv(req *mock.Request) map[string]any {
	headers := make(map[string]any, len(req.Headers))
	for k, v := range req.Headers {
		if len(v) > 0 {
			headers[http.CanonicalHeaderKey(k)] = v[0]
		}
	}
	query := make(map[string]any, len(req.Query))
	for k, v := range req.Query {
		if len(v) > 0 {
			query[k] = v[0]
		}
	}
	params := make(map[string]any, len(req.PathParams))
	for k, v := range req.PathParams {
		params[k] = v
	}
	vars := make(map[string]any, len(req.Vars))
	for k, v := range req.Vars {
		vars[k] = v
	}
	var body any = map[string]any{}
	if data := req.JSON(); data != nil {
		body = data
	}
	return map[string]any{
		"method":     req.Method,
		"path":       req.Path,
		"url":        req.URL,
		"headers":    headers,
		"query":      query,
		"pathParams": params,
		"vars":       vars,
		"body":       string(req.Body),
		"json":       body,
	}
}

func orEmpty(v any) any {
	if v == nil {
		return ""
	}
	return v
}

// Check compiles every regex and expr condition in match and returns the
// first failure. Use it when validating configuration; Evaluate treats the
// same failures as a non-match.
func (m *Matcher) Check(match *mock.MatchRequest) error {
	if match == nil {
		return nil
	}
	for i := range match.Conditions {
		c := &match.Conditions[i]
		switch c.Op {
		case mock.OpRegex:
			if m.regexes.get(c.ValueString()) == nil {
				return fmt.Errorf("conditions[%d]: invalid regex %q", i, c.ValueString())
			}
		case mock.OpExpr:
			if err := exprcache.Syntax(c.ValueString()); err != nil {
				return fmt.Errorf("conditions[%d]: %w", i, err)
			}
		}
	}
	return nil
}
