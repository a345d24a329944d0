package mock

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ohler55/ojg/jp"

	"github.com/getmockd/mockresolver/internal/docpath"
)

// ValidationError represents a validation failure with context.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on %s: %s", e.Field, e.Message)
}

// validHTTPMethods are the allowed HTTP methods.
var validHTTPMethods = map[string]bool{
	"GET":     true,
	"POST":    true,
	"PUT":     true,
	"DELETE":  true,
	"PATCH":   true,
	"HEAD":    true,
	"OPTIONS": true,
}

// headerNameRegex validates HTTP header names (RFC 7230).
var headerNameRegex = regexp.MustCompile(`^[A-Za-z0-9!#$%&'*+\-.^_\x60|~]+$`)

const maxDelayMs = 30000

// ValidMethod reports whether m is a supported HTTP method.
func ValidMethod(m string) bool {
	return validHTTPMethods[strings.ToUpper(m)]
}

// Validate checks the endpoint's structure. It does not parse templates.
func (e *Endpoint) Validate() error {
	if e.ID == "" {
		return &ValidationError{Field: "id", Message: "id is required"}
	}
	if e.Method != "" && !ValidMethod(e.Method) {
		return &ValidationError{Field: "method", Message: fmt.Sprintf("invalid HTTP method: %s", e.Method)}
	}
	if !strings.HasPrefix(e.Path, "/") {
		return &ValidationError{Field: "path", Message: "path must start with /"}
	}
	if len(e.Responses) == 0 && e.Default == nil {
		return &ValidationError{Field: "responses", Message: "at least one response or a default is required"}
	}

	datasets := make(map[string]bool, len(e.Datasets))
	for i := range e.Datasets {
		d := &e.Datasets[i]
		if err := d.Validate(fmt.Sprintf("datasets[%d]", i)); err != nil {
			return err
		}
		if datasets[d.Name] {
			return &ValidationError{Field: fmt.Sprintf("datasets[%d].name", i), Message: fmt.Sprintf("duplicate dataset %q", d.Name)}
		}
		datasets[d.Name] = true
	}

	for i := range e.Extract {
		if err := e.Extract[i].Validate(fmt.Sprintf("extract[%d]", i), datasets); err != nil {
			return err
		}
	}

	ids := make(map[string]bool, len(e.Responses))
	for i := range e.Responses {
		c := &e.Responses[i]
		prefix := fmt.Sprintf("responses[%d]", i)
		if c.ID == "" {
			return &ValidationError{Field: prefix + ".id", Message: "id is required"}
		}
		if ids[c.ID] {
			return &ValidationError{Field: prefix + ".id", Message: fmt.Sprintf("duplicate response id %q", c.ID)}
		}
		ids[c.ID] = true
		if err := c.Validate(prefix, datasets); err != nil {
			return err
		}
	}
	if e.Default != nil {
		if e.Default.Match != nil {
			return &ValidationError{Field: "default.match", Message: "default response cannot have a match predicate"}
		}
		if err := e.Default.Validate("default", datasets); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks a candidate response.
func (c *CandidateResponse) Validate(prefix string, datasets map[string]bool) error {
	if c.Match != nil {
		if err := c.Match.Validate(prefix + ".match"); err != nil {
			return err
		}
	}
	if err := c.Content.Validate(prefix + ".content"); err != nil {
		return err
	}
	if c.Pushback != nil {
		if err := c.Pushback.Validate(prefix+".pushback", datasets); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks the templated content.
func (c *TemplatedContent) Validate(prefix string) error {
	if c.StatusCode != 0 && (c.StatusCode < 100 || c.StatusCode > 599) {
		return &ValidationError{
			Field:   prefix + ".statusCode",
			Message: fmt.Sprintf("statusCode must be between 100-599, got %d", c.StatusCode),
		}
	}
	if c.Body != "" && c.BodyFile != "" {
		return &ValidationError{Field: prefix, Message: "cannot specify both body and bodyFile"}
	}
	if c.DelayMs < 0 {
		return &ValidationError{Field: prefix + ".delayMs", Message: "delayMs must be >= 0"}
	}
	if c.DelayMs > maxDelayMs {
		return &ValidationError{Field: prefix + ".delayMs", Message: "delayMs must be <= 30000 (30 seconds)"}
	}
	if c.Repeat != nil && c.Repeat.Count < 0 {
		return &ValidationError{Field: prefix + ".repeat.count", Message: "count must be >= 0"}
	}
	return validateHeaderNames(prefix+".headers", c.Headers)
}

// Validate checks the pushback target.
func (p *PushbackSpec) Validate(prefix string, datasets map[string]bool) error {
	if p.URL == "" {
		return &ValidationError{Field: prefix + ".url", Message: "url is required"}
	}
	if p.Method != "" && !ValidMethod(p.Method) {
		return &ValidationError{Field: prefix + ".method", Message: fmt.Sprintf("invalid HTTP method: %s", p.Method)}
	}
	if p.TimeoutMs < 0 {
		return &ValidationError{Field: prefix + ".timeoutMs", Message: "timeoutMs must be >= 0"}
	}
	if p.Retry != nil {
		if p.Retry.MaxAttempts < 1 || p.Retry.MaxAttempts > MaxRetryAttempts {
			return &ValidationError{
				Field:   prefix + ".retry.maxAttempts",
				Message: fmt.Sprintf("maxAttempts must be between 1 and %d", MaxRetryAttempts),
			}
		}
		if p.Retry.BackoffMs < 0 {
			return &ValidationError{Field: prefix + ".retry.backoffMs", Message: "backoffMs must be >= 0"}
		}
	}
	for i := range p.Extract {
		if err := p.Extract[i].Validate(fmt.Sprintf("%s.extract[%d]", prefix, i), datasets); err != nil {
			return err
		}
	}
	return validateHeaderNames(prefix+".headers", p.Headers)
}

func validateHeaderNames(field string, headers HeaderList) error {
	for _, h := range headers {
		if !headerNameRegex.MatchString(h.Name) {
			return &ValidationError{Field: field, Message: fmt.Sprintf("invalid header name: %s", h.Name)}
		}
	}
	return nil
}

// Validate checks the predicate's logic and conditions.
func (m *MatchRequest) Validate(prefix string) error {
	switch m.Logic {
	case "", LogicAnd, LogicOr:
	default:
		return &ValidationError{Field: prefix + ".logic", Message: fmt.Sprintf("unknown logic %q, want and or or", m.Logic)}
	}
	for i := range m.Conditions {
		if err := m.Conditions[i].Validate(fmt.Sprintf("%s.conditions[%d]", prefix, i)); err != nil {
			return err
		}
	}
	return nil
}

// fieldsWithKey require Condition.Key.
var fieldsWithKey = map[Field]bool{
	FieldHeader:   true,
	FieldQuery:    true,
	FieldJSONPath: true,
	FieldXPath:    true,
	FieldVar:      true,
}

// Validate checks that the condition is well formed and its patterns compile.
func (c *Condition) Validate(prefix string) error {
	switch c.Field {
	case FieldMethod, FieldPath, FieldBody:
	case FieldHeader, FieldQuery, FieldJSONPath, FieldXPath, FieldVar:
	case "":
		if c.Op != OpExpr {
			return &ValidationError{Field: prefix + ".field", Message: "field is required"}
		}
	default:
		return &ValidationError{Field: prefix + ".field", Message: fmt.Sprintf("unknown field %q", c.Field)}
	}
	if fieldsWithKey[c.Field] && c.Key == "" {
		return &ValidationError{Field: prefix + ".key", Message: fmt.Sprintf("key is required for %s conditions", c.Field)}
	}

	switch c.Op {
	case OpEquals, OpContains, OpPattern:
	case OpExists:
		if c.Field == FieldMethod || c.Field == FieldPath {
			return &ValidationError{Field: prefix + ".op", Message: fmt.Sprintf("exists is not supported for %s", c.Field)}
		}
	case OpRegex:
		if _, err := regexp.Compile(c.ValueString()); err != nil {
			return &ValidationError{Field: prefix + ".value", Message: fmt.Sprintf("invalid regex pattern: %s", err.Error())}
		}
	case OpExpr:
		if strings.TrimSpace(c.ValueString()) == "" {
			return &ValidationError{Field: prefix + ".value", Message: "expression is required"}
		}
	default:
		return &ValidationError{Field: prefix + ".op", Message: fmt.Sprintf("unknown op %q", c.Op)}
	}

	if c.Field == FieldJSONPath {
		if _, err := jp.ParseString(docpath.Normalize(c.Key)); err != nil {
			return &ValidationError{
				Field:   prefix + ".key",
				Message: fmt.Sprintf("invalid JSONPath expression %q: %s", c.Key, err.Error()),
			}
		}
	}
	return nil
}

// Validate checks an extraction rule. datasets holds the names of datasets
// defined on the endpoint.
func (r *ExtractionRule) Validate(prefix string, datasets map[string]bool) error {
	if r.Name == "" {
		return &ValidationError{Field: prefix + ".name", Message: "name is required"}
	}
	switch r.From {
	case "", SourceBody, SourceHeader, SourceQuery, SourcePath, SourceResponse:
	default:
		return &ValidationError{Field: prefix + ".from", Message: fmt.Sprintf("unknown source %q", r.From)}
	}

	switch r.Kind {
	case ExtractPath:
		if r.Expr == "" {
			return &ValidationError{Field: prefix + ".expr", Message: "path expression is required"}
		}
		if !strings.HasPrefix(r.Expr, "/") {
			if _, err := jp.ParseString(docpath.Normalize(r.Expr)); err != nil {
				return &ValidationError{
					Field:   prefix + ".expr",
					Message: fmt.Sprintf("invalid JSONPath expression %q: %s", r.Expr, err.Error()),
				}
			}
		}
	case ExtractRegex:
		re, err := regexp.Compile(r.Expr)
		if err != nil {
			return &ValidationError{Field: prefix + ".expr", Message: fmt.Sprintf("invalid regex pattern: %s", err.Error())}
		}
		if r.Group < 0 || r.Group > re.NumSubexp() {
			return &ValidationError{
				Field:   prefix + ".group",
				Message: fmt.Sprintf("group %d out of range, pattern has %d groups", r.Group, re.NumSubexp()),
			}
		}
	case ExtractStatic:
	case ExtractHeader, ExtractQuery:
		if r.Expr == "" {
			return &ValidationError{Field: prefix + ".expr", Message: fmt.Sprintf("%s name is required", r.Kind)}
		}
	case ExtractDataset:
		if !datasets[r.Dataset] {
			return &ValidationError{Field: prefix + ".dataset", Message: fmt.Sprintf("unknown dataset %q", r.Dataset)}
		}
	case "":
		return &ValidationError{Field: prefix + ".kind", Message: "kind is required"}
	default:
		return &ValidationError{Field: prefix + ".kind", Message: fmt.Sprintf("unknown kind %q", r.Kind)}
	}
	return nil
}

// Validate checks a dataset's shape.
func (d *Dataset) Validate(prefix string) error {
	if d.Name == "" {
		return &ValidationError{Field: prefix + ".name", Message: "name is required"}
	}
	if len(d.Columns) == 0 {
		return &ValidationError{Field: prefix + ".columns", Message: "at least one column is required"}
	}
	if len(d.Rows) == 0 {
		return &ValidationError{Field: prefix + ".rows", Message: "at least one row is required"}
	}
	for i, row := range d.Rows {
		if len(row) != len(d.Columns) {
			return &ValidationError{
				Field:   fmt.Sprintf("%s.rows[%d]", prefix, i),
				Message: fmt.Sprintf("row has %d values, want %d", len(row), len(d.Columns)),
			}
		}
	}
	switch d.Mode {
	case "", DatasetSequential, DatasetRandom:
	default:
		return &ValidationError{Field: prefix + ".mode", Message: fmt.Sprintf("unknown mode %q", d.Mode)}
	}
	return nil
}
