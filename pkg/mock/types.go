// Package mock defines the configuration model for mock endpoints: candidate
// responses with match predicates, templated content, extraction rules,
// datasets and pushback targets.
package mock

import (
	"encoding/json"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// Endpoint is a configured virtual API path and method pair with one or more
// candidate responses.
type Endpoint struct {
	// ID is a unique identifier for the endpoint
	ID string `json:"id" yaml:"id"`

	// Name is a human-readable name
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// Method is the HTTP method served. Empty matches any method.
	Method string `json:"method,omitempty" yaml:"method,omitempty"`

	// Path is an exact path or a pattern with {param} segments and * wildcards
	Path string `json:"path" yaml:"path"`

	// Variables seed every evaluation context. Values are templates rendered
	// in name order before extraction runs.
	Variables map[string]string `json:"variables,omitempty" yaml:"variables,omitempty"`

	// Datasets back "dataset" extraction rules
	Datasets []Dataset `json:"datasets,omitempty" yaml:"datasets,omitempty"`

	// Extract runs against the inbound request before matching
	Extract []ExtractionRule `json:"extract,omitempty" yaml:"extract,omitempty"`

	// Responses are the candidates, in authoring order
	Responses []CandidateResponse `json:"responses" yaml:"responses"`

	// Default is used when no candidate matches
	Default *CandidateResponse `json:"default,omitempty" yaml:"default,omitempty"`

	// Seed makes random functions deterministic for this endpoint
	Seed *int64 `json:"seed,omitempty" yaml:"seed,omitempty"`
}

// AssignOrder sets ConfiguredOrder on every candidate from its authoring
// position, or from an explicit order when the author set one. It must run
// once when a configuration is loaded.
func (e *Endpoint) AssignOrder() {
	for i := range e.Responses {
		c := &e.Responses[i]
		if c.Order != nil {
			c.ConfiguredOrder = *c.Order
		} else {
			c.ConfiguredOrder = i
		}
	}
	if e.Default != nil && e.Default.Order != nil {
		e.Default.ConfiguredOrder = *e.Default.Order
	}
}

// Dataset returns the named dataset.
func (e *Endpoint) Dataset(name string) (*Dataset, bool) {
	for i := range e.Datasets {
		if e.Datasets[i].Name == name {
			return &e.Datasets[i], true
		}
	}
	return nil, false
}

// CandidateResponse is one configured response option, guarded by an optional
// match predicate and ranked by priority.
type CandidateResponse struct {
	ID       string           `json:"id" yaml:"id"`
	Name     string           `json:"name,omitempty" yaml:"name,omitempty"`
	Match    *MatchRequest    `json:"match,omitempty" yaml:"match,omitempty"`
	Priority int              `json:"priority,omitempty" yaml:"priority,omitempty"`
	Content  TemplatedContent `json:"content" yaml:"content"`
	Pushback *PushbackSpec    `json:"pushback,omitempty" yaml:"pushback,omitempty"`

	// Order overrides the authoring position as the tie-break key.
	Order *int `json:"order,omitempty" yaml:"order,omitempty"`

	// ConfiguredOrder is the tie-break key among equal priorities, fixed at
	// load time by Endpoint.AssignOrder.
	ConfiguredOrder int `json:"-" yaml:"-"`
}

// TemplatedContent is a response whose header values and body may contain
// ${...} expressions. Header names are never templated.
type TemplatedContent struct {
	StatusCode int         `json:"statusCode,omitempty" yaml:"statusCode,omitempty"`
	Headers    HeaderList  `json:"headers,omitempty" yaml:"headers,omitempty"`
	Body       string      `json:"body,omitempty" yaml:"body,omitempty"`
	BodyFile   string      `json:"bodyFile,omitempty" yaml:"bodyFile,omitempty"`
	Repeat     *RepeatSpec `json:"repeat,omitempty" yaml:"repeat,omitempty"`
	DelayMs    int         `json:"delayMs,omitempty" yaml:"delayMs,omitempty"`
}

// UnmarshalJSON accepts the body as a string or as a JSON object or array.
// Structured bodies are stored as their JSON text.
func (c *TemplatedContent) UnmarshalJSON(data []byte) error {
	type contentAlias TemplatedContent
	var proxy struct {
		contentAlias
		Body json.RawMessage `json:"body"`
	}
	if err := json.Unmarshal(data, &proxy); err != nil {
		return err
	}
	*c = TemplatedContent(proxy.contentAlias)
	c.Body = ""

	if len(proxy.Body) == 0 || string(proxy.Body) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(proxy.Body, &s); err == nil {
		c.Body = s
		return nil
	}
	c.Body = string(proxy.Body)
	return nil
}

// UnmarshalYAML accepts the body as a scalar or as a YAML mapping or
// sequence, which is converted to JSON text.
func (c *TemplatedContent) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("expected mapping node, got %d", value.Kind)
	}

	type contentAlias TemplatedContent
	var alias contentAlias

	var bodyNode *yaml.Node
	for i := 0; i+1 < len(value.Content); i += 2 {
		if value.Content[i].Value == "body" {
			orig := value.Content[i+1]
			value.Content[i+1] = &yaml.Node{Kind: yaml.ScalarNode, Value: "", Tag: "!!str"}
			err := value.Decode(&alias)
			value.Content[i+1] = orig
			if err != nil {
				return err
			}
			bodyNode = orig
			break
		}
	}
	if bodyNode == nil {
		if err := value.Decode(&alias); err != nil {
			return err
		}
		*c = TemplatedContent(alias)
		return nil
	}

	*c = TemplatedContent(alias)
	if bodyNode.Kind == yaml.ScalarNode {
		c.Body = bodyNode.Value
		return nil
	}

	var bodyObj any
	if err := bodyNode.Decode(&bodyObj); err != nil {
		return fmt.Errorf("failed to decode body: %w", err)
	}
	bodyJSON, err := json.Marshal(bodyObj)
	if err != nil {
		return fmt.Errorf("failed to marshal body to JSON: %w", err)
	}
	c.Body = string(bodyJSON)
	return nil
}

// HeaderTemplate is a header whose value may contain expressions.
type HeaderTemplate struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`
}

// HeaderList is an ordered header list. It decodes from either a list of
// {name, value} objects or a mapping; mapping order is preserved.
type HeaderList []HeaderTemplate

// UnmarshalJSON implements json.Unmarshaler.
func (h *HeaderList) UnmarshalJSON(data []byte) error {
	var list []HeaderTemplate
	if err := json.Unmarshal(data, &list); err == nil {
		*h = list
		return nil
	}

	dec := json.NewDecoder(bytesReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("headers: expected list or object, got %v", tok)
	}
	var out HeaderList
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		var v any
		if err := dec.Decode(&v); err != nil {
			return err
		}
		out = append(out, HeaderTemplate{Name: keyTok.(string), Value: scalarString(v)})
	}
	*h = out
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (h *HeaderList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.SequenceNode:
		var list []HeaderTemplate
		if err := value.Decode(&list); err != nil {
			return err
		}
		*h = list
		return nil
	case yaml.MappingNode:
		out := make(HeaderList, 0, len(value.Content)/2)
		for i := 0; i+1 < len(value.Content); i += 2 {
			out = append(out, HeaderTemplate{Name: value.Content[i].Value, Value: value.Content[i+1].Value})
		}
		*h = out
		return nil
	default:
		return fmt.Errorf("headers: expected list or mapping at line %d", value.Line)
	}
}

// Get returns the first header value with the given name, compared exactly.
func (h HeaderList) Get(name string) (string, bool) {
	for _, hd := range h {
		if hd.Name == name {
			return hd.Value, true
		}
	}
	return "", false
}

// RepeatSpec renders the body Count times through batch evaluation and joins
// the results.
type RepeatSpec struct {
	Count     int    `json:"count" yaml:"count"`
	Separator string `json:"separator,omitempty" yaml:"separator,omitempty"`
	Prefix    string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
	Suffix    string `json:"suffix,omitempty" yaml:"suffix,omitempty"`
}

// PushbackSpec describes an outbound request derived from a resolved
// response. URL, header values and body are templated.
type PushbackSpec struct {
	URL       string           `json:"url" yaml:"url"`
	Method    string           `json:"method,omitempty" yaml:"method,omitempty"`
	Headers   HeaderList       `json:"headers,omitempty" yaml:"headers,omitempty"`
	Body      string           `json:"body,omitempty" yaml:"body,omitempty"`
	TimeoutMs int              `json:"timeoutMs,omitempty" yaml:"timeoutMs,omitempty"`
	Extract   []ExtractionRule `json:"extract,omitempty" yaml:"extract,omitempty"`
	Retry     *RetryPolicy     `json:"retry,omitempty" yaml:"retry,omitempty"`
}

// MaxRetryAttempts bounds RetryPolicy.MaxAttempts.
const MaxRetryAttempts = 5

// RetryPolicy opts a pushback into more than one delivery attempt.
type RetryPolicy struct {
	MaxAttempts int `json:"maxAttempts" yaml:"maxAttempts"`
	BackoffMs   int `json:"backoffMs,omitempty" yaml:"backoffMs,omitempty"`
}

// Attempts returns the effective attempt count, at least 1 and at most
// MaxRetryAttempts.
func (r *RetryPolicy) Attempts() int {
	if r == nil || r.MaxAttempts < 1 {
		return 1
	}
	return min(r.MaxAttempts, MaxRetryAttempts)
}

// ExtractionKind selects how an extraction rule obtains its value.
type ExtractionKind string

const (
	ExtractPath    ExtractionKind = "path"
	ExtractRegex   ExtractionKind = "regex"
	ExtractStatic  ExtractionKind = "static"
	ExtractDataset ExtractionKind = "dataset"
	ExtractHeader  ExtractionKind = "header"
	ExtractQuery   ExtractionKind = "query"
)

// ExtractionSource names the payload part a rule reads.
type ExtractionSource string

const (
	SourceBody     ExtractionSource = "body"
	SourceHeader   ExtractionSource = "header"
	SourceQuery    ExtractionSource = "query"
	SourcePath     ExtractionSource = "path"
	SourceResponse ExtractionSource = "response"
)

// ExtractionRule pulls a value out of a payload into a named variable.
type ExtractionRule struct {
	Name     string           `json:"name" yaml:"name"`
	Kind     ExtractionKind   `json:"kind" yaml:"kind"`
	From     ExtractionSource `json:"from,omitempty" yaml:"from,omitempty"`
	Expr     string           `json:"expr,omitempty" yaml:"expr,omitempty"`
	Group    int              `json:"group,omitempty" yaml:"group,omitempty"`
	Value    string           `json:"value,omitempty" yaml:"value,omitempty"`
	Dataset  string           `json:"dataset,omitempty" yaml:"dataset,omitempty"`
	Required bool             `json:"required,omitempty" yaml:"required,omitempty"`
	Default  *string          `json:"default,omitempty" yaml:"default,omitempty"`
}

// DatasetMode selects rows sequentially or at random.
type DatasetMode string

const (
	DatasetSequential DatasetMode = "sequential"
	DatasetRandom     DatasetMode = "random"
)

// Dataset is a table of fixture rows.
type Dataset struct {
	Name    string      `json:"name" yaml:"name"`
	Columns []string    `json:"columns" yaml:"columns"`
	Rows    [][]string  `json:"rows" yaml:"rows"`
	Mode    DatasetMode `json:"mode,omitempty" yaml:"mode,omitempty"`
}

// Logic combines conditions.
type Logic string

const (
	LogicAnd Logic = "and"
	LogicOr  Logic = "or"
)

// MatchRequest is a predicate over the inbound request. A nil MatchRequest
// always matches.
type MatchRequest struct {
	Logic      Logic       `json:"logic,omitempty" yaml:"logic,omitempty"`
	Conditions []Condition `json:"conditions" yaml:"conditions"`
}

// Field names the request part a condition inspects.
type Field string

const (
	FieldMethod   Field = "method"
	FieldPath     Field = "path"
	FieldHeader   Field = "header"
	FieldQuery    Field = "query"
	FieldBody     Field = "body"
	FieldJSONPath Field = "jsonpath"
	FieldXPath    Field = "xpath"
	FieldVar      Field = "var"
)

// Op is a condition operator.
type Op string

const (
	OpEquals   Op = "equals"
	OpContains Op = "contains"
	OpRegex    Op = "regex"
	OpExists   Op = "exists"
	OpPattern  Op = "pattern"
	OpExpr     Op = "expr"
)

// Condition is one field test. Key names the header, query parameter, path
// expression or variable for fields that need one.
type Condition struct {
	Field  Field  `json:"field" yaml:"field"`
	Key    string `json:"key,omitempty" yaml:"key,omitempty"`
	Op     Op     `json:"op" yaml:"op"`
	Value  any    `json:"value,omitempty" yaml:"value,omitempty"`
	Negate bool   `json:"negate,omitempty" yaml:"negate,omitempty"`
}

// ValueString returns Value formatted as text.
func (c *Condition) ValueString() string {
	return scalarString(c.Value)
}

// Templates returns every templated string in the endpoint keyed by a
// location such as "responses[0].content.body", sorted by location.
func (e *Endpoint) Templates() []TemplateRef {
	var refs []TemplateRef
	add := func(loc, src string) {
		if src != "" {
			refs = append(refs, TemplateRef{Location: loc, Source: src})
		}
	}
	addContent := func(prefix string, c *CandidateResponse) {
		for i, h := range c.Content.Headers {
			add(fmt.Sprintf("%s.content.headers[%d].value", prefix, i), h.Value)
		}
		add(prefix+".content.body", c.Content.Body)
		if p := c.Pushback; p != nil {
			add(prefix+".pushback.url", p.URL)
			for i, h := range p.Headers {
				add(fmt.Sprintf("%s.pushback.headers[%d].value", prefix, i), h.Value)
			}
			add(prefix+".pushback.body", p.Body)
		}
	}
	for i := range e.Responses {
		addContent(fmt.Sprintf("responses[%d]", i), &e.Responses[i])
	}
	if e.Default != nil {
		addContent("default", e.Default)
	}
	sort.SliceStable(refs, func(i, j int) bool { return refs[i].Location < refs[j].Location })
	return refs
}

// TemplateRef locates a templated string inside an endpoint.
type TemplateRef struct {
	Location string
	Source   string
}
