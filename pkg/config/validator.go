package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/getmockd/mockresolver/internal/matching"
	"github.com/getmockd/mockresolver/pkg/mock"
	"github.com/getmockd/mockresolver/pkg/template"
)

// SchemaValidationError represents a single config validation error.
type SchemaValidationError struct {
	File    string `json:"file,omitempty"` // Source file, when known
	Path    string `json:"path,omitempty"` // Config path, e.g., "endpoints[0].responses[1].content.body"
	Message string `json:"message"`
}

func (e SchemaValidationError) Error() string {
	var b strings.Builder
	if e.File != "" {
		b.WriteString(e.File)
		b.WriteString(": ")
	}
	if e.Path != "" {
		b.WriteString(e.Path)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	return b.String()
}

// SchemaValidationResult contains all validation errors for a collection.
type SchemaValidationResult struct {
	Errors []SchemaValidationError `json:"errors"`
}

// IsValid returns true if there are no validation errors.
func (r *SchemaValidationResult) IsValid() bool {
	return len(r.Errors) == 0
}

// Error returns a combined error message.
func (r *SchemaValidationResult) Error() string {
	if r.IsValid() {
		return ""
	}
	msgs := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		msgs = append(msgs, e.Error())
	}
	return strings.Join(msgs, "\n")
}

// AddError adds a validation error.
func (r *SchemaValidationResult) AddError(path, message string) {
	r.Errors = append(r.Errors, SchemaValidationError{Path: path, Message: message})
}

// merge appends other's errors, attributing them to file.
func (r *SchemaValidationResult) merge(file string, other *SchemaValidationResult) {
	for _, e := range other.Errors {
		if e.File == "" {
			e.File = file
		}
		r.Errors = append(r.Errors, e)
	}
}

type validateOptions struct {
	maxIterations int
}

// ValidateOption configures Validate and CheckPath.
type ValidateOption func(*validateOptions)

// WithMaxIterations sets the largest repeat.count accepted. It should match
// the evaluator's cap. Values <= 0 keep template.DefaultMaxIterations.
func WithMaxIterations(n int) ValidateOption {
	return func(o *validateOptions) {
		if n > 0 {
			o.maxIterations = n
		}
	}
}

// Validate checks a decoded collection against the function registry. It
// reports every problem it finds: structural endpoint errors, duplicate
// IDs, template parse errors with their offsets, calls to unknown
// functions or with the wrong argument count, repeat counts over the
// iteration cap, and conditions whose regex or expr does not compile.
func Validate(c *Collection, reg *template.Registry, opts ...ValidateOption) *SchemaValidationResult {
	o := validateOptions{maxIterations: template.DefaultMaxIterations}
	for _, opt := range opts {
		opt(&o)
	}

	result := &SchemaValidationResult{}
	parser := template.ParserFor(reg)
	matcher := matching.New()

	seen := make(map[string]int, len(c.Endpoints))
	for i, ep := range c.Endpoints {
		prefix := fmt.Sprintf("endpoints[%d]", i)
		if ep == nil {
			result.AddError(prefix, "endpoint is null")
			continue
		}
		if err := ep.Validate(); err != nil {
			var verr *mock.ValidationError
			if errors.As(err, &verr) {
				result.AddError(prefix+"."+verr.Field, verr.Message)
			} else {
				result.AddError(prefix, err.Error())
			}
		}
		if first, dup := seen[ep.ID]; dup && ep.ID != "" {
			result.AddError(prefix+".id", fmt.Sprintf("duplicate id %q, first used by endpoints[%d]", ep.ID, first))
		} else {
			seen[ep.ID] = i
		}

		for _, name := range sortedKeys(ep.Variables) {
			checkTemplate(result, parser, reg, prefix+".variables."+name, ep.Variables[name])
		}
		for _, ref := range ep.Templates() {
			checkTemplate(result, parser, reg, prefix+"."+ref.Location, ref.Source)
		}

		for j := range ep.Responses {
			path := fmt.Sprintf("%s.responses[%d]", prefix, j)
			if err := matcher.Check(ep.Responses[j].Match); err != nil {
				result.AddError(path+".match", err.Error())
			}
			checkRepeat(result, path, &ep.Responses[j].Content, o.maxIterations)
		}
		if ep.Default != nil {
			if err := matcher.Check(ep.Default.Match); err != nil {
				result.AddError(prefix+".default.match", err.Error())
			}
			checkRepeat(result, prefix+".default", &ep.Default.Content, o.maxIterations)
		}
	}
	return result
}

// checkRepeat rejects a repeat count the evaluator would refuse at request
// time.
func checkRepeat(result *SchemaValidationResult, path string, c *mock.TemplatedContent, limit int) {
	if c.Repeat != nil && c.Repeat.Count > limit {
		result.AddError(path+".content.repeat.count",
			fmt.Sprintf("count %d exceeds the iteration limit of %d", c.Repeat.Count, limit))
	}
}

// checkTemplate parses src and checks every call against reg.
func checkTemplate(result *SchemaValidationResult, p *template.Parser, reg *template.Registry, path, src string) {
	expr, err := p.Parse(src)
	if err != nil {
		var perr *template.ParseError
		if errors.As(err, &perr) {
			line, col := perr.Position(src)
			result.AddError(path, fmt.Sprintf("%s (line %d, column %d)", perr.Error(), line, col))
			return
		}
		result.AddError(path, err.Error())
		return
	}

	var walk func(template.Node)
	walk = func(n template.Node) {
		call, ok := n.(*template.Call)
		if !ok {
			return
		}
		for _, a := range call.Args {
			walk(a)
		}
		spec, ok := reg.Lookup(call.Name)
		if !ok {
			result.AddError(path, fmt.Sprintf("unknown function %q at offset %d", call.Name, call.Pos))
			return
		}
		if !spec.AcceptsArgs(len(call.Args)) {
			result.AddError(path, fmt.Sprintf("%s takes %s, got %d at offset %d",
				call.Name, arity(spec), len(call.Args), call.Pos))
		}
	}
	for _, n := range expr.Nodes {
		walk(n)
	}
}

func arity(spec *template.FunctionSpec) string {
	switch {
	case spec.MaxArgs == template.Variadic:
		return fmt.Sprintf("at least %d arguments", spec.MinArgs)
	case spec.MinArgs == spec.MaxArgs:
		return fmt.Sprintf("%d arguments", spec.MinArgs)
	default:
		return fmt.Sprintf("%d to %d arguments", spec.MinArgs, spec.MaxArgs)
	}
}

// CheckPath validates a collection file, or every collection file under a
// directory, without stopping at the first problem. Each file is checked
// against the schema and then, if it decodes, semantically. Endpoint IDs
// must be unique across files.
func CheckPath(path string, reg *template.Registry, opts ...ValidateOption) (*SchemaValidationResult, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, statError(path, err)
	}
	files := []string{path}
	if info.IsDir() {
		if files, err = NewDirectoryLoader(path).Files(); err != nil {
			return nil, err
		}
	}

	result := &SchemaValidationResult{}
	owner := make(map[string]string)
	for _, file := range files {
		data, err := readFile(file)
		if err != nil {
			result.Errors = append(result.Errors, SchemaValidationError{File: file, Message: err.Error()})
			continue
		}
		format := FormatOf(file)
		if sr := ValidateSchema(data, format); !sr.IsValid() {
			result.merge(file, sr)
			continue
		}
		collection, err := Decode(data, format)
		if err != nil {
			result.Errors = append(result.Errors, SchemaValidationError{File: file, Message: err.Error()})
			continue
		}
		result.merge(file, Validate(collection, reg, opts...))
		for i, ep := range collection.Endpoints {
			if ep == nil || ep.ID == "" {
				continue
			}
			if prev, dup := owner[ep.ID]; dup && prev != file {
				result.Errors = append(result.Errors, SchemaValidationError{
					File:    file,
					Path:    fmt.Sprintf("endpoints[%d].id", i),
					Message: fmt.Sprintf("duplicate id %q, first defined in %s", ep.ID, prev),
				})
				continue
			}
			owner[ep.ID] = file
		}
	}
	return result, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
