package extract

import (
	"fmt"
	"log/slog"
	mathrand "math/rand/v2"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/getmockd/mockresolver/internal/docpath"
	"github.com/getmockd/mockresolver/pkg/logging"
	"github.com/getmockd/mockresolver/pkg/mock"
	"github.com/getmockd/mockresolver/pkg/template"
)

// Pair is a single extracted variable.
type Pair struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// Failure records an optional rule that produced nothing.
type Failure struct {
	Rule string `json:"rule"`
	Err  error  `json:"-"`
}

// Report summarises one Apply call.
type Report struct {
	Pairs    []Pair    `json:"pairs"`
	Failures []Failure `json:"failures,omitempty"`
}

// Extractor evaluates extraction rules. It is safe for concurrent use;
// compiled patterns and dataset cursors are shared between calls.
type Extractor struct {
	logger *slog.Logger

	regexes sync.Map // string -> *regexp.Regexp

	mu      sync.Mutex
	cursors map[*mock.Dataset]*atomic.Uint64
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger sets the logger for optional rule failures.
func WithLogger(log *slog.Logger) Option {
	return func(e *Extractor) {
		if log != nil {
			e.logger = log
		}
	}
}

// New creates an Extractor.
func New(opts ...Option) *Extractor {
	e := &Extractor{
		logger:  logging.Nop(),
		cursors: make(map[*mock.Dataset]*atomic.Uint64),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Apply runs rules in order against payload, storing every pair in ctx.
// A failing rule with a Default stores the default instead. The first
// required rule without a default that fails stops extraction.
func (e *Extractor) Apply(ctx *template.Context, rules []mock.ExtractionRule, payload *Payload) (Report, error) {
	var report Report
	if payload.Rand == nil && ctx != nil {
		payload.Rand = ctx.Rand
	}

	for i := range rules {
		rule := &rules[i]
		pairs, err := e.Extract(rule, payload)
		if err != nil {
			switch {
			case rule.Default != nil:
				e.logger.Debug("extraction fell back to default", "rule", rule.Name, "error", err)
				pairs = []Pair{{Name: rule.Name, Value: *rule.Default}}
			case rule.Required:
				return report, &ExtractError{Rule: rule.Name, Kind: rule.Kind, Err: err}
			default:
				e.logger.Debug("optional extraction failed", "rule", rule.Name, "kind", rule.Kind, "error", err)
				report.Failures = append(report.Failures, Failure{Rule: rule.Name, Err: err})
				continue
			}
		}
		for _, p := range pairs {
			if ctx != nil {
				ctx.SetVar(p.Name, p.Value)
			}
			report.Pairs = append(report.Pairs, p)
		}
	}
	return report, nil
}

// Extract evaluates a single rule.
func (e *Extractor) Extract(rule *mock.ExtractionRule, payload *Payload) ([]Pair, error) {
	if rule.Name == "" {
		return nil, fmt.Errorf("%w: name is empty", ErrInvalidRule)
	}
	switch rule.Kind {
	case mock.ExtractStatic:
		return []Pair{{Name: rule.Name, Value: rule.Value}}, nil
	case mock.ExtractPath:
		return e.extractPath(rule, payload)
	case mock.ExtractRegex:
		return e.extractRegex(rule, payload)
	case mock.ExtractHeader:
		vals := payload.Headers.Values(rule.Expr)
		if len(vals) == 0 {
			return nil, fmt.Errorf("%w: header %q", ErrNoMatch, rule.Expr)
		}
		return spread(rule.Name, strings2any(vals)), nil
	case mock.ExtractQuery:
		vals, ok := payload.Query[rule.Expr]
		if !ok {
			return nil, fmt.Errorf("%w: query parameter %q", ErrNoMatch, rule.Expr)
		}
		if len(vals) == 0 {
			vals = []string{""}
		}
		return spread(rule.Name, strings2any(vals)), nil
	case mock.ExtractDataset:
		return e.extractDataset(rule, payload)
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidRule, rule.Kind)
	}
}

func (e *Extractor) extractPath(rule *mock.ExtractionRule, payload *Payload) ([]Pair, error) {
	if strings.HasPrefix(rule.Expr, "/") {
		doc := payload.XML()
		if doc == nil {
			return nil, ErrNotStructured
		}
		vals := docpath.XML(doc, rule.Expr)
		if len(vals) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrNoMatch, rule.Expr)
		}
		return spread(rule.Name, strings2any(vals)), nil
	}

	data := payload.JSON()
	if data == nil {
		return nil, ErrNotStructured
	}
	vals, err := docpath.JSON(data, rule.Expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	if len(vals) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoMatch, rule.Expr)
	}
	return spread(rule.Name, vals), nil
}

func (e *Extractor) extractRegex(rule *mock.ExtractionRule, payload *Payload) ([]Pair, error) {
	re, err := e.regex(rule.Expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	if rule.Group < 0 || rule.Group > re.NumSubexp() {
		return nil, fmt.Errorf("%w: group %d out of range", ErrInvalidRule, rule.Group)
	}

	text := payload.text(rule.From)
	if rule.Group == 0 && hasNamedGroups(re) {
		m := re.FindStringSubmatch(text)
		if m == nil {
			return nil, fmt.Errorf("%w: /%s/", ErrNoMatch, rule.Expr)
		}
		pairs := []Pair{{Name: rule.Name, Value: m[0]}}
		for i, group := range re.SubexpNames() {
			if group != "" {
				pairs = append(pairs, Pair{Name: rule.Name + "." + group, Value: m[i]})
			}
		}
		return pairs, nil
	}

	matches := re.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil, fmt.Errorf("%w: /%s/", ErrNoMatch, rule.Expr)
	}
	vals := make([]any, len(matches))
	for i, m := range matches {
		vals[i] = m[rule.Group]
	}
	return spread(rule.Name, vals), nil
}

func (e *Extractor) extractDataset(rule *mock.ExtractionRule, payload *Payload) ([]Pair, error) {
	if payload.Datasets == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDataset, rule.Dataset)
	}
	ds, ok := payload.Datasets.Dataset(rule.Dataset)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDataset, rule.Dataset)
	}
	if len(ds.Rows) == 0 {
		return nil, fmt.Errorf("%w: dataset %q has no rows", ErrNoMatch, ds.Name)
	}

	var idx int
	if ds.Mode == mock.DatasetRandom {
		if payload.Rand != nil {
			idx = payload.Rand.IntN(len(ds.Rows))
		} else {
			idx = mathrand.IntN(len(ds.Rows))
		}
	} else {
		idx = int((e.cursor(ds).Add(1) - 1) % uint64(len(ds.Rows))) //nolint:gosec // bounded by row count
	}

	row := ds.Rows[idx]
	pairs := make([]Pair, 0, len(ds.Columns)+1)
	for i, col := range ds.Columns {
		if i < len(row) {
			pairs = append(pairs, Pair{Name: rule.Name + "." + col, Value: row[i]})
		}
	}
	pairs = append(pairs, Pair{Name: rule.Name + ".row", Value: idx})
	return pairs, nil
}

// cursor returns the sequential position counter for ds.
func (e *Extractor) cursor(ds *mock.Dataset) *atomic.Uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, ok := e.cursors[ds]
	if !ok {
		c = new(atomic.Uint64)
		e.cursors[ds] = c
	}
	return c
}

// Reset forgets every dataset cursor, for example after a configuration
// reload.
func (e *Extractor) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	clear(e.cursors)
}

func (e *Extractor) regex(pattern string) (*regexp.Regexp, error) {
	if re, ok := e.regexes.Load(pattern); ok {
		return re.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	e.regexes.Store(pattern, re)
	return re, nil
}

func hasNamedGroups(re *regexp.Regexp) bool {
	for _, n := range re.SubexpNames() {
		if n != "" {
			return true
		}
	}
	return false
}

// spread registers vals under name, adding indexed names and a count when
// there is more than one.
func spread(name string, vals []any) []Pair {
	if len(vals) == 1 {
		return []Pair{{Name: name, Value: vals[0]}}
	}
	pairs := make([]Pair, 0, len(vals)+2)
	pairs = append(pairs, Pair{Name: name, Value: vals[0]})
	for i, v := range vals {
		pairs = append(pairs, Pair{Name: name + "." + strconv.Itoa(i), Value: v})
	}
	return append(pairs, Pair{Name: name + ".count", Value: len(vals)})
}

func strings2any(vals []string) []any {
	out := make([]any, len(vals))
	for i, v := range vals {
		out[i] = v
	}
	return out
}
