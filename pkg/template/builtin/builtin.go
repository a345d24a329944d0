// Package builtin provides the standard catalog of template functions:
// identifiers, random values, time, string helpers, counters, fake data,
// request accessors, arithmetic and tokens.
package builtin

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/getmockd/mockresolver/internal/exprcache"
	"github.com/getmockd/mockresolver/pkg/template"
)

// Options configures the catalog. Zero values select defaults.
type Options struct {
	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
	// Sequences backs sequence(); a fresh store is used when nil.
	Sequences *SequenceStore
	// Exprs caches calc() programs; a fresh cache is used when nil.
	Exprs *exprcache.Cache
}

func (o Options) withDefaults() Options {
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Sequences == nil {
		o.Sequences = NewSequenceStore()
	}
	if o.Exprs == nil {
		o.Exprs = exprcache.New()
	}
	return o
}

// Catalog returns every built-in function spec.
func Catalog(opts Options) []template.FunctionSpec {
	opts = opts.withDefaults()
	var specs []template.FunctionSpec
	specs = append(specs, randomFuncs()...)
	specs = append(specs, timeFuncs(opts.Now)...)
	specs = append(specs, stringFuncs()...)
	specs = append(specs, stateFuncs(opts.Sequences)...)
	specs = append(specs, fakerFuncs()...)
	specs = append(specs, requestFuncs()...)
	specs = append(specs, calcFuncs(opts.Exprs)...)
	specs = append(specs, tokenFuncs(opts.Now)...)
	specs = append(specs, varFuncs()...)
	return specs
}

// Register adds the built-in catalog to reg.
func Register(reg *template.Registry, opts Options) error {
	for _, s := range Catalog(opts) {
		if err := reg.Register(s); err != nil {
			return err
		}
	}
	return nil
}

// NewRegistry returns a frozen registry holding the built-in catalog.
func NewRegistry(opts Options) (*template.Registry, error) {
	reg := template.NewRegistry()
	if err := Register(reg, opts); err != nil {
		return nil, err
	}
	return reg.Freeze(), nil
}

// spec is shorthand for catalog entries.
func spec(name string, minArgs, maxArgs int, kind template.Kind, invoke template.Func, desc, example string, params ...template.ParamDoc) template.FunctionSpec {
	return template.FunctionSpec{
		Name:    name,
		MinArgs: minArgs,
		MaxArgs: maxArgs,
		Kind:    kind,
		Invoke:  invoke,
		Doc: template.FunctionDoc{
			Name:        name,
			Params:      params,
			Example:     example,
			Description: desc,
		},
	}
}

func param(name, typ, desc string) template.ParamDoc {
	return template.ParamDoc{Name: name, Type: typ, Description: desc}
}

func optional(name, typ, desc string) template.ParamDoc {
	return template.ParamDoc{Name: name, Type: typ, Optional: true, Description: desc}
}

func str(v template.Value) string {
	return template.FormatValue(v)
}

func toInt(name string, v template.Value) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	}
	i, err := strconv.Atoi(strings.TrimSpace(str(v)))
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not an integer", name, str(v))
	}
	return i, nil
}

func toFloat(name string, v template.Value) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(str(v)), 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not a number", name, str(v))
	}
	return f, nil
}

// optArg returns args[i] or def when absent.
func optArg(args []template.Value, i int, def template.Value) template.Value {
	if i < len(args) {
		return args[i]
	}
	return def
}
