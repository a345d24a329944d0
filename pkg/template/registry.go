package template

import (
	"errors"
	"fmt"
	"sort"
)

// Value is an argument or result passed between template functions.
type Value = any

// Variadic marks a FunctionSpec with no upper argument bound.
const Variadic = -1

// Kind classifies a function's purity.
type Kind int

const (
	// KindPure functions return the same value for the same arguments and
	// context. Batches made only of pure calls are evaluated once.
	KindPure Kind = iota
	// KindVolatile functions draw on randomness, time or the request.
	KindVolatile
	// KindStateful functions carry state across calls (counters, cursors).
	KindStateful
)

func (k Kind) String() string {
	switch k {
	case KindPure:
		return "pure"
	case KindVolatile:
		return "volatile"
	case KindStateful:
		return "stateful"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Func is the implementation of a template function. Arguments arrive fully
// evaluated, left to right.
type Func func(ctx *Context, args []Value) (Value, error)

// ParamDoc documents a single function parameter.
type ParamDoc struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Optional    bool   `json:"optional,omitempty"`
	Description string `json:"description,omitempty"`
}

// FunctionDoc is the fixed documentation schema rendered into the function
// reference.
type FunctionDoc struct {
	Name        string     `json:"name"`
	Params      []ParamDoc `json:"params"`
	Example     string     `json:"example"`
	Description string     `json:"description"`
	Kind        Kind       `json:"kind"`
}

// FunctionSpec describes a registered function.
type FunctionSpec struct {
	Name    string
	MinArgs int
	MaxArgs int // Variadic for no limit
	Kind    Kind
	Invoke  Func
	Doc     FunctionDoc
}

// AcceptsArgs reports whether n arguments satisfy the spec's arity.
func (s *FunctionSpec) AcceptsArgs(n int) bool {
	if n < s.MinArgs {
		return false
	}
	return s.MaxArgs == Variadic || n <= s.MaxArgs
}

// Registry errors.
var (
	ErrDuplicateFunction = errors.New("function already registered")
	ErrInvalidFunction   = errors.New("invalid function spec")
	ErrRegistryFrozen    = errors.New("registry is frozen")
)

// Registry maps function names to specs. It is populated once at startup and
// frozen; after Freeze it is read-only and shared without locking. Register
// must not be called concurrently with lookups.
type Registry struct {
	funcs  map[string]*FunctionSpec
	frozen bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{funcs: make(map[string]*FunctionSpec)}
}

// Register adds a function. It fails on duplicate names, malformed specs and
// after Freeze.
func (r *Registry) Register(spec FunctionSpec) error {
	if r.frozen {
		return fmt.Errorf("%w: cannot register %q", ErrRegistryFrozen, spec.Name)
	}
	if !isIdent(spec.Name) {
		return fmt.Errorf("%w: bad name %q", ErrInvalidFunction, spec.Name)
	}
	if spec.Invoke == nil {
		return fmt.Errorf("%w: %q has no implementation", ErrInvalidFunction, spec.Name)
	}
	if spec.MinArgs < 0 || (spec.MaxArgs != Variadic && spec.MaxArgs < spec.MinArgs) {
		return fmt.Errorf("%w: %q has arity [%d, %d]", ErrInvalidFunction, spec.Name, spec.MinArgs, spec.MaxArgs)
	}
	if _, exists := r.funcs[spec.Name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateFunction, spec.Name)
	}
	if spec.Doc.Name == "" {
		spec.Doc.Name = spec.Name
	}
	spec.Doc.Kind = spec.Kind
	r.funcs[spec.Name] = &spec
	return nil
}

// MustRegister is Register for fixed startup catalogs; it panics on error.
func (r *Registry) MustRegister(specs ...FunctionSpec) {
	for _, s := range specs {
		if err := r.Register(s); err != nil {
			panic(err)
		}
	}
}

// Freeze makes the registry read-only.
func (r *Registry) Freeze() *Registry {
	r.frozen = true
	return r
}

// Frozen reports whether Freeze has been called.
func (r *Registry) Frozen() bool { return r.frozen }

// Lookup returns the spec registered under name.
func (r *Registry) Lookup(name string) (*FunctionSpec, bool) {
	s, ok := r.funcs[name]
	return s, ok
}

// Len returns the number of registered functions.
func (r *Registry) Len() int { return len(r.funcs) }

// Names returns all function names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.funcs))
	for n := range r.funcs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// DescribeAll returns documentation for every function, sorted by name.
func (r *Registry) DescribeAll() []FunctionDoc {
	docs := make([]FunctionDoc, 0, len(r.funcs))
	for _, n := range r.Names() {
		docs = append(docs, r.funcs[n].Doc)
	}
	return docs
}

// MaxArity returns the largest MaxArgs of any registered function, or
// Variadic when at least one function is unbounded.
func (r *Registry) MaxArity() int {
	m := 0
	for _, s := range r.funcs {
		if s.MaxArgs == Variadic {
			return Variadic
		}
		if s.MaxArgs > m {
			m = s.MaxArgs
		}
	}
	return m
}
