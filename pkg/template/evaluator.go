package template

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

// DefaultMaxIterations bounds EvaluateBatch.
const DefaultMaxIterations = 10000

// Evaluator walks Expressions against a Context. It holds no per-request
// state and is safe for concurrent use.
type Evaluator struct {
	registry      atomic.Pointer[Registry]
	maxIterations int
}

// EvaluatorOption configures an Evaluator.
type EvaluatorOption func(*Evaluator)

// WithMaxIterations sets the batch iteration cap. Values <= 0 keep the default.
func WithMaxIterations(n int) EvaluatorOption {
	return func(e *Evaluator) {
		if n > 0 {
			e.maxIterations = n
		}
	}
}

// NewEvaluator creates an evaluator over reg. The registry is frozen.
func NewEvaluator(reg *Registry, opts ...EvaluatorOption) *Evaluator {
	e := &Evaluator{maxIterations: DefaultMaxIterations}
	for _, opt := range opts {
		opt(e)
	}
	e.registry.Store(reg.Freeze())
	return e
}

// Registry returns the current function registry.
func (e *Evaluator) Registry() *Registry {
	return e.registry.Load()
}

// SwapRegistry atomically replaces the function registry. Evaluations already
// in flight finish against the registry they started with.
func (e *Evaluator) SwapRegistry(reg *Registry) {
	e.registry.Store(reg.Freeze())
}

// MaxIterations returns the batch iteration cap.
func (e *Evaluator) MaxIterations() int {
	return e.maxIterations
}

// Evaluate renders expr once. Templates without calls are returned unchanged.
func (e *Evaluator) Evaluate(expr *Expression, ctx *Context) (string, error) {
	return e.evaluate(expr, ctx, e.registry.Load())
}

// EvaluateBatch renders expr n times, independently. Stateful functions see
// their calls in iteration order; ctx.Iteration is set for each pass. A
// template that only calls pure functions is evaluated once and replicated.
func (e *Evaluator) EvaluateBatch(expr *Expression, ctx *Context, n int) ([]string, error) {
	if n < 0 {
		return nil, &EvalError{Kind: IterationCapExceeded, Err: fmt.Errorf("negative iteration count %d", n)}
	}
	if n > e.maxIterations {
		return nil, &EvalError{Kind: IterationCapExceeded, Err: fmt.Errorf("%d iterations requested, limit is %d", n, e.maxIterations)}
	}
	out := make([]string, n)
	if n == 0 {
		return out, nil
	}
	reg := e.registry.Load()
	if ctx == nil {
		ctx = NewEmptyContext()
	}
	prev := ctx.Iteration
	defer func() { ctx.Iteration = prev }()

	if e.isPure(expr, reg) {
		ctx.Iteration = 0
		s, err := e.evaluate(expr, ctx, reg)
		if err != nil {
			return nil, err
		}
		for i := range out {
			out[i] = s
		}
		return out, nil
	}

	for i := range out {
		ctx.Iteration = i
		s, err := e.evaluate(expr, ctx, reg)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

// IsPure reports whether every call in expr resolves to a pure function.
// Variable references are pure; unknown functions are not.
func (e *Evaluator) IsPure(expr *Expression) bool {
	return e.isPure(expr, e.registry.Load())
}

func (e *Evaluator) isPure(expr *Expression, reg *Registry) bool {
	for _, name := range expr.Calls() {
		spec, ok := reg.Lookup(name)
		if !ok || spec.Kind != KindPure {
			return false
		}
	}
	return true
}

func (e *Evaluator) evaluate(expr *Expression, ctx *Context, reg *Registry) (string, error) {
	if !expr.HasCalls() {
		if len(expr.Nodes) == 1 {
			return expr.Nodes[0].(*Literal).Text, nil
		}
	}
	if ctx == nil {
		ctx = NewEmptyContext()
	}
	var b strings.Builder
	b.Grow(len(expr.Source))
	for _, n := range expr.Nodes {
		if l, ok := n.(*Literal); ok {
			b.WriteString(l.Text)
			continue
		}
		v, err := e.eval(n, ctx, reg)
		if err != nil {
			return "", err
		}
		b.WriteString(FormatValue(v))
	}
	return b.String(), nil
}

// eval resolves a single node. Arguments are evaluated depth-first, left to
// right, before the function is invoked.
func (e *Evaluator) eval(n Node, ctx *Context, reg *Registry) (Value, error) {
	switch v := n.(type) {
	case *Literal:
		return v.Text, nil
	case *VarRef:
		val, ok := ctx.Var(v.Name)
		if !ok {
			return nil, &EvalError{Kind: UnresolvedVariable, Name: v.Name, Offset: v.Pos}
		}
		return val, nil
	case *Call:
		spec, ok := reg.Lookup(v.Name)
		if !ok {
			return nil, &EvalError{Kind: UnknownFunction, Name: v.Name, Offset: v.Pos}
		}
		if !spec.AcceptsArgs(len(v.Args)) {
			return nil, &EvalError{Kind: ArityMismatch, Name: v.Name, Offset: v.Pos, Err: arityError(spec, len(v.Args))}
		}
		args := make([]Value, len(v.Args))
		for i, a := range v.Args {
			val, err := e.eval(a, ctx, reg)
			if err != nil {
				return nil, err
			}
			args[i] = val
		}
		return invoke(spec, v, ctx, args)
	default:
		return nil, fmt.Errorf("unexpected node %T", n)
	}
}

func invoke(spec *FunctionSpec, call *Call, ctx *Context, args []Value) (result Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &EvalError{Kind: FunctionFailed, Name: call.Name, Offset: call.Pos, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	result, err = spec.Invoke(ctx, args)
	if err != nil {
		var ee *EvalError
		if errors.As(err, &ee) {
			if ee.Offset == 0 {
				ee.Offset = call.Pos
			}
			return nil, ee
		}
		return nil, &EvalError{Kind: FunctionFailed, Name: call.Name, Offset: call.Pos, Err: err}
	}
	return result, nil
}

func arityError(spec *FunctionSpec, got int) error {
	switch {
	case spec.MaxArgs == Variadic:
		return fmt.Errorf("want at least %d arguments, got %d", spec.MinArgs, got)
	case spec.MinArgs == spec.MaxArgs:
		return fmt.Errorf("want %d arguments, got %d", spec.MinArgs, got)
	default:
		return fmt.Errorf("want %d to %d arguments, got %d", spec.MinArgs, spec.MaxArgs, got)
	}
}

// FormatValue converts a function result to its textual form. Maps and
// slices are rendered as JSON.
func FormatValue(val Value) string {
	switch v := val.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case uint:
		return strconv.FormatUint(uint64(v), 10)
	case bool:
		return strconv.FormatBool(v)
	case time.Time:
		return v.Format(time.RFC3339)
	case fmt.Stringer:
		return v.String()
	case map[string]any, []any, []string, []map[string]any:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(b)
	default:
		return fmt.Sprintf("%v", v)
	}
}
