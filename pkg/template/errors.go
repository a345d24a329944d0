package template

import (
	"errors"
	"fmt"
)

// Sentinel errors for evaluation failures. Every *EvalError matches exactly
// one of them with errors.Is.
var (
	ErrUnknownFunction    = errors.New("unknown function")
	ErrUnresolvedVariable = errors.New("unresolved variable")
	ErrArity              = errors.New("wrong number of arguments")
	ErrFunctionFailed     = errors.New("function failed")
	ErrIterationCap       = errors.New("iteration cap exceeded")
)

// ErrorKind categorises an EvalError.
type ErrorKind int

const (
	UnknownFunction ErrorKind = iota + 1
	UnresolvedVariable
	ArityMismatch
	FunctionFailed
	IterationCapExceeded
)

func (k ErrorKind) String() string {
	switch k {
	case UnknownFunction:
		return "UnknownFunction"
	case UnresolvedVariable:
		return "UnresolvedVariable"
	case ArityMismatch:
		return "ArityMismatch"
	case FunctionFailed:
		return "FunctionFailed"
	case IterationCapExceeded:
		return "IterationCapExceeded"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

func (k ErrorKind) sentinel() error {
	switch k {
	case UnknownFunction:
		return ErrUnknownFunction
	case UnresolvedVariable:
		return ErrUnresolvedVariable
	case ArityMismatch:
		return ErrArity
	case FunctionFailed:
		return ErrFunctionFailed
	case IterationCapExceeded:
		return ErrIterationCap
	default:
		return nil
	}
}

// EvalError is returned when an expression cannot be evaluated.
type EvalError struct {
	Kind ErrorKind
	// Name is the function or variable involved, if any.
	Name string
	// Offset is the byte offset of the failing node in the template source.
	Offset int
	// Err is the underlying cause for FunctionFailed.
	Err error
}

func (e *EvalError) Error() string {
	switch e.Kind {
	case UnknownFunction:
		return fmt.Sprintf("unknown function %q at offset %d", e.Name, e.Offset)
	case UnresolvedVariable:
		return fmt.Sprintf("unresolved variable %q at offset %d", e.Name, e.Offset)
	case ArityMismatch:
		return fmt.Sprintf("function %q at offset %d: %v", e.Name, e.Offset, e.Err)
	case FunctionFailed:
		return fmt.Sprintf("function %q at offset %d failed: %v", e.Name, e.Offset, e.Err)
	case IterationCapExceeded:
		return fmt.Sprintf("iteration cap exceeded: %v", e.Err)
	default:
		return fmt.Sprintf("evaluation error: %v", e.Err)
	}
}

// Unwrap exposes both the kind sentinel and the underlying cause.
func (e *EvalError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if s := e.Kind.sentinel(); s != nil {
		errs = append(errs, s)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}
