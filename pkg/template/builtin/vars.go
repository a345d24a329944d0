package builtin

import (
	"github.com/getmockd/mockresolver/pkg/template"
)

func varFuncs() []template.FunctionSpec {
	return []template.FunctionSpec{
		spec("var", 1, 2, template.KindPure, funcVar,
			"Context variable by name. Fails when unset and no fallback is given.", "${var(userId, anonymous)}",
			param("name", "string", "variable name"), optional("fallback", "any", "used when unset")),
		spec("iteration", 0, 0, template.KindVolatile, func(ctx *template.Context, _ []template.Value) (template.Value, error) {
			return ctx.Iteration, nil
		}, "Zero-based index of the current repetition.", "item-${iteration()}"),
	}
}

func funcVar(ctx *template.Context, args []template.Value) (template.Value, error) {
	name := str(args[0])
	if v, ok := ctx.Var(name); ok {
		return v, nil
	}
	if len(args) == 2 {
		return args[1], nil
	}
	return nil, &template.EvalError{Kind: template.UnresolvedVariable, Name: name}
}
