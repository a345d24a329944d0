package builtin

import (
	"strconv"

	"github.com/getmockd/mockresolver/internal/exprcache"
	"github.com/getmockd/mockresolver/pkg/template"
)

func calcFuncs(exprs *exprcache.Cache) []template.FunctionSpec {
	return []template.FunctionSpec{
		spec("calc", 1, 1, template.KindPure, funcCalc(exprs),
			"Evaluate an expr-lang expression over context variables. Variables are in scope by name and under vars.",
			`${calc("qty * price")}`, param("expression", "string", "expr-lang expression")),
	}
}

func funcCalc(exprs *exprcache.Cache) template.Func {
	return func(ctx *template.Context, args []template.Value) (template.Value, error) {
		return exprs.Eval(str(args[0]), calcEnv(ctx))
	}
}

// calcEnv exposes variables to expressions. Numeric strings become numbers so
// extracted values can take part in arithmetic.
func calcEnv(ctx *template.Context) map[string]any {
	vars := make(map[string]any, len(ctx.Vars))
	env := make(map[string]any, len(ctx.Vars)+1)
	for k, v := range ctx.Vars {
		v = numeric(v)
		vars[k] = v
		if isExprIdent(k) {
			env[k] = v
		}
	}
	env["vars"] = vars
	return env
}

func numeric(v template.Value) template.Value {
	s, ok := v.(string)
	if !ok {
		return v
	}
	if i, err := strconv.Atoi(s); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return v
}

// exprKeywords cannot be bound as variables.
var exprKeywords = map[string]bool{
	"vars": true, "in": true, "not": true, "and": true, "or": true,
	"matches": true, "contains": true, "startsWith": true, "endsWith": true,
	"true": true, "false": true, "nil": true, "let": true, "if": true, "else": true,
}

func isExprIdent(s string) bool {
	if s == "" || exprKeywords[s] {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}
