package builtin

import (
	"github.com/getmockd/mockresolver/internal/docpath"
	"github.com/getmockd/mockresolver/pkg/template"
)

// Request accessors are pure: they read only the evaluation context. A
// missing value renders as the fallback, or empty.
func requestFuncs() []template.FunctionSpec {
	fallback := optional("fallback", "string", "used when the value is missing")
	return []template.FunctionSpec{
		spec("request.method", 0, 0, template.KindPure, func(ctx *template.Context, _ []template.Value) (template.Value, error) {
			return ctx.Request.Method, nil
		}, "HTTP method of the inbound request.", "${request.method()}"),
		spec("request.path", 0, 0, template.KindPure, func(ctx *template.Context, _ []template.Value) (template.Value, error) {
			return ctx.Request.Path, nil
		}, "Path of the inbound request.", "${request.path()}"),
		spec("request.url", 0, 0, template.KindPure, func(ctx *template.Context, _ []template.Value) (template.Value, error) {
			return ctx.Request.URL, nil
		}, "Full URL of the inbound request.", "${request.url()}"),
		spec("request.body", 0, 2, template.KindPure, funcRequestBody,
			"Raw request body, or the value at a JSONPath (or XPath for XML bodies).", "${request.body($.user.id)}",
			optional("path", "string", "JSONPath or XPath"), fallback),
		spec("request.header", 1, 2, template.KindPure, funcRequestHeader,
			"First value of a request header, matched case-insensitively.", "${request.header(X-Request-Id)}",
			param("name", "string", "header name"), fallback),
		spec("request.query", 1, 2, template.KindPure, funcRequestQuery,
			"First value of a query parameter.", "${request.query(page, 1)}",
			param("name", "string", "parameter name"), fallback),
		spec("request.pathParam", 1, 2, template.KindPure, funcRequestPathParam,
			"Value captured by a {name} path segment.", "${request.pathParam(id)}",
			param("name", "string", "parameter name"), fallback),
	}
}

func funcRequestBody(ctx *template.Context, args []template.Value) (template.Value, error) {
	if len(args) == 0 {
		return ctx.Request.RawBody, nil
	}
	v, ok := docpath.Lookup([]byte(ctx.Request.RawBody), ctx.Request.Body, str(args[0]))
	if !ok || v == nil {
		return optArg(args, 1, ""), nil
	}
	return v, nil
}

func funcRequestHeader(ctx *template.Context, args []template.Value) (template.Value, error) {
	return orFallback(ctx.Header(str(args[0])), args), nil
}

func funcRequestQuery(ctx *template.Context, args []template.Value) (template.Value, error) {
	return orFallback(ctx.Query(str(args[0])), args), nil
}

func funcRequestPathParam(ctx *template.Context, args []template.Value) (template.Value, error) {
	return orFallback(ctx.Request.PathParams[str(args[0])], args), nil
}

func orFallback(v string, args []template.Value) template.Value {
	if v == "" {
		return optArg(args, 1, "")
	}
	return v
}
