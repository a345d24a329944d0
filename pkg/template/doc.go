// Package template implements the mock function expression language used in
// response bodies, headers, file templates and pushback requests.
//
// # Syntax
//
// Text is copied verbatim except for ${...} markers:
//   - ${uuid} or ${uuid()} - zero-argument function call
//   - ${random.int(1, 100)} - call with bare literal arguments
//   - ${default(var:name, "anonymous")} - variable reference and quoted string
//   - ${upper(${faker("name")})} or ${upper(faker("name"))} - nested calls
//   - ${var:userId} - variable from the evaluation context
//   - ${"${"} - quoted literal, the only way to emit a literal "${"
//
// A lone "}" or "$" in text is plain text, so JSON bodies need no escaping.
// Quoted strings accept single or double quotes with backslash escapes.
//
// # Components
//
// A Parser turns source text into an immutable Expression tree without
// consulting any function registry. A Registry maps names to FunctionSpecs and
// is frozen once built. An Evaluator walks an Expression against a per-request
// Context and produces text, either once (Evaluate) or N independent times
// (EvaluateBatch). A Cache memoises parsed expressions per source string.
//
// Function names are resolved at evaluation time, so templates can be parsed
// and validated before the function catalog is known.
package template
