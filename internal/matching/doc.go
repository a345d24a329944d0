// Package matching evaluates candidate-response predicates against inbound
// requests and scores endpoint paths for routing.
//
// A predicate is a list of conditions combined with and/or logic. Each
// condition inspects one request field:
//
//   - method, path: the request line
//   - header, query: a named header or query parameter (Condition.Key)
//   - body: the raw body text
//   - jsonpath, xpath: values selected from a JSON or XML body
//   - var: a variable extracted before matching
//
// with one operator: equals, contains, regex, exists, pattern (wildcards and
// {param} path segments) or expr (an expr-lang boolean expression). Regex and
// expr programs are compiled once and cached. An invalid pattern never panics;
// it simply fails to match.
//
// Path scores (scores.go) rank endpoints: exact paths beat {param} patterns,
// which beat wildcards.
package matching
