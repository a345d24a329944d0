// Package cli provides the command-line interface for mockresolver.
//
// Commands:
//   - serve: Load a mock collection and serve it over HTTP in the foreground
//   - validate: Check collection files against the schema and the function registry
//   - render: Evaluate a ${...} template against a synthetic request
//   - functions: List the built-in template functions (text, markdown or JSON)
//   - schema: Print the collection JSON schema
//   - version: Show build information
//
// Serve settings are layered: defaults, then the --config file, then
// MOCKRESOLVER_* environment variables, then flags that were set
// explicitly. With --watch the collection is reloaded when files change;
// a reload that fails validation leaves the running generation in place.
//
// Every command accepts --json for machine-readable output and
// --log-level/--log-format for diagnostics on stderr.
package cli
