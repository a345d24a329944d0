// Package config loads and validates mockresolver configuration.
//
// Two documents are involved:
//   - Collection: a set of mock endpoints, read from a JSON or YAML file or
//     from every matching file under a directory
//   - ServerConfig: listener, logging, hot reload and pushback settings
//
// Loading a collection assigns each candidate its ConfiguredOrder, so the
// tie-break between equal priorities is fixed once per generation.
//
// Validation:
//
// Collections are checked in two passes. ValidateSchema checks structure
// against an embedded JSON Schema. Validate checks semantics: endpoint
// structure, every template parsed against the function registry with
// byte offsets, regex and expr conditions compiled, and duplicate IDs.
//
// File-based Configuration:
//
//	collection, err := config.Load("mocks/")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// A collection file looks like:
//
//	version: "1"
//	endpoints:
//	  - id: create-order
//	    method: POST
//	    path: /orders
//	    responses:
//	      - id: created
//	        content:
//	          statusCode: 201
//	          body: '{"id": "${uuid()}"}'
//
// Hot Reload:
//
// Watcher reports changes below a file or directory after a quiet period,
// so editors that write several times per save trigger a single reload.
package config
