// Package util provides small helpers shared by the renderer, the pushback
// dispatcher and the HTTP adapter.
//
//   - ResolveBodyFile: resolve a configured body file, rejecting traversal
//   - SniffContentType: pick a Content-Type for a rendered body
//   - TruncateBody: cap bodies for safe logging
package util
