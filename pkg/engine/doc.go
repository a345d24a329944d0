// Package engine resolves requests against configured endpoints.
//
// # Resolution
//
// A Resolver takes a request and the endpoint it was routed to and produces
// a RenderedResponse:
//
//	seed context ─▶ extract ─▶ select ─▶ render ─▶ pushback
//
// The evaluation context is seeded from the endpoint's variables, then the
// endpoint's extraction rules run against the request. The Selector picks
// the matching candidate with the highest priority; ties fall back to the
// configured order and then the candidate ID, so the result never depends
// on slice order. The Renderer evaluates status, headers and body and fails
// the whole response on the first template error. A pushback attached to
// the selected candidate is queued on the dispatcher and never delays the
// response.
//
// Hooks observe every resolution and every pushback delivery.
//
// # Serving
//
// Handler adapts a Resolver to net/http. Requests are routed by method and
// path pattern, then resolved. Failures map to JSON errors:
//
//   - no endpoint for the path: 404 no_endpoint
//   - no candidate matched and no default: 404 no_match with near misses
//   - a required extraction failed: 400 extraction_failed
//   - a template failed to render: 500 internal_mock_error
//
// Server wraps a Handler with a listener and drains queued pushbacks on
// Stop.
//
// # Basic Usage
//
//	eval := template.NewEvaluator(builtin.NewRegistry(builtin.Options{}))
//	disp := pushback.New(engine.NewRenderer(eval), pushback.DefaultConfig())
//	res := engine.NewResolver(engine.NewRenderer(eval), engine.WithDispatcher(disp))
//	h := engine.NewHandler(res, endpoints)
//
//	srv := engine.NewServer(":4280", h, engine.WithDrainer(disp))
//	srv.Start()
//	defer srv.Stop(context.Background())
package engine
