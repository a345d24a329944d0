package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/getmockd/mockresolver/pkg/extract"
	"github.com/getmockd/mockresolver/pkg/logging"
	"github.com/getmockd/mockresolver/pkg/mock"
	"github.com/getmockd/mockresolver/pkg/pushback"
	"github.com/getmockd/mockresolver/pkg/template"
)

// Seed overrides, highest priority first.
const (
	SeedQueryParam = "_mockresolver_seed"
	SeedHeader     = "X-Mockresolver-Seed"
)

// ErrNoMatch is wrapped by ResolutionError.
var ErrNoMatch = errors.New("no candidate matched")

// ResolutionError is returned when no candidate matched and the endpoint
// has no default.
type ResolutionError struct {
	EndpointID string
	Method     string
	Path       string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("endpoint %q: no candidate matched %s %s and no default is configured", e.EndpointID, e.Method, e.Path)
}

func (e *ResolutionError) Unwrap() error {
	return ErrNoMatch
}

// StatusCode returns the HTTP status code for this error.
func (e *ResolutionError) StatusCode() int {
	return http.StatusNotFound
}

// Dispatcher queues pushbacks. *pushback.Dispatcher implements it.
type Dispatcher interface {
	Dispatch(spec *mock.PushbackSpec, ctx *template.Context, meta pushback.Meta) *pushback.Handle
}

// Resolver turns a request and an endpoint configuration into a rendered
// response. It is safe for concurrent use.
type Resolver struct {
	selector   *Selector
	renderer   *Renderer
	extractor  *extract.Extractor
	dispatcher Dispatcher
	hooks      safeHooks
	log        *slog.Logger
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithSelector sets the candidate selector.
func WithSelector(s *Selector) ResolverOption {
	return func(r *Resolver) {
		if s != nil {
			r.selector = s
		}
	}
}

// WithExtractor sets the extractor, sharing dataset cursors with others.
func WithExtractor(e *extract.Extractor) ResolverOption {
	return func(r *Resolver) {
		if e != nil {
			r.extractor = e
		}
	}
}

// WithDispatcher enables pushback delivery.
func WithDispatcher(d Dispatcher) ResolverOption {
	return func(r *Resolver) {
		r.dispatcher = d
	}
}

// WithHooks sets the notification hooks.
func WithHooks(h Hooks) ResolverOption {
	return func(r *Resolver) {
		if h != nil {
			r.hooks.hooks = h
		}
	}
}

// WithLogger sets the operational logger.
func WithLogger(log *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		if log != nil {
			r.log = log
		}
	}
}

// NewResolver creates a Resolver that renders with renderer.
func NewResolver(renderer *Renderer, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		selector:  defaultSelector,
		renderer:  renderer,
		extractor: extract.New(),
		hooks:     safeHooks{hooks: NopHooks{}},
		log:       logging.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.hooks.log = r.log
	return r
}

// Renderer returns the resolver's renderer.
func (r *Resolver) Renderer() *Renderer { return r.renderer }

// Extractor returns the resolver's extractor.
func (r *Resolver) Extractor() *extract.Extractor { return r.extractor }

// Resolve selects and renders the response for req. Variables seeded and
// extracted before matching are stored in req.Vars so var conditions see them.
//
// Errors are *ResolutionError when nothing matched and there is no
// default, *extract.ExtractError when a required rule failed, and a
// wrapped *template.EvalError or *template.ParseError when rendering
// failed. In the last case the caller should serve InternalErrorResponse;
// a configured pushback is still attempted.
func (r *Resolver) Resolve(ctx context.Context, req *mock.Request, ep *mock.Endpoint) (*RenderedResponse, error) {
	start := time.Now()
	outcome := ResolutionOutcome{EndpointID: ep.ID}
	defer func() {
		outcome.Duration = time.Since(start)
		r.hooks.OnResolved(outcome)
	}()

	if err := ctx.Err(); err != nil {
		outcome.Status, outcome.Err = StatusRenderFailed, err
		return nil, err
	}

	tctx := newContext(req, ep)
	if err := r.seedVariables(tctx, ep); err != nil {
		outcome.Status, outcome.Err = StatusRenderFailed, err
		return nil, err
	}

	if _, err := r.extractor.Apply(tctx, ep.Extract, extract.FromRequest(req, ep)); err != nil {
		r.log.Debug("required extraction failed", "endpoint", ep.ID, "error", err)
		outcome.Status, outcome.Err = StatusExtractFailed, err
		return nil, err
	}
	req.Vars = maps.Clone(tctx.Vars)

	match := r.selector.Select(req, ep.Responses)
	candidate := match.Candidate
	outcome.Status = StatusMatched
	if !match.Matched() {
		if ep.Default == nil {
			err := &ResolutionError{EndpointID: ep.ID, Method: req.Method, Path: req.Path}
			outcome.Status, outcome.Err = StatusNoMatch, err
			return nil, err
		}
		candidate = ep.Default
		outcome.Status = StatusDefault
	}
	outcome.CandidateID = candidate.ID

	// The pushback gets its own snapshot so the main render cannot affect it.
	var pushCtx *template.Context
	if candidate.Pushback != nil && r.dispatcher != nil {
		pushCtx = tctx.Clone()
		outcome.Pushback = true
	}

	resp, err := r.renderer.Render(&candidate.Content, tctx)
	if err != nil {
		r.log.Error("mock response render failed",
			"endpoint", ep.ID,
			"candidate", candidate.ID,
			"error", err,
		)
		outcome.Status, outcome.Err = StatusRenderFailed, err
		outcome.StatusCode = http.StatusInternalServerError
		if pushCtx != nil {
			r.pushback(candidate, pushCtx, ep, nil)
		}
		return nil, fmt.Errorf("candidate %q: %w", candidate.ID, err)
	}
	resp.CandidateID = candidate.ID
	resp.Defaulted = outcome.Status == StatusDefault
	outcome.StatusCode = resp.StatusCode

	if pushCtx != nil {
		r.pushback(candidate, pushCtx, ep, resp)
	}
	return resp, nil
}

// pushback runs response extraction rules into ctx and dispatches. resp is
// nil when the main render failed; response rules are then skipped.
func (r *Resolver) pushback(c *mock.CandidateResponse, ctx *template.Context, ep *mock.Endpoint, resp *RenderedResponse) {
	spec := c.Pushback
	meta := pushback.Meta{EndpointID: ep.ID, CandidateID: c.ID}

	if resp != nil && len(spec.Extract) > 0 {
		payload := extract.FromResponse(resp.Headers, resp.Body, ep)
		if _, err := r.extractor.Apply(ctx, spec.Extract, payload); err != nil {
			r.log.Warn("pushback skipped: response extraction failed", "endpoint", ep.ID, "candidate", c.ID, "error", err)
			r.hooks.OnPushback(pushback.Result{EndpointID: ep.ID, CandidateID: c.ID, Err: err})
			return
		}
	}
	if h := r.dispatcher.Dispatch(spec, ctx, meta); h != nil {
		h.OnDone(r.hooks.OnPushback)
	}
}

// seedVariables renders endpoint variables into ctx in name order.
func (r *Resolver) seedVariables(ctx *template.Context, ep *mock.Endpoint) error {
	for _, name := range slices.Sorted(maps.Keys(ep.Variables)) {
		v, err := r.renderer.RenderString(ep.Variables[name], ctx)
		if err != nil {
			return fmt.Errorf("variables.%s: %w", name, err)
		}
		ctx.SetVar(name, v)
	}
	return nil
}

// newContext builds the evaluation context for req, seeding the RNG when a
// seed is configured or requested.
func newContext(req *mock.Request, ep *mock.Endpoint) *template.Context {
	ctx := template.NewEmptyContext()
	ctx.Request = template.RequestContext{
		Method:     req.Method,
		Path:       req.Path,
		URL:        req.URL,
		Body:       req.JSON(),
		RawBody:    string(req.Body),
		Query:      req.Query,
		Headers:    req.Headers,
		PathParams: req.PathParams,
	}
	if ctx.Request.Query == nil {
		ctx.Request.Query = map[string][]string{}
	}
	if ctx.Request.Headers == nil {
		ctx.Request.Headers = map[string][]string{}
	}
	if ctx.Request.PathParams == nil {
		ctx.Request.PathParams = map[string]string{}
	}
	if seed, ok := resolveSeed(req, ep); ok {
		ctx.SetSeed(seed)
	}
	return ctx
}

// resolveSeed extracts a seed value for deterministic template output.
// Priority order: query param > header > endpoint config.
func resolveSeed(req *mock.Request, ep *mock.Endpoint) (int64, bool) {
	if s := req.Query.Get(SeedQueryParam); s != "" {
		if seed, err := strconv.ParseInt(s, 10, 64); err == nil {
			return seed, true
		}
	}
	if s := req.Headers.Get(SeedHeader); s != "" {
		if seed, err := strconv.ParseInt(s, 10, 64); err == nil {
			return seed, true
		}
	}
	if ep.Seed != nil {
		return *ep.Seed, true
	}
	return 0, false
}
