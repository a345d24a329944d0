package engine

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/getmockd/mockresolver/pkg/logging"
	"github.com/getmockd/mockresolver/pkg/mock"
	"github.com/getmockd/mockresolver/pkg/template"
	"github.com/getmockd/mockresolver/pkg/util"
)

// Renderer substitutes templates in response content. Parsed templates are
// cached per configuration generation; Reset starts a new generation.
type Renderer struct {
	eval    *template.Evaluator
	cache   atomic.Pointer[template.Cache]
	baseDir string
	log     *slog.Logger
}

// RendererOption configures a Renderer.
type RendererOption func(*Renderer)

// WithBaseDir sets the directory relative body files are read from.
func WithBaseDir(dir string) RendererOption {
	return func(r *Renderer) {
		r.baseDir = dir
	}
}

// WithRendererLogger sets the operational logger.
func WithRendererLogger(log *slog.Logger) RendererOption {
	return func(r *Renderer) {
		if log != nil {
			r.log = log
		}
	}
}

// NewRenderer creates a Renderer over eval.
func NewRenderer(eval *template.Evaluator, opts ...RendererOption) *Renderer {
	r := &Renderer{eval: eval, log: logging.Nop()}
	for _, opt := range opts {
		opt(r)
	}
	r.Reset()
	return r
}

// Evaluator returns the underlying evaluator.
func (r *Renderer) Evaluator() *template.Evaluator {
	return r.eval
}

// Reset drops every cached template. Call it when the configuration or the
// function registry changes.
func (r *Renderer) Reset() {
	r.cache.Store(template.NewCache(template.ParserFor(r.eval.Registry())))
}

// Cache returns the current template cache.
func (r *Renderer) Cache() *template.Cache {
	return r.cache.Load()
}

// RenderString renders a single template source.
func (r *Renderer) RenderString(source string, ctx *template.Context) (string, error) {
	expr, err := r.cache.Load().Get(source)
	if err != nil {
		return "", err
	}
	return r.eval.Evaluate(expr, ctx)
}

// Render renders every header value and the body of content. Header names
// are never templated. The first error aborts rendering and no partial
// response is returned.
func (r *Renderer) Render(content *mock.TemplatedContent, ctx *template.Context) (*RenderedResponse, error) {
	out := &RenderedResponse{
		StatusCode: content.StatusCode,
		Headers:    make(http.Header, len(content.Headers)+1),
		Delay:      time.Duration(content.DelayMs) * time.Millisecond,
	}
	if out.StatusCode == 0 {
		out.StatusCode = http.StatusOK
	}

	for i, h := range content.Headers {
		v, err := r.RenderString(h.Value, ctx)
		if err != nil {
			return nil, fmt.Errorf("headers[%d] %s: %w", i, h.Name, err)
		}
		out.Headers.Add(h.Name, v)
	}

	source, err := r.bodySource(content)
	if err != nil {
		return nil, err
	}
	body, err := r.renderBody(source, content.Repeat, ctx)
	if err != nil {
		return nil, fmt.Errorf("body: %w", err)
	}
	out.Body = []byte(body)

	if out.Headers.Get("Content-Type") == "" && body != "" {
		out.Headers.Set("Content-Type", util.SniffContentType(body))
	}
	return out, nil
}

// bodySource returns the inline body, or the contents of BodyFile.
func (r *Renderer) bodySource(content *mock.TemplatedContent) (string, error) {
	if content.Body != "" || content.BodyFile == "" {
		return content.Body, nil
	}
	path, err := util.ResolveBodyFile(r.baseDir, content.BodyFile)
	if err != nil {
		return "", fmt.Errorf("bodyFile: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		r.log.Error("failed to read body file", "file", path, "error", err)
		return "", fmt.Errorf("bodyFile: %w", err)
	}
	return string(data), nil
}

// renderBody renders source once, or Repeat.Count times joined together.
func (r *Renderer) renderBody(source string, repeat *mock.RepeatSpec, ctx *template.Context) (string, error) {
	if repeat == nil {
		return r.RenderString(source, ctx)
	}
	expr, err := r.cache.Load().Get(source)
	if err != nil {
		return "", err
	}
	items, err := r.eval.EvaluateBatch(expr, ctx, repeat.Count)
	if err != nil {
		return "", err
	}
	return repeat.Prefix + strings.Join(items, repeat.Separator) + repeat.Suffix, nil
}
