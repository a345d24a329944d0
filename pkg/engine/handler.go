// HTTP adapter for the resolver.

package engine

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"sync/atomic"
	"time"

	"github.com/getmockd/mockresolver/internal/matching"
	"github.com/getmockd/mockresolver/pkg/extract"
	"github.com/getmockd/mockresolver/pkg/logging"
	"github.com/getmockd/mockresolver/pkg/mock"
)

// MaxRequestBodySize is the maximum allowed request body size (10MB).
const MaxRequestBodySize = 10 << 20

// Reserved paths, always served before routing.
const (
	HealthPath  = "/__mockresolver/health"
	ReadyPath   = "/__mockresolver/ready"
	MetricsPath = "/__mockresolver/metrics"
)

// CandidateHeader names the response header carrying the selected
// candidate ID.
const CandidateHeader = "X-Mockresolver-Candidate"

// maxNearMisses bounds the candidates explained in a no-match response.
const maxNearMisses = 3

// Handler serves configured endpoints over HTTP.
type Handler struct {
	resolver *Resolver
	router   atomic.Pointer[Router]
	matcher  *matching.Matcher
	metrics  http.Handler
	log      *slog.Logger
	maxBody  int64
	started  time.Time
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithMetricsHandler serves h at MetricsPath.
func WithMetricsHandler(h http.Handler) HandlerOption {
	return func(hd *Handler) {
		hd.metrics = h
	}
}

// WithHandlerLogger sets the operational logger.
func WithHandlerLogger(log *slog.Logger) HandlerOption {
	return func(hd *Handler) {
		if log != nil {
			hd.log = log
		}
	}
}

// WithMaxBodySize overrides MaxRequestBodySize.
func WithMaxBodySize(n int64) HandlerOption {
	return func(hd *Handler) {
		if n > 0 {
			hd.maxBody = n
		}
	}
}

// WithExplainMatcher sets the matcher used to explain near misses.
func WithExplainMatcher(m *matching.Matcher) HandlerOption {
	return func(hd *Handler) {
		if m != nil {
			hd.matcher = m
		}
	}
}

// NewHandler creates a Handler serving endpoints through res.
func NewHandler(res *Resolver, endpoints []*mock.Endpoint, opts ...HandlerOption) *Handler {
	h := &Handler{
		resolver: res,
		matcher:  matching.New(),
		log:      logging.Nop(),
		maxBody:  MaxRequestBodySize,
		started:  time.Now(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.router.Store(NewRouter(endpoints))
	return h
}

// Load swaps in a new set of endpoints. Requests already in flight finish
// against the previous generation; cached templates and dataset cursors
// are reset.
func (h *Handler) Load(endpoints []*mock.Endpoint) {
	h.router.Store(NewRouter(endpoints))
	h.resolver.Renderer().Reset()
	h.resolver.Extractor().Reset()
	h.log.Info("configuration loaded", "endpoints", len(endpoints))
}

// Endpoints returns the endpoints currently served.
func (h *Handler) Endpoints() []*mock.Endpoint {
	return h.router.Load().Endpoints()
}

// ServeHTTP implements the http.Handler interface.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case HealthPath:
		h.handleHealth(w, r)
		return
	case ReadyPath:
		h.handleReady(w, r)
		return
	case MetricsPath:
		if h.metrics != nil {
			h.metrics.ServeHTTP(w, r)
			return
		}
	}

	// MaxBytesReader errors when the limit is exceeded, unlike LimitReader
	// which silently truncates.
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			h.log.Warn("request body too large", "path", r.URL.Path, "limit", h.maxBody)
			writeJSONError(w, http.StatusRequestEntityTooLarge, map[string]any{
				"error":   "body_too_large",
				"message": "Request body exceeds maximum allowed size",
			})
			return
		}
		h.log.Warn("failed to read request body", "path", r.URL.Path, "error", err)
		writeJSONError(w, http.StatusBadRequest, map[string]any{
			"error":   "body_read_failed",
			"message": "Request body could not be read",
		})
		return
	}

	route, ok := h.router.Load().Lookup(r.Method, r.URL.Path)
	if !ok {
		writeJSONError(w, http.StatusNotFound, map[string]any{
			"error":   "no_endpoint",
			"message": "No endpoint is configured for this method and path",
			"method":  r.Method,
			"path":    r.URL.Path,
		})
		return
	}

	req := mock.NewRequest(r, body)
	req.PathParams = route.PathParams
	ep := route.Endpoint

	resp, err := h.resolver.Resolve(r.Context(), req, ep)
	if err != nil {
		h.writeResolveError(w, req, ep, err)
		return
	}

	h.log.Debug("request resolved",
		"method", r.Method,
		"path", r.URL.Path,
		"endpoint", ep.ID,
		"candidate", resp.CandidateID,
		"status", resp.StatusCode,
	)

	if resp.Delay > 0 {
		t := time.NewTimer(resp.Delay)
		select {
		case <-t.C:
		case <-r.Context().Done():
			t.Stop()
			return
		}
	}
	w.Header().Set(CandidateHeader, resp.CandidateID)
	resp.Write(w)
}

func (h *Handler) writeResolveError(w http.ResponseWriter, req *mock.Request, ep *mock.Endpoint, err error) {
	var resErr *ResolutionError
	var exErr *extract.ExtractError
	switch {
	case errors.As(err, &resErr):
		payload := map[string]any{
			"error":    "no_match",
			"message":  "No candidate response matched the request",
			"endpoint": ep.ID,
			"method":   req.Method,
			"path":     req.Path,
		}
		if misses := h.nearMisses(req, ep); len(misses) > 0 {
			payload["nearMisses"] = misses
		}
		writeJSONError(w, resErr.StatusCode(), payload)
	case errors.As(err, &exErr):
		writeJSONError(w, http.StatusBadRequest, map[string]any{
			"error":   "extraction_failed",
			"message": exErr.Error(),
			"rule":    exErr.Rule,
			"hint":    exErr.Hint(),
		})
	default:
		InternalErrorResponse().Write(w)
	}
}

// NearMiss explains why a candidate did not match.
type NearMiss struct {
	CandidateID     string `json:"candidateId"`
	Name            string `json:"name,omitempty"`
	MatchPercentage int    `json:"matchPercentage"`
	Reason          string `json:"reason"`
}

// nearMisses returns the closest non-matching candidates.
func (h *Handler) nearMisses(req *mock.Request, ep *mock.Endpoint) []NearMiss {
	misses := make([]NearMiss, 0, len(ep.Responses))
	for i := range ep.Responses {
		c := &ep.Responses[i]
		ex := h.matcher.Explain(c.Match, req)
		if ex.MatchPercentage == 0 {
			continue
		}
		misses = append(misses, NearMiss{
			CandidateID:     c.ID,
			Name:            c.Name,
			MatchPercentage: ex.MatchPercentage,
			Reason:          ex.Reason,
		})
	}
	sort.SliceStable(misses, func(i, j int) bool {
		return misses[i].MatchPercentage > misses[j].MatchPercentage
	})
	if len(misses) > maxNearMisses {
		misses = misses[:maxNearMisses]
	}
	return misses
}

func writeJSONError(w http.ResponseWriter, status int, payload map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if b, err := json.Marshal(payload); err == nil {
		_, _ = w.Write(b)
	}
}
