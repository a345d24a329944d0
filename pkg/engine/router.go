package engine

import (
	"net/http"
	"strings"

	"github.com/getmockd/mockresolver/internal/matching"
	"github.com/getmockd/mockresolver/pkg/mock"
)

// Route is the endpoint chosen for a request together with its path
// parameters.
type Route struct {
	Endpoint   *mock.Endpoint
	PathParams map[string]string
	Score      int
}

// Router maps method and path to endpoints. A Router is immutable once
// built; reloading builds a new one.
type Router struct {
	endpoints []*mock.Endpoint
}

// NewRouter creates a router over endpoints. Earlier endpoints win ties.
func NewRouter(endpoints []*mock.Endpoint) *Router {
	return &Router{endpoints: endpoints}
}

// Endpoints returns the routed endpoints.
func (rt *Router) Endpoints() []*mock.Endpoint {
	return rt.endpoints
}

// Lookup returns the endpoint with the best path score whose method accepts
// method. HEAD falls back to GET endpoints.
func (rt *Router) Lookup(method, path string) (*Route, bool) {
	if r, ok := rt.lookup(method, path); ok {
		return r, true
	}
	if method == http.MethodHead {
		return rt.lookup(http.MethodGet, path)
	}
	return nil, false
}

func (rt *Router) lookup(method, path string) (*Route, bool) {
	var best *Route
	for _, ep := range rt.endpoints {
		if !methodAccepts(ep.Method, method) {
			continue
		}
		score := matching.MatchPath(ep.Path, path)
		if score == 0 {
			continue
		}
		if ep.Method != "" && ep.Method != "*" {
			score += matching.ScoreMethod
		}
		if best == nil || score > best.Score {
			best = &Route{Endpoint: ep, Score: score}
		}
	}
	if best == nil {
		return nil, false
	}
	best.PathParams = matching.PathParams(best.Endpoint.Path, path)
	return best, true
}

func methodAccepts(configured, method string) bool {
	return configured == "" || configured == "*" || strings.EqualFold(configured, method)
}
