package engine

import (
	"net/http"
	"strconv"
	"time"
)

// RenderedResponse is a fully substituted response ready to write.
type RenderedResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	Delay      time.Duration

	// CandidateID is the selected candidate, empty for the internal error
	// response.
	CandidateID string
	// Defaulted is set when no candidate matched and the endpoint default
	// was used.
	Defaulted bool
}

const internalErrorBody = `{"error":"internal_mock_error","message":"The mock response could not be rendered"}`

// InternalErrorResponse returns the fixed payload served when rendering
// fails. It never contains partially rendered content.
func InternalErrorResponse() *RenderedResponse {
	return &RenderedResponse{
		StatusCode: http.StatusInternalServerError,
		Headers:    http.Header{"Content-Type": {"application/json"}},
		Body:       []byte(internalErrorBody),
	}
}

// Write copies the response to w.
func (r *RenderedResponse) Write(w http.ResponseWriter) {
	h := w.Header()
	for name, vals := range r.Headers {
		for _, v := range vals {
			h.Add(name, v)
		}
	}
	if h.Get("Content-Length") == "" {
		h.Set("Content-Length", strconv.Itoa(len(r.Body)))
	}
	w.WriteHeader(r.StatusCode)
	if len(r.Body) > 0 {
		_, _ = w.Write(r.Body)
	}
}
