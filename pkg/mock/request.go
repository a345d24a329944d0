package mock

import (
	"net/http"
	"net/url"
	"sync"

	"github.com/beevik/etree"

	"github.com/getmockd/mockresolver/internal/docpath"
)

// Request describes an inbound request as seen by the resolver. Body must be
// fully read; it is parsed lazily as JSON or XML on first use.
type Request struct {
	Method     string
	Path       string
	URL        string
	Headers    http.Header
	Query      url.Values
	Body       []byte
	PathParams map[string]string
	RemoteAddr string

	// Vars holds variables extracted from the request before matching.
	Vars map[string]any

	jsonOnce sync.Once
	json     any
	xmlOnce  sync.Once
	xml      *etree.Document
}

// NewRequest builds a Request from an HTTP request whose body has already
// been read.
func NewRequest(r *http.Request, body []byte) *Request {
	return &Request{
		Method:     r.Method,
		Path:       r.URL.Path,
		URL:        r.URL.String(),
		Headers:    r.Header.Clone(),
		Query:      r.URL.Query(),
		Body:       body,
		PathParams: make(map[string]string),
		RemoteAddr: r.RemoteAddr,
	}
}

// JSON returns the body decoded as JSON, or nil when it is not JSON.
func (r *Request) JSON() any {
	r.jsonOnce.Do(func() {
		r.json = docpath.DecodeJSON(r.Body)
	})
	return r.json
}

// XML returns the body parsed as XML, or nil when it is not XML.
func (r *Request) XML() *etree.Document {
	r.xmlOnce.Do(func() {
		r.xml = docpath.ParseXML(r.Body)
	})
	return r.xml
}

// Header returns the first value of the named header.
func (r *Request) Header(name string) string {
	if r.Headers == nil {
		return ""
	}
	return r.Headers.Get(name)
}

// HasHeader reports whether the named header is present.
func (r *Request) HasHeader(name string) bool {
	if r.Headers == nil {
		return false
	}
	return len(r.Headers.Values(name)) > 0
}

// QueryValue returns the first value of a query parameter and whether it is
// present.
func (r *Request) QueryValue(name string) (string, bool) {
	if r.Query == nil {
		return "", false
	}
	vals, ok := r.Query[name]
	if !ok || len(vals) == 0 {
		return "", ok
	}
	return vals[0], true
}

// Var returns an extracted variable.
func (r *Request) Var(name string) (any, bool) {
	v, ok := r.Vars[name]
	return v, ok
}
