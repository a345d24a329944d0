package extract

import (
	mathrand "math/rand/v2"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/beevik/etree"

	"github.com/getmockd/mockresolver/internal/docpath"
	"github.com/getmockd/mockresolver/pkg/mock"
)

// DatasetSource resolves dataset names. *mock.Endpoint implements it.
type DatasetSource interface {
	Dataset(name string) (*mock.Dataset, bool)
}

// Payload is the document a rule reads. Body is parsed lazily.
type Payload struct {
	Body    []byte
	Headers http.Header
	Query   url.Values
	Path    string

	// Datasets backs dataset rules; nil when the endpoint declares none.
	Datasets DatasetSource

	// Rand picks random dataset rows. The global source is used when nil.
	Rand *mathrand.Rand

	jsonOnce sync.Once
	json     any
	xmlOnce  sync.Once
	xml      *etree.Document
}

// FromRequest builds a payload over an inbound request, sharing its parsed
// body.
func FromRequest(req *mock.Request, datasets DatasetSource) *Payload {
	p := &Payload{
		Body:     req.Body,
		Headers:  req.Headers,
		Query:    req.Query,
		Path:     req.Path,
		Datasets: datasets,
	}
	p.jsonOnce.Do(func() { p.json = req.JSON() })
	return p
}

// FromResponse builds a payload over a rendered response.
func FromResponse(headers http.Header, body []byte, datasets DatasetSource) *Payload {
	return &Payload{Body: body, Headers: headers, Datasets: datasets}
}

// JSON returns the body decoded as JSON, or nil.
func (p *Payload) JSON() any {
	p.jsonOnce.Do(func() { p.json = docpath.DecodeJSON(p.Body) })
	return p.json
}

// XML returns the body parsed as XML, or nil.
func (p *Payload) XML() *etree.Document {
	p.xmlOnce.Do(func() { p.xml = docpath.ParseXML(p.Body) })
	return p.xml
}

// text returns the string a regex rule scans.
func (p *Payload) text(from mock.ExtractionSource) string {
	switch from {
	case mock.SourcePath:
		return p.Path
	case mock.SourceHeader:
		return headerBlock(p.Headers)
	case mock.SourceQuery:
		return p.Query.Encode()
	default:
		return string(p.Body)
	}
}

// headerBlock renders headers as sorted "Name: value" lines.
func headerBlock(h http.Header) string {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		for _, v := range h[k] {
			b.WriteString(k)
			b.WriteString(": ")
			b.WriteString(v)
			b.WriteByte('\n')
		}
	}
	return b.String()
}
