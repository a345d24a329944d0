// Package docpath queries request and response documents by JSONPath or
// XPath. Invalid paths never panic; they report no match.
package docpath

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/beevik/etree"
	"github.com/ohler55/ojg/jp"
)

// Normalize turns the short form "user.id" into "$.user.id".
func Normalize(path string) string {
	path = strings.TrimSpace(path)
	switch {
	case path == "":
		return ""
	case strings.HasPrefix(path, "$"), strings.HasPrefix(path, "@"):
		return path
	case strings.HasPrefix(path, "["):
		return "$" + path
	default:
		return "$." + path
	}
}

// JSON returns every value in data selected by path. data is a decoded JSON
// document (maps, slices and scalars).
func JSON(data any, path string) ([]any, error) {
	x, err := jp.ParseString(Normalize(path))
	if err != nil {
		return nil, err
	}
	return x.Get(data), nil
}

// JSONFirst returns the first value selected by path.
func JSONFirst(data any, path string) (any, bool) {
	results, err := JSON(data, path)
	if err != nil || len(results) == 0 {
		return nil, false
	}
	return results[0], true
}

// DecodeJSON parses raw as JSON, returning nil when it is not JSON.
func DecodeJSON(raw []byte) any {
	if !LooksLikeJSON(raw) {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return v
}

// LooksLikeJSON reports whether raw starts like a JSON object or array.
func LooksLikeJSON(raw []byte) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && (raw[0] == '{' || raw[0] == '[')
}

// LooksLikeXML reports whether raw starts like an XML document.
func LooksLikeXML(raw []byte) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '<'
}

// ParseXML parses raw into a document, or returns nil.
func ParseXML(raw []byte) *etree.Document {
	if !LooksLikeXML(raw) {
		return nil
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(raw); err != nil {
		return nil
	}
	return doc
}

// XML returns the trimmed text of every element selected by path. A trailing
// "/@attr" selects attribute values instead.
func XML(doc *etree.Document, path string) []string {
	if doc == nil || path == "" {
		return nil
	}
	elemPath, attr := path, ""
	if i := strings.LastIndex(path, "/@"); i >= 0 {
		elemPath, attr = path[:i], path[i+2:]
	}
	compiled, err := etree.CompilePath(elemPath)
	if err != nil {
		return nil
	}
	var out []string
	for _, el := range doc.FindElementsPath(compiled) {
		if attr == "" {
			out = append(out, strings.TrimSpace(el.Text()))
			continue
		}
		if a := el.SelectAttr(attr); a != nil {
			out = append(out, a.Value)
		}
	}
	return out
}

// XMLFirst returns the first value selected by path.
func XMLFirst(doc *etree.Document, path string) (string, bool) {
	vals := XML(doc, path)
	if len(vals) == 0 {
		return "", false
	}
	return vals[0], true
}

// Lookup resolves path against a raw body, using XPath for XML bodies
// (path starting with '/') and JSONPath otherwise. parsed may carry an
// already-decoded JSON document.
func Lookup(raw []byte, parsed any, path string) (any, bool) {
	if strings.HasPrefix(path, "/") && LooksLikeXML(raw) {
		v, ok := XMLFirst(ParseXML(raw), path)
		return v, ok
	}
	if parsed == nil {
		parsed = DecodeJSON(raw)
	}
	if parsed == nil {
		return nil, false
	}
	return JSONFirst(parsed, path)
}
