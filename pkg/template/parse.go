package template

import (
	"fmt"
	"strings"
)

// Parser limits.
const (
	DefaultMaxArgs  = 32
	DefaultMaxDepth = 32
)

const (
	markerOpen = "${"
	varPrefix  = "var:"
)

// ParseError reports malformed template source. Offset is the byte offset of
// the failure in the source string.
type ParseError struct {
	Offset int
	Msg    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("template parse error at offset %d: %s", e.Offset, e.Msg)
}

// Position converts the error offset into a 1-based line and column within src.
func (e *ParseError) Position(src string) (line, col int) {
	line, col = 1, 1
	for i := 0; i < e.Offset && i < len(src); i++ {
		if src[i] == '\n' {
			line++
			col = 1
			continue
		}
		col++
	}
	return line, col
}

// Parser converts template source into Expressions. The zero value is not
// usable; use NewParser or ParserFor.
type Parser struct {
	// MaxArgs is the largest argument count accepted for a single call.
	MaxArgs int
	// MaxDepth bounds nesting of calls within arguments.
	MaxDepth int
}

// NewParser returns a parser with default limits.
func NewParser() *Parser {
	return &Parser{MaxArgs: DefaultMaxArgs, MaxDepth: DefaultMaxDepth}
}

// ParserFor returns a parser whose argument limit matches the widest
// signature in reg. Registries with variadic functions keep the default cap.
func ParserFor(reg *Registry) *Parser {
	p := NewParser()
	if n := reg.MaxArity(); n >= 0 {
		p.MaxArgs = n
	}
	return p
}

// Parse parses source with the default parser.
func Parse(source string) (*Expression, error) {
	return NewParser().Parse(source)
}

// Parse parses source into an Expression. Empty input yields a single empty
// Literal.
func (p *Parser) Parse(source string) (*Expression, error) {
	s := &scanner{src: source, maxArgs: p.MaxArgs, maxDepth: p.MaxDepth}
	if s.maxArgs <= 0 {
		s.maxArgs = DefaultMaxArgs
	}
	if s.maxDepth <= 0 {
		s.maxDepth = DefaultMaxDepth
	}
	nodes, err := s.parseTemplate()
	if err != nil {
		return nil, err
	}
	return &Expression{Source: source, Nodes: nodes}, nil
}

type scanner struct {
	src      string
	pos      int
	depth    int
	maxArgs  int
	maxDepth int
}

func (s *scanner) errorf(offset int, format string, args ...any) *ParseError {
	return &ParseError{Offset: offset, Msg: fmt.Sprintf(format, args...)}
}

func (s *scanner) parseTemplate() ([]Node, error) {
	var nodes []Node
	for s.pos < len(s.src) {
		idx := strings.Index(s.src[s.pos:], markerOpen)
		if idx < 0 {
			nodes = append(nodes, &Literal{Text: s.src[s.pos:], Pos: s.pos})
			s.pos = len(s.src)
			break
		}
		if idx > 0 {
			nodes = append(nodes, &Literal{Text: s.src[s.pos : s.pos+idx], Pos: s.pos})
			s.pos += idx
		}
		n, err := s.parseMarker(true)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	if len(nodes) == 0 {
		nodes = []Node{&Literal{}}
	}
	return nodes, nil
}

// parseMarker parses "${ expr }" starting at the marker. Top-level markers may
// hold a quoted literal; nested ones must name a call or variable.
func (s *scanner) parseMarker(top bool) (Node, error) {
	start := s.pos
	s.depth++
	if s.depth > s.maxDepth {
		return nil, s.errorf(start, "nesting deeper than %d levels", s.maxDepth)
	}
	s.pos += len(markerOpen)
	s.skipSpace()

	if s.eof() {
		return nil, s.errorf(start, "unterminated expression")
	}
	var (
		n   Node
		err error
	)
	switch c := s.src[s.pos]; {
	case c == '}':
		return nil, s.errorf(s.pos, "empty expression")
	case s.hasPrefix(markerOpen):
		return nil, s.errorf(s.pos, "unexpected %q in function name position", markerOpen)
	case top && (c == '"' || c == '\''):
		n, err = s.parseQuoted()
	default:
		n, err = s.parseExpr()
	}
	if err != nil {
		return nil, err
	}

	s.skipSpace()
	if s.eof() {
		return nil, s.errorf(start, "unterminated expression")
	}
	if s.src[s.pos] != '}' {
		return nil, s.errorf(s.pos, "unexpected %q, expected '}'", s.src[s.pos])
	}
	s.pos++
	s.depth--
	return n, nil
}

// parseExpr parses "var:name", "name" or "name(args)".
func (s *scanner) parseExpr() (Node, error) {
	start := s.pos
	if s.hasPrefix(varPrefix) {
		return s.parseVarRef()
	}
	name := s.scanIdent()
	if name == "" {
		return nil, s.errorf(start, "expected function name, found %q", s.src[start])
	}
	call := &Call{Name: name, Pos: start}
	save := s.pos
	s.skipSpace()
	if !s.eof() && s.src[s.pos] == '(' {
		args, err := s.parseArgs()
		if err != nil {
			return nil, err
		}
		call.Args = args
		return call, nil
	}
	s.pos = save
	return call, nil
}

func (s *scanner) parseVarRef() (Node, error) {
	start := s.pos
	s.pos += len(varPrefix)
	name := s.scanIdent()
	if name == "" {
		return nil, s.errorf(s.pos, "expected variable name after %q", varPrefix)
	}
	return &VarRef{Name: name, Pos: start}, nil
}

// parseArgs parses a parenthesised argument list starting at '('.
func (s *scanner) parseArgs() ([]Node, error) {
	open := s.pos
	s.pos++
	s.skipSpace()
	if !s.eof() && s.src[s.pos] == ')' {
		s.pos++
		return nil, nil
	}

	var args []Node
	for {
		s.skipSpace()
		argStart := s.pos
		arg, err := s.parseArg()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		if len(args) > s.maxArgs {
			return nil, s.errorf(argStart, "too many arguments: at most %d allowed", s.maxArgs)
		}

		s.skipSpace()
		if s.eof() {
			return nil, s.errorf(open, "unterminated argument list")
		}
		switch c := s.src[s.pos]; c {
		case ',':
			s.pos++
		case ')':
			s.pos++
			return args, nil
		default:
			return nil, s.errorf(s.pos, "unexpected %q in argument list", c)
		}
	}
}

func (s *scanner) parseArg() (Node, error) {
	if s.eof() {
		return nil, s.errorf(s.pos, "expected argument")
	}
	start := s.pos
	switch c := s.src[s.pos]; {
	case c == '"' || c == '\'':
		return s.parseQuoted()
	case s.hasPrefix(markerOpen):
		return s.parseMarker(false)
	case s.hasPrefix(varPrefix):
		return s.parseVarRef()
	}

	text := s.scanBare()
	if text == "" {
		return nil, s.errorf(start, "expected argument, found %q", s.src[start])
	}
	if isIdent(text) {
		save := s.pos
		s.skipSpace()
		if !s.eof() && s.src[s.pos] == '(' {
			if s.depth+1 > s.maxDepth {
				return nil, s.errorf(start, "nesting deeper than %d levels", s.maxDepth)
			}
			s.depth++
			args, err := s.parseArgs()
			s.depth--
			if err != nil {
				return nil, err
			}
			return &Call{Name: text, Args: args, Pos: start}, nil
		}
		s.pos = save
	}
	return &Literal{Text: text, Pos: start}, nil
}

func (s *scanner) parseQuoted() (Node, error) {
	start := s.pos
	q := s.src[s.pos]
	s.pos++
	var b strings.Builder
	for !s.eof() {
		c := s.src[s.pos]
		switch {
		case c == q:
			s.pos++
			return &Literal{Text: b.String(), Quoted: true, Pos: start}, nil
		case c == '\\' && s.pos+1 < len(s.src):
			s.pos++
			b.WriteByte(unescape(s.src[s.pos]))
		default:
			b.WriteByte(c)
		}
		s.pos++
	}
	return nil, s.errorf(start, "unterminated string")
}

func unescape(c byte) byte {
	switch c {
	case 'n':
		return '\n'
	case 't':
		return '\t'
	case 'r':
		return '\r'
	default:
		return c
	}
}

func (s *scanner) scanIdent() string {
	start := s.pos
	for !s.eof() {
		c := s.src[s.pos]
		if isIdentStart(c) || (s.pos > start && (isDigit(c) || c == '.')) {
			s.pos++
			continue
		}
		break
	}
	return s.src[start:s.pos]
}

func (s *scanner) scanBare() string {
	start := s.pos
	for !s.eof() && isBareByte(s.src[s.pos]) {
		if s.hasPrefix(markerOpen) {
			break
		}
		s.pos++
	}
	return s.src[start:s.pos]
}

func (s *scanner) skipSpace() {
	for !s.eof() && isSpace(s.src[s.pos]) {
		s.pos++
	}
}

func (s *scanner) eof() bool { return s.pos >= len(s.src) }

func (s *scanner) hasPrefix(p string) bool { return strings.HasPrefix(s.src[s.pos:], p) }

func isSpace(c byte) bool { return c == ' ' || c == '\t' || c == '\n' || c == '\r' }

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdent(s string) bool {
	if s == "" || !isIdentStart(s[0]) {
		return false
	}
	for i := 1; i < len(s); i++ {
		c := s[i]
		if !isIdentStart(c) && !isDigit(c) && c != '.' {
			return false
		}
	}
	return true
}

func isBareByte(c byte) bool {
	switch c {
	case ',', '(', ')', '"', '\'', '}':
		return false
	}
	return !isSpace(c)
}
