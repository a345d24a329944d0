package template

import (
	"strings"
)

// Node is one element of a parsed template: *Literal, *Call or *VarRef.
type Node interface {
	// Offset returns the byte offset of the node in the source.
	Offset() int
	node()
}

// Literal is a run of plain text or a quoted/bare argument.
type Literal struct {
	Text   string
	Quoted bool
	Pos    int
}

// Call invokes a registered function with ordered arguments.
type Call struct {
	Name string
	Args []Node
	Pos  int
}

// VarRef reads a variable from the evaluation context.
type VarRef struct {
	Name string
	Pos  int
}

func (n *Literal) Offset() int { return n.Pos }
func (n *Call) Offset() int { return n.Pos }
func (n *VarRef) Offset() int { return n.Pos }

func (*Literal) node() {}
func (*Call) node() {}
func (*VarRef) node() {}

// Expression is an immutable parsed template. It is safe to share between
// goroutines once returned by the parser.
type Expression struct {
	Source string
	Nodes  []Node
}

// HasCalls reports whether the expression contains any function call or
// variable reference.
func (e *Expression) HasCalls() bool {
	for _, n := range e.Nodes {
		if _, ok := n.(*Literal); !ok {
			return true
		}
	}
	return false
}

// Calls returns every function name referenced by the expression, nested
// calls included, in evaluation order.
func (e *Expression) Calls() []string {
	var names []string
	var walk func(Node)
	walk = func(n Node) {
		c, ok := n.(*Call)
		if !ok {
			return
		}
		for _, a := range c.Args {
			walk(a)
		}
		names = append(names, c.Name)
	}
	for _, n := range e.Nodes {
		walk(n)
	}
	return names
}

// String serialises the expression back into canonical template source.
// Parsing the result yields a tree Equal to e.
func (e *Expression) String() string {
	var b strings.Builder
	for _, n := range e.Nodes {
		switch v := n.(type) {
		case *Literal:
			writeTopLiteral(&b, v)
		case *Call:
			b.WriteString("${")
			writeCall(&b, v)
			b.WriteString("}")
		case *VarRef:
			b.WriteString("${var:")
			b.WriteString(v.Name)
			b.WriteString("}")
		}
	}
	return b.String()
}

// Equal reports whether two expressions have the same structure. Offsets,
// quoting style and the split of adjacent literal runs are ignored.
func (e *Expression) Equal(other *Expression) bool {
	if e == nil || other == nil {
		return e == other
	}
	a, b := mergeLiterals(e.Nodes), mergeLiterals(other.Nodes)
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !nodeEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

func writeTopLiteral(b *strings.Builder, l *Literal) {
	if !l.Quoted {
		// "${" inside plain text cannot be written raw; emit it as a quoted marker.
		parts := strings.Split(l.Text, "${")
		for i, p := range parts {
			if i > 0 {
				b.WriteString(`${"${"}`)
			}
			b.WriteString(p)
		}
		return
	}
	b.WriteString("${")
	b.WriteString(quote(l.Text))
	b.WriteString("}")
}

func writeCall(b *strings.Builder, c *Call) {
	b.WriteString(c.Name)
	b.WriteByte('(')
	for i, a := range c.Args {
		if i > 0 {
			b.WriteString(", ")
		}
		writeArg(b, a)
	}
	b.WriteByte(')')
}

func writeArg(b *strings.Builder, n Node) {
	switch v := n.(type) {
	case *Literal:
		if !v.Quoted && isBareSafe(v.Text) {
			b.WriteString(v.Text)
			return
		}
		b.WriteString(quote(v.Text))
	case *Call:
		writeCall(b, v)
	case *VarRef:
		b.WriteString("var:")
		b.WriteString(v.Name)
	}
}

// isBareSafe reports whether s re-parses as the same bare literal.
func isBareSafe(s string) bool {
	if s == "" || strings.HasPrefix(s, varPrefix) || strings.Contains(s, "${") {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isBareByte(s[i]) {
			return false
		}
	}
	return true
}

func quote(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '"', '\\':
			b.WriteByte('\\')
			b.WriteByte(c)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('"')
	return b.String()
}

func mergeLiterals(nodes []Node) []Node {
	out := make([]Node, 0, len(nodes))
	for _, n := range nodes {
		l, ok := n.(*Literal)
		if !ok {
			out = append(out, n)
			continue
		}
		if len(out) > 0 {
			if prev, ok := out[len(out)-1].(*Literal); ok {
				out[len(out)-1] = &Literal{Text: prev.Text + l.Text, Pos: prev.Pos}
				continue
			}
		}
		out = append(out, &Literal{Text: l.Text, Pos: l.Pos})
	}
	// Drop empty literals so "" and a template with an empty run compare equal.
	filtered := out[:0]
	for _, n := range out {
		if l, ok := n.(*Literal); ok && l.Text == "" && len(out) > 1 {
			continue
		}
		filtered = append(filtered, n)
	}
	return filtered
}

func nodeEqual(a, b Node) bool {
	switch x := a.(type) {
	case *Literal:
		y, ok := b.(*Literal)
		return ok && x.Text == y.Text
	case *VarRef:
		y, ok := b.(*VarRef)
		return ok && x.Name == y.Name
	case *Call:
		y, ok := b.(*Call)
		if !ok || x.Name != y.Name || len(x.Args) != len(y.Args) {
			return false
		}
		for i := range x.Args {
			if !nodeEqual(x.Args[i], y.Args[i]) {
				return false
			}
		}
		return true
	}
	return false
}
