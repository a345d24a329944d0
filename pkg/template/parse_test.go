package template

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lit(s string) *Literal { return &Literal{Text: s} }
func qlit(s string) *Literal { return &Literal{Text: s, Quoted: true} }
func ref(name string) *VarRef { return &VarRef{Name: name} }
func call(name string, args ...Node) *Call { return &Call{Name: name, Args: args} }

func expr(nodes ...Node) *Expression { return &Expression{Nodes: nodes} }

func TestParse_Structure(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   *Expression
	}{
		{"empty input", "", expr(lit(""))},
		{"plain text", "hello world", expr(lit("hello world"))},
		{"json body without markers", `{"a": {"b": [1, 2]}}`, expr(lit(`{"a": {"b": [1, 2]}}`))},
		{"lone dollar and brace", "price: $5 }", expr(lit("price: $5 }"))},
		{"zero arg call with parens", "id=${seq()}", expr(lit("id="), call("seq"))},
		{"bare zero arg call", "${uuid}", expr(call("uuid"))},
		{"bare literal args", "${random.int(1, 100)}", expr(call("random.int", lit("1"), lit("100")))},
		{"whitespace is insignificant", "${ random.int ( 1 ,100 ) }", expr(call("random.int", lit("1"), lit("100")))},
		{"variable and quoted string", `${default(var:name, "anon")}`, expr(call("default", ref("name"), qlit("anon")))},
		{"single quoted string", `${upper('a b')}`, expr(call("upper", qlit("a b")))},
		{"escaped quote", `${upper("say \"hi\"")}`, expr(call("upper", qlit(`say "hi"`)))},
		{"nested marker argument", `${upper(${lower("X")})}`, expr(call("upper", call("lower", qlit("X"))))},
		{"nested bare call argument", `${upper(lower("X"))}`, expr(call("upper", call("lower", qlit("X"))))},
		{"top level variable", "${ var:user.id }", expr(ref("user.id"))},
		{"variable argument marker", "${upper(${var:x})}", expr(call("upper", ref("x")))},
		{"quoted marker literal", `${"${"}`, expr(qlit("${"))},
		{"bare literal with symbols", "${f(a-b:c/d, $x)}", expr(call("f", lit("a-b:c/d"), lit("$x")))},
		{"mixed text", `{"id": "${uuid()}", "n": ${random.int(1,9)}}`, expr(
			lit(`{"id": "`), call("uuid"), lit(`", "n": `), call("random.int", lit("1"), lit("9")), lit("}"),
		)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.source)
			require.NoError(t, err)
			assert.Equal(t, tt.source, got.Source)
			assert.True(t, tt.want.Equal(got), "got %s", got.String())
		})
	}
}

func TestParse_EmptyInputIsSingleLiteral(t *testing.T) {
	got, err := Parse("")
	require.NoError(t, err)
	require.Len(t, got.Nodes, 1)
	l, ok := got.Nodes[0].(*Literal)
	require.True(t, ok)
	assert.Equal(t, "", l.Text)
}

func TestParse_NodeOffsets(t *testing.T) {
	got, err := Parse(`ab${f(x, var:y)}`)
	require.NoError(t, err)
	require.Len(t, got.Nodes, 2)

	c := got.Nodes[1].(*Call)
	assert.Equal(t, 4, c.Pos)
	assert.Equal(t, 6, c.Args[0].Offset())
	assert.Equal(t, 9, c.Args[1].Offset())
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name       string
		parser     *Parser
		source     string
		wantOffset int
		wantMsg    string
	}{
		{"unterminated marker", nil, "abc ${uuid", 4, "unterminated expression"},
		{"marker at end", nil, "x${", 1, "unterminated expression"},
		{"empty marker", nil, "${}", 2, "empty expression"},
		{"marker in name position", nil, "${ ${x} }", 3, "function name position"},
		{"unterminated string", nil, `${f("abc)}`, 4, "unterminated string"},
		{"missing separator", nil, "${f(a b)}", 6, "in argument list"},
		{"trailing comma", nil, "${f(1,)}", 6, "expected argument"},
		{"brace inside args", nil, "${f(1}", 5, "in argument list"},
		{"unterminated args", nil, "${f(1, 2", 3, "unterminated argument list"},
		{"bad function name", nil, "${1abc}", 2, "expected function name"},
		{"empty variable name", nil, "${var:}", 6, "expected variable name"},
		{"garbage after call", nil, "${f() g}", 6, "expected '}'"},
		{"too many arguments", &Parser{MaxArgs: 2, MaxDepth: 8}, "${f(1,2,3)}", 8, "too many arguments"},
		{"nesting too deep", &Parser{MaxArgs: 8, MaxDepth: 2}, "${a(b(c()))}", 6, "nesting deeper"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.parser
			if p == nil {
				p = NewParser()
			}
			_, err := p.Parse(tt.source)
			require.Error(t, err)

			var pe *ParseError
			require.True(t, errors.As(err, &pe), "want *ParseError, got %T", err)
			assert.Equal(t, tt.wantOffset, pe.Offset)
			assert.Contains(t, pe.Msg, tt.wantMsg)
		})
	}
}

func TestParseError_Position(t *testing.T) {
	pe := &ParseError{Offset: 7}
	line, col := pe.Position("ab\ncdefgh")
	assert.Equal(t, 2, line)
	assert.Equal(t, 5, col)
}

func TestParserFor_UsesRegistryArity(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(
		FunctionSpec{Name: "one", MinArgs: 1, MaxArgs: 1, Invoke: echoFirst},
		FunctionSpec{Name: "three", MinArgs: 0, MaxArgs: 3, Invoke: echoFirst},
	)
	p := ParserFor(reg)
	assert.Equal(t, 3, p.MaxArgs)

	_, err := p.Parse("${three(1, 2, 3)}")
	assert.NoError(t, err)
	_, err = p.Parse("${three(1, 2, 3, 4)}")
	assert.Error(t, err)

	reg.MustRegister(FunctionSpec{Name: "many", MaxArgs: Variadic, Invoke: echoFirst})
	assert.Equal(t, DefaultMaxArgs, ParserFor(reg).MaxArgs)
}

func TestExpression_StringIsCanonical(t *testing.T) {
	tests := []struct {
		source string
		want   string
	}{
		{"plain", "plain"},
		{"${ random.int( 1 ,100 ) }", "${random.int(1, 100)}"},
		{"${uuid}", "${uuid()}"},
		{`${default(var:name, 'a b')}`, `${default(var:name, "a b")}`},
		{"${f(${g(x)})}", "${f(g(x))}"},
		{`${"${"}`, `${"${"}`},
		{"${var:id}", "${var:id}"},
		{`${f("var:x")}`, `${f("var:x")}`},
		{`${f("")}`, `${f("")}`},
	}
	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			e, err := Parse(tt.source)
			require.NoError(t, err)
			assert.Equal(t, tt.want, e.String())
		})
	}
}

func TestExpression_RoundTrip(t *testing.T) {
	sources := []string{
		"",
		"no markers at all",
		`{"user": {"id": "${uuid}", "name": "${faker(name)}"}}`,
		"id=${seq()}",
		`${concat("a,b", 'c)d', ${upper(x)}, var:v, "line\nbreak", "tab\tquote\"")}`,
		`${"${"} literal marker`,
		"${f(a-b:c/d, $x, 1.5, -3)}",
		"${outer(mid(inner(deep())))}",
		"${a}${b}${c}",
	}
	for _, src := range sources {
		t.Run(src, func(t *testing.T) {
			first, err := Parse(src)
			require.NoError(t, err)
			second, err := Parse(first.String())
			require.NoError(t, err, "re-parse of %q", first.String())
			assert.True(t, first.Equal(second), "%q -> %q", src, first.String())
		})
	}
}

func TestExpression_RoundTripProgrammaticLiteral(t *testing.T) {
	e := expr(lit("a${b"), call("f", lit("var:x"), lit("x y"), lit("")))
	again, err := Parse(e.String())
	require.NoError(t, err)
	assert.True(t, e.Equal(again), e.String())
}

func TestExpression_Equal(t *testing.T) {
	a, _ := Parse(`${f("x")}`)
	b, _ := Parse(`${f(x)}`)
	c, _ := Parse(`${f(y)}`)
	d, _ := Parse(`${g(x)}`)

	assert.True(t, a.Equal(b), "quoting style is ignored")
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(d))
	assert.False(t, a.Equal(nil))
}

func TestExpression_Calls(t *testing.T) {
	e, err := Parse("${a(b(), c(d()))} ${var:x} ${e}")
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "d", "c", "a", "e"}, e.Calls())
	assert.True(t, e.HasCalls())

	plain, _ := Parse("text")
	assert.False(t, plain.HasCalls())
}
