package builtin

import (
	"crypto/md5" //nolint:gosec // fixture hashing only
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/getmockd/mockresolver/pkg/template"
)

func stringFuncs() []template.FunctionSpec {
	value := param("value", "string", "input text")
	return []template.FunctionSpec{
		spec("upper", 1, 1, template.KindPure, unary(strings.ToUpper),
			"Upper-case value.", "${upper(var:name)}", value),
		spec("lower", 1, 1, template.KindPure, unary(strings.ToLower),
			"Lower-case value.", "${lower(var:name)}", value),
		spec("trim", 1, 1, template.KindPure, unary(strings.TrimSpace),
			"Strip leading and trailing whitespace.", `${trim(" x ")}`, value),
		spec("title", 1, 1, template.KindPure, funcTitle,
			"Title-case value using English rules.", `${title("hello world")}`, value),
		spec("concat", 0, template.Variadic, template.KindPure, funcConcat,
			"Join all arguments without a separator.", `${concat(var:first, " ", var:last)}`,
			param("values", "any...", "parts to join")),
		spec("substr", 2, 3, template.KindPure, funcSubstr,
			"Substring by rune offset, clamped to the input.", `${substr("abcdef", 1, 3)}`,
			value, param("start", "int", "zero-based start"), optional("length", "int", "maximum length")),
		spec("len", 1, 1, template.KindPure, funcLen,
			"Length of value in runes.", "${len(var:name)}", value),
		spec("default", 2, 2, template.KindPure, funcDefault,
			"value, or fallback when value renders empty.", `${default(request.header(X-User), guest)}`,
			value, param("fallback", "string", "used when value is empty")),
		spec("replace", 3, 3, template.KindPure, funcReplace,
			"Replace every occurrence of old with new.", `${replace(var:phone, "-", "")}`,
			value, param("old", "string", "text to find"), param("new", "string", "replacement")),
		spec("base64.encode", 1, 1, template.KindPure, unary(func(s string) string {
			return base64.StdEncoding.EncodeToString([]byte(s))
		}), "Standard base64 encoding.", "${base64.encode(var:token)}", value),
		spec("base64.decode", 1, 1, template.KindPure, funcBase64Decode,
			"Decode standard base64.", "${base64.decode(aGk=)}", value),
		spec("md5", 1, 1, template.KindPure, unary(func(s string) string {
			sum := md5.Sum([]byte(s)) //nolint:gosec // fixture hashing only
			return hex.EncodeToString(sum[:])
		}), "Hex MD5 digest.", "${md5(var:email)}", value),
		spec("sha256", 1, 1, template.KindPure, unary(func(s string) string {
			sum := sha256.Sum256([]byte(s))
			return hex.EncodeToString(sum[:])
		}), "Hex SHA-256 digest.", "${sha256(var:email)}", value),
	}
}

func unary(fn func(string) string) template.Func {
	return func(_ *template.Context, args []template.Value) (template.Value, error) {
		return fn(str(args[0])), nil
	}
}

func funcTitle(_ *template.Context, args []template.Value) (template.Value, error) {
	// cases.Caser is stateful and not safe for concurrent use.
	return cases.Title(language.English).String(str(args[0])), nil
}

func funcConcat(_ *template.Context, args []template.Value) (template.Value, error) {
	var b strings.Builder
	for _, a := range args {
		b.WriteString(str(a))
	}
	return b.String(), nil
}

func funcSubstr(_ *template.Context, args []template.Value) (template.Value, error) {
	runes := []rune(str(args[0]))
	start, err := toInt("start", args[1])
	if err != nil {
		return nil, err
	}
	start = max(0, min(start, len(runes)))
	end := len(runes)
	if len(args) == 3 {
		n, err := toInt("length", args[2])
		if err != nil {
			return nil, err
		}
		if n < 0 {
			return nil, errors.New("length must not be negative")
		}
		end = min(end, start+n)
	}
	return string(runes[start:end]), nil
}

func funcLen(_ *template.Context, args []template.Value) (template.Value, error) {
	return utf8.RuneCountInString(str(args[0])), nil
}

func funcDefault(_ *template.Context, args []template.Value) (template.Value, error) {
	if str(args[0]) == "" {
		return args[1], nil
	}
	return args[0], nil
}

func funcReplace(_ *template.Context, args []template.Value) (template.Value, error) {
	return strings.ReplaceAll(str(args[0]), str(args[1]), str(args[2])), nil
}

func funcBase64Decode(_ *template.Context, args []template.Value) (template.Value, error) {
	b, err := base64.StdEncoding.DecodeString(str(args[0]))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
