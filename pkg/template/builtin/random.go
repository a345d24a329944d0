package builtin

import (
	"errors"
	"math"
	"strings"

	"github.com/getmockd/mockresolver/pkg/template"
)

const alphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

const maxRandomString = 4096

func randomFuncs() []template.FunctionSpec {
	return []template.FunctionSpec{
		spec("uuid", 0, 0, template.KindVolatile, funcUUID,
			"Random version 4 UUID.", "${uuid()}"),
		spec("uuid.short", 0, 0, template.KindVolatile, funcUUIDShort,
			"First 8 hex characters of a random UUID.", "${uuid.short()}"),
		spec("random.int", 0, 2, template.KindVolatile, funcRandomInt,
			"Random integer in [min, max]. Without arguments the range is [0, 100].", "${random.int(1, 6)}",
			optional("min", "int", "inclusive lower bound"), optional("max", "int", "inclusive upper bound")),
		spec("random.float", 0, 3, template.KindVolatile, funcRandomFloat,
			"Random float in [min, max), optionally rounded to precision decimals.", "${random.float(0, 100, 2)}",
			optional("min", "float", "lower bound"), optional("max", "float", "upper bound"),
			optional("precision", "int", "decimal places")),
		spec("random.string", 0, 1, template.KindVolatile, funcRandomString,
			"Random alphanumeric string, 10 characters by default.", "${random.string(16)}",
			optional("length", "int", "string length")),
		spec("random.pick", 1, template.Variadic, template.KindVolatile, funcRandomPick,
			"One of the arguments, chosen uniformly.", `${random.pick(red, green, blue)}`,
			param("choices", "any...", "candidate values")),
		spec("random.bool", 0, 0, template.KindVolatile, funcRandomBool,
			"true or false with equal probability.", "${random.bool()}"),
	}
}

func funcUUID(ctx *template.Context, _ []template.Value) (template.Value, error) {
	return ctx.UUID(), nil
}

func funcUUIDShort(ctx *template.Context, _ []template.Value) (template.Value, error) {
	return strings.ReplaceAll(ctx.UUID(), "-", "")[:8], nil
}

func funcRandomInt(ctx *template.Context, args []template.Value) (template.Value, error) {
	lo, hi := 0, 100
	switch len(args) {
	case 0:
	case 2:
		var err error
		if lo, err = toInt("min", args[0]); err != nil {
			return nil, err
		}
		if hi, err = toInt("max", args[1]); err != nil {
			return nil, err
		}
	default:
		return nil, errors.New("want 0 or 2 arguments")
	}
	if hi < lo {
		return nil, errors.New("max is less than min")
	}
	// The span is computed in uint64 so extreme bounds cannot overflow; a
	// span of 0 means the full int64 range.
	span := uint64(hi) - uint64(lo) + 1
	if span == 0 {
		return int(ctx.Uint64()), nil
	}
	return lo + int(ctx.Uint64N(span)), nil
}

func funcRandomFloat(ctx *template.Context, args []template.Value) (template.Value, error) {
	lo, hi := 0.0, 1.0
	if len(args) == 1 {
		return nil, errors.New("want 0, 2 or 3 arguments")
	}
	if len(args) >= 2 {
		var err error
		if lo, err = toFloat("min", args[0]); err != nil {
			return nil, err
		}
		if hi, err = toFloat("max", args[1]); err != nil {
			return nil, err
		}
	}
	if hi < lo {
		return nil, errors.New("max is less than min")
	}
	v := lo + ctx.Float64()*(hi-lo)
	if len(args) == 3 {
		prec, err := toInt("precision", args[2])
		if err != nil {
			return nil, err
		}
		if prec < 0 || prec > 15 {
			return nil, errors.New("precision must be between 0 and 15")
		}
		p := math.Pow(10, float64(prec))
		v = math.Round(v*p) / p
		if v > hi {
			v = hi
		}
	}
	return v, nil
}

func funcRandomString(ctx *template.Context, args []template.Value) (template.Value, error) {
	n := 10
	if len(args) == 1 {
		var err error
		if n, err = toInt("length", args[0]); err != nil {
			return nil, err
		}
	}
	if n < 0 || n > maxRandomString {
		return nil, errors.New("length out of range")
	}
	b := make([]byte, n)
	for i := range b {
		b[i] = alphanumeric[ctx.IntN(len(alphanumeric))]
	}
	return string(b), nil
}

func funcRandomPick(ctx *template.Context, args []template.Value) (template.Value, error) {
	return args[ctx.IntN(len(args))], nil
}

func funcRandomBool(ctx *template.Context, _ []template.Value) (template.Value, error) {
	return ctx.IntN(2) == 1, nil
}
