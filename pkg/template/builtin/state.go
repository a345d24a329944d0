package builtin

import (
	"errors"
	"strings"
	"sync/atomic"

	"github.com/getmockd/mockresolver/pkg/template"
)

func stateFuncs(seqs *SequenceStore) []template.FunctionSpec {
	// Each catalog instance owns its own seq counter.
	counter := new(atomic.Int64)
	return []template.FunctionSpec{
		spec("seq", 0, 0, template.KindStateful, func(*template.Context, []template.Value) (template.Value, error) {
			return counter.Add(1), nil
		}, "Counter starting at 1, shared by every template using this catalog.", "id=${seq()}"),
		spec("sequence", 1, 2, template.KindStateful, funcSequence(seqs),
			"Named counter; each name counts independently from start (default 1).", `${sequence(orders, 1000)}`,
			param("name", "string", "counter name"), optional("start", "int", "first value")),
	}
}

func funcSequence(seqs *SequenceStore) template.Func {
	return func(_ *template.Context, args []template.Value) (template.Value, error) {
		name := strings.TrimSpace(str(args[0]))
		if name == "" {
			return nil, errors.New("sequence name is empty")
		}
		start := 1
		if len(args) == 2 {
			var err error
			if start, err = toInt("start", args[1]); err != nil {
				return nil, err
			}
		}
		return seqs.Next(name, int64(start)), nil
	}
}
