package lirgen

import (
	"strings"

	"github.com/raymyers/ralph-translate-c/pkg/cabs"
	"github.com/raymyers/ralph-translate-c/pkg/ctyper"
	"github.com/raymyers/ralph-translate-c/pkg/ctypes"
	"github.com/raymyers/ralph-translate-c/pkg/lir"
)

// builtinCall lowers a call to a compiler builtin. Most become calls into
// the __builtins namespace of the runtime; a few map onto the language.
func (t *translator) builtinCall(name string, x cabs.Call) (value, error) {
	fn, ok := ctyper.Builtin(t.sema, name)
	if !ok {
		return value{}, unsupported("builtin function '%s' is not implemented", name)
	}
	switch strings.TrimPrefix(name, "__builtin_") {
	case "unreachable":
		return value{x: lir.Id("unreachable"), typ: x.Typ}, nil
	case "trap":
		return value{x: lir.Builtin{Name: "trap"}, typ: x.Typ}, nil
	case "expect":
		if len(x.Args) != 2 {
			return value{}, malformed("__builtin_expect takes two arguments")
		}
		v, err := t.expr(x.Args[0])
		if err != nil {
			return value{}, err
		}
		// the hint is still evaluated
		if _, err := t.expr(x.Args[1]); err != nil {
			return value{}, err
		}
		return t.convert(v, ctypes.LongType()), nil
	}
	args, err := t.args(x.Args, fn)
	if err != nil {
		return value{}, err
	}
	call := lir.Call{Fn: lir.Member{X: lir.Id("__builtins"), Name: name}, Args: args}
	return typedValue(call, x.Typ), nil
}
