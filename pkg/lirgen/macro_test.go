package lirgen

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/raymyers/ralph-translate-c/pkg/cabs"
	"github.com/raymyers/ralph-translate-c/pkg/ctarget"
	"github.com/raymyers/ralph-translate-c/pkg/ctyper"
	"github.com/raymyers/ralph-translate-c/pkg/ctypes"
)

func classifySema() *ctyper.Typer {
	sema := ctyper.New(ctypes.NewModel(ctarget.MustParse("x86_64-linux-gnu")))
	sema.Declare(ctyper.Symbol{Name: "counter", Kind: ctyper.SymVar, Type: ctypes.IntType()})
	sema.Declare(ctyper.Symbol{Name: "handler", Kind: ctyper.SymVar,
		Type: ctypes.Pointer(ctypes.Tfunction{Params: []ctypes.Type{ctypes.IntType()}, Return: ctypes.Void()})})
	sema.Declare(ctyper.Symbol{Name: "run", Kind: ctyper.SymFunc,
		Type: ctypes.Tfunction{Return: ctypes.IntType()}})
	sema.Declare(ctyper.Symbol{Name: "RED", Kind: ctyper.SymEnumConst, Type: ctypes.IntType(), Value: 1})
	sema.Declare(ctyper.Symbol{Name: "word", Kind: ctyper.SymTypedef, Type: ctypes.IntType()})
	return sema
}

func TestClassifyMacro(t *testing.T) {
	sema := classifySema()
	known := map[string]MacroKind{"BROKEN": MacroInvalid, "NOW": MacroAccessor}
	tests := []struct {
		name string
		def  cabs.MacroDef
		want MacroKind
	}{
		{"empty body", cabs.MacroDef{Name: "GUARD"}, MacroSkipped},
		{"declared name", cabs.MacroDef{Name: "counter", Body: "1"}, MacroSkipped},
		{"literal", cabs.MacroDef{Name: "N", Body: "(4 << 2)"}, MacroConstant},
		{"enumerator", cabs.MacroDef{Name: "C", Body: "RED + 1"}, MacroConstant},
		{"function name", cabs.MacroDef{Name: "F", Body: "run"}, MacroConstant},
		{"typedef", cabs.MacroDef{Name: "W", Body: "word *"}, MacroTypeAlias},
		{"reads a variable", cabs.MacroDef{Name: "V", Body: "counter * 2"}, MacroAccessor},
		{"calls a function", cabs.MacroDef{Name: "R", Body: "run()"}, MacroAccessor},
		{"uses an accessor", cabs.MacroDef{Name: "L", Body: "NOW + 1"}, MacroAccessor},
		{"function pointer", cabs.MacroDef{Name: "H", Body: "handler"}, MacroForwarder},
		{"generic", cabs.MacroDef{Name: "SQ", FuncLike: true, Params: []string{"x"}, Body: "((x) * (x))"}, MacroInlineFn},
		{"cast or call", cabs.MacroDef{Name: "AS", FuncLike: true, Params: []string{"T", "v"}, Body: "((T)(v))"}, MacroAmbiguous},
		{"field parameter", cabs.MacroDef{Name: "GET", FuncLike: true, Params: []string{"s", "f"}, Body: "s.f"}, MacroFieldAccess},
		{"token paste", cabs.MacroDef{Name: "CAT", FuncLike: true, Params: []string{"a", "b"}, Body: "a ## b"}, MacroInvalid},
		{"stringify", cabs.MacroDef{Name: "STR", FuncLike: true, Params: []string{"a"}, Body: "#a"}, MacroInvalid},
		{"variadic", cabs.MacroDef{Name: "LOG", FuncLike: true, Variadic: true, Params: []string{"fmt"}, Body: "printf(fmt)"}, MacroInvalid},
		{"undefined name", cabs.MacroDef{Name: "U", Body: "nowhere + 1"}, MacroInvalid},
		{"broken dependency", cabs.MacroDef{Name: "B", Body: "BROKEN"}, MacroInvalid},
		{"assignment", cabs.MacroDef{Name: "SET", FuncLike: true, Params: []string{"x"}, Body: "x = 1"}, MacroInvalid},
		{"builtin", cabs.MacroDef{Name: "EXP", FuncLike: true, Params: []string{"x"}, Body: "__builtin_expect(x, 1)"}, MacroInlineFn},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := ClassifyMacro(tt.def, sema, known)
			assert.Equal(t, tt.want, c.Kind, c.Reason)
		})
	}
}

func TestClassifyMacroReasons(t *testing.T) {
	sema := classifySema()
	c := ClassifyMacro(cabs.MacroDef{Name: "GET", FuncLike: true, Params: []string{"s", "f"}, Body: "(s)->f"}, sema, nil)
	assert.Equal(t, MacroFieldAccess, c.Kind)
	assert.Contains(t, c.Reason, "parameter 'f' is used as a field name")
	assert.Nil(t, c.Body)

	c = ClassifyMacro(cabs.MacroDef{Name: "U", Body: "nowhere"}, sema, nil)
	assert.Contains(t, c.Reason, "undefined identifier 'nowhere'")

	c = ClassifyMacro(cabs.MacroDef{Name: "H", Body: "(handler)"}, sema, nil)
	assert.Equal(t, MacroForwarder, c.Kind)
	assert.Len(t, c.Callee.Params, 1)
}

func TestMacroKindString(t *testing.T) {
	assert.Equal(t, "inline function", MacroInlineFn.String())
	assert.Equal(t, "field access", MacroFieldAccess.String())
	assert.Equal(t, "?", MacroKind(99).String())
}
