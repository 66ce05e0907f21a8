package lirgen

import (
	"strconv"

	"github.com/raymyers/ralph-translate-c/pkg/cabs"
	"github.com/raymyers/ralph-translate-c/pkg/lir"
)

// enumDef lowers a file-scope enum: one typed constant per enumerator,
// then the tag as an alias of the underlying integer type. Forward
// declarations emit nothing.
func (t *translator) enumDef(def cabs.EnumDef) {
	e := def.Enum
	t.sema.AddEnum(e)
	if !e.Complete {
		return
	}
	kind := intType(t.model.EnumConstKind(e))
	for _, c := range e.Consts {
		name := escape(c.Name)
		t.bind(c.Name, &binding{kind: bindEnumConst, name: name, value: c.Value})
		t.emit(lir.VarDecl{Pub: true, Const: true, Name: name, Type: kind, Value: lir.Int(strconv.FormatInt(c.Value, 10))})
	}
	if e.Tag == "" {
		return
	}
	name := t.enumName(e)
	t.emit(lir.VarDecl{Pub: true, Const: true, Name: name, Value: lir.TypeExpr{T: intType(t.model.EnumKind(e))}})
	t.aliases = append(t.aliases, alias{name: escape(e.Tag), target: name})
}

// localEnumDef lowers an enum declared inside a block to local constants.
func (t *translator) localEnumDef(def cabs.EnumDef) []lir.Stmt {
	e := def.Enum
	t.sema.AddEnum(e)
	if !e.Complete {
		return nil
	}
	var out []lir.Stmt
	kind := intType(t.model.EnumConstKind(e))
	for _, c := range e.Consts {
		name := t.fresh(c.Name)
		t.bind(c.Name, &binding{kind: bindEnumConst, name: name, value: c.Value})
		out = append(out, lir.VarDecl{Const: true, Name: name, Type: kind, Value: lir.Int(strconv.FormatInt(c.Value, 10))}, lir.Touch(name))
	}
	if e.Tag != "" {
		name := t.fresh("enum_" + e.Tag)
		t.enums[e] = name
		out = append(out, lir.VarDecl{Const: true, Name: name, Value: lir.TypeExpr{T: intType(t.model.EnumKind(e))}}, lir.Touch(name))
	}
	return out
}
