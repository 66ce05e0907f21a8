package lirgen

import (
	"github.com/raymyers/ralph-translate-c/pkg/cabs"
	"github.com/raymyers/ralph-translate-c/pkg/ctyper"
	"github.com/raymyers/ralph-translate-c/pkg/ctypes"
	"github.com/raymyers/ralph-translate-c/pkg/lir"
)

// holder declares a block-local container owning one static or extern
// object, followed by its discard.
func holder(name string, member lir.Stmt) []lir.Stmt {
	c := lir.Container{Decls: []lir.Stmt{member}}
	return []lir.Stmt{lir.VarDecl{Const: true, Name: name, Value: lir.TypeExpr{T: c}}, lir.Touch(name)}
}

// staticLocal gives a block-scope static variable static storage inside
// a container named after it.
func (t *translator) staticLocal(def cabs.VarDef) ([]lir.Stmt, error) {
	owner := t.fresh("static_local_" + def.Name)
	name := escape(def.Name)
	typ := def.Typ
	t.sema.Declare(ctyper.Symbol{Name: def.Name, Kind: ctyper.SymVar, Type: typ})
	t.bind(def.Name, &binding{kind: bindStatic, name: name, holder: owner, typ: typ})

	decl := lir.VarDecl{Name: name, Type: t.zigType(typ), ThreadLocal: def.ThreadLocal,
		Const: ctypes.IsConst(typ) && !def.ThreadLocal, Section: t.section(def.Attrs.Section, def.Pos, def.Name)}
	if def.Init == nil {
		decl.Value = t.zeroValue(typ)
	} else {
		lt, x, err := t.initValue(def.Init, typ)
		if err != nil {
			return nil, err
		}
		decl.Type, decl.Value = lt, x
	}
	return holder(owner, decl), nil
}

// externLocal declares a block-scope extern variable through @extern; the
// holder member is a pointer to the object, or the decayed pointer of an
// array of unknown size.
func (t *translator) externLocal(def cabs.VarDef) []lir.Stmt {
	owner := t.fresh("extern_local_" + def.Name)
	name := escape(def.Name)
	typ := def.Typ
	t.sema.Declare(ctyper.Symbol{Name: def.Name, Kind: ctyper.SymVar, Type: typ})
	b := t.bind(def.Name, &binding{kind: bindExtern, name: name, holder: owner, typ: typ})

	var ptr lir.Type
	if arr, ok := ctypes.Canonical(typ).(ctypes.Tarray); ok && arr.Size < 0 {
		ptr = t.zigType(typ)
	} else {
		q := ctypes.QualsOf(typ)
		ptr = lir.Pointer{Kind: lir.PtrOne, Const: q&ctypes.Const != 0, Volatile: q&ctypes.Volatile != 0,
			Elem: t.zigType(ctypes.Unqualified(typ))}
		b.indirect = true
	}
	opts := lir.StructInit{Fields: []lir.FieldInit{{Name: "name", Value: lir.StringLit{Value: def.Name}}}}
	decl := lir.VarDecl{Const: true, Name: name, Type: ptr,
		Value: lir.Builtin{Name: "extern", Args: []lir.Expr{lir.TypeExpr{T: ptr}, opts}}}
	return holder(owner, decl)
}

// externLocalFn declares a block-scope function prototype. Uses of an
// implicit one name the function directly.
func (t *translator) externLocalFn(def cabs.FunDef) []lir.Stmt {
	owner := t.fresh("extern_local_" + def.Name)
	name := escape(def.Name)
	t.sema.Declare(ctyper.Symbol{Name: def.Name, Kind: ctyper.SymFunc, Type: def.Typ})
	if def.Implicit {
		t.bind(def.Name, &binding{kind: bindFunc, name: name, typ: def.Typ})
	} else {
		t.bind(def.Name, &binding{kind: bindExtern, name: name, holder: owner, typ: def.Typ})
	}
	ft := t.fnType(def.Typ)
	cc := ""
	if def.Typ.CallConv != "" {
		cc = ft.CallConv
	}
	return holder(owner, lir.FnDecl{Extern: true, Name: name, Params: ft.Params, VarArg: ft.VarArg, Return: ft.Return, CallConv: cc})
}
