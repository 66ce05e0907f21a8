package lirgen

import (
	"github.com/raymyers/ralph-translate-c/pkg/cabs"
	"github.com/raymyers/ralph-translate-c/pkg/ctyper"
	"github.com/raymyers/ralph-translate-c/pkg/ctypes"
	"github.com/raymyers/ralph-translate-c/pkg/diag"
	"github.com/raymyers/ralph-translate-c/pkg/lir"
)

const demotedVarWarning = "warning: unable to translate variable initializer, demoted to extern"

// collectDefinitions picks, for every file-scope object, the one
// declaration that is emitted: the one with an initializer, else the
// last tentative definition, else the first extern declaration. It also
// records which functions have a body, so their prototypes are skipped.
func (t *translator) collectDefinitions(defs []cabs.Definition) {
	score := make(map[string]int)
	for i, d := range defs {
		switch def := d.(type) {
		case cabs.FunDef:
			if def.Body != nil {
				t.bodies[def.Name] = true
			}
		case cabs.VarDef:
			if ctypes.IsFunction(def.Typ) {
				continue
			}
			s := 1
			switch {
			case def.Init != nil:
				s = 3
			case def.Storage != cabs.StorageExtern:
				s = 2
			}
			if prev, ok := score[def.Name]; !ok || s > prev || s == 2 && prev == 2 {
				score[def.Name] = s
				t.globals[def.Name] = i
			}
		}
	}
}

// topLevel lowers one file-scope declaration.
func (t *translator) topLevel(i int, d cabs.Definition) {
	switch def := d.(type) {
	case cabs.FunDef:
		t.funDef(def)
	case cabs.VarDef:
		t.globalVar(i, def)
	case cabs.TypedefDef:
		t.typedef(def)
	case cabs.RecordDef:
		t.recordDef(def)
	case cabs.EnumDef:
		t.enumDef(def)
	case cabs.StaticAssert:
		ss, err := t.staticAssert(def)
		if err != nil {
			t.report(diag.New(diag.UnsupportedConstruct, def.Pos, "unable to translate static assertion: %v", err).At(def.Pos, ""))
			return
		}
		for _, s := range ss {
			t.emit(s)
		}
	default:
		t.report(diag.New(diag.MalformedAST, cabs.Pos{}, "unexpected definition %T", d))
	}
}

// globalVar lowers a file-scope variable. Definitions are exported,
// statics are not, and extern declarations have no value.
func (t *translator) globalVar(i int, def cabs.VarDef) {
	if fn, ok := ctypes.FunctionOf(def.Typ); ok && ctypes.IsFunction(def.Typ) {
		t.funDef(cabs.FunDef{Name: def.Name, Typ: fn, Storage: def.Storage, Attrs: def.Attrs, Pos: def.Pos})
		return
	}
	name := escape(def.Name)
	t.sema.Declare(ctyper.Symbol{Name: def.Name, Kind: ctyper.SymVar, Type: def.Typ})
	t.bind(def.Name, &binding{kind: bindGlobal, name: name, typ: def.Typ})
	if t.globals[def.Name] != i {
		return
	}
	typ := def.Typ
	decl := lir.VarDecl{Pub: true, Name: name, ThreadLocal: def.ThreadLocal,
		Section: t.section(def.Attrs.Section, def.Pos, def.Name)}
	if def.Storage == cabs.StorageExtern && def.Init == nil {
		decl.Extern, decl.Const, decl.Type = true, ctypes.IsConst(typ), t.zigType(typ)
		t.emit(decl)
		return
	}
	if def.Storage != cabs.StorageStatic {
		decl.Export = true
	}
	decl.Const = ctypes.IsConst(typ) && !def.ThreadLocal
	if def.Init == nil {
		if arr, ok := ctypes.Canonical(typ).(ctypes.Tarray); ok && arr.Size < 0 {
			// a tentative definition of an array of unknown size has one element
			typ = ctypes.Tarray{Elem: arr.Elem, Size: 1}
		}
		if !t.model.Complete(typ) {
			t.report(diag.New(diag.IncompleteType, def.Pos, "variable '%s' has incomplete type '%s'", def.Name, typ).At(def.Pos, def.Name))
			return
		}
		decl.Type, decl.Value = t.zigType(typ), t.zeroValue(typ)
		t.emit(decl)
		return
	}
	lt, x, err := t.initValue(def.Init, typ)
	if err != nil {
		t.report(diag.As(err).At(def.Pos, def.Name))
		if isMalformed(err) {
			return
		}
		t.emit(lir.Comment{Text: demotedVarWarning})
		t.emit(lir.VarDecl{Pub: true, Extern: true, Const: decl.Const, Name: name, Type: t.zigType(typ)})
		return
	}
	decl.Type, decl.Value = lt, x
	t.emit(decl)
}

// typedef lowers a file-scope typedef. A typedef of a record that is
// declared again later waits for the record, so it follows the record's
// declaration.
func (t *translator) typedef(def cabs.TypedefDef) {
	if ctyper.IsBuiltinTypedef(def.Name) {
		return
	}
	t.sema.Declare(ctyper.Symbol{Name: def.Name, Kind: ctyper.SymTypedef, Type: def.Typ})
	name := escape(def.Name)
	if rec, ok := def.Typ.(ctypes.Trecord); ok {
		info := t.info(rec.Rec)
		if info.name == name {
			// the typedef gave the anonymous record its name
			t.bind(def.Name, &binding{kind: bindTypedef, name: name, typ: def.Typ})
			return
		}
		if !info.emitted && !info.local && info.remaining > 0 {
			t.bind(def.Name, &binding{kind: bindTypedef, name: name, typ: def.Typ})
			info.typedefs = append(info.typedefs, def)
			return
		}
	}
	t.emitTypedef(def)
	t.bind(def.Name, &binding{kind: bindTypedef, name: name, typ: def.Typ})
}

// emitTypedef declares `pub const Name = T;`
func (t *translator) emitTypedef(def cabs.TypedefDef) {
	t.emit(lir.VarDecl{Pub: true, Const: true, Name: escape(def.Name), Value: lir.TypeExpr{T: t.zigType(def.Typ)}})
}

// localTypedef declares a typedef inside a block.
func (t *translator) localTypedef(def cabs.TypedefDef) []lir.Stmt {
	typ := t.zigType(def.Typ)
	name := t.fresh(def.Name)
	t.sema.Declare(ctyper.Symbol{Name: def.Name, Kind: ctyper.SymTypedef, Type: def.Typ})
	t.bind(def.Name, &binding{kind: bindTypedef, name: name, typ: def.Typ})
	return []lir.Stmt{lir.VarDecl{Const: true, Name: name, Value: lir.TypeExpr{T: typ}}, lir.Touch(name)}
}
