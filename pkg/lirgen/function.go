package lirgen

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/raymyers/ralph-translate-c/pkg/cabs"
	"github.com/raymyers/ralph-translate-c/pkg/ctyper"
	"github.com/raymyers/ralph-translate-c/pkg/ctypes"
	"github.com/raymyers/ralph-translate-c/pkg/diag"
	"github.com/raymyers/ralph-translate-c/pkg/lir"
)

// loopKind distinguishes the constructs a break or continue can leave
type loopKind int

const (
	loopWhile  loopKind = iota // while and for
	loopDo                     // do-while
	loopSwitch                 // auxiliary loop around a switch
)

// loop is an enclosing breakable construct
type loop struct {
	kind loopKind
	// label names the loop once a jump from a nested switch needs it
	label string
	// inner labels the body block of a do-while; continue breaks out of it
	// so the condition still runs
	inner string
	// checks: the do-while condition is tested after the body
	checks bool
	// bare: an endless while whose whole body is one switch, where
	// continuing the auxiliary loop is equivalent
	bare bool
}

// function holds the state of lowering one function body
type function struct {
	name       string
	typ        ctypes.Tfunction
	loops      []*loop
	hoisted    []lir.Stmt
	predefined map[string]bool
}

const demotedWarning = "warning: unable to translate function, demoted to extern"

// funDef lowers a function definition or prototype at file scope.
func (t *translator) funDef(def cabs.FunDef) {
	name := escape(def.Name)
	t.sema.Declare(ctyper.Symbol{Name: def.Name, Kind: ctyper.SymFunc, Type: def.Typ})
	t.bind(def.Name, &binding{kind: bindFunc, name: name, typ: def.Typ})
	if def.Body == nil {
		if t.declared[name] || t.bodies[def.Name] {
			return
		}
		t.declared[name] = true
		t.emit(t.externFn(def, false))
		return
	}
	t.declared[name] = true
	decl, err := t.function(def)
	if err != nil {
		t.report(diag.As(err).At(def.Pos, def.Name))
		if isMalformed(err) {
			return
		}
		t.log.WithFields(logrus.Fields{"function": def.Name}).Debug("demoted to extern")
		t.demoted[def.Name] = true
		t.emit(lir.Comment{Text: demotedWarning})
		t.emit(t.externFn(def, true))
		return
	}
	t.emit(decl)
}

// externFn declares a function defined elsewhere. Demoted definitions
// keep their parameter names with the arg_ prefix of the definition.
func (t *translator) externFn(def cabs.FunDef, demoted bool) lir.FnDecl {
	ft := t.fnType(def.Typ)
	for i := range ft.Params {
		name := ""
		if i < len(def.Params) {
			name = def.Params[i]
		}
		switch {
		case name == "":
			ft.Params[i].Name = ""
		case demoted:
			ft.Params[i].Name = escape("arg_" + name)
		default:
			ft.Params[i].Name = escape(name)
		}
	}
	cc := ""
	if def.Typ.CallConv != "" {
		cc = ft.CallConv
	}
	return lir.FnDecl{Pub: true, Extern: true, Name: escape(def.Name), Params: ft.Params, VarArg: ft.VarArg,
		Return: ft.Return, CallConv: cc, Section: t.section(def.Attrs.Section, def.Pos, def.Name)}
}

// section validates a linksection name against the object format of the
// target.
func (t *translator) section(name string, pos cabs.Pos, decl string) string {
	if name == "" {
		return ""
	}
	if !t.model.Target.ValidSection(name) {
		t.report(diag.New(diag.TargetUnsupportedAttribute, pos,
			"section '%s' is not valid for %s, expected \"segment,section\"", name, t.model.Target.Object).At(pos, decl))
		return ""
	}
	return name
}

// function lowers a function definition.
func (t *translator) function(def cabs.FunDef) (decl lir.FnDecl, err error) {
	fn := &function{name: def.Name, typ: def.Typ, predefined: make(map[string]bool)}
	t.fn = fn
	t.sema.EnterFunction(def.Name, def.Typ)
	t.pushScope()
	defer func() {
		t.popScope()
		t.sema.LeaveFunction()
		t.fn = nil
	}()

	ft := t.fnType(def.Typ)
	ft.VarArg = def.Typ.VarArg
	decl = lir.FnDecl{Pub: true, Name: escape(def.Name), VarArg: ft.VarArg, Return: ft.Return,
		Section: t.section(def.Attrs.Section, def.Pos, def.Name)}
	switch {
	case def.Storage == cabs.StorageStatic || def.Inline:
		decl.CallConv = ft.CallConv
	default:
		decl.Export = true
		if def.Typ.CallConv != "" {
			decl.CallConv = ft.CallConv
		}
	}

	var body []lir.Stmt
	for i, pt := range def.Typ.Params {
		pname := ""
		if i < len(def.Params) {
			pname = def.Params[i]
		}
		ptype := t.zigType(pt)
		if pname == "" {
			decl.Params = append(decl.Params, lir.Param{Name: "_", Type: ptype})
			continue
		}
		t.sema.Declare(ctyper.Symbol{Name: pname, Kind: ctyper.SymVar, Type: pt})
		if ctypes.QualsOf(pt)&ctypes.Const != 0 {
			name := t.fresh(pname)
			t.bind(pname, &binding{kind: bindVar, name: name, typ: pt})
			decl.Params = append(decl.Params, lir.Param{Name: name, Type: ptype})
			body = append(body, lir.Touch(name))
			continue
		}
		arg := t.fresh("arg_" + pname)
		name := t.fresh(pname)
		t.bind(pname, &binding{kind: bindVar, name: name, typ: pt})
		decl.Params = append(decl.Params, lir.Param{Name: arg, Type: ptype})
		body = append(body, lir.VarDecl{Name: name, Value: lir.Id(arg)}, lir.Touch(name))
	}

	stmts, err := t.stmts(def.Body.Items)
	if err != nil {
		return lir.FnDecl{}, err
	}
	body = append(t.predefinedContainers(def), append(body, stmts...)...)
	if !ctypes.IsVoid(def.Typ.Return) && !def.Typ.NoReturn && !endsInJump(body) {
		if def.Name == "main" {
			body = append(body, lir.Return{X: lir.Int("0")})
		} else {
			body = append(body, lir.Return{X: lir.Id("undefined")})
		}
	}
	decl.Body = &lir.Block{Stmts: body}
	return decl, nil
}

// predefinedContainers declares the __func__ family used in the body.
func (t *translator) predefinedContainers(def cabs.FunDef) []lir.Stmt {
	var out []lir.Stmt
	add := func(name, text string) {
		holder := "static_local_" + name
		arr := lir.Array{Len: int64(len(text)), Sentinel: true, Elem: lir.Named("u8")}
		container := lir.Container{Decls: []lir.Stmt{
			lir.VarDecl{Const: true, Name: name, Type: arr, Value: lir.Deref{X: lir.StringLit{Value: text}}},
		}}
		out = append(out, lir.VarDecl{Const: true, Name: holder, Value: lir.TypeExpr{T: container}}, lir.Touch(holder))
	}
	if t.fn.predefined["__PRETTY_FUNCTION__"] {
		add("__PRETTY_FUNCTION__", ctyper.PrettyFunction(def.Name, def.Typ))
	}
	if t.fn.predefined["__func__"] {
		add("__func__", def.Name)
	}
	return out
}

// endsInJump reports whether control never falls off the end of stmts.
func endsInJump(stmts []lir.Stmt) bool {
	if len(stmts) == 0 {
		return false
	}
	switch s := stmts[len(stmts)-1].(type) {
	case lir.Return, lir.Break, lir.Continue:
		return true
	case lir.ExprStmt:
		switch x := s.X.(type) {
		case lir.Ident:
			return x.Name == "unreachable"
		case lir.Builtin:
			return x.Name == "trap"
		}
	case lir.Block:
		return s.Label == "" && endsInJump(s.Stmts)
	case *lir.Block:
		return s.Label == "" && endsInJump(s.Stmts)
	case lir.If:
		return s.Else != nil && endsInJump([]lir.Stmt{s.Then}) && endsInJump([]lir.Stmt{s.Else})
	case lir.While:
		return isTrue(s.Cond) && !breaksOut(s.Body)
	}
	return false
}

func isTrue(x lir.Expr) bool {
	id, ok := x.(lir.Ident)
	return ok && id.Name == "true"
}

// breaksOut reports whether an unlabeled break in body leaves the loop
// owning body.
func breaksOut(body lir.Stmt) bool {
	switch s := body.(type) {
	case lir.Break:
		return s.Label == ""
	case lir.Block:
		for _, st := range s.Stmts {
			if breaksOut(st) {
				return true
			}
		}
	case *lir.Block:
		return breaksOut(*s)
	case lir.If:
		return breaksOut(s.Then) || s.Else != nil && breaksOut(s.Else)
	case lir.Switch:
		for _, p := range s.Prongs {
			if breaksOut(p.Body) {
				return true
			}
		}
	}
	return false
}

// hoist places declarations in front of the statement being lowered.
func (t *translator) hoist(stmts ...lir.Stmt) {
	if t.fn == nil {
		t.out = append(t.out, stmts...)
		return
	}
	t.fn.hoisted = append(t.fn.hoisted, stmts...)
}

// usePredefined records that the body reads __func__ or
// __PRETTY_FUNCTION__.
func (t *translator) usePredefined(name string) error {
	if t.fn == nil {
		return fail(diag.UnsupportedConstruct, "%s outside of a function", name)
	}
	t.fn.predefined[name] = true
	return nil
}

// labelFor names a loop for a jump that must skip inner constructs.
func (t *translator) labelFor(l *loop) string {
	if l.label == "" {
		l.label = t.freshLabel()
	}
	return l.label
}

func (t *translator) freshLabel() string {
	t.mangle++
	return fmt.Sprintf("__loop_%d", t.mangle)
}
