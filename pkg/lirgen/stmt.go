package lirgen

import (
	"github.com/raymyers/ralph-translate-c/pkg/cabs"
	"github.com/raymyers/ralph-translate-c/pkg/ctyper"
	"github.com/raymyers/ralph-translate-c/pkg/ctypes"
	"github.com/raymyers/ralph-translate-c/pkg/diag"
	"github.com/raymyers/ralph-translate-c/pkg/lir"
)

// stmts lowers a statement list in the current scope. Declarations a
// statement needs first, like anonymous records met in a cast, are placed
// in front of it.
func (t *translator) stmts(items []cabs.Stmt) ([]lir.Stmt, error) {
	var out []lir.Stmt
	for _, it := range items {
		ss, err := t.hoisting(it)
		if err != nil {
			return nil, err
		}
		out = append(out, ss...)
	}
	return out, nil
}

func (t *translator) hoisting(s cabs.Stmt) ([]lir.Stmt, error) {
	if t.fn == nil {
		return t.stmt(s)
	}
	saved := t.fn.hoisted
	t.fn.hoisted = nil
	ss, err := t.stmt(s)
	hoisted := t.fn.hoisted
	t.fn.hoisted = saved
	if err != nil {
		return nil, err
	}
	return append(hoisted, ss...), nil
}

func (t *translator) stmt(s cabs.Stmt) ([]lir.Stmt, error) {
	switch x := s.(type) {
	case nil, cabs.Empty:
		return nil, nil
	case *cabs.Block:
		t.pushScope()
		defer t.popScope()
		body, err := t.stmts(x.Items)
		if err != nil {
			return nil, err
		}
		return []lir.Stmt{lir.Block{Stmts: body}}, nil
	case cabs.DeclStmt:
		return t.localDecls(x.Decls)
	case cabs.ExprStmt:
		return t.effect(x.Expr)
	case cabs.Return:
		return t.returnStmt(x)
	case cabs.If:
		return t.ifStmt(x)
	case cabs.While:
		return t.whileStmt(x)
	case cabs.DoWhile:
		return t.doWhile(x)
	case cabs.For:
		return t.forStmt(x)
	case cabs.Switch:
		return t.switchStmt(x)
	case cabs.Break:
		return t.breakStmt()
	case cabs.Continue:
		return t.continueStmt()
	case cabs.Case, cabs.Default:
		return nil, unsupported("case label nested inside a statement of the switch body")
	case cabs.Goto:
		return nil, unsupported("goto statements are not supported")
	case cabs.Labeled:
		return nil, unsupported("labeled statements are not supported")
	}
	return nil, malformed("unexpected statement %T", s)
}

// body lowers the statement controlled by an if or a loop in its own
// scope.
func (t *translator) body(s cabs.Stmt) (lir.Stmt, error) {
	t.pushScope()
	defer t.popScope()
	ss, err := t.hoisting(s)
	if err != nil {
		return nil, err
	}
	if len(ss) == 1 {
		if b, ok := ss[0].(lir.Block); ok {
			return b, nil
		}
	}
	return single(ss), nil
}

func (t *translator) returnStmt(x cabs.Return) ([]lir.Stmt, error) {
	if x.Expr == nil {
		return []lir.Stmt{lir.Return{}}, nil
	}
	ret := t.fn.typ.Return
	if ctypes.IsVoid(ret) {
		pre, err := t.effect(x.Expr)
		if err != nil {
			return nil, err
		}
		return append(pre, lir.Return{}), nil
	}
	v, err := t.expr(x.Expr)
	if err != nil {
		return nil, err
	}
	return []lir.Stmt{lir.Return{X: t.result(v, ctypes.Unqualified(ret))}}, nil
}

func (t *translator) condition(e cabs.Expr) (lir.Expr, error) {
	v, err := t.expr(e)
	if err != nil {
		return nil, err
	}
	return t.cond(v), nil
}

func (t *translator) ifStmt(x cabs.If) ([]lir.Stmt, error) {
	c, err := t.condition(x.Cond)
	if err != nil {
		return nil, err
	}
	then, err := t.body(x.Then)
	if err != nil {
		return nil, err
	}
	s := lir.If{Cond: c, Then: then}
	if x.Else != nil {
		if s.Else, err = t.body(x.Else); err != nil {
			return nil, err
		}
	}
	return []lir.Stmt{s}, nil
}

// enter pushes a loop context for the duration of a body.
func (t *translator) enter(l *loop) func() {
	t.fn.loops = append(t.fn.loops, l)
	return func() { t.fn.loops = t.fn.loops[:len(t.fn.loops)-1] }
}

func (t *translator) whileStmt(x cabs.While) ([]lir.Stmt, error) {
	c, err := t.condition(x.Cond)
	if err != nil {
		return nil, err
	}
	l := &loop{kind: loopWhile, bare: isTrue(c) && isSwitch(x.Body)}
	leave := t.enter(l)
	body, err := t.body(x.Body)
	leave()
	if err != nil {
		return nil, err
	}
	return []lir.Stmt{lir.While{Label: l.label, Cond: c, Body: body}}, nil
}

// isSwitch reports whether s is a switch, possibly braced alone.
func isSwitch(s cabs.Stmt) bool {
	switch x := s.(type) {
	case cabs.Switch:
		return true
	case *cabs.Block:
		return len(x.Items) == 1 && isSwitch(x.Items[0])
	}
	return false
}

// forStmt lowers for (init; cond; step) to while (cond) : (step), inside
// a block holding the declarations of init.
func (t *translator) forStmt(x cabs.For) ([]lir.Stmt, error) {
	t.pushScope()
	defer t.popScope()
	pre, err := t.hoisting(x.Init)
	if err != nil {
		return nil, err
	}
	var c lir.Expr = lir.Id("true")
	if x.Cond != nil {
		if c, err = t.condition(x.Cond); err != nil {
			return nil, err
		}
	}
	var step lir.Stmt
	if x.Step != nil {
		ss, err := t.effect(x.Step)
		if err != nil {
			return nil, err
		}
		step = single(ss)
	}
	l := &loop{kind: loopWhile, bare: isTrue(c) && step == nil && isSwitch(x.Body)}
	leave := t.enter(l)
	body, err := t.body(x.Body)
	leave()
	if err != nil {
		return nil, err
	}
	loop := lir.While{Label: l.label, Cond: c, Cont: step, Body: body}
	if len(pre) == 0 {
		return []lir.Stmt{loop}, nil
	}
	return []lir.Stmt{lir.Block{Stmts: append(pre, loop)}}, nil
}

// doWhile lowers do body while (c) to an endless loop that tests the
// negated condition after the body. A continue in the body leaves a
// labeled block around it so the test still runs.
func (t *translator) doWhile(x cabs.DoWhile) ([]lir.Stmt, error) {
	c, err := t.condition(x.Cond)
	if err != nil {
		return nil, err
	}
	forever := isTrue(c)
	l := &loop{kind: loopDo, checks: !forever}
	leave := t.enter(l)
	t.pushScope()
	var body []lir.Stmt
	if b, ok := x.Body.(*cabs.Block); ok {
		body, err = t.stmts(b.Items)
	} else {
		body, err = t.hoisting(x.Body)
	}
	t.popScope()
	leave()
	if err != nil {
		return nil, err
	}
	if l.inner != "" {
		body = []lir.Stmt{lir.Block{Label: l.inner, Stmts: body}}
	}
	if !forever && !endsInJump(body) {
		body = append(body, lir.If{Cond: lir.Unary{Op: "!", X: paren(c)}, Then: lir.Break{}})
	}
	return []lir.Stmt{lir.While{Label: l.label, Cond: lir.Id("true"), Body: lir.Block{Stmts: body}}}, nil
}

// paren groups an operand of a prefix operator.
func paren(x lir.Expr) lir.Expr {
	switch x.(type) {
	case lir.Binary, lir.Truthy:
		return lir.Paren{X: x}
	}
	return x
}

// breakStmt leaves the innermost loop or switch.
func (t *translator) breakStmt() ([]lir.Stmt, error) {
	if len(t.fn.loops) == 0 {
		return nil, malformed("break statement not within loop or switch")
	}
	return []lir.Stmt{lir.Break{}}, nil
}

// continueStmt jumps to the next iteration of the innermost loop. From
// inside a switch the loop is reached by label, past the switch's own
// auxiliary loop.
func (t *translator) continueStmt() ([]lir.Stmt, error) {
	loops := t.fn.loops
	i := len(loops) - 1
	for i >= 0 && loops[i].kind == loopSwitch {
		i--
	}
	if i < 0 {
		return nil, malformed("continue statement not within a loop")
	}
	target := loops[i]
	crossed := i < len(loops)-1
	switch {
	case target.kind == loopDo && target.checks:
		if target.inner == "" {
			target.inner = t.freshLabel()
		}
		return []lir.Stmt{lir.Break{Label: target.inner}}, nil
	case !crossed:
		return []lir.Stmt{lir.Continue{}}, nil
	case target.bare && i == len(loops)-2:
		return []lir.Stmt{lir.Continue{}}, nil
	}
	return []lir.Stmt{lir.Continue{Label: t.labelFor(target)}}, nil
}

// localDecls lowers the declarations of a block.
func (t *translator) localDecls(defs []cabs.Definition) ([]lir.Stmt, error) {
	var out []lir.Stmt
	for _, d := range defs {
		ss, err := t.localDecl(d)
		if err != nil {
			return nil, err
		}
		out = append(out, ss...)
	}
	return out, nil
}

func (t *translator) localDecl(d cabs.Definition) ([]lir.Stmt, error) {
	switch def := d.(type) {
	case cabs.VarDef:
		if fn, ok := ctypes.FunctionOf(def.Typ); ok && ctypes.IsFunction(def.Typ) {
			return t.externLocalFn(cabs.FunDef{Name: def.Name, Typ: fn, Storage: cabs.StorageExtern, Pos: def.Pos}), nil
		}
		switch def.Storage {
		case cabs.StorageStatic:
			return t.staticLocal(def)
		case cabs.StorageExtern:
			return t.externLocal(def), nil
		}
		if def.ThreadLocal {
			return nil, unsupported("thread-local variable '%s' without static storage", def.Name)
		}
		return t.localVar(def)
	case cabs.FunDef:
		if def.Body != nil {
			return nil, unsupported("nested function '%s'", def.Name)
		}
		return t.externLocalFn(def), nil
	case cabs.TypedefDef:
		return t.localTypedef(def), nil
	case cabs.RecordDef:
		return t.localRecordDef(def), nil
	case cabs.EnumDef:
		return t.localEnumDef(def), nil
	case cabs.StaticAssert:
		return t.staticAssert(def)
	}
	return nil, malformed("unexpected declaration %T", d)
}

// localVar declares an automatic variable. An initializer reading the
// variable itself is split into a declaration and an assignment.
func (t *translator) localVar(def cabs.VarDef) ([]lir.Stmt, error) {
	typ := def.Typ
	if !t.model.Complete(typ) {
		return nil, fail(diag.IncompleteType, "variable '%s' has incomplete type '%s'", def.Name, typ)
	}
	name := t.fresh(def.Name)
	t.sema.Declare(ctyper.Symbol{Name: def.Name, Kind: ctyper.SymVar, Type: typ})
	t.bind(def.Name, &binding{kind: bindVar, name: name, typ: typ})

	decl := lir.VarDecl{Name: name, Type: t.zigType(typ), Const: ctypes.IsConst(typ), Value: lir.Id("undefined")}
	if def.Init == nil {
		return []lir.Stmt{decl, lir.Touch(name)}, nil
	}
	if cabs.Refers(def.Init, def.Name) && !decl.Const {
		v, err := t.expr(def.Init)
		if err != nil {
			return nil, err
		}
		assign := lir.Assign{Op: "=", L: lir.Id(name), R: t.result(v, ctypes.Unqualified(typ))}
		return []lir.Stmt{decl, assign, lir.Touch(name)}, nil
	}
	lt, x, err := t.initValue(def.Init, typ)
	if err != nil {
		return nil, err
	}
	decl.Type, decl.Value = lt, x
	return []lir.Stmt{decl, lir.Touch(name)}, nil
}

// staticAssert checks _Static_assert at comptime.
func (t *translator) staticAssert(def cabs.StaticAssert) ([]lir.Stmt, error) {
	v, err := t.expr(def.Cond)
	if err != nil {
		return nil, err
	}
	msg := def.Msg
	if msg == "" {
		msg = "static assertion failed"
	}
	// constant conditions are spelled out, not folded
	check := lir.If{Cond: lir.Unary{Op: "!", X: paren(t.convert(v, ctypes.BoolType()).x)},
		Then: lir.ExprStmt{X: lir.Builtin{Name: "compileError", Args: []lir.Expr{lir.StringLit{Value: msg}}}}}
	return []lir.Stmt{lir.Comptime{Body: &lir.Block{Stmts: []lir.Stmt{check}}}}, nil
}
