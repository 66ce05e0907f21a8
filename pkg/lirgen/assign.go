package lirgen

import (
	"github.com/raymyers/ralph-translate-c/pkg/cabs"
	"github.com/raymyers/ralph-translate-c/pkg/ctyper"
	"github.com/raymyers/ralph-translate-c/pkg/ctypes"
	"github.com/raymyers/ralph-translate-c/pkg/lir"
)

// effect lowers an expression evaluated only for its side effects.
func (t *translator) effect(e cabs.Expr) ([]lir.Stmt, error) {
	switch x := e.(type) {
	case cabs.Paren:
		return t.effect(x.Expr)
	case cabs.Binary:
		switch {
		case x.Op.IsAssign():
			s, err := t.assignStmt(x)
			if err != nil {
				return nil, err
			}
			return []lir.Stmt{s}, nil
		case x.Op == cabs.OpComma:
			l, err := t.effect(x.Left)
			if err != nil {
				return nil, err
			}
			r, err := t.effect(x.Right)
			if err != nil {
				return nil, err
			}
			return append(l, r...), nil
		}
	case cabs.Unary:
		switch x.Op {
		case cabs.OpPreInc, cabs.OpPreDec, cabs.OpPostInc, cabs.OpPostDec:
			s, err := t.incDecStmt(x)
			if err != nil {
				return nil, err
			}
			return []lir.Stmt{s}, nil
		}
	case cabs.Cast:
		if ctypes.IsVoid(x.Typ) {
			if _, ok := cabs.Unparen(x.Expr).(cabs.StmtExpr); ok {
				return t.effect(cabs.Unparen(x.Expr))
			}
		}
	case cabs.Conditional:
		if ctypes.IsVoid(x.Typ) && x.Then != nil {
			return t.voidConditional(x)
		}
	case cabs.Call:
		v, err := t.expr(x)
		if err != nil {
			return nil, err
		}
		if ctypes.IsVoid(x.Typ) {
			return []lir.Stmt{lir.ExprStmt{X: v.x}}, nil
		}
		return []lir.Stmt{lir.Discard(v.x)}, nil
	case cabs.StmtExpr:
		if x.Body == nil {
			return nil, malformed("statement expression without body")
		}
		t.pushScope()
		defer t.popScope()
		stmts, err := t.stmts(x.Body.Items)
		if err != nil {
			return nil, err
		}
		return []lir.Stmt{lir.Block{Stmts: stmts}}, nil
	}
	v, err := t.expr(e)
	if err != nil {
		return nil, err
	}
	return []lir.Stmt{lir.Discard(v.x)}, nil
}

func (t *translator) voidConditional(x cabs.Conditional) ([]lir.Stmt, error) {
	c, err := t.expr(x.Cond)
	if err != nil {
		return nil, err
	}
	th, err := t.effect(x.Then)
	if err != nil {
		return nil, err
	}
	el, err := t.effect(x.Else)
	if err != nil {
		return nil, err
	}
	return []lir.Stmt{lir.If{Cond: t.cond(c), Then: single(th), Else: single(el)}}, nil
}

// single returns the only statement of stmts, or a block holding them.
func single(stmts []lir.Stmt) lir.Stmt {
	if len(stmts) == 1 {
		if _, ok := stmts[0].(lir.VarDecl); !ok {
			return stmts[0]
		}
	}
	return lir.Block{Stmts: stmts}
}

// lvalueType is the type an assignment to e stores.
func lvalueType(e cabs.Expr) ctypes.Type {
	return ctypes.Unqualified(e.Type())
}

// store converts v for storing into an object of type lt; bit-fields are
// truncated to their width.
func (t *translator) store(v value, lt ctypes.Type, bits int) lir.Expr {
	if bits != 0 {
		return lir.Conv{Op: lir.Truncate, X: t.typed(t.convert(v, lt))}
	}
	return t.result(v, lt)
}

// assignStmt lowers an assignment whose value is unused.
func (t *translator) assignStmt(x cabs.Binary) (lir.Stmt, error) {
	lt := lvalueType(x.Left)
	r, err := t.expr(x.Right)
	if err != nil {
		return nil, err
	}
	if x.Op != cabs.OpAssign && hasSideEffects(x.Left) {
		t.pushScope()
		defer t.popScope()
		ref, target, err := t.reference(x.Left)
		if err != nil {
			return nil, err
		}
		step := t.compound(x.Op.Arith(), target, r, lt)
		if ref == nil {
			return step, nil
		}
		return lir.Block{Stmts: []lir.Stmt{ref, step}}, nil
	}
	lhs, err := t.expr(x.Left)
	if err != nil {
		return nil, err
	}
	if x.Op == cabs.OpAssign {
		return lir.Assign{Op: "=", L: lhs.x, R: t.store(r, lt, lhs.bits)}, nil
	}
	return t.compound(x.Op.Arith(), lhs, r, lt), nil
}

// reference takes the address of an lvalue once: it returns
// const ref = &lhs and the value ref.*. Bit-fields cannot be referenced
// and are returned as they are.
func (t *translator) reference(e cabs.Expr) (lir.Stmt, value, error) {
	lhs, err := t.expr(e)
	if err != nil {
		return nil, value{}, err
	}
	if lhs.bits != 0 {
		return nil, lhs, nil
	}
	name := t.fresh("ref")
	decl := lir.VarDecl{Const: true, Name: name, Value: lir.Unary{Op: "&", X: lhs.x}}
	return decl, value{x: lir.Deref{X: lir.Id(name)}, typ: lhs.typ}, nil
}

// compound lowers target op= r.
func (t *translator) compound(op cabs.BinaryOp, target, r value, lt ctypes.Type) lir.Stmt {
	if ctypes.IsPointer(lt) {
		s := "+="
		if op == cabs.OpSub {
			s = "-="
		}
		return lir.Assign{Op: s, L: target.x, R: t.offset(r)}
	}
	shift := op == cabs.OpShl || op == cabs.OpShr
	ct := t.model.Promote(lt)
	if !shift {
		ct = t.model.UsualArithmetic(ct, t.model.Promote(r.typ))
	}
	if target.bits == 0 && t.sameRepr(ct, lt) {
		if shift {
			amount := t.convert(r, t.model.Promote(r.typ))
			return lir.Assign{Op: op.String() + "=", L: target.x, R: lir.Conv{Op: lir.IntCast, X: t.inner(amount)}}
		}
		rv := t.inner(t.convert(r, ct))
		wrap := t.isUnsigned(ct)
		signed := ctypes.IsInteger(ct) && !wrap
		switch op {
		case cabs.OpAdd, cabs.OpSub, cabs.OpMul:
			s := op.String()
			if wrap {
				s += "%"
			}
			return lir.Assign{Op: s + "=", L: target.x, R: rv}
		case cabs.OpDiv:
			if signed {
				return lir.Assign{Op: "=", L: target.x, R: lir.Builtin{Name: "divTrunc", Args: []lir.Expr{target.x, rv}}}
			}
		case cabs.OpMod:
			if signed {
				return lir.Assign{Op: "=", L: target.x, R: lir.Call{Fn: helper("signedRemainder"), Args: []lir.Expr{target.x, rv}}}
			}
		}
		return lir.Assign{Op: op.String() + "=", L: target.x, R: rv}
	}
	var v value
	if shift {
		amount := t.convert(r, t.model.Promote(r.typ))
		s := "<<"
		if op == cabs.OpShr {
			s = ">>"
		}
		x := lir.Binary{Op: s, L: t.operand(t.convert(target, ct)), R: lir.Conv{Op: lir.IntCast, X: t.inner(amount)}}
		v = typedValue(x, ct)
	} else {
		v = t.arith(op, t.convert(target, ct), t.convert(r, ct), ct)
	}
	return lir.Assign{Op: "=", L: target.x, R: t.store(v, lt, target.bits)}
}

// assignValue lowers an assignment whose value is used:
//
//	blk: { const ref = &lhs; ref.* op= r; break :blk ref.*; }
func (t *translator) assignValue(x cabs.Binary) (value, error) {
	lt := lvalueType(x.Left)
	t.pushScope()
	defer t.popScope()
	label := t.fresh("blk")
	r, err := t.expr(x.Right)
	if err != nil {
		return value{}, err
	}
	if x.Op == cabs.OpAssign {
		lhs, err := t.expr(x.Left)
		if err != nil {
			return value{}, err
		}
		tmp := t.fresh("tmp")
		stmts := []lir.Stmt{
			lir.VarDecl{Const: true, Name: tmp, Value: t.operand(t.convert(r, lt))},
			lir.Assign{Op: "=", L: lhs.x, R: t.store(typedValue(lir.Id(tmp), lt), lt, lhs.bits)},
			lir.Break{Label: label, Value: lir.Id(tmp)},
		}
		return typedValue(lir.BlockExpr{Label: label, Stmts: stmts}, lt), nil
	}
	ref, target, err := t.reference(x.Left)
	if err != nil {
		return value{}, err
	}
	var stmts []lir.Stmt
	if ref != nil {
		stmts = append(stmts, ref)
	}
	stmts = append(stmts, t.compound(x.Op.Arith(), target, r, lt), lir.Break{Label: label, Value: t.typed(target)})
	return typedValue(lir.BlockExpr{Label: label, Stmts: stmts}, lt), nil
}

// incDecOp returns the compound operator of ++ and --.
func (t *translator) incDecOp(x cabs.Unary, bits int) string {
	op := "+="
	if x.Op == cabs.OpPreDec || x.Op == cabs.OpPostDec {
		op = "-="
	}
	typ := x.Expr.Type()
	if k, ok := t.model.IntKindOf(typ); ok && k != ctypes.Bool {
		if !t.model.IsSigned(k) || ctypes.Rank(k) < ctypes.Rank(ctypes.Int) || bits != 0 {
			op = op[:1] + "%="
		}
	}
	return op
}

func (t *translator) incDecStmt(x cabs.Unary) (lir.Stmt, error) {
	if hasSideEffects(x.Expr) {
		t.pushScope()
		defer t.popScope()
		ref, target, err := t.reference(x.Expr)
		if err != nil {
			return nil, err
		}
		step := lir.Assign{Op: t.incDecOp(x, target.bits), L: target.x, R: lir.Int("1")}
		if ref == nil {
			return step, nil
		}
		return lir.Block{Stmts: []lir.Stmt{ref, step}}, nil
	}
	v, err := t.expr(x.Expr)
	if err != nil {
		return nil, err
	}
	return lir.Assign{Op: t.incDecOp(x, v.bits), L: v.x, R: lir.Int("1")}, nil
}

// incDecValue lowers ++ and -- used as values; postfix forms yield the old
// value.
func (t *translator) incDecValue(x cabs.Unary) (value, error) {
	t.pushScope()
	defer t.popScope()
	label := t.fresh("blk")
	ref, target, err := t.reference(x.Expr)
	if err != nil {
		return value{}, err
	}
	var stmts []lir.Stmt
	if ref != nil {
		stmts = append(stmts, ref)
	}
	step := lir.Assign{Op: t.incDecOp(x, target.bits), L: target.x, R: lir.Int("1")}
	typ := lvalueType(x.Expr)
	if x.Op == cabs.OpPostInc || x.Op == cabs.OpPostDec {
		tmp := t.fresh("tmp")
		stmts = append(stmts, lir.VarDecl{Const: true, Name: tmp, Value: t.typed(target)}, step, lir.Break{Label: label, Value: lir.Id(tmp)})
	} else {
		stmts = append(stmts, step, lir.Break{Label: label, Value: t.typed(target)})
	}
	return typedValue(lir.BlockExpr{Label: label, Stmts: stmts}, typ), nil
}

// hasSideEffects reports whether evaluating e twice could differ from
// evaluating it once.
func hasSideEffects(e cabs.Expr) bool {
	switch x := e.(type) {
	case nil:
		return false
	case cabs.Call, cabs.StmtExpr:
		return true
	case cabs.Unary:
		switch x.Op {
		case cabs.OpPreInc, cabs.OpPreDec, cabs.OpPostInc, cabs.OpPostDec:
			return true
		}
		return hasSideEffects(x.Expr)
	case cabs.Binary:
		return x.Op.IsAssign() || hasSideEffects(x.Left) || hasSideEffects(x.Right)
	case cabs.Paren:
		return hasSideEffects(x.Expr)
	case cabs.Cast:
		return hasSideEffects(x.Expr)
	case cabs.Member:
		return hasSideEffects(x.Expr)
	case cabs.Index:
		return hasSideEffects(x.Array) || hasSideEffects(x.Index)
	case cabs.Conditional:
		return hasSideEffects(x.Cond) || hasSideEffects(x.Then) || hasSideEffects(x.Else)
	case cabs.CompoundLiteral:
		return x.Init != nil && initHasSideEffects(x.Init)
	case *cabs.InitList:
		return initHasSideEffects(x)
	case cabs.Generic:
		chosen, ok := ctyper.SelectGeneric(x)
		return ok && hasSideEffects(chosen)
	}
	return false
}

func initHasSideEffects(il *cabs.InitList) bool {
	for _, it := range il.Items {
		if hasSideEffects(it.Value) {
			return true
		}
	}
	return false
}
