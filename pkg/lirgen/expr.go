package lirgen

import (
	"strconv"
	"strings"

	"github.com/raymyers/ralph-translate-c/pkg/cabs"
	"github.com/raymyers/ralph-translate-c/pkg/ctyper"
	"github.com/raymyers/ralph-translate-c/pkg/ctypes"
	"github.com/raymyers/ralph-translate-c/pkg/diag"
	"github.com/raymyers/ralph-translate-c/pkg/lir"
)

// expr lowers an expression evaluated for its value.
func (t *translator) expr(e cabs.Expr) (value, error) {
	if e == nil {
		return value{}, malformed("missing expression")
	}
	if e.Type() == nil {
		return value{}, malformed("expression %T has no type", e)
	}
	v, err := t.lowerExpr(e)
	if err != nil {
		return value{}, err
	}
	if v.konst == nil && ctypes.IsInteger(e.Type()) {
		if k, ok := t.sema.ConstInt(e); ok {
			v.konst = &k
		}
	}
	return v, nil
}

func (t *translator) lowerExpr(e cabs.Expr) (value, error) {
	switch x := e.(type) {
	case cabs.Constant:
		return t.intLiteral(x), nil
	case cabs.FloatConst:
		return t.floatLiteral(x), nil
	case cabs.CharLiteral:
		return t.charLiteral(x), nil
	case cabs.StringLiteral:
		return t.stringLiteral(x), nil
	case cabs.Variable:
		return t.variable(x)
	case cabs.Paren:
		v, err := t.expr(x.Expr)
		if err != nil {
			return value{}, err
		}
		if _, ok := v.x.(lir.Binary); ok {
			v.paren = true
		}
		return v, nil
	case cabs.Unary:
		return t.unary(x)
	case cabs.Binary:
		return t.binary(x)
	case cabs.Conditional:
		return t.conditional(x)
	case cabs.Cast:
		return t.cast(x)
	case cabs.Call:
		return t.call(x)
	case cabs.Index:
		return t.index(x)
	case cabs.Member:
		return t.member(x)
	case cabs.SizeofType:
		return t.sizeofType(x.Of, x.Typ), nil
	case cabs.SizeofExpr:
		return t.sizeofExpr(x)
	case cabs.AlignofType:
		return t.comptimeInt(lir.Builtin{Name: "alignOf", Args: []lir.Expr{lir.TypeExpr{T: t.zigType(x.Of)}}}, x.Typ), nil
	case cabs.OffsetOf:
		return t.offsetOf(x)
	case cabs.Generic:
		chosen, ok := ctyper.SelectGeneric(x)
		if !ok {
			return value{}, malformed("no _Generic association matches %s", x.Control.Type())
		}
		return t.expr(chosen)
	case *cabs.InitList:
		init, err := t.initializer(x, x.Typ)
		if err != nil {
			return value{}, err
		}
		return untyped(init, x.Typ), nil
	case cabs.CompoundLiteral:
		init, err := t.initializer(x.Init, x.Typ)
		if err != nil {
			return value{}, err
		}
		return untyped(init, x.Typ), nil
	case cabs.StmtExpr:
		return t.stmtExprValue(x)
	case cabs.Predefined:
		x0, err := t.predefined(x.Name)
		if err != nil {
			return value{}, err
		}
		return typedValue(x0, x.Typ), nil
	case cabs.ConvertVector:
		return t.convertVector(x)
	case cabs.ShuffleVector:
		return t.shuffleVector(x)
	}
	return value{}, malformed("unexpected expression %T", e)
}

func (t *translator) variable(x cabs.Variable) (value, error) {
	b, ok := t.lookup(x.Name)
	if !ok {
		if strings.HasPrefix(x.Name, "__builtin_") {
			return value{}, unsupported("builtin '%s' used as a value", x.Name)
		}
		return value{}, malformed("use of undeclared identifier '%s'", x.Name)
	}
	switch b.kind {
	case bindEnumConst:
		k := b.value
		v := typedValue(lir.Id(b.name), x.Typ)
		v.konst = &k
		return v, nil
	case bindTypedef:
		return value{}, malformed("type name '%s' used as a value", x.Name)
	}
	v := typedValue(b.ref(), x.Typ)
	if arr, ok := ctypes.Canonical(x.Typ).(ctypes.Tarray); ok && arr.Size < 0 {
		v.ptr = true
	}
	return v, nil
}

// predefined names the container holding __func__ or __PRETTY_FUNCTION__.
func (t *translator) predefined(name string) (lir.Expr, error) {
	if name == "__FUNCTION__" {
		name = "__func__"
	}
	if err := t.usePredefined(name); err != nil {
		return nil, err
	}
	return lir.Member{X: lir.Id("static_local_" + name), Name: name}, nil
}

func (t *translator) unary(x cabs.Unary) (value, error) {
	switch x.Op {
	case cabs.OpPreInc, cabs.OpPreDec, cabs.OpPostInc, cabs.OpPostDec:
		return t.incDecValue(x)
	case cabs.OpAddrOf:
		return t.addressOf(x)
	case cabs.OpDeref:
		return t.deref(x)
	case cabs.OpNot:
		if inner, ok := cabs.Unparen(x.Expr).(cabs.Unary); ok && inner.Op == cabs.OpNot {
			v, err := t.expr(inner.Expr)
			if err != nil {
				return value{}, err
			}
			return value{x: t.cond(v), typ: x.Typ, cmp: true}, nil
		}
		v, err := t.expr(x.Expr)
		if err != nil {
			return value{}, err
		}
		return value{x: lir.Unary{Op: "!", X: t.bareCond(v)}, typ: x.Typ, cmp: true}, nil
	}
	v, err := t.expr(x.Expr)
	if err != nil {
		return value{}, err
	}
	if ctypes.IsVector(x.Typ) {
		return t.vectorUnary(x, v)
	}
	cv := t.convert(v, x.Typ)
	switch x.Op {
	case cabs.OpPlus:
		return cv, nil
	case cabs.OpNeg:
		op := "-"
		if t.isUnsigned(x.Typ) {
			op = "-%"
		}
		return typedValue(lir.Unary{Op: op, X: t.operand(cv)}, x.Typ), nil
	case cabs.OpBitNot:
		return typedValue(lir.Unary{Op: "~", X: t.operand(cv)}, x.Typ), nil
	}
	return value{}, malformed("unexpected unary operator %v", x.Op)
}

// isUnsigned reports whether arithmetic on typ wraps.
func (t *translator) isUnsigned(typ ctypes.Type) bool {
	k, ok := t.model.IntKindOf(typ)
	return ok && !t.model.IsSigned(k)
}

func (t *translator) addressOf(x cabs.Unary) (value, error) {
	inner := cabs.Unparen(x.Expr)
	if d, ok := inner.(cabs.Unary); ok && d.Op == cabs.OpDeref {
		v, err := t.expr(d.Expr)
		if err != nil {
			return value{}, err
		}
		return retype(t.decay(v), x.Typ), nil
	}
	v, err := t.expr(inner)
	if err != nil {
		return value{}, err
	}
	if v.bits != 0 {
		return value{}, malformed("address of bit-field")
	}
	if ctypes.IsFunction(v.typ) {
		return retype(t.decay(v), x.Typ), nil
	}
	if v.ptr {
		return value{x: v.x, typ: x.Typ}, nil
	}
	return value{x: lir.Unary{Op: "&", X: t.operand(v)}, typ: x.Typ, nonNull: true}, nil
}

func (t *translator) deref(x cabs.Unary) (value, error) {
	v, err := t.expr(x.Expr)
	if err != nil {
		return value{}, err
	}
	if ctypes.IsFunction(v.typ) {
		return v, nil
	}
	p := t.decay(v)
	if ctypes.IsFunction(x.Typ) {
		return value{x: lir.Unwrap{X: t.operand(p)}, typ: x.Typ}, nil
	}
	if r := ctypes.RecordOf(x.Typ); r != nil && t.containsOpaque(r) {
		return value{}, fail(diag.IncompleteType, "dereference of opaque type '%s'", ctypes.Unqualified(x.Typ))
	}
	if ctypes.IsVoid(x.Typ) {
		return value{}, fail(diag.IncompleteType, "dereference of void pointer")
	}
	return typedValue(lir.Deref{X: t.operand(p)}, x.Typ), nil
}

func (t *translator) binary(x cabs.Binary) (value, error) {
	switch {
	case x.Op.IsAssign():
		return t.assignValue(x)
	case x.Op == cabs.OpComma:
		return t.commaValue(x)
	case x.Op == cabs.OpAnd || x.Op == cabs.OpOr:
		return t.logical(x)
	}
	l, err := t.expr(x.Left)
	if err != nil {
		return value{}, err
	}
	r, err := t.expr(x.Right)
	if err != nil {
		return value{}, err
	}
	if ctypes.IsVector(l.typ) || ctypes.IsVector(r.typ) {
		return t.vectorBinary(x, l, r)
	}
	if x.Op.IsComparison() {
		return t.compare(x, l, r)
	}
	lp, rp := isPointerLike(l.typ), isPointerLike(r.typ)
	switch {
	case lp && rp && x.Op == cabs.OpSub:
		return t.pointerDiff(t.decay(l), t.decay(r), x.Typ)
	case lp && (x.Op == cabs.OpAdd || x.Op == cabs.OpSub):
		return t.pointerOffset(x.Op, t.decay(l), r, x.Typ), nil
	case rp && x.Op == cabs.OpAdd:
		return t.pointerOffset(x.Op, t.decay(r), l, x.Typ), nil
	}
	if x.Op == cabs.OpShl || x.Op == cabs.OpShr {
		lv := t.convert(l, x.Typ)
		rv := t.convert(r, t.model.Promote(r.typ))
		op := "<<"
		if x.Op == cabs.OpShr {
			op = ">>"
		}
		return typedValue(lir.Binary{Op: op, L: t.operand(lv), R: lir.Conv{Op: lir.IntCast, X: t.inner(rv)}}, x.Typ), nil
	}
	return t.arith(x.Op, t.convert(l, x.Typ), t.convert(r, x.Typ), x.Typ), nil
}

func isPointerLike(typ ctypes.Type) bool {
	return ctypes.IsPointer(typ) || ctypes.IsArray(typ) || ctypes.IsFunction(typ)
}

// arith applies an arithmetic or bitwise operator to operands already
// converted to ct.
func (t *translator) arith(op cabs.BinaryOp, l, r value, ct ctypes.Type) value {
	wrap := t.isUnsigned(ct)
	signed := ctypes.IsInteger(ct) && !wrap
	lx, rx := t.operand(l), t.operand(r)
	switch op {
	case cabs.OpAdd, cabs.OpSub, cabs.OpMul:
		s := op.String()
		if wrap {
			s += "%"
		}
		return typedValue(lir.Binary{Op: s, L: lx, R: rx}, ct)
	case cabs.OpDiv:
		if signed {
			return typedValue(lir.Builtin{Name: "divTrunc", Args: []lir.Expr{lx, rx}}, ct)
		}
	case cabs.OpMod:
		if signed {
			return typedValue(lir.Call{Fn: helper("signedRemainder"), Args: []lir.Expr{lx, rx}}, ct)
		}
	}
	return typedValue(lir.Binary{Op: op.String(), L: lx, R: rx}, ct)
}

func (t *translator) compare(x cabs.Binary, l, r value) (value, error) {
	op := x.Op.String()
	switch {
	case ctypes.IsArithmetic(l.typ) && ctypes.IsArithmetic(r.typ):
		ct := t.model.UsualArithmetic(t.model.Promote(l.typ), t.model.Promote(r.typ))
		l, r = t.convert(l, ct), t.convert(r, ct)
	case isPointerLike(l.typ) && t.sema.IsNullConstant(x.Right):
		return value{x: lir.Binary{Op: op, L: t.operand(t.decay(l)), R: lir.Id("null")}, typ: x.Typ, cmp: true}, nil
	case isPointerLike(r.typ) && t.sema.IsNullConstant(x.Left):
		return value{x: lir.Binary{Op: op, L: lir.Id("null"), R: t.operand(t.decay(r))}, typ: x.Typ, cmp: true}, nil
	case isPointerLike(l.typ):
		l = t.decay(l)
		r = t.convert(r, l.typ)
	case isPointerLike(r.typ):
		r = t.decay(r)
		l = t.convert(l, r.typ)
	}
	return value{x: lir.Binary{Op: op, L: t.operand(l), R: t.operand(r)}, typ: x.Typ, cmp: true}, nil
}

func (t *translator) logical(x cabs.Binary) (value, error) {
	l, err := t.expr(x.Left)
	if err != nil {
		return value{}, err
	}
	r, err := t.expr(x.Right)
	if err != nil {
		return value{}, err
	}
	if ctypes.IsArithmetic(l.typ) && ctypes.IsArithmetic(r.typ) {
		// comparisons already are bools
		ct := t.model.UsualArithmetic(t.model.Promote(l.typ), t.model.Promote(r.typ))
		if !l.cmp {
			l = t.convert(l, ct)
		}
		if !r.cmp {
			r = t.convert(r, ct)
		}
	}
	op := "and"
	if x.Op == cabs.OpOr {
		op = "or"
	}
	return value{x: lir.Binary{Op: op, L: t.bareCond(l), R: t.bareCond(r)}, typ: x.Typ, cmp: true}, nil
}

// offset converts an integer to the usize a pointer is moved by.
func (t *translator) offset(n value) lir.Expr {
	n = t.convert(n, t.model.Promote(n.typ))
	usize := lir.Named("usize")
	if k, ok := t.model.IntKindOf(n.typ); ok && t.model.IsSigned(k) {
		isize := lir.As{T: lir.Named("isize"), X: lir.Conv{Op: lir.IntCast, X: t.operand(n)}}
		return lir.As{T: usize, X: lir.Conv{Op: lir.BitCast, X: isize}}
	}
	return lir.As{T: usize, X: lir.Conv{Op: lir.IntCast, X: t.operand(n)}}
}

// pointerOperand is operand(p) with an address-of grouped.
func (t *translator) pointerOperand(p value) lir.Expr {
	x := t.operand(p)
	if u, ok := x.(lir.Unary); ok && u.Op == "&" {
		return lir.Paren{X: x}
	}
	return x
}

func (t *translator) pointerOffset(op cabs.BinaryOp, p, n value, typ ctypes.Type) value {
	s := "+"
	if op == cabs.OpSub {
		s = "-"
	}
	return typedValue(lir.Binary{Op: s, L: t.pointerOperand(p), R: t.offset(n)}, typ)
}

// pointerDiff lowers p - q to the byte distance divided by the element
// size.
func (t *translator) pointerDiff(p, q value, typ ctypes.Type) (value, error) {
	elem := ctypes.Pointee(p.typ)
	k, _ := t.model.IntKindOf(typ)
	diff := lir.Binary{Op: "-%", L: lir.Conv{Op: lir.IntFromPtr, X: t.operand(p)}, R: lir.Conv{Op: lir.IntFromPtr, X: t.operand(q)}}
	bytes := lir.As{T: intType(k), X: lir.Conv{Op: lir.BitCast, X: diff}}
	var size lir.Expr = lir.Int("1")
	if !ctypes.IsVoid(elem) && !ctypes.IsFunction(elem) {
		size = lir.Builtin{Name: "sizeOf", Args: []lir.Expr{lir.TypeExpr{T: t.zigType(ctypes.Unqualified(elem))}}}
	}
	return typedValue(lir.Builtin{Name: "divExact", Args: []lir.Expr{bytes, size}}, ctypes.Tint{Kind: k}), nil
}

func (t *translator) commaValue(x cabs.Binary) (value, error) {
	t.pushScope()
	defer t.popScope()
	label := t.fresh("blk")
	stmts, err := t.effect(x.Left)
	if err != nil {
		return value{}, err
	}
	r, err := t.expr(x.Right)
	if err != nil {
		return value{}, err
	}
	if ctypes.IsVoid(x.Typ) {
		return value{}, unsupported("void comma expression used as a value")
	}
	stmts = append(stmts, lir.Break{Label: label, Value: t.operand(t.decay(r))})
	return typedValue(lir.BlockExpr{Label: label, Stmts: stmts}, ctypes.Decay(x.Typ)), nil
}

func (t *translator) conditional(x cabs.Conditional) (value, error) {
	c, err := t.expr(x.Cond)
	if err != nil {
		return value{}, err
	}
	el, err := t.expr(x.Else)
	if err != nil {
		return value{}, err
	}
	if x.Then == nil {
		return t.elvis(c, el, x.Typ)
	}
	th, err := t.expr(x.Then)
	if err != nil {
		return value{}, err
	}
	th, el = t.convert(t.decayed(th, x.Typ), x.Typ), t.convert(t.decayed(el, x.Typ), x.Typ)
	v := value{x: lir.IfExpr{Cond: t.cond(c), Then: th.x, Else: el.x}, typ: x.Typ}
	v.untyped = th.untyped || el.untyped
	return v, nil
}

// decayed decays v unless the destination type is itself an array.
func (t *translator) decayed(v value, typ ctypes.Type) value {
	if ctypes.IsArray(typ) || ctypes.IsFunction(typ) {
		return v
	}
	return t.decay(v)
}

// elvis lowers the GNU a ?: b, evaluating a once.
func (t *translator) elvis(c, el value, typ ctypes.Type) (value, error) {
	t.pushScope()
	defer t.popScope()
	label := t.fresh("blk")
	tmp := t.fresh("tmp")
	c = t.convert(t.decay(c), typ)
	ref := value{x: lir.Id(tmp), typ: typ}
	decl := lir.VarDecl{Const: true, Name: tmp, Type: t.zigType(typ), Value: c.x}
	pick := lir.IfExpr{Cond: t.cond(ref), Then: lir.Id(tmp), Else: t.result(t.decay(el), typ)}
	return typedValue(lir.BlockExpr{Label: label, Stmts: []lir.Stmt{decl, lir.Break{Label: label, Value: pick}}}, typ), nil
}

func (t *translator) cast(x cabs.Cast) (value, error) {
	if r := ctypes.RecordOf(x.Typ); r != nil && r.Kind == ctypes.Union && !ctypes.IsRecord(x.Expr.Type()) {
		return t.unionCast(x, r)
	}
	v, err := t.expr(x.Expr)
	if err != nil {
		return value{}, err
	}
	if ctypes.IsVoid(x.Typ) {
		return retype(v, x.Typ), nil
	}
	if ctypes.IsPointer(x.Typ) && t.sema.IsNullConstant(x.Expr) && ctypes.IsInteger(x.Expr.Type()) {
		return typedValue(lir.Id("null"), x.Typ), nil
	}
	if ctypes.IsVector(x.Typ) || ctypes.IsVector(v.typ) {
		return t.vectorCast(v, x.Typ)
	}
	out := t.convert(v, x.Typ)
	out.paren = false
	return out, nil
}

// unionCast lowers the GNU cast to a union to an initializer of the member
// with the operand's type.
func (t *translator) unionCast(x cabs.Cast, r *ctypes.Record) (value, error) {
	v, err := t.expr(x.Expr)
	if err != nil {
		return value{}, err
	}
	sh := t.shape(r)
	for i, f := range r.Fields {
		if ctypes.Compatible(ctypes.Unqualified(f.Type), ctypes.Unqualified(x.Expr.Type())) {
			init := lir.StructInit{T: t.zigType(x.Typ), Fields: []lir.FieldInit{{Name: sh.fields[i].name, Value: t.result(v, f.Type)}}}
			return untyped(init, x.Typ), nil
		}
	}
	return value{}, malformed("no member of '%s' has type '%s'", ctypes.Unqualified(x.Typ), x.Expr.Type())
}

// comptimeInt wraps a builtin yielding a comptime_int.
func (t *translator) comptimeInt(x lir.Expr, typ ctypes.Type) value {
	return value{x: x, typ: typ, untyped: true, lit: true}
}

func (t *translator) sizeofType(of ctypes.Type, typ ctypes.Type) value {
	if ctypes.IsVoid(of) || ctypes.IsFunction(of) {
		return t.comptimeInt(lir.Int("1"), typ)
	}
	return t.comptimeInt(lir.Builtin{Name: "sizeOf", Args: []lir.Expr{lir.TypeExpr{T: t.zigType(ctypes.Unqualified(of))}}}, typ)
}

func (t *translator) sizeofExpr(x cabs.SizeofExpr) (value, error) {
	inner := cabs.Unparen(x.Expr)
	if _, ok := inner.(cabs.StringLiteral); ok {
		return t.sizeofType(inner.Type(), x.Typ), nil
	}
	if ctypes.IsVoid(inner.Type()) || ctypes.IsFunction(inner.Type()) {
		return t.comptimeInt(lir.Int("1"), x.Typ), nil
	}
	v, err := t.expr(inner)
	if err != nil {
		return value{}, err
	}
	if v.ptr || v.bits != 0 {
		return t.sizeofType(inner.Type(), x.Typ), nil
	}
	of := lir.TypeOf{X: t.operand(v)}
	return t.comptimeInt(lir.Builtin{Name: "sizeOf", Args: []lir.Expr{lir.TypeExpr{T: of}}}, x.Typ), nil
}

func (t *translator) offsetOf(x cabs.OffsetOf) (value, error) {
	r := ctypes.RecordOf(x.Of)
	if r == nil {
		return value{}, malformed("offsetof on non-record type '%s'", x.Of)
	}
	path, _, ok := ctypes.FindField(r, x.Field)
	if ok && len(path) == 1 && !t.isOpaque(r) {
		if fs := t.shape(r).fields[path[0]]; fs.group == "" {
			args := []lir.Expr{lir.TypeExpr{T: t.zigType(ctypes.Unqualified(x.Of))}, lir.StringLit{Value: fs.name}}
			return t.comptimeInt(lir.Builtin{Name: "offsetOf", Args: args}, x.Typ), nil
		}
	}
	off, ok := t.model.Offsetof(r, x.Field)
	if !ok {
		return value{}, malformed("no member named '%s' in '%s'", x.Field, x.Of)
	}
	k := off
	v := t.comptimeInt(lir.Int(strconv.FormatInt(off, 10)), x.Typ)
	v.konst = &k
	return v, nil
}

func (t *translator) member(x cabs.Member) (value, error) {
	base, err := t.expr(x.Expr)
	if err != nil {
		return value{}, err
	}
	var obj lir.Expr
	var rt ctypes.Type
	if x.Arrow {
		p := t.decay(base)
		rt = ctypes.Pointee(p.typ)
		obj = lir.Deref{X: t.operand(p)}
	} else {
		rt = base.typ
		obj = t.operand(base)
	}
	r := ctypes.RecordOf(rt)
	if r == nil {
		return value{}, malformed("member access on non-record type '%s'", rt)
	}
	if t.containsOpaque(r) {
		return value{}, fail(diag.IncompleteType, "member access into opaque type '%s'", ctypes.Unqualified(rt))
	}
	path, _, ok := ctypes.FindField(r, x.Name)
	if !ok {
		return value{}, malformed("no member named '%s' in '%s'", x.Name, ctypes.Unqualified(rt))
	}
	return t.fieldAccess(obj, r, path, x.Typ), nil
}

// fieldAccess walks a field path through anonymous members.
func (t *translator) fieldAccess(obj lir.Expr, r *ctypes.Record, path []int, typ ctypes.Type) value {
	v := value{typ: typ}
	for i, idx := range path {
		fs := t.shape(r).fields[idx]
		if fs.group != "" {
			obj = lir.Member{X: obj, Name: fs.group}
		}
		obj = lir.Member{X: obj, Name: fs.name}
		if fs.flexible {
			obj = lir.Call{Fn: obj}
			v.ptr = true
		}
		if fs.bits != 0 {
			v.bits, v.untyped = fs.bits, true
		}
		if i < len(path)-1 {
			r = ctypes.RecordOf(r.Fields[idx].Type)
		}
	}
	v.x = obj
	return v
}

func (t *translator) index(x cabs.Index) (value, error) {
	arrE, idxE := x.Array, x.Index
	if !isPointerLike(arrE.Type()) && !ctypes.IsVector(arrE.Type()) {
		arrE, idxE = idxE, arrE
	}
	a, err := t.expr(arrE)
	if err != nil {
		return value{}, err
	}
	i, err := t.expr(idxE)
	if err != nil {
		return value{}, err
	}
	i = t.convert(i, t.model.Promote(i.typ))
	signed := !t.isUnsigned(i.typ)
	if ctypes.IsVector(a.typ) {
		return typedValue(lir.Index{X: t.operand(a), I: t.inner(i)}, x.Typ), nil
	}
	if arr, ok := ctypes.Canonical(a.typ).(ctypes.Tarray); ok && arr.Size >= 0 && !a.ptr {
		var ix lir.Expr
		switch {
		case i.lit && i.konst != nil && *i.konst >= 0:
			ix = i.x
		case !signed:
			ix = t.operand(i)
		default:
			ix = lir.As{T: lir.Named("usize"), X: lir.Conv{Op: lir.IntCast, X: t.operand(i)}}
		}
		return typedValue(lir.Index{X: t.operand(a), I: ix}, x.Typ), nil
	}
	p := t.decay(a)
	if r := ctypes.RecordOf(x.Typ); r != nil && t.containsOpaque(r) {
		return value{}, fail(diag.IncompleteType, "subscript of pointer to opaque type '%s'", ctypes.Unqualified(x.Typ))
	}
	if !signed {
		return typedValue(lir.Index{X: t.operand(p), I: t.operand(i)}, x.Typ), nil
	}
	sum := lir.Binary{Op: "+", L: t.pointerOperand(p), R: t.offset(i)}
	return typedValue(lir.Deref{X: lir.Paren{X: sum}}, x.Typ), nil
}

func (t *translator) call(x cabs.Call) (value, error) {
	if name, ok := cabs.Unparen(x.Func).(cabs.Variable); ok {
		if _, bound := t.lookup(name.Name); !bound && strings.HasPrefix(name.Name, "__builtin_") {
			return t.builtinCall(name.Name, x)
		}
	}
	f, err := t.expr(x.Func)
	if err != nil {
		return value{}, err
	}
	fn, ok := ctypes.FunctionOf(f.typ)
	if !ok {
		return value{}, malformed("called object of type '%s' is not a function", f.typ)
	}
	callee := f.x
	if !ctypes.IsFunction(f.typ) {
		callee = lir.Unwrap{X: t.operand(f)}
	}
	args, err := t.args(x.Args, fn)
	if err != nil {
		return value{}, err
	}
	return typedValue(lir.Call{Fn: callee, Args: args}, x.Typ), nil
}

// args lowers call arguments; the ones matching a prototype convert to
// the parameter type, the rest get the default argument promotions.
func (t *translator) args(exprs []cabs.Expr, fn ctypes.Tfunction) ([]lir.Expr, error) {
	var out []lir.Expr
	for i, a := range exprs {
		v, err := t.expr(a)
		if err != nil {
			return nil, err
		}
		if i < len(fn.Params) {
			out = append(out, t.result(v, fn.Params[i]))
			continue
		}
		if ctypes.IsArithmetic(v.typ) {
			out = append(out, t.operand(t.convert(v, t.model.PromoteArgument(v.typ))))
			continue
		}
		out = append(out, t.operand(t.decay(v)))
	}
	return out, nil
}

// stmtExprValue lowers a GNU statement expression to a labeled block
// breaking with its last expression.
func (t *translator) stmtExprValue(x cabs.StmtExpr) (value, error) {
	if x.Body == nil {
		return value{}, malformed("statement expression without body")
	}
	t.pushScope()
	defer t.popScope()
	label := t.fresh("blk")
	items := x.Body.Items
	var last cabs.Expr
	if n := len(items); n > 0 && !ctypes.IsVoid(x.Typ) {
		es, ok := items[n-1].(cabs.ExprStmt)
		if !ok {
			return value{}, unsupported("statement expression does not end in an expression")
		}
		items, last = items[:n-1], es.Expr
	}
	stmts, err := t.stmts(items)
	if err != nil {
		return value{}, err
	}
	if last == nil {
		stmts = append(stmts, lir.Break{Label: label})
		return typedValue(lir.BlockExpr{Label: label, Stmts: stmts}, x.Typ), nil
	}
	v, err := t.expr(last)
	if err != nil {
		return value{}, err
	}
	stmts = append(stmts, lir.Break{Label: label, Value: t.operand(t.decay(v))})
	return typedValue(lir.BlockExpr{Label: label, Stmts: stmts}, ctypes.Decay(x.Typ)), nil
}
