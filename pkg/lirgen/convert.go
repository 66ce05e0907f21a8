package lirgen

import (
	"github.com/raymyers/ralph-translate-c/pkg/ctypes"
	"github.com/raymyers/ralph-translate-c/pkg/lir"
)

// value is a lowered C expression together with what the rest of the
// lowering needs to know about it
type value struct {
	x   lir.Expr
	typ ctypes.Type // C type

	// untyped: x has no Zig type of its own and takes the one of its
	// result location, like a literal or @intCast(...)
	untyped bool
	// lit: x is a bare number literal
	lit bool
	// cmp: x is a Zig bool standing for a C int 0 or 1
	cmp bool
	// paren: the C expression was parenthesized
	paren bool
	// nonNull: x is the address of a function or object
	nonNull bool
	// ptr: the C type is an array but x already is a pointer to its first
	// element
	ptr bool
	// konst holds the value of an integer constant expression
	konst *int64
	// bits is the width of a bit-field lvalue
	bits int
}

func typedValue(x lir.Expr, typ ctypes.Type) value {
	return value{x: x, typ: typ}
}

// typed returns x as an expression with the Zig type of the value.
func (t *translator) typed(v value) lir.Expr {
	switch {
	case v.cmp:
		return lir.As{T: intType(ctypes.Int), X: lir.Conv{Op: lir.IntFromBool, X: v.x}}
	case v.untyped:
		return lir.As{T: t.zigType(v.typ), X: v.x}
	}
	return v.x
}

// operand returns x as the operand of an operator.
func (t *translator) operand(v value) lir.Expr {
	x := t.typed(v)
	if v.paren && !v.untyped && !v.cmp {
		if _, ok := x.(lir.Binary); ok {
			return lir.Paren{X: x}
		}
	}
	return x
}

// inner returns x as the argument of a builtin that accepts comptime
// numbers.
func (t *translator) inner(v value) lir.Expr {
	if v.lit {
		return v.x
	}
	return t.operand(v)
}

// result converts v to typ for a location whose type is known.
func (t *translator) result(v value, typ ctypes.Type) lir.Expr {
	return t.convert(v, typ).x
}

func retype(v value, typ ctypes.Type) value {
	v.typ = typ
	return v
}

func untyped(x lir.Expr, typ ctypes.Type) value {
	return value{x: x, typ: typ, untyped: true}
}

// convert makes every implicit C conversion of v to typ explicit. The
// returned value is valid in a result location of type typ.
func (t *translator) convert(v value, typ ctypes.Type) value {
	if typ == nil {
		return v
	}
	if v.cmp {
		v = value{x: v.x, typ: ctypes.BoolType()}
	}
	switch dst := ctypes.Canonical(typ).(type) {
	case ctypes.Tint:
		if dst.Kind == ctypes.Bool {
			return t.toBool(v, typ)
		}
		return t.toInt(v, typ)
	case ctypes.Tenum:
		return t.toInt(v, typ)
	case ctypes.Tfloat:
		return t.toFloat(v, typ)
	case ctypes.Tpointer:
		return t.toPointer(v, typ)
	}
	return retype(v, typ)
}

// decay converts array and function designators to pointers.
func (t *translator) decay(v value) value {
	switch c := ctypes.Canonical(v.typ).(type) {
	case ctypes.Tarray:
		pt := ctypes.Pointer(c.Elem)
		if v.ptr {
			return value{x: v.x, typ: pt, untyped: v.untyped}
		}
		if _, ok := v.x.(lir.StringLit); ok {
			return value{x: v.x, typ: ctypes.Pointer(ctypes.WithQuals(c.Elem, ctypes.QualsOf(c.Elem)|ctypes.Const))}
		}
		addr := lir.Unary{Op: "&", X: t.operand(v)}
		x := lir.As{T: t.zigType(pt), X: lir.Conv{Op: lir.PtrCast, X: lir.Conv{Op: lir.AlignCast, X: addr}}}
		return value{x: x, typ: pt, nonNull: true}
	case ctypes.Tfunction:
		if u, ok := v.x.(lir.Unwrap); ok {
			return value{x: u.X, typ: ctypes.Pointer(v.typ)}
		}
		return value{x: lir.Unary{Op: "&", X: v.x}, typ: ctypes.Pointer(v.typ), nonNull: true}
	}
	return v
}

func (t *translator) toBool(v value, typ ctypes.Type) value {
	switch ctypes.Canonical(v.typ).(type) {
	case ctypes.Tint:
		if ctypes.IsBool(v.typ) {
			return retype(v, typ)
		}
	case ctypes.Tenum, ctypes.Tfloat:
	case ctypes.Tpointer, ctypes.Tarray, ctypes.Tfunction:
		p := t.decay(v)
		if p.nonNull {
			x := lir.Binary{Op: "!=", L: lir.Conv{Op: lir.IntFromPtr, X: p.x}, R: lir.Int("0")}
			return typedValue(x, typ)
		}
		return typedValue(lir.Truthy{X: t.operand(p), Null: true}, typ)
	default:
		return retype(v, typ)
	}
	return typedValue(lir.Truthy{X: t.operand(v)}, typ)
}

func (t *translator) toInt(v value, typ ctypes.Type) value {
	tk, _ := t.model.IntKindOf(typ)
	switch ctypes.Canonical(v.typ).(type) {
	case ctypes.Tfloat:
		return untyped(lir.Conv{Op: lir.IntFromFloat, X: t.operand(v)}, typ)
	case ctypes.Tpointer, ctypes.Tarray, ctypes.Tfunction:
		p := t.decay(v)
		return untyped(lir.Conv{Op: lir.IntCast, X: lir.Conv{Op: lir.IntFromPtr, X: t.operand(p)}}, typ)
	case ctypes.Tint, ctypes.Tenum:
	default:
		return retype(v, typ)
	}
	fk, _ := t.model.IntKindOf(v.typ)
	if fk == ctypes.Bool {
		return untyped(lir.Conv{Op: lir.IntFromBool, X: v.x}, typ)
	}
	if v.konst != nil && t.model.FitsInt(*v.konst, tk) {
		out := retype(v, typ)
		if intNames[fk] != intNames[tk] {
			out.untyped = true
		}
		return out
	}
	fb, tb := t.model.IntBits(fk), t.model.IntBits(tk)
	fs, ts := t.zigSigned(fk), t.zigSigned(tk)
	switch {
	case fb == tb && fs == ts:
		out := retype(v, typ)
		if intNames[fk] != intNames[tk] {
			out.x, out.untyped = t.typed(v), true
		}
		return out
	case fb == tb:
		return untyped(lir.Conv{Op: lir.BitCast, X: t.operand(v)}, typ)
	case fb < tb:
		if fs && !ts {
			wide := lir.As{T: intType(intOfWidth(tk, true)), X: t.operand(v)}
			return untyped(lir.Conv{Op: lir.BitCast, X: wide}, typ)
		}
		x := v.x
		if v.untyped && !v.lit {
			x = t.typed(v)
		}
		return value{x: x, typ: typ, untyped: true, lit: v.lit, konst: v.konst}
	}
	narrow := lir.Conv{Op: lir.Truncate, X: t.operand(v)}
	if fs == ts {
		return untyped(narrow, typ)
	}
	return untyped(lir.Conv{Op: lir.BitCast, X: lir.As{T: intType(intOfWidth(tk, fs)), X: narrow}}, typ)
}

// zigSigned reports the signedness of the Zig type of k; plain char is
// always u8.
func (t *translator) zigSigned(k ctypes.IntKind) bool {
	return k != ctypes.Char && t.model.IsSigned(k)
}

// sameRepr reports whether two C types lower to the same Zig type.
func (t *translator) sameRepr(a, b ctypes.Type) bool {
	ka, aInt := t.model.IntKindOf(a)
	kb, bInt := t.model.IntKindOf(b)
	if aInt || bInt {
		return aInt && bInt && intNames[ka] == intNames[kb]
	}
	fa, aFloat := ctypes.Canonical(a).(ctypes.Tfloat)
	fb, bFloat := ctypes.Canonical(b).(ctypes.Tfloat)
	if aFloat || bFloat {
		return aFloat && bFloat && fa.Kind == fb.Kind
	}
	return ctypes.Compatible(a, b)
}

func (t *translator) toFloat(v value, typ ctypes.Type) value {
	switch from := ctypes.Canonical(v.typ).(type) {
	case ctypes.Tint:
		if from.Kind == ctypes.Bool {
			return untyped(lir.Conv{Op: lir.FloatFromInt, X: lir.Conv{Op: lir.IntFromBool, X: v.x}}, typ)
		}
		return untyped(lir.Conv{Op: lir.FloatFromInt, X: t.operand(v)}, typ)
	case ctypes.Tenum:
		return untyped(lir.Conv{Op: lir.FloatFromInt, X: t.operand(v)}, typ)
	case ctypes.Tfloat:
		to := ctypes.Canonical(typ).(ctypes.Tfloat)
		if from.Kind == to.Kind || v.lit {
			return retype(v, typ)
		}
		return untyped(lir.Conv{Op: lir.FloatCast, X: t.operand(v)}, typ)
	}
	return retype(v, typ)
}

func (t *translator) toPointer(v value, typ ctypes.Type) value {
	switch from := ctypes.Canonical(v.typ).(type) {
	case ctypes.Tint, ctypes.Tenum:
		if v.konst != nil && *v.konst == 0 {
			return typedValue(lir.Id("null"), typ)
		}
		k, _ := t.model.IntKindOf(v.typ)
		if k == ctypes.Bool {
			return untyped(lir.Conv{Op: lir.PtrFromInt, X: lir.Conv{Op: lir.IntFromBool, X: v.x}}, typ)
		}
		if _, enum := from.(ctypes.Tenum); !enum && !t.model.IsSigned(k) && t.model.IntBits(k) == t.model.Target.PointerBits {
			return untyped(lir.Conv{Op: lir.PtrFromInt, X: t.operand(v)}, typ)
		}
		usize := lir.As{T: lir.Named("usize"), X: lir.Conv{Op: lir.IntCast, X: t.operand(v)}}
		return untyped(lir.Conv{Op: lir.PtrFromInt, X: usize}, typ)
	case ctypes.Tarray, ctypes.Tfunction:
		return t.pointerCast(t.decay(v), typ)
	case ctypes.Tpointer:
		return t.pointerCast(v, typ)
	}
	return retype(v, typ)
}

// pointerCast converts between pointer types. Adding qualifiers and
// converting to void * are implicit; everything else, dropping a
// qualifier included, goes through @ptrCast.
func (t *translator) pointerCast(v value, typ ctypes.Type) value {
	fe, te := ctypes.Pointee(v.typ), ctypes.Pointee(typ)
	if fe == nil || te == nil {
		return retype(v, typ)
	}
	dropped := ctypes.QualsOf(fe) &^ ctypes.QualsOf(te) & (ctypes.Const | ctypes.Volatile)
	fromFn := ctypes.IsFunction(fe)
	same := ctypes.Compatible(ctypes.Unqualified(fe), ctypes.Unqualified(te))
	toVoid := ctypes.IsVoid(te) && !fromFn
	if (same || toVoid) && dropped == 0 {
		out := retype(v, typ)
		out.nonNull = v.nonNull
		return out
	}
	x := t.operand(v)
	if fromFn && !ctypes.IsFunction(te) {
		x = lir.Conv{Op: lir.ConstCast, X: x}
	}
	x = dropQuals(x, dropped)
	return untyped(lir.Conv{Op: lir.PtrCast, X: lir.Conv{Op: lir.AlignCast, X: x}}, typ)
}

func dropQuals(x lir.Expr, q ctypes.Quals) lir.Expr {
	if q&ctypes.Const != 0 {
		x = lir.Conv{Op: lir.ConstCast, X: x}
	}
	if q&ctypes.Volatile != 0 {
		x = lir.Conv{Op: lir.VolatileCast, X: x}
	}
	return x
}

// cond lowers v for an if, while or logical operand.
func (t *translator) cond(v value) lir.Expr {
	switch {
	case v.cmp:
		return v.x
	case v.lit && v.konst != nil:
		if *v.konst != 0 {
			return lir.Id("true")
		}
		return lir.Id("false")
	}
	return t.convert(v, ctypes.BoolType()).x
}

// bareCond is cond, parenthesized when it is a comparison.
func (t *translator) bareCond(v value) lir.Expr {
	c := t.cond(v)
	switch c.(type) {
	case lir.Binary, lir.Truthy:
		return lir.Paren{X: c}
	}
	return c
}
