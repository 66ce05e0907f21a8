package lirgen

import (
	"strconv"

	"github.com/raymyers/ralph-translate-c/pkg/cabs"
	"github.com/raymyers/ralph-translate-c/pkg/ctypes"
	"github.com/raymyers/ralph-translate-c/pkg/lir"
)

func vectorOf(typ ctypes.Type) (ctypes.Tvector, bool) {
	v, ok := ctypes.Canonical(typ).(ctypes.Tvector)
	return v, ok
}

// convertVector converts a vector element by element:
//
//	blk: {
//	    const tmp = src;
//	    break :blk @Vector(N, T){ conv(tmp[0]), ... };
//	}
func (t *translator) convertVector(x cabs.ConvertVector) (value, error) {
	src, err := t.expr(x.Expr)
	if err != nil {
		return value{}, err
	}
	from, ok1 := vectorOf(src.typ)
	to, ok2 := vectorOf(x.Typ)
	if !ok1 || !ok2 {
		return value{}, malformed("__builtin_convertvector requires vector operands")
	}
	if from.Len != to.Len {
		return value{}, malformed("__builtin_convertvector between vectors of %d and %d elements", from.Len, to.Len)
	}
	t.pushScope()
	defer t.popScope()
	label := t.fresh("blk")
	tmp := t.fresh("tmp")
	init := lir.ArrayInit{T: t.zigType(x.Typ), Inline: true}
	for i := int64(0); i < to.Len; i++ {
		elem := typedValue(lir.Index{X: lir.Id(tmp), I: lir.Int(strconv.FormatInt(i, 10))}, from.Elem)
		init.Elems = append(init.Elems, t.result(elem, to.Elem))
	}
	stmts := []lir.Stmt{
		lir.VarDecl{Const: true, Name: tmp, Value: t.operand(src)},
		lir.Break{Label: label, Value: init},
	}
	return typedValue(lir.BlockExpr{Label: label, Stmts: stmts}, x.Typ), nil
}

// shuffleVector lowers to @shuffle. Indices past the first operand select
// from the second one, which @shuffle spells as ~i; -1 leaves the element
// undefined.
func (t *translator) shuffleVector(x cabs.ShuffleVector) (value, error) {
	a, err := t.expr(x.A)
	if err != nil {
		return value{}, err
	}
	b, err := t.expr(x.B)
	if err != nil {
		return value{}, err
	}
	av, ok := vectorOf(a.typ)
	if !ok {
		return value{}, malformed("__builtin_shufflevector requires vector operands")
	}
	bv, ok := vectorOf(b.typ)
	if !ok {
		return value{}, malformed("__builtin_shufflevector requires vector operands")
	}
	mask := lir.ArrayInit{T: lir.Vector{Len: int64(len(x.Indices)), Elem: lir.Named("i32")}, Inline: true}
	for _, i := range x.Indices {
		switch {
		case i < 0:
			mask.Elems = append(mask.Elems, lir.Id("undefined"))
		case i < av.Len:
			mask.Elems = append(mask.Elems, lir.Int(strconv.FormatInt(i, 10)))
		case i < av.Len+bv.Len:
			mask.Elems = append(mask.Elems, lir.Int(strconv.FormatInt(-(i-av.Len)-1, 10)))
		default:
			return value{}, malformed("shuffle index %d out of range", i)
		}
	}
	args := []lir.Expr{lir.TypeExpr{T: t.zigType(av.Elem)}, t.operand(a), t.operand(b), mask}
	return typedValue(lir.Builtin{Name: "shuffle", Args: args}, x.Typ), nil
}

func (t *translator) vectorUnary(x cabs.Unary, v value) (value, error) {
	switch x.Op {
	case cabs.OpPlus:
		return retype(v, x.Typ), nil
	case cabs.OpNeg:
		op := "-"
		if vt, ok := vectorOf(x.Typ); ok && t.isUnsigned(vt.Elem) {
			op = "-%"
		}
		return typedValue(lir.Unary{Op: op, X: t.operand(v)}, x.Typ), nil
	case cabs.OpBitNot:
		return typedValue(lir.Unary{Op: "~", X: t.operand(v)}, x.Typ), nil
	}
	return value{}, unsupported("unary operator '%s' on vector", x.Op)
}

// splat broadcasts a scalar operand to the vector type typ.
func (t *translator) splat(v value, typ ctypes.Type) value {
	if _, ok := vectorOf(v.typ); ok {
		return v
	}
	vt, _ := vectorOf(typ)
	elem := t.convert(v, vt.Elem)
	return typedValue(lir.As{T: t.zigType(typ), X: lir.Builtin{Name: "splat", Args: []lir.Expr{t.inner(elem)}}}, typ)
}

// vectorBinary applies an arithmetic or bitwise operator element-wise; a
// scalar operand is broadcast first.
func (t *translator) vectorBinary(x cabs.Binary, l, r value) (value, error) {
	vt, ok := vectorOf(x.Typ)
	if !ok || x.Op.IsComparison() {
		return value{}, unsupported("vector comparison")
	}
	l, r = t.splat(l, x.Typ), t.splat(r, x.Typ)
	lx, rx := t.operand(l), t.operand(r)
	wrap := t.isUnsigned(vt.Elem)
	signed := ctypes.IsInteger(vt.Elem) && !wrap
	switch x.Op {
	case cabs.OpAdd, cabs.OpSub, cabs.OpMul:
		s := x.Op.String()
		if wrap {
			s += "%"
		}
		return typedValue(lir.Binary{Op: s, L: lx, R: rx}, x.Typ), nil
	case cabs.OpDiv:
		if signed {
			return typedValue(lir.Builtin{Name: "divTrunc", Args: []lir.Expr{lx, rx}}, x.Typ), nil
		}
	case cabs.OpMod:
		if signed {
			return typedValue(lir.Builtin{Name: "rem", Args: []lir.Expr{lx, rx}}, x.Typ), nil
		}
	case cabs.OpShl, cabs.OpShr:
		op := "<<"
		if x.Op == cabs.OpShr {
			op = ">>"
		}
		return typedValue(lir.Binary{Op: op, L: lx, R: lir.Conv{Op: lir.IntCast, X: rx}}, x.Typ), nil
	}
	return typedValue(lir.Binary{Op: x.Op.String(), L: lx, R: rx}, x.Typ), nil
}

// vectorCast reinterprets the bits of a vector as another vector or an
// integer of the same size, or the reverse.
func (t *translator) vectorCast(v value, typ ctypes.Type) (value, error) {
	from, to := t.model.Sizeof(v.typ), t.model.Sizeof(typ)
	if from != to {
		return value{}, malformed("invalid conversion between vector type '%s' and '%s' of different size", v.typ, typ)
	}
	if _, ok := vectorOf(v.typ); !ok && !ctypes.IsInteger(v.typ) {
		return value{}, unsupported("cast of '%s' to vector", v.typ)
	}
	if _, ok := vectorOf(typ); !ok && !ctypes.IsInteger(typ) {
		return value{}, unsupported("cast of vector to '%s'", typ)
	}
	return typedValue(lir.As{T: t.zigType(typ), X: lir.Conv{Op: lir.BitCast, X: t.operand(v)}}, typ), nil
}
