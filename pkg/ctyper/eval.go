package ctyper

import (
	"github.com/raymyers/ralph-translate-c/pkg/cabs"
	"github.com/raymyers/ralph-translate-c/pkg/ctypes"
)

// ConstInt evaluates an integer constant expression. The result is the
// value converted to the expression's type, returned as a signed number
// (unsigned 64-bit values keep their bit pattern).
func (t *Typer) ConstInt(e cabs.Expr) (int64, bool) {
	v, ok := t.eval(e)
	if !ok {
		return 0, false
	}
	return int64(v), true
}

// Wrap truncates v to the width of integer type typ, sign-extending signed
// types.
func (t *Typer) Wrap(v uint64, typ ctypes.Type) uint64 {
	if ctypes.IsBool(typ) {
		if v != 0 {
			return 1
		}
		return 0
	}
	k, ok := t.Model.IntKindOf(typ)
	if !ok {
		return v
	}
	bits := t.Model.IntBits(k)
	if bits >= 64 {
		return v
	}
	v &= 1<<bits - 1
	if t.Model.IsSigned(k) && v&(1<<(bits-1)) != 0 {
		v |= ^uint64(0) << bits
	}
	return v
}

func (t *Typer) signed(typ ctypes.Type) bool {
	k, ok := t.Model.IntKindOf(typ)
	return ok && t.Model.IsSigned(k)
}

func (t *Typer) eval(e cabs.Expr) (uint64, bool) {
	switch x := e.(type) {
	case cabs.Constant:
		return t.Wrap(x.Value, x.Typ), true
	case cabs.CharLiteral:
		return t.Wrap(uint64(x.Value), x.Typ), true
	case cabs.Paren:
		return t.eval(x.Expr)
	case cabs.Variable:
		sym, ok := t.Lookup(x.Name)
		if !ok || sym.Kind != SymEnumConst {
			return 0, false
		}
		return uint64(sym.Value), true
	case cabs.Cast:
		if !ctypes.IsInteger(x.Typ) {
			return 0, false
		}
		if c, ok := cabs.Unparen(x.Expr).(cabs.FloatConst); ok {
			return t.Wrap(uint64(int64(c.Value)), x.Typ), true
		}
		v, ok := t.eval(x.Expr)
		if !ok {
			return 0, false
		}
		return t.Wrap(v, x.Typ), true
	case cabs.SizeofType:
		s := t.Model.Sizeof(x.Of)
		return uint64(s), s >= 0
	case cabs.SizeofExpr:
		s := t.Model.Sizeof(x.Expr.Type())
		return uint64(s), s >= 0
	case cabs.AlignofType:
		return uint64(t.Model.Alignof(x.Of)), true
	case cabs.OffsetOf:
		r := ctypes.RecordOf(x.Of)
		if r == nil {
			return 0, false
		}
		off, ok := t.Model.Offsetof(r, x.Field)
		return uint64(off), ok
	case cabs.Generic:
		chosen, ok := SelectGeneric(x)
		if !ok {
			return 0, false
		}
		return t.eval(chosen)
	case cabs.Conditional:
		c, ok := t.eval(x.Cond)
		if !ok {
			return 0, false
		}
		if c != 0 {
			if x.Then == nil {
				return t.Wrap(c, x.Typ), true
			}
			v, ok := t.eval(x.Then)
			return t.Wrap(v, x.Typ), ok
		}
		v, ok := t.eval(x.Else)
		return t.Wrap(v, x.Typ), ok
	case cabs.Unary:
		v, ok := t.eval(x.Expr)
		if !ok {
			return 0, false
		}
		switch x.Op {
		case cabs.OpNeg:
			return t.Wrap(-v, x.Typ), true
		case cabs.OpPlus:
			return t.Wrap(v, x.Typ), true
		case cabs.OpBitNot:
			return t.Wrap(^v, x.Typ), true
		case cabs.OpNot:
			return b2u(v == 0), true
		}
		return 0, false
	case cabs.Binary:
		return t.evalBinary(x)
	}
	return 0, false
}

func b2u(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

func (t *Typer) evalBinary(x cabs.Binary) (uint64, bool) {
	l, ok := t.eval(x.Left)
	if !ok {
		return 0, false
	}
	switch x.Op {
	case cabs.OpAnd:
		if l == 0 {
			return 0, true
		}
		r, ok := t.eval(x.Right)
		return b2u(r != 0), ok
	case cabs.OpOr:
		if l != 0 {
			return 1, true
		}
		r, ok := t.eval(x.Right)
		return b2u(r != 0), ok
	}
	r, ok := t.eval(x.Right)
	if !ok {
		return 0, false
	}
	if x.Op == cabs.OpShl || x.Op == cabs.OpShr {
		// shifts keep the promoted left type
		l = t.Wrap(l, x.Typ)
		if x.Op == cabs.OpShl {
			return t.Wrap(l<<r, x.Typ), true
		}
		if t.signed(x.Typ) {
			return t.Wrap(uint64(int64(l)>>r), x.Typ), true
		}
		return t.Wrap(l>>r, x.Typ), true
	}
	// operands are converted to the common type first
	common := x.Typ
	if x.Op.IsComparison() {
		common = t.Model.UsualArithmetic(x.Left.Type(), x.Right.Type())
	}
	l, r = t.Wrap(l, common), t.Wrap(r, common)
	signed := t.signed(common)
	switch x.Op {
	case cabs.OpAdd:
		return t.Wrap(l+r, x.Typ), true
	case cabs.OpSub:
		return t.Wrap(l-r, x.Typ), true
	case cabs.OpMul:
		return t.Wrap(l*r, x.Typ), true
	case cabs.OpDiv, cabs.OpMod:
		if r == 0 {
			return 0, false
		}
		var v uint64
		switch {
		case signed && x.Op == cabs.OpDiv:
			v = uint64(int64(l) / int64(r))
		case signed:
			v = uint64(int64(l) % int64(r))
		case x.Op == cabs.OpDiv:
			v = l / r
		default:
			v = l % r
		}
		return t.Wrap(v, x.Typ), true
	case cabs.OpBitAnd:
		return l & r, true
	case cabs.OpBitOr:
		return l | r, true
	case cabs.OpBitXor:
		return l ^ r, true
	case cabs.OpEq:
		return b2u(l == r), true
	case cabs.OpNe:
		return b2u(l != r), true
	case cabs.OpLt, cabs.OpLe, cabs.OpGt, cabs.OpGe:
		var less, equal bool
		if signed {
			less, equal = int64(l) < int64(r), l == r
		} else {
			less, equal = l < r, l == r
		}
		switch x.Op {
		case cabs.OpLt:
			return b2u(less), true
		case cabs.OpLe:
			return b2u(less || equal), true
		case cabs.OpGt:
			return b2u(!less && !equal), true
		}
		return b2u(!less), true
	case cabs.OpComma:
		return r, true
	}
	return 0, false
}
