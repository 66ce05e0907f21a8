package ctyper

import (
	"errors"
	"fmt"
	"strings"

	"github.com/raymyers/ralph-translate-c/pkg/cabs"
	"github.com/raymyers/ralph-translate-c/pkg/ctypes"
)

// ErrUndeclared is wrapped by errors about unknown identifiers.
var ErrUndeclared = errors.New("use of undeclared identifier")

// Expr returns a copy of e in which every node carries its C type.
func (t *Typer) Expr(e cabs.Expr) (cabs.Expr, error) {
	switch x := e.(type) {
	case cabs.Constant:
		if x.Typ == nil {
			typ, ok := t.Model.LiteralType(x.Value, x.Radix, x.Suffix)
			if !ok {
				return nil, fmt.Errorf("integer literal %s%s is too large", x.Text, x.Suffix)
			}
			x.Typ = typ
		}
		return x, nil
	case cabs.FloatConst:
		if x.Typ == nil {
			x.Typ = floatLiteralType(x.Suffix)
		}
		return x, nil
	case cabs.CharLiteral:
		if x.Typ == nil {
			x.Typ = t.charType(x.Prefix)
			if x.Prefix == "" {
				x.Typ = ctypes.IntType()
			}
		}
		return x, nil
	case cabs.StringLiteral:
		if x.Typ == nil {
			x.Typ = ctypes.Tarray{Elem: t.stringElem(x.Prefix), Size: int64(StringUnits(x.Value, x.Prefix)) + 1}
		}
		return x, nil
	case cabs.Variable:
		return t.variable(x)
	case cabs.Paren:
		inner, err := t.Expr(x.Expr)
		if err != nil {
			return nil, err
		}
		x.Expr = inner
		return x, nil
	case cabs.Unary:
		return t.unary(x)
	case cabs.Binary:
		return t.binary(x)
	case cabs.Conditional:
		return t.conditional(x)
	case cabs.Call:
		return t.call(x)
	case cabs.Index:
		return t.index(x)
	case cabs.Member:
		return t.member(x)
	case cabs.Cast:
		inner, err := t.Expr(x.Expr)
		if err != nil {
			return nil, err
		}
		x.Expr = inner
		return x, nil
	case cabs.SizeofExpr:
		inner, err := t.Expr(x.Expr)
		if err != nil {
			return nil, err
		}
		x.Expr = inner
		x.Typ = t.SizeT()
		return x, nil
	case cabs.SizeofType:
		x.Typ = t.SizeT()
		return x, nil
	case cabs.AlignofType:
		x.Typ = t.SizeT()
		return x, nil
	case cabs.OffsetOf:
		r := ctypes.RecordOf(x.Of)
		if r == nil {
			return nil, fmt.Errorf("offsetof requires a struct or union type, got %s", x.Of)
		}
		if _, _, ok := ctypes.FindField(r, x.Field); !ok {
			return nil, fmt.Errorf("no member named %q in %s", x.Field, x.Of)
		}
		x.Typ = t.SizeT()
		return x, nil
	case cabs.Generic:
		return t.generic(x)
	case *cabs.InitList:
		if x.Typ == nil {
			return nil, errors.New("initializer list without a type")
		}
		return t.Init(x, x.Typ)
	case cabs.CompoundLiteral:
		init, err := t.Init(x.Init, x.Typ)
		if err != nil {
			return nil, err
		}
		x.Init = init
		x.Typ = init.Typ
		return x, nil
	case cabs.StmtExpr:
		x.Typ = ctypes.Void()
		if x.Body != nil && len(x.Body.Items) > 0 {
			if last, ok := x.Body.Items[len(x.Body.Items)-1].(cabs.ExprStmt); ok && last.Expr.Type() != nil {
				x.Typ = last.Expr.Type()
			}
		}
		return x, nil
	case cabs.Predefined:
		if t.fn == nil {
			return nil, fmt.Errorf("%s used outside a function", x.Name)
		}
		text := t.fn.name
		if x.Name == "__PRETTY_FUNCTION__" {
			text = PrettyFunction(t.fn.name, t.fn.typ)
		}
		x.Typ = ctypes.Tarray{Elem: ctypes.Tint{Kind: ctypes.Char, Q: ctypes.Const}, Size: int64(len(text)) + 1}
		return x, nil
	case cabs.ConvertVector:
		inner, err := t.Expr(x.Expr)
		if err != nil {
			return nil, err
		}
		if !ctypes.IsVector(inner.Type()) || !ctypes.IsVector(x.Typ) {
			return nil, errors.New("__builtin_convertvector requires vector operands")
		}
		x.Expr = inner
		return x, nil
	case cabs.ShuffleVector:
		a, err := t.Expr(x.A)
		if err != nil {
			return nil, err
		}
		b, err := t.Expr(x.B)
		if err != nil {
			return nil, err
		}
		va, ok := ctypes.Canonical(a.Type()).(ctypes.Tvector)
		if !ok {
			return nil, errors.New("__builtin_shufflevector requires vector operands")
		}
		x.A, x.B = a, b
		x.Typ = ctypes.Tvector{Elem: va.Elem, Len: int64(len(x.Indices))}
		return x, nil
	}
	return nil, fmt.Errorf("cannot type expression %T", e)
}

func floatLiteralType(suffix string) ctypes.Type {
	switch strings.ToLower(suffix) {
	case "f":
		return ctypes.FloatType()
	case "l":
		return ctypes.Tfloat{Kind: ctypes.LongDouble}
	case "f16":
		return ctypes.Tfloat{Kind: ctypes.Float16}
	case "q", "f128":
		return ctypes.Tfloat{Kind: ctypes.Float128}
	}
	return ctypes.DoubleType()
}

func (t *Typer) charType(prefix string) ctypes.Type {
	switch prefix {
	case "L":
		return t.builtinType("wchar_t")
	case "u":
		return t.builtinType("char16_t")
	case "U":
		return t.builtinType("char32_t")
	case "u8":
		return ctypes.UCharType()
	}
	return ctypes.CharType()
}

func (t *Typer) stringElem(prefix string) ctypes.Type {
	if prefix == "" || prefix == "u8" {
		return ctypes.CharType()
	}
	return t.charType(prefix)
}

// StringUnits returns the number of code units of a decoded string literal
// with the given prefix.
func StringUnits(s, prefix string) int {
	switch prefix {
	case "", "u8":
		return len(s)
	case "u":
		n := 0
		for _, r := range s {
			n++
			if r > 0xFFFF {
				n++
			}
		}
		return n
	}
	return len([]rune(s))
}

func (t *Typer) variable(x cabs.Variable) (cabs.Expr, error) {
	if x.Typ != nil {
		return x, nil
	}
	sym, ok := t.Lookup(x.Name)
	if !ok {
		if fn, ok := Builtin(t, x.Name); ok {
			x.Typ = fn
			return x, nil
		}
		if strings.HasPrefix(x.Name, "__builtin_") {
			// unknown builtins are implicitly int(); lowering rejects them
			x.Typ = ctypes.Tfunction{Return: ctypes.IntType(), NoProto: true}
			return x, nil
		}
		if fn, ok := t.linked[x.Name]; ok && !t.AtFileScope() {
			t.Declare(fn)
			t.implied = append(t.implied, fn)
			x.Typ = fn.Type
			return x, nil
		}
		return nil, fmt.Errorf("%w '%s'", ErrUndeclared, x.Name)
	}
	if sym.Kind == SymTypedef {
		return nil, fmt.Errorf("unexpected type name '%s'", x.Name)
	}
	x.Typ = sym.Type
	return x, nil
}

// IsNullConstant reports whether e is an integer constant expression with
// value zero, optionally cast to void *.
func (t *Typer) IsNullConstant(e cabs.Expr) bool {
	e = cabs.Unparen(e)
	if c, ok := e.(cabs.Cast); ok && ctypes.IsPointer(c.Typ) && ctypes.IsVoid(ctypes.Pointee(c.Typ)) {
		e = c.Expr
	}
	if !ctypes.IsInteger(e.Type()) {
		return false
	}
	v, ok := t.ConstInt(e)
	return ok && v == 0
}

func (t *Typer) unary(x cabs.Unary) (cabs.Expr, error) {
	inner, err := t.Expr(x.Expr)
	if err != nil {
		return nil, err
	}
	x.Expr = inner
	it := inner.Type()
	switch x.Op {
	case cabs.OpNeg, cabs.OpPlus, cabs.OpBitNot:
		if !ctypes.IsArithmetic(it) && !ctypes.IsVector(it) {
			return nil, fmt.Errorf("invalid argument type '%s' to unary expression", it)
		}
		x.Typ = t.Model.Promote(it)
	case cabs.OpNot:
		if !ctypes.IsScalar(ctypes.Decay(it)) {
			return nil, fmt.Errorf("invalid argument type '%s' to unary expression", it)
		}
		x.Typ = ctypes.IntType()
	case cabs.OpAddrOf:
		x.Typ = ctypes.Pointer(it)
	case cabs.OpDeref:
		pt := ctypes.Decay(it)
		if !ctypes.IsPointer(pt) {
			return nil, fmt.Errorf("indirection requires pointer operand ('%s' invalid)", it)
		}
		x.Typ = ctypes.Pointee(pt)
	default:
		x.Typ = ctypes.Unqualified(it)
	}
	return x, nil
}

func (t *Typer) binary(x cabs.Binary) (cabs.Expr, error) {
	left, err := t.Expr(x.Left)
	if err != nil {
		return nil, err
	}
	right, err := t.Expr(x.Right)
	if err != nil {
		return nil, err
	}
	x.Left, x.Right = left, right
	lt, rt := ctypes.Decay(left.Type()), ctypes.Decay(right.Type())
	switch {
	case x.Op.IsAssign():
		x.Typ = ctypes.Unqualified(left.Type())
	case x.Op == cabs.OpComma:
		x.Typ = rt
	case x.Op.IsComparison(), x.Op == cabs.OpAnd, x.Op == cabs.OpOr:
		x.Typ = ctypes.IntType()
	case x.Op == cabs.OpShl, x.Op == cabs.OpShr:
		if !ctypes.IsInteger(lt) && !ctypes.IsVector(lt) || !ctypes.IsInteger(rt) && !ctypes.IsVector(rt) {
			return nil, fmt.Errorf("invalid operands to binary expression ('%s' and '%s')", lt, rt)
		}
		x.Typ = t.Model.Promote(lt)
	case x.Op == cabs.OpAdd && ctypes.IsPointer(lt) && ctypes.IsInteger(rt):
		x.Typ = ctypes.Unqualified(lt)
	case x.Op == cabs.OpAdd && ctypes.IsInteger(lt) && ctypes.IsPointer(rt):
		x.Typ = ctypes.Unqualified(rt)
	case x.Op == cabs.OpSub && ctypes.IsPointer(lt) && ctypes.IsInteger(rt):
		x.Typ = ctypes.Unqualified(lt)
	case x.Op == cabs.OpSub && ctypes.IsPointer(lt) && ctypes.IsPointer(rt):
		x.Typ = t.PtrdiffT()
	default:
		arith := func(ty ctypes.Type) bool { return ctypes.IsArithmetic(ty) || ctypes.IsVector(ty) }
		if !arith(lt) || !arith(rt) {
			return nil, fmt.Errorf("invalid operands to binary expression ('%s' and '%s')", lt, rt)
		}
		x.Typ = t.Model.UsualArithmetic(lt, rt)
	}
	return x, nil
}

func (t *Typer) conditional(x cabs.Conditional) (cabs.Expr, error) {
	cond, err := t.Expr(x.Cond)
	if err != nil {
		return nil, err
	}
	x.Cond = cond
	var then cabs.Expr = cond
	if x.Then != nil {
		if then, err = t.Expr(x.Then); err != nil {
			return nil, err
		}
		x.Then = then
	}
	els, err := t.Expr(x.Else)
	if err != nil {
		return nil, err
	}
	x.Else = els
	x.Typ = t.CommonType(then, els)
	return x, nil
}

// CommonType returns the type of a conditional expression whose arms are a
// and b.
func (t *Typer) CommonType(a, b cabs.Expr) ctypes.Type {
	at, bt := ctypes.Decay(a.Type()), ctypes.Decay(b.Type())
	switch {
	case ctypes.IsArithmetic(at) && ctypes.IsArithmetic(bt):
		return t.Model.UsualArithmetic(at, bt)
	case ctypes.IsPointer(at) && t.IsNullConstant(b):
		return ctypes.Unqualified(at)
	case ctypes.IsPointer(bt) && t.IsNullConstant(a):
		return ctypes.Unqualified(bt)
	case ctypes.IsPointer(at) && ctypes.IsPointer(bt):
		pa, pb := ctypes.Pointee(at), ctypes.Pointee(bt)
		q := ctypes.QualsOf(pa) | ctypes.QualsOf(pb)
		if ctypes.IsVoid(pa) || ctypes.IsVoid(pb) {
			return ctypes.Pointer(ctypes.Tvoid{Q: q})
		}
		return ctypes.Pointer(ctypes.WithQuals(pa, q))
	}
	return ctypes.Unqualified(at)
}

func (t *Typer) call(x cabs.Call) (cabs.Expr, error) {
	fn, err := t.Expr(x.Func)
	if err != nil {
		return nil, err
	}
	x.Func = fn
	ft, ok := ctypes.FunctionOf(fn.Type())
	if !ok {
		return nil, fmt.Errorf("called object type '%s' is not a function or function pointer", fn.Type())
	}
	if !ft.VarArg && !ft.NoProto && len(x.Args) != len(ft.Params) {
		return nil, fmt.Errorf("too %s arguments to function call, expected %d, have %d",
			map[bool]string{true: "many", false: "few"}[len(x.Args) > len(ft.Params)], len(ft.Params), len(x.Args))
	}
	args := make([]cabs.Expr, len(x.Args))
	for i, a := range x.Args {
		if args[i], err = t.Expr(a); err != nil {
			return nil, err
		}
	}
	x.Args = args
	x.Typ = ft.Return
	return x, nil
}

func (t *Typer) index(x cabs.Index) (cabs.Expr, error) {
	arr, err := t.Expr(x.Array)
	if err != nil {
		return nil, err
	}
	idx, err := t.Expr(x.Index)
	if err != nil {
		return nil, err
	}
	x.Array, x.Index = arr, idx
	at, it := ctypes.Decay(arr.Type()), ctypes.Decay(idx.Type())
	switch {
	case ctypes.IsVector(at):
		x.Typ = ctypes.Pointee(at)
	case ctypes.IsPointer(at) && ctypes.IsInteger(it):
		x.Typ = ctypes.Pointee(at)
	case ctypes.IsPointer(it) && ctypes.IsInteger(at):
		x.Typ = ctypes.Pointee(it)
	default:
		return nil, errors.New("subscripted value is not an array, pointer, or vector")
	}
	return x, nil
}

func (t *Typer) member(x cabs.Member) (cabs.Expr, error) {
	base, err := t.Expr(x.Expr)
	if err != nil {
		return nil, err
	}
	x.Expr = base
	bt := base.Type()
	if x.Arrow {
		pt := ctypes.Decay(bt)
		if !ctypes.IsPointer(pt) {
			return nil, fmt.Errorf("member reference type '%s' is not a pointer", bt)
		}
		bt = ctypes.Pointee(pt)
	}
	r := ctypes.RecordOf(bt)
	if r == nil {
		return nil, fmt.Errorf("member reference base type '%s' is not a structure or union", bt)
	}
	if !r.Complete {
		return nil, fmt.Errorf("incomplete definition of type '%s'", bt)
	}
	_, f, ok := ctypes.FindField(r, x.Name)
	if !ok {
		return nil, fmt.Errorf("no member named '%s' in '%s'", x.Name, bt)
	}
	q := ctypes.QualsOf(ctypes.Canonical(bt))
	x.Typ = f.Type
	if q != 0 {
		x.Typ = ctypes.WithQuals(f.Type, ctypes.QualsOf(f.Type)|q)
	}
	return x, nil
}

func (t *Typer) generic(x cabs.Generic) (cabs.Expr, error) {
	ctrl, err := t.Expr(x.Control)
	if err != nil {
		return nil, err
	}
	x.Control = ctrl
	for i, a := range x.Assocs {
		if x.Assocs[i].Expr, err = t.Expr(a.Expr); err != nil {
			return nil, err
		}
	}
	chosen, ok := SelectGeneric(x)
	if !ok {
		return nil, fmt.Errorf("controlling expression type '%s' not compatible with any generic association type", ctrl.Type())
	}
	x.Typ = chosen.Type()
	return x, nil
}

// SelectGeneric returns the association of a _Generic selection whose type
// is compatible with the lvalue-converted type of the controlling
// expression, or the default association.
func SelectGeneric(g cabs.Generic) (cabs.Expr, bool) {
	ctrl := ctypes.Unqualified(ctypes.Decay(g.Control.Type()))
	var def cabs.Expr
	for _, a := range g.Assocs {
		if a.Of == nil {
			def = a.Expr
			continue
		}
		if ctypes.Compatible(a.Of, ctrl) {
			return a.Expr, true
		}
	}
	return def, def != nil
}
