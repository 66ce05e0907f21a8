package lirinterp

import (
	"fmt"
	"math"
	"math/big"

	"github.com/raymyers/ralph-translate-c/pkg/lir"
)

// conv evaluates a result-typed conversion. Without a result type the
// operand passes through unchanged; the enclosing coercion then applies.
func (m *Machine) conv(x lir.Conv, e *env, want *rtype) (Value, error) {
	var inner *rtype
	switch x.Op {
	case lir.PtrCast, lir.AlignCast:
		// only a nested cast shares the result type; any other operand
		// keeps its own type, so pointer arithmetic scales by its element
		op := x.X
		for {
			p, ok := op.(lir.Paren)
			if !ok {
				break
			}
			op = p.X
		}
		if _, ok := op.(lir.Conv); ok {
			inner = want
		}
	}
	v, err := m.eval(x.X, e, inner)
	if err != nil {
		return Value{}, err
	}
	if want == nil {
		if x.Op == lir.IntFromPtr {
			return Value{T: m.prims["usize"], N: m.address(v)}, nil
		}
		if x.Op == lir.IntFromBool {
			return Value{T: m.mustPrim("u1"), N: v.N & 1}, nil
		}
		return v, nil
	}
	if want.kind == kVector && v.T.kind == kVector && x.Op != lir.BitCast {
		el, err := want.elem()
		if err != nil {
			return Value{}, err
		}
		return m.vectorMap(v, func(s Value) (Value, error) { return m.convScalar(x.Op, s, el) })
	}
	return m.convScalar(x.Op, v, want)
}

// address returns the address a pointer or function value denotes.
func (m *Machine) address(v Value) uint64 {
	if v.T.kind == kFunc {
		return m.fnAddr(v.Fn)
	}
	return v.N
}

func (m *Machine) convScalar(op lir.ConvOp, v Value, want *rtype) (Value, error) {
	switch op {
	case lir.IntCast:
		if want.kind == kInt {
			n := bigOf(v)
			if v.T.kind == kFloat || v.T.kind == kComptimeFloat {
				n, _ = big.NewFloat(v.F).Int(nil)
			}
			if !fits(n, want) {
				return Value{}, &Panic{Msg: "integer cast truncated bits"}
			}
			return m.intValue(want, n), nil
		}
	case lir.Truncate:
		if want.kind == kInt {
			return m.intValue(want, bigOf(v)), nil
		}
		if want.kind == kBool {
			return Value{T: want, N: v.N & 1}, nil
		}
	case lir.BitCast:
		return m.bitCast(v, want)
	case lir.FloatFromInt:
		return m.floatValue(want, asFloat(v)), nil
	case lir.IntFromFloat:
		f := math.Trunc(asFloat(v))
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return Value{}, &Panic{Msg: "integer part of floating point value out of bounds"}
		}
		n, _ := big.NewFloat(f).Int(nil)
		if want.kind == kInt && !fits(n, want) {
			return Value{}, &Panic{Msg: "integer part of floating point value out of bounds"}
		}
		return m.intValue(want, n), nil
	case lir.FloatCast:
		return m.floatValue(want, asFloat(v)), nil
	case lir.IntFromBool:
		return m.coerce(Value{T: m.mustPrim("u1"), N: v.N & 1}, want)
	case lir.PtrFromInt:
		if want.kind != kPointer {
			break
		}
		addr := bigOf(v)
		if addr.Sign() < 0 || addr.BitLen() > int(m.ptrSize*8) {
			return Value{}, &Panic{Msg: "integer does not fit in pointer"}
		}
		if addr.Sign() == 0 && !want.optional && want.ptr != lir.PtrC {
			return Value{}, &Panic{Msg: "cast causes pointer to be null"}
		}
		return Value{T: want, N: addr.Uint64()}, nil
	case lir.IntFromPtr:
		return m.coerce(Value{T: m.prims["usize"], N: m.address(v)}, want)
	case lir.PtrCast, lir.ConstCast, lir.VolatileCast:
		if want.kind != kPointer {
			break
		}
		addr := m.address(v)
		if addr == 0 && !want.optional && want.ptr != lir.PtrC && v.T.kind != kFunc {
			return Value{}, &Panic{Msg: "cast causes pointer to be null"}
		}
		return Value{T: want, N: addr}, nil
	case lir.AlignCast:
		if want.kind != kPointer {
			break
		}
		addr := m.address(v)
		if el, err := want.elem(); err == nil && el.kind != kFunc && el.align > 1 && addr%uint64(el.align) != 0 {
			return Value{}, &Panic{Msg: "incorrect alignment"}
		}
		return Value{T: want, N: addr}, nil
	}
	return Value{}, fmt.Errorf("%s cannot convert '%s' to '%s'", op, v.T, want)
}

// bitCast reinterprets the bytes of v as want.
func (m *Machine) bitCast(v Value, want *rtype) (Value, error) {
	if v.T.isComptime() {
		return m.coerce(v, want)
	}
	b, err := m.encode(v)
	if err != nil {
		return Value{}, err
	}
	if int64(len(b)) < want.size {
		return Value{}, fmt.Errorf("@bitCast size mismatch: '%s' to '%s'", v.T, want)
	}
	return m.decode(want, b)
}

// typeArg evaluates an argument that must be a type.
func (m *Machine) typeArg(x lir.Expr, e *env) (*rtype, error) {
	v, err := m.eval(x, e, nil)
	if err != nil {
		return nil, err
	}
	if v.T.kind != kType {
		return nil, fmt.Errorf("expected type, found '%s'", v.T)
	}
	return v.Ty, nil
}

func (m *Machine) builtin(x lir.Builtin, e *env, want *rtype) (Value, error) {
	argc := func(n int) error {
		if len(x.Args) != n {
			return fmt.Errorf("@%s expects %d arguments, found %d", x.Name, n, len(x.Args))
		}
		return nil
	}
	switch x.Name {
	case "sizeOf", "alignOf":
		if err := argc(1); err != nil {
			return Value{}, err
		}
		t, err := m.typeArg(x.Args[0], e)
		if err != nil {
			return Value{}, err
		}
		if x.Name == "sizeOf" {
			return m.comptimeInt(t.size), nil
		}
		return m.comptimeInt(t.align), nil
	case "offsetOf":
		if err := argc(2); err != nil {
			return Value{}, err
		}
		t, err := m.typeArg(x.Args[0], e)
		if err != nil {
			return Value{}, err
		}
		name, ok := x.Args[1].(lir.StringLit)
		if !ok {
			return Value{}, fmt.Errorf("@offsetOf expects a field name")
		}
		f, ok := t.field(name.Value)
		if !ok {
			return Value{}, fmt.Errorf("no field named '%s' in '%s'", name.Value, t)
		}
		return m.comptimeInt(f.offset + int64(f.bitOff/8)), nil
	case "divTrunc", "divExact", "rem":
		if err := argc(2); err != nil {
			return Value{}, err
		}
		return m.division(x, e, want)
	case "import":
		if err := argc(1); err != nil {
			return Value{}, err
		}
		if s, ok := x.Args[0].(lir.StringLit); ok && s.Value == "std" {
			return Value{T: m.prims["namespace"], NS: m.std}, nil
		}
		return Value{}, unsupported("@import of anything but std")
	case "This":
		for s := e; s != nil; s = s.parent {
			if s.ns == nil {
				continue
			}
			if s.ns.typ != nil {
				return m.typeValue(s.ns.typ), nil
			}
			return Value{T: m.prims["namespace"], NS: s.ns}, nil
		}
		return Value{T: m.prims["namespace"], NS: m.root}, nil
	case "extern":
		if err := argc(2); err != nil {
			return Value{}, err
		}
		return m.externSymbol(x, e)
	case "compileError":
		msg := "@compileError"
		if len(x.Args) == 1 {
			if s, ok := x.Args[0].(lir.StringLit); ok {
				msg = s.Value
			}
		}
		return Value{}, &CompileError{Msg: msg}
	case "trap":
		return Value{}, &Panic{Msg: "trap"}
	case "TypeOf":
		if err := argc(1); err != nil {
			return Value{}, err
		}
		t, err := m.typeOfExpr(x.Args[0], e)
		if err != nil {
			return Value{}, err
		}
		return m.typeValue(t), nil
	case "splat":
		if err := argc(1); err != nil {
			return Value{}, err
		}
		if want == nil || want.kind != kVector {
			return Value{}, fmt.Errorf("@splat needs a vector result type")
		}
		v, err := m.eval(x.Args[0], e, nil)
		if err != nil {
			return Value{}, err
		}
		return m.splat(want, v)
	case "shuffle":
		if err := argc(4); err != nil {
			return Value{}, err
		}
		return m.shuffle(x, e)
	}
	return Value{}, unsupported("builtin @%s", x.Name)
}

// division implements @divTrunc, @divExact and @rem.
func (m *Machine) division(x lir.Builtin, e *env, want *rtype) (Value, error) {
	a, err := m.eval(x.Args[0], e, want)
	if err != nil {
		return Value{}, err
	}
	var bw *rtype
	if !a.T.isComptime() {
		bw = a.T
	}
	b, err := m.eval(x.Args[1], e, bw)
	if err != nil {
		return Value{}, err
	}
	if a.T.isComptime() && !b.T.isComptime() {
		if a, err = m.coerce(a, b.T); err != nil {
			return Value{}, err
		}
	}
	if a.T.kind == kVector {
		el, err := a.T.elem()
		if err != nil {
			return Value{}, err
		}
		return m.vectorZip(a, b, el, func(p, q Value) (Value, error) { return m.divide(x.Name, p, q) })
	}
	return m.divide(x.Name, a, b)
}

func (m *Machine) divide(name string, a, b Value) (Value, error) {
	if a.T.kind == kFloat || a.T.kind == kComptimeFloat {
		p, q := asFloat(a), asFloat(b)
		if q == 0 && name != "divTrunc" {
			return Value{}, &Panic{Msg: "division by zero"}
		}
		if name == "rem" {
			return m.floatValue(a.T, math.Mod(p, q)), nil
		}
		return m.floatValue(a.T, math.Trunc(p/q)), nil
	}
	p, q := bigOf(a), bigOf(b)
	if q.Sign() == 0 {
		return Value{}, &Panic{Msg: "division by zero"}
	}
	quo, rem := new(big.Int).QuoRem(p, q, new(big.Int))
	res := quo
	switch name {
	case "rem":
		res = rem
	case "divExact":
		if rem.Sign() != 0 {
			return Value{}, &Panic{Msg: "exact division produced remainder"}
		}
	}
	if a.T.kind == kInt && !fits(res, a.T) {
		return Value{}, &Panic{Msg: "integer overflow"}
	}
	return m.intValue(a.T, res), nil
}

// externSymbol resolves @extern(T, .{ .name = "x" }) against the
// definitions of the file.
func (m *Machine) externSymbol(x lir.Builtin, e *env) (Value, error) {
	t, err := m.typeArg(x.Args[0], e)
	if err != nil {
		return Value{}, err
	}
	opts, ok := x.Args[1].(lir.StructInit)
	name := ""
	if ok {
		for _, f := range opts.Fields {
			if s, isStr := f.Value.(lir.StringLit); f.Name == "name" && isStr {
				name = s.Value
			}
		}
	}
	if name == "" {
		return Value{}, fmt.Errorf("@extern needs a symbol name")
	}
	if !m.root.has(name) {
		if native, ok := libc[name]; ok {
			return Value{T: t, N: m.fnAddr(&function{name: name, native: native})}, nil
		}
		return Value{}, unsupported("external symbol '%s'", name)
	}
	b, err := m.root.lookup(m, name)
	if err != nil {
		return Value{}, err
	}
	if b.place != nil {
		return Value{T: t, N: b.place.addr}, nil
	}
	if b.val.Fn != nil {
		return Value{T: t, N: m.fnAddr(b.val.Fn)}, nil
	}
	return Value{}, fmt.Errorf("'%s' has no address", name)
}

// shuffle is @shuffle(T, a, b, mask). Non-negative mask entries select
// from a, and ~i selects element i of b.
func (m *Machine) shuffle(x lir.Builtin, e *env) (Value, error) {
	el, err := m.typeArg(x.Args[0], e)
	if err != nil {
		return Value{}, err
	}
	a, err := m.eval(x.Args[1], e, nil)
	if err != nil {
		return Value{}, err
	}
	b, err := m.eval(x.Args[2], e, nil)
	if err != nil {
		return Value{}, err
	}
	mk, err := m.eval(x.Args[3], e, nil)
	if err != nil {
		return Value{}, err
	}
	if mk.T.kind != kVector && mk.T.kind != kArray {
		return Value{}, fmt.Errorf("@shuffle mask must be a vector")
	}
	t := m.vectorOf(el, mk.T.length)
	out := m.zero(t)
	for i := int64(0); i < mk.T.length; i++ {
		sel, err := m.element(mk, i)
		if err != nil {
			return Value{}, err
		}
		k := asInt64(sel)
		src := a
		if k < 0 {
			src, k = b, ^k
		}
		if src.T.kind != kVector || k >= src.T.length {
			return Value{}, &CompileError{Msg: fmt.Sprintf("mask index %d has out-of-bounds selection", k)}
		}
		lane, err := m.element(src, k)
		if err != nil {
			return Value{}, err
		}
		raw, err := m.encode(lane)
		if err != nil {
			return Value{}, err
		}
		copy(out.Mem[i*el.size:], raw)
	}
	return out, nil
}
