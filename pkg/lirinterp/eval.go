package lirinterp

import (
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"

	"github.com/raymyers/ralph-translate-c/pkg/lir"
)

// jump carries a break, continue or return out of an expression to the
// statement that encloses it
type jump struct {
	c ctl
}

func (j *jump) Error() string { return "control transfer outside of its target" }

// ref is the result of evaluating an expression that may be addressable
type ref struct {
	p  place
	ok bool // p is valid; otherwise v holds the value
	v  Value
}

func (r ref) typ() *rtype {
	if r.ok {
		return r.p.typ
	}
	return r.v.T
}

// eval evaluates x. want is the result type the context imposes, or nil.
func (m *Machine) eval(x lir.Expr, e *env, want *rtype) (Value, error) {
	v, err := m.eval0(x, e, want)
	if err != nil {
		return Value{}, err
	}
	if want == nil {
		return v, nil
	}
	return m.coerce(v, want)
}

func (m *Machine) eval0(x lir.Expr, e *env, want *rtype) (Value, error) {
	switch x := x.(type) {
	case lir.Ident:
		return m.ident(x.Name, e)
	case lir.IntLit:
		n, ok := new(big.Int).SetString(strings.ReplaceAll(x.Text, "_", ""), 0)
		if !ok {
			return Value{}, fmt.Errorf("invalid integer literal '%s'", x.Text)
		}
		return Value{T: m.prims["comptime_int"], Big: n}, nil
	case lir.FloatLit:
		f, err := strconv.ParseFloat(strings.ReplaceAll(x.Text, "_", ""), 64)
		if err != nil && !strings.Contains(err.Error(), "range") {
			return Value{}, fmt.Errorf("invalid float literal '%s'", x.Text)
		}
		return Value{T: m.prims["comptime_float"], F: f}, nil
	case lir.CharLit:
		return m.comptimeInt(int64(x.Value)), nil
	case lir.StringLit:
		return m.stringLit(x.Value)
	case lir.TypeExpr:
		t, err := m.resolveType(x.T, e)
		if err != nil {
			return Value{}, err
		}
		return m.typeValue(t), nil
	case lir.As:
		t, err := m.resolveType(x.T, e)
		if err != nil {
			return Value{}, err
		}
		return m.eval(x.X, e, t)
	case lir.Conv:
		return m.conv(x, e, want)
	case lir.Builtin:
		return m.builtin(x, e, want)
	case lir.Truthy:
		v, err := m.eval(x.X, e, nil)
		if err != nil {
			return Value{}, err
		}
		return m.boolValue(truthy(v)), nil
	case lir.Unary:
		return m.unary(x, e, want)
	case lir.Binary:
		return m.binary(x, e, want)
	case lir.Paren:
		return m.eval0(x.X, e, want)
	case lir.Deref, lir.Member, lir.Index:
		r, err := m.ref(x, e)
		if err != nil {
			return Value{}, err
		}
		if r.ok {
			return m.load(r.p)
		}
		return r.v, nil
	case lir.Unwrap:
		v, err := m.eval(x.X, e, nil)
		if err != nil {
			return Value{}, err
		}
		if v.T.kind == kNull || v.T.kind == kPointer && v.N == 0 {
			return Value{}, &Panic{Msg: "attempt to use null value"}
		}
		if v.T.kind == kPointer && v.T.optional {
			t := *v.T
			t.optional = false
			t.name = strings.TrimPrefix(t.name, "?")
			v.T = &t
		}
		return v, nil
	case lir.Slice:
		return m.slice(x, e)
	case lir.Call:
		return m.call(x, e)
	case lir.IfExpr:
		c, err := m.eval(x.Cond, e, nil)
		if err != nil {
			return Value{}, err
		}
		if truthy(c) {
			return m.eval(x.Then, e, want)
		}
		return m.eval(x.Else, e, want)
	case lir.BlockExpr:
		s := e.child()
		s.label, s.want, s.isExpr = x.Label, want, true
		defer m.release(s)
		c, err := m.execStmts(x.Stmts, s)
		if err != nil {
			return Value{}, err
		}
		switch {
		case c.kind == ctlBreak && c.label == x.Label:
			return c.val, nil
		case c.kind != ctlNone:
			return Value{}, &jump{c: c}
		}
		return m.voidValue(), nil
	case lir.StructInit:
		return m.structInit(x, e, want)
	case lir.ArrayInit:
		return m.arrayInit(x, e, want)
	}
	return Value{}, unsupported("expression %T", x)
}

// ident evaluates a name.
func (m *Machine) ident(name string, e *env) (Value, error) {
	switch name {
	case "true":
		return m.boolValue(true), nil
	case "false":
		return m.boolValue(false), nil
	case "null":
		return Value{T: m.prims["@TypeOf(null)"]}, nil
	case "undefined":
		return Value{T: m.prims["@TypeOf(undefined)"]}, nil
	case "unreachable":
		return Value{}, &Panic{Msg: "reached unreachable code"}
	}
	if strings.HasPrefix(name, ".") {
		return Value{T: m.prims["@Type(.enum_literal)"], Sym: name[1:]}, nil
	}
	if t, ok := m.prim(name); ok {
		return m.typeValue(t), nil
	}
	b, err := e.lookup(m, name)
	if err != nil {
		return Value{}, err
	}
	if b.place != nil {
		return m.load(*b.place)
	}
	return b.val, nil
}

// stringLit returns a pointer to the static, read-only bytes of a string
// literal. Equal literals share storage.
func (m *Machine) stringLit(s string) (Value, error) {
	u8 := m.mustPrim("u8")
	arr := &rtype{kind: kArray, name: fmt.Sprintf("[%d:0]u8", len(s)), elemT: u8, length: int64(len(s)),
		sentinel: true, size: int64(len(s)) + 1, align: 1}
	t := m.pointerTo(arr, lir.PtrOne, false)
	t.isConst = true
	t.name = "*const " + arr.name
	if addr, ok := m.strings[s]; ok {
		return Value{T: t, N: addr}, nil
	}
	addr, err := m.mem.alloc(arr.size, 1, "string literal")
	if err != nil {
		return Value{}, err
	}
	if err := m.mem.write(addr, append([]byte(s), 0)); err != nil {
		return Value{}, err
	}
	m.mem.find(addr).readonly = true
	m.strings[s] = addr
	return Value{T: t, N: addr}, nil
}

func (m *Machine) bindingRef(b *binding) ref {
	if b.place != nil {
		return ref{p: *b.place, ok: true}
	}
	return ref{v: b.val}
}

// ref evaluates x as a location when it denotes one.
func (m *Machine) ref(x lir.Expr, e *env) (ref, error) {
	switch x := x.(type) {
	case lir.Ident:
		if _, ok := m.prim(x.Name); ok || strings.HasPrefix(x.Name, ".") || isKeyword(x.Name) {
			v, err := m.ident(x.Name, e)
			return ref{v: v}, err
		}
		b, err := e.lookup(m, x.Name)
		if err != nil {
			return ref{}, err
		}
		return m.bindingRef(b), nil
	case lir.Paren:
		return m.ref(x.X, e)
	case lir.Deref:
		v, err := m.eval(x.X, e, nil)
		if err != nil {
			return ref{}, err
		}
		return m.deref(v)
	case lir.Member:
		return m.member(x, e)
	case lir.Index:
		return m.index(x, e)
	}
	v, err := m.eval(x, e, nil)
	return ref{v: v}, err
}

func isKeyword(name string) bool {
	switch name {
	case "true", "false", "null", "undefined", "unreachable":
		return true
	}
	return false
}

func (m *Machine) deref(v Value) (ref, error) {
	if v.T.kind != kPointer {
		return ref{}, fmt.Errorf("cannot dereference non-pointer type '%s'", v.T)
	}
	if v.N == 0 {
		return ref{}, &Panic{Msg: "null pointer dereference"}
	}
	el, err := v.T.elem()
	if err != nil {
		return ref{}, err
	}
	return ref{p: place{addr: v.N, typ: el}, ok: true}, nil
}

func (m *Machine) refValue(r ref) (Value, error) {
	if r.ok {
		return m.load(r.p)
	}
	return r.v, nil
}

// autoDeref follows single-item pointers to containers and arrays.
func (m *Machine) autoDeref(r ref) (ref, error) {
	for {
		t := r.typ()
		if t.kind != kPointer || t.ptr != lir.PtrOne {
			return r, nil
		}
		el, err := t.elem()
		if err != nil {
			return ref{}, err
		}
		switch el.kind {
		case kStruct, kUnion, kOpaque, kArray:
		default:
			return r, nil
		}
		v, err := m.refValue(r)
		if err != nil {
			return ref{}, err
		}
		if r, err = m.deref(v); err != nil {
			return ref{}, err
		}
	}
}

// materialize copies a value into fresh read-only storage.
func (m *Machine) materialize(v Value) (place, error) {
	p, err := m.allocPlace(v.T, "temporary", nil)
	if err != nil {
		return place{}, err
	}
	if err := m.store(p, v); err != nil {
		return place{}, err
	}
	m.mem.find(p.addr).readonly = true
	return p, nil
}

func (m *Machine) member(x lir.Member, e *env) (ref, error) {
	base, err := m.ref(x.X, e)
	if err != nil {
		return ref{}, err
	}
	if base, err = m.autoDeref(base); err != nil {
		return ref{}, err
	}
	t := base.typ()
	switch t.kind {
	case kStruct, kUnion:
		if f, ok := t.field(x.Name); ok {
			if !base.ok {
				v, err := m.fieldValue(base.v, f)
				return ref{v: v}, err
			}
			if t.packed {
				return ref{p: place{addr: base.p.addr, typ: f.typ, packed: true, bitOff: f.bitOff, unit: t.size}, ok: true}, nil
			}
			return ref{p: place{addr: base.p.addr + uint64(f.offset), typ: f.typ}, ok: true}, nil
		}
		return m.method(t, base, x.Name)
	case kOpaque:
		return m.method(t, base, x.Name)
	case kArray:
		if x.Name == "len" {
			return ref{v: m.comptimeInt(t.length)}, nil
		}
	case kType:
		if base.v.Ty.ns != nil {
			b, err := base.v.Ty.ns.lookup(m, x.Name)
			if err != nil {
				return ref{}, err
			}
			return m.bindingRef(b), nil
		}
	case kNamespace:
		b, err := base.v.NS.lookup(m, x.Name)
		if err != nil {
			return ref{}, err
		}
		return m.bindingRef(b), nil
	}
	return ref{}, fmt.Errorf("type '%s' has no member named '%s'", t, x.Name)
}

// method looks a name up among the declarations of a container reached
// through a value. Functions are bound to a pointer to the receiver.
func (m *Machine) method(t *rtype, base ref, name string) (ref, error) {
	if t.ns == nil || !t.ns.has(name) {
		return ref{}, fmt.Errorf("type '%s' has no member named '%s'", t, name)
	}
	b, err := t.ns.lookup(m, name)
	if err != nil {
		return ref{}, err
	}
	if b.place != nil || b.val.Fn == nil {
		return m.bindingRef(b), nil
	}
	p := base.p
	if !base.ok {
		if p, err = m.materialize(base.v); err != nil {
			return ref{}, err
		}
	}
	self := Value{T: m.pointerTo(t, lir.PtrOne, false), N: p.addr}
	bound := b.val
	bound.Self = &self
	return ref{v: bound}, nil
}

func (m *Machine) index(x lir.Index, e *env) (ref, error) {
	base, err := m.ref(x.X, e)
	if err != nil {
		return ref{}, err
	}
	if base, err = m.autoDeref(base); err != nil {
		return ref{}, err
	}
	iv, err := m.eval(x.I, e, nil)
	if err != nil {
		return ref{}, err
	}
	i := asInt64(iv)
	t := base.typ()
	switch t.kind {
	case kArray, kVector:
		limit := t.length
		if t.sentinel {
			limit++
		}
		if i < 0 || i >= limit {
			return ref{}, &Panic{Msg: fmt.Sprintf("index out of bounds: index %d, len %d", i, t.length)}
		}
		el, err := t.elem()
		if err != nil {
			return ref{}, err
		}
		if !base.ok {
			v, err := m.element(base.v, i)
			return ref{v: v}, err
		}
		return ref{p: place{addr: base.p.addr + uint64(i*el.size), typ: el}, ok: true}, nil
	case kPointer:
		pv, err := m.refValue(base)
		if err != nil {
			return ref{}, err
		}
		if pv.N == 0 {
			return ref{}, &Panic{Msg: "null pointer dereference"}
		}
		el, err := t.elem()
		if err != nil {
			return ref{}, err
		}
		return ref{p: place{addr: pv.N + uint64(i*el.size), typ: el}, ok: true}, nil
	}
	return ref{}, fmt.Errorf("type '%s' does not support indexing", t)
}

// slice handles x[lo..hi] of arrays and pointers, which yields a pointer
// to an array of hi-lo elements.
func (m *Machine) slice(x lir.Slice, e *env) (Value, error) {
	base, err := m.ref(x.X, e)
	if err != nil {
		return Value{}, err
	}
	if base, err = m.autoDeref(base); err != nil {
		return Value{}, err
	}
	lo, err := m.eval(x.Lo, e, nil)
	if err != nil {
		return Value{}, err
	}
	hi, err := m.eval(x.Hi, e, nil)
	if err != nil {
		return Value{}, err
	}
	l, h := asInt64(lo), asInt64(hi)
	t := base.typ()
	var addr uint64
	var el *rtype
	switch t.kind {
	case kArray:
		if !base.ok {
			if base.p, err = m.materialize(base.v); err != nil {
				return Value{}, err
			}
		}
		if h > t.length || l > h || l < 0 {
			return Value{}, &Panic{Msg: fmt.Sprintf("index out of bounds: slice %d..%d of len %d", l, h, t.length)}
		}
		addr, el = base.p.addr, t.elemT
	case kPointer:
		pv, err := m.refValue(base)
		if err != nil {
			return Value{}, err
		}
		if el, err = t.elem(); err != nil {
			return Value{}, err
		}
		addr = pv.N
	default:
		return Value{}, fmt.Errorf("type '%s' cannot be sliced", t)
	}
	arr := &rtype{kind: kArray, name: fmt.Sprintf("[%d]%s", h-l, el), elemT: el, length: h - l,
		size: (h - l) * el.size, align: el.align}
	return Value{T: m.pointerTo(arr, lir.PtrOne, false), N: addr + uint64(l*el.size)}, nil
}

func isLiteral(x lir.Expr) bool {
	switch x.(type) {
	case lir.IntLit, lir.FloatLit, lir.CharLit:
		return true
	}
	return false
}

func (m *Machine) unary(x lir.Unary, e *env, want *rtype) (Value, error) {
	if x.Op == "&" {
		return m.addressOf(x.X, e)
	}
	if x.Op == "!" {
		v, err := m.eval(x.X, e, nil)
		if err != nil {
			return Value{}, err
		}
		return m.boolValue(!truthy(v)), nil
	}
	xw := want
	if isLiteral(x.X) {
		xw = nil
	}
	v, err := m.eval(x.X, e, xw)
	if err != nil {
		return Value{}, err
	}
	if v.T.kind == kVector {
		return m.vectorMap(v, func(s Value) (Value, error) { return m.scalarUnary(x.Op, s) })
	}
	return m.scalarUnary(x.Op, v)
}

func (m *Machine) scalarUnary(op string, v Value) (Value, error) {
	t := v.T
	switch t.kind {
	case kComptimeInt:
		switch op {
		case "-", "-%":
			return Value{T: t, Big: new(big.Int).Neg(v.Big)}, nil
		case "~":
			return Value{T: t, Big: new(big.Int).Not(v.Big)}, nil
		}
	case kFloat, kComptimeFloat:
		if op == "-" {
			return m.floatValue(t, -v.F), nil
		}
	case kInt:
		switch op {
		case "-":
			n := new(big.Int).Neg(bigOf(v))
			if !fits(n, t) {
				return Value{}, &Panic{Msg: "integer overflow"}
			}
			return m.intValue(t, n), nil
		case "-%":
			if t.bits > 64 {
				return m.intValue(t, new(big.Int).Neg(bigOf(v))), nil
			}
			return Value{T: t, N: -v.N & mask(t.bits)}, nil
		case "~":
			if t.bits > 64 {
				return m.intValue(t, new(big.Int).Not(bigOf(v))), nil
			}
			return Value{T: t, N: ^v.N & mask(t.bits)}, nil
		}
	case kBool:
		if op == "~" {
			return m.boolValue(v.N == 0), nil
		}
	}
	return Value{}, fmt.Errorf("operator '%s' not allowed for type '%s'", op, t)
}

// addressOf is &x.
func (m *Machine) addressOf(x lir.Expr, e *env) (Value, error) {
	r, err := m.ref(x, e)
	if err != nil {
		return Value{}, err
	}
	if r.ok {
		if r.p.packed {
			return Value{}, unsupported("address of a packed field")
		}
		return Value{T: m.pointerTo(r.p.typ, lir.PtrOne, false), N: r.p.addr}, nil
	}
	switch r.v.T.kind {
	case kFunc:
		ft, err := m.funcType(r.v.Fn)
		if err != nil {
			return Value{}, err
		}
		return Value{T: m.pointerTo(ft, lir.PtrOne, false), N: m.fnAddr(r.v.Fn)}, nil
	case kType, kNamespace:
		return r.v, nil
	}
	p, err := m.materialize(r.v)
	if err != nil {
		return Value{}, err
	}
	return Value{T: m.pointerTo(p.typ, lir.PtrOne, false), N: p.addr}, nil
}

func isComparison(op string) bool {
	switch op {
	case "==", "!=", "<", "<=", ">", ">=":
		return true
	}
	return false
}

func (m *Machine) binary(x lir.Binary, e *env, want *rtype) (Value, error) {
	switch {
	case x.Op == "and" || x.Op == "or":
		l, err := m.eval(x.L, e, nil)
		if err != nil {
			return Value{}, err
		}
		if truthy(l) == (x.Op == "or") {
			return m.boolValue(truthy(l)), nil
		}
		r, err := m.eval(x.R, e, nil)
		if err != nil {
			return Value{}, err
		}
		return m.boolValue(truthy(r)), nil
	case isComparison(x.Op):
		l, err := m.eval(x.L, e, nil)
		if err != nil {
			return Value{}, err
		}
		var rw *rtype
		if !l.T.isComptime() && l.T.kind != kVector {
			rw = l.T
		}
		r, err := m.eval(x.R, e, rw)
		if err != nil {
			return Value{}, err
		}
		if l.T.isComptime() && !r.T.isComptime() {
			if l, err = m.coerce(l, r.T); err != nil {
				return Value{}, err
			}
		}
		if l.T.kind == kVector {
			return m.vectorZip(l, r, m.prims["bool"], func(a, b Value) (Value, error) { return m.comparison(x.Op, a, b) })
		}
		return m.comparison(x.Op, l, r)
	case x.Op == "++" || x.Op == "**":
		return m.arrayOp(x, e)
	}
	l, err := m.eval(x.L, e, want)
	if err != nil {
		return Value{}, err
	}
	var rw *rtype
	switch {
	case x.Op == "<<" || x.Op == ">>" || l.T.kind == kPointer:
	case !l.T.isComptime():
		rw = l.T
	default:
		rw = want
	}
	r, err := m.eval(x.R, e, rw)
	if err != nil {
		return Value{}, err
	}
	if l.T.isComptime() && !r.T.isComptime() && x.Op != "<<" && x.Op != ">>" {
		if l, err = m.coerce(l, r.T); err != nil {
			return Value{}, err
		}
	}
	return m.arith(x.Op, l, r)
}

func (m *Machine) comparison(op string, l, r Value) (Value, error) {
	c, err := m.compare(l, r)
	if err != nil {
		return Value{}, err
	}
	var b bool
	switch op {
	case "==":
		b = c == 0
	case "!=":
		b = c != 0
	case "<":
		b = c == -1
	case "<=":
		b = c == -1 || c == 0
	case ">":
		b = c == 1
	case ">=":
		b = c == 1 || c == 0
	}
	return m.boolValue(b), nil
}

// arith applies a binary arithmetic or bitwise operator.
func (m *Machine) arith(op string, l, r Value) (Value, error) {
	t := l.T
	switch t.kind {
	case kVector:
		el, err := t.elem()
		if err != nil {
			return Value{}, err
		}
		if r.T.kind != kVector {
			if r, err = m.splat(t, r); err != nil {
				return Value{}, err
			}
		}
		return m.vectorZip(l, r, el, func(a, b Value) (Value, error) { return m.arith(op, a, b) })
	case kPointer:
		el, err := t.elem()
		if err != nil {
			return Value{}, err
		}
		off := uint64(asInt64(r) * el.size)
		switch op {
		case "+", "+%":
			return Value{T: t, N: (l.N + off) & mask(int(m.ptrSize*8))}, nil
		case "-", "-%":
			return Value{T: t, N: (l.N - off) & mask(int(m.ptrSize*8))}, nil
		}
	case kFloat, kComptimeFloat:
		a, b := asFloat(l), asFloat(r)
		var f float64
		switch op {
		case "+", "+%":
			f = a + b
		case "-", "-%":
			f = a - b
		case "*", "*%":
			f = a * b
		case "/":
			f = a / b
		case "%":
			f = math.Mod(a, b)
		default:
			return Value{}, fmt.Errorf("operator '%s' not allowed for type '%s'", op, t)
		}
		return m.floatValue(t, f), nil
	case kComptimeInt:
		if r.T.kind == kComptimeFloat {
			return m.arith(op, Value{T: r.T, F: asFloat(l)}, r)
		}
		return m.comptimeArith(op, l.Big, bigOf(r))
	case kBool:
		switch op {
		case "&":
			return m.boolValue(l.N&r.N != 0), nil
		case "|":
			return m.boolValue(l.N|r.N != 0), nil
		case "^":
			return m.boolValue(l.N^r.N != 0), nil
		}
	case kInt:
		return m.intArith(op, l, r)
	}
	return Value{}, fmt.Errorf("operator '%s' not allowed for type '%s'", op, t)
}

func (m *Machine) comptimeArith(op string, a, b *big.Int) (Value, error) {
	t := m.prims["comptime_int"]
	n := new(big.Int)
	switch op {
	case "+", "+%":
		n.Add(a, b)
	case "-", "-%":
		n.Sub(a, b)
	case "*", "*%":
		n.Mul(a, b)
	case "/", "%":
		if b.Sign() == 0 {
			return Value{}, &CompileError{Msg: "division by zero"}
		}
		if op == "/" {
			n.Quo(a, b)
		} else {
			n.Rem(a, b)
		}
	case "&":
		n.And(a, b)
	case "|":
		n.Or(a, b)
	case "^":
		n.Xor(a, b)
	case "<<":
		n.Lsh(a, uint(b.Uint64()))
	case ">>":
		n.Rsh(a, uint(b.Uint64()))
	default:
		return Value{}, fmt.Errorf("operator '%s' not allowed for comptime integers", op)
	}
	return Value{T: t, Big: n}, nil
}

func (m *Machine) intArith(op string, l, r Value) (Value, error) {
	t := l.T
	if t.bits > 64 {
		return m.wideArith(op, l, r)
	}
	a := bigOf(l)
	switch op {
	case "<<", ">>":
		s := asInt64(r)
		if s < 0 || s >= int64(t.bits) {
			return Value{}, &Panic{Msg: fmt.Sprintf("shift amount %d is greater than the type size", s)}
		}
		if op == "<<" {
			return Value{T: t, N: l.N << uint(s) & mask(t.bits)}, nil
		}
		return m.intValue(t, a.Rsh(a, uint(s))), nil
	}
	r, err := m.coerce(r, t)
	if err != nil {
		return Value{}, err
	}
	b := bigOf(r)
	n := new(big.Int)
	switch op {
	case "+", "-", "*":
		switch op {
		case "+":
			n.Add(a, b)
		case "-":
			n.Sub(a, b)
		default:
			n.Mul(a, b)
		}
		if !fits(n, t) {
			return Value{}, &Panic{Msg: "integer overflow"}
		}
		return m.intValue(t, n), nil
	case "+%":
		return Value{T: t, N: (l.N + r.N) & mask(t.bits)}, nil
	case "-%":
		return Value{T: t, N: (l.N - r.N) & mask(t.bits)}, nil
	case "*%":
		return Value{T: t, N: (l.N * r.N) & mask(t.bits)}, nil
	case "/", "%":
		if b.Sign() == 0 {
			return Value{}, &Panic{Msg: "division by zero"}
		}
		if op == "/" {
			n.Quo(a, b)
		} else {
			n.Rem(a, b)
		}
		if !fits(n, t) {
			return Value{}, &Panic{Msg: "integer overflow"}
		}
		return m.intValue(t, n), nil
	case "&":
		return Value{T: t, N: l.N & r.N}, nil
	case "|":
		return Value{T: t, N: l.N | r.N}, nil
	case "^":
		return Value{T: t, N: l.N ^ r.N}, nil
	}
	return Value{}, fmt.Errorf("operator '%s' not allowed for type '%s'", op, t)
}

// wideArith is intArith for integers wider than a machine word, computed
// entirely on their big values.
func (m *Machine) wideArith(op string, l, r Value) (Value, error) {
	t := l.T
	a := bigOf(l)
	if op == "<<" || op == ">>" {
		s := asInt64(r)
		if s < 0 || s >= int64(t.bits) {
			return Value{}, &Panic{Msg: fmt.Sprintf("shift amount %d is greater than the type size", s)}
		}
		if op == "<<" {
			return m.intValue(t, a.Lsh(a, uint(s))), nil
		}
		return m.intValue(t, a.Rsh(a, uint(s))), nil
	}
	r, err := m.coerce(r, t)
	if err != nil {
		return Value{}, err
	}
	b := bigOf(r)
	n := new(big.Int)
	switch op {
	case "+", "+%":
		n.Add(a, b)
	case "-", "-%":
		n.Sub(a, b)
	case "*", "*%":
		n.Mul(a, b)
	case "/", "%":
		if b.Sign() == 0 {
			return Value{}, &Panic{Msg: "division by zero"}
		}
		if op == "/" {
			n.Quo(a, b)
		} else {
			n.Rem(a, b)
		}
	case "&":
		n.And(a, b)
	case "|":
		n.Or(a, b)
	case "^":
		n.Xor(a, b)
	default:
		return Value{}, fmt.Errorf("operator '%s' not allowed for type '%s'", op, t)
	}
	switch op {
	case "+", "-", "*", "/", "%":
		if !fits(n, t) {
			return Value{}, &Panic{Msg: "integer overflow"}
		}
	}
	return m.intValue(t, n), nil
}

// arrayOp is array concatenation (++) and repetition (**).
func (m *Machine) arrayOp(x lir.Binary, e *env) (Value, error) {
	l, err := m.eval(x.L, e, nil)
	if err != nil {
		return Value{}, err
	}
	if l.T.kind != kArray {
		return Value{}, fmt.Errorf("operator '%s' needs an array, found '%s'", x.Op, l.T)
	}
	el := l.T.elemT
	body := l.Mem[:l.T.length*el.size]
	var data []byte
	var n int64
	sentinel := false
	if x.Op == "**" {
		k, err := m.eval(x.R, e, nil)
		if err != nil {
			return Value{}, err
		}
		count := asInt64(k)
		for i := int64(0); i < count; i++ {
			data = append(data, body...)
		}
		n = l.T.length * count
		sentinel = l.T.sentinel
	} else {
		r, err := m.eval(x.R, e, nil)
		if err != nil {
			return Value{}, err
		}
		if r.T.kind != kArray {
			return Value{}, fmt.Errorf("operator '++' needs an array, found '%s'", r.T)
		}
		data = append(append(data, body...), r.Mem[:r.T.length*el.size]...)
		n = l.T.length + r.T.length
		sentinel = l.T.sentinel && r.T.sentinel
	}
	size := n * el.size
	if sentinel {
		size += el.size
	}
	mem := make([]byte, size)
	copy(mem, data)
	name := fmt.Sprintf("[%d]%s", n, el)
	if sentinel {
		name = fmt.Sprintf("[%d:0]%s", n, el)
	}
	t := &rtype{kind: kArray, name: name, elemT: el, length: n, sentinel: sentinel, size: size, align: el.align}
	return Value{T: t, Mem: mem}, nil
}

// vectorMap applies f to each lane of v.
func (m *Machine) vectorMap(v Value, f func(Value) (Value, error)) (Value, error) {
	el, err := v.T.elem()
	if err != nil {
		return Value{}, err
	}
	out := m.zero(v.T)
	for i := int64(0); i < v.T.length; i++ {
		a, err := m.element(v, i)
		if err != nil {
			return Value{}, err
		}
		r, err := f(a)
		if err != nil {
			return Value{}, err
		}
		b, err := m.encode(r)
		if err != nil {
			return Value{}, err
		}
		copy(out.Mem[i*el.size:], b)
	}
	return out, nil
}

// vectorZip combines two vectors lane by lane into a vector of res.
func (m *Machine) vectorZip(l, r Value, res *rtype, f func(a, b Value) (Value, error)) (Value, error) {
	if r.T.kind != kVector || r.T.length != l.T.length {
		return Value{}, fmt.Errorf("vector length mismatch: '%s' and '%s'", l.T, r.T)
	}
	t := m.vectorOf(res, l.T.length)
	out := m.zero(t)
	for i := int64(0); i < l.T.length; i++ {
		a, err := m.element(l, i)
		if err != nil {
			return Value{}, err
		}
		b, err := m.element(r, i)
		if err != nil {
			return Value{}, err
		}
		v, err := f(a, b)
		if err != nil {
			return Value{}, err
		}
		raw, err := m.encode(v)
		if err != nil {
			return Value{}, err
		}
		copy(out.Mem[i*res.size:], raw)
	}
	return out, nil
}

func (m *Machine) vectorOf(el *rtype, n int64) *rtype {
	size := n * el.size
	align := pow2Bytes(int(size * 8))
	if align > 16 {
		align = 16
	}
	return &rtype{kind: kVector, name: fmt.Sprintf("@Vector(%d, %s)", n, el), elemT: el, length: n,
		size: alignUp(size, align), align: align}
}

func (m *Machine) structInit(x lir.StructInit, e *env, want *rtype) (Value, error) {
	t := want
	if x.T != nil {
		var err error
		if t, err = m.resolveType(x.T, e); err != nil {
			return Value{}, err
		}
	}
	if t == nil {
		return Value{}, fmt.Errorf("struct initializer needs a result type")
	}
	if t.kind != kStruct && t.kind != kUnion {
		return Value{}, fmt.Errorf("type '%s' does not support struct initialization", t)
	}
	mem := make([]byte, t.size)
	given := make(map[string]bool)
	for _, fi := range x.Fields {
		f, ok := t.field(fi.Name)
		if !ok {
			return Value{}, fmt.Errorf("no field named '%s' in '%s'", fi.Name, t)
		}
		v, err := m.eval(fi.Value, e, f.typ)
		if err != nil {
			return Value{}, err
		}
		if err := m.setField(mem, t, f, v); err != nil {
			return Value{}, err
		}
		given[fi.Name] = true
	}
	if t.kind == kStruct {
		scope := &env{parent: t.ns.env, ns: t.ns}
		for _, f := range t.fields {
			if given[f.name] || f.def == nil {
				continue
			}
			v, err := m.eval(f.def, scope, f.typ)
			if err != nil {
				return Value{}, err
			}
			if err := m.setField(mem, t, f, v); err != nil {
				return Value{}, err
			}
		}
	}
	return Value{T: t, Mem: mem}, nil
}

func (m *Machine) arrayInit(x lir.ArrayInit, e *env, want *rtype) (Value, error) {
	t := want
	if x.T != nil {
		var err error
		if t, err = m.resolveType(x.T, e); err != nil {
			return Value{}, err
		}
	}
	if t == nil || (t.kind != kArray && t.kind != kVector) {
		return Value{}, fmt.Errorf("array initializer needs an array type")
	}
	el, err := t.elem()
	if err != nil {
		return Value{}, err
	}
	if int64(len(x.Elems)) != t.length {
		return Value{}, &CompileError{Msg: fmt.Sprintf("expected %d array elements; found %d", t.length, len(x.Elems))}
	}
	out := m.zero(t)
	for i, ex := range x.Elems {
		v, err := m.eval(ex, e, el)
		if err != nil {
			return Value{}, err
		}
		b, err := m.encode(v)
		if err != nil {
			return Value{}, err
		}
		copy(out.Mem[int64(i)*el.size:], b)
	}
	return out, nil
}
