package lirinterp

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/big"
)

// Value is a runtime value. Integers, bools and addresses live in N,
// masked to the width of their type; floats live in F; comptime integers
// in Big; aggregates in Mem, which holds exactly T.size bytes.
type Value struct {
	T    *rtype
	N    uint64
	F    float64
	Big  *big.Int
	Mem  []byte
	Ty   *rtype     // when T is type
	Fn   *function  // when T is a function
	NS   *namespace // when T is a namespace
	Sym  string     // enum literal
	Self *Value     // receiver of a bound method
}

// place is an addressable location
type place struct {
	addr   uint64
	typ    *rtype
	packed bool
	bitOff int
	unit   int64 // size of the packed storage unit
}

func mask(bits int) uint64 {
	if bits >= 64 {
		return math.MaxUint64
	}
	return 1<<uint(bits) - 1
}

func signExtend(n uint64, bits int) int64 {
	if bits >= 64 {
		return int64(n)
	}
	shift := uint(64 - bits)
	return int64(n<<shift) >> shift
}

// bigOf returns the integer value of an int, bool or comptime int.
func bigOf(v Value) *big.Int {
	if v.Big != nil {
		return new(big.Int).Set(v.Big)
	}
	if v.T.kind == kInt && v.T.signed {
		return big.NewInt(signExtend(v.N, v.T.bits))
	}
	return new(big.Int).SetUint64(v.N)
}

// intRange returns the bounds of an integer type.
func intRange(t *rtype) (lo, hi *big.Int) {
	one := big.NewInt(1)
	if t.signed {
		hi = new(big.Int).Lsh(one, uint(t.bits-1))
		lo = new(big.Int).Neg(hi)
		hi.Sub(hi, one)
		return lo, hi
	}
	hi = new(big.Int).Lsh(one, uint(t.bits))
	return new(big.Int), hi.Sub(hi, one)
}

func fits(n *big.Int, t *rtype) bool {
	lo, hi := intRange(t)
	return n.Cmp(lo) >= 0 && n.Cmp(hi) <= 0
}

// wrap reduces n modulo 2^bits.
func wrap(n *big.Int, bits int) uint64 {
	m := new(big.Int).Lsh(big.NewInt(1), uint(bits))
	r := new(big.Int).Mod(n, m)
	return r.Uint64()
}

func (m *Machine) intValue(t *rtype, n *big.Int) Value {
	if t.kind == kComptimeInt {
		return Value{T: t, Big: n}
	}
	if t.bits > 64 {
		return wideValue(t, n)
	}
	return Value{T: t, N: wrap(n, t.bits)}
}

// wideValue holds an integer wider than 64 bits: the value reduced to
// the range of t in Big, its low word in N.
func wideValue(t *rtype, n *big.Int) Value {
	mod := new(big.Int).Lsh(big.NewInt(1), uint(t.bits))
	r := new(big.Int).Mod(n, mod)
	low := new(big.Int).And(r, new(big.Int).SetUint64(math.MaxUint64)).Uint64()
	if t.signed && r.Bit(t.bits-1) == 1 {
		r.Sub(r, mod)
	}
	return Value{T: t, N: low, Big: r}
}

func (m *Machine) uintValue(t *rtype, n uint64) Value {
	if t.kind == kComptimeInt || t.bits > 64 {
		return m.intValue(t, new(big.Int).SetUint64(n))
	}
	return Value{T: t, N: n & mask(t.bits)}
}

func (m *Machine) sintValue(t *rtype, n int64) Value {
	if t.kind == kComptimeInt || t.bits > 64 {
		return m.intValue(t, big.NewInt(n))
	}
	return Value{T: t, N: uint64(n) & mask(t.bits)}
}

func (m *Machine) boolValue(b bool) Value {
	v := Value{T: m.prims["bool"]}
	if b {
		v.N = 1
	}
	return v
}

func (m *Machine) floatValue(t *rtype, f float64) Value {
	if t.kind == kFloat && t.bits == 32 {
		f = float64(float32(f))
	}
	return Value{T: t, F: f}
}

func (m *Machine) typeValue(t *rtype) Value { return Value{T: m.prims["type"], Ty: t} }

func (m *Machine) voidValue() Value { return Value{T: m.prims["void"]} }

func (m *Machine) comptimeInt(n int64) Value {
	return Value{T: m.prims["comptime_int"], Big: big.NewInt(n)}
}

// asInt64 returns the signed value of an integer-like value.
func asInt64(v Value) int64 {
	if v.Big != nil {
		return v.Big.Int64()
	}
	if v.T.kind == kInt && v.T.signed {
		return signExtend(v.N, v.T.bits)
	}
	return int64(v.N)
}

// asFloat returns the numeric value of a number as a float.
func asFloat(v Value) float64 {
	switch v.T.kind {
	case kFloat, kComptimeFloat:
		return v.F
	case kComptimeInt:
		f, _ := new(big.Float).SetInt(v.Big).Float64()
		return f
	case kInt:
		if v.T.signed {
			return float64(signExtend(v.N, v.T.bits))
		}
		return float64(v.N)
	}
	return float64(v.N)
}

// zero returns the all-zero value of t.
func (m *Machine) zero(t *rtype) Value {
	switch t.kind {
	case kFloat:
		return Value{T: t}
	case kComptimeInt:
		return Value{T: t, Big: new(big.Int)}
	case kArray, kVector, kStruct, kUnion:
		return Value{T: t, Mem: make([]byte, t.size)}
	}
	return Value{T: t}
}

// encode returns the in-memory representation of v.
func (m *Machine) encode(v Value) ([]byte, error) {
	t := v.T
	switch t.kind {
	case kInt, kBool, kPointer:
		if t.bits > 64 {
			return encodeWide(bigOf(v), t), nil
		}
		return encodeUint(v.N, t.size), nil
	case kFloat:
		if t.bits == 32 {
			return encodeUint(uint64(math.Float32bits(float32(v.F))), t.size), nil
		}
		return encodeUint(math.Float64bits(v.F), t.size), nil
	case kArray, kVector, kStruct, kUnion:
		out := make([]byte, t.size)
		copy(out, v.Mem)
		return out, nil
	case kVoid:
		return nil, nil
	}
	return nil, fmt.Errorf("value of type '%s' has no runtime representation", t)
}

// decode reads a value of type t from its representation.
func (m *Machine) decode(t *rtype, b []byte) (Value, error) {
	switch t.kind {
	case kInt, kBool:
		if t.bits > 64 {
			le := make([]byte, len(b))
			for i := range b {
				le[len(b)-1-i] = b[i]
			}
			return wideValue(t, new(big.Int).SetBytes(le)), nil
		}
		return Value{T: t, N: decodeUint(b) & mask(t.bits)}, nil
	case kPointer:
		return Value{T: t, N: decodeUint(b) & mask(int(t.size*8))}, nil
	case kFloat:
		if t.bits == 32 {
			return Value{T: t, F: float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))}, nil
		}
		return Value{T: t, F: math.Float64frombits(decodeUint(b))}, nil
	case kArray, kVector, kStruct, kUnion:
		mem := make([]byte, t.size)
		copy(mem, b)
		return Value{T: t, Mem: mem}, nil
	case kVoid:
		return m.voidValue(), nil
	}
	return Value{}, fmt.Errorf("cannot load a value of type '%s'", t)
}

func (m *Machine) load(p place) (Value, error) {
	if p.packed {
		raw, err := m.mem.read(p.addr, p.unit)
		if err != nil {
			return Value{}, err
		}
		bits := fieldBits(p.typ)
		return Value{T: p.typ, N: decodeUint(raw) >> uint(p.bitOff) & mask(bits)}, nil
	}
	if p.typ.kind == kOpaque || p.typ.kind == kVoid && p.typ.size == 0 {
		if p.addr == 0 {
			return Value{}, &Panic{Msg: "null pointer dereference"}
		}
		return m.voidValue(), nil
	}
	raw, err := m.mem.read(p.addr, p.typ.size)
	if err != nil {
		return Value{}, err
	}
	return m.decode(p.typ, raw)
}

func (m *Machine) store(p place, v Value) error {
	v, err := m.coerce(v, p.typ)
	if err != nil {
		return err
	}
	if p.packed {
		raw, err := m.mem.read(p.addr, p.unit)
		if err != nil {
			return err
		}
		bits := fieldBits(p.typ)
		unit := decodeUint(raw)
		fm := mask(bits) << uint(p.bitOff)
		unit = unit&^fm | (v.N&mask(bits))<<uint(p.bitOff)&fm
		return m.mem.write(p.addr, encodeUint(unit, p.unit))
	}
	b, err := m.encode(v)
	if err != nil {
		return err
	}
	return m.mem.write(p.addr, b)
}

// coerce converts v to t the way an implicit coercion or a result type
// would. Typed integers are reinterpreted modulo the width of t.
func (m *Machine) coerce(v Value, t *rtype) (Value, error) {
	if t == nil || v.T == t {
		return v, nil
	}
	from := v.T
	switch t.kind {
	case kInt:
		switch from.kind {
		case kComptimeInt:
			if !fits(v.Big, t) {
				return Value{}, &CompileError{Msg: fmt.Sprintf("type '%s' cannot represent integer value '%s'", t, v.Big)}
			}
			return m.intValue(t, v.Big), nil
		case kInt, kBool:
			return m.intValue(t, bigOf(v)), nil
		case kComptimeFloat:
			if v.F != math.Trunc(v.F) {
				return Value{}, &CompileError{Msg: fmt.Sprintf("fractional component prevents float value '%g' from coercion to type '%s'", v.F, t)}
			}
			n, _ := big.NewFloat(v.F).Int(nil)
			return m.intValue(t, n), nil
		case kUndefined:
			return m.zero(t), nil
		case kPointer:
			return Value{T: t, N: v.N & mask(t.bits)}, nil
		}
	case kComptimeInt:
		switch from.kind {
		case kInt, kBool:
			return Value{T: t, Big: bigOf(v)}, nil
		}
	case kFloat, kComptimeFloat:
		switch from.kind {
		case kFloat, kComptimeFloat, kComptimeInt, kInt:
			return m.floatValue(t, asFloat(v)), nil
		case kUndefined:
			return m.zero(t), nil
		}
	case kBool:
		switch from.kind {
		case kUndefined:
			return m.zero(t), nil
		case kInt:
			return Value{T: t, N: v.N & 1}, nil
		}
	case kPointer:
		switch from.kind {
		case kPointer:
			return Value{T: t, N: v.N}, nil
		case kNull, kUndefined:
			return Value{T: t}, nil
		case kFunc:
			return Value{T: t, N: m.fnAddr(v.Fn)}, nil
		case kComptimeInt, kInt:
			return Value{T: t, N: wrap(bigOf(v), int(m.ptrSize*8))}, nil
		}
	case kArray, kVector, kStruct, kUnion:
		switch from.kind {
		case kArray, kVector, kStruct, kUnion:
			mem := make([]byte, t.size)
			copy(mem, v.Mem)
			return Value{T: t, Mem: mem}, nil
		case kUndefined:
			return m.zero(t), nil
		}
		if t.kind == kVector && from.isNumeric() {
			return m.splat(t, v)
		}
	case kVoid:
		return m.voidValue(), nil
	case kType, kNamespace, kEnumLiteral, kFunc, kNoreturn, kNull, kUndefined:
		return v, nil
	case kOpaque:
		return v, nil
	}
	if from.kind == kNoreturn {
		return v, nil
	}
	return Value{}, fmt.Errorf("expected type '%s', found '%s'", t, from)
}

// splat fills a vector with one scalar.
func (m *Machine) splat(t *rtype, v Value) (Value, error) {
	el, err := t.elem()
	if err != nil {
		return Value{}, err
	}
	s, err := m.coerce(v, el)
	if err != nil {
		return Value{}, err
	}
	b, err := m.encode(s)
	if err != nil {
		return Value{}, err
	}
	mem := make([]byte, t.size)
	for i := int64(0); i < t.length; i++ {
		copy(mem[i*el.size:], b)
	}
	return Value{T: t, Mem: mem}, nil
}

// element returns element i of an array or vector value.
func (m *Machine) element(v Value, i int64) (Value, error) {
	el, err := v.T.elem()
	if err != nil {
		return Value{}, err
	}
	return m.decode(el, v.Mem[i*el.size:(i+1)*el.size])
}

// fieldValue extracts a field from a struct or union value.
func (m *Machine) fieldValue(v Value, f field) (Value, error) {
	if v.T.packed {
		unit := decodeUint(v.Mem)
		return Value{T: f.typ, N: unit >> uint(f.bitOff) & mask(fieldBits(f.typ))}, nil
	}
	return m.decode(f.typ, v.Mem[f.offset:f.offset+f.typ.size])
}

// setField stores a field into an aggregate under construction.
func (m *Machine) setField(mem []byte, t *rtype, f field, v Value) error {
	v, err := m.coerce(v, f.typ)
	if err != nil {
		return err
	}
	if t.packed {
		unit := decodeUint(mem)
		fm := mask(fieldBits(f.typ)) << uint(f.bitOff)
		unit = unit&^fm | v.N<<uint(f.bitOff)&fm
		copy(mem, encodeUint(unit, t.size))
		return nil
	}
	b, err := m.encode(v)
	if err != nil {
		return err
	}
	copy(mem[f.offset:], b)
	return nil
}

// truthy is the C truth value of a scalar.
func truthy(v Value) bool {
	switch v.T.kind {
	case kFloat, kComptimeFloat:
		return v.F != 0
	case kComptimeInt:
		return v.Big.Sign() != 0
	}
	if v.Big != nil {
		return v.Big.Sign() != 0
	}
	return v.N != 0
}

// compare orders two scalars; 2 means unordered.
func (m *Machine) compare(a, b Value) (int, error) {
	if a.T.kind == kFloat || a.T.kind == kComptimeFloat || b.T.kind == kFloat || b.T.kind == kComptimeFloat {
		x, y := asFloat(a), asFloat(b)
		switch {
		case x < y:
			return -1, nil
		case x > y:
			return 1, nil
		case x == y:
			return 0, nil
		}
		return 2, nil // unordered
	}
	switch a.T.kind {
	case kPointer, kNull, kFunc:
		x, y := a.N, b.N
		if a.T.kind == kFunc {
			x = m.fnAddr(a.Fn)
		}
		if b.T.kind == kFunc {
			y = m.fnAddr(b.Fn)
		}
		switch {
		case x < y:
			return -1, nil
		case x > y:
			return 1, nil
		}
		return 0, nil
	case kEnumLiteral:
		if a.Sym == b.Sym {
			return 0, nil
		}
		return 1, nil
	}
	if !(a.T.isNumeric() || a.T.kind == kBool) || !(b.T.isNumeric() || b.T.kind == kBool || b.T.kind == kPointer) {
		return 0, fmt.Errorf("operator not allowed for types '%s' and '%s'", a.T, b.T)
	}
	return bigOf(a).Cmp(bigOf(b)), nil
}
