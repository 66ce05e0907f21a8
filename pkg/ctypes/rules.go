package ctypes

import "strings"

// Rank returns the integer conversion rank of k.
func Rank(k IntKind) int {
	switch k {
	case Bool:
		return 0
	case Char, SChar, UChar:
		return 1
	case Short, UShort:
		return 2
	case Int, UInt:
		return 3
	case Long, ULong:
		return 4
	case LongLong, ULongLong:
		return 5
	}
	return 6
}

// ToUnsigned returns the unsigned kind of the same rank.
func ToUnsigned(k IntKind) IntKind {
	switch k {
	case Char, SChar:
		return UChar
	case Short:
		return UShort
	case Int:
		return UInt
	case Long:
		return ULong
	case LongLong:
		return ULongLong
	case Int128:
		return UInt128
	}
	return k
}

// ToSigned returns the signed kind of the same rank.
func ToSigned(k IntKind) IntKind {
	switch k {
	case Char, UChar:
		return SChar
	case UShort:
		return Short
	case UInt:
		return Int
	case ULong:
		return Long
	case ULongLong:
		return LongLong
	case UInt128:
		return Int128
	}
	return k
}

// Promote applies the integer promotions: types of rank below int become
// int when int holds all their values, unsigned int otherwise. Other types
// are returned unqualified.
func (m *Model) Promote(t Type) Type {
	k, ok := m.IntKindOf(t)
	if !ok {
		return Unqualified(t)
	}
	if Rank(k) >= Rank(Int) {
		return Unqualified(t)
	}
	bits := m.IntBits(k)
	if bits < m.IntBits(Int) || (bits == m.IntBits(Int) && m.IsSigned(k)) {
		return Tint{Kind: Int}
	}
	return Tint{Kind: UInt}
}

// PromoteArgument applies the default argument promotions used for
// variadic and unprototyped calls.
func (m *Model) PromoteArgument(t Type) Type {
	if f, ok := Canonical(t).(Tfloat); ok && f.Kind < Double {
		return Tfloat{Kind: Double}
	}
	return m.Promote(Decay(t))
}

// UsualArithmetic returns the common type of a binary arithmetic operation.
// When the common type is the canonical type of one of the (promoted)
// operands, that operand's spelling is kept so typedef names survive.
func (m *Model) UsualArithmetic(a, b Type) Type {
	if IsVector(a) {
		return Unqualified(a)
	}
	if IsVector(b) {
		return Unqualified(b)
	}
	fa, aFloat := Canonical(a).(Tfloat)
	fb, bFloat := Canonical(b).(Tfloat)
	switch {
	case aFloat && bFloat:
		if fb.Kind > fa.Kind {
			return Unqualified(b)
		}
		return Unqualified(a)
	case aFloat:
		return Unqualified(a)
	case bFloat:
		return Unqualified(b)
	}

	pa, pb := m.Promote(a), m.Promote(b)
	ka, _ := m.IntKindOf(pa)
	kb, _ := m.IntKindOf(pb)
	var common IntKind
	switch {
	case ka == kb:
		common = ka
	case m.IsSigned(ka) == m.IsSigned(kb):
		common = ka
		if Rank(kb) > Rank(ka) {
			common = kb
		}
	default:
		signed, unsigned := ka, kb
		if !m.IsSigned(ka) {
			signed, unsigned = kb, ka
		}
		switch {
		case Rank(unsigned) >= Rank(signed):
			common = unsigned
		case m.IntBits(signed) > m.IntBits(unsigned):
			common = signed
		default:
			common = ToUnsigned(signed)
		}
	}
	if ka == common {
		return pa
	}
	if kb == common {
		return pb
	}
	return Tint{Kind: common}
}

// LiteralType returns the type of an integer constant with the given value,
// radix and suffix, following the C candidate lists. The second result is
// false when no candidate holds the value; the widest unsigned type is
// returned in that case.
func (m *Model) LiteralType(value uint64, radix int, suffix string) (Type, bool) {
	suffix = strings.ToLower(suffix)
	unsigned := strings.Contains(suffix, "u")
	longs := strings.Count(suffix, "l")
	decimal := radix == 10

	var candidates []IntKind
	switch {
	case unsigned && longs == 0:
		candidates = []IntKind{UInt, ULong, ULongLong}
	case unsigned && longs == 1:
		candidates = []IntKind{ULong, ULongLong}
	case unsigned:
		candidates = []IntKind{ULongLong}
	case longs == 0 && decimal:
		candidates = []IntKind{Int, Long, LongLong}
	case longs == 0:
		candidates = []IntKind{Int, UInt, Long, ULong, LongLong, ULongLong}
	case longs == 1 && decimal:
		candidates = []IntKind{Long, LongLong}
	case longs == 1:
		candidates = []IntKind{Long, ULong, LongLong, ULongLong}
	case decimal:
		candidates = []IntKind{LongLong}
	default:
		candidates = []IntKind{LongLong, ULongLong}
	}
	for _, k := range candidates {
		if value <= m.IntMax(k) {
			return Tint{Kind: k}, true
		}
	}
	return Tint{Kind: ULongLong}, false
}

// minimumBits is the width every conforming implementation guarantees.
var minimumBits = map[IntKind]int{
	Bool: 1, Char: 8, SChar: 8, UChar: 8, Short: 16, UShort: 16,
	Int: 16, UInt: 16, Long: 32, ULong: 32, LongLong: 64, ULongLong: 64,
	Int128: 128, UInt128: 128,
}

// GuaranteedFit reports whether value fits k on every conforming target,
// that is within the minimum width the C standard guarantees for k.
func GuaranteedFit(value uint64, k IntKind) bool {
	bits := minimumBits[k]
	if bits >= 64 {
		if k == LongLong || k == Int128 {
			return value <= 1<<63-1
		}
		return true
	}
	switch k {
	case SChar, Short, Int, Long:
		return value <= 1<<(bits-1)-1
	case Char:
		return value <= 1<<7-1
	}
	return value <= 1<<bits-1
}
