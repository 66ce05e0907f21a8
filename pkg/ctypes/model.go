package ctypes

import (
	"math"

	"github.com/raymyers/ralph-translate-c/pkg/ctarget"
)

// DescKind classifies a resolved type
type DescKind int

const (
	DVoid DescKind = iota
	DBool
	DInt
	DFloat
	DPointer
	DArray
	DRecord
	DFunction
	DVector
)

func (k DescKind) String() string {
	names := []string{"void", "bool", "int", "float", "pointer", "array", "record", "function", "vector"}
	if int(k) < len(names) {
		return names[k]
	}
	return "?"
}

// Desc is the target-resolved description of a type: typedefs stripped,
// enums replaced by their underlying integer, widths filled in.
type Desc struct {
	Kind     DescKind
	Bits     int  // integer and float width
	Signed   bool // integers only
	Int      IntKind
	Float    FloatKind
	Quals    Quals
	Elem     *Desc
	Len      int64 // arrays and vectors; -1 for incomplete arrays
	Record   *Record
	Func     *Tfunction
	Complete bool
	Size     int64 // -1 when incomplete
	Align    int64
}

// Model applies the C type rules for one target. It caches resolved
// descriptors for the lifetime of one translation unit.
type Model struct {
	Target *ctarget.Target
	descs  map[Type]*Desc
}

// NewModel creates a type model for the given target.
func NewModel(t *ctarget.Target) *Model {
	return &Model{Target: t, descs: make(map[Type]*Desc)}
}

// IntBits returns the width of an integer kind on the target.
func (m *Model) IntBits(k IntKind) int {
	switch k {
	case Bool, Char, SChar, UChar:
		return 8
	case Short, UShort:
		return m.Target.ShortBits
	case Int, UInt:
		return m.Target.IntBits
	case Long, ULong:
		return m.Target.LongBits
	case LongLong, ULongLong:
		return m.Target.LongLongBits
	}
	return 128
}

// IsSigned reports whether an integer kind is signed on the target.
func (m *Model) IsSigned(k IntKind) bool {
	switch k {
	case Char:
		return m.Target.CharSigned
	case SChar, Short, Int, Long, LongLong, Int128:
		return true
	}
	return false
}

// FloatBits returns the storage width of a floating kind.
func (m *Model) FloatBits(k FloatKind) int {
	switch k {
	case Float16:
		return 16
	case Float:
		return 32
	case Double:
		return 64
	case LongDouble:
		return m.Target.LongDoubleBits
	}
	return 128
}

// IntKindOf returns the integer kind of an integer or enum type.
func (m *Model) IntKindOf(t Type) (IntKind, bool) {
	switch ty := Canonical(t).(type) {
	case Tint:
		return ty.Kind, true
	case Tenum:
		return m.EnumKind(ty.Enum), true
	}
	return 0, false
}

// IntMax returns the largest value of an integer kind as an unsigned number.
func (m *Model) IntMax(k IntKind) uint64 {
	bits := m.IntBits(k)
	if k == Bool {
		return 1
	}
	if bits >= 64 {
		if m.IsSigned(k) {
			return math.MaxInt64
		}
		return math.MaxUint64
	}
	if m.IsSigned(k) {
		return 1<<(bits-1) - 1
	}
	return 1<<bits - 1
}

// IntMin returns the smallest value of an integer kind.
func (m *Model) IntMin(k IntKind) int64 {
	if !m.IsSigned(k) {
		return 0
	}
	bits := m.IntBits(k)
	if bits >= 64 {
		return math.MinInt64
	}
	return -(1 << (bits - 1))
}

// FitsInt reports whether the signed value v is representable in kind k.
func (m *Model) FitsInt(v int64, k IntKind) bool {
	if v < 0 {
		return m.IsSigned(k) && v >= m.IntMin(k)
	}
	return uint64(v) <= m.IntMax(k)
}

// EnumKind returns the underlying integer kind of an enum: its fixed type
// when declared, int under the MSVC rule, otherwise the smallest of
// unsigned int, int, unsigned long long and long long that holds every
// enumerator.
func (m *Model) EnumKind(e *Enum) IntKind {
	if e.Fixed != nil {
		return *e.Fixed
	}
	if m.Target.Enum == ctarget.EnumMSVC {
		return Int
	}
	negative := false
	fitsInt, fitsUInt := true, true
	for _, c := range e.Consts {
		if c.Value < 0 {
			negative = true
		}
		if !m.FitsInt(c.Value, Int) {
			fitsInt = false
		}
		if !m.FitsInt(c.Value, UInt) {
			fitsUInt = false
		}
	}
	switch {
	case !negative && fitsUInt:
		return UInt
	case fitsInt:
		return Int
	case negative:
		return LongLong
	}
	return ULongLong
}

// EnumConstKind returns the type of the enumerators of e: int when every
// value fits in int, otherwise the enum's underlying type.
func (m *Model) EnumConstKind(e *Enum) IntKind {
	for _, c := range e.Consts {
		if !m.FitsInt(c.Value, Int) {
			return m.EnumKind(e)
		}
	}
	return Int
}

// Sizeof returns the size of t in bytes, or -1 for incomplete types.
func (m *Model) Sizeof(t Type) int64 {
	switch ty := Canonical(t).(type) {
	case Tvoid, Tfunction:
		return 1
	case Tint:
		return ctarget.SizeBytes(m.IntBits(ty.Kind))
	case Tfloat:
		return ctarget.SizeBytes(m.FloatBits(ty.Kind))
	case Tenum:
		return ctarget.SizeBytes(m.IntBits(m.EnumKind(ty.Enum)))
	case Tpointer:
		return ctarget.SizeBytes(m.Target.PointerBits)
	case Tarray:
		if ty.Size < 0 {
			return -1
		}
		es := m.Sizeof(ty.Elem)
		if es < 0 {
			return -1
		}
		return es * ty.Size
	case Tvector:
		return m.Sizeof(ty.Elem) * ty.Len
	case Trecord:
		if !ty.Rec.Complete || ty.Rec.Opaque != "" {
			return -1
		}
		return m.Layout(ty.Rec).Size
	}
	return -1
}

// Alignof returns the ABI alignment of t in bytes.
func (m *Model) Alignof(t Type) int64 {
	switch ty := Canonical(t).(type) {
	case Tvoid, Tfunction:
		return 1
	case Tint:
		return m.Target.IntAlign(m.IntBits(ty.Kind))
	case Tfloat:
		if ty.Kind == LongDouble {
			return m.Target.LongDoubleAlign()
		}
		return m.Target.IntAlign(m.FloatBits(ty.Kind))
	case Tenum:
		return m.Target.IntAlign(m.IntBits(m.EnumKind(ty.Enum)))
	case Tpointer:
		return m.Target.IntAlign(m.Target.PointerBits)
	case Tarray:
		return m.Alignof(ty.Elem)
	case Tvector:
		size := m.Sizeof(ty)
		align := int64(1)
		for align < size {
			align *= 2
		}
		return align
	case Trecord:
		if !ty.Rec.Complete || ty.Rec.Opaque != "" {
			return 1
		}
		return m.Layout(ty.Rec).Align
	}
	return 1
}

// Complete reports whether values of t can be created and copied.
func (m *Model) Complete(t Type) bool {
	switch ty := Canonical(t).(type) {
	case Tvoid:
		return false
	case Tarray:
		return ty.Size >= 0 && m.Complete(ty.Elem)
	case Trecord:
		return ty.Rec.Complete && ty.Rec.Opaque == ""
	}
	return true
}

// Resolve returns the cached descriptor for t.
func (m *Model) Resolve(t Type) *Desc {
	if d, ok := m.descs[t]; ok {
		return d
	}
	d := m.resolve(t)
	if hashable(t) {
		m.descs[t] = d
	}
	return d
}

// hashable reports whether t can be used as a map key; function types
// carry slices and are resolved afresh each time.
func hashable(t Type) bool {
	switch ty := t.(type) {
	case Tfunction:
		return false
	case Tpointer:
		return hashable(ty.Elem)
	case Tarray:
		return hashable(ty.Elem)
	case Tvector:
		return hashable(ty.Elem)
	case Tnamed:
		return hashable(ty.Underlying)
	}
	return true
}

func (m *Model) resolve(t Type) *Desc {
	d := &Desc{Quals: QualsOf(t), Complete: true, Size: m.Sizeof(t), Align: m.Alignof(t)}
	switch ty := Canonical(t).(type) {
	case Tvoid:
		d.Kind = DVoid
		d.Complete = false
	case Tint:
		d.Kind, d.Int = DInt, ty.Kind
		if ty.Kind == Bool {
			d.Kind = DBool
		}
		d.Bits, d.Signed = m.IntBits(ty.Kind), m.IsSigned(ty.Kind)
	case Tenum:
		k := m.EnumKind(ty.Enum)
		d.Kind, d.Int = DInt, k
		d.Bits, d.Signed = m.IntBits(k), m.IsSigned(k)
	case Tfloat:
		d.Kind, d.Float, d.Bits = DFloat, ty.Kind, m.FloatBits(ty.Kind)
	case Tpointer:
		d.Kind, d.Bits = DPointer, m.Target.PointerBits
		d.Elem = m.Resolve(ty.Elem)
	case Tarray:
		d.Kind, d.Len = DArray, ty.Size
		d.Elem = m.Resolve(ty.Elem)
		d.Complete = ty.Size >= 0 && d.Elem.Complete
	case Tvector:
		d.Kind, d.Len = DVector, ty.Len
		d.Elem = m.Resolve(ty.Elem)
	case Trecord:
		d.Kind, d.Record = DRecord, ty.Rec
		d.Complete = ty.Rec.Complete && ty.Rec.Opaque == ""
	case Tfunction:
		d.Kind = DFunction
		fn := ty
		d.Func = &fn
	}
	return d
}
