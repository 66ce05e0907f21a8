package ctypes

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/raymyers/ralph-translate-c/pkg/ctarget"
)

func TestLayoutPlainStruct(t *testing.T) {
	m := linux64()
	r := &Record{Kind: Struct, Tag: "s", Complete: true, Fields: []Field{
		{Name: "a", Type: CharType()},
		{Name: "b", Type: IntType()},
		{Name: "c", Type: ShortType()},
	}}
	l := m.Layout(r)
	assert.Equal(t, []int64{0, 4, 8}, []int64{l.Fields[0].Offset, l.Fields[1].Offset, l.Fields[2].Offset})
	assert.Equal(t, int64(12), l.Size)
	assert.Equal(t, int64(4), l.Align)
}

func TestLayoutPackedAndAligned(t *testing.T) {
	m := linux64()
	packed := &Record{Kind: Struct, Complete: true, Packed: true, Fields: []Field{
		{Name: "a", Type: CharType()},
		{Name: "b", Type: IntType()},
	}}
	l := m.Layout(packed)
	assert.Equal(t, int64(1), l.Fields[1].Offset)
	assert.Equal(t, int64(5), l.Size)

	aligned := &Record{Kind: Struct, Complete: true, Fields: []Field{
		{Name: "bar", Type: ShortType(), Aligned: 4},
	}}
	l = m.Layout(aligned)
	assert.Equal(t, int64(4), l.Align)
	assert.Equal(t, int64(4), l.Size)
}

func TestLayoutUnion(t *testing.T) {
	m := linux64()
	u := &Record{Kind: Union, Complete: true, Fields: []Field{
		{Name: "a", Type: CharType()},
		{Name: "b", Type: LongType()},
	}}
	l := m.Layout(u)
	assert.Equal(t, int64(0), l.Fields[1].Offset)
	assert.Equal(t, int64(8), l.Size)
}

func TestLayoutBitFields(t *testing.T) {
	m := linux64()
	r := &Record{Kind: Struct, Complete: true, Fields: []Field{
		{Name: "a", Type: UIntType(), BitField: true, BitWidth: 3},
		{Name: "b", Type: UIntType(), BitField: true, BitWidth: 30},
		{Type: UIntType(), BitField: true, BitWidth: 0},
		{Name: "c", Type: UIntType(), BitField: true, BitWidth: 1},
	}}
	l := m.Layout(r)
	assert.Equal(t, int64(0), l.Fields[0].Offset)
	assert.Equal(t, 0, l.Fields[0].BitOffset)
	// b does not fit in the rest of the first unit
	assert.Equal(t, int64(4), l.Fields[1].Offset)
	assert.Equal(t, 0, l.Fields[1].BitOffset)
	// the zero-width field pushes c into a fresh unit
	assert.Equal(t, int64(8), l.Fields[3].Offset)
	assert.Equal(t, int64(12), l.Size)
}

func TestLayoutFlexibleArray(t *testing.T) {
	m := linux64()
	r := &Record{Kind: Struct, Complete: true, Fields: []Field{
		{Name: "count", Type: UCharType()},
		{Name: "items", Type: Array(IntType(), -1)},
	}}
	l := m.Layout(r)
	assert.True(t, l.Fields[1].Flexible)
	assert.Equal(t, int64(4), l.Fields[1].Offset)
	assert.Equal(t, int64(4), l.Size)

	off, ok := m.Offsetof(r, "items")
	assert.True(t, ok)
	assert.Equal(t, int64(4), off)
}

func TestSizeofPerTarget(t *testing.T) {
	m := linux64()
	assert.Equal(t, int64(8), m.Sizeof(LongType()))
	assert.Equal(t, int64(8), m.Sizeof(Pointer(Void())))
	assert.Equal(t, int64(40), m.Sizeof(Array(IntType(), 10)))
	assert.Equal(t, int64(-1), m.Sizeof(Array(IntType(), -1)))
	assert.Equal(t, int64(-1), m.Sizeof(Trecord{Rec: &Record{Tag: "opaque"}}))
}

func TestResolve(t *testing.T) {
	m := linux64()
	d := m.Resolve(Tnamed{Name: "u8", Underlying: UCharType()})
	assert.Equal(t, DInt, d.Kind)
	assert.Equal(t, 8, d.Bits)
	assert.False(t, d.Signed)

	p := m.Resolve(Pointer(Tint{Kind: Int, Q: Const}))
	assert.Equal(t, DPointer, p.Kind)
	assert.Equal(t, Const, p.Elem.Quals)

	assert.Same(t, d, m.Resolve(Tnamed{Name: "u8", Underlying: UCharType()}))
}

func TestLayoutEmptyRecord(t *testing.T) {
	empty := &Record{Kind: Struct, Complete: true}
	assert.Equal(t, int64(0), linux64().Layout(empty).Size)
	l := NewModel(ctarget.MustParse("x86_64-windows-msvc")).Layout(empty)
	assert.Equal(t, int64(4), l.Size)
	assert.Equal(t, int64(1), l.Align)
	gnu := NewModel(ctarget.MustParse("x86_64-windows-gnu")).Layout(empty)
	assert.Equal(t, int64(0), gnu.Size)
}
