package ctypes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raymyers/ralph-translate-c/pkg/ctarget"
)

func linux64() *Model {
	return NewModel(ctarget.MustParse("x86_64-linux-gnu"))
}

func TestLiteralType(t *testing.T) {
	m := linux64()
	tests := []struct {
		name   string
		value  uint64
		radix  int
		suffix string
		want   IntKind
	}{
		{"small decimal", 1024, 10, "", Int},
		{"decimal past int", 0x80000000, 10, "", Long},
		{"hex past int", 0x80000000, 16, "", UInt},
		{"octal past int", 020000000000, 8, "", UInt},
		{"unsigned suffix", 10, 10, "u", UInt},
		{"long suffix", 10241024, 10, "L", Long},
		{"unsigned long", 0x40000000, 16, "UL", ULong},
		{"long long", 1, 10, "ll", LongLong},
		{"hex past long", 0xFFFFFFFFFFFFFFFF, 16, "", ULong},
		{"unsigned long long", 1, 10, "ULL", ULongLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := m.LiteralType(tt.value, tt.radix, tt.suffix)
			require.True(t, ok)
			assert.Equal(t, Tint{Kind: tt.want}, got)
		})
	}
}

func TestLiteralTypeSixteenBitInt(t *testing.T) {
	m := NewModel(ctarget.MustParse("avr-freestanding"))
	got, _ := m.LiteralType(40000, 10, "")
	assert.Equal(t, Tint{Kind: Long}, got)
	got, _ = m.LiteralType(40000, 16, "")
	assert.Equal(t, Tint{Kind: UInt}, got)
}

func TestGuaranteedFit(t *testing.T) {
	assert.True(t, GuaranteedFit(1024, Int))
	assert.False(t, GuaranteedFit(10241024, Int))
	assert.True(t, GuaranteedFit(10241024, Long))
	assert.False(t, GuaranteedFit(307230723072, Long))
	assert.True(t, GuaranteedFit(307230723072, LongLong))
	assert.False(t, GuaranteedFit(0x80000000, Int))
	assert.True(t, GuaranteedFit(0xFFFF, UInt))
}

func TestPromote(t *testing.T) {
	m := linux64()
	assert.Equal(t, IntType(), m.Promote(CharType()))
	assert.Equal(t, IntType(), m.Promote(UCharType()))
	assert.Equal(t, IntType(), m.Promote(Tint{Kind: UShort}))
	assert.Equal(t, IntType(), m.Promote(BoolType()))
	assert.Equal(t, UIntType(), m.Promote(UIntType()))
	assert.Equal(t, LongType(), m.Promote(LongType()))

	avr := NewModel(ctarget.MustParse("avr-freestanding"))
	assert.Equal(t, UIntType(), avr.Promote(Tint{Kind: UShort}))
}

func TestUsualArithmetic(t *testing.T) {
	m := linux64()
	u32 := Tnamed{Name: "uint32_t", Underlying: UIntType()}
	tests := []struct {
		name string
		a, b Type
		want Type
	}{
		{"int int", IntType(), IntType(), IntType()},
		{"char short", CharType(), ShortType(), IntType()},
		{"int unsigned", IntType(), UIntType(), UIntType()},
		{"int long", IntType(), LongType(), LongType()},
		{"unsigned long", UIntType(), LongType(), LongType()},
		{"long unsigned long", LongType(), ULongType(), ULongType()},
		{"int float", IntType(), FloatType(), FloatType()},
		{"float double", FloatType(), DoubleType(), DoubleType()},
		{"typedef kept", u32, IntType(), u32},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, Equal(tt.want, m.UsualArithmetic(tt.a, tt.b)), "got %v", m.UsualArithmetic(tt.a, tt.b))
		})
	}

	ilp32 := NewModel(ctarget.MustParse("i386-linux-gnu"))
	assert.Equal(t, ULongType(), ilp32.UsualArithmetic(UIntType(), LongType()))
}

func TestEnumKind(t *testing.T) {
	m := linux64()
	tests := []struct {
		name   string
		values []int64
		want   IntKind
	}{
		{"non-negative", []int64{0, 1, 2}, UInt},
		{"negative", []int64{-1, 2}, Int},
		{"large", []int64{0, 1 << 40}, ULongLong},
		{"negative large", []int64{-1, 1 << 40}, LongLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &Enum{Complete: true}
			for _, v := range tt.values {
				e.Consts = append(e.Consts, EnumConst{Value: v})
			}
			assert.Equal(t, tt.want, m.EnumKind(e))
		})
	}

	msvc := NewModel(ctarget.MustParse("x86_64-windows-msvc"))
	assert.Equal(t, Int, msvc.EnumKind(&Enum{Consts: []EnumConst{{Value: 1}}}))
}

func TestEnumConstKind(t *testing.T) {
	m := linux64()
	small := &Enum{Consts: []EnumConst{{Name: "A", Value: 0}, {Name: "B", Value: 1}}}
	assert.Equal(t, Int, m.EnumConstKind(small))
	big := &Enum{Consts: []EnumConst{{Name: "A", Value: -1}, {Name: "B", Value: 1 << 40}}}
	assert.Equal(t, LongLong, m.EnumConstKind(big))
}
