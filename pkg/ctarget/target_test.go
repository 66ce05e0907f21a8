package ctarget

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		triple  string
		arch    Arch
		os      OS
		long    int
		pointer int
		enum    EnumRule
		object  ObjectFormat
	}{
		{"x86_64-linux-gnu", X86_64, Linux, 64, 64, EnumGNU, ELF},
		{"aarch64-macos-none", AArch64, MacOS, 64, 64, EnumGNU, MachO},
		{"x86_64-windows-msvc", X86_64, Windows, 32, 64, EnumMSVC, COFF},
		{"x86_64-windows-gnu", X86_64, Windows, 32, 64, EnumGNU, COFF},
		{"i386-linux-gnu", X86, Linux, 32, 32, EnumGNU, ELF},
		{"wasm32-wasi-musl", Wasm32, WASI, 32, 32, EnumGNU, Wasm},
		{"avr-freestanding", AVR, Freestanding, 32, 16, EnumGNU, ELF},
	}

	for _, tt := range tests {
		t.Run(tt.triple, func(t *testing.T) {
			tg, err := Parse(tt.triple)
			require.NoError(t, err)
			assert.Equal(t, tt.arch, tg.Arch)
			assert.Equal(t, tt.os, tg.OS)
			assert.Equal(t, tt.long, tg.LongBits)
			assert.Equal(t, tt.pointer, tg.PointerBits)
			assert.Equal(t, tt.enum, tg.Enum)
			assert.Equal(t, tt.object, tg.Object)
		})
	}
}

func TestParseNativeArch(t *testing.T) {
	tg, err := Parse("native-windows-msvc")
	require.NoError(t, err)
	assert.Equal(t, Native().Arch, tg.Arch)
	assert.Equal(t, Windows, tg.OS)
	assert.Equal(t, EnumMSVC, tg.Enum)
}

func TestParseErrors(t *testing.T) {
	for _, triple := range []string{"x86_64", "sparc-linux-gnu", "x86_64-plan9"} {
		_, err := Parse(triple)
		assert.ErrorIs(t, err, ErrUnknownTriple, triple)
	}
}

func TestAVRHasSixteenBitInt(t *testing.T) {
	tg := MustParse("avr-freestanding")
	assert.Equal(t, 16, tg.IntBits)
	assert.Equal(t, int64(1), tg.IntAlign(32))
}

func TestValidSection(t *testing.T) {
	macho := MustParse("aarch64-macos-none")
	elf := MustParse("x86_64-linux-gnu")

	assert.True(t, macho.ValidSection("NEAR,.data"))
	assert.False(t, macho.ValidSection(".data"))
	assert.True(t, elf.ValidSection(".data"))
	assert.False(t, elf.ValidSection(""))
}

func TestMSVCRecords(t *testing.T) {
	assert.True(t, MustParse("x86_64-windows-msvc").MSVCRecords())
	assert.True(t, MustParse("x86_64-windows-none").MSVCRecords())
	assert.False(t, MustParse("x86_64-windows-gnu").MSVCRecords())
	assert.False(t, MustParse("x86_64-linux-gnu").MSVCRecords())
}
