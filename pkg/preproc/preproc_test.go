package preproc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raymyers/ralph-translate-c/pkg/cabs"
	"github.com/raymyers/ralph-translate-c/pkg/ctarget"
)

func TestPredefines(t *testing.T) {
	tests := []struct {
		triple string
		want   []string
		absent []string
	}{
		{
			triple: "x86_64-linux-gnu",
			want: []string{"__INT_MAX__=2147483647", "__LONG_MAX__=9223372036854775807L",
				"__SIZE_MAX__=18446744073709551615UL", "__x86_64__", "__linux__", "__LP64__",
				"__UINT8_TYPE__=unsigned char", "__INT8_TYPE__=signed char", "__INT64_TYPE__=long",
				"__SIZE_TYPE__=unsigned long"},
			absent: []string{"__CHAR_UNSIGNED__", "_WIN32"},
		},
		{
			triple: "x86_64-windows-msvc",
			want: []string{"__LONG_MAX__=2147483647L", "__SIZE_MAX__=18446744073709551615ULL",
				"_WIN32", "_WIN64", "__INT32_TYPE__=int", "__UINT64_TYPE__=unsigned long long"},
			absent: []string{"__LP64__", "__linux__"},
		},
		{
			triple: "aarch64-linux-gnu",
			want:   []string{"__aarch64__", "__CHAR_UNSIGNED__"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.triple, func(t *testing.T) {
			defs := Predefines(ctarget.MustParse(tt.triple))
			for _, w := range tt.want {
				assert.Contains(t, defs, w)
			}
			for _, a := range tt.absent {
				assert.NotContains(t, defs, a)
			}
		})
	}
}

func TestUnitKeepsMainFileMacros(t *testing.T) {
	src := `#include <stdint.h>
#include <limits.h>
#define WIDTH 4
#ifdef __linux__
int on_linux = INT_MAX;
#endif
uint32_t w = WIDTH;
`
	prog, err := Unit("unit.c", src, ctarget.MustParse("x86_64-linux-gnu"), nil)
	require.NoError(t, err)
	assert.Equal(t, []cabs.MacroDef{{Name: "WIDTH", Body: "4", Pos: cabs.Pos{File: "unit.c", Line: 3}}}, prog.Macros)
	require.Len(t, prog.Definitions, 2)
	v, ok := prog.Definitions[0].(cabs.VarDef)
	require.True(t, ok)
	assert.Equal(t, "on_linux", v.Name)
}

func TestUnitUserDefines(t *testing.T) {
	src := "#if MODE == 2\nint two;\n#else\nint other;\n#endif\n"
	opts := &Options{Defines: map[string]string{"MODE": "2"}}
	prog, err := Unit("unit.c", src, ctarget.MustParse("x86_64-linux-gnu"), opts)
	require.NoError(t, err)
	require.Len(t, prog.Definitions, 1)
	assert.Equal(t, "two", prog.Definitions[0].(cabs.VarDef).Name)
}

func TestUnitReportsPreprocessorErrors(t *testing.T) {
	_, err := Unit("unit.c", "#include <missing.h>\n", ctarget.MustParse("x86_64-linux-gnu"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing.h")
}

func TestNeedsPreprocessing(t *testing.T) {
	assert.True(t, NeedsPreprocessing("a.c"))
	assert.True(t, NeedsPreprocessing("a.h"))
	assert.False(t, NeedsPreprocessing("a.i"))
}

func TestUnitFeatureQueries(t *testing.T) {
	src := `#if __has_builtin(__builtin_popcount) && !__has_builtin(__builtin_nope)
int builtins;
#endif
#if __has_attribute(packed) && __has_attribute(__aligned__) && !__has_attribute(cleanup)
int attributes;
#endif
#if __has_include(<stdint.h>) && !__has_include("no_such_header.h")
int headers;
#endif
`
	prog, err := Unit("unit.c", src, ctarget.MustParse("x86_64-linux-gnu"), nil)
	require.NoError(t, err)
	var names []string
	for _, d := range prog.Definitions {
		names = append(names, d.(cabs.VarDef).Name)
	}
	assert.Equal(t, []string{"builtins", "attributes", "headers"}, names)
}
