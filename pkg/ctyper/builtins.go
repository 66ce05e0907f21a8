package ctyper

import (
	"strings"

	"github.com/raymyers/ralph-translate-c/pkg/ctypes"
)

// Builtin returns the function type of a compiler builtin such as
// __builtin_popcount. Builtins need no declaration.
func Builtin(t *Typer, name string) (ctypes.Tfunction, bool) {
	if !strings.HasPrefix(name, "__builtin_") {
		return ctypes.Tfunction{}, false
	}
	base := strings.TrimPrefix(name, "__builtin_")
	i, u := ctypes.IntType(), ctypes.UIntType()
	ul, ull := ctypes.ULongType(), ctypes.Tint{Kind: ctypes.ULongLong}
	l, ll := ctypes.LongType(), ctypes.Tint{Kind: ctypes.LongLong}
	f, d := ctypes.FloatType(), ctypes.DoubleType()
	voidp := ctypes.Pointer(ctypes.Void())
	cvoidp := ctypes.Pointer(ctypes.Tvoid{Q: ctypes.Const})
	ccharp := ctypes.Pointer(ctypes.Tint{Kind: ctypes.Char, Q: ctypes.Const})
	size := t.SizeT()

	switch base {
	case "bswap16":
		u16 := t.builtinType("uint16_t")
		return ctypes.Function(u16, u16), true
	case "bswap32":
		u32 := t.builtinType("uint32_t")
		return ctypes.Function(u32, u32), true
	case "bswap64":
		u64 := t.builtinType("uint64_t")
		return ctypes.Function(u64, u64), true
	case "popcount", "clz", "ctz", "parity", "ffs":
		return ctypes.Function(i, u), true
	case "popcountl", "clzl", "ctzl", "parityl", "ffsl":
		return ctypes.Function(i, ul), true
	case "popcountll", "clzll", "ctzll", "parityll", "ffsll":
		return ctypes.Function(i, ull), true
	case "abs":
		return ctypes.Function(i, i), true
	case "labs":
		return ctypes.Function(l, l), true
	case "llabs":
		return ctypes.Function(ll, ll), true
	case "signbit":
		return ctypes.Function(i, d), true
	case "signbitf":
		return ctypes.Function(i, f), true
	case "expect":
		return ctypes.Function(l, l, l), true
	case "unreachable", "trap":
		return ctypes.Tfunction{Return: ctypes.Void(), NoReturn: true}, true
	case "memcpy", "memmove":
		return ctypes.Function(voidp, voidp, cvoidp, size), true
	case "memset":
		return ctypes.Function(voidp, voidp, i, size), true
	case "memcmp":
		return ctypes.Function(i, cvoidp, cvoidp, size), true
	case "strlen":
		return ctypes.Function(size, ccharp), true
	case "strcmp":
		return ctypes.Function(i, ccharp, ccharp), true
	case "huge_val", "inf":
		return ctypes.Function(d), true
	case "huge_valf", "inff":
		return ctypes.Function(f), true
	case "nan":
		return ctypes.Function(d, ccharp), true
	case "nanf":
		return ctypes.Function(f, ccharp), true
	case "isnan", "isinf":
		return ctypes.Tfunction{Return: i, VarArg: true}, true
	}
	if mathFunctions[strings.TrimSuffix(base, "f")] {
		if strings.HasSuffix(base, "f") && !mathFunctions[base] {
			return ctypes.Function(f, f), true
		}
		return ctypes.Function(d, d), true
	}
	return ctypes.Tfunction{}, false
}

// mathFunctions are the one-argument libm builtins, double versions; the
// float versions carry an f suffix.
var mathFunctions = map[string]bool{
	"sqrt": true, "sin": true, "cos": true, "exp": true, "exp2": true,
	"log": true, "log2": true, "log10": true, "fabs": true, "floor": true,
	"ceil": true, "round": true, "trunc": true,
}
