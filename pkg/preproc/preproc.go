// Package preproc is the front end of the translator: it preprocesses a C
// file for a target and parses the result into a cabs.Program.
package preproc

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/raymyers/ralph-translate-c/pkg/cabs"
	"github.com/raymyers/ralph-translate-c/pkg/cpp"
	"github.com/raymyers/ralph-translate-c/pkg/ctarget"
	"github.com/raymyers/ralph-translate-c/pkg/ctyper"
	"github.com/raymyers/ralph-translate-c/pkg/ctypes"
	"github.com/raymyers/ralph-translate-c/pkg/parser"
)

// Options configures the preprocessing step
type Options struct {
	IncludePaths []string          // -I directories
	SystemPaths  []string          // -isystem directories
	Defines      map[string]string // -D macros (name -> value, empty string for simple define)
	Undefines    []string          // -U macros
	NoBuiltins   bool              // do not provide the builtin C library headers
	Logger       logrus.FieldLogger
}

// Preprocess runs the C preprocessor over src as the main file name and
// returns the expanded code together with the main file's macro
// definitions.
func Preprocess(name, src string, tgt *ctarget.Target, opts *Options) (string, []cabs.MacroDef, error) {
	if opts == nil {
		opts = &Options{}
	}
	defines := Predefines(tgt)
	user := lo.MapToSlice(opts.Defines, func(name, value string) string {
		if value == "" {
			return name
		}
		return name + "=" + value
	})
	sort.Strings(user)
	pp := cpp.NewPreprocessor(cpp.PreprocessorOptions{
		Defines:      append(defines, user...),
		Undefines:    opts.Undefines,
		IncludePaths: opts.IncludePaths,
		SystemPaths:  opts.SystemPaths,
		NoBuiltins:   opts.NoBuiltins,
		HasBuiltin:   hasBuiltin(tgt),
		HasAttribute: parser.SupportsAttribute,
		Logger:       opts.Logger,
	})
	code, err := pp.PreprocessString(src, name)
	if err != nil {
		return "", nil, err
	}
	return code, pp.Defines(), nil
}

// hasBuiltin answers __has_builtin with the builtins the typer knows for
// tgt.
func hasBuiltin(tgt *ctarget.Target) func(string) bool {
	sema := ctyper.New(ctypes.NewModel(tgt))
	return func(name string) bool {
		_, ok := ctyper.Builtin(sema, name)
		return ok
	}
}

// Unit preprocesses and parses one translation unit.
func Unit(name, src string, tgt *ctarget.Target, opts *Options) (*cabs.Program, error) {
	if !NeedsPreprocessing(name) {
		return parser.ParseUnit(name, src, tgt)
	}
	code, macros, err := Preprocess(name, src, tgt, opts)
	if err != nil {
		return nil, err
	}
	return parser.ParseSource(filepath.Base(name), code, macros, tgt)
}

// File reads and parses the translation unit at path.
func File(path string, tgt *ctarget.Target, opts *Options) (*cabs.Program, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return Unit(abs, string(src), tgt, opts)
}

// NeedsPreprocessing returns true if the file might need preprocessing.
// Files ending in .i are considered already preprocessed.
func NeedsPreprocessing(filename string) bool {
	return strings.ToLower(filepath.Ext(filename)) != ".i"
}

// Predefines returns the NAME=VALUE macros a compiler for tgt defines
// before reading any source.
func Predefines(tgt *ctarget.Target) []string {
	maxSigned := func(bits int) string {
		return fmt.Sprint(uint64(1)<<(bits-1) - 1)
	}
	maxUnsigned := func(bits int) string {
		if bits == 64 {
			return "18446744073709551615"
		}
		return fmt.Sprint(uint64(1)<<bits - 1)
	}
	// suffix of the type an integer of the given width is spelled with
	suffix := func(bits int, unsigned bool) string {
		s := ""
		switch bits {
		case tgt.IntBits:
		case tgt.LongBits:
			s = "L"
		default:
			s = "LL"
		}
		if unsigned {
			s = "U" + s
		}
		return s
	}
	// C spelling of the integer type with the given width
	intType := func(bits int, unsigned bool) string {
		s := "long long"
		switch bits {
		case 8:
			s = "char"
			if !unsigned {
				return "signed char"
			}
		case tgt.ShortBits:
			s = "short"
		case tgt.IntBits:
			s = "int"
		case tgt.LongBits:
			s = "long"
		}
		if unsigned {
			s = "unsigned " + s
		}
		return s
	}
	defs := []string{
		"__CHAR_BIT__=8",
		"__SCHAR_MAX__=127",
		"__SHRT_MAX__=" + maxSigned(tgt.ShortBits),
		"__INT_MAX__=" + maxSigned(tgt.IntBits),
		"__LONG_MAX__=" + maxSigned(tgt.LongBits) + "L",
		"__LONG_LONG_MAX__=" + maxSigned(tgt.LongLongBits) + "LL",
		"__SIZE_MAX__=" + maxUnsigned(tgt.PointerBits) + suffix(tgt.PointerBits, true),
		"__INTPTR_MAX__=" + maxSigned(tgt.PointerBits) + suffix(tgt.PointerBits, false),
		"__UINTPTR_MAX__=" + maxUnsigned(tgt.PointerBits) + suffix(tgt.PointerBits, true),
		fmt.Sprintf("__SIZEOF_POINTER__=%d", tgt.PointerBits/8),
		fmt.Sprintf("__SIZEOF_LONG__=%d", tgt.LongBits/8),
		fmt.Sprintf("__SIZEOF_INT__=%d", tgt.IntBits/8),
		"__SIZE_TYPE__=" + intType(tgt.PointerBits, true),
		"__PTRDIFF_TYPE__=" + intType(tgt.PointerBits, false),
		"__INTPTR_TYPE__=" + intType(tgt.PointerBits, false),
		"__UINTPTR_TYPE__=" + intType(tgt.PointerBits, true),
		"__INTMAX_TYPE__=" + intType(64, false),
		"__UINTMAX_TYPE__=" + intType(64, true),
		"__CHAR16_TYPE__=unsigned short",
		"__CHAR32_TYPE__=unsigned int",
	}
	for _, bits := range []int{8, 16, 32, 64} {
		defs = append(defs,
			fmt.Sprintf("__INT%d_TYPE__=%s", bits, intType(bits, false)),
			fmt.Sprintf("__UINT%d_TYPE__=%s", bits, intType(bits, true)))
	}
	if !tgt.CharSigned {
		defs = append(defs, "__CHAR_UNSIGNED__")
	}
	switch tgt.Arch {
	case ctarget.X86_64:
		defs = append(defs, "__x86_64__", "__x86_64", "__amd64__")
	case ctarget.AArch64:
		defs = append(defs, "__aarch64__")
	case ctarget.X86:
		defs = append(defs, "__i386__", "i386")
	case ctarget.ARM:
		defs = append(defs, "__arm__")
	case ctarget.RISCV64:
		defs = append(defs, "__riscv", "__riscv_xlen=64")
	case ctarget.Wasm32:
		defs = append(defs, "__wasm__", "__wasm32__")
	case ctarget.AVR:
		defs = append(defs, "__AVR__")
	}
	switch tgt.OS {
	case ctarget.Linux:
		defs = append(defs, "__linux__", "__linux", "__unix__", "__gnu_linux__")
	case ctarget.MacOS:
		defs = append(defs, "__APPLE__", "__MACH__")
	case ctarget.Windows:
		defs = append(defs, "_WIN32")
		if tgt.PointerBits == 64 {
			defs = append(defs, "_WIN64")
		}
		if tgt.ABI == "msvc" {
			defs = append(defs, "_MSC_VER=1930")
		}
	case ctarget.WASI:
		defs = append(defs, "__wasi__")
	}
	if tgt.PointerBits == 64 && tgt.LongBits == 64 {
		defs = append(defs, "__LP64__", "_LP64")
	}
	return defs
}
