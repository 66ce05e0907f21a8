// Package ctarget describes the compilation target: integer and pointer
// widths, enum typing rules and object-file conventions that the lowering
// passes depend on.
package ctarget

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// ErrUnknownTriple is returned for triples naming an unsupported architecture.
var ErrUnknownTriple = errors.New("unknown target triple")

// Arch identifies a CPU architecture
type Arch int

const (
	X86_64 Arch = iota
	AArch64
	X86
	ARM
	RISCV64
	Wasm32
	AVR
)

func (a Arch) String() string {
	names := []string{"x86_64", "aarch64", "x86", "arm", "riscv64", "wasm32", "avr"}
	if int(a) < len(names) {
		return names[a]
	}
	return "?"
}

// OS identifies the operating system part of a triple
type OS int

const (
	Linux OS = iota
	MacOS
	Windows
	Freestanding
	WASI
)

func (o OS) String() string {
	names := []string{"linux", "macos", "windows", "freestanding", "wasi"}
	if int(o) < len(names) {
		return names[o]
	}
	return "?"
}

// ObjectFormat is the object-file format of the target
type ObjectFormat int

const (
	ELF ObjectFormat = iota
	MachO
	COFF
	Wasm
)

func (f ObjectFormat) String() string {
	names := []string{"elf", "macho", "coff", "wasm"}
	if int(f) < len(names) {
		return names[f]
	}
	return "?"
}

// EnumRule selects how the underlying integer type of an enum is chosen
type EnumRule int

const (
	EnumGNU  EnumRule = iota // smallest of uint/int/long long fitting all values
	EnumMSVC                 // always int
)

// Target holds the data-model facts of one triple
type Target struct {
	Triple string
	Arch   Arch
	OS     OS
	ABI    string

	CharSigned     bool
	ShortBits      int
	IntBits        int
	LongBits       int
	LongLongBits   int
	PointerBits    int
	LongDoubleBits int // storage width of long double
	MaxAlign       int // alignment of the most aligned scalar, in bytes

	Enum   EnumRule
	Object ObjectFormat
}

// Parse returns the Target for an `arch-os[-abi]` triple or "native". The
// architecture may itself be "native", as in "native-windows-msvc".
func Parse(triple string) (*Target, error) {
	if triple == "" || triple == "native" {
		return Native(), nil
	}
	parts := strings.Split(triple, "-")
	if len(parts) < 2 {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTriple, triple)
	}
	arch, ok := parseArch(parts[0])
	if parts[0] == "native" {
		arch, ok = Native().Arch, true
	}
	if !ok {
		return nil, fmt.Errorf("%w: %q: architecture %q", ErrUnknownTriple, triple, parts[0])
	}
	os, ok := parseOS(parts[1])
	if !ok {
		return nil, fmt.Errorf("%w: %q: os %q", ErrUnknownTriple, triple, parts[1])
	}
	abi := ""
	if len(parts) > 2 {
		abi = strings.Join(parts[2:], "-")
	}
	return build(triple, arch, os, abi), nil
}

// MustParse is like Parse but panics on error; for tests and constants.
func MustParse(triple string) *Target {
	t, err := Parse(triple)
	if err != nil {
		panic(err)
	}
	return t
}

// Native returns the target the translator itself runs on.
func Native() *Target {
	arch := X86_64
	switch runtime.GOARCH {
	case "arm64":
		arch = AArch64
	case "386":
		arch = X86
	case "arm":
		arch = ARM
	case "riscv64":
		arch = RISCV64
	case "wasm":
		arch = Wasm32
	}
	os := Linux
	abi := "gnu"
	switch runtime.GOOS {
	case "darwin":
		os, abi = MacOS, "none"
	case "windows":
		os, abi = Windows, "msvc"
	case "wasip1":
		os, abi = WASI, "musl"
	}
	return build("native", arch, os, abi)
}

func parseArch(s string) (Arch, bool) {
	switch s {
	case "x86_64", "amd64":
		return X86_64, true
	case "aarch64", "arm64":
		return AArch64, true
	case "x86", "i386", "i686":
		return X86, true
	case "arm", "armv7", "thumb":
		return ARM, true
	case "riscv64":
		return RISCV64, true
	case "wasm32":
		return Wasm32, true
	case "avr":
		return AVR, true
	}
	return 0, false
}

func parseOS(s string) (OS, bool) {
	switch s {
	case "linux":
		return Linux, true
	case "macos", "darwin":
		return MacOS, true
	case "windows":
		return Windows, true
	case "freestanding", "none":
		return Freestanding, true
	case "wasi":
		return WASI, true
	}
	return 0, false
}

func build(triple string, arch Arch, os OS, abi string) *Target {
	t := &Target{
		Triple:         triple,
		Arch:           arch,
		OS:             os,
		ABI:            abi,
		CharSigned:     true,
		ShortBits:      16,
		IntBits:        32,
		LongBits:       64,
		LongLongBits:   64,
		PointerBits:    64,
		LongDoubleBits: 128,
		MaxAlign:       16,
		Enum:           EnumGNU,
		Object:         ELF,
	}
	switch arch {
	case X86:
		t.LongBits, t.PointerBits, t.LongDoubleBits, t.MaxAlign = 32, 32, 96, 4
	case ARM:
		t.LongBits, t.PointerBits, t.LongDoubleBits, t.MaxAlign = 32, 32, 64, 8
		t.CharSigned = false
	case AArch64:
		t.CharSigned = os == MacOS || os == Windows
		if os == MacOS || os == Windows {
			t.LongDoubleBits = 64
		}
	case RISCV64:
		t.CharSigned = false
	case Wasm32:
		t.LongBits, t.PointerBits = 32, 32
	case AVR:
		t.IntBits, t.LongBits, t.PointerBits = 16, 32, 16
		t.LongDoubleBits, t.MaxAlign = 32, 1
	}
	switch os {
	case MacOS:
		t.Object = MachO
	case Windows:
		t.Object = COFF
		t.LongBits = 32
		if abi == "msvc" {
			t.Enum = EnumMSVC
			t.LongDoubleBits = 64
		}
	case WASI:
		t.Object = Wasm
	}
	if arch == Wasm32 {
		t.Object = Wasm
	}
	return t
}

// MSVCRecords reports whether records follow the Microsoft rules, which
// every Windows ABI except gnu does.
func (t *Target) MSVCRecords() bool {
	return t.OS == Windows && t.ABI != "gnu"
}

// String returns the triple the target was parsed from.
func (t *Target) String() string {
	return t.Triple
}

// SizeBytes converts a bit width to a byte count, rounding up.
func SizeBytes(bits int) int64 {
	return int64((bits + 7) / 8)
}

// IntAlign returns the ABI alignment in bytes of an integer of the given width.
func (t *Target) IntAlign(bits int) int64 {
	size := SizeBytes(bits)
	if size > int64(t.MaxAlign) {
		return int64(t.MaxAlign)
	}
	if t.Arch == X86 && bits == 64 {
		return 4
	}
	return size
}

// LongDoubleAlign returns the alignment of long double.
func (t *Target) LongDoubleAlign() int64 {
	switch t.LongDoubleBits {
	case 96:
		return 4
	case 128:
		return 16
	}
	return t.IntAlign(t.LongDoubleBits)
}

// ValidSection reports whether a linksection name is usable on this object
// format. Mach-O requires the "segment,section" form.
func (t *Target) ValidSection(name string) bool {
	if name == "" {
		return false
	}
	if t.Object == MachO {
		seg, sect, ok := strings.Cut(name, ",")
		return ok && seg != "" && sect != "" && len(seg) <= 16
	}
	return true
}
