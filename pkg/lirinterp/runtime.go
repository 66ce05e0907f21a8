package lirinterp

import (
	"fmt"
	"io"
	"math"
	"math/big"
	"math/bits"
	"strconv"
	"strings"

	"github.com/raymyers/ralph-translate-c/pkg/lir"
)

// nativeNamespace is a namespace whose members are fixed values.
func nativeNamespace(name string, members map[string]Value) *namespace {
	ns := newNamespace(name, nil, nil)
	for k, v := range members {
		ns.cache[k] = &binding{val: v}
	}
	return ns
}

func (m *Machine) native(name string, fn nativeFn) Value {
	return m.fnValue(&function{name: name, native: fn})
}

// stdNamespace builds the parts of the standard library that lowered
// code refers to: the C builtins, the C translation helpers, and
// mem.zeroes.
func (m *Machine) stdNamespace() *namespace {
	builtins := make(map[string]Value)
	for name, fn := range libc {
		builtins["__builtin_"+name] = m.native("__builtin_"+name, fn)
	}
	helpers := map[string]Value{
		"signedRemainder":   m.native("signedRemainder", signedRemainder),
		"cast":              m.native("cast", helperCast),
		"div":               m.native("div", helperDiv),
		"rem":               m.native("rem", helperRem),
		"sizeof":            m.native("sizeof", helperSizeof),
		"CAST_OR_CALL":      m.native("CAST_OR_CALL", castOrCall),
		"promoteIntLiteral": m.native("promoteIntLiteral", promoteIntLiteral),
		"FlexibleArrayType": m.native("FlexibleArrayType", flexibleArrayType),
	}
	zig := map[string]Value{
		"c_builtins":    {T: m.prims["namespace"], NS: nativeNamespace("c_builtins", builtins)},
		"c_translation": {T: m.prims["namespace"], NS: nativeNamespace("c_translation", helpers)},
	}
	mem := map[string]Value{
		"zeroes": m.native("zeroes", func(m *Machine, args []Value) (Value, error) {
			t, err := typeParam(args, 0)
			if err != nil {
				return Value{}, err
			}
			return m.zero(t), nil
		}),
	}
	return nativeNamespace("std", map[string]Value{
		"zig": {T: m.prims["namespace"], NS: nativeNamespace("zig", zig)},
		"mem": {T: m.prims["namespace"], NS: nativeNamespace("mem", mem)},
	})
}

func typeParam(args []Value, i int) (*rtype, error) {
	if i >= len(args) || args[i].T.kind != kType {
		return nil, fmt.Errorf("argument %d must be a type", i+1)
	}
	return args[i].Ty, nil
}

func wantArgs(name string, args []Value, n int) error {
	if len(args) < n {
		return fmt.Errorf("%s expects %d arguments, found %d", name, n, len(args))
	}
	return nil
}

func signedRemainder(m *Machine, args []Value) (Value, error) {
	if err := wantArgs("signedRemainder", args, 2); err != nil {
		return Value{}, err
	}
	a, b := args[0], args[1]
	if a.T.isComptime() && !b.T.isComptime() {
		a, _ = m.coerce(a, b.T)
	}
	return m.divide("rem", a, b)
}

// helperCast is the C cast used by macros: it accepts any scalar
// conversion, wrapping integers to the destination width.
func helperCast(m *Machine, args []Value) (Value, error) {
	t, err := typeParam(args, 0)
	if err != nil {
		return Value{}, err
	}
	if err := wantArgs("cast", args, 2); err != nil {
		return Value{}, err
	}
	return m.cCast(t, args[1])
}

func (m *Machine) cCast(t *rtype, v Value) (Value, error) {
	switch t.kind {
	case kPointer:
		if v.T.kind == kFunc {
			return Value{T: t, N: m.fnAddr(v.Fn)}, nil
		}
		if v.T.kind == kFloat || v.T.kind == kComptimeFloat {
			break
		}
		return Value{T: t, N: wrap(bigOf(v), int(m.ptrSize*8))}, nil
	case kInt:
		switch v.T.kind {
		case kFloat, kComptimeFloat:
			return m.convScalar(lir.IntFromFloat, v, t)
		case kFunc:
			return m.uintValue(t, m.fnAddr(v.Fn)), nil
		}
		return m.intValue(t, bigOf(v)), nil
	case kFloat:
		return m.floatValue(t, asFloat(v)), nil
	case kBool:
		return m.boolValue(truthy(v)), nil
	case kVoid:
		return m.voidValue(), nil
	}
	return m.coerce(v, t)
}

// peer brings two macro operands to a common type.
func (m *Machine) peer(a, b Value) (Value, Value, error) {
	var err error
	switch {
	case a.T.isComptime() && !b.T.isComptime():
		a, err = m.coerce(a, b.T)
	case b.T.isComptime() && !a.T.isComptime():
		b, err = m.coerce(b, a.T)
	case a.T.kind == kFloat && b.T.kind != kFloat:
		b, err = m.coerce(b, a.T)
	case b.T.kind == kFloat && a.T.kind != kFloat:
		a, err = m.coerce(a, b.T)
	case a.T.kind == kInt && b.T.kind == kInt && a.T != b.T:
		if b.T.bits > a.T.bits || b.T.bits == a.T.bits && !b.T.signed {
			a, err = m.coerce(a, b.T)
		} else {
			b, err = m.coerce(b, a.T)
		}
	}
	return a, b, err
}

func helperDiv(m *Machine, args []Value) (Value, error) {
	if err := wantArgs("div", args, 2); err != nil {
		return Value{}, err
	}
	a, b, err := m.peer(args[0], args[1])
	if err != nil {
		return Value{}, err
	}
	if a.T.kind == kFloat || a.T.kind == kComptimeFloat {
		return m.floatValue(a.T, asFloat(a)/asFloat(b)), nil
	}
	return m.divide("divTrunc", a, b)
}

func helperRem(m *Machine, args []Value) (Value, error) {
	if err := wantArgs("rem", args, 2); err != nil {
		return Value{}, err
	}
	a, b, err := m.peer(args[0], args[1])
	if err != nil {
		return Value{}, err
	}
	return m.divide("rem", a, b)
}

func helperSizeof(m *Machine, args []Value) (Value, error) {
	if err := wantArgs("sizeof", args, 1); err != nil {
		return Value{}, err
	}
	v := args[0]
	var size int64
	switch v.T.kind {
	case kType:
		size = v.Ty.size
	case kComptimeInt:
		size = m.prims["c_int"].size
	case kComptimeFloat:
		size = 8
	default:
		size = v.T.size
	}
	return m.uintValue(m.prims["usize"], uint64(size)), nil
}

func castOrCall(m *Machine, args []Value) (Value, error) {
	if len(args) == 0 {
		return Value{}, fmt.Errorf("CAST_OR_CALL expects arguments")
	}
	if args[0].T.kind == kType {
		return helperCast(m, args)
	}
	fv := args[0]
	fn := fv.Fn
	if fv.T.kind == kPointer {
		fn = m.fnAddrs[fv.N]
	}
	if fn == nil {
		return Value{}, fmt.Errorf("CAST_OR_CALL of '%s'", fv.T)
	}
	return m.invoke(fn, args[1:])
}

// promoteIntLiteral gives an integer literal the first C type that holds
// it, following the suffix and radix rules of C.
func promoteIntLiteral(m *Machine, args []Value) (Value, error) {
	t, err := typeParam(args, 0)
	if err != nil {
		return Value{}, err
	}
	if err := wantArgs("promoteIntLiteral", args, 3); err != nil {
		return Value{}, err
	}
	order := []string{"c_int", "c_long", "c_longlong", "c_ulonglong"}
	if args[2].Sym != "decimal" {
		order = []string{"c_int", "c_uint", "c_long", "c_ulong", "c_longlong", "c_ulonglong"}
	}
	start := 0
	for i, name := range order {
		if name == t.name {
			start = i
		}
	}
	n := bigOf(args[1])
	for _, name := range order[start:] {
		if c := m.prims[name]; fits(n, c) {
			return m.intValue(c, n), nil
		}
	}
	return Value{}, &CompileError{Msg: fmt.Sprintf("integer literal '%s' is too large", n)}
}

func flexibleArrayType(m *Machine, args []Value) (Value, error) {
	self, err := typeParam(args, 0)
	if err != nil {
		return Value{}, err
	}
	elem, err := typeParam(args, 1)
	if err != nil {
		return Value{}, err
	}
	if self.kind != kPointer {
		return Value{}, fmt.Errorf("FlexibleArrayType needs a pointer, found '%s'", self)
	}
	p := m.pointerTo(elem, lir.PtrC, false)
	if self.isConst {
		p.isConst = true
		p.name = "[*c]const " + elem.name
	}
	return m.typeValue(p), nil
}

// libc holds the native implementations of the C library functions and
// compiler builtins programs may call. Builtins are exposed with the
// __builtin_ prefix.
var libc = map[string]nativeFn{
	"abs":               intAbs("c_int"),
	"labs":              intAbs("c_long"),
	"llabs":             intAbs("c_longlong"),
	"bswap16":           bswap(16),
	"bswap32":           bswap(32),
	"bswap64":           bswap(64),
	"popcount":          bitCount("popcount", "c_uint"),
	"popcountl":         bitCount("popcount", "c_ulong"),
	"popcountll":        bitCount("popcount", "c_ulonglong"),
	"clz":               bitCount("clz", "c_uint"),
	"clzl":              bitCount("clz", "c_ulong"),
	"clzll":             bitCount("clz", "c_ulonglong"),
	"ctz":               bitCount("ctz", "c_uint"),
	"ctzl":              bitCount("ctz", "c_ulong"),
	"ctzll":             bitCount("ctz", "c_ulonglong"),
	"parity":            bitCount("parity", "c_uint"),
	"parityl":           bitCount("parity", "c_ulong"),
	"parityll":          bitCount("parity", "c_ulonglong"),
	"ffs":               bitCount("ffs", "c_uint"),
	"ffsl":              bitCount("ffs", "c_ulong"),
	"ffsll":             bitCount("ffs", "c_ulonglong"),
	"sqrt":              mathFn(math.Sqrt, false),
	"sqrtf":             mathFn(math.Sqrt, true),
	"sin":               mathFn(math.Sin, false),
	"sinf":              mathFn(math.Sin, true),
	"cos":               mathFn(math.Cos, false),
	"cosf":              mathFn(math.Cos, true),
	"exp":               mathFn(math.Exp, false),
	"expf":              mathFn(math.Exp, true),
	"exp2":              mathFn(math.Exp2, false),
	"exp2f":             mathFn(math.Exp2, true),
	"log":               mathFn(math.Log, false),
	"logf":              mathFn(math.Log, true),
	"log2":              mathFn(math.Log2, false),
	"log2f":             mathFn(math.Log2, true),
	"log10":             mathFn(math.Log10, false),
	"log10f":            mathFn(math.Log10, true),
	"fabs":              mathFn(math.Abs, false),
	"fabsf":             mathFn(math.Abs, true),
	"floor":             mathFn(math.Floor, false),
	"floorf":            mathFn(math.Floor, true),
	"ceil":              mathFn(math.Ceil, false),
	"ceilf":             mathFn(math.Ceil, true),
	"round":             mathFn(math.Round, false),
	"roundf":            mathFn(math.Round, true),
	"trunc":             mathFn(math.Trunc, false),
	"truncf":            mathFn(math.Trunc, true),
	"pow":               pow,
	"nan":               nan(false),
	"nanf":              nan(true),
	"inf":               floatConst(math.Inf(1), false),
	"inff":              floatConst(math.Inf(1), true),
	"huge_val":          floatConst(math.Inf(1), false),
	"huge_valf":         floatConst(math.Inf(1), true),
	"signbit":           floatTest(math.Signbit),
	"signbitf":          floatTest(math.Signbit),
	"isnan":             floatTest(math.IsNaN),
	"isinf":             floatTest(func(f float64) bool { return math.IsInf(f, 0) }),
	"expect":            expect,
	"memcpy":            memcpy,
	"memmove":           memcpy,
	"memset":            memset,
	"memcmp":            memcmp,
	"strlen":            strlen,
	"strcmp":            strcmp,
	"strncmp":           strncmp,
	"strcpy":            strcpy,
	"strncpy":           strncpy,
	"strchr":            strchr,
	"wcslen":            wcslen,
	"wcscmp":            wcscmp,
	"atoi":              atoi,
	"malloc":            malloc,
	"calloc":            calloc,
	"realloc":           realloc,
	"free":              free,
	"abort":             abort,
	"exit":              exit,
	"printf":            printf,
	"puts":              puts,
	"putchar":           putchar,
	"__assert_fail":     assertFail,
	"alloca_with_align": alloca,
	"alloca":            alloca,
}

func (m *Machine) cInt(n int64) Value { return m.sintValue(m.prims["c_int"], n) }

func (m *Machine) voidPtr(addr uint64) Value {
	return Value{T: m.pointerTo(m.prims["anyopaque"], lir.PtrOne, true), N: addr}
}

func intAbs(typ string) nativeFn {
	return func(m *Machine, args []Value) (Value, error) {
		if err := wantArgs("abs", args, 1); err != nil {
			return Value{}, err
		}
		t := m.prims[typ]
		v := asInt64(args[0])
		if v < 0 {
			v = -v
		}
		return m.sintValue(t, v), nil
	}
}

func bswap(width int) nativeFn {
	return func(m *Machine, args []Value) (Value, error) {
		if err := wantArgs("bswap", args, 1); err != nil {
			return Value{}, err
		}
		n := args[0].N
		var r uint64
		switch width {
		case 16:
			r = uint64(bits.ReverseBytes16(uint16(n)))
		case 32:
			r = uint64(bits.ReverseBytes32(uint32(n)))
		default:
			r = bits.ReverseBytes64(n)
		}
		return m.uintValue(m.mustPrim(fmt.Sprintf("u%d", width)), r), nil
	}
}

func bitCount(op, typ string) nativeFn {
	return func(m *Machine, args []Value) (Value, error) {
		if err := wantArgs(op, args, 1); err != nil {
			return Value{}, err
		}
		w := m.prims[typ].bits
		n := args[0].N & mask(w)
		var r int
		switch op {
		case "popcount":
			r = bits.OnesCount64(n)
		case "clz":
			r = bits.LeadingZeros64(n) - (64 - w)
		case "ctz":
			r = min(bits.TrailingZeros64(n), w)
		case "parity":
			r = bits.OnesCount64(n) & 1
		case "ffs":
			if n != 0 {
				r = bits.TrailingZeros64(n) + 1
			}
		}
		return m.cInt(int64(r)), nil
	}
}

func mathFn(f func(float64) float64, single bool) nativeFn {
	return func(m *Machine, args []Value) (Value, error) {
		if err := wantArgs("math", args, 1); err != nil {
			return Value{}, err
		}
		t := m.prims["f64"]
		if single {
			t = m.prims["f32"]
		}
		return m.floatValue(t, f(asFloat(args[0]))), nil
	}
}

func pow(m *Machine, args []Value) (Value, error) {
	if err := wantArgs("pow", args, 2); err != nil {
		return Value{}, err
	}
	return m.floatValue(m.prims["f64"], math.Pow(asFloat(args[0]), asFloat(args[1]))), nil
}

func floatConst(f float64, single bool) nativeFn {
	return func(m *Machine, args []Value) (Value, error) {
		if single {
			return m.floatValue(m.prims["f32"], f), nil
		}
		return m.floatValue(m.prims["f64"], f), nil
	}
}

// nan builds a quiet NaN whose payload is the number the argument string
// spells, truncated to the mantissa.
func nan(single bool) nativeFn {
	return func(m *Machine, args []Value) (Value, error) {
		var payload uint64
		if len(args) == 1 && args[0].T.kind == kPointer {
			s, err := m.mem.readString(args[0].N)
			if err != nil {
				return Value{}, err
			}
			payload, _ = strconv.ParseUint(s, 0, 64)
		}
		if single {
			f := math.Float32frombits(0x7FC00000 | uint32(payload&0x7FFFFF))
			return m.floatValue(m.prims["f32"], float64(f)), nil
		}
		f := math.Float64frombits(0x7FF8000000000000 | payload&0xFFFFFFFFFFFFF)
		return m.floatValue(m.prims["f64"], f), nil
	}
}

func floatTest(test func(float64) bool) nativeFn {
	return func(m *Machine, args []Value) (Value, error) {
		if err := wantArgs("float test", args, 1); err != nil {
			return Value{}, err
		}
		if test(asFloat(args[0])) {
			return m.cInt(1), nil
		}
		return m.cInt(0), nil
	}
}

func expect(m *Machine, args []Value) (Value, error) {
	if err := wantArgs("expect", args, 2); err != nil {
		return Value{}, err
	}
	return args[0], nil
}

func memcpy(m *Machine, args []Value) (Value, error) {
	if err := wantArgs("memcpy", args, 3); err != nil {
		return Value{}, err
	}
	n := int64(args[2].N)
	if n == 0 {
		return args[0], nil
	}
	data, err := m.mem.read(args[1].N, n)
	if err != nil {
		return Value{}, err
	}
	if err := m.mem.write(args[0].N, data); err != nil {
		return Value{}, err
	}
	return args[0], nil
}

func memset(m *Machine, args []Value) (Value, error) {
	if err := wantArgs("memset", args, 3); err != nil {
		return Value{}, err
	}
	n := int64(args[2].N)
	if n == 0 {
		return args[0], nil
	}
	data := []byte(strings.Repeat(string([]byte{byte(args[1].N)}), int(n)))
	if err := m.mem.write(args[0].N, data); err != nil {
		return Value{}, err
	}
	return args[0], nil
}

func memcmp(m *Machine, args []Value) (Value, error) {
	if err := wantArgs("memcmp", args, 3); err != nil {
		return Value{}, err
	}
	n := int64(args[2].N)
	if n == 0 {
		return m.cInt(0), nil
	}
	a, err := m.mem.read(args[0].N, n)
	if err != nil {
		return Value{}, err
	}
	b, err := m.mem.read(args[1].N, n)
	if err != nil {
		return Value{}, err
	}
	for i := range a {
		if a[i] != b[i] {
			return m.cInt(int64(a[i]) - int64(b[i])), nil
		}
	}
	return m.cInt(0), nil
}

func strlen(m *Machine, args []Value) (Value, error) {
	if err := wantArgs("strlen", args, 1); err != nil {
		return Value{}, err
	}
	s, err := m.mem.readString(args[0].N)
	if err != nil {
		return Value{}, err
	}
	return m.uintValue(m.prims["usize"], uint64(len(s))), nil
}

// wideString reads the NUL-terminated wide string p points at.
func (m *Machine) wideString(p Value) ([]uint64, error) {
	size := int64(4)
	if p.T.kind == kPointer {
		if el, err := p.T.elem(); err == nil && el.size > 0 {
			size = el.size
		}
	}
	return m.mem.cstring(p.N, size)
}

func wcslen(m *Machine, args []Value) (Value, error) {
	if err := wantArgs("wcslen", args, 1); err != nil {
		return Value{}, err
	}
	units, err := m.wideString(args[0])
	if err != nil {
		return Value{}, err
	}
	return m.uintValue(m.prims["usize"], uint64(len(units))), nil
}

// wcscmp compares wide characters as signed values, like a 32-bit wchar_t.
func wcscmp(m *Machine, args []Value) (Value, error) {
	if err := wantArgs("wcscmp", args, 2); err != nil {
		return Value{}, err
	}
	a, err := m.wideString(args[0])
	if err != nil {
		return Value{}, err
	}
	b, err := m.wideString(args[1])
	if err != nil {
		return Value{}, err
	}
	for i := 0; i < len(a) && i < len(b); i++ {
		if x, y := int32(a[i]), int32(b[i]); x != y {
			if x < y {
				return m.cInt(-1), nil
			}
			return m.cInt(1), nil
		}
	}
	switch {
	case len(a) < len(b):
		return m.cInt(-1), nil
	case len(a) > len(b):
		return m.cInt(1), nil
	}
	return m.cInt(0), nil
}

func cmpStrings(a, b string) int64 {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return int64(a[i]) - int64(b[i])
		}
	}
	return int64(len(a)) - int64(len(b))
}

func strcmp(m *Machine, args []Value) (Value, error) {
	if err := wantArgs("strcmp", args, 2); err != nil {
		return Value{}, err
	}
	a, err := m.mem.readString(args[0].N)
	if err != nil {
		return Value{}, err
	}
	b, err := m.mem.readString(args[1].N)
	if err != nil {
		return Value{}, err
	}
	return m.cInt(cmpStrings(a, b)), nil
}

func strncmp(m *Machine, args []Value) (Value, error) {
	if err := wantArgs("strncmp", args, 3); err != nil {
		return Value{}, err
	}
	a, err := m.mem.readString(args[0].N)
	if err != nil {
		return Value{}, err
	}
	b, err := m.mem.readString(args[1].N)
	if err != nil {
		return Value{}, err
	}
	n := int(args[2].N)
	if len(a) > n {
		a = a[:n]
	}
	if len(b) > n {
		b = b[:n]
	}
	return m.cInt(cmpStrings(a, b)), nil
}

func strcpy(m *Machine, args []Value) (Value, error) {
	if err := wantArgs("strcpy", args, 2); err != nil {
		return Value{}, err
	}
	s, err := m.mem.readString(args[1].N)
	if err != nil {
		return Value{}, err
	}
	if err := m.mem.write(args[0].N, append([]byte(s), 0)); err != nil {
		return Value{}, err
	}
	return args[0], nil
}

func strncpy(m *Machine, args []Value) (Value, error) {
	if err := wantArgs("strncpy", args, 3); err != nil {
		return Value{}, err
	}
	s, err := m.mem.readString(args[1].N)
	if err != nil {
		return Value{}, err
	}
	buf := make([]byte, int(args[2].N))
	copy(buf, s)
	if err := m.mem.write(args[0].N, buf); err != nil {
		return Value{}, err
	}
	return args[0], nil
}

func strchr(m *Machine, args []Value) (Value, error) {
	if err := wantArgs("strchr", args, 2); err != nil {
		return Value{}, err
	}
	s, err := m.mem.readString(args[0].N)
	if err != nil {
		return Value{}, err
	}
	c := byte(args[1].N)
	res := args[0]
	if c == 0 {
		res.N += uint64(len(s))
		return res, nil
	}
	i := strings.IndexByte(s, c)
	if i < 0 {
		res.N = 0
		return res, nil
	}
	res.N += uint64(i)
	return res, nil
}

func atoi(m *Machine, args []Value) (Value, error) {
	if err := wantArgs("atoi", args, 1); err != nil {
		return Value{}, err
	}
	s, err := m.mem.readString(args[0].N)
	if err != nil {
		return Value{}, err
	}
	s = strings.TrimLeft(s, " \t\n\v\f\r")
	end := 0
	for end < len(s) && (s[end] >= '0' && s[end] <= '9' || end == 0 && (s[end] == '-' || s[end] == '+')) {
		end++
	}
	n, _ := strconv.ParseInt(s[:end], 10, 64)
	return m.cInt(n), nil
}

func malloc(m *Machine, args []Value) (Value, error) {
	if err := wantArgs("malloc", args, 1); err != nil {
		return Value{}, err
	}
	addr, err := m.mem.alloc(int64(args[0].N), int64(m.target.MaxAlign), "heap")
	if err != nil {
		return m.voidPtr(0), nil
	}
	return m.voidPtr(addr), nil
}

func calloc(m *Machine, args []Value) (Value, error) {
	if err := wantArgs("calloc", args, 2); err != nil {
		return Value{}, err
	}
	n := new(big.Int).Mul(bigOf(args[0]), bigOf(args[1]))
	if !n.IsInt64() {
		return m.voidPtr(0), nil
	}
	addr, err := m.mem.alloc(n.Int64(), int64(m.target.MaxAlign), "heap")
	if err != nil {
		return m.voidPtr(0), nil
	}
	return m.voidPtr(addr), nil
}

func realloc(m *Machine, args []Value) (Value, error) {
	if err := wantArgs("realloc", args, 2); err != nil {
		return Value{}, err
	}
	old, n := args[0].N, int64(args[1].N)
	addr, err := m.mem.alloc(n, int64(m.target.MaxAlign), "heap")
	if err != nil {
		return m.voidPtr(0), nil
	}
	if old != 0 {
		size, ok := m.mem.size(old)
		if !ok {
			return Value{}, &Panic{Msg: fmt.Sprintf("realloc of invalid pointer 0x%x", old)}
		}
		data, err := m.mem.read(old, min(size, n))
		if err != nil {
			return Value{}, err
		}
		if err := m.mem.write(addr, data); err != nil {
			return Value{}, err
		}
		if err := m.mem.free(old); err != nil {
			return Value{}, err
		}
	}
	return m.voidPtr(addr), nil
}

func free(m *Machine, args []Value) (Value, error) {
	if err := wantArgs("free", args, 1); err != nil {
		return Value{}, err
	}
	return m.voidValue(), m.mem.free(args[0].N)
}

func alloca(m *Machine, args []Value) (Value, error) {
	if err := wantArgs("alloca", args, 1); err != nil {
		return Value{}, err
	}
	align := int64(m.target.MaxAlign)
	if len(args) > 1 {
		align = max(align, int64(args[1].N)/8)
	}
	addr, err := m.mem.alloc(int64(args[0].N), align, "alloca")
	if err != nil {
		return Value{}, err
	}
	return m.voidPtr(addr), nil
}

func abort(m *Machine, args []Value) (Value, error) {
	return Value{}, ErrAbort
}

func exit(m *Machine, args []Value) (Value, error) {
	if err := wantArgs("exit", args, 1); err != nil {
		return Value{}, err
	}
	return Value{}, &exitError{code: int(asInt64(args[0]))}
}

func assertFail(m *Machine, args []Value) (Value, error) {
	if err := wantArgs("__assert_fail", args, 4); err != nil {
		return Value{}, err
	}
	var s [3]string
	for i, a := range []Value{args[0], args[1], args[3]} {
		str, err := m.mem.readString(a.N)
		if err != nil {
			return Value{}, err
		}
		s[i] = str
	}
	return Value{}, fmt.Errorf("%w: %s:%d: %s: Assertion `%s' failed", ErrAbort, s[1], asInt64(args[2]), s[2], s[0])
}

func printf(m *Machine, args []Value) (Value, error) {
	if err := wantArgs("printf", args, 1); err != nil {
		return Value{}, err
	}
	format, err := m.mem.readString(args[0].N)
	if err != nil {
		return Value{}, err
	}
	out, err := m.format(format, args[1:])
	if err != nil {
		return Value{}, err
	}
	if _, err := io.WriteString(m.out, out); err != nil {
		return Value{}, err
	}
	return m.cInt(int64(len(out))), nil
}

func puts(m *Machine, args []Value) (Value, error) {
	if err := wantArgs("puts", args, 1); err != nil {
		return Value{}, err
	}
	s, err := m.mem.readString(args[0].N)
	if err != nil {
		return Value{}, err
	}
	if _, err := io.WriteString(m.out, s+"\n"); err != nil {
		return Value{}, err
	}
	return m.cInt(int64(len(s) + 1)), nil
}

func putchar(m *Machine, args []Value) (Value, error) {
	if err := wantArgs("putchar", args, 1); err != nil {
		return Value{}, err
	}
	c := byte(args[0].N)
	if _, err := m.out.Write([]byte{c}); err != nil {
		return Value{}, err
	}
	return m.cInt(int64(c)), nil
}
