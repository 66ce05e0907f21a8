package lirgen

import (
	"encoding/binary"
	"math"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/encoding/unicode/utf32"

	"github.com/raymyers/ralph-translate-c/pkg/cabs"
	"github.com/raymyers/ralph-translate-c/pkg/ctypes"
	"github.com/raymyers/ralph-translate-c/pkg/lir"
)

// intText spells an integer constant in Zig, keeping its radix.
func intText(c cabs.Constant) string {
	text := strings.ToLower(c.Text)
	switch c.Radix {
	case 16:
		if strings.HasPrefix(text, "0x") {
			return "0x" + c.Text[2:]
		}
	case 8:
		if trimmed := strings.TrimLeft(text, "0"); trimmed != "" {
			return "0o" + trimmed
		}
		return "0"
	case 2:
		return text
	}
	if c.Text == "" {
		return strconv.FormatUint(c.Value, 10)
	}
	return c.Text
}

var wholeFloat = regexp.MustCompile(`^([0-9]+)\.0*$`)

// floatText spells a floating constant in Zig: no suffix, no leading or
// trailing dot, and whole numbers without a fraction.
func floatText(f cabs.FloatConst) string {
	text := f.Text
	if text == "" {
		return strconv.FormatFloat(f.Value, 'g', -1, 64)
	}
	if strings.HasPrefix(strings.ToLower(text), "0x") {
		return text
	}
	if m := wholeFloat.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	if strings.HasPrefix(text, ".") {
		text = "0" + text
	}
	if i := strings.Index(text, "."); i >= 0 && (i == len(text)-1 || !isDigit(text[i+1])) {
		if e := strings.IndexAny(text, "eE"); e != i+1 {
			text = text[:i] + text[i+1:]
		}
	}
	return text
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func (t *translator) intLiteral(c cabs.Constant) value {
	k := int64(c.Value)
	v := value{x: lir.Int(intText(c)), typ: c.Typ, untyped: true, lit: true}
	if c.Value <= math.MaxInt64 {
		v.konst = &k
	}
	return v
}

func (t *translator) floatLiteral(f cabs.FloatConst) value {
	text := floatText(f)
	if short := strconv.FormatFloat(f.Value, 'g', -1, 64); !strings.HasPrefix(strings.ToLower(f.Text), "0x") &&
		f.Text != "" && f.Value != 0 && !math.IsInf(f.Value, 0) && significand(short) != significand(f.Text) {
		// more digits than the value holds: spell the rounded value
		text = short
	}
	return value{x: lir.FloatLit{Text: text}, typ: f.Typ, untyped: true, lit: true}
}

// significand returns the significant decimal digits of a float spelling.
func significand(text string) string {
	if e := strings.IndexAny(text, "eE"); e >= 0 {
		text = text[:e]
	}
	text = strings.ReplaceAll(text, ".", "")
	return strings.TrimRight(strings.TrimLeft(text, "0"), "0")
}

// charLiteral lowers a character constant. Plain single characters keep
// their character spelling; multi-character and out-of-range constants
// become their integer value.
func (t *translator) charLiteral(c cabs.CharLiteral) value {
	k := c.Value
	v := value{typ: c.Typ, untyped: true, lit: true, konst: &k}
	if len(c.Chars) == 1 && c.Value >= 0 && c.Value <= 0x10FFFF && rune(c.Value) == c.Chars[0] {
		v.x = lir.CharLit{Value: rune(c.Value)}
	} else {
		v.x = lir.Int(strconv.FormatInt(c.Value, 10))
	}
	return v
}

// stringUnits returns the code units of a string literal in its encoding.
func stringUnits(s cabs.StringLiteral) []uint32 {
	switch s.Prefix {
	case "u":
		b, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder().Bytes([]byte(s.Value))
		if err != nil {
			break
		}
		out := make([]uint32, len(b)/2)
		for i := range out {
			out[i] = uint32(binary.LittleEndian.Uint16(b[2*i:]))
		}
		return out
	case "U", "L":
		b, err := utf32.UTF32(utf32.LittleEndian, utf32.IgnoreBOM).NewEncoder().Bytes([]byte(s.Value))
		if err != nil {
			break
		}
		out := make([]uint32, len(b)/4)
		for i := range out {
			out[i] = binary.LittleEndian.Uint32(b[4*i:])
		}
		return out
	}
	out := make([]uint32, len(s.Value))
	for i := 0; i < len(s.Value); i++ {
		out[i] = uint32(s.Value[i])
	}
	return out
}

// isNarrow reports whether a string literal is made of bytes.
func isNarrow(s cabs.StringLiteral) bool {
	return s.Prefix == "" || s.Prefix == "u8"
}

// stringLiteral lowers a string literal used as an array value.
func (t *translator) stringLiteral(s cabs.StringLiteral) value {
	if isNarrow(s) {
		return typedValue(lir.StringLit{Value: s.Value}, s.Typ)
	}
	arr := ctypes.Canonical(s.Typ).(ctypes.Tarray)
	units := stringUnits(s)
	init := lir.ArrayInit{T: lir.Array{Len: int64(len(units)), Sentinel: true, Elem: t.zigType(arr.Elem)}, Inline: true}
	for _, u := range units {
		init.Elems = append(init.Elems, unitLiteral(u))
	}
	return typedValue(init, s.Typ)
}

func unitLiteral(u uint32) lir.Expr {
	if u <= 0x10FFFF && (u < 0xD800 || u > 0xDFFF) {
		return lir.CharLit{Value: rune(u)}
	}
	return lir.Int(strconv.FormatUint(uint64(u), 10))
}

// stringInit lowers a string literal initializing a character array of
// n elements. The array type is narrowed to a sentinel-terminated one when
// the literal fills it exactly.
func (t *translator) stringInit(s cabs.StringLiteral, arr ctypes.Tarray) (lir.Type, lir.Expr) {
	elem := t.zigType(arr.Elem)
	n := arr.Size
	count := func(k int64) lir.Expr { return lir.Int(strconv.FormatInt(k, 10)) }
	pad := func(k int64) lir.Expr {
		return lir.Binary{Op: "**", L: lir.ArrayInit{T: lir.Array{Len: 1, Elem: elem}, Elems: []lir.Expr{lir.Int("0")}, Inline: true}, R: count(k)}
	}
	if n == 0 {
		return lir.Array{Elem: elem}, lir.ArrayInit{T: lir.Array{Elem: elem}}
	}
	if !isNarrow(s) {
		units := stringUnits(s)
		length := int64(len(units))
		if length == 0 {
			return lir.Array{Len: n, Elem: elem}, pad(n)
		}
		init := func(k int64, sentinel bool) lir.ArrayInit {
			a := lir.ArrayInit{T: lir.Array{Len: k, Sentinel: sentinel, Elem: elem}}
			for _, u := range units[:k] {
				a.Elems = append(a.Elems, unitLiteral(u))
			}
			return a
		}
		switch {
		case n == length+1:
			a := init(length, true)
			return a.T, a
		case n <= length:
			a := init(n, false)
			return a.T, a
		}
		return lir.Array{Len: n, Elem: elem}, lir.Binary{Op: "++", L: init(length, false), R: pad(n - length)}
	}
	units := int64(len(s.Value))
	lit := lir.StringLit{Value: s.Value}
	switch {
	case n == units+1:
		return lir.Array{Len: units, Sentinel: true, Elem: elem}, lir.Deref{X: lit}
	case n == units:
		return lir.Array{Len: n, Elem: elem}, lir.Deref{X: lit}
	case n < units:
		return lir.Array{Len: n, Elem: elem}, lir.Deref{X: lir.Slice{X: lit, Lo: lir.Int("0"), Hi: count(n)}}
	}
	if units == 0 {
		return lir.Array{Len: n, Elem: elem}, pad(n)
	}
	head := lir.Deref{X: lir.Slice{X: lit, Lo: lir.Int("0"), Hi: count(units)}}
	return lir.Array{Len: n, Elem: elem}, lir.Binary{Op: "++", L: head, R: pad(n - units)}
}
