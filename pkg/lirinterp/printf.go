package lirinterp

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// spec is one parsed printf conversion
type spec struct {
	flags    string
	width    int
	hasWidth bool
	prec     int
	hasPrec  bool
	length   string
	verb     byte
}

// format renders a printf format string with C semantics.
func (m *Machine) format(f string, args []Value) (string, error) {
	var out strings.Builder
	next := func() (Value, error) {
		if len(args) == 0 {
			return Value{}, &Panic{Msg: "printf: too few arguments for format"}
		}
		v := args[0]
		args = args[1:]
		return v, nil
	}
	for i := 0; i < len(f); i++ {
		if f[i] != '%' {
			out.WriteByte(f[i])
			continue
		}
		i++
		var s spec
		for ; i < len(f) && strings.IndexByte("-+ #0", f[i]) >= 0; i++ {
			s.flags += string(f[i])
		}
		if i < len(f) && f[i] == '*' {
			v, err := next()
			if err != nil {
				return "", err
			}
			s.width, s.hasWidth = int(asInt64(v)), true
			if s.width < 0 {
				s.flags += "-"
				s.width = -s.width
			}
			i++
		}
		for ; i < len(f) && f[i] >= '0' && f[i] <= '9'; i++ {
			s.width, s.hasWidth = s.width*10+int(f[i]-'0'), true
		}
		if i < len(f) && f[i] == '.' {
			s.hasPrec = true
			i++
			if i < len(f) && f[i] == '*' {
				v, err := next()
				if err != nil {
					return "", err
				}
				s.prec = int(asInt64(v))
				if s.prec < 0 {
					s.hasPrec = false
				}
				i++
			}
			for ; i < len(f) && f[i] >= '0' && f[i] <= '9'; i++ {
				s.prec = s.prec*10 + int(f[i]-'0')
			}
		}
		for ; i < len(f) && strings.IndexByte("hlzjtLq", f[i]) >= 0; i++ {
			s.length += string(f[i])
		}
		if i >= len(f) {
			return "", fmt.Errorf("printf: incomplete conversion at end of format")
		}
		s.verb = f[i]
		if s.verb == '%' {
			out.WriteByte('%')
			continue
		}
		v, err := next()
		if err != nil {
			return "", err
		}
		text, err := m.convert(s, v)
		if err != nil {
			return "", err
		}
		out.WriteString(text)
	}
	return out.String(), nil
}

// lengthBits is the width of an integer argument with the given length
// modifier.
func (m *Machine) lengthBits(length string) int {
	switch length {
	case "hh":
		return 8
	case "h":
		return m.target.ShortBits
	case "l":
		return m.target.LongBits
	case "ll", "q", "j", "L":
		return 64
	case "z", "t":
		return m.target.PointerBits
	}
	return m.target.IntBits
}

func (s spec) goVerb(verb string) string {
	var b strings.Builder
	b.WriteByte('%')
	b.WriteString(s.flags)
	if s.hasWidth {
		b.WriteString(strconv.Itoa(s.width))
	}
	if s.hasPrec {
		b.WriteByte('.')
		b.WriteString(strconv.Itoa(s.prec))
	}
	b.WriteString(verb)
	return b.String()
}

// pad applies the field width to an already converted string.
func (s spec) pad(text string) string {
	if !s.hasWidth || len(text) >= s.width {
		return text
	}
	fill := strings.Repeat(" ", s.width-len(text))
	if strings.Contains(s.flags, "-") {
		return text + fill
	}
	return fill + text
}

func (m *Machine) convert(s spec, v Value) (string, error) {
	switch s.verb {
	case 'd', 'i':
		n := signExtend(uint64(asInt64(v)), m.lengthBits(s.length))
		return fmt.Sprintf(s.goVerb("d"), n), nil
	case 'u', 'x', 'X', 'o':
		n := uint64(asInt64(v)) & mask(m.lengthBits(s.length))
		verb := map[byte]string{'u': "d", 'x': "x", 'X': "X", 'o': "o"}[s.verb]
		if n == 0 && s.verb != 'o' {
			s.flags = strings.ReplaceAll(s.flags, "#", "")
		}
		if s.hasPrec && s.prec == 0 && n == 0 {
			return s.pad(""), nil
		}
		return fmt.Sprintf(s.goVerb(verb), n), nil
	case 'c':
		s.hasPrec = false
		return s.pad(string([]byte{byte(v.N)})), nil
	case 's':
		if v.N == 0 {
			return s.pad("(null)"), nil
		}
		str, err := m.mem.readString(v.N)
		if err != nil {
			return "", err
		}
		if s.hasPrec && s.prec < len(str) {
			str = str[:s.prec]
		}
		return s.pad(str), nil
	case 'p':
		if v.N == 0 {
			return s.pad("(nil)"), nil
		}
		return s.pad(fmt.Sprintf("0x%x", v.N)), nil
	case 'f', 'F', 'e', 'E', 'g', 'G', 'a', 'A':
		return m.convertFloat(s, asFloat(v)), nil
	}
	return "", unsupported("printf conversion '%%%c'", s.verb)
}

func (m *Machine) convertFloat(s spec, f float64) string {
	upper := s.verb >= 'A' && s.verb <= 'Z'
	if math.IsInf(f, 0) || math.IsNaN(f) {
		text := "inf"
		if math.IsNaN(f) {
			text = "nan"
		}
		if math.Signbit(f) {
			text = "-" + text
		} else if strings.Contains(s.flags, "+") {
			text = "+" + text
		} else if strings.Contains(s.flags, " ") {
			text = " " + text
		}
		if upper {
			text = strings.ToUpper(text)
		}
		return s.pad(text)
	}
	verb := strings.ToLower(string(s.verb))
	if verb == "a" {
		prec := -1
		if s.hasPrec {
			prec = s.prec
		}
		text := strconv.FormatFloat(math.Abs(f), 'x', prec, 64)
		// C prints the shortest exponent
		if i := strings.LastIndexAny(text, "+-"); i > 0 && strings.HasPrefix(text[i+1:], "0") && len(text)-i > 2 {
			text = text[:i+1] + text[i+2:]
		}
		if math.Signbit(f) {
			text = "-" + text
		} else if strings.Contains(s.flags, "+") {
			text = "+" + text
		}
		if upper {
			text = strings.ToUpper(text)
		}
		return s.pad(text)
	}
	if !s.hasPrec {
		s.prec, s.hasPrec = 6, true
	}
	if verb == "g" && s.prec == 0 {
		s.prec = 1
	}
	text := fmt.Sprintf(s.goVerb(verb), f)
	if upper {
		text = strings.ToUpper(text)
	}
	return text
}
