package cpp

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// value is the result of an #if expression, computed in intmax_t or
// uintmax_t.
type value struct {
	n        uint64
	unsigned bool
}

func signed(n int64) value { return value{n: uint64(n)} }

func truth(b bool) value {
	if b {
		return value{n: 1}
	}
	return value{}
}

func (v value) asInt() int64 { return int64(v.n) }

func (v value) isTrue() bool { return v.n != 0 }

// binaryPrec is the precedence of each binary operator; higher binds
// tighter.
var binaryPrec = map[string]int{
	"*": 10, "/": 10, "%": 10,
	"+": 9, "-": 9,
	"<<": 8, ">>": 8,
	"<": 7, ">": 7, "<=": 7, ">=": 7,
	"==": 6, "!=": 6,
	"&":  5,
	"^":  4,
	"|":  3,
	"&&": 2,
	"||": 1,
}

// exprParser evaluates a macro-expanded #if expression by precedence
// climbing. Operands in branches that are not evaluated, like the right
// side of "0 &&", are parsed without reporting division by zero.
type exprParser struct {
	toks []Token
	pos  int
}

// evalExpr evaluates toks, which must hold no identifiers.
func evalExpr(toks []Token) (value, error) {
	p := &exprParser{toks: withoutBlanks(toks)}
	if len(p.toks) == 0 {
		return value{}, fmt.Errorf("#if with no expression")
	}
	v, err := p.comma(true)
	if err != nil {
		return value{}, err
	}
	if p.pos < len(p.toks) {
		return value{}, fmt.Errorf("missing binary operator before token %q", p.toks[p.pos].Text)
	}
	return v, nil
}

func (p *exprParser) peek() Token {
	if p.pos < len(p.toks) {
		return p.toks[p.pos]
	}
	return Token{Kind: EOF}
}

func (p *exprParser) accept(punct string) bool {
	if p.peek().Is(punct) {
		p.pos++
		return true
	}
	return false
}

func (p *exprParser) comma(live bool) (value, error) {
	v, err := p.cond(live)
	for err == nil && p.accept(",") {
		v, err = p.cond(live)
	}
	return v, err
}

func (p *exprParser) cond(live bool) (value, error) {
	c, err := p.binary(1, live)
	if err != nil || !p.accept("?") {
		return c, err
	}
	a, err := p.comma(live && c.isTrue())
	if err != nil {
		return value{}, err
	}
	if !p.accept(":") {
		return value{}, fmt.Errorf("'?' without following ':'")
	}
	b, err := p.cond(live && !c.isTrue())
	if err != nil {
		return value{}, err
	}
	r := b
	if c.isTrue() {
		r = a
	}
	r.unsigned = a.unsigned || b.unsigned
	return r, nil
}

func (p *exprParser) binary(min int, live bool) (value, error) {
	lhs, err := p.unary(live)
	if err != nil {
		return value{}, err
	}
	for {
		op := p.peek()
		prec, ok := binaryPrec[op.Text]
		if op.Kind != Punct || !ok || prec < min {
			return lhs, nil
		}
		p.pos++
		rlive := live
		switch op.Text {
		case "&&":
			rlive = live && lhs.isTrue()
		case "||":
			rlive = live && !lhs.isTrue()
		}
		rhs, err := p.binary(prec+1, rlive)
		if err != nil {
			return value{}, err
		}
		if lhs, err = apply(op.Text, lhs, rhs, live); err != nil {
			return value{}, err
		}
	}
}

func (p *exprParser) unary(live bool) (value, error) {
	t := p.peek()
	if t.Kind == EOF {
		return value{}, fmt.Errorf("#if expression ends early")
	}
	p.pos++
	switch {
	case t.Is("("):
		v, err := p.comma(live)
		if err != nil {
			return value{}, err
		}
		if !p.accept(")") {
			return value{}, fmt.Errorf("missing ')' in expression")
		}
		return v, nil
	case t.Is("+"):
		return p.unary(live)
	case t.Is("-"):
		v, err := p.unary(live)
		v.n = -v.n
		return v, err
	case t.Is("~"):
		v, err := p.unary(live)
		v.n = ^v.n
		return v, err
	case t.Is("!"):
		v, err := p.unary(live)
		return truth(!v.isTrue()), err
	case t.Kind == Number:
		return parseNumber(t.Text)
	case t.Kind == CharLit:
		return parseChar(t.Text)
	case t.Kind == Ident:
		return value{}, nil
	}
	return value{}, fmt.Errorf("token %q is not valid in preprocessor expressions", t.Text)
}

// apply computes lhs op rhs with the usual arithmetic conversions.
func apply(op string, lhs, rhs value, live bool) (value, error) {
	unsigned := lhs.unsigned || rhs.unsigned
	switch op {
	case "&&":
		return truth(lhs.isTrue() && rhs.isTrue()), nil
	case "||":
		return truth(lhs.isTrue() || rhs.isTrue()), nil
	case "==":
		return truth(lhs.n == rhs.n), nil
	case "!=":
		return truth(lhs.n != rhs.n), nil
	case "<", ">", "<=", ">=":
		cmp := compare(lhs, rhs, unsigned)
		return truth(op == "<" && cmp < 0 || op == ">" && cmp > 0 || op == "<=" && cmp <= 0 || op == ">=" && cmp >= 0), nil
	case "<<", ">>":
		return shift(op, lhs, rhs), nil
	case "/", "%":
		if rhs.n == 0 {
			if live {
				return value{}, fmt.Errorf("division by zero in #if")
			}
			return value{unsigned: unsigned}, nil
		}
	}
	r := value{unsigned: unsigned}
	switch op {
	case "*":
		r.n = lhs.n * rhs.n
	case "+":
		r.n = lhs.n + rhs.n
	case "-":
		r.n = lhs.n - rhs.n
	case "&":
		r.n = lhs.n & rhs.n
	case "^":
		r.n = lhs.n ^ rhs.n
	case "|":
		r.n = lhs.n | rhs.n
	case "/":
		if unsigned {
			r.n = lhs.n / rhs.n
		} else if lhs.asInt() == math.MinInt64 && rhs.asInt() == -1 {
			r.n = lhs.n
		} else {
			r.n = uint64(lhs.asInt() / rhs.asInt())
		}
	case "%":
		if unsigned {
			r.n = lhs.n % rhs.n
		} else if rhs.asInt() != -1 {
			r.n = uint64(lhs.asInt() % rhs.asInt())
		}
	}
	return r, nil
}

func compare(lhs, rhs value, unsigned bool) int {
	switch {
	case unsigned && lhs.n < rhs.n, !unsigned && lhs.asInt() < rhs.asInt():
		return -1
	case lhs.n == rhs.n:
		return 0
	}
	return 1
}

// shift keeps the type of its left operand. A negative count shifts the
// other way.
func shift(op string, lhs, rhs value) value {
	count := rhs.asInt()
	if rhs.unsigned && rhs.n > math.MaxInt64 {
		count = math.MaxInt64
	}
	if count < 0 {
		count = -count
		op = map[string]string{"<<": ">>", ">>": "<<"}[op]
	}
	r := value{unsigned: lhs.unsigned}
	switch {
	case op == "<<" && count < 64:
		r.n = lhs.n << count
	case op == ">>" && lhs.unsigned && count < 64:
		r.n = lhs.n >> count
	case op == ">>" && !lhs.unsigned:
		r.n = uint64(lhs.asInt() >> min(count, 63))
	}
	return r
}

// parseNumber reads an integer constant. A constant too large for
// intmax_t is unsigned.
func parseNumber(text string) (value, error) {
	s := strings.ReplaceAll(text, "'", "")
	end := len(s)
	unsigned := false
	for end > 0 && strings.IndexByte("uUlLzZ", s[end-1]) >= 0 {
		unsigned = unsigned || s[end-1] == 'u' || s[end-1] == 'U'
		end--
	}
	digits, base := s[:end], 10
	switch {
	case strings.HasPrefix(digits, "0x") || strings.HasPrefix(digits, "0X"):
		digits, base = digits[2:], 16
	case strings.HasPrefix(digits, "0b") || strings.HasPrefix(digits, "0B"):
		digits, base = digits[2:], 2
	case len(digits) > 1 && digits[0] == '0':
		digits, base = digits[1:], 8
	}
	n, err := strconv.ParseUint(digits, base, 64)
	if err != nil {
		if base == 10 && strings.ContainsAny(s, ".eE") {
			return value{}, fmt.Errorf("floating constant in preprocessor expression")
		}
		return value{}, fmt.Errorf("invalid integer constant %q in #if", text)
	}
	return value{n: n, unsigned: unsigned || n > math.MaxInt64}, nil
}

// parseChar reads a character constant. A plain constant holding one
// byte has type int with that byte sign-extended, as for a signed char.
func parseChar(text string) (value, error) {
	prefix, body, ok := strings.Cut(text, "'")
	if !ok || !strings.HasSuffix(body, "'") || len(body) < 2 {
		return value{}, fmt.Errorf("invalid character constant %s", text)
	}
	body = body[:len(body)-1]
	var chars []uint64
	for len(body) > 0 {
		c, rest, err := unescape(body)
		if err != nil {
			return value{}, fmt.Errorf("%s: %w", text, err)
		}
		chars = append(chars, c)
		body = rest
	}
	if len(chars) == 0 {
		return value{}, fmt.Errorf("empty character constant")
	}
	if prefix != "" {
		return value{n: chars[len(chars)-1]}, nil
	}
	if len(chars) == 1 {
		return signed(int64(int8(chars[0]))), nil
	}
	var n uint64
	for _, c := range chars {
		n = n<<8 | c&0xff
	}
	return signed(int64(int32(n))), nil
}

// unescape decodes the first character of a literal body.
func unescape(s string) (uint64, string, error) {
	if s[0] != '\\' {
		return uint64(s[0]), s[1:], nil
	}
	if len(s) < 2 {
		return 0, "", fmt.Errorf("incomplete escape sequence")
	}
	simple := map[byte]uint64{'n': '\n', 't': '\t', 'r': '\r', 'a': '\a', 'b': '\b', 'f': '\f', 'v': '\v',
		'\\': '\\', '\'': '\'', '"': '"', '?': '?', 'e': 0x1b}
	if c, ok := simple[s[1]]; ok {
		return c, s[2:], nil
	}
	switch {
	case s[1] == 'x':
		i := 2
		for i < len(s) && strings.IndexByte("0123456789abcdefABCDEF", s[i]) >= 0 {
			i++
		}
		n, err := strconv.ParseUint(s[2:i], 16, 64)
		if err != nil {
			return 0, "", fmt.Errorf("\\x used with no following hex digits")
		}
		return n, s[i:], nil
	case '0' <= s[1] && s[1] <= '7':
		i := 1
		for i < len(s) && i < 4 && '0' <= s[i] && s[i] <= '7' {
			i++
		}
		n, _ := strconv.ParseUint(s[1:i], 8, 64)
		return n, s[i:], nil
	case s[1] == 'u' || s[1] == 'U':
		size := 4
		if s[1] == 'U' {
			size = 8
		}
		if len(s) < 2+size {
			return 0, "", fmt.Errorf("incomplete universal character name")
		}
		n, err := strconv.ParseUint(s[2:2+size], 16, 32)
		if err != nil {
			return 0, "", fmt.Errorf("invalid universal character name")
		}
		return n, s[2+size:], nil
	}
	return uint64(s[1]), s[2:], nil
}
