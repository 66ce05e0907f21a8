package parser

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/raymyers/ralph-translate-c/pkg/cabs"
	"github.com/raymyers/ralph-translate-c/pkg/ctypes"
	"github.com/raymyers/ralph-translate-c/pkg/lexer"
)

// Precedence levels for binary operators
const (
	_ int = iota
	LOWEST
	LOGOR       // ||
	LOGAND      // &&
	BITOR       // |
	BITXOR      // ^
	BITAND      // &
	EQUALS      // == !=
	LESSGREATER // < > <= >=
	SHIFT       // << >>
	SUM         // + -
	PRODUCT     // * / %
)

var precedences = map[lexer.TokenType]int{
	lexer.TokenOr:        LOGOR,
	lexer.TokenAnd:       LOGAND,
	lexer.TokenPipe:      BITOR,
	lexer.TokenCaret:     BITXOR,
	lexer.TokenAmpersand: BITAND,
	lexer.TokenEq:        EQUALS,
	lexer.TokenNe:        EQUALS,
	lexer.TokenLt:        LESSGREATER,
	lexer.TokenGt:        LESSGREATER,
	lexer.TokenLe:        LESSGREATER,
	lexer.TokenGe:        LESSGREATER,
	lexer.TokenShl:       SHIFT,
	lexer.TokenShr:       SHIFT,
	lexer.TokenPlus:      SUM,
	lexer.TokenMinus:     SUM,
	lexer.TokenStar:      PRODUCT,
	lexer.TokenSlash:     PRODUCT,
	lexer.TokenPercent:   PRODUCT,
}

var binaryOps = map[lexer.TokenType]cabs.BinaryOp{
	lexer.TokenOr:        cabs.OpOr,
	lexer.TokenAnd:       cabs.OpAnd,
	lexer.TokenPipe:      cabs.OpBitOr,
	lexer.TokenCaret:     cabs.OpBitXor,
	lexer.TokenAmpersand: cabs.OpBitAnd,
	lexer.TokenEq:        cabs.OpEq,
	lexer.TokenNe:        cabs.OpNe,
	lexer.TokenLt:        cabs.OpLt,
	lexer.TokenGt:        cabs.OpGt,
	lexer.TokenLe:        cabs.OpLe,
	lexer.TokenGe:        cabs.OpGe,
	lexer.TokenShl:       cabs.OpShl,
	lexer.TokenShr:       cabs.OpShr,
	lexer.TokenPlus:      cabs.OpAdd,
	lexer.TokenMinus:     cabs.OpSub,
	lexer.TokenStar:      cabs.OpMul,
	lexer.TokenSlash:     cabs.OpDiv,
	lexer.TokenPercent:   cabs.OpMod,
}

var assignOps = map[lexer.TokenType]cabs.BinaryOp{
	lexer.TokenAssign:        cabs.OpAssign,
	lexer.TokenPlusAssign:    cabs.OpAddAssign,
	lexer.TokenMinusAssign:   cabs.OpSubAssign,
	lexer.TokenStarAssign:    cabs.OpMulAssign,
	lexer.TokenSlashAssign:   cabs.OpDivAssign,
	lexer.TokenPercentAssign: cabs.OpModAssign,
	lexer.TokenAndAssign:     cabs.OpAndAssign,
	lexer.TokenOrAssign:      cabs.OpOrAssign,
	lexer.TokenXorAssign:     cabs.OpXorAssign,
	lexer.TokenShlAssign:     cabs.OpShlAssign,
	lexer.TokenShrAssign:     cabs.OpShrAssign,
}

// parseExpression parses a comma expression.
func (p *Parser) parseExpression() cabs.Expr {
	left := p.parseAssignment()
	for p.curTokenIs(lexer.TokenComma) {
		p.nextToken()
		left = cabs.Binary{Op: cabs.OpComma, Left: left, Right: p.parseAssignment()}
	}
	return left
}

func (p *Parser) parseAssignment() cabs.Expr {
	left := p.parseConditional()
	if op, ok := assignOps[p.curToken.Type]; ok {
		p.nextToken()
		right := p.parseAssignment()
		return cabs.Binary{Op: op, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseConditional() cabs.Expr {
	cond := p.parseBinary(LOWEST)
	if !p.curTokenIs(lexer.TokenQuestion) {
		return cond
	}
	p.nextToken()
	var then cabs.Expr
	if !p.curTokenIs(lexer.TokenColon) {
		then = p.parseExpression()
	}
	if !p.expect(lexer.TokenColon) {
		return cond
	}
	return cabs.Conditional{Cond: cond, Then: then, Else: p.parseConditional()}
}

// parseBinary parses binary operators by precedence climbing.
func (p *Parser) parseBinary(precedence int) cabs.Expr {
	left := p.parseCast()
	for {
		prec, ok := precedences[p.curToken.Type]
		if !ok || prec <= precedence {
			return left
		}
		op := binaryOps[p.curToken.Type]
		p.nextToken()
		right := p.parseBinary(prec)
		left = cabs.Binary{Op: op, Left: left, Right: right}
	}
}

// typeNameFollows reports whether the token after the current '(' starts a
// type name.
func (p *Parser) typeNameFollows() bool {
	tok := p.peekToken
	switch tok.Type {
	case lexer.TokenInt_, lexer.TokenVoid, lexer.TokenChar, lexer.TokenShort, lexer.TokenLong,
		lexer.TokenFloat, lexer.TokenDouble, lexer.TokenSigned, lexer.TokenUnsigned, lexer.TokenBool,
		lexer.TokenInt128, lexer.TokenFloat16, lexer.TokenFloat128,
		lexer.TokenStruct, lexer.TokenUnion, lexer.TokenEnum, lexer.TokenTypeof,
		lexer.TokenConst, lexer.TokenVolatile, lexer.TokenRestrict, lexer.TokenAtomic, lexer.TokenAttribute:
		return true
	case lexer.TokenIdent:
		return p.sema.IsTypedef(tok.Literal)
	}
	return false
}

func (p *Parser) parseCast() cabs.Expr {
	if p.curTokenIs(lexer.TokenLParen) && p.typeNameFollows() {
		p.nextToken()
		typ := p.parseTypeName()
		p.expect(lexer.TokenRParen)
		if p.curTokenIs(lexer.TokenLBrace) {
			return p.parsePostfixOps(p.parseCompoundLiteral(typ))
		}
		return cabs.Cast{Expr: p.parseCast(), Typ: typ}
	}
	return p.parseUnary()
}

func (p *Parser) parseCompoundLiteral(typ ctypes.Type) cabs.Expr {
	list, _ := p.parseInitializer().(*cabs.InitList)
	if list == nil {
		list = &cabs.InitList{}
	}
	list.Typ = typ
	if !isInitAggregateType(typ) {
		// (int){1} initializes a scalar
		if len(list.Items) == 0 {
			return cabs.CompoundLiteral{Init: list, Typ: typ}
		}
		return cabs.Cast{Expr: unbrace(list.Items[0].Value), Typ: typ}
	}
	return cabs.CompoundLiteral{Init: list, Typ: typ}
}

func isInitAggregateType(t ctypes.Type) bool {
	switch ctypes.Canonical(t).(type) {
	case ctypes.Tarray, ctypes.Trecord, ctypes.Tvector:
		return true
	}
	return false
}

func (p *Parser) parseUnary() cabs.Expr {
	var op cabs.UnaryOp
	switch p.curToken.Type {
	case lexer.TokenMinus:
		op = cabs.OpNeg
	case lexer.TokenPlus:
		op = cabs.OpPlus
	case lexer.TokenNot:
		op = cabs.OpNot
	case lexer.TokenTilde:
		op = cabs.OpBitNot
	case lexer.TokenAmpersand:
		op = cabs.OpAddrOf
	case lexer.TokenStar:
		op = cabs.OpDeref
	case lexer.TokenIncrement:
		p.nextToken()
		return cabs.Unary{Op: cabs.OpPreInc, Expr: p.parseUnary()}
	case lexer.TokenDecrement:
		p.nextToken()
		return cabs.Unary{Op: cabs.OpPreDec, Expr: p.parseUnary()}
	case lexer.TokenAnd:
		p.addError("address of label is not supported")
		p.nextToken()
		p.nextToken()
		return cabs.Constant{Value: 0, Text: "0", Radix: 10}
	case lexer.TokenSizeof:
		return p.parseSizeof()
	case lexer.TokenAlignof:
		p.nextToken()
		if !p.curTokenIs(lexer.TokenLParen) || !p.typeNameFollows() {
			// _Alignof applied to an expression
			e := p.typeExprAlways(p.parseUnary())
			return cabs.AlignofType{Of: e.Type()}
		}
		p.nextToken()
		typ := p.parseTypeName()
		p.expect(lexer.TokenRParen)
		return cabs.AlignofType{Of: typ}
	case lexer.TokenExtension:
		p.nextToken()
		return p.parseCast()
	default:
		return p.parsePostfix()
	}
	p.nextToken()
	return cabs.Unary{Op: op, Expr: p.parseCast()}
}

func (p *Parser) parseSizeof() cabs.Expr {
	p.nextToken()
	if p.curTokenIs(lexer.TokenLParen) && p.typeNameFollows() {
		p.nextToken()
		typ := p.parseTypeName()
		p.expect(lexer.TokenRParen)
		if p.curTokenIs(lexer.TokenLBrace) {
			return cabs.SizeofExpr{Expr: p.parsePostfixOps(p.parseCompoundLiteral(typ))}
		}
		return cabs.SizeofType{Of: typ}
	}
	return cabs.SizeofExpr{Expr: p.parseUnary()}
}

func (p *Parser) parsePostfix() cabs.Expr {
	return p.parsePostfixOps(p.parsePrimary())
}

func (p *Parser) parsePostfixOps(expr cabs.Expr) cabs.Expr {
	for {
		switch p.curToken.Type {
		case lexer.TokenLBracket:
			p.nextToken()
			index := p.parseExpression()
			p.expect(lexer.TokenRBracket)
			expr = cabs.Index{Array: expr, Index: index}
		case lexer.TokenLParen:
			p.nextToken()
			args := []cabs.Expr{}
			for !p.curTokenIs(lexer.TokenRParen) && !p.AtEOF() {
				if !p.typed && p.startsTypeName() {
					// a macro body passing a type to another macro
					args = append(args, cabs.TypeName{Of: p.parseTypeName()})
				} else {
					args = append(args, p.parseAssignment())
				}
				if !p.curTokenIs(lexer.TokenComma) {
					break
				}
				p.nextToken()
			}
			p.expect(lexer.TokenRParen)
			expr = cabs.Call{Func: expr, Args: args}
		case lexer.TokenDot, lexer.TokenArrow:
			arrow := p.curTokenIs(lexer.TokenArrow)
			if !p.expectPeek(lexer.TokenIdent) {
				return expr
			}
			expr = cabs.Member{Expr: expr, Name: p.curToken.Literal, Arrow: arrow}
			p.nextToken()
		case lexer.TokenIncrement:
			p.nextToken()
			expr = cabs.Unary{Op: cabs.OpPostInc, Expr: expr}
		case lexer.TokenDecrement:
			p.nextToken()
			expr = cabs.Unary{Op: cabs.OpPostDec, Expr: expr}
		default:
			return expr
		}
	}
}

func (p *Parser) parsePrimary() cabs.Expr {
	switch p.curToken.Type {
	case lexer.TokenIdent:
		return p.parseIdentifier()
	case lexer.TokenInt:
		return p.parseIntLiteral()
	case lexer.TokenFloatLit:
		return p.parseFloatLiteral()
	case lexer.TokenCharLit:
		return p.parseCharLiteral()
	case lexer.TokenString:
		return p.parseStringLiteral()
	case lexer.TokenGeneric:
		return p.parseGeneric()
	case lexer.TokenLParen:
		if p.peekTokenIs(lexer.TokenLBrace) {
			return p.parseStmtExpr()
		}
		p.nextToken()
		expr := p.parseExpression()
		p.expect(lexer.TokenRParen)
		return cabs.Paren{Expr: expr}
	}
	p.addError(fmt.Sprintf("expected expression, got %s", p.curToken.Type))
	p.nextToken()
	return cabs.Constant{Value: 0, Text: "0", Radix: 10}
}

func (p *Parser) parseIdentifier() cabs.Expr {
	name := p.curToken.Literal
	switch name {
	case "__func__", "__FUNCTION__", "__PRETTY_FUNCTION__":
		p.nextToken()
		return cabs.Predefined{Name: name}
	case "__builtin_offsetof", "offsetof":
		if p.peekTokenIs(lexer.TokenLParen) {
			return p.parseOffsetof()
		}
	case "__builtin_convertvector":
		p.nextToken()
		p.expect(lexer.TokenLParen)
		e := p.parseAssignment()
		p.expect(lexer.TokenComma)
		typ := p.parseTypeName()
		p.expect(lexer.TokenRParen)
		return cabs.ConvertVector{Expr: e, Typ: typ}
	case "__builtin_shufflevector":
		p.nextToken()
		p.expect(lexer.TokenLParen)
		sv := cabs.ShuffleVector{A: p.parseAssignment()}
		p.expect(lexer.TokenComma)
		sv.B = p.parseAssignment()
		for p.curTokenIs(lexer.TokenComma) {
			p.nextToken()
			idx, ok := p.sema.ConstInt(p.typeExprAlways(p.parseAssignment()))
			if !ok {
				p.addError("index for __builtin_shufflevector must be a constant integer")
			}
			sv.Indices = append(sv.Indices, idx)
		}
		p.expect(lexer.TokenRParen)
		return sv
	case "__builtin_types_compatible_p":
		p.nextToken()
		p.expect(lexer.TokenLParen)
		a := p.parseTypeName()
		p.expect(lexer.TokenComma)
		b := p.parseTypeName()
		p.expect(lexer.TokenRParen)
		if ctypes.Compatible(ctypes.Unqualified(a), ctypes.Unqualified(b)) {
			return cabs.Constant{Value: 1, Text: "1", Radix: 10, Typ: ctypes.IntType()}
		}
		return cabs.Constant{Value: 0, Text: "0", Radix: 10, Typ: ctypes.IntType()}
	}
	p.nextToken()
	return cabs.Variable{Name: name}
}

// parseOffsetof parses offsetof(type, member) where member may be a path
// like a.b; only a single field name is supported.
func (p *Parser) parseOffsetof() cabs.Expr {
	p.nextToken()
	p.expect(lexer.TokenLParen)
	typ := p.parseTypeName()
	p.expect(lexer.TokenComma)
	field := p.curToken.Literal
	if !p.expect(lexer.TokenIdent) {
		return cabs.Constant{Value: 0, Text: "0", Radix: 10}
	}
	if !p.curTokenIs(lexer.TokenRParen) {
		p.addError("offsetof with a member designator path is not supported")
		for !p.curTokenIs(lexer.TokenRParen) && !p.AtEOF() {
			p.nextToken()
		}
	}
	p.expect(lexer.TokenRParen)
	return cabs.OffsetOf{Of: typ, Field: field}
}

func (p *Parser) parseGeneric() cabs.Expr {
	p.nextToken()
	p.expect(lexer.TokenLParen)
	g := cabs.Generic{Control: p.parseAssignment()}
	for p.curTokenIs(lexer.TokenComma) {
		p.nextToken()
		var a cabs.GenericAssoc
		if p.curTokenIs(lexer.TokenDefault) {
			p.nextToken()
		} else {
			a.Of = p.parseTypeName()
		}
		p.expect(lexer.TokenColon)
		a.Expr = p.parseAssignment()
		g.Assocs = append(g.Assocs, a)
	}
	p.expect(lexer.TokenRParen)
	return g
}

func (p *Parser) parseStmtExpr() cabs.Expr {
	p.nextToken() // consume '('
	body := p.parseBlock()
	p.expect(lexer.TokenRParen)
	return cabs.StmtExpr{Body: body}
}

// parseIntLiteral converts an integer token into a Constant, keeping its
// spelling and suffix.
func (p *Parser) parseIntLiteral() cabs.Expr {
	text := p.curToken.Literal
	p.nextToken()
	c, err := ParseIntLiteral(text)
	if err != nil {
		p.addError(err.Error())
	}
	return c
}

// ParseIntLiteral parses the spelling of an integer constant.
func ParseIntLiteral(text string) (cabs.Constant, error) {
	digits := strings.ReplaceAll(text, "'", "")
	end := len(digits)
	for end > 0 && strings.ContainsRune("uUlL", rune(digits[end-1])) {
		end--
	}
	suffix := digits[end:]
	digits = digits[:end]
	c := cabs.Constant{Text: digits, Suffix: suffix, Radix: 10}
	body := digits
	switch {
	case len(digits) > 1 && (digits[1] == 'x' || digits[1] == 'X') && digits[0] == '0':
		c.Radix, body = 16, digits[2:]
	case len(digits) > 1 && (digits[1] == 'b' || digits[1] == 'B') && digits[0] == '0':
		c.Radix, body = 2, digits[2:]
	case len(digits) > 1 && digits[0] == '0':
		c.Radix, body = 8, digits[1:]
	}
	switch strings.ToLower(suffix) {
	case "", "u", "l", "ul", "lu", "ll", "ull", "llu":
	default:
		return c, fmt.Errorf("invalid suffix '%s' on integer constant", suffix)
	}
	v, err := strconv.ParseUint(body, c.Radix, 64)
	if err != nil {
		if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
			return c, fmt.Errorf("integer literal %s is too large to be represented in any integer type", text)
		}
		return c, fmt.Errorf("invalid integer constant '%s'", text)
	}
	c.Value = v
	return c, nil
}

func (p *Parser) parseFloatLiteral() cabs.Expr {
	text := p.curToken.Literal
	p.nextToken()
	f, err := ParseFloatLiteral(text)
	if err != nil {
		p.addError(err.Error())
	}
	return f
}

// ParseFloatLiteral parses the spelling of a floating constant, hexadecimal
// forms included.
func ParseFloatLiteral(text string) (cabs.FloatConst, error) {
	body := strings.ReplaceAll(text, "'", "")
	suffix := ""
	lower := strings.ToLower(body)
	hex := strings.HasPrefix(lower, "0x")
	for _, s := range []string{"f128", "f16", "f", "l", "q"} {
		if hex && s == "f" {
			// f is a hex digit before the exponent; only after p is it a suffix
			if i := strings.LastIndexAny(lower, "p"); i < 0 || !strings.HasSuffix(lower[i:], "f") {
				continue
			}
		}
		if strings.HasSuffix(lower, s) {
			suffix = body[len(body)-len(s):]
			body = body[:len(body)-len(s)]
			break
		}
	}
	f := cabs.FloatConst{Text: body, Suffix: suffix}
	v, err := strconv.ParseFloat(body, 64)
	if err != nil {
		if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
			f.Value = v
			return f, nil
		}
		return f, fmt.Errorf("invalid floating constant '%s'", text)
	}
	f.Value = v
	return f, nil
}

func (p *Parser) parseCharLiteral() cabs.Expr {
	tok := p.curToken
	p.nextToken()
	units, err := decodeEscapes(tok.Literal, tok.Prefix != "" && tok.Prefix != "u8")
	if err != nil {
		p.addError(err.Error())
	}
	if len(units) == 0 {
		p.addError("empty character constant")
		units = []rune{0}
	}
	c := cabs.CharLiteral{Chars: units, Prefix: tok.Prefix}
	switch {
	case tok.Prefix != "":
		c.Value = int64(units[len(units)-1])
	case len(units) == 1:
		c.Value = int64(units[0])
		if p.sema.Model.Target.CharSigned && c.Value > 0x7F {
			c.Value -= 0x100
		}
	default:
		// multi-character constant
		var v int32
		for _, u := range units {
			v = v<<8 | int32(u&0xFF)
		}
		c.Value = int64(v)
	}
	return c
}

// parseStringLiteral parses adjacent string literals and concatenates them.
func (p *Parser) parseStringLiteral() cabs.StringLiteral {
	var s cabs.StringLiteral
	var b strings.Builder
	var toks []lexer.Token
	for p.curTokenIs(lexer.TokenString) {
		if p.curToken.Prefix != "" && p.curToken.Prefix != "u8" {
			s.Prefix = p.curToken.Prefix
		} else if p.curToken.Prefix == "u8" && s.Prefix == "" {
			s.Prefix = "u8"
		}
		toks = append(toks, p.curToken)
		p.nextToken()
	}
	wide := s.Prefix != "" && s.Prefix != "u8"
	for _, tok := range toks {
		units, err := decodeEscapes(tok.Literal, wide)
		if err != nil {
			p.addError(err.Error())
		}
		for _, u := range units {
			if wide {
				b.WriteRune(u)
			} else {
				b.WriteByte(byte(u))
			}
		}
	}
	s.Value = b.String()
	return s
}

// decodeEscapes decodes the body of a character or string literal. Narrow
// literals decode to bytes (UTF-8 source characters stay as their bytes);
// wide literals decode to code points.
func decodeEscapes(body string, wide bool) ([]rune, error) {
	var out []rune
	for i := 0; i < len(body); {
		c := body[i]
		if c != '\\' {
			if wide {
				r, size := utf8.DecodeRuneInString(body[i:])
				out = append(out, r)
				i += size
			} else {
				out = append(out, rune(c))
				i++
			}
			continue
		}
		i++
		if i >= len(body) {
			return out, fmt.Errorf("incomplete escape sequence")
		}
		c = body[i]
		i++
		switch c {
		case 'n':
			out = append(out, '\n')
		case 't':
			out = append(out, '\t')
		case 'r':
			out = append(out, '\r')
		case 'a':
			out = append(out, 7)
		case 'b':
			out = append(out, 8)
		case 'f':
			out = append(out, 12)
		case 'v':
			out = append(out, 11)
		case 'e', 'E':
			out = append(out, 27)
		case '\\', '\'', '"', '?':
			out = append(out, rune(c))
		case 'x':
			start := i
			for i < len(body) && isHexDigit(body[i]) {
				i++
			}
			if start == i {
				return out, fmt.Errorf("\\x used with no following hex digits")
			}
			v, _ := strconv.ParseUint(body[start:i], 16, 64)
			if !wide {
				v &= 0xFF
			}
			out = append(out, rune(v))
		case 'u', 'U':
			n := 4
			if c == 'U' {
				n = 8
			}
			if i+n > len(body) {
				return out, fmt.Errorf("incomplete universal character name")
			}
			v, err := strconv.ParseUint(body[i:i+n], 16, 32)
			if err != nil {
				return out, fmt.Errorf("incomplete universal character name")
			}
			i += n
			if wide {
				out = append(out, rune(v))
			} else {
				var buf [utf8.UTFMax]byte
				size := utf8.EncodeRune(buf[:], rune(v))
				for _, b := range buf[:size] {
					out = append(out, rune(b))
				}
			}
		default:
			if c >= '0' && c <= '7' {
				v := rune(c - '0')
				for k := 0; k < 2 && i < len(body) && body[i] >= '0' && body[i] <= '7'; k++ {
					v = v*8 + rune(body[i]-'0')
					i++
				}
				if !wide {
					v &= 0xFF
				}
				out = append(out, v)
				continue
			}
			return out, fmt.Errorf("unknown escape sequence '\\%c'", c)
		}
	}
	return out, nil
}

func isHexDigit(c byte) bool {
	return c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F'
}
