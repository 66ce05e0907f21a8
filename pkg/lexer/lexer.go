package lexer

import (
	"strings"
	"unicode"
)

// Lexer tokenizes C source code
type Lexer struct {
	input   string
	pos     int  // current position in input
	readPos int  // next reading position
	ch      byte // current character
	line    int
	column  int
}

// New creates a new Lexer for the given input
func New(input string) *Lexer {
	l := &Lexer{input: input, line: 1, column: 0}
	l.readChar()
	return l
}

func (l *Lexer) readChar() {
	if l.readPos >= len(l.input) {
		l.ch = 0 // EOF
	} else {
		l.ch = l.input[l.readPos]
	}
	l.pos = l.readPos
	l.readPos++
	l.column++

	if l.ch == '\n' {
		l.line++
		l.column = 0
	}
}

func (l *Lexer) peekChar() byte {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

func (l *Lexer) peekCharAt(n int) byte {
	if l.readPos+n >= len(l.input) {
		return 0
	}
	return l.input[l.readPos+n]
}

// All returns every remaining token, the terminating EOF included.
func (l *Lexer) All() []Token {
	var toks []Token
	for {
		tok := l.NextToken()
		toks = append(toks, tok)
		if tok.Type == TokenEOF {
			return toks
		}
	}
}

// NextToken returns the next token from the input
func (l *Lexer) NextToken() Token {
	l.skipWhitespace()
	l.skipComments()
	l.skipWhitespace()

	tok := Token{Line: l.line, Column: l.column}

	switch l.ch {
	case 0:
		tok.Type = TokenEOF
		tok.Literal = ""
	case '+':
		tok = l.either('+', TokenIncrement, '=', TokenPlusAssign, TokenPlus)
	case '-':
		switch l.peekChar() {
		case '>':
			tok = l.two(TokenArrow)
		case '-':
			tok = l.two(TokenDecrement)
		case '=':
			tok = l.two(TokenMinusAssign)
		default:
			tok = l.newToken(TokenMinus, l.ch)
		}
	case '*':
		tok = l.withAssign(TokenStar, TokenStarAssign)
	case '/':
		tok = l.withAssign(TokenSlash, TokenSlashAssign)
	case '%':
		tok = l.withAssign(TokenPercent, TokenPercentAssign)
	case '=':
		tok = l.withAssign(TokenAssign, TokenEq)
	case '!':
		tok = l.withAssign(TokenNot, TokenNe)
	case '<':
		if l.peekChar() == '<' {
			if l.peekCharAt(1) == '=' {
				tok = l.three(TokenShlAssign)
			} else {
				tok = l.two(TokenShl)
			}
		} else {
			tok = l.withAssign(TokenLt, TokenLe)
		}
	case '>':
		if l.peekChar() == '>' {
			if l.peekCharAt(1) == '=' {
				tok = l.three(TokenShrAssign)
			} else {
				tok = l.two(TokenShr)
			}
		} else {
			tok = l.withAssign(TokenGt, TokenGe)
		}
	case '&':
		tok = l.either('&', TokenAnd, '=', TokenAndAssign, TokenAmpersand)
	case '|':
		tok = l.either('|', TokenOr, '=', TokenOrAssign, TokenPipe)
	case '^':
		tok = l.withAssign(TokenCaret, TokenXorAssign)
	case '~':
		tok = l.newToken(TokenTilde, l.ch)
	case '?':
		tok = l.newToken(TokenQuestion, l.ch)
	case ':':
		tok = l.newToken(TokenColon, l.ch)
	case '#':
		if l.peekChar() == '#' {
			tok = l.two(TokenHashHash)
		} else {
			tok = l.newToken(TokenHash, l.ch)
		}
	case '(':
		tok = l.newToken(TokenLParen, l.ch)
	case ')':
		tok = l.newToken(TokenRParen, l.ch)
	case '{':
		tok = l.newToken(TokenLBrace, l.ch)
	case '}':
		tok = l.newToken(TokenRBrace, l.ch)
	case '[':
		tok = l.newToken(TokenLBracket, l.ch)
	case ']':
		tok = l.newToken(TokenRBracket, l.ch)
	case ';':
		tok = l.newToken(TokenSemicolon, l.ch)
	case ',':
		tok = l.newToken(TokenComma, l.ch)
	case '.':
		if l.peekChar() == '.' && l.peekCharAt(1) == '.' {
			tok = l.three(TokenEllipsis)
		} else if isDigit(l.peekChar()) {
			tok.Literal = l.readNumber()
			tok.Type = TokenFloatLit
			return tok
		} else {
			tok = l.newToken(TokenDot, l.ch)
		}
	case '"':
		tok.Type = TokenString
		tok.Literal = l.readQuoted('"')
		return tok
	case '\'':
		tok.Type = TokenCharLit
		tok.Literal = l.readQuoted('\'')
		return tok
	default:
		if isLetter(l.ch) {
			if prefix, quote, ok := l.literalPrefix(); ok {
				for range prefix {
					l.readChar()
				}
				tok.Prefix = prefix
				tok.Literal = l.readQuoted(quote)
				tok.Type = TokenString
				if quote == '\'' {
					tok.Type = TokenCharLit
				}
				return tok
			}
			tok.Literal = l.readIdentifier()
			tok.Type = LookupIdent(tok.Literal)
			return tok
		} else if isDigit(l.ch) {
			tok.Literal = l.readNumber()
			tok.Type = TokenInt
			if isFloatNumber(tok.Literal) {
				tok.Type = TokenFloatLit
			}
			return tok
		} else {
			tok = l.newToken(TokenIllegal, l.ch)
		}
	}

	l.readChar()
	return tok
}

func (l *Lexer) newToken(tokenType TokenType, ch byte) Token {
	return Token{Type: tokenType, Literal: string(ch), Line: l.line, Column: l.column}
}

// two consumes a two-character operator; the caller's readChar consumes the last
func (l *Lexer) two(tokenType TokenType) Token {
	tok := Token{Type: tokenType, Literal: tokenNames[tokenType], Line: l.line, Column: l.column}
	l.readChar()
	return tok
}

func (l *Lexer) three(tokenType TokenType) Token {
	tok := Token{Type: tokenType, Literal: tokenNames[tokenType], Line: l.line, Column: l.column}
	l.readChar()
	l.readChar()
	return tok
}

func (l *Lexer) withAssign(plain, assign TokenType) Token {
	if l.peekChar() == '=' {
		return l.two(assign)
	}
	return l.newToken(plain, l.ch)
}

func (l *Lexer) either(c1 byte, t1 TokenType, c2 byte, t2 TokenType, plain TokenType) Token {
	switch l.peekChar() {
	case c1:
		return l.two(t1)
	case c2:
		return l.two(t2)
	}
	return l.newToken(plain, l.ch)
}

func (l *Lexer) skipWhitespace() {
	for {
		switch {
		case l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' || l.ch == '\f' || l.ch == '\v':
			l.readChar()
		case l.ch == '\\' && (l.peekChar() == '\n' || l.peekChar() == '\r'):
			// line continuation
			l.readChar()
		default:
			return
		}
	}
}

func (l *Lexer) skipComments() {
	for l.ch == '/' {
		if l.peekChar() == '/' {
			// Single-line comment
			for l.ch != '\n' && l.ch != 0 {
				l.readChar()
			}
			l.skipWhitespace()
		} else if l.peekChar() == '*' {
			// Multi-line comment
			l.readChar() // consume /
			l.readChar() // consume *
			for {
				if l.ch == 0 {
					break
				}
				if l.ch == '*' && l.peekChar() == '/' {
					l.readChar() // consume *
					l.readChar() // consume /
					break
				}
				l.readChar()
			}
			l.skipWhitespace()
		} else {
			break
		}
	}
}

// literalPrefix recognises the encoding prefixes of character and string
// literals: L, u, U and u8.
func (l *Lexer) literalPrefix() (string, byte, bool) {
	rest := l.input[l.pos:]
	for _, p := range []string{"u8", "L", "u", "U"} {
		if strings.HasPrefix(rest, p) && len(rest) > len(p) {
			q := rest[len(p)]
			if q == '"' || q == '\'' {
				return p, q, true
			}
		}
	}
	return "", 0, false
}

func (l *Lexer) readIdentifier() string {
	pos := l.pos
	for isLetter(l.ch) || isDigit(l.ch) || l.ch == '$' {
		l.readChar()
	}
	return l.input[pos:l.pos]
}

// readNumber reads a preprocessing number: digits, letters, dots and signed
// exponents. Classification and validation are left to the parser.
func (l *Lexer) readNumber() string {
	pos := l.pos
	for {
		switch {
		case isDigit(l.ch) || isLetter(l.ch) || l.ch == '.':
			prev := l.ch
			l.readChar()
			if (prev == 'e' || prev == 'E' || prev == 'p' || prev == 'P') && (l.ch == '+' || l.ch == '-') {
				if !isHexPrefixed(l.input[pos:l.pos]) || prev == 'p' || prev == 'P' {
					l.readChar()
				}
			}
		case l.ch == '\'' && isDigit(l.peekChar()):
			// digit separator
			l.readChar()
		default:
			return l.input[pos:l.pos]
		}
	}
}

// readQuoted reads a character or string literal body; the returned literal
// keeps escapes undecoded and excludes the quotes.
func (l *Lexer) readQuoted(quote byte) string {
	l.readChar() // consume opening quote
	pos := l.pos
	for l.ch != quote && l.ch != 0 {
		if l.ch == '\\' {
			l.readChar() // skip escape char
		}
		l.readChar()
	}
	str := l.input[pos:l.pos]
	l.readChar() // consume closing quote
	return str
}

func isHexPrefixed(s string) bool {
	return len(s) > 1 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X')
}

func isFloatNumber(s string) bool {
	if isHexPrefixed(s) {
		return strings.ContainsAny(s, "pP")
	}
	return strings.ContainsAny(s, ".eE")
}

func isLetter(ch byte) bool {
	return unicode.IsLetter(rune(ch)) || ch == '_'
}

func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}
