package cpp

import (
	"strings"
)

// punctuators lists the multi-character punctuators, longest first.
var punctuators = []string{
	"...", "<<=", ">>=",
	"->", "++", "--", "<<", ">>", "<=", ">=", "==", "!=", "&&", "||",
	"*=", "/=", "%=", "+=", "-=", "&=", "^=", "|=", "##",
}

// literalPrefixes are the encoding prefixes of character and string
// literals, longest first.
var literalPrefixes = []string{"u8", "L", "u", "U"}

// scanner splits source text into preprocessing tokens. Backslash-newline
// splices are skipped wherever they occur.
type scanner struct {
	src  string
	file string
	off  int
	line int
	col  int
}

func newScanner(src, file string) *scanner {
	s := &scanner{src: src, file: file, line: 1, col: 1}
	s.splice()
	return s
}

// Tokenize scans src completely. The result ends with an EOF token.
func Tokenize(src, file string) []Token {
	s := newScanner(src, file)
	var toks []Token
	for {
		t := s.next()
		toks = append(toks, t)
		if t.Kind == EOF {
			return toks
		}
	}
}

func (s *scanner) peek() byte {
	if s.off < len(s.src) {
		return s.src[s.off]
	}
	return 0
}

// peekAt looks n bytes ahead of the current one without crossing splices.
func (s *scanner) peekAt(n int) byte {
	if s.off+n < len(s.src) {
		return s.src[s.off+n]
	}
	return 0
}

// splice skips any backslash-newline sequences at the current offset.
func (s *scanner) splice() {
	for s.peek() == '\\' {
		switch {
		case s.peekAt(1) == '\n':
			s.off += 2
		case s.peekAt(1) == '\r' && s.peekAt(2) == '\n':
			s.off += 3
		default:
			return
		}
		s.line++
		s.col = 1
	}
}

func (s *scanner) advance() {
	if s.off >= len(s.src) {
		return
	}
	if s.src[s.off] == '\n' {
		s.line++
		s.col = 1
	} else {
		s.col++
	}
	s.off++
	s.splice()
}

func (s *scanner) advanceN(n int) {
	for range n {
		s.advance()
	}
}

func (s *scanner) next() Token {
	pos := Pos{File: s.file, Line: s.line, Col: s.col}
	start := s.off
	kind := s.scan()
	text := s.src[start:s.off]
	switch {
	case kind == Space && strings.Contains(text, "/"):
		text = " "
	case strings.Contains(text, "\\"):
		text = unsplice(text)
	}
	return Token{Kind: kind, Text: text, Pos: pos}
}

// scan consumes one token and returns its kind.
func (s *scanner) scan() Kind {
	c := s.peek()
	switch {
	case s.off >= len(s.src):
		return EOF
	case c == '\n':
		s.advance()
		return Newline
	case c == '\r' && s.peekAt(1) == '\n':
		s.advanceN(2)
		return Newline
	case isSpace(c) || c == '/' && (s.peekAt(1) == '/' || s.peekAt(1) == '*'):
		s.skipSpace()
		return Space
	case isDigit(c) || c == '.' && isDigit(s.peekAt(1)):
		s.scanNumber()
		return Number
	case c == '"':
		s.scanQuoted('"')
		return StringLit
	case c == '\'':
		s.scanQuoted('\'')
		return CharLit
	case isIdentStart(c):
		return s.scanIdent()
	}
	for _, p := range punctuators {
		if strings.HasPrefix(s.src[s.off:], p) {
			s.advanceN(len(p))
			return Punct
		}
	}
	s.advance()
	if strings.IndexByte("[](){}.&*+-~!/%<>^|?:;=,#", c) >= 0 {
		return Punct
	}
	return Other
}

// skipSpace consumes a run of blanks and comments. A line comment stops
// before its newline.
func (s *scanner) skipSpace() {
	for s.off < len(s.src) {
		c := s.peek()
		switch {
		case isSpace(c):
			s.advance()
		case c == '/' && s.peekAt(1) == '/':
			for s.off < len(s.src) && s.peek() != '\n' {
				s.advance()
			}
		case c == '/' && s.peekAt(1) == '*':
			s.advanceN(2)
			for s.off < len(s.src) && !(s.peek() == '*' && s.peekAt(1) == '/') {
				s.advance()
			}
			s.advanceN(2)
		default:
			return
		}
	}
}

// scanNumber consumes a pp-number: digits, letters, underscores, periods
// and signs directly after an exponent letter.
func (s *scanner) scanNumber() {
	for s.off < len(s.src) {
		c := s.peek()
		switch {
		case strings.IndexByte("eEpP", c) >= 0 && (s.peekAt(1) == '+' || s.peekAt(1) == '-'):
			s.advanceN(2)
		case isIdentChar(c) || c == '.':
			s.advance()
		case c == '\'' && isIdentChar(s.peekAt(1)):
			// digit separator
			s.advanceN(2)
		default:
			return
		}
	}
}

// scanQuoted consumes a literal up to its closing quote. An unterminated
// literal ends at the end of the line.
func (s *scanner) scanQuoted(quote byte) {
	s.advance()
	for s.off < len(s.src) {
		switch s.peek() {
		case quote:
			s.advance()
			return
		case '\\':
			s.advanceN(2)
		case '\n':
			return
		default:
			s.advance()
		}
	}
}

// scanIdent consumes an identifier, or a prefixed literal such as L"x".
func (s *scanner) scanIdent() Kind {
	rest := s.src[s.off:]
	for _, p := range literalPrefixes {
		if !strings.HasPrefix(rest, p) || len(rest) <= len(p) {
			continue
		}
		switch rest[len(p)] {
		case '"':
			s.advanceN(len(p))
			s.scanQuoted('"')
			return StringLit
		case '\'':
			if p == "u8" || len(p) == 1 {
				s.advanceN(len(p))
				s.scanQuoted('\'')
				return CharLit
			}
		}
	}
	for isIdentChar(s.peek()) {
		s.advance()
	}
	return Ident
}

func unsplice(text string) string {
	text = strings.ReplaceAll(text, "\\\r\n", "")
	return strings.ReplaceAll(text, "\\\n", "")
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\f' || c == '\v' || c == '\r'
}

func isDigit(c byte) bool {
	return '0' <= c && c <= '9'
}

func isIdentStart(c byte) bool {
	return 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || c == '_' || c == '$' || c >= 0x80
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}
