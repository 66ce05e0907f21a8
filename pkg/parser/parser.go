// Package parser implements a recursive descent parser for C. It builds
// typed cabs trees by declaring into and typing through a ctyper.Typer, the
// way a compiler front-end interleaves parsing and semantic analysis.
package parser

import (
	"errors"
	"fmt"
	"strings"

	"github.com/raymyers/ralph-translate-c/pkg/cabs"
	"github.com/raymyers/ralph-translate-c/pkg/ctarget"
	"github.com/raymyers/ralph-translate-c/pkg/ctyper"
	"github.com/raymyers/ralph-translate-c/pkg/ctypes"
	"github.com/raymyers/ralph-translate-c/pkg/lexer"
)

// Parser parses C source code into a Cabs AST
type Parser struct {
	toks      []lexer.Token
	pos       int
	curToken  lexer.Token
	peekToken lexer.Token
	errors    []string
	sema      *ctyper.Typer
	typed     bool
	file      string
	pending   []cabs.Definition // records and enums defined inside the current declaration
}

// Option configures a Parser
type Option func(*Parser)

// WithTyper makes the parser declare into and type expressions through t.
func WithTyper(t *ctyper.Typer) Option {
	return func(p *Parser) {
		p.sema = t
		p.typed = true
	}
}

// WithTypeNames resolves typedef and tag names through t but leaves
// expressions untyped. Macro bodies are parsed this way.
func WithTypeNames(t *ctyper.Typer) Option {
	return func(p *Parser) {
		p.sema = t
		p.typed = false
	}
}

// WithFile sets the file name recorded in positions.
func WithFile(name string) Option {
	return func(p *Parser) {
		p.file = name
	}
}

// New creates a new Parser for the given lexer. Without options it parses
// untyped expressions for the host target.
func New(l *lexer.Lexer, opts ...Option) *Parser {
	p := &Parser{toks: l.All()}
	for _, opt := range opts {
		opt(p)
	}
	if p.sema == nil {
		p.sema = ctyper.New(ctypes.NewModel(ctarget.Native()))
	}
	p.pos = -2
	// Read two tokens to initialize curToken and peekToken
	p.nextToken()
	p.nextToken()
	return p
}

func (p *Parser) tokenAt(i int) lexer.Token {
	if i < 0 {
		return lexer.Token{}
	}
	if i >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[i]
}

func (p *Parser) nextToken() {
	p.pos++
	p.curToken = p.tokenAt(p.pos)
	p.peekToken = p.tokenAt(p.pos + 1)
}

// peekAt returns the token n positions after the current one.
func (p *Parser) peekAt(n int) lexer.Token {
	return p.tokenAt(p.pos + n)
}

// Errors returns the list of parsing errors
func (p *Parser) Errors() []string {
	return p.errors
}

// Err joins the parsing errors into one error, or returns nil.
func (p *Parser) Err() error {
	if len(p.errors) == 0 {
		return nil
	}
	errs := make([]error, len(p.errors))
	for i, msg := range p.errors {
		errs[i] = errors.New(msg)
	}
	return errors.Join(errs...)
}

func (p *Parser) addError(msg string) {
	p.errors = append(p.errors, fmt.Sprintf("line %d, col %d: %s",
		p.curToken.Line, p.curToken.Column, msg))
}

func (p *Parser) curTokenIs(t lexer.TokenType) bool {
	return p.curToken.Type == t
}

func (p *Parser) peekTokenIs(t lexer.TokenType) bool {
	return p.peekToken.Type == t
}

func (p *Parser) expectPeek(t lexer.TokenType) bool {
	if p.peekTokenIs(t) {
		p.nextToken()
		return true
	}
	p.addError(fmt.Sprintf("expected %s, got %s", t, p.peekToken.Type))
	return false
}

func (p *Parser) expect(t lexer.TokenType) bool {
	if p.curTokenIs(t) {
		p.nextToken()
		return true
	}
	p.addError(fmt.Sprintf("expected %s, got %s", t, p.curToken.Type))
	return false
}

func (p *Parser) position() cabs.Pos {
	return cabs.Pos{File: p.file, Line: p.curToken.Line, Col: p.curToken.Column}
}

// AtEOF reports whether all input has been consumed.
func (p *Parser) AtEOF() bool {
	return p.curTokenIs(lexer.TokenEOF)
}

// typeExpr types a full expression; on failure the error is recorded and
// the untyped expression returned.
func (p *Parser) typeExpr(e cabs.Expr) cabs.Expr {
	if !p.typed || e == nil {
		return e
	}
	typed, err := p.sema.Expr(e)
	if err != nil {
		p.addError(err.Error())
		return e
	}
	return typed
}

// ParseExpression parses one expression (comma operator included).
func (p *Parser) ParseExpression() cabs.Expr {
	return p.typeExpr(p.parseExpression())
}

// ParseMacroBody parses the replacement list of a macro: an expression or
// a type name. Expressions stay untyped; typedef and tag names resolve
// through sema.
func ParseMacroBody(body string, sema *ctyper.Typer) (cabs.Expr, error) {
	p := New(lexer.New(body), WithTypeNames(sema))
	var e cabs.Expr
	if p.startsTypeName() {
		e = cabs.TypeName{Of: p.parseTypeName()}
	} else {
		e = p.parseExpression()
	}
	if !p.AtEOF() {
		p.addError(fmt.Sprintf("unexpected token '%s'", p.curToken.Literal))
	}
	return e, p.Err()
}

// ParseTypeName parses a type name such as "unsigned long *" or
// "int (*)(void)".
func (p *Parser) ParseTypeName() (ctypes.Type, bool) {
	if !p.startsTypeName() {
		return nil, false
	}
	return p.parseTypeName(), true
}

// StartsTypeName reports whether the input starts with a type name.
func (p *Parser) StartsTypeName() bool {
	return p.startsTypeName()
}

// ParseDefinition parses one external declaration. Records and enums
// defined on the way are returned before the declarations using them.
func (p *Parser) ParseDefinition() []cabs.Definition {
	return p.parseDeclaration(true)
}

// ParseProgram parses declarations until the end of input.
func (p *Parser) ParseProgram() []cabs.Definition {
	var defs []cabs.Definition
	for !p.AtEOF() {
		before := len(p.errors)
		start := p.pos
		defs = append(defs, p.parseDeclaration(true)...)
		if len(p.errors) > before {
			p.synchronize()
		}
		if p.pos == start {
			p.nextToken()
		}
	}
	return defs
}

// synchronize skips to the end of the current external declaration.
func (p *Parser) synchronize() {
	depth := 0
	for !p.AtEOF() {
		switch p.curToken.Type {
		case lexer.TokenLBrace:
			depth++
		case lexer.TokenRBrace:
			depth--
			if depth <= 0 {
				p.nextToken()
				return
			}
		case lexer.TokenSemicolon:
			if depth == 0 {
				p.nextToken()
				return
			}
		}
		p.nextToken()
	}
}

// ParseUnit parses a C translation unit for the given target. Preprocessor
// lines are not expanded: #define lines become MacroDefs, other directives
// are dropped.
func ParseUnit(name, src string, tgt *ctarget.Target) (*cabs.Program, error) {
	code, macros := SplitDirectives(src)
	return ParseSource(name, code, macros, tgt)
}

// ParseSource parses preprocessed code; macros are the #define lines of
// the main file, carried along for macro lowering.
func ParseSource(name, code string, macros []cabs.MacroDef, tgt *ctarget.Target) (*cabs.Program, error) {
	sema := ctyper.New(ctypes.NewModel(tgt))
	p := New(lexer.New(code), WithTyper(sema), WithFile(name))
	prog := &cabs.Program{Target: tgt.Triple, Definitions: p.ParseProgram(), Macros: macros}
	if err := p.Err(); err != nil {
		return prog, fmt.Errorf("%s: %w", name, err)
	}
	return prog, nil
}

// SplitDirectives removes preprocessor lines from src, keeping line
// numbers, and returns the #define lines as macro definitions in order. An
// #undef drops the earlier definition.
func SplitDirectives(src string) (string, []cabs.MacroDef) {
	lines := strings.Split(src, "\n")
	var macros []cabs.MacroDef
	for i := 0; i < len(lines); i++ {
		trimmed := strings.TrimSpace(lines[i])
		if !strings.HasPrefix(trimmed, "#") {
			continue
		}
		start := i
		directive := strings.TrimSuffix(trimmed, "\\")
		for strings.HasSuffix(strings.TrimRight(lines[i], " \t\r"), "\\") && i+1 < len(lines) {
			i++
			directive += " " + strings.TrimSuffix(strings.TrimSpace(lines[i]), "\\")
		}
		for j := start; j <= i; j++ {
			lines[j] = ""
		}
		directive = strings.TrimSpace(strings.TrimPrefix(directive, "#"))
		switch {
		case strings.HasPrefix(directive, "define"):
			if m, ok := parseDefine(strings.TrimPrefix(directive, "define"), start+1); ok {
				macros = append(macros, m)
			}
		case strings.HasPrefix(directive, "undef"):
			name := strings.TrimSpace(strings.TrimPrefix(directive, "undef"))
			for j := len(macros) - 1; j >= 0; j-- {
				if macros[j].Name == name {
					macros = append(macros[:j], macros[j+1:]...)
					break
				}
			}
		}
	}
	return strings.Join(lines, "\n"), macros
}

func parseDefine(rest string, line int) (cabs.MacroDef, bool) {
	if rest == "" || (rest[0] != ' ' && rest[0] != '\t') {
		return cabs.MacroDef{}, false
	}
	rest = strings.TrimLeft(rest, " \t")
	n := 0
	for n < len(rest) && (rest[n] == '_' || rest[n] == '$' || isAlnum(rest[n])) {
		n++
	}
	if n == 0 {
		return cabs.MacroDef{}, false
	}
	m := cabs.MacroDef{Name: rest[:n], Pos: cabs.Pos{Line: line}}
	rest = rest[n:]
	if strings.HasPrefix(rest, "(") {
		end := strings.Index(rest, ")")
		if end < 0 {
			return cabs.MacroDef{}, false
		}
		m.FuncLike = true
		m.Params = []string{}
		for _, param := range strings.Split(rest[1:end], ",") {
			param = strings.TrimSpace(param)
			switch {
			case param == "":
				continue
			case param == "...":
				m.Variadic = true
				param = "__VA_ARGS__"
			case strings.HasSuffix(param, "..."):
				m.Variadic = true
				param = strings.TrimSpace(strings.TrimSuffix(param, "..."))
			}
			m.Params = append(m.Params, param)
		}
		rest = rest[end+1:]
	}
	m.Body = strings.TrimSpace(stripComments(rest))
	return m, true
}

func isAlnum(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

// stripComments removes C comments outside of literals.
func stripComments(s string) string {
	var b strings.Builder
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			b.WriteByte(c)
			if c == '\\' && i+1 < len(s) {
				i++
				b.WriteByte(s[i])
			} else if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
			b.WriteByte(c)
		case c == '/' && i+1 < len(s) && s[i+1] == '/':
			return b.String()
		case c == '/' && i+1 < len(s) && s[i+1] == '*':
			end := strings.Index(s[i+2:], "*/")
			if end < 0 {
				return b.String()
			}
			i += end + 3
			b.WriteByte(' ')
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
