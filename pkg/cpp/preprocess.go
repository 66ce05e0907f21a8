package cpp

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/raymyers/ralph-translate-c/pkg/cabs"
)

// PreprocessorOptions configures a Preprocessor.
type PreprocessorOptions struct {
	Defines      []string // -D NAME or NAME=VALUE, applied in order
	Undefines    []string // -U NAME, applied after Defines
	IncludePaths []string // -I directories
	SystemPaths  []string // -isystem directories
	NoBuiltins   bool     // do not provide the builtin C library headers

	// HasBuiltin and HasAttribute answer __has_builtin and
	// __has_attribute. Nil answers no.
	HasBuiltin   func(name string) bool
	HasAttribute func(name string) bool

	Logger logrus.FieldLogger
}

// Preprocessor expands one translation unit.
type Preprocessor struct {
	macros   *MacroTable
	expander *Expander
	resolver *IncludeResolver
	queries  queries
	log      logrus.FieldLogger

	files   []*fileState
	guards  map[string]string // header path -> include guard macro
	defines []cabs.MacroDef
}

// fileState is the state of one file being read.
type fileState struct {
	path     string // resolved path, used to find quoted includes
	presumed string // __FILE__, changed by #line
	delta    int    // presumed line minus physical line
	conds    ifStack
	out      strings.Builder
	lines    int // newlines written to out
}

// presume returns toks positioned at their presumed file and line.
func (f *fileState) presume(toks []Token) []Token {
	if f.delta == 0 && f.presumed == f.path {
		return toks
	}
	out := make([]Token, len(toks))
	for i, t := range toks {
		t.Pos.File = f.presumed
		t.Pos.Line += f.delta
		out[i] = t
	}
	return out
}

// pad ends output lines until line physical lines have been written.
func (f *fileState) pad(line int) {
	for ; f.lines < line; f.lines++ {
		f.out.WriteByte('\n')
	}
}

// NewPreprocessor returns a preprocessor with the predefined and command
// line macros in place.
func NewPreprocessor(opts PreprocessorOptions) *Preprocessor {
	log := opts.Logger
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	macros := NewMacroTable()
	for _, d := range opts.Defines {
		macros.DefineCmdline(d, "<command line>")
	}
	for _, u := range opts.Undefines {
		_ = macros.Undefine(u)
	}
	resolver := NewIncludeResolver(opts.IncludePaths, opts.SystemPaths)
	resolver.NoBuiltins = opts.NoBuiltins

	p := &Preprocessor{
		macros:   macros,
		expander: NewExpander(macros),
		resolver: resolver,
		log:      log,
		guards:   make(map[string]string),
	}
	p.queries = queries{
		hasInclude:   p.canInclude,
		hasBuiltin:   opts.HasBuiltin,
		hasAttribute: opts.HasAttribute,
	}
	macros.Redefined = func(old, m *Macro) {
		p.log.WithFields(logrus.Fields{"macro": m.Name, "pos": m.Pos.String(), "previous": old.Pos.String()}).
			Warn("macro redefined")
	}
	return p
}

// PreprocessFile reads and preprocesses the file at path.
func (p *Preprocessor) PreprocessFile(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	src, err := os.ReadFile(abs)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return p.PreprocessString(string(src), abs)
}

// PreprocessString preprocesses src as the main file filename. The
// result has exactly as many lines as src; included headers are joined
// onto the line of their #include.
func (p *Preprocessor) PreprocessString(src, filename string) (string, error) {
	return p.read(src, filename)
}

// Defines returns the macros defined by the main file and still defined
// at its end, in definition order.
func (p *Preprocessor) Defines() []cabs.MacroDef {
	return p.defines
}

// Macros returns the macro table.
func (p *Preprocessor) Macros() *MacroTable {
	return p.macros
}

// read preprocesses one file.
func (p *Preprocessor) read(src, path string) (string, error) {
	if err := p.resolver.Enter(path); err != nil {
		return "", err
	}
	defer p.resolver.Leave()
	f := &fileState{path: path, presumed: path}
	p.files = append(p.files, f)
	defer func() { p.files = p.files[:len(p.files)-1] }()

	toks := Tokenize(src, path)
	// text lines held back until a macro call they start is closed
	var pending []Token
	for len(toks) > 1 {
		line, nl := splitLine(toks)
		toks = toks[len(line)+1:]

		if isDirective(line) {
			if pending != nil {
				return "", p.incompleteCall(pending)
			}
			if err := p.directive(f, line, nl); err != nil {
				return "", err
			}
		} else if f.conds.active() {
			if pending != nil {
				pending = append(pending, Token{Kind: Space, Text: " ", Pos: nl.Pos})
			}
			pending = append(pending, f.presume(line)...)
			counter := p.macros.counter
			out, err := p.expander.Expand(pending)
			if errors.Is(err, errIncompleteCall) && nl.Kind == Newline {
				p.macros.counter = counter
				continue
			}
			if err != nil {
				return "", err
			}
			f.out.WriteString(Join(out))
			pending = nil
		}
		if nl.Kind == Newline {
			f.pad(nl.Pos.Line)
		}
	}
	if pending != nil {
		return "", p.incompleteCall(pending)
	}
	if err := f.conds.unterminated(); err != nil {
		return "", err
	}
	return f.out.String(), nil
}

// incompleteCall reports the macro call left open in pending.
func (p *Preprocessor) incompleteCall(pending []Token) error {
	if _, err := p.expander.Expand(pending); err != nil {
		return err
	}
	return fmt.Errorf("%s: %w", pending[0].Pos, errIncompleteCall)
}

// splitLine returns the tokens before the first newline or EOF, and that
// token.
func splitLine(toks []Token) ([]Token, Token) {
	for i, t := range toks {
		if t.Kind == Newline || t.Kind == EOF {
			return toks[:i], t
		}
	}
	return toks, Token{Kind: EOF}
}

func isDirective(line []Token) bool {
	i := skipBlank(line, 0)
	return i < len(line) && line[i].Is("#")
}

// directive runs one directive line; nl is the token ending it.
func (p *Preprocessor) directive(f *fileState, line []Token, nl Token) error {
	d := parseDirective(line)
	if !f.conds.active() && !d.conditional() {
		return nil
	}
	if err := p.runDirective(f, d, nl); err != nil {
		return fmt.Errorf("%s: %w", d.pos, err)
	}
	return nil
}

func (p *Preprocessor) runDirective(f *fileState, d directive, nl Token) error {
	switch d.name {
	case "if":
		cond := false
		if f.conds.active() {
			var err error
			if cond, err = p.condition(f, d.args); err != nil {
				return fmt.Errorf("#if: %w", err)
			}
		}
		f.conds.open(d.pos, cond)
	case "ifdef", "ifndef":
		cond := false
		if f.conds.active() {
			name, err := d.ident()
			if err != nil {
				return err
			}
			cond = p.isDefined(name) == (d.name == "ifdef")
		}
		f.conds.open(d.pos, cond)
	case "elif":
		return f.conds.elif(d.name, func() (bool, error) { return p.condition(f, d.args) })
	case "elifdef", "elifndef":
		return f.conds.elif(d.name, func() (bool, error) {
			name, err := d.ident()
			return p.isDefined(name) == (d.name == "elifdef"), err
		})
	case "else":
		return f.conds.els()
	case "endif":
		return f.conds.endif()
	case "define":
		m, err := d.macro()
		if err != nil {
			return err
		}
		if err := p.macros.Define(m); err != nil {
			return err
		}
		if p.resolver.Depth() == 1 {
			p.record(m)
		}
	case "undef":
		name, err := d.ident()
		if err != nil {
			return err
		}
		if err := p.macros.Undefine(name); err != nil {
			return err
		}
		if p.resolver.Depth() == 1 {
			p.forget(name)
		}
	case "include", "include_next", "import":
		return p.include(f, d)
	case "line":
		n, file, err := d.lineArgs()
		if err != nil {
			return err
		}
		f.delta = n - (nl.Pos.Line + 1)
		if file != "" {
			f.presumed = file
		}
	case "error":
		return fmt.Errorf("#error %s", Join(d.args))
	case "warning":
		p.log.WithField("pos", d.pos.String()).Warn(Join(d.args))
	case "pragma":
		p.pragma(f, d)
	case "", "ident", "sccs", "assert", "unassert":
	default:
		return fmt.Errorf("invalid preprocessing directive #%s", d.name)
	}
	return nil
}

// record keeps a main-file #define for macro translation; a redefinition
// replaces the earlier entry.
func (p *Preprocessor) record(m *Macro) {
	p.forget(m.Name)
	def := cabs.MacroDef{
		Name:     m.Name,
		FuncLike: m.FuncLike,
		Variadic: m.Variadic,
		Body:     Join(m.Body),
		Pos:      cabs.Pos{File: filepath.Base(m.Pos.File), Line: m.Pos.Line},
	}
	if m.FuncLike {
		def.Params = append([]string{}, m.Params...)
	}
	p.defines = append(p.defines, def)
}

func (p *Preprocessor) forget(name string) {
	for i, m := range p.defines {
		if m.Name == name {
			p.defines = append(p.defines[:i], p.defines[i+1:]...)
			return
		}
	}
}

// include reads a header and writes its output onto the current line.
func (p *Preprocessor) include(f *fileState, d directive) error {
	name, angled := headerName(d.args)
	if name == "" {
		exp, err := p.expander.Expand(f.presume(d.args))
		if err != nil {
			return err
		}
		if name, angled = headerName(exp); name == "" {
			return fmt.Errorf("#%s expects \"FILENAME\" or <FILENAME>", d.name)
		}
	}
	var path string
	var err error
	if d.name == "include_next" && p.resolver.Depth() > 1 {
		path, err = p.resolver.ResolveNext(name, f.path)
	} else {
		path, err = p.resolver.Resolve(name, angled, f.path)
	}
	if err != nil {
		return fmt.Errorf("#%s: %w", d.name, err)
	}
	if p.resolver.Once(path) {
		return nil
	}
	if guard, ok := p.guards[path]; ok && p.macros.IsDefined(guard) {
		return nil
	}
	src, err := p.resolver.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if d.name == "import" {
		p.resolver.MarkOnce(path)
	}
	if guard := includeGuard(Tokenize(string(src), path)); guard != "" {
		p.guards[path] = guard
	}
	p.log.WithFields(logrus.Fields{"header": path, "depth": p.resolver.Depth()}).Debug("including")
	out, err := p.read(string(src), path)
	if err != nil {
		return fmt.Errorf("in %s: %w", path, err)
	}
	f.out.WriteString(strings.ReplaceAll(out, "\n", " "))
	return nil
}

// includeGuard returns X when a header starts with "#ifndef X" and
// "#define X".
func includeGuard(toks []Token) string {
	toks = withoutBlanks(toks)
	if len(toks) < 6 || !toks[0].Is("#") || toks[1].Text != "ifndef" || toks[2].Kind != Ident ||
		!toks[3].Is("#") || toks[4].Text != "define" || toks[5].Text != toks[2].Text {
		return ""
	}
	return toks[2].Text
}

// canInclude answers __has_include from the innermost file.
func (p *Preprocessor) canInclude(name string, angled, next bool) bool {
	from := ""
	if len(p.files) > 0 {
		from = p.files[len(p.files)-1].path
	}
	var err error
	if next && p.resolver.Depth() > 1 {
		_, err = p.resolver.ResolveNext(name, from)
	} else {
		_, err = p.resolver.Resolve(name, angled, from)
	}
	return err == nil
}

// pragma handles #pragma once; the parser reads no other pragma.
func (p *Preprocessor) pragma(f *fileState, d directive) {
	args := withoutBlanks(d.args)
	if len(args) == 1 && args[0].Kind == Ident && args[0].Text == "once" {
		p.resolver.MarkOnce(f.path)
		return
	}
	p.log.WithField("pos", d.pos.String()).Debugf("ignoring #pragma %s", Join(d.args))
}
