package cpp

import (
	"fmt"
	"strconv"
	"strings"
)

// Macro is one macro definition.
type Macro struct {
	Name     string
	FuncLike bool
	// Params names the parameters. The last one collects the variable
	// arguments of a variadic macro; it is __VA_ARGS__ unless the GNU
	// "name..." spelling was used.
	Params   []string
	Variadic bool
	Body     []Token
	Pos      Pos

	// builtin computes the expansion of a dynamic macro like __LINE__.
	builtin func(t *MacroTable, at Token) Token
}

// param returns the index of the parameter called name, or -1.
func (m *Macro) param(name string) int {
	for i, p := range m.Params {
		if p == name {
			return i
		}
	}
	return -1
}

// sameAs reports whether redefining m as o is benign.
func (m *Macro) sameAs(o *Macro) bool {
	if m.FuncLike != o.FuncLike || m.Variadic != o.Variadic || strings.Join(m.Params, ",") != strings.Join(o.Params, ",") {
		return false
	}
	return normalize(m.Body) == normalize(o.Body)
}

func normalize(toks []Token) string {
	var sb strings.Builder
	for _, t := range trim(toks) {
		if t.blank() {
			sb.WriteByte(' ')
			continue
		}
		sb.WriteString(t.Text)
	}
	return sb.String()
}

// MacroTable holds the macros currently defined.
type MacroTable struct {
	macros  map[string]*Macro
	counter int

	// Redefined is called when a macro is redefined with a different body.
	Redefined func(old, m *Macro)
}

// NewMacroTable returns a table with the predefined macros.
func NewMacroTable() *MacroTable {
	t := &MacroTable{macros: make(map[string]*Macro)}
	dynamic := map[string]func(*MacroTable, Token) Token{
		"__FILE__": func(_ *MacroTable, at Token) Token {
			return Token{Kind: StringLit, Text: strconv.Quote(at.Pos.File), Pos: at.Pos}
		},
		"__LINE__": func(_ *MacroTable, at Token) Token {
			return Token{Kind: Number, Text: strconv.Itoa(at.Pos.Line), Pos: at.Pos}
		},
		"__COUNTER__": func(t *MacroTable, at Token) Token {
			n := t.counter
			t.counter++
			return Token{Kind: Number, Text: strconv.Itoa(n), Pos: at.Pos}
		},
	}
	for name, fn := range dynamic {
		t.macros[name] = &Macro{Name: name, builtin: fn}
	}
	for _, d := range []string{"__STDC__=1", "__STDC_VERSION__=201710L", "__STDC_HOSTED__=1"} {
		t.DefineCmdline(d, "<built-in>")
	}
	return t
}

// Lookup returns the definition of name, or nil.
func (t *MacroTable) Lookup(name string) *Macro {
	return t.macros[name]
}

// IsDefined reports whether name is a macro.
func (t *MacroTable) IsDefined(name string) bool {
	return t.macros[name] != nil
}

// Undefine removes name. Undefining an unknown name does nothing.
func (t *MacroTable) Undefine(name string) error {
	if m := t.macros[name]; m != nil && m.builtin != nil {
		return fmt.Errorf("undefining builtin macro %s", name)
	}
	delete(t.macros, name)
	return nil
}

// Define adds m, replacing an earlier definition of the same name.
func (t *MacroTable) Define(m *Macro) error {
	switch m.Name {
	case "defined", "__VA_ARGS__", "__VA_OPT__":
		return fmt.Errorf("%q cannot be used as a macro name", m.Name)
	}
	seen := make(map[string]bool, len(m.Params))
	for _, p := range m.Params {
		if seen[p] {
			return fmt.Errorf("duplicate macro parameter %q", p)
		}
		seen[p] = true
	}
	m.Body = trim(m.Body)
	if old := t.macros[m.Name]; old != nil {
		if old.builtin != nil {
			return fmt.Errorf("redefining builtin macro %s", m.Name)
		}
		if t.Redefined != nil && !old.sameAs(m) {
			t.Redefined(old, m)
		}
	}
	t.macros[m.Name] = m
	return nil
}

// DefineCmdline applies a -D option, NAME or NAME=VALUE; a bare NAME
// stands for 1.
func (t *MacroTable) DefineCmdline(def, origin string) {
	name, value, ok := strings.Cut(def, "=")
	if !ok {
		value = "1"
	}
	pos := Pos{File: origin}
	m := &Macro{Name: name, Pos: pos}
	if i := strings.IndexByte(name, '('); i > 0 && strings.HasSuffix(name, ")") {
		// -D'F(x)=x'
		params := strings.Split(name[i+1:len(name)-1], ",")
		m.Name, m.FuncLike = name[:i], true
		for _, p := range params {
			if p = strings.TrimSpace(p); p != "" {
				m.Params = append(m.Params, p)
			}
		}
	}
	m.Body = lexFragment(value, pos)
	_ = t.Define(m)
}

// lexFragment scans text that sits on a single logical line.
func lexFragment(text string, pos Pos) []Token {
	toks := Tokenize(text, pos.File)
	toks = toks[:len(toks)-1]
	for i := range toks {
		toks[i].Pos = pos
		if toks[i].Kind == Newline {
			toks[i] = Token{Kind: Space, Text: " ", Pos: pos}
		}
	}
	return toks
}
