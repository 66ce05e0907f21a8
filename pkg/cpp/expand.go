package cpp

import (
	"errors"
	"fmt"
	"strings"
)

// errIncompleteCall reports a function-like macro invocation whose
// closing parenthesis has not been seen yet.
var errIncompleteCall = errors.New("unterminated argument list invoking macro")

// Expander rescans token sequences and replaces macro invocations. Each
// token carries the set of macros it came from so that recursion stops
// where the language says it does.
type Expander struct {
	macros *MacroTable
}

// NewExpander returns an expander over macros.
func NewExpander(macros *MacroTable) *Expander {
	return &Expander{macros: macros}
}

// Expand fully macro-expands toks.
func (x *Expander) Expand(toks []Token) ([]Token, error) {
	in := append([]Token(nil), toks...)
	out := make([]Token, 0, len(toks))
	for len(in) > 0 {
		t := in[0]
		in = in[1:]
		m := x.invocable(t)
		switch {
		case m == nil:
			out = append(out, t)
		case m.builtin != nil:
			out = append(out, m.builtin(x.macros, t))
		case !m.FuncLike:
			body, err := x.substitute(m, nil, t.hide.with(m.Name), t.Pos)
			if err != nil {
				return nil, err
			}
			in = append(body, in...)
		default:
			open := skipBlank(in, 0)
			if open >= len(in) || !in[open].Is("(") {
				out = append(out, t)
				continue
			}
			args, end, err := x.collectArgs(m, in[open+1:])
			if err != nil {
				return nil, fmt.Errorf("%s: %w", t.Pos, err)
			}
			rparen := in[open+1+end]
			body, err := x.substitute(m, args, t.hide.intersect(rparen.hide).with(m.Name), t.Pos)
			if err != nil {
				return nil, err
			}
			in = append(body, in[open+2+end:]...)
		}
	}
	return out, nil
}

// ExpandString expands the macros in a line of source text.
func (x *Expander) ExpandString(src string) (string, error) {
	out, err := x.Expand(lexFragment(src, Pos{File: "<string>", Line: 1}))
	if err != nil {
		return "", err
	}
	return Join(out), nil
}

// invocable returns the macro t names, unless t may not expand.
func (x *Expander) invocable(t Token) *Macro {
	if t.Kind != Ident || t.hide.has(t.Text) {
		return nil
	}
	return x.macros.Lookup(t.Text)
}

// collectArgs splits the tokens after an invocation's '(' into
// arguments and returns the index of the closing ')'. Commas inside
// nested parentheses, and those among the variable arguments, do not
// split.
func (x *Expander) collectArgs(m *Macro, toks []Token) ([][]Token, int, error) {
	var args [][]Token
	var cur []Token
	depth := 0
	for i, t := range toks {
		switch {
		case t.Is("("):
			depth++
		case t.Is(")") && depth > 0:
			depth--
		case t.Is(")"):
			checked, err := arity(m, append(args, trim(cur)))
			return checked, i, err
		case t.Is(",") && depth == 0 && !(m.Variadic && len(args) == len(m.Params)-1):
			args = append(args, trim(cur))
			cur = nil
			continue
		}
		if t.Kind == Newline {
			t = Token{Kind: Space, Text: " ", Pos: t.Pos, hide: t.hide}
		}
		cur = append(cur, t)
	}
	return nil, 0, fmt.Errorf("%w %s", errIncompleteCall, m.Name)
}

// arity checks the argument count of an invocation. F() passes no
// arguments to a macro without parameters, and a variadic macro may be
// called without its variable arguments.
func arity(m *Macro, args [][]Token) ([][]Token, error) {
	n := len(m.Params)
	if n == 0 && len(args) == 1 && len(args[0]) == 0 {
		return nil, nil
	}
	if m.Variadic && len(args) == n-1 {
		args = append(args, nil)
	}
	switch {
	case len(args) < n:
		return nil, fmt.Errorf("macro %q requires %d arguments, but only %d given", m.Name, n, len(args))
	case len(args) > n:
		return nil, fmt.Errorf("macro %q passed %d arguments, but takes just %d", m.Name, len(args), n)
	}
	return args, nil
}

// substitute builds the replacement of one invocation: parameters are
// replaced, # and ## applied, and every resulting token gets hs added to
// its hideset and the invocation's position.
func (x *Expander) substitute(m *Macro, args [][]Token, hs hideset, at Pos) ([]Token, error) {
	s := substitution{x: x, m: m, args: args, expanded: make(map[int][]Token)}
	toks, err := s.run(m.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: in expansion of macro %s: %w", at, m.Name, err)
	}
	toks, err = pasteAll(toks)
	if err != nil {
		return nil, fmt.Errorf("%s: in expansion of macro %s: %w", at, m.Name, err)
	}
	out := toks[:0]
	for _, t := range toks {
		if t.Kind == placemarker {
			continue
		}
		t.hide = t.hide.union(hs)
		t.Pos = at
		out = append(out, t)
	}
	return out, nil
}

// substitution is the state of replacing one invocation's parameters.
type substitution struct {
	x        *Expander
	m        *Macro
	args     [][]Token
	expanded map[int][]Token
}

func (s *substitution) run(body []Token) ([]Token, error) {
	var out []Token
	for i := 0; i < len(body); i++ {
		t := body[i]
		switch {
		case t.Is("##"):
			j := skipBlank(body, i+1)
			if s.gnuComma(out, body, j) {
				// ", ## __VA_ARGS__" drops the comma when there are no
				// variable arguments, and never pastes
				va := s.args[len(s.args)-1]
				if len(va) == 0 {
					out = dropComma(out)
				} else {
					out = append(out, va...)
				}
				i = j
				continue
			}
			out = append(out, Token{Kind: paste, Text: "##", Pos: t.Pos})
		case t.Is("#") && s.m.FuncLike:
			j := skipBlank(body, i+1)
			operand, next, err := s.operand(body, j)
			if err != nil {
				return nil, err
			}
			out = append(out, stringize(operand, t.Pos))
			i = next
		case t.Kind == Ident && t.Text == "__VA_OPT__" && s.m.Variadic:
			group, next, err := s.vaOpt(body, i+1)
			if err != nil {
				return nil, err
			}
			out = append(out, group...)
			i = next
		case t.Kind == Ident && s.m.param(t.Text) >= 0:
			p := s.m.param(t.Text)
			if adjacentPaste(out, body, i) {
				out = append(out, s.raw(p)...)
				continue
			}
			exp, err := s.expand(p)
			if err != nil {
				return nil, err
			}
			out = append(out, exp...)
		default:
			out = append(out, t)
		}
	}
	return out, nil
}

// operand returns the tokens a '#' at body[j-1] applies to: a parameter
// or a __VA_OPT__ group.
func (s *substitution) operand(body []Token, j int) ([]Token, int, error) {
	if j < len(body) && body[j].Kind == Ident {
		if body[j].Text == "__VA_OPT__" && s.m.Variadic {
			group, next, err := s.vaOpt(body, j+1)
			return group, next, err
		}
		if p := s.m.param(body[j].Text); p >= 0 {
			return s.args[p], j, nil
		}
	}
	return nil, 0, fmt.Errorf("'#' is not followed by a macro parameter")
}

// vaOpt substitutes the group of a __VA_OPT__ whose '(' is at or after
// body[i]. The group vanishes when the variable arguments are empty.
func (s *substitution) vaOpt(body []Token, i int) ([]Token, int, error) {
	open := skipBlank(body, i)
	if open >= len(body) || !body[open].Is("(") {
		return nil, 0, fmt.Errorf("__VA_OPT__ must be followed by an open parenthesis")
	}
	depth := 0
	for j := open; j < len(body); j++ {
		switch {
		case body[j].Is("("):
			depth++
		case body[j].Is(")"):
			depth--
			if depth > 0 {
				continue
			}
			va, err := s.expand(len(s.m.Params) - 1)
			if err != nil {
				return nil, 0, err
			}
			if len(trim(va)) == 0 {
				return []Token{{Kind: placemarker, Pos: body[open].Pos}}, j, nil
			}
			group, err := s.run(body[open+1 : j])
			if err != nil {
				return nil, 0, err
			}
			if len(group) == 0 {
				group = []Token{{Kind: placemarker, Pos: body[open].Pos}}
			}
			return group, j, nil
		}
	}
	return nil, 0, fmt.Errorf("unterminated __VA_OPT__")
}

// raw is argument p as written, or a placemarker when it is empty.
func (s *substitution) raw(p int) []Token {
	if len(s.args[p]) == 0 {
		return []Token{{Kind: placemarker}}
	}
	return s.args[p]
}

// expand is argument p fully macro-expanded on its own.
func (s *substitution) expand(p int) ([]Token, error) {
	if exp, ok := s.expanded[p]; ok {
		return exp, nil
	}
	exp, err := s.x.Expand(s.args[p])
	if err != nil {
		return nil, err
	}
	s.expanded[p] = exp
	return exp, nil
}

// gnuComma reports whether the '##' before body[j] sits between a comma
// and the variable-argument parameter.
func (s *substitution) gnuComma(out, body []Token, j int) bool {
	if !s.m.Variadic || j >= len(body) || body[j].Kind != Ident || s.m.param(body[j].Text) != len(s.m.Params)-1 {
		return false
	}
	k := len(out) - 1
	for k >= 0 && out[k].blank() {
		k--
	}
	return k >= 0 && out[k].Is(",")
}

func dropComma(out []Token) []Token {
	for k := len(out) - 1; k >= 0; k-- {
		if out[k].Is(",") {
			return out[:k]
		}
	}
	return out
}

// adjacentPaste reports whether body[i] is an operand of '##'.
func adjacentPaste(out, body []Token, i int) bool {
	k := len(out) - 1
	for k >= 0 && out[k].blank() {
		k--
	}
	if k >= 0 && out[k].Kind == paste {
		return true
	}
	j := skipBlank(body, i+1)
	return j < len(body) && body[j].Is("##")
}

// pasteAll applies every '##' left to right.
func pasteAll(toks []Token) ([]Token, error) {
	var out []Token
	for i := 0; i < len(toks); i++ {
		if toks[i].Kind != paste {
			out = append(out, toks[i])
			continue
		}
		out = trim(out)
		j := skipBlank(toks, i+1)
		if len(out) == 0 || j >= len(toks) {
			return nil, fmt.Errorf("'##' cannot appear at either end of a macro expansion")
		}
		lhs, rhs := out[len(out)-1], toks[j]
		joined, err := pasteTokens(lhs, rhs)
		if err != nil {
			return nil, err
		}
		out = append(out[:len(out)-1], joined)
		i = j
	}
	return out, nil
}

// pasteTokens concatenates the spellings of two tokens, which must form
// a single token.
func pasteTokens(lhs, rhs Token) (Token, error) {
	switch {
	case lhs.Kind == placemarker:
		return rhs, nil
	case rhs.Kind == placemarker:
		return lhs, nil
	}
	text := lhs.Text + rhs.Text
	toks := Tokenize(text, lhs.Pos.File)
	if len(toks) != 2 || toks[0].blank() {
		return Token{}, fmt.Errorf("pasting %q and %q does not give a valid preprocessing token", lhs.Text, rhs.Text)
	}
	t := toks[0]
	t.Pos = lhs.Pos
	t.hide = lhs.hide.intersect(rhs.hide)
	return t, nil
}

// stringize spells toks as a string literal for the '#' operator.
func stringize(toks []Token, pos Pos) Token {
	var sb strings.Builder
	sb.WriteByte('"')
	space := false
	for _, t := range trim(toks) {
		if t.blank() {
			space = true
			continue
		}
		if t.Kind == placemarker {
			continue
		}
		if space {
			sb.WriteByte(' ')
			space = false
		}
		if t.Kind == StringLit || t.Kind == CharLit {
			sb.WriteString(strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(t.Text))
			continue
		}
		sb.WriteString(t.Text)
	}
	sb.WriteByte('"')
	return Token{Kind: StringLit, Text: sb.String(), Pos: pos}
}
