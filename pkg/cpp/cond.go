package cpp

import (
	"fmt"
)

// ifGroup is one open #if group.
type ifGroup struct {
	pos     Pos
	live    bool // lines of the current branch are processed
	taken   bool // a branch has been processed, or none may be
	sawElse bool
}

// ifStack holds the open groups of one file.
type ifStack []ifGroup

func (s ifStack) active() bool {
	return len(s) == 0 || s[len(s)-1].live
}

// open starts a group whose first branch is taken when cond holds. Inside
// a skipped group no branch is taken.
func (s *ifStack) open(pos Pos, cond bool) {
	parent := s.active()
	*s = append(*s, ifGroup{pos: pos, live: parent && cond, taken: !parent || cond})
}

// elif switches to the next branch; cond is only evaluated when the
// branch could be taken.
func (s *ifStack) elif(name string, cond func() (bool, error)) error {
	if len(*s) == 0 {
		return fmt.Errorf("#%s without #if", name)
	}
	g := &(*s)[len(*s)-1]
	if g.sawElse {
		return fmt.Errorf("#%s after #else", name)
	}
	g.live = false
	if g.taken {
		return nil
	}
	ok, err := cond()
	if err != nil {
		return err
	}
	g.live, g.taken = ok, ok
	return nil
}

func (s *ifStack) els() error {
	if len(*s) == 0 {
		return fmt.Errorf("#else without #if")
	}
	g := &(*s)[len(*s)-1]
	if g.sawElse {
		return fmt.Errorf("#else after #else")
	}
	g.sawElse = true
	g.live, g.taken = !g.taken, true
	return nil
}

func (s *ifStack) endif() error {
	if len(*s) == 0 {
		return fmt.Errorf("#endif without #if")
	}
	*s = (*s)[:len(*s)-1]
	return nil
}

// unterminated reports the innermost group left open at the end of a file.
func (s ifStack) unterminated() error {
	if len(s) == 0 {
		return nil
	}
	return fmt.Errorf("%s: unterminated conditional directive", s[len(s)-1].pos)
}

// queries are the operators an #if expression may apply to names.
type queries struct {
	hasInclude   func(name string, angled, next bool) bool
	hasBuiltin   func(name string) bool
	hasAttribute func(name string) bool
}

// condition evaluates the operand of #if or #elif.
func (p *Preprocessor) condition(f *fileState, toks []Token) (bool, error) {
	toks, err := p.resolveQueries(f.presume(toks))
	if err != nil {
		return false, err
	}
	toks, err = p.expander.Expand(toks)
	if err != nil {
		return false, err
	}
	// defined may also come out of a macro expansion
	toks, err = p.resolveQueries(toks)
	if err != nil {
		return false, err
	}
	v, err := evalExpr(toks)
	if err != nil {
		return false, err
	}
	return v.isTrue(), nil
}

// resolveQueries replaces defined and the __has_ operators by 0 or 1.
func (p *Preprocessor) resolveQueries(toks []Token) ([]Token, error) {
	out := make([]Token, 0, len(toks))
	for i := 0; i < len(toks); i++ {
		t := toks[i]
		if t.Kind != Ident {
			out = append(out, t)
			continue
		}
		var ok bool
		var next int
		var err error
		switch t.Text {
		case "defined":
			ok, next, err = p.defined(toks, i+1)
		case "__has_include", "__has_include_next":
			ok, next, err = p.hasInclude(toks, i+1, t.Text == "__has_include_next")
		case "__has_builtin", "__has_attribute", "__has_c_attribute", "__has_feature", "__has_extension":
			ok, next, err = p.hasName(t.Text, toks, i+1)
		default:
			out = append(out, t)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", t.Pos, err)
		}
		out = append(out, Token{Kind: Number, Text: map[bool]string{false: "0", true: "1"}[ok], Pos: t.Pos})
		i = next
	}
	return out, nil
}

// defined handles "defined X" and "defined(X)" with the operand at or
// after toks[i]. It returns the index of the last token used.
func (p *Preprocessor) defined(toks []Token, i int) (bool, int, error) {
	i = skipBlank(toks, i)
	paren := i < len(toks) && toks[i].Is("(")
	if paren {
		i = skipBlank(toks, i+1)
	}
	if i >= len(toks) || toks[i].Kind != Ident {
		return false, 0, fmt.Errorf("operator \"defined\" requires an identifier")
	}
	name := toks[i].Text
	if paren {
		i = skipBlank(toks, i+1)
		if i >= len(toks) || !toks[i].Is(")") {
			return false, 0, fmt.Errorf("missing ')' after \"defined\"")
		}
	}
	return p.isDefined(name), i, nil
}

// queryOps are the operators #ifdef reports as defined.
var queryOps = map[string]bool{
	"__has_include": true, "__has_include_next": true, "__has_builtin": true, "__has_attribute": true,
	"__has_c_attribute": true, "__has_feature": true, "__has_extension": true,
}

func (p *Preprocessor) isDefined(name string) bool {
	return queryOps[name] || p.macros.IsDefined(name)
}

// parenOperand returns the tokens between the parentheses that follow
// an operator, and the index of the ')'.
func parenOperand(op string, toks []Token, i int) ([]Token, int, error) {
	i = skipBlank(toks, i)
	if i >= len(toks) || !toks[i].Is("(") {
		return nil, 0, fmt.Errorf("missing '(' after %s", op)
	}
	depth := 0
	for j := i; j < len(toks); j++ {
		switch {
		case toks[j].Is("("):
			depth++
		case toks[j].Is(")"):
			depth--
			if depth == 0 {
				return trim(toks[i+1 : j]), j, nil
			}
		}
	}
	return nil, 0, fmt.Errorf("missing ')' after %s operand", op)
}

func (p *Preprocessor) hasInclude(toks []Token, i int, next bool) (bool, int, error) {
	operand, end, err := parenOperand("__has_include", toks, i)
	if err != nil {
		return false, 0, err
	}
	name, angled := headerName(operand)
	if name == "" {
		exp, err := p.expander.Expand(operand)
		if err != nil {
			return false, 0, err
		}
		if name, angled = headerName(exp); name == "" {
			return false, 0, fmt.Errorf("__has_include requires a header name")
		}
	}
	if p.queries.hasInclude == nil {
		return false, end, nil
	}
	return p.queries.hasInclude(name, angled, next), end, nil
}

func (p *Preprocessor) hasName(op string, toks []Token, i int) (bool, int, error) {
	operand, end, err := parenOperand(op, toks, i)
	if err != nil {
		return false, 0, err
	}
	operand = withoutBlanks(operand)
	if len(operand) == 0 || operand[len(operand)-1].Kind != Ident {
		return false, 0, fmt.Errorf("%s requires an identifier", op)
	}
	// gnu::packed names the attribute packed
	name := operand[len(operand)-1].Text
	var query func(string) bool
	switch op {
	case "__has_builtin":
		query = p.queries.hasBuiltin
	case "__has_attribute", "__has_c_attribute":
		query = p.queries.hasAttribute
	}
	if query == nil {
		return false, end, nil
	}
	return query(name), end, nil
}
