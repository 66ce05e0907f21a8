package cpp

import (
	"fmt"
	"strconv"
	"strings"
)

// directive is one parsed directive line. name is the directive name
// without the '#', or "" for a null directive; args holds the tokens after
// the name with the blanks at both ends removed.
type directive struct {
	name string
	pos  Pos
	args []Token
}

// conditional reports whether d opens, continues or closes a conditional
// group; those are looked at even inside skipped groups.
func (d directive) conditional() bool {
	switch d.name {
	case "if", "ifdef", "ifndef", "elif", "elifdef", "elifndef", "else", "endif":
		return true
	}
	return false
}

// parseDirective splits a line that starts with '#'.
func parseDirective(line []Token) directive {
	i := skipBlank(line, 0)
	d := directive{pos: line[i].Pos}
	i = skipBlank(line, i+1)
	if i >= len(line) {
		return d
	}
	switch line[i].Kind {
	case Ident:
		d.name = line[i].Text
		d.args = trim(line[i+1:])
	case Number:
		// GNU line marker: # 12 "file.c" 2
		d.name = "line"
		d.args = trim(line[i:])
	default:
		d.name = line[i].Text
	}
	return d
}

// ident returns the single macro name the directive takes.
func (d directive) ident() (string, error) {
	if len(d.args) == 0 || d.args[0].Kind != Ident {
		return "", fmt.Errorf("macro name missing in #%s", d.name)
	}
	return d.args[0].Text, nil
}

// macro parses the arguments of #define.
func (d directive) macro() (*Macro, error) {
	toks := d.args
	if len(toks) == 0 || toks[0].Kind != Ident {
		return nil, fmt.Errorf("macro names must be identifiers")
	}
	m := &Macro{Name: toks[0].Text, Pos: d.pos}
	rest := toks[1:]
	// a function-like macro has its '(' directly after the name
	if len(rest) > 0 && rest[0].Is("(") {
		m.FuncLike = true
		params, n, err := parseParams(rest[1:])
		if err != nil {
			return nil, fmt.Errorf("in definition of %s: %w", m.Name, err)
		}
		m.Params, m.Variadic = params.names, params.variadic
		rest = rest[1+n:]
	}
	m.Body = trim(rest)
	if err := checkBody(m); err != nil {
		return nil, fmt.Errorf("in definition of %s: %w", m.Name, err)
	}
	return m, nil
}

type paramList struct {
	names    []string
	variadic bool
}

// parseParams reads a parameter list after its '(' and returns how many
// tokens it used, the ')' included.
func parseParams(toks []Token) (paramList, int, error) {
	var pl paramList
	i := skipBlank(toks, 0)
	if i < len(toks) && toks[i].Is(")") {
		return pl, i + 1, nil
	}
	for {
		if i >= len(toks) {
			return pl, 0, fmt.Errorf("missing ')' in macro parameter list")
		}
		t := toks[i]
		switch {
		case t.Is("..."):
			pl.names = append(pl.names, "__VA_ARGS__")
			pl.variadic = true
		case t.Kind == Ident && t.Text == "__VA_ARGS__":
			return pl, 0, fmt.Errorf("__VA_ARGS__ can only appear in the expansion of a variadic macro")
		case t.Kind == Ident:
			pl.names = append(pl.names, t.Text)
			if j := skipBlank(toks, i+1); j < len(toks) && toks[j].Is("...") {
				pl.variadic = true
				i = j
			}
		default:
			return pl, 0, fmt.Errorf("%q may not appear in macro parameter list", t.Text)
		}
		i = skipBlank(toks, i+1)
		switch {
		case i < len(toks) && toks[i].Is(")"):
			return pl, i + 1, nil
		case pl.variadic:
			return pl, 0, fmt.Errorf("missing ')' after variadic parameter")
		case i < len(toks) && toks[i].Is(","):
			i = skipBlank(toks, i+1)
		default:
			return pl, 0, fmt.Errorf("expected ',' or ')' in macro parameter list")
		}
	}
}

// checkBody rejects replacement lists the expander could not handle.
func checkBody(m *Macro) error {
	body := m.Body
	for i, t := range body {
		switch {
		case t.Is("##") && (i == 0 || i == len(body)-1):
			return fmt.Errorf("'##' cannot appear at either end of a macro expansion")
		case t.Is("#") && m.FuncLike:
			j := skipBlank(body, i+1)
			if j >= len(body) || body[j].Kind != Ident || (m.param(body[j].Text) < 0 && body[j].Text != "__VA_OPT__") {
				return fmt.Errorf("'#' is not followed by a macro parameter")
			}
		case t.Kind == Ident && t.Text == "__VA_ARGS__" && !(m.Variadic && m.param("__VA_ARGS__") >= 0):
			return fmt.Errorf("__VA_ARGS__ can only appear in the expansion of a variadic macro")
		}
	}
	return nil
}

// lineArgs parses "#line 12" and "#line 12 \"file.c\"".
func (d directive) lineArgs() (int, string, error) {
	args := withoutBlanks(d.args)
	if len(args) == 0 || args[0].Kind != Number {
		return 0, "", fmt.Errorf("#line directive requires a line number")
	}
	n, err := strconv.Atoi(args[0].Text)
	if err != nil || n < 0 {
		return 0, "", fmt.Errorf("%q after #line is not a positive integer", args[0].Text)
	}
	if len(args) < 2 {
		return n, "", nil
	}
	if args[1].Kind != StringLit || !strings.HasPrefix(args[1].Text, `"`) {
		return 0, "", fmt.Errorf("invalid filename %s", args[1].Text)
	}
	name, err := strconv.Unquote(args[1].Text)
	if err != nil {
		name = strings.Trim(args[1].Text, `"`)
	}
	return n, name, nil
}

// headerName returns the file named by an #include and whether it was
// spelled with angle brackets. Returns "" when the operand is not a
// literal header name.
func headerName(toks []Token) (string, bool) {
	toks = trim(toks)
	if len(toks) == 0 {
		return "", false
	}
	if toks[0].Kind == StringLit && strings.HasPrefix(toks[0].Text, `"`) && len(toks[0].Text) >= 2 {
		return toks[0].Text[1 : len(toks[0].Text)-1], false
	}
	if toks[0].Is("<") {
		var sb strings.Builder
		for _, t := range toks[1:] {
			if t.Is(">") {
				return sb.String(), true
			}
			sb.WriteString(t.Text)
		}
	}
	return "", false
}

func withoutBlanks(toks []Token) []Token {
	out := make([]Token, 0, len(toks))
	for _, t := range toks {
		if !t.blank() {
			out = append(out, t)
		}
	}
	return out
}
