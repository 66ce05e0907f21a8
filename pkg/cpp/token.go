// Package cpp is the C preprocessor in front of the parser. It keeps one
// output line per input line so that parser positions stay valid, and it
// records the main file's #define lines for macro translation.
package cpp

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
)

// Kind classifies a preprocessing token.
type Kind uint8

const (
	EOF Kind = iota
	Ident
	Number
	CharLit
	StringLit
	Punct
	Space   // horizontal white space or a comment
	Newline // ends a logical line
	Other   // a stray character such as '@' or '`'

	// only produced while a replacement list is being substituted
	paste
	placemarker
)

var kindNames = [...]string{
	EOF:         "EOF",
	Ident:       "identifier",
	Number:      "number",
	CharLit:     "character constant",
	StringLit:   "string literal",
	Punct:       "punctuator",
	Space:       "space",
	Newline:     "newline",
	Other:       "other",
	paste:       "##",
	placemarker: "placemarker",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// Pos is a presumed source position.
type Pos struct {
	File string
	Line int
	Col  int
}

func (p Pos) String() string {
	if p.Col == 0 {
		return fmt.Sprintf("%s:%d", p.File, p.Line)
	}
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Col)
}

// Token is one preprocessing token. Text is the spelling with line
// splices removed; comments are spelled as a single space.
type Token struct {
	Kind Kind
	Text string
	Pos  Pos

	hide hideset
}

// Is reports whether t is the punctuator p.
func (t Token) Is(p string) bool {
	return t.Kind == Punct && t.Text == p
}

func (t Token) String() string {
	return fmt.Sprintf("%s %q", t.Kind, t.Text)
}

// blank reports whether t separates tokens without being one.
func (t Token) blank() bool {
	return t.Kind == Space || t.Kind == Newline
}

// hideset holds the names of macros whose expansion produced a token; a
// token never expands a macro in its own hideset.
type hideset []string

func (h hideset) has(name string) bool {
	return lo.Contains(h, name)
}

func (h hideset) with(name string) hideset {
	if h.has(name) {
		return h
	}
	out := make(hideset, len(h), len(h)+1)
	copy(out, h)
	return append(out, name)
}

func (h hideset) union(o hideset) hideset {
	for _, name := range o {
		h = h.with(name)
	}
	return h
}

func (h hideset) intersect(o hideset) hideset {
	return hideset(lo.Filter(h, func(name string, _ int) bool { return o.has(name) }))
}

// Join spells toks as source text. A space is inserted between two tokens
// that would otherwise lex as one, which happens when one of them came
// from a macro expansion.
func Join(toks []Token) string {
	var sb strings.Builder
	var prev *Token
	for i := range toks {
		t := &toks[i]
		if t.Kind == placemarker {
			continue
		}
		if prev != nil && !prev.blank() && !t.blank() && glues(prev.Text, t.Text) {
			sb.WriteByte(' ')
		}
		sb.WriteString(t.Text)
		prev = t
	}
	return sb.String()
}

// glues reports whether a followed directly by b lexes differently from
// a and b on their own.
func glues(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	first := newScanner(a+b, "").next()
	return first.Text != a
}

// trim drops blank tokens at both ends of toks.
func trim(toks []Token) []Token {
	start, end := 0, len(toks)
	for start < end && toks[start].blank() {
		start++
	}
	for end > start && toks[end-1].blank() {
		end--
	}
	return toks[start:end]
}

// skipBlank returns the index of the first non-blank token at or after i.
func skipBlank(toks []Token, i int) int {
	for i < len(toks) && toks[i].blank() {
		i++
	}
	return i
}
