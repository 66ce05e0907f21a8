package cpp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type tokenSpec struct {
	kind Kind
	text string
}

func specs(toks []Token) []tokenSpec {
	out := make([]tokenSpec, len(toks))
	for i, t := range toks {
		out[i] = tokenSpec{t.Kind, t.Text}
	}
	return out
}

func TestTokenize(t *testing.T) {
	src := "L\"w\" u8'c' 1'000'000 0x1p-3 a\\\nb // c\n/* d */x->y ## @"
	toks := Tokenize(src, "t.c")
	want := []tokenSpec{
		{StringLit, `L"w"`}, {Space, " "},
		{CharLit, `u8'c'`}, {Space, " "},
		{Number, "1'000'000"}, {Space, " "},
		{Number, "0x1p-3"}, {Space, " "},
		{Ident, "ab"}, {Space, " "},
		{Newline, "\n"},
		{Space, " "}, {Ident, "x"}, {Punct, "->"}, {Ident, "y"}, {Space, " "},
		{Punct, "##"}, {Space, " "},
		{Other, "@"},
		{EOF, ""},
	}
	assert.Equal(t, want, specs(toks))
	assert.Equal(t, Pos{File: "t.c", Line: 3, Col: 8}, toks[12].Pos)
}

func TestTokenizeUnterminatedLiteralStopsAtNewline(t *testing.T) {
	toks := Tokenize("'abc\nx", "t.c")
	want := []tokenSpec{{CharLit, "'abc"}, {Newline, "\n"}, {Ident, "x"}, {EOF, ""}}
	assert.Equal(t, want, specs(toks))
}

func TestTokenizePunctuators(t *testing.T) {
	toks := Tokenize("a<<=b...c", "t.c")
	want := []tokenSpec{{Ident, "a"}, {Punct, "<<="}, {Ident, "b"}, {Punct, "..."}, {Ident, "c"}, {EOF, ""}}
	assert.Equal(t, want, specs(toks))
}

func TestGlues(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"-", "-", true},
		{"+", "=", true},
		{"a", "b", true},
		{"1", "x", true},
		{".", "5", true},
		{"/", "/", true},
		{"<", "<", true},
		{"(", "x", false},
		{"x", "(", false},
		{"-", "x", false},
		{"", "x", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, glues(tt.a, tt.b), "%q %q", tt.a, tt.b)
	}
}

func TestHideset(t *testing.T) {
	var h hideset
	h = h.with("A").with("B").with("A")
	assert.Equal(t, hideset{"A", "B"}, h)
	assert.True(t, h.has("B"))
	assert.False(t, h.has("C"))
	assert.Equal(t, hideset{"A", "B", "C"}, h.union(hideset{"B", "C"}))
	assert.Equal(t, hideset{"B"}, h.intersect(hideset{"B", "C"}))
	assert.Empty(t, h.intersect(nil))
}
