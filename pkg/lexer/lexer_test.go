package lexer

import "testing"

type expectedToken struct {
	expectedType    TokenType
	expectedLiteral string
}

func checkTokens(t *testing.T, input string, tests []expectedToken) {
	t.Helper()
	l := New(input)

	for i, tt := range tests {
		tok := l.NextToken()

		if tok.Type != tt.expectedType {
			t.Fatalf("tests[%d] - tokentype wrong. expected=%q, got=%q",
				i, tt.expectedType, tok.Type)
		}

		if tok.Literal != tt.expectedLiteral {
			t.Fatalf("tests[%d] - literal wrong. expected=%q, got=%q",
				i, tt.expectedLiteral, tok.Literal)
		}
	}
}

func TestNextToken(t *testing.T) {
	input := `int main() { return 42; }`

	checkTokens(t, input, []expectedToken{
		{TokenInt_, "int"},
		{TokenIdent, "main"},
		{TokenLParen, "("},
		{TokenRParen, ")"},
		{TokenLBrace, "{"},
		{TokenReturn, "return"},
		{TokenInt, "42"},
		{TokenSemicolon, ";"},
		{TokenRBrace, "}"},
		{TokenEOF, ""},
	})
}

func TestOperators(t *testing.T) {
	input := `+ - * / % = == != < <= > >= && || ! & | ^ ~`

	checkTokens(t, input, []expectedToken{
		{TokenPlus, "+"},
		{TokenMinus, "-"},
		{TokenStar, "*"},
		{TokenSlash, "/"},
		{TokenPercent, "%"},
		{TokenAssign, "="},
		{TokenEq, "=="},
		{TokenNe, "!="},
		{TokenLt, "<"},
		{TokenLe, "<="},
		{TokenGt, ">"},
		{TokenGe, ">="},
		{TokenAnd, "&&"},
		{TokenOr, "||"},
		{TokenNot, "!"},
		{TokenAmpersand, "&"},
		{TokenPipe, "|"},
		{TokenCaret, "^"},
		{TokenTilde, "~"},
		{TokenEOF, ""},
	})
}

func TestCompoundOperators(t *testing.T) {
	input := `+= -= *= /= %= &= |= ^= <<= >>= << >> ++ -- -> ... ? : # ##`

	checkTokens(t, input, []expectedToken{
		{TokenPlusAssign, "+="},
		{TokenMinusAssign, "-="},
		{TokenStarAssign, "*="},
		{TokenSlashAssign, "/="},
		{TokenPercentAssign, "%="},
		{TokenAndAssign, "&="},
		{TokenOrAssign, "|="},
		{TokenXorAssign, "^="},
		{TokenShlAssign, "<<="},
		{TokenShrAssign, ">>="},
		{TokenShl, "<<"},
		{TokenShr, ">>"},
		{TokenIncrement, "++"},
		{TokenDecrement, "--"},
		{TokenArrow, "->"},
		{TokenEllipsis, "..."},
		{TokenQuestion, "?"},
		{TokenColon, ":"},
		{TokenHash, "#"},
		{TokenHashHash, "##"},
		{TokenEOF, ""},
	})
}

func TestNumbers(t *testing.T) {
	input := `0x1fUL 0755 0b101 10241024L 1.5f .5 16.e-2 1e10 0x1p-3 0x1e+2`

	checkTokens(t, input, []expectedToken{
		{TokenInt, "0x1fUL"},
		{TokenInt, "0755"},
		{TokenInt, "0b101"},
		{TokenInt, "10241024L"},
		{TokenFloatLit, "1.5f"},
		{TokenFloatLit, ".5"},
		{TokenFloatLit, "16.e-2"},
		{TokenFloatLit, "1e10"},
		{TokenFloatLit, "0x1p-3"},
		{TokenInt, "0x1e"},
		{TokenPlus, "+"},
		{TokenInt, "2"},
		{TokenEOF, ""},
	})
}

func TestCharAndStringLiterals(t *testing.T) {
	input := `'a' '\n' L'x' "hi\"there" u8"utf" U"wide" L`

	checkTokens(t, input, []expectedToken{
		{TokenCharLit, "a"},
		{TokenCharLit, `\n`},
		{TokenCharLit, "x"},
		{TokenString, `hi\"there`},
		{TokenString, "utf"},
		{TokenString, "wide"},
		{TokenIdent, "L"},
		{TokenEOF, ""},
	})

	l := New(`L'x' u8"utf"`)
	if tok := l.NextToken(); tok.Prefix != "L" {
		t.Fatalf("prefix wrong. expected=%q, got=%q", "L", tok.Prefix)
	}
	if tok := l.NextToken(); tok.Prefix != "u8" {
		t.Fatalf("prefix wrong. expected=%q, got=%q", "u8", tok.Prefix)
	}
}

func TestKeywords(t *testing.T) {
	input := `_Bool __int128 _Float16 __float128 inline __inline__ _Thread_local _Alignof _Generic __attribute__ __restrict typeof __typeof__`

	checkTokens(t, input, []expectedToken{
		{TokenBool, "_Bool"},
		{TokenInt128, "__int128"},
		{TokenFloat16, "_Float16"},
		{TokenFloat128, "__float128"},
		{TokenInline, "inline"},
		{TokenInline, "__inline__"},
		{TokenThread, "_Thread_local"},
		{TokenAlignof, "_Alignof"},
		{TokenGeneric, "_Generic"},
		{TokenAttribute, "__attribute__"},
		{TokenRestrict, "__restrict"},
		{TokenTypeof, "typeof"},
		{TokenTypeof, "__typeof__"},
		{TokenEOF, ""},
	})
}

func TestComments(t *testing.T) {
	input := `int // comment
main /* block
comment */ ()`

	checkTokens(t, input, []expectedToken{
		{TokenInt_, "int"},
		{TokenIdent, "main"},
		{TokenLParen, "("},
		{TokenRParen, ")"},
		{TokenEOF, ""},
	})
}

func TestLineContinuation(t *testing.T) {
	input := "a \\\n b"

	checkTokens(t, input, []expectedToken{
		{TokenIdent, "a"},
		{TokenIdent, "b"},
		{TokenEOF, ""},
	})
}
