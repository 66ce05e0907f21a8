package lexer

// TokenType represents the type of a token
type TokenType int

const (
	// Special tokens
	TokenEOF TokenType = iota
	TokenIllegal

	// Literals
	TokenIdent    // main, foo, x
	TokenInt      // 42, 0x1fUL
	TokenFloatLit // 1.5f, 16.e-2
	TokenCharLit  // 'a', L'x'
	TokenString   // "hello", u8"x"

	// Keywords
	TokenInt_     // int
	TokenVoid     // void
	TokenReturn   // return
	TokenIf       // if
	TokenElse     // else
	TokenWhile    // while
	TokenDo       // do
	TokenFor      // for
	TokenBreak    // break
	TokenContinue // continue
	TokenSwitch   // switch
	TokenCase     // case
	TokenDefault  // default
	TokenGoto     // goto
	TokenTypedef  // typedef
	TokenStruct   // struct
	TokenSizeof   // sizeof
	TokenUnion    // union
	TokenEnum     // enum
	TokenStatic   // static
	TokenExtern   // extern
	TokenAuto     // auto
	TokenRegister // register
	TokenConst    // const
	TokenVolatile // volatile
	TokenRestrict // restrict
	TokenChar     // char
	TokenShort    // short
	TokenLong     // long
	TokenFloat    // float
	TokenDouble   // double
	TokenSigned   // signed
	TokenUnsigned // unsigned
	TokenBool     // _Bool
	TokenInline   // inline
	TokenThread   // _Thread_local
	TokenAlignof  // _Alignof
	TokenGeneric  // _Generic
	TokenStaticAssert
	TokenInt128   // __int128
	TokenFloat16  // _Float16
	TokenFloat128 // __float128
	TokenAtomic   // _Atomic
	TokenAttribute
	TokenExtension // __extension__
	TokenNoreturn  // _Noreturn
	TokenTypeof    // typeof


	// Operators
	TokenPlus      // +
	TokenMinus     // -
	TokenStar      // *
	TokenSlash     // /
	TokenPercent   // %
	TokenAssign    // =
	TokenEq        // ==
	TokenNe        // !=
	TokenLt        // <
	TokenLe        // <=
	TokenGt        // >
	TokenGe        // >=
	TokenAnd       // &&
	TokenOr        // ||
	TokenNot       // !
	TokenAmpersand // &
	TokenPipe      // |
	TokenCaret     // ^
	TokenTilde     // ~
	TokenShl       // <<
	TokenShr       // >>
	TokenQuestion  // ?
	TokenColon     // :

	// Compound assignment operators
	TokenPlusAssign    // +=
	TokenMinusAssign   // -=
	TokenStarAssign    // *=
	TokenSlashAssign   // /=
	TokenPercentAssign // %=
	TokenAndAssign     // &=
	TokenOrAssign      // |=
	TokenXorAssign     // ^=
	TokenShlAssign     // <<=
	TokenShrAssign     // >>=

	// Increment/decrement
	TokenIncrement // ++
	TokenDecrement // --

	// Delimiters
	TokenLParen    // (
	TokenRParen    // )
	TokenLBrace    // {
	TokenRBrace    // }
	TokenLBracket  // [
	TokenRBracket  // ]
	TokenSemicolon // ;
	TokenComma     // ,
	TokenDot       // .
	TokenArrow     // ->
	TokenEllipsis  // ...

	// Preprocessing operators, only meaningful in macro bodies
	TokenHash     // #
	TokenHashHash // ##
)

var tokenNames = map[TokenType]string{
	TokenEOF:           "EOF",
	TokenIllegal:       "ILLEGAL",
	TokenIdent:         "IDENT",
	TokenInt:           "INT",
	TokenFloatLit:      "FLOAT",
	TokenCharLit:       "CHAR",
	TokenString:        "STRING",
	TokenInt_:          "int",
	TokenVoid:          "void",
	TokenReturn:        "return",
	TokenIf:            "if",
	TokenElse:          "else",
	TokenWhile:         "while",
	TokenDo:            "do",
	TokenFor:           "for",
	TokenBreak:         "break",
	TokenContinue:      "continue",
	TokenSwitch:        "switch",
	TokenCase:          "case",
	TokenDefault:       "default",
	TokenGoto:          "goto",
	TokenTypedef:       "typedef",
	TokenStruct:        "struct",
	TokenSizeof:        "sizeof",
	TokenUnion:         "union",
	TokenEnum:          "enum",
	TokenStatic:        "static",
	TokenExtern:        "extern",
	TokenAuto:          "auto",
	TokenRegister:      "register",
	TokenConst:         "const",
	TokenVolatile:      "volatile",
	TokenRestrict:      "restrict",
	TokenChar:          "char",
	TokenShort:         "short",
	TokenLong:          "long",
	TokenFloat:         "float",
	TokenDouble:        "double",
	TokenSigned:        "signed",
	TokenUnsigned:      "unsigned",
	TokenBool:          "_Bool",
	TokenInline:        "inline",
	TokenThread:        "_Thread_local",
	TokenAlignof:       "_Alignof",
	TokenGeneric:       "_Generic",
	TokenStaticAssert:  "_Static_assert",
	TokenInt128:        "__int128",
	TokenFloat16:       "_Float16",
	TokenFloat128:      "__float128",
	TokenAtomic:        "_Atomic",
	TokenAttribute:     "__attribute__",
	TokenExtension:     "__extension__",
	TokenNoreturn:      "_Noreturn",
	TokenTypeof:        "typeof",
	TokenPlus:          "+",
	TokenMinus:         "-",
	TokenStar:          "*",
	TokenSlash:         "/",
	TokenPercent:       "%",
	TokenAssign:        "=",
	TokenEq:            "==",
	TokenNe:            "!=",
	TokenLt:            "<",
	TokenLe:            "<=",
	TokenGt:            ">",
	TokenGe:            ">=",
	TokenAnd:           "&&",
	TokenOr:            "||",
	TokenNot:           "!",
	TokenAmpersand:     "&",
	TokenPipe:          "|",
	TokenCaret:         "^",
	TokenTilde:         "~",
	TokenShl:           "<<",
	TokenShr:           ">>",
	TokenQuestion:      "?",
	TokenColon:         ":",
	TokenPlusAssign:    "+=",
	TokenMinusAssign:   "-=",
	TokenStarAssign:    "*=",
	TokenSlashAssign:   "/=",
	TokenPercentAssign: "%=",
	TokenAndAssign:     "&=",
	TokenOrAssign:      "|=",
	TokenXorAssign:     "^=",
	TokenShlAssign:     "<<=",
	TokenShrAssign:     ">>=",
	TokenIncrement:     "++",
	TokenDecrement:     "--",
	TokenLParen:        "(",
	TokenRParen:        ")",
	TokenLBrace:        "{",
	TokenRBrace:        "}",
	TokenLBracket:      "[",
	TokenRBracket:      "]",
	TokenSemicolon:     ";",
	TokenComma:         ",",
	TokenDot:           ".",
	TokenArrow:         "->",
	TokenEllipsis:      "...",
	TokenHash:          "#",
	TokenHashHash:      "##",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return "UNKNOWN"
}

// Token represents a lexical token
type Token struct {
	Type    TokenType
	Literal string
	Prefix  string // encoding prefix of character and string literals
	Line    int
	Column  int
}

// keywords maps keyword strings to token types, GNU spellings included
var keywords = map[string]TokenType{
	"int":            TokenInt_,
	"void":           TokenVoid,
	"return":         TokenReturn,
	"if":             TokenIf,
	"else":           TokenElse,
	"while":          TokenWhile,
	"do":             TokenDo,
	"for":            TokenFor,
	"break":          TokenBreak,
	"continue":       TokenContinue,
	"switch":         TokenSwitch,
	"case":           TokenCase,
	"default":        TokenDefault,
	"goto":           TokenGoto,
	"typedef":        TokenTypedef,
	"struct":         TokenStruct,
	"sizeof":         TokenSizeof,
	"union":          TokenUnion,
	"enum":           TokenEnum,
	"static":         TokenStatic,
	"extern":         TokenExtern,
	"auto":           TokenAuto,
	"register":       TokenRegister,
	"const":          TokenConst,
	"__const":        TokenConst,
	"volatile":       TokenVolatile,
	"__volatile__":   TokenVolatile,
	"restrict":       TokenRestrict,
	"__restrict":     TokenRestrict,
	"__restrict__":   TokenRestrict,
	"char":           TokenChar,
	"short":          TokenShort,
	"long":           TokenLong,
	"float":          TokenFloat,
	"double":         TokenDouble,
	"signed":         TokenSigned,
	"__signed__":     TokenSigned,
	"unsigned":       TokenUnsigned,
	"_Bool":          TokenBool,
	"bool":           TokenBool,
	"inline":         TokenInline,
	"__inline":       TokenInline,
	"__inline__":     TokenInline,
	"_Thread_local":  TokenThread,
	"thread_local":   TokenThread,
	"__thread":       TokenThread,
	"_Alignof":       TokenAlignof,
	"alignof":        TokenAlignof,
	"__alignof__":    TokenAlignof,
	"_Generic":       TokenGeneric,
	"_Static_assert": TokenStaticAssert,
	"static_assert":  TokenStaticAssert,
	"__int128":       TokenInt128,
	"_Float16":       TokenFloat16,
	"__fp16":         TokenFloat16,
	"__float128":     TokenFloat128,
	"_Atomic":        TokenAtomic,
	"__attribute__":  TokenAttribute,
	"__attribute":    TokenAttribute,
	"__extension__":  TokenExtension,
	"_Noreturn":      TokenNoreturn,
	"typeof":         TokenTypeof,
	"__typeof":       TokenTypeof,
	"__typeof__":     TokenTypeof,
}

// LookupIdent returns the token type for an identifier (keyword or IDENT)
func LookupIdent(ident string) TokenType {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return TokenIdent
}

// IsKeyword reports whether ident is a C keyword.
func IsKeyword(ident string) bool {
	_, ok := keywords[ident]
	return ok
}
