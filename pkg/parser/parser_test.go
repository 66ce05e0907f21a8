package parser

import (
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/raymyers/ralph-translate-c/pkg/cabs"
	"github.com/raymyers/ralph-translate-c/pkg/ctarget"
	"github.com/raymyers/ralph-translate-c/pkg/ctyper"
	"github.com/raymyers/ralph-translate-c/pkg/ctypes"
	"github.com/raymyers/ralph-translate-c/pkg/lexer"
)

// TestSpec represents a test case from parse.yaml
type TestSpec struct {
	Name  string  `yaml:"name"`
	Input string  `yaml:"input"`
	AST   ASTSpec `yaml:"ast"`
}

// ASTSpec represents the expected AST structure
type ASTSpec struct {
	Kind       string    `yaml:"kind"`
	Name       string    `yaml:"name,omitempty"`
	ReturnType string    `yaml:"return_type,omitempty"`
	Type       string    `yaml:"type,omitempty"`
	Body       *ASTSpec  `yaml:"body,omitempty"`
	Items      []ASTSpec `yaml:"items,omitempty"`
	Expr       *ASTSpec  `yaml:"expr,omitempty"`
	Left       *ASTSpec  `yaml:"left,omitempty"`
	Right      *ASTSpec  `yaml:"right,omitempty"`
	Op         string    `yaml:"op,omitempty"`
	Value      *uint64   `yaml:"value,omitempty"`
}

// TestFile represents the parse.yaml file structure
type TestFile struct {
	Tests []TestSpec `yaml:"tests"`
}

func TestParseYAML(t *testing.T) {
	data, err := os.ReadFile("../../testdata/parse.yaml")
	if err != nil {
		t.Fatalf("failed to read parse.yaml: %v", err)
	}

	var testFile TestFile
	if err := yaml.Unmarshal(data, &testFile); err != nil {
		t.Fatalf("failed to parse parse.yaml: %v", err)
	}

	for _, tc := range testFile.Tests {
		t.Run(tc.Name, func(t *testing.T) {
			p := New(lexer.New(tc.Input))
			defs := p.ParseDefinition()

			if len(p.Errors()) > 0 {
				t.Fatalf("parser errors: %v", p.Errors())
			}
			if len(defs) != 1 {
				t.Fatalf("expected 1 definition, got %d", len(defs))
			}

			verifyAST(t, defs[0], tc.AST)
		})
	}
}

func verifyAST(t *testing.T, node cabs.Node, spec ASTSpec) {
	t.Helper()

	switch spec.Kind {
	case "FunDef":
		funDef, ok := node.(cabs.FunDef)
		if !ok {
			t.Fatalf("expected FunDef, got %T", node)
		}
		if spec.Name != "" && funDef.Name != spec.Name {
			t.Errorf("FunDef.Name: expected %q, got %q", spec.Name, funDef.Name)
		}
		if spec.ReturnType != "" && funDef.Typ.Return.String() != spec.ReturnType {
			t.Errorf("FunDef.ReturnType: expected %q, got %q", spec.ReturnType, funDef.Typ.Return.String())
		}
		if spec.Body != nil {
			verifyAST(t, funDef.Body, *spec.Body)
		}

	case "VarDef":
		v, ok := node.(cabs.VarDef)
		if !ok {
			t.Fatalf("expected VarDef, got %T", node)
		}
		if spec.Name != "" && v.Name != spec.Name {
			t.Errorf("VarDef.Name: expected %q, got %q", spec.Name, v.Name)
		}
		if spec.Type != "" && v.Typ.String() != spec.Type {
			t.Errorf("VarDef.Type: expected %q, got %q", spec.Type, v.Typ.String())
		}

	case "Block":
		block, ok := node.(*cabs.Block)
		if !ok {
			t.Fatalf("expected Block, got %T", node)
		}
		if len(spec.Items) != len(block.Items) {
			t.Fatalf("Block.Items: expected %d items, got %d", len(spec.Items), len(block.Items))
		}
		for i, itemSpec := range spec.Items {
			verifyAST(t, block.Items[i], itemSpec)
		}

	case "Return":
		ret, ok := node.(cabs.Return)
		if !ok {
			t.Fatalf("expected Return, got %T", node)
		}
		if spec.Expr != nil {
			if ret.Expr == nil {
				t.Fatal("Return.Expr: expected expression, got nil")
			}
			verifyAST(t, ret.Expr, *spec.Expr)
		}

	case "ExprStmt":
		stmt, ok := node.(cabs.ExprStmt)
		if !ok {
			t.Fatalf("expected ExprStmt, got %T", node)
		}
		if spec.Expr != nil {
			verifyAST(t, stmt.Expr, *spec.Expr)
		}

	case "Constant":
		constant, ok := node.(cabs.Constant)
		if !ok {
			t.Fatalf("expected Constant, got %T", node)
		}
		if spec.Value != nil && constant.Value != *spec.Value {
			t.Errorf("Constant.Value: expected %d, got %d", *spec.Value, constant.Value)
		}

	case "Variable":
		variable, ok := node.(cabs.Variable)
		if !ok {
			t.Fatalf("expected Variable, got %T", node)
		}
		if spec.Name != "" && variable.Name != spec.Name {
			t.Errorf("Variable.Name: expected %q, got %q", spec.Name, variable.Name)
		}

	case "Binary":
		binary, ok := node.(cabs.Binary)
		if !ok {
			t.Fatalf("expected Binary, got %T", node)
		}
		if spec.Op != "" && binary.Op.String() != spec.Op {
			t.Errorf("Binary.Op: expected %q, got %q", spec.Op, binary.Op.String())
		}
		if spec.Left != nil {
			verifyAST(t, binary.Left, *spec.Left)
		}
		if spec.Right != nil {
			verifyAST(t, binary.Right, *spec.Right)
		}

	case "Unary":
		unary, ok := node.(cabs.Unary)
		if !ok {
			t.Fatalf("expected Unary, got %T", node)
		}
		if spec.Op != "" && unary.Op.String() != spec.Op {
			t.Errorf("Unary.Op: expected %q, got %q", spec.Op, unary.Op.String())
		}
		if spec.Expr != nil {
			verifyAST(t, unary.Expr, *spec.Expr)
		}

	case "Paren":
		paren, ok := node.(cabs.Paren)
		if !ok {
			t.Fatalf("expected Paren, got %T", node)
		}
		if spec.Expr != nil {
			verifyAST(t, paren.Expr, *spec.Expr)
		}

	case "Conditional":
		if _, ok := node.(cabs.Conditional); !ok {
			t.Fatalf("expected Conditional, got %T", node)
		}

	default:
		t.Fatalf("unknown AST kind: %s", spec.Kind)
	}
}

// exprString renders an untyped expression fully parenthesized
func exprString(e cabs.Expr) string {
	switch x := e.(type) {
	case cabs.Constant:
		return x.Text
	case cabs.Variable:
		return x.Name
	case cabs.Paren:
		return exprString(x.Expr)
	case cabs.Binary:
		return fmt.Sprintf("(%s %s %s)", exprString(x.Left), x.Op, exprString(x.Right))
	case cabs.Unary:
		if x.Op == cabs.OpPostInc || x.Op == cabs.OpPostDec {
			return fmt.Sprintf("(%s%s)", exprString(x.Expr), x.Op)
		}
		return fmt.Sprintf("(%s%s)", x.Op, exprString(x.Expr))
	case cabs.Conditional:
		return fmt.Sprintf("(%s ? %s : %s)", exprString(x.Cond), exprString(x.Then), exprString(x.Else))
	case cabs.Cast:
		return fmt.Sprintf("((%s)%s)", x.Typ, exprString(x.Expr))
	case cabs.Index:
		return fmt.Sprintf("%s[%s]", exprString(x.Array), exprString(x.Index))
	case cabs.Member:
		sep := "."
		if x.Arrow {
			sep = "->"
		}
		return exprString(x.Expr) + sep + x.Name
	case cabs.Call:
		args := make([]string, len(x.Args))
		for i, a := range x.Args {
			args[i] = exprString(a)
		}
		return fmt.Sprintf("%s(%s)", exprString(x.Func), strings.Join(args, ", "))
	}
	return fmt.Sprintf("<%T>", e)
}

func parseExpr(t *testing.T, input string) cabs.Expr {
	t.Helper()
	p := New(lexer.New(input))
	e := p.ParseExpression()
	require.Empty(t, p.Errors())
	return e
}

func TestOperatorPrecedence(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		// Multiplicative before additive
		{"1 + 2 * 3", "(1 + (2 * 3))"},
		{"2 * 3 + 4", "((2 * 3) + 4)"},
		// Parentheses override precedence
		{"(1 + 2) * 3", "((1 + 2) * 3)"},
		// Left associativity
		{"1 - 2 - 3", "((1 - 2) - 3)"},
		// Assignment is right associative
		{"a = b = c", "(a = (b = c))"},
		{"a < b == c < d", "((a < b) == (c < d))"},
		{"a & b | c ^ d", "((a & b) | (c ^ d))"},
		{"a || b && c", "(a || (b && c))"},
		{"x << 1 + y", "(x << (1 + y))"},
		{"c ? a : b ? d : e", "(c ? a : (b ? d : e))"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, exprString(parseExpr(t, tt.input)))
		})
	}
}

func TestPostfixAndUnary(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"-x", "(-x)"},
		{"!*p", "(!(*p))"},
		{"&a[2]", "(&a[2])"},
		{"p->next->val", "p->next->val"},
		{"s.f(1, 2)", "s.f(1, 2)"},
		{"i++ + ++j", "((i++) + (++j))"},
		{"(unsigned char)c", "((unsigned char)c)"},
		{"(long *)p + 1", "(((long *)p) + 1)"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, exprString(parseExpr(t, tt.input)))
		})
	}
}

func TestSizeofAndGeneric(t *testing.T) {
	e := parseExpr(t, "sizeof(int)")
	st, ok := e.(cabs.SizeofType)
	require.True(t, ok, "expected SizeofType, got %T", e)
	assert.Equal(t, ctypes.IntType(), st.Of)

	e = parseExpr(t, "sizeof x")
	_, ok = e.(cabs.SizeofExpr)
	assert.True(t, ok, "expected SizeofExpr, got %T", e)

	e = parseExpr(t, "_Generic(x, int: 1, default: 2)")
	g, ok := e.(cabs.Generic)
	require.True(t, ok, "expected Generic, got %T", e)
	require.Len(t, g.Assocs, 2)
	assert.Equal(t, ctypes.IntType(), g.Assocs[0].Of)
	assert.Nil(t, g.Assocs[1].Of)
}

func TestParseIntLiteral(t *testing.T) {
	tests := []struct {
		text   string
		value  uint64
		radix  int
		spell  string
		suffix string
	}{
		{"42", 42, 10, "42", ""},
		{"0x1Fu", 31, 16, "0x1F", "u"},
		{"017", 15, 8, "017", ""},
		{"0b101", 5, 2, "0b101", ""},
		{"0", 0, 10, "0", ""},
		{"42ULL", 42, 10, "42", "ULL"},
		{"1'000", 1000, 10, "1000", ""},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			c, err := ParseIntLiteral(tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.value, c.Value)
			assert.Equal(t, tt.radix, c.Radix)
			assert.Equal(t, tt.spell, c.Text)
			assert.Equal(t, tt.suffix, c.Suffix)
		})
	}

	_, err := ParseIntLiteral("18446744073709551616")
	assert.ErrorContains(t, err, "too large")
	_, err = ParseIntLiteral("09")
	assert.Error(t, err)
}

func TestParseFloatLiteral(t *testing.T) {
	tests := []struct {
		text   string
		value  float64
		suffix string
	}{
		{"1.5f", 1.5, "f"},
		{"0x1p-2", 0.25, ""},
		{"0x1.8p1F", 3, "F"},
		{"1e3L", 1000, "L"},
		{".5", 0.5, ""},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			f, err := ParseFloatLiteral(tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.value, f.Value)
			assert.Equal(t, tt.suffix, f.Suffix)
		})
	}
}

func TestStringLiterals(t *testing.T) {
	e := parseExpr(t, `"a\tb" "c\x41\101"`)
	s, ok := e.(cabs.StringLiteral)
	require.True(t, ok, "expected StringLiteral, got %T", e)
	assert.Equal(t, "a\tbcAA", s.Value)
	assert.Equal(t, "", s.Prefix)

	e = parseExpr(t, `L"x" "y"`)
	s = e.(cabs.StringLiteral)
	assert.Equal(t, "xy", s.Value)
	assert.Equal(t, "L", s.Prefix)

	e = parseExpr(t, `u"é"`)
	s = e.(cabs.StringLiteral)
	assert.Equal(t, "é", s.Value)
}

func typedParser(triple, input string) *Parser {
	sema := ctyper.New(ctypes.NewModel(ctarget.MustParse(triple)))
	return New(lexer.New(input), WithTyper(sema))
}

func TestCharLiteralSignedness(t *testing.T) {
	p := typedParser("x86_64-linux-gnu", `'\xff'`)
	c, ok := p.ParseExpression().(cabs.CharLiteral)
	require.True(t, ok)
	assert.Equal(t, int64(-1), c.Value)
	assert.Equal(t, ctypes.IntType(), c.Typ)

	p = typedParser("aarch64-linux-gnu", `'\xff'`)
	c = p.ParseExpression().(cabs.CharLiteral)
	assert.Equal(t, int64(255), c.Value)

	p = typedParser("x86_64-linux-gnu", `'ab'`)
	c = p.ParseExpression().(cabs.CharLiteral)
	assert.Equal(t, int64('a'<<8|'b'), c.Value)
}

func TestSplitDirectives(t *testing.T) {
	src := strings.Join([]string{
		"#define A 1",
		"#define F(x, ...) ((x) + 1) /* c */",
		"#include <stdio.h>",
		"#undef A",
		"int x;",
		"#define LONG 1 + \\",
		"  2",
		"#define OBJ (x)",
	}, "\n")
	code, macros := SplitDirectives(src)

	lines := strings.Split(code, "\n")
	require.Len(t, lines, 8)
	assert.Equal(t, "int x;", lines[4])
	assert.Equal(t, "", lines[0])

	require.Len(t, macros, 3)
	assert.Equal(t, "F", macros[0].Name)
	assert.True(t, macros[0].FuncLike)
	assert.True(t, macros[0].Variadic)
	assert.Equal(t, []string{"x", "__VA_ARGS__"}, macros[0].Params)
	assert.Equal(t, "((x) + 1)", macros[0].Body)
	assert.Equal(t, 2, macros[0].Pos.Line)

	assert.Equal(t, "LONG", macros[1].Name)
	assert.Equal(t, "1 +  2", macros[1].Body)

	assert.Equal(t, "OBJ", macros[2].Name)
	assert.False(t, macros[2].FuncLike)
	assert.Equal(t, "(x)", macros[2].Body)
}

func TestParseUnitDeclarations(t *testing.T) {
	src := `
typedef unsigned int u32;
struct point { int x, y; };
enum color { RED, GREEN = 5, BLUE };
static int counter = 3;
int add(int a, int b) { return a + b; }
int (*fp)(int, char);
int arr[] = {1, 2, [4] = 5};
struct flags { unsigned a : 3; unsigned : 0; int b; };
`
	prog, err := ParseUnit("decls.c", src, ctarget.MustParse("x86_64-linux-gnu"))
	require.NoError(t, err)
	defs := prog.Definitions
	require.Len(t, defs, 8)

	td, ok := defs[0].(cabs.TypedefDef)
	require.True(t, ok, "expected TypedefDef, got %T", defs[0])
	assert.Equal(t, "u32", td.Name)
	assert.Equal(t, ctypes.UIntType(), td.Typ)

	rd, ok := defs[1].(cabs.RecordDef)
	require.True(t, ok, "expected RecordDef, got %T", defs[1])
	assert.Equal(t, "point", rd.Rec.Tag)
	assert.True(t, rd.Rec.Complete)
	require.Len(t, rd.Rec.Fields, 2)
	assert.Equal(t, "y", rd.Rec.Fields[1].Name)

	ed, ok := defs[2].(cabs.EnumDef)
	require.True(t, ok, "expected EnumDef, got %T", defs[2])
	assert.Equal(t, []ctypes.EnumConst{{Name: "RED", Value: 0}, {Name: "GREEN", Value: 5}, {Name: "BLUE", Value: 6}}, ed.Enum.Consts)
	require.Len(t, ed.Values, 3)
	assert.Nil(t, ed.Values[0])
	assert.NotNil(t, ed.Values[1])

	v, ok := defs[3].(cabs.VarDef)
	require.True(t, ok, "expected VarDef, got %T", defs[3])
	assert.Equal(t, cabs.StorageStatic, v.Storage)
	c, ok := v.Init.(cabs.Constant)
	require.True(t, ok, "expected Constant init, got %T", v.Init)
	assert.Equal(t, uint64(3), c.Value)
	assert.Equal(t, ctypes.IntType(), c.Typ)
	assert.Equal(t, 5, v.Pos.Line)

	fn, ok := defs[4].(cabs.FunDef)
	require.True(t, ok, "expected FunDef, got %T", defs[4])
	assert.Equal(t, []string{"a", "b"}, fn.Params)
	assert.Equal(t, []ctypes.Type{ctypes.IntType(), ctypes.IntType()}, fn.Typ.Params)
	require.NotNil(t, fn.Body)
	ret := fn.Body.Items[0].(cabs.Return)
	assert.Equal(t, ctypes.IntType(), ret.Expr.Type())

	fp := defs[5].(cabs.VarDef)
	assert.Equal(t, ctypes.Tpointer{Elem: ctypes.Tfunction{
		Params: []ctypes.Type{ctypes.IntType(), ctypes.CharType()},
		Names:  []string{"", ""},
		Return: ctypes.IntType(),
	}}, fp.Typ)

	arr := defs[6].(cabs.VarDef)
	assert.Equal(t, ctypes.Tarray{Elem: ctypes.IntType(), Size: 5}, arr.Typ)
	list, ok := arr.Init.(*cabs.InitList)
	require.True(t, ok, "expected InitList, got %T", arr.Init)
	require.Len(t, list.Items, 3)
	assert.Equal(t, []cabs.Designator{{Index: 4, IsIndex: true}}, list.Items[2].Designators)

	flags := defs[7].(cabs.RecordDef)
	require.Len(t, flags.Rec.Fields, 3)
	assert.True(t, flags.Rec.Fields[0].BitField)
	assert.Equal(t, 3, flags.Rec.Fields[0].BitWidth)
	assert.Equal(t, "", flags.Rec.Fields[1].Name)
	assert.Equal(t, 0, flags.Rec.Fields[1].BitWidth)
	assert.False(t, flags.Rec.Fields[2].BitField)
}

func TestParseUnitStatements(t *testing.T) {
	src := `
int f(int n) {
	int total = 0;
	for (int i = 0; i < n; i++) {
		if (i % 2) continue;
		total += i;
	}
	switch (n) {
	case 1 ... 3:
		total = -1;
		break;
	default:
		break;
	}
	do { n--; } while (n > 0);
	return total;
}
`
	prog, err := ParseUnit("stmts.c", src, ctarget.MustParse("x86_64-linux-gnu"))
	require.NoError(t, err)
	require.Len(t, prog.Definitions, 1)
	fn := prog.Definitions[0].(cabs.FunDef)
	items := fn.Body.Items
	require.Len(t, items, 5)

	_, ok := items[0].(cabs.DeclStmt)
	assert.True(t, ok, "expected DeclStmt, got %T", items[0])

	loop, ok := items[1].(cabs.For)
	require.True(t, ok, "expected For, got %T", items[1])
	_, ok = loop.Init.(cabs.DeclStmt)
	assert.True(t, ok)
	assert.Equal(t, ctypes.IntType(), loop.Cond.Type())

	sw, ok := items[2].(cabs.Switch)
	require.True(t, ok, "expected Switch, got %T", items[2])
	body := sw.Body.(*cabs.Block)
	cs, ok := body.Items[0].(cabs.Case)
	require.True(t, ok, "expected Case, got %T", body.Items[0])
	assert.NotNil(t, cs.Hi)

	_, ok = items[3].(cabs.DoWhile)
	assert.True(t, ok, "expected DoWhile, got %T", items[3])
}

func TestParseUnitErrors(t *testing.T) {
	tgt := ctarget.MustParse("x86_64-linux-gnu")

	_, err := ParseUnit("undeclared.c", "int f(void) { return y; }", tgt)
	assert.ErrorContains(t, err, "use of undeclared identifier 'y'")

	_, err = ParseUnit("assert.c", `_Static_assert(sizeof(int) == 8, "int");`, tgt)
	assert.ErrorContains(t, err, "static assertion failed: int")

	_, err = ParseUnit("vla.c", "void f(int n) { int a[n]; }", tgt)
	assert.ErrorContains(t, err, "variable length arrays are not supported")

	_, err = ParseUnit("ok.c", `_Static_assert(sizeof(long) == 8, "long");`, tgt)
	assert.NoError(t, err)
}

func TestParseUnitTypedefScoping(t *testing.T) {
	src := `
typedef int T;
T x;
void g(void) {
	T T2;
	int T;
	T = 3;
}
`
	prog, err := ParseUnit("scope.c", src, ctarget.MustParse("x86_64-linux-gnu"))
	require.NoError(t, err)
	x := prog.Definitions[1].(cabs.VarDef)
	assert.Equal(t, ctypes.Tnamed{Name: "T", Underlying: ctypes.IntType()}, x.Typ)

	g := prog.Definitions[2].(cabs.FunDef)
	require.Len(t, g.Body.Items, 3)
	_, ok := g.Body.Items[2].(cabs.ExprStmt)
	assert.True(t, ok, "expected ExprStmt, got %T", g.Body.Items[2])
}

func TestParseUnitTypeof(t *testing.T) {
	src := `
static int FOO = 42;
typedef typeof(FOO) foo_type;
const char *s;
typeof(typeof(s)[4]) arr;
int g(void) { typeof(FOO) y = FOO; return (typeof(y))y; }
`
	prog, err := ParseUnit("typeof.c", src, ctarget.MustParse("x86_64-linux-gnu"))
	require.NoError(t, err)
	require.Len(t, prog.Definitions, 5)

	td := prog.Definitions[1].(cabs.TypedefDef)
	assert.Equal(t, ctypes.IntType(), ctypes.Canonical(td.Typ))

	arr := prog.Definitions[3].(cabs.VarDef)
	at, ok := ctypes.Canonical(arr.Typ).(ctypes.Tarray)
	require.True(t, ok, "expected array, got %v", arr.Typ)
	assert.Equal(t, int64(4), at.Size)
	assert.True(t, ctypes.IsPointer(at.Elem))
}

func TestParseUnitNestedRecords(t *testing.T) {
	src := `
struct Foo {
	struct Bar { int b; };
	struct { int x; };
	struct Bar c;
};
`
	prog, err := ParseUnit("nested.c", src, ctarget.MustParse("x86_64-linux-gnu"))
	require.NoError(t, err)
	var recs []cabs.RecordDef
	for _, d := range prog.Definitions {
		if rd, ok := d.(cabs.RecordDef); ok {
			recs = append(recs, rd)
		}
	}
	require.Len(t, recs, 3)
	assert.Equal(t, "Bar", recs[0].Rec.Tag)
	assert.True(t, recs[0].Nested)
	assert.True(t, recs[1].Nested)
	foo := recs[2]
	assert.Equal(t, "Foo", foo.Rec.Tag)
	assert.False(t, foo.Nested)
	// the tagged inner record only declares its tag
	require.Len(t, foo.Rec.Fields, 2)
	assert.Equal(t, "", foo.Rec.Fields[0].Name)
	assert.Equal(t, "c", foo.Rec.Fields[1].Name)
}

func TestParseUnitLastMemberWithoutSemicolon(t *testing.T) {
	src := "struct S { int a; unsigned long b };\n"
	prog, err := ParseUnit("semi.c", src, ctarget.MustParse("x86_64-linux-gnu"))
	require.NoError(t, err)
	require.NotEmpty(t, prog.Definitions)
	rd, ok := prog.Definitions[0].(cabs.RecordDef)
	require.True(t, ok)
	require.Len(t, rd.Rec.Fields, 2)
	assert.Equal(t, "b", rd.Rec.Fields[1].Name)
}
