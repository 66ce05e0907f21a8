package lir

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func cInt() Type { return Named("c_int") }

func TestPrintTypes(t *testing.T) {
	tests := []struct {
		name string
		typ  Type
		want string
	}{
		{"c pointer", Pointer{Kind: PtrC, Const: true, Elem: Named("u8")}, "[*c]const u8"},
		{"opaque pointer", Pointer{Kind: PtrOne, Optional: true, Elem: Named("anyopaque")}, "?*anyopaque"},
		{"sentinel array", Array{Len: 3, Sentinel: true, Elem: Named("u8")}, "[3:0]u8"},
		{"vector", Vector{Len: 4, Elem: Named("f32")}, "@Vector(4, f32)"},
		{"function pointer",
			Pointer{Kind: PtrOne, Optional: true, Const: true, Elem: FnType{Params: []Param{{Type: cInt()}}, CallConv: "c", Return: Named("void")}},
			"?*const fn (c_int) callconv(.c) void"},
		{"variadic fn", FnType{Params: []Param{{Type: cInt()}}, VarArg: true, CallConv: "c", Return: cInt()},
			"fn (c_int, ...) callconv(.c) c_int"},
		{"empty struct", Container{Layout: LayoutExtern}, "extern struct {}"},
		{"opaque", Container{Kind: KindOpaque}, "opaque {}"},
		{"packed backing", Container{Layout: LayoutPacked, Backing: Named("u8")}, "packed struct(u8) {}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TypeString(tt.typ))
		})
	}
}

func TestPrintContainerFields(t *testing.T) {
	c := Container{Layout: LayoutExtern, Fields: []Field{
		{Name: "x", Type: cInt(), Default: Int("0")},
		{Name: "bar", Type: Named("c_short"), Align: 4, Default: Int("0")},
	}, Decls: []Stmt{VarDecl{Pub: true, Const: true, Name: "foo", Value: Member{X: Id("__root"), Name: "foo"}}}}
	want := "extern struct {\n" +
		"    x: c_int = 0,\n" +
		"    bar: c_short align(4) = 0,\n" +
		"    pub const foo = __root.foo;\n" +
		"}"
	assert.Equal(t, want, TypeString(c))
}

func TestPrintPrecedence(t *testing.T) {
	a, b, c := Id("a"), Id("b"), Id("c")
	tests := []struct {
		name string
		expr Expr
		want string
	}{
		{"left assoc", Binary{Op: "-", L: Binary{Op: "-", L: a, R: b}, R: c}, "a - b - c"},
		{"right grouped", Binary{Op: "-", L: a, R: Binary{Op: "-", L: b, R: c}}, "a - (b - c)"},
		{"mul in add", Binary{Op: "+", L: a, R: Binary{Op: "*", L: b, R: c}}, "a + b * c"},
		{"add in mul", Binary{Op: "*", L: Binary{Op: "+", L: a, R: b}, R: c}, "(a + b) * c"},
		{"compare chain", Binary{Op: "==", L: Binary{Op: "<", L: a, R: b}, R: c}, "(a < b) == c"},
		{"mixed bitwise", Binary{Op: "&", L: Binary{Op: "|", L: a, R: b}, R: c}, "(a | b) & c"},
		{"or of compares", Binary{Op: "or", L: Binary{Op: "<", L: a, R: b}, R: Binary{Op: "==", L: a, R: b}}, "a < b or a == b"},
		{"deref of sum", Deref{X: Paren{X: Binary{Op: "+", L: a, R: b}}}, "(a + b).*"},
		{"deref of binary", Deref{X: Binary{Op: "+", L: a, R: b}}, "(a + b).*"},
		{"unwrap call", Call{Fn: Unwrap{X: a}}, "a.?()"},
		{"truthy", Truthy{X: a}, "a != 0"},
		{"truthy null", Truthy{X: a, Null: true}, "a != null"},
		{"not", Unary{Op: "!", X: Paren{X: Truthy{X: a}}}, "!(a != 0)"},
		{"negate sum", Unary{Op: "-", X: Binary{Op: "+", L: a, R: b}}, "-(a + b)"},
		{"as", As{T: cInt(), X: Int("1")}, "@as(c_int, 1)"},
		{"int from bool", Conv{Op: IntFromBool, X: Binary{Op: "<", L: a, R: b}}, "@intFromBool(a < b)"},
		{"cast of grouped sum", Conv{Op: PtrCast, X: Conv{Op: AlignCast, X: Paren{X: Binary{Op: "+", L: Paren{X: a}, R: b}}}},
			"@ptrCast(@alignCast((a) + b))"},
		{"if expr", IfExpr{Cond: Binary{Op: ">", L: a, R: b}, Then: a, Else: b}, "if (a > b) a else b"},
		{"builtin", Builtin{Name: "divTrunc", Args: []Expr{a, b}}, "@divTrunc(a, b)"},
		{"slice", Slice{X: StringLit{Value: "a"}, Lo: Int("0"), Hi: Int("1")}, `"a"[0..1]`},
		{"range", Range{Lo: Int("1"), Hi: Int("3")}, "1...3"},
		{"inline array", ArrayInit{T: Array{Len: 1, Elem: Named("u8")}, Elems: []Expr{Int("0")}, Inline: true}, "[1]u8{0}"},
		{"empty init", StructInit{T: Named("struct_Foo")}, "struct_Foo{}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExprString(tt.expr))
		})
	}
}

func TestPrintLiterals(t *testing.T) {
	assert.Equal(t, `'\x07'`, CharLiteral(7))
	assert.Equal(t, `'\''`, CharLiteral('\''))
	assert.Equal(t, `'"'`, CharLiteral('"'))
	assert.Equal(t, `'\u{1f4af}'`, CharLiteral(0x1f4af))
	assert.Equal(t, `"it's\x07\n"`, Quote("it's\a\n"))
	assert.Equal(t, `"\"\\"`, Quote(`"\`))
}

func TestPrintFunction(t *testing.T) {
	fn := FnDecl{
		Pub: true, Export: true, Name: "max",
		Params: []Param{{Name: "arg_a", Type: cInt()}},
		Return: cInt(),
		Body: &Block{Stmts: []Stmt{
			VarDecl{Name: "a", Value: Id("arg_a")},
			Touch("a"),
			If{Cond: Truthy{X: Id("a")}, Then: Return{X: Id("a")}, Else: Return{X: Int("0")}},
		}},
	}
	want := "pub export fn max(arg_a: c_int) c_int {\n" +
		"    var a = arg_a;\n" +
		"    _ = &a;\n" +
		"    if (a != 0) return a else return 0;\n" +
		"}\n"
	assert.Equal(t, want, StmtString(fn))

	proto := FnDecl{Pub: true, Extern: true, Name: "f", Params: []Param{{Type: Named("u8")}}, Return: cInt()}
	assert.Equal(t, "pub extern fn f(u8) c_int;\n", StmtString(proto))

	sect := FnDecl{Pub: true, Export: true, Name: "my_fn", Section: "NEAR,.data", Return: Named("void"), Body: &Block{}}
	assert.Equal(t, "pub export fn my_fn() linksection(\"NEAR,.data\") void {}\n", StmtString(sect))

	static := FnDecl{Pub: true, Name: "g", CallConv: "c", Return: Named("void"), Body: &Block{}}
	assert.Equal(t, "pub fn g() callconv(.c) void {}\n", StmtString(static))
}

func TestPrintVarDecls(t *testing.T) {
	tests := []struct {
		decl VarDecl
		want string
	}{
		{VarDecl{Pub: true, Export: true, Name: "b", Type: Named("f32"), Value: Int("2")}, "pub export var b: f32 = 2;"},
		{VarDecl{Pub: true, Extern: true, Name: "a", Type: Named("struct_Foo")}, "pub extern var a: struct_Foo;"},
		{VarDecl{Pub: true, Extern: true, Name: "arr", Type: Array{Len: 16, Elem: Named("u8")}, Section: "NEAR,.data"},
			`pub extern var arr: [16]u8 linksection("NEAR,.data");`},
		{VarDecl{ThreadLocal: true, Name: "x", Type: cInt(), Value: Int("2")}, "threadlocal var x: c_int = 2;"},
		{VarDecl{Const: true, Name: "c", Type: cInt(), Value: Id("undefined")}, "const c: c_int = undefined;"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want+"\n", StmtString(tt.decl))
	}
}

func TestPrintControlFlow(t *testing.T) {
	loop := While{
		Cond: Id("true"),
		Body: Block{Stmts: []Stmt{
			Switch{X: Id("x"), Prongs: []Prong{
				{Items: []Expr{As{T: cInt(), X: Int("0")}}, Body: Block{Stmts: []Stmt{Assign{Op: "+=", L: Id("y"), R: Int("1")}}}},
				{Items: []Expr{Range{Lo: As{T: cInt(), X: Int("1")}, Hi: As{T: cInt(), X: Int("3")}}}, Body: Break{}},
				{Else: true, Body: Block{}},
			}},
			Break{},
		}},
	}
	want := strings.Join([]string{
		"while (true) {",
		"    switch (x) {",
		"        @as(c_int, 0) => {",
		"            y += 1;",
		"        },",
		"        @as(c_int, 1)...@as(c_int, 3) => break,",
		"        else => {},",
		"    }",
		"    break;",
		"}",
		"",
	}, "\n")
	assert.Equal(t, want, StmtString(loop))

	forLoop := While{
		Cond: Binary{Op: "<", L: Id("i"), R: Int("10")},
		Cont: Assign{Op: "+=", L: Id("i"), R: Int("1")},
		Body: ExprStmt{X: Call{Fn: Id("f")}},
	}
	assert.Equal(t, "while (i < 10) : (i += 1) f();\n", StmtString(forLoop))

	chain := If{
		Cond: Id("a"), Then: Block{Stmts: []Stmt{Return{}}},
		Else: If{Cond: Id("b"), Then: Break{Label: "sw"}},
	}
	assert.Equal(t, "if (a) {\n    return;\n} else if (b) break :sw;\n", StmtString(chain))
}

func TestPrintBlockExprAndComptime(t *testing.T) {
	blk := BlockExpr{Label: "blk", Stmts: []Stmt{
		VarDecl{Const: true, Name: "ref", Value: Unary{Op: "&", X: Id("a")}},
		Assign{Op: "+=", L: Deref{X: Id("ref")}, R: Int("1")},
		Break{Label: "blk", Value: Deref{X: Id("ref")}},
	}}
	want := "blk: {\n    const ref = &a;\n    ref.* += 1;\n    break :blk ref.*;\n}"
	assert.Equal(t, want, ExprString(blk))

	ct := Comptime{Body: &Block{Stmts: []Stmt{ExprStmt{X: Id("x")}}}}
	assert.Equal(t, "comptime {\n    x;\n}\n", StmtString(ct))

	fn := FnDecl{Name: "f", Return: Named("void"), Body: &Block{Stmts: []Stmt{ct}}}
	assert.Contains(t, StmtString(fn), "    };\n")
}

func TestPrintFile(t *testing.T) {
	var b strings.Builder
	NewPrinter(&b).PrintFile(&File{Decls: []Stmt{
		VarDecl{Const: true, Name: "__root", Value: Builtin{Name: "This"}},
		Comment{Text: "demoted"},
	}})
	assert.Equal(t, "const __root = @This();\n// demoted\n", b.String())
}
