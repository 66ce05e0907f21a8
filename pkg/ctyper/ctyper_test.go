package ctyper

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raymyers/ralph-translate-c/pkg/cabs"
	"github.com/raymyers/ralph-translate-c/pkg/ctarget"
	"github.com/raymyers/ralph-translate-c/pkg/ctypes"
)

func newTyper(t *testing.T) *Typer {
	t.Helper()
	return New(ctypes.NewModel(ctarget.MustParse("x86_64-linux-gnu")))
}

func lit(v uint64) cabs.Constant {
	return cabs.Constant{Value: v, Text: "0", Radix: 10}
}

func v(name string) cabs.Variable {
	return cabs.Variable{Name: name}
}

func TestExprTyping(t *testing.T) {
	ty := newTyper(t)
	ty.Declare(Symbol{Name: "x", Kind: SymVar, Type: ctypes.IntType()})
	ty.Declare(Symbol{Name: "u", Kind: SymVar, Type: ctypes.UIntType()})
	ty.Declare(Symbol{Name: "p", Kind: SymVar, Type: ctypes.Pointer(ctypes.CharType())})
	ty.Declare(Symbol{Name: "q", Kind: SymVar, Type: ctypes.Pointer(ctypes.CharType())})
	ty.Declare(Symbol{Name: "d", Kind: SymVar, Type: ctypes.DoubleType()})

	tests := []struct {
		name string
		expr cabs.Expr
		want ctypes.Type
	}{
		{"int plus literal", cabs.Binary{Op: cabs.OpAdd, Left: v("x"), Right: lit(1)}, ctypes.IntType()},
		{"int plus unsigned", cabs.Binary{Op: cabs.OpAdd, Left: v("x"), Right: v("u")}, ctypes.UIntType()},
		{"int times double", cabs.Binary{Op: cabs.OpMul, Left: v("x"), Right: v("d")}, ctypes.DoubleType()},
		{"pointer plus int", cabs.Binary{Op: cabs.OpAdd, Left: v("p"), Right: v("x")}, ctypes.Pointer(ctypes.CharType())},
		{"comparison", cabs.Binary{Op: cabs.OpLt, Left: v("p"), Right: v("q")}, ctypes.IntType()},
		{"logical not", cabs.Unary{Op: cabs.OpNot, Expr: v("p")}, ctypes.IntType()},
		{"deref", cabs.Unary{Op: cabs.OpDeref, Expr: v("p")}, ctypes.CharType()},
		{"promoted negation", cabs.Unary{Op: cabs.OpNeg, Expr: cabs.Cast{Expr: lit(1), Typ: ctypes.ShortType()}}, ctypes.IntType()},
		{"assignment", cabs.Binary{Op: cabs.OpAssign, Left: v("u"), Right: v("x")}, ctypes.UIntType()},
		{"char literal", cabs.CharLiteral{Value: 'a', Chars: []rune{'a'}}, ctypes.IntType()},
		{"string literal", cabs.StringLiteral{Value: "hi"}, ctypes.Array(ctypes.CharType(), 3)},
		{"float literal", cabs.FloatConst{Value: 1, Suffix: "f"}, ctypes.FloatType()},
		{"hex literal beyond int", cabs.Constant{Value: 0x80000000, Text: "0x80000000", Radix: 16}, ctypes.UIntType()},
		{"decimal literal beyond int", cabs.Constant{Value: 2147483648, Text: "2147483648", Radix: 10}, ctypes.LongType()},
		{"conditional", cabs.Conditional{Cond: v("x"), Then: v("x"), Else: v("d")}, ctypes.DoubleType()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			typed, err := ty.Expr(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, typed.Type())
		})
	}
}

func TestPointerDifference(t *testing.T) {
	ty := newTyper(t)
	ty.Declare(Symbol{Name: "p", Kind: SymVar, Type: ctypes.Pointer(ctypes.IntType())})
	typed, err := ty.Expr(cabs.Binary{Op: cabs.OpSub, Left: v("p"), Right: v("p")})
	require.NoError(t, err)
	named, ok := typed.Type().(ctypes.Tnamed)
	require.True(t, ok, "expected typedef type, got %T", typed.Type())
	assert.Equal(t, "ptrdiff_t", named.Name)
	assert.Equal(t, ctypes.LongType(), ctypes.Canonical(named))
}

func TestExprErrors(t *testing.T) {
	ty := newTyper(t)
	_, err := ty.Expr(v("missing"))
	assert.True(t, errors.Is(err, ErrUndeclared))

	ty.Declare(Symbol{Name: "f", Kind: SymFunc, Type: ctypes.Function(ctypes.IntType(), ctypes.IntType())})
	_, err = ty.Expr(cabs.Call{Func: v("f"), Args: []cabs.Expr{lit(1), lit(2)}})
	assert.ErrorContains(t, err, "too many arguments")

	ty.Declare(Symbol{Name: "n", Kind: SymVar, Type: ctypes.IntType()})
	_, err = ty.Expr(cabs.Unary{Op: cabs.OpDeref, Expr: v("n")})
	assert.ErrorContains(t, err, "indirection requires pointer operand")
}

func TestBuiltinCall(t *testing.T) {
	ty := newTyper(t)
	typed, err := ty.Expr(cabs.Call{Func: v("__builtin_popcount"), Args: []cabs.Expr{lit(7)}})
	require.NoError(t, err)
	assert.Equal(t, ctypes.IntType(), typed.Type())
}

func TestBuiltin(t *testing.T) {
	ty := newTyper(t)
	tests := []struct {
		name string
		want ctypes.Tfunction
	}{
		{"__builtin_popcount", ctypes.Function(ctypes.IntType(), ctypes.UIntType())},
		{"__builtin_sqrtf", ctypes.Function(ctypes.FloatType(), ctypes.FloatType())},
		{"__builtin_floor", ctypes.Function(ctypes.DoubleType(), ctypes.DoubleType())},
		{"__builtin_abs", ctypes.Function(ctypes.IntType(), ctypes.IntType())},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fn, ok := Builtin(ty, tt.name)
			require.True(t, ok)
			assert.Equal(t, tt.want, fn)
		})
	}

	_, ok := Builtin(ty, "__builtin_nope")
	assert.False(t, ok)
	_, ok = Builtin(ty, "printf")
	assert.False(t, ok)

	fn, ok := Builtin(ty, "__builtin_unreachable")
	require.True(t, ok)
	assert.True(t, fn.NoReturn)
}

func TestConstInt(t *testing.T) {
	ty := newTyper(t)
	tests := []struct {
		name string
		expr cabs.Expr
		want int64
	}{
		{"cast truncates", cabs.Cast{Expr: lit(300), Typ: ctypes.UCharType()}, 44},
		{"signed shift", cabs.Binary{Op: cabs.OpShr, Left: cabs.Unary{Op: cabs.OpNeg, Expr: lit(1)}, Right: lit(1)}, -1},
		{"unsigned wraps", cabs.Binary{Op: cabs.OpAdd, Left: cabs.Constant{Value: 4294967295, Text: "4294967295", Radix: 10, Suffix: "u"}, Right: lit(1)}, 0},
		{"mixed comparison", cabs.Binary{Op: cabs.OpLt, Left: cabs.Unary{Op: cabs.OpNeg, Expr: lit(1)}, Right: cabs.Constant{Value: 0, Text: "0", Radix: 10, Suffix: "u"}}, 0},
		{"sizeof long", cabs.SizeofType{Of: ctypes.LongType()}, 8},
		{"short circuit", cabs.Binary{Op: cabs.OpOr, Left: lit(1), Right: cabs.Binary{Op: cabs.OpDiv, Left: lit(1), Right: lit(0)}}, 1},
		{"conditional", cabs.Conditional{Cond: lit(0), Then: lit(3), Else: lit(4)}, 4},
		{"signed division truncates", cabs.Binary{Op: cabs.OpDiv, Left: cabs.Unary{Op: cabs.OpNeg, Expr: lit(7)}, Right: lit(2)}, -3},
		{"signed remainder", cabs.Binary{Op: cabs.OpMod, Left: cabs.Unary{Op: cabs.OpNeg, Expr: lit(7)}, Right: lit(2)}, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			typed, err := ty.Expr(tt.expr)
			require.NoError(t, err)
			got, ok := ty.ConstInt(typed)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	typed, err := ty.Expr(cabs.Binary{Op: cabs.OpDiv, Left: lit(1), Right: lit(0)})
	require.NoError(t, err)
	_, ok := ty.ConstInt(typed)
	assert.False(t, ok, "division by zero is not a constant")

	ty.Declare(Symbol{Name: "x", Kind: SymVar, Type: ctypes.IntType()})
	typed, err = ty.Expr(v("x"))
	require.NoError(t, err)
	_, ok = ty.ConstInt(typed)
	assert.False(t, ok)
}

func TestEnumConstants(t *testing.T) {
	ty := newTyper(t)
	e := ty.DeclareEnum("color")
	e.Consts = []ctypes.EnumConst{{Name: "RED", Value: 0}, {Name: "BLUE", Value: 4}}
	for _, c := range e.Consts {
		ty.Declare(Symbol{Name: c.Name, Kind: SymEnumConst, Type: ctypes.IntType(), Value: c.Value, Enum: e})
	}
	e.Complete = true
	ty.FinishEnum(e)

	typed, err := ty.Expr(cabs.Binary{Op: cabs.OpMul, Left: v("BLUE"), Right: lit(2)})
	require.NoError(t, err)
	got, ok := ty.ConstInt(typed)
	require.True(t, ok)
	assert.Equal(t, int64(8), got)

	found, ok := ty.LookupEnum("color")
	require.True(t, ok)
	assert.Same(t, e, found)
}

func TestScopes(t *testing.T) {
	ty := newTyper(t)
	assert.True(t, ty.AtFileScope())
	assert.True(t, ty.IsTypedef("size_t"))
	assert.True(t, IsBuiltinTypedef("uint32_t"))
	assert.False(t, IsBuiltinTypedef("my_t"))

	u32, ok := ty.Typedef("uint32_t")
	require.True(t, ok)
	assert.Equal(t, ctypes.UIntType(), ctypes.Canonical(u32))

	ty.Declare(Symbol{Name: "T", Kind: SymTypedef, Type: ctypes.LongType()})
	ty.PushScope()
	assert.False(t, ty.AtFileScope())
	assert.True(t, ty.IsTypedef("T"))
	ty.Declare(Symbol{Name: "T", Kind: SymVar, Type: ctypes.IntType()})
	assert.False(t, ty.IsTypedef("T"))

	inner := ty.DeclareRecord(ctypes.Struct, "S")
	_, ok = ty.RecordInScope("S")
	assert.True(t, ok)
	ty.PopScope()

	assert.True(t, ty.IsTypedef("T"))
	_, ok = ty.LookupRecord("S")
	assert.False(t, ok)

	outer := ty.DeclareRecord(ctypes.Struct, "S")
	assert.NotEqual(t, inner.ID, outer.ID)
}

func TestPredefined(t *testing.T) {
	ty := newTyper(t)
	_, err := ty.Expr(cabs.Predefined{Name: "__func__"})
	assert.Error(t, err)

	ty.EnterFunction("main", ctypes.Function(ctypes.IntType()))
	typed, err := ty.Expr(cabs.Predefined{Name: "__func__"})
	require.NoError(t, err)
	assert.Equal(t, ctypes.Tarray{Elem: ctypes.Tint{Kind: ctypes.Char, Q: ctypes.Const}, Size: 5}, typed.Type())
	assert.Equal(t, "int main(void)", PrettyFunction("main", ctypes.Function(ctypes.IntType())))
	ty.LeaveFunction()
}

func nestedRecords() (*ctypes.Record, *ctypes.Record) {
	inner := &ctypes.Record{Kind: ctypes.Struct, Tag: "in", Complete: true, Fields: []ctypes.Field{
		{Name: "b", Type: ctypes.IntType()},
		{Name: "c", Type: ctypes.IntType()},
	}}
	outer := &ctypes.Record{Kind: ctypes.Struct, Tag: "S", Complete: true, Fields: []ctypes.Field{
		{Name: "a", Type: ctypes.IntType()},
		{Name: "in", Type: ctypes.Trecord{Rec: inner}},
		{Name: "d", Type: ctypes.Array(ctypes.IntType(), 2)},
	}}
	return inner, outer
}

func items(values ...cabs.Expr) []cabs.InitItem {
	out := make([]cabs.InitItem, len(values))
	for i, val := range values {
		out[i] = cabs.InitItem{Value: val}
	}
	return out
}

func TestInitBraceElision(t *testing.T) {
	ty := newTyper(t)
	inner, outer := nestedRecords()
	list, err := ty.Init(&cabs.InitList{Items: items(lit(1), lit(2), lit(3), lit(4))}, ctypes.Trecord{Rec: outer})
	require.NoError(t, err)

	require.Len(t, list.Items, 3)
	assert.Equal(t, []cabs.Designator{{Field: "a", Index: 0}}, list.Items[0].Designators)
	assert.Equal(t, []cabs.Designator{{Field: "in", Index: 1}}, list.Items[1].Designators)
	assert.Equal(t, []cabs.Designator{{Field: "d", Index: 2}}, list.Items[2].Designators)

	nested, ok := list.Items[1].Value.(*cabs.InitList)
	require.True(t, ok, "expected nested list, got %T", list.Items[1].Value)
	assert.Equal(t, ctypes.Trecord{Rec: inner}, nested.Typ)
	require.Len(t, nested.Items, 2)
	assert.Equal(t, uint64(3), nested.Items[1].Value.(cabs.Constant).Value)

	arr, ok := list.Items[2].Value.(*cabs.InitList)
	require.True(t, ok)
	require.Len(t, arr.Items, 1)
	assert.Equal(t, []cabs.Designator{{Index: 0, IsIndex: true}}, arr.Items[0].Designators)
}

func TestInitDesignators(t *testing.T) {
	ty := newTyper(t)

	u := &ctypes.Record{Kind: ctypes.Union, Tag: "U", Complete: true, Fields: []ctypes.Field{
		{Name: "i", Type: ctypes.IntType()},
		{Name: "f", Type: ctypes.FloatType()},
	}}
	list, err := ty.Init(&cabs.InitList{Items: []cabs.InitItem{
		{Designators: []cabs.Designator{{Field: "i"}}, Value: lit(1)},
		{Designators: []cabs.Designator{{Field: "f"}}, Value: cabs.FloatConst{Value: 1.5}},
	}}, ctypes.Trecord{Rec: u})
	require.NoError(t, err)
	require.Len(t, list.Items, 1, "a union keeps only the last initialized member")
	assert.Equal(t, "f", list.Items[0].Designators[0].Field)

	list, err = ty.Init(&cabs.InitList{Items: []cabs.InitItem{
		{Value: lit(1)},
		{Designators: []cabs.Designator{{Index: 0, IsIndex: true}}, Value: lit(5)},
	}}, ctypes.Array(ctypes.IntType(), 3))
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	assert.Equal(t, uint64(5), list.Items[0].Value.(cabs.Constant).Value)

	_, err = ty.Init(&cabs.InitList{Items: []cabs.InitItem{
		{Designators: []cabs.Designator{{Index: 5, IsIndex: true}}, Value: lit(1)},
	}}, ctypes.Array(ctypes.IntType(), 2))
	assert.ErrorContains(t, err, "exceeds array bounds")

	_, outer := nestedRecords()
	_, err = ty.Init(&cabs.InitList{Items: []cabs.InitItem{
		{Designators: []cabs.Designator{{Field: "zz"}}, Value: lit(1)},
	}}, ctypes.Trecord{Rec: outer})
	assert.ErrorContains(t, err, "does not refer to any field")
}

func TestInitCompletesArray(t *testing.T) {
	ty := newTyper(t)
	typ := ctypes.Array(ctypes.IntType(), -1)
	list, err := ty.Init(&cabs.InitList{Items: []cabs.InitItem{
		{Value: lit(1)},
		{Designators: []cabs.Designator{{Index: 6, IsIndex: true}}, Value: lit(2)},
	}}, typ)
	require.NoError(t, err)
	assert.Equal(t, ctypes.Array(ctypes.IntType(), 7), list.Typ)
	assert.Equal(t, ctypes.Array(ctypes.IntType(), 7), CompleteArray(typ, list))
	assert.Equal(t, ctypes.IntType(), CompleteArray(ctypes.IntType(), list))

	str, err := ty.Expr(cabs.StringLiteral{Value: "abc"})
	require.NoError(t, err)
	assert.Equal(t, ctypes.Array(ctypes.CharType(), 4), CompleteArray(ctypes.Array(ctypes.CharType(), -1), str))
}

func TestSelectGeneric(t *testing.T) {
	one, two, three := lit(1), lit(2), lit(3)
	g := cabs.Generic{
		Control: cabs.Variable{Name: "x", Typ: ctypes.Tint{Kind: ctypes.Int, Q: ctypes.Const}},
		Assocs: []cabs.GenericAssoc{
			{Of: ctypes.LongType(), Expr: one},
			{Of: ctypes.IntType(), Expr: two},
			{Expr: three},
		},
	}
	chosen, ok := SelectGeneric(g)
	require.True(t, ok)
	assert.Equal(t, two, chosen)

	g.Control = cabs.Variable{Name: "d", Typ: ctypes.DoubleType()}
	chosen, ok = SelectGeneric(g)
	require.True(t, ok)
	assert.Equal(t, three, chosen)

	g.Assocs = g.Assocs[:2]
	_, ok = SelectGeneric(g)
	assert.False(t, ok)
}

func TestWrap(t *testing.T) {
	ty := newTyper(t)
	assert.Equal(t, uint64(0xFF), ty.Wrap(0x1FF, ctypes.UCharType()))
	assert.Equal(t, ^uint64(0), ty.Wrap(0xFF, ctypes.Tint{Kind: ctypes.SChar}))
	assert.Equal(t, uint64(1), ty.Wrap(42, ctypes.BoolType()))
	assert.Equal(t, uint64(42), ty.Wrap(42, ctypes.Tint{Kind: ctypes.ULongLong}))
}

func TestBlockFunctionDeclarationKeepsLinkage(t *testing.T) {
	ty := newTyper(t)
	abs := ctypes.Function(ctypes.IntType(), ctypes.IntType())

	ty.PushScope()
	ty.Declare(Symbol{Name: "abs", Kind: SymFunc, Type: abs})
	ty.PopScope()
	assert.Empty(t, ty.TakeImplied())

	_, err := ty.Expr(v("abs"))
	assert.True(t, errors.Is(err, ErrUndeclared), "file scope sees no block declaration")

	ty.PushScope()
	defer ty.PopScope()
	typed, err := ty.Expr(cabs.Call{Func: v("abs"), Args: []cabs.Expr{lit(1)}})
	require.NoError(t, err)
	assert.Equal(t, ctypes.IntType(), typed.Type())
	implied := ty.TakeImplied()
	require.Len(t, implied, 1)
	assert.Equal(t, "abs", implied[0].Name)

	// now declared in this block
	_, err = ty.Expr(v("abs"))
	require.NoError(t, err)
	assert.Empty(t, ty.TakeImplied())
}
