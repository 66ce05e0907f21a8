package ctypes

import "testing"

func TestTypeConstructors(t *testing.T) {
	tests := []struct {
		name    string
		typ     Type
		wantStr string
	}{
		{"void", Void(), "void"},
		{"int", IntType(), "int"},
		{"unsigned int", UIntType(), "unsigned int"},
		{"char", CharType(), "char"},
		{"unsigned char", UCharType(), "unsigned char"},
		{"short", ShortType(), "short"},
		{"long", LongType(), "long"},
		{"unsigned long", ULongType(), "unsigned long"},
		{"bool", BoolType(), "_Bool"},
		{"float", FloatType(), "float"},
		{"double", DoubleType(), "double"},
		{"pointer to int", Pointer(IntType()), "int *"},
		{"pointer to void", Pointer(Void()), "void *"},
		{"array of int", Array(IntType(), 10), "int [10]"},
		{"const char pointer", Pointer(Tint{Kind: Char, Q: Const}), "const char *"},
		{"function pointer", Pointer(Function(IntType(), IntType(), FloatType())), "int (*)(int, float)"},
		{"pointer to array", Pointer(Array(IntType(), 3)), "int (*)[3]"},
		{"no-arg function", Function(Void()), "void (void)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.typ.String(); got != tt.wantStr {
				t.Errorf("String() = %q, want %q", got, tt.wantStr)
			}
		})
	}
}

func TestTypeName(t *testing.T) {
	fn := Function(Void())
	if got := TypeName(fn, "foo"); got != "void foo(void)" {
		t.Errorf("TypeName = %q", got)
	}
	params := Function(IntType(), IntType(), Pointer(CharType()))
	if got := TypeName(params, "bar"); got != "int bar(int, char *)" {
		t.Errorf("TypeName = %q", got)
	}
}

func TestTypeEquality(t *testing.T) {
	a := &Record{Kind: Struct, Tag: "A"}
	b := &Record{Kind: Struct, Tag: "B"}
	tests := []struct {
		name  string
		a, b  Type
		equal bool
	}{
		{"int == int", IntType(), IntType(), true},
		{"int != unsigned int", IntType(), UIntType(), false},
		{"int != long", IntType(), LongType(), false},
		{"int != void", IntType(), Void(), false},
		{"void == void", Void(), Void(), true},
		{"int != const int", IntType(), Tint{Kind: Int, Q: Const}, false},
		{"pointer to int == pointer to int", Pointer(IntType()), Pointer(IntType()), true},
		{"pointer to int != pointer to char", Pointer(IntType()), Pointer(CharType()), false},
		{"array[10] of int == array[10] of int", Array(IntType(), 10), Array(IntType(), 10), true},
		{"array[10] of int != array[20] of int", Array(IntType(), 10), Array(IntType(), 20), false},
		{"struct A == struct A", Trecord{Rec: a}, Trecord{Rec: a}, true},
		{"struct A != struct B", Trecord{Rec: a}, Trecord{Rec: b}, false},
		{"nil == nil", nil, nil, true},
		{"nil != int", nil, IntType(), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Equal(tt.a, tt.b); got != tt.equal {
				t.Errorf("Equal(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.equal)
			}
		})
	}
}

func TestFunctionTypeEquality(t *testing.T) {
	fn1 := Tfunction{Params: []Type{IntType(), IntType()}, Return: IntType()}
	fn2 := Tfunction{Params: []Type{IntType(), IntType()}, Return: IntType()}
	fn3 := Tfunction{Params: []Type{IntType()}, Return: IntType()}
	fn4 := Tfunction{Params: []Type{IntType(), IntType()}, Return: Void()}

	if !Equal(fn1, fn2) {
		t.Error("identical function types should be equal")
	}
	if Equal(fn1, fn3) {
		t.Error("functions with different param counts should not be equal")
	}
	if Equal(fn1, fn4) {
		t.Error("functions with different return types should not be equal")
	}
}

func TestCompatible(t *testing.T) {
	myint := Tnamed{Name: "myint", Underlying: IntType()}
	tests := []struct {
		name string
		a, b Type
		want bool
	}{
		{"typedef vs underlying", myint, IntType(), true},
		{"const int vs int", Tint{Kind: Int, Q: Const}, IntType(), true},
		{"const char * vs char *", Pointer(Tint{Kind: Char, Q: Const}), Pointer(CharType()), false},
		{"pointer to typedef", Pointer(myint), Pointer(IntType()), true},
		{"int vs long", IntType(), LongType(), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Compatible(tt.a, tt.b); got != tt.want {
				t.Errorf("Compatible(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestCanonicalMergesQualifiers(t *testing.T) {
	myint := Tnamed{Name: "myint", Underlying: IntType(), Q: Const}
	got := Canonical(myint)
	if !Equal(got, Tint{Kind: Int, Q: Const}) {
		t.Errorf("Canonical = %v", got)
	}
}

func TestFindFieldThroughAnonymousMembers(t *testing.T) {
	inner := &Record{Kind: Struct, Complete: true, Fields: []Field{{Name: "x", Type: IntType()}, {Name: "y", Type: IntType()}}}
	middle := &Record{Kind: Union, Complete: true, Fields: []Field{{Type: Trecord{Rec: inner}}}}
	outer := &Record{Kind: Struct, Tag: "outer", Complete: true, Fields: []Field{
		{Type: Trecord{Rec: middle}},
		{Name: "z", Type: IntType()},
	}}

	path, f, ok := FindField(outer, "y")
	if !ok {
		t.Fatal("y not found")
	}
	if len(path) != 3 || path[0] != 0 || path[1] != 0 || path[2] != 1 {
		t.Errorf("path = %v", path)
	}
	if !Equal(f.Type, IntType()) {
		t.Errorf("field type = %v", f.Type)
	}
	if _, _, ok := FindField(outer, "w"); ok {
		t.Error("w should not be found")
	}
}

func TestIntConstructorsUseTheirKind(t *testing.T) {
	tests := []struct {
		typ  Type
		kind IntKind
	}{
		{IntType(), Int},
		{UIntType(), UInt},
		{CharType(), Char},
		{UCharType(), UChar},
		{ShortType(), Short},
		{LongType(), Long},
		{ULongType(), ULong},
		{BoolType(), Bool},
	}
	for _, tt := range tests {
		ti, ok := tt.typ.(Tint)
		if !ok || ti.Kind != tt.kind {
			t.Errorf("%v: got %#v, want kind %d", tt.typ, tt.typ, tt.kind)
		}
	}
}
