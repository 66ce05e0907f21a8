// Package ctypes defines the C type system used by the translator: the type
// terms handed over by the front-end, and the target-dependent rules
// (promotion, usual arithmetic conversions, literal typing, layout) that the
// lowering passes apply to them.
package ctypes

import (
	"strconv"
	"strings"
)

// Type is the interface for all C types
type Type interface {
	implType()
	String() string
}

// Quals is a set of type qualifiers
type Quals uint8

const (
	Const Quals = 1 << iota
	Volatile
	Restrict
	Atomic
)

func (q Quals) String() string {
	var parts []string
	if q&Const != 0 {
		parts = append(parts, "const")
	}
	if q&Volatile != 0 {
		parts = append(parts, "volatile")
	}
	if q&Restrict != 0 {
		parts = append(parts, "restrict")
	}
	if q&Atomic != 0 {
		parts = append(parts, "_Atomic")
	}
	return strings.Join(parts, " ")
}

// Signedness represents signed/unsigned for integer types
type Signedness int

const (
	Signed Signedness = iota
	Unsigned
)

func (s Signedness) String() string {
	if s == Signed {
		return "signed"
	}
	return "unsigned"
}

// IntKind enumerates the C integer types, in rank order within each pair
type IntKind int

const (
	Bool IntKind = iota
	Char
	SChar
	UChar
	Short
	UShort
	Int
	UInt
	Long
	ULong
	LongLong
	ULongLong
	Int128
	UInt128
)

func (k IntKind) String() string {
	names := []string{"_Bool", "char", "signed char", "unsigned char", "short", "unsigned short",
		"int", "unsigned int", "long", "unsigned long", "long long", "unsigned long long",
		"__int128", "unsigned __int128"}
	if int(k) < len(names) {
		return names[k]
	}
	return "?"
}

// FloatKind enumerates the C floating types
type FloatKind int

const (
	Float16 FloatKind = iota
	Float
	Double
	LongDouble
	Float128
)

func (k FloatKind) String() string {
	names := []string{"_Float16", "float", "double", "long double", "__float128"}
	if int(k) < len(names) {
		return names[k]
	}
	return "?"
}

// RecordKind distinguishes struct from union
type RecordKind int

const (
	Struct RecordKind = iota
	Union
)

func (k RecordKind) String() string {
	if k == Union {
		return "union"
	}
	return "struct"
}

// Tvoid represents the void type
type Tvoid struct {
	Q Quals
}

// Tint represents integer types including _Bool and the character types
type Tint struct {
	Kind IntKind
	Q    Quals
}

// Tfloat represents floating-point types
type Tfloat struct {
	Kind FloatKind
	Q    Quals
}

// Tpointer represents pointer types
type Tpointer struct {
	Elem Type
	Q    Quals
}

// Tarray represents array types
type Tarray struct {
	Elem Type
	Size int64 // -1 for incomplete array
}

// Tfunction represents function types
type Tfunction struct {
	Params   []Type
	Names    []string // parameter names as spelled in the declarator, when known
	Return   Type
	VarArg   bool
	NoProto  bool   // declared with an empty, non-prototype parameter list
	CallConv string // "", "stdcall", "fastcall", "vectorcall", "thiscall", "regcall"
	NoReturn bool
}

// Trecord refers to a struct or union by its shared definition
type Trecord struct {
	Rec *Record
	Q   Quals
}

// Tenum refers to an enum by its shared definition
type Tenum struct {
	Enum *Enum
	Q    Quals
}

// Tnamed is a typedef name; it keeps the spelling used in the source
type Tnamed struct {
	Name       string
	Underlying Type
	Q          Quals
}

// Tvector is a GNU vector type (__attribute__((vector_size)))
type Tvector struct {
	Elem Type
	Len  int64
}

// Record is the shared definition of a struct or union tag. A record is
// registered before its fields are known; Complete flips once they are.
type Record struct {
	Kind     RecordKind
	Tag      string // empty for anonymous records
	Fields   []Field
	Complete bool
	Packed   bool
	Aligned  int64 // explicit aligned attribute, 0 if none
	Opaque   string // non-empty when the definition cannot be represented; the reason
	ID       int    // unit-unique identity, used for anonymous naming
}

// Field represents a struct or union field
type Field struct {
	Name     string // empty for anonymous members and unnamed bit-fields
	Type     Type
	BitField bool
	BitWidth int
	Aligned  int64 // explicit aligned attribute, 0 if none
}

// Anonymous reports whether the field is a C11 anonymous struct/union member.
func (f Field) Anonymous() bool {
	if f.Name != "" || f.BitField {
		return false
	}
	_, ok := Canonical(f.Type).(Trecord)
	return ok
}

// Enum is the shared definition of an enum tag
type Enum struct {
	Tag      string
	Consts   []EnumConst
	Complete bool
	Fixed    *IntKind // C23 fixed underlying type, nil when deduced
	ID       int
}

// EnumConst is one enumerator with its evaluated value
type EnumConst struct {
	Name  string
	Value int64
}

// Marker methods for Type interface
func (Tvoid) implType()     {}
func (Tint) implType()      {}
func (Tfloat) implType()    {}
func (Tpointer) implType()  {}
func (Tarray) implType()    {}
func (Tfunction) implType() {}
func (Trecord) implType()   {}
func (Tenum) implType()     {}
func (Tnamed) implType()    {}
func (Tvector) implType()   {}

// String methods render the type as a C type name.
func (t Tvoid) String() string     { return TypeName(t, "") }
func (t Tint) String() string      { return TypeName(t, "") }
func (t Tfloat) String() string    { return TypeName(t, "") }
func (t Tpointer) String() string  { return TypeName(t, "") }
func (t Tarray) String() string    { return TypeName(t, "") }
func (t Tfunction) String() string { return TypeName(t, "") }
func (t Trecord) String() string   { return TypeName(t, "") }
func (t Tenum) String() string     { return TypeName(t, "") }
func (t Tnamed) String() string    { return TypeName(t, "") }
func (t Tvector) String() string   { return TypeName(t, "") }

// TypeName renders a C declaration of name with type t ("int (*fp)(int)").
// An empty name yields the abstract type name.
func TypeName(t Type, name string) string {
	return strings.TrimSpace(declarator(t, name))
}

func withQuals(q Quals, s string) string {
	if q == 0 {
		return s
	}
	return q.String() + " " + s
}

func declarator(t Type, inner string) string {
	switch ty := t.(type) {
	case Tpointer:
		d := "*"
		if ty.Q != 0 {
			d += ty.Q.String()
			if inner != "" {
				d += " "
			}
		}
		d += inner
		switch ty.Elem.(type) {
		case Tarray, Tfunction:
			d = "(" + d + ")"
		}
		return declarator(ty.Elem, d)
	case Tarray:
		if ty.Size < 0 {
			return declarator(ty.Elem, inner+"[]")
		}
		return declarator(ty.Elem, inner+"["+strconv.FormatInt(ty.Size, 10)+"]")
	case Tfunction:
		var params []string
		for _, p := range ty.Params {
			params = append(params, TypeName(p, ""))
		}
		if ty.VarArg {
			params = append(params, "...")
		}
		if len(params) == 0 && !ty.NoProto {
			params = append(params, "void")
		}
		return declarator(ty.Return, inner+"("+strings.Join(params, ", ")+")")
	}
	base := baseName(t)
	if inner == "" {
		return base
	}
	return base + " " + inner
}

func baseName(t Type) string {
	switch ty := t.(type) {
	case Tvoid:
		return withQuals(ty.Q, "void")
	case Tint:
		return withQuals(ty.Q, ty.Kind.String())
	case Tfloat:
		return withQuals(ty.Q, ty.Kind.String())
	case Trecord:
		tag := ty.Rec.Tag
		if tag == "" {
			tag = "<anonymous>"
		}
		return withQuals(ty.Q, ty.Rec.Kind.String()+" "+tag)
	case Tenum:
		tag := ty.Enum.Tag
		if tag == "" {
			tag = "<anonymous>"
		}
		return withQuals(ty.Q, "enum "+tag)
	case Tnamed:
		return withQuals(ty.Q, ty.Name)
	case Tvector:
		return TypeName(ty.Elem, "") + " __attribute__((vector_size(" + strconv.FormatInt(ty.Len, 10) + ")))"
	}
	return "?"
}

// Common type constructors

// IntType returns the int type
func IntType() Type {
	return Tint{Kind: Int}
}

// UIntType returns the unsigned int type
func UIntType() Type {
	return Tint{Kind: UInt}
}

// CharType returns the plain char type
func CharType() Type {
	return Tint{Kind: Char}
}

// UCharType returns the unsigned char type
func UCharType() Type {
	return Tint{Kind: UChar}
}

// ShortType returns the short type
func ShortType() Type {
	return Tint{Kind: Short}
}

// LongType returns the long type
func LongType() Type {
	return Tint{Kind: Long}
}

// ULongType returns the unsigned long type
func ULongType() Type {
	return Tint{Kind: ULong}
}

// BoolType returns _Bool
func BoolType() Type {
	return Tint{Kind: Bool}
}

// FloatType returns float
func FloatType() Type {
	return Tfloat{Kind: Float}
}

// DoubleType returns double
func DoubleType() Type {
	return Tfloat{Kind: Double}
}

// Void returns the void type
func Void() Type {
	return Tvoid{}
}

// Pointer returns a pointer to the given type
func Pointer(elem Type) Type {
	return Tpointer{Elem: elem}
}

// Array returns an array type
func Array(elem Type, size int64) Type {
	return Tarray{Elem: elem, Size: size}
}

// Function returns a prototyped function type
func Function(ret Type, params ...Type) Tfunction {
	return Tfunction{Return: ret, Params: params}
}

// Canonical strips typedef sugar from the top level of t, merging the
// qualifiers of the typedef use into the underlying type.
func Canonical(t Type) Type {
	var q Quals
	for {
		n, ok := t.(Tnamed)
		if !ok {
			break
		}
		q |= n.Q
		t = n.Underlying
	}
	if q == 0 {
		return t
	}
	return WithQuals(t, QualsOf(t)|q)
}

// QualsOf returns the top-level qualifiers of t.
func QualsOf(t Type) Quals {
	switch ty := t.(type) {
	case Tvoid:
		return ty.Q
	case Tint:
		return ty.Q
	case Tfloat:
		return ty.Q
	case Tpointer:
		return ty.Q
	case Trecord:
		return ty.Q
	case Tenum:
		return ty.Q
	case Tnamed:
		return ty.Q | QualsOf(ty.Underlying)
	case Tarray:
		return QualsOf(ty.Elem)
	}
	return 0
}

// WithQuals returns t with its top-level qualifiers replaced by q.
func WithQuals(t Type, q Quals) Type {
	switch ty := t.(type) {
	case Tvoid:
		ty.Q = q
		return ty
	case Tint:
		ty.Q = q
		return ty
	case Tfloat:
		ty.Q = q
		return ty
	case Tpointer:
		ty.Q = q
		return ty
	case Trecord:
		ty.Q = q
		return ty
	case Tenum:
		ty.Q = q
		return ty
	case Tnamed:
		ty.Q = q
		ty.Underlying = WithQuals(ty.Underlying, 0)
		return ty
	}
	return t
}

// Unqualified drops the top-level qualifiers of t, keeping typedef sugar
// when the typedef itself is unqualified.
func Unqualified(t Type) Type {
	if n, ok := t.(Tnamed); ok && QualsOf(n.Underlying) == 0 {
		n.Q = 0
		return n
	}
	return WithQuals(t, 0)
}

// IsConst reports whether t is const-qualified at the top level.
func IsConst(t Type) bool {
	return QualsOf(t)&Const != 0
}

// IsVoid reports whether t is void.
func IsVoid(t Type) bool {
	_, ok := Canonical(t).(Tvoid)
	return ok
}

// IsBool reports whether t is _Bool.
func IsBool(t Type) bool {
	i, ok := Canonical(t).(Tint)
	return ok && i.Kind == Bool
}

// IsInteger reports whether t is an integer or enum type.
func IsInteger(t Type) bool {
	switch Canonical(t).(type) {
	case Tint, Tenum:
		return true
	}
	return false
}

// IsFloat reports whether t is a floating type.
func IsFloat(t Type) bool {
	_, ok := Canonical(t).(Tfloat)
	return ok
}

// IsArithmetic reports whether t is an integer or floating type.
func IsArithmetic(t Type) bool {
	return IsInteger(t) || IsFloat(t)
}

// IsPointer reports whether t is a pointer.
func IsPointer(t Type) bool {
	_, ok := Canonical(t).(Tpointer)
	return ok
}

// IsArray reports whether t is an array.
func IsArray(t Type) bool {
	_, ok := Canonical(t).(Tarray)
	return ok
}

// IsFunction reports whether t is a function type.
func IsFunction(t Type) bool {
	_, ok := Canonical(t).(Tfunction)
	return ok
}

// IsFunctionPointer reports whether t is a pointer to a function.
func IsFunctionPointer(t Type) bool {
	p, ok := Canonical(t).(Tpointer)
	return ok && IsFunction(p.Elem)
}

// IsVector reports whether t is a vector type.
func IsVector(t Type) bool {
	_, ok := Canonical(t).(Tvector)
	return ok
}

// IsRecord reports whether t is a struct or union.
func IsRecord(t Type) bool {
	_, ok := Canonical(t).(Trecord)
	return ok
}

// IsScalar reports whether t is arithmetic or a pointer.
func IsScalar(t Type) bool {
	return IsArithmetic(t) || IsPointer(t)
}

// IsAggregate reports whether t is an array or record.
func IsAggregate(t Type) bool {
	return IsArray(t) || IsRecord(t)
}

// RecordOf returns the record behind t, or nil.
func RecordOf(t Type) *Record {
	if r, ok := Canonical(t).(Trecord); ok {
		return r.Rec
	}
	return nil
}

// Pointee returns the element type of a pointer or array, or nil.
func Pointee(t Type) Type {
	switch ty := Canonical(t).(type) {
	case Tpointer:
		return ty.Elem
	case Tarray:
		return ty.Elem
	case Tvector:
		return ty.Elem
	}
	return nil
}

// FunctionOf returns the function type of a function or function pointer.
func FunctionOf(t Type) (Tfunction, bool) {
	switch ty := Canonical(t).(type) {
	case Tfunction:
		return ty, true
	case Tpointer:
		f, ok := Canonical(ty.Elem).(Tfunction)
		return f, ok
	}
	return Tfunction{}, false
}

// Decay applies array-to-pointer and function-to-pointer conversion.
func Decay(t Type) Type {
	switch ty := Canonical(t).(type) {
	case Tarray:
		return Tpointer{Elem: ty.Elem}
	case Tfunction:
		return Tpointer{Elem: t}
	}
	return t
}

// FindField looks a member up in r, descending into anonymous members.
// The returned path lists the fields traversed, outermost first.
func FindField(r *Record, name string) ([]int, Field, bool) {
	for i, f := range r.Fields {
		if f.Name == name && name != "" {
			return []int{i}, f, true
		}
	}
	for i, f := range r.Fields {
		if !f.Anonymous() {
			continue
		}
		if path, found, ok := FindField(RecordOf(f.Type), name); ok {
			return append([]int{i}, path...), found, true
		}
	}
	return nil, Field{}, false
}

// Equal checks if two types are identical, typedef spelling and qualifiers
// included.
func Equal(a, b Type) bool {
	if a == nil || b == nil {
		return a == b
	}
	switch ta := a.(type) {
	case Tvoid:
		tb, ok := b.(Tvoid)
		return ok && ta.Q == tb.Q
	case Tint:
		tb, ok := b.(Tint)
		return ok && ta.Kind == tb.Kind && ta.Q == tb.Q
	case Tfloat:
		tb, ok := b.(Tfloat)
		return ok && ta.Kind == tb.Kind && ta.Q == tb.Q
	case Tpointer:
		tb, ok := b.(Tpointer)
		return ok && ta.Q == tb.Q && Equal(ta.Elem, tb.Elem)
	case Tarray:
		tb, ok := b.(Tarray)
		return ok && ta.Size == tb.Size && Equal(ta.Elem, tb.Elem)
	case Trecord:
		tb, ok := b.(Trecord)
		return ok && ta.Rec == tb.Rec && ta.Q == tb.Q
	case Tenum:
		tb, ok := b.(Tenum)
		return ok && ta.Enum == tb.Enum && ta.Q == tb.Q
	case Tnamed:
		tb, ok := b.(Tnamed)
		return ok && ta.Name == tb.Name && ta.Q == tb.Q
	case Tvector:
		tb, ok := b.(Tvector)
		return ok && ta.Len == tb.Len && Equal(ta.Elem, tb.Elem)
	case Tfunction:
		tb, ok := b.(Tfunction)
		if !ok || ta.VarArg != tb.VarArg || len(ta.Params) != len(tb.Params) {
			return false
		}
		if !Equal(ta.Return, tb.Return) {
			return false
		}
		for i, p := range ta.Params {
			if !Equal(p, tb.Params[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// Compatible reports whether a and b denote the same type once typedef
// sugar and top-level qualifiers are removed. Nested qualifiers still matter
// ("const char *" is not compatible with "char *").
func Compatible(a, b Type) bool {
	return Equal(strip(WithQuals(Canonical(a), 0)), strip(WithQuals(Canonical(b), 0)))
}

// strip removes typedef sugar everywhere in t, keeping qualifiers.
func strip(t Type) Type {
	switch ty := t.(type) {
	case Tnamed:
		return strip(Canonical(ty))
	case Tpointer:
		ty.Elem = strip(ty.Elem)
		return ty
	case Tarray:
		ty.Elem = strip(ty.Elem)
		return ty
	case Tvector:
		ty.Elem = strip(ty.Elem)
		return ty
	case Tfunction:
		params := make([]Type, len(ty.Params))
		for i, p := range ty.Params {
			params[i] = strip(WithQuals(Canonical(p), 0))
		}
		ty.Params = params
		ty.Return = strip(ty.Return)
		return ty
	}
	return t
}
