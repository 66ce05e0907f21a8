// Package lir defines the lowered IR produced by the translator: a tree of
// Zig declarations, statements and expressions in which every implicit C
// conversion is an explicit node.
package lir

// Node is the base interface for all lowered nodes
type Node interface {
	implLirNode()
}

// Type is the interface for type expressions
type Type interface {
	Node
	implLirType()
}

// Expr is the interface for expressions
type Expr interface {
	Node
	implLirExpr()
}

// Stmt is the interface for statements and declarations
type Stmt interface {
	Node
	implLirStmt()
}

// --- Types ---

// Name is a primitive or declared type name (c_int, u8, struct_Foo)
type Name struct {
	Name string
}

// PtrKind is the pointer flavour
type PtrKind int

const (
	PtrC    PtrKind = iota // [*c]T
	PtrOne                 // *T
	PtrMany                // [*]T
)

// Pointer is a pointer type; Optional prefixes it with ?
type Pointer struct {
	Kind     PtrKind
	Optional bool
	Const    bool
	Volatile bool
	Align    int64
	Elem     Type
}

// Array is a fixed-length array, [N]T or [N:0]T
type Array struct {
	Len      int64
	Sentinel bool
	Elem     Type
}

// Vector is @Vector(N, T)
type Vector struct {
	Len  int64
	Elem Type
}

// Param is a function parameter; Name may be empty
type Param struct {
	Name string
	Type Type
}

// FnType is a function type: fn (params) callconv(.c) R
type FnType struct {
	Params   []Param
	VarArg   bool
	CallConv string
	Return   Type
}

// ContainerKind distinguishes struct, union and opaque containers
type ContainerKind int

const (
	KindStruct ContainerKind = iota
	KindUnion
	KindOpaque
)

// Layout is the container layout keyword
type Layout int

const (
	LayoutAuto Layout = iota
	LayoutExtern
	LayoutPacked
)

// Field is a container field; Default is nil when the field has none
type Field struct {
	Name    string
	Type    Type
	Align   int64
	Default Expr
}

// Container is a struct, union or opaque type with optional member
// declarations
type Container struct {
	Kind    ContainerKind
	Layout  Layout
	Backing Type // packed struct(uN)
	Fields  []Field
	Decls   []Stmt
}

// TypeOf is @TypeOf(x)
type TypeOf struct {
	X Expr
}

// Computed is a type produced by a comptime call, such as
// __helpers.FlexibleArrayType(@TypeOf(self), c_int)
type Computed struct {
	X Expr
}

// --- Expressions ---

// Ident is a name reference, already escaped
type Ident struct {
	Name string
}

// IntLit is an integer literal in Zig spelling
type IntLit struct {
	Text string
}

// FloatLit is a float literal in Zig spelling
type FloatLit struct {
	Text string
}

// CharLit is a character literal
type CharLit struct {
	Value rune
}

// StringLit is a string literal; Value holds raw bytes
type StringLit struct {
	Value string
}

// TypeExpr uses a type in expression position
type TypeExpr struct {
	T Type
}

// As is @as(T, x)
type As struct {
	T Type
	X Expr
}

// ConvOp names a result-typed conversion builtin
type ConvOp int

const (
	IntCast ConvOp = iota
	Truncate
	BitCast
	FloatFromInt
	IntFromFloat
	FloatCast
	IntFromBool
	PtrFromInt
	IntFromPtr
	PtrCast
	AlignCast
	ConstCast
	VolatileCast
)

func (op ConvOp) String() string {
	names := []string{"@intCast", "@truncate", "@bitCast", "@floatFromInt", "@intFromFloat", "@floatCast",
		"@intFromBool", "@ptrFromInt", "@intFromPtr", "@ptrCast", "@alignCast", "@constCast", "@volatileCast"}
	if int(op) < len(names) {
		return names[op]
	}
	return "?"
}

// Conv is an explicit conversion of X
type Conv struct {
	Op ConvOp
	X  Expr
}

// Builtin is a call of any other @builtin
type Builtin struct {
	Name string // without the @
	Args []Expr
}

// Truthy is the boolean coercion of a C scalar: x != 0 or x != null
type Truthy struct {
	X    Expr
	Null bool
}

// Unary is a prefix operator: - -% ! ~ &
type Unary struct {
	Op string
	X  Expr
}

// Binary is an infix operator
type Binary struct {
	Op   string
	L, R Expr
}

// Paren is an explicit grouping
type Paren struct {
	X Expr
}

// Deref is x.*
type Deref struct {
	X Expr
}

// Unwrap is x.?
type Unwrap struct {
	X Expr
}

// Member is x.name
type Member struct {
	X    Expr
	Name string
}

// Index is x[i]
type Index struct {
	X, I Expr
}

// Slice is x[lo..hi]
type Slice struct {
	X, Lo, Hi Expr
}

// Call is a function call
type Call struct {
	Fn   Expr
	Args []Expr
}

// IfExpr is if (c) a else b
type IfExpr struct {
	Cond, Then, Else Expr
}

// BlockExpr is a labeled block yielding a value through break :label
type BlockExpr struct {
	Label string
	Stmts []Stmt
}

// FieldInit is one .name = value of a struct initializer
type FieldInit struct {
	Name  string
	Value Expr
}

// StructInit is T{ .a = x, ... }; T nil prints the anonymous .{ ... }
type StructInit struct {
	T      Type
	Fields []FieldInit
}

// ArrayInit is [N]T{ a, b, ... }; Inline keeps it on one line
type ArrayInit struct {
	T      Type
	Elems  []Expr
	Inline bool
}

// Range is lo...hi in a switch prong
type Range struct {
	Lo, Hi Expr
}

// --- Statements ---

// VarDecl declares a variable or constant. Value nil prints no initializer.
type VarDecl struct {
	Name        string
	Type        Type
	Value       Expr
	Const       bool
	Pub         bool
	Export      bool
	Extern      bool
	ThreadLocal bool
	Section     string
}

// FnDecl declares or defines a function
type FnDecl struct {
	Name     string
	Params   []Param
	VarArg   bool
	Return   Type
	CallConv string
	Section  string
	Pub      bool
	Export   bool
	Extern   bool
	Inline   bool
	Body     *Block // nil for extern functions
}

// ExprStmt evaluates X for its effect
type ExprStmt struct {
	X Expr
}

// Assign is L op R; Op includes the = sign
type Assign struct {
	Op   string
	L, R Expr
}

// Block is a statement block, optionally labeled
type Block struct {
	Label string
	Stmts []Stmt
}

// Return returns X, or nothing when X is nil
type Return struct {
	X Expr
}

// Break leaves a loop or a labeled block
type Break struct {
	Label string
	Value Expr
}

// Continue jumps to the next iteration
type Continue struct {
	Label string
}

// If is an if statement; Else may be nil
type If struct {
	Cond Expr
	Then Stmt
	Else Stmt
}

// While is a while loop with an optional continue expression
type While struct {
	Label string
	Cond  Expr
	Cont  Stmt
	Body  Stmt
}

// Prong is one arm of a switch; Else marks the else prong
type Prong struct {
	Items []Expr
	Else  bool
	Body  Stmt
}

// Switch is a switch statement
type Switch struct {
	X      Expr
	Prongs []Prong
}

// Comptime is a comptime block
type Comptime struct {
	Body *Block
}

// Comment is a line comment
type Comment struct {
	Text string
}

// File is one lowered translation unit
type File struct {
	Decls []Stmt
}

func (Name) implLirNode()      {}
func (Pointer) implLirNode()   {}
func (Array) implLirNode()     {}
func (Vector) implLirNode()    {}
func (FnType) implLirNode()    {}
func (Container) implLirNode() {}
func (TypeOf) implLirNode()    {}
func (Computed) implLirNode()  {}

func (Name) implLirType()      {}
func (Pointer) implLirType()   {}
func (Array) implLirType()     {}
func (Vector) implLirType()    {}
func (FnType) implLirType()    {}
func (Container) implLirType() {}
func (TypeOf) implLirType()    {}
func (Computed) implLirType()  {}

func (Ident) implLirNode()      {}
func (IntLit) implLirNode()     {}
func (FloatLit) implLirNode()   {}
func (CharLit) implLirNode()    {}
func (StringLit) implLirNode()  {}
func (TypeExpr) implLirNode()   {}
func (As) implLirNode()         {}
func (Conv) implLirNode()       {}
func (Builtin) implLirNode()    {}
func (Truthy) implLirNode()     {}
func (Unary) implLirNode()      {}
func (Binary) implLirNode()     {}
func (Paren) implLirNode()      {}
func (Deref) implLirNode()      {}
func (Unwrap) implLirNode()     {}
func (Member) implLirNode()     {}
func (Index) implLirNode()      {}
func (Slice) implLirNode()      {}
func (Call) implLirNode()       {}
func (IfExpr) implLirNode()     {}
func (BlockExpr) implLirNode()  {}
func (StructInit) implLirNode() {}
func (ArrayInit) implLirNode()  {}
func (Range) implLirNode()      {}

func (Ident) implLirExpr()      {}
func (IntLit) implLirExpr()     {}
func (FloatLit) implLirExpr()   {}
func (CharLit) implLirExpr()    {}
func (StringLit) implLirExpr()  {}
func (TypeExpr) implLirExpr()   {}
func (As) implLirExpr()         {}
func (Conv) implLirExpr()       {}
func (Builtin) implLirExpr()    {}
func (Truthy) implLirExpr()     {}
func (Unary) implLirExpr()      {}
func (Binary) implLirExpr()     {}
func (Paren) implLirExpr()      {}
func (Deref) implLirExpr()      {}
func (Unwrap) implLirExpr()     {}
func (Member) implLirExpr()     {}
func (Index) implLirExpr()      {}
func (Slice) implLirExpr()      {}
func (Call) implLirExpr()       {}
func (IfExpr) implLirExpr()     {}
func (BlockExpr) implLirExpr()  {}
func (StructInit) implLirExpr() {}
func (ArrayInit) implLirExpr()  {}
func (Range) implLirExpr()      {}

func (VarDecl) implLirNode()  {}
func (FnDecl) implLirNode()   {}
func (ExprStmt) implLirNode() {}
func (Assign) implLirNode()   {}
func (Block) implLirNode()    {}
func (Return) implLirNode()   {}
func (Break) implLirNode()    {}
func (Continue) implLirNode() {}
func (If) implLirNode()       {}
func (While) implLirNode()    {}
func (Switch) implLirNode()   {}
func (Comptime) implLirNode() {}
func (Comment) implLirNode()  {}

func (VarDecl) implLirStmt()  {}
func (FnDecl) implLirStmt()   {}
func (ExprStmt) implLirStmt() {}
func (Assign) implLirStmt()   {}
func (Block) implLirStmt()    {}
func (Return) implLirStmt()   {}
func (Break) implLirStmt()    {}
func (Continue) implLirStmt() {}
func (If) implLirStmt()       {}
func (While) implLirStmt()    {}
func (Switch) implLirStmt()   {}
func (Comptime) implLirStmt() {}
func (Comment) implLirStmt()  {}

// Convenience constructors

// Id returns an identifier expression.
func Id(name string) Expr { return Ident{Name: name} }

// Int returns a decimal integer literal.
func Int(text string) Expr { return IntLit{Text: text} }

// Named returns a type name.
func Named(name string) Type { return Name{Name: name} }

// Discard returns the statement _ = x.
func Discard(x Expr) Stmt { return Assign{Op: "=", L: Ident{Name: "_"}, R: x} }

// Touch returns _ = &name, which marks a local as used and mutable.
func Touch(name string) Stmt {
	return Discard(Unary{Op: "&", X: Ident{Name: name}})
}
