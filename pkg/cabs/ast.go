// Package cabs defines the typed C abstract syntax tree handed to the
// translator by the front-end. Every expression carries its resolved C type.
package cabs

import "github.com/raymyers/ralph-translate-c/pkg/ctypes"

// Pos is a source position
type Pos struct {
	File string `yaml:"file,omitempty"`
	Line int    `yaml:"line,omitempty"`
	Col  int    `yaml:"col,omitempty"`
}

// Node is the base interface for all AST nodes
type Node interface {
	implCabsNode()
}

// Expr is the interface for all expression nodes
type Expr interface {
	Node
	implCabsExpr()
	Type() ctypes.Type
}

// Stmt is the interface for all statement nodes
type Stmt interface {
	Node
	implCabsStmt()
}

// Definition is the interface for declarations, at file or block scope
type Definition interface {
	Node
	implDefinition()
	DefName() string
}

// BinaryOp represents binary operators, assignments included
type BinaryOp int

const (
	OpAdd BinaryOp = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpLt
	OpLe
	OpGt
	OpGe
	OpEq
	OpNe
	OpAnd // &&
	OpOr  // ||
	OpBitAnd
	OpBitOr
	OpBitXor
	OpShl // <<
	OpShr // >>
	OpAssign
	OpAddAssign
	OpSubAssign
	OpMulAssign
	OpDivAssign
	OpModAssign
	OpAndAssign
	OpOrAssign
	OpXorAssign
	OpShlAssign
	OpShrAssign
	OpComma
)

func (op BinaryOp) String() string {
	names := []string{"+", "-", "*", "/", "%", "<", "<=", ">", ">=", "==", "!=", "&&", "||", "&", "|", "^", "<<", ">>",
		"=", "+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=", "<<=", ">>=", ","}
	if int(op) < len(names) {
		return names[op]
	}
	return "?"
}

// IsAssign reports whether op is = or a compound assignment.
func (op BinaryOp) IsAssign() bool {
	return op >= OpAssign && op <= OpShrAssign
}

// IsComparison reports whether op is a relational or equality operator.
func (op BinaryOp) IsComparison() bool {
	return op >= OpLt && op <= OpNe
}

// Arith returns the arithmetic operator of a compound assignment.
func (op BinaryOp) Arith() BinaryOp {
	switch op {
	case OpAddAssign:
		return OpAdd
	case OpSubAssign:
		return OpSub
	case OpMulAssign:
		return OpMul
	case OpDivAssign:
		return OpDiv
	case OpModAssign:
		return OpMod
	case OpAndAssign:
		return OpBitAnd
	case OpOrAssign:
		return OpBitOr
	case OpXorAssign:
		return OpBitXor
	case OpShlAssign:
		return OpShl
	case OpShrAssign:
		return OpShr
	}
	return op
}

// UnaryOp represents unary operators
type UnaryOp int

const (
	OpNeg    UnaryOp = iota // -
	OpNot                   // !
	OpBitNot                // ~
	OpPlus                  // +
	OpAddrOf                // &
	OpDeref                 // *
	OpPreInc                // ++x
	OpPreDec                // --x
	OpPostInc               // x++
	OpPostDec               // x--
)

func (op UnaryOp) String() string {
	names := []string{"-", "!", "~", "+", "&", "*", "++", "--", "++", "--"}
	if int(op) < len(names) {
		return names[op]
	}
	return "?"
}

// --- Expressions ---

// Constant represents an integer constant
type Constant struct {
	Value  uint64
	Text   string // spelling without suffix, e.g. "0x1F"
	Radix  int    // 2, 8, 10 or 16
	Suffix string
	Typ    ctypes.Type
}

// FloatConst represents a floating constant
type FloatConst struct {
	Value  float64
	Text   string
	Suffix string
	Typ    ctypes.Type
}

// CharLiteral represents a character constant
type CharLiteral struct {
	Value  int64
	Chars  []rune // decoded characters; more than one for multi-character constants
	Prefix string // "", "L", "u", "U", "u8"
	Typ    ctypes.Type
}

// StringLiteral represents a string literal; Value holds the decoded
// characters (without the terminating NUL).
type StringLiteral struct {
	Value  string
	Prefix string
	Typ    ctypes.Type
}

// Variable represents an identifier expression: a variable, function or
// enumerator reference
type Variable struct {
	Name string
	Typ  ctypes.Type
}

// Unary represents a unary expression
type Unary struct {
	Op   UnaryOp
	Expr Expr
	Typ  ctypes.Type
}

// Binary represents a binary expression, assignments included
type Binary struct {
	Op    BinaryOp
	Left  Expr
	Right Expr
	Typ   ctypes.Type
}

// Paren represents a parenthesized expression
type Paren struct {
	Expr Expr
}

// Conditional represents the ternary operator: cond ? then : else.
// Then is nil for the GNU "cond ?: else" form.
type Conditional struct {
	Cond Expr
	Then Expr
	Else Expr
	Typ  ctypes.Type
}

// Call represents a function call
type Call struct {
	Func Expr
	Args []Expr
	Typ  ctypes.Type
}

// Index represents array subscript access: arr[idx]
type Index struct {
	Array Expr
	Index Expr
	Typ   ctypes.Type
}

// Member represents x.name or x->name
type Member struct {
	Expr  Expr
	Name  string
	Arrow bool
	Typ   ctypes.Type
}

// Cast represents an explicit cast; Typ is the target type
type Cast struct {
	Expr Expr
	Typ  ctypes.Type
}

// SizeofExpr represents sizeof applied to an expression
type SizeofExpr struct {
	Expr Expr
	Typ  ctypes.Type
}

// SizeofType represents sizeof(type)
type SizeofType struct {
	Of  ctypes.Type
	Typ ctypes.Type
}

// AlignofType represents _Alignof(type)
type AlignofType struct {
	Of  ctypes.Type
	Typ ctypes.Type
}

// OffsetOf represents offsetof(type, field)
type OffsetOf struct {
	Of    ctypes.Type
	Field string
	Typ   ctypes.Type
}

// GenericAssoc is one association of a _Generic selection; Of is nil for
// the default association.
type GenericAssoc struct {
	Of   ctypes.Type
	Expr Expr
}

// Generic represents a _Generic selection
type Generic struct {
	Control Expr
	Assocs  []GenericAssoc
	Typ     ctypes.Type
}

// Designator selects a field or array element in an initializer
type Designator struct {
	Field   string
	Index   int64
	IsIndex bool
}

// InitItem is one element of a brace initializer
type InitItem struct {
	Designators []Designator
	Value       Expr
}

// InitList represents a brace-enclosed initializer
type InitList struct {
	Items []InitItem
	Typ   ctypes.Type
}

// CompoundLiteral represents (type){ ... }
type CompoundLiteral struct {
	Init *InitList
	Typ  ctypes.Type
}

// StmtExpr represents a GNU statement expression ({ ... })
type StmtExpr struct {
	Body *Block
	Typ  ctypes.Type
}

// Predefined represents __func__, __FUNCTION__ or __PRETTY_FUNCTION__
type Predefined struct {
	Name string
	Typ  ctypes.Type
}

// ConvertVector represents __builtin_convertvector(expr, type)
type ConvertVector struct {
	Expr Expr
	Typ  ctypes.Type
}

// ShuffleVector represents __builtin_shufflevector(a, b, indices...)
type ShuffleVector struct {
	A, B    Expr
	Indices []int64
	Typ     ctypes.Type
}

// TypeName is a type in expression position. Only macro bodies produce
// it: a body that is a type, or a type passed to another macro.
type TypeName struct {
	Of ctypes.Type
}

// --- Statements ---

// Return represents a return statement
type Return struct {
	Expr Expr // nil for bare return
}

// Block represents a compound statement (block)
type Block struct {
	Items []Stmt
}

// DeclStmt represents declarations inside a block
type DeclStmt struct {
	Decls []Definition
}

// ExprStmt represents an expression statement
type ExprStmt struct {
	Expr Expr
}

// If represents if/else
type If struct {
	Cond Expr
	Then Stmt
	Else Stmt // nil when absent
}

// While represents a while loop
type While struct {
	Cond Expr
	Body Stmt
}

// DoWhile represents do/while
type DoWhile struct {
	Body Stmt
	Cond Expr
}

// For represents a for loop; Init is nil, a DeclStmt or an ExprStmt
type For struct {
	Init Stmt
	Cond Expr // nil means forever
	Step Expr
	Body Stmt
}

// Switch represents a switch statement; case labels are Case and Default
// statements at the top level of Body.
type Switch struct {
	Expr Expr
	Body Stmt
}

// Case represents a case label; Hi is set for GNU case ranges
type Case struct {
	Expr Expr
	Hi   Expr
	Body Stmt
}

// Default represents the default label
type Default struct {
	Body Stmt
}

// Break represents break
type Break struct{}

// Continue represents continue
type Continue struct{}

// Goto represents goto
type Goto struct {
	Label string
}

// Labeled represents a labeled statement
type Labeled struct {
	Label string
	Body  Stmt
}

// Empty represents the null statement
type Empty struct{}

// --- Definitions ---

// Storage is the storage class of a declaration
type Storage int

const (
	StorageNone Storage = iota
	StorageStatic
	StorageExtern
)

func (s Storage) String() string {
	names := []string{"", "static", "extern"}
	if int(s) < len(names) {
		return names[s]
	}
	return "?"
}

// Attrs collects the GNU attributes the translator honours
type Attrs struct {
	Section string
	Aligned int64
	Packed  bool
}

// VarDef represents a variable declaration or definition
type VarDef struct {
	Name        string
	Typ         ctypes.Type
	Storage     Storage
	ThreadLocal bool
	Init        Expr // nil, an expression or an *InitList
	Attrs       Attrs
	Pos         Pos
}

// FunDef represents a function definition, or a prototype when Body is nil
type FunDef struct {
	Name    string
	Typ     ctypes.Tfunction
	Params  []string // parameter names; empty strings for unnamed
	Storage Storage
	Inline  bool
	Body    *Block
	Attrs   Attrs
	Pos     Pos
	// Implicit marks a block-scope prototype implied by calling a function
	// that only another block declared
	Implicit bool
}

// TypedefDef represents a typedef
type TypedefDef struct {
	Name string
	Typ  ctypes.Type
	Pos  Pos
}

// RecordDef marks where a struct or union is declared or defined
type RecordDef struct {
	Rec    *ctypes.Record
	Pos    Pos
	Nested bool // defined inside the field list of another record
}

// EnumDef marks where an enum is defined; Values holds the initializer of
// each enumerator (nil for implicit values)
type EnumDef struct {
	Enum   *ctypes.Enum
	Values []Expr
	Pos    Pos
}

// StaticAssert represents _Static_assert
type StaticAssert struct {
	Cond Expr
	Msg  string
	Pos  Pos
}

// MacroDef is a #define handed over by the front-end. Params is nil for
// object-like macros.
type MacroDef struct {
	Name     string   `yaml:"name"`
	Params   []string `yaml:"params,omitempty"`
	FuncLike bool     `yaml:"func_like,omitempty"`
	Variadic bool     `yaml:"variadic,omitempty"`
	Body     string   `yaml:"body"`
	Pos      Pos      `yaml:"pos,omitempty"`
}

// Program is one translation unit
type Program struct {
	Target      string
	Definitions []Definition
	Macros      []MacroDef
}

// Type methods
func (e Constant) Type() ctypes.Type        { return e.Typ }
func (e FloatConst) Type() ctypes.Type      { return e.Typ }
func (e CharLiteral) Type() ctypes.Type     { return e.Typ }
func (e StringLiteral) Type() ctypes.Type   { return e.Typ }
func (e Variable) Type() ctypes.Type        { return e.Typ }
func (e Unary) Type() ctypes.Type           { return e.Typ }
func (e Binary) Type() ctypes.Type          { return e.Typ }
func (e Paren) Type() ctypes.Type           { return e.Expr.Type() }
func (e Conditional) Type() ctypes.Type     { return e.Typ }
func (e Call) Type() ctypes.Type            { return e.Typ }
func (e Index) Type() ctypes.Type           { return e.Typ }
func (e Member) Type() ctypes.Type          { return e.Typ }
func (e Cast) Type() ctypes.Type            { return e.Typ }
func (e SizeofExpr) Type() ctypes.Type      { return e.Typ }
func (e SizeofType) Type() ctypes.Type      { return e.Typ }
func (e AlignofType) Type() ctypes.Type     { return e.Typ }
func (e OffsetOf) Type() ctypes.Type        { return e.Typ }
func (e Generic) Type() ctypes.Type         { return e.Typ }
func (e *InitList) Type() ctypes.Type       { return e.Typ }
func (e CompoundLiteral) Type() ctypes.Type { return e.Typ }
func (e StmtExpr) Type() ctypes.Type        { return e.Typ }
func (e Predefined) Type() ctypes.Type      { return e.Typ }
func (e ConvertVector) Type() ctypes.Type   { return e.Typ }
func (e ShuffleVector) Type() ctypes.Type   { return e.Typ }
func (e TypeName) Type() ctypes.Type        { return nil }

// DefName methods
func (d VarDef) DefName() string       { return d.Name }
func (d FunDef) DefName() string       { return d.Name }
func (d TypedefDef) DefName() string   { return d.Name }
func (d RecordDef) DefName() string    { return d.Rec.Tag }
func (d EnumDef) DefName() string      { return d.Enum.Tag }
func (d StaticAssert) DefName() string { return "_Static_assert" }

// Marker methods for interface implementation
func (Constant) implCabsNode()        {}
func (FloatConst) implCabsNode()      {}
func (CharLiteral) implCabsNode()     {}
func (StringLiteral) implCabsNode()   {}
func (Variable) implCabsNode()        {}
func (Unary) implCabsNode()           {}
func (Binary) implCabsNode()          {}
func (Paren) implCabsNode()           {}
func (Conditional) implCabsNode()     {}
func (Call) implCabsNode()            {}
func (Index) implCabsNode()           {}
func (Member) implCabsNode()          {}
func (Cast) implCabsNode()            {}
func (SizeofExpr) implCabsNode()      {}
func (SizeofType) implCabsNode()      {}
func (AlignofType) implCabsNode()     {}
func (OffsetOf) implCabsNode()        {}
func (Generic) implCabsNode()         {}
func (*InitList) implCabsNode()       {}
func (CompoundLiteral) implCabsNode() {}
func (StmtExpr) implCabsNode()        {}
func (Predefined) implCabsNode()      {}
func (ConvertVector) implCabsNode()   {}
func (ShuffleVector) implCabsNode()   {}
func (TypeName) implCabsNode()        {}

func (Constant) implCabsExpr()        {}
func (FloatConst) implCabsExpr()      {}
func (CharLiteral) implCabsExpr()     {}
func (StringLiteral) implCabsExpr()   {}
func (Variable) implCabsExpr()        {}
func (Unary) implCabsExpr()           {}
func (Binary) implCabsExpr()          {}
func (Paren) implCabsExpr()           {}
func (Conditional) implCabsExpr()     {}
func (Call) implCabsExpr()            {}
func (Index) implCabsExpr()           {}
func (Member) implCabsExpr()          {}
func (Cast) implCabsExpr()            {}
func (SizeofExpr) implCabsExpr()      {}
func (SizeofType) implCabsExpr()      {}
func (AlignofType) implCabsExpr()     {}
func (OffsetOf) implCabsExpr()        {}
func (Generic) implCabsExpr()         {}
func (*InitList) implCabsExpr()       {}
func (CompoundLiteral) implCabsExpr() {}
func (StmtExpr) implCabsExpr()        {}
func (Predefined) implCabsExpr()      {}
func (ConvertVector) implCabsExpr()   {}
func (ShuffleVector) implCabsExpr()   {}
func (TypeName) implCabsExpr()        {}

func (Return) implCabsNode()   {}
func (*Block) implCabsNode()   {}
func (DeclStmt) implCabsNode() {}
func (ExprStmt) implCabsNode() {}
func (If) implCabsNode()       {}
func (While) implCabsNode()    {}
func (DoWhile) implCabsNode()  {}
func (For) implCabsNode()      {}
func (Switch) implCabsNode()   {}
func (Case) implCabsNode()     {}
func (Default) implCabsNode()  {}
func (Break) implCabsNode()    {}
func (Continue) implCabsNode() {}
func (Goto) implCabsNode()     {}
func (Labeled) implCabsNode()  {}
func (Empty) implCabsNode()    {}

func (Return) implCabsStmt()   {}
func (*Block) implCabsStmt()   {}
func (DeclStmt) implCabsStmt() {}
func (ExprStmt) implCabsStmt() {}
func (If) implCabsStmt()       {}
func (While) implCabsStmt()    {}
func (DoWhile) implCabsStmt()  {}
func (For) implCabsStmt()      {}
func (Switch) implCabsStmt()   {}
func (Case) implCabsStmt()     {}
func (Default) implCabsStmt()  {}
func (Break) implCabsStmt()    {}
func (Continue) implCabsStmt() {}
func (Goto) implCabsStmt()     {}
func (Labeled) implCabsStmt()  {}
func (Empty) implCabsStmt()    {}

func (VarDef) implCabsNode()       {}
func (FunDef) implCabsNode()       {}
func (TypedefDef) implCabsNode()   {}
func (RecordDef) implCabsNode()    {}
func (EnumDef) implCabsNode()      {}
func (StaticAssert) implCabsNode() {}

func (VarDef) implDefinition()       {}
func (FunDef) implDefinition()       {}
func (TypedefDef) implDefinition()   {}
func (RecordDef) implDefinition()    {}
func (EnumDef) implDefinition()      {}
func (StaticAssert) implDefinition() {}

// Unparen strips any number of enclosing parentheses.
func Unparen(e Expr) Expr {
	for {
		p, ok := e.(Paren)
		if !ok {
			return e
		}
		e = p.Expr
	}
}
