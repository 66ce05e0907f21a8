package lir

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Printer renders lowered IR as Zig source
type Printer struct {
	w      io.Writer
	indent int
}

// NewPrinter creates a new Zig printer
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w, indent: 0}
}

// PrintFile prints every top-level declaration of f
func (p *Printer) PrintFile(f *File) {
	for _, d := range f.Decls {
		p.printStmt(d)
	}
}

// ExprString renders an expression.
func ExprString(e Expr) string {
	var b strings.Builder
	NewPrinter(&b).printExpr(e)
	return b.String()
}

// TypeString renders a type.
func TypeString(t Type) string {
	var b strings.Builder
	NewPrinter(&b).printType(t)
	return b.String()
}

// StmtString renders a statement, newline terminated.
func StmtString(s Stmt) string {
	var b strings.Builder
	NewPrinter(&b).printStmt(s)
	return b.String()
}

func (p *Printer) writeIndent() {
	fmt.Fprint(p.w, strings.Repeat("    ", p.indent))
}

func (p *Printer) printStmt(stmt Stmt) {
	p.writeIndent()
	p.printStmtInline(stmt, true)
	fmt.Fprintln(p.w)
}

// simple reports whether s can follow an if or while prefix on one line.
func simple(s Stmt) bool {
	switch s.(type) {
	case Return, Break, Continue, Assign, ExprStmt:
		return true
	}
	return false
}

// printStmtInline prints s starting at the current column; semi controls
// the terminating semicolon of simple statements.
func (p *Printer) printStmtInline(stmt Stmt, semi bool) {
	end := func() {
		if semi {
			fmt.Fprint(p.w, ";")
		}
	}
	switch s := stmt.(type) {
	case VarDecl:
		p.printVarDecl(s)
	case FnDecl:
		p.printFnDecl(s)
	case ExprStmt:
		p.printExpr(s.X)
		end()
	case Assign:
		p.printExpr(s.L)
		fmt.Fprintf(p.w, " %s ", s.Op)
		p.printExpr(s.R)
		end()
	case Block:
		if s.Label != "" {
			fmt.Fprintf(p.w, "%s: ", s.Label)
		}
		p.printBlockBody(s.Stmts)
	case *Block:
		p.printStmtInline(*s, semi)
	case Return:
		fmt.Fprint(p.w, "return")
		if s.X != nil {
			fmt.Fprint(p.w, " ")
			p.printExpr(s.X)
		}
		end()
	case Break:
		fmt.Fprint(p.w, "break")
		if s.Label != "" {
			fmt.Fprintf(p.w, " :%s", s.Label)
		}
		if s.Value != nil {
			fmt.Fprint(p.w, " ")
			p.printExpr(s.Value)
		}
		end()
	case Continue:
		fmt.Fprint(p.w, "continue")
		if s.Label != "" {
			fmt.Fprintf(p.w, " :%s", s.Label)
		}
		end()
	case If:
		p.printIf(s, semi)
	case While:
		if s.Label != "" {
			fmt.Fprintf(p.w, "%s: ", s.Label)
		}
		fmt.Fprint(p.w, "while (")
		p.printExpr(s.Cond)
		fmt.Fprint(p.w, ")")
		if s.Cont != nil {
			fmt.Fprint(p.w, " : (")
			p.printStmtInline(s.Cont, false)
			fmt.Fprint(p.w, ")")
		}
		p.printBody(s.Body, semi)
	case Switch:
		p.printSwitch(s)
	case Comptime:
		fmt.Fprint(p.w, "comptime ")
		p.printBlockBody(s.Body.Stmts)
		if p.indent > 0 {
			fmt.Fprint(p.w, ";")
		}
	case Comment:
		fmt.Fprintf(p.w, "// %s", s.Text)
	default:
		fmt.Fprintf(p.w, "<unknown stmt %T>", stmt)
	}
}

// printBody prints the body of an if or while after its prefix.
func (p *Printer) printBody(body Stmt, semi bool) {
	if b, ok := body.(*Block); ok {
		body = *b
	}
	if simple(body) {
		fmt.Fprint(p.w, " ")
		p.printStmtInline(body, semi)
		return
	}
	b, ok := body.(Block)
	if !ok {
		b = Block{Stmts: []Stmt{body}}
	}
	fmt.Fprint(p.w, " ")
	p.printStmtInline(b, semi)
}

func (p *Printer) printIf(s If, semi bool) {
	fmt.Fprint(p.w, "if (")
	p.printExpr(s.Cond)
	fmt.Fprint(p.w, ")")
	then := s.Then
	if b, ok := then.(*Block); ok {
		then = *b
	}
	if s.Else == nil {
		p.printBody(then, semi)
		return
	}
	if simple(then) {
		fmt.Fprint(p.w, " ")
		p.printStmtInline(then, false)
	} else {
		p.printBody(then, false)
	}
	fmt.Fprint(p.w, " else")
	if nested, ok := s.Else.(If); ok {
		fmt.Fprint(p.w, " ")
		p.printIf(nested, semi)
		return
	}
	p.printBody(s.Else, semi)
}

func (p *Printer) printBlockBody(stmts []Stmt) {
	if len(stmts) == 0 {
		fmt.Fprint(p.w, "{}")
		return
	}
	fmt.Fprintln(p.w, "{")
	p.indent++
	for _, s := range stmts {
		p.printStmt(s)
	}
	p.indent--
	p.writeIndent()
	fmt.Fprint(p.w, "}")
}

func (p *Printer) printSwitch(s Switch) {
	fmt.Fprint(p.w, "switch (")
	p.printExpr(s.X)
	fmt.Fprintln(p.w, ") {")
	p.indent++
	for _, prong := range s.Prongs {
		p.writeIndent()
		if prong.Else {
			fmt.Fprint(p.w, "else")
		} else {
			for i, item := range prong.Items {
				if i > 0 {
					fmt.Fprint(p.w, ", ")
				}
				p.printExpr(item)
			}
		}
		fmt.Fprint(p.w, " => ")
		body := prong.Body
		if b, ok := body.(*Block); ok {
			body = *b
		}
		if simple(body) {
			p.printStmtInline(body, false)
		} else {
			b, ok := body.(Block)
			if !ok {
				b = Block{Stmts: []Stmt{body}}
			}
			p.printStmtInline(b, false)
		}
		fmt.Fprintln(p.w, ",")
	}
	p.indent--
	p.writeIndent()
	fmt.Fprint(p.w, "}")
}

func (p *Printer) printVarDecl(d VarDecl) {
	if d.Pub {
		fmt.Fprint(p.w, "pub ")
	}
	switch {
	case d.Export:
		fmt.Fprint(p.w, "export ")
	case d.Extern:
		fmt.Fprint(p.w, "extern ")
	}
	if d.ThreadLocal {
		fmt.Fprint(p.w, "threadlocal ")
	}
	if d.Const {
		fmt.Fprint(p.w, "const ")
	} else {
		fmt.Fprint(p.w, "var ")
	}
	fmt.Fprint(p.w, d.Name)
	if d.Type != nil {
		fmt.Fprint(p.w, ": ")
		p.printType(d.Type)
	}
	if d.Section != "" {
		fmt.Fprintf(p.w, " linksection(%s)", quote(d.Section))
	}
	if d.Value != nil {
		fmt.Fprint(p.w, " = ")
		p.printExpr(d.Value)
	}
	fmt.Fprint(p.w, ";")
}

func (p *Printer) printFnDecl(d FnDecl) {
	if d.Pub {
		fmt.Fprint(p.w, "pub ")
	}
	switch {
	case d.Export:
		fmt.Fprint(p.w, "export ")
	case d.Extern:
		fmt.Fprint(p.w, "extern ")
	case d.Inline:
		fmt.Fprint(p.w, "inline ")
	}
	fmt.Fprintf(p.w, "fn %s(", d.Name)
	p.printParams(d.Params, d.VarArg)
	fmt.Fprint(p.w, ") ")
	if d.Section != "" {
		fmt.Fprintf(p.w, "linksection(%s) ", quote(d.Section))
	}
	if d.CallConv != "" {
		fmt.Fprintf(p.w, "callconv(.%s) ", d.CallConv)
	}
	p.printType(d.Return)
	if d.Body == nil {
		fmt.Fprint(p.w, ";")
		return
	}
	fmt.Fprint(p.w, " ")
	p.printBlockBody(d.Body.Stmts)
}

func (p *Printer) printParams(params []Param, varArg bool) {
	for i, param := range params {
		if i > 0 {
			fmt.Fprint(p.w, ", ")
		}
		if param.Name != "" {
			fmt.Fprintf(p.w, "%s: ", param.Name)
		}
		p.printType(param.Type)
	}
	if varArg {
		if len(params) > 0 {
			fmt.Fprint(p.w, ", ")
		}
		fmt.Fprint(p.w, "...")
	}
}

func (p *Printer) printType(t Type) {
	switch ty := t.(type) {
	case Name:
		fmt.Fprint(p.w, ty.Name)
	case Pointer:
		if ty.Optional {
			fmt.Fprint(p.w, "?")
		}
		switch ty.Kind {
		case PtrC:
			fmt.Fprint(p.w, "[*c]")
		case PtrMany:
			fmt.Fprint(p.w, "[*]")
		default:
			fmt.Fprint(p.w, "*")
		}
		if ty.Align > 0 {
			fmt.Fprintf(p.w, "align(%d) ", ty.Align)
		}
		if ty.Const {
			fmt.Fprint(p.w, "const ")
		}
		if ty.Volatile {
			fmt.Fprint(p.w, "volatile ")
		}
		p.printType(ty.Elem)
	case Array:
		if ty.Sentinel {
			fmt.Fprintf(p.w, "[%d:0]", ty.Len)
		} else {
			fmt.Fprintf(p.w, "[%d]", ty.Len)
		}
		p.printType(ty.Elem)
	case Vector:
		fmt.Fprintf(p.w, "@Vector(%d, ", ty.Len)
		p.printType(ty.Elem)
		fmt.Fprint(p.w, ")")
	case FnType:
		fmt.Fprint(p.w, "fn (")
		p.printParams(ty.Params, ty.VarArg)
		fmt.Fprint(p.w, ") ")
		if ty.CallConv != "" {
			fmt.Fprintf(p.w, "callconv(.%s) ", ty.CallConv)
		}
		p.printType(ty.Return)
	case Container:
		p.printContainer(ty)
	case TypeOf:
		fmt.Fprint(p.w, "@TypeOf(")
		p.printExpr(ty.X)
		fmt.Fprint(p.w, ")")
	case Computed:
		p.printExpr(ty.X)
	default:
		fmt.Fprintf(p.w, "<unknown type %T>", t)
	}
}

func (p *Printer) printContainer(c Container) {
	switch c.Layout {
	case LayoutExtern:
		fmt.Fprint(p.w, "extern ")
	case LayoutPacked:
		fmt.Fprint(p.w, "packed ")
	}
	switch c.Kind {
	case KindUnion:
		fmt.Fprint(p.w, "union")
	case KindOpaque:
		fmt.Fprint(p.w, "opaque")
	default:
		fmt.Fprint(p.w, "struct")
	}
	if c.Backing != nil {
		fmt.Fprint(p.w, "(")
		p.printType(c.Backing)
		fmt.Fprint(p.w, ")")
	}
	if len(c.Fields) == 0 && len(c.Decls) == 0 {
		fmt.Fprint(p.w, " {}")
		return
	}
	fmt.Fprintln(p.w, " {")
	p.indent++
	for _, f := range c.Fields {
		p.writeIndent()
		fmt.Fprintf(p.w, "%s: ", f.Name)
		p.printType(f.Type)
		if f.Align > 0 {
			fmt.Fprintf(p.w, " align(%d)", f.Align)
		}
		if f.Default != nil {
			fmt.Fprint(p.w, " = ")
			p.printExpr(f.Default)
		}
		fmt.Fprintln(p.w, ",")
	}
	for _, d := range c.Decls {
		p.printStmt(d)
	}
	p.indent--
	p.writeIndent()
	fmt.Fprint(p.w, "}")
}

// Operator precedence levels, loosest first
const (
	precLowest = iota
	precOr
	precAnd
	precCompare
	precBitwise
	precShift
	precAdd
	precMul
	precPrefix
	precPostfix
)

func binaryPrec(op string) int {
	switch op {
	case "or":
		return precOr
	case "and":
		return precAnd
	case "==", "!=", "<", "<=", ">", ">=":
		return precCompare
	case "&", "^", "|", "orelse", "catch":
		return precBitwise
	case "<<", ">>":
		return precShift
	case "+", "-", "++", "+%", "-%":
		return precAdd
	}
	return precMul
}

// exprPrec returns the precedence of e as an operand.
func exprPrec(e Expr) int {
	switch x := e.(type) {
	case Binary:
		return binaryPrec(x.Op)
	case Truthy:
		return precCompare
	case Unary:
		return precPrefix
	case IfExpr, BlockExpr, Range:
		return precLowest
	}
	return precPostfix
}

// printOperand prints a binary operand, grouping it when the tree shape
// would otherwise not survive Zig's precedence and associativity.
func (p *Printer) printOperand(e Expr, parent string, right bool) {
	prec := exprPrec(e)
	pp := binaryPrec(parent)
	group := prec < pp
	if prec == pp {
		switch {
		case right, pp == precCompare:
			group = true
		case pp == precBitwise:
			if b, ok := e.(Binary); ok && b.Op != parent {
				group = true
			}
		}
	}
	if group {
		fmt.Fprint(p.w, "(")
		p.printExpr(e)
		fmt.Fprint(p.w, ")")
		return
	}
	p.printExpr(e)
}

// printPostfixBase prints the operand of a postfix or prefix operator.
func (p *Printer) printPostfixBase(e Expr, min int) {
	if exprPrec(e) < min {
		fmt.Fprint(p.w, "(")
		p.printExpr(e)
		fmt.Fprint(p.w, ")")
		return
	}
	p.printExpr(e)
}

func (p *Printer) printArgs(args []Expr) {
	for i, a := range args {
		if i > 0 {
			fmt.Fprint(p.w, ", ")
		}
		p.printExpr(a)
	}
}

func (p *Printer) printExpr(expr Expr) {
	switch e := expr.(type) {
	case Ident:
		fmt.Fprint(p.w, e.Name)
	case IntLit:
		fmt.Fprint(p.w, e.Text)
	case FloatLit:
		fmt.Fprint(p.w, e.Text)
	case CharLit:
		fmt.Fprint(p.w, CharLiteral(e.Value))
	case StringLit:
		fmt.Fprint(p.w, quote(e.Value))
	case TypeExpr:
		p.printType(e.T)
	case As:
		fmt.Fprint(p.w, "@as(")
		p.printType(e.T)
		fmt.Fprint(p.w, ", ")
		p.printExpr(e.X)
		fmt.Fprint(p.w, ")")
	case Conv:
		fmt.Fprintf(p.w, "%s(", e.Op)
		x := e.X
		if pe, ok := x.(Paren); ok {
			x = pe.X // the call parentheses already group it
		}
		p.printExpr(x)
		fmt.Fprint(p.w, ")")
	case Builtin:
		fmt.Fprintf(p.w, "@%s(", e.Name)
		p.printArgs(e.Args)
		fmt.Fprint(p.w, ")")
	case Truthy:
		p.printOperand(e.X, "!=", false)
		if e.Null {
			fmt.Fprint(p.w, " != null")
		} else {
			fmt.Fprint(p.w, " != 0")
		}
	case Unary:
		fmt.Fprint(p.w, e.Op)
		p.printPostfixBase(e.X, precPrefix)
	case Binary:
		p.printOperand(e.L, e.Op, false)
		fmt.Fprintf(p.w, " %s ", e.Op)
		p.printOperand(e.R, e.Op, true)
	case Paren:
		fmt.Fprint(p.w, "(")
		p.printExpr(e.X)
		fmt.Fprint(p.w, ")")
	case Deref:
		p.printPostfixBase(e.X, precPostfix)
		fmt.Fprint(p.w, ".*")
	case Unwrap:
		p.printPostfixBase(e.X, precPostfix)
		fmt.Fprint(p.w, ".?")
	case Member:
		p.printPostfixBase(e.X, precPostfix)
		fmt.Fprintf(p.w, ".%s", e.Name)
	case Index:
		p.printPostfixBase(e.X, precPostfix)
		fmt.Fprint(p.w, "[")
		p.printExpr(e.I)
		fmt.Fprint(p.w, "]")
	case Slice:
		p.printPostfixBase(e.X, precPostfix)
		fmt.Fprint(p.w, "[")
		p.printExpr(e.Lo)
		fmt.Fprint(p.w, "..")
		p.printExpr(e.Hi)
		fmt.Fprint(p.w, "]")
	case Call:
		p.printPostfixBase(e.Fn, precPostfix)
		fmt.Fprint(p.w, "(")
		p.printArgs(e.Args)
		fmt.Fprint(p.w, ")")
	case IfExpr:
		fmt.Fprint(p.w, "if (")
		p.printExpr(e.Cond)
		fmt.Fprint(p.w, ") ")
		p.printExpr(e.Then)
		fmt.Fprint(p.w, " else ")
		p.printExpr(e.Else)
	case BlockExpr:
		fmt.Fprintf(p.w, "%s: ", e.Label)
		p.printBlockBody(e.Stmts)
	case StructInit:
		if e.T == nil {
			fmt.Fprint(p.w, ".")
		} else {
			p.printType(e.T)
		}
		if len(e.Fields) == 0 {
			fmt.Fprint(p.w, "{}")
			return
		}
		fmt.Fprintln(p.w, "{")
		p.indent++
		for _, f := range e.Fields {
			p.writeIndent()
			fmt.Fprintf(p.w, ".%s = ", f.Name)
			p.printExpr(f.Value)
			fmt.Fprintln(p.w, ",")
		}
		p.indent--
		p.writeIndent()
		fmt.Fprint(p.w, "}")
	case ArrayInit:
		if e.T != nil {
			p.printType(e.T)
		} else {
			fmt.Fprint(p.w, ".")
		}
		if len(e.Elems) == 0 {
			fmt.Fprint(p.w, "{}")
			return
		}
		if e.Inline {
			fmt.Fprint(p.w, "{")
			p.printArgs(e.Elems)
			fmt.Fprint(p.w, "}")
			return
		}
		fmt.Fprintln(p.w, "{")
		p.indent++
		for _, el := range e.Elems {
			p.writeIndent()
			p.printExpr(el)
			fmt.Fprintln(p.w, ",")
		}
		p.indent--
		p.writeIndent()
		fmt.Fprint(p.w, "}")
	case Range:
		p.printExpr(e.Lo)
		fmt.Fprint(p.w, "...")
		p.printExpr(e.Hi)
	default:
		fmt.Fprintf(p.w, "<unknown expr %T>", expr)
	}
}

// quote renders s as a Zig string literal; bytes outside printable ASCII
// are written as \x escapes.
func quote(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if c < 0x20 || c >= 0x7f {
				fmt.Fprintf(&b, `\x%02x`, c)
			} else {
				b.WriteByte(c)
			}
		}
	}
	b.WriteByte('"')
	return b.String()
}

// Quote renders s as a Zig string literal.
func Quote(s string) string { return quote(s) }

// CharLiteral renders r as a Zig character literal.
func CharLiteral(r rune) string {
	switch r {
	case '\'':
		return `'\''`
	case '\\':
		return `'\\'`
	case '\n':
		return `'\n'`
	case '\r':
		return `'\r'`
	case '\t':
		return `'\t'`
	}
	switch {
	case r < 0x20 || r == 0x7f:
		return fmt.Sprintf(`'\x%02x'`, r)
	case r < 0x7f:
		return "'" + string(r) + "'"
	case r > utf8.MaxRune:
		return strconv.Itoa(int(r))
	}
	return fmt.Sprintf(`'\u{%x}'`, r)
}
