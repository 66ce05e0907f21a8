// Package cabs provides AST printing functionality
package cabs

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/raymyers/ralph-translate-c/pkg/ctypes"
)

// Printer outputs the AST as C source
type Printer struct {
	w      io.Writer
	indent int
}

// NewPrinter creates a new AST printer
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w, indent: 0}
}

// PrintProgram prints a complete program
func (p *Printer) PrintProgram(prog *Program) {
	for _, def := range prog.Definitions {
		p.printDefinition(def)
	}
	for _, m := range prog.Macros {
		if m.FuncLike {
			fmt.Fprintf(p.w, "#define %s(%s) %s\n", m.Name, strings.Join(m.Params, ", "), m.Body)
		} else {
			fmt.Fprintf(p.w, "#define %s %s\n", m.Name, m.Body)
		}
	}
}

func (p *Printer) writeIndent() {
	fmt.Fprint(p.w, strings.Repeat("  ", p.indent))
}

func (p *Printer) printDefinition(def Definition) {
	p.writeIndent()
	switch d := def.(type) {
	case FunDef:
		p.printFunDef(d)
	case VarDef:
		if d.Storage != StorageNone {
			fmt.Fprint(p.w, d.Storage.String()+" ")
		}
		if d.ThreadLocal {
			fmt.Fprint(p.w, "_Thread_local ")
		}
		fmt.Fprint(p.w, ctypes.TypeName(d.Typ, d.Name))
		if d.Init != nil {
			fmt.Fprint(p.w, " = "+ExprString(d.Init))
		}
		fmt.Fprintln(p.w, ";")
	case TypedefDef:
		fmt.Fprintf(p.w, "typedef %s;\n", ctypes.TypeName(d.Typ, d.Name))
	case RecordDef:
		p.printRecord(d.Rec)
	case EnumDef:
		fmt.Fprintf(p.w, "enum %s {", d.Enum.Tag)
		for i, c := range d.Enum.Consts {
			if i > 0 {
				fmt.Fprint(p.w, ",")
			}
			fmt.Fprintf(p.w, " %s", c.Name)
			if i < len(d.Values) && d.Values[i] != nil {
				fmt.Fprintf(p.w, " = %s", ExprString(d.Values[i]))
			}
		}
		fmt.Fprintln(p.w, " };")
	case StaticAssert:
		fmt.Fprintf(p.w, "_Static_assert(%s, %q);\n", ExprString(d.Cond), d.Msg)
	default:
		fmt.Fprintf(p.w, "/* unknown definition %T */\n", def)
	}
}

func (p *Printer) printRecord(r *ctypes.Record) {
	fmt.Fprintf(p.w, "%s %s", r.Kind, r.Tag)
	if !r.Complete {
		fmt.Fprintln(p.w, ";")
		return
	}
	fmt.Fprintln(p.w, " {")
	p.indent++
	for _, f := range r.Fields {
		p.writeIndent()
		fmt.Fprint(p.w, ctypes.TypeName(f.Type, f.Name))
		if f.BitField {
			fmt.Fprintf(p.w, " : %d", f.BitWidth)
		}
		fmt.Fprintln(p.w, ";")
	}
	p.indent--
	p.writeIndent()
	fmt.Fprintln(p.w, "};")
}

func (p *Printer) printFunDef(f FunDef) {
	if f.Storage != StorageNone {
		fmt.Fprint(p.w, f.Storage.String()+" ")
	}
	if f.Inline {
		fmt.Fprint(p.w, "inline ")
	}
	var params []string
	for i, pt := range f.Typ.Params {
		name := ""
		if i < len(f.Params) {
			name = f.Params[i]
		}
		params = append(params, ctypes.TypeName(pt, name))
	}
	if f.Typ.VarArg {
		params = append(params, "...")
	}
	if len(params) == 0 && !f.Typ.NoProto {
		params = append(params, "void")
	}
	fmt.Fprint(p.w, ctypes.TypeName(f.Typ.Return, f.Name+"("+strings.Join(params, ", ")+")"))
	if f.Body == nil {
		fmt.Fprintln(p.w, ";")
		return
	}
	fmt.Fprintln(p.w)
	p.writeIndent()
	p.printBlock(f.Body)
}

func (p *Printer) printBlock(b *Block) {
	fmt.Fprintln(p.w, "{")
	p.indent++
	for _, s := range b.Items {
		p.printStmt(s)
	}
	p.indent--
	p.writeIndent()
	fmt.Fprintln(p.w, "}")
}

func (p *Printer) printStmt(stmt Stmt) {
	if b, ok := stmt.(*Block); ok {
		p.writeIndent()
		p.printBlock(b)
		return
	}
	if d, ok := stmt.(DeclStmt); ok {
		for _, def := range d.Decls {
			p.printDefinition(def)
		}
		return
	}
	p.writeIndent()
	switch s := stmt.(type) {
	case Return:
		if s.Expr == nil {
			fmt.Fprintln(p.w, "return;")
		} else {
			fmt.Fprintf(p.w, "return %s;\n", ExprString(s.Expr))
		}
	case ExprStmt:
		fmt.Fprintf(p.w, "%s;\n", ExprString(s.Expr))
	case If:
		fmt.Fprintf(p.w, "if (%s)\n", ExprString(s.Cond))
		p.printNested(s.Then)
		if s.Else != nil {
			p.writeIndent()
			fmt.Fprintln(p.w, "else")
			p.printNested(s.Else)
		}
	case While:
		fmt.Fprintf(p.w, "while (%s)\n", ExprString(s.Cond))
		p.printNested(s.Body)
	case DoWhile:
		fmt.Fprintln(p.w, "do")
		p.printNested(s.Body)
		p.writeIndent()
		fmt.Fprintf(p.w, "while (%s);\n", ExprString(s.Cond))
	case For:
		init := ""
		switch i := s.Init.(type) {
		case ExprStmt:
			init = ExprString(i.Expr)
		case DeclStmt:
			var parts []string
			for _, d := range i.Decls {
				if v, ok := d.(VarDef); ok {
					part := ctypes.TypeName(v.Typ, v.Name)
					if v.Init != nil {
						part += " = " + ExprString(v.Init)
					}
					parts = append(parts, part)
				}
			}
			init = strings.Join(parts, ", ")
		}
		fmt.Fprintf(p.w, "for (%s; %s; %s)\n", init, optExpr(s.Cond), optExpr(s.Step))
		p.printNested(s.Body)
	case Switch:
		fmt.Fprintf(p.w, "switch (%s)\n", ExprString(s.Expr))
		p.printNested(s.Body)
	case Case:
		if s.Hi != nil {
			fmt.Fprintf(p.w, "case %s ... %s:\n", ExprString(s.Expr), ExprString(s.Hi))
		} else {
			fmt.Fprintf(p.w, "case %s:\n", ExprString(s.Expr))
		}
		p.printNested(s.Body)
	case Default:
		fmt.Fprintln(p.w, "default:")
		p.printNested(s.Body)
	case Break:
		fmt.Fprintln(p.w, "break;")
	case Continue:
		fmt.Fprintln(p.w, "continue;")
	case Goto:
		fmt.Fprintf(p.w, "goto %s;\n", s.Label)
	case Labeled:
		fmt.Fprintf(p.w, "%s:\n", s.Label)
		p.printNested(s.Body)
	case Empty:
		fmt.Fprintln(p.w, ";")
	default:
		fmt.Fprintf(p.w, "/* unknown statement %T */\n", stmt)
	}
}

func (p *Printer) printNested(s Stmt) {
	if s == nil {
		return
	}
	p.indent++
	p.printStmt(s)
	p.indent--
}

func optExpr(e Expr) string {
	if e == nil {
		return ""
	}
	return ExprString(e)
}

// ExprString renders an expression as C source, fully parenthesizing
// nested operators.
func ExprString(e Expr) string {
	switch x := e.(type) {
	case Constant:
		if x.Text != "" {
			return x.Text + x.Suffix
		}
		return strconv.FormatUint(x.Value, 10) + x.Suffix
	case FloatConst:
		if x.Text != "" {
			return x.Text + x.Suffix
		}
		return strconv.FormatFloat(x.Value, 'g', -1, 64) + x.Suffix
	case CharLiteral:
		return x.Prefix + strconv.QuoteRune(rune(x.Value))
	case StringLiteral:
		return x.Prefix + strconv.Quote(x.Value)
	case Variable:
		return x.Name
	case Paren:
		return "(" + ExprString(x.Expr) + ")"
	case Unary:
		switch x.Op {
		case OpPostInc, OpPostDec:
			return operand(x.Expr) + x.Op.String()
		}
		return x.Op.String() + operand(x.Expr)
	case Binary:
		if x.Op == OpComma || x.Op.IsAssign() {
			return operand(x.Left) + " " + x.Op.String() + " " + ExprString(x.Right)
		}
		return operand(x.Left) + " " + x.Op.String() + " " + operand(x.Right)
	case Conditional:
		if x.Then == nil {
			return operand(x.Cond) + " ?: " + operand(x.Else)
		}
		return operand(x.Cond) + " ? " + operand(x.Then) + " : " + operand(x.Else)
	case Call:
		var args []string
		for _, a := range x.Args {
			args = append(args, ExprString(a))
		}
		return operand(x.Func) + "(" + strings.Join(args, ", ") + ")"
	case Index:
		return operand(x.Array) + "[" + ExprString(x.Index) + "]"
	case Member:
		if x.Arrow {
			return operand(x.Expr) + "->" + x.Name
		}
		return operand(x.Expr) + "." + x.Name
	case Cast:
		return "(" + x.Typ.String() + ")" + operand(x.Expr)
	case SizeofExpr:
		return "sizeof " + operand(x.Expr)
	case SizeofType:
		return "sizeof(" + x.Of.String() + ")"
	case AlignofType:
		return "_Alignof(" + x.Of.String() + ")"
	case OffsetOf:
		return "offsetof(" + x.Of.String() + ", " + x.Field + ")"
	case Generic:
		parts := []string{ExprString(x.Control)}
		for _, a := range x.Assocs {
			name := "default"
			if a.Of != nil {
				name = a.Of.String()
			}
			parts = append(parts, name+": "+ExprString(a.Expr))
		}
		return "_Generic(" + strings.Join(parts, ", ") + ")"
	case *InitList:
		var items []string
		for _, it := range x.Items {
			prefix := ""
			for _, d := range it.Designators {
				if d.IsIndex {
					prefix += "[" + strconv.FormatInt(d.Index, 10) + "]"
				} else {
					prefix += "." + d.Field
				}
			}
			if prefix != "" {
				prefix += " = "
			}
			items = append(items, prefix+ExprString(it.Value))
		}
		return "{" + strings.Join(items, ", ") + "}"
	case CompoundLiteral:
		return "(" + x.Typ.String() + ")" + ExprString(x.Init)
	case StmtExpr:
		return "({ ... })"
	case Predefined:
		return x.Name
	case ConvertVector:
		return "__builtin_convertvector(" + ExprString(x.Expr) + ", " + x.Typ.String() + ")"
	case ShuffleVector:
		parts := []string{ExprString(x.A), ExprString(x.B)}
		for _, i := range x.Indices {
			parts = append(parts, strconv.FormatInt(i, 10))
		}
		return "__builtin_shufflevector(" + strings.Join(parts, ", ") + ")"
	}
	return fmt.Sprintf("/* %T */", e)
}

func operand(e Expr) string {
	switch e.(type) {
	case Binary, Conditional, Cast, Unary:
		return "(" + ExprString(e) + ")"
	}
	return ExprString(e)
}
