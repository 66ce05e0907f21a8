package lirgen

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/raymyers/ralph-translate-c/pkg/cabs"
	"github.com/raymyers/ralph-translate-c/pkg/ctyper"
	"github.com/raymyers/ralph-translate-c/pkg/ctypes"
	"github.com/raymyers/ralph-translate-c/pkg/diag"
	"github.com/raymyers/ralph-translate-c/pkg/lexer"
	"github.com/raymyers/ralph-translate-c/pkg/lir"
	"github.com/raymyers/ralph-translate-c/pkg/parser"
)

// MacroKind is how a macro definition is lowered
type MacroKind int

const (
	MacroSkipped     MacroKind = iota // empty body, or a name the unit declares
	MacroConstant                     // pub const X = expr;
	MacroTypeAlias                    // pub const X = T;
	MacroAccessor                     // zero-argument inline fn re-evaluating its body
	MacroForwarder                    // inline fn calling through a function pointer
	MacroInlineFn                     // type-generic inline fn
	MacroAmbiguous                    // cast-or-call, resolved by __helpers.CAST_OR_CALL
	MacroFieldAccess                  // a parameter names a field; not translatable
	MacroInvalid                      // body is not a C expression or type
)

func (k MacroKind) String() string {
	names := []string{"skipped", "constant", "type alias", "accessor", "forwarder",
		"inline function", "ambiguous", "field access", "invalid"}
	if int(k) < len(names) {
		return names[k]
	}
	return "?"
}

// MacroClass is the result of classifying one macro
type MacroClass struct {
	Kind MacroKind
	// Body is the parsed replacement list, nil when skipped or invalid.
	Body cabs.Expr
	// Reason explains field-access and invalid macros.
	Reason string
	// Runtime is set when the body reads objects or calls functions.
	Runtime bool
	// Callee is the signature a forwarder calls.
	Callee ctypes.Tfunction
}

// ClassifyMacro decides how m is lowered. sema resolves the names the
// body refers to; known holds the kinds of the other macros of the unit.
func ClassifyMacro(m cabs.MacroDef, sema *ctyper.Typer, known map[string]MacroKind) MacroClass {
	if strings.TrimSpace(m.Body) == "" {
		return MacroClass{Kind: MacroSkipped}
	}
	if _, ok := sema.Lookup(m.Name); ok {
		return MacroClass{Kind: MacroSkipped}
	}
	if tok, ok := badToken(m.Body); ok {
		return MacroClass{Kind: MacroInvalid, Reason: fmt.Sprintf("unable to translate C expr: unexpected token '%s'", tok)}
	}
	if m.Variadic {
		return MacroClass{Kind: MacroInvalid, Reason: "unable to translate C expr: variadic macro"}
	}
	body, err := parser.ParseMacroBody(m.Body, sema)
	if err != nil {
		return MacroClass{Kind: MacroInvalid, Reason: "unable to translate C expr: " + firstLine(err.Error())}
	}
	c := MacroClass{Body: body}
	params := make(map[string]bool, len(m.Params))
	for _, p := range m.Params {
		params[p] = true
	}

	var problem string
	cabs.Inspect(body, func(e cabs.Expr) bool {
		if problem != "" {
			return false
		}
		switch x := e.(type) {
		case cabs.Member:
			if params[x.Name] {
				problem = fmt.Sprintf("unable to translate macro: parameter '%s' is used as a field name", x.Name)
				c.Kind = MacroFieldAccess
			}
		case cabs.Variable:
			if params[x.Name] {
				return true
			}
			if k, ok := known[x.Name]; ok && k != MacroSkipped {
				switch k {
				case MacroInvalid, MacroFieldAccess:
					problem = fmt.Sprintf("unable to translate macro: refers to untranslatable macro '%s'", x.Name)
				case MacroAccessor, MacroForwarder:
					c.Runtime = true
				}
				return true
			}
			sym, ok := sema.Lookup(x.Name)
			switch {
			case ok && sym.Kind == ctyper.SymVar:
				c.Runtime = true
			case ok:
			case strings.HasPrefix(x.Name, "__builtin_"):
			default:
				problem = fmt.Sprintf("unable to translate macro: undefined identifier '%s'", x.Name)
			}
		case cabs.Call:
			c.Runtime = true
		case cabs.Unary:
			switch x.Op {
			case cabs.OpPreInc, cabs.OpPreDec, cabs.OpPostInc, cabs.OpPostDec:
				problem = "unable to translate C expr: increment in macro"
			}
		case cabs.Binary:
			if x.Op.IsAssign() || x.Op == cabs.OpComma {
				problem = fmt.Sprintf("unable to translate C expr: unexpected token '%s'", x.Op)
			}
		}
		return true
	})
	if problem != "" {
		if c.Kind != MacroFieldAccess {
			c.Kind = MacroInvalid
		}
		c.Body, c.Reason = nil, problem
		return c
	}

	inner := stripParens(body)
	if !m.FuncLike {
		switch x := inner.(type) {
		case cabs.TypeName:
			c.Kind = MacroTypeAlias
			return c
		case cabs.Variable, cabs.Member:
			if fn, ok := ctypes.FunctionOf(pathType(x, sema)); ok && isPath(x) {
				if v, isVar := x.(cabs.Variable); !isVar || !isFunctionName(v.Name, sema) {
					c.Kind, c.Callee = MacroForwarder, fn
					return c
				}
			}
		}
		if c.Runtime {
			c.Kind = MacroAccessor
		} else {
			c.Kind = MacroConstant
		}
		return c
	}
	if len(m.Params) == 2 {
		if call, ok := inner.(cabs.Call); ok && len(call.Args) == 1 {
			callee, ok1 := stripParensOnce(call.Func).(cabs.Variable)
			arg, ok2 := stripParens(call.Args[0]).(cabs.Variable)
			if ok1 && ok2 && callee.Name == m.Params[0] && arg.Name == m.Params[1] && isParenthesized(call.Func) {
				c.Kind = MacroAmbiguous
				return c
			}
		}
	}
	c.Kind = MacroInlineFn
	return c
}

// badToken finds a token no expression can contain.
func badToken(body string) (string, bool) {
	for _, tok := range lexer.New(body).All() {
		switch tok.Type {
		case lexer.TokenHash, lexer.TokenHashHash, lexer.TokenIllegal:
			return tok.Literal, true
		}
	}
	return "", false
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func stripParens(e cabs.Expr) cabs.Expr {
	for {
		p, ok := e.(cabs.Paren)
		if !ok {
			return e
		}
		e = p.Expr
	}
}

func stripParensOnce(e cabs.Expr) cabs.Expr {
	if p, ok := e.(cabs.Paren); ok {
		return p.Expr
	}
	return e
}

func isParenthesized(e cabs.Expr) bool {
	_, ok := e.(cabs.Paren)
	return ok
}

// isPath reports whether e is an identifier followed by member selections.
func isPath(e cabs.Expr) bool {
	switch x := e.(type) {
	case cabs.Variable:
		return true
	case cabs.Member:
		return isPath(stripParens(x.Expr))
	}
	return false
}

func isFunctionName(name string, sema *ctyper.Typer) bool {
	sym, ok := sema.Lookup(name)
	return ok && sym.Kind == ctyper.SymFunc
}

// pathType resolves the type of an identifier or member path in an
// untyped macro body; nil when unknown.
func pathType(e cabs.Expr, sema *ctyper.Typer) ctypes.Type {
	switch x := e.(type) {
	case cabs.Paren:
		return pathType(x.Expr, sema)
	case cabs.Variable:
		if sym, ok := sema.Lookup(x.Name); ok && (sym.Kind == ctyper.SymVar || sym.Kind == ctyper.SymFunc) {
			return sym.Type
		}
	case cabs.Member:
		base := pathType(x.Expr, sema)
		if base == nil {
			return nil
		}
		if x.Arrow {
			if p := ctypes.Pointee(base); p != nil {
				base = p
			}
		}
		r := ctypes.RecordOf(base)
		if r == nil || !r.Complete {
			return nil
		}
		if _, f, ok := ctypes.FindField(r, x.Name); ok {
			return f.Type
		}
	case cabs.Unary:
		if x.Op == cabs.OpDeref {
			if base := pathType(x.Expr, sema); base != nil {
				return ctypes.Pointee(base)
			}
		}
	case cabs.Cast:
		return x.Typ
	}
	return nil
}

// macroEnv is the lowering state of one macro body
type macroEnv struct {
	name   string
	params map[string]string // C parameter -> Zig name
}

// lowerMacros emits the macros of the unit in definition order.
func (t *translator) lowerMacros(macros []cabs.MacroDef) {
	known := make(map[string]MacroKind, len(macros))
	for _, m := range macros {
		known[m.Name] = MacroConstant
	}
	for _, m := range macros {
		c := ClassifyMacro(m, t.sema, known)
		known[m.Name] = c.Kind
		t.log.WithFields(logrus.Fields{"macro": m.Name, "kind": c.Kind.String()}).Debug("macro classified")
		if c.Kind == MacroSkipped {
			continue
		}
		decl, err := t.macroDecl(m, c, known)
		if err != nil {
			d := diag.As(err).At(m.Pos, m.Name)
			t.report(d)
			known[m.Name] = MacroInvalid
			decl = macroStub(m.Name, d.Msg)
		}
		t.emit(decl)
	}
}

// macroStub is what an untranslatable macro becomes.
func macroStub(name, reason string) lir.Stmt {
	return lir.VarDecl{Pub: true, Const: true, Name: escape(name),
		Value: lir.Builtin{Name: "compileError", Args: []lir.Expr{lir.StringLit{Value: reason}}}}
}

func (t *translator) macroDecl(m cabs.MacroDef, c MacroClass, known map[string]MacroKind) (lir.Stmt, error) {
	name := escape(m.Name)
	env := &macroEnv{name: m.Name, params: make(map[string]string)}
	switch c.Kind {
	case MacroInvalid, MacroFieldAccess:
		return nil, unsupported("%s", c.Reason)
	case MacroAmbiguous:
		return lir.VarDecl{Pub: true, Const: true, Name: name, Value: helper("CAST_OR_CALL")}, nil
	case MacroTypeAlias:
		tn := stripParens(c.Body).(cabs.TypeName)
		return lir.VarDecl{Pub: true, Const: true, Name: name, Value: lir.TypeExpr{T: t.zigType(tn.Of)}}, nil
	case MacroForwarder:
		return t.forwarder(name, stripParens(c.Body), c.Callee, env, known)
	}

	if c.Kind == MacroInlineFn {
		fn := lir.FnDecl{Pub: true, Inline: true, Name: name, Body: &lir.Block{}}
		used := make(map[string]bool)
		n := 0
		for _, p := range m.Params {
			zn := t.macroParam(p, used, &n)
			env.params[p] = zn
			fn.Params = append(fn.Params, lir.Param{Name: zn, Type: lir.Named("anytype")})
			fn.Body.Stmts = append(fn.Body.Stmts, lir.Touch(zn))
		}
		x, err := t.macroExpr(stripParens(c.Body), env, known)
		if err != nil {
			return nil, err
		}
		fn.Return = lir.TypeOf{X: x}
		if cast, ok := stripParens(c.Body).(cabs.Cast); ok {
			fn.Return = t.zigType(cast.Typ)
		}
		fn.Body.Stmts = append(fn.Body.Stmts, lir.Return{X: x})
		return fn, nil
	}

	x, err := t.macroExpr(stripParens(c.Body), env, known)
	if err != nil {
		return nil, err
	}
	if c.Kind == MacroAccessor {
		return lir.FnDecl{Pub: true, Inline: true, Name: name, Return: lir.TypeOf{X: x},
			Body: &lir.Block{Stmts: []lir.Stmt{lir.Return{X: x}}}}, nil
	}
	return lir.VarDecl{Pub: true, Const: true, Name: name, Value: x}, nil
}

// macroParam names a parameter of a generated function, mangling it with
// a counter local to the macro when it clashes.
func (t *translator) macroParam(base string, used map[string]bool, n *int) string {
	name := escape(base)
	for t.isTaken(name) || used[name] {
		*n++
		name = escape(fmt.Sprintf("%s_%d", base, *n))
	}
	used[name] = true
	return name
}

// forwarder lowers a macro naming a function pointer to a function taking
// the pointee's parameters.
func (t *translator) forwarder(name string, path cabs.Expr, fn ctypes.Tfunction, env *macroEnv, known map[string]MacroKind) (lir.Stmt, error) {
	target, err := t.macroExpr(path, env, known)
	if err != nil {
		return nil, err
	}
	decl := lir.FnDecl{Pub: true, Inline: true, Name: name, Return: t.returnType(fn), Body: &lir.Block{}}
	call := lir.Call{Fn: lir.Unwrap{X: target}}
	used := make(map[string]bool)
	n := 0
	for i, p := range fn.Params {
		base := "arg"
		if i < len(fn.Names) && fn.Names[i] != "" {
			base = fn.Names[i]
		}
		zn := t.macroParam(base, used, &n)
		decl.Params = append(decl.Params, lir.Param{Name: zn, Type: t.zigType(p)})
		call.Args = append(call.Args, lir.Id(zn))
	}
	decl.Body.Stmts = []lir.Stmt{lir.Return{X: call}}
	return decl, nil
}

// macroExpr lowers an untyped macro body. Without types the C conversions
// are left to the helpers of the runtime.
func (t *translator) macroExpr(e cabs.Expr, env *macroEnv, known map[string]MacroKind) (lir.Expr, error) {
	sub := func(e cabs.Expr) (lir.Expr, error) { return t.macroExpr(e, env, known) }
	switch x := e.(type) {
	case cabs.Paren:
		return sub(x.Expr)
	case cabs.Constant:
		return t.macroInt(x), nil
	case cabs.FloatConst:
		typ := "f64"
		switch strings.ToLower(x.Suffix) {
		case "f":
			typ = "f32"
		case "l":
			typ = "c_longdouble"
		}
		return lir.As{T: lir.Named(typ), X: lir.FloatLit{Text: floatText(x)}}, nil
	case cabs.CharLiteral:
		return t.charLiteral(x).x, nil
	case cabs.StringLiteral:
		if !isNarrow(x) {
			return nil, unsupported("unable to translate C expr: wide string literal")
		}
		return lir.StringLit{Value: x.Value}, nil
	case cabs.TypeName:
		return lir.TypeExpr{T: t.zigType(x.Of)}, nil
	case cabs.Variable:
		return t.macroName(x.Name, env, known)
	case cabs.Unary:
		v, err := sub(x.Expr)
		if err != nil {
			return nil, err
		}
		switch x.Op {
		case cabs.OpPlus:
			return v, nil
		case cabs.OpNeg, cabs.OpBitNot, cabs.OpAddrOf:
			return lir.Unary{Op: x.Op.String(), X: v}, nil
		case cabs.OpNot:
			if isBoolExpr(v) {
				return lir.Unary{Op: "!", X: v}, nil
			}
			return lir.Binary{Op: "==", L: v, R: lir.Int("0")}, nil
		case cabs.OpDeref:
			return lir.Deref{X: v}, nil
		}
		return nil, unsupported("unable to translate C expr: unexpected token '%s'", x.Op)
	case cabs.Binary:
		return t.macroBinary(x, sub)
	case cabs.Conditional:
		if x.Then == nil {
			return nil, unsupported("unable to translate C expr: conditional without middle operand")
		}
		c, err := sub(x.Cond)
		if err != nil {
			return nil, err
		}
		th, err := sub(x.Then)
		if err != nil {
			return nil, err
		}
		el, err := sub(x.Else)
		if err != nil {
			return nil, err
		}
		return lir.IfExpr{Cond: macroCond(c), Then: th, Else: el}, nil
	case cabs.Call:
		return t.macroCall(x, env, known)
	case cabs.Member:
		return t.macroMember(x, env, known)
	case cabs.Index:
		a, err := sub(x.Array)
		if err != nil {
			return nil, err
		}
		i, err := sub(x.Index)
		if err != nil {
			return nil, err
		}
		return lir.Index{X: a, I: i}, nil
	case cabs.Cast:
		v, err := sub(x.Expr)
		if err != nil {
			return nil, err
		}
		return lir.Call{Fn: helper("cast"), Args: []lir.Expr{lir.TypeExpr{T: t.zigType(x.Typ)}, v}}, nil
	case cabs.SizeofExpr:
		v, err := sub(x.Expr)
		if err != nil {
			return nil, err
		}
		return lir.Call{Fn: helper("sizeof"), Args: []lir.Expr{v}}, nil
	case cabs.SizeofType:
		return lir.Builtin{Name: "sizeOf", Args: []lir.Expr{lir.TypeExpr{T: t.zigType(x.Of)}}}, nil
	case cabs.AlignofType:
		return lir.Builtin{Name: "alignOf", Args: []lir.Expr{lir.TypeExpr{T: t.zigType(x.Of)}}}, nil
	}
	return nil, unsupported("unable to translate C expr: unsupported %T in macro", e)
}

// macroInt types an integer literal by its suffix alone. Values beyond
// the width every target guarantees for that type are promoted by the
// runtime helper, as C would.
func (t *translator) macroInt(c cabs.Constant) lir.Expr {
	suffix := strings.ToLower(c.Suffix)
	unsigned := strings.Contains(suffix, "u")
	k := ctypes.Int
	switch strings.Count(suffix, "l") {
	case 0:
		if unsigned {
			k = ctypes.UInt
		}
	case 1:
		k = ctypes.Long
		if unsigned {
			k = ctypes.ULong
		}
	default:
		k = ctypes.LongLong
		if unsigned {
			k = ctypes.ULongLong
		}
	}
	lit := lir.Int(intText(c))
	if ctypes.GuaranteedFit(c.Value, k) {
		return lir.As{T: intType(k), X: lit}
	}
	radix := ".decimal"
	switch c.Radix {
	case 16:
		radix = ".hex"
	case 8:
		radix = ".octal"
	case 2:
		radix = ".binary"
	}
	promote := lir.Member{X: stdPath("zig", "c_translation"), Name: "promoteIntLiteral"}
	return lir.Call{Fn: promote, Args: []lir.Expr{lir.TypeExpr{T: intType(k)}, lit, lir.Id(radix)}}
}

// macroName resolves an identifier of a macro body.
func (t *translator) macroName(name string, env *macroEnv, known map[string]MacroKind) (lir.Expr, error) {
	if zn, ok := env.params[name]; ok {
		return lir.Id(zn), nil
	}
	if k, ok := known[name]; ok && k != MacroSkipped {
		if k == MacroAccessor {
			return lir.Call{Fn: lir.Id(escape(name))}, nil
		}
		return lir.Id(escape(name)), nil
	}
	if b, ok := t.lookup(name); ok {
		if b.kind == bindTypedef {
			return lir.TypeExpr{T: lir.Named(b.name)}, nil
		}
		return b.ref(), nil
	}
	if strings.HasPrefix(name, "__builtin_") {
		return lir.Member{X: lir.Id("__builtins"), Name: name}, nil
	}
	return nil, unsupported("unable to translate macro: undefined identifier '%s'", name)
}

func (t *translator) macroBinary(x cabs.Binary, sub func(cabs.Expr) (lir.Expr, error)) (lir.Expr, error) {
	l, err := sub(x.Left)
	if err != nil {
		return nil, err
	}
	r, err := sub(x.Right)
	if err != nil {
		return nil, err
	}
	switch x.Op {
	case cabs.OpDiv:
		return lir.Call{Fn: helper("div"), Args: []lir.Expr{l, r}}, nil
	case cabs.OpMod:
		return lir.Call{Fn: helper("rem"), Args: []lir.Expr{l, r}}, nil
	case cabs.OpAnd:
		return lir.Binary{Op: "and", L: macroCond(l), R: macroCond(r)}, nil
	case cabs.OpOr:
		return lir.Binary{Op: "or", L: macroCond(l), R: macroCond(r)}, nil
	case cabs.OpAdd, cabs.OpSub, cabs.OpMul, cabs.OpBitAnd, cabs.OpBitOr, cabs.OpBitXor, cabs.OpShl, cabs.OpShr,
		cabs.OpLt, cabs.OpLe, cabs.OpGt, cabs.OpGe, cabs.OpEq, cabs.OpNe:
		return lir.Binary{Op: x.Op.String(), L: l, R: r}, nil
	}
	return nil, unsupported("unable to translate C expr: unexpected token '%s'", x.Op)
}

// macroCall lowers a call. A parenthesized parameter in callee position
// may be a type, and is resolved by __helpers.CAST_OR_CALL.
func (t *translator) macroCall(x cabs.Call, env *macroEnv, known map[string]MacroKind) (lir.Expr, error) {
	var args []lir.Expr
	for _, a := range x.Args {
		v, err := t.macroExpr(a, env, known)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}
	if p, ok := x.Func.(cabs.Paren); ok {
		if v, ok := stripParens(p.Expr).(cabs.Variable); ok {
			if zn, isParam := env.params[v.Name]; isParam {
				return lir.Call{Fn: helper("CAST_OR_CALL"), Args: append([]lir.Expr{lir.Id(zn)}, args...)}, nil
			}
		}
	}
	fn, err := t.macroExpr(x.Func, env, known)
	if err != nil {
		return nil, err
	}
	if ctypes.IsFunctionPointer(pathType(stripParens(x.Func), t.sema)) {
		fn = lir.Unwrap{X: fn}
	}
	return lir.Call{Fn: fn, Args: args}, nil
}

func (t *translator) macroMember(x cabs.Member, env *macroEnv, known map[string]MacroKind) (lir.Expr, error) {
	obj, err := t.macroExpr(x.Expr, env, known)
	if err != nil {
		return nil, err
	}
	base := pathType(stripParens(x.Expr), t.sema)
	if x.Arrow {
		obj = lir.Deref{X: obj}
		if base != nil {
			base = ctypes.Pointee(base)
		}
	}
	if r := ctypes.RecordOf(base); r != nil && r.Complete {
		if path, f, ok := ctypes.FindField(r, x.Name); ok {
			return t.fieldAccess(obj, r, path, f.Type).x, nil
		}
	}
	return lir.Member{X: obj, Name: escape(x.Name)}, nil
}

// isBoolExpr reports whether x already has type bool.
func isBoolExpr(x lir.Expr) bool {
	switch v := x.(type) {
	case lir.Binary:
		switch v.Op {
		case "==", "!=", "<", "<=", ">", ">=", "and", "or":
			return true
		}
	case lir.Unary:
		return v.Op == "!"
	}
	return false
}

func macroCond(x lir.Expr) lir.Expr {
	if isBoolExpr(x) {
		return x
	}
	return lir.Truthy{X: x}
}
