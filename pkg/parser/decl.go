package parser

import (
	"fmt"

	"github.com/raymyers/ralph-translate-c/pkg/cabs"
	"github.com/raymyers/ralph-translate-c/pkg/ctyper"
	"github.com/raymyers/ralph-translate-c/pkg/ctypes"
	"github.com/raymyers/ralph-translate-c/pkg/lexer"
)

// attrs collects GNU attributes
type attrs struct {
	aligned    int64
	packed     bool
	section    string
	vectorSize int64
	vectorLen  int64
	callConv   string
	noreturn   bool
}

func (a *attrs) merge(b attrs) {
	if b.aligned > a.aligned {
		a.aligned = b.aligned
	}
	a.packed = a.packed || b.packed
	a.noreturn = a.noreturn || b.noreturn
	if b.section != "" {
		a.section = b.section
	}
	if b.vectorSize != 0 {
		a.vectorSize = b.vectorSize
	}
	if b.vectorLen != 0 {
		a.vectorLen = b.vectorLen
	}
	if b.callConv != "" {
		a.callConv = b.callConv
	}
}

// declSpec holds parsed declaration specifiers
type declSpec struct {
	storage     cabs.Storage
	typedef     bool
	inline      bool
	threadLocal bool
	typ         ctypes.Type
	attrs       attrs
}

// declarator is a parsed declarator: the declared name and a function
// building the declared type from the specifier type
type declarator struct {
	name   string
	pos    cabs.Pos
	wrap   func(ctypes.Type) ctypes.Type
	params []string // parameter names of the function declarator applied to name
	funcs  bool
	attrs  attrs
}

func (p *Parser) isTypeSpecifier() bool {
	switch p.curToken.Type {
	case lexer.TokenInt_, lexer.TokenVoid, lexer.TokenChar, lexer.TokenShort, lexer.TokenLong,
		lexer.TokenFloat, lexer.TokenDouble, lexer.TokenSigned, lexer.TokenUnsigned, lexer.TokenBool,
		lexer.TokenInt128, lexer.TokenFloat16, lexer.TokenFloat128,
		lexer.TokenStruct, lexer.TokenUnion, lexer.TokenEnum, lexer.TokenTypeof:
		return true
	case lexer.TokenIdent:
		// Check if it's a typedef name
		return p.sema.IsTypedef(p.curToken.Literal)
	}
	return false
}

func (p *Parser) isQualifier() bool {
	switch p.curToken.Type {
	case lexer.TokenConst, lexer.TokenVolatile, lexer.TokenRestrict, lexer.TokenAtomic:
		return true
	}
	return false
}

// startsDeclaration reports whether the current token begins a declaration.
func (p *Parser) startsDeclaration() bool {
	switch p.curToken.Type {
	case lexer.TokenTypedef, lexer.TokenStatic, lexer.TokenExtern, lexer.TokenAuto, lexer.TokenRegister,
		lexer.TokenInline, lexer.TokenThread, lexer.TokenNoreturn, lexer.TokenAttribute, lexer.TokenStaticAssert:
		return true
	case lexer.TokenIdent:
		return p.isTypeSpecifier() && !p.peekTokenIs(lexer.TokenColon)
	case lexer.TokenExtension:
		return true
	}
	return p.isTypeSpecifier() || p.isQualifier()
}

func (p *Parser) startsTypeName() bool {
	return p.isTypeSpecifier() || p.isQualifier() || p.curTokenIs(lexer.TokenAttribute)
}

// parseDeclSpecs parses declaration specifiers.
func (p *Parser) parseDeclSpecs() declSpec {
	var spec declSpec
	var quals ctypes.Quals
	var (
		void, boolean, char, short, float, double bool
		int128, float16, float128, signed, unsigned bool
		longs                                       int
		named                                       ctypes.Type
		tagged                                      ctypes.Type
		seen, consumed                              bool
	)
	for {
		switch p.curToken.Type {
		case lexer.TokenTypedef:
			spec.typedef = true
		case lexer.TokenStatic:
			spec.storage = cabs.StorageStatic
		case lexer.TokenExtern:
			spec.storage = cabs.StorageExtern
		case lexer.TokenAuto, lexer.TokenRegister, lexer.TokenExtension:
		case lexer.TokenInline:
			spec.inline = true
		case lexer.TokenNoreturn:
			spec.attrs.noreturn = true
		case lexer.TokenThread:
			spec.threadLocal = true
		case lexer.TokenConst:
			quals |= ctypes.Const
		case lexer.TokenVolatile:
			quals |= ctypes.Volatile
		case lexer.TokenRestrict:
			quals |= ctypes.Restrict
		case lexer.TokenAtomic:
			if p.peekTokenIs(lexer.TokenLParen) {
				p.nextToken()
				p.nextToken()
				inner := p.parseTypeName()
				if !p.curTokenIs(lexer.TokenRParen) {
					p.addError(fmt.Sprintf("expected ), got %s", p.curToken.Type))
				}
				tagged = ctypes.WithQuals(inner, ctypes.QualsOf(inner)|ctypes.Atomic)
				seen = true
			} else {
				quals |= ctypes.Atomic
			}
		case lexer.TokenAttribute:
			spec.attrs.merge(p.parseAttributes())
			continue
		case lexer.TokenVoid:
			void, seen = true, true
		case lexer.TokenBool:
			boolean, seen = true, true
		case lexer.TokenChar:
			char, seen = true, true
		case lexer.TokenShort:
			short, seen = true, true
		case lexer.TokenInt_:
			seen = true
		case lexer.TokenLong:
			longs++
			seen = true
		case lexer.TokenFloat:
			float, seen = true, true
		case lexer.TokenDouble:
			double, seen = true, true
		case lexer.TokenSigned:
			signed, seen = true, true
		case lexer.TokenUnsigned:
			unsigned, seen = true, true
		case lexer.TokenInt128:
			int128, seen = true, true
		case lexer.TokenFloat16:
			float16, seen = true, true
		case lexer.TokenFloat128:
			float128, seen = true, true
		case lexer.TokenStruct, lexer.TokenUnion:
			tagged = p.parseRecordSpec()
			seen = true
			continue
		case lexer.TokenEnum:
			tagged = p.parseEnumSpec()
			seen = true
			continue
		case lexer.TokenTypeof:
			tagged = p.parseTypeof()
			seen = true
			continue
		case lexer.TokenIdent:
			if seen || !p.sema.IsTypedef(p.curToken.Literal) {
				goto done
			}
			named, _ = p.sema.Typedef(p.curToken.Literal)
			seen = true
		default:
			goto done
		}
		consumed = true
		p.nextToken()
	}
done:

	var base ctypes.Type
	switch {
	case tagged != nil:
		base = tagged
	case named != nil:
		base = named
	case void:
		base = ctypes.Void()
	case boolean:
		base = ctypes.BoolType()
	case float16:
		base = ctypes.Tfloat{Kind: ctypes.Float16}
	case float128:
		base = ctypes.Tfloat{Kind: ctypes.Float128}
	case float:
		base = ctypes.FloatType()
	case double && longs > 0:
		base = ctypes.Tfloat{Kind: ctypes.LongDouble}
	case double:
		base = ctypes.DoubleType()
	case char:
		kind := ctypes.Char
		if signed {
			kind = ctypes.SChar
		} else if unsigned {
			kind = ctypes.UChar
		}
		base = ctypes.Tint{Kind: kind}
	default:
		kind := ctypes.Int
		switch {
		case int128:
			kind = ctypes.Int128
		case short:
			kind = ctypes.Short
		case longs >= 2:
			kind = ctypes.LongLong
		case longs == 1:
			kind = ctypes.Long
		}
		if unsigned {
			kind = ctypes.ToUnsigned(kind)
		}
		base = ctypes.Tint{Kind: kind}
		if !seen && !consumed {
			p.addError(fmt.Sprintf("expected type specifier, got %s", p.curToken.Type))
		}
	}
	if quals != 0 {
		base = ctypes.WithQuals(base, ctypes.QualsOf(base)|quals)
	}
	spec.typ = base
	return spec
}

// parseAttributes parses one or more __attribute__((...)) lists.
func (p *Parser) parseAttributes() attrs {
	var a attrs
	for p.curTokenIs(lexer.TokenAttribute) {
		p.nextToken()
		if !p.expect(lexer.TokenLParen) || !p.expect(lexer.TokenLParen) {
			return a
		}
		for !p.curTokenIs(lexer.TokenRParen) && !p.AtEOF() {
			if p.curTokenIs(lexer.TokenComma) {
				p.nextToken()
				continue
			}
			name := trimUnderscores(p.curToken.Literal)
			p.nextToken()
			var args []cabs.Expr
			if p.curTokenIs(lexer.TokenLParen) {
				p.nextToken()
				for !p.curTokenIs(lexer.TokenRParen) && !p.AtEOF() {
					args = append(args, p.typeExprAlways(p.parseAssignment()))
					if p.curTokenIs(lexer.TokenComma) {
						p.nextToken()
					}
				}
				p.expect(lexer.TokenRParen)
			}
			p.applyAttribute(&a, name, args)
		}
		p.expect(lexer.TokenRParen)
		p.expect(lexer.TokenRParen)
	}
	return a
}

// handledAttributes are the attributes applyAttribute acts on.
var handledAttributes = map[string]bool{
	"aligned": true, "packed": true, "section": true, "vector_size": true, "ext_vector_type": true,
	"noreturn": true, "stdcall": true, "fastcall": true, "vectorcall": true, "thiscall": true,
	"regcall": true, "ms_abi": true, "sysv_abi": true, "aarch64_vector_pcs": true, "pcs": true,
}

// SupportsAttribute reports whether the attribute name, with or without
// its surrounding underscores, changes the translation.
func SupportsAttribute(name string) bool {
	return handledAttributes[trimUnderscores(name)]
}

func trimUnderscores(s string) string {
	if len(s) > 4 && s[:2] == "__" && s[len(s)-2:] == "__" {
		return s[2 : len(s)-2]
	}
	return s
}

func (p *Parser) constArg(args []cabs.Expr, i int) (int64, bool) {
	if i >= len(args) {
		return 0, false
	}
	return p.sema.ConstInt(args[i])
}

func (p *Parser) applyAttribute(a *attrs, name string, args []cabs.Expr) {
	switch name {
	case "aligned":
		if v, ok := p.constArg(args, 0); ok {
			a.aligned = v
		} else {
			a.aligned = 16
			if p.sema.Model.Target.PointerBits < 64 {
				a.aligned = int64(p.sema.Model.Target.MaxAlign)
			}
		}
	case "packed":
		a.packed = true
	case "section":
		if len(args) > 0 {
			if s, ok := cabs.Unparen(args[0]).(cabs.StringLiteral); ok {
				a.section = s.Value
			}
		}
	case "vector_size":
		a.vectorSize, _ = p.constArg(args, 0)
	case "ext_vector_type":
		a.vectorLen, _ = p.constArg(args, 0)
	case "noreturn":
		a.noreturn = true
	case "stdcall", "fastcall", "vectorcall", "thiscall", "regcall", "ms_abi", "sysv_abi", "aarch64_vector_pcs":
		a.callConv = name
	case "pcs":
		if len(args) > 0 {
			if s, ok := cabs.Unparen(args[0]).(cabs.StringLiteral); ok {
				a.callConv = s.Value
			}
		}
	}
}

// applyTypeAttrs applies vector and calling-convention attributes to a
// declared type.
func (p *Parser) applyTypeAttrs(t ctypes.Type, a attrs) ctypes.Type {
	if a.vectorSize > 0 || a.vectorLen > 0 {
		n := a.vectorLen
		if n == 0 {
			size := p.sema.Model.Sizeof(t)
			if size <= 0 {
				p.addError(fmt.Sprintf("invalid vector element type '%s'", t))
				return t
			}
			n = a.vectorSize / size
		}
		t = ctypes.Tvector{Elem: t, Len: n}
	}
	if a.callConv != "" || a.noreturn {
		switch ty := t.(type) {
		case ctypes.Tfunction:
			if a.callConv != "" {
				ty.CallConv = a.callConv
			}
			ty.NoReturn = ty.NoReturn || a.noreturn
			return ty
		case ctypes.Tpointer:
			if fn, ok := ty.Elem.(ctypes.Tfunction); ok && a.callConv != "" {
				fn.CallConv = a.callConv
				ty.Elem = fn
				return ty
			}
		}
	}
	return t
}

// parseTypeof parses typeof(type-name) or typeof(expression).
func (p *Parser) parseTypeof() ctypes.Type {
	if !p.peekTokenIs(lexer.TokenLParen) {
		p.nextToken()
		p.addError(fmt.Sprintf("expected ( after typeof, got %s", p.curToken.Type))
		return ctypes.IntType()
	}
	p.nextToken()
	var t ctypes.Type
	if p.typeNameFollows() {
		p.nextToken()
		t = p.parseTypeName()
	} else {
		p.nextToken()
		t = p.typeExprAlways(p.parseExpression()).Type()
	}
	p.expect(lexer.TokenRParen)
	if t == nil {
		return ctypes.IntType()
	}
	return t
}

// parseRecordSpec parses a struct or union specifier.
func (p *Parser) parseRecordSpec() ctypes.Type {
	kind := ctypes.Struct
	if p.curTokenIs(lexer.TokenUnion) {
		kind = ctypes.Union
	}
	pos := p.position()
	p.nextToken()
	a := p.parseAttributes()
	tag := ""
	if p.curTokenIs(lexer.TokenIdent) {
		tag = p.curToken.Literal
		p.nextToken()
	}
	a.merge(p.parseAttributes())

	if !p.curTokenIs(lexer.TokenLBrace) {
		if tag == "" {
			p.addError("declaration of anonymous struct must be a definition")
			return ctypes.Trecord{Rec: p.sema.DeclareRecord(kind, "")}
		}
		if p.curTokenIs(lexer.TokenSemicolon) {
			// forward declaration: struct S;
			r, ok := p.sema.RecordInScope(tag)
			if !ok {
				r = p.sema.DeclareRecord(kind, tag)
			}
			p.pending = append(p.pending, cabs.RecordDef{Rec: r, Pos: pos})
			return ctypes.Trecord{Rec: r}
		}
		r, ok := p.sema.LookupRecord(tag)
		if !ok {
			r = p.sema.DeclareRecord(kind, tag)
		}
		return ctypes.Trecord{Rec: r}
	}

	var r *ctypes.Record
	if tag != "" {
		if prev, ok := p.sema.RecordInScope(tag); ok && !prev.Complete {
			r = prev
		} else if ok {
			p.addError(fmt.Sprintf("redefinition of '%s %s'", kind, tag))
		}
	}
	if r == nil {
		r = p.sema.DeclareRecord(kind, tag)
	}
	p.nextToken() // consume '{'
	mark := len(p.pending)
	r.Fields = p.parseFields()
	for i := mark; i < len(p.pending); i++ {
		if rd, ok := p.pending[i].(cabs.RecordDef); ok {
			rd.Nested = true
			p.pending[i] = rd
		}
	}
	p.expect(lexer.TokenRBrace)
	a.merge(p.parseAttributes())
	r.Packed = a.packed
	r.Aligned = a.aligned
	r.Complete = true
	p.pending = append(p.pending, cabs.RecordDef{Rec: r, Pos: pos})
	return ctypes.Trecord{Rec: r}
}

func (p *Parser) parseFields() []ctypes.Field {
	var fields []ctypes.Field
	for !p.curTokenIs(lexer.TokenRBrace) && !p.AtEOF() {
		if p.curTokenIs(lexer.TokenSemicolon) {
			p.nextToken()
			continue
		}
		if p.curTokenIs(lexer.TokenStaticAssert) {
			p.parseStaticAssert()
			continue
		}
		start := p.pos
		spec := p.parseDeclSpecs()
		if p.curTokenIs(lexer.TokenSemicolon) {
			// anonymous struct/union member; a tagged one only declares
			// the tag, except under the Microsoft rules
			if ctypes.IsRecord(spec.typ) && (recordTag(spec.typ) == "" || p.sema.Model.Target.MSVCRecords()) {
				fields = append(fields, ctypes.Field{Type: spec.typ, Aligned: spec.attrs.aligned})
			}
			p.nextToken()
			continue
		}
		for {
			f := ctypes.Field{Type: spec.typ}
			if !p.curTokenIs(lexer.TokenColon) {
				d := p.parseDeclarator(false)
				d.attrs.merge(p.parseAttributes())
				f.Name = d.name
				f.Type = p.applyTypeAttrs(d.wrap(spec.typ), d.attrs)
				f.Aligned = d.attrs.aligned
				if d.attrs.packed {
					f.Aligned = 0
				}
			}
			if spec.attrs.aligned > f.Aligned {
				f.Aligned = spec.attrs.aligned
			}
			if p.curTokenIs(lexer.TokenColon) {
				p.nextToken()
				width, ok := p.sema.ConstInt(p.typeExprAlways(p.parseConditional()))
				if !ok {
					p.addError("bit-field width is not an integer constant expression")
				}
				f.BitField, f.BitWidth = true, int(width)
				p.parseAttributes()
			}
			fields = append(fields, f)
			if !p.curTokenIs(lexer.TokenComma) {
				break
			}
			p.nextToken()
		}
		// the last member may omit its semicolon, as GCC and Clang allow
		if !p.curTokenIs(lexer.TokenRBrace) {
			p.expect(lexer.TokenSemicolon)
		}
		if p.pos == start {
			p.nextToken()
		}
	}
	return fields
}

func recordTag(t ctypes.Type) string {
	if r, ok := ctypes.Canonical(t).(ctypes.Trecord); ok {
		return r.Rec.Tag
	}
	return ""
}

// parseEnumSpec parses an enum specifier.
func (p *Parser) parseEnumSpec() ctypes.Type {
	pos := p.position()
	p.nextToken()
	p.parseAttributes()
	tag := ""
	if p.curTokenIs(lexer.TokenIdent) {
		tag = p.curToken.Literal
		p.nextToken()
	}
	var fixed *ctypes.IntKind
	if p.curTokenIs(lexer.TokenColon) {
		p.nextToken()
		ft := p.parseTypeName()
		if k, ok := p.sema.Model.IntKindOf(ft); ok {
			fixed = &k
		} else {
			p.addError(fmt.Sprintf("invalid underlying type '%s'", ft))
		}
	}
	if !p.curTokenIs(lexer.TokenLBrace) {
		if tag == "" {
			p.addError("expected identifier or '{'")
			return ctypes.IntType()
		}
		e, ok := p.sema.LookupEnum(tag)
		if !ok {
			e = p.sema.DeclareEnum(tag)
			e.Fixed = fixed
		}
		return ctypes.Tenum{Enum: e}
	}
	var e *ctypes.Enum
	if tag != "" {
		if prev, ok := p.sema.EnumInScope(tag); ok && !prev.Complete {
			e = prev
		}
	}
	if e == nil {
		e = p.sema.DeclareEnum(tag)
	}
	e.Fixed = fixed
	p.nextToken() // consume '{'
	var values []cabs.Expr
	next := int64(0)
	for !p.curTokenIs(lexer.TokenRBrace) && !p.AtEOF() {
		if !p.curTokenIs(lexer.TokenIdent) {
			p.addError(fmt.Sprintf("expected identifier, got %s", p.curToken.Type))
			p.nextToken()
			continue
		}
		name := p.curToken.Literal
		p.nextToken()
		p.parseAttributes()
		var value cabs.Expr
		if p.curTokenIs(lexer.TokenAssign) {
			p.nextToken()
			value = p.typeExprAlways(p.parseConditional())
			v, ok := p.sema.ConstInt(value)
			if !ok {
				p.addError(fmt.Sprintf("expression is not an integer constant expression in enumerator '%s'", name))
			}
			next = v
		}
		e.Consts = append(e.Consts, ctypes.EnumConst{Name: name, Value: next})
		values = append(values, value)
		kind := ctypes.Int
		if fixed != nil {
			kind = *fixed
		} else if !p.sema.Model.FitsInt(next, ctypes.Int) {
			kind = ctypes.Long
			if !p.sema.Model.FitsInt(next, kind) {
				kind = ctypes.LongLong
			}
		}
		p.sema.Declare(ctyper.Symbol{Name: name, Kind: ctyper.SymEnumConst, Type: ctypes.Tint{Kind: kind}, Value: next, Enum: e})
		next++
		if !p.curTokenIs(lexer.TokenComma) {
			break
		}
		p.nextToken()
	}
	p.expect(lexer.TokenRBrace)
	p.parseAttributes()
	e.Complete = true
	p.sema.FinishEnum(e)
	p.pending = append(p.pending, cabs.EnumDef{Enum: e, Values: values, Pos: pos})
	return ctypes.Tenum{Enum: e}
}

// parseDeclarator parses a (possibly abstract) declarator.
func (p *Parser) parseDeclarator(abstract bool) *declarator {
	d := &declarator{}
	var ptrQuals []ctypes.Quals
	for p.curTokenIs(lexer.TokenStar) {
		p.nextToken()
		var q ctypes.Quals
		for {
			switch {
			case p.curTokenIs(lexer.TokenConst):
				q |= ctypes.Const
			case p.curTokenIs(lexer.TokenVolatile):
				q |= ctypes.Volatile
			case p.curTokenIs(lexer.TokenRestrict):
				q |= ctypes.Restrict
			case p.curTokenIs(lexer.TokenAtomic):
				q |= ctypes.Atomic
			case p.curTokenIs(lexer.TokenAttribute):
				d.attrs.merge(p.parseAttributes())
				continue
			default:
				goto quals
			}
			p.nextToken()
		}
	quals:
		ptrQuals = append(ptrQuals, q)
	}
	d.attrs.merge(p.parseAttributes())

	var inner *declarator
	switch {
	case p.curTokenIs(lexer.TokenLParen) && p.nestedDeclarator():
		p.nextToken()
		inner = p.parseDeclarator(abstract)
		p.expect(lexer.TokenRParen)
		d.name, d.pos = inner.name, inner.pos
	case p.curTokenIs(lexer.TokenIdent) && !abstract:
		d.name, d.pos = p.curToken.Literal, p.position()
		p.nextToken()
	case p.curTokenIs(lexer.TokenIdent) && abstract && !p.sema.IsTypedef(p.curToken.Literal):
		// named parameter in a prototype
		d.name, d.pos = p.curToken.Literal, p.position()
		p.nextToken()
	case !abstract:
		p.addError(fmt.Sprintf("expected identifier or '(', got %s", p.curToken.Type))
	}

	var suffixes []func(ctypes.Type) ctypes.Type
	for {
		if p.curTokenIs(lexer.TokenLBracket) {
			size := p.parseArraySize()
			suffixes = append(suffixes, func(t ctypes.Type) ctypes.Type { return ctypes.Tarray{Elem: t, Size: size} })
			continue
		}
		if p.curTokenIs(lexer.TokenLParen) {
			fn, names := p.parseParams()
			if !d.funcs && (inner == nil || !inner.funcs) {
				d.params, d.funcs = names, true
			}
			suffixes = append(suffixes, func(t ctypes.Type) ctypes.Type {
				f := fn
				f.Return = t
				return f
			})
			continue
		}
		break
	}
	if inner != nil && inner.funcs {
		d.params, d.funcs = inner.params, true
	}

	d.wrap = func(t ctypes.Type) ctypes.Type {
		for _, q := range ptrQuals {
			t = ctypes.Tpointer{Elem: t, Q: q}
		}
		for i := len(suffixes) - 1; i >= 0; i-- {
			t = suffixes[i](t)
		}
		if inner != nil {
			t = inner.wrap(t)
		}
		return t
	}
	if inner != nil {
		d.attrs.merge(inner.attrs)
	}
	return d
}

// nestedDeclarator decides whether a '(' opens a nested declarator rather
// than a parameter list.
func (p *Parser) nestedDeclarator() bool {
	next := p.peekToken
	switch next.Type {
	case lexer.TokenStar, lexer.TokenLParen, lexer.TokenLBracket, lexer.TokenAttribute:
		return next.Type != lexer.TokenLBracket
	case lexer.TokenIdent:
		return !p.sema.IsTypedef(next.Literal)
	}
	return false
}

func (p *Parser) parseArraySize() int64 {
	p.nextToken() // consume '['
	for p.curTokenIs(lexer.TokenStatic) || p.isQualifier() {
		p.nextToken()
	}
	if p.curTokenIs(lexer.TokenRBracket) {
		p.nextToken()
		return -1
	}
	if p.curTokenIs(lexer.TokenStar) && p.peekTokenIs(lexer.TokenRBracket) {
		p.nextToken()
		p.nextToken()
		p.addError("variable length arrays are not supported")
		return -1
	}
	size := p.typeExprAlways(p.parseAssignment())
	p.expect(lexer.TokenRBracket)
	v, ok := p.sema.ConstInt(size)
	if !ok {
		p.addError("variable length arrays are not supported")
		return -1
	}
	if v < 0 {
		p.addError("array has negative size")
		return -1
	}
	return v
}

// parseParams parses a parameter list and returns the function type
// (without return type) and the parameter names.
func (p *Parser) parseParams() (ctypes.Tfunction, []string) {
	p.nextToken() // consume '('
	fn := ctypes.Tfunction{Params: []ctypes.Type{}}
	names := []string{}
	if p.curTokenIs(lexer.TokenRParen) {
		p.nextToken()
		fn.NoProto = true
		return fn, names
	}
	if p.curTokenIs(lexer.TokenVoid) && p.peekTokenIs(lexer.TokenRParen) {
		p.nextToken()
		p.nextToken()
		return fn, names
	}
	p.sema.PushScope()
	defer p.sema.PopScope()
	saved := p.pending
	for !p.curTokenIs(lexer.TokenRParen) && !p.AtEOF() {
		if p.curTokenIs(lexer.TokenEllipsis) {
			fn.VarArg = true
			p.nextToken()
			break
		}
		start := p.pos
		spec := p.parseDeclSpecs()
		d := p.parseDeclarator(true)
		d.attrs.merge(p.parseAttributes())
		pt := p.applyTypeAttrs(d.wrap(spec.typ), d.attrs)
		pt = adjustParam(pt)
		fn.Params = append(fn.Params, pt)
		names = append(names, d.name)
		if d.name != "" {
			p.sema.Declare(ctyper.Symbol{Name: d.name, Kind: ctyper.SymVar, Type: pt})
		}
		if !p.curTokenIs(lexer.TokenComma) {
			break
		}
		p.nextToken()
		if p.pos == start {
			p.nextToken()
		}
	}
	// tags declared in a prototype are not visible outside it
	p.pending = saved
	fn.Names = names
	p.expect(lexer.TokenRParen)
	return fn, names
}

// adjustParam applies the array-to-pointer and function-to-pointer
// adjustments of parameter types.
func adjustParam(t ctypes.Type) ctypes.Type {
	switch ty := t.(type) {
	case ctypes.Tarray:
		return ctypes.Tpointer{Elem: ty.Elem}
	case ctypes.Tfunction:
		return ctypes.Tpointer{Elem: ty}
	}
	return t
}

// parseTypeName parses specifiers and an abstract declarator.
func (p *Parser) parseTypeName() ctypes.Type {
	spec := p.parseDeclSpecs()
	d := p.parseDeclarator(true)
	d.attrs.merge(p.parseAttributes())
	return p.applyTypeAttrs(d.wrap(spec.typ), d.attrs)
}

// takePending returns and clears the record/enum definitions collected
// while parsing specifiers.
func (p *Parser) takePending() []cabs.Definition {
	defs := p.pending
	p.pending = nil
	return defs
}

// parseDeclaration parses a declaration at file or block scope.
func (p *Parser) parseDeclaration(fileScope bool) []cabs.Definition {
	if p.curTokenIs(lexer.TokenStaticAssert) {
		return []cabs.Definition{p.parseStaticAssert()}
	}
	if p.curTokenIs(lexer.TokenSemicolon) {
		p.nextToken()
		return nil
	}
	pos := p.position()
	spec := p.parseDeclSpecs()
	if p.curTokenIs(lexer.TokenSemicolon) {
		p.nextToken()
		return p.takePending()
	}
	defs := p.takePending()
	for {
		d := p.parseDeclarator(false)
		d.attrs.merge(p.parseAttributes())
		p.skipAsmLabel()
		d.attrs.merge(p.parseAttributes())
		a := spec.attrs
		a.merge(d.attrs)
		typ := p.applyTypeAttrs(d.wrap(spec.typ), a)
		if d.pos.Line != 0 {
			pos = d.pos
		}

		switch {
		case spec.typedef:
			p.sema.Declare(ctyper.Symbol{Name: d.name, Kind: ctyper.SymTypedef, Type: typ})
			defs = append(defs, cabs.TypedefDef{Name: d.name, Typ: typ, Pos: pos})
		case ctypes.IsFunction(typ) && !isNamedFunction(typ):
			fn := typ.(ctypes.Tfunction)
			p.sema.Declare(ctyper.Symbol{Name: d.name, Kind: ctyper.SymFunc, Type: fn})
			def := cabs.FunDef{
				Name: d.name, Typ: fn, Params: d.params, Storage: spec.storage, Inline: spec.inline,
				Attrs: cabs.Attrs{Section: a.section, Aligned: a.aligned}, Pos: pos,
			}
			if p.curTokenIs(lexer.TokenLBrace) {
				if !fileScope {
					p.addError("function definition is not allowed here")
				}
				def.Body = p.parseFunctionBody(d.name, fn, d.params)
				defs = append(defs, def)
				return defs
			}
			defs = append(defs, def)
		default:
			if ctypes.IsFunction(typ) {
				// declared through a function typedef
				fn, _ := ctypes.FunctionOf(typ)
				p.sema.Declare(ctyper.Symbol{Name: d.name, Kind: ctyper.SymFunc, Type: typ})
				defs = append(defs, cabs.FunDef{Name: d.name, Typ: fn, Storage: spec.storage, Pos: pos})
				break
			}
			p.sema.Declare(ctyper.Symbol{Name: d.name, Kind: ctyper.SymVar, Type: typ})
			v := cabs.VarDef{
				Name: d.name, Typ: typ, Storage: spec.storage, ThreadLocal: spec.threadLocal,
				Attrs: cabs.Attrs{Section: a.section, Aligned: a.aligned, Packed: a.packed}, Pos: pos,
			}
			if p.curTokenIs(lexer.TokenAssign) {
				p.nextToken()
				v.Init = p.parseDeclInit(typ)
				v.Typ = ctyper.CompleteArray(typ, v.Init)
				p.sema.Declare(ctyper.Symbol{Name: d.name, Kind: ctyper.SymVar, Type: v.Typ})
			}
			defs = append(defs, p.takePending()...)
			defs = append(defs, v)
		}
		if !p.curTokenIs(lexer.TokenComma) {
			break
		}
		p.nextToken()
	}
	p.expect(lexer.TokenSemicolon)
	return defs
}

// isNamedFunction reports whether a function type reached the declarator
// through a typedef name.
func isNamedFunction(t ctypes.Type) bool {
	_, ok := t.(ctypes.Tnamed)
	return ok
}

func (p *Parser) skipAsmLabel() {
	if p.curTokenIs(lexer.TokenIdent) && (p.curToken.Literal == "__asm__" || p.curToken.Literal == "__asm" || p.curToken.Literal == "asm") {
		p.nextToken()
		p.expect(lexer.TokenLParen)
		for !p.curTokenIs(lexer.TokenRParen) && !p.AtEOF() {
			p.nextToken()
		}
		p.expect(lexer.TokenRParen)
	}
}

// parseDeclInit parses and types the initializer of an object of type typ.
func (p *Parser) parseDeclInit(typ ctypes.Type) cabs.Expr {
	init := p.parseInitializer()
	list, ok := init.(*cabs.InitList)
	if !ok {
		return p.typeExpr(init)
	}
	if !p.typed {
		return list
	}
	switch ctypes.Canonical(typ).(type) {
	case ctypes.Tarray, ctypes.Trecord, ctypes.Tvector:
		typedList, err := p.sema.Init(list, typ)
		if err != nil {
			p.addError(err.Error())
			return list
		}
		return typedList
	}
	// scalar with braces
	if len(list.Items) == 0 {
		return &cabs.InitList{Typ: typ}
	}
	return p.typeExpr(unbrace(list.Items[0].Value))
}

func unbrace(e cabs.Expr) cabs.Expr {
	for {
		list, ok := e.(*cabs.InitList)
		if !ok || len(list.Items) == 0 {
			return e
		}
		e = list.Items[0].Value
	}
}

// parseInitializer parses an assignment expression or a brace list.
func (p *Parser) parseInitializer() cabs.Expr {
	if !p.curTokenIs(lexer.TokenLBrace) {
		return p.parseAssignment()
	}
	p.nextToken() // consume '{'
	list := &cabs.InitList{}
	for !p.curTokenIs(lexer.TokenRBrace) && !p.AtEOF() {
		start := p.pos
		var ds []cabs.Designator
		var rangeHi int64 = -1
		for {
			if p.curTokenIs(lexer.TokenDot) && p.peekTokenIs(lexer.TokenIdent) {
				ds = append(ds, cabs.Designator{Field: p.peekToken.Literal})
				p.nextToken()
				p.nextToken()
				continue
			}
			if p.curTokenIs(lexer.TokenLBracket) {
				p.nextToken()
				idx, _ := p.sema.ConstInt(p.typeExprAlways(p.parseConditional()))
				if p.curTokenIs(lexer.TokenEllipsis) {
					p.nextToken()
					rangeHi, _ = p.sema.ConstInt(p.typeExprAlways(p.parseConditional()))
				}
				p.expect(lexer.TokenRBracket)
				ds = append(ds, cabs.Designator{Index: idx, IsIndex: true})
				continue
			}
			break
		}
		if len(ds) > 0 {
			p.expect(lexer.TokenAssign)
		}
		value := p.parseInitializer()
		if rangeHi >= 0 && len(ds) > 0 {
			// GNU range designator [lo ... hi]
			lo := ds[len(ds)-1].Index
			for i := lo; i <= rangeHi; i++ {
				rd := append(append([]cabs.Designator{}, ds[:len(ds)-1]...), cabs.Designator{Index: i, IsIndex: true})
				list.Items = append(list.Items, cabs.InitItem{Designators: rd, Value: value})
			}
		} else {
			list.Items = append(list.Items, cabs.InitItem{Designators: ds, Value: value})
		}
		if !p.curTokenIs(lexer.TokenComma) {
			break
		}
		p.nextToken()
		if p.pos == start {
			p.nextToken()
		}
	}
	p.expect(lexer.TokenRBrace)
	return list
}

// typeExprAlways types e even when parsing untyped expressions; constant
// evaluation needs types.
func (p *Parser) typeExprAlways(e cabs.Expr) cabs.Expr {
	typed, err := p.sema.Expr(e)
	if err != nil {
		p.addError(err.Error())
		return e
	}
	return typed
}

func (p *Parser) parseStaticAssert() cabs.Definition {
	pos := p.position()
	p.nextToken()
	p.expect(lexer.TokenLParen)
	cond := p.typeExprAlways(p.parseAssignment())
	msg := ""
	if p.curTokenIs(lexer.TokenComma) {
		p.nextToken()
		if p.curTokenIs(lexer.TokenString) {
			msg = p.parseStringLiteral().Value
		}
	}
	p.expect(lexer.TokenRParen)
	p.expect(lexer.TokenSemicolon)
	if v, ok := p.sema.ConstInt(cond); !ok {
		p.addError("static assertion expression is not an integral constant expression")
	} else if v == 0 {
		p.addError(fmt.Sprintf("static assertion failed: %s", msg))
	}
	return cabs.StaticAssert{Cond: cond, Msg: msg, Pos: pos}
}

// parseFunctionBody parses the body of a function definition with its
// parameters in scope.
func (p *Parser) parseFunctionBody(name string, fn ctypes.Tfunction, params []string) *cabs.Block {
	p.sema.PushScope()
	defer p.sema.PopScope()
	p.sema.EnterFunction(name, fn)
	defer p.sema.LeaveFunction()
	for i, pn := range params {
		if pn != "" && i < len(fn.Params) {
			p.sema.Declare(ctyper.Symbol{Name: pn, Kind: ctyper.SymVar, Type: fn.Params[i]})
		}
	}
	p.nextToken() // consume '{'
	block := &cabs.Block{Items: []cabs.Stmt{}}
	for !p.curTokenIs(lexer.TokenRBrace) && !p.AtEOF() {
		start := p.pos
		if stmt := p.parseBlockItem(); stmt != nil {
			block.Items = append(block.Items, p.withImplied(stmt)...)
		}
		if p.pos == start {
			p.nextToken()
		}
	}
	p.expect(lexer.TokenRBrace)
	return block
}
