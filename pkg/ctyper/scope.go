// Package ctyper is the semantic half of the C front-end: it keeps the
// scopes the parser declares into, assigns a C type to every expression
// node, normalizes brace initializers and evaluates integer constant
// expressions.
package ctyper

import (
	"fmt"

	"github.com/raymyers/ralph-translate-c/pkg/ctarget"
	"github.com/raymyers/ralph-translate-c/pkg/ctypes"
)

// SymKind classifies ordinary identifiers
type SymKind int

const (
	SymVar SymKind = iota
	SymFunc
	SymEnumConst
	SymTypedef
)

// Symbol is one entry of the ordinary identifier namespace
type Symbol struct {
	Name  string
	Kind  SymKind
	Type  ctypes.Type
	Value int64 // enumerators only
	Enum  *ctypes.Enum
}

type scope struct {
	parent  *scope
	syms    map[string]*Symbol
	records map[string]*ctypes.Record
	enums   map[string]*ctypes.Enum
}

func newScope(parent *scope) *scope {
	return &scope{
		parent:  parent,
		syms:    make(map[string]*Symbol),
		records: make(map[string]*ctypes.Record),
		enums:   make(map[string]*ctypes.Enum),
	}
}

// function is the function whose body is being typed
type function struct {
	name string
	typ  ctypes.Tfunction
}

// Typer types expressions against a stack of scopes
type Typer struct {
	Model    *ctypes.Model
	scope    *scope
	fn       *function
	nextID   int
	builtins map[string]ctypes.Type

	// functions declared in some block keep their linkage after the block
	// closes; a later use outside it implies a fresh declaration
	linked  map[string]Symbol
	implied []Symbol
}

// New creates a Typer whose file scope holds the builtin typedefs of the
// model's target (size_t, uint8_t, ...).
func New(m *ctypes.Model) *Typer {
	t := &Typer{Model: m, scope: newScope(nil), builtins: builtinTypedefs(m)}
	for name, typ := range t.builtins {
		t.scope.syms[name] = &Symbol{Name: name, Kind: SymTypedef, Type: typ}
	}
	return t
}

// PushScope opens a block scope.
func (t *Typer) PushScope() {
	t.scope = newScope(t.scope)
}

// PopScope closes the innermost block scope.
func (t *Typer) PopScope() {
	if t.scope.parent != nil {
		t.scope = t.scope.parent
	}
}

// AtFileScope reports whether no block scope is open.
func (t *Typer) AtFileScope() bool {
	return t.scope.parent == nil
}

// Declare adds sym to the innermost scope, replacing any previous
// declaration of the same name in that scope.
func (t *Typer) Declare(sym Symbol) {
	s := sym
	t.scope.syms[sym.Name] = &s
	if sym.Kind == SymFunc && t.scope.parent != nil {
		if t.linked == nil {
			t.linked = make(map[string]Symbol)
		}
		t.linked[sym.Name] = sym
	}
}

// TakeImplied returns the function declarations implied since the last
// call by uses of a name only a closed block declared.
func (t *Typer) TakeImplied() []Symbol {
	out := t.implied
	t.implied = nil
	return out
}

// Lookup finds the innermost declaration of name.
func (t *Typer) Lookup(name string) (*Symbol, bool) {
	for s := t.scope; s != nil; s = s.parent {
		if sym, ok := s.syms[name]; ok {
			return sym, true
		}
	}
	return nil, false
}

// IsTypedef reports whether name currently denotes a typedef.
func (t *Typer) IsTypedef(name string) bool {
	sym, ok := t.Lookup(name)
	return ok && sym.Kind == SymTypedef
}

// Typedef returns the sugared type of a typedef name.
func (t *Typer) Typedef(name string) (ctypes.Type, bool) {
	sym, ok := t.Lookup(name)
	if !ok || sym.Kind != SymTypedef {
		return nil, false
	}
	return ctypes.Tnamed{Name: name, Underlying: sym.Type}, true
}

// IsBuiltinTypedef reports whether name is one of the typedefs predeclared
// for every unit.
func IsBuiltinTypedef(name string) bool {
	_, ok := builtinTypedefNames[name]
	return ok
}

// LookupRecord finds a visible struct or union tag.
func (t *Typer) LookupRecord(tag string) (*ctypes.Record, bool) {
	for s := t.scope; s != nil; s = s.parent {
		if r, ok := s.records[tag]; ok {
			return r, true
		}
	}
	return nil, false
}

// DeclareRecord registers a new record in the innermost scope. An empty
// tag creates an anonymous record that is not registered.
func (t *Typer) DeclareRecord(kind ctypes.RecordKind, tag string) *ctypes.Record {
	t.nextID++
	r := &ctypes.Record{Kind: kind, Tag: tag, ID: t.nextID}
	if tag != "" {
		t.scope.records[tag] = r
	}
	return r
}

// AddRecord makes an existing record visible under its tag in the
// innermost scope. Records created by another Typer keep their identity.
func (t *Typer) AddRecord(r *ctypes.Record) {
	if r.Tag != "" {
		t.scope.records[r.Tag] = r
	}
	if r.ID > t.nextID {
		t.nextID = r.ID
	}
}

// RecordInScope returns the record declared with tag in the innermost
// scope only.
func (t *Typer) RecordInScope(tag string) (*ctypes.Record, bool) {
	r, ok := t.scope.records[tag]
	return r, ok
}

// LookupEnum finds a visible enum tag.
func (t *Typer) LookupEnum(tag string) (*ctypes.Enum, bool) {
	for s := t.scope; s != nil; s = s.parent {
		if e, ok := s.enums[tag]; ok {
			return e, true
		}
	}
	return nil, false
}

// DeclareEnum registers a new enum in the innermost scope.
func (t *Typer) DeclareEnum(tag string) *ctypes.Enum {
	t.nextID++
	e := &ctypes.Enum{Tag: tag, ID: t.nextID}
	if tag != "" {
		t.scope.enums[tag] = e
	}
	return e
}

// AddEnum makes an existing enum and its enumerators visible in the
// innermost scope.
func (t *Typer) AddEnum(e *ctypes.Enum) {
	if e.Tag != "" {
		t.scope.enums[e.Tag] = e
	}
	if e.ID > t.nextID {
		t.nextID = e.ID
	}
	kind := t.Model.EnumConstKind(e)
	for _, c := range e.Consts {
		t.scope.syms[c.Name] = &Symbol{Name: c.Name, Kind: SymEnumConst, Type: ctypes.Tint{Kind: kind}, Value: c.Value, Enum: e}
	}
}

// EnumInScope returns the enum declared with tag in the innermost scope.
func (t *Typer) EnumInScope(tag string) (*ctypes.Enum, bool) {
	e, ok := t.scope.enums[tag]
	return e, ok
}

// FinishEnum retypes the enumerators of a completed enum.
func (t *Typer) FinishEnum(e *ctypes.Enum) {
	kind := t.Model.EnumConstKind(e)
	for s := t.scope; s != nil; s = s.parent {
		for _, c := range e.Consts {
			if sym, ok := s.syms[c.Name]; ok && sym.Kind == SymEnumConst && sym.Enum == e {
				sym.Type = ctypes.Tint{Kind: kind}
			}
		}
	}
}

// EnterFunction sets the function whose body follows; it types return
// statements and __func__.
func (t *Typer) EnterFunction(name string, typ ctypes.Tfunction) {
	t.fn = &function{name: name, typ: typ}
}

// LeaveFunction clears the current function.
func (t *Typer) LeaveFunction() {
	t.fn = nil
}

// PrettyFunction renders the __PRETTY_FUNCTION__ string of a function.
func PrettyFunction(name string, fn ctypes.Tfunction) string {
	return ctypes.TypeName(fn, name)
}

var builtinTypedefNames = map[string]struct{}{
	"size_t": {}, "ssize_t": {}, "ptrdiff_t": {}, "intptr_t": {}, "uintptr_t": {},
	"int8_t": {}, "uint8_t": {}, "int16_t": {}, "uint16_t": {},
	"int32_t": {}, "uint32_t": {}, "int64_t": {}, "uint64_t": {},
	"wchar_t": {}, "char16_t": {}, "char32_t": {},
}

// pointerSized returns the integer kind as wide as a pointer.
func pointerSized(m *ctypes.Model, signed bool) ctypes.IntKind {
	k := ctypes.ULongLong
	switch m.Target.PointerBits {
	case m.Target.LongBits:
		k = ctypes.ULong
	case m.Target.IntBits:
		k = ctypes.UInt
	}
	if signed {
		return ctypes.ToSigned(k)
	}
	return k
}

func exactly(m *ctypes.Model, bits int, signed bool) ctypes.IntKind {
	for _, k := range []ctypes.IntKind{ctypes.UChar, ctypes.UShort, ctypes.UInt, ctypes.ULong, ctypes.ULongLong} {
		if m.IntBits(k) == bits {
			if signed {
				return ctypes.ToSigned(k)
			}
			return k
		}
	}
	panic(fmt.Sprintf("no %d-bit integer type", bits))
}

func builtinTypedefs(m *ctypes.Model) map[string]ctypes.Type {
	wchar := ctypes.Tint{Kind: ctypes.Int}
	if m.Target.OS == ctarget.Windows {
		wchar = ctypes.Tint{Kind: ctypes.UShort}
	}
	return map[string]ctypes.Type{
		"size_t":    ctypes.Tint{Kind: pointerSized(m, false)},
		"ssize_t":   ctypes.Tint{Kind: pointerSized(m, true)},
		"ptrdiff_t": ctypes.Tint{Kind: pointerSized(m, true)},
		"intptr_t":  ctypes.Tint{Kind: pointerSized(m, true)},
		"uintptr_t": ctypes.Tint{Kind: pointerSized(m, false)},
		"int8_t":    ctypes.Tint{Kind: ctypes.SChar},
		"uint8_t":   ctypes.Tint{Kind: ctypes.UChar},
		"int16_t":   ctypes.Tint{Kind: ctypes.Short},
		"uint16_t":  ctypes.Tint{Kind: ctypes.UShort},
		"int32_t":   ctypes.Tint{Kind: exactly(m, 32, true)},
		"uint32_t":  ctypes.Tint{Kind: exactly(m, 32, false)},
		"int64_t":   ctypes.Tint{Kind: exactly(m, 64, true)},
		"uint64_t":  ctypes.Tint{Kind: exactly(m, 64, false)},
		"wchar_t":   wchar,
		"char16_t":  ctypes.Tint{Kind: ctypes.UShort},
		"char32_t":  ctypes.Tint{Kind: exactly(m, 32, false)},
	}
}

// builtinType returns a predeclared typedef as a sugared type.
func (t *Typer) builtinType(name string) ctypes.Type {
	return ctypes.Tnamed{Name: name, Underlying: t.builtins[name]}
}

// SizeT returns the type of sizeof expressions.
func (t *Typer) SizeT() ctypes.Type { return t.builtinType("size_t") }

// PtrdiffT returns the type of pointer differences.
func (t *Typer) PtrdiffT() ctypes.Type { return t.builtinType("ptrdiff_t") }
