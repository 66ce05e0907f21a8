package lirgen

import (
	"fmt"
	"regexp"

	"github.com/raymyers/ralph-translate-c/pkg/cabs"
	"github.com/raymyers/ralph-translate-c/pkg/ctypes"
	"github.com/raymyers/ralph-translate-c/pkg/lir"
)

// bindKind classifies what a C identifier lowers to
type bindKind int

const (
	bindVar       bindKind = iota // local variable or parameter copy
	bindGlobal                    // file-scope variable
	bindFunc                      // function
	bindStatic                    // static local, a member of its holder struct
	bindExtern                    // block-scope extern, a member of its holder struct
	bindEnumConst                 // enumerator
	bindTypedef                   // typedef name
)

// binding is what a C identifier resolves to in the current scope
type binding struct {
	kind   bindKind
	name   string      // Zig identifier, escaped
	holder string      // container of static and extern locals
	typ    ctypes.Type // variables and functions: the declared type
	value  int64       // enumerators
	// indirect: the holder member is a pointer to the object
	indirect bool
}

// ref returns the expression naming the binding.
func (b *binding) ref() lir.Expr {
	if b.holder == "" {
		return lir.Id(b.name)
	}
	var x lir.Expr = lir.Member{X: lir.Id(b.holder), Name: b.name}
	if b.indirect {
		x = lir.Deref{X: x}
	}
	return x
}

// scope maps C identifiers to bindings and tracks the Zig names taken
type scope struct {
	parent *scope
	names  map[string]*binding
	taken  map[string]bool
}

func newScope(parent *scope) *scope {
	return &scope{parent: parent, names: make(map[string]*binding), taken: make(map[string]bool)}
}

func (t *translator) pushScope() {
	t.scope = newScope(t.scope)
	t.sema.PushScope()
}

func (t *translator) popScope() {
	if t.scope.parent != nil {
		t.scope = t.scope.parent
		t.sema.PopScope()
	}
}

// atFileScope reports whether no block is open.
func (t *translator) atFileScope() bool {
	return t.scope == t.global
}

// lookup finds the innermost binding of a C identifier.
func (t *translator) lookup(name string) (*binding, bool) {
	for s := t.scope; s != nil; s = s.parent {
		if b, ok := s.names[name]; ok {
			return b, true
		}
	}
	return nil, false
}

// isTaken reports whether a Zig name is visible from the current scope.
func (t *translator) isTaken(name string) bool {
	for s := t.scope; s != nil; s = s.parent {
		if s.taken[name] {
			return true
		}
	}
	return false
}

// fresh reserves a Zig name in the current scope, mangling base with the
// unit counter when it clashes with a visible name.
func (t *translator) fresh(base string) string {
	name := escape(base)
	for t.isTaken(name) {
		t.mangle++
		name = escape(fmt.Sprintf("%s_%d", base, t.mangle))
	}
	t.scope.taken[name] = true
	return name
}

// bind declares a C identifier in the current scope.
func (t *translator) bind(cname string, b *binding) *binding {
	t.scope.names[cname] = b
	t.scope.taken[b.name] = true
	return b
}

// collectGlobals reserves every file-scope name up front; block-scope
// declarations are mangled against them whatever their order.
func (t *translator) collectGlobals(prog *cabs.Program) {
	for _, n := range []string{"__root", "__builtins", "__helpers"} {
		t.global.taken[n] = true
	}
	for _, d := range prog.Definitions {
		switch def := d.(type) {
		case cabs.VarDef:
			t.global.taken[escape(def.Name)] = true
		case cabs.FunDef:
			t.global.taken[escape(def.Name)] = true
		case cabs.TypedefDef:
			t.global.taken[escape(def.Name)] = true
		case cabs.RecordDef:
			if def.Rec.Tag != "" {
				t.global.taken[def.Rec.Kind.String()+"_"+def.Rec.Tag] = true
			}
		case cabs.EnumDef:
			if def.Enum.Tag != "" {
				t.global.taken["enum_"+def.Enum.Tag] = true
			}
			for _, c := range def.Enum.Consts {
				t.global.taken[escape(c.Name)] = true
			}
		}
	}
	for _, m := range prog.Macros {
		t.global.taken[escape(m.Name)] = true
	}
}

// zigKeywords are the reserved words of the target language
var zigKeywords = map[string]bool{
	"addrspace": true, "align": true, "allowzero": true, "and": true, "anyframe": true,
	"anytype": true, "asm": true, "async": true, "await": true, "break": true,
	"callconv": true, "catch": true, "comptime": true, "const": true, "continue": true,
	"defer": true, "else": true, "enum": true, "errdefer": true, "error": true,
	"export": true, "extern": true, "fn": true, "for": true, "if": true,
	"inline": true, "linksection": true, "noalias": true, "noinline": true, "nosuspend": true,
	"opaque": true, "or": true, "orelse": true, "packed": true, "pub": true,
	"resume": true, "return": true, "struct": true, "suspend": true, "switch": true,
	"test": true, "threadlocal": true, "try": true, "union": true, "unreachable": true,
	"usingnamespace": true, "var": true, "volatile": true, "while": true,
}

// zigPrimitives are names of builtin types and values that cannot be
// redeclared
var zigPrimitives = map[string]bool{
	"anyerror": true, "anyframe": true, "anyopaque": true, "bool": true, "c_int": true,
	"c_long": true, "c_longdouble": true, "c_longlong": true, "c_char": true, "c_short": true,
	"c_uint": true, "c_ulong": true, "c_ulonglong": true, "c_ushort": true, "comptime_float": true,
	"comptime_int": true, "f128": true, "f16": true, "f32": true, "f64": true, "f80": true,
	"false": true, "isize": true, "noreturn": true, "null": true, "true": true, "type": true,
	"undefined": true, "usize": true, "void": true,
}

var intTypeName = regexp.MustCompile(`^[iu][0-9]+$`)

// escape quotes a C identifier that is not a valid Zig identifier.
func escape(name string) string {
	if zigKeywords[name] || zigPrimitives[name] || intTypeName.MatchString(name) || name == "_" {
		return `@"` + name + `"`
	}
	return name
}
