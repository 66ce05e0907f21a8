package lirgen

import (
	"fmt"

	"github.com/raymyers/ralph-translate-c/pkg/ctyper"
	"github.com/raymyers/ralph-translate-c/pkg/ctypes"
	"github.com/raymyers/ralph-translate-c/pkg/lir"
)

// intNames maps C integer kinds to their Zig spelling
var intNames = map[ctypes.IntKind]string{
	ctypes.Bool:      "bool",
	ctypes.Char:      "u8",
	ctypes.SChar:     "i8",
	ctypes.UChar:     "u8",
	ctypes.Short:     "c_short",
	ctypes.UShort:    "c_ushort",
	ctypes.Int:       "c_int",
	ctypes.UInt:      "c_uint",
	ctypes.Long:      "c_long",
	ctypes.ULong:     "c_ulong",
	ctypes.LongLong:  "c_longlong",
	ctypes.ULongLong: "c_ulonglong",
	ctypes.Int128:    "i128",
	ctypes.UInt128:   "u128",
}

var floatNames = map[ctypes.FloatKind]string{
	ctypes.Float16:    "f16",
	ctypes.Float:      "f32",
	ctypes.Double:     "f64",
	ctypes.LongDouble: "c_longdouble",
	ctypes.Float128:   "f128",
}

// builtinTypedefNames maps the predeclared typedefs to fixed-width Zig types
var builtinTypedefNames = map[string]string{
	"size_t":    "usize",
	"uintptr_t": "usize",
	"ssize_t":   "isize",
	"ptrdiff_t": "isize",
	"intptr_t":  "isize",
	"int8_t":    "i8",
	"uint8_t":   "u8",
	"int16_t":   "i16",
	"uint16_t":  "u16",
	"int32_t":   "i32",
	"uint32_t":  "u32",
	"int64_t":   "i64",
	"uint64_t":  "u64",
}

// intType returns the Zig name of an integer kind.
func intType(k ctypes.IntKind) lir.Type {
	return lir.Named(intNames[k])
}

// zigType maps a C type to the lir type with the same layout. Typedef
// names are kept when they are bound in scope.
func (t *translator) zigType(ct ctypes.Type) lir.Type {
	switch ty := ct.(type) {
	case ctypes.Tvoid:
		return lir.Named("void")
	case ctypes.Tint:
		return intType(ty.Kind)
	case ctypes.Tfloat:
		return lir.Named(floatNames[ty.Kind])
	case ctypes.Tnamed:
		if b, ok := t.lookup(ty.Name); ok && b.kind == bindTypedef {
			return lir.Named(b.name)
		}
		if name, ok := builtinTypedefNames[ty.Name]; ok && ctyper.IsBuiltinTypedef(ty.Name) {
			return lir.Named(name)
		}
		return t.zigType(ty.Underlying)
	case ctypes.Tpointer:
		return t.pointerType(ty.Elem)
	case ctypes.Tarray:
		if ty.Size < 0 {
			return t.pointerType(ty.Elem)
		}
		return lir.Array{Len: ty.Size, Elem: t.zigType(ty.Elem)}
	case ctypes.Tvector:
		return lir.Vector{Len: ty.Len, Elem: t.zigType(ty.Elem)}
	case ctypes.Tfunction:
		return t.fnType(ty)
	case ctypes.Trecord:
		return lir.Named(t.recordName(ty.Rec))
	case ctypes.Tenum:
		if ty.Enum.Tag == "" {
			return intType(t.model.EnumKind(ty.Enum))
		}
		return lir.Named(t.enumName(ty.Enum))
	}
	panic(fmt.Sprintf("zigType: unexpected type %T", ct))
}

// pointerType maps a pointer to elem. Function pointers and pointers to
// opaque types are optional single pointers; the rest are C pointers.
func (t *translator) pointerType(elem ctypes.Type) lir.Type {
	q := ctypes.QualsOf(elem)
	p := lir.Pointer{Kind: lir.PtrC, Const: q&ctypes.Const != 0, Volatile: q&ctypes.Volatile != 0}
	switch c := ctypes.Canonical(elem).(type) {
	case ctypes.Tfunction:
		return lir.Pointer{Kind: lir.PtrOne, Optional: true, Const: true, Elem: t.zigType(ctypes.Unqualified(elem))}
	case ctypes.Tvoid:
		p.Kind, p.Optional = lir.PtrOne, true
		p.Elem = lir.Named("anyopaque")
		return p
	case ctypes.Trecord:
		if t.containsOpaque(c.Rec) {
			p.Kind, p.Optional = lir.PtrOne, true
		}
	}
	p.Elem = t.zigType(ctypes.Unqualified(elem))
	return p
}

// fnType maps a function type; parameter names are kept when the
// declarator spelled them.
func (t *translator) fnType(fn ctypes.Tfunction) lir.FnType {
	ft := lir.FnType{VarArg: fn.VarArg || fn.NoProto && len(fn.Params) == 0, CallConv: callConv(fn.CallConv), Return: t.returnType(fn)}
	for i, p := range fn.Params {
		param := lir.Param{Type: t.zigType(p)}
		if i < len(fn.Names) && fn.Names[i] != "" {
			param.Name = escape(fn.Names[i])
		}
		ft.Params = append(ft.Params, param)
	}
	return ft
}

func (t *translator) returnType(fn ctypes.Tfunction) lir.Type {
	if fn.NoReturn {
		return lir.Named("noreturn")
	}
	return t.zigType(fn.Return)
}

// callConv spells a calling convention attribute.
func callConv(cc string) string {
	switch cc {
	case "stdcall", "fastcall", "vectorcall", "thiscall", "regcall":
		return "x86_" + cc
	}
	return "c"
}

// enumName returns the Zig name of a tagged enum type.
func (t *translator) enumName(e *ctypes.Enum) string {
	if name, ok := t.enums[e]; ok {
		return name
	}
	name := "enum_" + e.Tag
	t.enums[e] = name
	return name
}

// zeroValue is the value a zero-initialized object of type ct holds.
func (t *translator) zeroValue(ct ctypes.Type) lir.Expr {
	switch c := ctypes.Canonical(ct).(type) {
	case ctypes.Tint:
		if c.Kind == ctypes.Bool {
			return lir.Id("false")
		}
		return lir.Int("0")
	case ctypes.Tenum, ctypes.Tfloat:
		return lir.Int("0")
	case ctypes.Tpointer:
		return lir.Id("null")
	case ctypes.Tarray:
		if c.Size < 0 {
			return lir.Id("null")
		}
	}
	return t.zeroes(ct)
}

// zeroes returns @import("std").mem.zeroes(T).
func (t *translator) zeroes(ct ctypes.Type) lir.Expr {
	return lir.Call{Fn: stdPath("mem", "zeroes"), Args: []lir.Expr{lir.TypeExpr{T: t.zigType(ct)}}}
}

// isOpaque reports whether a record is lowered as opaque {}.
func (t *translator) isOpaque(r *ctypes.Record) bool {
	return !r.Complete || t.opaqueReason(r) != ""
}

// containsOpaque reports whether a record is opaque or embeds an opaque
// record by value; such records cannot be dereferenced.
func (t *translator) containsOpaque(r *ctypes.Record) bool {
	return t.embedsOpaque(r, map[*ctypes.Record]bool{})
}

func (t *translator) embedsOpaque(r *ctypes.Record, seen map[*ctypes.Record]bool) bool {
	if seen[r] {
		return false
	}
	seen[r] = true
	if t.isOpaque(r) {
		return true
	}
	for _, f := range r.Fields {
		ft := ctypes.Canonical(f.Type)
		for {
			arr, ok := ft.(ctypes.Tarray)
			if !ok {
				break
			}
			ft = ctypes.Canonical(arr.Elem)
		}
		if rec, ok := ft.(ctypes.Trecord); ok && t.embedsOpaque(rec.Rec, seen) {
			return true
		}
	}
	return false
}

// intOfWidth returns the kind with the width of k and the given signedness.
func intOfWidth(k ctypes.IntKind, signed bool) ctypes.IntKind {
	if signed {
		return ctypes.ToSigned(k)
	}
	return ctypes.ToUnsigned(k)
}
